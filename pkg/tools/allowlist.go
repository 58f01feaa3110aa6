// Copyright 2026 Teradata
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//	http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package tools

import (
	"strings"
)

// DefaultShellBinaries are the binaries a terminal-kind tool may invoke
// without asking.
var DefaultShellBinaries = []string{
	"npm", "yarn", "pnpm", "bun", "node", "npx", "deno",
	"git", "python", "python3", "pip", "pip3",
	"java", "javac", "mvn", "gradle",
	"go", "rust", "cargo",
	"make", "gcc", "clang", "cmake",
	"pwd", "ls", "dir", "cat", "type", "echo",
	"mkdir", "touch", "rm", "mv", "cp", "cd",
}

// DefaultGitSubcommands are the git subcommands allowed without approval.
var DefaultGitSubcommands = []string{
	"status", "log", "diff", "show", "ls-files", "rev-parse", "rev-list", "blame",
	"add", "commit", "reset", "restore", "push", "pull", "fetch", "remote",
	"branch", "checkout", "switch", "merge", "rebase", "cherry-pick",
	"clone", "init", "stash", "tag", "config",
}

// CommandNeedsApproval reports whether a shell command falls outside the
// allow-lists. Chained commands (&&, ||, ;, |) are checked segment by
// segment; one disallowed segment gates the whole command.
func CommandNeedsApproval(command string, allowedBinaries, allowedGitSubcommands []string) bool {
	bins := toSet(allowedBinaries)
	gitSubs := toSet(allowedGitSubcommands)

	for _, segment := range splitCommandSegments(command) {
		fields := strings.Fields(segment)
		if len(fields) == 0 {
			continue
		}
		binary := baseName(fields[0])
		if !bins[binary] {
			return true
		}
		if binary == "git" {
			sub := firstGitSubcommand(fields[1:])
			if sub == "" || !gitSubs[sub] {
				return true
			}
		}
	}
	return false
}

// splitCommandSegments breaks a shell line at chain operators. Quoting is
// not interpreted; a quoted operator errs on the side of asking.
func splitCommandSegments(command string) []string {
	replaced := command
	for _, op := range []string{"&&", "||", ";", "|"} {
		replaced = strings.ReplaceAll(replaced, op, "\n")
	}
	var out []string
	for _, seg := range strings.Split(replaced, "\n") {
		seg = strings.TrimSpace(seg)
		if seg != "" {
			out = append(out, seg)
		}
	}
	return out
}

// firstGitSubcommand skips leading -c/--flag options to find the
// subcommand.
func firstGitSubcommand(args []string) string {
	for i := 0; i < len(args); i++ {
		arg := args[i]
		if arg == "-c" || arg == "-C" {
			i++ // consumes a value
			continue
		}
		if strings.HasPrefix(arg, "-") {
			continue
		}
		return arg
	}
	return ""
}

func baseName(path string) string {
	if idx := strings.LastIndexAny(path, `/\`); idx >= 0 {
		return path[idx+1:]
	}
	return path
}

func toSet(items []string) map[string]bool {
	set := make(map[string]bool, len(items))
	for _, item := range items {
		set[item] = true
	}
	return set
}
