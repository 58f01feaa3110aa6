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

package builtin

import (
	"context"
	"fmt"
	"strings"

	"github.com/teradata-labs/adnify/pkg/host"
	"github.com/teradata-labs/adnify/pkg/tools"
)

// RunCommandTool executes shell commands through the host bridge. It is
// terminal-gated: commands off the allow-list suspend for approval.
type RunCommandTool struct {
	shell host.Shell
	root  string
}

// NewRunCommandTool creates the run_command tool.
func NewRunCommandTool(shell host.Shell, root string) *RunCommandTool {
	return &RunCommandTool{shell: shell, root: root}
}

func (t *RunCommandTool) Name() string { return "run_command" }

func (t *RunCommandTool) Description() string {
	return "Run a shell command in the workspace and return its output."
}

func (t *RunCommandTool) InputSchema() *tools.JSONSchema {
	return tools.NewObjectSchema("run_command arguments", map[string]*tools.JSONSchema{
		"command": tools.NewStringSchema("Shell command line to execute"),
		"cwd":     tools.NewStringSchema("Working directory, relative to the workspace root"),
	}, []string{"command"})
}

func (t *RunCommandTool) ApprovalKind() tools.ApprovalKind { return tools.ApprovalTerminal }

func (t *RunCommandTool) Execute(ctx context.Context, args map[string]interface{}) (*tools.Result, error) {
	command := argString(args, "command")
	cwd := t.root
	if rel := argString(args, "cwd"); rel != "" {
		cwd = resolve(t.root, rel)
	}

	res, err := t.shell.Exec(ctx, command, cwd)
	if err != nil {
		return tools.Errorf("exec failed: %v", err), nil
	}

	var b strings.Builder
	if res.Stdout != "" {
		b.WriteString(res.Stdout)
	}
	if res.Stderr != "" {
		if b.Len() > 0 {
			b.WriteString("\n")
		}
		b.WriteString(res.Stderr)
	}
	if res.ExitCode != 0 {
		fmt.Fprintf(&b, "\nexit code %d", res.ExitCode)
		return &tools.Result{
			Success: false,
			Text:    b.String(),
			Error:   fmt.Sprintf("command exited with code %d", res.ExitCode),
			Meta:    map[string]interface{}{"exitCode": res.ExitCode},
		}, nil
	}
	return &tools.Result{
		Success: true,
		Text:    b.String(),
		Meta:    map[string]interface{}{"exitCode": 0},
	}, nil
}
