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
	"regexp"
	"strings"

	"github.com/teradata-labs/adnify/pkg/host"
	"github.com/teradata-labs/adnify/pkg/tools"
)

const (
	searchMaxMatches  = 100
	searchMaxFileSize = 1 << 20 // skip files larger than 1 MiB
)

// Directories never descended into during a search.
var searchSkipDirs = map[string]bool{
	".git": true, "node_modules": true, ".adnify": true,
	"dist": true, "build": true, "vendor": true,
}

// SearchFilesTool greps workspace files for a regular expression.
type SearchFilesTool struct {
	fs   host.Filesystem
	root string
}

// NewSearchFilesTool creates the search_files tool.
func NewSearchFilesTool(fs host.Filesystem, root string) *SearchFilesTool {
	return &SearchFilesTool{fs: fs, root: root}
}

func (t *SearchFilesTool) Name() string { return "search_files" }

func (t *SearchFilesTool) Description() string {
	return "Search workspace files for a regular expression and return matching lines."
}

func (t *SearchFilesTool) InputSchema() *tools.JSONSchema {
	return tools.NewObjectSchema("search_files arguments", map[string]*tools.JSONSchema{
		"pattern": tools.NewStringSchema("Regular expression to search for"),
		"path":    tools.NewStringSchema("Directory to search, relative to the root"),
	}, []string{"pattern"})
}

func (t *SearchFilesTool) ApprovalKind() tools.ApprovalKind { return tools.ApprovalNone }

func (t *SearchFilesTool) Execute(ctx context.Context, args map[string]interface{}) (*tools.Result, error) {
	re, err := regexp.Compile(argString(args, "pattern"))
	if err != nil {
		return tools.Errorf("invalid pattern: %v", err), nil
	}
	start := t.root
	if rel := argString(args, "path"); rel != "" {
		start = resolve(t.root, rel)
	}

	var b strings.Builder
	matches := 0
	err = t.walk(ctx, start, func(path, content string) bool {
		if matches >= searchMaxMatches {
			return false
		}
		for i, line := range strings.Split(content, "\n") {
			if re.MatchString(line) {
				fmt.Fprintf(&b, "%s:%d: %s\n", strings.TrimPrefix(path, t.root+"/"), i+1, strings.TrimSpace(line))
				matches++
				if matches >= searchMaxMatches {
					return false
				}
			}
		}
		return true
	})
	if err != nil {
		return tools.Errorf("search failed: %v", err), nil
	}

	if matches == 0 {
		return tools.Textf("no matches for %q", argString(args, "pattern")), nil
	}
	text := b.String()
	if matches >= searchMaxMatches {
		text += fmt.Sprintf("(stopped at %d matches)\n", searchMaxMatches)
	}
	return &tools.Result{Success: true, Text: text}, nil
}

// walk visits files depth-first until visit returns false.
func (t *SearchFilesTool) walk(ctx context.Context, dir string, visit func(path, content string) bool) error {
	if ctx.Err() != nil {
		return ctx.Err()
	}
	entries, err := t.fs.ListDir(dir)
	if err != nil {
		return err
	}
	for _, entry := range entries {
		if entry.IsDir {
			if searchSkipDirs[entry.Name] || strings.HasPrefix(entry.Name, ".") {
				continue
			}
			if err := t.walk(ctx, entry.Path, visit); err != nil {
				return err
			}
			continue
		}
		if entry.Size > searchMaxFileSize {
			continue
		}
		content, exists, err := t.fs.Read(entry.Path)
		if err != nil || !exists {
			continue
		}
		if !visit(entry.Path, content) {
			return nil
		}
	}
	return nil
}
