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

// Package builtin provides the core tool set: file access, directory
// listing, content search, shell commands, and human questions. All file
// access flows through the host filesystem bridge.
package builtin

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/teradata-labs/adnify/pkg/host"
	"github.com/teradata-labs/adnify/pkg/tools"
)

// resolve joins a workspace-relative path onto the root.
func resolve(root, path string) string {
	if filepath.IsAbs(path) {
		return filepath.Clean(path)
	}
	return filepath.Join(root, path)
}

func argString(args map[string]interface{}, key string) string {
	s, _ := args[key].(string)
	return s
}

func argInt(args map[string]interface{}, key string) (int, bool) {
	switch v := args[key].(type) {
	case float64:
		return int(v), true
	case int:
		return v, true
	}
	return 0, false
}

// ReadFileTool reads a file, optionally a line range.
type ReadFileTool struct {
	fs   host.Filesystem
	root string
}

// NewReadFileTool creates the read_file tool.
func NewReadFileTool(fs host.Filesystem, root string) *ReadFileTool {
	return &ReadFileTool{fs: fs, root: root}
}

func (t *ReadFileTool) Name() string { return "read_file" }

func (t *ReadFileTool) Description() string {
	return "Read the contents of a file in the workspace, optionally limited to a line range."
}

func (t *ReadFileTool) InputSchema() *tools.JSONSchema {
	return tools.NewObjectSchema("read_file arguments", map[string]*tools.JSONSchema{
		"path":       tools.NewStringSchema("Workspace-relative file path"),
		"start_line": tools.NewIntegerSchema("First line to include (1-based)"),
		"end_line":   tools.NewIntegerSchema("Last line to include (inclusive)"),
	}, []string{"path"})
}

func (t *ReadFileTool) ApprovalKind() tools.ApprovalKind { return tools.ApprovalNone }

func (t *ReadFileTool) Execute(ctx context.Context, args map[string]interface{}) (*tools.Result, error) {
	path := resolve(t.root, argString(args, "path"))
	content, exists, err := t.fs.Read(path)
	if err != nil {
		return tools.Errorf("read %s: %v", path, err), nil
	}
	if !exists {
		return tools.Errorf("file not found: %s", argString(args, "path")), nil
	}

	start, hasStart := argInt(args, "start_line")
	end, hasEnd := argInt(args, "end_line")
	if hasStart || hasEnd {
		lines := strings.Split(content, "\n")
		if !hasStart || start < 1 {
			start = 1
		}
		if !hasEnd || end > len(lines) {
			end = len(lines)
		}
		if start > len(lines) || start > end {
			return tools.Errorf("line range %d-%d out of bounds (%d lines)", start, end, len(lines)), nil
		}
		content = strings.Join(lines[start-1:end], "\n")
	}
	return &tools.Result{Success: true, Text: content}, nil
}

// WriteFileTool overwrites a file with new content.
type WriteFileTool struct {
	fs   host.Filesystem
	root string
}

// NewWriteFileTool creates the write_file tool.
func NewWriteFileTool(fs host.Filesystem, root string) *WriteFileTool {
	return &WriteFileTool{fs: fs, root: root}
}

func (t *WriteFileTool) Name() string { return "write_file" }

func (t *WriteFileTool) Description() string {
	return "Create or overwrite a file with the given content."
}

func (t *WriteFileTool) InputSchema() *tools.JSONSchema {
	return tools.NewObjectSchema("write_file arguments", map[string]*tools.JSONSchema{
		"path":    tools.NewStringSchema("Workspace-relative file path"),
		"content": tools.NewStringSchema("Full file content"),
	}, []string{"path", "content"})
}

func (t *WriteFileTool) ApprovalKind() tools.ApprovalKind { return tools.ApprovalNone }

func (t *WriteFileTool) TargetPaths(args map[string]interface{}) []string {
	return []string{resolve(t.root, argString(args, "path"))}
}

func (t *WriteFileTool) Execute(ctx context.Context, args map[string]interface{}) (*tools.Result, error) {
	path := resolve(t.root, argString(args, "path"))
	content := argString(args, "content")
	if err := t.fs.Write(path, content); err != nil {
		return tools.Errorf("write %s: %v", path, err), nil
	}
	return tools.Textf("wrote %d bytes to %s", len(content), argString(args, "path")), nil
}

// EditFileTool replaces one occurrence of a string in a file.
type EditFileTool struct {
	fs   host.Filesystem
	root string
}

// NewEditFileTool creates the edit_file tool.
func NewEditFileTool(fs host.Filesystem, root string) *EditFileTool {
	return &EditFileTool{fs: fs, root: root}
}

func (t *EditFileTool) Name() string { return "edit_file" }

func (t *EditFileTool) Description() string {
	return "Replace an exact string in a file with a new string. The old string must appear exactly once."
}

func (t *EditFileTool) InputSchema() *tools.JSONSchema {
	return tools.NewObjectSchema("edit_file arguments", map[string]*tools.JSONSchema{
		"path":       tools.NewStringSchema("Workspace-relative file path"),
		"old_string": tools.NewStringSchema("Exact text to replace"),
		"new_string": tools.NewStringSchema("Replacement text"),
	}, []string{"path", "old_string", "new_string"})
}

func (t *EditFileTool) ApprovalKind() tools.ApprovalKind { return tools.ApprovalNone }

func (t *EditFileTool) TargetPaths(args map[string]interface{}) []string {
	return []string{resolve(t.root, argString(args, "path"))}
}

func (t *EditFileTool) Execute(ctx context.Context, args map[string]interface{}) (*tools.Result, error) {
	path := resolve(t.root, argString(args, "path"))
	oldString := argString(args, "old_string")
	newString := argString(args, "new_string")

	content, exists, err := t.fs.Read(path)
	if err != nil {
		return tools.Errorf("read %s: %v", path, err), nil
	}
	if !exists {
		return tools.Errorf("file not found: %s", argString(args, "path")), nil
	}
	switch count := strings.Count(content, oldString); {
	case oldString == "":
		return tools.Errorf("old_string must not be empty"), nil
	case count == 0:
		return tools.Errorf("old_string not found in %s", argString(args, "path")), nil
	case count > 1:
		return tools.Errorf("old_string appears %d times in %s; provide more context", count, argString(args, "path")), nil
	}

	if err := t.fs.Write(path, strings.Replace(content, oldString, newString, 1)); err != nil {
		return tools.Errorf("write %s: %v", path, err), nil
	}
	return tools.Textf("edited %s", argString(args, "path")), nil
}

// CreateTool creates a file or folder.
type CreateTool struct {
	fs   host.Filesystem
	root string
}

// NewCreateTool creates the create_file_or_folder tool.
func NewCreateTool(fs host.Filesystem, root string) *CreateTool {
	return &CreateTool{fs: fs, root: root}
}

func (t *CreateTool) Name() string { return "create_file_or_folder" }

func (t *CreateTool) Description() string {
	return "Create a new file (when content is given) or folder (when it is not)."
}

func (t *CreateTool) InputSchema() *tools.JSONSchema {
	return tools.NewObjectSchema("create_file_or_folder arguments", map[string]*tools.JSONSchema{
		"path":    tools.NewStringSchema("Workspace-relative path to create"),
		"content": tools.NewStringSchema("File content; omit to create a folder"),
	}, []string{"path"})
}

func (t *CreateTool) ApprovalKind() tools.ApprovalKind { return tools.ApprovalNone }

func (t *CreateTool) TargetPaths(args map[string]interface{}) []string {
	if _, hasContent := args["content"]; hasContent {
		return []string{resolve(t.root, argString(args, "path"))}
	}
	return nil // folder creation needs no file snapshot
}

func (t *CreateTool) Execute(ctx context.Context, args map[string]interface{}) (*tools.Result, error) {
	path := resolve(t.root, argString(args, "path"))
	if content, hasContent := args["content"]; hasContent {
		text, _ := content.(string)
		if t.fs.Exists(path) {
			return tools.Errorf("already exists: %s", argString(args, "path")), nil
		}
		if err := t.fs.Write(path, text); err != nil {
			return tools.Errorf("create %s: %v", path, err), nil
		}
		return tools.Textf("created file %s", argString(args, "path")), nil
	}
	if err := t.fs.Mkdir(path); err != nil {
		return tools.Errorf("mkdir %s: %v", path, err), nil
	}
	return tools.Textf("created folder %s", argString(args, "path")), nil
}

// DeleteTool removes a file or folder. Always gated.
type DeleteTool struct {
	fs   host.Filesystem
	root string
}

// NewDeleteTool creates the delete_file_or_folder tool.
func NewDeleteTool(fs host.Filesystem, root string) *DeleteTool {
	return &DeleteTool{fs: fs, root: root}
}

func (t *DeleteTool) Name() string { return "delete_file_or_folder" }

func (t *DeleteTool) Description() string {
	return "Delete a file or empty folder. Requires approval."
}

func (t *DeleteTool) InputSchema() *tools.JSONSchema {
	return tools.NewObjectSchema("delete_file_or_folder arguments", map[string]*tools.JSONSchema{
		"path": tools.NewStringSchema("Workspace-relative path to delete"),
	}, []string{"path"})
}

func (t *DeleteTool) ApprovalKind() tools.ApprovalKind { return tools.ApprovalDangerous }

func (t *DeleteTool) TargetPaths(args map[string]interface{}) []string {
	return []string{resolve(t.root, argString(args, "path"))}
}

func (t *DeleteTool) Execute(ctx context.Context, args map[string]interface{}) (*tools.Result, error) {
	path := resolve(t.root, argString(args, "path"))
	if !t.fs.Exists(path) {
		return tools.Errorf("not found: %s", argString(args, "path")), nil
	}
	if err := t.fs.Delete(path); err != nil {
		return tools.Errorf("delete %s: %v", path, err), nil
	}
	return tools.Textf("deleted %s", argString(args, "path")), nil
}

// ListDirTool lists a directory.
type ListDirTool struct {
	fs   host.Filesystem
	root string
}

// NewListDirTool creates the list_dir tool.
func NewListDirTool(fs host.Filesystem, root string) *ListDirTool {
	return &ListDirTool{fs: fs, root: root}
}

func (t *ListDirTool) Name() string { return "list_dir" }

func (t *ListDirTool) Description() string {
	return "List the entries of a workspace directory."
}

func (t *ListDirTool) InputSchema() *tools.JSONSchema {
	return tools.NewObjectSchema("list_dir arguments", map[string]*tools.JSONSchema{
		"path": tools.NewStringSchema("Workspace-relative directory; defaults to the root"),
	}, nil)
}

func (t *ListDirTool) ApprovalKind() tools.ApprovalKind { return tools.ApprovalNone }

func (t *ListDirTool) Execute(ctx context.Context, args map[string]interface{}) (*tools.Result, error) {
	rel := argString(args, "path")
	if rel == "" {
		rel = "."
	}
	entries, err := t.fs.ListDir(resolve(t.root, rel))
	if err != nil {
		return tools.Errorf("list %s: %v", rel, err), nil
	}

	var b strings.Builder
	for _, entry := range entries {
		if entry.IsDir {
			fmt.Fprintf(&b, "%s/\n", entry.Name)
		} else {
			fmt.Fprintf(&b, "%s (%d bytes)\n", entry.Name, entry.Size)
		}
	}
	return &tools.Result{Success: true, Text: b.String()}, nil
}
