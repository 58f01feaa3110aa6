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
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/teradata-labs/adnify/pkg/host"
	"github.com/teradata-labs/adnify/pkg/tools"
)

func writeFixture(t *testing.T, root, rel, content string) {
	t.Helper()
	path := filepath.Join(root, rel)
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

func TestReadFileTool(t *testing.T) {
	root := t.TempDir()
	writeFixture(t, root, "a.txt", "one\ntwo\nthree\nfour")
	tool := NewReadFileTool(host.NewLocalFilesystem(), root)

	result, err := tool.Execute(context.Background(), map[string]interface{}{"path": "a.txt"})
	require.NoError(t, err)
	assert.True(t, result.Success)
	assert.Equal(t, "one\ntwo\nthree\nfour", result.Text)

	result, err = tool.Execute(context.Background(), map[string]interface{}{
		"path": "a.txt", "start_line": float64(2), "end_line": float64(3),
	})
	require.NoError(t, err)
	assert.Equal(t, "two\nthree", result.Text)

	result, err = tool.Execute(context.Background(), map[string]interface{}{"path": "missing.txt"})
	require.NoError(t, err)
	assert.False(t, result.Success)
	assert.Contains(t, result.Error, "not found")
}

func TestWriteFileTool(t *testing.T) {
	root := t.TempDir()
	fs := host.NewLocalFilesystem()
	tool := NewWriteFileTool(fs, root)

	result, err := tool.Execute(context.Background(), map[string]interface{}{
		"path": "sub/dir/b.txt", "content": "hello",
	})
	require.NoError(t, err)
	assert.True(t, result.Success)

	content, exists, err := fs.Read(filepath.Join(root, "sub/dir/b.txt"))
	require.NoError(t, err)
	assert.True(t, exists)
	assert.Equal(t, "hello", content)

	assert.Equal(t, []string{filepath.Join(root, "sub/dir/b.txt")},
		tool.TargetPaths(map[string]interface{}{"path": "sub/dir/b.txt"}))
}

func TestEditFileTool(t *testing.T) {
	root := t.TempDir()
	writeFixture(t, root, "code.go", "func main() {\n\tprintln(\"old\")\n}\n")
	fs := host.NewLocalFilesystem()
	tool := NewEditFileTool(fs, root)

	result, err := tool.Execute(context.Background(), map[string]interface{}{
		"path": "code.go", "old_string": `println("old")`, "new_string": `println("new")`,
	})
	require.NoError(t, err)
	assert.True(t, result.Success)

	content, _, _ := fs.Read(filepath.Join(root, "code.go"))
	assert.Contains(t, content, `println("new")`)

	// Ambiguous and absent targets are errors.
	writeFixture(t, root, "dup.txt", "x\nx\n")
	result, _ = tool.Execute(context.Background(), map[string]interface{}{
		"path": "dup.txt", "old_string": "x", "new_string": "y",
	})
	assert.False(t, result.Success)
	assert.Contains(t, result.Error, "appears 2 times")

	result, _ = tool.Execute(context.Background(), map[string]interface{}{
		"path": "code.go", "old_string": "nope", "new_string": "y",
	})
	assert.False(t, result.Success)
}

func TestCreateAndDeleteTools(t *testing.T) {
	root := t.TempDir()
	fs := host.NewLocalFilesystem()
	create := NewCreateTool(fs, root)
	del := NewDeleteTool(fs, root)

	result, err := create.Execute(context.Background(), map[string]interface{}{
		"path": "notes.md", "content": "# notes",
	})
	require.NoError(t, err)
	assert.True(t, result.Success)
	assert.True(t, fs.Exists(filepath.Join(root, "notes.md")))

	// Creating over an existing file is refused.
	result, _ = create.Execute(context.Background(), map[string]interface{}{
		"path": "notes.md", "content": "again",
	})
	assert.False(t, result.Success)

	// No content means folder.
	result, err = create.Execute(context.Background(), map[string]interface{}{"path": "newdir"})
	require.NoError(t, err)
	assert.True(t, result.Success)
	assert.True(t, fs.Exists(filepath.Join(root, "newdir")))

	result, err = del.Execute(context.Background(), map[string]interface{}{"path": "notes.md"})
	require.NoError(t, err)
	assert.True(t, result.Success)
	assert.False(t, fs.Exists(filepath.Join(root, "notes.md")))

	assert.Equal(t, tools.ApprovalDangerous, del.ApprovalKind())
}

func TestListDirTool(t *testing.T) {
	root := t.TempDir()
	writeFixture(t, root, "a.txt", "aa")
	require.NoError(t, os.Mkdir(filepath.Join(root, "sub"), 0o755))

	tool := NewListDirTool(host.NewLocalFilesystem(), root)
	result, err := tool.Execute(context.Background(), map[string]interface{}{})
	require.NoError(t, err)
	assert.True(t, result.Success)
	assert.Contains(t, result.Text, "a.txt (2 bytes)")
	assert.Contains(t, result.Text, "sub/")
}

func TestSearchFilesTool(t *testing.T) {
	root := t.TempDir()
	writeFixture(t, root, "src/main.go", "package main\n\nfunc Run() error { return nil }\n")
	writeFixture(t, root, "src/util.go", "package main\n\nfunc helper() {}\n")
	writeFixture(t, root, "node_modules/dep.js", "function Run() {}\n")

	tool := NewSearchFilesTool(host.NewLocalFilesystem(), root)
	result, err := tool.Execute(context.Background(), map[string]interface{}{"pattern": `func Run`})
	require.NoError(t, err)
	assert.True(t, result.Success)
	assert.Contains(t, result.Text, "src/main.go:3")
	// Skip directories are not searched.
	assert.NotContains(t, result.Text, "node_modules")

	result, _ = tool.Execute(context.Background(), map[string]interface{}{"pattern": "("})
	assert.False(t, result.Success)

	result, _ = tool.Execute(context.Background(), map[string]interface{}{"pattern": "zzz_nothing"})
	assert.True(t, result.Success)
	assert.Contains(t, result.Text, "no matches")
}

func TestRunCommandTool(t *testing.T) {
	root := t.TempDir()
	tool := NewRunCommandTool(host.NewLocalShell(), root)

	result, err := tool.Execute(context.Background(), map[string]interface{}{"command": "echo hello"})
	require.NoError(t, err)
	assert.True(t, result.Success)
	assert.Contains(t, result.Text, "hello")

	result, err = tool.Execute(context.Background(), map[string]interface{}{"command": "exit 3"})
	require.NoError(t, err)
	assert.False(t, result.Success)
	assert.Contains(t, result.Text, "exit code 3")
	assert.Equal(t, 3, result.Meta["exitCode"])

	assert.Equal(t, tools.ApprovalTerminal, tool.ApprovalKind())
}

func TestRegisterCore(t *testing.T) {
	registry := tools.NewRegistry()
	require.NoError(t, RegisterCore(registry, host.NewLocalFilesystem(), host.NewLocalShell(), t.TempDir()))

	loaded := registry.ToolsForContext(tools.LoadContext{Mode: tools.ModeAgent})
	assert.Len(t, loaded, 9)

	// Chat mode sees nothing even with tools registered.
	assert.Empty(t, registry.ToolsForContext(tools.LoadContext{Mode: tools.ModeChat}))
}
