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
	"github.com/teradata-labs/adnify/pkg/host"
	"github.com/teradata-labs/adnify/pkg/tools"
)

// RegisterCore registers the built-in tool set into the core group.
func RegisterCore(registry *tools.Registry, fs host.Filesystem, shell host.Shell, root string) error {
	core := []tools.Tool{
		NewReadFileTool(fs, root),
		NewWriteFileTool(fs, root),
		NewEditFileTool(fs, root),
		NewCreateTool(fs, root),
		NewDeleteTool(fs, root),
		NewListDirTool(fs, root),
		NewSearchFilesTool(fs, root),
		NewRunCommandTool(shell, root),
		NewAskUserTool(),
	}
	for _, tool := range core {
		if err := registry.Register(tools.GroupCore, tool); err != nil {
			return err
		}
	}
	return nil
}
