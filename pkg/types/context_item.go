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

package types

import "fmt"

// ContextItemKind enumerates the context handle variants a user can pin to
// a thread.
type ContextItemKind string

const (
	ContextFile          ContextItemKind = "file"
	ContextFolder        ContextItemKind = "folder"
	ContextCodeSelection ContextItemKind = "selection"
	ContextCodebase      ContextItemKind = "codebase"
	ContextSymbol        ContextItemKind = "symbol"
	ContextGit           ContextItemKind = "git"
	ContextTerminal      ContextItemKind = "terminal"
	ContextWeb           ContextItemKind = "web"
	ContextImage         ContextItemKind = "image"
)

// ContextItem is a user-pinned handle to prompt material: a file, folder,
// selection, symbol, URL, or a coarse source like the codebase or terminal.
type ContextItem struct {
	Kind ContextItemKind `json:"kind"`

	// URI locates file, folder, selection, web, and image items
	URI string `json:"uri,omitempty"`

	// StartLine and EndLine bound code selections (1-based, inclusive)
	StartLine int `json:"startLine,omitempty"`
	EndLine   int `json:"endLine,omitempty"`

	// SymbolName names symbol items; Line is the definition line
	SymbolName string `json:"symbolName,omitempty"`
	Line       int    `json:"line,omitempty"`
}

// Key returns the canonical de-duplication key: type + uri + range.
// Two items with equal keys are the same item.
func (c ContextItem) Key() string {
	switch c.Kind {
	case ContextCodeSelection:
		return fmt.Sprintf("%s:%s:%d-%d", c.Kind, c.URI, c.StartLine, c.EndLine)
	case ContextSymbol:
		return fmt.Sprintf("%s:%s:%s:%d", c.Kind, c.SymbolName, c.URI, c.Line)
	default:
		return fmt.Sprintf("%s:%s", c.Kind, c.URI)
	}
}
