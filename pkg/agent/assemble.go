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

package agent

import (
	"context"
	"fmt"
	"strings"

	"github.com/teradata-labs/adnify/pkg/compaction"
	"github.com/teradata-labs/adnify/pkg/types"
)

// contextItemExcerptLen bounds expanded file content per pinned item.
const contextItemExcerptLen = 4000

// assembled is one ready-to-send request.
type assembled struct {
	systemPrompt string
	messages     []types.Message
	summary      *types.CompactedSummary
	level        int
}

// assemble builds the request for the next LLM call: the base system
// prompt plus expanded context items, and the thread's messages run
// through compaction against the token budget.
func (r *Runtime) assemble(ctx context.Context, threadID string) (*assembled, error) {
	thread, err := r.store.Thread(threadID)
	if err != nil {
		return nil, err
	}

	systemPrompt := r.config.SystemPrompt
	if pinned := r.expandContextItems(thread.ContextItems); pinned != "" {
		systemPrompt = strings.TrimSpace(systemPrompt + "\n\n" + pinned)
	}

	result, err := r.compactor.Compact(ctx, compaction.Request{
		SystemPrompt: systemPrompt,
		Messages:     thread.Messages,
		Summary:      thread.Summary,
		Budget:       r.config.budget(),
	})
	if err != nil {
		return nil, fmt.Errorf("compaction: %w", err)
	}

	// Compaction owns the thread's summary; persist a new one.
	if result.Summary != nil && result.Summary != thread.Summary {
		if err := r.store.SetSummary(threadID, *result.Summary); err != nil {
			return nil, err
		}
	}

	return &assembled{
		systemPrompt: systemPrompt,
		messages:     result.Messages,
		summary:      result.Summary,
		level:        result.Level,
	}, nil
}

// expandContextItems renders pinned items into prompt material: file and
// selection contents, folder listings, and plain mentions for coarse
// sources.
func (r *Runtime) expandContextItems(items []types.ContextItem) string {
	if len(items) == 0 {
		return ""
	}
	var b strings.Builder
	b.WriteString("Pinned context:\n")
	for _, item := range items {
		switch item.Kind {
		case types.ContextFile:
			content, exists, err := r.fs.Read(stripFileScheme(item.URI))
			if err != nil || !exists {
				fmt.Fprintf(&b, "- file %s (unreadable)\n", item.URI)
				continue
			}
			fmt.Fprintf(&b, "- file %s:\n```\n%s\n```\n", item.URI, excerpt(content, contextItemExcerptLen))

		case types.ContextCodeSelection:
			content, exists, err := r.fs.Read(stripFileScheme(item.URI))
			if err != nil || !exists {
				fmt.Fprintf(&b, "- selection %s:%d-%d (unreadable)\n", item.URI, item.StartLine, item.EndLine)
				continue
			}
			lines := strings.Split(content, "\n")
			start, end := item.StartLine, item.EndLine
			if start < 1 {
				start = 1
			}
			if end > len(lines) || end < start {
				end = len(lines)
			}
			selection := strings.Join(lines[start-1:end], "\n")
			fmt.Fprintf(&b, "- selection %s:%d-%d:\n```\n%s\n```\n",
				item.URI, start, end, excerpt(selection, contextItemExcerptLen))

		case types.ContextFolder:
			entries, err := r.fs.ListDir(stripFileScheme(item.URI))
			if err != nil {
				fmt.Fprintf(&b, "- folder %s (unreadable)\n", item.URI)
				continue
			}
			names := make([]string, 0, len(entries))
			for _, entry := range entries {
				name := entry.Name
				if entry.IsDir {
					name += "/"
				}
				names = append(names, name)
			}
			fmt.Fprintf(&b, "- folder %s: %s\n", item.URI, strings.Join(names, ", "))

		case types.ContextSymbol:
			fmt.Fprintf(&b, "- symbol %s at %s:%d\n", item.SymbolName, item.URI, item.Line)

		case types.ContextWeb:
			fmt.Fprintf(&b, "- url %s\n", item.URI)

		case types.ContextImage:
			fmt.Fprintf(&b, "- image %s\n", item.URI)

		default:
			fmt.Fprintf(&b, "- %s\n", item.Kind)
		}
	}
	return b.String()
}

func stripFileScheme(uri string) string {
	return strings.TrimPrefix(uri, "file://")
}

func excerpt(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "\n... (truncated)"
}
