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
	"fmt"
	"sort"
	"sync"

	"github.com/teradata-labs/adnify/pkg/llm"
)

// Mode is the agent operating mode that scopes tool visibility.
type Mode string

const (
	ModeChat         Mode = "chat"
	ModeAgent        Mode = "agent"
	ModeOrchestrator Mode = "orchestrator"
)

// Phase refines orchestrator-mode visibility.
type Phase string

const (
	PhasePlanning  Phase = "planning"
	PhaseExecuting Phase = "executing"
)

// Well-known group names.
const (
	GroupCore         = "core"
	GroupUIUX         = "uiux"
	GroupOrchestrator = "orchestrator"
)

// LoadContext selects which tool groups the LLM sees.
type LoadContext struct {
	Mode       Mode
	TemplateID string
	Phase      Phase

	// ExtraGroups are the template's additional groups, loaded in agent
	// mode on top of core.
	ExtraGroups []string
}

// Registry is an insertion-time-only mapping from tool name to tool,
// partitioned into named groups. Tools register once at startup; there is
// no replacement or removal.
type Registry struct {
	mu     sync.RWMutex
	tools  map[string]Tool
	groups map[string][]string
}

// NewRegistry creates an empty tool registry.
func NewRegistry() *Registry {
	return &Registry{
		tools:  make(map[string]Tool),
		groups: make(map[string][]string),
	}
}

// Register adds a tool to a group. Registering the same name twice is an
// error: the registry is insertion-time-only.
func (r *Registry) Register(group string, tool Tool) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	name := tool.Name()
	if _, exists := r.tools[name]; exists {
		return fmt.Errorf("tool %s already registered", name)
	}
	r.tools[name] = tool
	r.groups[group] = append(r.groups[group], name)
	return nil
}

// Get retrieves a tool by name.
func (r *Registry) Get(name string) (Tool, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	tool, ok := r.tools[name]
	return tool, ok
}

// List returns all registered tool names, sorted.
func (r *Registry) List() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.tools))
	for name := range r.tools {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Count returns the number of registered tools.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.tools)
}

// ToolsForContext applies the loading policy:
//
//	chat                     -> nothing
//	agent                    -> core + the template's extra groups
//	orchestrator, planning   -> orchestrator only
//	orchestrator, executing  -> core + orchestrator
func (r *Registry) ToolsForContext(lc LoadContext) []Tool {
	var groupNames []string
	switch lc.Mode {
	case ModeChat:
		return nil
	case ModeAgent:
		groupNames = append([]string{GroupCore}, lc.ExtraGroups...)
	case ModeOrchestrator:
		if lc.Phase == PhasePlanning {
			groupNames = []string{GroupOrchestrator}
		} else {
			groupNames = []string{GroupCore, GroupOrchestrator}
		}
	default:
		return nil
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	seen := make(map[string]bool)
	var out []Tool
	for _, group := range groupNames {
		for _, name := range r.groups[group] {
			if seen[name] {
				continue
			}
			seen[name] = true
			out = append(out, r.tools[name])
		}
	}
	return out
}

// Definitions renders the loaded tools as provider-facing definitions.
func (r *Registry) Definitions(lc LoadContext) []llm.ToolDefinition {
	loaded := r.ToolsForContext(lc)
	out := make([]llm.ToolDefinition, 0, len(loaded))
	for _, tool := range loaded {
		def := llm.ToolDefinition{
			Name:        tool.Name(),
			Description: tool.Description(),
		}
		if schema := tool.InputSchema(); schema != nil {
			def.Parameters = schema.ToMap()
		}
		out = append(out, def)
	}
	return out
}
