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

// Package tools defines the tool interface, the mode-scoped registry, and
// the executor that validates, gates, runs, and records tool calls.
package tools

import (
	"context"
	"fmt"

	"github.com/teradata-labs/adnify/pkg/types"
)

// ApprovalKind decides how a tool passes the approval gate.
type ApprovalKind string

const (
	// ApprovalNone runs without asking.
	ApprovalNone ApprovalKind = "none"

	// ApprovalTerminal asks when the command's binary or git subcommand is
	// not on the allow-list.
	ApprovalTerminal ApprovalKind = "terminal"

	// ApprovalDangerous always asks.
	ApprovalDangerous ApprovalKind = "dangerous"

	// ApprovalInteraction poses the tool's question to the human and uses
	// the answer as the result.
	ApprovalInteraction ApprovalKind = "interaction"
)

// Tool is one executable capability exposed to the LLM.
type Tool interface {
	// Name returns the tool's unique identifier
	Name() string

	// Description returns a human-readable description for LLM context
	Description() string

	// InputSchema returns the JSON Schema for tool parameters
	InputSchema() *JSONSchema

	// ApprovalKind returns the tool's approval policy
	ApprovalKind() ApprovalKind

	// Execute runs the tool with validated parameters
	Execute(ctx context.Context, params map[string]interface{}) (*Result, error)
}

// FileWriter is implemented by tools that modify files. The executor
// snapshots every target path before such a tool runs.
type FileWriter interface {
	// TargetPaths returns the workspace-relative paths the call will touch
	TargetPaths(params map[string]interface{}) []string
}

// Result is the outcome of one tool execution.
type Result struct {
	// Success indicates whether the tool accomplished its task
	Success bool

	// Text is the textual result fed back to the LLM
	Text string

	// Error carries failure detail when Success is false
	Error string

	// Meta contains tool-specific metadata
	Meta map[string]interface{}

	// RichContent carries structured result parts for display
	RichContent []types.ContentPart
}

// Errorf builds a failed result.
func Errorf(format string, args ...interface{}) *Result {
	msg := fmt.Sprintf(format, args...)
	return &Result{Success: false, Error: msg, Text: msg}
}

// Textf builds a successful result.
func Textf(format string, args ...interface{}) *Result {
	return &Result{Success: true, Text: fmt.Sprintf(format, args...)}
}
