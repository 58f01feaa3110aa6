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

	"github.com/teradata-labs/adnify/pkg/tools"
)

// AskUserTool poses a question to the human. The executor resolves
// interaction-kind tools through the host bridge; Execute is only reached
// when no bridge is wired.
type AskUserTool struct{}

// NewAskUserTool creates the ask_user tool.
func NewAskUserTool() *AskUserTool {
	return &AskUserTool{}
}

func (t *AskUserTool) Name() string { return "ask_user" }

func (t *AskUserTool) Description() string {
	return "Ask the user a clarifying question and wait for their answer."
}

func (t *AskUserTool) InputSchema() *tools.JSONSchema {
	return tools.NewObjectSchema("ask_user arguments", map[string]*tools.JSONSchema{
		"question": tools.NewStringSchema("The question to pose"),
	}, []string{"question"})
}

func (t *AskUserTool) ApprovalKind() tools.ApprovalKind { return tools.ApprovalInteraction }

func (t *AskUserTool) Execute(ctx context.Context, args map[string]interface{}) (*tools.Result, error) {
	return nil, fmt.Errorf("ask_user requires an interaction bridge")
}
