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

package mcp

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/teradata-labs/adnify/pkg/tools"
)

// remoteTool wraps one MCP server tool as a registry tool. Remote tools
// are gated like dangerous built-ins: the runtime cannot see what they do.
type remoteTool struct {
	client *Client
	info   remoteToolInfo
	schema *tools.JSONSchema
}

func (t *remoteTool) Name() string {
	return t.client.config.Name + ":" + t.info.Name
}

func (t *remoteTool) Description() string {
	return t.info.Description
}

func (t *remoteTool) InputSchema() *tools.JSONSchema {
	return t.schema
}

func (t *remoteTool) ApprovalKind() tools.ApprovalKind {
	return tools.ApprovalDangerous
}

func (t *remoteTool) Execute(ctx context.Context, params map[string]interface{}) (*tools.Result, error) {
	text, isError, err := t.client.CallTool(ctx, t.info.Name, params)
	if err != nil {
		return nil, err
	}
	if isError {
		return &tools.Result{Success: false, Text: text, Error: text}, nil
	}
	return &tools.Result{Success: true, Text: text}, nil
}

var _ tools.Tool = (*remoteTool)(nil)

// decodeSchema converts a server-sent JSON schema into the registry's
// schema shape. Unparseable schemas degrade to an open object.
func decodeSchema(raw map[string]interface{}) *tools.JSONSchema {
	if raw == nil {
		return tools.NewObjectSchema("", nil, nil)
	}
	data, err := json.Marshal(raw)
	if err != nil {
		return tools.NewObjectSchema("", nil, nil)
	}
	var schema tools.JSONSchema
	if err := json.Unmarshal(data, &schema); err != nil {
		return tools.NewObjectSchema("", nil, nil)
	}
	if schema.Type == "" {
		schema.Type = "object"
	}
	return &schema
}

// RegisterTools initializes the server, lists its tools, and registers
// them under the group "mcp:<server name>". The caller adds that group to
// a template's extra groups to expose the tools in agent mode.
func RegisterTools(ctx context.Context, registry *tools.Registry, client *Client) (int, error) {
	if err := client.Initialize(ctx); err != nil {
		return 0, fmt.Errorf("initialize %s: %w", client.config.Name, err)
	}
	infos, err := client.ListTools(ctx)
	if err != nil {
		return 0, fmt.Errorf("list tools on %s: %w", client.config.Name, err)
	}

	group := GroupName(client.config.Name)
	registered := 0
	for _, info := range infos {
		tool := &remoteTool{
			client: client,
			info:   info,
			schema: decodeSchema(info.InputSchema),
		}
		if err := registry.Register(group, tool); err != nil {
			return registered, err
		}
		registered++
	}
	return registered, nil
}

// GroupName is the registry group for one server's tools.
func GroupName(serverName string) string {
	return "mcp:" + serverName
}
