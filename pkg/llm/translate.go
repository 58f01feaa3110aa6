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

package llm

import (
	"encoding/json"
	"strings"

	"github.com/teradata-labs/adnify/pkg/types"
)

// translateMessages converts thread messages into the provider wire shape
// selected by the protocol tag. The returned system string is only used by
// protocols that carry the system prompt outside the message array.
func translateMessages(protocol Protocol, messages []types.Message, systemPrompt string) (wire []interface{}, system string) {
	switch protocol {
	case ProtocolAnthropic:
		return translateAnthropic(messages, systemPrompt)
	case ProtocolGoogle:
		return translateGoogle(messages, systemPrompt)
	case ProtocolOpenAI:
		return translateOpenAI(messages, systemPrompt), ""
	default:
		return translateGeneric(messages, systemPrompt), ""
	}
}

// translateOpenAI serializes messages with OpenAI-style tool_calls and a
// dedicated tool role.
func translateOpenAI(messages []types.Message, systemPrompt string) []interface{} {
	var out []interface{}
	if systemPrompt != "" {
		out = append(out, map[string]interface{}{"role": "system", "content": systemPrompt})
	}

	for _, msg := range messages {
		switch msg.Role {
		case types.RoleSystem:
			out = append(out, map[string]interface{}{"role": "system", "content": msg.Content})

		case types.RoleUser:
			if len(msg.Images) > 0 {
				parts := []interface{}{
					map[string]interface{}{"type": "text", "text": msg.Content},
				}
				for _, img := range msg.Images {
					url := img.URL
					if img.SourceType == "base64" {
						url = "data:" + img.MediaType + ";base64," + img.Data
					}
					parts = append(parts, map[string]interface{}{
						"type":      "image_url",
						"image_url": map[string]interface{}{"url": url},
					})
				}
				out = append(out, map[string]interface{}{"role": "user", "content": parts})
			} else {
				out = append(out, map[string]interface{}{"role": "user", "content": msg.Content})
			}

		case types.RoleAssistant:
			m := map[string]interface{}{"role": "assistant"}
			if msg.Content != "" {
				m["content"] = msg.Content
			}
			if len(msg.ToolCalls) > 0 {
				var calls []interface{}
				for _, tc := range msg.ToolCalls {
					args, _ := json.Marshal(tc.Arguments)
					calls = append(calls, map[string]interface{}{
						"id":   tc.ID,
						"type": "function",
						"function": map[string]interface{}{
							"name":      tc.Name,
							"arguments": string(args),
						},
					})
				}
				m["tool_calls"] = calls
			}
			if m["content"] != nil || m["tool_calls"] != nil {
				out = append(out, m)
			}

		case types.RoleTool:
			out = append(out, map[string]interface{}{
				"role":         "tool",
				"tool_call_id": msg.ToolCallID,
				"content":      msg.Content,
			})
		}
	}
	return out
}

// translateAnthropic serializes messages as Anthropic content blocks.
// System messages are extracted and combined: the Messages API requires
// them in a separate system field, not in the messages array.
func translateAnthropic(messages []types.Message, systemPrompt string) ([]interface{}, string) {
	var systemPrompts []string
	if systemPrompt != "" {
		systemPrompts = append(systemPrompts, systemPrompt)
	}
	var out []interface{}

	for _, msg := range messages {
		switch msg.Role {
		case types.RoleSystem:
			if msg.Content != "" {
				systemPrompts = append(systemPrompts, msg.Content)
			}

		case types.RoleUser:
			var content []interface{}
			if msg.Content != "" || len(msg.Images) == 0 {
				content = append(content, map[string]interface{}{"type": "text", "text": msg.Content})
			}
			for _, img := range msg.Images {
				source := map[string]interface{}{
					"type":       img.SourceType,
					"media_type": img.MediaType,
				}
				if img.SourceType == "base64" {
					source["data"] = img.Data
				} else {
					source["url"] = img.URL
				}
				content = append(content, map[string]interface{}{"type": "image", "source": source})
			}
			out = append(out, map[string]interface{}{"role": "user", "content": content})

		case types.RoleAssistant:
			var content []interface{}
			if msg.Content != "" {
				content = append(content, map[string]interface{}{"type": "text", "text": msg.Content})
			}
			for _, tc := range msg.ToolCalls {
				input := tc.Arguments
				if input == nil {
					input = map[string]interface{}{}
				}
				content = append(content, map[string]interface{}{
					"type":  "tool_use",
					"id":    tc.ID,
					"name":  tc.Name,
					"input": input,
				})
			}
			if len(content) > 0 {
				out = append(out, map[string]interface{}{"role": "assistant", "content": content})
			}

		case types.RoleTool:
			out = append(out, map[string]interface{}{
				"role": "user",
				"content": []interface{}{
					map[string]interface{}{
						"type":        "tool_result",
						"tool_use_id": msg.ToolCallID,
						"content":     msg.Content,
					},
				},
			})
		}
	}

	return out, strings.Join(systemPrompts, "\n\n")
}

// translateGoogle serializes messages as Gemini contents with
// function-call parts. The system prompt rides along separately via the
// request synthesizer.
func translateGoogle(messages []types.Message, systemPrompt string) ([]interface{}, string) {
	var out []interface{}

	for _, msg := range messages {
		switch msg.Role {
		case types.RoleSystem:
			if msg.Content != "" {
				systemPrompt = strings.TrimSpace(systemPrompt + "\n\n" + msg.Content)
			}

		case types.RoleUser:
			parts := []interface{}{map[string]interface{}{"text": msg.Content}}
			for _, img := range msg.Images {
				if img.SourceType == "base64" {
					parts = append(parts, map[string]interface{}{
						"inlineData": map[string]interface{}{
							"mimeType": img.MediaType,
							"data":     img.Data,
						},
					})
				}
			}
			out = append(out, map[string]interface{}{"role": "user", "parts": parts})

		case types.RoleAssistant:
			var parts []interface{}
			if msg.Content != "" {
				parts = append(parts, map[string]interface{}{"text": msg.Content})
			}
			for _, tc := range msg.ToolCalls {
				args := tc.Arguments
				if args == nil {
					args = map[string]interface{}{}
				}
				parts = append(parts, map[string]interface{}{
					"functionCall": map[string]interface{}{
						"name": tc.Name,
						"args": args,
					},
				})
			}
			if len(parts) > 0 {
				out = append(out, map[string]interface{}{"role": "model", "parts": parts})
			}

		case types.RoleTool:
			out = append(out, map[string]interface{}{
				"role": "user",
				"parts": []interface{}{
					map[string]interface{}{
						"functionResponse": map[string]interface{}{
							"name":     msg.ToolCallID,
							"response": map[string]interface{}{"content": msg.Content},
						},
					},
				},
			})
		}
	}
	return out, systemPrompt
}

// translateGeneric serializes messages as plain role/content pairs for
// fully declarative custom specs.
func translateGeneric(messages []types.Message, systemPrompt string) []interface{} {
	var out []interface{}
	if systemPrompt != "" {
		out = append(out, map[string]interface{}{"role": "system", "content": systemPrompt})
	}
	for _, msg := range messages {
		content := msg.Content
		if msg.Role == types.RoleAssistant && len(msg.ToolCalls) > 0 && content == "" {
			raw, _ := json.Marshal(msg.ToolCalls)
			content = string(raw)
		}
		out = append(out, map[string]interface{}{
			"role":    string(msg.Role),
			"content": content,
		})
	}
	return out
}

// translateTools serializes tool definitions per protocol.
func translateTools(protocol Protocol, tools []ToolDefinition) interface{} {
	if len(tools) == 0 {
		return nil
	}
	switch protocol {
	case ProtocolAnthropic:
		var out []interface{}
		for _, t := range tools {
			out = append(out, map[string]interface{}{
				"name":         t.Name,
				"description":  t.Description,
				"input_schema": t.Parameters,
			})
		}
		return out

	case ProtocolGoogle:
		var decls []interface{}
		for _, t := range tools {
			decls = append(decls, map[string]interface{}{
				"name":        t.Name,
				"description": t.Description,
				"parameters":  t.Parameters,
			})
		}
		return []interface{}{
			map[string]interface{}{"functionDeclarations": decls},
		}

	default:
		var out []interface{}
		for _, t := range tools {
			out = append(out, map[string]interface{}{
				"type": "function",
				"function": map[string]interface{}{
					"name":        t.Name,
					"description": t.Description,
					"parameters":  t.Parameters,
				},
			})
		}
		return out
	}
}
