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
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// ResponseSpec lists the JSON field paths used to project vendor SSE
// events into normalized deltas. Paths are dotted, with numeric segments
// indexing arrays.
type ResponseSpec struct {
	// ContentPath locates text content in a delta event
	ContentPath string `yaml:"contentPath"`

	// ReasoningPath locates thinking text in a delta event
	ReasoningPath string `yaml:"reasoningPath"`

	// ToolCallsPath locates the tool-call fragment array. Empty means the
	// event root itself is a single fragment.
	ToolCallsPath string `yaml:"toolCallsPath"`

	// ToolNamePath, ToolArgsPath, and ToolIDPath are relative to each
	// fragment.
	ToolNamePath string `yaml:"toolNamePath"`
	ToolArgsPath string `yaml:"toolArgsPath"`
	ToolIDPath   string `yaml:"toolIdPath"`

	// FinishReasonPath locates the finish reason
	FinishReasonPath string `yaml:"finishReasonPath"`

	// DoneMarker ends the stream when it matches a raw data payload or an
	// event type ("[DONE]", "message_stop")
	DoneMarker string `yaml:"doneMarker"`

	// ToolCallStopEvent is the event type that closes the current
	// tool-call block ("content_block_stop")
	ToolCallStopEvent string `yaml:"toolCallStopEvent"`

	// ArgsIsObject marks vendors that stream arguments as already-parsed
	// objects rather than string fragments
	ArgsIsObject bool `yaml:"argsIsObject"`
}

// AdapterSpec fully describes how to speak to one vendor. New providers
// need only a new spec entry, never new code.
type AdapterSpec struct {
	// Name identifies the spec in the table
	Name string `yaml:"name"`

	// Protocol selects message/tool translation for the request side
	Protocol Protocol `yaml:"protocol"`

	// Endpoint is the request path appended to the config's base URL
	Endpoint string `yaml:"endpoint"`

	// Method is the HTTP method, POST when empty
	Method string `yaml:"method"`

	// Headers are static headers; any value containing {{apiKey}} has the
	// configured key substituted
	Headers map[string]string `yaml:"headers"`

	// BodyTemplate is the request body skeleton. The string tokens
	// {{model}}, {{messages}}, and {{system}} are substituted before
	// sampling parameters are applied.
	BodyTemplate map[string]interface{} `yaml:"bodyTemplate"`

	// Response is the field-path projection spec
	Response ResponseSpec `yaml:"response"`
}

// BuiltinSpecs is the default provider table, keyed by spec name.
func BuiltinSpecs() map[string]AdapterSpec {
	return map[string]AdapterSpec{
		"openai": {
			Name:     "openai",
			Protocol: ProtocolOpenAI,
			Endpoint: "/v1/chat/completions",
			Method:   "POST",
			Headers: map[string]string{
				"Authorization": "Bearer {{apiKey}}",
				"Content-Type":  "application/json",
			},
			BodyTemplate: map[string]interface{}{
				"model":    "{{model}}",
				"messages": "{{messages}}",
			},
			Response: ResponseSpec{
				ContentPath:      "choices.0.delta.content",
				ReasoningPath:    "choices.0.delta.reasoning_content",
				ToolCallsPath:    "choices.0.delta.tool_calls",
				ToolNamePath:     "function.name",
				ToolArgsPath:     "function.arguments",
				ToolIDPath:       "id",
				FinishReasonPath: "choices.0.finish_reason",
				DoneMarker:       "[DONE]",
			},
		},
		"anthropic": {
			Name:     "anthropic",
			Protocol: ProtocolAnthropic,
			Endpoint: "/v1/messages",
			Method:   "POST",
			Headers: map[string]string{
				"x-api-key":         "{{apiKey}}",
				"anthropic-version": "2023-06-01",
				"Content-Type":      "application/json",
			},
			BodyTemplate: map[string]interface{}{
				"model":    "{{model}}",
				"system":   "{{system}}",
				"messages": "{{messages}}",
			},
			Response: ResponseSpec{
				ContentPath:       "delta.text",
				ReasoningPath:     "delta.thinking",
				ToolNamePath:      "content_block.name",
				ToolArgsPath:      "delta.partial_json",
				ToolIDPath:        "content_block.id",
				FinishReasonPath:  "delta.stop_reason",
				DoneMarker:        "message_stop",
				ToolCallStopEvent: "content_block_stop",
				ArgsIsObject:      true,
			},
		},
		"google": {
			Name:     "google",
			Protocol: ProtocolGoogle,
			Endpoint: "/v1beta/models/{{model}}:streamGenerateContent?alt=sse",
			Method:   "POST",
			Headers: map[string]string{
				"x-goog-api-key": "{{apiKey}}",
				"Content-Type":   "application/json",
			},
			BodyTemplate: map[string]interface{}{
				"contents": "{{messages}}",
			},
			Response: ResponseSpec{
				ContentPath:      "candidates.0.content.parts.0.text",
				ToolCallsPath:    "candidates.0.content.parts",
				ToolNamePath:     "functionCall.name",
				ToolArgsPath:     "functionCall.args",
				FinishReasonPath: "candidates.0.finishReason",
				ArgsIsObject:     true,
			},
		},
	}
}

// SpecForProtocol returns the builtin spec matching a protocol tag, with
// custom tags falling back to the openai wire shape.
func SpecForProtocol(p Protocol) AdapterSpec {
	specs := BuiltinSpecs()
	switch p {
	case ProtocolAnthropic:
		return specs["anthropic"]
	case ProtocolGoogle:
		return specs["google"]
	default:
		return specs["openai"]
	}
}

// LoadSpecs reads every .yaml/.yml file in dir as an AdapterSpec and
// merges them over the builtin table. Specs are pure data; this is the
// only way to add a provider.
func LoadSpecs(dir string) (map[string]AdapterSpec, error) {
	specs := BuiltinSpecs()

	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("read spec dir %s: %w", dir, err)
	}
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		ext := strings.ToLower(filepath.Ext(e.Name()))
		if ext != ".yaml" && ext != ".yml" {
			continue
		}
		data, err := os.ReadFile(filepath.Join(dir, e.Name()))
		if err != nil {
			return nil, fmt.Errorf("read spec %s: %w", e.Name(), err)
		}
		var spec AdapterSpec
		if err := yaml.Unmarshal(data, &spec); err != nil {
			return nil, fmt.Errorf("parse spec %s: %w", e.Name(), err)
		}
		if spec.Name == "" {
			return nil, fmt.Errorf("spec %s: missing name", e.Name())
		}
		specs[spec.Name] = spec
	}
	return specs, nil
}
