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

// Package llm speaks to LLM providers through declarative adapter specs.
//
// There is no per-vendor client code: each provider is described by an
// AdapterSpec (endpoint, headers, body template, response field paths) and
// a protocol tag that selects how messages and tools are shaped on the
// wire. The streaming decoder normalizes every vendor's SSE frames into
// one Delta sequence.
package llm

import "time"

// Protocol selects the wire shape for messages and tools.
type Protocol string

const (
	ProtocolOpenAI    Protocol = "openai"
	ProtocolAnthropic Protocol = "anthropic"
	ProtocolGoogle    Protocol = "google"
	ProtocolCustom    Protocol = "custom"
)

// DefaultTimeout is the hard request timeout when the config leaves it unset.
const DefaultTimeout = 120 * time.Second

// Config materializes one provider connection: credentials, model, and
// sampling parameters. The host constructs these; the core only forwards
// the API key, never stores it elsewhere.
type Config struct {
	// Provider is a free-form provider identifier ("openai", "deepseek", ...)
	Provider string

	// Model is the model name sent to the provider
	Model string

	// APIKey is substituted into header templates
	APIKey string

	// BaseURL is the provider origin; the spec's endpoint path is appended
	BaseURL string

	// Timeout bounds the whole streaming request. Zero means DefaultTimeout.
	Timeout time.Duration

	// Sampling parameters. Pointers distinguish "unset" from zero.
	Temperature      *float64
	TopP             *float64
	TopK             *int
	FrequencyPenalty *float64
	PresencePenalty  *float64
	Seed             *int64
	LogitBias        map[string]float64
	MaxTokens        int
	StopSequences    []string

	// Streaming requests SSE delivery. Non-streaming configs still use the
	// same decode path over a single synthetic frame.
	Streaming bool

	// ToolChoice is the provider tool-choice policy ("auto", "none",
	// "required", or a tool name)
	ToolChoice string

	// ParallelToolCalls permits the model to emit several calls per turn
	ParallelToolCalls bool

	// Headers are static header overrides merged over the spec's headers
	Headers map[string]string

	// Protocol selects message/tool translation
	Protocol Protocol

	// ReasoningEnabled requests thinking output from capable models
	ReasoningEnabled bool
}

// EffectiveTimeout returns the configured timeout or the default.
func (c Config) EffectiveTimeout() time.Duration {
	if c.Timeout > 0 {
		return c.Timeout
	}
	return DefaultTimeout
}

// ToolDefinition is the provider-facing description of one tool.
type ToolDefinition struct {
	Name        string
	Description string

	// Parameters is the JSON-schema object for the tool's arguments
	Parameters map[string]interface{}
}
