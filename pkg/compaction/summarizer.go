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

package compaction

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/teradata-labs/adnify/pkg/llm"
	"github.com/teradata-labs/adnify/pkg/partialjson"
	"github.com/teradata-labs/adnify/pkg/types"
)

// summarySystemPrompt is the fixed instruction for summary generation.
const summarySystemPrompt = `You summarize coding-agent conversations. Respond with a single JSON object:
{"objective": string, "completedSteps": [string], "openQuestions": [string], "decisionsMade": [string], "keyFiles": [string]}
Keep each list under 8 entries. Respond with JSON only.`

// mechanicalExcerptLen bounds per-turn excerpts in the fallback summary.
const mechanicalExcerptLen = 200

// SummaryData is the structured output of a summarization pass.
type SummaryData struct {
	Objective      string   `json:"objective"`
	CompletedSteps []string `json:"completedSteps"`
	OpenQuestions  []string `json:"openQuestions"`
	DecisionsMade  []string `json:"decisionsMade"`
	KeyFiles       []string `json:"keyFiles"`
}

// Summarizer condenses a message span into structured summary data.
type Summarizer interface {
	Summarize(ctx context.Context, messages []types.Message) (*SummaryData, error)
}

// LLMSummarizer asks the same model that drives the conversation for the
// summary. Failures fall back to the mechanical summary at the engine
// level.
type LLMSummarizer struct {
	adapter *llm.Adapter
	cfg     llm.Config
}

// NewLLMSummarizer creates an LLM-backed summarizer.
func NewLLMSummarizer(adapter *llm.Adapter, cfg llm.Config) *LLMSummarizer {
	return &LLMSummarizer{adapter: adapter, cfg: cfg}
}

func (s *LLMSummarizer) Summarize(ctx context.Context, messages []types.Message) (*SummaryData, error) {
	transcript := renderTranscript(messages)
	request := []types.Message{{
		Role:    types.RoleUser,
		Content: "Summarize this conversation:\n\n" + transcript,
	}}

	var b strings.Builder
	for delta := range s.adapter.Stream(ctx, s.cfg, request, summarySystemPrompt, nil) {
		switch delta.Kind {
		case llm.DeltaText:
			b.WriteString(delta.Text)
		case llm.DeltaError:
			return nil, delta.Err
		}
	}

	data, err := parseSummaryJSON(b.String())
	if err != nil {
		return nil, err
	}
	return data, nil
}

// parseSummaryJSON decodes the model's JSON, tolerating fences and
// truncation.
func parseSummaryJSON(raw string) (*SummaryData, error) {
	raw = strings.TrimSpace(raw)
	raw = strings.TrimPrefix(raw, "```json")
	raw = strings.TrimPrefix(raw, "```")
	raw = strings.TrimSuffix(raw, "```")

	var data SummaryData
	if err := json.Unmarshal([]byte(raw), &data); err == nil {
		return &data, nil
	}

	recovered := partialjson.ParseObject(raw)
	if recovered == nil {
		return nil, fmt.Errorf("summary response is not JSON")
	}
	repacked, err := json.Marshal(recovered)
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal(repacked, &data); err != nil {
		return nil, err
	}
	return &data, nil
}

func renderTranscript(messages []types.Message) string {
	var parts []string
	for _, msg := range messages {
		content := msg.Content
		if len(msg.ToolCalls) > 0 {
			names := make([]string, len(msg.ToolCalls))
			for i, call := range msg.ToolCalls {
				names[i] = call.Name
			}
			content += " [tools: " + strings.Join(names, ", ") + "]"
		}
		parts = append(parts, fmt.Sprintf("[%s]: %s", msg.Role, content))
	}
	return strings.Join(parts, "\n")
}

// MechanicalSummary extracts a summary without an LLM: the first user
// request becomes the objective, each turn contributes a short excerpt.
func MechanicalSummary(messages []types.Message) *SummaryData {
	data := &SummaryData{}
	for _, msg := range messages {
		excerpt := firstChars(msg.Content, mechanicalExcerptLen)
		if excerpt == "" {
			continue
		}
		switch msg.Role {
		case types.RoleUser:
			if data.Objective == "" {
				data.Objective = excerpt
			} else {
				data.OpenQuestions = append(data.OpenQuestions, excerpt)
			}
		case types.RoleAssistant:
			data.CompletedSteps = append(data.CompletedSteps, excerpt)
		}
	}
	if data.Objective == "" {
		data.Objective = "continue the conversation"
	}
	data.CompletedSteps = lastN(data.CompletedSteps, 8)
	data.OpenQuestions = lastN(data.OpenQuestions, 8)
	return data
}

func lastN(items []string, n int) []string {
	if len(items) <= n {
		return items
	}
	return items[len(items)-n:]
}

func firstChars(s string, n int) string {
	s = strings.TrimSpace(s)
	if len(s) <= n {
		return s
	}
	return s[:n]
}

// summarizeWithFallback runs the configured summarizer, dropping to the
// mechanical path on any failure.
func summarizeWithFallback(ctx context.Context, summarizer Summarizer, messages []types.Message) *SummaryData {
	if summarizer != nil {
		data, err := summarizer.Summarize(ctx, messages)
		if err == nil && data != nil && data.Objective != "" {
			return data
		}
		if err != nil {
			zap.L().Warn("llm summary generation failed, using mechanical summary", zap.Error(err))
		}
	}
	return MechanicalSummary(messages)
}
