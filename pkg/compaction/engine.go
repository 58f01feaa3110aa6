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

// Package compaction keeps LLM request sizes under the model's budget by
// tiered summarization: from eliding old tool results up to an emergency
// cut that keeps only the summary and the last exchange. The engine picks
// the smallest level that fits and preserves task intent in a structured
// summary.
package compaction

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/teradata-labs/adnify/pkg/types"
)

// Compaction levels.
const (
	LevelNone      = 0
	LevelLight     = 1
	LevelMedium    = 2
	LevelHeavy     = 3
	LevelEmergency = 4
)

// recentTurnWindow is how many trailing user turns stay untouched at
// levels 1 and 2.
const recentTurnWindow = 3

// elidedToolResult replaces dropped tool-result text.
const elidedToolResult = "[tool result elided]"

// Request is one compaction invocation.
type Request struct {
	SystemPrompt string
	Messages     []types.Message

	// Summary is the thread's existing compacted summary, if any
	Summary *types.CompactedSummary

	// Budget is the token ceiling for the assembled request
	Budget int
}

// Stats reports what a compaction pass achieved.
type Stats struct {
	OriginalTokens int
	FinalTokens    int
	SavedPercent   float64
	KeptTurns      int
	CompactedTurns int
}

// Result carries the compacted message list and bookkeeping.
type Result struct {
	Messages []types.Message
	Level    int

	// Summary is the new thread summary when level >= 2, else the carried
	// one
	Summary *types.CompactedSummary

	Stats Stats
}

// Engine applies tiered compaction.
type Engine struct {
	counter    *TokenCounter
	summarizer Summarizer
}

// NewEngine creates a compaction engine. A nil summarizer restricts
// level-2+ summaries to the mechanical fallback.
func NewEngine(counter *TokenCounter, summarizer Summarizer) *Engine {
	if counter == nil {
		counter = GetTokenCounter()
	}
	return &Engine{counter: counter, summarizer: summarizer}
}

// Compact returns the smallest-level rendition of the request that fits
// the budget. Level 4 is returned even when it still exceeds the budget.
func (e *Engine) Compact(ctx context.Context, req Request) (*Result, error) {
	if len(req.Messages) == 0 {
		return &Result{Messages: req.Messages, Summary: req.Summary}, nil
	}

	original := e.counter.EstimateRequestTokens(req.SystemPrompt, req.Messages)
	totalTurns := countTurns(req.Messages)

	if req.Budget <= 0 || original <= req.Budget {
		return &Result{
			Messages: req.Messages,
			Level:    LevelNone,
			Summary:  req.Summary,
			Stats: Stats{
				OriginalTokens: original,
				FinalTokens:    original,
				KeptTurns:      totalTurns,
			},
		}, nil
	}

	// Levels 2+ need the summary of everything older than the recent
	// window; generate it once.
	var summaryData *SummaryData
	var newSummary *types.CompactedSummary

	for level := LevelLight; level <= LevelEmergency; level++ {
		if level >= LevelMedium && summaryData == nil {
			older, _ := splitByTurnWindow(req.Messages, recentTurnWindow)
			summaryData = summarizeWithFallback(ctx, e.summarizer, older)
		}

		candidate := e.applyLevel(level, req, summaryData)
		estimate := e.counter.EstimateRequestTokens(req.SystemPrompt, candidate)
		if estimate > req.Budget && level < LevelEmergency {
			continue
		}

		keptTurns := countTurns(candidate)
		if level >= LevelMedium {
			newSummary = &types.CompactedSummary{
				Level:          level,
				Objective:      summaryData.Objective,
				CompletedSteps: summaryData.CompletedSteps,
				OpenQuestions:  summaryData.OpenQuestions,
				DecisionsMade:  summaryData.DecisionsMade,
				KeyFiles:       summaryData.KeyFiles,
				OriginalTokens: original,
				FinalTokens:    estimate,
				KeptTurns:      keptTurns,
				CompactedTurns: totalTurns - keptTurns,
				CreatedAt:      time.Now(),
			}
		} else {
			newSummary = req.Summary
		}

		saved := 0.0
		if original > 0 {
			saved = float64(original-estimate) / float64(original) * 100
		}
		zap.L().Info("context compacted",
			zap.Int("level", level),
			zap.Int("original_tokens", original),
			zap.Int("final_tokens", estimate),
			zap.Float64("saved_percent", saved),
		)
		return &Result{
			Messages: candidate,
			Level:    level,
			Summary:  newSummary,
			Stats: Stats{
				OriginalTokens: original,
				FinalTokens:    estimate,
				SavedPercent:   saved,
				KeptTurns:      keptTurns,
				CompactedTurns: totalTurns - keptTurns,
			},
		}, nil
	}

	// Unreachable: the loop always returns at LevelEmergency.
	return nil, fmt.Errorf("compaction produced no candidate")
}

// applyLevel builds the message list for one level.
func (e *Engine) applyLevel(level int, req Request, summary *SummaryData) []types.Message {
	switch level {
	case LevelLight:
		return elideOldToolResults(req.Messages, recentTurnWindow)

	case LevelMedium:
		older, recent := splitByTurnWindow(req.Messages, recentTurnWindow)
		out := make([]types.Message, 0, len(recent)+1)
		if len(older) > 0 {
			out = append(out, summaryMessage(summary))
		}
		return append(out, elideOldToolResults(recent, recentTurnWindow)...)

	case LevelHeavy:
		older, recent := splitByTurnWindow(req.Messages, recentTurnWindow)
		out := make([]types.Message, 0, len(recent)+1)
		if len(older) > 0 {
			out = append(out, summaryMessage(summary))
		}
		return append(out, elideOldToolResults(recent, 1)...)

	case LevelEmergency:
		out := []types.Message{summaryMessage(summary)}
		if lastUser := lastMessageOfRole(req.Messages, types.RoleUser); lastUser != nil {
			out = append(out, *lastUser)
		}
		if lastAssistant := lastMessageOfRole(req.Messages, types.RoleAssistant); lastAssistant != nil {
			out = append(out, *lastAssistant)
		}
		return out
	}
	return req.Messages
}

// countTurns counts user turns.
func countTurns(messages []types.Message) int {
	turns := 0
	for _, msg := range messages {
		if msg.Role == types.RoleUser {
			turns++
		}
	}
	return turns
}

// splitByTurnWindow separates messages older than the last n user turns
// from the recent window.
func splitByTurnWindow(messages []types.Message, n int) (older, recent []types.Message) {
	total := countTurns(messages)
	if total <= n {
		return nil, messages
	}
	boundaryTurn := total - n
	turn := 0
	for i, msg := range messages {
		if msg.Role == types.RoleUser {
			turn++
			if turn > boundaryTurn {
				return messages[:i], messages[i:]
			}
		}
	}
	return messages, nil
}

// elideOldToolResults drops tool-result text outside the last n turns
// while keeping the tool messages (and the calls' names and arguments on
// their assistant messages) in place.
func elideOldToolResults(messages []types.Message, n int) []types.Message {
	older, recent := splitByTurnWindow(messages, n)
	out := make([]types.Message, 0, len(messages))
	for _, msg := range older {
		if msg.Role == types.RoleTool && msg.Content != "" {
			elided := msg
			elided.Content = elidedToolResult
			elided.Parts = nil
			out = append(out, elided)
			continue
		}
		out = append(out, msg)
	}
	return append(out, recent...)
}

// summaryMessage renders summary data as the system message that stands
// in for compacted history.
func summaryMessage(summary *SummaryData) types.Message {
	var b strings.Builder
	b.WriteString("Earlier conversation, compacted.\n")
	fmt.Fprintf(&b, "Objective: %s\n", summary.Objective)
	writeBullets(&b, "Completed", summary.CompletedSteps)
	writeBullets(&b, "Decisions", summary.DecisionsMade)
	writeBullets(&b, "Open questions", summary.OpenQuestions)
	writeBullets(&b, "Key files", summary.KeyFiles)
	return types.Message{
		Role:    types.RoleSystem,
		Content: b.String(),
	}
}

func writeBullets(b *strings.Builder, title string, items []string) {
	if len(items) == 0 {
		return
	}
	fmt.Fprintf(b, "%s:\n", title)
	for _, item := range items {
		fmt.Fprintf(b, "- %s\n", item)
	}
}

func lastMessageOfRole(messages []types.Message, role types.Role) *types.Message {
	for i := len(messages) - 1; i >= 0; i-- {
		if messages[i].Role == role {
			msg := messages[i]
			return &msg
		}
	}
	return nil
}
