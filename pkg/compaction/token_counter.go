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
	"encoding/json"
	"sync"

	"github.com/pkoukk/tiktoken-go"

	"github.com/teradata-labs/adnify/pkg/types"
)

// messageOverheadTokens approximates per-message formatting cost.
const messageOverheadTokens = 10

// TokenCounter estimates token usage for context management. Uses
// tiktoken with cl100k_base encoding when available; falls back to the
// 4-chars-per-token heuristic otherwise.
type TokenCounter struct {
	encoder *tiktoken.Tiktoken
	mu      sync.Mutex
}

var (
	globalTokenCounter *TokenCounter
	counterInitOnce    sync.Once
)

// GetTokenCounter returns a shared token counter instance.
func GetTokenCounter() *TokenCounter {
	counterInitOnce.Do(func() {
		tkm, err := tiktoken.GetEncoding("cl100k_base")
		if err != nil {
			globalTokenCounter = &TokenCounter{encoder: nil}
			return
		}
		globalTokenCounter = &TokenCounter{encoder: tkm}
	})
	return globalTokenCounter
}

// CountTokens returns the token count for a given text.
func (tc *TokenCounter) CountTokens(text string) int {
	if tc.encoder == nil {
		return len(text) / 4
	}
	tc.mu.Lock()
	defer tc.mu.Unlock()
	return len(tc.encoder.Encode(text, nil, nil))
}

// EstimateMessageTokens estimates one message including its tool calls.
func (tc *TokenCounter) EstimateMessageTokens(msg types.Message) int {
	total := messageOverheadTokens
	total += tc.CountTokens(msg.Content)
	total += tc.CountTokens(msg.Reasoning)
	for _, call := range msg.ToolCalls {
		total += tc.CountTokens(call.Name)
		if len(call.Arguments) > 0 {
			if raw, err := json.Marshal(call.Arguments); err == nil {
				total += tc.CountTokens(string(raw))
			}
		}
	}
	return total
}

// EstimateMessagesTokens estimates a whole message list.
func (tc *TokenCounter) EstimateMessagesTokens(messages []types.Message) int {
	total := 0
	for _, msg := range messages {
		total += tc.EstimateMessageTokens(msg)
	}
	return total
}

// EstimateRequestTokens estimates a full request: system prompt plus
// messages.
func (tc *TokenCounter) EstimateRequestTokens(systemPrompt string, messages []types.Message) int {
	return tc.CountTokens(systemPrompt) + tc.EstimateMessagesTokens(messages)
}
