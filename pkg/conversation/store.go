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

// Package conversation is the sole owner of thread data. All mutations
// serialize on a per-thread lock; readers get consistent deep-copied
// snapshots. Other components produce updates through typed operations,
// never by reaching into thread structures.
package conversation

import (
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/teradata-labs/adnify/pkg/llm"
	"github.com/teradata-labs/adnify/pkg/partialjson"
	"github.com/teradata-labs/adnify/pkg/types"
)

// Store holds every live thread for the process lifetime. Persistence is
// the session package's concern.
type Store struct {
	mu        sync.RWMutex
	threads   map[string]*threadState
	currentID string
	observers *observerRegistry
}

type threadState struct {
	mu     sync.Mutex
	thread types.Thread
}

// NewStore creates an empty conversation store.
func NewStore() *Store {
	return &Store{
		threads:   make(map[string]*threadState),
		observers: newObserverRegistry(),
	}
}

// Subscribe registers a typed observer and returns its unsubscribe handle.
func (s *Store) Subscribe(fn func(Event)) func() {
	return s.observers.subscribe(fn)
}

// Close revokes every observer subscription.
func (s *Store) Close() {
	s.observers.clear()
}

// CreateThread creates and selects a new empty thread.
func (s *Store) CreateThread() types.Thread {
	now := time.Now()
	thread := types.Thread{
		ID:        uuid.New().String(),
		CreatedAt: now,
		UpdatedAt: now,
	}

	s.mu.Lock()
	s.threads[thread.ID] = &threadState{thread: thread}
	s.currentID = thread.ID
	s.mu.Unlock()

	s.observers.publish(Event{Kind: EventThreadCreated, ThreadID: thread.ID})
	return thread
}

// AdoptThread inserts a thread loaded from persistence.
func (s *Store) AdoptThread(thread types.Thread) error {
	if thread.ID == "" {
		return fmt.Errorf("adopt thread: empty id")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.threads[thread.ID]; exists {
		return fmt.Errorf("adopt thread: %s already present", thread.ID)
	}
	s.threads[thread.ID] = &threadState{thread: thread}
	return nil
}

// SwitchThread selects an existing thread as current.
func (s *Store) SwitchThread(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.threads[id]; !ok {
		return fmt.Errorf("switch thread: %s not found", id)
	}
	s.currentID = id
	return nil
}

// CurrentThreadID returns the selected thread id, empty when none.
func (s *Store) CurrentThreadID() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.currentID
}

// DeleteThread removes a thread and everything it owns.
func (s *Store) DeleteThread(id string) error {
	s.mu.Lock()
	if _, ok := s.threads[id]; !ok {
		s.mu.Unlock()
		return fmt.Errorf("delete thread: %s not found", id)
	}
	delete(s.threads, id)
	if s.currentID == id {
		s.currentID = ""
	}
	s.mu.Unlock()

	s.observers.publish(Event{Kind: EventThreadDeleted, ThreadID: id})
	return nil
}

// Thread returns a consistent snapshot of one thread.
func (s *Store) Thread(id string) (types.Thread, error) {
	state, err := s.state(id)
	if err != nil {
		return types.Thread{}, err
	}
	state.mu.Lock()
	defer state.mu.Unlock()
	return cloneThread(state.thread), nil
}

// ListThreadIDs returns the ids of every live thread.
func (s *Store) ListThreadIDs() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ids := make([]string, 0, len(s.threads))
	for id := range s.threads {
		ids = append(ids, id)
	}
	return ids
}

func (s *Store) state(id string) (*threadState, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	state, ok := s.threads[id]
	if !ok {
		return nil, fmt.Errorf("thread %s not found", id)
	}
	return state, nil
}

// mutate runs fn under the thread's lock and publishes the returned
// events after the lock is released.
func (s *Store) mutate(id string, fn func(*types.Thread) ([]Event, error)) error {
	state, err := s.state(id)
	if err != nil {
		return err
	}
	state.mu.Lock()
	events, err := fn(&state.thread)
	if err == nil {
		state.thread.UpdatedAt = time.Now()
	}
	state.mu.Unlock()

	if err != nil {
		return err
	}
	for _, e := range events {
		s.observers.publish(e)
	}
	return nil
}

// AppendUserMessage appends a user turn.
func (s *Store) AppendUserMessage(threadID, text string, images []types.ImageAttachment) (types.Message, error) {
	msg := types.Message{
		ID:        uuid.New().String(),
		Role:      types.RoleUser,
		CreatedAt: time.Now(),
		Content:   text,
		Images:    images,
	}
	err := s.mutate(threadID, func(t *types.Thread) ([]Event, error) {
		t.Messages = append(t.Messages, msg)
		return []Event{{Kind: EventMessageAppended, ThreadID: threadID, MessageID: msg.ID}}, nil
	})
	return msg, err
}

// AppendSystemMessage appends an internal system turn.
func (s *Store) AppendSystemMessage(threadID, text string) (types.Message, error) {
	msg := types.Message{
		ID:        uuid.New().String(),
		Role:      types.RoleSystem,
		CreatedAt: time.Now(),
		Content:   text,
	}
	err := s.mutate(threadID, func(t *types.Thread) ([]Event, error) {
		t.Messages = append(t.Messages, msg)
		return []Event{{Kind: EventMessageAppended, ThreadID: threadID, MessageID: msg.ID}}, nil
	})
	return msg, err
}

// BeginAssistantMessage starts an in-progress assistant message and
// returns its id. The message is created in streaming state.
func (s *Store) BeginAssistantMessage(threadID string) (string, error) {
	msg := types.Message{
		ID:        uuid.New().String(),
		Role:      types.RoleAssistant,
		CreatedAt: time.Now(),
		State:     types.CompletionStreaming,
	}
	err := s.mutate(threadID, func(t *types.Thread) ([]Event, error) {
		t.Messages = append(t.Messages, msg)
		return []Event{{Kind: EventMessageAppended, ThreadID: threadID, MessageID: msg.ID}}, nil
	})
	if err != nil {
		return "", err
	}
	return msg.ID, nil
}

// ApplyDelta ingests one normalized delta into the in-progress assistant
// message. Successive text deltas are coalesced into the content string in
// arrival order; none are dropped. Error deltas are the turn loop's
// concern and are ignored here.
func (s *Store) ApplyDelta(threadID, messageID string, delta llm.Delta) error {
	return s.mutate(threadID, func(t *types.Thread) ([]Event, error) {
		msg := findMessage(t, messageID)
		if msg == nil {
			return nil, fmt.Errorf("assistant message %s not found", messageID)
		}
		if msg.State != types.CompletionStreaming {
			return nil, fmt.Errorf("assistant message %s is not streaming", messageID)
		}

		switch delta.Kind {
		case llm.DeltaText:
			msg.Content += delta.Text

		case llm.DeltaReasoning:
			msg.Reasoning += delta.Text

		case llm.DeltaToolCallStart:
			msg.ToolCalls = append(msg.ToolCalls, types.ToolCall{
				ID:     delta.ToolCallID,
				Name:   delta.ToolName,
				Status: types.ToolCallPending,
				Streaming: &types.StreamingState{
					IsStreaming: true,
					LastUpdate:  time.Now(),
				},
			})

		case llm.DeltaToolCallDelta:
			call := findToolCall(msg, delta.ToolCallID)
			if call == nil {
				return nil, fmt.Errorf("tool call %s not found", delta.ToolCallID)
			}
			call.ArgsFragment += delta.ArgsFragment
			call.Streaming = &types.StreamingState{
				IsStreaming: true,
				PartialArgs: partialjson.ParseObject(call.ArgsFragment),
				LastUpdate:  time.Now(),
			}

		case llm.DeltaToolCallEnd:
			call := findToolCall(msg, delta.ToolCallID)
			if call == nil {
				return nil, fmt.Errorf("tool call %s not found", delta.ToolCallID)
			}
			call.Arguments = finalizeArgs(call.ArgsFragment)
			call.Streaming = nil

		case llm.DeltaFinishReason, llm.DeltaError:
			// Terminal deltas carry no message content.
		}

		return []Event{{Kind: EventMessageUpdated, ThreadID: threadID, MessageID: messageID}}, nil
	})
}

// finalizeArgs parses completed argument text, falling back to the
// partial-JSON parser for providers that cut the stream short.
func finalizeArgs(fragment string) map[string]interface{} {
	if fragment == "" {
		return map[string]interface{}{}
	}
	var args map[string]interface{}
	if err := json.Unmarshal([]byte(fragment), &args); err == nil {
		return args
	}
	if args := partialjson.ParseObject(fragment); args != nil {
		return args
	}
	return map[string]interface{}{}
}

// FinalizeAssistantMessage transitions the in-progress message to a
// terminal completion state, preserving accumulated text and tool calls.
func (s *Store) FinalizeAssistantMessage(threadID, messageID string, state types.CompletionState) error {
	return s.mutate(threadID, func(t *types.Thread) ([]Event, error) {
		msg := findMessage(t, messageID)
		if msg == nil {
			return nil, fmt.Errorf("assistant message %s not found", messageID)
		}
		msg.State = state
		for i := range msg.ToolCalls {
			msg.ToolCalls[i].Streaming = nil
		}
		return []Event{{Kind: EventMessageUpdated, ThreadID: threadID, MessageID: messageID}}, nil
	})
}

// AppendAssistantError appends a terminal assistant message carrying a
// user-visible failure.
func (s *Store) AppendAssistantError(threadID, text string) (types.Message, error) {
	msg := types.Message{
		ID:        uuid.New().String(),
		Role:      types.RoleAssistant,
		CreatedAt: time.Now(),
		Content:   text,
		State:     types.CompletionError,
	}
	err := s.mutate(threadID, func(t *types.Thread) ([]Event, error) {
		t.Messages = append(t.Messages, msg)
		return []Event{{Kind: EventMessageAppended, ThreadID: threadID, MessageID: msg.ID}}, nil
	})
	return msg, err
}

// AppendToolMessage records a tool result. The assistant message owning
// the referenced call must already be in the thread.
func (s *Store) AppendToolMessage(threadID, toolCallID, text string, status types.ToolMessageStatus, parts []types.ContentPart) (types.Message, error) {
	msg := types.Message{
		ID:         uuid.New().String(),
		Role:       types.RoleTool,
		CreatedAt:  time.Now(),
		Content:    text,
		ToolCallID: toolCallID,
		ToolStatus: status,
		Parts:      parts,
	}
	err := s.mutate(threadID, func(t *types.Thread) ([]Event, error) {
		if owner, _ := findToolCallOwner(t, toolCallID); owner == nil {
			return nil, fmt.Errorf("tool call %s has no owning assistant message", toolCallID)
		}
		t.Messages = append(t.Messages, msg)
		return []Event{{Kind: EventMessageAppended, ThreadID: threadID, MessageID: msg.ID}}, nil
	})
	return msg, err
}

// ToolCallUpdate mutates one tool call's execution fields.
type ToolCallUpdate struct {
	Status      types.ToolCallStatus
	Result      *string
	Error       *string
	RichContent []types.ContentPart
	Arguments   map[string]interface{}
}

// UpdateToolCall applies an update, enforcing monotonic status
// progression.
func (s *Store) UpdateToolCall(threadID, toolCallID string, update ToolCallUpdate) error {
	return s.mutate(threadID, func(t *types.Thread) ([]Event, error) {
		owner, call := findToolCallOwner(t, toolCallID)
		if call == nil {
			return nil, fmt.Errorf("tool call %s not found", toolCallID)
		}
		if update.Status != "" && update.Status != call.Status {
			if !call.Status.CanTransition(update.Status) {
				return nil, fmt.Errorf("tool call %s: illegal transition %s -> %s",
					toolCallID, call.Status, update.Status)
			}
			call.Status = update.Status
		}
		if update.Result != nil {
			call.Result = *update.Result
		}
		if update.Error != nil {
			call.Error = *update.Error
		}
		if update.RichContent != nil {
			call.RichContent = update.RichContent
		}
		if update.Arguments != nil {
			call.Arguments = update.Arguments
		}
		return []Event{{Kind: EventMessageUpdated, ThreadID: threadID, MessageID: owner.ID}}, nil
	})
}

// ToolCall returns a copy of one tool call.
func (s *Store) ToolCall(threadID, toolCallID string) (types.ToolCall, error) {
	state, err := s.state(threadID)
	if err != nil {
		return types.ToolCall{}, err
	}
	state.mu.Lock()
	defer state.mu.Unlock()
	_, call := findToolCallOwner(&state.thread, toolCallID)
	if call == nil {
		return types.ToolCall{}, fmt.Errorf("tool call %s not found", toolCallID)
	}
	return cloneToolCall(*call), nil
}

func findMessage(t *types.Thread, id string) *types.Message {
	for i := len(t.Messages) - 1; i >= 0; i-- {
		if t.Messages[i].ID == id {
			return &t.Messages[i]
		}
	}
	return nil
}

func findToolCall(msg *types.Message, id string) *types.ToolCall {
	for i := range msg.ToolCalls {
		if msg.ToolCalls[i].ID == id {
			return &msg.ToolCalls[i]
		}
	}
	return nil
}

func findToolCallOwner(t *types.Thread, callID string) (*types.Message, *types.ToolCall) {
	for i := len(t.Messages) - 1; i >= 0; i-- {
		msg := &t.Messages[i]
		if msg.Role != types.RoleAssistant {
			continue
		}
		if call := findToolCall(msg, callID); call != nil {
			return msg, call
		}
	}
	return nil, nil
}
