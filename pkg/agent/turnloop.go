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

package agent

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/teradata-labs/adnify/pkg/conversation"
	"github.com/teradata-labs/adnify/pkg/llm"
	"github.com/teradata-labs/adnify/pkg/tools"
	"github.com/teradata-labs/adnify/pkg/types"
)

// errTurnEnded signals a turn that terminated early (abort or fatal
// provider error) with the thread already updated.
var errTurnEnded = errors.New("turn ended")

// RunTurn drives one user turn to completion: it appends the user
// message, then loops assemble -> stream -> execute tools until the
// assistant answers without tool calls, the iteration cap fires, or the
// context is cancelled.
func (r *Runtime) RunTurn(ctx context.Context, threadID, userText string, images []types.ImageAttachment) error {
	if _, err := r.store.AppendUserMessage(threadID, userText, images); err != nil {
		return err
	}
	defer r.setState(StateIdle)

	for iteration := 0; iteration < r.config.MaxIterations; iteration++ {
		done, err := r.runIteration(ctx, threadID)
		if err != nil {
			if errors.Is(err, errTurnEnded) {
				return nil
			}
			return err
		}
		if done {
			r.setState(StateDone)
			return nil
		}
	}

	_, err := r.store.AppendAssistantError(threadID,
		fmt.Sprintf("[agent] loop limit: stopped after %d iterations", r.config.MaxIterations))
	return err
}

// runIteration performs one assemble/stream/execute cycle. done=true
// means the assistant produced a terminal response.
func (r *Runtime) runIteration(ctx context.Context, threadID string) (bool, error) {
	r.setState(StateAssembling)
	asm, err := r.assemble(ctx, threadID)
	if err != nil {
		return false, err
	}

	r.setState(StateStreaming)
	msgID, err := r.store.BeginAssistantMessage(threadID)
	if err != nil {
		return false, err
	}

	callIDs, llmErr := r.streamWithRetry(ctx, threadID, msgID, asm)
	if llmErr != nil {
		return false, r.failTurn(threadID, msgID, callIDs, llmErr)
	}

	if len(callIDs) == 0 {
		if err := r.store.FinalizeAssistantMessage(threadID, msgID, types.CompletionComplete); err != nil {
			return false, err
		}
		return true, nil
	}

	r.setState(StateExecutingTool)
	if err := r.executeToolCalls(ctx, threadID, msgID, callIDs); err != nil {
		return false, err
	}
	if err := r.store.FinalizeAssistantMessage(threadID, msgID, types.CompletionComplete); err != nil {
		return false, err
	}
	if ctx.Err() != nil {
		return true, nil
	}
	return false, nil
}

// streamWithRetry performs the LLM call, retrying retryable failures
// with exponential backoff and escalating compaction once on
// context-length overflow. The assistant message keeps accumulating
// across retries.
func (r *Runtime) streamWithRetry(ctx context.Context, threadID, msgID string, asm *assembled) ([]string, *llm.Error) {
	delay := r.config.Retry.InitialDelay
	attempt := 0
	escalated := false

	for {
		callIDs, llmErr := r.streamInto(ctx, threadID, msgID, asm)
		if llmErr == nil {
			return callIDs, nil
		}

		kind := llm.KindOf(llmErr)
		switch {
		case kind == llm.ErrAborted:
			return callIDs, llmErr

		case kind == llm.ErrContextLength && !escalated:
			// One compaction escalation, one retry.
			escalated = true
			tightened, err := r.assembleTightened(ctx, threadID)
			if err != nil {
				return nil, llm.NewError(llm.ErrContextLength, "re-compaction failed: %v", err)
			}
			asm = tightened
			continue

		case kind.Retryable() && attempt < r.config.Retry.MaxAttempts:
			attempt++
			zap.L().Warn("llm call failed, retrying",
				zap.Int("attempt", attempt),
				zap.Int("max_attempts", r.config.Retry.MaxAttempts),
				zap.Duration("delay", delay),
				zap.String("kind", string(kind)),
			)
			select {
			case <-ctx.Done():
				return nil, llm.NewError(llm.ErrAborted, "cancelled")
			case <-time.After(delay):
			}
			delay = time.Duration(float64(delay) * r.config.Retry.Multiplier)
			continue

		default:
			return nil, llmErr
		}
	}
}

// assembleTightened re-runs assembly with half the budget, forcing a
// higher compaction level.
func (r *Runtime) assembleTightened(ctx context.Context, threadID string) (*assembled, error) {
	saved := r.config.ContextWindow
	r.config.ContextWindow = saved / 2
	defer func() { r.config.ContextWindow = saved }()
	return r.assemble(ctx, threadID)
}

// streamInto runs one LLM call, ingesting every delta into the in-flight
// assistant message in arrival order. Returns the tool call ids in
// first-appearance order and the stream's terminal error, if any.
func (r *Runtime) streamInto(ctx context.Context, threadID, msgID string, asm *assembled) ([]string, *llm.Error) {
	definitions := r.registry.Definitions(r.loadContext())

	var callIDs []string
	var terminal *llm.Error

	for delta := range r.streamer.Stream(ctx, r.config.LLM, asm.messages, asm.systemPrompt, definitions) {
		switch delta.Kind {
		case llm.DeltaError:
			var classified *llm.Error
			if !errors.As(delta.Err, &classified) {
				classified = llm.NewError(llm.ErrUnknown, "%v", delta.Err)
			}
			terminal = classified

		case llm.DeltaFinishReason:
			// Recorded implicitly; the loop decides from tool calls.

		default:
			if delta.Kind == llm.DeltaToolCallStart {
				callIDs = append(callIDs, delta.ToolCallID)
			}
			if err := r.store.ApplyDelta(threadID, msgID, delta); err != nil {
				zap.L().Error("delta ingestion failed", zap.Error(err))
			}
		}
	}
	return callIDs, terminal
}

// failTurn finalizes the in-flight assistant message after a terminal
// stream error: aborted turns keep their partial content and reject any
// accumulated tool calls; fatal errors become a user-visible message
// with the classified kind.
func (r *Runtime) failTurn(threadID, msgID string, callIDs []string, llmErr *llm.Error) error {
	kind := llm.KindOf(llmErr)
	if kind == llm.ErrAborted {
		_ = r.rejectRemaining(threadID, callIDs)
		if err := r.store.FinalizeAssistantMessage(threadID, msgID, types.CompletionAborted); err != nil {
			return err
		}
		return errTurnEnded
	}

	notice := fmt.Sprintf("[agent] %s: %s", kind, llmErr.Message)
	if err := r.store.ApplyDelta(threadID, msgID, llm.TextDelta(notice)); err != nil {
		return err
	}
	if err := r.store.FinalizeAssistantMessage(threadID, msgID, types.CompletionError); err != nil {
		return err
	}
	zap.L().Error("turn failed",
		zap.String("kind", string(kind)),
		zap.String("thread", threadID),
	)
	return errTurnEnded
}

// executeToolCalls runs the turn's calls. Calls run sequentially unless
// the provider emitted parallel calls, the config permits parallelism,
// and no two calls touch overlapping paths. Cancellation rejects the
// calls that have not started.
func (r *Runtime) executeToolCalls(ctx context.Context, threadID, msgID string, callIDs []string) error {
	ec := tools.ExecContext{
		ThreadID:      threadID,
		MessageID:     msgID,
		WorkspaceRoot: r.config.WorkspaceRoot,
		Mode:          r.config.Mode,
	}

	if r.config.LLM.ParallelToolCalls && len(callIDs) > 1 && !r.callsOverlap(threadID, callIDs) {
		var wg sync.WaitGroup
		for _, callID := range callIDs {
			wg.Add(1)
			go func(callID string) {
				defer wg.Done()
				r.executeOne(ctx, ec, callID)
			}(callID)
		}
		wg.Wait()
		return nil
	}

	for i, callID := range callIDs {
		if ctx.Err() != nil {
			return r.rejectRemaining(threadID, callIDs[i:])
		}
		r.executeOne(ctx, ec, callID)
	}
	return nil
}

func (r *Runtime) executeOne(ctx context.Context, ec tools.ExecContext, callID string) {
	if call, err := r.store.ToolCall(ec.ThreadID, callID); err == nil {
		if tool, ok := r.registry.Get(call.Name); ok {
			switch tool.ApprovalKind() {
			case tools.ApprovalDangerous, tools.ApprovalInteraction:
				r.setState(StateAwaitingApproval)
			default:
				r.setState(StateExecutingTool)
			}
		}
	}
	if _, err := r.executor.Execute(ctx, ec, callID); err != nil {
		zap.L().Error("tool execution recording failed",
			zap.String("call", callID),
			zap.Error(err),
		)
	}
	r.setState(StateExecutingTool)
}

// rejectRemaining marks not-yet-started calls rejected after a user
// abort.
func (r *Runtime) rejectRemaining(threadID string, callIDs []string) error {
	for _, callID := range callIDs {
		if err := r.store.UpdateToolCall(threadID, callID, conversation.ToolCallUpdate{
			Status: types.ToolCallRejected,
		}); err != nil {
			zap.L().Warn("reject pending call failed", zap.String("call", callID), zap.Error(err))
			continue
		}
		if _, err := r.store.AppendToolMessage(threadID, callID,
			"cancelled before execution", types.ToolMessageRejected, nil); err != nil {
			zap.L().Warn("reject message failed", zap.String("call", callID), zap.Error(err))
		}
	}
	return nil
}

// callsOverlap reports whether any two calls declare intersecting target
// paths; overlapping calls always serialize.
func (r *Runtime) callsOverlap(threadID string, callIDs []string) bool {
	seen := make(map[string]bool)
	for _, callID := range callIDs {
		call, err := r.store.ToolCall(threadID, callID)
		if err != nil {
			return true
		}
		tool, ok := r.registry.Get(call.Name)
		if !ok {
			continue
		}
		writer, ok := tool.(tools.FileWriter)
		if !ok {
			continue
		}
		for _, path := range writer.TargetPaths(call.Arguments) {
			if seen[path] {
				return true
			}
			seen[path] = true
		}
	}
	return false
}
