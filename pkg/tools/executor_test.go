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

package tools

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/teradata-labs/adnify/pkg/conversation"
	"github.com/teradata-labs/adnify/pkg/host"
	"github.com/teradata-labs/adnify/pkg/llm"
	"github.com/teradata-labs/adnify/pkg/types"
)

// harness wires an executor against a real conversation store.
type harness struct {
	store    *conversation.Store
	registry *Registry
	executor *Executor
	threadID string
	msgID    string
}

func newHarness(t *testing.T, cfg ExecutorConfig, opts ...ExecutorOption) *harness {
	t.Helper()
	store := conversation.NewStore()
	thread := store.CreateThread()
	msgID, err := store.BeginAssistantMessage(thread.ID)
	require.NoError(t, err)

	registry := NewRegistry()
	return &harness{
		store:    store,
		registry: registry,
		executor: NewExecutor(registry, store, cfg, opts...),
		threadID: thread.ID,
		msgID:    msgID,
	}
}

// startCall streams a tool call into the in-progress assistant message.
func (h *harness) startCall(t *testing.T, id, name, argsJSON string) {
	t.Helper()
	require.NoError(t, h.store.ApplyDelta(h.threadID, h.msgID, llm.ToolCallStartDelta(id, name)))
	if argsJSON != "" {
		require.NoError(t, h.store.ApplyDelta(h.threadID, h.msgID, llm.ToolCallArgsDelta(id, argsJSON)))
	}
	require.NoError(t, h.store.ApplyDelta(h.threadID, h.msgID, llm.ToolCallEndDelta(id)))
}

func (h *harness) exec(t *testing.T, id string) *Result {
	t.Helper()
	result, err := h.executor.Execute(context.Background(), ExecContext{
		ThreadID:  h.threadID,
		MessageID: h.msgID,
		Mode:      ModeAgent,
	}, id)
	require.NoError(t, err)
	return result
}

func TestExecutor_SuccessPath(t *testing.T) {
	h := newHarness(t, ExecutorConfig{})
	var got map[string]interface{}
	require.NoError(t, h.registry.Register(GroupCore, &fakeTool{
		name: "read_file",
		schema: NewObjectSchema("", map[string]*JSONSchema{
			"path": NewStringSchema(""),
		}, []string{"path"}),
		execute: func(ctx context.Context, args map[string]interface{}) (*Result, error) {
			got = args
			return Textf("export const x = 1\n"), nil
		},
	}))

	h.startCall(t, "t1", "read_file", `{"path":"foo.ts"}`)
	result := h.exec(t, "t1")

	assert.True(t, result.Success)
	assert.Equal(t, "export const x = 1\n", result.Text)
	assert.Equal(t, "foo.ts", got["path"])

	call, err := h.store.ToolCall(h.threadID, "t1")
	require.NoError(t, err)
	assert.Equal(t, types.ToolCallSuccess, call.Status)

	thread, err := h.store.Thread(h.threadID)
	require.NoError(t, err)
	last := thread.Messages[len(thread.Messages)-1]
	assert.Equal(t, types.RoleTool, last.Role)
	assert.Equal(t, "t1", last.ToolCallID)
	assert.Equal(t, types.ToolMessageSuccess, last.ToolStatus)
}

func TestExecutor_StreamingArgsRecovered(t *testing.T) {
	h := newHarness(t, ExecutorConfig{})
	var got map[string]interface{}
	require.NoError(t, h.registry.Register(GroupCore, &fakeTool{
		name: "write_file",
		execute: func(ctx context.Context, args map[string]interface{}) (*Result, error) {
			got = args
			return Textf("ok"), nil
		},
	}))

	// The call never receives its end delta: arguments stay truncated.
	require.NoError(t, h.store.ApplyDelta(h.threadID, h.msgID, llm.ToolCallStartDelta("t1", "write_file")))
	require.NoError(t, h.store.ApplyDelta(h.threadID, h.msgID,
		llm.ToolCallArgsDelta("t1", `{"path":"a.txt","content":"hel`)))

	result := h.exec(t, "t1")
	assert.True(t, result.Success)
	assert.Equal(t, "a.txt", got["path"])
	assert.Equal(t, "hel", got["content"])
}

func TestExecutor_MissingArgument(t *testing.T) {
	h := newHarness(t, ExecutorConfig{})
	require.NoError(t, h.registry.Register(GroupCore, &fakeTool{
		name: "read_file",
		schema: NewObjectSchema("", map[string]*JSONSchema{
			"path": NewStringSchema(""),
		}, []string{"path"}),
	}))

	h.startCall(t, "t1", "read_file", `{}`)
	result := h.exec(t, "t1")

	assert.False(t, result.Success)
	assert.Equal(t, "missing argument: path", result.Error)

	call, _ := h.store.ToolCall(h.threadID, "t1")
	assert.Equal(t, types.ToolCallError, call.Status)
}

func TestExecutor_UnknownTool(t *testing.T) {
	h := newHarness(t, ExecutorConfig{})
	h.startCall(t, "t1", "no_such_tool", `{}`)
	result := h.exec(t, "t1")
	assert.False(t, result.Success)
	assert.Contains(t, result.Error, "unknown tool")
}

func TestExecutor_ApprovalRejection(t *testing.T) {
	h := newHarness(t, ExecutorConfig{}, WithApprover(&host.StaticApprover{Decision: host.Reject}))
	require.NoError(t, h.registry.Register(GroupCore, &fakeTool{
		name:     "rm_rf",
		approval: ApprovalDangerous,
		execute: func(ctx context.Context, args map[string]interface{}) (*Result, error) {
			t.Fatal("rejected tool must not execute")
			return nil, nil
		},
	}))

	h.startCall(t, "t1", "rm_rf", `{"path":"x"}`)
	result := h.exec(t, "t1")

	assert.False(t, result.Success)
	assert.Contains(t, result.Error, "rejected")

	call, _ := h.store.ToolCall(h.threadID, "t1")
	assert.Equal(t, types.ToolCallRejected, call.Status)

	thread, _ := h.store.Thread(h.threadID)
	last := thread.Messages[len(thread.Messages)-1]
	assert.Equal(t, types.ToolMessageRejected, last.ToolStatus)
	assert.NotEmpty(t, last.Content)
}

func TestExecutor_TerminalGateUsesAllowList(t *testing.T) {
	approved := 0
	approver := approverFunc(func(ctx context.Context, id, q string) (host.Decision, error) {
		approved++
		return host.Approve, nil
	})

	h := newHarness(t, ExecutorConfig{}, WithApprover(approver))
	require.NoError(t, h.registry.Register(GroupCore, &fakeTool{
		name:     "run_command",
		approval: ApprovalTerminal,
		execute: func(ctx context.Context, args map[string]interface{}) (*Result, error) {
			return Textf("ran"), nil
		},
	}))

	// Allow-listed binary: no gate.
	h.startCall(t, "t1", "run_command", `{"command":"ls -la"}`)
	result := h.exec(t, "t1")
	assert.True(t, result.Success)
	assert.Equal(t, 0, approved)

	// Off-list binary: suspends for approval.
	h.startCall(t, "t2", "run_command", `{"command":"wget http://x"}`)
	result = h.exec(t, "t2")
	assert.True(t, result.Success)
	assert.Equal(t, 1, approved)
}

func TestExecutor_PathSafetyBlocksExecution(t *testing.T) {
	executed := false
	h := newHarness(t, ExecutorConfig{})
	require.NoError(t, h.registry.Register(GroupCore, &fakeTool{
		name: "write_file",
		execute: func(ctx context.Context, args map[string]interface{}) (*Result, error) {
			executed = true
			return Textf("ok"), nil
		},
	}))

	h.startCall(t, "t1", "write_file", `{"path":"../../etc/passwd","content":"x"}`)
	result := h.exec(t, "t1")

	assert.False(t, result.Success)
	assert.False(t, executed, "no filesystem side effect on rejected path")

	call, _ := h.store.ToolCall(h.threadID, "t1")
	assert.Equal(t, types.ToolCallError, call.Status)
}

func TestExecutor_Timeout(t *testing.T) {
	h := newHarness(t, ExecutorConfig{
		PerToolTimeouts: map[string]time.Duration{"slow": 30 * time.Millisecond},
	})
	require.NoError(t, h.registry.Register(GroupCore, &fakeTool{
		name: "slow",
		execute: func(ctx context.Context, args map[string]interface{}) (*Result, error) {
			<-ctx.Done()
			time.Sleep(10 * time.Millisecond)
			return Textf("too late"), nil
		},
	}))

	h.startCall(t, "t1", "slow", `{}`)
	result := h.exec(t, "t1")
	assert.False(t, result.Success)
	assert.Contains(t, result.Error, "timed out")
}

func TestExecutor_PanicContained(t *testing.T) {
	h := newHarness(t, ExecutorConfig{})
	require.NoError(t, h.registry.Register(GroupCore, &fakeTool{
		name: "boom",
		execute: func(ctx context.Context, args map[string]interface{}) (*Result, error) {
			panic("kaboom")
		},
	}))

	h.startCall(t, "t1", "boom", `{}`)
	result := h.exec(t, "t1")
	assert.False(t, result.Success)
	assert.Contains(t, result.Error, "kaboom")
}

func TestExecutor_RepeatedCallSuppressed(t *testing.T) {
	h := newHarness(t, ExecutorConfig{})
	executions := 0
	require.NoError(t, h.registry.Register(GroupCore, &fakeTool{
		name: "read_file",
		execute: func(ctx context.Context, args map[string]interface{}) (*Result, error) {
			executions++
			return Textf("content"), nil
		},
	}))

	for i := 1; i <= 4; i++ {
		id := string(rune('a' + i))
		h.startCall(t, id, "read_file", `{"path":"same.txt"}`)
		result := h.exec(t, id)
		if i <= 2 {
			assert.True(t, result.Success, "call %d should run", i)
		} else {
			assert.False(t, result.Success, "call %d should be suppressed", i)
			assert.Contains(t, result.Error, "repeated call suppressed")
		}
	}
	assert.Equal(t, 2, executions)
}

func TestExecutor_InteractionAnswerBecomesResult(t *testing.T) {
	h := newHarness(t, ExecutorConfig{}, WithInteractor(interactorFunc(
		func(ctx context.Context, id, question string) (string, error) {
			assert.Equal(t, "which database?", question)
			return "postgres", nil
		})))
	require.NoError(t, h.registry.Register(GroupCore, &fakeTool{
		name:     "ask_user",
		approval: ApprovalInteraction,
	}))

	h.startCall(t, "t1", "ask_user", `{"question":"which database?"}`)
	result := h.exec(t, "t1")

	assert.True(t, result.Success)
	assert.Equal(t, "postgres", result.Text)
}

func TestExecutor_CheckpointHookRunsBeforeWriteTools(t *testing.T) {
	captured := false
	hook := func(ctx context.Context, ec ExecContext, tool Tool, call types.ToolCall, args map[string]interface{}) error {
		captured = true
		return nil
	}

	h := newHarness(t, ExecutorConfig{}, WithCheckpointFunc(hook))
	require.NoError(t, h.registry.Register(GroupCore, &writerTool{fakeTool{
		name: "write_file",
		execute: func(ctx context.Context, args map[string]interface{}) (*Result, error) {
			assert.True(t, captured, "checkpoint must run before the tool")
			return Textf("ok"), nil
		},
	}}))

	h.startCall(t, "t1", "write_file", `{"path":"a.txt","content":"v2"}`)
	result := h.exec(t, "t1")
	assert.True(t, result.Success)
	assert.True(t, captured)
}

// approverFunc adapts a function to host.Approver.
type approverFunc func(ctx context.Context, toolCallID, question string) (host.Decision, error)

func (f approverFunc) AwaitApproval(ctx context.Context, toolCallID, question string) (host.Decision, error) {
	return f(ctx, toolCallID, question)
}

// interactorFunc adapts a function to host.Interactor.
type interactorFunc func(ctx context.Context, toolCallID, question string) (string, error)

func (f interactorFunc) Ask(ctx context.Context, toolCallID, question string) (string, error) {
	return f(ctx, toolCallID, question)
}

// writerTool marks a fake tool as file-writing.
type writerTool struct{ fakeTool }

func (w *writerTool) TargetPaths(args map[string]interface{}) []string {
	if path, ok := args["path"].(string); ok {
		return []string{path}
	}
	return nil
}
