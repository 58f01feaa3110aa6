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
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/teradata-labs/adnify/pkg/host"
	"github.com/teradata-labs/adnify/pkg/llm"
	"github.com/teradata-labs/adnify/pkg/tools"
	"github.com/teradata-labs/adnify/pkg/types"
)

// scriptedStreamer replays one delta script per LLM call.
type scriptedStreamer struct {
	mu      sync.Mutex
	scripts [][]llm.Delta
	calls   int

	lastMessages []types.Message
	lastSystem   string
	lastTools    []llm.ToolDefinition
}

func (s *scriptedStreamer) Stream(ctx context.Context, cfg llm.Config, messages []types.Message, systemPrompt string, defs []llm.ToolDefinition) <-chan llm.Delta {
	s.mu.Lock()
	script := []llm.Delta{llm.FinishDelta("stop")}
	if s.calls < len(s.scripts) {
		script = s.scripts[s.calls]
	}
	s.calls++
	s.lastMessages = messages
	s.lastSystem = systemPrompt
	s.lastTools = defs
	s.mu.Unlock()

	out := make(chan llm.Delta, len(script))
	go func() {
		defer close(out)
		for _, delta := range script {
			select {
			case out <- delta:
			case <-ctx.Done():
				out <- llm.ErrorDelta(llm.NewError(llm.ErrAborted, "cancelled"))
				return
			}
		}
	}()
	return out
}

func newTestRuntime(t *testing.T, streamer LLMStreamer, deps Dependencies) (*Runtime, string) {
	t.Helper()
	root := t.TempDir()
	deps.Streamer = streamer
	runtime, err := NewRuntime(RuntimeConfig{
		WorkspaceRoot: root,
		SystemPrompt:  "you are a coding agent",
		LLM:           llm.Config{Provider: "openai", Model: "gpt-4.1", Protocol: llm.ProtocolOpenAI},
	}, deps)
	require.NoError(t, err)
	t.Cleanup(runtime.Close)
	return runtime, root
}

func TestRunTurn_RoundTripText(t *testing.T) {
	streamer := &scriptedStreamer{scripts: [][]llm.Delta{{
		llm.TextDelta("hel"),
		llm.TextDelta("lo"),
		llm.FinishDelta("stop"),
	}}}
	runtime, _ := newTestRuntime(t, streamer, Dependencies{})
	thread := runtime.Store().CreateThread()

	require.NoError(t, runtime.RunTurn(context.Background(), thread.ID, "hi", nil))

	snapshot, err := runtime.Store().Thread(thread.ID)
	require.NoError(t, err)
	require.Len(t, snapshot.Messages, 2)
	asst := snapshot.Messages[1]
	assert.Equal(t, "hello", asst.Content)
	assert.Empty(t, asst.ToolCalls)
	assert.Equal(t, types.CompletionComplete, asst.State)
	assert.Equal(t, StateIdle, runtime.State())
}

func TestRunTurn_ToolCallWithStreamingArguments(t *testing.T) {
	streamer := &scriptedStreamer{scripts: [][]llm.Delta{
		{
			llm.ToolCallStartDelta("t1", "read_file"),
			llm.ToolCallArgsDelta("t1", `{"path":"f`),
			llm.ToolCallArgsDelta("t1", `oo.ts"}`),
			llm.ToolCallEndDelta("t1"),
			llm.FinishDelta("tool_calls"),
		},
		{
			llm.TextDelta("the file exports x"),
			llm.FinishDelta("stop"),
		},
	}}
	runtime, root := newTestRuntime(t, streamer, Dependencies{})
	require.NoError(t, os.WriteFile(filepath.Join(root, "foo.ts"), []byte("export const x = 1\n"), 0o644))

	thread := runtime.Store().CreateThread()
	require.NoError(t, runtime.RunTurn(context.Background(), thread.ID, "read foo.ts", nil))

	snapshot, err := runtime.Store().Thread(thread.ID)
	require.NoError(t, err)
	// user, assistant(tool call), tool result, assistant answer
	require.Len(t, snapshot.Messages, 4)

	call := snapshot.Messages[1].ToolCalls[0]
	assert.Equal(t, types.ToolCallSuccess, call.Status)
	assert.Equal(t, map[string]interface{}{"path": "foo.ts"}, call.Arguments)

	toolMsg := snapshot.Messages[2]
	assert.Equal(t, types.RoleTool, toolMsg.Role)
	assert.Equal(t, "export const x = 1\n", toolMsg.Content)
	assert.Equal(t, types.ToolMessageSuccess, toolMsg.ToolStatus)

	assert.Equal(t, "the file exports x", snapshot.Messages[3].Content)

	// The second call saw the tool result in its context.
	require.GreaterOrEqual(t, len(streamer.lastMessages), 3)
}

func TestRunTurn_CheckpointThenRestore(t *testing.T) {
	streamer := &scriptedStreamer{scripts: [][]llm.Delta{
		{
			llm.ToolCallStartDelta("t1", "write_file"),
			llm.ToolCallArgsDelta("t1", `{"path":"a.txt","content":"v2"}`),
			llm.ToolCallEndDelta("t1"),
			llm.FinishDelta("tool_calls"),
		},
		{
			llm.TextDelta("written"),
			llm.FinishDelta("stop"),
		},
	}}
	runtime, root := newTestRuntime(t, streamer, Dependencies{})
	target := filepath.Join(root, "a.txt")
	require.NoError(t, os.WriteFile(target, []byte("v1"), 0o644))

	thread := runtime.Store().CreateThread()
	require.NoError(t, runtime.RunTurn(context.Background(), thread.ID, "set a.txt to v2", nil))

	data, err := os.ReadFile(target)
	require.NoError(t, err)
	assert.Equal(t, "v2", string(data))

	cps, err := runtime.Store().CheckpointsOldestFirst(thread.ID)
	require.NoError(t, err)
	require.Len(t, cps, 1)
	require.NotNil(t, cps[0].Files[target].Content)
	assert.Equal(t, "v1", *cps[0].Files[target].Content)

	report, err := runtime.Checkpoints().Restore(context.Background(), thread.ID, cps[0].ID)
	require.NoError(t, err)
	assert.True(t, report.Success)

	data, err = os.ReadFile(target)
	require.NoError(t, err)
	assert.Equal(t, "v1", string(data))

	// Post-checkpoint messages are gone; history ends at the owning
	// assistant message.
	snapshot, err := runtime.Store().Thread(thread.ID)
	require.NoError(t, err)
	last := snapshot.Messages[len(snapshot.Messages)-1]
	assert.Equal(t, cps[0].MessageID, last.ID)
}

func TestRunTurn_ApprovalRejection(t *testing.T) {
	streamer := &scriptedStreamer{scripts: [][]llm.Delta{
		{
			llm.ToolCallStartDelta("t1", "rm_rf"),
			llm.ToolCallArgsDelta("t1", `{"path":"everything"}`),
			llm.ToolCallEndDelta("t1"),
			llm.FinishDelta("tool_calls"),
		},
		{
			llm.TextDelta("understood, not deleting"),
			llm.FinishDelta("stop"),
		},
	}}
	runtime, _ := newTestRuntime(t, streamer, Dependencies{
		Approver: &host.StaticApprover{Decision: host.Reject},
	})
	require.NoError(t, runtime.Registry().Register("danger", &dangerousTool{}))
	runtime.config.ExtraGroups = []string{"danger"}

	thread := runtime.Store().CreateThread()
	require.NoError(t, runtime.RunTurn(context.Background(), thread.ID, "delete everything", nil))

	snapshot, err := runtime.Store().Thread(thread.ID)
	require.NoError(t, err)

	call := snapshot.Messages[1].ToolCalls[0]
	assert.Equal(t, types.ToolCallRejected, call.Status)

	toolMsg := snapshot.Messages[2]
	assert.Equal(t, types.ToolMessageRejected, toolMsg.ToolStatus)
	assert.NotEmpty(t, toolMsg.Content)

	// The turn continued and terminated with the next assistant response.
	final := snapshot.Messages[3]
	assert.Equal(t, "understood, not deleting", final.Content)
	assert.Equal(t, types.CompletionComplete, final.State)
}

func TestRunTurn_RetryableErrorThenSuccess(t *testing.T) {
	streamer := &scriptedStreamer{scripts: [][]llm.Delta{
		{llm.ErrorDelta(llm.NewError(llm.ErrRateLimit, "slow down"))},
		{llm.TextDelta("recovered"), llm.FinishDelta("stop")},
	}}
	runtime, _ := newTestRuntime(t, streamer, Dependencies{})
	runtime.config.Retry.InitialDelay = 0

	thread := runtime.Store().CreateThread()
	require.NoError(t, runtime.RunTurn(context.Background(), thread.ID, "hi", nil))

	snapshot, _ := runtime.Store().Thread(thread.ID)
	asst := snapshot.Messages[1]
	assert.Equal(t, "recovered", asst.Content)
	assert.Equal(t, types.CompletionComplete, asst.State)
	assert.Equal(t, 2, streamer.calls)
}

func TestRunTurn_FatalErrorSurfacesToUser(t *testing.T) {
	streamer := &scriptedStreamer{scripts: [][]llm.Delta{
		{llm.ErrorDelta(llm.NewError(llm.ErrInvalidAPIKey, "invalid api key (status 401)"))},
	}}
	runtime, _ := newTestRuntime(t, streamer, Dependencies{})

	thread := runtime.Store().CreateThread()
	require.NoError(t, runtime.RunTurn(context.Background(), thread.ID, "hi", nil))

	snapshot, _ := runtime.Store().Thread(thread.ID)
	asst := snapshot.Messages[1]
	assert.Equal(t, types.CompletionError, asst.State)
	assert.Contains(t, asst.Content, "[agent] invalid-api-key")
	// Fatal errors are not retried.
	assert.Equal(t, 1, streamer.calls)
}

func TestRunTurn_AbortPreservesPartialContent(t *testing.T) {
	streamer := &scriptedStreamer{scripts: [][]llm.Delta{
		{
			llm.TextDelta("partial "),
			llm.ErrorDelta(llm.NewError(llm.ErrAborted, "cancelled")),
		},
	}}
	runtime, _ := newTestRuntime(t, streamer, Dependencies{})

	thread := runtime.Store().CreateThread()
	require.NoError(t, runtime.RunTurn(context.Background(), thread.ID, "hi", nil))

	snapshot, _ := runtime.Store().Thread(thread.ID)
	asst := snapshot.Messages[1]
	assert.Equal(t, types.CompletionAborted, asst.State)
	assert.Equal(t, "partial ", asst.Content)
}

func TestRunTurn_LoopLimit(t *testing.T) {
	// Every call requests another tool execution.
	endless := make([][]llm.Delta, 0, 8)
	for i := 0; i < 8; i++ {
		endless = append(endless, []llm.Delta{
			llm.ToolCallStartDelta("t", "list_dir"),
			llm.ToolCallArgsDelta("t", `{}`),
			llm.ToolCallEndDelta("t"),
			llm.FinishDelta("tool_calls"),
		})
	}
	streamer := &scriptedStreamer{scripts: endless}
	runtime, _ := newTestRuntime(t, streamer, Dependencies{})
	runtime.config.MaxIterations = 3

	thread := runtime.Store().CreateThread()
	require.NoError(t, runtime.RunTurn(context.Background(), thread.ID, "loop forever", nil))

	snapshot, _ := runtime.Store().Thread(thread.ID)
	last := snapshot.Messages[len(snapshot.Messages)-1]
	assert.Contains(t, last.Content, "loop limit")
	assert.Equal(t, types.CompletionError, last.State)
	assert.Equal(t, 3, streamer.calls)
}

func TestRunTurn_SystemPromptCarriesPinnedContext(t *testing.T) {
	streamer := &scriptedStreamer{scripts: [][]llm.Delta{{
		llm.TextDelta("ok"),
		llm.FinishDelta("stop"),
	}}}
	runtime, root := newTestRuntime(t, streamer, Dependencies{})
	require.NoError(t, os.WriteFile(filepath.Join(root, "pinned.go"), []byte("package pinned"), 0o644))

	thread := runtime.Store().CreateThread()
	require.NoError(t, runtime.Store().AddContextItem(thread.ID, types.ContextItem{
		Kind: types.ContextFile,
		URI:  filepath.Join(root, "pinned.go"),
	}))

	require.NoError(t, runtime.RunTurn(context.Background(), thread.ID, "look at the pinned file", nil))

	assert.Contains(t, streamer.lastSystem, "you are a coding agent")
	assert.Contains(t, streamer.lastSystem, "package pinned")
}

func TestRunTurn_ChatModeExposesNoTools(t *testing.T) {
	streamer := &scriptedStreamer{scripts: [][]llm.Delta{{
		llm.TextDelta("just chatting"),
		llm.FinishDelta("stop"),
	}}}
	runtime, _ := newTestRuntime(t, streamer, Dependencies{})
	runtime.config.Mode = "chat"

	thread := runtime.Store().CreateThread()
	require.NoError(t, runtime.RunTurn(context.Background(), thread.ID, "hi", nil))
	assert.Empty(t, streamer.lastTools)
}

// dangerousTool always needs approval.
type dangerousTool struct{}

func (d *dangerousTool) Name() string        { return "rm_rf" }
func (d *dangerousTool) Description() string { return "delete everything" }
func (d *dangerousTool) InputSchema() *tools.JSONSchema {
	return tools.NewObjectSchema("", map[string]*tools.JSONSchema{
		"path": tools.NewStringSchema("target"),
	}, []string{"path"})
}
func (d *dangerousTool) ApprovalKind() tools.ApprovalKind { return tools.ApprovalDangerous }
func (d *dangerousTool) Execute(ctx context.Context, args map[string]interface{}) (*tools.Result, error) {
	return tools.Textf("deleted"), nil
}
