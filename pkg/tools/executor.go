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
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"runtime/debug"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/teradata-labs/adnify/pkg/conversation"
	"github.com/teradata-labs/adnify/pkg/host"
	"github.com/teradata-labs/adnify/pkg/observability"
	"github.com/teradata-labs/adnify/pkg/partialjson"
	"github.com/teradata-labs/adnify/pkg/types"
)

// DefaultToolTimeout bounds one tool execution.
const DefaultToolTimeout = 60 * time.Second

// repeatWindowSize is the per-thread rolling window of recent calls.
const repeatWindowSize = 5

// repeatLimit is the number of identical consecutive calls tolerated
// before suppression: the call after the limit is short-circuited.
const repeatLimit = 2

// ConversationRecorder is the slice of the conversation store the
// executor writes through.
type ConversationRecorder interface {
	ToolCall(threadID, toolCallID string) (types.ToolCall, error)
	UpdateToolCall(threadID, toolCallID string, update conversation.ToolCallUpdate) error
	AppendToolMessage(threadID, toolCallID, text string, status types.ToolMessageStatus, parts []types.ContentPart) (types.Message, error)
}

// CheckpointFunc snapshots the files a write-shaped tool is about to
// modify. Invoked strictly before the tool executes.
type CheckpointFunc func(ctx context.Context, ec ExecContext, tool Tool, call types.ToolCall, args map[string]interface{}) error

// Auditor records completed executions. Nil disables auditing.
type Auditor interface {
	RecordExecution(ctx context.Context, threadID, messageID, toolCallID, toolName string,
		args map[string]interface{}, status types.ToolCallStatus, duration time.Duration, result string) error
}

// ExecContext situates one execution.
type ExecContext struct {
	ThreadID      string
	MessageID     string
	WorkspaceRoot string
	Mode          Mode
}

// ExecutorConfig tunes the execution pipeline.
type ExecutorConfig struct {
	// DefaultTimeout bounds each execution; per-tool overrides win.
	DefaultTimeout  time.Duration
	PerToolTimeouts map[string]time.Duration

	// MaxResultChars caps result text; per-tool overrides win.
	MaxResultChars  int
	PerToolMaxChars map[string]int

	// HeadRatio and TailRatio are the fallback truncation split.
	HeadRatio float64
	TailRatio float64

	// AllowedBinaries and AllowedGitSubcommands feed the terminal gate.
	// Nil means the defaults.
	AllowedBinaries       []string
	AllowedGitSubcommands []string
}

func (c ExecutorConfig) withDefaults() ExecutorConfig {
	if c.DefaultTimeout == 0 {
		c.DefaultTimeout = DefaultToolTimeout
	}
	if c.MaxResultChars == 0 {
		c.MaxResultChars = DefaultMaxResultChars
	}
	if c.AllowedBinaries == nil {
		c.AllowedBinaries = DefaultShellBinaries
	}
	if c.AllowedGitSubcommands == nil {
		c.AllowedGitSubcommands = DefaultGitSubcommands
	}
	return c
}

// Executor validates, gates, runs, truncates, and records tool calls.
type Executor struct {
	registry   *Registry
	recorder   ConversationRecorder
	approver   host.Approver
	interactor host.Interactor
	tracer     observability.Tracer
	config     ExecutorConfig
	checkpoint CheckpointFunc
	auditor    Auditor

	mu     sync.Mutex
	recent map[string][]string // threadID -> fingerprints of recent calls
}

// ExecutorOption customizes an Executor.
type ExecutorOption func(*Executor)

// WithApprover wires the host approval bridge.
func WithApprover(a host.Approver) ExecutorOption {
	return func(e *Executor) { e.approver = a }
}

// WithInteractor wires the host question bridge.
func WithInteractor(i host.Interactor) ExecutorOption {
	return func(e *Executor) { e.interactor = i }
}

// WithCheckpointFunc wires the pre-write snapshot hook.
func WithCheckpointFunc(fn CheckpointFunc) ExecutorOption {
	return func(e *Executor) { e.checkpoint = fn }
}

// WithAuditor wires the execution audit log.
func WithAuditor(a Auditor) ExecutorOption {
	return func(e *Executor) { e.auditor = a }
}

// WithExecutorTracer attaches an observability tracer.
func WithExecutorTracer(t observability.Tracer) ExecutorOption {
	return func(e *Executor) { e.tracer = t }
}

// NewExecutor creates an executor over a registry and recorder.
func NewExecutor(registry *Registry, recorder ConversationRecorder, config ExecutorConfig, opts ...ExecutorOption) *Executor {
	e := &Executor{
		registry: registry,
		recorder: recorder,
		config:   config.withDefaults(),
		tracer:   observability.NewNoOpTracer(),
		recent:   make(map[string][]string),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Execute drives one tool call through the full pipeline and records the
// outcome. The returned result mirrors what was recorded; an error return
// means the store itself failed, never the tool.
func (e *Executor) Execute(ctx context.Context, ec ExecContext, toolCallID string) (*Result, error) {
	call, err := e.recorder.ToolCall(ec.ThreadID, toolCallID)
	if err != nil {
		return nil, err
	}

	sctx, span := e.tracer.StartSpan(ctx, observability.KindTool, "tool.execute",
		observability.String("tool.name", call.Name),
		observability.String("tool.call_id", call.ID))
	defer e.tracer.EndSpan(span)
	ctx = sctx

	started := time.Now()
	result, status := e.run(ctx, ec, call)
	duration := time.Since(started)

	if err := e.record(ec, call, result, status); err != nil {
		return nil, err
	}
	if e.auditor != nil {
		args := call.Arguments
		if err := e.auditor.RecordExecution(ctx, ec.ThreadID, ec.MessageID, call.ID, call.Name,
			args, status, duration, result.Text); err != nil {
			zap.L().Warn("tool audit record failed", zap.Error(err))
		}
	}

	zap.L().Debug("tool executed",
		zap.String("tool", call.Name),
		zap.String("status", string(status)),
		zap.Duration("duration", duration),
	)
	return result, nil
}

// run performs the pipeline up to (but excluding) recording.
func (e *Executor) run(ctx context.Context, ec ExecContext, call types.ToolCall) (*Result, types.ToolCallStatus) {
	if ctx.Err() != nil {
		return Errorf("cancelled before execution"), types.ToolCallRejected
	}

	tool, ok := e.registry.Get(call.Name)
	if !ok {
		return Errorf("unknown tool: %s", call.Name), types.ToolCallError
	}

	// 1. Argument assembly: strict parse for finalized calls, partial
	// recovery for calls still streaming.
	args := e.assembleArgs(call)

	// 2. Schema validation.
	if err := ValidateArgs(tool.InputSchema(), args); err != nil {
		return Errorf("%v", err), types.ToolCallError
	}

	// Repeat-call suppression guards against pathological LLM loops.
	if e.isRepeatedCall(ec.ThreadID, call.Name, args) {
		return Errorf("repeated call suppressed"), types.ToolCallError
	}

	// 3. Approval gate.
	switch tool.ApprovalKind() {
	case ApprovalTerminal:
		if command, ok := args["command"].(string); ok &&
			CommandNeedsApproval(command, e.config.AllowedBinaries, e.config.AllowedGitSubcommands) {
			if rejected, result := e.awaitApproval(ctx, ec, call, command); rejected {
				return result, types.ToolCallRejected
			}
		}
	case ApprovalDangerous:
		question := fmt.Sprintf("allow %s with %s?", call.Name, compactArgs(args))
		if rejected, result := e.awaitApproval(ctx, ec, call, question); rejected {
			return result, types.ToolCallRejected
		}
	case ApprovalInteraction:
		return e.askHuman(ctx, ec, call, args)
	}

	// 4. Path safety, after the gate and before any side effect.
	if err := checkArgumentPaths(args); err != nil {
		return Errorf("%v", err), types.ToolCallError
	}

	// Snapshot before any write lands.
	if _, writes := tool.(FileWriter); writes && e.checkpoint != nil {
		if err := e.checkpoint(ctx, ec, tool, call, args); err != nil {
			return Errorf("checkpoint failed: %v", err), types.ToolCallError
		}
	}

	if err := e.recorder.UpdateToolCall(ec.ThreadID, call.ID, conversation.ToolCallUpdate{
		Status:    types.ToolCallRunning,
		Arguments: args,
	}); err != nil {
		return Errorf("status update failed: %v", err), types.ToolCallError
	}

	// 5. Execution with timeout and panic containment.
	result := e.invoke(ctx, tool, args)

	// 6. Content-aware truncation.
	maxChars := e.config.MaxResultChars
	if override, ok := e.config.PerToolMaxChars[call.Name]; ok {
		maxChars = override
	}
	result.Text = TruncateResult(result.Text, call.Name, maxChars, e.config.HeadRatio, e.config.TailRatio)

	if result.Success {
		return result, types.ToolCallSuccess
	}
	return result, types.ToolCallError
}

// assembleArgs recovers the argument object from whatever state the call
// is in.
func (e *Executor) assembleArgs(call types.ToolCall) map[string]interface{} {
	if call.Streaming != nil && call.Streaming.IsStreaming {
		if args := partialjson.ParseObject(call.ArgsFragment); args != nil {
			return args
		}
		return map[string]interface{}{}
	}
	if call.Arguments != nil {
		return call.Arguments
	}
	if call.ArgsFragment != "" {
		var args map[string]interface{}
		if err := json.Unmarshal([]byte(call.ArgsFragment), &args); err == nil {
			return args
		}
		if args := partialjson.ParseObject(call.ArgsFragment); args != nil {
			return args
		}
	}
	return map[string]interface{}{}
}

// awaitApproval suspends on the host gate. The gate itself has no
// timeout; it waits for the human.
func (e *Executor) awaitApproval(ctx context.Context, ec ExecContext, call types.ToolCall, question string) (rejected bool, result *Result) {
	if err := e.recorder.UpdateToolCall(ec.ThreadID, call.ID, conversation.ToolCallUpdate{
		Status: types.ToolCallAwaitingApproval,
	}); err != nil {
		return true, Errorf("status update failed: %v", err)
	}
	if e.approver == nil {
		return true, Errorf("tool call rejected: no approval bridge configured")
	}
	decision, err := e.approver.AwaitApproval(ctx, call.ID, question)
	if err != nil {
		return true, Errorf("approval gate failed: %v", err)
	}
	if decision != host.Approve {
		return true, Errorf("tool call rejected by user")
	}
	return false, nil
}

// askHuman resolves interaction-kind tools: the question goes to the
// host, the typed answer becomes the result.
func (e *Executor) askHuman(ctx context.Context, ec ExecContext, call types.ToolCall, args map[string]interface{}) (*Result, types.ToolCallStatus) {
	if e.interactor == nil {
		return Errorf("no interaction bridge configured"), types.ToolCallError
	}
	question, _ := args["question"].(string)
	if question == "" {
		return Errorf("missing argument: question"), types.ToolCallError
	}
	if err := e.recorder.UpdateToolCall(ec.ThreadID, call.ID, conversation.ToolCallUpdate{
		Status:    types.ToolCallRunning,
		Arguments: args,
	}); err != nil {
		return Errorf("status update failed: %v", err), types.ToolCallError
	}
	answer, err := e.interactor.Ask(ctx, call.ID, question)
	if err != nil {
		return Errorf("interaction failed: %v", err), types.ToolCallError
	}
	return Textf("%s", answer), types.ToolCallSuccess
}

// invoke runs the tool executor under its timeout, containing panics.
func (e *Executor) invoke(ctx context.Context, tool Tool, args map[string]interface{}) (result *Result) {
	timeout := e.config.DefaultTimeout
	if override, ok := e.config.PerToolTimeouts[tool.Name()]; ok {
		timeout = override
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	defer func() {
		if r := recover(); r != nil {
			stack := trimStack(debug.Stack())
			result = Errorf("tool panicked: %v\n%s", r, stack)
		}
	}()

	done := make(chan *Result, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				done <- Errorf("tool panicked: %v\n%s", r, trimStack(debug.Stack()))
			}
		}()
		res, err := tool.Execute(ctx, args)
		if err != nil {
			done <- Errorf("%v", err)
			return
		}
		if res == nil {
			done <- Errorf("tool returned no result")
			return
		}
		done <- res
	}()

	select {
	case res := <-done:
		return res
	case <-ctx.Done():
		if ctx.Err() == context.DeadlineExceeded {
			return Errorf("tool timed out after %s", timeout)
		}
		return Errorf("cancelled")
	}
}

// record writes the terminal status, result, and tool message.
func (e *Executor) record(ec ExecContext, call types.ToolCall, result *Result, status types.ToolCallStatus) error {
	update := conversation.ToolCallUpdate{Status: status}
	if result.Success {
		update.Result = &result.Text
	} else {
		update.Error = &result.Error
		update.Result = &result.Text
	}
	if len(result.RichContent) > 0 {
		update.RichContent = result.RichContent
	}
	if err := e.recorder.UpdateToolCall(ec.ThreadID, call.ID, update); err != nil {
		return fmt.Errorf("update tool call: %w", err)
	}

	msgStatus := types.ToolMessageSuccess
	switch status {
	case types.ToolCallError:
		msgStatus = types.ToolMessageError
	case types.ToolCallRejected:
		msgStatus = types.ToolMessageRejected
	}
	if _, err := e.recorder.AppendToolMessage(ec.ThreadID, call.ID, result.Text, msgStatus, result.RichContent); err != nil {
		return fmt.Errorf("append tool message: %w", err)
	}
	return nil
}

// isRepeatedCall updates the rolling window and reports whether this call
// repeats the previous ones beyond the limit.
func (e *Executor) isRepeatedCall(threadID, name string, args map[string]interface{}) bool {
	fingerprint := callFingerprint(name, args)

	e.mu.Lock()
	defer e.mu.Unlock()

	window := e.recent[threadID]
	consecutive := 0
	for i := len(window) - 1; i >= 0; i-- {
		if window[i] != fingerprint {
			break
		}
		consecutive++
	}

	window = append(window, fingerprint)
	if len(window) > repeatWindowSize {
		window = window[len(window)-repeatWindowSize:]
	}
	e.recent[threadID] = window

	return consecutive >= repeatLimit
}

// callFingerprint hashes a call's name and canonical argument encoding.
func callFingerprint(name string, args map[string]interface{}) string {
	canonical, _ := json.Marshal(args) // map keys marshal sorted
	sum := sha256.Sum256(append([]byte(name+"\x00"), canonical...))
	return hex.EncodeToString(sum[:8])
}

// compactArgs renders arguments for approval questions.
func compactArgs(args map[string]interface{}) string {
	raw, err := json.Marshal(args)
	if err != nil {
		return "{}"
	}
	s := string(raw)
	if len(s) > 200 {
		s = s[:200] + "..."
	}
	return s
}

// trimStack keeps the useful head of a panic stack.
func trimStack(stack []byte) string {
	lines := strings.Split(string(stack), "\n")
	if len(lines) > 12 {
		lines = lines[:12]
	}
	return strings.Join(lines, "\n")
}
