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

// Package agent owns the turn loop: it assembles context, streams the
// LLM, routes tool calls through validation, approval, checkpointing and
// execution, and feeds results back until the assistant produces a
// terminal response.
//
// Everything is constructed explicitly at startup: a Runtime value owns
// the conversation store, registry, executor, checkpoint and compaction
// engines. There are no ambient globals; teardown revokes every observer
// subscription.
package agent

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/teradata-labs/adnify/pkg/checkpoint"
	"github.com/teradata-labs/adnify/pkg/compaction"
	"github.com/teradata-labs/adnify/pkg/conversation"
	"github.com/teradata-labs/adnify/pkg/host"
	"github.com/teradata-labs/adnify/pkg/llm"
	"github.com/teradata-labs/adnify/pkg/observability"
	"github.com/teradata-labs/adnify/pkg/tools"
	"github.com/teradata-labs/adnify/pkg/tools/builtin"
	"github.com/teradata-labs/adnify/pkg/types"
)

// State is the turn loop's explicit machine state.
type State string

const (
	StateIdle             State = "idle"
	StateAssembling       State = "assembling"
	StateStreaming        State = "streaming"
	StateExecutingTool    State = "executing-tool"
	StateAwaitingApproval State = "awaiting-approval"
	StateDone             State = "done"
)

// RetryConfig governs turn-loop retries of retryable LLM failures.
type RetryConfig struct {
	MaxAttempts  int
	InitialDelay time.Duration
	Multiplier   float64
}

// DefaultRetryConfig matches the documented backoff: base 1s, multiplier
// 1.5, up to 3 attempts.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{MaxAttempts: 3, InitialDelay: time.Second, Multiplier: 1.5}
}

// RuntimeConfig configures one agent runtime.
type RuntimeConfig struct {
	// WorkspaceRoot anchors file tools, checkpoints, and sessions
	WorkspaceRoot string

	// LLM is the provider connection
	LLM llm.Config

	// SystemPrompt is the agent's base instruction
	SystemPrompt string

	// Mode, TemplateID, Phase, and ExtraGroups drive tool loading
	Mode        tools.Mode
	TemplateID  string
	Phase       tools.Phase
	ExtraGroups []string

	// ContextWindow is the model's token window; the request budget is
	// the window minus the reserve fraction.
	ContextWindow int

	// BudgetReserve is the fraction of the window held back, 0.2 when
	// zero.
	BudgetReserve float64

	// MaxIterations bounds LLM round trips per user turn, 25 when zero.
	MaxIterations int

	Retry RetryConfig
}

func (c RuntimeConfig) withDefaults() RuntimeConfig {
	if c.Mode == "" {
		c.Mode = tools.ModeAgent
	}
	if c.ContextWindow == 0 {
		c.ContextWindow = 128_000
	}
	if c.BudgetReserve == 0 {
		c.BudgetReserve = 0.2
	}
	if c.MaxIterations == 0 {
		c.MaxIterations = 25
	}
	if c.Retry.MaxAttempts == 0 {
		c.Retry = DefaultRetryConfig()
	}
	return c
}

// budget is the token ceiling for assembled requests.
func (c RuntimeConfig) budget() int {
	return int(float64(c.ContextWindow) * (1 - c.BudgetReserve))
}

// LLMStreamer abstracts the adapter for the turn loop; *llm.Adapter is
// the production implementation.
type LLMStreamer interface {
	Stream(ctx context.Context, cfg llm.Config, messages []types.Message, systemPrompt string, tools []llm.ToolDefinition) <-chan llm.Delta
}

// Dependencies are the collaborators a Runtime is built from. Zero
// values get local defaults; the approval bridge has no default and
// gates fail closed without one.
type Dependencies struct {
	Filesystem host.Filesystem
	Shell      host.Shell
	Approver   host.Approver
	Interactor host.Interactor
	Tracer     observability.Tracer

	// Streamer overrides the spec-driven adapter (tests use scripted
	// streams)
	Streamer LLMStreamer

	// Specs overrides the provider table
	Specs map[string]llm.AdapterSpec

	// Summarizer overrides compaction's LLM summarizer
	Summarizer compaction.Summarizer

	// Auditor records executions; nil disables auditing
	Auditor tools.Auditor
}

// Runtime is the assembled agent core.
type Runtime struct {
	config RuntimeConfig

	store       *conversation.Store
	registry    *tools.Registry
	executor    *tools.Executor
	checkpoints *checkpoint.Engine
	compactor   *compaction.Engine
	streamer    LLMStreamer
	fs          host.Filesystem
	tracer      observability.Tracer

	mu    sync.Mutex
	state State

	unsubscribes []func()
}

// NewRuntime wires the full core. The registry is populated with the
// built-in core tools; callers may register more groups before the first
// turn.
func NewRuntime(config RuntimeConfig, deps Dependencies) (*Runtime, error) {
	config = config.withDefaults()
	if config.WorkspaceRoot == "" {
		return nil, fmt.Errorf("runtime requires a workspace root")
	}

	if deps.Filesystem == nil {
		deps.Filesystem = host.NewLocalFilesystem()
	}
	if deps.Shell == nil {
		deps.Shell = host.NewLocalShell()
	}
	if deps.Tracer == nil {
		deps.Tracer = observability.NewNoOpTracer()
	}

	store := conversation.NewStore()
	registry := tools.NewRegistry()
	if err := builtin.RegisterCore(registry, deps.Filesystem, deps.Shell, config.WorkspaceRoot); err != nil {
		return nil, fmt.Errorf("register core tools: %w", err)
	}

	checkpoints := checkpoint.NewEngine(deps.Filesystem, store, config.WorkspaceRoot,
		checkpoint.WithTracer(deps.Tracer))

	executor := tools.NewExecutor(registry, store, tools.ExecutorConfig{},
		tools.WithApprover(deps.Approver),
		tools.WithInteractor(deps.Interactor),
		tools.WithCheckpointFunc(checkpoints.CaptureFunc()),
		tools.WithAuditor(deps.Auditor),
		tools.WithExecutorTracer(deps.Tracer),
	)

	streamer := deps.Streamer
	if streamer == nil {
		specs := deps.Specs
		if specs == nil {
			specs = llm.BuiltinSpecs()
		}
		spec, ok := specs[config.LLM.Provider]
		if !ok {
			spec = llm.SpecForProtocol(config.LLM.Protocol)
		}
		streamer = llm.NewAdapter(spec, llm.WithTracer(deps.Tracer))
	}

	summarizer := deps.Summarizer
	if summarizer == nil {
		if adapter, ok := streamer.(*llm.Adapter); ok {
			summarizer = compaction.NewLLMSummarizer(adapter, config.LLM)
		}
	}
	compactor := compaction.NewEngine(compaction.GetTokenCounter(), summarizer)

	return &Runtime{
		config:      config,
		store:       store,
		registry:    registry,
		executor:    executor,
		checkpoints: checkpoints,
		compactor:   compactor,
		streamer:    streamer,
		fs:          deps.Filesystem,
		tracer:      deps.Tracer,
		state:       StateIdle,
	}, nil
}

// Store exposes the conversation store.
func (r *Runtime) Store() *conversation.Store { return r.store }

// Registry exposes the tool registry for additional group registration.
func (r *Runtime) Registry() *tools.Registry { return r.registry }

// Checkpoints exposes the checkpoint engine for restores.
func (r *Runtime) Checkpoints() *checkpoint.Engine { return r.checkpoints }

// State reports the turn loop's current state.
func (r *Runtime) State() State {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.state
}

func (r *Runtime) setState(s State) {
	r.mu.Lock()
	r.state = s
	r.mu.Unlock()
}

// Subscribe registers a store observer tied to the runtime's lifetime.
func (r *Runtime) Subscribe(fn func(conversation.Event)) func() {
	unsubscribe := r.store.Subscribe(fn)
	r.mu.Lock()
	r.unsubscribes = append(r.unsubscribes, unsubscribe)
	r.mu.Unlock()
	return unsubscribe
}

// Close tears the runtime down and revokes every subscription handle.
func (r *Runtime) Close() {
	r.mu.Lock()
	handles := r.unsubscribes
	r.unsubscribes = nil
	r.mu.Unlock()
	for _, unsubscribe := range handles {
		unsubscribe()
	}
	r.store.Close()
}

// loadContext is the tool-visibility selector for this runtime.
func (r *Runtime) loadContext() tools.LoadContext {
	return tools.LoadContext{
		Mode:        r.config.Mode,
		TemplateID:  r.config.TemplateID,
		Phase:       r.config.Phase,
		ExtraGroups: r.config.ExtraGroups,
	}
}
