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

package llm

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/teradata-labs/adnify/pkg/observability"
	"github.com/teradata-labs/adnify/pkg/types"
)

// scanBufferSize bounds a single SSE line; large tool results can produce
// long data lines.
const scanBufferSize = 1 << 20

// Adapter performs one streaming request against a provider described by
// an AdapterSpec and yields normalized deltas. The adapter itself never
// retries; it surfaces classified errors for the turn loop to act on.
type Adapter struct {
	spec   AdapterSpec
	client *http.Client
	tracer observability.Tracer
}

// AdapterOption customizes an Adapter.
type AdapterOption func(*Adapter)

// WithHTTPClient overrides the HTTP client (tests use httptest clients).
func WithHTTPClient(c *http.Client) AdapterOption {
	return func(a *Adapter) { a.client = c }
}

// WithTracer attaches an observability tracer.
func WithTracer(t observability.Tracer) AdapterOption {
	return func(a *Adapter) { a.tracer = t }
}

// NewAdapter creates an adapter for one provider spec.
func NewAdapter(spec AdapterSpec, opts ...AdapterOption) *Adapter {
	if spec.Method == "" {
		spec.Method = http.MethodPost
	}
	a := &Adapter{
		spec:   spec,
		client: &http.Client{},
		tracer: observability.NewNoOpTracer(),
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Stream performs the request and returns the delta channel. The channel
// is closed when the stream ends, errors, or the context is cancelled; a
// cancelled stream ends with one Error delta of kind aborted so partially
// accumulated text upstream is retained.
func (a *Adapter) Stream(ctx context.Context, cfg Config, messages []types.Message, systemPrompt string, tools []ToolDefinition) <-chan Delta {
	out := make(chan Delta, 16)
	go func() {
		defer close(out)
		a.stream(ctx, cfg, messages, systemPrompt, tools, out)
	}()
	return out
}

func (a *Adapter) stream(parent context.Context, cfg Config, messages []types.Message, systemPrompt string, tools []ToolDefinition, out chan<- Delta) {
	ctx, cancel := context.WithTimeout(parent, cfg.EffectiveTimeout())
	defer cancel()

	sctx, span := a.tracer.StartSpan(ctx, observability.KindLLM, "llm.stream",
		observability.String("llm.provider", cfg.Provider),
		observability.String("llm.model", cfg.Model))
	defer a.tracer.EndSpan(span)
	ctx = sctx

	req, err := a.buildRequest(ctx, cfg, messages, systemPrompt, tools)
	if err != nil {
		span.RecordError(err)
		out <- ErrorDelta(NewError(ErrInvalidReq, "request synthesis: %v", err))
		return
	}

	resp, err := a.client.Do(req)
	if err != nil {
		classified := a.classifyRequestError(parent, ctx, err)
		span.RecordError(classified)
		out <- ErrorDelta(classified)
		return
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		classified := ClassifyHTTP(resp.StatusCode, string(body))
		span.RecordError(classified)
		out <- ErrorDelta(classified)
		return
	}

	if err := a.decode(ctx, resp.Body, out); err != nil {
		classified := a.classifyRequestError(parent, ctx, err)
		span.RecordError(classified)
		out <- ErrorDelta(classified)
	}
}

// classifyRequestError distinguishes a user abort from the hard request
// timeout before falling back to transport classification.
func (a *Adapter) classifyRequestError(parent, ctx context.Context, err error) *Error {
	if parent.Err() != nil {
		return NewError(ErrAborted, "cancelled")
	}
	if ctx.Err() == context.DeadlineExceeded {
		return NewError(ErrTimeout, "timeout")
	}
	return ClassifyTransport(err)
}

// buildRequest synthesizes the HTTP request from the spec: body template
// token substitution, sampling parameters, tool definitions, and headers.
func (a *Adapter) buildRequest(ctx context.Context, cfg Config, messages []types.Message, systemPrompt string, tools []ToolDefinition) (*http.Request, error) {
	protocol := a.spec.Protocol
	if protocol == "" {
		protocol = cfg.Protocol
	}
	wire, system := translateMessages(protocol, messages, systemPrompt)

	body, err := cloneTemplate(a.spec.BodyTemplate)
	if err != nil {
		return nil, err
	}
	substituteTokens(body, cfg.Model, wire, system)
	applySampling(body, cfg, protocol)

	if defs := translateTools(protocol, tools); defs != nil {
		body["tools"] = defs
		applyToolChoice(body, cfg, protocol)
	}

	payload, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("marshal body: %w", err)
	}

	endpoint := strings.ReplaceAll(a.spec.Endpoint, "{{model}}", cfg.Model)
	url := strings.TrimRight(cfg.BaseURL, "/") + endpoint

	req, err := http.NewRequestWithContext(ctx, a.spec.Method, url, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	for k, v := range a.spec.Headers {
		req.Header.Set(k, strings.ReplaceAll(v, "{{apiKey}}", cfg.APIKey))
	}
	for k, v := range cfg.Headers {
		req.Header.Set(k, v)
	}
	req.Header.Set("Accept", "text/event-stream")

	zap.L().Debug("llm request synthesized",
		zap.String("spec", a.spec.Name),
		zap.String("model", cfg.Model),
		zap.Int("messages", len(messages)),
		zap.Int("tools", len(tools)),
	)
	return req, nil
}

// cloneTemplate deep-copies the body template so substitution never
// mutates the spec.
func cloneTemplate(tmpl map[string]interface{}) (map[string]interface{}, error) {
	if tmpl == nil {
		return map[string]interface{}{}, nil
	}
	raw, err := json.Marshal(tmpl)
	if err != nil {
		return nil, fmt.Errorf("clone template: %w", err)
	}
	var out map[string]interface{}
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, fmt.Errorf("clone template: %w", err)
	}
	return out, nil
}

// substituteTokens replaces {{model}}, {{messages}}, and {{system}}
// wherever they appear as string values in the template.
func substituteTokens(node map[string]interface{}, model string, messages []interface{}, system string) {
	for k, v := range node {
		switch val := v.(type) {
		case string:
			switch val {
			case "{{model}}":
				node[k] = model
			case "{{messages}}":
				node[k] = messages
			case "{{system}}":
				if system == "" {
					delete(node, k)
				} else {
					node[k] = system
				}
			}
		case map[string]interface{}:
			substituteTokens(val, model, messages, system)
		}
	}
}

// applySampling writes the config's sampling parameters into the body
// using the protocol's field names.
func applySampling(body map[string]interface{}, cfg Config, protocol Protocol) {
	switch protocol {
	case ProtocolGoogle:
		gen := map[string]interface{}{}
		if cfg.Temperature != nil {
			gen["temperature"] = *cfg.Temperature
		}
		if cfg.TopP != nil {
			gen["topP"] = *cfg.TopP
		}
		if cfg.TopK != nil {
			gen["topK"] = *cfg.TopK
		}
		if cfg.MaxTokens > 0 {
			gen["maxOutputTokens"] = cfg.MaxTokens
		}
		if len(cfg.StopSequences) > 0 {
			gen["stopSequences"] = cfg.StopSequences
		}
		if len(gen) > 0 {
			body["generationConfig"] = gen
		}

	case ProtocolAnthropic:
		if cfg.Temperature != nil {
			body["temperature"] = *cfg.Temperature
		}
		if cfg.TopP != nil {
			body["top_p"] = *cfg.TopP
		}
		if cfg.TopK != nil {
			body["top_k"] = *cfg.TopK
		}
		maxTokens := cfg.MaxTokens
		if maxTokens == 0 {
			maxTokens = 4096
		}
		body["max_tokens"] = maxTokens
		if len(cfg.StopSequences) > 0 {
			body["stop_sequences"] = cfg.StopSequences
		}
		if cfg.ReasoningEnabled {
			body["thinking"] = map[string]interface{}{"type": "enabled", "budget_tokens": 4096}
		}
		body["stream"] = true

	default:
		if cfg.Temperature != nil {
			body["temperature"] = *cfg.Temperature
		}
		if cfg.TopP != nil {
			body["top_p"] = *cfg.TopP
		}
		if cfg.FrequencyPenalty != nil {
			body["frequency_penalty"] = *cfg.FrequencyPenalty
		}
		if cfg.PresencePenalty != nil {
			body["presence_penalty"] = *cfg.PresencePenalty
		}
		if cfg.Seed != nil {
			body["seed"] = *cfg.Seed
		}
		if len(cfg.LogitBias) > 0 {
			body["logit_bias"] = cfg.LogitBias
		}
		if cfg.MaxTokens > 0 {
			body["max_tokens"] = cfg.MaxTokens
		}
		if len(cfg.StopSequences) > 0 {
			body["stop"] = cfg.StopSequences
		}
		body["stream"] = true
	}
}

// applyToolChoice writes the tool-choice policy when set.
func applyToolChoice(body map[string]interface{}, cfg Config, protocol Protocol) {
	if cfg.ToolChoice == "" {
		return
	}
	switch protocol {
	case ProtocolAnthropic:
		body["tool_choice"] = map[string]interface{}{"type": cfg.ToolChoice}
	case ProtocolGoogle:
		// Gemini expresses tool choice through toolConfig.
		body["toolConfig"] = map[string]interface{}{
			"functionCallingConfig": map[string]interface{}{"mode": strings.ToUpper(cfg.ToolChoice)},
		}
	default:
		body["tool_choice"] = cfg.ToolChoice
		body["parallel_tool_calls"] = cfg.ParallelToolCalls
	}
}

// toolCallState accumulates one tool call across fragments.
type toolCallState struct {
	id      string
	name    string
	started bool
	ended   bool
	pending []string // args fragments seen before the start was emitted
}

// streamDecoder demultiplexes vendor SSE frames into normalized deltas.
type streamDecoder struct {
	spec  ResponseSpec
	emit  func(Delta) bool
	calls map[string]*toolCallState
	order []string
}

// decode reads the SSE body to completion. Both "data: ...\n\n" and
// "event: ...\ndata: ...\n\n" framings are accepted.
func (a *Adapter) decode(ctx context.Context, body io.Reader, out chan<- Delta) error {
	dec := &streamDecoder{
		spec:  a.spec.Response,
		calls: make(map[string]*toolCallState),
		emit: func(d Delta) bool {
			select {
			case out <- d:
				return true
			case <-ctx.Done():
				return false
			}
		},
	}

	scanner := bufio.NewScanner(body)
	scanner.Buffer(make([]byte, 64*1024), scanBufferSize)

	eventName := ""
	for scanner.Scan() {
		line := scanner.Text()
		switch {
		case line == "":
			eventName = ""
			continue
		case strings.HasPrefix(line, "event:"):
			eventName = strings.TrimSpace(strings.TrimPrefix(line, "event:"))
			continue
		case strings.HasPrefix(line, "data:"):
			data := strings.TrimSpace(strings.TrimPrefix(line, "data:"))
			done, err := dec.handleFrame(eventName, data)
			if err != nil {
				return err
			}
			if done {
				// Done via marker returns nil; done via cancellation
				// surfaces the context error.
				return ctx.Err()
			}
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
	}
	if err := scanner.Err(); err != nil {
		return err
	}
	return ctx.Err()
}

// handleFrame projects one decoded SSE data payload. Returns done=true at
// the spec's done marker.
func (d *streamDecoder) handleFrame(eventName, data string) (bool, error) {
	if d.spec.DoneMarker != "" && (data == d.spec.DoneMarker || eventName == d.spec.DoneMarker) {
		d.closeOpenCalls()
		return true, nil
	}

	var event interface{}
	if err := json.Unmarshal([]byte(data), &event); err != nil {
		// Malformed frames are skipped; the stream continues.
		return false, nil
	}

	eventType := eventName
	if t, ok := getString(event, "type"); ok {
		eventType = t
	}
	if d.spec.DoneMarker != "" && eventType == d.spec.DoneMarker {
		d.closeOpenCalls()
		return true, nil
	}
	if d.spec.ToolCallStopEvent != "" && eventType == d.spec.ToolCallStopEvent {
		d.closeCurrentCall()
		return false, nil
	}

	if text, ok := getString(event, d.spec.ContentPath); ok {
		if !d.emit(TextDelta(text)) {
			return true, nil
		}
	}
	if text, ok := getString(event, d.spec.ReasoningPath); ok {
		if !d.emit(ReasoningDelta(text)) {
			return true, nil
		}
	}

	d.projectToolFragments(event)

	if reason, ok := getString(event, d.spec.FinishReasonPath); ok {
		if finishImpliesToolEnd(reason) {
			d.closeOpenCalls()
		}
		if !d.emit(FinishDelta(reason)) {
			return true, nil
		}
	}
	return false, nil
}

// projectToolFragments walks the event's tool-call fragments. With an
// empty ToolCallsPath the event root itself is treated as one fragment.
func (d *streamDecoder) projectToolFragments(event interface{}) {
	var fragments []interface{}
	if d.spec.ToolCallsPath == "" {
		fragments = []interface{}{event}
	} else {
		raw, ok := getPath(event, d.spec.ToolCallsPath)
		if !ok {
			return
		}
		arr, ok := raw.([]interface{})
		if !ok {
			fragments = []interface{}{raw}
		} else {
			fragments = arr
		}
	}

	for _, frag := range fragments {
		d.projectFragment(frag)
	}
}

func (d *streamDecoder) projectFragment(frag interface{}) {
	id, _ := getString(frag, d.spec.ToolIDPath)
	name, _ := getString(frag, d.spec.ToolNamePath)

	key := d.fragmentKey(frag, id)
	if key == "" {
		return
	}

	state, ok := d.calls[key]
	if !ok {
		if id == "" && name == "" {
			// A fragment that names no call contributes nothing new.
			return
		}
		state = &toolCallState{}
		d.calls[key] = state
		d.order = append(d.order, key)
	}
	if id != "" && state.id == "" {
		state.id = id
	}
	if name != "" && state.name == "" {
		state.name = name
	}

	// Start is emitted at the first fragment carrying the name; a missing
	// provider id is generated locally.
	if !state.started && state.name != "" {
		if state.id == "" {
			state.id = "call_" + uuid.New().String()[:8]
		}
		state.started = true
		d.emit(ToolCallStartDelta(state.id, state.name))
		for _, pending := range state.pending {
			d.emit(ToolCallArgsDelta(state.id, pending))
		}
		state.pending = nil
	}

	if fragment, ok := d.argsFragment(frag); ok {
		if state.started {
			d.emit(ToolCallArgsDelta(state.id, fragment))
		} else {
			state.pending = append(state.pending, fragment)
		}
	}
}

// fragmentKey picks the accumulation key: provider id, the fragment's
// index field, or the most recently started call for id-less fragments.
func (d *streamDecoder) fragmentKey(frag interface{}, id string) string {
	if raw, ok := getPath(frag, "index"); ok {
		if n, ok := raw.(float64); ok {
			return "idx:" + strconv.Itoa(int(n))
		}
	}
	if id != "" {
		return "id:" + id
	}
	if name, ok := getString(frag, d.spec.ToolNamePath); ok && name != "" {
		return "name:" + name
	}
	if _, hasArgs := d.argsFragment(frag); hasArgs {
		// An id-less argument fragment belongs to the current open call.
		for i := len(d.order) - 1; i >= 0; i-- {
			if !d.calls[d.order[i]].ended {
				return d.order[i]
			}
		}
	}
	return ""
}

// argsFragment extracts the argument payload of a fragment. Vendors with
// argsIsObject stream already-parsed objects, which are re-serialized
// into a single fragment; others contribute raw string pieces.
func (d *streamDecoder) argsFragment(frag interface{}) (string, bool) {
	raw, ok := getPath(frag, d.spec.ToolArgsPath)
	if !ok {
		return "", false
	}
	switch v := raw.(type) {
	case string:
		if v == "" {
			return "", false
		}
		return v, true
	case map[string]interface{}:
		if !d.spec.ArgsIsObject || len(v) == 0 {
			return "", false
		}
		data, err := json.Marshal(v)
		if err != nil {
			return "", false
		}
		return string(data), true
	default:
		return "", false
	}
}

// closeCurrentCall ends the most recently started still-open call.
func (d *streamDecoder) closeCurrentCall() {
	for i := len(d.order) - 1; i >= 0; i-- {
		state := d.calls[d.order[i]]
		if state.started && !state.ended {
			state.ended = true
			d.emit(ToolCallEndDelta(state.id))
			return
		}
	}
}

// closeOpenCalls ends every open call in first-appearance order.
func (d *streamDecoder) closeOpenCalls() {
	for _, key := range d.order {
		state := d.calls[key]
		if state.started && !state.ended {
			state.ended = true
			d.emit(ToolCallEndDelta(state.id))
		}
	}
}

// finishImpliesToolEnd reports whether a finish reason implicitly closes
// any open tool calls.
func finishImpliesToolEnd(reason string) bool {
	switch reason {
	case "tool_calls", "tool_use", "stop", "end_turn", "function_call", "STOP":
		return true
	}
	return false
}
