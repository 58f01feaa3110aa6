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

// Package observability traces the four operation families of the agent
// runtime: LLM streams, tool executions, checkpoint captures/restores,
// and compaction passes. Spans are typed by kind so backends can cost-
// attribute without parsing names. The no-op tracer is used in tests and
// when tracing is disabled.
package observability

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// SpanKind classifies a span by the runtime subsystem that emitted it.
type SpanKind string

const (
	KindLLM        SpanKind = "llm"
	KindTool       SpanKind = "tool"
	KindCheckpoint SpanKind = "checkpoint"
	KindCompaction SpanKind = "compaction"
)

// Attribute is one typed key/value annotation on a span.
type Attribute struct {
	Key   string
	Value interface{}
}

// String builds a string attribute.
func String(key, value string) Attribute {
	return Attribute{Key: key, Value: value}
}

// Int builds an integer attribute.
func Int(key string, value int) Attribute {
	return Attribute{Key: key, Value: value}
}

// Span is one traced operation. Spans form a tree via ParentID.
type Span struct {
	TraceID  string
	SpanID   string
	ParentID string

	// Kind is the emitting subsystem; Name the operation within it
	// ("llm.stream", "tool.execute", "checkpoint.restore").
	Kind SpanKind
	Name string

	Attributes []Attribute

	StartTime time.Time
	EndTime   time.Time
	Duration  time.Duration

	// Err holds the failure message when the operation failed.
	Err string
}

// newSpan creates a span, inheriting the trace from a parent when one is
// present.
func newSpan(parent *Span, kind SpanKind, name string, attrs []Attribute) *Span {
	span := &Span{
		SpanID:     uuid.New().String(),
		Kind:       kind,
		Name:       name,
		Attributes: attrs,
		StartTime:  time.Now(),
	}
	if parent != nil {
		span.TraceID = parent.TraceID
		span.ParentID = parent.SpanID
	} else {
		span.TraceID = uuid.New().String()
	}
	return span
}

// SetAttribute appends an attribute after span creation.
func (s *Span) SetAttribute(key string, value interface{}) {
	s.Attributes = append(s.Attributes, Attribute{Key: key, Value: value})
}

// RecordError marks the span failed.
func (s *Span) RecordError(err error) {
	if err == nil {
		return
	}
	s.Err = err.Error()
}

// Failed reports whether an error was recorded.
func (s *Span) Failed() bool {
	return s.Err != ""
}

// Tracer receives runtime spans and metrics.
//
// Thread-safe: All methods can be called concurrently.
type Tracer interface {
	// StartSpan opens a span of the given kind and returns a context
	// carrying it; child spans started from that context link to it.
	StartSpan(ctx context.Context, kind SpanKind, name string, attrs ...Attribute) (context.Context, *Span)

	// EndSpan completes a span, calculates duration, and exports it.
	// Always call this via defer after StartSpan.
	EndSpan(span *Span)

	// RecordMetric records a point-in-time metric value with labels.
	RecordMetric(name string, value float64, labels map[string]string)

	// Flush forces immediate export of buffered spans and metrics.
	Flush(ctx context.Context) error
}

type contextKey string

const spanContextKey contextKey = "adnify.span"

// SpanFromContext retrieves the current span from context, if any.
func SpanFromContext(ctx context.Context) *Span {
	if span, ok := ctx.Value(spanContextKey).(*Span); ok {
		return span
	}
	return nil
}

// ContextWithSpan returns a new context with the span attached.
func ContextWithSpan(ctx context.Context, span *Span) context.Context {
	return context.WithValue(ctx, spanContextKey, span)
}
