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

package observability

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNoOpTracer_SpanTree(t *testing.T) {
	tracer := NewNoOpTracer()

	ctx, parent := tracer.StartSpan(context.Background(), KindLLM, "llm.stream",
		String("llm.model", "gpt-4.1"))
	assert.Equal(t, KindLLM, parent.Kind)
	assert.NotEmpty(t, parent.TraceID)
	assert.Empty(t, parent.ParentID)

	// A child started from the returned context joins the parent's trace.
	_, child := tracer.StartSpan(ctx, KindTool, "tool.execute",
		String("tool.name", "read_file"), Int("tool.args", 1))
	assert.Equal(t, parent.TraceID, child.TraceID)
	assert.Equal(t, parent.SpanID, child.ParentID)
	require.Len(t, child.Attributes, 2)
	assert.Equal(t, "read_file", child.Attributes[0].Value)

	tracer.EndSpan(child)
	tracer.EndSpan(parent)
	assert.False(t, parent.EndTime.IsZero())
	assert.GreaterOrEqual(t, parent.Duration, child.Duration)
}

func TestSpan_RecordError(t *testing.T) {
	tracer := NewNoOpTracer()
	_, span := tracer.StartSpan(context.Background(), KindCheckpoint, "checkpoint.restore")

	assert.False(t, span.Failed())
	span.RecordError(nil)
	assert.False(t, span.Failed())

	span.RecordError(fmt.Errorf("blob missing"))
	assert.True(t, span.Failed())
	assert.Equal(t, "blob missing", span.Err)
}

func TestSpanFromContext(t *testing.T) {
	assert.Nil(t, SpanFromContext(context.Background()))

	span := newSpan(nil, KindCompaction, "compaction.pass", nil)
	ctx := ContextWithSpan(context.Background(), span)
	assert.Equal(t, span, SpanFromContext(ctx))
}
