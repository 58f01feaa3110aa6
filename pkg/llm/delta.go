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

// DeltaKind tags the variant of a normalized streaming chunk.
type DeltaKind string

const (
	DeltaText          DeltaKind = "text"
	DeltaReasoning     DeltaKind = "reasoning"
	DeltaToolCallStart DeltaKind = "tool-call-start"
	DeltaToolCallDelta DeltaKind = "tool-call-delta"
	DeltaToolCallEnd   DeltaKind = "tool-call-end"
	DeltaFinishReason  DeltaKind = "finish-reason"
	DeltaError         DeltaKind = "error"
)

// Delta is the vendor-independent shape of one streaming chunk. Exactly
// the fields implied by Kind are set.
type Delta struct {
	Kind DeltaKind

	// Text carries content for text and reasoning deltas
	Text string

	// ToolCallID identifies the call for the three tool-call kinds
	ToolCallID string

	// ToolName is set on tool-call-start
	ToolName string

	// ArgsFragment is the raw argument fragment on tool-call-delta
	ArgsFragment string

	// FinishReason is set on finish-reason deltas
	FinishReason string

	// Err is set on error deltas; always a *Error
	Err error
}

// TextDelta constructs a text delta.
func TextDelta(s string) Delta { return Delta{Kind: DeltaText, Text: s} }

// ReasoningDelta constructs a reasoning delta.
func ReasoningDelta(s string) Delta { return Delta{Kind: DeltaReasoning, Text: s} }

// ToolCallStartDelta constructs a tool-call-start delta.
func ToolCallStartDelta(id, name string) Delta {
	return Delta{Kind: DeltaToolCallStart, ToolCallID: id, ToolName: name}
}

// ToolCallArgsDelta constructs a tool-call-delta carrying an argument fragment.
func ToolCallArgsDelta(id, fragment string) Delta {
	return Delta{Kind: DeltaToolCallDelta, ToolCallID: id, ArgsFragment: fragment}
}

// ToolCallEndDelta constructs a tool-call-end delta.
func ToolCallEndDelta(id string) Delta { return Delta{Kind: DeltaToolCallEnd, ToolCallID: id} }

// FinishDelta constructs a finish-reason delta.
func FinishDelta(reason string) Delta { return Delta{Kind: DeltaFinishReason, FinishReason: reason} }

// ErrorDelta constructs an error delta.
func ErrorDelta(err error) Delta { return Delta{Kind: DeltaError, Err: err} }
