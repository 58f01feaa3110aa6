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

package conversation

import (
	"github.com/teradata-labs/adnify/pkg/types"
)

// Snapshots returned to readers share no mutable structure with the
// store's copy.

func cloneThread(t types.Thread) types.Thread {
	out := t
	out.Messages = make([]types.Message, len(t.Messages))
	for i, msg := range t.Messages {
		out.Messages[i] = cloneMessage(msg)
	}
	if t.ContextItems != nil {
		out.ContextItems = append([]types.ContextItem(nil), t.ContextItems...)
	}
	if t.Summary != nil {
		summary := *t.Summary
		out.Summary = &summary
	}
	if t.Checkpoints != nil {
		out.Checkpoints = make([]types.MessageCheckpoint, len(t.Checkpoints))
		for i, cp := range t.Checkpoints {
			out.Checkpoints[i] = cloneCheckpoint(cp)
		}
	}
	return out
}

func cloneMessage(m types.Message) types.Message {
	out := m
	if m.Images != nil {
		out.Images = append([]types.ImageAttachment(nil), m.Images...)
	}
	if m.ToolCalls != nil {
		out.ToolCalls = make([]types.ToolCall, len(m.ToolCalls))
		for i, call := range m.ToolCalls {
			out.ToolCalls[i] = cloneToolCall(call)
		}
	}
	if m.Parts != nil {
		out.Parts = append([]types.ContentPart(nil), m.Parts...)
	}
	return out
}

func cloneToolCall(c types.ToolCall) types.ToolCall {
	out := c
	if c.Arguments != nil {
		out.Arguments = cloneArgs(c.Arguments)
	}
	if c.RichContent != nil {
		out.RichContent = append([]types.ContentPart(nil), c.RichContent...)
	}
	if c.Streaming != nil {
		streaming := *c.Streaming
		if c.Streaming.PartialArgs != nil {
			streaming.PartialArgs = cloneArgs(c.Streaming.PartialArgs)
		}
		out.Streaming = &streaming
	}
	return out
}

func cloneArgs(args map[string]interface{}) map[string]interface{} {
	out := make(map[string]interface{}, len(args))
	for k, v := range args {
		out[k] = v
	}
	return out
}

func cloneCheckpoint(cp types.MessageCheckpoint) types.MessageCheckpoint {
	out := cp
	out.Files = make(map[string]types.FileSnapshot, len(cp.Files))
	for path, snap := range cp.Files {
		out.Files[path] = snap
	}
	return out
}
