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
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuiltinSpecs(t *testing.T) {
	specs := BuiltinSpecs()
	require.Contains(t, specs, "openai")
	require.Contains(t, specs, "anthropic")
	require.Contains(t, specs, "google")

	anthropic := specs["anthropic"]
	assert.Equal(t, "2023-06-01", anthropic.Headers["anthropic-version"])
	assert.True(t, anthropic.Response.ArgsIsObject)
	assert.Equal(t, "content_block_stop", anthropic.Response.ToolCallStopEvent)

	openai := specs["openai"]
	assert.False(t, openai.Response.ArgsIsObject)
	assert.Equal(t, "[DONE]", openai.Response.DoneMarker)
}

func TestSpecForProtocol(t *testing.T) {
	assert.Equal(t, "anthropic", SpecForProtocol(ProtocolAnthropic).Name)
	assert.Equal(t, "google", SpecForProtocol(ProtocolGoogle).Name)
	assert.Equal(t, "openai", SpecForProtocol(ProtocolOpenAI).Name)
	assert.Equal(t, "openai", SpecForProtocol(ProtocolCustom).Name)
}

func TestLoadSpecs(t *testing.T) {
	dir := t.TempDir()
	spec := `
name: deepseek
protocol: openai
endpoint: /chat/completions
headers:
  Authorization: "Bearer {{apiKey}}"
bodyTemplate:
  model: "{{model}}"
  messages: "{{messages}}"
response:
  contentPath: choices.0.delta.content
  reasoningPath: choices.0.delta.reasoning_content
  finishReasonPath: choices.0.finish_reason
  doneMarker: "[DONE]"
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "deepseek.yaml"), []byte(spec), 0o644))

	specs, err := LoadSpecs(dir)
	require.NoError(t, err)

	// Builtins survive the merge; the new provider joins the table.
	assert.Contains(t, specs, "openai")
	require.Contains(t, specs, "deepseek")
	ds := specs["deepseek"]
	assert.Equal(t, ProtocolOpenAI, ds.Protocol)
	assert.Equal(t, "choices.0.delta.reasoning_content", ds.Response.ReasoningPath)
}

func TestLoadSpecs_RejectsNamelessSpec(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "bad.yaml"), []byte("endpoint: /x"), 0o644))

	_, err := LoadSpecs(dir)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "missing name")
}

func TestGetPath(t *testing.T) {
	doc := map[string]interface{}{
		"choices": []interface{}{
			map[string]interface{}{
				"delta": map[string]interface{}{"content": "hi"},
			},
		},
	}

	v, ok := getPath(doc, "choices.0.delta.content")
	require.True(t, ok)
	assert.Equal(t, "hi", v)

	_, ok = getPath(doc, "choices.1.delta")
	assert.False(t, ok)
	_, ok = getPath(doc, "missing")
	assert.False(t, ok)
	_, ok = getPath(doc, "")
	assert.False(t, ok)
}
