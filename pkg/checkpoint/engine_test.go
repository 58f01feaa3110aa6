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

package checkpoint

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/teradata-labs/adnify/pkg/conversation"
	"github.com/teradata-labs/adnify/pkg/host"
	"github.com/teradata-labs/adnify/pkg/types"
)

func newTestEngine(t *testing.T) (*Engine, *conversation.Store, string, string, string) {
	t.Helper()
	root := t.TempDir()
	store := conversation.NewStore()
	thread := store.CreateThread()
	msgID, err := store.BeginAssistantMessage(thread.ID)
	require.NoError(t, err)
	require.NoError(t, store.FinalizeAssistantMessage(thread.ID, msgID, types.CompletionComplete))

	engine := NewEngine(host.NewLocalFilesystem(), store, root)
	return engine, store, root, thread.ID, msgID
}

func TestCaptureAndRestore_RoundTrip(t *testing.T) {
	engine, _, root, threadID, msgID := newTestEngine(t)

	target := filepath.Join(root, "a.txt")
	require.NoError(t, os.WriteFile(target, []byte("v1"), 0o644))

	cp, err := engine.Capture(context.Background(), threadID, msgID, []string{target}, "write_file: a.txt")
	require.NoError(t, err)
	require.NotNil(t, cp)
	require.Contains(t, cp.Files, target)
	require.NotNil(t, cp.Files[target].Content)
	assert.Equal(t, "v1", *cp.Files[target].Content)
	assert.True(t, cp.Files[target].Existed)

	// The tool writes after the snapshot.
	require.NoError(t, os.WriteFile(target, []byte("v2"), 0o644))

	report, err := engine.Restore(context.Background(), threadID, cp.ID)
	require.NoError(t, err)
	assert.True(t, report.Success)
	assert.Equal(t, []string{target}, report.RestoredFiles)
	assert.Empty(t, report.Errors)

	data, err := os.ReadFile(target)
	require.NoError(t, err)
	assert.Equal(t, "v1", string(data))
}

func TestCapture_RecordsNonexistentFiles(t *testing.T) {
	engine, _, root, threadID, msgID := newTestEngine(t)
	target := filepath.Join(root, "new.txt")

	cp, err := engine.Capture(context.Background(), threadID, msgID, []string{target}, "write_file: new.txt")
	require.NoError(t, err)
	snap := cp.Files[target]
	assert.False(t, snap.Existed)
	assert.Nil(t, snap.Content)

	// The tool creates the file; restore must delete it again.
	require.NoError(t, os.WriteFile(target, []byte("created"), 0o644))
	report, err := engine.Restore(context.Background(), threadID, cp.ID)
	require.NoError(t, err)
	assert.True(t, report.Success)
	_, err = os.Stat(target)
	assert.True(t, os.IsNotExist(err))
}

func TestRestore_TruncatesHistory(t *testing.T) {
	engine, store, root, threadID, msgID := newTestEngine(t)

	target := filepath.Join(root, "a.txt")
	require.NoError(t, os.WriteFile(target, []byte("v1"), 0o644))
	first, err := engine.Capture(context.Background(), threadID, msgID, []string{target}, "first")
	require.NoError(t, err)

	// A later turn with its own checkpoint and messages.
	msg2, err := store.BeginAssistantMessage(threadID)
	require.NoError(t, err)
	require.NoError(t, store.FinalizeAssistantMessage(threadID, msg2, types.CompletionComplete))
	_, err = engine.Capture(context.Background(), threadID, msg2, []string{target}, "second")
	require.NoError(t, err)

	report, err := engine.Restore(context.Background(), threadID, first.ID)
	require.NoError(t, err)
	assert.True(t, report.Success)

	cps, err := store.CheckpointsOldestFirst(threadID)
	require.NoError(t, err)
	require.Len(t, cps, 1)
	assert.Equal(t, first.ID, cps[0].ID)

	thread, err := store.Thread(threadID)
	require.NoError(t, err)
	// Messages after the owning assistant message were removed.
	assert.Equal(t, msgID, thread.Messages[len(thread.Messages)-1].ID)
}

func TestPersistence_ContentAddressedBlobs(t *testing.T) {
	engine, _, root, threadID, msgID := newTestEngine(t)

	a := filepath.Join(root, "a.txt")
	b := filepath.Join(root, "b.txt")
	require.NoError(t, os.WriteFile(a, []byte("same content"), 0o644))
	require.NoError(t, os.WriteFile(b, []byte("same content"), 0o644))

	cp, err := engine.Capture(context.Background(), threadID, msgID, []string{a, b}, "both")
	require.NoError(t, err)

	cpDir := filepath.Join(root, ".adnify", "checkpoints", threadID, cp.ID)
	entries, err := os.ReadDir(cpDir)
	require.NoError(t, err)
	// manifest.json plus exactly one deduplicated blob.
	require.Len(t, entries, 2)

	hash := hashContent("same content")
	_, err = os.Stat(filepath.Join(cpDir, hash))
	assert.NoError(t, err)

	// The manifest round-trips into an equal checkpoint.
	loaded, err := engine.LoadPersisted(threadID, cp.ID)
	require.NoError(t, err)
	assert.Equal(t, cp.ID, loaded.ID)
	assert.Equal(t, "same content", *loaded.Files[a].Content)
	assert.Equal(t, "same content", *loaded.Files[b].Content)
}

func TestRestore_PartialFailureContinues(t *testing.T) {
	engine, store, root, threadID, msgID := newTestEngine(t)

	good := filepath.Join(root, "good.txt")
	require.NoError(t, os.WriteFile(good, []byte("v1"), 0o644))

	// A path whose parent is a file cannot be written back.
	blocker := filepath.Join(root, "blocker")
	require.NoError(t, os.WriteFile(blocker, []byte("file"), 0o644))
	bad := filepath.Join(blocker, "child.txt")
	content := "unreachable"

	cp := types.MessageCheckpoint{
		ID:        "cp-partial",
		MessageID: msgID,
		Files: map[string]types.FileSnapshot{
			good: {Content: strPtr("v1"), Existed: true},
			bad:  {Content: &content, Existed: true},
		},
	}
	require.NoError(t, store.AppendCheckpoint(threadID, cp))
	require.NoError(t, os.WriteFile(good, []byte("v2"), 0o644))

	report, err := engine.Restore(context.Background(), threadID, "cp-partial")
	require.NoError(t, err)
	assert.False(t, report.Success)
	assert.Contains(t, report.RestoredFiles, good)
	require.Len(t, report.Errors, 1)
	assert.Contains(t, report.Errors[0], "child.txt")

	data, _ := os.ReadFile(good)
	assert.Equal(t, "v1", string(data))
}

func TestDescribe_IncludesDiffStats(t *testing.T) {
	engine, _, root, _, _ := newTestEngine(t)
	target := filepath.Join(root, "a.txt")
	require.NoError(t, os.WriteFile(target, []byte("hello world"), 0o644))

	description := engine.describe("write_file", []string{target},
		map[string]interface{}{"content": "hello brave world"})
	assert.Contains(t, description, "write_file: a.txt")
	assert.Contains(t, description, "+6/-0")
}

func strPtr(s string) *string { return &s }
