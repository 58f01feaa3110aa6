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

package session

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/teradata-labs/adnify/pkg/types"
)

func sampleThread() types.Thread {
	content := "v1"
	return types.Thread{
		ID:        "thread-1",
		CreatedAt: time.Now().Truncate(time.Second),
		UpdatedAt: time.Now().Truncate(time.Second),
		Messages: []types.Message{
			{ID: "m1", Role: types.RoleUser, Content: "hi"},
			{
				ID: "m2", Role: types.RoleAssistant, Content: "hello",
				State: types.CompletionComplete,
				ToolCalls: []types.ToolCall{{
					ID: "t1", Name: "read_file",
					Arguments: map[string]interface{}{"path": "a.txt"},
					Status:    types.ToolCallSuccess,
				}},
			},
		},
		ContextItems: []types.ContextItem{
			{Kind: types.ContextFile, URI: "file:///a.txt"},
		},
		Checkpoints: []types.MessageCheckpoint{{
			ID: "cp1", MessageID: "m2",
			Files: map[string]types.FileSnapshot{
				"/ws/a.txt": {Content: &content, Existed: true},
			},
		}},
	}
}

func TestStore_SaveLoadRoundTrip(t *testing.T) {
	root := t.TempDir()
	store := NewStore(root)

	require.NoError(t, store.Save(sampleThread()))

	// Layout: .adnify/sessions/<threadId>.json
	_, err := os.Stat(filepath.Join(root, ".adnify", "sessions", "thread-1.json"))
	require.NoError(t, err)

	loaded, err := store.Load("thread-1")
	require.NoError(t, err)
	assert.Equal(t, "thread-1", loaded.ID)
	require.Len(t, loaded.Messages, 2)
	assert.Equal(t, "read_file", loaded.Messages[1].ToolCalls[0].Name)
	require.Len(t, loaded.Checkpoints, 1)
	require.NotNil(t, loaded.Checkpoints[0].Files["/ws/a.txt"].Content)
	assert.Equal(t, "v1", *loaded.Checkpoints[0].Files["/ws/a.txt"].Content)
}

func TestStore_GzipRoundTrip(t *testing.T) {
	root := t.TempDir()
	store := NewStore(root, WithGzip())

	require.NoError(t, store.Save(sampleThread()))
	_, err := os.Stat(filepath.Join(root, ".adnify", "sessions", "thread-1.json.gz"))
	require.NoError(t, err)

	loaded, err := store.Load("thread-1")
	require.NoError(t, err)
	assert.Equal(t, "thread-1", loaded.ID)
}

func TestStore_ListAndDelete(t *testing.T) {
	root := t.TempDir()
	store := NewStore(root)

	ids, err := store.List()
	require.NoError(t, err)
	assert.Empty(t, ids)

	thread := sampleThread()
	require.NoError(t, store.Save(thread))
	thread.ID = "thread-2"
	require.NoError(t, store.Save(thread))

	ids, err = store.List()
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"thread-1", "thread-2"}, ids)

	require.NoError(t, store.Delete("thread-1"))
	ids, _ = store.List()
	assert.Equal(t, []string{"thread-2"}, ids)

	// Deleting a missing session is not an error.
	assert.NoError(t, store.Delete("thread-1"))
}

func TestExecLog_RecordAndList(t *testing.T) {
	root := t.TempDir()
	log, err := OpenExecLog(root)
	require.NoError(t, err)
	defer log.Close()

	ctx := context.Background()
	require.NoError(t, log.RecordExecution(ctx, "thread-1", "m2", "t1", "read_file",
		map[string]interface{}{"path": "a.txt"}, types.ToolCallSuccess, 42*time.Millisecond, "contents"))
	require.NoError(t, log.RecordExecution(ctx, "thread-1", "m2", "t2", "run_command",
		map[string]interface{}{"command": "ls"}, types.ToolCallError, time.Second, "boom"))
	require.NoError(t, log.RecordExecution(ctx, "other", "m9", "t9", "read_file",
		nil, types.ToolCallSuccess, 0, ""))

	records, err := log.ListByThread(ctx, "thread-1")
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, "read_file", records[0].ToolName)
	assert.Contains(t, records[0].ArgsJSON, "a.txt")
	assert.Equal(t, int64(42), records[0].DurationMs)
	assert.Equal(t, string(types.ToolCallError), records[1].Status)
}
