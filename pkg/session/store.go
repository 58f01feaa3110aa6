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

// Package session persists threads under the per-workspace .adnify
// directory:
//
//	.adnify/sessions/<threadId>.json        (optionally gzip'd, .json.gz)
//	.adnify/checkpoints/<threadId>/...      (owned by the checkpoint engine)
//
// The conversation store stays the in-memory source of truth; this
// package only serializes snapshots.
package session

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/klauspost/compress/gzip"

	"github.com/teradata-labs/adnify/pkg/types"
)

// Store reads and writes thread snapshots.
type Store struct {
	dir  string
	gzip bool
}

// StoreOption customizes a Store.
type StoreOption func(*Store)

// WithGzip compresses session files.
func WithGzip() StoreOption {
	return func(s *Store) { s.gzip = true }
}

// NewStore creates a session store rooted at the workspace.
func NewStore(workspaceRoot string, opts ...StoreOption) *Store {
	s := &Store{dir: filepath.Join(workspaceRoot, ".adnify", "sessions")}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Store) path(threadID string) string {
	name := threadID + ".json"
	if s.gzip {
		name += ".gz"
	}
	return filepath.Join(s.dir, name)
}

// Save writes one thread snapshot.
func (s *Store) Save(thread types.Thread) error {
	if thread.ID == "" {
		return fmt.Errorf("save session: thread has no id")
	}
	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return fmt.Errorf("create session dir: %w", err)
	}

	raw, err := json.MarshalIndent(thread, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal thread %s: %w", thread.ID, err)
	}
	if s.gzip {
		var buf bytes.Buffer
		zw := gzip.NewWriter(&buf)
		if _, err := zw.Write(raw); err != nil {
			return fmt.Errorf("compress thread %s: %w", thread.ID, err)
		}
		if err := zw.Close(); err != nil {
			return fmt.Errorf("compress thread %s: %w", thread.ID, err)
		}
		raw = buf.Bytes()
	}

	// Write-then-rename keeps a crash from corrupting the session file.
	tmp := s.path(thread.ID) + ".tmp"
	if err := os.WriteFile(tmp, raw, 0o644); err != nil {
		return fmt.Errorf("write session %s: %w", thread.ID, err)
	}
	if err := os.Rename(tmp, s.path(thread.ID)); err != nil {
		return fmt.Errorf("write session %s: %w", thread.ID, err)
	}
	return nil
}

// Load reads one thread snapshot.
func (s *Store) Load(threadID string) (*types.Thread, error) {
	raw, err := os.ReadFile(s.path(threadID))
	if err != nil {
		return nil, fmt.Errorf("read session %s: %w", threadID, err)
	}
	if s.gzip {
		zr, err := gzip.NewReader(bytes.NewReader(raw))
		if err != nil {
			return nil, fmt.Errorf("decompress session %s: %w", threadID, err)
		}
		defer zr.Close()
		if raw, err = io.ReadAll(zr); err != nil {
			return nil, fmt.Errorf("decompress session %s: %w", threadID, err)
		}
	}

	var thread types.Thread
	if err := json.Unmarshal(raw, &thread); err != nil {
		return nil, fmt.Errorf("parse session %s: %w", threadID, err)
	}
	return &thread, nil
}

// List returns the persisted thread ids.
func (s *Store) List() ([]string, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("list sessions: %w", err)
	}
	var out []string
	for _, entry := range entries {
		name := entry.Name()
		name = strings.TrimSuffix(name, ".gz")
		if !strings.HasSuffix(name, ".json") {
			continue
		}
		out = append(out, strings.TrimSuffix(name, ".json"))
	}
	return out, nil
}

// Delete removes one persisted thread.
func (s *Store) Delete(threadID string) error {
	if err := os.Remove(s.path(threadID)); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("delete session %s: %w", threadID, err)
	}
	return nil
}
