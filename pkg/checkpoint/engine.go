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

// Package checkpoint snapshots file state before write-shaped tools run,
// enabling deterministic byte-for-byte rollback tied to assistant turns.
//
// Snapshots are captured strictly before the corresponding tool's writes.
// On disk, content is stored once per SHA-256 under
// <workspace>/.adnify/checkpoints/<threadID>/<checkpointID>/.
package checkpoint

import (
	"context"
	"encoding/json"
	"fmt"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sergi/go-diff/diffmatchpatch"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/teradata-labs/adnify/pkg/host"
	"github.com/teradata-labs/adnify/pkg/observability"
	"github.com/teradata-labs/adnify/pkg/tools"
	"github.com/teradata-labs/adnify/pkg/types"
)

// snapshotReadConcurrency bounds parallel file reads during capture.
const snapshotReadConcurrency = 4

// ThreadStore is the slice of the conversation store the engine needs.
type ThreadStore interface {
	AppendCheckpoint(threadID string, cp types.MessageCheckpoint) error
	Checkpoint(threadID, checkpointID string) (types.MessageCheckpoint, error)
	TruncateAfterCheckpoint(threadID, checkpointID string) error
}

// manifest is the persisted checkpoint index.
type manifest struct {
	ID          string         `json:"id"`
	MessageID   string         `json:"messageId"`
	Description string         `json:"description"`
	Timestamp   time.Time      `json:"timestamp"`
	Files       []manifestFile `json:"files"`
}

type manifestFile struct {
	Path    string `json:"path"`
	Hash    string `json:"hash,omitempty"`
	Existed bool   `json:"existed"`
}

// Engine captures and restores file snapshots.
type Engine struct {
	fs     host.Filesystem
	store  ThreadStore
	dir    string
	tracer observability.Tracer
	differ *diffmatchpatch.DiffMatchPatch
}

// EngineOption customizes an Engine.
type EngineOption func(*Engine)

// WithTracer attaches an observability tracer.
func WithTracer(t observability.Tracer) EngineOption {
	return func(e *Engine) { e.tracer = t }
}

// NewEngine creates a checkpoint engine rooted at the workspace.
func NewEngine(fs host.Filesystem, store ThreadStore, workspaceRoot string, opts ...EngineOption) *Engine {
	e := &Engine{
		fs:     fs,
		store:  store,
		dir:    filepath.Join(workspaceRoot, ".adnify", "checkpoints"),
		tracer: observability.NewNoOpTracer(),
		differ: diffmatchpatch.New(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// CaptureFunc adapts the engine to the executor's pre-write hook. Tools
// that declare no target paths are not checkpointable and capture
// nothing.
func (e *Engine) CaptureFunc() tools.CheckpointFunc {
	return func(ctx context.Context, ec tools.ExecContext, tool tools.Tool, call types.ToolCall, args map[string]interface{}) error {
		writer, ok := tool.(tools.FileWriter)
		if !ok {
			return nil
		}
		paths := writer.TargetPaths(args)
		if len(paths) == 0 {
			return nil
		}
		description := e.describe(call.Name, paths, args)
		_, err := e.Capture(ctx, ec.ThreadID, ec.MessageID, paths, description)
		return err
	}
}

// Capture snapshots the given paths into a new checkpoint bound to the
// assistant message and appends it to the thread.
func (e *Engine) Capture(ctx context.Context, threadID, messageID string, paths []string, description string) (*types.MessageCheckpoint, error) {
	sctx, span := e.tracer.StartSpan(ctx, observability.KindCheckpoint, "checkpoint.capture",
		observability.Int("checkpoint.paths", len(paths)))
	defer e.tracer.EndSpan(span)
	ctx = sctx

	cp := types.MessageCheckpoint{
		ID:          uuid.New().String(),
		MessageID:   messageID,
		CreatedAt:   time.Now(),
		Description: description,
		Files:       make(map[string]types.FileSnapshot, len(paths)),
	}

	var mu sync.Mutex
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(snapshotReadConcurrency)
	for _, path := range dedupe(paths) {
		path := path
		g.Go(func() error {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			content, exists, err := e.fs.Read(path)
			if err != nil {
				return fmt.Errorf("snapshot %s: %w", path, err)
			}
			snap := types.FileSnapshot{Existed: exists}
			if exists {
				snap.Content = &content
			}
			mu.Lock()
			cp.Files[path] = snap
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	if err := e.persist(threadID, cp); err != nil {
		// Disk persistence is best-effort; the in-memory checkpoint still
		// guards the turn.
		zap.L().Warn("checkpoint persistence failed",
			zap.String("checkpoint", cp.ID),
			zap.Error(err),
		)
	}

	if err := e.store.AppendCheckpoint(threadID, cp); err != nil {
		return nil, fmt.Errorf("append checkpoint: %w", err)
	}

	zap.L().Debug("checkpoint captured",
		zap.String("checkpoint", cp.ID),
		zap.String("message", messageID),
		zap.Int("files", len(cp.Files)),
	)
	return &cp, nil
}

// persist writes the manifest and content-addressed blobs.
func (e *Engine) persist(threadID string, cp types.MessageCheckpoint) error {
	cpDir := filepath.Join(e.dir, threadID, cp.ID)
	blobs := newBlobStore(e.fs, cpDir)

	m := manifest{
		ID:          cp.ID,
		MessageID:   cp.MessageID,
		Description: cp.Description,
		Timestamp:   cp.CreatedAt,
	}
	for _, path := range sortedPaths(cp.Files) {
		snap := cp.Files[path]
		entry := manifestFile{Path: path, Existed: snap.Existed}
		if snap.Content != nil {
			hash, err := blobs.put(*snap.Content)
			if err != nil {
				return err
			}
			entry.Hash = hash
		}
		m.Files = append(m.Files, entry)
	}

	raw, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal manifest: %w", err)
	}
	return e.fs.Write(filepath.Join(cpDir, "manifest.json"), string(raw))
}

// LoadPersisted rebuilds a checkpoint from its on-disk manifest and
// blobs, for threads rehydrated from a saved session.
func (e *Engine) LoadPersisted(threadID, checkpointID string) (*types.MessageCheckpoint, error) {
	cpDir := filepath.Join(e.dir, threadID, checkpointID)
	raw, exists, err := e.fs.Read(filepath.Join(cpDir, "manifest.json"))
	if err != nil {
		return nil, err
	}
	if !exists {
		return nil, fmt.Errorf("checkpoint %s has no manifest", checkpointID)
	}
	var m manifest
	if err := json.Unmarshal([]byte(raw), &m); err != nil {
		return nil, fmt.Errorf("parse manifest: %w", err)
	}

	blobs := newBlobStore(e.fs, cpDir)
	cp := &types.MessageCheckpoint{
		ID:          m.ID,
		MessageID:   m.MessageID,
		CreatedAt:   m.Timestamp,
		Description: m.Description,
		Files:       make(map[string]types.FileSnapshot, len(m.Files)),
	}
	for _, entry := range m.Files {
		snap := types.FileSnapshot{Existed: entry.Existed}
		if entry.Existed {
			content, err := blobs.get(entry.Hash)
			if err != nil {
				return nil, err
			}
			snap.Content = &content
		}
		cp.Files[entry.Path] = snap
	}
	return cp, nil
}

// RestoreReport is the outcome of a restore.
type RestoreReport struct {
	Success       bool
	RestoredFiles []string
	Errors        []string
}

// Restore writes every snapshot in the checkpoint back to disk, deletes
// files that did not exist at capture time, and truncates the thread's
// newer checkpoints and messages. A path that fails produces an error
// entry without aborting the rest.
func (e *Engine) Restore(ctx context.Context, threadID, checkpointID string) (*RestoreReport, error) {
	_, span := e.tracer.StartSpan(ctx, observability.KindCheckpoint, "checkpoint.restore",
		observability.String("checkpoint.id", checkpointID))
	defer e.tracer.EndSpan(span)

	cp, err := e.store.Checkpoint(threadID, checkpointID)
	if err != nil {
		return nil, err
	}

	report := &RestoreReport{}
	for _, path := range sortedPaths(cp.Files) {
		snap := cp.Files[path]
		if snap.Content == nil {
			if e.fs.Exists(path) {
				if err := e.fs.Delete(path); err != nil {
					report.Errors = append(report.Errors, fmt.Sprintf("%s: %v", path, err))
					continue
				}
			}
			report.RestoredFiles = append(report.RestoredFiles, path)
			continue
		}
		if err := e.fs.Write(path, *snap.Content); err != nil {
			report.Errors = append(report.Errors, fmt.Sprintf("%s: %v", path, err))
			continue
		}
		report.RestoredFiles = append(report.RestoredFiles, path)
	}

	if err := e.store.TruncateAfterCheckpoint(threadID, checkpointID); err != nil {
		report.Errors = append(report.Errors, fmt.Sprintf("truncate history: %v", err))
	}

	report.Success = len(report.Errors) == 0
	zap.L().Info("checkpoint restored",
		zap.String("checkpoint", checkpointID),
		zap.Int("files", len(report.RestoredFiles)),
		zap.Int("errors", len(report.Errors)),
	)
	return report, nil
}

// describe builds the checkpoint's short description: the tool, its
// targets, and a size delta when the new content is known.
func (e *Engine) describe(toolName string, paths []string, args map[string]interface{}) string {
	names := make([]string, len(paths))
	for i, path := range paths {
		names[i] = filepath.Base(path)
	}
	description := fmt.Sprintf("%s: %s", toolName, strings.Join(names, ", "))

	newContent, ok := args["content"].(string)
	if !ok || len(paths) != 1 {
		return description
	}
	oldContent, exists, err := e.fs.Read(paths[0])
	if err != nil || !exists {
		return description
	}
	inserted, deleted := 0, 0
	for _, d := range e.differ.DiffMain(oldContent, newContent, false) {
		switch d.Type {
		case diffmatchpatch.DiffInsert:
			inserted += len(d.Text)
		case diffmatchpatch.DiffDelete:
			deleted += len(d.Text)
		}
	}
	return fmt.Sprintf("%s (+%d/-%d chars)", description, inserted, deleted)
}

func sortedPaths(files map[string]types.FileSnapshot) []string {
	paths := make([]string, 0, len(files))
	for path := range files {
		paths = append(paths, path)
	}
	sort.Strings(paths)
	return paths
}

func dedupe(paths []string) []string {
	seen := make(map[string]bool, len(paths))
	var out []string
	for _, path := range paths {
		if !seen[path] {
			seen[path] = true
			out = append(out, path)
		}
	}
	return out
}
