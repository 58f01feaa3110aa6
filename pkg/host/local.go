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

package host

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"

	"go.uber.org/zap"
)

// LocalFilesystem implements Filesystem on the process's own OS view.
type LocalFilesystem struct{}

// NewLocalFilesystem creates a filesystem bridge backed by the local OS.
func NewLocalFilesystem() *LocalFilesystem {
	return &LocalFilesystem{}
}

func (f *LocalFilesystem) Read(path string) (string, bool, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return "", false, nil
		}
		return "", false, fmt.Errorf("read %s: %w", path, err)
	}
	return string(data), true, nil
}

func (f *LocalFilesystem) Write(path string, content string) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("mkdir %s: %w", dir, err)
		}
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	return nil
}

func (f *LocalFilesystem) Delete(path string) error {
	if err := os.Remove(path); err != nil {
		return fmt.Errorf("delete %s: %w", path, err)
	}
	return nil
}

func (f *LocalFilesystem) Mkdir(path string) error {
	if err := os.MkdirAll(path, 0o755); err != nil {
		return fmt.Errorf("mkdir %s: %w", path, err)
	}
	return nil
}

func (f *LocalFilesystem) Exists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

func (f *LocalFilesystem) ListDir(path string) ([]FileEntry, error) {
	entries, err := os.ReadDir(path)
	if err != nil {
		return nil, fmt.Errorf("list %s: %w", path, err)
	}
	out := make([]FileEntry, 0, len(entries))
	for _, e := range entries {
		entry := FileEntry{
			Name:  e.Name(),
			Path:  filepath.Join(path, e.Name()),
			IsDir: e.IsDir(),
		}
		if info, err := e.Info(); err == nil {
			entry.Size = info.Size()
		}
		out = append(out, entry)
	}
	return out, nil
}

var _ Filesystem = (*LocalFilesystem)(nil)

// LocalShell implements Shell with /bin/sh -c on the local machine.
type LocalShell struct{}

// NewLocalShell creates a shell bridge backed by the local OS.
func NewLocalShell() *LocalShell {
	return &LocalShell{}
}

func (s *LocalShell) Exec(ctx context.Context, command string, cwd string) (*ExecResult, error) {
	cmd := exec.CommandContext(ctx, "/bin/sh", "-c", command)
	cmd.Dir = cwd

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()
	result := &ExecResult{
		Stdout: stdout.String(),
		Stderr: stderr.String(),
	}

	var exitErr *exec.ExitError
	switch {
	case err == nil:
		result.ExitCode = 0
	case errors.As(err, &exitErr):
		result.ExitCode = exitErr.ExitCode()
	default:
		return nil, fmt.Errorf("exec %q: %w", command, err)
	}
	return result, nil
}

var _ Shell = (*LocalShell)(nil)

// ZapTelemetry forwards telemetry records to a zap logger. Logging is
// best-effort and never blocks the caller beyond zap's own buffering.
type ZapTelemetry struct {
	logger *zap.Logger
}

// NewZapTelemetry creates a telemetry bridge over the given logger.
// A nil logger falls back to the process-global zap logger.
func NewZapTelemetry(logger *zap.Logger) *ZapTelemetry {
	if logger == nil {
		logger = zap.L()
	}
	return &ZapTelemetry{logger: logger}
}

func (t *ZapTelemetry) Log(level string, message string, fields map[string]interface{}) {
	zapFields := make([]zap.Field, 0, len(fields))
	for k, v := range fields {
		zapFields = append(zapFields, zap.Any(k, v))
	}
	switch level {
	case "debug":
		t.logger.Debug(message, zapFields...)
	case "warn":
		t.logger.Warn(message, zapFields...)
	case "error":
		t.logger.Error(message, zapFields...)
	default:
		t.logger.Info(message, zapFields...)
	}
}

var _ Telemetry = (*ZapTelemetry)(nil)

// StaticApprover resolves every gate with a fixed decision. Used in tests
// and headless runs.
type StaticApprover struct {
	Decision Decision
}

func (a *StaticApprover) AwaitApproval(ctx context.Context, toolCallID, question string) (Decision, error) {
	return a.Decision, nil
}

var _ Approver = (*StaticApprover)(nil)
