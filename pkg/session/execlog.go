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
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"github.com/teradata-labs/adnify/pkg/types"
)

// ExecLog is a SQLite audit trail of tool executions. It satisfies the
// executor's Auditor hook; a nil log disables auditing.
type ExecLog struct {
	db *sql.DB
}

// ExecRecord is one audited execution.
type ExecRecord struct {
	ThreadID   string
	MessageID  string
	ToolCallID string
	ToolName   string
	ArgsJSON   string
	Status     string
	DurationMs int64
	Result     string
	CreatedAt  time.Time
}

// OpenExecLog opens (or creates) the audit database under .adnify.
func OpenExecLog(workspaceRoot string) (*ExecLog, error) {
	dir := filepath.Join(workspaceRoot, ".adnify")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create .adnify dir: %w", err)
	}

	db, err := sql.Open("sqlite", filepath.Join(dir, "executions.db"))
	if err != nil {
		return nil, fmt.Errorf("open exec log: %w", err)
	}
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		return nil, fmt.Errorf("enable WAL mode: %w", err)
	}

	log := &ExecLog{db: db}
	if err := log.initSchema(); err != nil {
		return nil, err
	}
	return log, nil
}

func (l *ExecLog) initSchema() error {
	const schema = `
	CREATE TABLE IF NOT EXISTS tool_executions (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		thread_id TEXT NOT NULL,
		message_id TEXT NOT NULL,
		tool_call_id TEXT NOT NULL,
		tool_name TEXT NOT NULL,
		args_json TEXT,
		status TEXT NOT NULL,
		duration_ms INTEGER NOT NULL,
		result TEXT,
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
	);
	CREATE INDEX IF NOT EXISTS idx_tool_executions_thread
		ON tool_executions(thread_id);
	`
	if _, err := l.db.Exec(schema); err != nil {
		return fmt.Errorf("init exec log schema: %w", err)
	}
	return nil
}

// RecordExecution implements the executor's Auditor hook.
func (l *ExecLog) RecordExecution(ctx context.Context, threadID, messageID, toolCallID, toolName string,
	args map[string]interface{}, status types.ToolCallStatus, duration time.Duration, result string) error {

	argsJSON, err := json.Marshal(args)
	if err != nil {
		argsJSON = []byte("{}")
	}
	_, err = l.db.ExecContext(ctx, `
		INSERT INTO tool_executions
			(thread_id, message_id, tool_call_id, tool_name, args_json, status, duration_ms, result)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		threadID, messageID, toolCallID, toolName, string(argsJSON),
		string(status), duration.Milliseconds(), result,
	)
	if err != nil {
		return fmt.Errorf("record execution: %w", err)
	}
	return nil
}

// ListByThread returns a thread's executions, oldest first.
func (l *ExecLog) ListByThread(ctx context.Context, threadID string) ([]ExecRecord, error) {
	rows, err := l.db.QueryContext(ctx, `
		SELECT thread_id, message_id, tool_call_id, tool_name, args_json, status, duration_ms, result, created_at
		FROM tool_executions WHERE thread_id = ? ORDER BY id`,
		threadID,
	)
	if err != nil {
		return nil, fmt.Errorf("list executions: %w", err)
	}
	defer rows.Close()

	var out []ExecRecord
	for rows.Next() {
		var rec ExecRecord
		if err := rows.Scan(&rec.ThreadID, &rec.MessageID, &rec.ToolCallID, &rec.ToolName,
			&rec.ArgsJSON, &rec.Status, &rec.DurationMs, &rec.Result, &rec.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan execution: %w", err)
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

// Close closes the underlying database.
func (l *ExecLog) Close() error {
	return l.db.Close()
}
