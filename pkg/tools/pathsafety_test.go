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

package tools

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCheckPathSafety(t *testing.T) {
	safe := []string{
		"src/main.go",
		"/home/dev/project/README.md",
		"docs/notes.txt",
		"internal/server/handler.go",
	}
	for _, path := range safe {
		t.Run("safe "+path, func(t *testing.T) {
			assert.NoError(t, CheckPathSafety(path))
		})
	}

	unsafe := []string{
		"../outside.txt",
		"src/../../etc/passwd",
		"%2e%2e/up",
		"%252E%252E/up",
		"file\x00.txt",
		"/etc/passwd",
		"/proc/self/environ",
		`C:\Windows\System32\config`,
		"/home/dev/.ssh/id_rsa",
		"/home/dev/.aws/config",
		"server.pem",
		"signing.key",
		"bundle.p12",
		"keystore.pfx",
		".env.local",
		".env.production",
		"secrets.json",
		"secrets.yml",
		"credentials.ini",
		"private_key",
		"id_ed25519",
		"my-password-backup.txt",
		"client_secret.txt",
	}
	for _, path := range unsafe {
		t.Run("unsafe "+path, func(t *testing.T) {
			assert.Error(t, CheckPathSafety(path))
		})
	}
}

func TestCheckArgumentPaths(t *testing.T) {
	assert.NoError(t, checkArgumentPaths(map[string]interface{}{"path": "a.txt"}))
	assert.Error(t, checkArgumentPaths(map[string]interface{}{"path": "../a.txt"}))
	assert.Error(t, checkArgumentPaths(map[string]interface{}{
		"paths": []interface{}{"ok.txt", "/etc/shadow"},
	}))
	assert.Error(t, checkArgumentPaths(map[string]interface{}{"cwd": "../.."}))
	assert.NoError(t, checkArgumentPaths(map[string]interface{}{"query": "not a path ../"}))
}
