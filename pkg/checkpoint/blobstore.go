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
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"path/filepath"

	"github.com/teradata-labs/adnify/pkg/host"
)

// blobStore persists snapshot content addressed by SHA-256. Identical
// content across checkpoints is stored once.
type blobStore struct {
	fs  host.Filesystem
	dir string
}

func newBlobStore(fs host.Filesystem, dir string) *blobStore {
	return &blobStore{fs: fs, dir: dir}
}

// hashContent returns the hex SHA-256 of content.
func hashContent(content string) string {
	sum := sha256.Sum256([]byte(content))
	return hex.EncodeToString(sum[:])
}

func (b *blobStore) blobPath(hash string) string {
	return filepath.Join(b.dir, hash)
}

// put stores content and returns its hash. Existing blobs are left
// untouched.
func (b *blobStore) put(content string) (string, error) {
	hash := hashContent(content)
	path := b.blobPath(hash)
	if b.fs.Exists(path) {
		return hash, nil
	}
	if err := b.fs.Write(path, content); err != nil {
		return "", fmt.Errorf("store blob %s: %w", hash, err)
	}
	return hash, nil
}

// get loads a blob by hash.
func (b *blobStore) get(hash string) (string, error) {
	content, exists, err := b.fs.Read(b.blobPath(hash))
	if err != nil {
		return "", fmt.Errorf("read blob %s: %w", hash, err)
	}
	if !exists {
		return "", fmt.Errorf("blob %s missing", hash)
	}
	return content, nil
}
