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
	"fmt"

	"github.com/teradata-labs/adnify/pkg/types"
)

// The store is the sole owner of the checkpoint list; consumers get
// explicit oldest-first and newest-first views instead of iterating raw
// slices.

// AppendCheckpoint adds a checkpoint to the thread's history.
func (s *Store) AppendCheckpoint(threadID string, cp types.MessageCheckpoint) error {
	return s.mutate(threadID, func(t *types.Thread) ([]Event, error) {
		t.Checkpoints = append(t.Checkpoints, cp)
		return []Event{{Kind: EventCheckpointAppended, ThreadID: threadID, MessageID: cp.MessageID}}, nil
	})
}

// CheckpointsOldestFirst returns the checkpoint history in creation order.
func (s *Store) CheckpointsOldestFirst(threadID string) ([]types.MessageCheckpoint, error) {
	state, err := s.state(threadID)
	if err != nil {
		return nil, err
	}
	state.mu.Lock()
	defer state.mu.Unlock()
	out := make([]types.MessageCheckpoint, len(state.thread.Checkpoints))
	for i, cp := range state.thread.Checkpoints {
		out[i] = cloneCheckpoint(cp)
	}
	return out, nil
}

// CheckpointsNewestFirst returns the checkpoint history latest-first.
func (s *Store) CheckpointsNewestFirst(threadID string) ([]types.MessageCheckpoint, error) {
	oldest, err := s.CheckpointsOldestFirst(threadID)
	if err != nil {
		return nil, err
	}
	for i, j := 0, len(oldest)-1; i < j; i, j = i+1, j-1 {
		oldest[i], oldest[j] = oldest[j], oldest[i]
	}
	return oldest, nil
}

// Checkpoint returns one checkpoint by id.
func (s *Store) Checkpoint(threadID, checkpointID string) (types.MessageCheckpoint, error) {
	state, err := s.state(threadID)
	if err != nil {
		return types.MessageCheckpoint{}, err
	}
	state.mu.Lock()
	defer state.mu.Unlock()
	for _, cp := range state.thread.Checkpoints {
		if cp.ID == checkpointID {
			return cloneCheckpoint(cp), nil
		}
	}
	return types.MessageCheckpoint{}, fmt.Errorf("checkpoint %s not found", checkpointID)
}

// TruncateAfterCheckpoint removes every checkpoint created after the
// given one and every message created after the assistant message owning
// it. Restoring turns the checkpoint list into a linear history again.
func (s *Store) TruncateAfterCheckpoint(threadID, checkpointID string) error {
	return s.mutate(threadID, func(t *types.Thread) ([]Event, error) {
		cpIndex := -1
		for i, cp := range t.Checkpoints {
			if cp.ID == checkpointID {
				cpIndex = i
				break
			}
		}
		if cpIndex < 0 {
			return nil, fmt.Errorf("checkpoint %s not found", checkpointID)
		}
		owner := t.Checkpoints[cpIndex].MessageID
		t.Checkpoints = t.Checkpoints[:cpIndex+1]

		msgIndex := -1
		for i, msg := range t.Messages {
			if msg.ID == owner {
				msgIndex = i
				break
			}
		}
		if msgIndex >= 0 {
			t.Messages = t.Messages[:msgIndex+1]
		}
		return []Event{{Kind: EventCheckpointTruncated, ThreadID: threadID, MessageID: owner}}, nil
	})
}
