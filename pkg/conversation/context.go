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
	"github.com/teradata-labs/adnify/pkg/types"
)

// AddContextItem pins an item to the thread. Items form a set under their
// canonical key; duplicate inserts are silently ignored.
func (s *Store) AddContextItem(threadID string, item types.ContextItem) error {
	return s.mutate(threadID, func(t *types.Thread) ([]Event, error) {
		key := item.Key()
		for _, existing := range t.ContextItems {
			if existing.Key() == key {
				return nil, nil
			}
		}
		t.ContextItems = append(t.ContextItems, item)
		return []Event{{Kind: EventContextChanged, ThreadID: threadID}}, nil
	})
}

// RemoveContextItem unpins the item with the same canonical key, if
// present.
func (s *Store) RemoveContextItem(threadID string, item types.ContextItem) error {
	return s.mutate(threadID, func(t *types.Thread) ([]Event, error) {
		key := item.Key()
		for i, existing := range t.ContextItems {
			if existing.Key() == key {
				t.ContextItems = append(t.ContextItems[:i], t.ContextItems[i+1:]...)
				return []Event{{Kind: EventContextChanged, ThreadID: threadID}}, nil
			}
		}
		return nil, nil
	})
}

// ClearContextItems unpins everything.
func (s *Store) ClearContextItems(threadID string) error {
	return s.mutate(threadID, func(t *types.Thread) ([]Event, error) {
		if len(t.ContextItems) == 0 {
			return nil, nil
		}
		t.ContextItems = nil
		return []Event{{Kind: EventContextChanged, ThreadID: threadID}}, nil
	})
}

// SetSummary replaces the thread's compacted summary.
func (s *Store) SetSummary(threadID string, summary types.CompactedSummary) error {
	return s.mutate(threadID, func(t *types.Thread) ([]Event, error) {
		t.Summary = &summary
		return []Event{{Kind: EventSummaryUpdated, ThreadID: threadID}}, nil
	})
}

// ClearSummary drops the compacted summary.
func (s *Store) ClearSummary(threadID string) error {
	return s.mutate(threadID, func(t *types.Thread) ([]Event, error) {
		if t.Summary == nil {
			return nil, nil
		}
		t.Summary = nil
		return []Event{{Kind: EventSummaryUpdated, ThreadID: threadID}}, nil
	})
}
