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

import "sync"

// EventKind tags store notifications.
type EventKind string

const (
	EventThreadCreated       EventKind = "thread-created"
	EventThreadDeleted       EventKind = "thread-deleted"
	EventMessageAppended     EventKind = "message-appended"
	EventMessageUpdated      EventKind = "message-updated"
	EventContextChanged      EventKind = "context-changed"
	EventSummaryUpdated      EventKind = "summary-updated"
	EventCheckpointAppended  EventKind = "checkpoint-appended"
	EventCheckpointTruncated EventKind = "checkpoint-truncated"
)

// Event is a typed store notification. Observers receive events after the
// mutation committed; they must not block.
type Event struct {
	Kind      EventKind
	ThreadID  string
	MessageID string
}

// observerRegistry is an explicit typed observer list. Every subscription
// returns an unsubscribe handle; teardown revokes all handles.
type observerRegistry struct {
	mu        sync.Mutex
	nextID    int
	observers map[int]func(Event)
}

func newObserverRegistry() *observerRegistry {
	return &observerRegistry{observers: make(map[int]func(Event))}
}

func (r *observerRegistry) subscribe(fn func(Event)) func() {
	r.mu.Lock()
	defer r.mu.Unlock()
	id := r.nextID
	r.nextID++
	r.observers[id] = fn
	return func() {
		r.mu.Lock()
		defer r.mu.Unlock()
		delete(r.observers, id)
	}
}

func (r *observerRegistry) publish(e Event) {
	r.mu.Lock()
	fns := make([]func(Event), 0, len(r.observers))
	for _, fn := range r.observers {
		fns = append(fns, fn)
	}
	r.mu.Unlock()

	for _, fn := range fns {
		fn(e)
	}
}

func (r *observerRegistry) clear() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.observers = make(map[int]func(Event))
}
