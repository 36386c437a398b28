// Copyright 2025 Kadir Pekel
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package event

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
)

// MemLog is an in-process Log backed by per-session slices. It's the
// reference implementation used by engine/session tests and is suitable for
// single-process deployments that don't need durability beyond process
// lifetime (spec.md's persistence-durability guarantees are explicitly a
// non-goal of the core).
type MemLog struct {
	mu       sync.Mutex
	bySessID map[string][]Event
	waiters  map[string][]chan Event
}

// NewMemLog creates an empty in-memory event log.
func NewMemLog() *MemLog {
	return &MemLog{
		bySessID: make(map[string][]Event),
		waiters:  make(map[string][]chan Event),
	}
}

func (l *MemLog) Append(ctx context.Context, sessionID string, source Source, kind Kind, correlationID string, data any) (Event, error) {
	l.mu.Lock()
	offset := len(l.bySessID[sessionID])
	ev := Event{
		ID:            uuid.NewString(),
		SessionID:     sessionID,
		Source:        source,
		Kind:          kind,
		Offset:        offset,
		CorrelationID: correlationID,
		CreationTime:  time.Now(),
		Data:          data,
	}
	l.bySessID[sessionID] = append(l.bySessID[sessionID], ev)
	waiters := l.waiters[sessionID]
	l.waiters[sessionID] = nil
	l.mu.Unlock()

	for _, ch := range waiters {
		ch <- ev
	}
	return ev, nil
}

func (l *MemLog) List(ctx context.Context, sessionID string, filters Filters) ([]Event, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	all := l.bySessID[sessionID] // a session with no events yet is empty, not an error

	var kindSet map[Kind]bool
	if len(filters.Kinds) > 0 {
		kindSet = make(map[Kind]bool, len(filters.Kinds))
		for _, k := range filters.Kinds {
			kindSet[k] = true
		}
	}

	out := make([]Event, 0, len(all))
	for _, ev := range all {
		if ev.Offset < filters.MinOffset {
			continue
		}
		if filters.ExcludeDeleted && ev.Deleted {
			continue
		}
		if filters.Source != "" && ev.Source != filters.Source {
			continue
		}
		if kindSet != nil && !kindSet[ev.Kind] {
			continue
		}
		if filters.CorrelationID != "" && ev.CorrelationID != filters.CorrelationID {
			continue
		}
		out = append(out, ev)
	}
	return out, nil
}

func (l *MemLog) Delete(ctx context.Context, eventID string) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	for sessionID, events := range l.bySessID {
		for i := range events {
			if events[i].ID == eventID {
				events[i].Deleted = true
				l.bySessID[sessionID] = events
				return nil
			}
		}
	}
	return fmt.Errorf("event: unknown event %q", eventID)
}

// DeleteSession removes a session and all of its events atomically from the
// perspective of any concurrent List call (spec.md §3, §8: delete-session
// is atomic w.r.t. listing).
func (l *MemLog) DeleteSession(sessionID string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.bySessID, sessionID)
	delete(l.waiters, sessionID)
}

func (l *MemLog) Wait(ctx context.Context, sessionID string, pred Predicate, timeout time.Duration) (bool, error) {
	l.mu.Lock()
	for _, ev := range l.bySessID[sessionID] {
		if safePred(pred, ev) {
			l.mu.Unlock()
			return true, nil
		}
	}
	if timeout <= 0 {
		l.mu.Unlock()
		return false, nil
	}
	ch := make(chan Event, 8)
	l.waiters[sessionID] = append(l.waiters[sessionID], ch)
	l.mu.Unlock()

	deadline := time.NewTimer(timeout)
	defer deadline.Stop()

	for {
		select {
		case <-ctx.Done():
			return false, ctx.Err()
		case <-deadline.C:
			return false, nil
		case ev := <-ch:
			if safePred(pred, ev) {
				return true, nil
			}
			// Append deregisters every waiter it signals: check anything
			// appended after ev, then register again for the next append.
			l.mu.Lock()
			for _, later := range l.bySessID[sessionID] {
				if later.Offset > ev.Offset && safePred(pred, later) {
					l.mu.Unlock()
					return true, nil
				}
			}
			l.waiters[sessionID] = append(l.waiters[sessionID], ch)
			l.mu.Unlock()
		}
	}
}

// safePred never lets a panicking predicate take down a waiter: predicates
// are contractually total, but a defensive recover keeps one bad predicate
// from starving every other waiter on the session.
func safePred(pred Predicate, ev Event) (matched bool) {
	defer func() {
		if recover() != nil {
			matched = false
		}
	}()
	return pred(ev)
}
