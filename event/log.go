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
	"time"
)

// Filters narrows a List call. Nil/zero fields are unconstrained.
type Filters struct {
	MinOffset     int
	Source        Source
	Kinds         []Kind
	CorrelationID string
	ExcludeDeleted bool
}

// Predicate is evaluated against every event appended to a session while a
// Wait call is outstanding. Predicates must be total: they must never panic,
// since a panicking predicate would otherwise wedge every other waiter on
// the session.
type Predicate func(Event) bool

// MinOffsetPredicate builds a Predicate matching spec.md §4.I's
// wait_for_update contract: offset >= minOffset and, if set, kind/source
// match.
func MinOffsetPredicate(minOffset int, kinds []Kind, source Source) Predicate {
	kindSet := make(map[Kind]bool, len(kinds))
	for _, k := range kinds {
		kindSet[k] = true
	}
	return func(e Event) bool {
		if e.Offset < minOffset {
			return false
		}
		if len(kindSet) > 0 && !kindSet[e.Kind] {
			return false
		}
		if source != "" && e.Source != source {
			return false
		}
		return true
	}
}

// Log is the append-only, per-session ordered event store.
//
// Append is serialized per session: offsets are assigned atomically and in
// order. Wait must be signalled by every successful append to the session
// it watches. Append failures are reserved for storage errors and are fatal
// to whatever run produced them; Wait never raises on a predicate error
// because predicates are required to be total.
type Log interface {
	Append(ctx context.Context, sessionID string, source Source, kind Kind, correlationID string, data any) (Event, error)
	List(ctx context.Context, sessionID string, filters Filters) ([]Event, error)
	Delete(ctx context.Context, eventID string) error
	// Wait blocks until an event appended to sessionID satisfies pred, or
	// timeout elapses. timeout == 0 is a non-blocking poll of events already
	// present. It returns true on match, false on timeout.
	Wait(ctx context.Context, sessionID string, pred Predicate, timeout time.Duration) (bool, error)
}
