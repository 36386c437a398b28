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

package session

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/kadirpekel/conversa/engine"
	"github.com/kadirpekel/conversa/event"
)

// coalesceGrace is how long a new customer message waits for the previous
// run on the same session to notice cancellation and exit, before giving up
// and starting the new run concurrently anyway (spec.md §4.I: rapid
// customer messages cancel-and-restart the in-flight run rather than queue
// behind it).
const coalesceGrace = 250 * time.Millisecond

// runState tracks one in-flight engine.Process call for a session.
type runState struct {
	cancel chan struct{}
	done   chan struct{}
}

// Controller mediates between session activity and the processing engine:
// it owns event ingestion, the single-in-flight-run-per-session invariant,
// and manual-mode handling (spec.md §4.I).
type Controller struct {
	Store  Store
	Log    event.Log
	Engine *engine.Engine

	mu     sync.Mutex
	active map[string]*runState
}

// NewController wires a Controller over the given collaborators.
func NewController(store Store, log event.Log, eng *engine.Engine) *Controller {
	return &Controller{Store: store, Log: log, Engine: eng, active: make(map[string]*runState)}
}

// CreateSession creates a session and, if allowGreeting is set, kicks off an
// ungreeted-customer run so the agent can open the conversation (spec.md
// §4.I's greeting-on-create).
func (c *Controller) CreateSession(ctx context.Context, s Session, allowGreeting bool) (Session, error) {
	created, err := c.Store.CreateSession(ctx, s)
	if err != nil {
		return Session{}, fmt.Errorf("session: create: %w", err)
	}
	if allowGreeting {
		c.schedule(created)
	}
	return created, nil
}

// PostCustomerMessage appends a customer message event and schedules (or
// coalesces into) a processing run.
func (c *Controller) PostCustomerMessage(ctx context.Context, sessionID, text string) (event.Event, error) {
	s, err := c.Store.ReadSession(ctx, sessionID)
	if err != nil {
		return event.Event{}, err
	}
	return c.postEvent(ctx, s, event.SourceCustomer, event.KindMessage, event.MessageData{
		Message:     text,
		Participant: event.Participant{ID: s.CustomerID},
	})
}

// PostEvent appends an arbitrary event to the session (spec.md §6's generic
// POST .../events endpoint). A run is scheduled only when the event
// originates from the customer; events posted under any other source are
// recorded without disturbing an in-flight run.
func (c *Controller) PostEvent(ctx context.Context, sessionID string, source event.Source, kind event.Kind, data any) (event.Event, error) {
	s, err := c.Store.ReadSession(ctx, sessionID)
	if err != nil {
		return event.Event{}, err
	}
	return c.postEvent(ctx, s, source, kind, data)
}

func (c *Controller) postEvent(ctx context.Context, s Session, source event.Source, kind event.Kind, data any) (event.Event, error) {
	ev, err := c.Log.Append(ctx, s.ID, source, kind, "", data)
	if err != nil {
		return event.Event{}, fmt.Errorf("session: append event: %w", err)
	}
	if source == event.SourceCustomer {
		c.scheduleFrom(s, ev.Offset)
	}
	return ev, nil
}

// schedule starts a run with no triggering event (used for greetings).
func (c *Controller) schedule(s Session) {
	c.scheduleFrom(s, 0)
}

// scheduleFrom cancels any in-flight run for the session, waits up to
// coalesceGrace for it to exit, then starts a fresh run.
func (c *Controller) scheduleFrom(s Session, triggerOffset int) {
	c.mu.Lock()
	if prev, ok := c.active[s.ID]; ok {
		close(prev.cancel)
		c.mu.Unlock()

		select {
		case <-prev.done:
		case <-time.After(coalesceGrace):
			slog.Warn("session: previous run did not yield within grace period", "session_id", s.ID)
		}
		c.mu.Lock()
	}

	rs := &runState{cancel: make(chan struct{}), done: make(chan struct{})}
	c.active[s.ID] = rs
	c.mu.Unlock()

	go c.run(s, triggerOffset, rs)
}

func (c *Controller) run(s Session, triggerOffset int, rs *runState) {
	defer close(rs.done)
	defer func() {
		c.mu.Lock()
		if c.active[s.ID] == rs {
			delete(c.active, s.ID)
		}
		c.mu.Unlock()
	}()

	ctx := context.Background()

	if s.Mode == ModeManual {
		return // manual-mode guard (spec.md §4.I item 2): no run, no status events
	}

	rc := engine.RunContext{
		SessionID:     s.ID,
		AgentID:       s.AgentID,
		CustomerID:    s.CustomerID,
		TriggerOffset: triggerOffset,
		Cancel:        rs.cancel,
		OnManualDirective: func(ctx context.Context) error {
			return c.Store.UpdateMode(ctx, s.ID, ModeManual)
		},
	}

	if _, err := c.Engine.Process(ctx, rc); err != nil {
		slog.Error("session: processing run failed", "session_id", s.ID, "error", err)
	}
}

// WaitForUpdate blocks until an event matching pred is appended to the
// session, or timeout elapses (spec.md §6's wait_for_update contract).
func (c *Controller) WaitForUpdate(ctx context.Context, sessionID string, pred event.Predicate, timeout time.Duration) (bool, error) {
	return c.Log.Wait(ctx, sessionID, pred, timeout)
}

// DeleteSession removes a session and all of its events. Any in-flight run
// is cancelled first so it doesn't append events to a session mid-deletion.
func (c *Controller) DeleteSession(ctx context.Context, sessionID string) error {
	c.mu.Lock()
	if prev, ok := c.active[sessionID]; ok {
		close(prev.cancel)
		c.mu.Unlock()
		<-prev.done
	} else {
		c.mu.Unlock()
	}

	if err := c.Store.DeleteSession(ctx, sessionID); err != nil {
		return fmt.Errorf("session: delete: %w", err)
	}
	if deleter, ok := c.Log.(interface{ DeleteSession(string) }); ok {
		deleter.DeleteSession(sessionID)
	}
	return nil
}
