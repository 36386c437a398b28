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

package httpapi

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/kadirpekel/conversa/event"
)

// postEventRequest mirrors spec.md §6's POST /sessions/{id}/events body.
type postEventRequest struct {
	Kind       string          `json:"kind"`
	Source     string          `json:"source"`
	Data       json.RawMessage `json:"data"`
	Moderation string          `json:"moderation,omitempty"`
}

func (s *Server) postEvent(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "sessionID")

	var req postEventRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Errorf("httpapi: decode request: %w", err))
		return
	}
	if req.Kind == "" || req.Source == "" {
		writeError(w, http.StatusBadRequest, fmt.Errorf("httpapi: kind and source are required"))
		return
	}

	kind := event.Kind(req.Kind)
	source := event.Source(req.Source)

	var data any
	if kind == event.KindMessage {
		var msg event.MessageData
		if len(req.Data) > 0 {
			if err := json.Unmarshal(req.Data, &msg); err != nil {
				writeError(w, http.StatusBadRequest, fmt.Errorf("httpapi: decode message data: %w", err))
				return
			}
		}
		if req.Moderation == "auto" && source == event.SourceCustomer {
			result, err := s.Moderator.Moderate(r.Context(), msg.Message)
			if err != nil {
				writeError(w, http.StatusBadGateway, fmt.Errorf("httpapi: moderation: %w", err))
				return
			}
			msg.Flagged = result.Flagged
			msg.Tags = result.Tags
		}
		data = msg
	} else {
		var generic map[string]any
		if len(req.Data) > 0 {
			if err := json.Unmarshal(req.Data, &generic); err != nil {
				writeError(w, http.StatusBadRequest, fmt.Errorf("httpapi: decode event data: %w", err))
				return
			}
		}
		data = generic
	}

	ev, err := s.Controller.PostEvent(r.Context(), sessionID, source, kind, data)
	if err != nil {
		writeError(w, statusFor(err), err)
		return
	}
	writeJSON(w, http.StatusCreated, ev)
}

func (s *Server) listEvents(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "sessionID")
	q := r.URL.Query()

	filters, err := parseEventFilters(q)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	if q.Get("wait") == "true" {
		timeout := defaultWaitTimeout
		if raw := q.Get("timeout_seconds"); raw != "" {
			secs, err := strconv.Atoi(raw)
			if err != nil || secs < 0 {
				writeError(w, http.StatusBadRequest, fmt.Errorf("httpapi: invalid timeout_seconds %q", raw))
				return
			}
			timeout = time.Duration(secs) * time.Second
		}
		pred := event.MinOffsetPredicate(filters.MinOffset, filters.Kinds, filters.Source)
		if _, err := s.Controller.WaitForUpdate(r.Context(), sessionID, pred, timeout); err != nil {
			writeError(w, http.StatusInternalServerError, fmt.Errorf("httpapi: wait for update: %w", err))
			return
		}
	}

	events, err := s.Controller.Log.List(r.Context(), sessionID, filters)
	if err != nil {
		writeError(w, statusFor(err), err)
		return
	}
	writeJSON(w, http.StatusOK, events)
}

func (s *Server) deleteEvents(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "sessionID")

	minOffsetRaw := r.URL.Query().Get("min_offset")
	if minOffsetRaw == "" {
		writeError(w, http.StatusBadRequest, fmt.Errorf("httpapi: min_offset is required"))
		return
	}
	minOffset, err := strconv.Atoi(minOffsetRaw)
	if err != nil {
		writeError(w, http.StatusBadRequest, fmt.Errorf("httpapi: invalid min_offset %q", minOffsetRaw))
		return
	}

	events, err := s.Controller.Log.List(r.Context(), sessionID, event.Filters{MinOffset: minOffset, ExcludeDeleted: true})
	if err != nil {
		writeError(w, statusFor(err), err)
		return
	}

	ids := make([]string, 0, len(events))
	for _, ev := range events {
		if err := s.Controller.Log.Delete(r.Context(), ev.ID); err != nil {
			writeError(w, http.StatusInternalServerError, fmt.Errorf("httpapi: delete event %q: %w", ev.ID, err))
			return
		}
		ids = append(ids, ev.ID)
	}
	writeJSON(w, http.StatusOK, struct {
		DeletedIDs []string `json:"deleted_ids"`
	}{DeletedIDs: ids})
}

// interactionResponse is spec.md §6's interaction-inspection contract: the
// events sharing a correlation id plus the preparation metadata recorded
// for each iteration that produced them.
type interactionResponse struct {
	Events     []event.Event `json:"events"`
	Iterations []any         `json:"iterations,omitempty"`
}

func (s *Server) getInteraction(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "sessionID")
	correlationID := chi.URLParam(r, "correlationID")

	events, err := s.Controller.Log.List(r.Context(), sessionID, event.Filters{CorrelationID: correlationID})
	if err != nil {
		writeError(w, statusFor(err), err)
		return
	}

	resp := interactionResponse{Events: events}
	if rec := s.Controller.Engine.Recorder; rec != nil {
		if iterations, ok := rec.Trace(correlationID); ok {
			for _, it := range iterations {
				resp.Iterations = append(resp.Iterations, it)
			}
		}
	}
	writeJSON(w, http.StatusOK, resp)
}

func parseEventFilters(q map[string][]string) (event.Filters, error) {
	var f event.Filters
	f.ExcludeDeleted = true

	if raw := first(q, "min_offset"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			return f, fmt.Errorf("httpapi: invalid min_offset %q", raw)
		}
		f.MinOffset = n
	}
	if raw := first(q, "source"); raw != "" {
		f.Source = event.Source(raw)
	}
	if raw := first(q, "kinds"); raw != "" {
		for _, k := range strings.Split(raw, ",") {
			f.Kinds = append(f.Kinds, event.Kind(strings.TrimSpace(k)))
		}
	}
	if raw := first(q, "correlation_id"); raw != "" {
		f.CorrelationID = raw
	}
	return f, nil
}

func first(q map[string][]string, key string) string {
	if vs, ok := q[key]; ok && len(vs) > 0 {
		return vs[0]
	}
	return ""
}
