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

	"github.com/go-chi/chi/v5"

	"github.com/kadirpekel/conversa/session"
)

// createSessionRequest mirrors spec.md §6's POST /sessions body.
type createSessionRequest struct {
	CustomerID    string `json:"customer_id"`
	AgentID       string `json:"agent_id"`
	Title         string `json:"title,omitempty"`
	AllowGreeting bool   `json:"allow_greeting,omitempty"`
}

func (s *Server) createSession(w http.ResponseWriter, r *http.Request) {
	var req createSessionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Errorf("httpapi: decode request: %w", err))
		return
	}
	if req.CustomerID == "" || req.AgentID == "" {
		writeError(w, http.StatusBadRequest, fmt.Errorf("httpapi: customer_id and agent_id are required"))
		return
	}

	created, err := s.Controller.CreateSession(r.Context(), session.Session{
		AgentID:    req.AgentID,
		CustomerID: req.CustomerID,
		Title:      req.Title,
	}, req.AllowGreeting)
	if err != nil {
		writeError(w, statusFor(err), err)
		return
	}
	writeJSON(w, http.StatusCreated, created)
}

func (s *Server) listSessions(w http.ResponseWriter, r *http.Request) {
	agentID := r.URL.Query().Get("agent_id")
	customerID := r.URL.Query().Get("customer_id")

	sessions, err := s.Controller.Store.ListSessions(r.Context(), agentID, customerID)
	if err != nil {
		writeError(w, statusFor(err), err)
		return
	}
	writeJSON(w, http.StatusOK, sessions)
}

func (s *Server) getSession(w http.ResponseWriter, r *http.Request) {
	sess, err := s.Controller.Store.ReadSession(r.Context(), chi.URLParam(r, "sessionID"))
	if err != nil {
		writeError(w, statusFor(err), err)
		return
	}
	writeJSON(w, http.StatusOK, sess)
}

// patchSessionRequest mirrors spec.md §6's PATCH /sessions/{id}. Consumption
// offsets are left to the client, which already has the full event log to
// compute them from; spec.md names the field but defines no server-side
// semantics for it beyond echoing the session back.
type patchSessionRequest struct {
	Mode  *string `json:"mode,omitempty"`
	Title *string `json:"title,omitempty"`
}

func (s *Server) patchSession(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "sessionID")

	var req patchSessionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Errorf("httpapi: decode request: %w", err))
		return
	}

	if req.Mode != nil {
		mode := session.Mode(*req.Mode)
		if mode != session.ModeAuto && mode != session.ModeManual {
			writeError(w, http.StatusBadRequest, fmt.Errorf("httpapi: unsupported mode %q", *req.Mode))
			return
		}
		if err := s.Controller.Store.UpdateMode(r.Context(), sessionID, mode); err != nil {
			writeError(w, statusFor(err), err)
			return
		}
	}
	if req.Title != nil {
		if err := s.Controller.Store.UpdateTitle(r.Context(), sessionID, *req.Title); err != nil {
			writeError(w, statusFor(err), err)
			return
		}
	}

	sess, err := s.Controller.Store.ReadSession(r.Context(), sessionID)
	if err != nil {
		writeError(w, statusFor(err), err)
		return
	}
	writeJSON(w, http.StatusOK, sess)
}

func (s *Server) deleteSession(w http.ResponseWriter, r *http.Request) {
	if err := s.Controller.DeleteSession(r.Context(), chi.URLParam(r, "sessionID")); err != nil {
		writeError(w, statusFor(err), err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
