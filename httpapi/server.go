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

// Package httpapi implements the REST surface of spec.md §6: session CRUD,
// event append/list/delete with long-poll semantics, and interaction
// inspection, over a chi router following the teacher's pkg/transport
// middleware conventions.
package httpapi

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/kadirpekel/conversa/moderation"
	"github.com/kadirpekel/conversa/observability"
	"github.com/kadirpekel/conversa/session"
)

// defaultWaitTimeout bounds a long-poll GET .../events?wait=true call when
// the caller doesn't supply its own timeout_seconds.
const defaultWaitTimeout = 30 * time.Second

// Server holds the collaborators the REST handlers dispatch to.
type Server struct {
	Controller *session.Controller
	Moderator  moderation.Moderator
	Tracer     *observability.Tracer
	Metrics    *observability.Metrics
}

// NewServer builds a Server with a no-op Moderator unless overridden.
func NewServer(controller *session.Controller) *Server {
	return &Server{Controller: controller, Moderator: moderation.NoOp{}}
}

// Router builds the chi mux for this Server.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(s.tracingMiddleware)

	r.Route("/sessions", func(r chi.Router) {
		r.Post("/", s.createSession)
		r.Get("/", s.listSessions)

		r.Route("/{sessionID}", func(r chi.Router) {
			r.Get("/", s.getSession)
			r.Patch("/", s.patchSession)
			r.Delete("/", s.deleteSession)

			r.Post("/events", s.postEvent)
			r.Get("/events", s.listEvents)
			r.Delete("/events", s.deleteEvents)

			r.Get("/interactions/{correlationID}", s.getInteraction)
		})
	})

	if s.Metrics != nil {
		r.Get("/metrics", s.Metrics.Handler().ServeHTTP)
	}

	return r
}
