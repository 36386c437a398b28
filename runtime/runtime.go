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

// Package runtime wires one config.Config into a running engine.Engine and
// session.Controller: the single assembly point every entrypoint (the HTTP
// server, the CLI) goes through, following the teacher's cmd/hector pattern
// of resolving a Config into concrete collaborators in one place rather
// than scattering construction across main().
package runtime

import (
	"context"
	"database/sql"
	"fmt"

	"google.golang.org/genai"

	"github.com/kadirpekel/conversa/config"
	"github.com/kadirpekel/conversa/engine"
	"github.com/kadirpekel/conversa/event"
	"github.com/kadirpekel/conversa/guideline"
	"github.com/kadirpekel/conversa/llmclient"
	"github.com/kadirpekel/conversa/message"
	"github.com/kadirpekel/conversa/observability"
	"github.com/kadirpekel/conversa/session"
	"github.com/kadirpekel/conversa/store"
	"github.com/kadirpekel/conversa/tool"
	"github.com/kadirpekel/conversa/tool/local"
	"github.com/kadirpekel/conversa/tool/openapi"
	"github.com/kadirpekel/conversa/tool/pluginrpc"
	"github.com/kadirpekel/conversa/toolcaller"
)

// Runtime holds every long-lived collaborator built from a Config, plus
// whatever needs an orderly Close on shutdown.
type Runtime struct {
	Config     *config.Config
	Engine     *engine.Engine
	Controller *session.Controller
	Metrics    *observability.Metrics
	Tracer     *observability.Tracer

	sessionDB   *sql.DB
	pluginDials []*pluginrpc.Service
}

// Build assembles a Runtime from cfg. The returned Runtime.Close releases
// every resource Build opened (plugin subprocesses, SQL connections, the
// tracer's exporter).
func Build(ctx context.Context, cfg *config.Config) (*Runtime, error) {
	genaiClient, err := genai.NewClient(ctx, &genai.ClientConfig{APIKey: cfg.LLM.APIKey})
	if err != nil {
		return nil, fmt.Errorf("runtime: create genai client: %w", err)
	}

	llm := llmclient.NewRetry(llmclient.NewGenaiClient(genaiClient, cfg.LLM.Model))
	embedder := llmclient.NewGenaiEmbedder(genaiClient, cfg.LLM.EmbedModel)

	glossary := store.NewChromemGlossary(embedder)
	stores := store.NewMemStore(glossary)

	proposer := guideline.NewProposer(llm)
	if cfg.Guideline.Threshold != 0 {
		proposer.Threshold = cfg.Guideline.Threshold
	}
	expander := guideline.NewExpander(stores, stores)

	invoker := tool.NewInvoker()
	invoker.Register("local", local.New())

	rt := &Runtime{Config: cfg}

	for _, oc := range cfg.Tools.OpenAPI {
		ops := make(map[string]openapi.Operation, len(oc.Operations))
		for _, op := range oc.Operations {
			ops[op.ToolName] = openapi.Operation{
				Definition: tool.Definition{
					ID:               tool.ID{ServiceName: oc.ServiceName, ToolName: op.ToolName},
					Description:      op.Description,
					ParametersSchema: op.ParametersSchema,
					RequiredParams:   op.RequiredParams,
					Consequential:    op.Consequential,
				},
				Method:       op.Method,
				PathTemplate: op.PathTemplate,
			}
		}
		invoker.Register(oc.ServiceName, openapi.New(oc.BaseURL, ops))
	}

	for _, pc := range cfg.Tools.Plugin {
		svc, err := pluginrpc.Dial(pc.Command)
		if err != nil {
			rt.Close()
			return nil, fmt.Errorf("runtime: dial plugin tool %q: %w", pc.ServiceName, err)
		}
		rt.pluginDials = append(rt.pluginDials, svc)
		invoker.Register(pc.ServiceName, svc)
	}

	caller := toolcaller.NewCaller(llm, invoker)
	generator := message.NewGenerator(llm)

	tracer, err := observability.NewTracer(ctx, observability.TracingConfig{
		Enabled:      cfg.Observability.Tracing.Enabled,
		ServiceName:  cfg.Observability.Tracing.ServiceName,
		Exporter:     cfg.Observability.Tracing.Exporter,
		SamplingRate: cfg.Observability.Tracing.SamplingRate,
	})
	if err != nil {
		rt.Close()
		return nil, fmt.Errorf("runtime: create tracer: %w", err)
	}
	rt.Tracer = tracer

	if cfg.Observability.Metrics.Enabled {
		rt.Metrics = observability.NewMetrics(cfg.Observability.Metrics.Namespace)
	}

	eventLog := event.NewMemLog()

	eng := &engine.Engine{
		Log:       eventLog,
		Stores:    stores,
		Invoker:   invoker,
		Proposer:  proposer,
		Expander:  expander,
		Caller:    caller,
		Generator: generator,
		Recorder:  engine.NewRecorder(0),
		Tracer:    rt.Tracer,
		Metrics:   rt.Metrics,
	}
	rt.Engine = eng

	sessionStore, err := buildSessionStore(cfg, rt)
	if err != nil {
		rt.Close()
		return nil, err
	}

	rt.Controller = session.NewController(sessionStore, eventLog, eng)
	return rt, nil
}

// buildSessionStore picks the session.Store backend named by
// cfg.Store.Backend. Only sessions are persisted across the SQL dialects;
// agents, guidelines, connections, tool associations, and context
// variables stay in the in-process store.MemStore regardless of backend
// (see DESIGN.md's "persistence scope" entry).
func buildSessionStore(cfg *config.Config, rt *Runtime) (session.Store, error) {
	switch cfg.Store.Backend {
	case "", "memory":
		return session.NewMemStore(), nil
	case "sqlite", "postgres", "mysql":
		driver := cfg.Store.Backend
		if driver == "sqlite" {
			driver = "sqlite3"
		}
		db, err := sql.Open(driver, cfg.Store.DSN)
		if err != nil {
			return nil, fmt.Errorf("runtime: open %s database: %w", cfg.Store.Backend, err)
		}
		rt.sessionDB = db
		return session.NewSQLStore(db, cfg.Store.Backend)
	default:
		return nil, fmt.Errorf("runtime: unsupported store backend %q", cfg.Store.Backend)
	}
}

// Close releases everything Build opened. Safe to call on a partially
// built Runtime (e.g. from an error path inside Build).
func (rt *Runtime) Close() error {
	for _, p := range rt.pluginDials {
		p.Close()
	}
	if rt.sessionDB != nil {
		rt.sessionDB.Close()
	}
	if rt.Tracer != nil {
		return rt.Tracer.Shutdown(context.Background())
	}
	return nil
}
