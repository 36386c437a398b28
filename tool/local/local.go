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

// Package local implements the in-process tool.Service variant: tools
// registered as plain Go callables, following the teacher's
// pkg/tool.CallableTool pattern (ADK-Go compatible synchronous execution).
package local

import (
	"context"
	"fmt"
	"sync"

	"github.com/kadirpekel/conversa/tool"
)

// Func is a tool's executable body.
type Func func(ctx context.Context, tc tool.Context, args map[string]any) (tool.Result, error)

// Registered is one local tool's full definition plus its callable.
type Registered struct {
	Definition tool.Definition
	Call       Func
}

// Service is the "local" tool.Service variant: an in-process registry of
// Go callables, keyed by tool name within this service.
type Service struct {
	mu    sync.RWMutex
	tools map[string]Registered
}

// New creates an empty local tool service.
func New() *Service {
	return &Service{tools: make(map[string]Registered)}
}

// Register adds a tool under its Definition.ID.ToolName.
func (s *Service) Register(r Registered) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tools[r.Definition.ID.ToolName] = r
}

func (s *Service) ListTools(ctx context.Context) ([]tool.Definition, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]tool.Definition, 0, len(s.tools))
	for _, r := range s.tools {
		out = append(out, r.Definition)
	}
	return out, nil
}

func (s *Service) ReadTool(ctx context.Context, toolName string) (tool.Definition, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	r, ok := s.tools[toolName]
	if !ok {
		return tool.Definition{}, fmt.Errorf("local: unknown tool %q", toolName)
	}
	return r.Definition, nil
}

func (s *Service) Call(ctx context.Context, toolName string, tc tool.Context, arguments map[string]any) (tool.Result, error) {
	s.mu.RLock()
	r, ok := s.tools[toolName]
	s.mu.RUnlock()
	if !ok {
		return tool.Result{}, fmt.Errorf("local: unknown tool %q", toolName)
	}
	if err := validateArguments(r.Definition, arguments); err != nil {
		return tool.Result{}, err
	}
	return r.Call(ctx, tc, arguments)
}

// validateArguments enforces spec.md §4.F's argument constraints: every
// required parameter must be populated and enum-typed parameters must
// match one allowed value.
func validateArguments(def tool.Definition, args map[string]any) error {
	for _, name := range def.RequiredParams {
		if _, ok := args[name]; !ok {
			return fmt.Errorf("local: missing required parameter %q for tool %q", name, def.ID.ToolName)
		}
	}
	props, _ := def.ParametersSchema["properties"].(map[string]any)
	for name, raw := range args {
		propSchema, ok := props[name].(map[string]any)
		if !ok {
			continue
		}
		enum, ok := propSchema["enum"].([]any)
		if !ok || len(enum) == 0 {
			continue
		}
		allowed := false
		for _, e := range enum {
			if e == raw {
				allowed = true
				break
			}
		}
		if !allowed {
			return fmt.Errorf("local: value %v for %q is not one of the allowed enum values", raw, name)
		}
	}
	return nil
}

var _ tool.Service = (*Service)(nil)
