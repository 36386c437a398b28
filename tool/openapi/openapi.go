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

// Package openapi implements the HTTP-OpenAPI tool.Service variant: it
// serves tool schemas and invokes operations that arrive already resolved
// into Operation values; it does not parse OpenAPI documents (spec.md §6).
package openapi

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/kadirpekel/conversa/tool"
)

// Operation describes one OpenAPI operation already resolved from a spec
// document into the shape the invoker needs. Parsing the OpenAPI document
// itself is an authoring-time concern outside the core (spec.md §1); this
// package only executes operations already resolved into Operation values.
type Operation struct {
	Definition tool.Definition
	Method     string // "GET", "POST", ...
	PathTemplate string // e.g. "/orders/{id}"
}

// Service is the "openapi" tool.Service variant: each registered Operation
// maps to one HTTP request against BaseURL.
type Service struct {
	BaseURL    string
	HTTPClient *http.Client
	Operations map[string]Operation // by tool name
}

// New creates an OpenAPI-backed tool service.
func New(baseURL string, operations map[string]Operation) *Service {
	return &Service{
		BaseURL:    baseURL,
		HTTPClient: &http.Client{Timeout: 30 * time.Second},
		Operations: operations,
	}
}

func (s *Service) ListTools(ctx context.Context) ([]tool.Definition, error) {
	out := make([]tool.Definition, 0, len(s.Operations))
	for _, op := range s.Operations {
		out = append(out, op.Definition)
	}
	return out, nil
}

func (s *Service) ReadTool(ctx context.Context, toolName string) (tool.Definition, error) {
	op, ok := s.Operations[toolName]
	if !ok {
		return tool.Definition{}, fmt.Errorf("openapi: unknown tool %q", toolName)
	}
	return op.Definition, nil
}

func (s *Service) Call(ctx context.Context, toolName string, tc tool.Context, arguments map[string]any) (tool.Result, error) {
	op, ok := s.Operations[toolName]
	if !ok {
		return tool.Result{}, fmt.Errorf("openapi: unknown tool %q", toolName)
	}

	path, body := fillPathTemplate(op.PathTemplate, arguments)

	var reqBody *bytes.Buffer
	if op.Method != http.MethodGet && len(body) > 0 {
		encoded, err := json.Marshal(body)
		if err != nil {
			return tool.Result{}, fmt.Errorf("openapi: encode body: %w", err)
		}
		reqBody = bytes.NewBuffer(encoded)
	} else {
		reqBody = bytes.NewBuffer(nil)
	}

	req, err := http.NewRequestWithContext(ctx, op.Method, s.BaseURL+path, reqBody)
	if err != nil {
		return tool.Result{}, fmt.Errorf("openapi: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Correlation-ID", tc.CorrelationID)

	resp, err := s.HTTPClient.Do(req)
	if err != nil {
		return tool.Result{}, fmt.Errorf("openapi: request failed: %w", err)
	}
	defer resp.Body.Close()

	var payload any
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return tool.Result{}, fmt.Errorf("openapi: decode response: %w", err)
	}
	if resp.StatusCode >= 400 {
		return tool.Result{}, fmt.Errorf("openapi: %s %s returned %d", op.Method, path, resp.StatusCode)
	}

	return tool.Result{Data: payload}, nil
}

// fillPathTemplate substitutes "{name}" segments from arguments and returns
// the remaining, un-substituted arguments as the request body.
func fillPathTemplate(template string, arguments map[string]any) (string, map[string]any) {
	path := template
	body := make(map[string]any, len(arguments))
	for k, v := range arguments {
		placeholder := "{" + k + "}"
		if strings.Contains(path, placeholder) {
			path = strings.ReplaceAll(path, placeholder, fmt.Sprint(v))
			continue
		}
		body[k] = v
	}
	return path, body
}

var _ tool.Service = (*Service)(nil)
