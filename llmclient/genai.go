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

package llmclient

import (
	"context"
	"encoding/json"
	"fmt"

	"google.golang.org/genai"
)

// GenaiClient implements Client against Google's Gemini models, the
// teacher's primary LLM provider (v2/model/aggregator.go, llms/ package).
// A single concrete provider keeps the core's LLM surface as narrow as the
// teacher's own aggregator, which drives one active backend at a time.
type GenaiClient struct {
	api   *genai.Client
	model string
}

// NewGenaiClient wraps an already-configured genai.Client.
func NewGenaiClient(api *genai.Client, model string) *GenaiClient {
	return &GenaiClient{api: api, model: model}
}

func (c *GenaiClient) Complete(ctx context.Context, req Request) (json.RawMessage, error) {
	cfg := &genai.GenerateContentConfig{
		Temperature:      genai.Ptr(req.Temperature),
		ResponseMIMEType: "application/json",
	}
	if req.ResponseSchema != nil {
		schema, err := toGenaiSchema(req.ResponseSchema)
		if err != nil {
			return nil, fmt.Errorf("llmclient: convert response schema: %w", err)
		}
		cfg.ResponseSchema = schema
	}
	if req.SystemInstruction != "" {
		cfg.SystemInstruction = genai.NewContentFromText(req.SystemInstruction, genai.RoleUser)
	}

	resp, err := c.api.Models.GenerateContent(ctx, c.model, genai.Text(req.Prompt), cfg)
	if err != nil {
		return nil, fmt.Errorf("llmclient: genai generate: %w", err)
	}
	if len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return nil, fmt.Errorf("llmclient: genai returned no candidates")
	}

	var text string
	for _, part := range resp.Candidates[0].Content.Parts {
		text += part.Text
	}
	if text == "" {
		return nil, fmt.Errorf("llmclient: genai returned empty text")
	}
	return json.RawMessage(text), nil
}

// toGenaiSchema converts the generic JSON-schema map used throughout this
// module into genai's typed Schema, which only understands a subset of
// JSON Schema (no $ref, no oneOf). Callers keep their schemas within that
// subset since every structured-output shape here is flat or one level
// nested.
func toGenaiSchema(raw map[string]any) (*genai.Schema, error) {
	b, err := json.Marshal(raw)
	if err != nil {
		return nil, err
	}
	var s genai.Schema
	if err := json.Unmarshal(b, &s); err != nil {
		return nil, err
	}
	return &s, nil
}

var _ Client = (*GenaiClient)(nil)
