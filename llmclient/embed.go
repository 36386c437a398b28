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
	"fmt"

	"google.golang.org/genai"
)

// GenaiEmbedder implements store.TextEmbedder against Gemini's embedding
// models, so the glossary's chromem-go collection and the chat model share
// one provider and one set of credentials.
type GenaiEmbedder struct {
	api   *genai.Client
	model string
}

// NewGenaiEmbedder wraps an already-configured genai.Client.
func NewGenaiEmbedder(api *genai.Client, model string) *GenaiEmbedder {
	return &GenaiEmbedder{api: api, model: model}
}

func (e *GenaiEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	resp, err := e.api.Models.EmbedContent(ctx, e.model, []*genai.Content{genai.NewContentFromText(text, genai.RoleUser)}, nil)
	if err != nil {
		return nil, fmt.Errorf("llmclient: embed: %w", err)
	}
	if len(resp.Embeddings) == 0 {
		return nil, fmt.Errorf("llmclient: embed returned no vectors")
	}
	return resp.Embeddings[0].Values, nil
}
