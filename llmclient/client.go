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

// Package llmclient is the single structured-completion seam used by the
// guideline proposer, tool caller, and message generator. It deliberately
// does not expose raw chat completion: every caller in this module wants
// one schema-validated JSON object back, never free text, so the contract
// is shaped around that (spec.md §4.D/§4.F/§4.G all describe "one LLM call
// that returns a structured object").
package llmclient

import (
	"context"
	"encoding/json"
	"fmt"
)

// Request is one structured-completion call.
type Request struct {
	SystemInstruction string
	Prompt            string
	// ResponseSchema constrains the model's output to this JSON schema,
	// mirroring google.golang.org/genai's GenerateContentConfig.ResponseSchema.
	ResponseSchema map[string]any
	Temperature    float32
}

// Client performs one schema-constrained completion and decodes the result
// into raw JSON bytes; callers unmarshal into their own typed structs.
type Client interface {
	Complete(ctx context.Context, req Request) (json.RawMessage, error)
}

// Retry wraps a Client and retries schema-invalid or erroring completions
// at alternate temperatures, per spec.md §4.G step 4 (the same policy the
// proposer and tool caller reuse for their own structured calls).
type Retry struct {
	Client       Client
	Temperatures []float32 // tried in order; first element is the default
}

// NewRetry builds the standard 3-attempt policy at temperatures
// {0.5, 1.0, 0.1} as specified for the message generator and reused
// elsewhere in the pipeline for consistency.
func NewRetry(client Client) *Retry {
	return &Retry{Client: client, Temperatures: []float32{0.5, 1.0, 0.1}}
}

// CompleteInto runs the retry policy and unmarshals the first valid
// response into dst.
func (r *Retry) CompleteInto(ctx context.Context, req Request, dst any) error {
	var lastErr error
	for _, temp := range r.Temperatures {
		attempt := req
		attempt.Temperature = temp
		raw, err := r.Client.Complete(ctx, attempt)
		if err != nil {
			lastErr = err
			continue
		}
		if err := json.Unmarshal(raw, dst); err != nil {
			lastErr = fmt.Errorf("llmclient: schema-invalid response: %w", err)
			continue
		}
		return nil
	}
	return fmt.Errorf("llmclient: exhausted %d attempts: %w", len(r.Temperatures), lastErr)
}
