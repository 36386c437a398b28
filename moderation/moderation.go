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

// Package moderation tags customer messages when the HTTP layer is asked
// for it (spec.md §6's moderation=auto), grounded on the original project's
// moderation-tag fixtures (tests/core/common/steps/events.py in
// original_source/). The core pipeline never calls this itself; it's
// strictly an annotation applied to a message event's data before it's
// appended, so a flagged message still reaches the guideline pipeline
// unmodified except for the added flag/tags.
package moderation

import "context"

// Result is the tagging outcome for one piece of text.
type Result struct {
	Flagged bool
	Tags    []string
}

// Moderator classifies free text for moderation tags.
type Moderator interface {
	Moderate(ctx context.Context, text string) (Result, error)
}

// NoOp never flags anything. It's the default when no Moderator is
// configured, so moderation=auto is a safe no-op until an operator wires a
// real one.
type NoOp struct{}

func (NoOp) Moderate(ctx context.Context, text string) (Result, error) {
	return Result{}, nil
}
