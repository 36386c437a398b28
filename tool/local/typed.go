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

package local

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/invopop/jsonschema"
	"github.com/mitchellh/mapstructure"

	"github.com/kadirpekel/conversa/tool"
)

// TypedFunc is a tool body written against a typed argument struct instead
// of a raw map[string]any, following the teacher's functiontool package.
type TypedFunc[T any] func(ctx context.Context, tc tool.Context, args T) (tool.Result, error)

// NewTyped derives a tool.Definition's ParametersSchema from T's struct
// tags and wraps fn so it decodes the LLM-proposed arguments map into T
// before calling it, sparing callers from hand-writing JSON schemas or
// argument-unmarshalling boilerplate for every local tool.
//
// Supported `jsonschema` tags mirror the teacher's functiontool.generateSchema:
// "required", "description=...", "enum=a,enum=b", "minimum=N,maximum=M".
func NewTyped[T any](id tool.ID, description string, consequential bool, fn TypedFunc[T]) (Registered, error) {
	schema, err := structSchema[T]()
	if err != nil {
		return Registered{}, fmt.Errorf("local: derive schema for %s: %w", id, err)
	}

	required, _ := schema["required"].([]any)
	requiredNames := make([]string, 0, len(required))
	for _, r := range required {
		if s, ok := r.(string); ok {
			requiredNames = append(requiredNames, s)
		}
	}

	def := tool.Definition{
		ID:               id,
		Description:      description,
		ParametersSchema: schema,
		RequiredParams:   requiredNames,
		Consequential:    consequential,
	}

	call := func(ctx context.Context, tc tool.Context, arguments map[string]any) (tool.Result, error) {
		var typed T
		dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
			TagName:          "json",
			WeaklyTypedInput: true,
			Result:           &typed,
		})
		if err != nil {
			return tool.Result{}, fmt.Errorf("local: build argument decoder for %s: %w", id, err)
		}
		if err := dec.Decode(arguments); err != nil {
			return tool.Result{}, fmt.Errorf("local: decode arguments for %s: %w", id, err)
		}
		return fn(ctx, tc, typed)
	}

	return Registered{Definition: def, Call: call}, nil
}

// structSchema reflects T's struct tags into the flat {type, properties,
// required} shape spec.md's argument validator and the LLM both expect,
// following the teacher's functiontool.generateSchema.
func structSchema[T any]() (map[string]any, error) {
	reflector := &jsonschema.Reflector{
		RequiredFromJSONSchemaTags: true,
		ExpandedStruct:             true,
		DoNotReference:             true,
	}
	schema := reflector.Reflect(new(T))

	data, err := json.Marshal(schema)
	if err != nil {
		return nil, err
	}
	var raw map[string]any
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, err
	}
	delete(raw, "$schema")
	delete(raw, "$id")

	if raw["type"] != "object" {
		return raw, nil
	}
	out := map[string]any{
		"type":       "object",
		"properties": raw["properties"],
	}
	if required := raw["required"]; required != nil {
		out["required"] = required
	}
	if addProps, ok := raw["additionalProperties"]; ok {
		out["additionalProperties"] = addProps
	}
	return out, nil
}
