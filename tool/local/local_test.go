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
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kadirpekel/conversa/tool"
)

func echoTool() Registered {
	return Registered{
		Definition: tool.Definition{
			ID:             tool.ID{ServiceName: "local", ToolName: "echo"},
			RequiredParams: []string{"text"},
			ParametersSchema: map[string]any{
				"properties": map[string]any{
					"mode": map[string]any{"enum": []any{"loud", "quiet"}},
				},
			},
		},
		Call: func(ctx context.Context, tc tool.Context, args map[string]any) (tool.Result, error) {
			return tool.Result{Data: args["text"]}, nil
		},
	}
}

func TestServiceListAndReadTool(t *testing.T) {
	svc := New()
	svc.Register(echoTool())

	defs, err := svc.ListTools(context.Background())
	require.NoError(t, err)
	require.Len(t, defs, 1)
	assert.Equal(t, "echo", defs[0].ID.ToolName)

	def, err := svc.ReadTool(context.Background(), "echo")
	require.NoError(t, err)
	assert.Equal(t, "echo", def.ID.ToolName)
}

func TestServiceReadToolUnknownErrors(t *testing.T) {
	svc := New()
	_, err := svc.ReadTool(context.Background(), "missing")
	assert.Error(t, err)
}

func TestServiceCallInvokesRegisteredFunc(t *testing.T) {
	svc := New()
	svc.Register(echoTool())

	res, err := svc.Call(context.Background(), "echo", tool.Context{}, map[string]any{"text": "hi"})
	require.NoError(t, err)
	assert.Equal(t, "hi", res.Data)
}

func TestServiceCallMissingRequiredParamErrors(t *testing.T) {
	svc := New()
	svc.Register(echoTool())

	_, err := svc.Call(context.Background(), "echo", tool.Context{}, map[string]any{})
	assert.ErrorContains(t, err, "missing required parameter")
}

func TestServiceCallEnumViolationErrors(t *testing.T) {
	svc := New()
	svc.Register(echoTool())

	_, err := svc.Call(context.Background(), "echo", tool.Context{}, map[string]any{
		"text": "hi", "mode": "deafening",
	})
	assert.ErrorContains(t, err, "not one of the allowed enum values")
}

func TestServiceCallEnumValueAccepted(t *testing.T) {
	svc := New()
	svc.Register(echoTool())

	_, err := svc.Call(context.Background(), "echo", tool.Context{}, map[string]any{
		"text": "hi", "mode": "loud",
	})
	assert.NoError(t, err)
}

func TestServiceCallUnknownToolErrors(t *testing.T) {
	svc := New()
	_, err := svc.Call(context.Background(), "missing", tool.Context{}, nil)
	assert.Error(t, err)
}
