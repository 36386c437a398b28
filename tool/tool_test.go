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

package tool

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubService struct {
	defs   []Definition
	result Result
	err    error
}

func (s *stubService) ListTools(ctx context.Context) ([]Definition, error) { return s.defs, nil }
func (s *stubService) ReadTool(ctx context.Context, toolName string) (Definition, error) {
	for _, d := range s.defs {
		if d.ID.ToolName == toolName {
			return d, nil
		}
	}
	return Definition{}, errUnknownService
}
func (s *stubService) Call(ctx context.Context, toolName string, tc Context, arguments map[string]any) (Result, error) {
	return s.result, s.err
}

func TestInvokerCallDispatchesToRegisteredService(t *testing.T) {
	inv := NewInvoker()
	inv.Register("svc", &stubService{result: Result{Data: "ok"}})

	res, err := inv.Call(context.Background(), ID{ServiceName: "svc", ToolName: "t"}, Context{}, nil)
	require.NoError(t, err)
	assert.Equal(t, "ok", res.Data)
}

func TestInvokerCallUnknownServiceReturnsExecutionError(t *testing.T) {
	inv := NewInvoker()
	_, err := inv.Call(context.Background(), ID{ServiceName: "missing"}, Context{}, nil)

	var execErr *ExecutionError
	require.ErrorAs(t, err, &execErr)
}

func TestInvokerCallWrapsTransportErrorAsExecutionError(t *testing.T) {
	inv := NewInvoker()
	inv.Register("svc", &stubService{err: assertErr("boom")})

	_, err := inv.Call(context.Background(), ID{ServiceName: "svc", ToolName: "t"}, Context{}, nil)
	var execErr *ExecutionError
	require.ErrorAs(t, err, &execErr)
	assert.Contains(t, execErr.Error(), "svc/t")
}

func TestInvokerCallEnforcesSizeCap(t *testing.T) {
	inv := NewInvoker()
	oversized := strings.Repeat("a", sizeCapBytes+1)
	inv.Register("svc", &stubService{result: Result{Data: oversized}})

	_, err := inv.Call(context.Background(), ID{ServiceName: "svc", ToolName: "t"}, Context{}, nil)
	var resultErr *ResultError
	require.ErrorAs(t, err, &resultErr)
	assert.Greater(t, resultErr.Size, sizeCapBytes)
}

func TestInvokerRegisterIsCopyOnWrite(t *testing.T) {
	inv := NewInvoker()
	before := inv.services
	inv.Register("svc", &stubService{})

	assert.Len(t, before, 0)
	assert.Len(t, inv.services, 1)
}

func TestCheckSizeRejectsUnserialisableData(t *testing.T) {
	err := CheckSize(Result{Data: make(chan int)})
	var resultErr *ResultError
	require.ErrorAs(t, err, &resultErr)
}

func TestCheckSizeAcceptsSmallResult(t *testing.T) {
	assert.NoError(t, CheckSize(Result{Data: map[string]any{"ok": true}}))
}

type assertErr string

func (e assertErr) Error() string { return string(e) }
