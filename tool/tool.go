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

// Package tool provides one polymorphic call point over heterogeneous tool
// services: local (in-process), HTTP-OpenAPI, and long-lived plugin RPC.
// The engine depends only on the Invoker capability, never on which
// transport variant backs a given service (spec.md §4.C, §9).
package tool

import (
	"context"
	"encoding/json"

	"github.com/kadirpekel/conversa/event"
)

// ID names a tool by (service, name). It mirrors event.ToolID and
// store.ToolRef; keeping it a distinct type here avoids an import cycle
// between tool and store.
type ID struct {
	ServiceName string
	ToolName    string
}

func (id ID) String() string { return id.ServiceName + "/" + id.ToolName }

// Definition describes a tool's calling convention to both the LLM and the
// argument validator.
type Definition struct {
	ID               ID
	Description      string
	ParametersSchema map[string]any
	RequiredParams   []string
	Consequential    bool
}

// Result is what a tool invocation returns on success.
type Result struct {
	Data     any
	Control  *event.ControlDirective
	Metadata map[string]any
}

// sizeCapBytes is the 16 KiB result-size cap from spec.md §3.
const sizeCapBytes = 16 * 1024

// CheckSize validates the 16 KiB result cap after JSON-serialization,
// returning a *ResultError when the cap is exceeded.
func CheckSize(r Result) error {
	b, err := json.Marshal(r.Data)
	if err != nil {
		return &ResultError{ToolID: ID{}, Reason: "result not JSON-serialisable: " + err.Error()}
	}
	if len(b) > sizeCapBytes {
		return &ResultError{ToolID: ID{}, Reason: "result exceeds 16 KiB cap", Size: len(b)}
	}
	return nil
}

// ExecutionError wraps a transport failure (network error, plugin crash,
// schema violation raised by the transport itself). It's non-fatal to the
// run: the caller records it inside the produced tool event and continues
// (spec.md §4.C, §7).
type ExecutionError struct {
	ToolID ID
	Err    error
}

func (e *ExecutionError) Error() string {
	return "tool execution failed for " + e.ToolID.String() + ": " + e.Err.Error()
}
func (e *ExecutionError) Unwrap() error { return e.Err }

// ResultError signals an oversize or schema-invalid result. Also non-fatal.
type ResultError struct {
	ToolID ID
	Reason string
	Size   int
}

func (e *ResultError) Error() string { return "tool result error for " + e.ToolID.String() + ": " + e.Reason }

// Emitter lets a tool push intermediate message/status events into the
// session log under the run's correlation id while it's still executing
// (spec.md §4.C, §9: "plugin streaming callbacks are exposed through a
// narrow emitter passed in tool_context").
type Emitter interface {
	EmitMessage(ctx context.Context, text string) error
	EmitStatus(ctx context.Context, status event.Status, data any) error
}

// Context carries the invocation-scoped identifiers a tool needs plus the
// streaming Emitter.
type Context struct {
	AgentID       string
	SessionID     string
	CustomerID    string
	CorrelationID string
	Emitter       Emitter
}

// Service is the capability set one tool-transport variant must provide.
// Local, OpenAPI, and plugin-RPC backends all implement it identically from
// the engine's point of view (spec.md §9).
type Service interface {
	ListTools(ctx context.Context) ([]Definition, error)
	ReadTool(ctx context.Context, toolName string) (Definition, error)
	Call(ctx context.Context, toolName string, tc Context, arguments map[string]any) (Result, error)
}

// Invoker is the engine-facing call point (spec.md §4.C), dispatching by
// service name to whichever Service is registered for it.
type Invoker struct {
	services map[string]Service
}

// NewInvoker creates an Invoker with no services registered.
func NewInvoker() *Invoker {
	return &Invoker{services: make(map[string]Service)}
}

// Register binds a Service under serviceName. The runtime registers the
// local service as "local" and each configured service under its plain
// configured name, whatever its transport.
func (inv *Invoker) Register(serviceName string, svc Service) {
	inv.services = cloneAndSet(inv.services, serviceName, svc)
}

func cloneAndSet(m map[string]Service, k string, v Service) map[string]Service {
	out := make(map[string]Service, len(m)+1)
	for kk, vv := range m {
		out[kk] = vv
	}
	out[k] = v
	return out
}

func (inv *Invoker) ListTools(ctx context.Context, serviceName string) ([]Definition, error) {
	svc, ok := inv.services[serviceName]
	if !ok {
		return nil, &ExecutionError{ToolID: ID{ServiceName: serviceName}, Err: errUnknownService}
	}
	return svc.ListTools(ctx)
}

func (inv *Invoker) ReadTool(ctx context.Context, id ID) (Definition, error) {
	svc, ok := inv.services[id.ServiceName]
	if !ok {
		return Definition{}, &ExecutionError{ToolID: id, Err: errUnknownService}
	}
	return svc.ReadTool(ctx, id.ToolName)
}

// Call invokes id via its registered service, enforcing the result-size cap.
// Transport errors and oversize results are both returned as typed, non-fatal
// errors so callers (toolcaller) can record a failed call and continue.
func (inv *Invoker) Call(ctx context.Context, id ID, tc Context, arguments map[string]any) (Result, error) {
	svc, ok := inv.services[id.ServiceName]
	if !ok {
		return Result{}, &ExecutionError{ToolID: id, Err: errUnknownService}
	}
	result, err := svc.Call(ctx, id.ToolName, tc, arguments)
	if err != nil {
		return Result{}, &ExecutionError{ToolID: id, Err: err}
	}
	if sizeErr := CheckSize(result); sizeErr != nil {
		if re, ok := sizeErr.(*ResultError); ok {
			re.ToolID = id
		}
		return Result{}, sizeErr
	}
	return result, nil
}

var errUnknownService = errUnknown("unknown tool service")

type errUnknown string

func (e errUnknown) Error() string { return string(e) }
