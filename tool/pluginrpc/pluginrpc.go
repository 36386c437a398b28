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

// Package pluginrpc implements the long-lived plugin-RPC tool.Service
// variant (spec.md §6, §9): a subprocess exposing list_tools/read_tool/
// call_tool over net/rpc via hashicorp/go-plugin, grounded on the teacher's
// plugins package (subprocess lifecycle, handshake, gRPC-capable client).
//
// Unlike local and openapi, a plugin may stream intermediate message/status
// events while a call is in flight; those arrive over a MuxBroker
// connection registered for the call (CallArgs.StreamBrokerID) and are
// forwarded to the tool.Emitter in tool.Context.
package pluginrpc

import (
	"context"
	"errors"
	"fmt"
	"net/rpc"
	"os/exec"

	goplugin "github.com/hashicorp/go-plugin"

	"github.com/kadirpekel/conversa/event"
	"github.com/kadirpekel/conversa/tool"
)

// Handshake is shared between host and plugin binary so a stray process
// can't be mistaken for a tool plugin.
var Handshake = goplugin.HandshakeConfig{
	ProtocolVersion:  1,
	MagicCookieKey:   "CONVERSA_TOOL_PLUGIN",
	MagicCookieValue: "guideline-runtime",
}

// StreamEvent is one intermediate event a plugin pushes mid-call, over the
// sink registered on the MuxBroker id carried in CallArgs.StreamBrokerID.
type StreamEvent struct {
	CorrelationID string
	IsStatus      bool
	Status        event.Status
	Text          string
	Data          any
}

// ToolRPC is the net/rpc surface a plugin process exposes.
type ToolRPC interface {
	ListTools(args struct{}, reply *[]tool.Definition) error
	ReadTool(name string, reply *tool.Definition) error
	Call(args CallArgs, reply *tool.Result) error
}

// CallArgs is the net/rpc argument envelope for Call. StreamBrokerID, when
// non-zero, names a MuxBroker connection the plugin can dial back into
// (broker.Dial) to reach the sinkServer registered there and stream
// StreamEvents for the call's correlation id.
type CallArgs struct {
	ToolName       string
	CorrelationID  string
	Arguments      map[string]any
	StreamBrokerID uint32
}

// sinkServer is the net/rpc service a plugin dials back into (via the
// MuxBroker id in CallArgs.StreamBrokerID) to push intermediate events,
// forwarded to the host-side tool.Emitter for the call in flight.
type sinkServer struct {
	emitter tool.Emitter
}

// Push is the RPC method a plugin calls, by name, after dialing the broker
// id handed to it in CallArgs.StreamBrokerID.
func (s *sinkServer) Push(ev StreamEvent, _ *struct{}) error {
	ctx := context.Background()
	if ev.IsStatus {
		return s.emitter.EmitStatus(ctx, ev.Status, ev.Data)
	}
	return s.emitter.EmitMessage(ctx, ev.Text)
}

// streamDialer is implemented by the client-side RPC stub so Service.Call
// can register a sink for the duration of one call without ToolRPC itself
// (implemented by fakes in tests and by plugin subprocesses) needing to
// know about broker wiring.
type streamDialer interface {
	startSink(emitter tool.Emitter) uint32
}

// Plugin adapts ToolRPC to hashicorp/go-plugin's Plugin interface for the
// net/rpc transport (no protobuf codegen required, unlike the gRPC
// transport the teacher's plugins package also supports).
type Plugin struct {
	Impl ToolRPC
}

func (p *Plugin) Server(*goplugin.MuxBroker) (any, error) { return &rpcServer{impl: p.Impl}, nil }
func (p *Plugin) Client(b *goplugin.MuxBroker, c *rpc.Client) (any, error) {
	return &rpcClient{client: c, broker: b}, nil
}

type rpcServer struct{ impl ToolRPC }

func (s *rpcServer) ListTools(args struct{}, reply *[]tool.Definition) error {
	return s.impl.ListTools(args, reply)
}
func (s *rpcServer) ReadTool(name string, reply *tool.Definition) error {
	return s.impl.ReadTool(name, reply)
}
func (s *rpcServer) Call(args CallArgs, reply *tool.Result) error {
	return s.impl.Call(args, reply)
}

type rpcClient struct {
	client *rpc.Client
	broker *goplugin.MuxBroker
}

func (c *rpcClient) ListTools(args struct{}, reply *[]tool.Definition) error {
	return c.client.Call("Plugin.ListTools", args, reply)
}
func (c *rpcClient) ReadTool(name string, reply *tool.Definition) error {
	return c.client.Call("Plugin.ReadTool", name, reply)
}
func (c *rpcClient) Call(args CallArgs, reply *tool.Result) error {
	return c.client.Call("Plugin.Call", args, reply)
}

// startSink registers a sink server on a fresh broker id and serves it in
// the background for the lifetime of one Call; the plugin dials the id back
// to push StreamEvents while the call is in flight.
func (c *rpcClient) startSink(emitter tool.Emitter) uint32 {
	id := c.broker.NextId()
	go c.broker.AcceptAndServe(id, &sinkServer{emitter: emitter})
	return id
}

// Service is the tool.Service variant backed by one long-lived plugin
// subprocess.
type Service struct {
	client *goplugin.Client
	rpc    ToolRPC
}

// Dial launches the plugin binary at path as a subprocess and performs the
// handshake.
func Dial(path string) (*Service, error) {
	client := goplugin.NewClient(&goplugin.ClientConfig{
		HandshakeConfig: Handshake,
		Plugins: map[string]goplugin.Plugin{
			"tool": &Plugin{},
		},
		Cmd: exec.Command(path),
	})

	rpcClient, err := client.Client()
	if err != nil {
		client.Kill()
		return nil, fmt.Errorf("pluginrpc: dial %s: %w", path, err)
	}
	raw, err := rpcClient.Dispense("tool")
	if err != nil {
		client.Kill()
		return nil, fmt.Errorf("pluginrpc: dispense tool from %s: %w", path, err)
	}
	impl, ok := raw.(ToolRPC)
	if !ok {
		client.Kill()
		return nil, errors.New("pluginrpc: plugin does not implement ToolRPC")
	}
	return &Service{client: client, rpc: impl}, nil
}

// Close terminates the plugin subprocess. Outstanding calls are not
// pre-emptively cancelled (spec.md §5): callers should await them first.
func (s *Service) Close() { s.client.Kill() }

func (s *Service) ListTools(ctx context.Context) ([]tool.Definition, error) {
	var out []tool.Definition
	if err := s.rpc.ListTools(struct{}{}, &out); err != nil {
		return nil, fmt.Errorf("pluginrpc: list_tools: %w", err)
	}
	return out, nil
}

func (s *Service) ReadTool(ctx context.Context, toolName string) (tool.Definition, error) {
	var out tool.Definition
	if err := s.rpc.ReadTool(toolName, &out); err != nil {
		return tool.Definition{}, fmt.Errorf("pluginrpc: read_tool: %w", err)
	}
	return out, nil
}

func (s *Service) Call(ctx context.Context, toolName string, tc tool.Context, arguments map[string]any) (tool.Result, error) {
	args := CallArgs{
		ToolName:      toolName,
		CorrelationID: tc.CorrelationID,
		Arguments:     arguments,
	}
	if dialer, ok := s.rpc.(streamDialer); ok && tc.Emitter != nil {
		args.StreamBrokerID = dialer.startSink(tc.Emitter)
	}

	var out tool.Result
	if err := s.rpc.Call(args, &out); err != nil {
		return tool.Result{}, fmt.Errorf("pluginrpc: call_tool %s: %w", toolName, err)
	}
	return out, nil
}

var _ tool.Service = (*Service)(nil)
