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

package pluginrpc

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kadirpekel/conversa/event"
	"github.com/kadirpekel/conversa/tool"
)

// fakeToolRPC implements ToolRPC in-process, standing in for a dialed
// plugin subprocess so Service's delegation can be tested without actually
// launching one.
type fakeToolRPC struct {
	defs      []tool.Definition
	readErr   error
	callArgs  CallArgs
	callReply tool.Result
	callErr   error
}

func (f *fakeToolRPC) ListTools(args struct{}, reply *[]tool.Definition) error {
	*reply = f.defs
	return nil
}

func (f *fakeToolRPC) ReadTool(name string, reply *tool.Definition) error {
	if f.readErr != nil {
		return f.readErr
	}
	*reply = tool.Definition{ID: tool.ID{ServiceName: "plugin", ToolName: name}}
	return nil
}

func (f *fakeToolRPC) Call(args CallArgs, reply *tool.Result) error {
	f.callArgs = args
	if f.callErr != nil {
		return f.callErr
	}
	*reply = f.callReply
	return nil
}

// fakeStreamingToolRPC additionally implements streamDialer, standing in
// for rpcClient's broker-backed sink registration.
type fakeStreamingToolRPC struct {
	fakeToolRPC
	sinkEmitter tool.Emitter
	nextID      uint32
}

func (f *fakeStreamingToolRPC) startSink(emitter tool.Emitter) uint32 {
	f.sinkEmitter = emitter
	f.nextID++
	return f.nextID
}

type recordingEmitter struct{}

func (recordingEmitter) EmitMessage(ctx context.Context, text string) error { return nil }
func (recordingEmitter) EmitStatus(ctx context.Context, status event.Status, data any) error {
	return nil
}

type rpcErr string

func (e rpcErr) Error() string { return string(e) }

func TestServiceListToolsDelegatesToRPC(t *testing.T) {
	fake := &fakeToolRPC{defs: []tool.Definition{{ID: tool.ID{ServiceName: "plugin", ToolName: "search"}}}}
	s := &Service{rpc: fake}

	out, err := s.ListTools(context.Background())
	require.NoError(t, err)
	assert.Equal(t, fake.defs, out)
}

func TestServiceReadToolWrapsRPCError(t *testing.T) {
	fake := &fakeToolRPC{readErr: rpcErr("no such tool")}
	s := &Service{rpc: fake}

	_, err := s.ReadTool(context.Background(), "ghost")
	assert.Error(t, err)
}

func TestServiceCallPassesCorrelationIDAndArguments(t *testing.T) {
	fake := &fakeToolRPC{callReply: tool.Result{Data: "ok"}}
	s := &Service{rpc: fake}

	res, err := s.Call(context.Background(), "search", tool.Context{CorrelationID: "corr-9"}, map[string]any{"q": "x"})
	require.NoError(t, err)
	assert.Equal(t, "ok", res.Data)
	assert.Equal(t, "search", fake.callArgs.ToolName)
	assert.Equal(t, "corr-9", fake.callArgs.CorrelationID)
	assert.Equal(t, map[string]any{"q": "x"}, fake.callArgs.Arguments)
}

func TestServiceCallWrapsRPCError(t *testing.T) {
	fake := &fakeToolRPC{callErr: rpcErr("plugin crashed")}
	s := &Service{rpc: fake}

	_, err := s.Call(context.Background(), "search", tool.Context{}, nil)
	assert.Error(t, err)
}

func TestServiceCallRegistersSinkWhenEmitterPresent(t *testing.T) {
	fake := &fakeStreamingToolRPC{fakeToolRPC: fakeToolRPC{callReply: tool.Result{Data: "ok"}}}
	s := &Service{rpc: fake}

	_, err := s.Call(context.Background(), "search", tool.Context{CorrelationID: "corr-9", Emitter: recordingEmitter{}}, nil)
	require.NoError(t, err)
	assert.NotZero(t, fake.callArgs.StreamBrokerID)
	assert.NotNil(t, fake.sinkEmitter)
}

func TestServiceCallOmitsSinkWhenNoEmitter(t *testing.T) {
	fake := &fakeStreamingToolRPC{fakeToolRPC: fakeToolRPC{callReply: tool.Result{Data: "ok"}}}
	s := &Service{rpc: fake}

	_, err := s.Call(context.Background(), "search", tool.Context{CorrelationID: "corr-9"}, nil)
	require.NoError(t, err)
	assert.Zero(t, fake.callArgs.StreamBrokerID)
	assert.Nil(t, fake.sinkEmitter)
}

func TestSinkServerPushForwardsToEmitter(t *testing.T) {
	var got string
	sink := &sinkServer{emitter: emitterFunc{
		message: func(ctx context.Context, text string) error {
			got = text
			return nil
		},
	}}
	err := sink.Push(StreamEvent{Text: "hello"}, new(struct{}))
	require.NoError(t, err)
	assert.Equal(t, "hello", got)
}

type emitterFunc struct {
	message func(ctx context.Context, text string) error
	status  func(ctx context.Context, status event.Status, data any) error
}

func (e emitterFunc) EmitMessage(ctx context.Context, text string) error {
	if e.message == nil {
		return nil
	}
	return e.message(ctx, text)
}

func (e emitterFunc) EmitStatus(ctx context.Context, status event.Status, data any) error {
	if e.status == nil {
		return nil
	}
	return e.status(ctx, status, data)
}

var _ tool.Service = (*Service)(nil)
