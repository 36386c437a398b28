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

package observability

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewTracerDisabledReturnsNoopTracer(t *testing.T) {
	tr, err := NewTracer(context.Background(), TracingConfig{Enabled: false})
	require.NoError(t, err)
	require.NotNil(t, tr)

	ctx, span := tr.Start(context.Background(), "some.span")
	require.NotNil(t, ctx)
	require.NotNil(t, span)
	span.End()
}

func TestNewTracerEnabledWithStdoutExporter(t *testing.T) {
	tr, err := NewTracer(context.Background(), TracingConfig{Enabled: true, ServiceName: "test-svc"})
	require.NoError(t, err)
	require.NotNil(t, tr)
	defer tr.Shutdown(context.Background())

	_, span := tr.Start(context.Background(), SpanEngineRun)
	require.NotNil(t, span)
	span.End()
}

func TestNewTracerRejectsUnknownExporter(t *testing.T) {
	_, err := NewTracer(context.Background(), TracingConfig{Enabled: true, Exporter: "jaeger"})
	assert.Error(t, err)
}

func TestNilTracerStartIsSafe(t *testing.T) {
	var tr *Tracer
	ctx, span := tr.Start(context.Background(), "span")
	assert.NotNil(t, ctx)
	assert.NotNil(t, span)
}

func TestNilTracerShutdownIsNoop(t *testing.T) {
	var tr *Tracer
	assert.NoError(t, tr.Shutdown(context.Background()))
}

func TestRecordErrorIgnoresNilSpanOrError(t *testing.T) {
	tr, err := NewTracer(context.Background(), TracingConfig{Enabled: false})
	require.NoError(t, err)

	assert.NotPanics(t, func() {
		tr.RecordError(nil, errors.New("boom"))
		_, span := tr.Start(context.Background(), "span")
		tr.RecordError(span, nil)
		span.End()
	})
}
