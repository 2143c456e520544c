// Copyright 2026 The LUCI Authors.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//      http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package datastore

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const instrumentationName = "go.glassware.dev/glassware/gae/service/datastore"

// TracingFilter is a RawFilter that records an OpenTelemetry span around
// every datastore call. Spans are children of the span in the filter's
// context, using whatever TracerProvider is globally registered.
func TracingFilter(c context.Context, rds RawInterface) RawInterface {
	return &tracingDS{c, rds, otel.Tracer(instrumentationName)}
}

// NewTracingFilter is like TracingFilter, but records spans with the given
// TracerProvider.
func NewTracingFilter(tp trace.TracerProvider) RawFilter {
	tracer := tp.Tracer(instrumentationName)
	return func(c context.Context, rds RawInterface) RawInterface {
		return &tracingDS{c, rds, tracer}
	}
}

type tracingDS struct {
	c      context.Context
	rds    RawInterface
	tracer trace.Tracer
}

func (t *tracingDS) span(name string, attrs ...attribute.KeyValue) trace.Span {
	_, span := t.tracer.Start(t.c, "datastore."+name,
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(attrs...))
	return span
}

func endSpan(span trace.Span, err error) {
	if err != nil && err != ErrNoSuchEntity {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}

func keyAttr(k *Key) attribute.KeyValue {
	if k == nil {
		return attribute.String("datastore.key", "")
	}
	return attribute.String("datastore.key", k.String())
}

func (t *tracingDS) Get(key *Key, dst PropertyLoadSaver) (err error) {
	span := t.span("Get", keyAttr(key))
	defer func() { endSpan(span, err) }()
	return t.rds.Get(key, dst)
}

func (t *tracingDS) Put(key *Key, src PropertyLoadSaver) (ret *Key, err error) {
	span := t.span("Put", keyAttr(key))
	defer func() { endSpan(span, err) }()
	return t.rds.Put(key, src)
}

func (t *tracingDS) Delete(key *Key) (err error) {
	span := t.span("Delete", keyAttr(key))
	defer func() { endSpan(span, err) }()
	return t.rds.Delete(key)
}

func (t *tracingDS) Run(fq *FinalizedQuery, limit int, start Cursor, newDst func() PropertyLoadSaver) (next Cursor, err error) {
	span := t.span("Run",
		attribute.String("datastore.kind", fq.Kind()),
		attribute.String("datastore.query", fq.String()),
		attribute.Int("datastore.limit", limit))
	defer func() { endSpan(span, err) }()
	return t.rds.Run(fq, limit, start, newDst)
}
