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

// Package tracing sets up OpenTelemetry tracing for a server process.
//
// Spans go to one exporter: "log" writes finished spans to the process log,
// "cloud" sends them to Cloud Trace. With no exporter the global
// TracerProvider stays the no-op one.
package tracing

import (
	"context"
	"flag"
	"net/http"

	texporter "github.com/GoogleCloudPlatform/opentelemetry-operations-go/exporter/trace"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace"

	"go.glassware.dev/glassware/common/errors"
	"go.glassware.dev/glassware/common/logging"
)

// Options configure tracing.
type Options struct {
	Exporter string `yaml:"trace_exporter"` // "", "log" or "cloud"
	Sampler  string `yaml:"trace_sampler"`  // see Sampler
}

// Register registers the command line flags.
func (o *Options) Register(f *flag.FlagSet) {
	f.StringVar(
		&o.Exporter,
		"trace-exporter",
		o.Exporter,
		`Where to send spans: "log", "cloud" (Cloud Trace) or "" to disable tracing.`,
	)
	f.StringVar(
		&o.Sampler,
		"trace-sampler",
		o.Sampler,
		`What portion of new traces to record, e.g. "0.1%", "2qps", "always".`,
	)
}

// Enabled is true if an exporter is configured.
func (o *Options) Enabled() bool {
	return o.Exporter != ""
}

// Validate checks the options without side effects.
func (o *Options) Validate() error {
	switch o.Exporter {
	case "", "log", "cloud":
	default:
		return errors.Reason("unsupported trace exporter %q", o.Exporter).Err()
	}
	_, err := Sampler(context.Background(), o.Sampler)
	return err
}

// Use builds a TracerProvider and installs it (and the W3C trace context
// propagator) globally. project is the Cloud project for the "cloud"
// exporter. Returns nil if tracing is disabled. The caller must Shutdown the
// provider to flush pending spans.
func (o *Options) Use(ctx context.Context, service, project string) (*sdktrace.TracerProvider, error) {
	if !o.Enabled() {
		return nil, nil
	}
	sampler, err := Sampler(ctx, o.Sampler)
	if err != nil {
		return nil, err
	}

	var exp sdktrace.SpanExporter
	switch o.Exporter {
	case "log":
		exp = LogExporter(ctx)
	case "cloud":
		if project == "" {
			return nil, errors.New("the cloud trace exporter needs a cloud project")
		}
		if exp, err = texporter.New(texporter.WithProjectID(project)); err != nil {
			return nil, errors.Annotate(err, "creating the Cloud Trace exporter").Err()
		}
	default:
		return nil, errors.Reason("unsupported trace exporter %q", o.Exporter).Err()
	}

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exp),
		sdktrace.WithSampler(sdktrace.ParentBased(sampler)),
		sdktrace.WithResource(resource.NewSchemaless(attribute.String("service.name", service))),
	)
	otel.SetTracerProvider(tp)
	otel.SetTextMapPropagator(propagation.TraceContext{})
	logging.Infof(ctx, "Tracing to %q, sampling %s", o.Exporter, sampler.Description())
	return tp, nil
}

// Handler wraps h so that every request gets a server span. A nil tp means
// the global TracerProvider.
func Handler(h http.Handler, operation string, tp trace.TracerProvider) http.Handler {
	opts := []otelhttp.Option{otelhttp.WithPropagators(propagation.TraceContext{})}
	if tp != nil {
		opts = append(opts, otelhttp.WithTracerProvider(tp))
	}
	return otelhttp.NewHandler(h, operation, opts...)
}

// Transport wraps rt so that every outgoing request gets a client span and
// carries the trace context. A nil rt means http.DefaultTransport, a nil tp
// the global TracerProvider.
func Transport(rt http.RoundTripper, tp trace.TracerProvider) http.RoundTripper {
	if rt == nil {
		rt = http.DefaultTransport
	}
	opts := []otelhttp.Option{otelhttp.WithPropagators(propagation.TraceContext{})}
	if tp != nil {
		opts = append(opts, otelhttp.WithTracerProvider(tp))
	}
	return otelhttp.NewTransport(rt, opts...)
}
