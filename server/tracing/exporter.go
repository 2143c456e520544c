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

package tracing

import (
	"context"

	sdktrace "go.opentelemetry.io/otel/sdk/trace"

	"go.glassware.dev/glassware/common/logging"
)

// LogExporter returns an exporter writing one log line per finished span
// with the logger in ctx.
func LogExporter(ctx context.Context) sdktrace.SpanExporter {
	return logExporter{ctx}
}

type logExporter struct {
	ctx context.Context
}

func (e logExporter) ExportSpans(_ context.Context, spans []sdktrace.ReadOnlySpan) error {
	for _, s := range spans {
		sc := s.SpanContext()
		ctx := logging.SetFields(e.ctx, logging.Fields{
			"trace": sc.TraceID().String(),
			"span":  sc.SpanID().String(),
		})
		if parent := s.Parent(); parent.IsValid() {
			ctx = logging.SetField(ctx, "parent", parent.SpanID().String())
		}
		st := s.Status()
		logging.Infof(ctx, "span %s (%s) took %s, status %s %s",
			s.Name(), s.SpanKind(), s.EndTime().Sub(s.StartTime()), st.Code, st.Description)
	}
	return nil
}

func (logExporter) Shutdown(context.Context) error { return nil }
