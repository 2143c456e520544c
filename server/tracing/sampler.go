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
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace"

	"go.glassware.dev/glassware/common/clock"
	"go.glassware.dev/glassware/common/errors"
)

// Sampler parses a sampling spec:
//
//	"" or "always"  record every trace
//	"never"         record nothing
//	"<N>%"          record N percent of traces, e.g. "0.1%"
//	"<N>qps"        record at most N traces per second, e.g. "0.5qps"
//
// The qps sampler reads time from the clock in ctx.
func Sampler(ctx context.Context, spec string) (sdktrace.Sampler, error) {
	switch spec = strings.TrimSpace(spec); {
	case spec == "", spec == "always":
		return sdktrace.AlwaysSample(), nil
	case spec == "never":
		return sdktrace.NeverSample(), nil
	case strings.HasSuffix(spec, "%"):
		pct, err := strconv.ParseFloat(strings.TrimSuffix(spec, "%"), 64)
		if err != nil || pct < 0 || pct > 100 {
			return nil, errors.Reason("not a float percent %q", spec).Err()
		}
		return sdktrace.TraceIDRatioBased(pct / 100), nil
	case strings.HasSuffix(spec, "qps"):
		qps, err := strconv.ParseFloat(strings.TrimSuffix(spec, "qps"), 64)
		if err != nil || qps <= 0 {
			return nil, errors.Reason("not a float QPS %q", spec).Err()
		}
		return &qpsSampler{
			period: time.Duration(float64(time.Second) / qps),
			now:    func() time.Time { return clock.Now(ctx) },
		}, nil
	}
	return nil, errors.Reason("unrecognized sampling spec string %q", spec).Err()
}

// qpsSampler records a trace if at least period passed since the last one.
type qpsSampler struct {
	period time.Duration
	now    func() time.Time

	m    sync.Mutex
	next time.Time
}

func (s *qpsSampler) ShouldSample(p sdktrace.SamplingParameters) sdktrace.SamplingResult {
	now := s.now()

	s.m.Lock()
	decision := sdktrace.Drop
	if !now.Before(s.next) {
		decision = sdktrace.RecordAndSample
		s.next = now.Add(s.period)
	}
	s.m.Unlock()

	return sdktrace.SamplingResult{
		Decision:   decision,
		Tracestate: trace.SpanContextFromContext(p.ParentContext).TraceState(),
	}
}

func (s *qpsSampler) Description() string {
	return fmt.Sprintf("qpsSampler{period:%s}", s.period)
}
