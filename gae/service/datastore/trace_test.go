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

package datastore_test

import (
	"context"
	"testing"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
	"go.opentelemetry.io/otel/trace"

	"go.glassware.dev/glassware/gae/impl/memory"
	ds "go.glassware.dev/glassware/gae/service/datastore"

	. "github.com/smartystreets/goconvey/convey"
)

func attr(s sdktrace.ReadOnlySpan, key attribute.Key) string {
	for _, kv := range s.Attributes() {
		if kv.Key == key {
			return kv.Value.Emit()
		}
	}
	return ""
}

func TestTracingFilter(t *testing.T) {
	t.Parallel()

	Convey("TracingFilter", t, func() {
		sr := tracetest.NewSpanRecorder()
		tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(sr))

		ctx, parent := tp.Tracer("test").Start(context.Background(), "request")
		c := ds.AddRawFilters(memory.Use(ctx), ds.NewTracingFilter(tp))

		names := func() (out []string) {
			for _, s := range sr.Ended() {
				out = append(out, s.Name())
			}
			return
		}

		Convey("records a span per call", func() {
			k := ds.NameKey("Thing", "a", nil)
			_, err := ds.Put(c, k, &ds.PropertyList{{Name: "v", Value: int64(1)}})
			So(err, ShouldBeNil)
			var pl ds.PropertyList
			So(ds.Get(c, k, &pl), ShouldBeNil)
			So(ds.Delete(c, k), ShouldBeNil)

			fq, err := ds.NewQuery("Thing").Finalize()
			So(err, ShouldBeNil)
			_, err = ds.Run(c, fq, 10, "", func() ds.PropertyLoadSaver { return &ds.PropertyList{} })
			So(err, ShouldBeNil)

			So(names(), ShouldResemble, []string{
				"datastore.Put", "datastore.Get", "datastore.Delete", "datastore.Run",
			})
			for _, s := range sr.Ended() {
				So(s.SpanKind(), ShouldEqual, trace.SpanKindClient)
				So(s.Parent().SpanID(), ShouldEqual, parent.SpanContext().SpanID())
				So(s.Status().Code, ShouldEqual, codes.Unset)
			}
			So(attr(sr.Ended()[0], "datastore.key"), ShouldEqual, k.String())
			So(attr(sr.Ended()[3], "datastore.kind"), ShouldEqual, "Thing")
		})

		Convey("a missing entity is not an error", func() {
			var pl ds.PropertyList
			So(ds.Get(c, ds.NameKey("Thing", "missing", nil), &pl), ShouldEqual, ds.ErrNoSuchEntity)
			So(sr.Ended(), ShouldHaveLength, 1)
			So(sr.Ended()[0].Status().Code, ShouldEqual, codes.Unset)
		})

		Convey("failures mark the span", func() {
			fq, err := ds.NewQuery("Thing").Finalize()
			So(err, ShouldBeNil)
			_, err = ds.Run(c, fq, 10, "not a cursor", func() ds.PropertyLoadSaver { return &ds.PropertyList{} })
			So(err, ShouldNotBeNil)

			So(sr.Ended(), ShouldHaveLength, 1)
			s := sr.Ended()[0]
			So(s.Status().Code, ShouldEqual, codes.Error)
			So(s.Events(), ShouldHaveLength, 1)
			So(s.Events()[0].Name, ShouldEqual, "exception")
		})
	})
}
