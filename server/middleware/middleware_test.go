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

package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace"

	"go.glassware.dev/glassware/common/logging"
	"go.glassware.dev/glassware/common/logging/memlogger"
	"go.glassware.dev/glassware/server/router"

	. "github.com/smartystreets/goconvey/convey"
)

func TestMiddleware(t *testing.T) {
	t.Parallel()

	Convey("Middleware", t, func() {
		ctx := memlogger.Use(context.Background())
		rec := httptest.NewRecorder()
		rc := &router.Context{
			Writer:  rec,
			Request: httptest.NewRequest("GET", "/x", nil),
		}
		run := func(h router.Handler, mw ...router.Middleware) {
			chain := router.NewMiddlewareChain(TestingBase(ctx))
			router.RunMiddleware(rc, chain.Extend(mw...), h)
		}

		Convey("WithContextValue", func() {
			var got any
			run(func(c *router.Context) { got = c.Request.Context().Value("k") }, WithContextValue("k", "v"))
			So(got, ShouldEqual, "v")
		})

		Convey("WithBase", func() {
			root := context.WithValue(ctx, "k", "root")
			reqCtx, cancel := context.WithCancel(context.Background())
			rc.Request = rc.Request.WithContext(reqCtx)

			var got any
			var done <-chan struct{}
			router.RunMiddleware(rc, router.NewMiddlewareChain(WithBase(root)), func(c *router.Context) {
				got = c.Request.Context().Value("k")
				done = c.Request.Context().Done()
				cancel()
				<-done
			})
			So(got, ShouldEqual, "root")
			So(root.Err(), ShouldBeNil)
		})

		Convey("WithBase keeps the request span", func() {
			tp := sdktrace.NewTracerProvider()
			reqCtx, span := tp.Tracer("test").Start(context.Background(), "request")
			defer span.End()
			rc.Request = rc.Request.WithContext(reqCtx)

			var got trace.SpanContext
			router.RunMiddleware(rc, router.NewMiddlewareChain(WithBase(ctx)), func(c *router.Context) {
				got = trace.SpanContextFromContext(c.Request.Context())
			})
			So(got, ShouldResemble, span.SpanContext())
		})

		Convey("WithRequestID", func() {
			var id string
			var fields logging.Fields
			run(func(c *router.Context) {
				id = RequestID(c.Request.Context())
				fields = logging.GetFields(c.Request.Context())
			}, WithRequestID)
			So(id, ShouldNotEqual, "")
			So(rec.Header().Get(RequestIDHeader), ShouldEqual, id)
			So(fields["requestID"], ShouldEqual, id)

			Convey("keeps a supplied id", func() {
				rc.Request.Header.Set(RequestIDHeader, "abc")
				run(func(c *router.Context) { id = RequestID(c.Request.Context()) }, WithRequestID)
				So(id, ShouldEqual, "abc")
			})
		})

		Convey("WithPanicCatcher", func() {
			run(func(*router.Context) { panic("boom") }, WithPanicCatcher)
			So(rec.Code, ShouldEqual, http.StatusInternalServerError)
			So(memlogger.Get(ctx).HasSubstring(logging.Error, "panic while serving GET /x: boom"), ShouldBeTrue)
		})
	})
}
