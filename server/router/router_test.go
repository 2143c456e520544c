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

package router

import (
	"net/http"
	"net/http/httptest"
	"testing"

	. "github.com/smartystreets/goconvey/convey"
)

func TestRouter(t *testing.T) {
	t.Parallel()

	Convey("Router", t, func() {
		var trace []string
		mw := func(name string) Middleware {
			return func(c *Context, next Handler) {
				trace = append(trace, name)
				next(c)
			}
		}
		handler := func(c *Context) {
			trace = append(trace, "handler:"+c.Params.ByName("id"))
			c.Writer.WriteHeader(http.StatusTeapot)
		}
		serve := func(r *Router, method, path string) *httptest.ResponseRecorder {
			rec := httptest.NewRecorder()
			r.ServeHTTP(rec, httptest.NewRequest(method, path, nil))
			return rec
		}

		r := New()
		r.Use(NewMiddlewareChain(mw("root")))

		Convey("runs router middleware before route middleware", func() {
			r.GET("/a/:id", NewMiddlewareChain(mw("route"), nil), handler)
			So(serve(r, "GET", "/a/7").Code, ShouldEqual, http.StatusTeapot)
			So(trace, ShouldResemble, []string{"root", "route", "handler:7"})
		})

		Convey("subrouters inherit middleware and base path", func() {
			sub := r.Subrouter("api/v1")
			sub.Use(NewMiddlewareChain(mw("sub")))
			sub.POST("/items/:id", nil, handler)
			r.POST("/items/:id", nil, handler)

			So(serve(r, "POST", "/api/v1/items/x").Code, ShouldEqual, http.StatusTeapot)
			So(trace, ShouldResemble, []string{"root", "sub", "handler:x"})

			trace = nil
			serve(r, "POST", "/items/y")
			So(trace, ShouldResemble, []string{"root", "handler:y"})
		})

		Convey("middleware may answer without calling next", func() {
			stop := func(c *Context, next Handler) {
				c.Writer.WriteHeader(http.StatusUnauthorized)
			}
			r.DELETE("/b", NewMiddlewareChain(stop), handler)
			So(serve(r, "DELETE", "/b").Code, ShouldEqual, http.StatusUnauthorized)
			So(trace, ShouldResemble, []string{"root"})
		})

		Convey("not found goes through middleware", func() {
			r.NotFound(nil, func(c *Context) { c.Writer.WriteHeader(http.StatusNotFound) })
			So(serve(r, "GET", "/nope").Code, ShouldEqual, http.StatusNotFound)
			So(trace, ShouldResemble, []string{"root"})
		})

		Convey("Extend leaves the original chain alone", func() {
			base := NewMiddlewareChain(mw("a"))
			ext := base.Extend(mw("b"))
			So(base, ShouldHaveLength, 1)
			So(ext, ShouldHaveLength, 2)
			RunMiddleware(&Context{}, ext, func(*Context) { trace = append(trace, "h") })
			So(trace, ShouldResemble, []string{"a", "b", "h"})
		})
	})
}

func TestMakeBasePath(t *testing.T) {
	t.Parallel()

	Convey("makeBasePath", t, func() {
		So(makeBasePath("/", ""), ShouldEqual, "/")
		So(makeBasePath("/", "mirror/v1"), ShouldEqual, "/mirror/v1")
		So(makeBasePath("/mirror/v1", "/timeline/:id"), ShouldEqual, "/mirror/v1/timeline/:id")
		So(makeBasePath("/a/", "b/"), ShouldEqual, "/a/b/")
		So(makeBasePath("//a", "//b"), ShouldEqual, "/a/b")
	})
}
