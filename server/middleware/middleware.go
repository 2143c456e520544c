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

// Package middleware has router middleware shared by servers: context
// installation, request ids and panic recovery.
package middleware

import (
	"context"
	"net/http"
	"runtime/debug"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/trace"

	"go.glassware.dev/glassware/common/logging"
	"go.glassware.dev/glassware/server/router"
)

// RequestIDHeader is the response header carrying the request id.
const RequestIDHeader = "X-Request-Id"

type requestIDKey struct{}

// WithContext returns middleware that replaces the request context with
// fn(ctx) before calling the next handler.
func WithContext(fn func(context.Context) context.Context) router.Middleware {
	return func(c *router.Context, next router.Handler) {
		c.Request = c.Request.WithContext(fn(c.Request.Context()))
		next(c)
	}
}

// WithContextValue is a middleware that adds a value to the context before
// calling the handler.
func WithContextValue(key, val any) router.Middleware {
	return WithContext(func(ctx context.Context) context.Context {
		return context.WithValue(ctx, key, val)
	})
}

// WithBase makes root the parent of every request context. The request
// context's cancellation and its trace span still apply.
func WithBase(root context.Context) router.Middleware {
	return func(c *router.Context, next router.Handler) {
		ctx, cancel := context.WithCancel(root)
		defer cancel()
		if span := trace.SpanFromContext(c.Request.Context()); span.SpanContext().IsValid() {
			ctx = trace.ContextWithSpan(ctx, span)
		}
		stop := context.AfterFunc(c.Request.Context(), cancel)
		defer stop()
		c.Request = c.Request.WithContext(ctx)
		next(c)
	}
}

// TestingBase installs ctx as the request context. Useful in tests to
// inject a prepared context (fake datastore, test clock, memlogger).
func TestingBase(ctx context.Context) router.Middleware {
	return func(c *router.Context, next router.Handler) {
		c.Request = c.Request.WithContext(ctx)
		next(c)
	}
}

// WithRequestID assigns the request a random id. The id is echoed in the
// response headers and added to the logging fields.
func WithRequestID(c *router.Context, next router.Handler) {
	id := c.Request.Header.Get(RequestIDHeader)
	if id == "" {
		id = uuid.NewString()
	}
	c.Writer.Header().Set(RequestIDHeader, id)
	ctx := context.WithValue(c.Request.Context(), requestIDKey{}, id)
	ctx = logging.SetField(ctx, "requestID", id)
	c.Request = c.Request.WithContext(ctx)
	next(c)
}

// RequestID returns the id assigned by WithRequestID, or "".
func RequestID(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey{}).(string)
	return id
}

// WithPanicCatcher turns a panic in the rest of the chain into a logged
// internal error.
func WithPanicCatcher(c *router.Context, next router.Handler) {
	defer func() {
		if p := recover(); p != nil {
			if p == http.ErrAbortHandler {
				panic(p)
			}
			logging.Errorf(c.Request.Context(), "panic while serving %s %s: %v\n%s",
				c.Request.Method, c.Request.URL.Path, p, debug.Stack())
			http.Error(c.Writer, "Internal Server Error. See logs.", http.StatusInternalServerError)
		}
	}()
	next(c)
}
