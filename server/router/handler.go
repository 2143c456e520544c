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

// Handler serves a request.
type Handler func(*Context)

// Middleware wraps the rest of the chain. It either writes the response
// itself or calls next, never both. It may replace c.Request, e.g. to attach
// a derived context.Context, before calling next.
type Middleware func(c *Context, next Handler)

// MiddlewareChain is an ordered list of Middleware, outermost first.
type MiddlewareChain []Middleware

// NewMiddlewareChain returns a chain of mw. nil entries are skipped when the
// chain runs.
func NewMiddlewareChain(mw ...Middleware) MiddlewareChain {
	if len(mw) == 0 {
		return nil
	}
	return append(MiddlewareChain(nil), mw...)
}

// Extend returns a new chain with mw appended. mc is not modified.
func (mc MiddlewareChain) Extend(mw ...Middleware) MiddlewareChain {
	out := make(MiddlewareChain, 0, len(mc)+len(mw))
	return append(append(out, mc...), mw...)
}

// RunMiddleware runs mc and then h against c. Handy in tests.
func RunMiddleware(c *Context, mc MiddlewareChain, h Handler) {
	run(c, mc, nil, h)
}

// run executes the router chain m, then the route chain n, then h.
func run(c *Context, m, n MiddlewareChain, h Handler) {
	var chain MiddlewareChain
	for _, mc := range [...]MiddlewareChain{m, n} {
		for _, mw := range mc {
			if mw != nil {
				chain = append(chain, mw)
			}
		}
	}
	var step func(i int) Handler
	step = func(i int) Handler {
		if i == len(chain) {
			return func(c *Context) {
				if h != nil {
					h(c)
				}
			}
		}
		return func(c *Context) { chain[i](c, step(i+1)) }
	}
	step(0)(c)
}
