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

package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
	"go.opentelemetry.io/otel/trace"

	"go.glassware.dev/glassware/common/errors"
	"go.glassware.dev/glassware/gae/impl/memory"
	"go.glassware.dev/glassware/gae/protods"
	"go.glassware.dev/glassware/mirror/model"

	. "github.com/smartystreets/goconvey/convey"
	. "go.glassware.dev/glassware/common/testing/assertions"
)

type receiver struct {
	m       sync.Mutex
	got     []Notification
	parents []string
	code    int
}

func (r *receiver) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	var n Notification
	if err := json.NewDecoder(req.Body).Decode(&n); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	r.m.Lock()
	defer r.m.Unlock()
	r.got = append(r.got, n)
	r.parents = append(r.parents, req.Header.Get("Traceparent"))
	if r.code != 0 {
		w.WriteHeader(r.code)
	}
}

func TestNotify(t *testing.T) {
	t.Parallel()

	Convey("With subscriptions", t, func() {
		c := memory.Use(context.Background())
		So(model.Register(c), ShouldBeNil)

		recv := &receiver{}
		srv := httptest.NewServer(recv)
		defer srv.Close()

		subscribe := func(user, collection, token string, ops ...string) {
			e := model.Subscription.NewEntity()
			So(model.ForUser(e, user), ShouldBeNil)
			e.MustSet("collection", collection).
				MustSet("userToken", token).
				MustSet("verifyToken", "secret").
				MustSet("callbackUrl", srv.URL)
			if len(ops) > 0 {
				e.MustSet("operation", ops)
			}
			So(protods.Put(c, e), ShouldBeNil)
		}

		subscribe("ada", model.CollectionTimeline, "all")
		subscribe("ada", model.CollectionTimeline, "deletes", "DELETE")
		subscribe("ada", model.CollectionLocations, "loc")
		subscribe("bob", model.CollectionTimeline, "bob")

		n := &Notifier{Client: srv.Client(), Workers: 2}

		Convey("Subscriptions filters by user and collection", func() {
			subs, err := Subscriptions(c, "ada", model.CollectionTimeline)
			So(err, ShouldBeNil)
			So(subs, ShouldHaveLength, 2)
		})

		Convey("Subscriptions pages through many", func() {
			for i := 0; i < pageSize+5; i++ {
				subscribe("eve", model.CollectionTimeline, fmt.Sprintf("t%d", i))
			}
			subs, err := Subscriptions(c, "eve", model.CollectionTimeline)
			So(err, ShouldBeNil)
			So(subs, ShouldHaveLength, pageSize+5)
		})

		Convey("inserts reach subscribers of every operation", func() {
			err := n.Notify(c, "ada", Event{
				Collection: model.CollectionTimeline,
				ItemID:     "42",
				Operation:  model.OpInsert,
			})
			So(err, ShouldBeNil)
			So(recv.got, ShouldResemble, []Notification{{
				Collection:  "timeline",
				ItemID:      "42",
				Operation:   "INSERT",
				UserToken:   "all",
				VerifyToken: "secret",
			}})
		})

		Convey("deletes reach both", func() {
			err := n.Notify(c, "ada", Event{
				Collection:  model.CollectionTimeline,
				ItemID:      "42",
				Operation:   model.OpDelete,
				UserActions: []UserAction{{Type: "DELETE"}},
			})
			So(err, ShouldBeNil)
			So(recv.got, ShouldHaveLength, 2)
			So(recv.got[0].UserActions, ShouldResemble, []UserAction{{Type: "DELETE"}})
		})

		Convey("nobody subscribed", func() {
			So(n.Notify(c, "zed", Event{Collection: model.CollectionTimeline, Operation: model.OpInsert}), ShouldBeNil)
			So(recv.got, ShouldBeEmpty)
		})

		Convey("deliveries are traced", func() {
			sr := tracetest.NewSpanRecorder()
			tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(sr))
			n := &Notifier{TracerProvider: tp}

			ctx, parent := tp.Tracer("test").Start(c, "request")
			err := n.Notify(ctx, "ada", Event{
				Collection: model.CollectionTimeline,
				ItemID:     "42",
				Operation:  model.OpDelete,
			})
			parent.End()
			So(err, ShouldBeNil)

			var clientSpans []sdktrace.ReadOnlySpan
			for _, s := range sr.Ended() {
				if s.SpanKind() == trace.SpanKindClient {
					clientSpans = append(clientSpans, s)
				}
			}
			So(clientSpans, ShouldHaveLength, 2)
			for _, s := range clientSpans {
				So(s.Parent().SpanID(), ShouldEqual, parent.SpanContext().SpanID())
			}
			So(recv.parents, ShouldHaveLength, 2)
			for _, tp := range recv.parents {
				So(tp, ShouldContainSubstring, parent.SpanContext().TraceID().String())
			}
		})

		Convey("failures are collected", func() {
			recv.code = http.StatusInternalServerError
			err := n.Notify(c, "ada", Event{
				Collection: model.CollectionTimeline,
				ItemID:     "42",
				Operation:  model.OpDelete,
			})
			So(err, ShouldErrLike, "HTTP 500")
			var merr errors.MultiError
			So(errors.As(err, &merr), ShouldBeTrue)
			n, first := merr.Summary()
			So(n, ShouldEqual, 2)
			So(first, ShouldNotBeNil)
			So(recv.got, ShouldHaveLength, 2)
		})
	})
}
