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

// Package notify delivers change notifications to the callback URLs of a
// user's subscriptions.
package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"sync"
	"time"

	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"go.glassware.dev/glassware/common/clock"
	"go.glassware.dev/glassware/common/errors"
	"go.glassware.dev/glassware/common/logging"
	"go.glassware.dev/glassware/gae/protods"
	ds "go.glassware.dev/glassware/gae/service/datastore"
	"go.glassware.dev/glassware/mirror/model"
	"go.glassware.dev/glassware/server/tracing"
)

// UserAction is an action the user took on a timeline item.
type UserAction struct {
	Type    string `json:"type"`
	Payload string `json:"payload,omitempty"`
}

// Notification is the JSON body POSTed to a subscription's callback URL.
type Notification struct {
	Collection  string       `json:"collection"`
	ItemID      string       `json:"itemId"`
	Operation   string       `json:"operation"`
	UserToken   string       `json:"userToken"`
	VerifyToken string       `json:"verifyToken"`
	UserActions []UserAction `json:"userActions,omitempty"`
}

// Event is a change to an item of a collection.
type Event struct {
	Collection  string
	ItemID      string
	Operation   protods.EnumValue
	UserActions []UserAction
}

// Notifier sends notifications. The zero value is usable.
type Notifier struct {
	// Client sends the requests. Defaults to a client that opens a span per
	// request and passes the trace context to the callback.
	Client *http.Client
	// TracerProvider records the spans of the default client. Nil means the
	// global one.
	TracerProvider trace.TracerProvider
	// Workers bounds concurrent deliveries. Defaults to 8.
	Workers int
	// Timeout bounds each delivery. Defaults to 10s.
	Timeout time.Duration

	once   sync.Once
	traced *http.Client
}

// pageSize is how many subscriptions are loaded per query.
const pageSize = 100

// Notify delivers ev to every subscription of user that watches the
// collection and the operation. Each callback is tried once. The returned
// error is an errors.MultiError with one entry per failed delivery.
func (n *Notifier) Notify(ctx context.Context, user string, ev Event) error {
	subs, err := Subscriptions(ctx, user, ev.Collection)
	if err != nil {
		return err
	}
	subs = matching(subs, ev.Operation)
	if len(subs) == 0 {
		return nil
	}

	errs := make(errors.MultiError, len(subs))
	eg, ectx := errgroup.WithContext(ctx)
	eg.SetLimit(n.workers())
	for i, sub := range subs {
		eg.Go(func() error {
			errs[i] = n.deliver(ectx, sub, ev)
			return nil
		})
	}
	_ = eg.Wait()
	return errs.AsError()
}

// Subscriptions loads every subscription of user to collection.
func Subscriptions(ctx context.Context, user, collection string) ([]*protods.Entity, error) {
	var all []*protods.Entity
	var cursor ds.Cursor
	for {
		qi := model.Subscription.NewEntity().QueryInfo()
		if err := qi.SetAncestor(model.UserKey(user)); err != nil {
			return nil, err
		}
		if err := qi.Eq("collection", collection); err != nil {
			return nil, err
		}
		if cursor != "" {
			if err := qi.SetCursor(cursor); err != nil {
				return nil, err
			}
		}
		if err := qi.SetQuery(); err != nil {
			return nil, err
		}
		page, next, err := protods.Fetch(ctx, qi, pageSize)
		if err != nil {
			return nil, errors.Annotate(err, "loading subscriptions of %q", user).Err()
		}
		all = append(all, page...)
		if next == "" {
			return all, nil
		}
		cursor = next
	}
}

// matching keeps the subscriptions watching op. An empty operation list
// watches everything.
func matching(subs []*protods.Entity, op protods.EnumValue) []*protods.Entity {
	var out []*protods.Entity
	for _, s := range subs {
		ops, _ := s.Get("operation").([]any)
		if len(ops) == 0 {
			out = append(out, s)
			continue
		}
		for _, o := range ops {
			if o == op {
				out = append(out, s)
				break
			}
		}
	}
	return out
}

func (n *Notifier) deliver(ctx context.Context, sub *protods.Entity, ev Event) error {
	url, _ := sub.Get("callbackUrl").(string)
	body, err := json.Marshal(&Notification{
		Collection:  ev.Collection,
		ItemID:      ev.ItemID,
		Operation:   string(ev.Operation),
		UserToken:   str(sub.Get("userToken")),
		VerifyToken: str(sub.Get("verifyToken")),
		UserActions: ev.UserActions,
	})
	if err != nil {
		return errors.Annotate(err, "encoding notification").Err()
	}

	ctx, cancel := context.WithTimeout(ctx, n.timeout())
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return errors.Annotate(err, "bad callback URL %q", url).Err()
	}
	req.Header.Set("Content-Type", "application/json")

	start := clock.Now(ctx)
	resp, err := n.client().Do(req)
	if err != nil {
		return errors.Annotate(err, "notifying %s", url).Err()
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)
	if resp.StatusCode/100 != 2 {
		return errors.Reason("notifying %s: HTTP %d", url, resp.StatusCode).Err()
	}
	logging.Debugf(ctx, "notified %s of %s %s in %s", url, ev.Operation, ev.ItemID, clock.Since(ctx, start))
	return nil
}

func str(v any) string {
	s, _ := v.(string)
	return s
}

func (n *Notifier) client() *http.Client {
	if n.Client != nil {
		return n.Client
	}
	n.once.Do(func() {
		n.traced = &http.Client{Transport: tracing.Transport(nil, n.TracerProvider)}
	})
	return n.traced
}

func (n *Notifier) workers() int {
	if n.Workers > 0 {
		return n.Workers
	}
	return 8
}

func (n *Notifier) timeout() time.Duration {
	if n.Timeout > 0 {
		return n.Timeout
	}
	return 10 * time.Second
}
