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

package frontend

import (
	"context"
	"net/http"
	"net/url"

	"github.com/google/uuid"

	"go.glassware.dev/glassware/gae/protods"
	"go.glassware.dev/glassware/gae/protods/endpoints"
	"go.glassware.dev/glassware/mirror/model"
)

func (s *Server) installSubscriptions(in *installer) {
	h, err := endpoints.Method(model.Subscription, endpoints.Options{
		RequestFields: protods.Fields("collection", "userToken", "verifyToken", "operation", "callbackUrl"),
		UserRequired:  true,
		Prepare:       owned,
		SuccessStatus: http.StatusCreated,
	}, subscriptionInsert)
	in.handle(http.MethodPost, "/subscriptions", h, err)

	h, err = endpoints.QueryMethod(model.Subscription, endpoints.QueryOptions{
		QueryFields:  protods.Fields("collection", "limit", "pageToken"),
		UserRequired: true,
	}, byCaller(""))
	in.handle(http.MethodGet, "/subscriptions", h, err)

	h, err = endpoints.Method(model.Subscription, endpoints.Options{
		RequestFields: protods.Fields("id"),
		UserRequired:  true,
		Prepare:       owned,
	}, func(ctx context.Context, e *protods.Entity) (*protods.Entity, error) {
		if err := found(e); err != nil {
			return nil, err
		}
		return nil, protods.Delete(ctx, e)
	})
	in.handle(http.MethodDelete, "/subscriptions/:id", h, err)
}

func subscriptionInsert(ctx context.Context, e *protods.Entity) (*protods.Entity, error) {
	switch c := e.Get("collection"); c {
	case model.CollectionTimeline, model.CollectionLocations:
	default:
		return nil, invalid("cannot subscribe to collection %v", c)
	}
	cb, _ := e.Get("callbackUrl").(string)
	if u, err := url.Parse(cb); err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return nil, invalid("bad callbackUrl %q", cb)
	}
	if !e.IsSet("verifyToken") {
		if err := e.Set("verifyToken", uuid.NewString()); err != nil {
			return nil, err
		}
	}
	if err := protods.Put(ctx, e); err != nil {
		return nil, err
	}
	return e, nil
}
