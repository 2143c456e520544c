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

	"go.glassware.dev/glassware/gae/protods"
	"go.glassware.dev/glassware/gae/protods/endpoints"
	"go.glassware.dev/glassware/mirror/model"
)

func (s *Server) installContacts(in *installer) {
	byID := protods.Fields("id")

	h, err := endpoints.Method(model.Contact, endpoints.Options{
		UserRequired:  true,
		Prepare:       owned,
		SuccessStatus: http.StatusCreated,
	}, func(ctx context.Context, e *protods.Entity) (*protods.Entity, error) {
		if e.Key() == nil {
			return nil, invalid("contact id is required")
		}
		return e, protods.Put(ctx, e)
	})
	in.handle(http.MethodPost, "/contacts", h, err)

	h, err = endpoints.QueryMethod(model.Contact, endpoints.QueryOptions{
		QueryFields:  protods.Fields("limit", "order", "pageToken"),
		UserRequired: true,
	}, byCaller("displayName"))
	in.handle(http.MethodGet, "/contacts", h, err)

	h, err = endpoints.Method(model.Contact, endpoints.Options{
		RequestFields: byID,
		UserRequired:  true,
		Prepare:       owned,
	}, func(_ context.Context, e *protods.Entity) (*protods.Entity, error) {
		return e, found(e)
	})
	in.handle(http.MethodGet, "/contacts/:id", h, err)

	h, err = endpoints.Method(model.Contact, endpoints.Options{
		UserRequired: true,
		Prepare:      owned,
	}, func(ctx context.Context, e *protods.Entity) (*protods.Entity, error) {
		if err := found(e); err != nil {
			return nil, err
		}
		return e, protods.Put(ctx, e)
	})
	in.handle(http.MethodPatch, "/contacts/:id", h, err)

	h, err = endpoints.Method(model.Contact, endpoints.Options{
		RequestFields: byID,
		UserRequired:  true,
		Prepare:       owned,
	}, func(ctx context.Context, e *protods.Entity) (*protods.Entity, error) {
		if err := found(e); err != nil {
			return nil, err
		}
		return nil, protods.Delete(ctx, e)
	})
	in.handle(http.MethodDelete, "/contacts/:id", h, err)
}
