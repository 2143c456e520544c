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

func (s *Server) installLocations(in *installer) {
	h, err := endpoints.Method(model.Location, endpoints.Options{
		RequestFields: protods.Fields("timestamp", "latitude", "longitude", "accuracy", "displayName", "address"),
		UserRequired:  true,
		Prepare:       owned,
		SuccessStatus: http.StatusCreated,
	}, func(ctx context.Context, e *protods.Entity) (*protods.Entity, error) {
		if err := protods.Put(ctx, e); err != nil {
			return nil, err
		}
		s.notify(ctx, model.CollectionLocations, model.OpInsert, e)
		return e, nil
	})
	in.handle(http.MethodPost, "/locations", h, err)

	h, err = endpoints.QueryMethod(model.Location, endpoints.QueryOptions{
		QueryFields:  protods.Fields("limit", "pageToken"),
		UserRequired: true,
	}, byCaller("-timestamp"))
	in.handle(http.MethodGet, "/locations", h, err)

	h, err = endpoints.Method(model.Location, endpoints.Options{
		RequestFields: protods.Fields("id"),
		UserRequired:  true,
		Prepare:       owned,
	}, func(ctx context.Context, e *protods.Entity) (*protods.Entity, error) {
		if !e.FromDatastore() {
			return nil, endpoints.NotFound("location %s not found", endpoints.PathParams(ctx).ByName("id"))
		}
		return e, nil
	})
	in.handle(http.MethodGet, "/locations/:id", h, err)
}
