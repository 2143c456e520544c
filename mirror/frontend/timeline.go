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

	"go.glassware.dev/glassware/common/logging"
	"go.glassware.dev/glassware/gae/protods"
	"go.glassware.dev/glassware/gae/protods/endpoints"
	ds "go.glassware.dev/glassware/gae/service/datastore"
	"go.glassware.dev/glassware/mirror/model"
)

// Timeline list defaults.
const (
	timelineDefaultLimit = 20
	timelineOrder        = "-created"
)

func (s *Server) installTimeline(in *installer) {
	content := protods.Fields(model.TimelineContent...)
	withID := protods.Fields(append([]string{"id"}, model.TimelineContent...)...)
	byID := protods.Fields("id")

	h, err := endpoints.Method(model.TimelineItem, endpoints.Options{
		RequestFields: content,
		UserRequired:  true,
		Prepare:       owned,
		SuccessStatus: http.StatusCreated,
	}, s.timelineInsert)
	in.handle(http.MethodPost, "/timeline", h, err)

	h, err = endpoints.QueryMethod(model.TimelineItem, endpoints.QueryOptions{
		QueryFields: protods.Fields(
			"bundleId", "includeDeleted", "maxResults", "order",
			"pageToken", "pinnedOnly", "sourceItemId",
		),
		DefaultLimit: timelineDefaultLimit,
		UserRequired: true,
	}, byCaller(timelineOrder))
	in.handle(http.MethodGet, "/timeline", h, err)

	h, err = endpoints.Method(model.TimelineItem, endpoints.Options{
		RequestFields: byID,
		UserRequired:  true,
		Prepare:       owned,
	}, func(_ context.Context, e *protods.Entity) (*protods.Entity, error) {
		return e, found(e)
	})
	in.handle(http.MethodGet, "/timeline/:id", h, err)

	h, err = endpoints.Method(model.TimelineItem, endpoints.Options{
		RequestFields: content,
		UserRequired:  true,
		Prepare:       owned,
	}, s.timelineUpdate)
	in.handle(http.MethodPut, "/timeline/:id", h, err)

	h, err = endpoints.Method(model.TimelineItem, endpoints.Options{
		RequestFields: withID,
		UserRequired:  true,
		Prepare:       owned,
	}, s.timelinePatch)
	in.handle(http.MethodPatch, "/timeline/:id", h, err)

	h, err = endpoints.Method(model.TimelineItem, endpoints.Options{
		RequestFields: byID,
		UserRequired:  true,
		Prepare:       owned,
	}, s.timelineDelete)
	in.handle(http.MethodDelete, "/timeline/:id", h, err)
}

func (s *Server) timelineInsert(ctx context.Context, e *protods.Entity) (*protods.Entity, error) {
	if err := protods.Put(ctx, e); err != nil {
		return nil, err
	}
	s.notify(ctx, model.CollectionTimeline, model.OpInsert, e)
	return e, nil
}

// timelineUpdate replaces the content of a stored item.
func (s *Server) timelineUpdate(ctx context.Context, e *protods.Entity) (*protods.Entity, error) {
	id, err := pathID(ctx)
	if err != nil {
		return nil, err
	}
	stored, err := protods.Get(ctx, model.TimelineItem, ds.IDKey(model.TimelineItem.Kind, id, e.Parent()))
	if err != nil {
		return nil, err
	}
	e.SetKey(stored.Key())
	for _, f := range []string{"created", "attachments", "isDeleted"} {
		if err := e.Set(f, stored.Get(f)); err != nil {
			return nil, err
		}
	}
	if err := protods.Put(ctx, e); err != nil {
		return nil, err
	}
	s.notify(ctx, model.CollectionTimeline, model.OpUpdate, e)
	return e, nil
}

// timelinePatch changes the fields present in the request only.
func (s *Server) timelinePatch(ctx context.Context, e *protods.Entity) (*protods.Entity, error) {
	if err := found(e); err != nil {
		return nil, err
	}
	if err := protods.Put(ctx, e); err != nil {
		return nil, err
	}
	s.notify(ctx, model.CollectionTimeline, model.OpUpdate, e)
	return e, nil
}

// timelineDelete drops the content and the attachments of an item and marks
// it deleted. The item stays listable with includeDeleted.
func (s *Server) timelineDelete(ctx context.Context, e *protods.Entity) (*protods.Entity, error) {
	if err := found(e); err != nil {
		return nil, err
	}
	atts := attachmentsOf(e)
	for _, f := range append([]string{"attachments"}, model.TimelineContent...) {
		if err := e.Set(f, nil); err != nil {
			return nil, err
		}
	}
	if err := e.Set("isDeleted", true); err != nil {
		return nil, err
	}
	if err := protods.Put(ctx, e); err != nil {
		return nil, err
	}
	for _, a := range atts {
		name, _ := a.Get("id").(string)
		if err := s.media().Delete(ctx, name); err != nil {
			logging.WithError(err).Warningf(ctx, "failed to delete the content of attachment %s", name)
		}
	}
	s.notify(ctx, model.CollectionTimeline, model.OpDelete, e)
	return nil, nil
}
