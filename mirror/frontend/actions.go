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
	"strconv"

	"go.glassware.dev/glassware/gae/protods"
	"go.glassware.dev/glassware/gae/protods/endpoints"
	ds "go.glassware.dev/glassware/gae/service/datastore"
	"go.glassware.dev/glassware/mirror/model"
	"go.glassware.dev/glassware/mirror/notify"
)

func (s *Server) installActions(in *installer) {
	h, err := endpoints.Method(model.Action, endpoints.Options{
		UserRequired: true,
	}, s.actionInsert)
	in.handle(http.MethodPost, "/actions", h, err)
}

// actionInsert forwards a user action on one of the caller's timeline items
// to the caller's subscribers as an UPDATE of the item.
func (s *Server) actionInsert(ctx context.Context, e *protods.Entity) (*protods.Entity, error) {
	collection, _ := e.Get("collection").(string)
	if collection == "" {
		collection = model.CollectionTimeline
	}
	itemID, _ := e.Get("itemId").(int64)
	action, _ := e.Get("action").(protods.EnumValue)
	switch {
	case collection != model.CollectionTimeline:
		return nil, invalid("actions on %q are not supported", collection)
	case itemID <= 0:
		return nil, invalid("itemId is required")
	case action == "":
		return nil, invalid("action is required")
	}

	user := endpoints.CurrentUser(ctx)
	item, err := protods.Get(ctx, model.TimelineItem, ds.IDKey(model.TimelineItem.Kind, itemID, model.UserKey(user)))
	if err != nil {
		return nil, err
	}
	if deleted, _ := item.Get("isDeleted").(bool); deleted {
		return nil, endpoints.NotFound("timeline item %d is deleted", itemID)
	}

	value, _ := e.Get("value").(string)
	s.notifyEvent(ctx, notify.Event{
		Collection:  collection,
		ItemID:      strconv.FormatInt(itemID, 10),
		Operation:   model.OpUpdate,
		UserActions: []notify.UserAction{{Type: string(action), Payload: value}},
	})
	return model.ActionResponse.NewEntity().MustSet("success", true), nil
}
