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
	"fmt"
	"net/http"
	"strconv"

	"github.com/google/uuid"
	"google.golang.org/protobuf/encoding/protojson"

	"go.glassware.dev/glassware/common/errors"
	"go.glassware.dev/glassware/common/logging"
	"go.glassware.dev/glassware/gae/protods"
	"go.glassware.dev/glassware/gae/protods/endpoints"
	ds "go.glassware.dev/glassware/gae/service/datastore"
	"go.glassware.dev/glassware/grpc/grpcutil"
	"go.glassware.dev/glassware/mirror/media"
	"go.glassware.dev/glassware/mirror/model"
	"go.glassware.dev/glassware/server/router"
)

func (s *Server) installAttachments(in *installer) {
	in.handle(http.MethodGet, "/timeline/:id/attachments", endpoints.Raw(s.attachmentList), nil)
	in.handle(http.MethodGet, "/timeline/:id/attachments/:attachmentId", endpoints.Raw(s.attachmentGet), nil)
	in.handle(http.MethodDelete, "/timeline/:id/attachments/:attachmentId", endpoints.Raw(s.attachmentDelete), nil)
}

func (s *Server) installUploads(in *installer) {
	in.handle(http.MethodPost, "/timeline", endpoints.Raw(s.uploadInsert), nil)
	in.handle(http.MethodPost, "/timeline/:id/attachments", endpoints.Raw(s.uploadAttachment), nil)
	in.handle(http.MethodGet, "/timeline/:id/attachments/:attachmentId", endpoints.Raw(s.download), nil)
}

// callerItem loads the caller's live timeline item named by the id route
// parameter.
func callerItem(ctx context.Context) (*protods.Entity, error) {
	user, err := endpoints.RequireUser(ctx)
	if err != nil {
		return nil, err
	}
	id, err := pathID(ctx)
	if err != nil {
		return nil, err
	}
	item, err := protods.Get(ctx, model.TimelineItem, ds.IDKey(model.TimelineItem.Kind, id, model.UserKey(user)))
	if err != nil {
		return nil, err
	}
	if deleted, _ := item.Get("isDeleted").(bool); deleted {
		return nil, endpoints.NotFound("timeline item %d is deleted", id)
	}
	return item, nil
}

func attachmentsOf(item *protods.Entity) []*protods.Entity {
	vals, _ := item.Get("attachments").([]any)
	out := make([]*protods.Entity, 0, len(vals))
	for _, v := range vals {
		if a, ok := v.(*protods.Entity); ok {
			out = append(out, a)
		}
	}
	return out
}

// findAttachment returns the index of the attachment named by the
// attachmentId route parameter.
func findAttachment(ctx context.Context, atts []*protods.Entity) (int, error) {
	id := endpoints.PathParams(ctx).ByName("attachmentId")
	for i, a := range atts {
		if a.Get("id") == id {
			return i, nil
		}
	}
	return -1, endpoints.NotFound("attachment %s not found", id)
}

func (s *Server) attachmentList(ctx context.Context, c *router.Context) error {
	item, err := callerItem(ctx)
	if err != nil {
		return err
	}
	out, err := model.Attachment.ToMessageCollection(ctx, attachmentsOf(item), protods.FieldSet{}, "")
	if err != nil {
		return err
	}
	endpoints.WriteMessage(ctx, c.Writer, http.StatusOK, out)
	return nil
}

func (s *Server) attachmentGet(ctx context.Context, c *router.Context) error {
	item, err := callerItem(ctx)
	if err != nil {
		return err
	}
	atts := attachmentsOf(item)
	i, err := findAttachment(ctx, atts)
	if err != nil {
		return err
	}
	out, err := atts[i].ToMessage(ctx, protods.FieldSet{})
	if err != nil {
		return err
	}
	endpoints.WriteMessage(ctx, c.Writer, http.StatusOK, out)
	return nil
}

func (s *Server) attachmentDelete(ctx context.Context, c *router.Context) error {
	item, err := callerItem(ctx)
	if err != nil {
		return err
	}
	atts := attachmentsOf(item)
	i, err := findAttachment(ctx, atts)
	if err != nil {
		return err
	}
	name, _ := atts[i].Get("id").(string)
	if err := item.Set("attachments", append(atts[:i:i], atts[i+1:]...)); err != nil {
		return err
	}
	if err := protods.Put(ctx, item); err != nil {
		return err
	}
	if err := s.media().Delete(ctx, name); err != nil {
		logging.WithError(err).Warningf(ctx, "failed to delete the content of attachment %s", name)
	}
	s.notify(ctx, model.CollectionTimeline, model.OpUpdate, item)
	c.Writer.WriteHeader(http.StatusNoContent)
	return nil
}

// uploadInsert creates a timeline item from the JSON metadata of a
// multipart upload and attaches the uploaded media to it.
func (s *Server) uploadInsert(ctx context.Context, c *router.Context) error {
	if _, err := endpoints.RequireUser(ctx); err != nil {
		return err
	}
	up, err := readUpload(c.Request)
	if err != nil {
		return err
	}
	item := model.TimelineItem.NewEntity()
	if err := owned(ctx, item); err != nil {
		return err
	}
	if len(up.Metadata) > 0 {
		mc, err := model.TimelineItem.ProtoModel(protods.Fields(model.TimelineContent...))
		if err != nil {
			return err
		}
		m := mc.New()
		if err := protojson.Unmarshal(up.Metadata, m); err != nil {
			return errors.Annotate(err, "bad metadata").Tag(grpcutil.InvalidArgumentTag).Err()
		}
		if err := item.FillFromMessage(ctx, m); err != nil {
			return err
		}
	}
	if err := protods.Put(ctx, item); err != nil {
		return err
	}
	if err := s.attach(ctx, item, up); err != nil {
		return err
	}
	s.notify(ctx, model.CollectionTimeline, model.OpInsert, item)
	return writeItem(ctx, c, item)
}

// uploadAttachment adds the uploaded media to an existing item.
func (s *Server) uploadAttachment(ctx context.Context, c *router.Context) error {
	item, err := callerItem(ctx)
	if err != nil {
		return err
	}
	up, err := readUpload(c.Request)
	if err != nil {
		return err
	}
	if err := s.attach(ctx, item, up); err != nil {
		return err
	}
	s.notify(ctx, model.CollectionTimeline, model.OpUpdate, item)
	return writeItem(ctx, c, item)
}

// attach stores the uploaded media under a new name and records it as an
// attachment of the stored item.
func (s *Server) attach(ctx context.Context, item *protods.Entity, up *upload) error {
	name := uuid.NewString()
	if err := s.media().Put(ctx, name, &media.Blob{ContentType: up.ContentType, Data: up.Data}); err != nil {
		return err
	}
	a := model.Attachment.NewEntity().
		MustSet("id", name).
		MustSet("contentType", up.ContentType).
		MustSet("contentUrl", fmt.Sprintf("%s%s/timeline/%s/attachments/%s", s.BaseURL, UploadPath, idOf(item), name)).
		MustSet("isProcessingContent", false)
	atts := attachmentsOf(item)
	if err := item.Set("attachments", append(atts, a)); err != nil {
		return err
	}
	return protods.Put(ctx, item)
}

func writeItem(ctx context.Context, c *router.Context, item *protods.Entity) error {
	out, err := item.ToMessage(ctx, protods.FieldSet{})
	if err != nil {
		return err
	}
	endpoints.WriteMessage(ctx, c.Writer, http.StatusOK, out)
	return nil
}

// download answers with the content of an attachment.
func (s *Server) download(ctx context.Context, c *router.Context) error {
	item, err := callerItem(ctx)
	if err != nil {
		return err
	}
	atts := attachmentsOf(item)
	i, err := findAttachment(ctx, atts)
	if err != nil {
		return err
	}
	name, _ := atts[i].Get("id").(string)
	blob, err := s.media().Get(ctx, name)
	if err != nil {
		return err
	}
	c.Writer.Header().Set("Content-Type", blob.ContentType)
	c.Writer.Header().Set("Content-Length", strconv.Itoa(len(blob.Data)))
	c.Writer.WriteHeader(http.StatusOK)
	if _, err := c.Writer.Write(blob.Data); err != nil {
		logging.WithError(err).Warningf(ctx, "writing attachment %s", name)
	}
	return nil
}
