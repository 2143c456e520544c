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

// Package frontend serves the Mirror REST API: timeline items with their
// attachments, contacts, locations and subscriptions of the calling user.
package frontend

import (
	"context"
	"strconv"

	"go.glassware.dev/glassware/common/errors"
	"go.glassware.dev/glassware/common/logging"
	"go.glassware.dev/glassware/gae/protods"
	"go.glassware.dev/glassware/gae/protods/endpoints"
	"go.glassware.dev/glassware/grpc/grpcutil"
	"go.glassware.dev/glassware/mirror/media"
	"go.glassware.dev/glassware/mirror/model"
	"go.glassware.dev/glassware/mirror/notify"
	"go.glassware.dev/glassware/server/router"
)

// BasePath is the root of the API.
const BasePath = "/mirror/v1"

// UploadPath is the root of the media upload and download methods.
const UploadPath = "/upload" + BasePath

// Server implements the API.
type Server struct {
	// Notifier tells subscribers about timeline changes. Nil disables
	// notifications.
	Notifier *notify.Notifier
	// Media keeps attachment content. Defaults to the datastore.
	Media media.Store
	// BaseURL prefixes the contentUrl of attachments, e.g.
	// "https://glass.example.com". Empty means host-relative URLs.
	BaseURL string
}

// installer registers handlers, collecting the errors of building them.
type installer struct {
	r    *router.Router
	mc   router.MiddlewareChain
	errs errors.MultiError
}

func (in *installer) handle(method, path string, h router.Handler, err error) {
	if err != nil {
		in.errs.MaybeAdd(errors.Annotate(err, "%s %s", method, path).Err())
		return
	}
	in.r.Handle(method, path, in.mc, h)
}

// InstallHandlers registers the API routes under BasePath. mc must identify
// the user, e.g. with endpoints.UserFromHeader.
func (s *Server) InstallHandlers(ctx context.Context, r *router.Router, mc router.MiddlewareChain) error {
	if err := model.Register(ctx); err != nil {
		return errors.Annotate(err, "registering models").Err()
	}
	in := &installer{r: r.Subrouter(BasePath), mc: mc}
	s.installTimeline(in)
	s.installAttachments(in)
	s.installContacts(in)
	s.installLocations(in)
	s.installSubscriptions(in)
	s.installActions(in)

	up := &installer{r: r.Subrouter(UploadPath), mc: mc}
	s.installUploads(up)

	in.errs.MaybeAdd(up.errs.AsError())
	return in.errs.AsError()
}

// owned makes the request entity belong to the caller.
func owned(ctx context.Context, e *protods.Entity) error {
	return model.ForUser(e, endpoints.CurrentUser(ctx))
}

// byCaller limits a query to the caller's entities, ordered by order unless
// the request asked for another order.
func byCaller(order string) endpoints.QueryFunc {
	return func(ctx context.Context, e *protods.Entity) error {
		qi := e.QueryInfo()
		if err := qi.SetAncestor(model.UserKey(endpoints.CurrentUser(ctx))); err != nil {
			return err
		}
		if qi.Order() == "" && order != "" {
			return qi.SetOrder(order)
		}
		return nil
	}
}

// found fails with 404 unless e was loaded from the datastore.
func found(e *protods.Entity) error {
	if e.FromDatastore() {
		return nil
	}
	return endpoints.NotFound("%s %s not found", e.Schema().Kind, idOf(e))
}

func invalid(format string, args ...any) error {
	return errors.Reason(format, args...).Tag(grpcutil.InvalidArgumentTag).Err()
}

// pathID parses the integer id route parameter.
func pathID(ctx context.Context) (int64, error) {
	raw := endpoints.PathParams(ctx).ByName("id")
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, invalid("bad id %q", raw)
	}
	return id, nil
}

func idOf(e *protods.Entity) string {
	switch k := e.Key(); {
	case k == nil:
		return ""
	case k.Name != "":
		return k.Name
	default:
		return strconv.FormatInt(k.ID, 10)
	}
}

// notify tells the caller's subscribers about a change. Failures are only
// logged.
func (s *Server) notify(ctx context.Context, collection string, op protods.EnumValue, e *protods.Entity) {
	s.notifyEvent(ctx, notify.Event{Collection: collection, ItemID: idOf(e), Operation: op})
}

func (s *Server) notifyEvent(ctx context.Context, ev notify.Event) {
	if s.Notifier == nil {
		return
	}
	if err := s.Notifier.Notify(ctx, endpoints.CurrentUser(ctx), ev); err != nil {
		logging.WithError(err).Warningf(ctx, "failed to notify subscribers of %s %s", ev.Operation, ev.ItemID)
	}
}

func (s *Server) media() media.Store {
	if s.Media != nil {
		return s.Media
	}
	return media.Datastore{}
}
