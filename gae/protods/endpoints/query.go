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

package endpoints

import (
	"context"
	"net/http"

	"go.glassware.dev/glassware/common/errors"
	"go.glassware.dev/glassware/gae/protods"
	"go.glassware.dev/glassware/server/router"
)

// QueryFunc adjusts the query carried by the request entity before it runs,
// e.g. to set an ancestor or a default order.
type QueryFunc func(ctx context.Context, e *protods.Entity) error

// QueryOptions configures QueryMethod.
type QueryOptions struct {
	// QueryFields are the request fields. Set persistent fields become
	// equality filters; limit, order and pageToken drive paging. nil Names
	// means no fields.
	QueryFields protods.FieldSet

	// CollectionFields are the fields of the returned items. The zero
	// FieldSet means the schema's default fields.
	CollectionFields protods.FieldSet

	// DefaultLimit and MaxLimit default to protods.DefaultLimit and
	// protods.MaxLimit.
	DefaultLimit int
	MaxLimit     int

	UserRequired bool

	Prepare PrepareFunc
}

// QueryMethod returns a GET handler that decodes the request into an entity
// of s, lets fn adjust its query, runs it and answers with one page of the
// collection message.
func QueryMethod(s *protods.Schema, o QueryOptions, fn QueryFunc) (router.Handler, error) {
	if o.QueryFields.Names == nil {
		o.QueryFields.Names = []string{}
	}
	if o.DefaultLimit == 0 {
		o.DefaultLimit = protods.DefaultLimit
	}
	if o.MaxLimit == 0 {
		o.MaxLimit = protods.MaxLimit
	}
	req, err := s.ProtoModel(o.QueryFields, protods.WithoutMessageFields())
	if err != nil {
		return nil, errors.Annotate(err, "query message of %s", s.Kind).Err()
	}
	if _, err := s.ProtoCollection(o.CollectionFields); err != nil {
		return nil, errors.Annotate(err, "collection message of %s", s.Kind).Err()
	}

	return func(c *router.Context) {
		ctx := context.WithValue(c.Request.Context(), paramsKey{}, c.Params)
		e, err := decodeEntity(ctx, c, s, req, o.UserRequired, o.Prepare)
		if err == nil && fn != nil {
			err = fn(ctx, e)
		}
		if err != nil {
			WriteError(ctx, c.Writer, err)
			return
		}
		items, next, err := protods.FetchPage(ctx, e.QueryInfo(), o.DefaultLimit, o.MaxLimit)
		if err != nil {
			WriteError(ctx, c.Writer, err)
			return
		}
		out, err := s.ToMessageCollection(ctx, items, o.CollectionFields, next)
		if err != nil {
			WriteError(ctx, c.Writer, err)
			return
		}
		WriteMessage(ctx, c.Writer, http.StatusOK, out)
	}, nil
}
