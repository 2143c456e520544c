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

package protods

import (
	"context"

	"go.glassware.dev/glassware/common/clock"
	"go.glassware.dev/glassware/common/errors"
	ds "go.glassware.dev/glassware/gae/service/datastore"
	"go.glassware.dev/glassware/grpc/grpcutil"
)

// Put stamps auto-now fields with the context clock and stores e. An entity
// without a key gets a new one under its parent, and e's key is updated.
func Put(ctx context.Context, e *Entity) error {
	now := clock.Now(ctx)
	for _, f := range e.schema.fields {
		if f.AutoNow || (f.AutoNowAdd && !e.IsSet(f.Name)) {
			e.values[f.Name] = normalizeTime(f.Type, now)
		}
	}
	k := e.key
	if k == nil {
		k = ds.IncompleteKey(e.schema.Kind, e.parent)
	}
	nk, err := ds.Put(ctx, k, e)
	if err != nil {
		return errors.Annotate(err, "storing %s", e.schema.Kind).Err()
	}
	e.SetKey(nk)
	return nil
}

// Get loads the entity of s stored under k. A missing entity is an error
// that matches ds.ErrNoSuchEntity and carries codes.NotFound.
func Get(ctx context.Context, s *Schema, k *ds.Key) (*Entity, error) {
	if k == nil || k.Kind != s.Kind {
		return nil, reason(RequestValidationTag, "need a %s key, got %v", s.Kind, k)
	}
	e := s.NewEntity()
	switch err := ds.Get(ctx, k, e); {
	case errors.Is(err, ds.ErrNoSuchEntity):
		return nil, errors.Annotate(err, "%s not found", k).Tag(grpcutil.NotFoundTag).Err()
	case err != nil:
		return nil, errors.Annotate(err, "loading %s", k).Err()
	}
	e.SetKey(k)
	e.fromDatastore = true
	return e, nil
}

// Delete removes e from the store.
func Delete(ctx context.Context, e *Entity) error {
	if e.key == nil || e.key.Incomplete() {
		return reason(RequestValidationTag, "cannot delete a %s without a complete key", e.schema.Kind)
	}
	if err := ds.Delete(ctx, e.key); err != nil {
		return errors.Annotate(err, "deleting %s", e.key).Err()
	}
	return nil
}

// Fetch runs the finalized query of qi and returns up to limit entities
// starting at the QueryInfo cursor. next is empty on the last page.
func Fetch(ctx context.Context, qi *QueryInfo, limit int) (items []*Entity, next ds.Cursor, err error) {
	fq := qi.Query()
	if fq == nil {
		return nil, "", reason(StateTag, "query info is not final")
	}
	if limit <= 0 {
		return nil, "", reason(RequestValidationTag, "limit must be positive, got %d", limit)
	}
	s := qi.entity.schema
	next, err = ds.Run(ctx, fq, limit, qi.cursor, func() ds.PropertyLoadSaver {
		e := s.NewEntity()
		e.fromDatastore = true
		items = append(items, e)
		return e
	})
	if err != nil {
		return nil, "", errors.Annotate(err, "running %s", fq).Err()
	}
	return items, next, nil
}

// FetchPage finalizes qi, checks its limit against def and maxLimit and
// fetches one page.
func FetchPage(ctx context.Context, qi *QueryInfo, def, maxLimit int) ([]*Entity, ds.Cursor, error) {
	if err := qi.SetQuery(); err != nil {
		return nil, "", err
	}
	limit, err := qi.CheckLimit(def, maxLimit)
	if err != nil {
		return nil, "", err
	}
	return Fetch(ctx, qi, limit)
}
