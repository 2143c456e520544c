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
	"reflect"
	"strings"

	ds "go.glassware.dev/glassware/gae/service/datastore"
)

// Query limits used when the caller supplies none.
const (
	DefaultLimit = 10
	MaxLimit     = 100
)

// Filter is an equality filter on a persistent field. Value is in stored
// form.
type Filter struct {
	Field string
	Value any
}

// QueryInfo accumulates query parameters on an entity and turns them into
// exactly one ds.FinalizedQuery.
//
// A QueryInfo is open until SetQuery succeeds. After that every setter fails
// with a StateTag error. Ancestor, cursor, limit and order can each be set
// once.
type QueryInfo struct {
	entity *Entity

	filters  []Filter
	ancestor *ds.Key
	cursor   ds.Cursor
	limit    int
	order    string
	orders   []ds.IndexColumn

	final *ds.FinalizedQuery
}

func (qi *QueryInfo) checkOpen(what string) error {
	if qi.final != nil {
		return reason(StateTag, "can't set %s: query info is final", what)
	}
	return nil
}

// AddFilter adds a filter on a persistent field. Only "=" is supported.
func (qi *QueryInfo) AddFilter(field, op string, value any) error {
	if err := qi.checkOpen("filters"); err != nil {
		return err
	}
	if op != "=" {
		return reason(RequestValidationTag, "only equality filters allowed, got %q", op)
	}
	f := qi.entity.schema.Field(field)
	if f == nil {
		return reason(RequestValidationTag, "cannot filter on %q: not a persistent field of %s", field, qi.entity.schema.Kind)
	}
	if !f.indexed() {
		return reason(RequestValidationTag, "cannot filter on %q: field is not indexed", field)
	}
	nv, err := normalizeOne(f, value)
	if err != nil {
		return annotate(RequestValidationTag, err, "bad filter value")
	}
	sv, err := toStoreOne(f, nv)
	if err != nil {
		return annotate(RequestValidationTag, err, "bad filter value")
	}
	qi.addFilter(Filter{field, sv})
	return nil
}

// Eq is AddFilter(field, "=", value).
func (qi *QueryInfo) Eq(field string, value any) error {
	return qi.AddFilter(field, "=", value)
}

func (qi *QueryInfo) addFilter(flt Filter) {
	for _, have := range qi.filters {
		if have.Field == flt.Field && reflect.DeepEqual(have.Value, flt.Value) {
			return
		}
	}
	qi.filters = append(qi.filters, flt)
}

// SetAncestor restricts the query to descendants of k.
func (qi *QueryInfo) SetAncestor(k *ds.Key) error {
	if err := qi.checkOpen("ancestor"); err != nil {
		return err
	}
	if qi.ancestor != nil {
		return reason(StateTag, "ancestor can't be set twice")
	}
	if k == nil || k.Incomplete() {
		return reason(RequestValidationTag, "ancestor must be a complete key")
	}
	qi.ancestor = k
	return nil
}

// SetCursor sets the resume point of the query.
func (qi *QueryInfo) SetCursor(c ds.Cursor) error {
	if err := qi.checkOpen("cursor"); err != nil {
		return err
	}
	if qi.cursor != "" {
		return reason(StateTag, "cursor can't be set twice")
	}
	if c == "" {
		return reason(RequestValidationTag, "empty cursor")
	}
	qi.cursor = c
	return nil
}

// SetLimit sets the page size, which must be positive.
func (qi *QueryInfo) SetLimit(n int) error {
	if err := qi.checkOpen("limit"); err != nil {
		return err
	}
	if qi.limit != 0 {
		return reason(StateTag, "limit can't be set twice")
	}
	if n < 1 {
		return reason(RequestValidationTag, "limit must be a positive integer, got %d", n)
	}
	qi.limit = n
	return nil
}

// SetOrder sets the sort order: a comma separated list of persistent field
// names, each optionally prefixed with "-" for descending order. An empty
// order is a no-op.
func (qi *QueryInfo) SetOrder(order string) error {
	if err := qi.checkOpen("order"); err != nil {
		return err
	}
	if qi.order != "" {
		return reason(StateTag, "order can't be set twice")
	}
	order = strings.TrimSpace(order)
	if order == "" {
		return nil
	}
	terms := strings.Split(order, ",")
	cols := make([]ds.IndexColumn, 0, len(terms))
	seen := make(map[string]bool, len(terms))
	for _, t := range terms {
		col, err := ds.ParseIndexColumn(t)
		if err != nil {
			return annotate(RequestValidationTag, err, "bad order %q", order)
		}
		f := qi.entity.schema.Field(col.Property)
		switch {
		case f == nil:
			return reason(RequestValidationTag, "order attribute %q not defined", col.Property)
		case !f.indexed():
			return reason(RequestValidationTag, "cannot order by %q: field is not indexed", col.Property)
		case seen[col.Property]:
			return reason(RequestValidationTag, "order attribute %q used twice", col.Property)
		}
		seen[col.Property] = true
		cols = append(cols, col)
	}
	qi.order, qi.orders = order, cols
	return nil
}

// SetQuery finalizes the query. Every set, non-repeated, indexed persistent
// field of the entity becomes an equality filter besides the explicit ones.
// A set repeated field is an error and leaves the QueryInfo open. Calling
// SetQuery again is a no-op.
func (qi *QueryInfo) SetQuery() error {
	if qi.final != nil {
		return nil
	}
	e := qi.entity
	filters := append([]Filter(nil), qi.filters...)
	for _, f := range e.schema.fields {
		v, ok := e.values[f.Name]
		if !ok || f.Type == TypeStructured {
			continue
		}
		if f.Repeated {
			return reason(RequestValidationTag, "no queries on repeated values are allowed (field %q)", f.Name)
		}
		if !f.indexed() {
			return reason(RequestValidationTag, "cannot filter on %q: field is not indexed", f.Name)
		}
		sv, err := toStoreOne(f, v)
		if err != nil {
			return annotate(RequestValidationTag, err, "filter on %q", f.Name)
		}
		filters = append(filters, Filter{f.Name, sv})
	}

	q := ds.NewQuery(e.schema.Kind)
	if qi.ancestor != nil {
		q = q.Ancestor(qi.ancestor)
	}
	seen := make([]Filter, 0, len(filters))
	for _, flt := range filters {
		dup := false
		for _, s := range seen {
			if s.Field == flt.Field && reflect.DeepEqual(s.Value, flt.Value) {
				dup = true
				break
			}
		}
		if !dup {
			seen = append(seen, flt)
			q = q.Eq(flt.Field, flt.Value)
		}
	}
	for _, col := range qi.orders {
		q = q.Order(col.String())
	}
	fq, err := q.Finalize()
	if err != nil {
		return annotate(RequestValidationTag, err, "building query")
	}
	qi.filters = seen
	qi.final = fq
	return nil
}

// Query returns the finalized query, or nil before SetQuery.
func (qi *QueryInfo) Query() *ds.FinalizedQuery { return qi.final }

// IsFinal reports whether SetQuery succeeded.
func (qi *QueryInfo) IsFinal() bool { return qi.final != nil }

// Filters returns the equality filters: the explicit ones, plus the implicit
// ones once final.
func (qi *QueryInfo) Filters() []Filter { return append([]Filter(nil), qi.filters...) }

// Ancestor returns the ancestor, or nil.
func (qi *QueryInfo) Ancestor() *ds.Key { return qi.ancestor }

// Cursor returns the cursor, or "".
func (qi *QueryInfo) Cursor() ds.Cursor { return qi.cursor }

// Limit returns the limit, or 0 if unset.
func (qi *QueryInfo) Limit() int { return qi.limit }

// Order returns the order as given to SetOrder.
func (qi *QueryInfo) Order() string { return qi.order }

// Orders returns the parsed order.
func (qi *QueryInfo) Orders() []ds.IndexColumn { return append([]ds.IndexColumn(nil), qi.orders...) }

// EffectiveLimit returns the limit, or def if unset.
func (qi *QueryInfo) EffectiveLimit(def int) int {
	if qi.limit > 0 {
		return qi.limit
	}
	return def
}

// CheckLimit returns the effective limit, failing with a ForbiddenTag error
// if it exceeds maxLimit. The limit is never clamped.
func (qi *QueryInfo) CheckLimit(def, maxLimit int) (int, error) {
	n := qi.EffectiveLimit(def)
	if n > maxLimit {
		return 0, reason(ForbiddenTag, "%d results requested. Exceeds limit of %d.", n, maxLimit)
	}
	return n, nil
}
