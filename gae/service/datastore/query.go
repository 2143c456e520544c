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

package datastore

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"go.glassware.dev/glassware/common/errors"
)

// IndexColumn is one sort order of a query.
type IndexColumn struct {
	Property   string
	Descending bool
}

// ParseIndexColumn parses "field" (ascending) or "-field" (descending).
func ParseIndexColumn(spec string) (IndexColumn, error) {
	col := IndexColumn{Property: strings.TrimSpace(spec)}
	if strings.HasPrefix(col.Property, "-") {
		col.Descending = true
		col.Property = strings.TrimSpace(col.Property[1:])
	}
	if col.Property == "" {
		return col, errors.Reason("datastore: empty order %q", spec).Err()
	}
	return col, nil
}

func (i IndexColumn) String() string {
	if i.Descending {
		return "-" + i.Property
	}
	return i.Property
}

// Query is an immutable description of a datastore query. Every builder
// method returns a modified copy, so a Query may be shared and extended
// freely.
//
// Errors from builder methods are sticky and reported by Finalize.
type Query struct {
	kind     string
	ancestor *Key
	eqFilts  map[string][]any
	order    []IndexColumn
	err      error
}

// NewQuery returns a query over entities of kind.
func NewQuery(kind string) *Query {
	return &Query{kind: kind}
}

func (q *Query) mod(fn func(*Query)) *Query {
	if q.err != nil {
		return q
	}
	ret := *q
	if len(q.eqFilts) > 0 {
		ret.eqFilts = make(map[string][]any, len(q.eqFilts))
		for k, v := range q.eqFilts {
			ret.eqFilts[k] = append([]any(nil), v...)
		}
	}
	ret.order = append([]IndexColumn(nil), q.order...)
	fn(&ret)
	return &ret
}

// Kind returns the query kind.
func (q *Query) Kind() string { return q.kind }

// Ancestor restricts the query to descendants of k (inclusive).
func (q *Query) Ancestor(k *Key) *Query {
	return q.mod(func(q *Query) {
		if k == nil || k.Incomplete() {
			q.err = errors.Reason("datastore: ancestor must be a complete key").Err()
			return
		}
		q.ancestor = k
	})
}

// Eq adds equality filters on field. Multiple values on the same field are
// conjunctive, which is only satisfiable by multi-valued properties.
func (q *Query) Eq(field string, values ...any) *Query {
	return q.mod(func(q *Query) {
		if field == "" {
			q.err = errors.Reason("datastore: empty filter field").Err()
			return
		}
		for _, v := range values {
			nv, err := normalizeFilterValue(v)
			if err != nil {
				q.err = errors.Annotate(err, "datastore: filter on %q", field).Err()
				return
			}
			if q.eqFilts == nil {
				q.eqFilts = map[string][]any{}
			}
			q.eqFilts[field] = append(q.eqFilts[field], nv)
		}
	})
}

// Order appends sort orders. Each is a field name, prefixed with "-" for
// descending order.
func (q *Query) Order(fieldNames ...string) *Query {
	return q.mod(func(q *Query) {
		for _, fn := range fieldNames {
			col, err := ParseIndexColumn(fn)
			if err != nil {
				q.err = err
				return
			}
			q.order = append(q.order, col)
		}
	})
}

// Finalize validates the query and returns its immutable executable form.
func (q *Query) Finalize() (*FinalizedQuery, error) {
	if q.err != nil {
		return nil, q.err
	}
	if q.kind == "" {
		return nil, errors.Reason("datastore: query has no kind").Err()
	}
	seen := make(map[string]struct{}, len(q.order))
	for _, col := range q.order {
		if _, dup := seen[col.Property]; dup {
			return nil, errors.Reason("datastore: duplicate order on %q", col.Property).Err()
		}
		seen[col.Property] = struct{}{}
	}
	return &FinalizedQuery{original: q}, nil
}

func normalizeFilterValue(v any) (any, error) {
	switch x := v.(type) {
	case nil, string, int64, float64, bool, *Key, GeoPoint:
		return x, nil
	case int:
		return int64(x), nil
	case int32:
		return int64(x), nil
	case float32:
		return float64(x), nil
	case time.Time:
		return x.UTC(), nil
	default:
		return nil, errors.Reason("unsupported filter value type %T", v).Err()
	}
}

// FinalizedQuery is a validated Query, ready to run.
type FinalizedQuery struct {
	original *Query
}

// Original returns the Query this was finalized from.
func (fq *FinalizedQuery) Original() *Query { return fq.original }

// Kind returns the query kind.
func (fq *FinalizedQuery) Kind() string { return fq.original.kind }

// Ancestor returns the ancestor filter, or nil.
func (fq *FinalizedQuery) Ancestor() *Key { return fq.original.ancestor }

// EqFilters returns the equality filters keyed by field. The result must not
// be modified.
func (fq *FinalizedQuery) EqFilters() map[string][]any { return fq.original.eqFilts }

// EqFields returns the filtered fields in sorted order.
func (fq *FinalizedQuery) EqFields() []string {
	ret := make([]string, 0, len(fq.original.eqFilts))
	for f := range fq.original.eqFilts {
		ret = append(ret, f)
	}
	sort.Strings(ret)
	return ret
}

// Orders returns the explicit sort orders. Results are ordered by key after
// these.
func (fq *FinalizedQuery) Orders() []IndexColumn { return fq.original.order }

// String renders the query in a GQL-like form, for logs.
func (fq *FinalizedQuery) String() string {
	sb := &strings.Builder{}
	fmt.Fprintf(sb, "SELECT * FROM %s", fq.Kind())
	var conds []string
	if a := fq.Ancestor(); a != nil {
		conds = append(conds, fmt.Sprintf("__key__ HAS ANCESTOR %s", a))
	}
	for _, f := range fq.EqFields() {
		for _, v := range fq.original.eqFilts[f] {
			conds = append(conds, fmt.Sprintf("%s = %#v", f, v))
		}
	}
	if len(conds) > 0 {
		fmt.Fprintf(sb, " WHERE %s", strings.Join(conds, " AND "))
	}
	if len(fq.original.order) > 0 {
		cols := make([]string, len(fq.original.order))
		for i, col := range fq.original.order {
			cols[i] = col.Property
			if col.Descending {
				cols[i] += " DESC"
			}
		}
		fmt.Fprintf(sb, " ORDER BY %s", strings.Join(cols, ", "))
	}
	return sb.String()
}
