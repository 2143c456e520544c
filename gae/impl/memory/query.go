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

package memory

import (
	"bytes"
	"cmp"
	"encoding/base64"
	"strings"
	"time"

	"github.com/vmihailenco/msgpack/v5"

	"go.glassware.dev/glassware/common/errors"
	ds "go.glassware.dev/glassware/gae/service/datastore"
	"go.glassware.dev/glassware/grpc/grpcutil"
)

// queryCursor is the decoded form of a ds.Cursor issued by this package: the
// index position of the last returned row, pinned to the query it came from.
type queryCursor struct {
	Query string        `msgpack:"q"`
	Key   string        `msgpack:"k"`
	Vals  []cursorValue `msgpack:"v,omitempty"`
}

// value types of cursorValue.T
const (
	cNull byte = iota
	cInt
	cTime
	cBool
	cString
	cBytes
	cFloat
	cGeo
	cKey
)

// cursorValue is a tagged union of the orderable property value types.
type cursorValue struct {
	T   byte    `msgpack:"t"`
	I   int64   `msgpack:"i,omitempty"`
	N   int64   `msgpack:"n,omitempty"`
	S   string  `msgpack:"s,omitempty"`
	F   float64 `msgpack:"f,omitempty"`
	B   bool    `msgpack:"b,omitempty"`
	Raw []byte  `msgpack:"r,omitempty"`
	Lat float64 `msgpack:"lat,omitempty"`
	Lng float64 `msgpack:"lng,omitempty"`
}

func toCursorValue(v any) (cursorValue, error) {
	switch x := v.(type) {
	case nil:
		return cursorValue{T: cNull}, nil
	case int64:
		return cursorValue{T: cInt, I: x}, nil
	case time.Time:
		return cursorValue{T: cTime, I: x.Unix(), N: int64(x.Nanosecond())}, nil
	case bool:
		return cursorValue{T: cBool, B: x}, nil
	case string:
		return cursorValue{T: cString, S: x}, nil
	case []byte:
		return cursorValue{T: cBytes, Raw: x}, nil
	case float64:
		return cursorValue{T: cFloat, F: x}, nil
	case ds.GeoPoint:
		return cursorValue{T: cGeo, Lat: x.Lat, Lng: x.Lng}, nil
	case *ds.Key:
		if x == nil {
			return cursorValue{T: cNull}, nil
		}
		return cursorValue{T: cKey, S: x.Encode()}, nil
	}
	return cursorValue{}, errors.Reason("memory: cannot order by a %T value", v).Err()
}

func (cv cursorValue) value() (any, error) {
	switch cv.T {
	case cNull:
		return nil, nil
	case cInt:
		return cv.I, nil
	case cTime:
		return time.Unix(cv.I, cv.N).UTC(), nil
	case cBool:
		return cv.B, nil
	case cString:
		return cv.S, nil
	case cBytes:
		if cv.Raw == nil {
			return []byte{}, nil
		}
		return cv.Raw, nil
	case cFloat:
		return cv.F, nil
	case cGeo:
		return ds.GeoPoint{Lat: cv.Lat, Lng: cv.Lng}, nil
	case cKey:
		return ds.DecodeKey(cv.S)
	}
	return nil, errors.Reason("unknown value type %d", cv.T).Err()
}

func encodeCursor(fq *ds.FinalizedQuery, last *indexRow) (ds.Cursor, error) {
	qc := queryCursor{Query: fq.String(), Key: last.key.Encode()}
	for _, v := range last.vals {
		cv, err := toCursorValue(v)
		if err != nil {
			return "", err
		}
		qc.Vals = append(qc.Vals, cv)
	}
	data, err := msgpack.Marshal(&qc)
	if err != nil {
		return "", errors.Annotate(err, "memory: encode cursor").Err()
	}
	return ds.Cursor(base64.RawURLEncoding.EncodeToString(data)), nil
}

// decodeCursor returns the row to resume after, or nil to start from the
// beginning.
func decodeCursor(fq *ds.FinalizedQuery, cur ds.Cursor) (*indexRow, error) {
	if cur == "" {
		return nil, nil
	}
	bad := func(err error, what string) error {
		return errors.Annotate(err, "memory: %s cursor", what).Tag(grpcutil.InvalidArgumentTag).Err()
	}
	data, err := base64.RawURLEncoding.DecodeString(string(cur))
	if err != nil {
		return nil, bad(err, "decode")
	}
	var qc queryCursor
	if err := msgpack.Unmarshal(data, &qc); err != nil {
		return nil, bad(err, "unmarshal")
	}
	if qc.Query != fq.String() || len(qc.Vals) != len(fq.Orders()) {
		return nil, errors.Reason("memory: cursor does not belong to query %q", fq.String()).Tag(grpcutil.InvalidArgumentTag).Err()
	}
	row := &indexRow{vals: make([]any, len(qc.Vals))}
	if row.key, err = ds.DecodeKey(qc.Key); err != nil {
		return nil, bad(err, "decode key in")
	}
	for i, cv := range qc.Vals {
		if row.vals[i], err = cv.value(); err != nil {
			return nil, bad(err, "decode value in")
		}
	}
	return row, nil
}

func (d *Data) run(fq *ds.FinalizedQuery, limit int, start ds.Cursor, newDst func() ds.PropertyLoadSaver) (ds.Cursor, error) {
	after, err := decodeCursor(fq, start)
	if err != nil {
		return "", err
	}
	idx := d.snapshot(fq.Kind(), fq.Orders())

	// Without explicit orders the rows are in key order, so the descendants of
	// the ancestor form one contiguous range starting at the ancestor itself.
	anc := fq.Ancestor()
	keyRange := anc != nil && len(fq.Orders()) == 0
	pivot := after
	if pivot == nil && keyRange {
		pivot = &indexRow{key: anc}
	}

	var (
		page []*indexRow
		more bool
	)
	ascend(idx.rows, pivot, func(row *indexRow) bool {
		switch {
		case after != nil && idx.compare(row, after) <= 0:
			return true
		case keyRange && !hasAncestor(row.key, anc):
			return false
		case !matches(fq, row.ent):
			return true
		case len(page) == limit:
			more = true
			return false
		}
		page = append(page, row)
		return true
	})

	for _, row := range page {
		if err := load(row.ent, newDst()); err != nil {
			return "", errors.Annotate(err, "memory: loading %s", row.key).Err()
		}
	}
	if !more || len(page) == 0 {
		return "", nil
	}
	return encodeCursor(fq, page[len(page)-1])
}

// indexedValues returns every indexed value of the named property, flattening
// multi-valued properties. ok is false if the entity has no indexed property
// by that name.
func indexedValues(ent *storedEntity, name string) (vals []any, ok bool) {
	for _, p := range ent.props {
		if p.Name != name || p.NoIndex {
			continue
		}
		if multi, isMulti := p.Value.([]any); isMulti {
			vals = append(vals, multi...)
		} else {
			vals = append(vals, p.Value)
		}
		ok = true
	}
	return
}

func matches(fq *ds.FinalizedQuery, ent *storedEntity) bool {
	if anc := fq.Ancestor(); anc != nil && !hasAncestor(ent.key, anc) {
		return false
	}
	for field, want := range fq.EqFilters() {
		have, ok := indexedValues(ent, field)
		if !ok {
			return false
		}
		for _, w := range want {
			found := false
			for _, h := range have {
				if compareValues(h, w) == 0 {
					found = true
					break
				}
			}
			if !found {
				return false
			}
		}
	}
	for _, col := range fq.Orders() {
		if _, ok := indexedValues(ent, col.Property); !ok {
			return false
		}
	}
	return true
}

func hasAncestor(k, anc *ds.Key) bool {
	for ; k != nil; k = k.Parent {
		if k.Equal(anc) {
			return true
		}
	}
	return false
}

func extreme(vals []any, largest bool) any {
	if len(vals) == 0 {
		return nil
	}
	ret := vals[0]
	for _, v := range vals[1:] {
		c := compareValues(v, ret)
		if (largest && c > 0) || (!largest && c < 0) {
			ret = v
		}
	}
	return ret
}

// typeRank follows the Datastore cross-type ordering.
func typeRank(v any) int {
	switch v.(type) {
	case nil:
		return 0
	case int64, time.Time:
		return 1
	case bool:
		return 2
	case string, []byte:
		return 3
	case float64:
		return 4
	case ds.GeoPoint:
		return 5
	case *ds.Key:
		return 6
	default:
		return 7
	}
}

func compareValues(a, b any) int {
	if r := cmp.Compare(typeRank(a), typeRank(b)); r != 0 {
		return r
	}
	switch x := a.(type) {
	case int64:
		if y, ok := b.(int64); ok {
			return cmp.Compare(x, y)
		}
		return -1 // integers sort before timestamps
	case time.Time:
		if y, ok := b.(time.Time); ok {
			return x.Compare(y)
		}
		return 1
	case bool:
		y := b.(bool)
		switch {
		case x == y:
			return 0
		case !x:
			return -1
		default:
			return 1
		}
	case string:
		if y, ok := b.(string); ok {
			return strings.Compare(x, y)
		}
		return 1
	case []byte:
		if y, ok := b.([]byte); ok {
			return bytes.Compare(x, y)
		}
		return -1
	case float64:
		return cmp.Compare(x, b.(float64))
	case ds.GeoPoint:
		y := b.(ds.GeoPoint)
		if r := cmp.Compare(x.Lat, y.Lat); r != 0 {
			return r
		}
		return cmp.Compare(x.Lng, y.Lng)
	case *ds.Key:
		return compareKeys(x, b.(*ds.Key))
	}
	return 0
}

// compareKeys orders keys by namespace, then by path from the root: kind,
// then ID before name.
func compareKeys(a, b *ds.Key) int {
	if r := strings.Compare(a.Namespace, b.Namespace); r != 0 {
		return r
	}
	pa, pb := keyPath(a), keyPath(b)
	for i := 0; i < len(pa) && i < len(pb); i++ {
		x, y := pa[i], pb[i]
		if r := strings.Compare(x.Kind, y.Kind); r != 0 {
			return r
		}
		switch {
		case x.Name == "" && y.Name != "":
			return -1
		case x.Name != "" && y.Name == "":
			return 1
		}
		if r := cmp.Compare(x.ID, y.ID); r != 0 {
			return r
		}
		if r := strings.Compare(x.Name, y.Name); r != 0 {
			return r
		}
	}
	return cmp.Compare(len(pa), len(pb))
}

func keyPath(k *ds.Key) []*ds.Key {
	var ret []*ds.Key
	for ; k != nil; k = k.Parent {
		ret = append(ret, k)
	}
	for i, j := 0, len(ret)-1; i < j; i, j = i+1, j-1 {
		ret[i], ret[j] = ret[j], ret[i]
	}
	return ret
}
