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
	"encoding/json"
	"math"
	"reflect"
	"time"

	"go.glassware.dev/glassware/common/errors"
	ds "go.glassware.dev/glassware/gae/service/datastore"
)

// Canonical in-entity representations:
//
//	string, text     string
//	integer          int64
//	float            float64
//	boolean          bool
//	bytes            []byte
//	datetime family  time.Time (UTC)
//	key              *ds.Key
//	geopoint         ds.GeoPoint
//	json             any JSON-encodable value
//	enum             EnumValue
//	structured       *Entity of the field's model
//
// Repeated fields hold a non-empty []any of the above.

// normalize converts v to the canonical representation for f. nil and empty
// lists normalize to nil. Errors are unclassified, callers tag them.
func normalize(f *Field, v any) (any, error) {
	if v == nil {
		return nil, nil
	}
	if !f.Repeated {
		return normalizeOne(f, v)
	}
	rv := reflect.ValueOf(v)
	if rv.Kind() != reflect.Slice && rv.Kind() != reflect.Array {
		return nil, errors.Reason("field %q is repeated, got %T", f.Name, v).Err()
	}
	if rv.Len() == 0 {
		return nil, nil
	}
	out := make([]any, rv.Len())
	for i := range out {
		el := rv.Index(i).Interface()
		if el == nil {
			return nil, errors.Reason("field %q: nil element at %d", f.Name, i).Err()
		}
		nv, err := normalizeOne(f, el)
		if err != nil {
			return nil, err
		}
		out[i] = nv
	}
	return out, nil
}

func normalizeOne(f *Field, v any) (any, error) {
	bad := func() (any, error) {
		return nil, errors.Reason("field %q: cannot use %T as %s", f.Name, v, f.Type).Err()
	}
	switch f.Type {
	case TypeString:
		if s, ok := v.(string); ok {
			return s, nil
		}
	case TypeText:
		switch x := v.(type) {
		case string:
			return x, nil
		case []byte:
			return string(x), nil
		}
	case TypeInteger:
		if i, ok := toInt64(v); ok {
			return i, nil
		}
	case TypeFloat:
		switch x := v.(type) {
		case float64:
			return x, nil
		case float32:
			return float64(x), nil
		}
		if i, ok := toInt64(v); ok {
			return float64(i), nil
		}
	case TypeBoolean:
		if b, ok := v.(bool); ok {
			return b, nil
		}
	case TypeBytes:
		switch x := v.(type) {
		case []byte:
			return append([]byte(nil), x...), nil
		case string:
			return []byte(x), nil
		}
	case TypeDateTime, TypeDate, TypeTime:
		if t, ok := v.(time.Time); ok {
			return normalizeTime(f.Type, t), nil
		}
	case TypeKey:
		if k, ok := v.(*ds.Key); ok && k != nil {
			return k, nil
		}
	case TypeGeoPoint:
		if g, ok := v.(ds.GeoPoint); ok {
			if !g.Valid() {
				return nil, errors.Reason("field %q: invalid geo point %v", f.Name, g).Err()
			}
			return g, nil
		}
	case TypeJSON:
		if _, err := json.Marshal(v); err != nil {
			return nil, errors.Annotate(err, "field %q", f.Name).Err()
		}
		return v, nil
	case TypeEnum:
		return normalizeEnum(f, v)
	case TypeStructured:
		if e, ok := v.(*Entity); ok && e != nil {
			if e.schema != f.Model {
				return nil, errors.Reason("field %q: entity of kind %s, want %s", f.Name, e.schema.Kind, f.Model.Kind).Err()
			}
			return e, nil
		}
	}
	return bad()
}

func normalizeEnum(f *Field, v any) (any, error) {
	var name EnumValue
	switch x := v.(type) {
	case EnumValue:
		name = x
	case string:
		name = EnumValue(x)
	default:
		i, ok := toInt64(v)
		if !ok || i < math.MinInt32 || i > math.MaxInt32 {
			return nil, errors.Reason("field %q: cannot use %T as enum %s", f.Name, v, f.Enum.Name).Err()
		}
		n, ok := f.Enum.Lookup(int32(i))
		if !ok {
			return nil, errors.Reason("field %q: %d is not a value of enum %s", f.Name, i, f.Enum.Name).Err()
		}
		return n, nil
	}
	if _, ok := f.Enum.Number(name); !ok {
		return nil, errors.Reason("field %q: %q is not a value of enum %s", f.Name, name, f.Enum.Name).Err()
	}
	return name, nil
}

func normalizeTime(typ FieldType, t time.Time) time.Time {
	t = t.UTC()
	switch typ {
	case TypeDate:
		return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
	case TypeTime:
		return time.Date(1970, 1, 1, t.Hour(), t.Minute(), t.Second(), t.Nanosecond(), time.UTC)
	}
	return t
}

func toInt64(v any) (int64, bool) {
	switch x := v.(type) {
	case int:
		return int64(x), true
	case int8:
		return int64(x), true
	case int16:
		return int64(x), true
	case int32:
		return int64(x), true
	case int64:
		return x, true
	case uint8:
		return int64(x), true
	case uint16:
		return int64(x), true
	case uint32:
		return int64(x), true
	case uint:
		if uint64(x) <= math.MaxInt64 {
			return int64(x), true
		}
	case uint64:
		if x <= math.MaxInt64 {
			return int64(x), true
		}
	}
	return 0, false
}

// toStore converts a canonical value to its stored form.
func toStore(f *Field, v any) (any, error) {
	if items, ok := v.([]any); ok && f.Repeated {
		out := make([]any, len(items))
		for i, it := range items {
			sv, err := toStoreOne(f, it)
			if err != nil {
				return nil, err
			}
			out[i] = sv
		}
		return out, nil
	}
	return toStoreOne(f, v)
}

func toStoreOne(f *Field, v any) (any, error) {
	switch f.Type {
	case TypeEnum:
		return string(v.(EnumValue)), nil
	case TypeJSON:
		return json.Marshal(v)
	case TypeStructured:
		props, err := v.(*Entity).Save()
		if err != nil {
			return nil, err
		}
		return &ds.Entity{Properties: props}, nil
	}
	return v, nil
}

// fromStore converts a stored value back to the canonical representation.
func fromStore(f *Field, v any) (any, error) {
	if v == nil {
		return nil, nil
	}
	if !f.Repeated {
		return fromStoreOne(f, v)
	}
	items, ok := v.([]any)
	if !ok {
		items = []any{v}
	}
	if len(items) == 0 {
		return nil, nil
	}
	out := make([]any, 0, len(items))
	for _, it := range items {
		cv, err := fromStoreOne(f, it)
		if err != nil {
			return nil, err
		}
		if cv != nil {
			out = append(out, cv)
		}
	}
	return out, nil
}

func fromStoreOne(f *Field, v any) (any, error) {
	switch f.Type {
	case TypeEnum:
		if s, ok := v.(string); ok {
			return EnumValue(s), nil
		}
	case TypeJSON:
		var raw []byte
		switch x := v.(type) {
		case []byte:
			raw = x
		case string:
			raw = []byte(x)
		default:
			return nil, storedTypeErr(f, v)
		}
		var out any
		if err := json.Unmarshal(raw, &out); err != nil {
			return nil, annotate(TypeSerializationTag, err, "stored property %q", f.Name)
		}
		return out, nil
	case TypeStructured:
		if se, ok := v.(*ds.Entity); ok {
			sub := f.Model.NewEntity()
			if err := sub.Load(se.Properties); err != nil {
				return nil, err
			}
			return sub, nil
		}
	case TypeFloat:
		if i, ok := v.(int64); ok {
			return float64(i), nil
		}
	}
	nv, err := normalizeOne(f, v)
	if err != nil {
		return nil, storedTypeErr(f, v)
	}
	return nv, nil
}

func storedTypeErr(f *Field, v any) error {
	return reason(TypeSerializationTag, "stored property %q: unexpected %T for %s", f.Name, v, f.Type)
}
