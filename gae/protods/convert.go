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
	"encoding/json"
	"math"
	"reflect"
	"sort"
	"time"

	"google.golang.org/protobuf/reflect/protoreflect"
	"google.golang.org/protobuf/types/descriptorpb"

	ds "go.glassware.dev/glassware/gae/service/datastore"
)

// Wire layouts of the datetime family.
const (
	DateTimeLayout = "2006-01-02T15:04:05.000000"
	DateLayout     = "2006-01-02"
	TimeLayout     = "15:04:05.000000"
)

// Parsing accepts any number of fractional digits for the default layouts.
var lenientLayouts = map[string]string{
	DateTimeLayout: "2006-01-02T15:04:05.999999999",
	TimeLayout:     "15:04:05.999999999",
}

func layoutOf(f *Field) string {
	if f.Format != "" {
		return f.Format
	}
	switch f.Type {
	case TypeDate:
		return DateLayout
	case TypeTime:
		return TimeLayout
	}
	return DateTimeLayout
}

func parseTime(f *Field, s string) (time.Time, error) {
	layout := layoutOf(f)
	if l, ok := lenientLayouts[layout]; ok {
		layout = l
	}
	t, err := time.Parse(layout, s)
	if err != nil {
		return time.Time{}, err
	}
	return normalizeTime(f.Type, t), nil
}

type pbType = descriptorpb.FieldDescriptorProto_Type

// converter maps one FieldType onto the wire. toWire receives canonical
// values; newMsg allocates the element message for message-typed fields.
type converter struct {
	wireType func(f *Field) (pbType, error)
	toWire   func(ctx context.Context, f *Field, fd protoreflect.FieldDescriptor, v any, newMsg func() protoreflect.Message) (protoreflect.Value, error)
	fromWire func(ctx context.Context, f *Field, fd protoreflect.FieldDescriptor, v protoreflect.Value) (any, error)
}

func fixed(t pbType) func(*Field) (pbType, error) {
	return func(f *Field) (pbType, error) {
		if f.Variant != VariantDefault {
			return 0, reason(ConfigurationTag, "field %q: %s fields have no variants", f.Name, f.Type)
		}
		return t, nil
	}
}

var integerVariants = map[Variant]pbType{
	VariantDefault: descriptorpb.FieldDescriptorProto_TYPE_INT64,
	VariantInt32:   descriptorpb.FieldDescriptorProto_TYPE_INT32,
	VariantInt64:   descriptorpb.FieldDescriptorProto_TYPE_INT64,
	VariantUint32:  descriptorpb.FieldDescriptorProto_TYPE_UINT32,
	VariantUint64:  descriptorpb.FieldDescriptorProto_TYPE_UINT64,
	VariantSint32:  descriptorpb.FieldDescriptorProto_TYPE_SINT32,
	VariantSint64:  descriptorpb.FieldDescriptorProto_TYPE_SINT64,
}

var floatVariants = map[Variant]pbType{
	VariantDefault: descriptorpb.FieldDescriptorProto_TYPE_DOUBLE,
	VariantDouble:  descriptorpb.FieldDescriptorProto_TYPE_DOUBLE,
	VariantFloat:   descriptorpb.FieldDescriptorProto_TYPE_FLOAT,
}

func variantOf(table map[Variant]pbType) func(*Field) (pbType, error) {
	return func(f *Field) (pbType, error) {
		if t, ok := table[f.Variant]; ok {
			return t, nil
		}
		return 0, reason(ConfigurationTag, "field %q: variant %d does not apply to %s", f.Name, f.Variant, f.Type)
	}
}

func stringToWire(_ context.Context, _ *Field, _ protoreflect.FieldDescriptor, v any, _ func() protoreflect.Message) (protoreflect.Value, error) {
	return protoreflect.ValueOfString(v.(string)), nil
}

func stringFromWire(_ context.Context, _ *Field, _ protoreflect.FieldDescriptor, v protoreflect.Value) (any, error) {
	return v.String(), nil
}

func identityToWire(_ context.Context, _ *Field, _ protoreflect.FieldDescriptor, v any, _ func() protoreflect.Message) (protoreflect.Value, error) {
	return protoreflect.ValueOf(v), nil
}

// converters is the closed FieldType -> wire mapping. A type missing here is
// rejected by Register.
var converters map[FieldType]converter

func init() {
	converters = map[FieldType]converter{
		TypeString: {
			wireType: fixed(descriptorpb.FieldDescriptorProto_TYPE_STRING),
			toWire:   stringToWire,
			fromWire: stringFromWire,
		},
		TypeText: {
			wireType: fixed(descriptorpb.FieldDescriptorProto_TYPE_BYTES),
			toWire: func(_ context.Context, _ *Field, _ protoreflect.FieldDescriptor, v any, _ func() protoreflect.Message) (protoreflect.Value, error) {
				return protoreflect.ValueOfBytes([]byte(v.(string))), nil
			},
			fromWire: func(_ context.Context, _ *Field, _ protoreflect.FieldDescriptor, v protoreflect.Value) (any, error) {
				return string(v.Bytes()), nil
			},
		},
		TypeInteger: {
			wireType: variantOf(integerVariants),
			toWire:   integerToWire,
			fromWire: integerFromWire,
		},
		TypeFloat: {
			wireType: variantOf(floatVariants),
			toWire: func(_ context.Context, _ *Field, fd protoreflect.FieldDescriptor, v any, _ func() protoreflect.Message) (protoreflect.Value, error) {
				if fd.Kind() == protoreflect.FloatKind {
					return protoreflect.ValueOfFloat32(float32(v.(float64))), nil
				}
				return protoreflect.ValueOfFloat64(v.(float64)), nil
			},
			fromWire: func(_ context.Context, _ *Field, _ protoreflect.FieldDescriptor, v protoreflect.Value) (any, error) {
				return v.Float(), nil
			},
		},
		TypeBoolean: {
			wireType: fixed(descriptorpb.FieldDescriptorProto_TYPE_BOOL),
			toWire:   identityToWire,
			fromWire: func(_ context.Context, _ *Field, _ protoreflect.FieldDescriptor, v protoreflect.Value) (any, error) {
				return v.Bool(), nil
			},
		},
		TypeBytes: {
			wireType: fixed(descriptorpb.FieldDescriptorProto_TYPE_BYTES),
			toWire:   identityToWire,
			fromWire: func(_ context.Context, _ *Field, _ protoreflect.FieldDescriptor, v protoreflect.Value) (any, error) {
				return append([]byte(nil), v.Bytes()...), nil
			},
		},
		TypeDateTime: timeConverter,
		TypeDate:     timeConverter,
		TypeTime:     timeConverter,
		TypeKey: {
			wireType: fixed(descriptorpb.FieldDescriptorProto_TYPE_STRING),
			toWire: func(_ context.Context, _ *Field, _ protoreflect.FieldDescriptor, v any, _ func() protoreflect.Message) (protoreflect.Value, error) {
				return protoreflect.ValueOfString(v.(*ds.Key).Encode()), nil
			},
			fromWire: func(_ context.Context, f *Field, _ protoreflect.FieldDescriptor, v protoreflect.Value) (any, error) {
				k, err := ds.DecodeKey(v.String())
				if err != nil {
					return nil, annotate(RequestValidationTag, err, "field %q: bad key", f.Name)
				}
				return k, nil
			},
		},
		TypeGeoPoint: {
			wireType: fixed(descriptorpb.FieldDescriptorProto_TYPE_MESSAGE),
			toWire: func(_ context.Context, _ *Field, _ protoreflect.FieldDescriptor, v any, newMsg func() protoreflect.Message) (protoreflect.Value, error) {
				g := v.(ds.GeoPoint)
				m := newMsg()
				fields := m.Descriptor().Fields()
				m.Set(fields.ByName("lat"), protoreflect.ValueOfFloat64(g.Lat))
				m.Set(fields.ByName("lon"), protoreflect.ValueOfFloat64(g.Lng))
				return protoreflect.ValueOfMessage(m), nil
			},
			fromWire: func(_ context.Context, f *Field, _ protoreflect.FieldDescriptor, v protoreflect.Value) (any, error) {
				m := v.Message()
				fields := m.Descriptor().Fields()
				g := ds.GeoPoint{
					Lat: m.Get(fields.ByName("lat")).Float(),
					Lng: m.Get(fields.ByName("lon")).Float(),
				}
				if !g.Valid() {
					return nil, reason(RequestValidationTag, "field %q: invalid geo point %v", f.Name, g)
				}
				return g, nil
			},
		},
		TypeJSON: {
			wireType: fixed(descriptorpb.FieldDescriptorProto_TYPE_BYTES),
			toWire: func(_ context.Context, f *Field, _ protoreflect.FieldDescriptor, v any, _ func() protoreflect.Message) (protoreflect.Value, error) {
				blob, err := json.Marshal(v)
				if err != nil {
					return protoreflect.Value{}, annotate(TypeSerializationTag, err, "field %q", f.Name)
				}
				return protoreflect.ValueOfBytes(blob), nil
			},
			fromWire: func(_ context.Context, f *Field, _ protoreflect.FieldDescriptor, v protoreflect.Value) (any, error) {
				var out any
				if err := json.Unmarshal(v.Bytes(), &out); err != nil {
					return nil, annotate(RequestValidationTag, err, "field %q: bad JSON", f.Name)
				}
				return out, nil
			},
		},
		TypeEnum: {
			wireType: fixed(descriptorpb.FieldDescriptorProto_TYPE_ENUM),
			toWire: func(_ context.Context, f *Field, _ protoreflect.FieldDescriptor, v any, _ func() protoreflect.Message) (protoreflect.Value, error) {
				n, ok := f.Enum.Number(v.(EnumValue))
				if !ok {
					return protoreflect.Value{}, reason(TypeSerializationTag, "field %q: %q is not a value of enum %s", f.Name, v, f.Enum.Name)
				}
				return protoreflect.ValueOfEnum(protoreflect.EnumNumber(n)), nil
			},
			fromWire: func(_ context.Context, f *Field, _ protoreflect.FieldDescriptor, v protoreflect.Value) (any, error) {
				name, ok := f.Enum.Lookup(int32(v.Enum()))
				if !ok {
					return nil, reason(RequestValidationTag, "field %q: %d is not a value of enum %s", f.Name, v.Enum(), f.Enum.Name)
				}
				return name, nil
			},
		},
		TypeStructured: {
			wireType: fixed(descriptorpb.FieldDescriptorProto_TYPE_MESSAGE),
			toWire: func(ctx context.Context, _ *Field, _ protoreflect.FieldDescriptor, v any, newMsg func() protoreflect.Message) (protoreflect.Value, error) {
				m := newMsg()
				if err := v.(*Entity).fillMessage(ctx, m); err != nil {
					return protoreflect.Value{}, err
				}
				return protoreflect.ValueOfMessage(m), nil
			},
			fromWire: func(ctx context.Context, f *Field, _ protoreflect.FieldDescriptor, v protoreflect.Value) (any, error) {
				sub := f.Model.NewEntity()
				if err := sub.readMessage(ctx, v.Message()); err != nil {
					return nil, err
				}
				return sub, nil
			},
		},
	}
}

var timeConverter = converter{
	wireType: fixed(descriptorpb.FieldDescriptorProto_TYPE_STRING),
	toWire: func(_ context.Context, f *Field, _ protoreflect.FieldDescriptor, v any, _ func() protoreflect.Message) (protoreflect.Value, error) {
		return protoreflect.ValueOfString(v.(time.Time).Format(layoutOf(f))), nil
	},
	fromWire: func(_ context.Context, f *Field, _ protoreflect.FieldDescriptor, v protoreflect.Value) (any, error) {
		t, err := parseTime(f, v.String())
		if err != nil {
			return nil, annotate(RequestValidationTag, err, "field %q: bad %s", f.Name, f.Type)
		}
		return t, nil
	},
}

func integerToWire(_ context.Context, f *Field, fd protoreflect.FieldDescriptor, v any, _ func() protoreflect.Message) (protoreflect.Value, error) {
	i := v.(int64)
	overflow := func() (protoreflect.Value, error) {
		return protoreflect.Value{}, reason(TypeSerializationTag, "field %q: %d overflows %s", f.Name, i, fd.Kind())
	}
	switch fd.Kind() {
	case protoreflect.Int32Kind, protoreflect.Sint32Kind:
		if i < math.MinInt32 || i > math.MaxInt32 {
			return overflow()
		}
		return protoreflect.ValueOfInt32(int32(i)), nil
	case protoreflect.Uint32Kind:
		if i < 0 || i > math.MaxUint32 {
			return overflow()
		}
		return protoreflect.ValueOfUint32(uint32(i)), nil
	case protoreflect.Uint64Kind:
		if i < 0 {
			return overflow()
		}
		return protoreflect.ValueOfUint64(uint64(i)), nil
	}
	return protoreflect.ValueOfInt64(i), nil
}

func integerFromWire(_ context.Context, f *Field, fd protoreflect.FieldDescriptor, v protoreflect.Value) (any, error) {
	switch fd.Kind() {
	case protoreflect.Uint32Kind:
		return int64(v.Uint()), nil
	case protoreflect.Uint64Kind:
		u := v.Uint()
		if u > math.MaxInt64 {
			return nil, reason(RequestValidationTag, "field %q: %d overflows int64", f.Name, u)
		}
		return int64(u), nil
	}
	return v.Int(), nil
}

// listOf returns the elements of a repeated value, which must be a slice.
func listOf(f *Field, v any) ([]any, error) {
	if items, ok := v.([]any); ok {
		return items, nil
	}
	rv := reflect.ValueOf(v)
	if rv.Kind() != reflect.Slice && rv.Kind() != reflect.Array {
		return nil, reason(TypeSerializationTag,
			"field %q is a repeated field and its value should be a list, got %T", f.Name, v)
	}
	out := make([]any, rv.Len())
	for i := range out {
		out[i] = rv.Index(i).Interface()
	}
	return out, nil
}

// fillMessage writes e's values into m. Absent values are left unset.
func (e *Entity) fillMessage(ctx context.Context, m protoreflect.Message) error {
	fields := m.Descriptor().Fields()
	for i := 0; i < fields.Len(); i++ {
		fd := fields.Get(i)
		name := string(fd.Name())
		f, _ := e.schema.lookup(name)
		if f == nil {
			return reason(NotFoundTag, "%s has no field %q", e.schema.Kind, name)
		}
		v, err := e.GetField(ctx, name)
		if err != nil {
			return err
		}
		if v == nil {
			continue
		}
		conv := converters[f.Type]
		if !fd.IsList() {
			nv, err := normalizeOne(f, v)
			if err != nil {
				return annotate(TypeSerializationTag, err, "serializing")
			}
			wv, err := conv.toWire(ctx, f, fd, nv, func() protoreflect.Message { return m.NewField(fd).Message() })
			if err != nil {
				return err
			}
			m.Set(fd, wv)
			continue
		}
		items, err := listOf(f, v)
		if err != nil {
			return err
		}
		if len(items) == 0 {
			continue
		}
		list := m.Mutable(fd).List()
		for _, it := range items {
			if it == nil {
				return reason(TypeSerializationTag, "field %q: nil element", name)
			}
			nv, err := normalizeOne(f, it)
			if err != nil {
				return annotate(TypeSerializationTag, err, "serializing")
			}
			wv, err := conv.toWire(ctx, f, fd, nv, func() protoreflect.Message { return list.NewElement().Message() })
			if err != nil {
				return err
			}
			list.Append(wv)
		}
	}
	return nil
}

type pendingAlias struct {
	alias *AliasField
	value any
}

// readMessage populates e from m: persistent fields first, then alias
// setters in field number order. Unset scalars with a wire default take the
// default.
func (e *Entity) readMessage(ctx context.Context, m protoreflect.Message) error {
	fields := m.Descriptor().Fields()
	fds := make([]protoreflect.FieldDescriptor, fields.Len())
	for i := range fds {
		fds[i] = fields.Get(i)
	}
	sort.Slice(fds, func(i, j int) bool { return fds[i].Number() < fds[j].Number() })

	var aliases []pendingAlias
	for _, fd := range fds {
		name := string(fd.Name())
		f, alias := e.schema.lookup(name)
		if f == nil {
			return reason(NotFoundTag, "%s has no field %q", e.schema.Kind, name)
		}
		conv := converters[f.Type]
		var v any
		switch {
		case !m.Has(fd):
			if fd.IsList() || !fd.HasDefault() {
				continue
			}
			dv, err := conv.fromWire(ctx, f, fd, fd.Default())
			if err != nil {
				return err
			}
			v = dv
		case fd.IsList():
			list := m.Get(fd).List()
			items := make([]any, list.Len())
			for i := range items {
				iv, err := conv.fromWire(ctx, f, fd, list.Get(i))
				if err != nil {
					return err
				}
				items[i] = iv
			}
			v = items
		default:
			sv, err := conv.fromWire(ctx, f, fd, m.Get(fd))
			if err != nil {
				return err
			}
			v = sv
		}
		if alias != nil {
			aliases = append(aliases, pendingAlias{alias, v})
			continue
		}
		if err := e.Set(name, v); err != nil {
			return err
		}
	}
	for _, p := range aliases {
		if p.alias.Set == nil {
			return reason(UnsupportedOperationTag, "alias field %q of %s is read only", p.alias.Name, e.schema.Kind)
		}
		if err := p.alias.Set(ctx, e, p.value); err != nil {
			return annotate(RequestValidationTag, err, "setting %q", p.alias.Name)
		}
	}
	return nil
}

// errNotRegistered is returned for operations on unregistered schemas.
func errNotRegistered(s *Schema) error {
	return reason(ConfigurationTag, "schema %s is not registered", s.Kind)
}
