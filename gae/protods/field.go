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
	"fmt"
)

// FieldType is the semantic type of a schema field.
type FieldType int

// Field types. Repetition is a property of the Field, not of the type.
const (
	TypeInvalid FieldType = iota
	TypeString
	TypeText
	TypeInteger
	TypeFloat
	TypeBoolean
	TypeBytes
	TypeDateTime
	TypeDate
	TypeTime
	TypeKey
	TypeGeoPoint
	TypeJSON
	TypeEnum
	TypeStructured
)

var typeNames = map[FieldType]string{
	TypeString:     "string",
	TypeText:       "text",
	TypeInteger:    "integer",
	TypeFloat:      "float",
	TypeBoolean:    "boolean",
	TypeBytes:      "bytes",
	TypeDateTime:   "datetime",
	TypeDate:       "date",
	TypeTime:       "time",
	TypeKey:        "key",
	TypeGeoPoint:   "geopoint",
	TypeJSON:       "json",
	TypeEnum:       "enum",
	TypeStructured: "structured",
}

func (t FieldType) String() string {
	if n, ok := typeNames[t]; ok {
		return n
	}
	return fmt.Sprintf("FieldType(%d)", int(t))
}

// Variant selects the wire encoding of integer and float fields.
type Variant int

// Variants. The zero value picks VariantInt64 for integers and VariantDouble
// for floats.
const (
	VariantDefault Variant = iota
	VariantInt32
	VariantInt64
	VariantUint32
	VariantUint64
	VariantSint32
	VariantSint64
	VariantFloat
	VariantDouble
)

// Field is a persistent field of a Schema.
type Field struct {
	Name     string
	Type     FieldType
	Required bool
	Repeated bool
	// Default is used on the wire for unset scalars and written by Save for
	// unset fields. It is ignored on required fields.
	Default any
	NoIndex bool
	// AutoNowAdd and AutoNow apply to the datetime family only.
	AutoNowAdd bool
	AutoNow    bool
	Variant    Variant
	// Format overrides the wire layout of datetime, date and time fields.
	Format string
	Enum   *EnumType
	Model  *Schema
}

// FieldOption modifies a Field or the field part of an AliasField.
type FieldOption func(*Field)

// Required marks the field as required.
func Required() FieldOption { return func(f *Field) { f.Required = true } }

// Repeated marks the field as holding a list of values.
func Repeated() FieldOption { return func(f *Field) { f.Repeated = true } }

// Default sets the field's default value.
func Default(v any) FieldOption { return func(f *Field) { f.Default = v } }

// NoIndex excludes the field from store indexes.
func NoIndex() FieldOption { return func(f *Field) { f.NoIndex = true } }

// AutoNowAdd stamps the field with the current time on first store.
func AutoNowAdd() FieldOption { return func(f *Field) { f.AutoNowAdd = true } }

// AutoNow stamps the field with the current time on every store.
func AutoNow() FieldOption { return func(f *Field) { f.AutoNow = true } }

// WithVariant sets the wire variant of an integer or float field.
func WithVariant(v Variant) FieldOption { return func(f *Field) { f.Variant = v } }

// WithFormat sets the wire layout (time.Format syntax) of a datetime, date or
// time field.
func WithFormat(layout string) FieldOption { return func(f *Field) { f.Format = layout } }

// OfEnum sets the enum type of a TypeEnum alias.
func OfEnum(e *EnumType) FieldOption { return func(f *Field) { f.Enum = e } }

// OfModel sets the nested schema of a TypeStructured alias.
func OfModel(s *Schema) FieldOption { return func(f *Field) { f.Model = s } }

func newField(name string, typ FieldType, opts []FieldOption) *Field {
	f := &Field{Name: name, Type: typ}
	for _, o := range opts {
		o(f)
	}
	return f
}

// String declares a short, indexed string field.
func String(name string, opts ...FieldOption) *Field { return newField(name, TypeString, opts) }

// Text declares a long, unindexed string field.
func Text(name string, opts ...FieldOption) *Field { return newField(name, TypeText, opts) }

// Integer declares a 64-bit integer field.
func Integer(name string, opts ...FieldOption) *Field { return newField(name, TypeInteger, opts) }

// Float declares a floating point field.
func Float(name string, opts ...FieldOption) *Field { return newField(name, TypeFloat, opts) }

// Boolean declares a boolean field.
func Boolean(name string, opts ...FieldOption) *Field { return newField(name, TypeBoolean, opts) }

// Bytes declares an opaque, unindexed blob field.
func Bytes(name string, opts ...FieldOption) *Field { return newField(name, TypeBytes, opts) }

// DateTime declares a timestamp field.
func DateTime(name string, opts ...FieldOption) *Field { return newField(name, TypeDateTime, opts) }

// Date declares a calendar date field.
func Date(name string, opts ...FieldOption) *Field { return newField(name, TypeDate, opts) }

// Time declares a time of day field.
func Time(name string, opts ...FieldOption) *Field { return newField(name, TypeTime, opts) }

// Key declares a datastore key field.
func Key(name string, opts ...FieldOption) *Field { return newField(name, TypeKey, opts) }

// GeoPoint declares a geographical point field.
func GeoPoint(name string, opts ...FieldOption) *Field { return newField(name, TypeGeoPoint, opts) }

// JSON declares a field holding any JSON-encodable value.
func JSON(name string, opts ...FieldOption) *Field { return newField(name, TypeJSON, opts) }

// Enum declares a field holding one of e's symbolic names.
func Enum(name string, e *EnumType, opts ...FieldOption) *Field {
	f := newField(name, TypeEnum, opts)
	f.Enum = e
	return f
}

// Structured declares a field holding nested entities of model.
func Structured(name string, model *Schema, opts ...FieldOption) *Field {
	f := newField(name, TypeStructured, opts)
	f.Model = model
	return f
}

// indexed reports whether the field's stored values are queryable.
func (f *Field) indexed() bool {
	if f.NoIndex {
		return false
	}
	switch f.Type {
	case TypeText, TypeBytes, TypeJSON, TypeStructured:
		return false
	}
	return true
}

func (f *Field) isTime() bool {
	return f.Type == TypeDateTime || f.Type == TypeDate || f.Type == TypeTime
}

// Getter computes the value of an alias field.
type Getter func(ctx context.Context, e *Entity) (any, error)

// Setter assigns an alias field. A nil Setter makes the alias read only.
type Setter func(ctx context.Context, e *Entity, v any) error

// AliasField is a computed, non-persistent field. It takes part in messages
// but is never written to the store.
type AliasField struct {
	Field

	Get Getter
	Set Setter

	base bool
}

// Alias declares an alias field of type typ.
func Alias(name string, typ FieldType, get Getter, opts ...FieldOption) *AliasField {
	a := &AliasField{Get: get}
	a.Field = *newField(name, typ, opts)
	return a
}

// Setter makes the alias writable.
func (a *AliasField) Setter(set Setter) *AliasField {
	a.Set = set
	return a
}
