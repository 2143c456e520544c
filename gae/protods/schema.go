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
	"sort"
	"strings"

	ds "go.glassware.dev/glassware/gae/service/datastore"
)

// Schema describes an entity kind: its persistent fields, its alias fields and
// the default set of fields used for messages.
//
// A Schema is built with NewSchema, Alias and MessageFields and must be
// registered before use. It is immutable after registration.
type Schema struct {
	Kind string

	fields  []*Field
	byName  map[string]*Field
	aliases []*AliasField
	aliasBy map[string]*AliasField

	messageFields *FieldSet
	registry      *Registry
}

// NewSchema declares a schema of the given kind.
func NewSchema(kind string, fields ...*Field) *Schema {
	return &Schema{Kind: kind, fields: fields}
}

// Alias appends alias fields. An alias named like one of the standard aliases
// (id, entityKey, limit, order, pageToken) replaces it.
func (s *Schema) Alias(aliases ...*AliasField) *Schema {
	s.aliases = append(s.aliases, aliases...)
	return s
}

// MessageFields overrides the default message field set.
func (s *Schema) MessageFields(fs FieldSet) *Schema {
	s.messageFields = &fs
	return s
}

// Fields returns the persistent fields in declaration order.
func (s *Schema) Fields() []*Field { return s.fields }

// Field returns the persistent field called name, or nil.
func (s *Schema) Field(name string) *Field { return s.byName[name] }

// Aliases returns the alias fields, standard ones included once registered.
func (s *Schema) Aliases() []*AliasField { return s.aliases }

// AliasField returns the alias called name, or nil.
func (s *Schema) AliasField(name string) *AliasField { return s.aliasBy[name] }

// Registry returns the registry s is registered in, or nil.
func (s *Schema) Registry() *Registry { return s.registry }

// lookup returns the field part of a persistent or alias field.
func (s *Schema) lookup(name string) (f *Field, alias *AliasField) {
	if f := s.byName[name]; f != nil {
		return f, nil
	}
	if a := s.aliasBy[name]; a != nil {
		return &a.Field, a
	}
	return nil, nil
}

// DefaultFields is the message field set used when none is given: the
// MessageFields override if set, else every persistent field followed by
// every alias that is not a standard one.
func (s *Schema) DefaultFields() FieldSet {
	if s.messageFields != nil {
		return *s.messageFields
	}
	names := make([]string, 0, len(s.fields)+len(s.aliases))
	for _, f := range s.fields {
		names = append(names, f.Name)
	}
	for _, a := range s.aliases {
		if !a.base {
			names = append(names, a.Name)
		}
	}
	return FieldSet{Names: names}
}

// FieldSet is an ordered subset of a schema's field names, optionally with an
// explicit message name. Wire fields are numbered from 1 in Names order.
//
// A FieldSet with nil Names stands for the schema's default fields.
type FieldSet struct {
	Names          []string
	Name           string
	CollectionName string
}

// Fields returns a FieldSet of names. Fields() is the empty set, not the
// default one.
func Fields(names ...string) FieldSet {
	if names == nil {
		names = []string{}
	}
	return FieldSet{Names: names}
}

// FieldsFromMap returns a FieldSet ordered by the map's indexes.
func FieldsFromMap(m map[string]int) FieldSet {
	names := make([]string, 0, len(m))
	for n := range m {
		names = append(names, n)
	}
	sort.Slice(names, func(i, j int) bool {
		if m[names[i]] != m[names[j]] {
			return m[names[i]] < m[names[j]]
		}
		return names[i] < names[j]
	})
	return FieldSet{Names: names}
}

// Named returns fs with an explicit message name.
func (fs FieldSet) Named(name string) FieldSet {
	fs.Name = name
	return fs
}

// CollectionNamed returns fs with an explicit collection message name.
func (fs FieldSet) CollectionNamed(name string) FieldSet {
	fs.CollectionName = name
	return fs
}

// resolve fills in defaults for s.
func (fs FieldSet) resolve(s *Schema) FieldSet {
	if fs.Names == nil {
		def := s.DefaultFields()
		if fs.Name == "" {
			fs.Name = def.Name
		}
		if fs.CollectionName == "" {
			fs.CollectionName = def.CollectionName
		}
		fs.Names = def.Names
		if fs.Names == nil {
			fs.Names = []string{}
		}
	}
	if fs.Name == "" {
		fs.Name = strings.Join(append([]string{s.Kind + "Proto"}, fs.Names...), "_")
	}
	if fs.CollectionName == "" {
		fs.CollectionName = fs.Name + "Collection"
	}
	return fs
}

// set returns the sorted names, used to compare field sets.
func (fs FieldSet) set() string {
	names := append([]string(nil), fs.Names...)
	sort.Strings(names)
	return strings.Join(names, ",")
}

// Standard aliases present on every schema unless shadowed.
func baseAliases() []*AliasField {
	mk := func(name string, typ FieldType, get Getter, set Setter) *AliasField {
		a := Alias(name, typ, get).Setter(set)
		a.base = true
		return a
	}
	return []*AliasField{
		mk("id", TypeInteger, getID, setID),
		mk("entityKey", TypeString, getEntityKey, setEntityKey),
		mk("limit", TypeInteger, getLimit, setLimit),
		mk("order", TypeString, getOrder, setOrder),
		mk("pageToken", TypeString, getPageToken, setPageToken),
	}
}

func getID(_ context.Context, e *Entity) (any, error) {
	if e.key == nil || e.key.ID == 0 {
		return nil, nil
	}
	return e.key.ID, nil
}

// setID points the entity at the integer id under its parent and merges in
// the stored entity, if any.
func setID(ctx context.Context, e *Entity, v any) error {
	id, ok := v.(int64)
	if !ok {
		return reason(RequestValidationTag, "id must be an integer, got %T", v)
	}
	return e.UpdateFromKey(ctx, ds.IDKey(e.schema.Kind, id, e.parent))
}

func getEntityKey(_ context.Context, e *Entity) (any, error) {
	if e.key == nil || e.key.Incomplete() {
		return nil, nil
	}
	return e.key.Encode(), nil
}

func setEntityKey(ctx context.Context, e *Entity, v any) error {
	s, ok := v.(string)
	if !ok {
		return reason(RequestValidationTag, "entityKey must be a string, got %T", v)
	}
	k, err := ds.DecodeKey(s)
	if err != nil {
		return annotate(RequestValidationTag, err, "bad entityKey")
	}
	if k.Kind != e.schema.Kind {
		return reason(RequestValidationTag, "entityKey is a %s key, want %s", k.Kind, e.schema.Kind)
	}
	return e.UpdateFromKey(ctx, k)
}

func getLimit(_ context.Context, e *Entity) (any, error) {
	if l := e.qi.Limit(); l > 0 {
		return int64(l), nil
	}
	return nil, nil
}

func setLimit(_ context.Context, e *Entity, v any) error {
	n, ok := v.(int64)
	if !ok {
		return reason(RequestValidationTag, "limit must be an integer, got %T", v)
	}
	return e.qi.SetLimit(int(n))
}

func getOrder(_ context.Context, e *Entity) (any, error) {
	if o := e.qi.Order(); o != "" {
		return o, nil
	}
	return nil, nil
}

func setOrder(_ context.Context, e *Entity, v any) error {
	s, ok := v.(string)
	if !ok {
		return reason(RequestValidationTag, "order must be a string, got %T", v)
	}
	return e.qi.SetOrder(s)
}

func getPageToken(_ context.Context, e *Entity) (any, error) {
	if c := e.qi.Cursor(); c != "" {
		return string(c), nil
	}
	return nil, nil
}

func setPageToken(_ context.Context, e *Entity, v any) error {
	s, ok := v.(string)
	if !ok {
		return reason(RequestValidationTag, "pageToken must be a string, got %T", v)
	}
	return e.qi.SetCursor(ds.Cursor(s))
}
