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

	"go.glassware.dev/glassware/common/errors"
	ds "go.glassware.dev/glassware/gae/service/datastore"
)

// Entity is an instance of a Schema. It implements ds.PropertyLoadSaver and
// ds.KeyLoader, so it can be stored by any datastore implementation.
//
// Entities are request scoped and not safe for concurrent use.
type Entity struct {
	schema *Schema
	key    *ds.Key
	parent *ds.Key
	values map[string]any
	qi     *QueryInfo

	fromDatastore bool
}

var (
	_ ds.PropertyLoadSaver = (*Entity)(nil)
	_ ds.KeyLoader         = (*Entity)(nil)
)

// NewEntity returns an empty entity of s with a fresh QueryInfo.
func (s *Schema) NewEntity() *Entity {
	e := &Entity{schema: s, values: map[string]any{}}
	e.qi = &QueryInfo{entity: e}
	return e
}

// Schema returns the entity's schema.
func (e *Entity) Schema() *Schema { return e.schema }

// Key returns the entity's key, or nil if it has none yet.
func (e *Entity) Key() *ds.Key { return e.key }

// SetKey sets the entity's key. The key's parent becomes the entity's parent.
func (e *Entity) SetKey(k *ds.Key) {
	e.key = k
	if k != nil {
		e.parent = k.Parent
	}
}

// Parent returns the parent used for keys built from ids.
func (e *Entity) Parent() *ds.Key { return e.parent }

// SetParent sets the parent used for keys built from ids, as done by the id
// alias, and for new keys allocated by Put.
func (e *Entity) SetParent(k *ds.Key) { e.parent = k }

// QueryInfo returns the query parameters attached to this entity.
func (e *Entity) QueryInfo() *QueryInfo { return e.qi }

// FromDatastore reports whether UpdateFromKey found a stored entity.
func (e *Entity) FromDatastore() bool { return e.fromDatastore }

// Get returns the value of a persistent field, or nil if unset.
func (e *Entity) Get(name string) any { return e.values[name] }

// IsSet reports whether a persistent field has a value.
func (e *Entity) IsSet(name string) bool {
	_, ok := e.values[name]
	return ok
}

// Set assigns a persistent field. nil or an empty list unsets it. Values are
// converted to the field's canonical representation, see normalize.
func (e *Entity) Set(name string, v any) error {
	f := e.schema.Field(name)
	if f == nil {
		return reason(RequestValidationTag, "%s has no persistent field %q", e.schema.Kind, name)
	}
	nv, err := normalize(f, v)
	if err != nil {
		return annotate(RequestValidationTag, err, "bad field value")
	}
	if nv == nil {
		delete(e.values, name)
	} else {
		e.values[name] = nv
	}
	return nil
}

// MustSet is like Set but panics on error.
func (e *Entity) MustSet(name string, v any) *Entity {
	if err := e.Set(name, v); err != nil {
		panic(err)
	}
	return e
}

// GetField returns the value of a persistent or alias field.
func (e *Entity) GetField(ctx context.Context, name string) (any, error) {
	f, alias := e.schema.lookup(name)
	switch {
	case f == nil:
		return nil, reason(RequestValidationTag, "%s has no field %q", e.schema.Kind, name)
	case alias != nil:
		v, err := alias.Get(ctx, e)
		if err != nil {
			return nil, annotate(TypeSerializationTag, err, "getting %q", name)
		}
		return v, nil
	}
	return e.values[name], nil
}

// SetField assigns a persistent or alias field.
func (e *Entity) SetField(ctx context.Context, name string, v any) error {
	f, alias := e.schema.lookup(name)
	switch {
	case f == nil:
		return reason(RequestValidationTag, "%s has no field %q", e.schema.Kind, name)
	case alias == nil:
		return e.Set(name, v)
	case alias.Set == nil:
		return reason(UnsupportedOperationTag, "alias field %q of %s is read only", name, e.schema.Kind)
	}
	nv, err := normalize(f, v)
	if err != nil {
		return annotate(RequestValidationTag, err, "bad field value")
	}
	return alias.Set(ctx, e, nv)
}

// CopyFrom fills the unset persistent fields of e from other, which must
// share e's schema.
func (e *Entity) CopyFrom(other *Entity) error {
	if other.schema != e.schema {
		return reason(RequestValidationTag, "can only copy from %s entities, got %s", e.schema.Kind, other.schema.Kind)
	}
	for name, v := range other.values {
		if _, ok := e.values[name]; !ok {
			e.values[name] = v
		}
	}
	return nil
}

// UpdateFromKey sets the entity key to k and merges in the stored entity, if
// there is one. A missing entity is not an error.
func (e *Entity) UpdateFromKey(ctx context.Context, k *ds.Key) error {
	e.SetKey(k)
	stored := e.schema.NewEntity()
	switch err := ds.Get(ctx, k, stored); {
	case errors.Is(err, ds.ErrNoSuchEntity):
		return nil
	case err != nil:
		return errors.Annotate(err, "loading %s", k).Err()
	}
	e.fromDatastore = true
	return e.CopyFrom(stored)
}

// LoadKey implements ds.KeyLoader.
func (e *Entity) LoadKey(k *ds.Key) error {
	e.SetKey(k)
	return nil
}

// Load implements ds.PropertyLoadSaver. Properties unknown to the schema are
// ignored.
func (e *Entity) Load(props []ds.Property) error {
	e.values = make(map[string]any, len(props))
	for _, p := range props {
		f := e.schema.Field(p.Name)
		if f == nil {
			continue
		}
		v, err := fromStore(f, p.Value)
		if err != nil {
			return err
		}
		if v != nil {
			e.values[p.Name] = v
		}
	}
	return nil
}

// Save implements ds.PropertyLoadSaver. Unset fields take their default;
// a missing required field is an error.
func (e *Entity) Save() ([]ds.Property, error) {
	props := make([]ds.Property, 0, len(e.schema.fields))
	for _, f := range e.schema.fields {
		v, ok := e.values[f.Name]
		if !ok && f.Default != nil && !f.Required {
			v, ok = f.Default, true
		}
		if !ok {
			if f.Required {
				return nil, reason(RequestValidationTag, "%s: required field %q is missing", e.schema.Kind, f.Name)
			}
			continue
		}
		sv, err := toStore(f, v)
		if err != nil {
			return nil, annotate(TypeSerializationTag, err, "saving %q", f.Name)
		}
		props = append(props, ds.Property{Name: f.Name, Value: sv, NoIndex: !f.indexed()})
	}
	return props, nil
}

