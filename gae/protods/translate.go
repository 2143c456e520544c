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

	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/reflect/protoreflect"
	"google.golang.org/protobuf/types/dynamicpb"

	ds "go.glassware.dev/glassware/gae/service/datastore"
)

// ProtoModel returns the message class of s for fs in s's registry.
func (s *Schema) ProtoModel(fs FieldSet, opts ...MessageOption) (*MessageClass, error) {
	if s.registry == nil {
		return nil, errNotRegistered(s)
	}
	return s.registry.Message(s, fs, opts...)
}

// ProtoCollection returns the collection class of s for fs in s's registry.
func (s *Schema) ProtoCollection(fs FieldSet) (*MessageClass, error) {
	if s.registry == nil {
		return nil, errNotRegistered(s)
	}
	return s.registry.Collection(s, fs)
}

// ToMessage converts e into a message of the class derived for fs. Unset
// fields are absent from the message.
func (e *Entity) ToMessage(ctx context.Context, fs FieldSet) (*dynamicpb.Message, error) {
	mc, err := e.schema.ProtoModel(fs)
	if err != nil {
		return nil, err
	}
	m := mc.New()
	if err := e.fillMessage(ctx, m); err != nil {
		return nil, err
	}
	return m, nil
}

// FromMessage converts msg into a new entity. msg must be an instance of a
// message class derived from s, else a NotFoundTag error is returned.
func (s *Schema) FromMessage(ctx context.Context, msg proto.Message) (*Entity, error) {
	e := s.NewEntity()
	if err := e.FillFromMessage(ctx, msg); err != nil {
		return nil, err
	}
	return e, nil
}

// FillFromMessage populates e from msg like FromMessage. Use it to prepare e,
// e.g. with SetParent, before alias setters run.
func (e *Entity) FillFromMessage(ctx context.Context, msg proto.Message) error {
	m, err := e.schema.classMessage(msg)
	if err != nil {
		return err
	}
	return e.readMessage(ctx, m)
}

func (s *Schema) classMessage(msg proto.Message) (protoreflect.Message, error) {
	if s.registry == nil {
		return nil, errNotRegistered(s)
	}
	if msg == nil {
		return nil, reason(NotFoundTag, "nil message")
	}
	m := msg.ProtoReflect()
	mc := s.registry.classOf(m)
	if mc == nil || mc.Schema != s || mc.IsCollection() {
		return nil, reason(NotFoundTag,
			"the message is an instance of %s, which %s does not know how to process", m.Descriptor().FullName(), s.Kind)
	}
	return m, nil
}

// ToMessageCollection converts items into a collection message of the class
// derived for fs. A non-empty next becomes nextPageToken.
func (s *Schema) ToMessageCollection(ctx context.Context, items []*Entity, fs FieldSet, next ds.Cursor) (*dynamicpb.Message, error) {
	mc, err := s.ProtoCollection(fs)
	if err != nil {
		return nil, err
	}
	m := mc.New()
	fields := mc.Desc.Fields()
	itemsFD := fields.ByName("items")
	if len(items) > 0 {
		list := m.Mutable(itemsFD).List()
		for _, it := range items {
			if it.schema != s {
				return nil, reason(TypeSerializationTag, "collection of %s cannot hold a %s", s.Kind, it.schema.Kind)
			}
			im := list.NewElement()
			if err := it.fillMessage(ctx, im.Message()); err != nil {
				return nil, err
			}
			list.Append(im)
		}
	}
	if next != "" {
		m.Set(fields.ByName("nextPageToken"), protoreflect.ValueOfString(string(next)))
	}
	return m, nil
}
