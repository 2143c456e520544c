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
	"regexp"
	"sort"
	"strconv"
	"sync"
	"time"

	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/reflect/protodesc"
	"google.golang.org/protobuf/reflect/protoreflect"
	"google.golang.org/protobuf/reflect/protoregistry"
	"google.golang.org/protobuf/types/descriptorpb"
	"google.golang.org/protobuf/types/dynamicpb"

	"go.glassware.dev/glassware/common/logging"
)

const (
	rootPackage = "protods"
	geoPtName   = "GeoPtMessage"
	geoPtFile   = "protods/geopt.proto"
)

var identRe = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

func isIdent(s string) bool { return identRe.MatchString(s) }

// Kinds that would clash with the shared descriptor files.
var reservedKinds = map[string]bool{geoPtName: true, "enums": true}

// MessageClass is a wire message type derived from a Schema. Classes are
// cached by their registry: deriving the same name and field set twice yields
// the same *MessageClass.
type MessageClass struct {
	Schema *Schema
	Name   string
	// Fields lists the field names in wire number order. Empty for
	// collections.
	Fields []string
	// Required lists the fields of Fields that are required in the schema.
	// Required-ness is enforced when storing, not by the wire codec.
	Required []string
	Desc     protoreflect.MessageDescriptor
	// Items is the item class of a collection, nil otherwise.
	Items *MessageClass

	hasMessageFields bool
}

// New returns an empty message of this class.
func (mc *MessageClass) New() *dynamicpb.Message {
	return dynamicpb.NewMessage(mc.Desc)
}

// FullName is the protobuf full name of the class.
func (mc *MessageClass) FullName() protoreflect.FullName { return mc.Desc.FullName() }

// IsCollection reports whether mc is an items/nextPageToken collection.
func (mc *MessageClass) IsCollection() bool { return mc.Items != nil }

// HasMessageFields reports whether any top-level field is message-typed.
func (mc *MessageClass) HasMessageFields() bool { return mc.hasMessageFields }

// MessageOption tweaks Message.
type MessageOption func(*messageOptions)

type messageOptions struct {
	allowMessageFields bool
}

// WithoutMessageFields rejects classes with message-typed fields, as used
// for query requests whose fields must map onto URL parameters.
func WithoutMessageFields() MessageOption {
	return func(o *messageOptions) { o.allowMessageFields = false }
}

// Registry owns registered schemas and the message classes derived from them.
// It is safe for concurrent use.
type Registry struct {
	m sync.RWMutex

	schemas map[string]*Schema
	enums   map[string]*EnumType
	models  map[protoreflect.FullName]*MessageClass
	colls   map[protoreflect.FullName]*MessageClass
	byDesc  map[protoreflect.MessageDescriptor]*MessageClass
	files   *protoregistry.Files
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		schemas: map[string]*Schema{},
		enums:   map[string]*EnumType{},
		models:  map[protoreflect.FullName]*MessageClass{},
		colls:   map[protoreflect.FullName]*MessageClass{},
		byDesc:  map[protoreflect.MessageDescriptor]*MessageClass{},
		files:   &protoregistry.Files{},
	}
}

// DefaultRegistry is the registry used by the package level Register.
var DefaultRegistry = NewRegistry()

// Register validates s and registers it in the DefaultRegistry registry.
func Register(ctx context.Context, s *Schema) error {
	return DefaultRegistry.Register(ctx, s)
}

// MustRegister is like Register but panics on error. Meant for process
// startup.
func MustRegister(ctx context.Context, schemas ...*Schema) {
	for _, s := range schemas {
		if err := Register(ctx, s); err != nil {
			panic(err)
		}
	}
}

// Schema returns the registered schema of kind, or nil.
func (r *Registry) Schema(kind string) *Schema {
	r.m.RLock()
	defer r.m.RUnlock()
	return r.schemas[kind]
}

// Register validates s, adds the standard aliases and derives its default
// message class. Structured fields register their models as well. Every
// problem is a ConfigurationTag error. Registering s again is a no-op.
func (r *Registry) Register(ctx context.Context, s *Schema) error {
	r.m.Lock()
	defer r.m.Unlock()
	return r.registerLocked(ctx, s, map[*Schema]bool{})
}

func (r *Registry) registerLocked(ctx context.Context, s *Schema, inProgress map[*Schema]bool) error {
	switch {
	case s == nil:
		return reason(ConfigurationTag, "nil schema")
	case s.registry == r:
		return nil
	case s.registry != nil:
		return reason(ConfigurationTag, "schema %s is registered in another registry", s.Kind)
	case inProgress[s]:
		return reason(ConfigurationTag, "schema %s nests itself", s.Kind)
	case !isIdent(s.Kind) || reservedKinds[s.Kind]:
		return reason(ConfigurationTag, "bad kind %q", s.Kind)
	case r.schemas[s.Kind] != nil:
		return reason(ConfigurationTag, "kind %s is already registered", s.Kind)
	}
	inProgress[s] = true
	defer delete(inProgress, s)

	byName := make(map[string]*Field, len(s.fields))
	for _, f := range s.fields {
		if f == nil {
			return reason(ConfigurationTag, "%s: nil field", s.Kind)
		}
		if _, dup := byName[f.Name]; dup {
			return reason(ConfigurationTag, "%s: duplicate field %q", s.Kind, f.Name)
		}
		if err := r.checkField(ctx, s, f, inProgress); err != nil {
			return err
		}
		byName[f.Name] = f
	}

	aliasBy := make(map[string]*AliasField, len(s.aliases))
	for _, a := range s.aliases {
		switch {
		case a == nil:
			return reason(ConfigurationTag, "%s: nil alias", s.Kind)
		case a.Get == nil:
			return reason(ConfigurationTag, "%s: alias %q has no getter", s.Kind, a.Name)
		case byName[a.Name] != nil:
			return reason(ConfigurationTag,
				"%s: name conflict: %q is both a persistent field and an alias", s.Kind, a.Name)
		case aliasBy[a.Name] != nil:
			return reason(ConfigurationTag, "%s: duplicate alias %q", s.Kind, a.Name)
		case a.AutoNow || a.AutoNowAdd || a.NoIndex:
			return reason(ConfigurationTag, "%s: alias %q cannot use storage options", s.Kind, a.Name)
		}
		if err := r.checkField(ctx, s, &a.Field, inProgress); err != nil {
			return err
		}
		aliasBy[a.Name] = a
	}
	aliases := s.aliases
	for _, a := range baseAliases() {
		if byName[a.Name] == nil && aliasBy[a.Name] == nil {
			aliases = append(aliases, a)
			aliasBy[a.Name] = a
		}
	}

	s.byName, s.aliasBy, s.aliases = byName, aliasBy, aliases
	s.registry = r
	r.schemas[s.Kind] = s

	if _, err := r.messageLocked(s, FieldSet{}, messageOptions{allowMessageFields: true}); err != nil {
		delete(r.schemas, s.Kind)
		s.registry = nil
		return annotate(ConfigurationTag, err, "deriving the default message of %s", s.Kind)
	}
	return nil
}

func (r *Registry) checkField(ctx context.Context, s *Schema, f *Field, inProgress map[*Schema]bool) error {
	if !isIdent(f.Name) {
		return reason(ConfigurationTag, "%s: field name %q is not an identifier", s.Kind, f.Name)
	}
	conv, ok := converters[f.Type]
	if !ok {
		return reason(ConfigurationTag, "%s: no converter for field %q of type %s", s.Kind, f.Name, f.Type)
	}
	if _, err := conv.wireType(f); err != nil {
		return err
	}
	if (f.AutoNow || f.AutoNowAdd || f.Format != "") && !f.isTime() {
		return reason(ConfigurationTag, "%s: field %q: time options on a %s field", s.Kind, f.Name, f.Type)
	}
	if f.Repeated && (f.AutoNow || f.AutoNowAdd) {
		return reason(ConfigurationTag, "%s: field %q: auto time on a repeated field", s.Kind, f.Name)
	}
	switch f.Type {
	case TypeEnum:
		if f.Enum == nil {
			return reason(ConfigurationTag, "%s: enum field %q has no enum type", s.Kind, f.Name)
		}
		if err := f.Enum.validate(); err != nil {
			return err
		}
		if prev := r.enums[f.Enum.Name]; prev != nil && prev != f.Enum {
			return reason(ConfigurationTag, "%s: field %q: another enum is called %s", s.Kind, f.Name, f.Enum.Name)
		}
		r.enums[f.Enum.Name] = f.Enum
	case TypeStructured:
		if f.Model == nil {
			return reason(ConfigurationTag, "%s: structured field %q has no model", s.Kind, f.Name)
		}
		if err := r.registerLocked(ctx, f.Model, inProgress); err != nil {
			return annotate(ConfigurationTag, err, "%s: field %q", s.Kind, f.Name)
		}
	}
	if f.Default != nil {
		if f.Required {
			logging.Warningf(ctx, "protods: %s.%s is required and has a default; the default is ignored", s.Kind, f.Name)
			return nil
		}
		dv, err := normalize(f, f.Default)
		if err != nil {
			return annotate(ConfigurationTag, err, "%s: bad default", s.Kind)
		}
		f.Default = dv
	}
	return nil
}

// Message derives, or returns the cached, message class of s for fs. The zero
// FieldSet stands for the schema's default fields.
func (r *Registry) Message(s *Schema, fs FieldSet, opts ...MessageOption) (*MessageClass, error) {
	o := messageOptions{allowMessageFields: true}
	for _, opt := range opts {
		opt(&o)
	}
	fs = fs.resolve(s)
	full := fullName(s, fs.Name)

	r.m.RLock()
	mc, ok := r.models[full]
	registered := s.registry == r
	r.m.RUnlock()
	if !registered {
		return nil, errNotRegistered(s)
	}
	if ok {
		return checkCached(mc, fs, o)
	}

	r.m.Lock()
	defer r.m.Unlock()
	return r.messageLocked(s, fs, o)
}

func checkCached(mc *MessageClass, fs FieldSet, o messageOptions) (*MessageClass, error) {
	if (FieldSet{Names: mc.Fields}).set() != fs.set() {
		return nil, reason(ConfigurationTag, "message name %s is already used for fields %q", mc.Name, mc.Fields)
	}
	if !o.allowMessageFields && mc.hasMessageFields {
		return nil, reason(ConfigurationTag, "message %s has message fields, which are not allowed here", mc.Name)
	}
	return mc, nil
}

func (r *Registry) messageLocked(s *Schema, fs FieldSet, o messageOptions) (*MessageClass, error) {
	fs = fs.resolve(s)
	full := fullName(s, fs.Name)
	if mc, ok := r.models[full]; ok {
		return checkCached(mc, fs, o)
	}
	if !isIdent(fs.Name) {
		return nil, reason(ConfigurationTag, "message name %q is not an identifier", fs.Name)
	}
	if r.colls[full] != nil {
		return nil, reason(ConfigurationTag, "message name %s is already used by a collection", fs.Name)
	}

	b := &fileBuilder{
		r:      r,
		top:    &descriptorpb.DescriptorProto{Name: proto.String(fs.Name)},
		topFul: string(full),
		deps:   map[string]bool{},
		nested: map[*Schema]string{},
		stack:  map[*Schema]bool{s: true},
	}
	mc := &MessageClass{Schema: s, Name: fs.Name, Fields: append([]string(nil), fs.Names...)}
	seen := map[string]bool{}
	for i, name := range fs.Names {
		if seen[name] {
			return nil, reason(ConfigurationTag, "%s: field %q listed twice", fs.Name, name)
		}
		seen[name] = true
		f, _ := s.lookup(name)
		if f == nil {
			return nil, reason(ConfigurationTag,
				"%q is not an accepted field of %s; only persistent and alias fields are", name, s.Kind)
		}
		fp, isMsg, err := b.fieldProto(f, int32(i+1))
		if err != nil {
			return nil, err
		}
		if isMsg && !o.allowMessageFields {
			return nil, reason(ConfigurationTag,
				"field %q of %s is a message field, which is not allowed here", name, fs.Name)
		}
		mc.hasMessageFields = mc.hasMessageFields || isMsg
		if f.Required {
			mc.Required = append(mc.Required, name)
		}
		b.top.Field = append(b.top.Field, fp)
	}

	md, err := r.buildFile(s, fs.Name, b.deps, b.top)
	if err != nil {
		return nil, err
	}
	mc.Desc = md
	r.models[full] = mc
	r.byDesc[md] = mc
	return mc, nil
}

// Collection derives, or returns the cached, collection class of s for fs:
// a message with "repeated <item> items = 1" and "string nextPageToken = 2".
func (r *Registry) Collection(s *Schema, fs FieldSet) (*MessageClass, error) {
	fs = fs.resolve(s)
	items, err := r.Message(s, fs)
	if err != nil {
		return nil, err
	}
	full := fullName(s, fs.CollectionName)

	r.m.RLock()
	mc, ok := r.colls[full]
	r.m.RUnlock()
	if ok {
		if mc.Items != items {
			return nil, reason(ConfigurationTag, "collection name %s is already used for %s", fs.CollectionName, mc.Items.Name)
		}
		return mc, nil
	}

	r.m.Lock()
	defer r.m.Unlock()
	if mc, ok := r.colls[full]; ok {
		if mc.Items != items {
			return nil, reason(ConfigurationTag, "collection name %s is already used for %s", fs.CollectionName, mc.Items.Name)
		}
		return mc, nil
	}
	if !isIdent(fs.CollectionName) {
		return nil, reason(ConfigurationTag, "collection name %q is not an identifier", fs.CollectionName)
	}
	if r.models[full] != nil {
		return nil, reason(ConfigurationTag, "collection name %s is already used by a message", fs.CollectionName)
	}
	top := &descriptorpb.DescriptorProto{
		Name: proto.String(fs.CollectionName),
		Field: []*descriptorpb.FieldDescriptorProto{
			{
				Name:     proto.String("items"),
				JsonName: proto.String("items"),
				Number:   proto.Int32(1),
				Label:    descriptorpb.FieldDescriptorProto_LABEL_REPEATED.Enum(),
				Type:     descriptorpb.FieldDescriptorProto_TYPE_MESSAGE.Enum(),
				TypeName: proto.String("." + string(items.FullName())),
			},
			{
				Name:     proto.String("nextPageToken"),
				JsonName: proto.String("nextPageToken"),
				Number:   proto.Int32(2),
				Label:    descriptorpb.FieldDescriptorProto_LABEL_OPTIONAL.Enum(),
				Type:     descriptorpb.FieldDescriptorProto_TYPE_STRING.Enum(),
			},
		},
	}
	deps := map[string]bool{items.Desc.ParentFile().Path(): true}
	md, err := r.buildFile(s, fs.CollectionName, deps, top)
	if err != nil {
		return nil, err
	}
	mc = &MessageClass{Schema: s, Name: fs.CollectionName, Desc: md, Items: items, hasMessageFields: true}
	r.colls[full] = mc
	r.byDesc[md] = mc
	return mc, nil
}

// classOf returns the class m was derived as, if it is one of r's.
func (r *Registry) classOf(m protoreflect.Message) *MessageClass {
	r.m.RLock()
	defer r.m.RUnlock()
	return r.byDesc[m.Descriptor()]
}

func fullName(s *Schema, name string) protoreflect.FullName {
	return protoreflect.FullName(rootPackage + "." + s.Kind + "." + name)
}

// buildFile wraps top into its own proto2 file in package protods.<Kind>,
// resolves it against the registry's files and registers it.
func (r *Registry) buildFile(s *Schema, name string, deps map[string]bool, top *descriptorpb.DescriptorProto) (protoreflect.MessageDescriptor, error) {
	fdp := &descriptorpb.FileDescriptorProto{
		Name:        proto.String(rootPackage + "/" + s.Kind + "/" + name + ".proto"),
		Package:     proto.String(rootPackage + "." + s.Kind),
		Syntax:      proto.String("proto2"),
		MessageType: []*descriptorpb.DescriptorProto{top},
	}
	for d := range deps {
		fdp.Dependency = append(fdp.Dependency, d)
	}
	sort.Strings(fdp.Dependency)
	fd, err := r.registerFile(fdp)
	if err != nil {
		return nil, annotate(ConfigurationTag, err, "building message %s", name)
	}
	return fd.Messages().ByName(protoreflect.Name(name)), nil
}

func (r *Registry) registerFile(fdp *descriptorpb.FileDescriptorProto) (protoreflect.FileDescriptor, error) {
	fd, err := protodesc.NewFile(fdp, r.files)
	if err != nil {
		return nil, err
	}
	if err := r.files.RegisterFile(fd); err != nil {
		return nil, err
	}
	return fd, nil
}

// ensureGeoPt registers the shared GeoPtMessage file once.
func (r *Registry) ensureGeoPt() error {
	if _, err := r.files.FindFileByPath(geoPtFile); err == nil {
		return nil
	}
	coord := func(name string, num int32) *descriptorpb.FieldDescriptorProto {
		return &descriptorpb.FieldDescriptorProto{
			Name:     proto.String(name),
			JsonName: proto.String(name),
			Number:   proto.Int32(num),
			Label:    descriptorpb.FieldDescriptorProto_LABEL_OPTIONAL.Enum(),
			Type:     descriptorpb.FieldDescriptorProto_TYPE_DOUBLE.Enum(),
		}
	}
	_, err := r.registerFile(&descriptorpb.FileDescriptorProto{
		Name:    proto.String(geoPtFile),
		Package: proto.String(rootPackage),
		Syntax:  proto.String("proto2"),
		MessageType: []*descriptorpb.DescriptorProto{{
			Name:  proto.String(geoPtName),
			Field: []*descriptorpb.FieldDescriptorProto{coord("lat", 1), coord("lon", 2)},
		}},
	})
	return err
}

// ensureEnum registers the file holding e and returns its path and full name.
// Each enum lives in its own package since enum value names are scoped to the
// enclosing package.
func (r *Registry) ensureEnum(e *EnumType) (path, full string, err error) {
	pkg := rootPackage + ".enums." + e.Name
	path = rootPackage + "/enums/" + e.Name + ".proto"
	full = pkg + "." + e.Name
	if _, err := r.files.FindFileByPath(path); err == nil {
		return path, full, nil
	}
	ed := &descriptorpb.EnumDescriptorProto{Name: proto.String(e.Name)}
	for _, n := range e.names {
		ed.Value = append(ed.Value, &descriptorpb.EnumValueDescriptorProto{
			Name:   proto.String(n),
			Number: proto.Int32(e.numbers[n]),
		})
	}
	_, err = r.registerFile(&descriptorpb.FileDescriptorProto{
		Name:     proto.String(path),
		Package:  proto.String(pkg),
		Syntax:   proto.String("proto2"),
		EnumType: []*descriptorpb.EnumDescriptorProto{ed},
	})
	return path, full, err
}

// fileBuilder accumulates the descriptor of one message class. Nested
// schemas become nested messages of the top-level message.
type fileBuilder struct {
	r      *Registry
	top    *descriptorpb.DescriptorProto
	topFul string
	deps   map[string]bool
	nested map[*Schema]string
	stack  map[*Schema]bool
}

func (b *fileBuilder) fieldProto(f *Field, num int32) (fp *descriptorpb.FieldDescriptorProto, isMsg bool, err error) {
	typ, err := converters[f.Type].wireType(f)
	if err != nil {
		return nil, false, err
	}
	fp = &descriptorpb.FieldDescriptorProto{
		Name:     proto.String(f.Name),
		JsonName: proto.String(f.Name),
		Number:   proto.Int32(num),
		Label:    descriptorpb.FieldDescriptorProto_LABEL_OPTIONAL.Enum(),
		Type:     typ.Enum(),
	}
	if f.Repeated {
		fp.Label = descriptorpb.FieldDescriptorProto_LABEL_REPEATED.Enum()
	}
	switch f.Type {
	case TypeEnum:
		path, full, err := b.r.ensureEnum(f.Enum)
		if err != nil {
			return nil, false, annotate(ConfigurationTag, err, "enum %s", f.Enum.Name)
		}
		b.deps[path] = true
		fp.TypeName = proto.String("." + full)
	case TypeGeoPoint:
		if err := b.r.ensureGeoPt(); err != nil {
			return nil, false, annotate(ConfigurationTag, err, "geo point message")
		}
		b.deps[geoPtFile] = true
		fp.TypeName = proto.String("." + rootPackage + "." + geoPtName)
		isMsg = true
	case TypeStructured:
		tn, err := b.nestedMessage(f.Model)
		if err != nil {
			return nil, false, err
		}
		fp.TypeName = proto.String("." + tn)
		isMsg = true
	}
	if dv, ok := defaultString(f); ok {
		fp.DefaultValue = proto.String(dv)
	}
	return fp, isMsg, nil
}

// nestedMessage adds the default message of sub as a nested type and returns
// its full name.
func (b *fileBuilder) nestedMessage(sub *Schema) (string, error) {
	if tn, ok := b.nested[sub]; ok {
		return tn, nil
	}
	if b.stack[sub] {
		return "", reason(ConfigurationTag, "schema %s nests itself", sub.Kind)
	}
	b.stack[sub] = true
	defer delete(b.stack, sub)

	tn := b.topFul + "." + sub.Kind
	b.nested[sub] = tn
	dp := &descriptorpb.DescriptorProto{Name: proto.String(sub.Kind)}
	for i, name := range sub.DefaultFields().resolve(sub).Names {
		f, _ := sub.lookup(name)
		if f == nil {
			return "", reason(ConfigurationTag, "%q is not an accepted field of %s", name, sub.Kind)
		}
		fp, _, err := b.fieldProto(f, int32(i+1))
		if err != nil {
			return "", err
		}
		dp.Field = append(dp.Field, fp)
	}
	b.top.NestedType = append(b.top.NestedType, dp)
	return tn, nil
}

// defaultString renders the default of scalar fields in descriptor syntax.
// Required and repeated fields have no wire default.
func defaultString(f *Field) (string, bool) {
	if f.Default == nil || f.Required || f.Repeated {
		return "", false
	}
	switch v := f.Default.(type) {
	case string:
		if f.Type == TypeString {
			return v, true
		}
	case int64:
		return strconv.FormatInt(v, 10), true
	case float64:
		return strconv.FormatFloat(v, 'g', -1, 64), true
	case bool:
		return strconv.FormatBool(v), true
	case EnumValue:
		return string(v), true
	case time.Time:
		return v.Format(layoutOf(f)), true
	}
	return "", false
}
