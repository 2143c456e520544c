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

// Package endpoints serves protods schemas over HTTP with JSON bodies.
//
// Method and QueryMethod derive the request and response messages of an API
// method from field sets, the way the method is declared:
//
//	h, err := endpoints.Method(model.TimelineItem, endpoints.Options{
//		RequestFields: protods.Fields("id"),
//		UserRequired:  true,
//	}, func(ctx context.Context, e *protods.Entity) (*protods.Entity, error) {
//		if !e.FromDatastore() {
//			return nil, endpoints.NotFound("item not found")
//		}
//		return e, nil
//	})
//
// Message classes are derived when the handler is built, so field set
// mistakes surface at startup.
package endpoints

import (
	"context"
	"encoding/base64"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/julienschmidt/httprouter"
	"google.golang.org/protobuf/encoding/protojson"
	"google.golang.org/protobuf/reflect/protoreflect"
	"google.golang.org/protobuf/types/dynamicpb"

	"go.glassware.dev/glassware/common/errors"
	"go.glassware.dev/glassware/gae/protods"
	"go.glassware.dev/glassware/grpc/grpcutil"
	"go.glassware.dev/glassware/server/router"
)

// MaxBodySize bounds request bodies.
const MaxBodySize = 1 << 20

// Func implements a method on an entity decoded from the request. A nil
// entity with a nil error answers 204 No Content.
type Func func(ctx context.Context, e *protods.Entity) (*protods.Entity, error)

// PrepareFunc runs on the fresh request entity before the request message is
// read into it, e.g. to set the parent used by the id alias.
type PrepareFunc func(ctx context.Context, e *protods.Entity) error

// Options configures Method.
type Options struct {
	// RequestFields and ResponseFields select the message fields. The zero
	// FieldSet means the schema's default fields.
	RequestFields  protods.FieldSet
	ResponseFields protods.FieldSet

	// UserRequired rejects requests without a user with 401.
	UserRequired bool

	Prepare PrepareFunc

	// SuccessStatus is the HTTP status of responses with a body, 200 if 0.
	SuccessStatus int
}

type paramsKey struct{}

// PathParams returns the route parameters of the request being served.
func PathParams(ctx context.Context) httprouter.Params {
	p, _ := ctx.Value(paramsKey{}).(httprouter.Params)
	return p
}

// NotFound returns an error answered with 404.
func NotFound(format string, args ...any) error {
	return errors.Reason(format, args...).Tag(grpcutil.NotFoundTag).Err()
}

// Method returns a handler that decodes the request into an entity of s,
// calls fn and encodes the entity it returns.
func Method(s *protods.Schema, o Options, fn Func) (router.Handler, error) {
	req, err := s.ProtoModel(o.RequestFields)
	if err != nil {
		return nil, errors.Annotate(err, "request message of %s", s.Kind).Err()
	}
	if _, err := s.ProtoModel(o.ResponseFields); err != nil {
		return nil, errors.Annotate(err, "response message of %s", s.Kind).Err()
	}
	status := o.SuccessStatus
	if status == 0 {
		status = http.StatusOK
	}

	return func(c *router.Context) {
		ctx := context.WithValue(c.Request.Context(), paramsKey{}, c.Params)
		out, err := func() (*dynamicpb.Message, error) {
			e, err := decodeEntity(ctx, c, s, req, o.UserRequired, o.Prepare)
			if err != nil {
				return nil, err
			}
			res, err := fn(ctx, e)
			if err != nil || res == nil {
				return nil, err
			}
			return res.ToMessage(ctx, o.ResponseFields)
		}()
		switch {
		case err != nil:
			WriteError(ctx, c.Writer, err)
		case out == nil:
			c.Writer.WriteHeader(http.StatusNoContent)
		default:
			WriteMessage(ctx, c.Writer, status, out)
		}
	}, nil
}

// RawFunc serves a request that does not map onto one entity message, e.g.
// media downloads. It writes the response itself unless it fails.
type RawFunc func(ctx context.Context, c *router.Context) error

// Raw returns a handler calling fn with PathParams available in ctx. Errors
// are answered with WriteError.
func Raw(fn RawFunc) router.Handler {
	return func(c *router.Context) {
		ctx := context.WithValue(c.Request.Context(), paramsKey{}, c.Params)
		if err := fn(ctx, c); err != nil {
			WriteError(ctx, c.Writer, err)
		}
	}
}

// decodeEntity checks the user, reads the request message and fills a new
// entity of s from it.
func decodeEntity(ctx context.Context, c *router.Context, s *protods.Schema, mc *protods.MessageClass, userRequired bool, prepare PrepareFunc) (*protods.Entity, error) {
	if userRequired {
		if _, err := RequireUser(ctx); err != nil {
			return nil, err
		}
	}
	m, err := readMessage(c, mc)
	if err != nil {
		return nil, err
	}
	e := s.NewEntity()
	if prepare != nil {
		if err := prepare(ctx, e); err != nil {
			return nil, err
		}
	}
	if err := e.FillFromMessage(ctx, m); err != nil {
		return nil, err
	}
	return e, nil
}

// readMessage decodes the JSON body, then the URL query parameters, then the
// path parameters into a new message of mc. Later sources win. Parameters
// that name no field are ignored.
func readMessage(c *router.Context, mc *protods.MessageClass) (*dynamicpb.Message, error) {
	m := mc.New()
	if c.Request.Body != nil {
		body, err := io.ReadAll(io.LimitReader(c.Request.Body, MaxBodySize+1))
		if err != nil {
			return nil, errors.Annotate(err, "reading request body").Err()
		}
		if len(body) > MaxBodySize {
			return nil, errors.Reason("request body exceeds %d bytes", MaxBodySize).Tag(grpcutil.InvalidArgumentTag).Err()
		}
		if len(strings.TrimSpace(string(body))) > 0 {
			if err := protojson.Unmarshal(body, m); err != nil {
				return nil, errors.Annotate(err, "bad request body").Tag(grpcutil.InvalidArgumentTag).Err()
			}
		}
	}
	fields := m.Descriptor().Fields()
	for name, vals := range c.Request.URL.Query() {
		if fd := fields.ByName(protoreflect.Name(name)); fd != nil {
			if err := setParam(m, fd, vals); err != nil {
				return nil, err
			}
		}
	}
	for _, p := range c.Params {
		if fd := fields.ByName(protoreflect.Name(p.Key)); fd != nil {
			if err := setParam(m, fd, []string{p.Value}); err != nil {
				return nil, err
			}
		}
	}
	return m, nil
}

// setParam sets fd from its string form. Repeated fields take every value.
func setParam(m protoreflect.Message, fd protoreflect.FieldDescriptor, vals []string) error {
	if len(vals) == 0 {
		return nil
	}
	if !fd.IsList() {
		v, err := parseParam(fd, vals[len(vals)-1])
		if err != nil {
			return err
		}
		m.Set(fd, v)
		return nil
	}
	list := m.NewField(fd).List()
	for _, s := range vals {
		v, err := parseParam(fd, s)
		if err != nil {
			return err
		}
		list.Append(v)
	}
	m.Set(fd, protoreflect.ValueOfList(list))
	return nil
}

func parseParam(fd protoreflect.FieldDescriptor, s string) (protoreflect.Value, error) {
	bad := func(err error) (protoreflect.Value, error) {
		return protoreflect.Value{}, errors.Annotate(err, "bad value %q for %s", s, fd.Name()).Tag(grpcutil.InvalidArgumentTag).Err()
	}
	switch fd.Kind() {
	case protoreflect.StringKind:
		return protoreflect.ValueOfString(s), nil
	case protoreflect.BoolKind:
		b, err := strconv.ParseBool(s)
		if err != nil {
			return bad(err)
		}
		return protoreflect.ValueOfBool(b), nil
	case protoreflect.Int32Kind, protoreflect.Sint32Kind, protoreflect.Sfixed32Kind:
		i, err := strconv.ParseInt(s, 10, 32)
		if err != nil {
			return bad(err)
		}
		return protoreflect.ValueOfInt32(int32(i)), nil
	case protoreflect.Int64Kind, protoreflect.Sint64Kind, protoreflect.Sfixed64Kind:
		i, err := strconv.ParseInt(s, 10, 64)
		if err != nil {
			return bad(err)
		}
		return protoreflect.ValueOfInt64(i), nil
	case protoreflect.Uint32Kind, protoreflect.Fixed32Kind:
		u, err := strconv.ParseUint(s, 10, 32)
		if err != nil {
			return bad(err)
		}
		return protoreflect.ValueOfUint32(uint32(u)), nil
	case protoreflect.Uint64Kind, protoreflect.Fixed64Kind:
		u, err := strconv.ParseUint(s, 10, 64)
		if err != nil {
			return bad(err)
		}
		return protoreflect.ValueOfUint64(u), nil
	case protoreflect.FloatKind:
		f, err := strconv.ParseFloat(s, 32)
		if err != nil {
			return bad(err)
		}
		return protoreflect.ValueOfFloat32(float32(f)), nil
	case protoreflect.DoubleKind:
		f, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return bad(err)
		}
		return protoreflect.ValueOfFloat64(f), nil
	case protoreflect.BytesKind:
		b, err := base64.StdEncoding.DecodeString(s)
		if err != nil {
			if b, err = base64.URLEncoding.DecodeString(s); err != nil {
				return bad(err)
			}
		}
		return protoreflect.ValueOfBytes(b), nil
	case protoreflect.EnumKind:
		if ev := fd.Enum().Values().ByName(protoreflect.Name(s)); ev != nil {
			return protoreflect.ValueOfEnum(ev.Number()), nil
		}
		n, err := strconv.ParseInt(s, 10, 32)
		if err != nil {
			return bad(errors.Reason("not a value of %s", fd.Enum().FullName()).Err())
		}
		return protoreflect.ValueOfEnum(protoreflect.EnumNumber(n)), nil
	}
	return bad(errors.Reason("%s fields cannot be set from parameters", fd.Kind()).Err())
}
