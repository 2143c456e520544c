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

package rediscache

import (
	"time"

	"github.com/klauspost/compress/zstd"
	"github.com/vmihailenco/msgpack/v5"

	"go.glassware.dev/glassware/common/errors"
	ds "go.glassware.dev/glassware/gae/service/datastore"
)

// CompressionType is the first byte of every cache entry.
type CompressionType byte

// Types of compression. ZstdCompression uses klauspost/compress/zstd.
const (
	NoCompression CompressionType = iota
	ZstdCompression
)

// Globally shared zstd encoder and decoder. We use only their EncodeAll and
// DecodeAll methods which are allowed to be used concurrently.
var (
	zstdEncoder *zstd.Encoder
	zstdDecoder *zstd.Decoder
)

func init() {
	var err error
	if zstdEncoder, err = zstd.NewWriter(nil); err != nil {
		panic(err) // this is impossible
	}
	if zstdDecoder, err = zstd.NewReader(nil); err != nil {
		panic(err) // this is impossible
	}
}

// value types of cachedValue.T
const (
	tNull byte = iota
	tString
	tInt
	tFloat
	tBool
	tBytes
	tTime
	tKey
	tGeo
	tMulti
	tEntity
)

type cachedProp struct {
	Name    string      `msgpack:"n"`
	NoIndex bool        `msgpack:"x,omitempty"`
	Value   cachedValue `msgpack:"v"`
}

// cachedValue is a tagged union of every property value type, so values
// survive the round trip with their exact Go types.
type cachedValue struct {
	T     byte          `msgpack:"t"`
	S     string        `msgpack:"s,omitempty"`
	I     int64         `msgpack:"i,omitempty"`
	N     int64         `msgpack:"ns,omitempty"`
	F     float64       `msgpack:"f,omitempty"`
	B     bool          `msgpack:"b,omitempty"`
	Raw   []byte        `msgpack:"r,omitempty"`
	Lat   float64       `msgpack:"lat,omitempty"`
	Lng   float64       `msgpack:"lng,omitempty"`
	Multi []cachedValue `msgpack:"m,omitempty"`
	Props []cachedProp  `msgpack:"p,omitempty"`
}

func toCachedProps(props []ds.Property) ([]cachedProp, error) {
	ret := make([]cachedProp, len(props))
	for i, p := range props {
		v, err := toCachedValue(p.Value)
		if err != nil {
			return nil, errors.Annotate(err, "property %q", p.Name).Err()
		}
		ret[i] = cachedProp{Name: p.Name, NoIndex: p.NoIndex, Value: v}
	}
	return ret, nil
}

func toCachedValue(v any) (cachedValue, error) {
	switch x := v.(type) {
	case nil:
		return cachedValue{T: tNull}, nil
	case string:
		return cachedValue{T: tString, S: x}, nil
	case int64:
		return cachedValue{T: tInt, I: x}, nil
	case float64:
		return cachedValue{T: tFloat, F: x}, nil
	case bool:
		return cachedValue{T: tBool, B: x}, nil
	case []byte:
		return cachedValue{T: tBytes, Raw: x}, nil
	case time.Time:
		return cachedValue{T: tTime, I: x.Unix(), N: int64(x.Nanosecond())}, nil
	case *ds.Key:
		if x == nil {
			return cachedValue{T: tNull}, nil
		}
		return cachedValue{T: tKey, S: x.Encode()}, nil
	case ds.GeoPoint:
		return cachedValue{T: tGeo, Lat: x.Lat, Lng: x.Lng}, nil
	case []any:
		ret := cachedValue{T: tMulti, Multi: make([]cachedValue, len(x))}
		for i, e := range x {
			cv, err := toCachedValue(e)
			if err != nil {
				return cachedValue{}, err
			}
			ret.Multi[i] = cv
		}
		return ret, nil
	case *ds.Entity:
		if x == nil {
			return cachedValue{T: tNull}, nil
		}
		props, err := toCachedProps(x.Properties)
		if err != nil {
			return cachedValue{}, err
		}
		ret := cachedValue{T: tEntity, Props: props}
		if x.Key != nil {
			ret.S = x.Key.Encode()
		}
		return ret, nil
	default:
		return cachedValue{}, errors.Reason("uncacheable value type %T", v).Err()
	}
}

func fromCachedProps(props []cachedProp) ([]ds.Property, error) {
	ret := make([]ds.Property, len(props))
	for i, p := range props {
		v, err := fromCachedValue(p.Value)
		if err != nil {
			return nil, errors.Annotate(err, "property %q", p.Name).Err()
		}
		ret[i] = ds.Property{Name: p.Name, NoIndex: p.NoIndex, Value: v}
	}
	return ret, nil
}

func fromCachedValue(cv cachedValue) (any, error) {
	switch cv.T {
	case tNull:
		return nil, nil
	case tString:
		return cv.S, nil
	case tInt:
		return cv.I, nil
	case tFloat:
		return cv.F, nil
	case tBool:
		return cv.B, nil
	case tBytes:
		if cv.Raw == nil {
			return []byte{}, nil
		}
		return cv.Raw, nil
	case tTime:
		return time.Unix(cv.I, cv.N).UTC(), nil
	case tKey:
		return ds.DecodeKey(cv.S)
	case tGeo:
		return ds.GeoPoint{Lat: cv.Lat, Lng: cv.Lng}, nil
	case tMulti:
		ret := make([]any, len(cv.Multi))
		for i, e := range cv.Multi {
			v, err := fromCachedValue(e)
			if err != nil {
				return nil, err
			}
			ret[i] = v
		}
		return ret, nil
	case tEntity:
		props, err := fromCachedProps(cv.Props)
		if err != nil {
			return nil, err
		}
		ent := &ds.Entity{Properties: props}
		if cv.S != "" {
			if ent.Key, err = ds.DecodeKey(cv.S); err != nil {
				return nil, err
			}
		}
		return ent, nil
	default:
		return nil, errors.Reason("unknown cached value type %d", cv.T).Err()
	}
}

// encodeEntity serializes props, compressing with zstd past threshold bytes.
func encodeEntity(props []ds.Property, threshold int) ([]byte, error) {
	cps, err := toCachedProps(props)
	if err != nil {
		return nil, err
	}
	data, err := msgpack.Marshal(cps)
	if err != nil {
		return nil, errors.Annotate(err, "msgpack").Err()
	}
	if len(data) <= threshold {
		return append([]byte{byte(NoCompression)}, data...), nil
	}
	return zstdEncoder.EncodeAll(data, []byte{byte(ZstdCompression)}), nil
}

func decodeEntity(blob []byte) ([]ds.Property, error) {
	if len(blob) == 0 {
		return nil, errors.Reason("empty cache entry").Err()
	}
	data := blob[1:]
	switch CompressionType(blob[0]) {
	case NoCompression:
	case ZstdCompression:
		var err error
		if data, err = zstdDecoder.DecodeAll(data, nil); err != nil {
			return nil, errors.Annotate(err, "zstd").Err()
		}
	default:
		return nil, errors.Reason("unknown compression type %d", blob[0]).Err()
	}
	var cps []cachedProp
	if err := msgpack.Unmarshal(data, &cps); err != nil {
		return nil, errors.Annotate(err, "msgpack").Err()
	}
	return fromCachedProps(cps)
}
