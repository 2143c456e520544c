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
	"bytes"
	"context"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"

	"go.glassware.dev/glassware/common/logging"
	"go.glassware.dev/glassware/common/logging/memlogger"
	"go.glassware.dev/glassware/gae/filter/count"
	"go.glassware.dev/glassware/gae/impl/memory"
	ds "go.glassware.dev/glassware/gae/service/datastore"
	"go.glassware.dev/glassware/server/redisconn"

	. "github.com/smartystreets/goconvey/convey"
)

func TestSerialize(t *testing.T) {
	t.Parallel()

	Convey("Entries keep exact value types", t, func() {
		when := time.Date(2020, 5, 6, 7, 8, 9, 123456789, time.UTC)
		parent := ds.NameKey("User", "u", nil)
		props := []ds.Property{
			{Name: "null", Value: nil},
			{Name: "s", Value: "str"},
			{Name: "i", Value: int64(-7)},
			{Name: "f", Value: 2.5},
			{Name: "b", Value: true},
			{Name: "raw", Value: []byte{1, 2}, NoIndex: true},
			{Name: "t", Value: when},
			{Name: "k", Value: ds.IDKey("Item", 5, parent)},
			{Name: "g", Value: ds.GeoPoint{Lat: 1.5, Lng: -2}},
			{Name: "m", Value: []any{"a", int64(1)}},
			{Name: "e", Value: &ds.Entity{Properties: []ds.Property{{Name: "x", Value: "y"}}}},
		}

		for _, threshold := range []int{1 << 20, 1} {
			blob, err := encodeEntity(props, threshold)
			So(err, ShouldBeNil)
			if threshold == 1 {
				So(CompressionType(blob[0]), ShouldEqual, ZstdCompression)
			} else {
				So(CompressionType(blob[0]), ShouldEqual, NoCompression)
			}

			got, err := decodeEntity(blob)
			So(err, ShouldBeNil)
			So(got, ShouldHaveLength, len(props))
			for i := range props {
				So(got[i].Name, ShouldEqual, props[i].Name)
				So(got[i].NoIndex, ShouldEqual, props[i].NoIndex)
			}
			So(got[6].Value, ShouldEqual, when)
			So(got[7].Value.(*ds.Key).Equal(props[7].Value.(*ds.Key)), ShouldBeTrue)
			So(got[9].Value, ShouldResemble, []any{"a", int64(1)})
			So(got[10].Value.(*ds.Entity).Properties[0].Value, ShouldEqual, "y")
		}
	})

	Convey("Garbage entries are rejected", t, func() {
		_, err := decodeEntity(nil)
		So(err, ShouldNotBeNil)
		_, err = decodeEntity([]byte{9, 1})
		So(err, ShouldNotBeNil)
	})

	Convey("Unsupported values are rejected", t, func() {
		_, err := encodeEntity([]ds.Property{{Name: "x", Value: struct{}{}}}, 10)
		So(err, ShouldNotBeNil)
	})
}

func TestCache(t *testing.T) {
	t.Parallel()

	Convey("With a redis cache over the datastore", t, func() {
		s, err := miniredis.Run()
		So(err, ShouldBeNil)
		defer s.Close()

		c := memlogger.Use(context.Background())
		c = redisconn.UsePool(c, redisconn.NewPool(s.Addr(), 0))
		c, ctr := count.FilterRDS(memory.Use(c))
		c = FilterRDS(c, Options{})

		k := ds.NameKey("Foo", "a", nil)
		_, err = ds.Put(c, k, &ds.PropertyList{{Name: "v", Value: "one"}})
		So(err, ShouldBeNil)

		get := func() string {
			var pl ds.PropertyList
			So(ds.Get(c, k, &pl), ShouldBeNil)
			return pl[0].Value.(string)
		}

		Convey("a second Get is served from redis", func() {
			So(get(), ShouldEqual, "one")
			So(s.Exists(CacheKey(k)), ShouldBeTrue)
			So(get(), ShouldEqual, "one")
			So(ctr.Get.Total(), ShouldEqual, 1)
			So(s.TTL(CacheKey(k)), ShouldEqual, time.Hour)
		})

		Convey("Put evicts", func() {
			So(get(), ShouldEqual, "one")
			_, err := ds.Put(c, k, &ds.PropertyList{{Name: "v", Value: "two"}})
			So(err, ShouldBeNil)
			So(s.Exists(CacheKey(k)), ShouldBeFalse)
			So(get(), ShouldEqual, "two")
		})

		Convey("Delete evicts", func() {
			So(get(), ShouldEqual, "one")
			So(ds.Delete(c, k), ShouldBeNil)
			var pl ds.PropertyList
			So(ds.Get(c, k, &pl), ShouldEqual, ds.ErrNoSuchEntity)
		})

		Convey("misses are not cached", func() {
			var pl ds.PropertyList
			So(ds.Get(c, ds.NameKey("Foo", "missing", nil), &pl), ShouldEqual, ds.ErrNoSuchEntity)
			So(s.Keys(), ShouldBeEmpty)
		})

		Convey("a corrupt entry falls back to the datastore", func() {
			So(s.Set(CacheKey(k), "\x09junk"), ShouldBeNil)
			So(get(), ShouldEqual, "one")
			So(ctr.Get.Total(), ShouldEqual, 1)
			So(memlogger.Get(c).HasFunc(logging.Warning, func(m string) bool {
				return strings.Contains(m, "redis call failed")
			}), ShouldBeTrue)
			blob, err := s.Get(CacheKey(k))
			So(err, ShouldBeNil)
			So(bytes.HasPrefix([]byte(blob), []byte{byte(ItemHasData), byte(NoCompression)}), ShouldBeTrue)
		})

		Convey("a lock held by someone else is left alone", func() {
			So(s.Set(CacheKey(k), string([]byte{byte(ItemHasLock), 1, 2})), ShouldBeNil)
			So(get(), ShouldEqual, "one")
			blob, err := s.Get(CacheKey(k))
			So(err, ShouldBeNil)
			So(blob, ShouldEqual, string([]byte{byte(ItemHasLock), 1, 2}))
		})

		Convey("cached times keep nanoseconds", func() {
			when := time.Date(2021, 1, 2, 3, 4, 5, 6, time.UTC)
			tk := ds.NameKey("Foo", "t", nil)
			_, err := ds.Put(c, tk, &ds.PropertyList{{Name: "when", Value: when}})
			So(err, ShouldBeNil)
			for range 2 {
				var pl ds.PropertyList
				So(ds.Get(c, tk, &pl), ShouldBeNil)
				So(pl[0].Value, ShouldEqual, when)
			}
			So(ctr.Get.Total(), ShouldEqual, 1)
		})

		Convey("an unreachable redis degrades to the datastore", func() {
			s.Close()
			So(get(), ShouldEqual, "one")
			So(get(), ShouldEqual, "one")
			So(ctr.Get.Total(), ShouldEqual, 2)
		})
	})
}

// getHook runs a callback once, right after the datastore answers a Get.
type getHook struct {
	ds.RawInterface
	after *func()
}

func (h getHook) Get(key *ds.Key, dst ds.PropertyLoadSaver) error {
	err := h.RawInterface.Get(key, dst)
	if f := *h.after; f != nil {
		*h.after = nil
		f()
	}
	return err
}

func TestCacheRaces(t *testing.T) {
	t.Parallel()

	Convey("With a Put racing a cache fill", t, func() {
		s, err := miniredis.Run()
		So(err, ShouldBeNil)
		defer s.Close()

		var after func()
		c := memlogger.Use(context.Background())
		c = redisconn.UsePool(c, redisconn.NewPool(s.Addr(), 0))
		c = ds.AddRawFilters(memory.Use(c), func(_ context.Context, rds ds.RawInterface) ds.RawInterface {
			return getHook{rds, &after}
		})
		c = FilterRDS(c, Options{})

		k := ds.NameKey("Foo", "a", nil)
		put := func(v string) {
			_, err := ds.Put(c, k, &ds.PropertyList{{Name: "v", Value: v}})
			So(err, ShouldBeNil)
		}
		get := func() string {
			var pl ds.PropertyList
			So(ds.Get(c, k, &pl), ShouldBeNil)
			return pl[0].Value.(string)
		}
		put("one")

		Convey("the stale read is not cached", func() {
			after = func() {
				So(s.Exists(CacheKey(k)), ShouldBeTrue) // the Get lock
				put("two")
			}
			So(get(), ShouldEqual, "one")
			So(s.Exists(CacheKey(k)), ShouldBeFalse)
			So(get(), ShouldEqual, "two")
			So(get(), ShouldEqual, "two")
		})

		Convey("the fill replaces the Get lock", func() {
			after = func() {
				blob, err := s.Get(CacheKey(k))
				So(err, ShouldBeNil)
				So(blob[0], ShouldEqual, byte(ItemHasLock))
				So(blob, ShouldHaveLength, 1+NonceBytes)
			}
			So(get(), ShouldEqual, "one")
			blob, err := s.Get(CacheKey(k))
			So(err, ShouldBeNil)
			So(blob[0], ShouldEqual, byte(ItemHasData))
		})
	})
}
