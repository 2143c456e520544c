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

package memory

import (
	"context"
	"testing"
	"time"

	ds "go.glassware.dev/glassware/gae/service/datastore"

	. "github.com/smartystreets/goconvey/convey"
	. "go.glassware.dev/glassware/common/testing/assertions"
)

func props(kv ...any) *ds.PropertyList {
	pl := ds.PropertyList{}
	for i := 0; i < len(kv); i += 2 {
		pl = append(pl, ds.Property{Name: kv[i].(string), Value: kv[i+1]})
	}
	return &pl
}

func valueOf(pl ds.PropertyList, name string) any {
	for _, p := range pl {
		if p.Name == name {
			return p.Value
		}
	}
	return nil
}

// keyedList is a PropertyList that remembers its key.
type keyedList struct {
	ds.PropertyList
	key *ds.Key
}

func (k *keyedList) LoadKey(key *ds.Key) error {
	k.key = key
	return nil
}

func runAll(c context.Context, q *ds.Query, limit int) (keys []*ds.Key, pages int) {
	fq, err := q.Finalize()
	So(err, ShouldBeNil)
	var cur ds.Cursor
	for {
		pages++
		var got []*keyedList
		cur, err = ds.Run(c, fq, limit, cur, func() ds.PropertyLoadSaver {
			kl := &keyedList{}
			got = append(got, kl)
			return kl
		})
		So(err, ShouldBeNil)
		for _, kl := range got {
			keys = append(keys, kl.key)
		}
		if cur == "" {
			return
		}
	}
}

func TestDatastore(t *testing.T) {
	t.Parallel()

	Convey("In-memory datastore", t, func() {
		c := Use(context.Background())

		Convey("Put allocates IDs for incomplete keys", func() {
			k1, err := ds.Put(c, ds.IncompleteKey("Foo", nil), props("a", int64(1)))
			So(err, ShouldBeNil)
			k2, err := ds.Put(c, ds.IncompleteKey("Foo", nil), props("a", int64(2)))
			So(err, ShouldBeNil)
			So(k1.Incomplete(), ShouldBeFalse)
			So(k2.ID, ShouldBeGreaterThan, k1.ID)

			Convey("and Get reads them back", func() {
				var pl ds.PropertyList
				So(ds.Get(c, k2, &pl), ShouldBeNil)
				So(valueOf(pl, "a"), ShouldEqual, int64(2))
			})

			Convey("and Delete removes them", func() {
				So(ds.Delete(c, k1), ShouldBeNil)
				var pl ds.PropertyList
				So(ds.Get(c, k1, &pl), ShouldEqual, ds.ErrNoSuchEntity)
				So(ds.Delete(c, k1), ShouldBeNil)
			})
		})

		Convey("Get passes the key to KeyLoaders", func() {
			k := ds.NameKey("Foo", "x", ds.NameKey("User", "u", nil))
			_, err := ds.Put(c, k, props("a", "b"))
			So(err, ShouldBeNil)
			kl := &keyedList{}
			So(ds.Get(c, k, kl), ShouldBeNil)
			So(kl.key.Equal(k), ShouldBeTrue)
		})

		Convey("stored values are isolated from callers", func() {
			k := ds.NameKey("Foo", "x", nil)
			src := props("tags", []any{"a", "b"})
			_, err := ds.Put(c, k, src)
			So(err, ShouldBeNil)
			(*src)[0].Value.([]any)[0] = "mutated"

			var pl ds.PropertyList
			So(ds.Get(c, k, &pl), ShouldBeNil)
			So(valueOf(pl, "tags"), ShouldResemble, []any{"a", "b"})
		})

		Convey("Queries", func() {
			user := ds.NameKey("User", "u", nil)
			other := ds.NameKey("User", "o", nil)
			now := time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC)
			put := func(parent *ds.Key, name string, kv ...any) *ds.Key {
				k, err := ds.Put(c, ds.NameKey("Item", name, parent), props(kv...))
				So(err, ShouldBeNil)
				return k
			}
			a := put(user, "a", "tags", []any{"x", "y"}, "n", int64(3), "when", now)
			b := put(user, "b", "tags", []any{"y"}, "n", int64(1), "when", now.Add(time.Hour))
			cc := put(user, "c", "tags", []any{"x"}, "n", int64(2))
			d := put(other, "d", "tags", []any{"x", "y"}, "n", int64(0), "when", now)

			Convey("by kind return everything in key order", func() {
				keys, _ := runAll(c, ds.NewQuery("Item"), 10)
				So(keys, ShouldHaveLength, 4)
				So(keys[0].Equal(d), ShouldBeTrue) // User,"o" sorts before User,"u"
			})

			Convey("by ancestor", func() {
				keys, _ := runAll(c, ds.NewQuery("Item").Ancestor(other), 10)
				So(keys, ShouldHaveLength, 1)
				So(keys[0].Equal(d), ShouldBeTrue)
			})

			Convey("with conjunctive equality on a multi-valued property", func() {
				keys, _ := runAll(c, ds.NewQuery("Item").Ancestor(user).Eq("tags", "x", "y"), 10)
				So(keys, ShouldHaveLength, 1)
				So(keys[0].Equal(a), ShouldBeTrue)
			})

			Convey("ordered by a property, dropping entities without it", func() {
				keys, _ := runAll(c, ds.NewQuery("Item").Ancestor(user).Order("-when"), 10)
				So(keys, ShouldHaveLength, 2)
				So(keys[0].Equal(b), ShouldBeTrue)
				So(keys[1].Equal(a), ShouldBeTrue)
			})

			Convey("paged with cursors", func() {
				keys, pages := runAll(c, ds.NewQuery("Item").Ancestor(user).Order("n"), 2)
				So(pages, ShouldEqual, 2)
				So(keys, ShouldHaveLength, 3)
				So(keys[0].Equal(b), ShouldBeTrue)
				So(keys[1].Equal(cc), ShouldBeTrue)
				So(keys[2].Equal(a), ShouldBeTrue)
			})

			Convey("an exact final page returns no cursor", func() {
				_, pages := runAll(c, ds.NewQuery("Item").Ancestor(user), 3)
				So(pages, ShouldEqual, 1)
			})

			Convey("unindexed properties are not queryable", func() {
				_, err := ds.Put(c, ds.NameKey("Item", "e", user), &ds.PropertyList{
					{Name: "n", Value: int64(3), NoIndex: true},
				})
				So(err, ShouldBeNil)
				keys, _ := runAll(c, ds.NewQuery("Item").Eq("n", 3), 10)
				So(keys, ShouldHaveLength, 1)
			})

			Convey("cursors are pinned to their query", func() {
				fq1, _ := ds.NewQuery("Item").Finalize()
				fq2, _ := ds.NewQuery("Item").Eq("n", 1).Finalize()
				newDst := func() ds.PropertyLoadSaver { return &ds.PropertyList{} }
				cur, err := ds.Run(c, fq1, 1, "", newDst)
				So(err, ShouldBeNil)
				So(cur, ShouldNotEqual, "")
				_, err = ds.Run(c, fq2, 1, cur, newDst)
				So(err, ShouldErrLike, "cursor does not belong")
				_, err = ds.Run(c, fq1, 1, "!!!", newDst)
				So(err, ShouldErrLike, "decode cursor")
			})
		})
	})
}

func TestCompareValues(t *testing.T) {
	t.Parallel()

	Convey("compareValues follows the cross-type order", t, func() {
		ordered := []any{
			nil, int64(-1), int64(5), time.Unix(0, 0).UTC(), false, true,
			"a", "b", 1.5, ds.GeoPoint{Lat: 1, Lng: 2}, ds.NameKey("K", "a", nil),
		}
		for i := range ordered {
			for j := range ordered {
				want := 0
				if i < j {
					want = -1
				} else if i > j {
					want = 1
				}
				So(compareValues(ordered[i], ordered[j]), ShouldEqual, want)
			}
		}
	})
}

func TestIndexes(t *testing.T) {
	t.Parallel()

	Convey("Indexes", t, func() {
		data := NewData()
		c := UseData(context.Background(), data)
		user := ds.NameKey("User", "u", nil)
		put := func(name string, n int64) *ds.Key {
			k, err := ds.Put(c, ds.NameKey("Item", name, user), props("n", n))
			So(err, ShouldBeNil)
			return k
		}
		names := func(keys []*ds.Key) []string {
			ret := make([]string, len(keys))
			for i, k := range keys {
				ret[i] = k.Name
			}
			return ret
		}
		byN := ds.NewQuery("Item").Ancestor(user).Order("-n")

		put("a", 1)
		put("b", 2)
		keys, _ := runAll(c, byN, 10)
		So(names(keys), ShouldResemble, []string{"b", "a"})

		Convey("follow later writes", func() {
			put("c", 3)
			put("a", 4)
			keys, _ := runAll(c, byN, 10)
			So(names(keys), ShouldResemble, []string{"a", "c", "b"})

			So(ds.Delete(c, ds.NameKey("Item", "c", user)), ShouldBeNil)
			keys, _ = runAll(c, byN, 10)
			So(names(keys), ShouldResemble, []string{"a", "b"})
			So(data.Len(), ShouldEqual, 2)
		})

		Convey("resume cursors after the last returned row", func() {
			fq, err := byN.Finalize()
			So(err, ShouldBeNil)
			var got []*keyedList
			newDst := func() ds.PropertyLoadSaver {
				kl := &keyedList{}
				got = append(got, kl)
				return kl
			}
			cur, err := ds.Run(c, fq, 1, "", newDst)
			So(err, ShouldBeNil)
			So(got[0].key.Name, ShouldEqual, "b")

			// A row inserted before the cursor position is not returned.
			put("z", 5)
			_, err = ds.Run(c, fq, 10, cur, newDst)
			So(err, ShouldBeNil)
			So(got, ShouldHaveLength, 2)
			So(got[1].key.Name, ShouldEqual, "a")
		})

		Convey("keep namespaces apart", func() {
			k := ds.NameKey("Item", "a", nil)
			k.Namespace = "other"
			_, err := ds.Put(c, k, props("n", int64(9)))
			So(err, ShouldBeNil)
			So(data.Len(), ShouldEqual, 3)

			var pl ds.PropertyList
			So(ds.Get(c, ds.NameKey("Item", "a", user), &pl), ShouldBeNil)
			So(valueOf(pl, "n"), ShouldEqual, int64(1))
		})
	})
}
