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
	"testing"
	"time"

	"google.golang.org/grpc/codes"

	"go.glassware.dev/glassware/common/clock/testclock"
	"go.glassware.dev/glassware/common/errors"
	"go.glassware.dev/glassware/gae/impl/memory"
	ds "go.glassware.dev/glassware/gae/service/datastore"

	. "github.com/smartystreets/goconvey/convey"
	. "go.glassware.dev/glassware/common/testing/assertions"
)

func TestStore(t *testing.T) {
	t.Parallel()

	Convey("With a store", t, func() {
		c, tc := testclock.UseTime(memory.Use(context.Background()), testclock.TestTimeUTC)
		r := NewRegistry()
		s := register(c, r, NewSchema("Doc",
			String("title", Required()),
			Integer("rank", Default(3)),
			String("tags", Repeated()),
			Text("body"),
			DateTime("created", AutoNowAdd()),
			DateTime("updated", AutoNow()),
		))

		Convey("Put allocates keys and stamps times", func() {
			e := s.NewEntity().MustSet("title", "a")
			So(Put(c, e), ShouldBeNil)
			So(e.Key(), ShouldNotBeNil)
			So(e.Key().Incomplete(), ShouldBeFalse)
			So(e.Get("created"), ShouldResemble, testclock.TestTimeUTC)
			So(e.Get("updated"), ShouldResemble, testclock.TestTimeUTC)

			tc.Add(time.Hour)
			So(Put(c, e), ShouldBeNil)
			So(e.Get("created"), ShouldResemble, testclock.TestTimeUTC)
			So(e.Get("updated"), ShouldResemble, testclock.TestTimeUTC.Add(time.Hour))

			Convey("and Get loads them back with defaults", func() {
				got, err := Get(c, s, e.Key())
				So(err, ShouldBeNil)
				So(got.FromDatastore(), ShouldBeTrue)
				So(got.Key(), ShouldResemble, e.Key())
				So(got.Get("title"), ShouldEqual, "a")
				So(got.Get("rank"), ShouldEqual, int64(3))
				So(got.IsSet("tags"), ShouldBeFalse)
				So(got.Get("updated"), ShouldResemble, testclock.TestTimeUTC.Add(time.Hour))
			})

			Convey("and Delete removes it", func() {
				So(Delete(c, e), ShouldBeNil)
				_, err := Get(c, s, e.Key())
				So(errors.Is(err, ds.ErrNoSuchEntity), ShouldBeTrue)
				So(err, ShouldHaveCode, codes.NotFound)
			})
		})

		Convey("Put places new entities under their parent", func() {
			parent := ds.NameKey("User", "ada", nil)
			e := s.NewEntity().MustSet("title", "a")
			e.SetParent(parent)
			So(Put(c, e), ShouldBeNil)
			So(e.Key().Parent, ShouldResemble, parent)
		})

		Convey("Put refuses entities missing required fields", func() {
			err := Put(c, s.NewEntity())
			So(err, ShouldErrLike, `Doc: required field "title" is missing`)
			So(err, ShouldHaveCode, codes.InvalidArgument)
		})

		Convey("Get checks the key kind", func() {
			_, err := Get(c, s, ds.IDKey("Other", 1, nil))
			So(err, ShouldHaveTag, RequestValidationTag)
		})

		Convey("Delete needs a key", func() {
			So(Delete(c, s.NewEntity()), ShouldHaveTag, RequestValidationTag)
		})

		Convey("Save marks unindexed fields", func() {
			props, err := s.NewEntity().MustSet("title", "a").MustSet("body", "long").Save()
			So(err, ShouldBeNil)
			noIndex := map[string]bool{}
			for _, p := range props {
				noIndex[p.Name] = p.NoIndex
			}
			So(noIndex, ShouldResemble, map[string]bool{"title": false, "rank": false, "body": true})
		})

		Convey("UpdateFromKey tolerates missing entities", func() {
			e := s.NewEntity()
			So(e.UpdateFromKey(c, ds.IDKey("Doc", 99, nil)), ShouldBeNil)
			So(e.FromDatastore(), ShouldBeFalse)
			So(e.Key().ID, ShouldEqual, 99)
		})

		Convey("Fetch", func() {
			parent := ds.NameKey("User", "ada", nil)
			for i := 0; i < 25; i++ {
				e := s.NewEntity().MustSet("title", fmt.Sprintf("t%02d", i)).MustSet("rank", i%2)
				e.SetParent(parent)
				So(Put(c, e), ShouldBeNil)
			}
			So(Put(c, s.NewEntity().MustSet("title", "orphan").MustSet("rank", 0)), ShouldBeNil)

			query := func(prep func(*Entity)) *QueryInfo {
				e := s.NewEntity()
				prep(e)
				return e.QueryInfo()
			}

			Convey("pages through results", func() {
				var titles []string
				cursor := ds.Cursor("")
				pages := 0
				for {
					qi := query(func(e *Entity) {
						So(e.QueryInfo().SetAncestor(parent), ShouldBeNil)
						So(e.QueryInfo().SetOrder("title"), ShouldBeNil)
						if cursor != "" {
							So(e.QueryInfo().SetCursor(cursor), ShouldBeNil)
						}
					})
					items, next, err := FetchPage(c, qi, DefaultLimit, MaxLimit)
					So(err, ShouldBeNil)
					pages++
					for _, it := range items {
						So(it.FromDatastore(), ShouldBeTrue)
						So(it.Key().Parent, ShouldResemble, parent)
						titles = append(titles, it.Get("title").(string))
					}
					if next == "" {
						break
					}
					cursor = next
				}
				So(pages, ShouldEqual, 3)
				So(titles, ShouldHaveLength, 25)
				So(titles[0], ShouldEqual, "t00")
				So(titles[24], ShouldEqual, "t24")
			})

			Convey("filters on set fields", func() {
				qi := query(func(e *Entity) {
					e.MustSet("rank", 1)
					So(e.QueryInfo().SetLimit(100), ShouldBeNil)
				})
				items, next, err := FetchPage(c, qi, DefaultLimit, MaxLimit)
				So(err, ShouldBeNil)
				So(next, ShouldEqual, ds.Cursor(""))
				So(items, ShouldHaveLength, 12)
			})

			Convey("orders descending", func() {
				qi := query(func(e *Entity) {
					So(e.QueryInfo().SetOrder("-title"), ShouldBeNil)
					So(e.QueryInfo().SetLimit(2), ShouldBeNil)
				})
				items, next, err := FetchPage(c, qi, DefaultLimit, MaxLimit)
				So(err, ShouldBeNil)
				So(next, ShouldNotEqual, ds.Cursor(""))
				So(items[0].Get("title"), ShouldEqual, "t24")
				So(items[1].Get("title"), ShouldEqual, "t23")
			})

			Convey("refuses big pages", func() {
				qi := query(func(e *Entity) {
					So(e.QueryInfo().SetLimit(500), ShouldBeNil)
				})
				_, _, err := FetchPage(c, qi, DefaultLimit, MaxLimit)
				So(err, ShouldHaveCode, codes.PermissionDenied, "500 results requested")
			})

			Convey("refuses empty pages", func() {
				qi := query(func(*Entity) {})
				So(qi.SetQuery(), ShouldBeNil)
				for _, limit := range []int{0, -1} {
					_, _, err := Fetch(c, qi, limit)
					So(err, ShouldHaveTag, RequestValidationTag)
					So(err, ShouldHaveCode, codes.InvalidArgument, "limit must be positive")
				}
			})

			Convey("needs a final query", func() {
				_, _, err := Fetch(c, s.NewEntity().QueryInfo(), 10)
				So(err, ShouldHaveTag, StateTag)
			})
		})
	})
}
