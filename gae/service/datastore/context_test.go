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

package datastore

import (
	"context"
	"testing"

	. "github.com/smartystreets/goconvey/convey"
)

type fakeService struct{ RawInterface }

type fakeFilt struct {
	RawInterface
	name string
}

func (f fakeFilt) Delete(key *Key) error {
	return f.RawInterface.Delete(NameKey(f.name, key.Name, nil))
}

type recordingDS struct {
	RawInterface
	deleted []*Key
}

func (r *recordingDS) Delete(key *Key) error {
	r.deleted = append(r.deleted, key)
	return nil
}

func TestServices(t *testing.T) {
	t.Parallel()

	Convey("Test service interfaces", t, func() {
		c := context.Background()
		Convey("without adding anything", func() {
			So(Raw(c), ShouldBeNil)
			So(func() { Delete(c, NameKey("K", "a", nil)) }, ShouldPanic)
		})

		Convey("adding a basic implementation", func() {
			c = SetRaw(c, fakeService{})

			Convey("lets you pull them back out", func() {
				So(Raw(c), ShouldResemble, &checkFilter{fakeService{}})
			})
		})

		Convey("filters wrap in installation order", func() {
			rec := &recordingDS{}
			c = SetRaw(c, rec)
			c = AddRawFilters(c, func(ic context.Context, rds RawInterface) RawInterface {
				return fakeFilt{rds, "inner"}
			}, func(ic context.Context, rds RawInterface) RawInterface {
				return fakeFilt{rds, "outer"}
			})

			So(Delete(c, NameKey("Kind", "a", nil)), ShouldBeNil)
			So(rec.deleted, ShouldHaveLength, 1)
			So(rec.deleted[0].Kind, ShouldEqual, "inner")
		})

		Convey("adding zero filters does nothing", func() {
			So(AddRawFilters(c), ShouldEqual, c)
		})
	})
}
