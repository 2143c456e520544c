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
	. "go.glassware.dev/glassware/common/testing/assertions"
)

type fakeRDS struct{ RawInterface }

func TestCheckFilter(t *testing.T) {
	t.Parallel()

	Convey("Test checkFilter", t, func() {
		// Any call which isn't stopped at the checkFilter will nil-pointer panic
		// in fakeRDS. We use this panic to tell that the checkFilter has allowed
		// a call to pass through to the implementation.
		c := SetRaw(context.Background(), fakeRDS{})
		rds := Raw(c)
		So(rds, ShouldNotBeNil)

		var pl PropertyList

		Convey("Get", func() {
			So(rds.Get(nil, &pl), ShouldEqual, ErrInvalidKey)
			So(rds.Get(IncompleteKey("K", nil), &pl), ShouldEqual, ErrInvalidKey)
			So(rds.Get(NameKey("K", "a", nil), nil), ShouldErrLike, "destination is nil")
			So(func() { rds.Get(NameKey("K", "a", nil), &pl) }, ShouldPanic)
		})

		Convey("Put", func() {
			_, err := rds.Put(nil, &pl)
			So(err, ShouldEqual, ErrInvalidKey)
			_, err = rds.Put(IncompleteKey("K", IncompleteKey("P", nil)), &pl)
			So(err, ShouldEqual, ErrInvalidKey)
			_, err = rds.Put(NameKey("K", "a", nil), nil)
			So(err, ShouldErrLike, "source is nil")
			So(func() { rds.Put(IncompleteKey("K", nil), &pl) }, ShouldPanic)
		})

		Convey("Delete", func() {
			So(rds.Delete(IDKey("", 1, nil)), ShouldEqual, ErrInvalidKey)
			So(func() { rds.Delete(IDKey("K", 1, nil)) }, ShouldPanic)
		})

		Convey("Run", func() {
			newDst := func() PropertyLoadSaver { return &PropertyList{} }
			_, err := rds.Run(nil, 1, "", newDst)
			So(err, ShouldErrLike, "query is nil")

			fq, err := NewQuery("sup").Finalize()
			So(err, ShouldBeNil)
			_, err = rds.Run(fq, 1, "", nil)
			So(err, ShouldErrLike, "factory is nil")
			_, err = rds.Run(fq, 0, "", newDst)
			So(err, ShouldErrLike, "limit must be positive")
			So(func() { rds.Run(fq, 1, "", newDst) }, ShouldPanic)
		})
	})
}
