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

package featureBreaker

import (
	"context"
	"errors"
	"testing"

	"go.glassware.dev/glassware/gae/impl/memory"
	ds "go.glassware.dev/glassware/gae/service/datastore"

	. "github.com/smartystreets/goconvey/convey"
)

func TestBrokenFeatures(t *testing.T) {
	t.Parallel()

	Convey("A broken datastore", t, func() {
		c, bf := FilterRDS(memory.Use(context.Background()), nil)
		k := ds.NameKey("Foo", "a", nil)
		pl := &ds.PropertyList{{Name: "v", Value: "x"}}

		Convey("works until broken", func() {
			_, err := ds.Put(c, k, pl)
			So(err, ShouldBeNil)

			bf.BreakFeatures(nil, "Get")
			So(ds.Get(c, k, &ds.PropertyList{}), ShouldEqual, ErrFeatureBroken)
			_, err = ds.Put(c, k, pl)
			So(err, ShouldBeNil)

			bf.UnbreakFeatures("Get")
			So(ds.Get(c, k, &ds.PropertyList{}), ShouldBeNil)
		})

		Convey("returns custom errors", func() {
			boom := errors.New("boom")
			bf.BreakFeatures(boom, "Put", "Run")
			_, err := ds.Put(c, k, pl)
			So(err, ShouldEqual, boom)

			fq, _ := ds.NewQuery("Foo").Finalize()
			_, err = ds.Run(c, fq, 1, "", func() ds.PropertyLoadSaver { return &ds.PropertyList{} })
			So(err, ShouldEqual, boom)
		})
	})
}
