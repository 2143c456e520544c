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

package cloud

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"os"
	"testing"

	ds "go.glassware.dev/glassware/gae/service/datastore"

	. "github.com/smartystreets/goconvey/convey"
	. "go.glassware.dev/glassware/common/testing/assertions"
)

func TestPrepareNativeQuery(t *testing.T) {
	t.Parallel()

	Convey("prepareNativeQuery", t, func() {
		bds := &boundDatastore{context.Background(), Config{Namespace: "ns"}}
		fq, err := ds.NewQuery("Foo").Eq("a", 1).Order("-b").Finalize()
		So(err, ShouldBeNil)

		Convey("accepts the empty cursor", func() {
			q, err := bds.prepareNativeQuery(fq, 10, "")
			So(err, ShouldBeNil)
			So(q, ShouldNotBeNil)
		})

		Convey("rejects malformed cursors", func() {
			_, err := bds.prepareNativeQuery(fq, 10, "not a cursor!")
			So(err, ShouldErrLike, "decoding cursor")
		})
	})
}

// Export the DATASTORE_EMULATOR_HOST environment variable, which the above
// client picks up, to run this suite against a local emulator:
//
//	gcloud beta emulators datastore start --no-store-on-disk
func TestDatastore(t *testing.T) {
	t.Parallel()

	emulatorHost := os.Getenv("DATASTORE_EMULATOR_HOST")
	if emulatorHost == "" {
		t.Skip("No emulator detected (DATASTORE_EMULATOR_HOST). Skipping test suite.")
	}

	Convey(fmt.Sprintf(`A cloud installation using datastore emulator %q`, emulatorHost), t, func() {
		c := context.Background()
		client, err := NewClient(c, "glassware-test")
		So(err, ShouldBeNil)
		defer client.Close()

		nsBytes := make([]byte, 8)
		_, err = rand.Read(nsBytes)
		So(err, ShouldBeNil)
		ns := "testing-" + hex.EncodeToString(nsBytes)
		c = Config{Client: client, Namespace: ns}.Use(c)

		mkKey := func(name string) *ds.Key {
			k := ds.NameKey("Item", name, nil)
			k.Namespace = ns
			return k
		}

		Convey(`Can get, put, and delete entities`, func() {
			k, err := ds.Put(c, mkKey("a"), &ds.PropertyList{{Name: "v", Value: "x"}})
			So(err, ShouldBeNil)
			var pl ds.PropertyList
			So(ds.Get(c, k, &pl), ShouldBeNil)
			So(pl[0].Value, ShouldEqual, "x")
			So(ds.Delete(c, k), ShouldBeNil)
			So(ds.Get(c, k, &pl), ShouldEqual, ds.ErrNoSuchEntity)
		})

		Convey(`Can page through a query`, func() {
			for _, name := range []string{"a", "b", "c"} {
				_, err := ds.Put(c, mkKey(name), &ds.PropertyList{{Name: "tag", Value: "t"}})
				So(err, ShouldBeNil)
			}
			fq, err := ds.NewQuery("Item").Eq("tag", "t").Finalize()
			So(err, ShouldBeNil)

			count := 0
			newDst := func() ds.PropertyLoadSaver {
				count++
				return &ds.PropertyList{}
			}
			cur, err := ds.Run(c, fq, 2, "", newDst)
			So(err, ShouldBeNil)
			So(cur, ShouldNotEqual, "")
			cur, err = ds.Run(c, fq, 2, cur, newDst)
			So(err, ShouldBeNil)
			So(cur, ShouldEqual, ds.Cursor(""))
			So(count, ShouldEqual, 3)
		})
	})
}
