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

package errors

import (
	"fmt"
	"io"
	"testing"

	. "github.com/smartystreets/goconvey/convey"
)

func TestAnnotate(t *testing.T) {
	t.Parallel()

	Convey("Annotate", t, func() {
		Convey("of nil is nil", func() {
			So(Annotate(nil, "x").Tag(NewBoolTag("t")).Err(), ShouldBeNil)
		})

		Convey("prefixes the reason and unwraps to the cause", func() {
			err := Annotate(io.EOF, "reading %q", "k").Err()
			So(err.Error(), ShouldEqual, `reading "k": EOF`)
			So(Is(err, io.EOF), ShouldBeTrue)
			So(Contains(err, io.EOF), ShouldBeTrue)
		})

		Convey("Reason builds a leaf error", func() {
			err := Reason("%d results", 5).Err()
			So(err.Error(), ShouldEqual, "5 results")
			So(Unwrap(err), ShouldBeNil)
		})
	})

	Convey("Tags", t, func() {
		tag := NewBoolTag("bad request")
		key := NewTagKey("status")

		Convey("are found through layers of wrapping", func() {
			err := Annotate(New("inner", tag), "outer").Err()
			So(tag.In(err), ShouldBeTrue)
			err = fmt.Errorf("std wrap: %w", err)
			So(tag.In(err), ShouldBeTrue)
		})

		Convey("the outermost value wins", func() {
			err := TagValue{key, 1}.Apply(io.EOF)
			err = Annotate(err, "again").Tag(TagValue{key, 2}).Err()
			v, ok := TagValueIn(key, err)
			So(ok, ShouldBeTrue)
			So(v, ShouldEqual, 2)
		})

		Convey("are absent from plain errors", func() {
			So(tag.In(io.EOF), ShouldBeFalse)
			_, ok := TagValueIn(key, io.EOF)
			So(ok, ShouldBeFalse)
		})
	})
}

func TestMultiError(t *testing.T) {
	t.Parallel()

	Convey("MultiError", t, func() {
		Convey("summarizes its errors", func() {
			So(MultiError(nil).Error(), ShouldEqual, "(0 errors)")
			So(MultiError{io.EOF}.Error(), ShouldEqual, "EOF")
			So(MultiError{io.EOF, nil, io.ErrClosedPipe}.Error(), ShouldEqual, "EOF (and 1 other error)")
		})

		Convey("AsError drops all-nil slices", func() {
			So(MultiError{nil, nil}.AsError(), ShouldBeNil)
			var me MultiError
			me.MaybeAdd(nil)
			me.MaybeAdd(io.EOF)
			So(me.AsError(), ShouldNotBeNil)
			So(SingleError(me), ShouldEqual, io.EOF)
		})

		Convey("works with errors.Is and Walk", func() {
			tag := NewBoolTag("t")
			me := MultiError{io.EOF, tag.Apply(io.ErrUnexpectedEOF)}
			So(Is(me, io.ErrUnexpectedEOF), ShouldBeTrue)
			So(tag.In(me), ShouldBeTrue)
		})
	})
}
