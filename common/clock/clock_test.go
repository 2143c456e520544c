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

package clock_test

import (
	"context"
	"testing"
	"time"

	"go.glassware.dev/glassware/common/clock"
	"go.glassware.dev/glassware/common/clock/testclock"

	. "github.com/smartystreets/goconvey/convey"
)

func TestClockContext(t *testing.T) {
	t.Parallel()

	Convey("Without a clock in the context, the system clock is used", t, func() {
		before := time.Now()
		now := clock.Now(context.Background())
		So(now.Before(before), ShouldBeFalse)
	})

	Convey("A test clock controls Now and Since", t, func() {
		ctx, tc := testclock.UseTime(context.Background(), testclock.TestTimeUTC)
		So(clock.Now(ctx), ShouldEqual, testclock.TestTimeUTC)

		tc.Add(time.Minute)
		So(clock.Since(ctx, testclock.TestTimeUTC), ShouldEqual, time.Minute)

		tc.Set(testclock.TestTimeUTC)
		So(clock.Now(ctx), ShouldEqual, testclock.TestTimeUTC)
	})
}
