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

package redisconn

import (
	"context"
	"flag"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/gomodule/redigo/redis"

	. "github.com/smartystreets/goconvey/convey"
)

func TestRedisConn(t *testing.T) {
	t.Parallel()

	Convey("Without a pool", t, func() {
		_, err := Get(context.Background())
		So(err, ShouldEqual, ErrNotConfigured)
	})

	Convey("With a pool", t, func() {
		s, err := miniredis.Run()
		So(err, ShouldBeNil)
		defer s.Close()

		pool := NewPool(s.Addr(), 0)
		defer pool.Close()
		ctx := UsePool(context.Background(), pool)
		So(GetPool(ctx), ShouldEqual, pool)

		conn, err := Get(ctx)
		So(err, ShouldBeNil)
		defer conn.Close()

		_, err = conn.Do("SET", "k", "v")
		So(err, ShouldBeNil)
		v, err := redis.String(conn.Do("GET", "k"))
		So(err, ShouldBeNil)
		So(v, ShouldEqual, "v")
	})

	Convey("Options", t, func() {
		o := Options{}
		fs := flag.NewFlagSet("test", flag.ContinueOnError)
		o.Register(fs)
		So(o.Use(context.Background()), ShouldEqual, context.Background())

		So(fs.Parse([]string{"-redis-addr", "localhost:6379", "-redis-db", "2"}), ShouldBeNil)
		So(o, ShouldResemble, Options{Addr: "localhost:6379", DB: 2})
		So(GetPool(o.Use(context.Background())), ShouldNotBeNil)
	})
}
