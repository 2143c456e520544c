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

package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"go.glassware.dev/glassware/common/logging"
	"go.glassware.dev/glassware/server/gaeemulation"
	"go.glassware.dev/glassware/server/tracing"

	. "github.com/smartystreets/goconvey/convey"
	. "go.glassware.dev/glassware/common/testing/assertions"
)

func TestParse(t *testing.T) {
	t.Parallel()

	Convey("Parse", t, func() {
		Convey("uses defaults", func() {
			cfg, err := Parse("test", nil)
			So(err, ShouldBeNil)
			So(cfg, ShouldResemble, Default())
		})

		Convey("reads flags", func() {
			cfg, err := Parse("test", []string{
				"-listen", ":9000",
				"-log-level", "debug",
				"-cloud-project", "proj",
				"-notify-timeout", "3s",
			})
			So(err, ShouldBeNil)
			So(cfg.Listen, ShouldEqual, ":9000")
			So(cfg.LogLevel, ShouldEqual, logging.Debug)
			So(cfg.Datastore.Project, ShouldEqual, "proj")
			So(cfg.NotifyTimeout, ShouldEqual, 3*time.Second)
		})

		Convey("with a file", func() {
			path := filepath.Join(t.TempDir(), "mirror.yaml")
			write := func(body string) {
				So(os.WriteFile(path, []byte(body), 0600), ShouldBeNil)
			}

			Convey("reads it under the flags", func() {
				write(`
listen: ":7000"
user_header: X-User
log_level: warning
notify_workers: 3
datastore:
  project: from-file
  ds_cache: redis
  ds_cache_ttl: 10m
redis:
  redis_addr: "localhost:6379"
`)
				cfg, err := Parse("test", []string{"-config", path, "-listen", ":9000"})
				So(err, ShouldBeNil)
				So(cfg.File, ShouldEqual, path)
				So(cfg.Listen, ShouldEqual, ":9000")
				So(cfg.UserHeader, ShouldEqual, "X-User")
				So(cfg.LogLevel, ShouldEqual, logging.Warning)
				So(cfg.NotifyWorkers, ShouldEqual, 3)
				So(cfg.NotifyTimeout, ShouldEqual, 10*time.Second)
				So(cfg.Datastore, ShouldResemble, gaeemulation.Options{
					Project:  "from-file",
					DSCache:  "redis",
					CacheTTL: 10 * time.Minute,
				})
				So(cfg.Redis.Addr, ShouldEqual, "localhost:6379")
			})

			Convey("rejects unknown keys", func() {
				write("listn: x\n")
				_, err := Parse("test", []string{"-config", path})
				So(err, ShouldErrLike, "listn")
			})

			Convey("rejects bad levels", func() {
				write("log_level: loud\n")
				_, err := Parse("test", []string{"-config", path})
				So(err, ShouldErrLike, `unknown log level "loud"`)
			})
		})

		Convey("fails without a file", func() {
			_, err := Parse("test", []string{"-config", "/nonexistent/mirror.yaml"})
			So(err, ShouldErrLike, "reading config")
		})

		Convey("validates", func() {
			_, err := Parse("test", []string{"-notify-workers", "0", "-ds-cache", "redis"})
			So(err, ShouldErrLike, "notify workers must be positive")
			So(err, ShouldErrLike, "and 1 other error")
		})

		Convey("validates tracing", func() {
			_, err := Parse("test", []string{"-ds-trace"})
			So(err, ShouldErrLike, "datastore tracing needs a trace exporter")

			_, err = Parse("test", []string{"-trace-exporter", "jaeger"})
			So(err, ShouldErrLike, `unsupported trace exporter "jaeger"`)

			cfg, err := Parse("test", []string{"-ds-trace", "-trace-exporter", "log", "-trace-sampler", "1qps"})
			So(err, ShouldBeNil)
			So(cfg.Tracing, ShouldResemble, tracing.Options{Exporter: "log", Sampler: "1qps"})
		})

		Convey("takes media settings", func() {
			cfg, err := Parse("test", []string{"-attachment-bucket", "glass-media", "-public-url", "https://glass.example.com"})
			So(err, ShouldBeNil)
			So(cfg.Media.Bucket, ShouldEqual, "glass-media")
			So(cfg.PublicURL, ShouldEqual, "https://glass.example.com")

			_, err = Parse("test", []string{"-public-url", "https://glass.example.com/"})
			So(err, ShouldErrLike, "must not end with /")
		})

		Convey("rejects unknown flags", func() {
			_, err := Parse("test", []string{"-nope"})
			So(err, ShouldErrLike, "nope")
		})
	})
}
