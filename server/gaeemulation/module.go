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

// Package gaeemulation installs a datastore implementation into the context:
// Cloud Datastore when a project is configured, an in-memory one otherwise.
//
// Usage:
//
//	opts := gaeemulation.Options{}
//	opts.Register(flag.CommandLine)
//	flag.Parse()
//	ctx, shutdown, err := opts.Use(ctx)
//	if err != nil {
//	  ...
//	}
//	defer shutdown()
package gaeemulation

import (
	"context"
	"flag"
	"os"
	"time"

	"go.opentelemetry.io/otel/trace"
	"google.golang.org/api/option"

	"go.glassware.dev/glassware/common/errors"
	"go.glassware.dev/glassware/common/logging"
	"go.glassware.dev/glassware/gae/filter/rediscache"
	"go.glassware.dev/glassware/gae/impl/cloud"
	"go.glassware.dev/glassware/gae/impl/memory"
	ds "go.glassware.dev/glassware/gae/service/datastore"
	"go.glassware.dev/glassware/server/redisconn"
)

// Options configure the datastore.
type Options struct {
	Project   string        `yaml:"project"`    // Cloud project, empty for the in-memory datastore
	Namespace string        `yaml:"namespace"`  // datastore namespace
	DSCache   string        `yaml:"ds_cache"`   // "disable" (default) or "redis"
	CacheTTL  time.Duration `yaml:"ds_cache_ttl"`
	Trace     bool          `yaml:"ds_trace"` // open a span per datastore call

	// TracerProvider records the datastore spans. Nil means the global one.
	TracerProvider trace.TracerProvider `yaml:"-"`
}

// Register registers the command line flags.
func (o *Options) Register(f *flag.FlagSet) {
	f.StringVar(
		&o.Project,
		"cloud-project",
		o.Project,
		"Cloud project with the datastore. If empty, entities are kept in memory.",
	)
	f.StringVar(
		&o.Namespace,
		"ds-namespace",
		o.Namespace,
		"Datastore namespace to use.",
	)
	f.StringVar(
		&o.DSCache,
		"ds-cache",
		o.DSCache,
		`What datastore caching layer to use ("disable" or "redis").`,
	)
	f.DurationVar(
		&o.CacheTTL,
		"ds-cache-ttl",
		o.CacheTTL,
		"How long cached entities live in Redis.",
	)
	f.BoolVar(
		&o.Trace,
		"ds-trace",
		o.Trace,
		"If set, every datastore call opens an OpenTelemetry span.",
	)
}

// Use installs the datastore into ctx. The returned function releases the
// client and must be called on shutdown.
//
// The Redis cache needs a pool installed with redisconn.UsePool.
func (o *Options) Use(ctx context.Context, clientOpts ...option.ClientOption) (context.Context, func(), error) {
	useCache := false
	switch o.DSCache {
	case "", "disable":
	case "redis":
		if redisconn.GetPool(ctx) == nil {
			return nil, nil, errors.New("can't use `-ds-cache redis`: Redis is not configured")
		}
		useCache = true
	default:
		return nil, nil, errors.Reason("unsupported -ds-cache %q", o.DSCache).Err()
	}

	shutdown := func() {}
	if o.Project == "" {
		logging.Warningf(ctx, "No -cloud-project, entities are kept in memory")
		ctx = memory.Use(ctx)
	} else {
		if addr := os.Getenv("DATASTORE_EMULATOR_HOST"); addr != "" {
			logging.Infof(ctx, "Using the datastore emulator at %s", addr)
		} else {
			logging.Infof(ctx, "Setting up datastore client for project %q", o.Project)
		}
		client, err := cloud.NewClient(ctx, o.Project, clientOpts...)
		if err != nil {
			return nil, nil, err
		}
		shutdown = func() {
			if err := client.Close(); err != nil {
				logging.WithError(err).Warningf(ctx, "Failed to close the datastore client")
			}
		}
		ctx = cloud.Config{Client: client, Namespace: o.Namespace}.Use(ctx)
	}

	if useCache {
		ctx = rediscache.FilterRDS(ctx, rediscache.Options{Expiration: o.CacheTTL})
	}
	switch {
	case o.Trace && o.TracerProvider != nil:
		ctx = ds.AddRawFilters(ctx, ds.NewTracingFilter(o.TracerProvider))
	case o.Trace:
		ctx = ds.AddRawFilters(ctx, ds.TracingFilter)
	}
	return ctx, shutdown, nil
}
