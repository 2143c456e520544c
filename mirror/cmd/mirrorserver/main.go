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

// Command mirrorserver serves the Mirror timeline API.
//
// The datastore is Cloud Datastore when -cloud-project is set (honoring
// DATASTORE_EMULATOR_HOST), in-memory otherwise. The calling user is taken
// from a header set by the authenticating proxy in front of the server.
// Requests, datastore calls and subscription callbacks are traced when
// -trace-exporter is set.
package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.glassware.dev/glassware/common/errors"
	"go.glassware.dev/glassware/common/logging"
	"go.glassware.dev/glassware/common/logging/gologger"
	"go.glassware.dev/glassware/gae/protods/endpoints"
	"go.glassware.dev/glassware/mirror/config"
	"go.glassware.dev/glassware/mirror/frontend"
	"go.glassware.dev/glassware/mirror/notify"
	"go.glassware.dev/glassware/server/middleware"
	"go.glassware.dev/glassware/server/router"
	"go.glassware.dev/glassware/server/tracing"
)

const shutdownTimeout = 15 * time.Second

func main() {
	ctx := gologger.StdConfig.Use(context.Background())

	cfg, err := config.Parse(os.Args[0], os.Args[1:])
	if err != nil {
		logging.WithError(err).Errorf(ctx, "Bad command line")
		os.Exit(2)
	}
	ctx = logging.SetLevel(ctx, cfg.LogLevel)

	if err := run(ctx, cfg); err != nil {
		logging.WithError(err).Errorf(ctx, "Server failed")
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.Config) error {
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	tp, err := cfg.Tracing.Use(ctx, "mirrorserver", cfg.Datastore.Project)
	if err != nil {
		return err
	}
	if tp != nil {
		defer func() {
			if err := tp.Shutdown(context.WithoutCancel(ctx)); err != nil {
				logging.WithError(err).Warningf(ctx, "Failed to flush traces")
			}
		}()
		cfg.Datastore.TracerProvider = tp
	}

	ctx = cfg.Redis.Use(ctx)
	ctx, closeDS, err := cfg.Datastore.Use(ctx)
	if err != nil {
		return err
	}
	defer closeDS()

	store, closeMedia, err := cfg.Media.Open(ctx)
	if err != nil {
		return err
	}
	defer closeMedia()

	r := router.New()
	r.Use(router.NewMiddlewareChain(
		middleware.WithBase(context.WithoutCancel(ctx)),
		middleware.WithRequestID,
		middleware.WithPanicCatcher,
	))
	r.NotFound(nil, func(c *router.Context) {
		endpoints.WriteError(c.Request.Context(), c.Writer, endpoints.NotFound("no such method %s %s", c.Request.Method, c.Request.URL.Path))
	})

	srv := &frontend.Server{
		Notifier: &notify.Notifier{
			Workers: cfg.NotifyWorkers,
			Timeout: cfg.NotifyTimeout,
		},
		Media:   store,
		BaseURL: cfg.PublicURL,
	}
	if err := srv.InstallHandlers(ctx, r, router.NewMiddlewareChain(endpoints.UserFromHeader(cfg.UserHeader))); err != nil {
		return err
	}

	httpSrv := &http.Server{
		Addr:              cfg.Listen,
		Handler:           tracing.Handler(r, "mirrorserver", nil),
		ReadHeaderTimeout: 10 * time.Second,
	}
	done := make(chan error, 1)
	go func() {
		<-ctx.Done()
		logging.Warningf(ctx, "Shutting down")
		sctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
		defer cancel()
		done <- httpSrv.Shutdown(sctx)
	}()

	logging.Infof(ctx, "Serving on http://%s%s", cfg.Listen, frontend.BasePath)
	if err := httpSrv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return <-done
}
