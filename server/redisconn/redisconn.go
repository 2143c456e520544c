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

// Package redisconn carries a Redis connection pool in the context.
package redisconn

import (
	"context"
	"flag"
	"time"

	"github.com/gomodule/redigo/redis"

	"go.glassware.dev/glassware/common/errors"
)

// ErrNotConfigured is returned by Get if there's no Redis pool in the context.
var ErrNotConfigured = errors.New("redis is not configured")

var poolKey = "go.glassware.dev/glassware/server/redisconn.Pool"

// Options configure the Redis connection.
type Options struct {
	Addr string `yaml:"redis_addr"` // host:port of the Redis server, empty to disable
	DB   int    `yaml:"redis_db"`   // index of the database to select
}

// Register registers the command line flags.
func (o *Options) Register(f *flag.FlagSet) {
	f.StringVar(&o.Addr, "redis-addr", o.Addr, "Redis server to connect to as host:port. Empty to not use Redis.")
	f.IntVar(&o.DB, "redis-db", o.DB, "Index of the Redis database to use.")
}

// Use installs a pool built from the options into the context. It does
// nothing if no address is set.
func (o *Options) Use(ctx context.Context) context.Context {
	if o.Addr == "" {
		return ctx
	}
	return UsePool(ctx, NewPool(o.Addr, o.DB))
}

// NewPool returns a pool dialing addr and selecting db on every new
// connection.
func NewPool(addr string, db int) *redis.Pool {
	return &redis.Pool{
		MaxIdle:     8,
		IdleTimeout: 5 * time.Minute,
		Dial: func() (redis.Conn, error) {
			return redis.Dial("tcp", addr, redis.DialDatabase(db))
		},
		TestOnBorrow: func(c redis.Conn, t time.Time) error {
			if time.Since(t) < time.Minute {
				return nil
			}
			_, err := c.Do("PING")
			return err
		},
	}
}

// UsePool installs a connection pool into the context, to be used by Get.
func UsePool(ctx context.Context, pool *redis.Pool) context.Context {
	return context.WithValue(ctx, &poolKey, pool)
}

// GetPool returns a connection pool in the context or nil if not there.
func GetPool(ctx context.Context) *redis.Pool {
	p, _ := ctx.Value(&poolKey).(*redis.Pool)
	return p
}

// Get returns a Redis connection using the pool installed in the context.
//
// The connection must be closed by the caller.
func Get(ctx context.Context) (redis.Conn, error) {
	pool := GetPool(ctx)
	if pool == nil {
		return nil, ErrNotConfigured
	}
	conn, err := pool.GetContext(ctx)
	if err != nil {
		return nil, errors.Annotate(err, "getting redis connection").Err()
	}
	return conn, nil
}
