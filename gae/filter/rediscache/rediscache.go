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

// Package rediscache is a read-through Redis cache in front of datastore Get.
//
// Every Redis entry holds either an encoded entity or a lock. A Get that
// misses takes a lock carrying a random nonce before reading the datastore,
// and fills the entry only if its lock is still there. Put and Delete
// overwrite the entry with a lock of their own before touching the
// datastore and remove it afterwards, so a Get racing with them never caches
// what it read. Queries are not cached.
//
// The cache is best effort: Redis failures are logged and the call falls
// back to the datastore.
package rediscache

import (
	"context"
	"crypto/rand"
	"fmt"
	"time"

	"github.com/gomodule/redigo/redis"

	"go.glassware.dev/glassware/common/errors"
	"go.glassware.dev/glassware/common/logging"
	ds "go.glassware.dev/glassware/gae/service/datastore"
	"go.glassware.dev/glassware/server/redisconn"
)

const (
	// CacheVersion is incremented when the cache entry format changes.
	CacheVersion = "2"

	// KeyFormat is the format of Redis keys: gae:<version>:<encoded key>.
	KeyFormat = "gae:" + CacheVersion + ":%s"

	// NonceBytes is the number of random bytes in a Get lock.
	NonceBytes = 8
)

// FlagValue is the first byte of every entry.
type FlagValue byte

// States of an entry.
const (
	ItemUnknown FlagValue = iota
	ItemHasData
	ItemHasLock
)

// setIfEqual replaces KEYS[1] with ARGV[2] (expiring in ARGV[3] ms) if it
// currently holds ARGV[1].
var setIfEqual = redis.NewScript(1, `
if redis.call("GET", KEYS[1]) == ARGV[1] then
	redis.call("SET", KEYS[1], ARGV[2], "PX", ARGV[3])
	return 1
end
return 0
`)

// delIfEqual removes KEYS[1] if it currently holds ARGV[1].
var delIfEqual = redis.NewScript(1, `
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// Options configures the cache.
type Options struct {
	// Expiration is how long an entry lives in Redis. Defaults to one hour.
	Expiration time.Duration

	// LockTimeout is how long a lock lives if its owner never releases it.
	// Defaults to 31s, just over half of a request deadline.
	LockTimeout time.Duration

	// CompressionThreshold is the encoded size, in bytes, past which entries
	// are zstd-compressed. Defaults to 860.
	CompressionThreshold int
}

func (o *Options) normalize() {
	if o.Expiration <= 0 {
		o.Expiration = time.Hour
	}
	if o.LockTimeout <= 0 {
		o.LockTimeout = 31 * time.Second
	}
	if o.CompressionThreshold <= 0 {
		o.CompressionThreshold = 860
	}
}

// FilterRDS installs the cache in the context. It uses the Redis pool
// installed with redisconn.UsePool.
func FilterRDS(c context.Context, opts Options) context.Context {
	opts.normalize()
	return ds.AddRawFilters(c, func(ic context.Context, rds ds.RawInterface) ds.RawInterface {
		return &cacheDS{ic, rds, opts}
	})
}

// CacheKey is the Redis key caching the entity stored under k.
func CacheKey(k *ds.Key) string {
	return fmt.Sprintf(KeyFormat, k.Encode())
}

type cacheDS struct {
	c    context.Context
	rds  ds.RawInterface
	opts Options
}

var _ ds.RawInterface = (*cacheDS)(nil)

// propRecorder keeps the properties it loads.
type propRecorder struct {
	props []ds.Property
}

func (r *propRecorder) Load(props []ds.Property) error {
	r.props = props
	return nil
}

func (r *propRecorder) Save() ([]ds.Property, error) {
	return r.props, nil
}

func loadInto(dst ds.PropertyLoadSaver, key *ds.Key, props []ds.Property) error {
	if kl, ok := dst.(ds.KeyLoader); ok {
		if err := kl.LoadKey(key); err != nil {
			return err
		}
	}
	return dst.Load(props)
}

func (d *cacheDS) withConn(fn func(redis.Conn) error) {
	conn, err := redisconn.Get(d.c)
	if err != nil {
		if err != redisconn.ErrNotConfigured {
			logging.WithError(err).Warningf(d.c, "rediscache: no connection")
		}
		return
	}
	defer conn.Close()
	if err := fn(conn); err != nil {
		logging.WithError(err).Warningf(d.c, "rediscache: redis call failed")
	}
}

func newLock() []byte {
	lock := make([]byte, 1+NonceBytes)
	lock[0] = byte(ItemHasLock)
	if _, err := rand.Read(lock[1:]); err != nil {
		panic(err)
	}
	return lock
}

// acquire takes a Get lock on ck. If prev is nil the entry must be absent,
// otherwise it must still hold prev. Returns nil if the lock was not taken.
func (d *cacheDS) acquire(conn redis.Conn, ck string, prev []byte) ([]byte, error) {
	lock := newLock()
	ttl := d.opts.LockTimeout.Milliseconds()
	if prev == nil {
		switch _, err := redis.String(conn.Do("SET", ck, lock, "NX", "PX", ttl)); {
		case err == redis.ErrNil:
			return nil, nil
		case err != nil:
			return nil, err
		}
		return lock, nil
	}
	switch n, err := redis.Int(setIfEqual.Do(conn, ck, prev, lock, ttl)); {
	case err != nil:
		return nil, err
	case n == 0:
		return nil, nil
	}
	return lock, nil
}

func (d *cacheDS) Get(key *ds.Key, dst ds.PropertyLoadSaver) error {
	ck := CacheKey(key)

	var (
		hit    bool
		cached []ds.Property
		lock   []byte
	)
	d.withConn(func(conn redis.Conn) error {
		blob, err := redis.Bytes(conn.Do("GET", ck))
		switch {
		case err == redis.ErrNil:
			lock, err = d.acquire(conn, ck, nil)
			return err
		case err != nil:
			return err
		}

		var bad error
		switch {
		case len(blob) > 0 && FlagValue(blob[0]) == ItemHasData:
			if cached, bad = decodeEntity(blob[1:]); bad == nil {
				hit = true
				return nil
			}
		case len(blob) > 0 && FlagValue(blob[0]) == ItemHasLock:
			// Someone else is filling or mutating the entry.
			return nil
		default:
			bad = errors.Reason("bad entry flag").Err()
		}
		// Take the broken entry over so that it gets refilled.
		if lock, err = d.acquire(conn, ck, blob); err != nil {
			return err
		}
		return errors.Annotate(bad, "entry %q", ck).Err()
	})
	if hit {
		logging.Debugf(d.c, "rediscache: hit %s", key)
		return loadInto(dst, key, cached)
	}

	rec := &propRecorder{}
	if err := d.rds.Get(key, rec); err != nil {
		if lock != nil {
			d.withConn(func(conn redis.Conn) error {
				_, err := delIfEqual.Do(conn, ck, lock)
				return err
			})
		}
		return err
	}
	if lock != nil {
		d.withConn(func(conn redis.Conn) error {
			blob, err := encodeEntity(rec.props, d.opts.CompressionThreshold)
			if err != nil {
				return err
			}
			item := append([]byte{byte(ItemHasData)}, blob...)
			_, err = setIfEqual.Do(conn, ck, lock, item, d.opts.Expiration.Milliseconds())
			return err
		})
	}
	return loadInto(dst, key, rec.props)
}

// lockForMutation overwrites the entry of key with a lock no Get owns, which
// makes every pending fill fail.
func (d *cacheDS) lockForMutation(key *ds.Key) {
	d.withConn(func(conn redis.Conn) error {
		_, err := conn.Do("SET", CacheKey(key), []byte{byte(ItemHasLock)}, "PX", d.opts.LockTimeout.Milliseconds())
		return err
	})
}

func (d *cacheDS) evict(key *ds.Key) {
	d.withConn(func(conn redis.Conn) error {
		_, err := conn.Do("DEL", CacheKey(key))
		return err
	})
}

func (d *cacheDS) Put(key *ds.Key, src ds.PropertyLoadSaver) (*ds.Key, error) {
	if key.Incomplete() {
		return d.rds.Put(key, src)
	}
	d.lockForMutation(key)
	defer d.evict(key)
	return d.rds.Put(key, src)
}

func (d *cacheDS) Delete(key *ds.Key) error {
	d.lockForMutation(key)
	defer d.evict(key)
	return d.rds.Delete(key)
}

func (d *cacheDS) Run(fq *ds.FinalizedQuery, limit int, start ds.Cursor, newDst func() ds.PropertyLoadSaver) (ds.Cursor, error) {
	return d.rds.Run(fq, limit, start, newDst)
}
