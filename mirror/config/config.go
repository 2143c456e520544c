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

// Package config holds the settings of the mirror server. Settings come from
// an optional YAML file and command line flags, flags taking precedence.
package config

import (
	"flag"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v2"

	"go.glassware.dev/glassware/common/errors"
	"go.glassware.dev/glassware/common/logging"
	"go.glassware.dev/glassware/mirror/media"
	"go.glassware.dev/glassware/server/gaeemulation"
	"go.glassware.dev/glassware/server/redisconn"
	"go.glassware.dev/glassware/server/tracing"
)

// Config is the server configuration.
type Config struct {
	Listen     string        `yaml:"listen"`
	UserHeader string        `yaml:"user_header"`
	PublicURL  string        `yaml:"public_url"`
	LogLevel   logging.Level `yaml:"log_level"`

	NotifyWorkers int           `yaml:"notify_workers"`
	NotifyTimeout time.Duration `yaml:"notify_timeout"`

	Datastore gaeemulation.Options `yaml:"datastore"`
	Redis     redisconn.Options    `yaml:"redis"`
	Tracing   tracing.Options      `yaml:"tracing"`
	Media     media.Options        `yaml:"media"`

	// File is the YAML file the rest was read from, if any.
	File string `yaml:"-"`
}

// Default returns the configuration used when nothing is set.
func Default() *Config {
	return &Config{
		Listen:        "localhost:8800",
		UserHeader:    "X-Glassware-User",
		LogLevel:      logging.Info,
		NotifyWorkers: 8,
		NotifyTimeout: 10 * time.Second,
	}
}

// Register registers the command line flags.
func (c *Config) Register(f *flag.FlagSet) {
	f.StringVar(&c.File, "config", c.File, "YAML file with the server configuration.")
	f.StringVar(&c.Listen, "listen", c.Listen, "Address to serve HTTP on.")
	f.StringVar(&c.UserHeader, "user-header", c.UserHeader, "Request header carrying the authenticated user id.")
	f.StringVar(&c.PublicURL, "public-url", c.PublicURL, "Scheme and host clients reach the server at, used in attachment URLs.")
	f.Var(&c.LogLevel, "log-level", "Minimum level of logged messages (debug, info, warning, error).")
	f.IntVar(&c.NotifyWorkers, "notify-workers", c.NotifyWorkers, "How many subscription callbacks are called in parallel.")
	f.DurationVar(&c.NotifyTimeout, "notify-timeout", c.NotifyTimeout, "Deadline of one subscription callback.")
	c.Datastore.Register(f)
	c.Redis.Register(f)
	c.Tracing.Register(f)
	c.Media.Register(f)
}

// Validate checks the configuration is usable.
func (c *Config) Validate() error {
	var merr errors.MultiError
	if c.Listen == "" {
		merr.MaybeAdd(errors.New("listen address is required"))
	}
	if c.UserHeader == "" {
		merr.MaybeAdd(errors.New("user header is required"))
	}
	if c.NotifyWorkers <= 0 {
		merr.MaybeAdd(errors.Reason("notify workers must be positive, got %d", c.NotifyWorkers).Err())
	}
	if c.NotifyTimeout <= 0 {
		merr.MaybeAdd(errors.Reason("notify timeout must be positive, got %s", c.NotifyTimeout).Err())
	}
	if c.Datastore.DSCache == "redis" && c.Redis.Addr == "" {
		merr.MaybeAdd(errors.New("the redis datastore cache needs a redis address"))
	}
	if strings.HasSuffix(c.PublicURL, "/") {
		merr.MaybeAdd(errors.Reason("public URL %q must not end with /", c.PublicURL).Err())
	}
	if c.Datastore.Trace && !c.Tracing.Enabled() {
		merr.MaybeAdd(errors.New("datastore tracing needs a trace exporter"))
	}
	merr.MaybeAdd(c.Tracing.Validate())
	return merr.AsError()
}

// Parse parses args with the flags of a default configuration. If -config
// names a file, the file is read first and flags given in args override it.
func Parse(name string, args []string) (*Config, error) {
	cfg := Default()
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	cfg.Register(fs)
	if err := fs.Parse(args); err != nil {
		return nil, err
	}
	if cfg.File != "" {
		fromFile, err := Load(cfg.File)
		if err != nil {
			return nil, err
		}
		override := flag.NewFlagSet(name, flag.ContinueOnError)
		fromFile.Register(override)
		var ferr error
		fs.Visit(func(f *flag.Flag) {
			if ferr == nil {
				ferr = override.Set(f.Name, f.Value.String())
			}
		})
		if ferr != nil {
			return nil, errors.Annotate(ferr, "applying flags").Err()
		}
		cfg = fromFile
	}
	if err := cfg.Validate(); err != nil {
		return nil, errors.Annotate(err, "bad configuration").Err()
	}
	return cfg, nil
}

// Load reads a configuration from a YAML file on top of the defaults.
func Load(path string) (*Config, error) {
	blob, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Annotate(err, "reading config").Err()
	}
	cfg := Default()
	if err := yaml.UnmarshalStrict(blob, cfg); err != nil {
		return nil, errors.Annotate(err, "parsing %s", path).Err()
	}
	cfg.File = path
	return cfg, nil
}
