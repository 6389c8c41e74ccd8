package bootstrap

import (
	"github.com/lyzr/wkflws/common/config"
	"github.com/lyzr/wkflws/common/db"
	"github.com/lyzr/wkflws/common/logger"
)

// Option configures the bootstrap process.
type Option func(*options)

type options struct {
	skipRedis    bool
	customLogger *logger.Logger
	customConfig *config.Config
	dbInitHook   func(*db.DB) error
}

// WithoutRedis skips Redis client initialization. DB initialization is
// always governed by Config.Lookup.Backend instead of an explicit
// option, since the Postgres pool exists only to serve that backend.
func WithoutRedis() Option {
	return func(o *options) {
		o.skipRedis = true
	}
}

// WithCustomLogger uses a custom logger instead of creating one.
func WithCustomLogger(log *logger.Logger) Option {
	return func(o *options) {
		o.customLogger = log
	}
}

// WithCustomConfig uses a custom config instead of loading from env.
func WithCustomConfig(cfg *config.Config) Option {
	return func(o *options) {
		o.customConfig = cfg
	}
}

// WithDBInitHook runs a custom function after DB initialization.
// Useful for running migrations, seeding data, etc.
func WithDBInitHook(hook func(*db.DB) error) Option {
	return func(o *options) {
		o.dbInitHook = hook
	}
}

func defaultOptions() *options {
	return &options{}
}
