package bootstrap

import (
	"context"
	"fmt"

	goredis "github.com/redis/go-redis/v9"

	"github.com/lyzr/wkflws/common/config"
	"github.com/lyzr/wkflws/common/db"
	"github.com/lyzr/wkflws/common/logger"
	"github.com/lyzr/wkflws/common/redis"
	"github.com/lyzr/wkflws/pkg/lookup"
	"github.com/lyzr/wkflws/pkg/tracing"
)

// Setup initializes every shared component (config, logging, tracing,
// the workflow lookup backend, and Redis) that cmd/trigger and
// cmd/definitions both depend on.
func Setup(ctx context.Context, serviceName string, opts ...Option) (*Components, error) {
	options := defaultOptions()
	for _, opt := range opts {
		opt(options)
	}

	components := &Components{
		cleanupFuncs: make([]func() error, 0),
	}

	// 1. Load configuration.
	var err error
	if options.customConfig != nil {
		components.Config = options.customConfig
	} else {
		components.Config, err = config.Load(serviceName)
		if err != nil {
			return nil, fmt.Errorf("load config: %w", err)
		}
	}
	cfg := components.Config

	// 2. Initialize logger.
	if options.customLogger != nil {
		components.Logger = options.customLogger
	} else {
		components.Logger = logger.New(cfg.Service.LogLevel, cfg.Service.LogFormat, cfg.Service.NoColor)
	}

	components.Logger.Info("initializing service",
		"service", serviceName,
		"environment", cfg.Service.Environment,
	)

	// 3. Initialize tracing.
	exporters, err := tracing.ParseExporters(cfg.Tracing.Exporters)
	if err != nil {
		return nil, fmt.Errorf("parse tracing exporters: %w", err)
	}
	components.Tracer, components.tracerShutdown, err = tracing.Setup(ctx, cfg.Tracing.ResourceName, exporters)
	if err != nil {
		return nil, fmt.Errorf("initialize tracing: %w", err)
	}
	components.addCleanup(func() error {
		components.Logger.Info("shutting down tracer")
		return components.tracerShutdown(ctx)
	})

	// 4. Initialize Redis, unless explicitly skipped.
	if !options.skipRedis {
		components.Logger.Info("connecting to redis", "addr", cfg.Redis.Addr())
		client := goredis.NewClient(&goredis.Options{
			Addr:     cfg.Redis.Addr(),
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		if err := client.Ping(ctx).Err(); err != nil {
			return nil, fmt.Errorf("connect to redis: %w", err)
		}
		components.Redis = client
		components.addCleanup(func() error {
			components.Logger.Info("closing redis connection")
			return client.Close()
		})
	}

	// 5. Initialize the workflow lookup backend named by Config.Lookup.
	switch cfg.Lookup.Backend {
	case "filesystem":
		components.Lookup, err = lookup.NewFilesystemLookup(cfg.Lookup.FilesystemRoot, components.Logger)
		if err != nil {
			return nil, fmt.Errorf("initialize filesystem lookup: %w", err)
		}
	case "postgres":
		components.Logger.Info("connecting to database")
		components.DB, err = db.New(ctx, cfg, components.Logger)
		if err != nil {
			return nil, fmt.Errorf("connect to database: %w", err)
		}
		components.addCleanup(func() error {
			components.Logger.Info("closing database connection")
			components.DB.Close()
			return nil
		})

		if options.dbInitHook != nil {
			components.Logger.Info("running database init hook")
			if err := options.dbInitHook(components.DB); err != nil {
				components.Shutdown(ctx)
				return nil, fmt.Errorf("database init hook failed: %w", err)
			}
		}

		components.Lookup = lookup.NewPostgres(components.DB.Pool)
	default:
		return nil, fmt.Errorf("unknown workflow lookup backend: %s", cfg.Lookup.Backend)
	}

	// Wrap the lookup backend with a read-through Redis cache when Redis
	// is available, so a hot trigger node's definitions aren't re-walked
	// or re-queried on every firing event.
	if components.Redis != nil {
		cacheClient := redis.NewClient(components.Redis, components.Logger)
		components.Lookup = lookup.NewCached(components.Lookup, cacheClient, cfg.Lookup.CacheTTL)
	}

	components.Logger.Info("service initialization complete",
		"service", serviceName,
		"db", components.DB != nil,
		"redis", components.Redis != nil,
		"lookup_backend", cfg.Lookup.Backend,
	)

	return components, nil
}

// MustSetup is like Setup but panics on error. Useful for services
// that can't recover from initialization failure.
func MustSetup(ctx context.Context, serviceName string, opts ...Option) *Components {
	components, err := Setup(ctx, serviceName, opts...)
	if err != nil {
		panic(fmt.Sprintf("failed to setup service %s: %v", serviceName, err))
	}
	return components
}
