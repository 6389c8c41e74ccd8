package bootstrap

import (
	"context"
	"fmt"

	goredis "github.com/redis/go-redis/v9"
	"go.opentelemetry.io/otel/trace"

	"github.com/lyzr/wkflws/common/config"
	"github.com/lyzr/wkflws/common/db"
	"github.com/lyzr/wkflws/common/logger"
	"github.com/lyzr/wkflws/pkg/lookup"
)

// Components holds every initialized service dependency shared across
// cmd/trigger and cmd/definitions.
type Components struct {
	Config *config.Config
	Logger *logger.Logger
	DB     *db.DB         // nil when the lookup backend is "filesystem"
	Redis  *goredis.Client // nil when WithoutRedis is used
	Tracer trace.Tracer
	Lookup lookup.Lookup

	tracerShutdown func(context.Context) error
	cleanupFuncs   []func() error
}

// Shutdown performs graceful shutdown of all components in reverse
// initialization order. Should be called with defer after Setup().
func (c *Components) Shutdown(ctx context.Context) error {
	c.Logger.Info("shutting down components")

	var errs []error
	for i := len(c.cleanupFuncs) - 1; i >= 0; i-- {
		if err := c.cleanupFuncs[i](); err != nil {
			errs = append(errs, err)
			c.Logger.Error("cleanup error", "error", err)
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("shutdown errors: %v", errs)
	}

	c.Logger.Info("shutdown complete")
	return nil
}

// Health checks the health of every component that can fail silently.
func (c *Components) Health(ctx context.Context) error {
	if c.DB != nil {
		if err := c.DB.Health(ctx); err != nil {
			return fmt.Errorf("database unhealthy: %w", err)
		}
	}
	if c.Redis != nil {
		if err := c.Redis.Ping(ctx).Err(); err != nil {
			return fmt.Errorf("redis unhealthy: %w", err)
		}
	}
	return nil
}

func (c *Components) addCleanup(fn func() error) {
	c.cleanupFuncs = append(c.cleanupFuncs, fn)
}
