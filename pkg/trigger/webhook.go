package trigger

import (
	"context"
	"io"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/lyzr/wkflws/common/logger"
	"github.com/lyzr/wkflws/pkg/event"
	"github.com/lyzr/wkflws/pkg/tracing"
)

// RouteHandler turns a raw HTTP request into an Event. A nil Event
// with a nil error means the request was accepted with no further
// action (e.g. a platform verification challenge).
type RouteHandler func(c echo.Context) (*event.Event, error)

// Route binds one or more HTTP methods and a path to a RouteHandler.
type Route struct {
	Methods []string
	Path    string
	Handler RouteHandler
}

// Webhook is an HTTP front end that turns inbound requests into events
// and hands them to a Dispatcher. It is deliberately thin: all
// workflow-starting logic lives in Dispatcher.
type Webhook struct {
	echo       *echo.Echo
	dispatcher *Dispatcher
	log        *logger.Logger
}

// RateLimit configures the per-trigger-node throttle applied to every
// route. A nil RateLimiter (the zero value) disables throttling.
type RateLimit struct {
	Limiter   *RateLimiter
	Limit     int64
	WindowSec int
}

// NewWebhook builds an Echo server wired with the given routes.
func NewWebhook(dispatcher *Dispatcher, routes []Route, rl RateLimit, log *logger.Logger) *Webhook {
	e := echo.New()
	e.HideBanner = true
	e.Use(echomw.Recover())
	e.Use(echomw.RequestID())
	if rl.Limiter != nil {
		e.Use(rateLimitMiddleware(rl.Limiter, rl.Limit, rl.WindowSec))
	}

	w := &Webhook{echo: e, dispatcher: dispatcher, log: log}

	e.GET("/health", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
	})

	for _, route := range routes {
		e.Match(route.Methods, route.Path, w.wrap(route.Handler))
	}

	return w
}

// wrap extracts W3C trace context from the request, invokes handler,
// and publishes the resulting event to the dispatcher.
func (w *Webhook) wrap(handler RouteHandler) echo.HandlerFunc {
	return func(c echo.Context) error {
		incoming := map[string]string{}
		for k, v := range c.Request().Header {
			if len(v) > 0 {
				// Header keys are canonicalized ("Traceparent"); the
				// propagator looks them up in lower case.
				incoming[strings.ToLower(k)] = v[0]
			}
		}

		ctx := tracing.ExtractMetadata(c.Request().Context(), incoming)
		ctx, span := otel.Tracer("wkflws/trigger").Start(ctx, "trigger.webhook."+c.Path())
		defer span.End()
		span.SetAttributes(
			attribute.String("http.method", c.Request().Method),
			attribute.String("http.url", c.Request().URL.String()),
		)
		c.SetRequest(c.Request().WithContext(ctx))

		evt, err := handler(c)
		if err != nil {
			if w.log != nil {
				w.log.Error("webhook handler failed", "path", c.Path(), "error", err)
			}
			return c.JSON(http.StatusInternalServerError, map[string]string{"error": "internal error"})
		}
		if evt == nil {
			return c.NoContent(http.StatusOK)
		}

		if err := w.dispatcher.SendEvent(ctx, *evt); err != nil {
			if w.log != nil {
				w.log.Error("dispatch failed", "path", c.Path(), "error", err)
			}
			return c.JSON(http.StatusInternalServerError, map[string]string{"error": "dispatch failed"})
		}
		return c.NoContent(http.StatusOK)
	}
}

// Start listens and blocks until ctx is canceled or the server errors.
func (w *Webhook) Start(ctx context.Context, addr string) error {
	go func() {
		<-ctx.Done()
		_ = w.echo.Close()
	}()
	if err := w.echo.Start(addr); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

// ReadBody is a small helper for RouteHandlers that need the raw body.
func ReadBody(c echo.Context) ([]byte, error) {
	return io.ReadAll(c.Request().Body)
}
