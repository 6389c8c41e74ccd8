// Command definitions runs an administrative HTTP API over the
// Postgres-backed workflow store: put, fetch, list, and delete the
// definitions (with their version history), and put the node
// credentials, that cmd/trigger resolves at execution time.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"strconv"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"github.com/lyzr/wkflws/common/bootstrap"
	"github.com/lyzr/wkflws/common/server"
	"github.com/lyzr/wkflws/pkg/workflow"
)

func main() {
	ctx := context.Background()

	components, err := bootstrap.Setup(ctx, "wkflws-definitions", bootstrap.WithoutRedis())
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to bootstrap definitions service: %v\n", err)
		os.Exit(1)
	}
	defer components.Shutdown(ctx)

	if components.DB == nil {
		components.Logger.Error("definitions service requires the postgres lookup backend")
		os.Exit(1)
	}

	store := newStore(components.DB.Pool)

	e := echo.New()
	e.HideBanner = true
	e.Use(middleware.Logger())
	e.Use(middleware.Recover())
	e.Use(middleware.RequestID())

	e.GET("/health", func(c echo.Context) error {
		if err := components.Health(c.Request().Context()); err != nil {
			return c.JSON(http.StatusServiceUnavailable, map[string]string{"status": "unhealthy", "error": err.Error()})
		}
		return c.JSON(http.StatusOK, map[string]string{"status": "ok", "service": "definitions"})
	})

	api := &api{store: store}
	g := e.Group("/workflows")
	g.GET("", api.list)
	g.GET("/:id", api.get)
	g.PUT("/:id", api.put)
	g.DELETE("/:id", api.delete)
	g.GET("/:id/versions", api.listVersions)
	g.GET("/:id/versions/:seq", api.getVersion)

	cg := e.Group("/credentials")
	cg.PUT("/:node_id", api.putCredential)

	addr := fmt.Sprintf(":%d", components.Config.Service.Port)
	srv := server.New("definitions", addr, e, components.Logger)
	if err := srv.Start(); err != nil {
		components.Logger.Error("server error", "error", err)
		os.Exit(1)
	}
}

type api struct {
	store *store
}

// workflowUpsertRequest keeps Definition as raw JSON rather than a
// typed workflow.Definition: echo.Bind decodes the envelope with the
// standard library's plain json.Unmarshal, which would turn every
// number embedded in Parameters/Result/ResultSelector into a float64.
// Routing the raw bytes through workflow.ParseDefinition instead
// preserves them as decimal.Decimal, matching every other ingestion
// path.
type workflowUpsertRequest struct {
	TriggerResource string          `json:"trigger_resource"`
	Definition      json.RawMessage `json:"definition"`
}

func (a *api) list(c echo.Context) error {
	ids, err := a.store.ListIDs(c.Request().Context())
	if err != nil {
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": err.Error()})
	}
	return c.JSON(http.StatusOK, map[string]interface{}{"workflow_ids": ids})
}

func (a *api) get(c echo.Context) error {
	record, err := a.store.Get(c.Request().Context(), c.Param("id"))
	if err != nil {
		return c.JSON(http.StatusNotFound, map[string]string{"error": err.Error()})
	}
	return c.JSON(http.StatusOK, record)
}

func (a *api) put(c echo.Context) error {
	var req workflowUpsertRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": err.Error()})
	}
	def, err := workflow.ParseDefinition(req.Definition)
	if err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": fmt.Sprintf("invalid workflow definition: %v", err)})
	}
	if err := a.store.Put(c.Request().Context(), c.Param("id"), req.TriggerResource, def); err != nil {
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": err.Error()})
	}
	return c.NoContent(http.StatusNoContent)
}

func (a *api) delete(c echo.Context) error {
	if err := a.store.Delete(c.Request().Context(), c.Param("id")); err != nil {
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": err.Error()})
	}
	return c.NoContent(http.StatusNoContent)
}

func (a *api) listVersions(c echo.Context) error {
	versions, err := a.store.versions.List(c.Request().Context(), c.Param("id"))
	if err != nil {
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": err.Error()})
	}
	return c.JSON(http.StatusOK, map[string]interface{}{"versions": versions})
}

func (a *api) getVersion(c echo.Context) error {
	seq, err := strconv.Atoi(c.Param("seq"))
	if err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "seq must be an integer"})
	}
	doc, err := a.store.versions.Materialize(c.Request().Context(), c.Param("id"), seq)
	if err != nil {
		return c.JSON(http.StatusNotFound, map[string]string{"error": err.Error()})
	}
	return c.JSONBlob(http.StatusOK, doc)
}

func (a *api) putCredential(c echo.Context) error {
	var creds map[string]interface{}
	if err := c.Bind(&creds); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": err.Error()})
	}
	if err := a.store.PutCredential(c.Request().Context(), c.Param("node_id"), creds); err != nil {
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": err.Error()})
	}
	return c.NoContent(http.StatusNoContent)
}
