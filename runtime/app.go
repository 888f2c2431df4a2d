// Package runtime implements the AgentCore runtime HTTP contract: a POST
// /invocations entrypoint with optional SSE streaming and a GET /ping
// health check.
package runtime

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"github.com/plexusone/agentcore-runtime/logger"
)

// InvocationRequest is the payload accepted by POST /invocations.
type InvocationRequest struct {
	Prompt     string `json:"prompt"`
	ThreadID   string `json:"thread_id,omitempty"`
	ActorID    string `json:"actor_id,omitempty"`
	Stream     bool   `json:"stream,omitempty"`
	StreamMode string `json:"stream_mode,omitempty"` // "updates" or "values"
}

// Handler produces one JSON-serializable response for an invocation.
type Handler func(ctx context.Context, req *InvocationRequest) (any, error)

// StreamHandler produces a channel of JSON-serializable events, one per SSE
// data line. The handler must close the channel when done.
type StreamHandler func(ctx context.Context, req *InvocationRequest) (<-chan any, error)

// App hosts one agent behind the AgentCore runtime contract.
type App struct {
	echo    *echo.Echo
	handler Handler
	stream  StreamHandler
}

func NewApp() *App {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	e.Use(middleware.Recover())
	e.Use(middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		LogURI:    true,
		LogStatus: true,
		LogMethod: true,
		LogValuesFunc: func(c echo.Context, values middleware.RequestLoggerValues) error {
			logger.HttpLogger.Info().
				Str("method", values.Method).
				Str("uri", values.URI).
				Int("status", values.Status).
				Msg("handled runtime request")
			return nil
		},
	}))

	app := &App{echo: e}
	e.GET("/ping", app.handlePing)
	e.POST("/invocations", app.handleInvocations)
	return app
}

// Entrypoint registers the non-streaming invocation handler.
func (a *App) Entrypoint(h Handler) {
	a.handler = h
}

// StreamEntrypoint registers the streaming invocation handler, used when a
// request sets "stream": true.
func (a *App) StreamEntrypoint(h StreamHandler) {
	a.stream = h
}

// Echo exposes the underlying server for tests.
func (a *App) Echo() *echo.Echo {
	return a.echo
}

// Run serves until the listener fails.
func (a *App) Run(addr string) error {
	logger.Logger.Info().Str("addr", addr).Msg("starting runtime server")
	return a.echo.Start(addr)
}

// Shutdown stops the server gracefully.
func (a *App) Shutdown(ctx context.Context) error {
	return a.echo.Shutdown(ctx)
}

func (a *App) handlePing(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]string{"status": "Healthy"})
}

func (a *App) handleInvocations(c echo.Context) error {
	req := &InvocationRequest{}
	if err := c.Bind(req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{
			"type":  "error",
			"error": "invalid JSON payload",
		})
	}

	if req.Stream && a.stream != nil {
		return a.handleStreaming(c, req)
	}
	if a.handler == nil {
		return c.JSON(http.StatusNotImplemented, map[string]string{
			"type":  "error",
			"error": "no entrypoint registered",
		})
	}

	result, err := a.handler(c.Request().Context(), req)
	if err != nil {
		logger.Logger.Error().Err(err).Str("thread_id", req.ThreadID).Msg("invocation failed")
		return c.JSON(http.StatusOK, map[string]string{
			"type":  "error",
			"error": err.Error(),
		})
	}
	return c.JSON(http.StatusOK, result)
}

func (a *App) handleStreaming(c echo.Context, req *InvocationRequest) error {
	events, err := a.stream(c.Request().Context(), req)
	if err != nil {
		return c.JSON(http.StatusOK, map[string]string{
			"type":  "error",
			"error": err.Error(),
		})
	}

	res := c.Response()
	res.Header().Set(echo.HeaderContentType, "text/event-stream")
	res.Header().Set("Cache-Control", "no-cache")
	res.Header().Set("Connection", "keep-alive")
	res.WriteHeader(http.StatusOK)

	for event := range events {
		if err := writeSSE(res, event); err != nil {
			// Client went away; drain the channel so the producer
			// can finish.
			for range events {
			}
			return nil
		}
		res.Flush()
	}
	return nil
}

func writeSSE(res *echo.Response, event any) error {
	data, err := json.Marshal(event)
	if err != nil {
		data, _ = json.Marshal(map[string]string{
			"type":  "stream_error",
			"error": err.Error(),
		})
	}
	_, err = fmt.Fprintf(res, "data: %s\n\n", data)
	return err
}
