// Package server wires the HTTP API: routing, middleware, and the
// dispatch handlers that sit between clients and provider adapters.
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"path"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"modelgate/config"
	"modelgate/internal/adapters"
	"modelgate/internal/auditlog"
	"modelgate/internal/core"
	"modelgate/internal/history"
	"modelgate/internal/observability"
)

// Deps carries everything the server needs. Audit and Metrics are
// optional; nil values disable them.
type Deps struct {
	Config  *config.Config
	Factory *adapters.Factory
	History *history.Store
	Audit   auditlog.Recorder
	Metrics *observability.Metrics
}

// Server is the HTTP front of the gateway.
type Server struct {
	echo *echo.Echo
	cfg  *config.Config
}

// New builds the server with its full route table and middleware chain.
func New(deps Deps) *Server {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	e.Use(requestID())
	e.Use(requestLogger())
	e.Use(middleware.Recover())
	if deps.Config.Server.BodySizeLimit > 0 {
		e.Use(middleware.BodyLimit(strconv.FormatInt(deps.Config.Server.BodySizeLimit, 10)))
	}

	h := NewHandler(deps)

	e.GET("/health", h.Health)
	if deps.Config.Metrics.Enabled {
		e.GET(metricsPath(deps.Config.Metrics.Endpoint), echo.WrapHandler(promhttp.Handler()))
	}

	models := e.Group("/api/models")
	models.GET("/providers", h.ListProviders)
	models.POST("/chat", h.Chat)
	models.POST("/stream", h.Stream)
	models.GET("/:provider", h.ProviderModels)

	chats := e.Group("/api/chats")
	chats.POST("", h.SaveChat)
	chats.GET("", h.ListChats)
	chats.GET("/:chatId", h.GetChat)
	chats.DELETE("/:chatId", h.DeleteChat)

	return &Server{echo: e, cfg: deps.Config}
}

// Start runs the server until Shutdown is called. A closed-server
// result is reported as a clean exit.
func (s *Server) Start() error {
	addr := ":" + s.cfg.Server.Port
	slog.Info("starting http server", "addr", addr, "environment", s.cfg.Environment)
	if err := s.echo.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("http server failed: %w", err)
	}
	return nil
}

// Shutdown drains in-flight requests and stops the listener.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.echo.Shutdown(ctx)
}

// ServeHTTP exposes the router directly, used by tests.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.echo.ServeHTTP(w, r)
}

func metricsPath(endpoint string) string {
	if endpoint == "" {
		endpoint = "/metrics"
	}
	return path.Clean("/" + strings.TrimPrefix(endpoint, "/"))
}

// requestID attaches a request ID to the request context, honoring an
// incoming X-Request-ID header and echoing the ID back to the client.
func requestID() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			rid := c.Request().Header.Get(echo.HeaderXRequestID)
			if rid == "" {
				rid = uuid.NewString()
			}
			ctx := core.WithRequestID(c.Request().Context(), rid)
			c.SetRequest(c.Request().WithContext(ctx))
			c.Response().Header().Set(echo.HeaderXRequestID, rid)
			return next(c)
		}
	}
}

// requestLogger emits one structured slog line per request.
func requestLogger() echo.MiddlewareFunc {
	return middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		LogMethod:  true,
		LogURI:     true,
		LogStatus:  true,
		LogLatency: true,
		LogError:   true,
		LogValuesFunc: func(c echo.Context, v middleware.RequestLoggerValues) error {
			attrs := []any{
				"method", v.Method,
				"uri", v.URI,
				"status", v.Status,
				"latency", v.Latency,
				"request_id", core.GetRequestID(c.Request().Context()),
			}
			if v.Error != nil {
				attrs = append(attrs, "error", v.Error)
				slog.Error("request", attrs...)
			} else {
				slog.Info("request", attrs...)
			}
			return nil
		},
	})
}
