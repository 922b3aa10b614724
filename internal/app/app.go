// Package app contains the HTTP API and realtime endpoint.
package app

import (
	"log/slog"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/labstack/gommon/log"

	"github.com/fleetbeam/fleetbeam/internal/config"
	"github.com/fleetbeam/fleetbeam/internal/observability"
	"github.com/fleetbeam/fleetbeam/internal/relay"
	"github.com/fleetbeam/fleetbeam/internal/sec"
	"github.com/fleetbeam/fleetbeam/internal/storage"
)

// New creates the API server.
func New(
	cfg *config.Config,
	logger *slog.Logger,
	users storage.Users,
	issuer *sec.TokenIssuer,
	rly *relay.Relay,
	metrics *observability.Metrics,
) *echo.Echo {
	srv := echo.New()

	srv.HideBanner = true
	srv.HidePort = true
	srv.Logger.SetLevel(log.OFF)

	if cfg.DevMode {
		srv.Debug = true
		srv.Use(logRequests(logger))
	}

	srv.Use(
		middleware.Recover(),
		middleware.RequestID(),
		middleware.Secure(),
		middleware.GzipWithConfig(middleware.GzipConfig{
			// Compression would interpose on the websocket hijack.
			Skipper: func(c echo.Context) bool { return c.Path() == "/ws" },
		}),
	)

	h := handler{
		users:  users,
		issuer: issuer,
		relay:  rly,
		logger: logger,
	}
	h.register(srv)
	srv.GET("/metrics", echo.WrapHandler(metrics.Handler()))
	return srv
}

func logRequests(logger *slog.Logger) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()
			err := next(c)
			latency := time.Since(start)

			if err != nil {
				c.Error(err)
			}

			req := c.Request()
			res := c.Response()

			attrs := []slog.Attr{
				slog.String("method", req.Method),
				slog.String("uri", req.RequestURI),
				slog.String("route", c.Path()),
				slog.Duration("latency", latency),
				slog.Int("status", res.Status),
			}
			if err != nil {
				attrs = append(attrs, slog.Any("error", err))
			}
			logger.LogAttrs(
				req.Context(),
				slog.LevelDebug,
				"request handled",
				attrs...,
			)
			return err
		}
	}
}
