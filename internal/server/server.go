// Package server exposes the HTTP API over the cache-aside layer.
// Handlers call into the orchestrator with a resource key and a loader;
// they see data, a queued signal, or a typed error, never retry counts or
// cache internals.
package server

import (
	"context"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/statwatch/stats-proxy/pkg/cache"
	"github.com/statwatch/stats-proxy/pkg/fetch"
	"github.com/statwatch/stats-proxy/pkg/provider"
	"github.com/statwatch/stats-proxy/pkg/ratelimit"
)

// Resource TTLs. Player data moves hourly, static tables daily, dashboard
// configs are session-like with sliding expiry.
const (
	ttlPlayer      = 1 * time.Hour
	ttlPlayerFacet = 6 * time.Hour
	ttlMatches     = 30 * time.Minute
	ttlStatic      = 24 * time.Hour
	ttlTeam        = 24 * time.Hour
	ttlConfig      = 7 * 24 * time.Hour
)

// Deps carries everything the server needs, injected at startup.
type Deps struct {
	Cache        *cache.Service
	Orchestrator *fetch.Orchestrator
	Limiter      *ratelimit.Limiter
	Pool         *fetch.Pool
	OpenDota     *provider.OpenDota
	SportsDB     *provider.SportsDB
	BallDontLie  *provider.BallDontLie
	Logger       zerolog.Logger
}

// Server is the HTTP API.
type Server struct {
	echo        *echo.Echo
	cache       *cache.Service
	orch        *fetch.Orchestrator
	limiter     *ratelimit.Limiter
	pool        *fetch.Pool
	opendota    *provider.OpenDota
	sportsdb    *provider.SportsDB
	balldontlie *provider.BallDontLie
	logger      zerolog.Logger
}

// New builds the server and registers all routes.
func New(deps Deps) *Server {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	s := &Server{
		echo:        e,
		cache:       deps.Cache,
		orch:        deps.Orchestrator,
		limiter:     deps.Limiter,
		pool:        deps.Pool,
		opendota:    deps.OpenDota,
		sportsdb:    deps.SportsDB,
		balldontlie: deps.BallDontLie,
		logger:      deps.Logger,
	}

	e.Use(middleware.Recover())
	e.Use(s.requestLogger())

	e.GET("/healthz", s.handleHealth)
	e.GET("/metrics", echo.WrapHandler(promhttp.Handler()))

	api := e.Group("/api")
	api.GET("/players/:id", s.handlePlayer)
	api.POST("/players/:id", s.handlePlayerForce)
	api.GET("/players/:id/totals", s.handlePlayerFacet("totals", false))
	api.GET("/players/:id/counts", s.handlePlayerFacet("counts", false))
	api.GET("/players/:id/heroes", s.handlePlayerFacet("heroes", false))
	api.GET("/players/:id/matches", s.handlePlayerFacet("matches", true))
	api.GET("/heroes", s.handleHeroes)
	api.GET("/items", s.handleItems)
	api.GET("/teams/:name", s.handleTeam)
	api.GET("/rosters/:id", s.handleTeamPlayers)
	api.GET("/averages/:id", s.handleAverages)

	api.GET("/configs/:id", s.handleConfigGet)
	api.PUT("/configs/:id", s.handleConfigPut)
	api.GET("/configs/share/:key", s.handleShareGet)
	api.PUT("/configs/share/:key", s.handleSharePut)

	admin := api.Group("/admin")
	admin.POST("/invalidate", s.handleInvalidate)
	admin.GET("/stats", s.handleStats)
	admin.POST("/clear", s.handleClear)
	admin.POST("/import", s.handleImport)

	return s
}

// Echo exposes the underlying router (tests).
func (s *Server) Echo() *echo.Echo {
	return s.echo
}

// Start serves on addr, blocking until the server stops.
func (s *Server) Start(addr string) error {
	s.logger.Info().Str("addr", addr).Msg("HTTP server starting")
	return s.echo.Start(addr)
}

// Shutdown drains connections and stops the server.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.echo.Shutdown(ctx)
}

// requestLogger logs one line per request via zerolog.
func (s *Server) requestLogger() echo.MiddlewareFunc {
	return middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		LogStatus:  true,
		LogURI:     true,
		LogMethod:  true,
		LogLatency: true,
		LogValuesFunc: func(c echo.Context, v middleware.RequestLoggerValues) error {
			s.logger.Debug().
				Str("method", v.Method).
				Str("uri", v.URI).
				Int("status", v.Status).
				Dur("latency", v.Latency).
				Msg("Request")
			return nil
		},
	})
}

func (s *Server) handleHealth(c echo.Context) error {
	return c.JSON(200, map[string]any{
		"status":          "ok",
		"cache":           s.cache.Healthy(c.Request().Context()),
		"limiter_backing": s.limiter.Healthy(c.Request().Context()),
	})
}
