// Command stats-proxy serves the cache-aside HTTP API in front of the
// sports-statistics upstreams.
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"

	"github.com/statwatch/stats-proxy/internal/server"
	"github.com/statwatch/stats-proxy/pkg/cache"
	"github.com/statwatch/stats-proxy/pkg/client"
	"github.com/statwatch/stats-proxy/pkg/config"
	"github.com/statwatch/stats-proxy/pkg/fetch"
	"github.com/statwatch/stats-proxy/pkg/fixture"
	"github.com/statwatch/stats-proxy/pkg/logging"
	"github.com/statwatch/stats-proxy/pkg/provider"
	"github.com/statwatch/stats-proxy/pkg/ratelimit"
)

func main() {
	_ = godotenv.Load()
	cfg := config.FromEnv()

	logger := logging.Setup(logging.Config{
		Level:  cfg.LogLevel,
		Pretty: cfg.LogPretty,
		Output: os.Stderr,
	})

	// Redis is preferred; when unreachable the cache degrades to the
	// local file backend and the limiter to in-process state.
	redisClient := redis.NewClient(&redis.Options{Addr: cfg.RedisURL})
	pingCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	var backend cache.Backend
	var limiterRedis *redis.Client
	if err := redisClient.Ping(pingCtx).Err(); err != nil {
		logger.Warn().Err(err).Str("addr", cfg.RedisURL).
			Msg("Redis unreachable, falling back to file cache and in-process rate limits")
		fileBackend, ferr := cache.NewFileBackend(cfg.CacheDir)
		if ferr != nil {
			logger.Fatal().Err(ferr).Msg("File cache fallback failed")
		}
		backend = fileBackend
	} else {
		logger.Info().Str("addr", cfg.RedisURL).Msg("Connected to Redis")
		backend = cache.NewRedisBackend(redisClient)
		limiterRedis = redisClient
	}

	fixtures := fixture.NewLoader(cfg.FixtureDir, cfg.WriteRealDataToMock, logging.NewLogger("fixtures"))
	cacheSvc := cache.NewService(backend, fixtures, logging.NewLogger("cache"))
	limiter := ratelimit.NewLimiter(limiterRedis, cfg.Limits, logging.NewLogger("ratelimit"))
	httpClient := client.New(client.Config{
		MaxRetries:   cfg.MaxRetries,
		DefaultDelay: cfg.DefaultRetryDelay,
		UserAgent:    cfg.UserAgent,
	}, logging.NewLogger("http"))
	orch := fetch.New(cacheSvc, cfg.JobTimeout, logging.NewLogger("orchestrator"))
	pool := fetch.NewPool(fetch.DefaultPoolConfig(), logging.NewLogger("pool"))

	providerDeps := func(svc provider.Service) provider.Deps {
		return provider.Deps{
			HTTP:     httpClient,
			Limiter:  limiter,
			Fixtures: fixtures,
			Mock:     cfg.UseMockFor[svc],
			Logger:   logging.NewLogger("provider"),
		}
	}

	srv := server.New(server.Deps{
		Cache:        cacheSvc,
		Orchestrator: orch,
		Limiter:      limiter,
		Pool:         pool,
		OpenDota:     provider.NewOpenDota(providerDeps(provider.ServiceOpenDota)),
		SportsDB:     provider.NewSportsDB(providerDeps(provider.ServiceSportsDB)),
		BallDontLie:  provider.NewBallDontLie(providerDeps(provider.ServiceBallDontLie)),
		Logger:       logging.NewLogger("server"),
	})

	go func() {
		if err := srv.Start(":" + cfg.Port); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal().Err(err).Msg("Server failed")
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	logger.Info().Msg("Shutting down")
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("Shutdown failed")
	}
	_ = redisClient.Close()
}
