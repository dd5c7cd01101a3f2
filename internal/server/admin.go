package server

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/statwatch/stats-proxy/pkg/cache"
	"github.com/statwatch/stats-proxy/pkg/fetch"
	"github.com/statwatch/stats-proxy/pkg/provider"
)

// playerFacets are the sub-resources invalidated together with a player.
var playerFacets = []string{"totals", "counts", "heroes", "matches"}

type invalidateItem struct {
	Type string `json:"type"`
	ID   string `json:"id"`
	Key  string `json:"key"`
}

type invalidateRequest struct {
	Items []invalidateItem `json:"items"`
}

type invalidateResponse struct {
	Invalidated []string `json:"invalidated"`
	Errors      []string `json:"errors"`
}

// handleInvalidate removes entries (and their fixtures) per item. Items
// are validated independently: a bad item lands in errors without failing
// the batch. Raw keys are forbidden; callers must go through type+id so
// keys stay canonical.
func (s *Server) handleInvalidate(c echo.Context) error {
	var req invalidateRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "invalid request body"})
	}
	if len(req.Items) == 0 {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "items is required"})
	}

	ctx := c.Request().Context()
	resp := invalidateResponse{Invalidated: []string{}, Errors: []string{}}

	for i, item := range req.Items {
		if item.Key != "" {
			resp.Errors = append(resp.Errors, fmt.Sprintf("item %d: raw keys are not allowed", i))
			continue
		}
		if item.Type == "" || item.ID == "" {
			resp.Errors = append(resp.Errors, fmt.Sprintf("item %d: type and id are required", i))
			continue
		}

		keys, err := keysForItem(item)
		if err != nil {
			resp.Errors = append(resp.Errors, fmt.Sprintf("item %d: %v", i, err))
			continue
		}

		for _, key := range keys {
			if err := s.cache.Invalidate(ctx, key, key.FixtureFile()); err != nil {
				resp.Errors = append(resp.Errors, fmt.Sprintf("item %d: %s: %v", i, key.String(), err))
				continue
			}
			resp.Invalidated = append(resp.Invalidated, key.String())
		}
	}

	return c.JSON(http.StatusOK, resp)
}

// keysForItem expands one invalidation item into its cache keys.
func keysForItem(item invalidateItem) ([]cache.Key, error) {
	switch item.Type {
	case "player":
		keys := []cache.Key{provider.PlayerKey(item.ID)}
		for _, facet := range playerFacets {
			keys = append(keys, provider.PlayerFacetKey(item.ID, facet))
		}
		return keys, nil
	case "team":
		return []cache.Key{provider.TeamKey(item.ID), provider.TeamPlayersKey(item.ID)}, nil
	case "averages":
		return []cache.Key{provider.AveragesKey(item.ID)}, nil
	case "config":
		return []cache.Key{provider.DashboardConfigKey(item.ID)}, nil
	case "share":
		return []cache.Key{provider.ShareConfigKey(item.ID)}, nil
	default:
		return nil, fmt.Errorf("unknown type %q", item.Type)
	}
}

// handleStats exposes cache, queue and per-service rate-limit counters.
func (s *Server) handleStats(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]any{
		"cache":       s.cache.Stats(),
		"queue":       s.orch.Stats(),
		"rate_limits": s.limiter.Stats(),
	})
}

// handleClear drops all cache entries. Destructive.
func (s *Server) handleClear(c echo.Context) error {
	if err := s.cache.Clear(c.Request().Context()); err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, map[string]string{"status": "cleared"})
}

type importRequest struct {
	Teams []string `json:"teams"`
}

// handleImport runs a bulk team import in the background through the
// worker pool and returns the queued signal immediately. Each team is
// fetched via the orchestrator, so concurrent imports of the same team
// still share one upstream call.
func (s *Server) handleImport(c echo.Context) error {
	var req importRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "invalid request body"})
	}
	if len(req.Teams) == 0 {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "teams is required"})
	}

	tasks := make([]fetch.Task, 0, len(req.Teams))
	for _, name := range req.Teams {
		name := name
		key := provider.TeamKey(name)
		tasks = append(tasks, fetch.Task{
			ID: key.String(),
			Run: func(ctx context.Context) error {
				_, err := s.orch.Fetch(ctx, fetch.Request{
					Key:         key,
					TTL:         ttlTeam,
					FixtureFile: key.FixtureFile(),
					Loader: func(ctx context.Context) (json.RawMessage, error) {
						return s.sportsdb.TeamByName(ctx, name)
					},
				})
				return err
			},
		})
	}

	go s.pool.Run(context.Background(), tasks)

	return c.JSON(http.StatusAccepted, map[string]any{
		"status": "queued",
		"count":  len(tasks),
	})
}
