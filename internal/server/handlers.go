package server

import (
	"context"
	"encoding/json"
	"io"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/statwatch/stats-proxy/pkg/cache"
	"github.com/statwatch/stats-proxy/pkg/fetch"
	"github.com/statwatch/stats-proxy/pkg/provider"
)

// queuedResponse is the 202 contract: the signature is the resource key,
// used by the client as its polling correlation token.
type queuedResponse struct {
	Status    string `json:"status"`
	Signature string `json:"signature"`
}

// respondJSON writes a raw cached payload without re-encoding.
func respondJSON(c echo.Context, raw json.RawMessage) error {
	return c.JSONBlob(http.StatusOK, raw)
}

// lookupAsync implements the queued contract: cached data returns 200, a
// miss starts a background fetch and returns 202 for the client to poll.
// A poll after a failed fetch gets the mapped error once, then the
// contract starts over.
func (s *Server) lookupAsync(c echo.Context, req fetch.Request) error {
	value, ok, err := s.orch.FetchAsync(req)
	if err != nil {
		return writeError(c, err)
	}
	if ok {
		return respondJSON(c, value)
	}
	return c.JSON(http.StatusAccepted, queuedResponse{
		Status:    "queued",
		Signature: req.Key.String(),
	})
}

// lookupSync awaits the fetch; used for short workloads (counts, totals,
// static tables) where a request/response round trip is acceptable.
func (s *Server) lookupSync(c echo.Context, req fetch.Request) error {
	value, err := s.orch.Fetch(c.Request().Context(), req)
	if err != nil {
		return writeError(c, err)
	}
	return respondJSON(c, value)
}

func (s *Server) playerRequest(accountID string, force bool) fetch.Request {
	key := provider.PlayerKey(accountID)
	return fetch.Request{
		Key:         key,
		TTL:         ttlPlayer,
		FixtureFile: key.FixtureFile(),
		Force:       force,
		Loader: func(ctx context.Context) (json.RawMessage, error) {
			return s.opendota.Player(ctx, accountID)
		},
	}
}

func (s *Server) handlePlayer(c echo.Context) error {
	return s.lookupAsync(c, s.playerRequest(c.Param("id"), false))
}

// handlePlayerForce accepts {force?: bool} and bypasses the cache when
// set, invalidating entry and fixture before fetching.
func (s *Server) handlePlayerForce(c echo.Context) error {
	var body struct {
		Force bool `json:"force"`
	}
	if c.Request().ContentLength > 0 {
		if err := c.Bind(&body); err != nil {
			return c.JSON(http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		}
	}
	return s.lookupAsync(c, s.playerRequest(c.Param("id"), body.Force))
}

// handlePlayerFacet serves the player sub-resources. Matches are bulky
// and use the queued contract; the aggregates resolve synchronously.
func (s *Server) handlePlayerFacet(facet string, async bool) echo.HandlerFunc {
	return func(c echo.Context) error {
		accountID := c.Param("id")
		key := provider.PlayerFacetKey(accountID, facet)

		ttl := ttlPlayerFacet
		if facet == "matches" {
			ttl = ttlMatches
		}

		req := fetch.Request{
			Key:         key,
			TTL:         ttl,
			FixtureFile: key.FixtureFile(),
			Loader: func(ctx context.Context) (json.RawMessage, error) {
				switch facet {
				case "totals":
					return s.opendota.PlayerTotals(ctx, accountID)
				case "counts":
					return s.opendota.PlayerCounts(ctx, accountID)
				case "heroes":
					return s.opendota.PlayerHeroes(ctx, accountID)
				default:
					return s.opendota.PlayerMatches(ctx, accountID)
				}
			},
		}

		if async {
			return s.lookupAsync(c, req)
		}
		return s.lookupSync(c, req)
	}
}

func (s *Server) handleHeroes(c echo.Context) error {
	key := provider.HeroesKey()
	return s.lookupSync(c, fetch.Request{
		Key:         key,
		TTL:         ttlStatic,
		FixtureFile: key.FixtureFile(),
		Loader: func(ctx context.Context) (json.RawMessage, error) {
			return s.opendota.Heroes(ctx)
		},
	})
}

func (s *Server) handleItems(c echo.Context) error {
	key := provider.ItemsKey()
	return s.lookupSync(c, fetch.Request{
		Key:         key,
		TTL:         ttlStatic,
		FixtureFile: key.FixtureFile(),
		Loader: func(ctx context.Context) (json.RawMessage, error) {
			return s.opendota.Items(ctx)
		},
	})
}

func (s *Server) handleTeam(c echo.Context) error {
	name := c.Param("name")
	key := provider.TeamKey(name)
	return s.lookupAsync(c, fetch.Request{
		Key:         key,
		TTL:         ttlTeam,
		FixtureFile: key.FixtureFile(),
		Loader: func(ctx context.Context) (json.RawMessage, error) {
			return s.sportsdb.TeamByName(ctx, name)
		},
	})
}

func (s *Server) handleTeamPlayers(c echo.Context) error {
	teamID := c.Param("id")
	key := provider.TeamPlayersKey(teamID)
	return s.lookupAsync(c, fetch.Request{
		Key:         key,
		TTL:         ttlTeam,
		FixtureFile: key.FixtureFile(),
		Loader: func(ctx context.Context) (json.RawMessage, error) {
			return s.sportsdb.TeamPlayers(ctx, teamID)
		},
	})
}

func (s *Server) handleAverages(c echo.Context) error {
	playerID := c.Param("id")
	key := provider.AveragesKey(playerID)
	return s.lookupSync(c, fetch.Request{
		Key:         key,
		TTL:         ttlPlayerFacet,
		FixtureFile: key.FixtureFile(),
		Loader: func(ctx context.Context) (json.RawMessage, error) {
			return s.balldontlie.PlayerAverages(ctx, playerID)
		},
	})
}

// handleConfigGet reads a dashboard config with sliding expiry: a
// successful read re-sets the entry with a fresh TTL so frequently used
// configs never expire.
func (s *Server) handleConfigGet(c echo.Context) error {
	return s.slidingGet(c, provider.DashboardConfigKey(c.Param("id")))
}

func (s *Server) handleConfigPut(c echo.Context) error {
	return s.configPut(c, provider.DashboardConfigKey(c.Param("id")))
}

func (s *Server) handleShareGet(c echo.Context) error {
	return s.slidingGet(c, provider.ShareConfigKey(c.Param("key")))
}

func (s *Server) handleSharePut(c echo.Context) error {
	return s.configPut(c, provider.ShareConfigKey(c.Param("key")))
}

func (s *Server) slidingGet(c echo.Context, key cache.Key) error {
	ctx := c.Request().Context()
	value, ok := s.cache.Get(ctx, key, cache.GetOptions{TTL: ttlConfig})
	if !ok {
		return c.JSON(http.StatusNotFound, map[string]string{"error": "resource not found"})
	}
	s.cache.Set(ctx, "config", key, value, ttlConfig, "")
	return respondJSON(c, value)
}

func (s *Server) configPut(c echo.Context, key cache.Key) error {
	body, err := io.ReadAll(c.Request().Body)
	if err != nil || len(body) == 0 || !json.Valid(body) {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "body must be valid JSON"})
	}
	s.cache.Set(c.Request().Context(), "config", key, body, ttlConfig, "")
	return c.JSON(http.StatusOK, map[string]string{"status": "saved", "key": key.String()})
}
