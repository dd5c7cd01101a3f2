package provider

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/statwatch/stats-proxy/pkg/client"
)

const openDotaBaseURL = "https://api.opendota.com/api"

// Player is an OpenDota player profile. A response without a profile
// block means the account is unknown.
type Player struct {
	Profile         *PlayerProfile `json:"profile"`
	RankTier        int            `json:"rank_tier"`
	LeaderboardRank int            `json:"leaderboard_rank"`
}

// PlayerProfile is the nested account block.
type PlayerProfile struct {
	AccountID   int64  `json:"account_id"`
	PersonaName string `json:"personaname"`
	Name        string `json:"name"`
	Avatar      string `json:"avatarfull"`
	CountryCode string `json:"loccountrycode"`
}

// TotalEntry is one aggregate field from the player totals endpoint.
type TotalEntry struct {
	Field string  `json:"field"`
	N     int     `json:"n"`
	Sum   float64 `json:"sum"`
}

// HeroStat is one row of per-hero performance for a player.
type HeroStat struct {
	HeroID       string `json:"hero_id"`
	Games        int    `json:"games"`
	Win          int    `json:"win"`
	WithGames    int    `json:"with_games"`
	WithWin      int    `json:"with_win"`
	AgainstGames int    `json:"against_games"`
	AgainstWin   int    `json:"against_win"`
}

// Hero is one entry of the static hero list.
type Hero struct {
	ID            int      `json:"id"`
	Name          string   `json:"name"`
	LocalizedName string   `json:"localized_name"`
	PrimaryAttr   string   `json:"primary_attr"`
	AttackType    string   `json:"attack_type"`
	Roles         []string `json:"roles"`
}

// Item is one entry of the static item table.
type Item struct {
	ID   int    `json:"id"`
	Img  string `json:"img"`
	Cost int    `json:"cost"`
}

// Match is one row of a player's recent matches.
type Match struct {
	MatchID    int64 `json:"match_id"`
	HeroID     int   `json:"hero_id"`
	PlayerSlot int   `json:"player_slot"`
	RadiantWin bool  `json:"radiant_win"`
	Duration   int   `json:"duration"`
	StartTime  int64 `json:"start_time"`
	Kills      int   `json:"kills"`
	Deaths     int   `json:"deaths"`
	Assists    int   `json:"assists"`
}

// OpenDota is the match/player stats provider client.
type OpenDota struct {
	base
}

// NewOpenDota creates the OpenDota client.
func NewOpenDota(deps Deps) *OpenDota {
	return &OpenDota{base: newBase(ServiceOpenDota, openDotaBaseURL, deps)}
}

// Player fetches a player profile. Unknown accounts come back from
// OpenDota as a 200 with an empty profile block; that is mapped to
// ErrNotFound so the caller sees a definitive absence.
func (c *OpenDota) Player(ctx context.Context, accountID string) (json.RawMessage, error) {
	raw, err := c.fetch(ctx, "/players/"+accountID, PlayerKey(accountID).FixtureFile())
	if err != nil {
		return nil, err
	}

	var player Player
	if err := json.Unmarshal(raw, &player); err != nil {
		return nil, fmt.Errorf("%w: player %s: %v", client.ErrInvalidData, accountID, err)
	}
	if player.Profile == nil {
		return nil, fmt.Errorf("%w: player %s", client.ErrNotFound, accountID)
	}
	return raw, nil
}

// PlayerTotals fetches aggregate totals for a player.
func (c *OpenDota) PlayerTotals(ctx context.Context, accountID string) (json.RawMessage, error) {
	return c.fetchList(ctx, accountID, "totals", func(raw json.RawMessage) error {
		var totals []TotalEntry
		return json.Unmarshal(raw, &totals)
	})
}

// PlayerCounts fetches win/game counts grouped by match dimension.
func (c *OpenDota) PlayerCounts(ctx context.Context, accountID string) (json.RawMessage, error) {
	return c.fetchList(ctx, accountID, "counts", func(raw json.RawMessage) error {
		var counts map[string]json.RawMessage
		return json.Unmarshal(raw, &counts)
	})
}

// PlayerHeroes fetches per-hero performance for a player.
func (c *OpenDota) PlayerHeroes(ctx context.Context, accountID string) (json.RawMessage, error) {
	return c.fetchList(ctx, accountID, "heroes", func(raw json.RawMessage) error {
		var stats []HeroStat
		return json.Unmarshal(raw, &stats)
	})
}

// PlayerMatches fetches a player's recent matches.
func (c *OpenDota) PlayerMatches(ctx context.Context, accountID string) (json.RawMessage, error) {
	return c.fetchList(ctx, accountID, "matches", func(raw json.RawMessage) error {
		var matches []Match
		return json.Unmarshal(raw, &matches)
	})
}

// fetchList handles the player sub-resources, which share the same path
// shape, key shape and validation pattern.
func (c *OpenDota) fetchList(ctx context.Context, accountID, facet string, validate func(json.RawMessage) error) (json.RawMessage, error) {
	key := PlayerFacetKey(accountID, facet)
	raw, err := c.fetch(ctx, "/players/"+accountID+"/"+facet, key.FixtureFile())
	if err != nil {
		return nil, err
	}
	if err := validate(raw); err != nil {
		return nil, fmt.Errorf("%w: player %s %s: %v", client.ErrInvalidData, accountID, facet, err)
	}
	return raw, nil
}

// Heroes fetches the static hero list.
func (c *OpenDota) Heroes(ctx context.Context) (json.RawMessage, error) {
	raw, err := c.fetch(ctx, "/heroes", HeroesKey().FixtureFile())
	if err != nil {
		return nil, err
	}

	var heroes []Hero
	if err := json.Unmarshal(raw, &heroes); err != nil {
		return nil, fmt.Errorf("%w: heroes: %v", client.ErrInvalidData, err)
	}
	if len(heroes) == 0 {
		return nil, fmt.Errorf("%w: heroes: empty list", client.ErrInvalidData)
	}
	return raw, nil
}

// Items fetches the static item table.
func (c *OpenDota) Items(ctx context.Context) (json.RawMessage, error) {
	raw, err := c.fetch(ctx, "/constants/items", ItemsKey().FixtureFile())
	if err != nil {
		return nil, err
	}

	var items map[string]Item
	if err := json.Unmarshal(raw, &items); err != nil {
		return nil, fmt.Errorf("%w: items: %v", client.ErrInvalidData, err)
	}
	return raw, nil
}
