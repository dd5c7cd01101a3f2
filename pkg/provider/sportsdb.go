package provider

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"

	"github.com/statwatch/stats-proxy/pkg/client"
)

const sportsDBBaseURL = "https://www.thesportsdb.com/api/v1/json/3"

// Team is one TheSportsDB team record.
type Team struct {
	ID      string `json:"idTeam"`
	Name    string `json:"strTeam"`
	League  string `json:"strLeague"`
	Sport   string `json:"strSport"`
	Stadium string `json:"strStadium"`
	Badge   string `json:"strBadge"`
}

// TeamPlayer is one roster entry.
type TeamPlayer struct {
	ID       string `json:"idPlayer"`
	TeamID   string `json:"idTeam"`
	Name     string `json:"strPlayer"`
	Position string `json:"strPosition"`
	Nation   string `json:"strNationality"`
}

// teamsResponse wraps the search endpoint payload. TheSportsDB returns
// a JSON null for "teams" when nothing matches.
type teamsResponse struct {
	Teams []Team `json:"teams"`
}

type playersResponse struct {
	Players []TeamPlayer `json:"player"`
}

// SportsDB is the team-info provider client.
type SportsDB struct {
	base
}

// NewSportsDB creates the TheSportsDB client.
func NewSportsDB(deps Deps) *SportsDB {
	return &SportsDB{base: newBase(ServiceSportsDB, sportsDBBaseURL, deps)}
}

// TeamByName searches for a team by name. A null result set maps to
// ErrNotFound.
func (c *SportsDB) TeamByName(ctx context.Context, name string) (json.RawMessage, error) {
	raw, err := c.fetch(ctx, "/searchteams.php?t="+url.QueryEscape(name), TeamKey(name).FixtureFile())
	if err != nil {
		return nil, err
	}

	var resp teamsResponse
	if err := json.Unmarshal(raw, &resp); err != nil {
		return nil, fmt.Errorf("%w: team %q: %v", client.ErrInvalidData, name, err)
	}
	if len(resp.Teams) == 0 {
		return nil, fmt.Errorf("%w: team %q", client.ErrNotFound, name)
	}
	return raw, nil
}

// TeamPlayers fetches a team's full roster by team ID.
func (c *SportsDB) TeamPlayers(ctx context.Context, teamID string) (json.RawMessage, error) {
	raw, err := c.fetch(ctx, "/lookup_all_players.php?id="+url.QueryEscape(teamID), TeamPlayersKey(teamID).FixtureFile())
	if err != nil {
		return nil, err
	}

	var resp playersResponse
	if err := json.Unmarshal(raw, &resp); err != nil {
		return nil, fmt.Errorf("%w: team %s roster: %v", client.ErrInvalidData, teamID, err)
	}
	if len(resp.Players) == 0 {
		return nil, fmt.Errorf("%w: team %s roster", client.ErrNotFound, teamID)
	}
	return raw, nil
}

// ParseTeams decodes a cached team search payload.
func ParseTeams(raw json.RawMessage) ([]Team, error) {
	var resp teamsResponse
	if err := json.Unmarshal(raw, &resp); err != nil {
		return nil, fmt.Errorf("%w: %v", client.ErrInvalidData, err)
	}
	return resp.Teams, nil
}
