package provider

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"

	"github.com/statwatch/stats-proxy/pkg/client"
)

const ballDontLieBaseURL = "https://api.balldontlie.io/v1"

// SeasonAverage is one row of the secondary-stats averages endpoint.
type SeasonAverage struct {
	PlayerID    int     `json:"player_id"`
	Season      int     `json:"season"`
	GamesPlayed int     `json:"games_played"`
	Points      float64 `json:"pts"`
	Rebounds    float64 `json:"reb"`
	Assists     float64 `json:"ast"`
	Minutes     string  `json:"min"`
}

type averagesResponse struct {
	Data []SeasonAverage `json:"data"`
}

// BallDontLie is the secondary stats provider client.
type BallDontLie struct {
	base
}

// NewBallDontLie creates the BallDontLie client.
func NewBallDontLie(deps Deps) *BallDontLie {
	return &BallDontLie{base: newBase(ServiceBallDontLie, ballDontLieBaseURL, deps)}
}

// PlayerAverages fetches a player's season averages. An empty data set is
// a definitive absence.
func (c *BallDontLie) PlayerAverages(ctx context.Context, playerID string) (json.RawMessage, error) {
	path := "/season_averages?player_id=" + url.QueryEscape(playerID)
	raw, err := c.fetch(ctx, path, AveragesKey(playerID).FixtureFile())
	if err != nil {
		return nil, err
	}

	var resp averagesResponse
	if err := json.Unmarshal(raw, &resp); err != nil {
		return nil, fmt.Errorf("%w: averages %s: %v", client.ErrInvalidData, playerID, err)
	}
	if len(resp.Data) == 0 {
		return nil, fmt.Errorf("%w: averages %s", client.ErrNotFound, playerID)
	}
	return raw, nil
}
