// Package provider implements the upstream sports-statistics clients:
// OpenDota (match/player stats), TheSportsDB (team info) and BallDontLie
// (secondary stats). Each client combines the retrying HTTP client, the
// per-service rate limiter and the fixture loader, and validates payloads
// before they reach the cache.
package provider

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/statwatch/stats-proxy/pkg/client"
	"github.com/statwatch/stats-proxy/pkg/fixture"
	"github.com/statwatch/stats-proxy/pkg/ratelimit"
)

// Service identifies an upstream provider. Each service has independent
// rate-limit state and an independent mock/live switch.
type Service string

const (
	// ServiceOpenDota is the match/player stats provider.
	ServiceOpenDota Service = "opendota"

	// ServiceSportsDB is the team-info provider.
	ServiceSportsDB Service = "sportsdb"

	// ServiceBallDontLie is the secondary stats provider.
	ServiceBallDontLie Service = "balldontlie"
)

// String returns the service name.
func (s Service) String() string {
	return string(s)
}

// Services lists all fronted upstreams.
func Services() []Service {
	return []Service{ServiceOpenDota, ServiceSportsDB, ServiceBallDontLie}
}

// Deps carries the shared plumbing injected into every provider client.
type Deps struct {
	HTTP     *client.Client
	Limiter  *ratelimit.Limiter
	Fixtures *fixture.Loader

	// Mock disables live calls for this service; payloads come from
	// fixtures instead.
	Mock bool

	// BaseURL overrides the provider's default endpoint (tests).
	BaseURL string

	Logger zerolog.Logger
}

// base is the common fetch path: fixture replay in mock mode, otherwise
// rate-limit clearance, live call, and optional fixture recording.
type base struct {
	service  Service
	baseURL  string
	http     *client.Client
	limiter  *ratelimit.Limiter
	fixtures *fixture.Loader
	mock     bool
	logger   zerolog.Logger
}

func newBase(service Service, defaultURL string, deps Deps) base {
	url := deps.BaseURL
	if url == "" {
		url = defaultURL
	}
	return base{
		service:  service,
		baseURL:  url,
		http:     deps.HTTP,
		limiter:  deps.Limiter,
		fixtures: deps.Fixtures,
		mock:     deps.Mock,
		logger:   deps.Logger.With().Str("service", string(service)).Logger(),
	}
}

// fetch retrieves one resource, byte-transparently. The fixture name is
// used for replay in mock mode and for recording in write-real mode.
func (b *base) fetch(ctx context.Context, path, fixtureName string) ([]byte, error) {
	if b.mock {
		raw, err := b.fixtures.TryLoad(fixtureName)
		if err != nil {
			if errors.Is(err, fixture.ErrNoFixture) {
				return nil, fmt.Errorf("%w: no fixture %s", client.ErrNotFound, fixtureName)
			}
			return nil, err
		}
		b.logger.Debug().Str("fixture", fixtureName).Msg("Replayed fixture")
		return raw, nil
	}

	if err := b.limiter.Wait(ctx, string(b.service)); err != nil {
		return nil, err
	}

	raw, err := b.http.Get(ctx, b.baseURL+path)
	if err != nil {
		return nil, err
	}

	if b.fixtures != nil && fixtureName != "" {
		if err := b.fixtures.Record(fixtureName, raw); err != nil {
			b.logger.Warn().Err(err).Str("fixture", fixtureName).Msg("Fixture record failed")
		}
	}
	return raw, nil
}
