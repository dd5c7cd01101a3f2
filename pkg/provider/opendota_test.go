package provider

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/statwatch/stats-proxy/internal/testutil"
	"github.com/statwatch/stats-proxy/pkg/client"
	"github.com/statwatch/stats-proxy/pkg/fixture"
	"github.com/statwatch/stats-proxy/pkg/ratelimit"
)

// liveDeps wires a provider client against the mock upstream with no
// throttling, so tests exercise the live fetch path at full speed.
func liveDeps(t *testing.T, mock *testutil.MockUpstream) Deps {
	t.Helper()

	limits := make(map[string]ratelimit.Limits)
	for _, svc := range Services() {
		limits[string(svc)] = ratelimit.Limits{MinDelay: 0, Window: time.Second, MaxRequests: 10000}
	}

	return Deps{
		HTTP: client.New(client.Config{
			MaxRetries:   2,
			DefaultDelay: 5 * time.Millisecond,
			Timeout:      5 * time.Second,
			UserAgent:    "stats-proxy-test/0.0.0",
		}, zerolog.Nop()),
		Limiter:  ratelimit.NewLimiter(nil, limits, zerolog.Nop()),
		Fixtures: fixture.NewLoader(t.TempDir(), false, zerolog.Nop()),
		BaseURL:  mock.URL() + "/api",
		Logger:   zerolog.Nop(),
	}
}

func TestOpenDota_Player(t *testing.T) {
	mock := testutil.NewMockUpstream()
	defer mock.Close()
	body := `{"profile":{"account_id":2345,"personaname":"Dendi"},"rank_tier":80}`
	mock.SetJSON("/api/players/2345", body)

	raw, err := NewOpenDota(liveDeps(t, mock)).Player(context.Background(), "2345")
	if err != nil {
		t.Fatalf("Player failed: %v", err)
	}
	if string(raw) != body {
		t.Errorf("Player = %s", raw)
	}
}

func TestOpenDota_PlayerUnknownAccount(t *testing.T) {
	mock := testutil.NewMockUpstream()
	defer mock.Close()

	// OpenDota answers unknown accounts with 200 and no profile block.
	mock.SetJSON("/api/players/999", `{"rank_tier":null,"profile":null}`)

	_, err := NewOpenDota(liveDeps(t, mock)).Player(context.Background(), "999")
	if !errors.Is(err, client.ErrNotFound) {
		t.Errorf("Player = %v, want ErrNotFound", err)
	}
}

func TestOpenDota_PlayerInvalidPayload(t *testing.T) {
	mock := testutil.NewMockUpstream()
	defer mock.Close()
	mock.SetJSON("/api/players/1", `<html>maintenance</html>`)

	_, err := NewOpenDota(liveDeps(t, mock)).Player(context.Background(), "1")
	if !errors.Is(err, client.ErrInvalidData) {
		t.Errorf("Player = %v, want ErrInvalidData", err)
	}
}

func TestOpenDota_PlayerFacets(t *testing.T) {
	mock := testutil.NewMockUpstream()
	defer mock.Close()
	mock.SetJSON("/api/players/1/totals", `[{"field":"kills","n":100,"sum":800}]`)
	mock.SetJSON("/api/players/1/counts", `{"win":{"0":{"games":10,"win":6}}}`)
	mock.SetJSON("/api/players/1/heroes", `[{"hero_id":"14","games":50,"win":30}]`)
	mock.SetJSON("/api/players/1/matches", `[{"match_id":7,"hero_id":14,"kills":12}]`)

	od := NewOpenDota(liveDeps(t, mock))
	ctx := context.Background()

	calls := []struct {
		name string
		fn   func() (interface{}, error)
	}{
		{"totals", func() (interface{}, error) { return od.PlayerTotals(ctx, "1") }},
		{"counts", func() (interface{}, error) { return od.PlayerCounts(ctx, "1") }},
		{"heroes", func() (interface{}, error) { return od.PlayerHeroes(ctx, "1") }},
		{"matches", func() (interface{}, error) { return od.PlayerMatches(ctx, "1") }},
	}
	for _, call := range calls {
		if _, err := call.fn(); err != nil {
			t.Errorf("%s failed: %v", call.name, err)
		}
	}
}

func TestOpenDota_FacetInvalidPayload(t *testing.T) {
	mock := testutil.NewMockUpstream()
	defer mock.Close()
	mock.SetJSON("/api/players/1/totals", `{"not":"a list"}`)

	_, err := NewOpenDota(liveDeps(t, mock)).PlayerTotals(context.Background(), "1")
	if !errors.Is(err, client.ErrInvalidData) {
		t.Errorf("PlayerTotals = %v, want ErrInvalidData", err)
	}
}

func TestOpenDota_Heroes(t *testing.T) {
	mock := testutil.NewMockUpstream()
	defer mock.Close()
	mock.SetJSON("/api/heroes", `[{"id":1,"name":"npc_dota_hero_antimage","localized_name":"Anti-Mage"}]`)

	raw, err := NewOpenDota(liveDeps(t, mock)).Heroes(context.Background())
	if err != nil {
		t.Fatalf("Heroes failed: %v", err)
	}
	if len(raw) == 0 {
		t.Error("Heroes returned empty payload")
	}
}

func TestOpenDota_HeroesEmptyList(t *testing.T) {
	mock := testutil.NewMockUpstream()
	defer mock.Close()
	mock.SetJSON("/api/heroes", `[]`)

	_, err := NewOpenDota(liveDeps(t, mock)).Heroes(context.Background())
	if !errors.Is(err, client.ErrInvalidData) {
		t.Errorf("Heroes = %v, want ErrInvalidData", err)
	}
}

func TestOpenDota_Items(t *testing.T) {
	mock := testutil.NewMockUpstream()
	defer mock.Close()
	mock.SetJSON("/api/constants/items", `{"blink":{"id":1,"cost":2250}}`)

	if _, err := NewOpenDota(liveDeps(t, mock)).Items(context.Background()); err != nil {
		t.Fatalf("Items failed: %v", err)
	}
}

func TestOpenDota_MockModeReplay(t *testing.T) {
	deps := liveDeps(t, testutil.NewMockUpstream())
	deps.Mock = true
	body := `{"profile":{"account_id":2345,"personaname":"Dendi"}}`

	recorder := fixture.NewLoader(deps.Fixtures.Dir(), true, zerolog.Nop())
	if err := recorder.Record(PlayerKey("2345").FixtureFile(), []byte(body)); err != nil {
		t.Fatalf("seed fixture: %v", err)
	}

	raw, err := NewOpenDota(deps).Player(context.Background(), "2345")
	if err != nil {
		t.Fatalf("Player in mock mode failed: %v", err)
	}
	if string(raw) != body {
		t.Errorf("Player = %s, want fixture body", raw)
	}
}

func TestOpenDota_MockModeMissingFixture(t *testing.T) {
	deps := liveDeps(t, testutil.NewMockUpstream())
	deps.Mock = true

	_, err := NewOpenDota(deps).Player(context.Background(), "404")
	if !errors.Is(err, client.ErrNotFound) {
		t.Errorf("Player without fixture = %v, want ErrNotFound", err)
	}
}

func TestOpenDota_RecordsLiveResponses(t *testing.T) {
	mock := testutil.NewMockUpstream()
	defer mock.Close()
	body := `{"profile":{"account_id":1}}`
	mock.SetJSON("/api/players/1", body)

	deps := liveDeps(t, mock)
	deps.Fixtures = fixture.NewLoader(t.TempDir(), true, zerolog.Nop())

	if _, err := NewOpenDota(deps).Player(context.Background(), "1"); err != nil {
		t.Fatalf("Player failed: %v", err)
	}

	recorded, err := deps.Fixtures.TryLoad(PlayerKey("1").FixtureFile())
	if err != nil {
		t.Fatalf("live response not recorded: %v", err)
	}
	if string(recorded) != body {
		t.Errorf("recorded fixture = %s, want %s", recorded, body)
	}
}
