package server

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/statwatch/stats-proxy/internal/testutil"
	"github.com/statwatch/stats-proxy/pkg/cache"
	"github.com/statwatch/stats-proxy/pkg/client"
	"github.com/statwatch/stats-proxy/pkg/fetch"
	"github.com/statwatch/stats-proxy/pkg/fixture"
	"github.com/statwatch/stats-proxy/pkg/provider"
	"github.com/statwatch/stats-proxy/pkg/ratelimit"
)

type testStack struct {
	server *Server
	mock   *testutil.MockUpstream
	cache  *cache.Service
}

// newTestStack wires the full request path against a mock upstream:
// miniredis cache, unthrottled limiter, real orchestrator and providers.
func newTestStack(t *testing.T) *testStack {
	t.Helper()

	mr := miniredis.RunT(t)
	redisClient := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { redisClient.Close() })

	mock := testutil.NewMockUpstream()
	t.Cleanup(mock.Close)

	logger := zerolog.Nop()
	cacheSvc := cache.NewService(cache.NewRedisBackend(redisClient), fixture.NewLoader(t.TempDir(), false, logger), logger)
	orch := fetch.New(cacheSvc, 5*time.Second, logger)

	limits := make(map[string]ratelimit.Limits)
	for _, svc := range provider.Services() {
		limits[string(svc)] = ratelimit.Limits{MinDelay: 0, Window: time.Second, MaxRequests: 10000}
	}
	limiter := ratelimit.NewLimiter(redisClient, limits, logger)

	deps := provider.Deps{
		HTTP: client.New(client.Config{
			MaxRetries:   2,
			DefaultDelay: 5 * time.Millisecond,
			Timeout:      5 * time.Second,
			UserAgent:    "stats-proxy-test/0.0.0",
		}, logger),
		Limiter:  limiter,
		Fixtures: fixture.NewLoader(t.TempDir(), false, logger),
		BaseURL:  mock.URL() + "/api",
		Logger:   logger,
	}

	srv := New(Deps{
		Cache:        cacheSvc,
		Orchestrator: orch,
		Limiter:      limiter,
		Pool:         fetch.NewPool(fetch.PoolConfig{MaxConcurrency: 2, Timeout: 5 * time.Second}, logger),
		OpenDota:     provider.NewOpenDota(deps),
		SportsDB:     provider.NewSportsDB(deps),
		BallDontLie:  provider.NewBallDontLie(deps),
		Logger:       logger,
	})

	return &testStack{server: srv, mock: mock, cache: cacheSvc}
}

func (ts *testStack) do(method, path, body string) *httptest.ResponseRecorder {
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, path, nil)
	}
	rec := httptest.NewRecorder()
	ts.server.Echo().ServeHTTP(rec, req)
	return rec
}

// pollUntilReady polls an async endpoint until it flips from 202 to 200.
func (ts *testStack) pollUntilReady(t *testing.T, path string) *httptest.ResponseRecorder {
	t.Helper()
	deadline := time.After(2 * time.Second)
	for {
		rec := ts.do(http.MethodGet, path, "")
		if rec.Code != http.StatusAccepted {
			return rec
		}
		select {
		case <-deadline:
			t.Fatalf("%s never left queued state", path)
		case <-time.After(10 * time.Millisecond):
		}
	}
}

func TestServer_Health(t *testing.T) {
	ts := newTestStack(t)
	rec := ts.do(http.MethodGet, "/healthz", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("healthz = %d, want 200", rec.Code)
	}
}

func TestServer_SyncEndpointCachesResult(t *testing.T) {
	ts := newTestStack(t)
	body := `[{"field":"kills","n":100,"sum":800}]`
	ts.mock.SetJSON("/api/players/1/totals", body)

	rec := ts.do(http.MethodGet, "/api/players/1/totals", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("totals = %d: %s", rec.Code, rec.Body)
	}
	if rec.Body.String() != body {
		t.Errorf("totals body = %s", rec.Body)
	}

	// Second request is a cache hit; the upstream sees one call.
	rec = ts.do(http.MethodGet, "/api/players/1/totals", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("second totals = %d", rec.Code)
	}
	if n := ts.mock.RequestCount("/api/players/1/totals"); n != 1 {
		t.Errorf("upstream calls = %d, want 1", n)
	}
}

func TestServer_AsyncQueuedContract(t *testing.T) {
	ts := newTestStack(t)
	body := `{"profile":{"account_id":1,"personaname":"Dendi"}}`
	ts.mock.SetJSON("/api/players/1", body)

	rec := ts.do(http.MethodGet, "/api/players/1", "")
	if rec.Code != http.StatusAccepted {
		t.Fatalf("first lookup = %d, want 202", rec.Code)
	}
	var queued queuedResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &queued); err != nil {
		t.Fatalf("bad queued body: %v", err)
	}
	if queued.Status != "queued" {
		t.Errorf("status = %q, want queued", queued.Status)
	}
	if queued.Signature != "opendota:player:1" {
		t.Errorf("signature = %q, want resource key", queued.Signature)
	}

	rec = ts.pollUntilReady(t, "/api/players/1")
	if rec.Code != http.StatusOK {
		t.Fatalf("poll = %d: %s", rec.Code, rec.Body)
	}
	if rec.Body.String() != body {
		t.Errorf("poll body = %s", rec.Body)
	}
}

func TestServer_AsyncNotFoundSurfaces(t *testing.T) {
	ts := newTestStack(t)
	ts.mock.SetJSON("/api/players/9999", `{"profile":null}`)

	rec := ts.do(http.MethodGet, "/api/players/9999", "")
	if rec.Code != http.StatusAccepted {
		t.Fatalf("first lookup = %d, want 202", rec.Code)
	}

	// Once the background fetch confirms the account does not exist, the
	// next poll gets the mapped 404 instead of staying queued forever.
	rec = ts.pollUntilReady(t, "/api/players/9999")
	if rec.Code != http.StatusNotFound {
		t.Fatalf("poll after failed fetch = %d, want 404: %s", rec.Code, rec.Body)
	}
	if !strings.Contains(rec.Body.String(), `"error"`) {
		t.Errorf("404 body = %s, want error envelope", rec.Body)
	}

	// The failure is consumed; the contract starts over.
	if rec := ts.do(http.MethodGet, "/api/players/9999", ""); rec.Code != http.StatusAccepted {
		t.Errorf("lookup after surfaced failure = %d, want 202", rec.Code)
	}
}

func TestServer_ForceRefetch(t *testing.T) {
	ts := newTestStack(t)
	ts.mock.SetJSON("/api/players/1", `{"profile":{"account_id":1},"rank_tier":10}`)

	if rec := ts.pollUntilReady(t, "/api/players/1"); rec.Code != http.StatusOK {
		t.Fatalf("seed = %d", rec.Code)
	}

	// Upstream data changed; a plain GET keeps serving the cached value.
	updated := `{"profile":{"account_id":1},"rank_tier":20}`
	ts.mock.SetJSON("/api/players/1", updated)
	if rec := ts.do(http.MethodGet, "/api/players/1", ""); !strings.Contains(rec.Body.String(), `"rank_tier":10`) {
		t.Fatalf("expected cached value, got %s", rec.Body)
	}

	rec := ts.do(http.MethodPost, "/api/players/1", `{"force":true}`)
	if rec.Code != http.StatusAccepted {
		t.Fatalf("force = %d, want 202", rec.Code)
	}

	rec = ts.pollUntilReady(t, "/api/players/1")
	if rec.Body.String() != updated {
		t.Errorf("after force = %s, want updated value", rec.Body)
	}
}

func TestServer_ErrorMapping(t *testing.T) {
	tests := []struct {
		name       string
		setup      func(ts *testStack)
		path       string
		wantStatus int
	}{
		{
			name: "definitive absence maps to 404",
			setup: func(ts *testStack) {
				ts.mock.SetJSON("/api/season_averages", `{"data":[]}`)
			},
			path:       "/api/averages/0",
			wantStatus: http.StatusNotFound,
		},
		{
			name: "invalid upstream payload maps to 422",
			setup: func(ts *testStack) {
				ts.mock.SetJSON("/api/heroes", `[]`)
			},
			path:       "/api/heroes",
			wantStatus: http.StatusUnprocessableEntity,
		},
		{
			name: "upstream throttling maps to 429",
			setup: func(ts *testStack) {
				ts.mock.SetResponse("/api/players/1/totals", testutil.NewRateLimitResponse(0))
			},
			path:       "/api/players/1/totals",
			wantStatus: http.StatusTooManyRequests,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ts := newTestStack(t)
			tt.setup(ts)

			rec := ts.do(http.MethodGet, tt.path, "")
			if rec.Code != tt.wantStatus {
				t.Fatalf("status = %d, want %d: %s", rec.Code, tt.wantStatus, rec.Body)
			}

			var body map[string]string
			if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
				t.Fatalf("error body not JSON: %v", err)
			}
			if body["error"] == "" {
				t.Error("error body missing error field")
			}
			if tt.wantStatus == http.StatusTooManyRequests && rec.Header().Get("Retry-After") == "" {
				t.Error("429 without Retry-After header")
			}
		})
	}
}

func TestServer_DashboardConfigs(t *testing.T) {
	ts := newTestStack(t)
	payload := `{"layout":"wide","widgets":["kda","winrate"]}`

	if rec := ts.do(http.MethodGet, "/api/configs/abc", ""); rec.Code != http.StatusNotFound {
		t.Fatalf("GET before PUT = %d, want 404", rec.Code)
	}

	rec := ts.do(http.MethodPut, "/api/configs/abc", payload)
	if rec.Code != http.StatusOK {
		t.Fatalf("PUT = %d: %s", rec.Code, rec.Body)
	}

	rec = ts.do(http.MethodGet, "/api/configs/abc", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("GET = %d", rec.Code)
	}
	if rec.Body.String() != payload {
		t.Errorf("GET body = %s", rec.Body)
	}

	if rec := ts.do(http.MethodPut, "/api/configs/abc", `{broken`); rec.Code != http.StatusBadRequest {
		t.Errorf("PUT invalid JSON = %d, want 400", rec.Code)
	}
}

func TestServer_SharedConfigs(t *testing.T) {
	ts := newTestStack(t)
	payload := `{"layout":"compact"}`

	if rec := ts.do(http.MethodPut, "/api/configs/share/tourney42", payload); rec.Code != http.StatusOK {
		t.Fatalf("share PUT = %d", rec.Code)
	}
	rec := ts.do(http.MethodGet, "/api/configs/share/tourney42", "")
	if rec.Code != http.StatusOK || rec.Body.String() != payload {
		t.Errorf("share GET = %d %s", rec.Code, rec.Body)
	}

	// Shared and private namespaces must not collide.
	if rec := ts.do(http.MethodGet, "/api/configs/tourney42", ""); rec.Code != http.StatusNotFound {
		t.Errorf("private GET of shared key = %d, want 404", rec.Code)
	}
}

func TestServer_AdminInvalidate(t *testing.T) {
	ts := newTestStack(t)
	ts.mock.SetJSON("/api/players/1/totals", `[{"field":"kills","n":1,"sum":2}]`)

	if rec := ts.do(http.MethodGet, "/api/players/1/totals", ""); rec.Code != http.StatusOK {
		t.Fatalf("seed = %d", rec.Code)
	}

	rec := ts.do(http.MethodPost, "/api/admin/invalidate", `{"items":[
		{"type":"player","id":"1"},
		{"type":"wizard","id":"1"},
		{"id":"no-type"},
		{"key":"opendota:player:1"}
	]}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("invalidate = %d: %s", rec.Code, rec.Body)
	}

	var resp struct {
		Invalidated []string `json:"invalidated"`
		Errors      []string `json:"errors"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("bad response: %v", err)
	}

	// The player item expands to the profile plus four facets.
	if len(resp.Invalidated) != 5 {
		t.Errorf("invalidated = %v, want 5 keys", resp.Invalidated)
	}
	// The other three items fail independently without killing the batch.
	if len(resp.Errors) != 3 {
		t.Errorf("errors = %v, want 3", resp.Errors)
	}

	// The entry is really gone: the next read goes back upstream.
	if rec := ts.do(http.MethodGet, "/api/players/1/totals", ""); rec.Code != http.StatusOK {
		t.Fatalf("refetch = %d", rec.Code)
	}
	if n := ts.mock.RequestCount("/api/players/1/totals"); n != 2 {
		t.Errorf("upstream calls = %d, want 2 after invalidation", n)
	}
}

func TestServer_AdminInvalidateShareConfig(t *testing.T) {
	ts := newTestStack(t)

	if rec := ts.do(http.MethodPut, "/api/configs/share/abc", `{"layout":"wide"}`); rec.Code != http.StatusOK {
		t.Fatalf("share put = %d: %s", rec.Code, rec.Body)
	}

	rec := ts.do(http.MethodPost, "/api/admin/invalidate", `{"items":[{"type":"share","id":"abc"}]}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("invalidate = %d: %s", rec.Code, rec.Body)
	}

	var resp struct {
		Invalidated []string `json:"invalidated"`
		Errors      []string `json:"errors"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("bad response: %v", err)
	}
	if len(resp.Invalidated) != 1 || resp.Invalidated[0] != "config:share:abc" {
		t.Errorf("invalidated = %v, want [config:share:abc]", resp.Invalidated)
	}
	if len(resp.Errors) != 0 {
		t.Errorf("errors = %v, want none", resp.Errors)
	}

	if rec := ts.do(http.MethodGet, "/api/configs/share/abc", ""); rec.Code != http.StatusNotFound {
		t.Errorf("share get after invalidate = %d, want 404", rec.Code)
	}
}

func TestServer_AdminInvalidateEmptyBatch(t *testing.T) {
	ts := newTestStack(t)
	if rec := ts.do(http.MethodPost, "/api/admin/invalidate", `{"items":[]}`); rec.Code != http.StatusBadRequest {
		t.Errorf("empty batch = %d, want 400", rec.Code)
	}
}

func TestServer_AdminStats(t *testing.T) {
	ts := newTestStack(t)
	rec := ts.do(http.MethodGet, "/api/admin/stats", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("stats = %d", rec.Code)
	}

	var stats map[string]json.RawMessage
	if err := json.Unmarshal(rec.Body.Bytes(), &stats); err != nil {
		t.Fatalf("bad stats body: %v", err)
	}
	for _, section := range []string{"cache", "queue", "rate_limits"} {
		if _, ok := stats[section]; !ok {
			t.Errorf("stats missing %q section", section)
		}
	}
}

func TestServer_AdminClear(t *testing.T) {
	ts := newTestStack(t)
	ts.mock.SetJSON("/api/heroes", `[{"id":1,"localized_name":"Anti-Mage"}]`)

	if rec := ts.do(http.MethodGet, "/api/heroes", ""); rec.Code != http.StatusOK {
		t.Fatalf("seed = %d", rec.Code)
	}
	if rec := ts.do(http.MethodPost, "/api/admin/clear", ""); rec.Code != http.StatusOK {
		t.Fatalf("clear = %d", rec.Code)
	}

	ts.do(http.MethodGet, "/api/heroes", "")
	if n := ts.mock.RequestCount("/api/heroes"); n != 2 {
		t.Errorf("upstream calls = %d, want 2 after clear", n)
	}
}

func TestServer_AdminImport(t *testing.T) {
	ts := newTestStack(t)
	ts.mock.SetJSON("/api/searchteams.php", `{"teams":[{"idTeam":"134867","strTeam":"Lakers"}]}`)

	rec := ts.do(http.MethodPost, "/api/admin/import", `{"teams":["Lakers","Celtics"]}`)
	if rec.Code != http.StatusAccepted {
		t.Fatalf("import = %d: %s", rec.Code, rec.Body)
	}

	// The import runs in the background; the team lookup eventually
	// serves from cache without further upstream calls.
	rec = ts.pollUntilReady(t, "/api/teams/Lakers")
	if rec.Code != http.StatusOK {
		t.Fatalf("team after import = %d", rec.Code)
	}

	if rec := ts.do(http.MethodPost, "/api/admin/import", `{"teams":[]}`); rec.Code != http.StatusBadRequest {
		t.Errorf("empty import = %d, want 400", rec.Code)
	}
}

func TestServer_MetricsEndpoint(t *testing.T) {
	ts := newTestStack(t)
	rec := ts.do(http.MethodGet, "/metrics", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("metrics = %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "statproxy_") {
		t.Error("metrics output missing statproxy_ series")
	}
}
