package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"mercator-hq/limitr/internal/clocktest"
	"mercator-hq/limitr/pkg/config"
	"mercator-hq/limitr/pkg/journal"
	"mercator-hq/limitr/pkg/limits"
	"mercator-hq/limitr/pkg/security/auth"
	"mercator-hq/limitr/pkg/server/middleware"
	"mercator-hq/limitr/pkg/telemetry/health"
	"mercator-hq/limitr/pkg/telemetry/metrics"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func testConfig() *config.Config {
	cfg := config.NewDefaultConfig()
	cfg.Server.ListenAddress = "127.0.0.1:0"
	cfg.Server.ShutdownTimeout = 2 * time.Second
	cfg.Limiters = map[string]config.LimiterConfig{
		"api":   {Algorithm: "token_bucket", Capacity: 3, Rate: 1},
		"login": {Algorithm: "sliding_window", Limit: 2, Window: 10 * time.Second},
		"guard": {Algorithm: "fixed_window", Limit: 1, Window: time.Minute},
	}
	return cfg
}

type fixture struct {
	server  *Server
	handler http.Handler
	journal *journal.MemoryStore
	metrics *metrics.Collector
}

func newFixture(t *testing.T, mutate func(*config.Config)) *fixture {
	t.Helper()
	cfg := testConfig()
	if mutate != nil {
		mutate(cfg)
	}

	store := journal.NewMemoryStore(100)
	collector := metrics.NewCollector(&cfg.Telemetry.Metrics, prometheus.NewRegistry())
	mgr, err := limits.NewManager(cfg.Limiters,
		limits.WithClock(clocktest.NewManual(time.Time{})),
		limits.WithJournal(store),
		limits.WithMetrics(collector),
		limits.WithLogger(discardLogger()),
	)
	if err != nil {
		t.Fatalf("NewManager: %v", err)
	}

	opts := Options{
		Config:    cfg,
		Manager:   mgr,
		Journal:   store,
		Metrics:   collector,
		Logger:    discardLogger(),
		BuildInfo: BuildInfo{Version: "1.2.3", Commit: "abc123"},
	}
	if cfg.Server.Auth.Enabled {
		opts.Auth, err = auth.New(&cfg.Server.Auth, func(string) string { return "" })
		if err != nil {
			t.Fatalf("auth.New: %v", err)
		}
	}

	srv, err := NewServer(opts)
	if err != nil {
		t.Fatalf("NewServer: %v", err)
	}
	return &fixture{server: srv, handler: srv.Handler(), journal: store, metrics: collector}
}

func (f *fixture) do(t *testing.T, method, target string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, target, nil)
	w := httptest.NewRecorder()
	f.handler.ServeHTTP(w, req)
	return w
}

func (f *fixture) doWithKey(t *testing.T, method, target, key string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, target, nil)
	if key != "" {
		req.Header.Set("Authorization", "Bearer "+key)
	}
	w := httptest.NewRecorder()
	f.handler.ServeHTTP(w, req)
	return w
}

func decodeJSON[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.Unmarshal(w.Body.Bytes(), &v); err != nil {
		t.Fatalf("decode %q: %v", w.Body.String(), err)
	}
	return v
}

// ==================== Construction ====================

func TestNewServer_Validation(t *testing.T) {
	mgr, err := limits.NewManager(testConfig().Limiters)
	if err != nil {
		t.Fatalf("NewManager: %v", err)
	}

	unknownGuard := testConfig()
	unknownGuard.Server.Limiter = "missing"

	unknownClientLimiter, err := auth.NewKeyValidator(&config.AuthConfig{
		Enabled: true,
		Keys:    []config.APIKeyConfig{{Client: "a", Key: "k", Limiter: "missing"}},
	}, nil)
	if err != nil {
		t.Fatalf("NewKeyValidator: %v", err)
	}

	tests := []struct {
		name    string
		opts    Options
		wantErr bool
	}{
		{name: "valid", opts: Options{Config: testConfig(), Manager: mgr}},
		{name: "nil config", opts: Options{Manager: mgr}, wantErr: true},
		{name: "nil manager", opts: Options{Config: testConfig()}, wantErr: true},
		{name: "unknown guard limiter", opts: Options{Config: unknownGuard, Manager: mgr}, wantErr: true},
		{name: "unknown client limiter", opts: Options{Config: testConfig(), Manager: mgr, Auth: unknownClientLimiter}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv, err := NewServer(tt.opts)
			if (err != nil) != tt.wantErr {
				t.Fatalf("NewServer() error = %v, wantErr %v", err, tt.wantErr)
			}
			if !tt.wantErr && srv.IsRunning() {
				t.Error("new server reports running")
			}
		})
	}
}

// ==================== Consume ====================

func TestConsume_Allowed(t *testing.T) {
	f := newFixture(t, nil)

	req := httptest.NewRequest(http.MethodPost, "/v1/limiters/api/consume", nil)
	req.Header.Set(middleware.RequestIDHeader, "req-42")
	w := httptest.NewRecorder()
	f.handler.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", w.Code, w.Body.String())
	}
	if got := w.Header().Get(middleware.HeaderLimit); got != "3" {
		t.Errorf("limit header = %q, want 3", got)
	}
	if got := w.Header().Get(middleware.HeaderRemaining); got != "2" {
		t.Errorf("remaining header = %q, want 2", got)
	}
	if got := w.Header().Get(middleware.HeaderRetryAfter); got != "" {
		t.Errorf("Retry-After on allowed response: %q", got)
	}

	body := decodeJSON[DecisionResponse](t, w)
	if !body.Allowed || body.Limiter != "api" || body.Algorithm != "token_bucket" || body.Cost != 1 {
		t.Errorf("unexpected body %+v", body)
	}
	if body.RequestID != "req-42" {
		t.Errorf("request_id = %q, want req-42", body.RequestID)
	}
}

func TestConsume_DeniedWithRetryAfter(t *testing.T) {
	f := newFixture(t, nil)

	if w := f.do(t, http.MethodPost, "/v1/limiters/api/consume"); w.Code != http.StatusOK {
		t.Fatalf("first consume status = %d", w.Code)
	}

	// 2 tokens left, 3 requested: one token short at 1 token/s.
	w := f.do(t, http.MethodPost, "/v1/limiters/api/consume?cost=3")
	if w.Code != http.StatusTooManyRequests {
		t.Fatalf("status = %d, want 429", w.Code)
	}
	if got := w.Header().Get(middleware.HeaderRetryAfter); got != "1" {
		t.Errorf("Retry-After = %q, want 1", got)
	}

	body := decodeJSON[DecisionResponse](t, w)
	if body.Allowed || body.Remaining != 2 || body.RetryAfterSeconds != 1 {
		t.Errorf("unexpected body %+v", body)
	}
}

func TestConsume_Errors(t *testing.T) {
	tests := []struct {
		name     string
		target   string
		wantCode int
		wantErr  string
	}{
		{name: "unknown limiter", target: "/v1/limiters/nope/consume", wantCode: http.StatusNotFound, wantErr: "unknown_limiter"},
		{name: "non-numeric cost", target: "/v1/limiters/api/consume?cost=abc", wantCode: http.StatusBadRequest, wantErr: "invalid_cost"},
		{name: "negative cost", target: "/v1/limiters/api/consume?cost=-1", wantCode: http.StatusBadRequest, wantErr: "invalid_cost"},
		{name: "unit-cost algorithm", target: "/v1/limiters/login/consume?cost=2", wantCode: http.StatusBadRequest, wantErr: "cost_unsupported"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t, nil)
			w := f.do(t, http.MethodPost, tt.target)
			if w.Code != tt.wantCode {
				t.Fatalf("status = %d, want %d", w.Code, tt.wantCode)
			}
			body := decodeJSON[middleware.ErrorBody](t, w)
			if body.Error.Code != tt.wantErr {
				t.Errorf("error code = %q, want %q", body.Error.Code, tt.wantErr)
			}
		})
	}
}

func TestConsume_MethodNotAllowed(t *testing.T) {
	f := newFixture(t, nil)
	if w := f.do(t, http.MethodGet, "/v1/limiters/api/consume"); w.Code != http.StatusMethodNotAllowed {
		t.Errorf("status = %d, want 405", w.Code)
	}
}

// ==================== Status ====================

func TestListLimiters(t *testing.T) {
	f := newFixture(t, nil)
	f.do(t, http.MethodPost, "/v1/limiters/login/consume")

	w := f.do(t, http.MethodGet, "/v1/limiters")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}

	body := decodeJSON[ListResponse](t, w)
	var names []string
	for _, l := range body.Limiters {
		names = append(names, l.Name)
	}
	if got := strings.Join(names, ","); got != "api,guard,login" {
		t.Fatalf("names = %s, want sorted api,guard,login", got)
	}

	login := body.Limiters[2]
	if login.Window != "10s" || login.Limit != 2 || login.Remaining != 1 || login.Rate != 0 {
		t.Errorf("login status = %+v", login)
	}
	api := body.Limiters[0]
	if api.Rate != 1 || api.Window != "" {
		t.Errorf("api status = %+v", api)
	}
}

func TestLimiterStatus(t *testing.T) {
	f := newFixture(t, nil)

	w := f.do(t, http.MethodGet, "/v1/limiters/api")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	if body := decodeJSON[StatusResponse](t, w); body.Name != "api" || body.Remaining != 3 {
		t.Errorf("body = %+v", body)
	}

	if w := f.do(t, http.MethodGet, "/v1/limiters/missing"); w.Code != http.StatusNotFound {
		t.Errorf("unknown limiter status = %d, want 404", w.Code)
	}
}

// ==================== Journal ====================

func TestJournal(t *testing.T) {
	f := newFixture(t, nil)
	for range 3 {
		f.do(t, http.MethodPost, "/v1/limiters/login/consume")
	}
	f.do(t, http.MethodPost, "/v1/limiters/api/consume")

	tests := []struct {
		name      string
		query     string
		wantCount int
	}{
		{name: "all", query: "", wantCount: 4},
		{name: "by limiter", query: "?limiter=login", wantCount: 3},
		{name: "denied only", query: "?allowed=false", wantCount: 1},
		{name: "limit", query: "?limit=2", wantCount: 2},
		{name: "limit above max is capped", query: "?limit=5000", wantCount: 4},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := f.do(t, http.MethodGet, "/v1/journal"+tt.query)
			if w.Code != http.StatusOK {
				t.Fatalf("status = %d, body %s", w.Code, w.Body.String())
			}
			body := decodeJSON[JournalResponse](t, w)
			if body.Backend != "memory" {
				t.Errorf("backend = %q", body.Backend)
			}
			if len(body.Records) != tt.wantCount {
				t.Errorf("records = %d, want %d", len(body.Records), tt.wantCount)
			}
		})
	}
}

func TestJournal_TimeRange(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	for _, ts := range []time.Time{
		time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC),
		time.Date(2020, 1, 3, 0, 0, 0, 0, time.UTC),
	} {
		if err := f.journal.Append(ctx, &journal.Record{Limiter: "api", Allowed: true, Timestamp: ts}); err != nil {
			t.Fatal(err)
		}
	}

	tests := []struct {
		name      string
		query     string
		wantCount int
	}{
		{name: "until", query: "?until=2020-01-02T00:00:00Z", wantCount: 1},
		{name: "since", query: "?since=2020-01-02T00:00:00Z", wantCount: 1},
		{name: "until is exclusive", query: "?until=2020-01-03T00:00:00Z", wantCount: 1},
		{name: "empty range", query: "?since=2020-01-02T00:00:00Z&until=2020-01-02T12:00:00Z", wantCount: 0},
		{name: "both records", query: "?since=2020-01-01T00:00:00Z&until=2020-01-04T00:00:00Z", wantCount: 2},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := f.do(t, http.MethodGet, "/v1/journal"+tt.query)
			if w.Code != http.StatusOK {
				t.Fatalf("status = %d, body %s", w.Code, w.Body.String())
			}
			if got := len(decodeJSON[JournalResponse](t, w).Records); got != tt.wantCount {
				t.Errorf("records = %d, want %d", got, tt.wantCount)
			}
		})
	}
}

func TestJournal_InvalidQuery(t *testing.T) {
	f := newFixture(t, nil)
	for _, q := range []string{"?allowed=maybe", "?limit=0", "?limit=x", "?since=yesterday", "?until=tomorrow"} {
		if w := f.do(t, http.MethodGet, "/v1/journal"+q); w.Code != http.StatusBadRequest {
			t.Errorf("%s: status = %d, want 400", q, w.Code)
		}
	}
}

func TestJournal_Disabled(t *testing.T) {
	cfg := testConfig()
	mgr, err := limits.NewManager(cfg.Limiters)
	if err != nil {
		t.Fatalf("NewManager: %v", err)
	}
	srv, err := NewServer(Options{Config: cfg, Manager: mgr, Logger: discardLogger()})
	if err != nil {
		t.Fatalf("NewServer: %v", err)
	}

	w := httptest.NewRecorder()
	srv.Handler().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/v1/journal", nil))
	if w.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", w.Code)
	}
	if body := decodeJSON[middleware.ErrorBody](t, w); body.Error.Code != "journal_disabled" {
		t.Errorf("error code = %q", body.Error.Code)
	}
}

func TestJournal_QueryFailure(t *testing.T) {
	f := newFixture(t, nil)
	if err := f.journal.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if w := f.do(t, http.MethodGet, "/v1/journal"); w.Code != http.StatusServiceUnavailable {
		t.Errorf("status = %d, want 503", w.Code)
	}
}

// ==================== Logging ====================

func TestAccessLog_SingleComponent(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))

	f := newFixture(t, nil)
	srv, err := NewServer(Options{Config: testConfig(), Manager: f.server.manager, Logger: logger})
	if err != nil {
		t.Fatalf("NewServer: %v", err)
	}
	srv.Handler().ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/v1/limiters", nil))

	var completed bool
	for _, line := range strings.Split(strings.TrimSpace(buf.String()), "\n") {
		if n := strings.Count(line, `"component":`); n != 1 {
			t.Errorf("log line has %d component keys: %s", n, line)
		}
		var entry map[string]any
		if err := json.Unmarshal([]byte(line), &entry); err != nil {
			t.Fatalf("decode %q: %v", line, err)
		}
		if entry["msg"] == "request completed" {
			completed = true
			if entry["component"] != "server.http" {
				t.Errorf("access log component = %v, want server.http", entry["component"])
			}
		}
	}
	if !completed {
		t.Errorf("no access log line in:\n%s", buf.String())
	}
}

// ==================== Guard limiter ====================

func TestGuardLimiter(t *testing.T) {
	f := newFixture(t, func(cfg *config.Config) { cfg.Server.Limiter = "guard" })

	if w := f.do(t, http.MethodGet, "/v1/limiters"); w.Code != http.StatusOK {
		t.Fatalf("first request status = %d", w.Code)
	}

	w := f.do(t, http.MethodGet, "/v1/limiters/api")
	if w.Code != http.StatusTooManyRequests {
		t.Fatalf("second request status = %d, want 429", w.Code)
	}
	if got := w.Header().Get(middleware.HeaderRetryAfter); got != "60" {
		t.Errorf("Retry-After = %q, want 60", got)
	}

	// Operational endpoints are not guarded.
	if w := f.do(t, http.MethodGet, "/health"); w.Code != http.StatusOK {
		t.Errorf("health status = %d, want 200", w.Code)
	}
}

// ==================== Authentication ====================

func authConfig(cfg *config.Config) {
	cfg.Server.Auth = config.AuthConfig{
		Enabled: true,
		Keys: []config.APIKeyConfig{
			{Client: "mobile", Key: "sk-mobile", Limiter: "guard"},
			{Client: "web", Key: "sk-web"},
		},
	}
}

func TestAuth_RejectsMissingAndUnknownKeys(t *testing.T) {
	f := newFixture(t, authConfig)

	for _, key := range []string{"", "sk-unknown"} {
		w := f.doWithKey(t, http.MethodPost, "/v1/limiters/api/consume", key)
		if w.Code != http.StatusUnauthorized {
			t.Errorf("key %q: status = %d, want 401", key, w.Code)
		}
		body := decodeJSON[middleware.ErrorBody](t, w)
		if body.Error.Code != "unauthorized" {
			t.Errorf("key %q: code = %q", key, body.Error.Code)
		}
	}

	// Rejected requests never reach the limiter.
	st, _ := f.server.manager.Status("api")
	if st.Remaining != 3 {
		t.Errorf("api remaining = %d, want 3", st.Remaining)
	}

	if w := f.doWithKey(t, http.MethodGet, "/health", ""); w.Code != http.StatusOK {
		t.Errorf("health status = %d, want 200", w.Code)
	}
}

func TestAuth_ClientLimiter(t *testing.T) {
	f := newFixture(t, authConfig)

	if w := f.doWithKey(t, http.MethodPost, "/v1/limiters/api/consume", "sk-mobile"); w.Code != http.StatusOK {
		t.Fatalf("first mobile request status = %d", w.Code)
	}

	w := f.doWithKey(t, http.MethodPost, "/v1/limiters/api/consume", "sk-mobile")
	if w.Code != http.StatusTooManyRequests {
		t.Fatalf("second mobile request status = %d, want 429", w.Code)
	}
	if got := w.Header().Get(middleware.HeaderRetryAfter); got != "60" {
		t.Errorf("Retry-After = %q, want 60", got)
	}

	// A client without its own limiter is only subject to the one it asks about.
	for i := 0; i < 2; i++ {
		if w := f.doWithKey(t, http.MethodPost, "/v1/limiters/api/consume", "sk-web"); w.Code != http.StatusOK {
			t.Fatalf("web request %d status = %d", i, w.Code)
		}
	}

	st, _ := f.server.manager.Status("api")
	if st.Remaining != 0 {
		t.Errorf("api remaining = %d, want 0", st.Remaining)
	}
}

const testJWTSecret = "0123456789abcdef0123456789abcdef"

func jwtConfig(cfg *config.Config) {
	authConfig(cfg)
	cfg.Server.Auth.JWT = config.JWTConfig{
		Enabled: true,
		Secret:  testJWTSecret,
		Issuer:  "issuer.test",
		Limiter: "login",
	}
}

func TestAuth_JWT(t *testing.T) {
	f := newFixture(t, jwtConfig)

	issuer, err := auth.NewJWTValidator(&config.JWTConfig{Secret: testJWTSecret, Issuer: "issuer.test"}, nil)
	if err != nil {
		t.Fatalf("NewJWTValidator: %v", err)
	}
	token, err := issuer.Issue("batch-worker", time.Hour)
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}

	// login allows two requests per window for every token holder.
	codes := make([]int, 0, 3)
	for i := 0; i < 3; i++ {
		codes = append(codes, f.doWithKey(t, http.MethodPost, "/v1/limiters/api/consume", token).Code)
	}
	if codes[0] != http.StatusOK || codes[1] != http.StatusOK || codes[2] != http.StatusTooManyRequests {
		t.Errorf("token request codes = %v, want [200 200 429]", codes)
	}

	// API keys keep working next to tokens.
	if w := f.doWithKey(t, http.MethodGet, "/v1/limiters", "sk-web"); w.Code != http.StatusOK {
		t.Errorf("api key status = %d, want 200", w.Code)
	}

	other, err := auth.NewJWTValidator(&config.JWTConfig{Secret: testJWTSecret, Issuer: "someone-else"}, nil)
	if err != nil {
		t.Fatal(err)
	}
	foreign, err := other.Issue("batch-worker", time.Hour)
	if err != nil {
		t.Fatal(err)
	}
	if w := f.doWithKey(t, http.MethodGet, "/v1/limiters", foreign); w.Code != http.StatusUnauthorized {
		t.Errorf("foreign issuer status = %d, want 401", w.Code)
	}
}

// ==================== Operational endpoints ====================

func TestHealthEndpoint(t *testing.T) {
	f := newFixture(t, nil)
	f.server.health.RegisterCheck("journal", func(ctx context.Context) error {
		return errors.New("database is locked")
	})

	w := f.do(t, http.MethodGet, "/health")
	if w.Code != http.StatusServiceUnavailable {
		t.Fatalf("status = %d, want 503", w.Code)
	}
	report := decodeJSON[health.Report](t, w)
	if _, ok := report.Checks["journal"]; !ok {
		t.Errorf("report missing journal check: %+v", report)
	}
}

func TestVersionEndpoint(t *testing.T) {
	f := newFixture(t, nil)
	w := f.do(t, http.MethodGet, "/version")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	info := decodeJSON[health.VersionInfo](t, w)
	if info.Version != "1.2.3" || info.Commit != "abc123" {
		t.Errorf("version info = %+v", info)
	}
}

func TestMetricsEndpoint(t *testing.T) {
	f := newFixture(t, nil)
	f.do(t, http.MethodPost, "/v1/limiters/api/consume")
	f.do(t, http.MethodGet, "/v1/limiters/missing")

	w := f.do(t, http.MethodGet, "/metrics")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	out := w.Body.String()
	for _, want := range []string{
		`limitr_decisions_total{`,
		`limitr_http_requests_total{code="200",route="POST /v1/limiters/{name}/consume"} 1`,
		`limitr_http_requests_total{code="404",route="GET /v1/limiters/{name}"} 1`,
	} {
		if !strings.Contains(out, want) {
			t.Errorf("metrics output missing %q", want)
		}
	}
}

func TestMetricsEndpoint_Disabled(t *testing.T) {
	f := newFixture(t, func(cfg *config.Config) { cfg.Telemetry.Metrics.Enabled = false })
	if w := f.do(t, http.MethodGet, "/metrics"); w.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", w.Code)
	}
}

func TestRequestIDHeader(t *testing.T) {
	f := newFixture(t, nil)
	w := f.do(t, http.MethodGet, "/v1/limiters")
	if w.Header().Get(middleware.RequestIDHeader) == "" {
		t.Error("response missing request id header")
	}
}

// ==================== Lifecycle ====================

func TestServer_StartShutdown(t *testing.T) {
	f := newFixture(t, nil)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- f.server.Start(ctx) }()

	deadline := time.Now().Add(2 * time.Second)
	for !f.server.IsRunning() {
		if time.Now().After(deadline) {
			t.Fatal("server did not start")
		}
		time.Sleep(10 * time.Millisecond)
	}

	resp, err := http.Get("http://" + f.server.Addr() + "/v1/limiters")
	if err != nil {
		t.Fatalf("GET: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("status = %d", resp.StatusCode)
	}

	if err := f.server.Start(ctx); err == nil {
		t.Error("second Start succeeded")
	}

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("Start returned %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("server did not stop")
	}
	if f.server.IsRunning() {
		t.Error("server still running after shutdown")
	}
}

func TestServer_StartListenError(t *testing.T) {
	f := newFixture(t, func(cfg *config.Config) { cfg.Server.ListenAddress = "256.0.0.1:99999" })
	if err := f.server.Start(context.Background()); err == nil {
		t.Fatal("Start succeeded on an invalid address")
	}
	if f.server.IsRunning() {
		t.Error("server running after listen failure")
	}
}
