package main

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"procverify/internal/analytics"
	"procverify/internal/decision"
	"procverify/internal/history/publisher"
	historystore "procverify/internal/history/store"
	"procverify/internal/platform/config"
	"procverify/internal/platform/metrics"
	"procverify/internal/policy"
	"procverify/internal/process/models"
	"procverify/internal/verification/cache"
	"procverify/internal/verification/service"
	"procverify/pkg/platform/middleware/admin"
)

func testRouter(t *testing.T, adminToken string) http.Handler {
	t.Helper()
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	catalog := policy.DefaultCatalog(policy.DefaultRules())
	store := historystore.NewInMemoryStore()
	verifier := service.New(catalog, decision.NewSynthesizer(),
		service.WithCache(cache.NewInMemoryCache()),
		service.WithHistory(store),
		service.WithLogger(log),
	)
	cfg := config.Config{Server: config.Server{AdminToken: adminToken, RequestTimeout: 5 * time.Second}}
	return newRouter(cfg, log, metrics.NewWithRegistry(prometheus.NewRegistry()), &infra{},
		verifier, analytics.New(store, catalog, analytics.WithLogger(log)))
}

func serve(h http.Handler, method, path, body string, headers map[string]string) *httptest.ResponseRecorder {
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	return rr
}

func TestRouter_HealthWithoutBackends(t *testing.T) {
	rr := serve(testRouter(t, ""), http.MethodGet, "/health", "", nil)

	require.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), `"status":"healthy"`)
	assert.NotEmpty(t, rr.Header().Get("X-Request-ID"))
}

func TestRouter_VerifyThenAnalytics(t *testing.T) {
	h := testRouter(t, "")

	rr := serve(h, http.MethodPost, "/verify", `{"numeroProcesso":"0001","esfera":"Trabalhista"}`, nil)
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	assert.Contains(t, rr.Body.String(), `"decision":"rejected"`)
	assert.Contains(t, rr.Body.String(), `"POL-4"`)

	rr = serve(h, http.MethodGet, "/process/0001", "", nil)
	assert.Equal(t, http.StatusOK, rr.Code)

	rr = serve(h, http.MethodGet, "/analytics/decision-distribution", "", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), `"rejected":1`)
}

func TestRouter_ListProcessesBounds(t *testing.T) {
	h := testRouter(t, "")
	for _, n := range []string{"0001", "0002"} {
		rr := serve(h, http.MethodPost, "/verify", `{"numeroProcesso":"`+n+`","esfera":"Trabalhista"}`, nil)
		require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	}

	tests := []struct {
		query      string
		wantStatus int
		wantBody   string
	}{
		{query: "", wantStatus: http.StatusOK, wantBody: `"total":2`},
		{query: "?decision=approved", wantStatus: http.StatusOK, wantBody: `"total":0`},
		{query: "?limit=1&offset=1", wantStatus: http.StatusOK, wantBody: `"processNumber":"0002"`},
		{query: "?limit=1000", wantStatus: http.StatusOK, wantBody: `"returned":2`},
		{query: "?limit=1001", wantStatus: http.StatusBadRequest, wantBody: `"validation_error"`},
		{query: "?limit=0", wantStatus: http.StatusBadRequest, wantBody: `"validation_error"`},
		{query: "?offset=-1", wantStatus: http.StatusBadRequest, wantBody: `"validation_error"`},
		{query: "?decision=maybe", wantStatus: http.StatusBadRequest, wantBody: `"validation_error"`},
	}
	for _, tt := range tests {
		t.Run(tt.query, func(t *testing.T) {
			rr := serve(h, http.MethodGet, "/process"+tt.query, "", nil)
			assert.Equal(t, tt.wantStatus, rr.Code)
			assert.Contains(t, rr.Body.String(), tt.wantBody)
		})
	}
}

func TestRouter_AdminRoutesRequireToken(t *testing.T) {
	tests := []struct {
		name       string
		configured string
		sent       string
		wantStatus int
	}{
		{name: "no token configured", configured: "", sent: "anything", wantStatus: http.StatusUnauthorized},
		{name: "missing header", configured: "secret", sent: "", wantStatus: http.StatusUnauthorized},
		{name: "wrong token", configured: "secret", sent: "nope", wantStatus: http.StatusUnauthorized},
		{name: "matching token", configured: "secret", sent: "secret", wantStatus: http.StatusOK},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			headers := map[string]string{}
			if tt.sent != "" {
				headers[admin.HeaderAdminToken] = tt.sent
			}
			rr := serve(testRouter(t, tt.configured), http.MethodPost, "/monitoring/cache/clear", "", headers)
			assert.Equal(t, tt.wantStatus, rr.Code)
		})
	}
}

func TestBuildCache_RedisDownAtBootIsNotFatal(t *testing.T) {
	ctx := context.Background()
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	cfg := config.Config{
		Cache: config.CacheConfig{Enabled: true, Backend: config.CacheBackendRedis},
		Redis: config.RedisConfig{
			URL:          "redis://127.0.0.1:1/0",
			DialTimeout:  100 * time.Millisecond,
			ReadTimeout:  100 * time.Millisecond,
			WriteTimeout: 100 * time.Millisecond,
		},
	}
	deps := &infra{}
	defer deps.close(ctx, log)

	decisionCache, err := buildCache(ctx, cfg, log, deps)
	require.NoError(t, err)
	require.NotNil(t, decisionCache)
	require.NotNil(t, deps.redis)

	catalog := policy.DefaultCatalog(policy.DefaultRules())
	verifier := service.New(catalog, decision.NewSynthesizer(),
		service.WithCache(decisionCache),
		service.WithLogger(log),
	)
	d, err := verifier.Verify(ctx, &models.Process{Number: "0001", Sphere: models.SphereLabor})
	require.NoError(t, err)
	assert.Equal(t, decision.OutcomeRejected, d.Outcome)

	rr := httptest.NewRecorder()
	healthHandler(catalog.Version(), deps)(rr, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), `"status":"degraded"`)
	assert.Contains(t, rr.Body.String(), `"redis":"down"`)
}

func TestBuildCache_BadRedisURLIsFatal(t *testing.T) {
	cfg := config.Config{
		Cache: config.CacheConfig{Enabled: true, Backend: config.CacheBackendRedis},
		Redis: config.RedisConfig{URL: "http://not-redis"},
	}

	_, err := buildCache(context.Background(), cfg, slog.New(slog.NewTextHandler(io.Discard, nil)), &infra{})
	assert.Error(t, err)
}

func TestBuildHistory_KafkaTopicFailureIsNotFatal(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 500*time.Millisecond)
	defer cancel()
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	cfg := config.Config{Kafka: config.KafkaConfig{Brokers: []string{"127.0.0.1:1"}, Topic: "procverify.decisions"}}
	deps := &infra{}
	defer deps.close(context.Background(), log)

	store, err := buildHistory(ctx, cfg, log, deps)
	require.NoError(t, err)
	assert.IsType(t, &publisher.PublishingStore{}, store)
	assert.NotNil(t, deps.kafka)
}

func TestRouter_CacheStatsIsPublic(t *testing.T) {
	rr := serve(testRouter(t, "secret"), http.MethodGet, "/monitoring/cache-stats", "", nil)

	require.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), `"enabled":true`)
}
