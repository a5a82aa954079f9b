package http

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jmehdipour/imei-gateway/internal/cache"
	"github.com/jmehdipour/imei-gateway/internal/config"
	"github.com/jmehdipour/imei-gateway/internal/lookup"
	"github.com/jmehdipour/imei-gateway/internal/model"
	"github.com/jmehdipour/imei-gateway/internal/provider"
	"github.com/jmehdipour/imei-gateway/internal/ratelimit"
	"github.com/jmehdipour/imei-gateway/internal/repository"
	"github.com/jmehdipour/imei-gateway/internal/store"
)

func newTestServer(t *testing.T, cfg config.Config, limit int, reports repository.CHLookupsRepository) *Server {
	t.Helper()
	s := store.NewMemory()
	orch := lookup.New(
		ratelimit.New(s, ratelimit.Config{Limit: limit}),
		cache.New(s),
		provider.NewHTTPProvider(provider.Options{Timeout: 5 * time.Second}),
		lookup.Config{},
	)
	return NewServer(cfg, orch, reports)
}

func post(t *testing.T, srv *Server, body, contentType, remote string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/v1/check-imei", strings.NewReader(body))
	req.Header.Set("Content-Type", contentType)
	req.RemoteAddr = remote
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v))
	return v
}

func TestCheckIMEI_SimulatedThenCached(t *testing.T) {
	srv := newTestServer(t, config.Config{}, 60, nil)

	rec := post(t, srv, `{"imei":"49015420323751 8"}`, "application/json", "192.0.2.1:5000")
	require.Equal(t, http.StatusOK, rec.Code)
	env := decode[model.Envelope](t, rec)
	assert.True(t, env.Simulated)
	assert.False(t, env.Cached)
	assert.Equal(t, "SIMULATED", env.Result["brand"])

	rec = post(t, srv, "imei=490154203237518", "application/x-www-form-urlencoded", "192.0.2.1:5000")
	require.Equal(t, http.StatusOK, rec.Code)
	env = decode[model.Envelope](t, rec)
	assert.True(t, env.Cached)
	assert.False(t, env.Simulated)
}

func TestCheckIMEI_NumericJSONValue(t *testing.T) {
	srv := newTestServer(t, config.Config{}, 60, nil)

	rec := post(t, srv, `{"imei": 490154203237518}`, "application/json", "192.0.2.3:5000")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, decode[model.Envelope](t, rec).Simulated)

	rec = post(t, srv, `{"imei": 490154203237519}`, "application/json", "192.0.2.3:5000")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, lookup.CodeInvalidIMEI, decode[errorResp](t, rec).Code)

	rec = post(t, srv, `{"imei": true}`, "application/json", "192.0.2.3:5000")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "bad_request", decode[errorResp](t, rec).Code)
}

func TestCheckIMEI_Errors(t *testing.T) {
	srv := newTestServer(t, config.Config{}, 1, nil)

	rec := post(t, srv, `{"imei":""}`, "application/json", "192.0.2.2:1")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, lookup.CodeNoIMEI, decode[errorResp](t, rec).Code)

	rec = post(t, srv, `{"imei":"123"}`, "application/json", "192.0.2.2:1")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	resp := decode[errorResp](t, rec)
	assert.Equal(t, lookup.CodeInvalidIMEI, resp.Code)
	assert.Equal(t, http.StatusBadRequest, resp.Data.Status)

	rec = post(t, srv, `{"imei":`, "application/json", "192.0.2.2:1")
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = post(t, srv, `{"imei":"490154203237518"}`, "application/json", "192.0.2.2:1")
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = post(t, srv, `{"imei":"490154203237518"}`, "application/json", "192.0.2.2:1")
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, lookup.CodeRateLimited, decode[errorResp](t, rec).Code)
}

func TestCheckIMEI_ForwardedForIgnoredByDefault(t *testing.T) {
	srv := newTestServer(t, config.Config{}, 1, nil)

	for i, xff := range []string{"198.51.100.1", "198.51.100.2"} {
		req := httptest.NewRequest(http.MethodPost, "/v1/check-imei", strings.NewReader(`{"imei":"490154203237518"}`))
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("X-Forwarded-For", xff)
		req.RemoteAddr = "192.0.2.9:1234"
		rec := httptest.NewRecorder()
		srv.Handler().ServeHTTP(rec, req)

		want := http.StatusOK
		if i == 1 {
			want = http.StatusTooManyRequests
		}
		assert.Equal(t, want, rec.Code)
	}
}

func TestCheckIMEI_ProviderHTTPError(t *testing.T) {
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte("invalid key " + r.URL.Query().Get("apikey")))
	}))
	defer upstream.Close()

	cfg := config.Config{Provider: config.ProviderConfig{APIKey: "top-secret", ServiceID: "3", APIBase: upstream.URL}}
	srv := newTestServer(t, cfg, 60, nil)

	rec := post(t, srv, `{"imei":"490154203237518"}`, "application/json", "192.0.2.3:1")
	assert.Equal(t, http.StatusBadGateway, rec.Code)
	resp := decode[errorResp](t, rec)
	assert.Equal(t, lookup.CodeAPIHTTPError, resp.Code)
	assert.Contains(t, resp.Message, "HTTP 401")
	assert.NotContains(t, rec.Body.String(), "top-secret")
}

type stubReports struct {
	got repository.LookupFilter
}

func (s *stubReports) Insert(context.Context, model.LookupEvent) error { return nil }

func (s *stubReports) List(_ context.Context, f repository.LookupFilter) ([]model.LookupEvent, error) {
	s.got = f
	return []model.LookupEvent{{ID: "a", IMEI: f.IMEI, Outcome: model.OutcomeCacheHit, Cached: true}}, nil
}

func TestListLookups(t *testing.T) {
	reports := &stubReports{}
	srv := newTestServer(t, config.Config{}, 60, reports)

	req := httptest.NewRequest(http.MethodGet, "/v1/reports/lookups?imei=4901-5420-3237-518&outcome=cache_hit&limit=10&offset=5", nil)
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, repository.LookupFilter{IMEI: "490154203237518", Outcome: model.OutcomeCacheHit, Limit: 10, Offset: 5}, reports.got)
	body := decode[map[string]any](t, rec)
	assert.EqualValues(t, 1, body["count"])

	req = httptest.NewRequest(http.MethodGet, "/v1/reports/lookups?outcome=nope", nil)
	rec = httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestReportsDisabledWithoutClickHouse(t *testing.T) {
	srv := newTestServer(t, config.Config{}, 60, nil)

	req := httptest.NewRequest(http.MethodGet, "/v1/reports/lookups", nil)
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestHealthz(t *testing.T) {
	srv := newTestServer(t, config.Config{}, 60, nil)
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ok", rec.Body.String())
}

func TestMetricsExposeCheckOutcomes(t *testing.T) {
	srv := newTestServer(t, config.Config{}, 60, nil)
	require.Equal(t, http.StatusOK, post(t, srv, `{"imei":"490154203237518"}`, "application/json", "10.0.0.9:1234").Code)

	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `imeigw_checks_total{outcome="simulated"}`)
}
