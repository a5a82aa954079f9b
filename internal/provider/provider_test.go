package provider

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jmehdipour/imei-gateway/internal/model"
)

const testKey = "s3cr3t-key"

func cfgFor(srv *httptest.Server) model.ProviderConfig {
	return model.ProviderConfig{APIKey: testKey, ServiceID: "12", APIBase: srv.URL + "/"}
}

func TestSubmitURL(t *testing.T) {
	got := SubmitURL("490154203237518", model.ProviderConfig{
		APIKey:    "a b&c",
		ServiceID: " 7 ",
		APIBase:   "https://api.example.com/v1/",
	})
	assert.Equal(t, "https://api.example.com/v1/submit?apikey=a+b%26c&service_id=7&input=490154203237518", got)
}

func TestLookup_Success(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		assert.Equal(t, "/submit", r.URL.Path)
		assert.Equal(t, testKey, r.URL.Query().Get("apikey"))
		assert.Equal(t, "12", r.URL.Query().Get("service_id"))
		assert.Equal(t, "490154203237518", r.URL.Query().Get("input"))
		assert.Equal(t, "application/json", r.Header.Get("Accept"))
		_, _ = w.Write([]byte(`{"model":"iPhone"}`))
	}))
	defer srv.Close()

	res, err := NewHTTPProvider(Options{}).Lookup(context.Background(), "490154203237518", cfgFor(srv))
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, res.StatusCode)
	assert.JSONEq(t, `{"model":"iPhone"}`, string(res.Body))
}

func TestLookup_StatusErrorRedactsKey(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
		_, _ = w.Write([]byte("bad key " + r.URL.Query().Get("apikey")))
	}))
	defer srv.Close()

	_, err := NewHTTPProvider(Options{}).Lookup(context.Background(), "490154203237518", cfgFor(srv))

	var se *StatusError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, http.StatusForbidden, se.StatusCode)
	assert.Equal(t, "bad key "+redacted, se.Body)
	assert.NotContains(t, err.Error(), testKey)
}

func TestLookup_TransportErrorHidesURL(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))
	cfg := cfgFor(srv)
	srv.Close()

	_, err := NewHTTPProvider(Options{}).Lookup(context.Background(), "490154203237518", cfg)
	require.Error(t, err)
	assert.NotContains(t, err.Error(), testKey)
	assert.NotContains(t, err.Error(), "apikey")
}

func TestLookup_Timeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(2 * time.Second):
		}
	}))
	defer srv.Close()

	_, err := NewHTTPProvider(Options{Timeout: 50 * time.Millisecond}).
		Lookup(context.Background(), "490154203237518", cfgFor(srv))
	require.Error(t, err)
	assert.NotContains(t, err.Error(), testKey)
}

func TestLookup_BreakerOpensAfterFailures(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	p := NewHTTPProvider(Options{FailThreshold: 2, OpenFor: time.Hour})
	for i := 0; i < 2; i++ {
		_, err := p.Lookup(context.Background(), "490154203237518", cfgFor(srv))
		var se *StatusError
		require.ErrorAs(t, err, &se)
	}

	_, err := p.Lookup(context.Background(), "490154203237518", cfgFor(srv))
	assert.True(t, errors.Is(err, ErrBreakerOpen))
	assert.Equal(t, int32(2), calls.Load())
}

func TestLookup_ClientStatusDoesNotTripBreaker(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte(`{"error":"unknown imei"}`))
	}))
	defer srv.Close()

	p := NewHTTPProvider(Options{FailThreshold: 2, OpenFor: time.Hour})
	for i := 0; i < 5; i++ {
		_, err := p.Lookup(context.Background(), "490154203237518", cfgFor(srv))
		var se *StatusError
		require.ErrorAs(t, err, &se)
		assert.Equal(t, http.StatusNotFound, se.StatusCode)
		assert.Contains(t, se.Body, "unknown imei")
	}
	assert.Equal(t, int32(5), calls.Load())
}
