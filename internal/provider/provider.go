// Package provider talks to the upstream IMEI lookup service.
package provider

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/jmehdipour/imei-gateway/internal/metrics"
	"github.com/jmehdipour/imei-gateway/internal/model"
)

const (
	DefaultTimeout = 30 * time.Second
	maxBodyBytes   = 1 << 20
	redacted       = "[redacted]"
)

var ErrBreakerOpen = errors.New("provider temporarily unavailable")

// StatusError is returned for non-2xx upstream responses.
type StatusError struct {
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return "provider returned HTTP " + strconv.Itoa(e.StatusCode)
}

// Response is a successful (2xx) upstream reply.
type Response struct {
	StatusCode int
	Body       []byte
}

type Provider interface {
	Lookup(ctx context.Context, imei string, cfg model.ProviderConfig) (Response, error)
}

type Options struct {
	Timeout       time.Duration
	FailThreshold int
	OpenFor       time.Duration
	HTTPClient    *http.Client // optional, Timeout is applied on top
}

type HTTPProvider struct {
	client *http.Client
	br     *Breaker
}

var _ Provider = (*HTTPProvider)(nil)

func NewHTTPProvider(opts Options) *HTTPProvider {
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultTimeout
	}
	if opts.FailThreshold <= 0 {
		opts.FailThreshold = 5
	}
	if opts.OpenFor <= 0 {
		opts.OpenFor = 15 * time.Second
	}

	client := &http.Client{}
	if opts.HTTPClient != nil {
		c := *opts.HTTPClient
		client = &c
	}
	client.Timeout = opts.Timeout

	return &HTTPProvider{
		client: client,
		br:     NewBreaker(opts.FailThreshold, opts.OpenFor),
	}
}

// SubmitURL builds {api_base}/submit?apikey=..&service_id=..&input=..
func SubmitURL(imei string, cfg model.ProviderConfig) string {
	return strings.TrimRight(strings.TrimSpace(cfg.APIBase), "/") +
		"/submit?apikey=" + url.QueryEscape(strings.TrimSpace(cfg.APIKey)) +
		"&service_id=" + url.QueryEscape(strings.TrimSpace(cfg.ServiceID)) +
		"&input=" + url.QueryEscape(imei)
}

// Lookup performs one GET against the provider. It never retries.
// Returned errors do not contain the API key.
func (p *HTTPProvider) Lookup(ctx context.Context, imei string, cfg model.ProviderConfig) (Response, error) {
	if !p.br.TryAcquire() {
		return Response{}, ErrBreakerOpen
	}

	start := time.Now()
	res, err := p.do(ctx, imei, cfg)

	statusLabel := "error"
	if res.StatusCode > 0 {
		statusLabel = strconv.Itoa(res.StatusCode/100) + "xx"
	} else {
		var se *StatusError
		if errors.As(err, &se) {
			statusLabel = strconv.Itoa(se.StatusCode/100) + "xx"
		}
	}
	metrics.ProviderDuration.WithLabelValues(statusLabel).Observe(time.Since(start).Seconds())

	switch {
	case err == nil, isClientStatus(err):
		// a 4xx is a complete answer about this IMEI, not an outage
		p.br.OnSuccess()
	case ctx.Err() != nil:
		p.br.Release()
	default:
		p.br.OnFailure()
	}
	return res, err
}

func isClientStatus(err error) bool {
	var se *StatusError
	return errors.As(err, &se) && se.StatusCode >= 400 && se.StatusCode < 500
}

func (p *HTTPProvider) do(ctx context.Context, imei string, cfg model.ProviderConfig) (Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, SubmitURL(imei, cfg), nil)
	if err != nil {
		return Response{}, fmt.Errorf("build provider request: %w", scrub(err, cfg.APIKey))
	}
	req.Header.Set("Accept", "application/json")

	res, err := p.client.Do(req)
	if err != nil {
		return Response{}, fmt.Errorf("provider request failed: %w", scrub(err, cfg.APIKey))
	}
	defer res.Body.Close()

	body, err := io.ReadAll(io.LimitReader(res.Body, maxBodyBytes))
	if err != nil {
		return Response{}, fmt.Errorf("read provider body: %w", scrub(err, cfg.APIKey))
	}

	if res.StatusCode/100 != 2 {
		return Response{}, &StatusError{
			StatusCode: res.StatusCode,
			Body:       redact(string(body), cfg.APIKey),
		}
	}

	return Response{StatusCode: res.StatusCode, Body: body}, nil
}

// scrub drops the *url.Error wrapper, whose message embeds the request URL
// and therefore the API key.
func scrub(err error, apiKey string) error {
	var uerr *url.Error
	if errors.As(err, &uerr) {
		err = uerr.Err
	}
	if k := strings.TrimSpace(apiKey); k != "" && strings.Contains(err.Error(), k) {
		return errors.New(redact(err.Error(), k))
	}
	return err
}

func redact(s, secret string) string {
	secret = strings.TrimSpace(secret)
	if secret == "" {
		return s
	}
	s = strings.ReplaceAll(s, secret, redacted)
	return strings.ReplaceAll(s, url.QueryEscape(secret), redacted)
}
