// Package fetch performs the upstream round trip for async avatar sources.
package fetch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"golang.org/x/sync/singleflight"
	"golang.org/x/time/rate"

	"github.com/vietddude/avatar/internal/metrics"
)

const (
	defaultTimeout   = 10 * time.Second
	defaultMaxBytes  = 1 << 20
	defaultUserAgent = "avatar-resolver"
	defaultTokenHost = "api.github.com"
)

// ErrTooLarge is returned when a response exceeds the configured size cap.
var ErrTooLarge = errors.New("response body too large")

// StatusError reports a non-2xx upstream response.
type StatusError struct {
	URL        string
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("http %d from %s", e.StatusCode, e.URL)
	}
	return fmt.Sprintf("http %d from %s: %s", e.StatusCode, e.URL, e.Body)
}

// Config holds fetcher settings.
type Config struct {
	Timeout     time.Duration `yaml:"timeout"`
	RateLimit   float64       `yaml:"rate_limit"` // requests per second, 0 disables
	Burst       int           `yaml:"burst"`
	MaxBytes    int64         `yaml:"max_bytes"`
	GitHubToken string        `yaml:"github_token"`
	TokenHost   string        `yaml:"token_host"` // host that receives GitHubToken
	UserAgent   string        `yaml:"user_agent"`
}

// HTTPFetcher fetches avatar metadata over HTTP. Concurrent requests for the
// same URL share one upstream call.
type HTTPFetcher struct {
	httpClient *http.Client
	limiter    *rate.Limiter
	group      singleflight.Group
	cfg        Config
	log        *slog.Logger
}

// NewHTTPFetcher creates a fetcher with a pooled client.
func NewHTTPFetcher(cfg Config, log *slog.Logger) *HTTPFetcher {
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}
	if cfg.MaxBytes <= 0 {
		cfg.MaxBytes = defaultMaxBytes
	}
	if cfg.UserAgent == "" {
		cfg.UserAgent = defaultUserAgent
	}
	if cfg.TokenHost == "" {
		cfg.TokenHost = defaultTokenHost
	}
	if log == nil {
		log = slog.Default()
	}

	f := &HTTPFetcher{
		httpClient: &http.Client{
			Timeout: cfg.Timeout,
			Transport: &http.Transport{
				MaxIdleConns:        100,
				MaxIdleConnsPerHost: 10,
				IdleConnTimeout:     90 * time.Second,
			},
		},
		cfg: cfg,
		log: log.With("component", "fetch"),
	}
	if cfg.RateLimit > 0 {
		burst := cfg.Burst
		if burst <= 0 {
			burst = 1
		}
		f.limiter = rate.NewLimiter(rate.Limit(cfg.RateLimit), burst)
	}
	return f
}

// Fetch returns the response body for rawURL. The caller's context bounds
// how long it waits; the shared upstream call is bounded by the client
// timeout so other waiters are not canceled with it.
func (f *HTTPFetcher) Fetch(ctx context.Context, rawURL string) ([]byte, error) {
	ch := f.group.DoChan(rawURL, func() (any, error) {
		return f.do(context.WithoutCancel(ctx), rawURL)
	})

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.([]byte), nil
	}
}

func (f *HTTPFetcher) do(ctx context.Context, rawURL string) ([]byte, error) {
	host := hostOf(rawURL)
	start := time.Now()

	if f.limiter != nil {
		if err := f.limiter.Wait(ctx); err != nil {
			metrics.FetchTotal.WithLabelValues(host, "throttled").Inc()
			return nil, fmt.Errorf("rate limit: %w", err)
		}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		metrics.FetchTotal.WithLabelValues(host, "error").Inc()
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", f.cfg.UserAgent)
	if f.cfg.GitHubToken != "" && host == f.cfg.TokenHost {
		req.Header.Set("Authorization", "Bearer "+f.cfg.GitHubToken)
	}

	resp, err := f.httpClient.Do(req)
	if err != nil {
		metrics.FetchTotal.WithLabelValues(host, "error").Inc()
		return nil, fmt.Errorf("fetch: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, f.cfg.MaxBytes+1))
	metrics.FetchLatency.WithLabelValues(host).Observe(time.Since(start).Seconds())
	if err != nil {
		metrics.FetchTotal.WithLabelValues(host, "error").Inc()
		return nil, fmt.Errorf("read response: %w", err)
	}
	if int64(len(body)) > f.cfg.MaxBytes {
		metrics.FetchTotal.WithLabelValues(host, "error").Inc()
		return nil, ErrTooLarge
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		metrics.FetchTotal.WithLabelValues(host, "status").Inc()
		f.log.Debug("Upstream returned non-2xx", "url", rawURL, "status", resp.StatusCode)
		return nil, &StatusError{URL: rawURL, StatusCode: resp.StatusCode, Body: truncate(string(body), 200)}
	}

	metrics.FetchTotal.WithLabelValues(host, "ok").Inc()
	return body, nil
}

func hostOf(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil || u.Host == "" {
		return "unknown"
	}
	return u.Host
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
