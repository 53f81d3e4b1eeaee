// Package surface stands in for a browser's image element: it loads an
// avatar URL and reports whether it would render.
package surface

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/vietddude/avatar/internal/metrics"
)

// ErrNotImage is returned when the response is not an image.
var ErrNotImage = errors.New("response is not an image")

// Config holds probe settings.
type Config struct {
	Enabled bool          `yaml:"enabled"`
	Timeout time.Duration `yaml:"timeout"`
}

// Prober verifies image URLs.
type Prober struct {
	enabled    bool
	httpClient *http.Client
	log        *slog.Logger
}

// NewProber creates a prober. A disabled prober accepts every URL.
func NewProber(cfg Config, log *slog.Logger) *Prober {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 5 * time.Second
	}
	if log == nil {
		log = slog.Default()
	}
	return &Prober{
		enabled:    cfg.Enabled,
		httpClient: &http.Client{Timeout: cfg.Timeout},
		log:        log.With("component", "surface"),
	}
}

// Enabled reports whether URLs are actually probed.
func (p *Prober) Enabled() bool {
	return p.enabled
}

// Verify returns nil when url serves an image with a 2xx status.
func (p *Prober) Verify(ctx context.Context, url string) error {
	if !p.enabled {
		return nil
	}

	err := p.verify(ctx, url)
	if err != nil {
		metrics.ProbeTotal.WithLabelValues("failed").Inc()
		p.log.Debug("Image probe failed", "url", url, "error", err)
		return err
	}
	metrics.ProbeTotal.WithLabelValues("ok").Inc()
	return nil
}

func (p *Prober) verify(ctx context.Context, url string) error {
	resp, err := p.request(ctx, http.MethodHead, url)
	if err != nil {
		return err
	}
	if resp.StatusCode == http.StatusMethodNotAllowed || resp.StatusCode == http.StatusNotImplemented {
		resp, err = p.request(ctx, http.MethodGet, url)
		if err != nil {
			return err
		}
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("probe %s: http %d", url, resp.StatusCode)
	}
	if ct := resp.Header.Get("Content-Type"); !strings.HasPrefix(ct, "image/") {
		return fmt.Errorf("probe %s: %w (content-type %q)", url, ErrNotImage, ct)
	}
	return nil
}

// request performs one call and drains the body; only headers matter.
func (p *Prober) request(ctx context.Context, method, url string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, method, url, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	resp, err := p.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("probe %s: %w", url, err)
	}
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 64<<10))
	resp.Body.Close()
	return resp, nil
}
