// Package fetch retrieves original image bytes over HTTP. One fetch per
// URL per load; a failed fetch is terminal for that load, never retried
// here.
package fetch

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"golang.org/x/time/rate"
)

// Gateway is the capability the loader uses to obtain original bytes.
type Gateway interface {
	Fetch(ctx context.Context, url string, headers http.Header) ([]byte, error)
}

// HTTPGateway fetches over a shared http.Client, throttled by a token
// bucket so a burst of cold loads cannot hammer the origin.
type HTTPGateway struct {
	client   *http.Client
	limiter  *rate.Limiter
	maxBytes int64
	logger   *slog.Logger
}

// Options tune an HTTPGateway.
type Options struct {
	MaxBytes int64         // response size cap, bytes
	Rate     float64       // fetches per second
	Burst    int           // burst allowance
	Timeout  time.Duration // per-request deadline
}

// NewHTTPGateway builds a gateway. Zero option fields get safe defaults.
func NewHTTPGateway(opts Options, logger *slog.Logger) *HTTPGateway {
	if opts.MaxBytes <= 0 {
		opts.MaxBytes = 15 * 1024 * 1024
	}
	if opts.Rate <= 0 {
		opts.Rate = 10
	}
	if opts.Burst <= 0 {
		opts.Burst = 5
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 30 * time.Second
	}
	return &HTTPGateway{
		client:   &http.Client{Timeout: opts.Timeout},
		limiter:  rate.NewLimiter(rate.Limit(opts.Rate), opts.Burst),
		maxBytes: opts.MaxBytes,
		logger:   logger,
	}
}

// Fetch downloads url, passing through caller-supplied headers verbatim.
func (g *HTTPGateway) Fetch(ctx context.Context, url string, headers http.Header) ([]byte, error) {
	if err := g.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("fetch throttled: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	for key, values := range headers {
		for _, v := range values {
			req.Header.Add(key, v)
		}
	}

	start := time.Now()
	resp, err := g.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch %s: %w", url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("fetch %s: unexpected status %d", url, resp.StatusCode)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, g.maxBytes+1))
	if err != nil {
		return nil, fmt.Errorf("read body of %s: %w", url, err)
	}
	if int64(len(data)) > g.maxBytes {
		return nil, fmt.Errorf("fetch %s: body exceeds %d bytes", url, g.maxBytes)
	}
	if len(data) == 0 {
		return nil, fmt.Errorf("fetch %s: empty body", url)
	}

	g.logger.Debug("fetched image",
		"url", url,
		"size", len(data),
		"duration", time.Since(start).String(),
	)
	return data, nil
}
