// Package origin talks to the servers hosting source feed documents.
package origin

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/VictoriaMetrics/metrics"
	"github.com/rs/zerolog/log"

	"xmlcustomizer/syndicator/internal/models"
)

const (
	defaultTimeout   = 30 * time.Second
	defaultUserAgent = "XmlCustomizer/1.0"
	acceptHeader     = "application/xml, text/xml"

	// maxDocumentSize caps a downloaded source document.
	maxDocumentSize = 256 << 20
)

// Config holds the client settings.
type Config struct {
	Timeout   time.Duration
	UserAgent string
}

// Client issues conditional requests against feed origins.
type Client struct {
	http      *http.Client
	userAgent string
}

// Response is what an origin answered.
type Response struct {
	StatusCode  int
	NotModified bool
	Validators  models.Validators
	Body        []byte
	FetchedAt   time.Time
}

// FetchError reports an origin that could not be reached, timed out, or
// answered with anything other than 2xx or 304.
type FetchError struct {
	URL        string
	StatusCode int
	Err        error
}

func (e *FetchError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("fetch %s: unexpected status %d", e.URL, e.StatusCode)
	}
	return fmt.Sprintf("fetch %s: %v", e.URL, e.Err)
}

func (e *FetchError) Unwrap() error {
	return e.Err
}

// NewClient creates a client. Zero values in cfg fall back to defaults.
func NewClient(cfg Config) *Client {
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}
	if cfg.UserAgent == "" {
		cfg.UserAgent = defaultUserAgent
	}
	return &Client{
		http:      &http.Client{Timeout: cfg.Timeout},
		userAgent: cfg.UserAgent,
	}
}

// Head asks the origin whether the document changed since v, without
// downloading it.
func (c *Client) Head(ctx context.Context, url string, v models.Validators) (*Response, error) {
	return c.do(ctx, http.MethodHead, url, v)
}

// Get downloads the document. With non-zero validators the request is
// conditional and a 304 comes back as NotModified with no body.
func (c *Client) Get(ctx context.Context, url string, v models.Validators) (*Response, error) {
	return c.do(ctx, http.MethodGet, url, v)
}

func (c *Client) do(ctx context.Context, method, url string, v models.Validators) (*Response, error) {
	req, err := http.NewRequestWithContext(ctx, method, url, nil)
	if err != nil {
		return nil, &FetchError{URL: url, Err: err}
	}
	req.Header.Set("User-Agent", c.userAgent)
	req.Header.Set("Accept", acceptHeader)
	if v.ETag != "" {
		req.Header.Set("If-None-Match", v.ETag)
	}
	if v.LastModified != "" {
		req.Header.Set("If-Modified-Since", v.LastModified)
	}

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		metrics.GetOrCreateCounter(`origin_requests_total{result="error"}`).Inc()
		return nil, &FetchError{URL: url, Err: err}
	}
	defer resp.Body.Close()
	metrics.GetOrCreateHistogram("origin_request_duration_seconds").UpdateDuration(start)

	out := &Response{
		StatusCode: resp.StatusCode,
		Validators: models.Validators{
			ETag:         resp.Header.Get("ETag"),
			LastModified: resp.Header.Get("Last-Modified"),
		},
		FetchedAt: time.Now().UTC(),
	}

	switch {
	case resp.StatusCode == http.StatusNotModified:
		metrics.GetOrCreateCounter(`origin_requests_total{result="not_modified"}`).Inc()
		out.NotModified = true
		return out, nil
	case resp.StatusCode < 200 || resp.StatusCode > 299:
		metrics.GetOrCreateCounter(`origin_requests_total{result="error"}`).Inc()
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		return nil, &FetchError{URL: url, StatusCode: resp.StatusCode}
	}
	metrics.GetOrCreateCounter(`origin_requests_total{result="ok"}`).Inc()

	if method == http.MethodHead {
		return out, nil
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxDocumentSize+1))
	if err != nil {
		return nil, &FetchError{URL: url, Err: fmt.Errorf("reading body: %w", err)}
	}
	if len(body) > maxDocumentSize {
		return nil, &FetchError{URL: url, Err: errors.New("document exceeds size limit")}
	}
	out.Body = body

	log.Debug().
		Str("url", url).
		Int("status", resp.StatusCode).
		Int("bytes", len(body)).
		Str("etag", out.Validators.ETag).
		Msg("Fetched origin document")
	return out, nil
}
