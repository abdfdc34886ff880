// Package source fetches JSON collections from remote HTTP endpoints.
package source

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/douania/lovable-github-friendship-flow-sub001/internal/circuitbreaker"
	"github.com/douania/lovable-github-friendship-flow-sub001/internal/config"
	"github.com/douania/lovable-github-friendship-flow-sub001/internal/httpx"
	"github.com/douania/lovable-github-friendship-flow-sub001/internal/metrics"
	"github.com/douania/lovable-github-friendship-flow-sub001/internal/tracing"
)

// Record is one item of a remote collection.
type Record = map[string]any

// PagePlaceholder is replaced by the page number in paged URLs.
const PagePlaceholder = "{page}"

// maxBodyBytes bounds a single response body.
const maxBodyBytes = 32 << 20

var (
	ErrUnexpectedStatus = errors.New("unexpected status")
	ErrMalformedBody    = errors.New("response is not a JSON array of objects")
)

// Client reads collections over HTTP with retries.
type Client struct {
	http      *http.Client
	userAgent string
	observer  httpx.Observer
	breaker   *circuitbreaker.CircuitBreaker
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the default client, mostly for tests.
func WithHTTPClient(c *http.Client) Option {
	return func(cl *Client) { cl.http = c }
}

// WithRecorder records each request as a network metric.
func WithRecorder(r *metrics.Recorder) Option {
	return func(cl *Client) { cl.observer = httpx.RecorderObserver(r) }
}

// WithCircuitBreaker fails fast while the upstream is unhealthy.
func WithCircuitBreaker(cb *circuitbreaker.CircuitBreaker) Option {
	return func(cl *Client) { cl.breaker = cb }
}

// New creates a client using the HTTP timeout and user agent from config.
func New(opts ...Option) *Client {
	cfg := config.Load()
	c := &Client{
		http:      &http.Client{Timeout: cfg.HTTPTimeout},
		userAgent: cfg.UserAgent,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// FetchAll retrieves the whole collection at url.
func (c *Client) FetchAll(ctx context.Context, url string) ([]Record, error) {
	return c.fetch(ctx, url)
}

// FetchPage retrieves one page of a remotely paged collection. pageURL must
// contain PagePlaceholder.
func (c *Client) FetchPage(ctx context.Context, pageURL string, page int) ([]Record, error) {
	return c.fetch(ctx, PageURL(pageURL, page))
}

// PageURL substitutes page into pageURL.
func PageURL(pageURL string, page int) string {
	return strings.ReplaceAll(pageURL, PagePlaceholder, strconv.Itoa(page))
}

func (c *Client) fetch(ctx context.Context, url string) ([]Record, error) {
	ctx, span := tracing.StartSpan(ctx, "source.fetch")
	defer span.End()

	var out []Record
	call := func(ctx context.Context) error {
		var err error
		out, err = c.do(ctx, url)
		return err
	}
	var err error
	if c.breaker != nil {
		err = c.breaker.Call(ctx, call)
	} else {
		err = call(ctx)
	}
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("fetch %s: %w", url, err)
	}
	return out, nil
}

func (c *Client) do(ctx context.Context, url string) ([]Record, error) {
	build := func(ctx context.Context) (*http.Request, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
		if err != nil {
			return nil, err
		}
		req.Header.Set("Accept", "application/json")
		if c.userAgent != "" {
			req.Header.Set("User-Agent", c.userAgent)
		}
		return req, nil
	}
	resp, err := httpx.DoWithRetryFactoryObs(ctx, c.http, build, nil, c.observer)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		return nil, fmt.Errorf("%w: %d", ErrUnexpectedStatus, resp.StatusCode)
	}
	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, err
	}
	return Decode(body)
}

// Decode accepts a JSON array of objects, or an object wrapping one under
// "items" or "data".
func Decode(body []byte) ([]Record, error) {
	var records []Record
	if err := json.Unmarshal(body, &records); err == nil {
		return records, nil
	}
	var wrapped struct {
		Items []Record `json:"items"`
		Data  []Record `json:"data"`
	}
	if err := json.Unmarshal(body, &wrapped); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedBody, err)
	}
	switch {
	case wrapped.Items != nil:
		return wrapped.Items, nil
	case wrapped.Data != nil:
		return wrapped.Data, nil
	}
	return nil, ErrMalformedBody
}
