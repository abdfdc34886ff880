// Package httpx wraps outbound HTTP requests with retries that honour
// Retry-After.
package httpx

import (
	"context"
	"errors"
	"math/rand"
	"net/http"
	"strconv"
	"time"

	"github.com/douania/lovable-github-friendship-flow-sub001/internal/config"
	"github.com/douania/lovable-github-friendship-flow-sub001/internal/logger"
	"github.com/douania/lovable-github-friendship-flow-sub001/internal/metrics"
)

// ErrExhausted is returned when every attempt failed without a response.
var ErrExhausted = errors.New("exhausted retries")

// PreAttempt lets callers run logic (e.g., rate limiting) before each try; return an error to abort.
type PreAttempt func(ctx context.Context, attempt int) error

// AttemptInfo describes a single attempt outcome.
type AttemptInfo struct {
	Attempt  int
	Method   string
	URL      string
	Status   int
	Err      error
	Wait     time.Duration
	Duration time.Duration
	Size     int64
}

// Final reports whether this attempt ended the request.
func (a AttemptInfo) Final() bool { return a.Wait == 0 }

// Observer callback to report attempt telemetry.
type Observer func(info AttemptInfo)

// RecorderObserver records the final attempt of each request as a network
// metric. Transport errors are recorded with status 0.
func RecorderObserver(r *metrics.Recorder) Observer {
	return func(info AttemptInfo) {
		if !info.Final() {
			return
		}
		r.RecordNetworkMetric(metrics.NetworkMetric{
			URL:      info.URL,
			Method:   info.Method,
			Duration: info.Duration,
			Status:   info.Status,
			Size:     info.Size,
		})
	}
}

// RequestBuilder builds a fresh request per attempt.
type RequestBuilder func(ctx context.Context) (*http.Request, error)

// DoWithRetryFactory wraps an HTTP request with lightweight retries, honoring Retry-After, using config.
func DoWithRetryFactory(ctx context.Context, client *http.Client, build RequestBuilder, pre PreAttempt) (*http.Response, error) {
	return DoWithRetryFactoryObs(ctx, client, build, pre, nil)
}

// DoWithRetryFactoryObs is like DoWithRetryFactory but reports attempts to an observer.
func DoWithRetryFactoryObs(ctx context.Context, client *http.Client, build RequestBuilder, pre PreAttempt, obs Observer) (*http.Response, error) {
	cfg := config.Load()
	log := logger.WithComponent("httpx")
	maxAttempts := max(cfg.HTTPMaxRetries, 1)
	baseDelay := cfg.HTTPRetryBase
	notify := func(info AttemptInfo) {
		if obs != nil {
			obs(info)
		}
	}

	for attempt := 1; attempt <= maxAttempts; attempt++ {
		if pre != nil {
			if err := pre(ctx, attempt); err != nil {
				return nil, err
			}
		}
		req, err := build(ctx)
		if err != nil {
			return nil, err
		}
		info := AttemptInfo{Attempt: attempt, Method: req.Method, URL: req.URL.String()}
		start := time.Now()
		resp, err := client.Do(req)
		info.Duration = time.Since(start)

		if err != nil {
			metrics.HTTPClientRequests.WithLabelValues("error").Inc()
			info.Err = err
			if attempt == maxAttempts || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				if cfg.LogHTTPRetries {
					log.Warn("request failed, no more retries", "attempt", attempt, "method", info.Method, "url", info.URL, "error", err)
				}
				notify(info)
				return nil, err
			}
			metrics.HTTPClientRetries.Inc()
		} else {
			info.Status = resp.StatusCode
			info.Size = resp.ContentLength
			if resp.StatusCode != http.StatusTooManyRequests && resp.StatusCode < 500 {
				metrics.HTTPClientRequests.WithLabelValues("success").Inc()
				if cfg.LogHTTPRetries && attempt > 1 {
					log.Info("request succeeded after retry", "attempt", attempt, "method", info.Method, "url", info.URL, "status", resp.StatusCode)
				}
				notify(info)
				return resp, nil
			}
			if attempt == maxAttempts {
				metrics.HTTPClientRequests.WithLabelValues("failure").Inc()
				if cfg.LogHTTPRetries {
					log.Warn("giving up", "attempt", attempt, "method", info.Method, "url", info.URL, "status", resp.StatusCode)
				}
				notify(info)
				return resp, nil
			}
			metrics.HTTPClientRequests.WithLabelValues("retry").Inc()
			if wait, ok := retryAfter(resp.Header.Get("Retry-After")); ok {
				resp.Body.Close()
				metrics.HTTPClientRetryAfterWaits.Observe(wait.Seconds())
				if cfg.LogHTTPRetries {
					log.Info("honouring Retry-After", "attempt", attempt, "wait", wait, "method", info.Method, "url", info.URL)
				}
				info.Wait = wait
				notify(info)
				if err := sleep(ctx, wait); err != nil {
					return nil, err
				}
				continue
			}
			resp.Body.Close()
			metrics.HTTPClientRetries.Inc()
		}

		// backoff with jitter
		jitter := time.Duration(rand.Intn(200)) * time.Millisecond
		delay := baseDelay*time.Duration(attempt) + jitter
		if cfg.LogHTTPRetries {
			log.Info("backing off", "attempt", attempt, "delay", delay, "method", info.Method, "url", info.URL)
		}
		info.Wait = delay
		notify(info)
		if err := sleep(ctx, delay); err != nil {
			return nil, err
		}
	}
	return nil, ErrExhausted
}

// retryAfter parses a Retry-After header given in seconds or as an HTTP date.
func retryAfter(v string) (time.Duration, bool) {
	if v == "" {
		return 0, false
	}
	if secs, err := strconv.Atoi(v); err == nil && secs >= 0 {
		return time.Duration(secs) * time.Second, true
	}
	if t, err := http.ParseTime(v); err == nil {
		if d := time.Until(t); d > 0 {
			return d, true
		}
	}
	return 0, false
}

func sleep(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
