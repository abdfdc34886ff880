package middleware

import (
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/douania/lovable-github-friendship-flow-sub001/internal/apierr"
	"github.com/douania/lovable-github-friendship-flow-sub001/internal/metrics"
)

// RateLimitConfig sets the global and per-client budgets.
type RateLimitConfig struct {
	GlobalRate  float64
	GlobalBurst int
	IPRate      float64
	IPBurst     int
	// StaleAfter drops per-client limiters unused for this long.
	StaleAfter      time.Duration
	CleanupInterval time.Duration
	Now             func() time.Time
}

// RateLimiter provides rate limiting for the API.
type RateLimiter struct {
	global     *rate.Limiter
	mu         sync.Mutex
	perIP      map[string]*ipLimiter
	ipRate     rate.Limit
	ipBurst    int
	staleAfter time.Duration
	now        func() time.Time
	stop       chan struct{}
	stopOnce   sync.Once
	done       chan struct{}
}

type ipLimiter struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// NewRateLimiter creates a rate limiter and starts its cleanup loop. Call
// Stop to end it.
func NewRateLimiter(cfg RateLimitConfig) *RateLimiter {
	if cfg.GlobalBurst <= 0 {
		cfg.GlobalBurst = 1
	}
	if cfg.IPBurst <= 0 {
		cfg.IPBurst = 1
	}
	if cfg.StaleAfter <= 0 {
		cfg.StaleAfter = 3 * time.Minute
	}
	if cfg.CleanupInterval <= 0 {
		cfg.CleanupInterval = time.Minute
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	rl := &RateLimiter{
		global:     rate.NewLimiter(rate.Limit(cfg.GlobalRate), cfg.GlobalBurst),
		perIP:      make(map[string]*ipLimiter),
		ipRate:     rate.Limit(cfg.IPRate),
		ipBurst:    cfg.IPBurst,
		staleAfter: cfg.StaleAfter,
		now:        cfg.Now,
		stop:       make(chan struct{}),
		done:       make(chan struct{}),
	}
	go rl.cleanupLoop(cfg.CleanupInterval)
	return rl
}

// getLimiter returns the rate limiter for a given IP address.
func (rl *RateLimiter) getLimiter(ip string) *rate.Limiter {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	l, ok := rl.perIP[ip]
	if !ok {
		l = &ipLimiter{limiter: rate.NewLimiter(rl.ipRate, rl.ipBurst)}
		rl.perIP[ip] = l
	}
	l.lastSeen = rl.now()
	return l.limiter
}

func (rl *RateLimiter) cleanupLoop(interval time.Duration) {
	defer close(rl.done)
	t := time.NewTicker(interval)
	defer t.Stop()
	for {
		select {
		case <-rl.stop:
			return
		case <-t.C:
			rl.sweep()
		}
	}
}

// sweep removes limiters of clients not seen within staleAfter.
func (rl *RateLimiter) sweep() int {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	cutoff := rl.now().Add(-rl.staleAfter)
	n := 0
	for ip, l := range rl.perIP {
		if l.lastSeen.Before(cutoff) {
			delete(rl.perIP, ip)
			n++
		}
	}
	return n
}

// Stop ends the cleanup loop.
func (rl *RateLimiter) Stop() {
	rl.stopOnce.Do(func() { close(rl.stop) })
	<-rl.done
}

// Limit returns a middleware handler that enforces rate limits.
func (rl *RateLimiter) Limit(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !rl.global.Allow() {
			metrics.APIRateLimited.WithLabelValues("global").Inc()
			apierr.WriteErrorWithContext(w, r, apierr.RateLimitGlobal())
			return
		}
		if !rl.getLimiter(getClientIP(r)).Allow() {
			metrics.APIRateLimited.WithLabelValues("ip").Inc()
			apierr.WriteErrorWithContext(w, r, apierr.RateLimitIP())
			return
		}
		next.ServeHTTP(w, r)
	})
}

// getClientIP extracts the client IP from the request, checking common proxy headers.
func getClientIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		first, _, _ := strings.Cut(xff, ",")
		return strings.TrimSpace(first)
	}
	if xri := r.Header.Get("X-Real-IP"); xri != "" {
		return strings.TrimSpace(xri)
	}
	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		return host
	}
	return r.RemoteAddr
}
