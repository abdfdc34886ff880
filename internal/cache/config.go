package cache

import (
	"log/slog"
	"time"

	"github.com/douania/lovable-github-friendship-flow-sub001/internal/kvstore"
)

const (
	DefaultTTL             = 5 * time.Minute
	DefaultMaxSize         = 100
	DefaultCleanupInterval = 2 * time.Minute
	DefaultKey             = "default"
)

// Config configures a Store. Zero fields take the package defaults.
type Config struct {
	TTL time.Duration
	// Persist writes a snapshot to the backing store after each mutation.
	Persist bool
	// Key is the namespace used for metrics and persistence.
	Key             string
	MaxSize         int
	Tags            []string // merged into every entry
	Priority        Priority
	AutoCleanup     bool
	CleanupInterval time.Duration
}

func (c Config) withDefaults() Config {
	if c.TTL <= 0 {
		c.TTL = DefaultTTL
	}
	if c.Key == "" {
		c.Key = DefaultKey
	}
	if c.MaxSize <= 0 {
		c.MaxSize = DefaultMaxSize
	}
	if c.Priority == 0 {
		c.Priority = PriorityMedium
	}
	if c.CleanupInterval <= 0 {
		c.CleanupInterval = DefaultCleanupInterval
	}
	return c
}

// Option configures a Store at construction.
type Option func(*options)

type options struct {
	backing kvstore.Store
	now     func() time.Time
	log     *slog.Logger
	dedupe  bool
}

// WithBackingStore sets where snapshots go when Config.Persist is true.
func WithBackingStore(s kvstore.Store) Option {
	return func(o *options) { o.backing = s }
}

// WithClock replaces time.Now, mainly for tests.
func WithClock(now func() time.Time) Option {
	return func(o *options) { o.now = now }
}

func WithLogger(l *slog.Logger) Option {
	return func(o *options) { o.log = l }
}

// WithDeduplication collapses concurrent misses for the same key into a
// single fetch. Off by default.
func WithDeduplication() Option {
	return func(o *options) { o.dedupe = true }
}
