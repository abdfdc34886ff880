package cache

import (
	"context"
	"time"
)

// Entry is a cached value with its bookkeeping.
type Entry[T any] struct {
	Data           T         `json:"data"`
	CreatedAt      time.Time `json:"created_at"`
	ExpiresAt      time.Time `json:"expires_at"`
	LastAccessedAt time.Time `json:"last_accessed_at"`
	Tags           []string  `json:"tags,omitempty"`
	Priority       Priority  `json:"priority"`
	AccessCount    uint64    `json:"access_count"`
}

// Expired reports whether the entry is past its expiry at now. An entry is
// still valid at exactly ExpiresAt.
func (e Entry[T]) Expired(now time.Time) bool {
	return now.After(e.ExpiresAt)
}

// FetchFunc produces a value on a cache miss.
type FetchFunc[T any] func(ctx context.Context) (T, error)

// EntryOption customises a single Set or FetchWithCache call.
type EntryOption func(*entryOptions)

type entryOptions struct {
	tags         []string
	priority     Priority
	ttl          time.Duration
	forceRefresh bool
}

// WithTags attaches tags used by InvalidateByTags.
func WithTags(tags ...string) EntryOption {
	return func(o *entryOptions) { o.tags = append(o.tags, tags...) }
}

// WithPriority overrides the store's default priority.
func WithPriority(p Priority) EntryOption {
	return func(o *entryOptions) { o.priority = p }
}

// WithTTL sets the entry lifetime when the ttl argument is not positive.
func WithTTL(ttl time.Duration) EntryOption {
	return func(o *entryOptions) { o.ttl = ttl }
}

// ForceRefresh makes FetchWithCache skip the cached value.
func ForceRefresh() EntryOption {
	return func(o *entryOptions) { o.forceRefresh = true }
}

func collectEntryOptions(opts []EntryOption) entryOptions {
	var o entryOptions
	for _, opt := range opts {
		if opt != nil {
			opt(&o)
		}
	}
	return o
}
