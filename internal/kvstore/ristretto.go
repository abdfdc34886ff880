package kvstore

import (
	"context"

	"github.com/dgraph-io/ristretto"
)

// Ristretto is a size-bounded in-memory Store backed by ristretto.
// Values may be evicted under memory pressure, so it suits snapshots that can
// be rebuilt.
type Ristretto struct {
	cache *ristretto.Cache
}

// NewRistretto creates a store bounded to maxSizeMB megabytes.
func NewRistretto(maxSizeMB int64, maxEntries int64) (*Ristretto, error) {
	// NumCounters should be ~10x the number of entries
	numCounters := maxEntries * 10
	if numCounters < 1000 {
		numCounters = 1000
	}
	if maxSizeMB <= 0 {
		maxSizeMB = 16
	}

	c, err := ristretto.NewCache(&ristretto.Config{
		NumCounters: numCounters,
		MaxCost:     maxSizeMB * 1024 * 1024,
		BufferItems: 64,
	})
	if err != nil {
		return nil, err
	}
	return &Ristretto{cache: c}, nil
}

func (r *Ristretto) Get(_ context.Context, namespace string) ([]byte, bool, error) {
	val, found := r.cache.Get(namespace)
	if !found {
		return nil, false, nil
	}
	data, ok := val.([]byte)
	if !ok {
		r.cache.Del(namespace)
		return nil, false, nil
	}
	return data, true, nil
}

func (r *Ristretto) Set(_ context.Context, namespace string, value []byte) error {
	buf := make([]byte, len(value))
	copy(buf, value)
	// a rejected Set is not an error, the snapshot is simply not retained
	_ = r.cache.Set(namespace, buf, int64(len(buf)))
	r.cache.Wait()
	return nil
}

// Close releases ristretto's background goroutines.
func (r *Ristretto) Close() {
	r.cache.Close()
}
