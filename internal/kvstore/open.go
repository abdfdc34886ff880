package kvstore

import (
	"context"
	"fmt"
	"io"
)

// Options selects and configures a backend for Open.
type Options struct {
	Backend     string // none, memory, file, ristretto, postgres
	FileDir     string
	RistrettoMB int64
	DatabaseURL string
	Compress    bool
}

type closerFunc func() error

func (f closerFunc) Close() error { return f() }

// Open builds the configured Store. A nil Store with nil error means
// persistence is disabled. The returned closer is never nil.
func Open(ctx context.Context, opts Options) (Store, io.Closer, error) {
	noop := closerFunc(func() error { return nil })
	var (
		store  Store
		closer io.Closer = noop
	)

	switch opts.Backend {
	case "", "none":
		return nil, noop, nil
	case "memory":
		store = NewMemory()
	case "file":
		f, err := NewFile(opts.FileDir)
		if err != nil {
			return nil, noop, err
		}
		store = f
	case "ristretto":
		r, err := NewRistretto(opts.RistrettoMB, 1000)
		if err != nil {
			return nil, noop, fmt.Errorf("ristretto store: %w", err)
		}
		store = r
		closer = closerFunc(func() error { r.Close(); return nil })
	case "postgres":
		if opts.Compress {
			return nil, noop, fmt.Errorf("kvstore: compression is not supported with postgres (JSONB)")
		}
		if opts.DatabaseURL == "" {
			return nil, noop, fmt.Errorf("kvstore: postgres backend requires DATABASE_URL")
		}
		p, db, err := OpenPostgres(ctx, opts.DatabaseURL)
		if err != nil {
			return nil, noop, fmt.Errorf("postgres store: %w", err)
		}
		if err := p.EnsureSchema(ctx); err != nil {
			db.Close()
			return nil, noop, err
		}
		return p, db, nil
	default:
		return nil, noop, fmt.Errorf("%w: %q", ErrUnknownBackend, opts.Backend)
	}

	if opts.Compress {
		store = NewCompressed(store)
	}
	return store, closer, nil
}
