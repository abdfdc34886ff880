package kvstore

import (
	"bytes"
	"context"
	"fmt"
	"io"

	"github.com/andybalholm/brotli"
)

// Compressed brotli-compresses values before handing them to Inner.
type Compressed struct {
	Inner Store
	Level int
}

// NewCompressed wraps inner using brotli.DefaultCompression.
func NewCompressed(inner Store) *Compressed {
	return &Compressed{Inner: inner, Level: brotli.DefaultCompression}
}

func (c *Compressed) Get(ctx context.Context, namespace string) ([]byte, bool, error) {
	data, found, err := c.Inner.Get(ctx, namespace)
	if err != nil || !found {
		return nil, found, err
	}
	out, err := io.ReadAll(brotli.NewReader(bytes.NewReader(data)))
	if err != nil {
		return nil, false, fmt.Errorf("decompress %s: %w", namespace, err)
	}
	return out, true, nil
}

func (c *Compressed) Set(ctx context.Context, namespace string, value []byte) error {
	var buf bytes.Buffer
	w := brotli.NewWriterLevel(&buf, c.Level)
	if _, err := w.Write(value); err != nil {
		return fmt.Errorf("compress %s: %w", namespace, err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("compress %s: %w", namespace, err)
	}
	return c.Inner.Set(ctx, namespace, buf.Bytes())
}
