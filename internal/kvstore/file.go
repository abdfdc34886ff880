package kvstore

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
)

// File stores each namespace as a single file under Dir.
type File struct {
	Dir string
}

// NewFile creates the directory if needed.
func NewFile(dir string) (*File, error) {
	if dir == "" {
		return nil, errors.New("kvstore: file backend requires a directory")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create store dir: %w", err)
	}
	return &File{Dir: dir}, nil
}

// path escapes the namespace so arbitrary keys cannot leave Dir.
func (f *File) path(namespace string) string {
	return filepath.Join(f.Dir, url.PathEscape(namespace)+".snapshot")
}

func (f *File) Get(ctx context.Context, namespace string) ([]byte, bool, error) {
	if err := ctx.Err(); err != nil {
		return nil, false, err
	}
	data, err := os.ReadFile(f.path(namespace))
	if errors.Is(err, os.ErrNotExist) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("read %s: %w", namespace, err)
	}
	return data, true, nil
}

// Set writes to a temp file and renames it into place.
func (f *File) Set(ctx context.Context, namespace string, value []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	tmp, err := os.CreateTemp(f.Dir, ".kv-*")
	if err != nil {
		return fmt.Errorf("create temp: %w", err)
	}
	name := tmp.Name()
	if _, err := tmp.Write(value); err != nil {
		tmp.Close()
		os.Remove(name)
		return fmt.Errorf("write %s: %w", namespace, err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(name)
		return fmt.Errorf("close %s: %w", namespace, err)
	}
	if err := os.Rename(name, f.path(namespace)); err != nil {
		os.Remove(name)
		return fmt.Errorf("rename %s: %w", namespace, err)
	}
	return nil
}
