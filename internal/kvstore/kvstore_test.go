package kvstore

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func exerciseStore(t *testing.T, s Store) {
	t.Helper()
	ctx := context.Background()

	_, found, err := s.Get(ctx, "patients")
	require.NoError(t, err)
	assert.False(t, found)

	require.NoError(t, s.Set(ctx, "patients", []byte(`{"a":1}`)))
	got, found, err := s.Get(ctx, "patients")
	require.NoError(t, err)
	require.True(t, found)
	assert.JSONEq(t, `{"a":1}`, string(got))

	require.NoError(t, s.Set(ctx, "patients", []byte(`{"a":2}`)))
	got, _, err = s.Get(ctx, "patients")
	require.NoError(t, err)
	assert.JSONEq(t, `{"a":2}`, string(got))
}

func TestMemoryStore(t *testing.T) {
	m := NewMemory()
	exerciseStore(t, m)
	assert.Equal(t, []string{"patients"}, m.Namespaces())
}

func TestMemoryStoreCopiesValues(t *testing.T) {
	m := NewMemory()
	buf := []byte(`{"a":1}`)
	require.NoError(t, m.Set(context.Background(), "k", buf))
	buf[0] = 'x'
	got, _, _ := m.Get(context.Background(), "k")
	assert.Equal(t, `{"a":1}`, string(got))
}

func TestFileStore(t *testing.T) {
	f, err := NewFile(t.TempDir())
	require.NoError(t, err)
	exerciseStore(t, f)

	// namespaces with separators stay inside the directory
	require.NoError(t, f.Set(context.Background(), "../escape/key", []byte("{}")))
	_, found, err := f.Get(context.Background(), "../escape/key")
	require.NoError(t, err)
	assert.True(t, found)
}

func TestFileStoreRequiresDir(t *testing.T) {
	_, err := NewFile("")
	assert.Error(t, err)
}

func TestRistrettoStore(t *testing.T) {
	r, err := NewRistretto(1, 100)
	require.NoError(t, err)
	defer r.Close()
	exerciseStore(t, r)
}

func TestCompressedStore(t *testing.T) {
	inner := NewMemory()
	c := NewCompressed(inner)
	exerciseStore(t, c)

	raw, found, err := inner.Get(context.Background(), "patients")
	require.NoError(t, err)
	require.True(t, found)
	assert.NotEqual(t, `{"a":2}`, string(raw), "inner store should hold compressed bytes")
}

func TestOpenBackends(t *testing.T) {
	ctx := context.Background()

	s, closer, err := Open(ctx, Options{Backend: "none"})
	require.NoError(t, err)
	assert.Nil(t, s)
	assert.NoError(t, closer.Close())

	s, _, err = Open(ctx, Options{Backend: "memory", Compress: true})
	require.NoError(t, err)
	assert.IsType(t, &Compressed{}, s)

	s, closer, err = Open(ctx, Options{Backend: "ristretto", RistrettoMB: 1})
	require.NoError(t, err)
	assert.IsType(t, &Ristretto{}, s)
	assert.NoError(t, closer.Close())

	s, _, err = Open(ctx, Options{Backend: "file", FileDir: t.TempDir()})
	require.NoError(t, err)
	assert.IsType(t, &File{}, s)

	_, _, err = Open(ctx, Options{Backend: "redis"})
	assert.True(t, errors.Is(err, ErrUnknownBackend))

	_, _, err = Open(ctx, Options{Backend: "postgres", Compress: true, DatabaseURL: "postgres://x"})
	assert.Error(t, err)

	_, _, err = Open(ctx, Options{Backend: "postgres"})
	assert.Error(t, err)
}
