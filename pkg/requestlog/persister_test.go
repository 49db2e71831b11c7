package requestlog

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFilePersister(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "nested", "requests.json")
	p := NewFilePersister(path)

	_, err := p.Load(ctx)
	assert.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, p.Save(ctx, []byte("first")))
	require.NoError(t, p.Save(ctx, []byte("second")))

	data, err := p.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, "second", string(data))

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())

	entries, err := os.ReadDir(filepath.Dir(path))
	require.NoError(t, err)
	assert.Len(t, entries, 1, "temp files must not be left behind")
}

func TestSQLitePersister(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "requests.db")
	p, err := OpenSQLitePersister(path)
	require.NoError(t, err)

	_, err = p.Load(ctx)
	assert.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, p.Save(ctx, []byte(`{"version":1,"records":[]}`)))
	require.NoError(t, p.Save(ctx, []byte(`{"version":1,"records":[{}]}`)))
	require.NoError(t, p.Close())

	reopened, err := OpenSQLitePersister(path)
	require.NoError(t, err)
	defer reopened.Close()
	data, err := reopened.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, `{"version":1,"records":[{}]}`, string(data))
}

func TestSQLitePersister_BacksStore(t *testing.T) {
	path := filepath.Join(t.TempDir(), "requests.db")
	p, err := OpenSQLitePersister(path)
	require.NoError(t, err)

	s := New(Options{Persister: p})
	s.Insert(rec(1))
	s.ApplyUpdate(completion("id-001", 204))
	require.NoError(t, s.Close())

	p2, err := OpenPersister(BackendSQLite, path)
	require.NoError(t, err)
	reloaded := newTestStore(t, Options{Persister: p2})
	got, ok := reloaded.Get("id-001")
	require.True(t, ok)
	assert.Equal(t, 204, *got.ResponseCode)
}

func TestMemoryPersister_CopiesData(t *testing.T) {
	ctx := context.Background()
	p := NewMemoryPersister()
	buf := []byte("abc")
	require.NoError(t, p.Save(ctx, buf))
	buf[0] = 'z'

	data, err := p.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, "abc", string(data))
	assert.Equal(t, 1, p.Saves())
}

func TestParseBackend(t *testing.T) {
	for in, want := range map[string]Backend{
		"":       BackendFile,
		"file":   BackendFile,
		"sqlite": BackendSQLite,
		"memory": BackendMemory,
	} {
		got, err := ParseBackend(in)
		require.NoError(t, err)
		assert.Equal(t, want, got)
	}
	_, err := ParseBackend("redis")
	assert.Error(t, err)

	_, err = OpenPersister("redis", "x")
	assert.Error(t, err)
}

func TestMatches(t *testing.T) {
	r := rec(7)
	assert.True(t, Matches(r, ""))
	assert.True(t, Matches(r, "ITEMS/7"))
	assert.True(t, Matches(r, "get"))
	assert.False(t, Matches(r, "200"))

	code := 200
	r.ResponseCode = &code
	assert.True(t, Matches(r, "200"))
	assert.True(t, Matches(r, " 200 "))
}
