package journal

import (
	"context"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestBuildDSN(t *testing.T) {
	t.Run("PlainPath", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "data", "auditctl.db")
		dsn, err := buildDSN(path)
		require.NoError(t, err)
		require.Equal(t, "file:"+path, dsn)
		require.DirExists(t, filepath.Dir(path))
	})

	t.Run("FilePrefix", func(t *testing.T) {
		dsn, err := buildDSN("file:./auditctl.db")
		require.NoError(t, err)
		require.Equal(t, "file:./auditctl.db", dsn)
	})

	t.Run("Memory", func(t *testing.T) {
		dsn, err := buildDSN(":memory:")
		require.NoError(t, err)
		require.Equal(t, ":memory:", dsn)
	})

	t.Run("Missing", func(t *testing.T) {
		_, err := buildDSN("  ")
		require.Error(t, err)
	})
}

func TestDigest(t *testing.T) {
	digest, n, err := Digest(strings.NewReader("hello"))
	require.NoError(t, err)
	require.Equal(t, int64(5), n)
	require.Equal(t, "2cf24dba5fb0a30e26e83b2ac5b9e29e1b161e5c1fa7425e73043362938b9824", digest)
}

func TestNilStore(t *testing.T) {
	var s *Store
	require.NoError(t, s.Close())
	require.Error(t, s.Migrate(context.Background()))
	_, err := s.Lookup(context.Background(), "x")
	require.Error(t, err)
}
