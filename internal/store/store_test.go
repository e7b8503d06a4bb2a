package store

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "nexus.db")
	s, err := Open(path)
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestSaveLoadFrameworks(t *testing.T) {
	s := openTestStore(t)

	require.NoError(t, s.SaveFramework(FrameworkSnapshot{ID: "F-1", Name: "spark", User: "alice"}))
	require.NoError(t, s.SaveFramework(FrameworkSnapshot{ID: "F-2", Name: "storm", User: "bob"}))

	snaps, err := s.LoadFrameworks()
	require.NoError(t, err)
	require.Len(t, snaps, 2)
}

func TestDeleteFramework(t *testing.T) {
	s := openTestStore(t)
	require.NoError(t, s.SaveFramework(FrameworkSnapshot{ID: "F-1", Name: "spark"}))
	require.NoError(t, s.DeleteFramework("F-1"))

	snaps, err := s.LoadFrameworks()
	require.NoError(t, err)
	require.Empty(t, snaps)
}

func TestSaveLoadEpoch(t *testing.T) {
	s := openTestStore(t)

	epoch, err := s.LoadEpoch()
	require.NoError(t, err)
	require.Zero(t, epoch)

	require.NoError(t, s.SaveEpoch(42))
	epoch, err = s.LoadEpoch()
	require.NoError(t, err)
	require.EqualValues(t, 42, epoch)
}
