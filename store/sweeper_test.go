package store

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func backdate(t *testing.T, path string, age time.Duration) {
	t.Helper()
	past := time.Now().Add(-age)
	require.NoError(t, os.Chtimes(path, past, past))
}

func TestSweepRemovesExpiredRecords(t *testing.T) {
	t.Parallel()
	fs, _, dir := newTestStore(t)

	expired, _, err := fs.Create("expired.txt", []byte("old data"), "")
	require.NoError(t, err)
	fresh, _, err := fs.Create("fresh.txt", []byte("new data"), "")
	require.NoError(t, err)

	backdate(t, filepath.Join(dir, expired), 25*time.Hour)
	backdate(t, filepath.Join(dir, expired+tokenSuffix), 25*time.Hour)
	backdate(t, filepath.Join(dir, fresh), time.Hour)

	removed := fs.sweepOnce(24 * time.Hour)
	require.Equal(t, 1, removed)

	require.NoFileExists(t, filepath.Join(dir, expired))
	require.NoFileExists(t, filepath.Join(dir, expired+tokenSuffix))
	require.FileExists(t, filepath.Join(dir, fresh))
	require.FileExists(t, filepath.Join(dir, fresh+tokenSuffix))

	_, _, err = fs.Read(expired)
	require.ErrorIs(t, err, ErrNotFound)
	_, _, err = fs.Read(fresh)
	require.NoError(t, err)
}

func TestSweepRemovesOrphanSidecarsAndTempFiles(t *testing.T) {
	t.Parallel()
	fs, _, dir := newTestStore(t)

	orphan := filepath.Join(dir, "gone.txt"+tokenSuffix)
	require.NoError(t, os.WriteFile(orphan, []byte("token"), 0o600))
	backdate(t, orphan, 25*time.Hour)

	stale := filepath.Join(dir, ".upload-abandoned.tmp")
	require.NoError(t, os.WriteFile(stale, []byte("partial"), 0o644))
	backdate(t, stale, 25*time.Hour)

	fs.sweepOnce(24 * time.Hour)

	require.NoFileExists(t, orphan)
	require.NoFileExists(t, stale)
}

func TestSweepKeepsSidecarOfLiveRecord(t *testing.T) {
	t.Parallel()
	fs, _, dir := newTestStore(t)

	name, token, err := fs.Create("live.txt", []byte("data"), "")
	require.NoError(t, err)

	// Old sidecar, fresh record: the pair stays together.
	backdate(t, filepath.Join(dir, name+tokenSuffix), 25*time.Hour)

	fs.sweepOnce(24 * time.Hour)

	require.FileExists(t, filepath.Join(dir, name))
	require.FileExists(t, filepath.Join(dir, name+tokenSuffix))
	require.NoError(t, fs.Delete(name, token))
}

func TestSweeperLoopStopsOnCancel(t *testing.T) {
	t.Parallel()
	fs, _, dir := newTestStore(t)

	name, _, err := fs.Create("expired.txt", []byte("old"), "")
	require.NoError(t, err)
	backdate(t, filepath.Join(dir, name), 25*time.Hour)
	backdate(t, filepath.Join(dir, name+tokenSuffix), 25*time.Hour)

	ctx, cancel := context.WithCancel(context.Background())
	fs.StartSweeper(ctx, 10*time.Millisecond, 24*time.Hour)

	require.Eventually(t, func() bool {
		_, err := os.Stat(filepath.Join(dir, name))
		return os.IsNotExist(err)
	}, 2*time.Second, 10*time.Millisecond)

	cancel()
}
