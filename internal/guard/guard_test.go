package guard

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

// TestAcquireRelease verifies the basic lock lifecycle: acquire writes the
// marker, release removes it, re-acquire succeeds.
func TestAcquireRelease(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	ctx := context.Background()

	lock, err := Acquire(ctx, dir)
	require.NoError(t, err)
	require.FileExists(t, filepath.Join(dir, MarkerFilename))

	require.NoError(t, lock.Release())
	require.NoFileExists(t, filepath.Join(dir, MarkerFilename))

	lock, err = Acquire(ctx, dir)
	require.NoError(t, err)
	require.NoError(t, lock.Release())
}

// TestAcquireBusy verifies that a directory locked by this live process is
// refused to a second acquirer.
func TestAcquireBusy(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	ctx := context.Background()

	lock, err := Acquire(ctx, dir)
	require.NoError(t, err)
	defer lock.Release()

	_, err = Acquire(ctx, dir)

	var busy *DirectoryBusyError
	require.ErrorAs(t, err, &busy)
	require.Equal(t, dir, busy.Dir)
	require.Equal(t, os.Getpid(), busy.PID)
}

// TestAcquireReclaimsStaleMarker verifies that a marker without a live
// owner is reclaimed instead of blocking builds forever.
func TestAcquireReclaimsStaleMarker(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	marker := filepath.Join(dir, MarkerFilename)
	require.NoError(t, os.WriteFile(marker, []byte("-1\n"), 0o644))

	lock, err := Acquire(context.Background(), dir)
	require.NoError(t, err)
	require.NoError(t, lock.Release())
}

// TestAcquireTreatsGarbageMarkerAsStale verifies that an unparseable
// marker does not wedge the directory.
func TestAcquireTreatsGarbageMarkerAsStale(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, MarkerFilename), []byte("not a pid"), 0o644))

	lock, err := Acquire(context.Background(), dir)
	require.NoError(t, err)
	require.NoError(t, lock.Release())
}
