package firmware

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/boardforge/board-imager/internal/toolrun"
)

// fakeRunner records invocations and fails tools listed in failOn.
type fakeRunner struct {
	calls  [][]string
	failOn map[string]error
}

func newFakeRunner() *fakeRunner {
	return &fakeRunner{failOn: map[string]error{}}
}

func (f *fakeRunner) Run(_ context.Context, name string, args ...string) error {
	f.calls = append(f.calls, append([]string{name}, args...))

	if err, ok := f.failOn[name]; ok {
		return err
	}

	return nil
}

func (f *fakeRunner) Output(ctx context.Context, name string, args ...string) ([]byte, error) {
	return nil, f.Run(ctx, name, args...)
}

func (f *fakeRunner) LookPath(name string) (string, error) {
	return "/usr/bin/" + name, nil
}

// newOverlay builds an Overlay wired to the fake runner with cacheDir.
func newOverlay(r *fakeRunner, cacheDir string) *Overlay {
	return &Overlay{
		RepoURL:  "https://example.com/firmware.git",
		CacheDir: cacheDir,
		Git:      toolrun.Git{R: r, Tool: "git"},
		Sync:     toolrun.Syncer{R: r, Tool: "rsync"},
	}
}

// TestRefreshClonesWhenCacheAbsent verifies the initial population path.
func TestRefreshClonesWhenCacheAbsent(t *testing.T) {
	t.Parallel()

	r := newFakeRunner()
	cache := filepath.Join(t.TempDir(), "fw")

	require.NoError(t, newOverlay(r, cache).Refresh(context.Background()))
	require.Equal(t, [][]string{
		{"git", "clone", "--depth", "1", "https://example.com/firmware.git", cache},
	}, r.calls)
}

// TestRefreshCloneFailureIsFatal verifies that population failure without a
// usable cache surfaces as an error.
func TestRefreshCloneFailureIsFatal(t *testing.T) {
	t.Parallel()

	r := newFakeRunner()
	r.failOn["git"] = errors.New("network unreachable")

	err := newOverlay(r, filepath.Join(t.TempDir(), "fw")).Refresh(context.Background())
	require.ErrorContains(t, err, "no usable firmware cache")
}

// TestRefreshFailureDegradesWithExistingCache verifies that a failed
// fast-forward keeps the stale cache and does not fail the build.
func TestRefreshFailureDegradesWithExistingCache(t *testing.T) {
	t.Parallel()

	cache := filepath.Join(t.TempDir(), "fw")
	require.NoError(t, os.MkdirAll(filepath.Join(cache, ".git"), 0o755))

	r := newFakeRunner()
	r.failOn["git"] = errors.New("network unreachable")

	require.NoError(t, newOverlay(r, cache).Refresh(context.Background()))
	require.Equal(t, [][]string{
		{"git", "-C", cache, "pull", "--ff-only"},
	}, r.calls)
}

// TestApplyMirrorsIntoTarget verifies mirror semantics and the .git exclusion.
func TestApplyMirrorsIntoTarget(t *testing.T) {
	t.Parallel()

	r := newFakeRunner()
	cache := filepath.Join(t.TempDir(), "fw")
	root := t.TempDir()

	require.NoError(t, newOverlay(r, cache).Apply(context.Background(), root))

	target := filepath.Join(root, "lib", "firmware")
	require.DirExists(t, target)
	require.Equal(t, [][]string{
		{"rsync", "-aHAXx", "--delete", "--exclude", ".git", cache + "/", target},
	}, r.calls)
}

// TestSyncToRunsBothPhases verifies refresh-then-apply ordering.
func TestSyncToRunsBothPhases(t *testing.T) {
	t.Parallel()

	cache := filepath.Join(t.TempDir(), "fw")
	require.NoError(t, os.MkdirAll(filepath.Join(cache, ".git"), 0o755))

	r := newFakeRunner()
	root := t.TempDir()

	require.NoError(t, newOverlay(r, cache).SyncTo(context.Background(), root))
	require.Len(t, r.calls, 2)
	require.Equal(t, "git", r.calls[0][0])
	require.Equal(t, "rsync", r.calls[1][0])
	require.Equal(t, fmt.Sprintf("%s/", cache), r.calls[1][len(r.calls[1])-2])
}
