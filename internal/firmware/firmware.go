package firmware

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/boardforge/board-imager/internal/logger"
	"github.com/boardforge/board-imager/internal/toolrun"
)

// TargetRelPath is where the collection lands inside the assembled root.
const TargetRelPath = "lib/firmware"

// Overlay mirrors an out-of-tree firmware collection into assembled root
// filesystem trees, maintaining a local cache clone between runs.
type Overlay struct {
	// RepoURL is the firmware collection to clone.
	RepoURL string
	// CacheDir is the local clone location.
	CacheDir string
	// Git maintains the cache.
	Git toolrun.Git
	// Sync mirrors the cache into targets.
	Sync toolrun.Syncer
}

// Refresh ensures a usable cache exists: cloning when absent (fatal on
// failure, there is nothing to fall back to), fast-forwarding when present
// (failure degrades to a warning and the stale cache is used as-is).
func (o *Overlay) Refresh(ctx context.Context) error {
	if _, err := os.Stat(filepath.Join(o.CacheDir, ".git")); err == nil {
		if err := o.Git.Refresh(ctx, o.CacheDir); err != nil {
			logger.WarnKV(ctx, "Firmware cache refresh failed, using existing cache",
				"cache", o.CacheDir, "error", err)
		}

		return nil
	}

	logger.InfoKV(ctx, "Cloning firmware collection", "url", o.RepoURL, "cache", o.CacheDir)

	if err := os.MkdirAll(filepath.Dir(o.CacheDir), 0o755); err != nil {
		return fmt.Errorf("prepare firmware cache parent: %w", err)
	}

	if err := o.Git.Clone(ctx, o.RepoURL, o.CacheDir); err != nil {
		return fmt.Errorf("no usable firmware cache: %w", err)
	}

	return nil
}

// Apply synchronizes the cache into <targetRoot>/lib/firmware with mirror
// semantics: files gone from the cache are deleted from the target.
func (o *Overlay) Apply(ctx context.Context, targetRoot string) error {
	target := filepath.Join(targetRoot, TargetRelPath)
	if err := os.MkdirAll(target, 0o755); err != nil {
		return fmt.Errorf("prepare firmware target: %w", err)
	}

	if err := o.Sync.Mirror(ctx, o.CacheDir, target, []string{".git"}); err != nil {
		return fmt.Errorf("overlay firmware: %w", err)
	}

	logger.DebugKV(ctx, "Firmware collection synchronized", "target", target)

	return nil
}

// SyncTo refreshes the cache and applies it to the target root.
func (o *Overlay) SyncTo(ctx context.Context, targetRoot string) error {
	if err := o.Refresh(ctx); err != nil {
		return err
	}

	return o.Apply(ctx, targetRoot)
}
