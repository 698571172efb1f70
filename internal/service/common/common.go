package common

import (
	"context"

	"github.com/boardforge/board-imager/internal/artifact"
	"github.com/boardforge/board-imager/internal/config"
	"github.com/boardforge/board-imager/internal/guard"
	"github.com/boardforge/board-imager/internal/logger"
	"github.com/boardforge/board-imager/internal/platform"
)

// Build is the prepared state both assembly commands start from: loaded
// settings, a verified artifact set, the resolved platform profile, and
// ownership of the build directory.
type Build struct {
	// Cfg is the loaded and defaulted configuration.
	Cfg *config.Config
	// Set is the located artifact set.
	Set *artifact.Set
	// Profile is the platform layout contract for the resolved chip.
	Profile *platform.Profile

	lock *guard.BuildLock
}

// Prepare runs the shared preamble of an assembly command: load settings,
// lock the build directory, discover and verify artifacts, resolve the
// platform profile. On error the directory lock is already released.
func Prepare(ctx context.Context, configPath, outputDir, chip string, assumeYes bool) (*Build, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}

	lock, err := guard.Acquire(ctx, outputDir)
	if err != nil {
		return nil, err
	}

	build, err := prepareLocked(ctx, cfg, outputDir, chip, assumeYes)
	if err != nil {
		if releaseErr := lock.Release(); releaseErr != nil {
			logger.WarnKV(ctx, "Failed to release build directory lock", "error", releaseErr)
		}

		return nil, err
	}

	build.lock = lock

	return build, nil
}

// prepareLocked performs the discovery steps that require the directory lock.
func prepareLocked(ctx context.Context, cfg *config.Config, outputDir, chip string, assumeYes bool) (*Build, error) {
	locator := artifact.NewLocator(outputDir)

	resolvedChip := locator.ResolveChip(ctx, chip)
	set, missing := locator.Locate(ctx, resolvedChip)

	confirm := artifact.DefaultConfirmer()
	if assumeYes {
		confirm = artifact.AlwaysConfirm
	}

	state, err := artifact.Verify(ctx, missing, confirm)
	if err != nil {
		return nil, err
	}

	logger.InfoKV(ctx, "Artifact verification finished",
		"state", state.String(), "chip", set.Chip, "board", set.Board)

	profile, err := platform.Resolve(set.Chip, set.BootForm)
	if err != nil {
		return nil, err
	}

	return &Build{Cfg: cfg, Set: set, Profile: profile}, nil
}

// Close releases the build directory lock. Safe to call exactly once.
func (b *Build) Close(ctx context.Context) {
	if err := b.lock.Release(); err != nil {
		logger.WarnKV(ctx, "Failed to release build directory lock", "error", err)
	}
}
