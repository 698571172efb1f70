package assemble

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"

	"github.com/boardforge/board-imager/internal/artifact"
	"github.com/boardforge/board-imager/internal/bootcfg"
	"github.com/boardforge/board-imager/internal/logger"
	"github.com/boardforge/board-imager/internal/loopdev"
	"github.com/boardforge/board-imager/internal/platform"
	"github.com/boardforge/board-imager/internal/toolrun"
)

// BuildSD assembles the raw partitioned SD image for the artifact set and
// platform profile, returning the image path. On failure the partially
// built image file is kept on disk for inspection, but every privileged
// resource (mount, loop device) is released before the error surfaces:
// the deferred releases run unmount first, detach second.
func (a *Assembler) BuildSD(ctx context.Context, set *artifact.Set, profile *platform.Profile) (imagePath string, err error) {
	if err := toolrun.CheckPrerequisites(a.Runner,
		a.Config.Tools.Partitioner,
		a.Config.Tools.Formatter+"."+a.Config.FilesystemType,
		a.Config.Tools.Rsync,
	); err != nil {
		return "", err
	}

	imagePath = filepath.Join(set.Dir, set.Board+"-sd.img")
	imageSize := a.Config.SDImageSizeMB * 1024 * 1024

	logger.InfoKV(ctx, "Creating SD image",
		"path", imagePath, "bytes", imageSize, "partition_start", profile.PartitionStart)

	if err := createBlankImage(imagePath, imageSize); err != nil {
		return "", err
	}

	partitioner := toolrun.Partitioner{R: a.Runner, Tool: a.Config.Tools.Partitioner}
	if err := partitioner.WriteSinglePartition(ctx, imagePath, profile.PartitionStart, a.Config.FilesystemType); err != nil {
		return "", err
	}

	if err := embedBootloader(ctx, imagePath, set, profile); err != nil {
		return "", err
	}

	loop, err := a.Loops.Attach(ctx, imagePath, true)
	if err != nil {
		return "", err
	}

	defer func() {
		if detachErr := loop.Detach(); detachErr != nil {
			err = errors.Join(err, fmt.Errorf("release loop device: %w", detachErr))
		} else {
			logger.DebugKV(ctx, "Released loop device", "device", loop.Path())
		}
	}()

	part, err := loopdev.WaitPartition(ctx, loop, 1)
	if err != nil {
		return "", err
	}

	formatter := toolrun.Formatter{R: a.Runner, Tool: a.Config.Tools.Formatter}
	if err := formatter.Format(ctx, part, a.Config.FilesystemType); err != nil {
		return "", err
	}

	mnt, err := a.Mounts.Mount(ctx, part, a.Config.FilesystemType)
	if err != nil {
		return "", err
	}

	// Registered after the detach defer, so it runs before it: unmount
	// always precedes loop release.
	defer func() {
		if unmountErr := mnt.Unmount(); unmountErr != nil {
			err = errors.Join(err, fmt.Errorf("unmount partition: %w", unmountErr))
		} else {
			logger.DebugKV(ctx, "Unmounted partition", "target", mnt.Target())
		}
	}()

	if err := a.populateRoot(ctx, set, mnt.Target()); err != nil {
		return "", err
	}

	bootText := bootcfg.Render(profile, set)
	if err := stageBoot(ctx, filepath.Join(mnt.Target(), "boot"), set, bootText); err != nil {
		return "", err
	}

	logger.InfoKV(ctx, "SD image populated", "path", imagePath)

	return imagePath, nil
}
