package assemble

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/boardforge/board-imager/internal/artifact"
	"github.com/boardforge/board-imager/internal/bootcfg"
	"github.com/boardforge/board-imager/internal/logger"
	"github.com/boardforge/board-imager/internal/platform"
	"github.com/boardforge/board-imager/internal/toolrun"
)

// errContainerFamily rejects update-container builds for families without a
// vendor packing tool chain.
var errContainerFamily = errors.New("update container packing is only supported for the rockchip family")

// BuildEMMC assembles the vendor eMMC update container, returning the image
// path. All external tool prerequisites are verified before any destructive
// operation begins. Intermediate boot and root partition images are
// retained in the output directory as build-debugging evidence.
func (a *Assembler) BuildEMMC(ctx context.Context, set *artifact.Set, profile *platform.Profile) (string, error) {
	if profile.Family != platform.FamilyRockchip {
		return "", fmt.Errorf("%w: chip %s is %s", errContainerFamily, profile.Chip, profile.Family)
	}

	loader := set.Loader()
	if loader == "" {
		return "", &toolrun.ToolPrerequisiteError{
			Tool: "loader binary",
			Err:  errors.New("no bootloader artifact discovered"),
		}
	}

	if err := toolrun.CheckPrerequisites(a.Runner,
		a.Config.Tools.Packer,
		a.Config.Tools.ImageMaker,
		a.Config.Tools.DirImager,
		a.Config.Tools.Formatter+"."+a.Config.FilesystemType,
		a.Config.Tools.Rsync,
	); err != nil {
		return "", err
	}

	bootImage, bootBytes, err := a.buildBootImage(ctx, set, profile)
	if err != nil {
		return "", err
	}

	rootImage, rootBytes, err := a.buildRootImage(ctx, set)
	if err != nil {
		return "", err
	}

	return a.packContainer(ctx, set, loader, bootImage, bootBytes, rootImage, rootBytes)
}

// buildBootImage stages the boot content into a loose directory and turns
// it into a filesystem image sized by the fixed 1.25 growth rule.
func (a *Assembler) buildBootImage(ctx context.Context, set *artifact.Set, profile *platform.Profile) (string, int64, error) {
	stage, err := os.MkdirTemp("", "board-imager-boot-")
	if err != nil {
		return "", 0, fmt.Errorf("create boot staging directory: %w", err)
	}
	defer os.RemoveAll(stage)

	bootText := bootcfg.Render(profile, set)
	if err := stageBoot(ctx, stage, set, bootText); err != nil {
		return "", 0, err
	}

	used, err := dirSize(stage)
	if err != nil {
		return "", 0, err
	}

	size := BootImageSize(used)
	image := filepath.Join(set.Dir, fmt.Sprintf("boot_%s.img", set.Chip))

	logger.InfoKV(ctx, "Generating boot partition image",
		"path", image, "used_bytes", used, "image_bytes", size)

	imager := toolrun.DirImager{R: a.Runner, Tool: a.Config.Tools.DirImager}
	if err := imager.MakeFromDir(ctx, stage, image, size, BootFSBlockSize); err != nil {
		return "", 0, err
	}

	return image, size, nil
}

// buildRootImage creates and populates the root partition image using the
// same loop/mount discipline as the SD path: unmount before detach on
// every exit.
func (a *Assembler) buildRootImage(ctx context.Context, set *artifact.Set) (imagePath string, size int64, err error) {
	imagePath = filepath.Join(set.Dir, "rootfs.img")
	size = a.Config.RootImageSizeMB * 1024 * 1024

	logger.InfoKV(ctx, "Generating root partition image", "path", imagePath, "bytes", size)

	if err := createBlankImage(imagePath, size); err != nil {
		return "", 0, err
	}

	loop, err := a.Loops.Attach(ctx, imagePath, false)
	if err != nil {
		return "", 0, err
	}

	defer func() {
		if detachErr := loop.Detach(); detachErr != nil {
			err = errors.Join(err, fmt.Errorf("release loop device: %w", detachErr))
		}
	}()

	formatter := toolrun.Formatter{R: a.Runner, Tool: a.Config.Tools.Formatter}
	if err := formatter.Format(ctx, loop.Path(), a.Config.FilesystemType); err != nil {
		return "", 0, err
	}

	mnt, err := a.Mounts.Mount(ctx, loop.Path(), a.Config.FilesystemType)
	if err != nil {
		return "", 0, err
	}

	defer func() {
		if unmountErr := mnt.Unmount(); unmountErr != nil {
			err = errors.Join(err, fmt.Errorf("unmount root image: %w", unmountErr))
		}
	}()

	if err := a.populateRoot(ctx, set, mnt.Target()); err != nil {
		return "", 0, err
	}

	return imagePath, size, nil
}

// packContainer renders the container manifest and runs the vendor packing
// and image-maker steps to produce the final named update image.
func (a *Assembler) packContainer(ctx context.Context, set *artifact.Set, loader, bootImage string, bootBytes int64, rootImage string, rootBytes int64) (string, error) {
	packDir, err := os.MkdirTemp("", "board-imager-pack-")
	if err != nil {
		return "", fmt.Errorf("create packing directory: %w", err)
	}
	defer os.RemoveAll(packDir)

	for _, file := range []string{loader, bootImage, rootImage} {
		if err := copyFile(file, filepath.Join(packDir, filepath.Base(file))); err != nil {
			return "", err
		}
	}

	manifest := NewManifest(set.Board, set.Chip, bootBytes, rootBytes,
		filepath.Base(loader), filepath.Base(bootImage), filepath.Base(rootImage))
	if err := manifest.WriteTo(packDir); err != nil {
		return "", err
	}

	rawContainer := filepath.Join(packDir, "update.raw")

	packer := toolrun.Packer{R: a.Runner, Tool: a.Config.Tools.Packer}
	if err := packer.Pack(ctx, packDir, rawContainer); err != nil {
		return "", err
	}

	tag, err := ReadLoaderTag(loader)
	if err != nil {
		return "", err
	}

	output := filepath.Join(set.Dir, fmt.Sprintf("update-emmc-%s.img", set.Board))

	logger.InfoKV(ctx, "Finalizing update container",
		"path", output, "loader_tag", tag)

	maker := toolrun.ImageMaker{R: a.Runner, Tool: a.Config.Tools.ImageMaker}
	if err := maker.Make(ctx, tag, loader, rawContainer, output, "androidos"); err != nil {
		return "", err
	}

	return output, nil
}
