package assemble

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/boardforge/board-imager/internal/artifact"
	"github.com/boardforge/board-imager/internal/bootcfg"
	"github.com/boardforge/board-imager/internal/config"
	"github.com/boardforge/board-imager/internal/firmware"
	"github.com/boardforge/board-imager/internal/logger"
	"github.com/boardforge/board-imager/internal/loopdev"
	"github.com/boardforge/board-imager/internal/mountpoint"
	"github.com/boardforge/board-imager/internal/platform"
	"github.com/boardforge/board-imager/internal/toolrun"
)

// rootfsExcludes are synthetic mount-point subtrees never copied into an
// assembled image.
//
//nolint:gochecknoglobals // Static exclusion list.
var rootfsExcludes = []string{"dev/*", "proc/*", "sys/*", "tmp/*", "run/*", "lost+found"}

// Assembler builds storage images from a validated artifact set. It
// exclusively owns all intermediate resources (loop devices, mount points,
// staging directories) for the duration of one build; concurrent builds
// against the same output directory must be serialized by the caller.
type Assembler struct {
	// Config carries sizes, firmware settings and tool name overrides.
	Config *config.Config
	// Runner executes external tools.
	Runner toolrun.Runner
	// Loops attaches image files to loop devices.
	Loops loopdev.Manager
	// Mounts provides scoped temporary mounts.
	Mounts mountpoint.Mounter
	// Firmware overlays the external firmware collection.
	Firmware *firmware.Overlay
}

// New wires an Assembler with kernel-backed resource managers.
func New(cfg *config.Config, runner toolrun.Runner) *Assembler {
	return &Assembler{
		Config: cfg,
		Runner: runner,
		Loops:  loopdev.NewDeviceManager(),
		Mounts: mountpoint.NewTempMounter(),
		Firmware: &firmware.Overlay{
			RepoURL:  cfg.FirmwareRepoURL,
			CacheDir: cfg.FirmwareCacheDir,
			Git:      toolrun.Git{R: runner, Tool: cfg.Tools.Git},
			Sync:     toolrun.Syncer{R: runner, Tool: cfg.Tools.Rsync},
		},
	}
}

// createBlankImage creates a zero-initialized sparse file of exactly size
// bytes, replacing any previous image.
func createBlankImage(path string, size int64) error {
	file, err := os.OpenFile(filepath.Clean(path), os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("create image %s: %w", path, err)
	}
	defer file.Close()

	if err := file.Truncate(size); err != nil {
		return fmt.Errorf("size image %s to %d bytes: %w", path, size, err)
	}

	return nil
}

// embedBootloader writes each bootloader stage at its profile offset inside
// the raw image. Stages missing from a confirmed partial build are skipped
// with a warning instead of failing the run.
func embedBootloader(ctx context.Context, imagePath string, set *artifact.Set, profile *platform.Profile) error {
	image, err := os.OpenFile(filepath.Clean(imagePath), os.O_WRONLY, 0)
	if err != nil {
		return fmt.Errorf("open image for bootloader embedding: %w", err)
	}
	defer image.Close()

	for _, embed := range profile.BootEmbeds {
		source, ok := set.Bootloader[embed.Artifact]
		if !ok {
			logger.WarnKV(ctx, "Skipping bootloader embed, artifact missing",
				"artifact", embed.Artifact, "offset", embed.Offset)

			continue
		}

		contents, err := os.ReadFile(filepath.Clean(source))
		if err != nil {
			return fmt.Errorf("read bootloader stage %s: %w", source, err)
		}

		if _, err := image.WriteAt(contents, embed.Offset); err != nil {
			return fmt.Errorf("embed %s at offset %d: %w", embed.Artifact, embed.Offset, err)
		}

		logger.InfoKV(ctx, "Embedded bootloader stage",
			"artifact", embed.Artifact, "offset", embed.Offset, "bytes", len(contents))
	}

	return nil
}

// stageBoot populates a boot directory: kernel image, device-tree blobs
// under dtb/, optional kernel config and System.map, and the rendered boot
// configuration. Used both for the mounted /boot of SD images and the
// loose staging directory of eMMC boot images.
func stageBoot(ctx context.Context, bootDir string, set *artifact.Set, bootText string) error {
	if err := os.MkdirAll(filepath.Join(bootDir, "dtb"), 0o755); err != nil {
		return fmt.Errorf("create boot directory: %w", err)
	}

	if set.KernelImage != "" {
		if err := copyFile(set.KernelImage, filepath.Join(bootDir, filepath.Base(set.KernelImage))); err != nil {
			return err
		}
	}

	for _, dtb := range set.DeviceTrees {
		if err := copyFile(dtb, filepath.Join(bootDir, "dtb", filepath.Base(dtb))); err != nil {
			return err
		}
	}

	for _, optional := range []string{set.KernelConfig, set.SystemMap} {
		if optional == "" {
			continue
		}

		if err := copyFile(optional, filepath.Join(bootDir, filepath.Base(optional))); err != nil {
			return err
		}
	}

	cfgPath := filepath.Join(bootDir, bootcfg.RelPath)
	if err := os.MkdirAll(filepath.Dir(cfgPath), 0o755); err != nil {
		return fmt.Errorf("create boot config directory: %w", err)
	}

	if err := os.WriteFile(cfgPath, []byte(bootText), config.DefaultFilePermissions); err != nil {
		return fmt.Errorf("write boot configuration: %w", err)
	}

	logger.DebugKV(ctx, "Boot directory staged", "dir", bootDir, "dtbs", len(set.DeviceTrees))

	return nil
}

// populateRoot fills a root filesystem tree: the rootfs copy with synthetic
// subtrees excluded, kernel modules when present, and the firmware overlay.
func (a *Assembler) populateRoot(ctx context.Context, set *artifact.Set, root string) error {
	syncer := toolrun.Syncer{R: a.Runner, Tool: a.Config.Tools.Rsync}

	if set.RootfsDir != "" {
		logger.InfoKV(ctx, "Copying root filesystem tree", "source", set.RootfsDir, "target", root)

		if err := syncer.Mirror(ctx, set.RootfsDir, root, rootfsExcludes); err != nil {
			return err
		}
	}

	if set.ModulesDir != "" {
		target := filepath.Join(root, "lib", "modules")
		if err := os.MkdirAll(target, 0o755); err != nil {
			return fmt.Errorf("create modules directory: %w", err)
		}

		logger.InfoKV(ctx, "Copying kernel modules", "source", set.ModulesDir)

		if err := syncer.Mirror(ctx, set.ModulesDir, target, nil); err != nil {
			return err
		}
	}

	return a.Firmware.SyncTo(ctx, root)
}

// copyFile copies a regular file preserving its permission bits.
func copyFile(src, dst string) error {
	in, err := os.Open(filepath.Clean(src))
	if err != nil {
		return fmt.Errorf("open %s: %w", src, err)
	}
	defer in.Close()

	info, err := in.Stat()
	if err != nil {
		return fmt.Errorf("stat %s: %w", src, err)
	}

	out, err := os.OpenFile(filepath.Clean(dst), os.O_CREATE|os.O_TRUNC|os.O_WRONLY, info.Mode().Perm())
	if err != nil {
		return fmt.Errorf("create %s: %w", dst, err)
	}

	if _, err := io.Copy(out, in); err != nil {
		out.Close()

		return fmt.Errorf("copy %s to %s: %w", src, dst, err)
	}

	return out.Close()
}
