package sdcard

import (
	"context"

	"github.com/boardforge/board-imager/internal/assemble"
	"github.com/boardforge/board-imager/internal/logger"
	"github.com/boardforge/board-imager/internal/service/common"
	"github.com/boardforge/board-imager/internal/toolrun"
)

// Options are inputs accepted by the SD image assembly entry point.
type Options struct {
	// OutputDir is the build directory holding artifacts; the image is
	// written next to them.
	OutputDir string
	// Chip optionally overrides chip detection.
	Chip string
	// ConfigPath is the optional path to the settings YAML file.
	ConfigPath string
	// AssumeYes skips the interactive prompt when artifacts are missing.
	AssumeYes bool
	// ImageSizeMB optionally overrides the configured image size.
	ImageSizeMB int64
}

// Run assembles a flashable SD card image and is the public entry point
// for the CLI.
func Run(ctx context.Context, opts *Options) error {
	ctx = logger.WithName(ctx, "assemble-sd")

	build, err := common.Prepare(ctx, opts.ConfigPath, opts.OutputDir, opts.Chip, opts.AssumeYes)
	if err != nil {
		return err
	}

	defer build.Close(ctx)

	if opts.ImageSizeMB > 0 {
		build.Cfg.SDImageSizeMB = opts.ImageSizeMB
	}

	assembler := assemble.New(build.Cfg, toolrun.NewExecRunner())

	imagePath, err := assembler.BuildSD(ctx, build.Set, build.Profile)
	if err != nil {
		logger.ErrorKV(ctx, "SD image assembly failed", "error", err)
		return err
	}

	logger.InfoKV(ctx, "SD image ready", "path", imagePath)

	return nil
}
