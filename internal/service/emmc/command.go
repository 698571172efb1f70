package emmc

import (
	"context"

	"github.com/boardforge/board-imager/internal/assemble"
	"github.com/boardforge/board-imager/internal/logger"
	"github.com/boardforge/board-imager/internal/service/common"
	"github.com/boardforge/board-imager/internal/toolrun"
)

// Options are inputs accepted by the eMMC update container entry point.
type Options struct {
	// OutputDir is the build directory holding artifacts; the container
	// and its intermediates are written next to them.
	OutputDir string
	// Chip optionally overrides chip detection.
	Chip string
	// ConfigPath is the optional path to the settings YAML file.
	ConfigPath string
	// AssumeYes skips the interactive prompt when artifacts are missing.
	AssumeYes bool
	// RootSizeMB optionally overrides the configured root image size.
	RootSizeMB int64
}

// Run assembles a vendor eMMC update container and is the public entry
// point for the CLI.
func Run(ctx context.Context, opts *Options) error {
	ctx = logger.WithName(ctx, "assemble-emmc")

	build, err := common.Prepare(ctx, opts.ConfigPath, opts.OutputDir, opts.Chip, opts.AssumeYes)
	if err != nil {
		return err
	}

	defer build.Close(ctx)

	if opts.RootSizeMB > 0 {
		build.Cfg.RootImageSizeMB = opts.RootSizeMB
	}

	assembler := assemble.New(build.Cfg, toolrun.NewExecRunner())

	imagePath, err := assembler.BuildEMMC(ctx, build.Set, build.Profile)
	if err != nil {
		logger.ErrorKV(ctx, "Update container assembly failed", "error", err)
		return err
	}

	logger.InfoKV(ctx, "Update container ready", "path", imagePath)

	return nil
}
