package cmd

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/boardforge/board-imager/internal/config"
	"github.com/boardforge/board-imager/internal/logger"
	"github.com/boardforge/board-imager/internal/service/sdcard"
	"github.com/boardforge/board-imager/internal/version"
)

var (
	// configPath to the configuration YAML file.
	configPath string
	// chip overrides chip autodetection.
	chip string
	// imageSizeMB overrides the configured SD image size.
	imageSizeMB int64
	// assumeYes continues past missing artifacts without prompting.
	assumeYes bool
	// logLevel selects the minimum logging level.
	logLevel string

	// rootCmd represents the base command for assembling SD card images.
	rootCmd = &cobra.Command{
		Use:   "assemble-sd [build-dir]",
		Short: "Assemble a flashable SD card image from kernel build artifacts",
		Long: `Discovers kernel build artifacts (kernel image, device trees, bootloader,
root filesystem) in the build directory, verifies them, and assembles a raw
partitioned SD card image with the bootloader embedded at the platform's
fixed offsets.

The build directory defaults to the current directory. The chip is detected
from the build environment snapshot or the device tree names; use --chip to
override. Missing artifacts abort the build unless explicitly confirmed.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			// Setup graceful shutdown handling.
			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
			defer stop()

			if level, ok := logger.ParseLogLevel(logLevel); ok {
				logger.SetLevel(level)
			}

			outputDir := "."
			if len(args) > 0 {
				outputDir = args[0]
			}

			options := &sdcard.Options{
				OutputDir:   outputDir,
				Chip:        chip,
				ConfigPath:  configPath,
				AssumeYes:   assumeYes,
				ImageSizeMB: imageSizeMB,
			}

			return sdcard.Run(ctx, options)
		},
	}
)

// Execute runs the assemble-sd CLI and exits with non-zero status on error.
func Execute() {
	version.AttachCobraVersionCommand(rootCmd)

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

//nolint:gochecknoinits // Required by Cobra CLI framework architecture.
func init() {
	// Setup command flags with consistent naming and descriptions.
	rootCmd.Flags().StringVarP(&configPath, "config", "c", config.DefaultConfigFilename, "path to configuration file")
	rootCmd.Flags().StringVar(&chip, "chip", "", "chip identifier override (e.g. rk3399, sun50i-a64)")
	rootCmd.Flags().Int64Var(&imageSizeMB, "image-size", 0, "SD image size in MiB (0 uses configuration)")
	rootCmd.Flags().BoolVarP(&assumeYes, "yes", "y", false, "continue without prompting when artifacts are missing")
	rootCmd.Flags().StringVar(&logLevel, "log-level", "", "minimum log level (debug, info, warn, error)")
}
