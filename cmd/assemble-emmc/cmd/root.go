package cmd

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/boardforge/board-imager/internal/config"
	"github.com/boardforge/board-imager/internal/logger"
	"github.com/boardforge/board-imager/internal/service/emmc"
	"github.com/boardforge/board-imager/internal/version"
)

var (
	// configPath to the configuration YAML file.
	configPath string
	// chip overrides chip autodetection.
	chip string
	// rootSizeMB overrides the configured root partition image size.
	rootSizeMB int64
	// assumeYes continues past missing artifacts without prompting.
	assumeYes bool
	// logLevel selects the minimum logging level.
	logLevel string

	// rootCmd represents the base command for assembling eMMC update containers.
	rootCmd = &cobra.Command{
		Use:   "assemble-emmc [build-dir]",
		Short: "Assemble a vendor eMMC update container from kernel build artifacts",
		Long: `Discovers kernel build artifacts in the build directory, verifies them,
and assembles a Rockchip eMMC update container: a boot partition image,
a root partition image, and the packed update image the vendor flashing
tools consume.

The build directory defaults to the current directory. Intermediate boot
and root images are kept next to the final container. Requires the vendor
packing tools (afptool, rkImageMaker) on PATH.`,
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

			options := &emmc.Options{
				OutputDir:  outputDir,
				Chip:       chip,
				ConfigPath: configPath,
				AssumeYes:  assumeYes,
				RootSizeMB: rootSizeMB,
			}

			return emmc.Run(ctx, options)
		},
	}
)

// Execute runs the assemble-emmc CLI and exits with non-zero status on error.
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
	rootCmd.Flags().StringVar(&chip, "chip", "", "chip identifier override (e.g. rk3399)")
	rootCmd.Flags().Int64Var(&rootSizeMB, "root-size", 0, "root image size in MiB (0 uses configuration)")
	rootCmd.Flags().BoolVarP(&assumeYes, "yes", "y", false, "continue without prompting when artifacts are missing")
	rootCmd.Flags().StringVar(&logLevel, "log-level", "", "minimum log level (debug, info, warn, error)")
}
