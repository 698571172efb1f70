package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// Tools holds the names of the external programs the assembler invokes.
// Each value may be a bare name (resolved via PATH) or an absolute path.
type Tools struct {
	// Partitioner writes the partition table on the SD image (parted).
	Partitioner string `yaml:"partitioner"`
	// Formatter creates a filesystem on a block device (mkfs.<fstype> prefix).
	Formatter string `yaml:"formatter"`
	// DirImager produces a filesystem image pre-populated from a directory (mke2fs).
	DirImager string `yaml:"dir_imager"`
	// Rsync performs rootfs and firmware tree synchronization.
	Rsync string `yaml:"rsync"`
	// Git maintains the firmware collection cache.
	Git string `yaml:"git"`
	// Packer combines partition images into the vendor update container (afptool).
	Packer string `yaml:"packer"`
	// ImageMaker tags and finalizes the vendor update container (rkImageMaker).
	ImageMaker string `yaml:"image_maker"`
}

// Config holds the assembler settings shared by both image paths.
type Config struct {
	// SDImageSizeMB is the total SD image size in MiB.
	SDImageSizeMB int64 `yaml:"sd_image_size_mb"`
	// RootImageSizeMB is the eMMC root partition image size in MiB.
	RootImageSizeMB int64 `yaml:"root_image_size_mb"`
	// FilesystemType is the filesystem created on root partitions.
	FilesystemType string `yaml:"filesystem_type"`
	// FirmwareRepoURL is the out-of-tree firmware collection to mirror
	// into /lib/firmware of the assembled image.
	FirmwareRepoURL string `yaml:"firmware_repo_url"`
	// FirmwareCacheDir is the local clone of the firmware collection.
	FirmwareCacheDir string `yaml:"firmware_cache_dir"`
	// Tools overrides external program names.
	Tools Tools `yaml:"tools"`
}

const (
	// DefaultConfigFilename is the default filename for assembler settings.
	DefaultConfigFilename = "board-imager.yaml"

	// DefaultSDImageSizeMB is the default lower bound for SD images (6 GiB).
	DefaultSDImageSizeMB = 6 * 1024

	// DefaultRootImageSizeMB is the default eMMC root image size (5 GiB).
	DefaultRootImageSizeMB = 5 * 1024

	// DefaultFilesystemType is the filesystem used when none is configured.
	DefaultFilesystemType = "ext4"

	// DefaultFirmwareRepoURL is the upstream firmware collection.
	DefaultFirmwareRepoURL = "https://git.kernel.org/pub/scm/linux/kernel/git/firmware/linux-firmware.git"

	// DefaultFilePermissions is the default file permission for generated files.
	DefaultFilePermissions = 0o644
)

// errConfigIsNotSet is returned when a nil configuration is provided.
var errConfigIsNotSet = errors.New("configuration is not set")

// Default returns a configuration populated with all default values.
func Default() *Config {
	cfg := &Config{}
	applyDefaults(cfg)

	return cfg
}

// Load reads configuration from the provided path and fills in defaults.
// A missing file is not an error: all settings are optional and the
// defaults describe a complete, working assembler.
func Load(path string) (*Config, error) {
	if path == "" {
		path = DefaultConfigFilename
	}

	contents, err := os.ReadFile(filepath.Clean(path))
	if errors.Is(err, os.ErrNotExist) {
		return Default(), nil
	} else if err != nil {
		return nil, fmt.Errorf("read settings: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(contents, &cfg); err != nil {
		return nil, fmt.Errorf("unmarshal settings: %w", err)
	}

	if err := Validate(&cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Save writes the configuration to the provided path.
func Save(path string, cfg *Config) error {
	if cfg == nil {
		return errConfigIsNotSet
	}

	if path == "" {
		path = DefaultConfigFilename
	}

	if err := Validate(cfg); err != nil {
		return err
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshal settings: %w", err)
	}

	if err := os.WriteFile(filepath.Clean(path), data, DefaultFilePermissions); err != nil {
		return fmt.Errorf("write settings: %w", err)
	}

	return nil
}

// Validate checks the provided settings and fills in defaults for unset fields.
func Validate(cfg *Config) error {
	if cfg == nil {
		return errConfigIsNotSet
	}

	if cfg.SDImageSizeMB < 0 || cfg.RootImageSizeMB < 0 {
		return fmt.Errorf("image sizes must be positive: sd %d MiB, root %d MiB",
			cfg.SDImageSizeMB, cfg.RootImageSizeMB)
	}

	applyDefaults(cfg)

	return nil
}

// applyDefaults fills every unset field with its default value.
func applyDefaults(cfg *Config) {
	if cfg.SDImageSizeMB == 0 {
		cfg.SDImageSizeMB = DefaultSDImageSizeMB
	}

	if cfg.RootImageSizeMB == 0 {
		cfg.RootImageSizeMB = DefaultRootImageSizeMB
	}

	if cfg.FilesystemType == "" {
		cfg.FilesystemType = DefaultFilesystemType
	}

	if cfg.FirmwareRepoURL == "" {
		cfg.FirmwareRepoURL = DefaultFirmwareRepoURL
	}

	if cfg.FirmwareCacheDir == "" {
		cfg.FirmwareCacheDir = defaultFirmwareCacheDir()
	}

	if cfg.Tools.Partitioner == "" {
		cfg.Tools.Partitioner = "parted"
	}

	if cfg.Tools.Formatter == "" {
		cfg.Tools.Formatter = "mkfs"
	}

	if cfg.Tools.DirImager == "" {
		cfg.Tools.DirImager = "mke2fs"
	}

	if cfg.Tools.Rsync == "" {
		cfg.Tools.Rsync = "rsync"
	}

	if cfg.Tools.Git == "" {
		cfg.Tools.Git = "git"
	}

	if cfg.Tools.Packer == "" {
		cfg.Tools.Packer = "afptool"
	}

	if cfg.Tools.ImageMaker == "" {
		cfg.Tools.ImageMaker = "rkImageMaker"
	}
}

// defaultFirmwareCacheDir places the firmware clone under the user cache
// directory, falling back to a fixed /var/cache path for root-only setups.
func defaultFirmwareCacheDir() string {
	if dir, err := os.UserCacheDir(); err == nil {
		return filepath.Join(dir, "board-imager", "linux-firmware")
	}

	return "/var/cache/board-imager/linux-firmware"
}
