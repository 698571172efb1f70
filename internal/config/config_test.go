package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

// TestLoadMissingFileYieldsDefaults verifies that an absent settings file is
// not an error and produces a complete configuration.
func TestLoadMissingFileYieldsDefaults(t *testing.T) {
	t.Parallel()

	cfg, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.NoError(t, err)
	require.EqualValues(t, DefaultSDImageSizeMB, cfg.SDImageSizeMB)
	require.EqualValues(t, DefaultRootImageSizeMB, cfg.RootImageSizeMB)
	require.Equal(t, DefaultFilesystemType, cfg.FilesystemType)
	require.Equal(t, "parted", cfg.Tools.Partitioner)
	require.Equal(t, "afptool", cfg.Tools.Packer)
	require.NotEmpty(t, cfg.FirmwareCacheDir)
}

// TestLoadPartialFileFillsDefaults verifies that configured values survive
// loading and unset values are defaulted.
func TestLoadPartialFileFillsDefaults(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "settings.yaml")
	contents := "sd_image_size_mb: 8192\ntools:\n  packer: /opt/rk/afptool\n"
	require.NoError(t, os.WriteFile(path, []byte(contents), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	require.EqualValues(t, 8192, cfg.SDImageSizeMB)
	require.Equal(t, "/opt/rk/afptool", cfg.Tools.Packer)
	require.EqualValues(t, DefaultRootImageSizeMB, cfg.RootImageSizeMB)
	require.Equal(t, "rkImageMaker", cfg.Tools.ImageMaker)
}

// TestValidateRejectsNegativeSizes verifies the size sanity check.
func TestValidateRejectsNegativeSizes(t *testing.T) {
	t.Parallel()

	err := Validate(&Config{SDImageSizeMB: -1})
	require.Error(t, err)
}

// TestSaveAndLoadRoundTrip verifies that Save output loads back identically.
func TestSaveAndLoadRoundTrip(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "settings.yaml")
	cfg := Default()
	cfg.SDImageSizeMB = 7 * 1024
	cfg.FirmwareRepoURL = "https://example.com/firmware.git"

	require.NoError(t, Save(path, cfg))

	loaded, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, cfg, loaded)
}
