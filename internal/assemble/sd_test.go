package assemble

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/boardforge/board-imager/internal/bootcfg"
	"github.com/boardforge/board-imager/internal/toolrun"
)

// TestBuildSD verifies the happy path end to end over fakes: partition
// layout, bootloader embedding, boot staging and release ordering.
func TestBuildSD(t *testing.T) {
	t.Parallel()

	var events []string

	runner := &fakeRunner{}
	a := testAssembler(t, runner, &events)
	set := testArtifactSet(t)
	profile := testProfile(t)

	imagePath, err := a.BuildSD(context.Background(), set, profile)
	require.NoError(t, err)
	require.Equal(t, filepath.Join(set.Dir, "rockpro64-sd.img"), imagePath)

	info, err := os.Stat(imagePath)
	require.NoError(t, err)
	require.EqualValues(t, a.Config.SDImageSizeMB*1024*1024, info.Size())

	// Rockchip layout: label first, then a single partition from 64 MiB.
	require.Contains(t, runner.calls[0], "parted -s "+imagePath+" mklabel msdos")
	require.Contains(t, runner.calls[1], "mkpart primary ext4 64MiB 100%")

	// Bootloader bytes embedded at the fixed loader offset.
	image, err := os.ReadFile(imagePath)
	require.NoError(t, err)
	require.Equal(t, byte('9'), image[64*512+21])

	// Boot directory staged on the mounted partition.
	mounter, ok := a.Mounts.(*fakeMounter)
	require.True(t, ok)

	cfgText, err := os.ReadFile(filepath.Join(mounter.target, "boot", bootcfg.RelPath))
	require.NoError(t, err)
	require.Contains(t, string(cfgText), "console=ttyS2,1500000")
	require.FileExists(t, filepath.Join(mounter.target, "boot", "Image"))
	require.FileExists(t, filepath.Join(mounter.target, "boot", "dtb", "rk3399-rockpro64.dtb"))

	// Unmount always precedes loop release.
	require.Equal(t, []string{"attach rockpro64-sd.img", "mount", "unmount", "detach"}, events)
}

// TestBuildSDFormatFailureReleasesLoop verifies that a mkfs failure after
// attachment still detaches the loop device and keeps the partial image
// on disk for inspection.
func TestBuildSDFormatFailureReleasesLoop(t *testing.T) {
	t.Parallel()

	var events []string

	boom := errors.New("mkfs blew up")
	runner := &fakeRunner{failOn: map[string]error{"mkfs.ext4": boom}}
	a := testAssembler(t, runner, &events)
	set := testArtifactSet(t)

	_, err := a.BuildSD(context.Background(), set, testProfile(t))
	require.ErrorIs(t, err, boom)

	require.Equal(t, []string{"attach rockpro64-sd.img", "detach"}, events)
	require.FileExists(t, filepath.Join(set.Dir, "rockpro64-sd.img"))
}

// TestBuildSDCopyFailureUnmountsBeforeDetach verifies release ordering on
// a failure that happens while the partition is mounted.
func TestBuildSDCopyFailureUnmountsBeforeDetach(t *testing.T) {
	t.Parallel()

	var events []string

	boom := errors.New("rsync blew up")
	runner := &fakeRunner{failOn: map[string]error{"rsync": boom}}
	a := testAssembler(t, runner, &events)

	_, err := a.BuildSD(context.Background(), testArtifactSet(t), testProfile(t))
	require.ErrorIs(t, err, boom)

	require.Equal(t, []string{"attach rockpro64-sd.img", "mount", "unmount", "detach"}, events)
}

// TestBuildSDMissingToolFailsBeforeAnyWork verifies the prerequisite check
// rejects the build before an image file is even created.
func TestBuildSDMissingToolFailsBeforeAnyWork(t *testing.T) {
	t.Parallel()

	var events []string

	runner := &fakeRunner{missing: map[string]bool{"parted": true}}
	a := testAssembler(t, runner, &events)
	set := testArtifactSet(t)

	_, err := a.BuildSD(context.Background(), set, testProfile(t))

	var prereq *toolrun.ToolPrerequisiteError
	require.ErrorAs(t, err, &prereq)
	require.Equal(t, "parted", prereq.Tool)

	require.Empty(t, runner.calls)
	require.Empty(t, events)
	require.NoFileExists(t, filepath.Join(set.Dir, "rockpro64-sd.img"))
}
