package bootcfg

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/boardforge/board-imager/internal/artifact"
	"github.com/boardforge/board-imager/internal/platform"
)

// fixedInputs returns a stable profile/set pair for rendering tests.
func fixedInputs(t *testing.T) (*platform.Profile, *artifact.Set) {
	t.Helper()

	profile, err := platform.Resolve("rk3399", platform.BootSplit)
	require.NoError(t, err)

	set := &artifact.Set{
		Board:       "rockpro64",
		KernelImage: "/build/Image",
		DeviceTrees: []string{"/build/rk3399-rockpro64.dtb"},
	}

	return profile, set
}

// TestRenderDeterministic verifies that two successive renders of the same
// inputs are byte-identical.
func TestRenderDeterministic(t *testing.T) {
	t.Parallel()

	profile, set := fixedInputs(t)
	require.Equal(t, Render(profile, set), Render(profile, set))
}

// TestRenderContent verifies the rendered entry references the kernel, the
// device-tree basename and the platform console/root parameters.
func TestRenderContent(t *testing.T) {
	t.Parallel()

	profile, set := fixedInputs(t)

	got := Render(profile, set)
	want := "label rockpro64\n" +
		"  kernel /boot/Image\n" +
		"  fdt /boot/dtb/rk3399-rockpro64.dtb\n" +
		"  append root=/dev/mmcblk1p1 rw rootwait console=ttyS2,1500000\n"
	require.Equal(t, want, got)
}

// TestRenderSunxi verifies family-specific root device and console values.
func TestRenderSunxi(t *testing.T) {
	t.Parallel()

	profile, err := platform.Resolve("sun50i-a64", platform.BootCombined)
	require.NoError(t, err)

	set := &artifact.Set{
		Board:       "pine64",
		KernelImage: "/build/zImage",
		DeviceTrees: []string{"/build/sun50i-a64-pine64.dtb"},
	}

	got := Render(profile, set)
	require.Contains(t, got, "kernel /boot/zImage")
	require.Contains(t, got, "append root=/dev/mmcblk0p1 rw rootwait console=ttyS0,115200")
}

// TestRenderWithoutDTB verifies that the fdt line is omitted when no blob
// was discovered (partial/testing image).
func TestRenderWithoutDTB(t *testing.T) {
	t.Parallel()

	profile, err := platform.Resolve("rk3328", platform.BootCombined)
	require.NoError(t, err)

	got := Render(profile, &artifact.Set{Board: "rock64", KernelImage: "/build/Image"})
	require.NotContains(t, got, "fdt")
}
