package bootcfg

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/boardforge/board-imager/internal/artifact"
	"github.com/boardforge/board-imager/internal/platform"
)

// RelPath is where the rendered configuration lives inside the boot directory.
const RelPath = "extlinux/extlinux.conf"

// Render produces the boot configuration entry for the provided platform
// profile and artifact set. The output is a pure function of its inputs:
// identical inputs produce byte-identical text, which keeps repeated
// assembly runs reproducible.
func Render(profile *platform.Profile, set *artifact.Set) string {
	var b strings.Builder

	label := set.Board
	if label == "" {
		label = profile.Chip
	}

	kernel := "/boot/" + filepath.Base(set.KernelImage)
	if set.KernelImage == "" {
		kernel = "/boot/Image"
	}

	fmt.Fprintf(&b, "label %s\n", label)
	fmt.Fprintf(&b, "  kernel %s\n", kernel)

	if dtb := set.PrimaryDeviceTree(); dtb != "" {
		fmt.Fprintf(&b, "  fdt /boot/dtb/%s\n", filepath.Base(dtb))
	}

	fmt.Fprintf(&b, "  append root=%s rw rootwait console=%s,%d\n",
		profile.RootDevice, profile.Console.Device, profile.Console.Baud)

	return b.String()
}
