package artifact

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/boardforge/board-imager/internal/logger"
	"github.com/boardforge/board-imager/internal/platform"
)

// Well-known names inside the build output directory.
const (
	// RootfsDirName holds the populated root filesystem tree.
	RootfsDirName = "rootfs"
	// ModulesDirName holds installed kernel modules (lib/modules).
	ModulesDirName = "lib/modules"
	// DTBDirName is the optional subdirectory holding device-tree blobs.
	DTBDirName = "dtb"
	// BuildEnvFilename is the prior-run environment snapshot.
	BuildEnvFilename = "build.env"

	// DefaultChip is used when no other chip source resolves.
	DefaultChip = "rk3399"
)

// Kernel image names accepted in discovery order.
//
//nolint:gochecknoglobals // Static lookup table.
var kernelImageNames = []string{"Image", "zImage"}

// Set is the validated collection of build artifacts one assembly run
// consumes. Constructed once per build and never mutated afterwards.
type Set struct {
	// Dir is the build output directory everything was discovered in.
	Dir string
	// Chip is the resolved chip identifier.
	Chip string
	// Board is the board name used for output image naming.
	Board string
	// KernelImage is the kernel image path (empty when missing).
	KernelImage string
	// DeviceTrees are the discovered device-tree blob paths, sorted.
	DeviceTrees []string
	// Bootloader maps bootloader artifact names to their paths.
	Bootloader map[string]string
	// BootForm is the bootloader combination that was found.
	BootForm platform.BootForm
	// RootfsDir is the populated root filesystem tree (empty when missing).
	RootfsDir string
	// ModulesDir is the optional kernel modules tree.
	ModulesDir string
	// KernelConfig is the optional kernel config-* file.
	KernelConfig string
	// SystemMap is the optional System.map-* file.
	SystemMap string
}

// PrimaryDeviceTree returns the first discovered device-tree blob, or "".
func (s *Set) PrimaryDeviceTree() string {
	if len(s.DeviceTrees) == 0 {
		return ""
	}

	return s.DeviceTrees[0]
}

// Loader returns the path of the merged/primary bootloader binary: the
// combined binary when present, otherwise the first split stage.
func (s *Set) Loader() string {
	for _, name := range []string{
		platform.ArtifactUBootRockchip,
		platform.ArtifactUBootSunxi,
		platform.ArtifactIDBLoader,
	} {
		if path, ok := s.Bootloader[name]; ok {
			return path
		}
	}

	return ""
}

// Locator discovers build artifacts inside an output directory.
type Locator struct {
	// Dir is the build output directory.
	Dir string
}

// NewLocator creates a locator for the provided output directory.
func NewLocator(dir string) *Locator {
	return &Locator{Dir: filepath.Clean(dir)}
}

// ResolveChip applies the chip identifier precedence:
// explicit caller value > build.env snapshot > first device-tree blob
// filename prefix > hard-coded default.
func (l *Locator) ResolveChip(ctx context.Context, explicit string) string {
	if explicit != "" {
		logger.DebugKV(ctx, "Using caller-supplied chip identifier", "chip", explicit)
		return strings.ToLower(explicit)
	}

	env := l.readBuildEnv(ctx)
	if chip := env[envKeyChip]; chip != "" {
		logger.DebugKV(ctx, "Using chip identifier from build environment snapshot", "chip", chip)
		return strings.ToLower(chip)
	}

	if dtbs := l.findDeviceTrees(); len(dtbs) > 0 {
		if chip := chipFromDTBName(filepath.Base(dtbs[0])); chip != "" {
			logger.DebugKV(ctx, "Inferred chip identifier from device tree", "chip", chip, "dtb", dtbs[0])
			return chip
		}
	}

	logger.DebugKV(ctx, "Falling back to default chip identifier", "chip", DefaultChip)

	return DefaultChip
}

// Locate discovers the artifact set for the provided chip. The returned
// missing list enumerates every absent required item in checked order:
// rootfs tree, kernel image, device-tree blob, bootloader combination.
// Locate itself never aborts on missing artifacts; the caller decides.
func (l *Locator) Locate(ctx context.Context, chip string) (*Set, []string) {
	set := &Set{
		Dir:        l.Dir,
		Chip:       chip,
		Bootloader: make(map[string]string, 2),
	}

	var missing []string

	if dir := filepath.Join(l.Dir, RootfsDirName); isNonEmptyDir(dir) {
		set.RootfsDir = dir
	} else {
		missing = append(missing, fmt.Sprintf("root filesystem tree (%s/)", RootfsDirName))
	}

	for _, name := range kernelImageNames {
		if path := filepath.Join(l.Dir, name); isNonEmptyFile(path) {
			set.KernelImage = path
			break
		}
	}

	if set.KernelImage == "" {
		missing = append(missing, fmt.Sprintf("kernel image (%s)", strings.Join(kernelImageNames, " or ")))
	}

	set.DeviceTrees = l.findDeviceTrees()
	if len(set.DeviceTrees) == 0 {
		missing = append(missing, "device-tree blob (*.dtb)")
	}

	if m := l.locateBootloader(set); m != "" {
		missing = append(missing, m)
	}

	if dir := filepath.Join(l.Dir, ModulesDirName); isNonEmptyDir(dir) {
		set.ModulesDir = dir
	}

	set.KernelConfig = firstGlob(filepath.Join(l.Dir, "config-*"))
	set.SystemMap = firstGlob(filepath.Join(l.Dir, "System.map-*"))
	set.Board = l.resolveBoard(ctx, set)

	logger.DebugKV(ctx, "Artifact discovery finished",
		"chip", set.Chip, "board", set.Board, "missing", len(missing))

	return set, missing
}

// locateBootloader finds a family-appropriate bootloader combination and
// returns a description of what is missing, or "" on success.
func (l *Locator) locateBootloader(set *Set) string {
	switch platform.FamilyOf(set.Chip) {
	case platform.FamilySunxi:
		if path := filepath.Join(l.Dir, platform.ArtifactUBootSunxi); isNonEmptyFile(path) {
			set.Bootloader[platform.ArtifactUBootSunxi] = path
			set.BootForm = platform.BootCombined

			return ""
		}

		return fmt.Sprintf("bootloader (%s)", platform.ArtifactUBootSunxi)
	default:
		// Rockchip naming also covers the unknown-family case so that the
		// missing list stays meaningful for unrecognized chips.
		idb := filepath.Join(l.Dir, platform.ArtifactIDBLoader)
		itb := filepath.Join(l.Dir, platform.ArtifactUBootITB)

		if isNonEmptyFile(idb) && isNonEmptyFile(itb) {
			set.Bootloader[platform.ArtifactIDBLoader] = idb
			set.Bootloader[platform.ArtifactUBootITB] = itb
			set.BootForm = platform.BootSplit

			return ""
		}

		if path := filepath.Join(l.Dir, platform.ArtifactUBootRockchip); isNonEmptyFile(path) {
			set.Bootloader[platform.ArtifactUBootRockchip] = path
			set.BootForm = platform.BootCombined

			return ""
		}

		return fmt.Sprintf("bootloader (%s + %s, or %s)",
			platform.ArtifactIDBLoader, platform.ArtifactUBootITB, platform.ArtifactUBootRockchip)
	}
}

// resolveBoard picks the board name: build.env BOARD > device-tree basename
// without extension > chip identifier.
func (l *Locator) resolveBoard(ctx context.Context, set *Set) string {
	env := l.readBuildEnv(ctx)
	if board := env[envKeyBoard]; board != "" {
		return board
	}

	if dtb := set.PrimaryDeviceTree(); dtb != "" {
		return strings.TrimSuffix(filepath.Base(dtb), ".dtb")
	}

	return set.Chip
}

// findDeviceTrees collects *.dtb files from the output directory and its
// dtb/ subdirectory, sorted for deterministic ordering.
func (l *Locator) findDeviceTrees() []string {
	var dtbs []string

	for _, pattern := range []string{
		filepath.Join(l.Dir, "*.dtb"),
		filepath.Join(l.Dir, DTBDirName, "*.dtb"),
	} {
		matches, err := filepath.Glob(pattern)
		if err != nil {
			continue
		}

		for _, match := range matches {
			if isNonEmptyFile(match) {
				dtbs = append(dtbs, match)
			}
		}
	}

	sort.Strings(dtbs)

	return dtbs
}

// readBuildEnv loads the prior-run environment snapshot, returning an empty
// map when it does not exist or cannot be parsed.
func (l *Locator) readBuildEnv(ctx context.Context) map[string]string {
	env, err := ParseBuildEnv(filepath.Join(l.Dir, BuildEnvFilename))
	if err != nil {
		if !os.IsNotExist(err) {
			logger.WarnKV(ctx, "Ignoring unreadable build environment snapshot",
				"path", filepath.Join(l.Dir, BuildEnvFilename), "error", err)
		}

		return map[string]string{}
	}

	return env
}

// chipFromDTBName infers the chip identifier from a device-tree blob
// filename. Rockchip blobs look like rk3399-rockpro64.dtb; sunxi blobs
// carry a two-segment chip prefix like sun50i-a64-pine64.dtb.
func chipFromDTBName(name string) string {
	name = strings.TrimSuffix(strings.ToLower(name), ".dtb")

	parts := strings.Split(name, "-")
	if len(parts) == 0 || parts[0] == "" {
		return ""
	}

	if strings.HasPrefix(parts[0], "sun") && len(parts) >= 2 {
		return parts[0] + "-" + parts[1]
	}

	return parts[0]
}

// isNonEmptyFile reports whether path is a regular file with size > 0.
func isNonEmptyFile(path string) bool {
	info, err := os.Stat(path)

	return err == nil && info.Mode().IsRegular() && info.Size() > 0
}

// isNonEmptyDir reports whether path is a directory with at least one entry.
func isNonEmptyDir(path string) bool {
	entries, err := os.ReadDir(path)

	return err == nil && len(entries) > 0
}

// firstGlob returns the lexically first match of the pattern, or "".
func firstGlob(pattern string) string {
	matches, err := filepath.Glob(pattern)
	if err != nil || len(matches) == 0 {
		return ""
	}

	sort.Strings(matches)

	return matches[0]
}
