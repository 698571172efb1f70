package platform

import (
	"fmt"
	"strings"
)

// Family is a closed set of supported SoC families.
type Family int

const (
	// FamilyUnknown marks chip identifiers outside every supported family.
	FamilyUnknown Family = iota
	// FamilyRockchip covers rk* chips (rk3288, rk3328, rk3399, rk3566, ...).
	FamilyRockchip
	// FamilySunxi covers Allwinner sun* chips (sun8i-h3, sun50i-a64, ...).
	FamilySunxi
)

// String returns the lowercase family name.
func (f Family) String() string {
	switch f {
	case FamilyRockchip:
		return "rockchip"
	case FamilySunxi:
		return "sunxi"
	default:
		return "unknown"
	}
}

// BootForm selects which bootloader artifact combination is embedded.
type BootForm int

const (
	// BootCombined is a single merged SPL+bootloader binary.
	BootCombined BootForm = iota
	// BootSplit is the Rockchip two-stage idbloader + u-boot.itb form.
	BootSplit
)

// Bootloader artifact names as produced by the upstream build steps.
// These double as the source keys of boot embed entries.
const (
	ArtifactIDBLoader     = "idbloader.img"
	ArtifactUBootITB      = "u-boot.itb"
	ArtifactUBootRockchip = "u-boot-rockchip.bin"
	ArtifactUBootSunxi    = "u-boot-sunxi-with-spl.bin"
)

// Fixed layout constants. These reproduce the platform boot contracts and
// must not drift: a wrong offset produces an image that silently fails to
// boot.
const (
	// SectorSize is the block device sector size assumed by all offsets.
	SectorSize = 512

	// RockchipPartitionStart is where the first partition begins (64 MiB).
	RockchipPartitionStart int64 = 64 * 1024 * 1024
	// RockchipIDBOffset is where idbloader.img (or the combined binary)
	// is embedded: sector 64.
	RockchipIDBOffset int64 = 64 * SectorSize
	// RockchipITBOffset is where u-boot.itb is embedded: sector 16384.
	RockchipITBOffset int64 = 16384 * SectorSize

	// SunxiPartitionStart is where the first partition begins (2 MiB).
	SunxiPartitionStart int64 = 2 * 1024 * 1024
	// SunxiSPLOffset is where the combined SPL+bootloader is embedded (8 KiB).
	SunxiSPLOffset int64 = 8192
)

// Embed places the named bootloader artifact at a fixed byte offset
// inside the raw image.
type Embed struct {
	// Artifact is the bootloader file name (see Artifact* constants).
	Artifact string
	// Offset is the absolute byte offset inside the image.
	Offset int64
}

// Console describes the serial console the kernel command line points at.
type Console struct {
	// Device is the console device name (ttyS2, ttyS0, ...).
	Device string
	// Baud is the console baud rate.
	Baud int
}

// Profile is the immutable per-chip layout contract consumed by the
// image builders. Derived statically from the chip identifier.
type Profile struct {
	// Chip is the identifier the profile was resolved from.
	Chip string
	// Family is the detected SoC family.
	Family Family
	// PartitionStart is the byte offset of the first (root) partition.
	PartitionStart int64
	// BootEmbeds lists the bootloader embed operations in write order.
	BootEmbeds []Embed
	// RootDevice is the root block device as seen by the running system.
	RootDevice string
	// Console is the serial console for the kernel command line.
	Console Console
}

// UnknownPlatformError reports a chip identifier outside every supported family.
type UnknownPlatformError struct {
	// Chip is the unrecognized identifier.
	Chip string
}

// Error implements the error interface.
func (e *UnknownPlatformError) Error() string {
	return fmt.Sprintf("unknown platform: chip %q matches neither the rockchip nor the sunxi naming convention", e.Chip)
}

// consoleByChip is the allow-list of per-chip console parameters.
// Chips absent from this map use their family's generic console.
//
//nolint:gochecknoglobals // Static lookup table.
var consoleByChip = map[string]Console{
	"rk3288":     {Device: "ttyS2", Baud: 115200},
	"rk3328":     {Device: "ttyS2", Baud: 1500000},
	"rk3399":     {Device: "ttyS2", Baud: 1500000},
	"rk3566":     {Device: "ttyS2", Baud: 1500000},
	"rk3568":     {Device: "ttyS2", Baud: 1500000},
	"sun8i-h3":   {Device: "ttyS0", Baud: 115200},
	"sun50i-h5":  {Device: "ttyS0", Baud: 115200},
	"sun50i-h6":  {Device: "ttyS0", Baud: 115200},
	"sun50i-a64": {Device: "ttyS0", Baud: 115200},
}

// Family generic console defaults.
//
//nolint:gochecknoglobals // Static lookup table.
var consoleByFamily = map[Family]Console{
	FamilyRockchip: {Device: "ttyS2", Baud: 1500000},
	FamilySunxi:    {Device: "ttyS0", Baud: 115200},
}

// FamilyOf classifies a chip identifier by its naming convention.
func FamilyOf(chip string) Family {
	chip = strings.ToLower(strings.TrimSpace(chip))

	switch {
	case strings.HasPrefix(chip, "rk"):
		return FamilyRockchip
	case strings.HasPrefix(chip, "sun"):
		return FamilySunxi
	default:
		return FamilyUnknown
	}
}

// Resolve maps a chip identifier and the available bootloader form to the
// platform layout contract. Identifiers outside both families yield
// *UnknownPlatformError; unknown chips inside a known family fall back to
// the family's generic console.
func Resolve(chip string, form BootForm) (*Profile, error) {
	chip = strings.ToLower(strings.TrimSpace(chip))

	family := FamilyOf(chip)
	if family == FamilyUnknown {
		return nil, &UnknownPlatformError{Chip: chip}
	}

	console, ok := consoleByChip[chip]
	if !ok {
		console = consoleByFamily[family]
	}

	profile := &Profile{
		Chip:    chip,
		Family:  family,
		Console: console,
	}

	switch family {
	case FamilyRockchip:
		profile.PartitionStart = RockchipPartitionStart
		// The root partition is on the second block device exposed to
		// the running system (SD slot enumerates after eMMC).
		profile.RootDevice = "/dev/mmcblk1p1"

		if form == BootSplit {
			profile.BootEmbeds = []Embed{
				{Artifact: ArtifactIDBLoader, Offset: RockchipIDBOffset},
				{Artifact: ArtifactUBootITB, Offset: RockchipITBOffset},
			}
		} else {
			profile.BootEmbeds = []Embed{
				{Artifact: ArtifactUBootRockchip, Offset: RockchipIDBOffset},
			}
		}
	case FamilySunxi:
		profile.PartitionStart = SunxiPartitionStart
		profile.RootDevice = "/dev/mmcblk0p1"
		// Sunxi has a single combined form regardless of the requested one.
		profile.BootEmbeds = []Embed{
			{Artifact: ArtifactUBootSunxi, Offset: SunxiSPLOffset},
		}
	}

	return profile, nil
}
