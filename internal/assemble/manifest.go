package assemble

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/boardforge/board-imager/internal/config"
)

// Fixed vendor partition geometry of the update container, in 512-byte
// blocks. The uboot and trust slots are fixed-size; boot grows with its
// image and rootfs takes the remainder of the device.
const (
	ubootSlotStart  int64 = 0x00002000
	ubootSlotBlocks int64 = 0x00002000
	trustSlotStart  int64 = 0x00004000
	trustSlotBlocks int64 = 0x00002000
	bootSlotStart   int64 = 0x00006000
)

// Names of the generated container description files.
const (
	ParameterFilename   = "parameter.txt"
	PackageFileFilename = "package-file"
	manifestDumpName    = "manifest.yaml"
)

// Entry names one partition of the update container and the file packed
// into it.
type Entry struct {
	// Name is the partition name known to the packing tool.
	Name string `yaml:"name"`
	// Source is the packed file, relative to the packing directory.
	Source string `yaml:"source"`
}

// Manifest describes one eMMC update container build. Built fresh per run;
// rendered into the parameter/package description pair the packing tool
// consumes.
type Manifest struct {
	// Board is the target board name.
	Board string `yaml:"board"`
	// Chip is the resolved chip identifier.
	Chip string `yaml:"chip"`
	// BootBlocks is the boot partition size in 512-byte blocks.
	BootBlocks int64 `yaml:"boot_blocks"`
	// RootBytes is the root partition image size in bytes.
	RootBytes int64 `yaml:"root_bytes"`
	// Entries lists the packed partitions in pack order.
	Entries []Entry `yaml:"entries"`
}

// NewManifest assembles the container manifest for the build.
func NewManifest(board, chip string, bootImageBytes, rootBytes int64, loaderName, bootImage, rootImage string) *Manifest {
	return &Manifest{
		Board:      board,
		Chip:       chip,
		BootBlocks: SectorsOf(bootImageBytes),
		RootBytes:  rootBytes,
		Entries: []Entry{
			{Name: "package-file", Source: PackageFileFilename},
			{Name: "parameter", Source: ParameterFilename},
			{Name: "uboot", Source: loaderName},
			{Name: "boot", Source: bootImage},
			{Name: "rootfs", Source: rootImage},
		},
	}
}

// RenderParameter produces the parameter file describing the container's
// partition geometry to the flashing tool chain.
func (m *Manifest) RenderParameter() string {
	rootStart := bootSlotStart + m.BootBlocks

	var b strings.Builder

	fmt.Fprintf(&b, "FIRMWARE_VER: 1.0\n")
	fmt.Fprintf(&b, "MACHINE_MODEL: %s\n", m.Board)
	fmt.Fprintf(&b, "MACHINE_ID: 007\n")
	fmt.Fprintf(&b, "MANUFACTURER: %s\n", m.Board)
	fmt.Fprintf(&b, "MAGIC: 0x5041524B\n")
	fmt.Fprintf(&b, "ATAG: 0x60000800\n")
	fmt.Fprintf(&b, "MACHINE: %s\n", strings.TrimPrefix(m.Chip, "rk"))
	fmt.Fprintf(&b, "CHECK_MASK: 0x80\n")
	fmt.Fprintf(&b, "PWR_HLD: 0,0,A,0,1\n")
	fmt.Fprintf(&b, "CMDLINE: mtdparts=rk29xxnand:0x%08x@0x%08x(uboot),0x%08x@0x%08x(trust),0x%08x@0x%08x(boot),-@0x%08x(rootfs)\n",
		ubootSlotBlocks, ubootSlotStart,
		trustSlotBlocks, trustSlotStart,
		m.BootBlocks, bootSlotStart,
		rootStart)

	return b.String()
}

// RenderPackageFile produces the package description consumed by the
// packing tool: one "name source" line per packed partition.
func (m *Manifest) RenderPackageFile() string {
	var b strings.Builder

	fmt.Fprintf(&b, "# NAME\tPATH\n")

	for _, entry := range m.Entries {
		fmt.Fprintf(&b, "%s\t%s\n", entry.Name, entry.Source)
	}

	return b.String()
}

// WriteTo renders the parameter and package description files into the
// packing directory, plus a YAML dump of the manifest kept as build
// evidence.
func (m *Manifest) WriteTo(dir string) error {
	files := map[string]string{
		ParameterFilename:   m.RenderParameter(),
		PackageFileFilename: m.RenderPackageFile(),
	}

	for name, contents := range files {
		if err := os.WriteFile(filepath.Join(dir, name), []byte(contents), config.DefaultFilePermissions); err != nil {
			return fmt.Errorf("write %s: %w", name, err)
		}
	}

	dump, err := yaml.Marshal(m)
	if err != nil {
		return fmt.Errorf("marshal manifest: %w", err)
	}

	if err := os.WriteFile(filepath.Join(dir, manifestDumpName), dump, config.DefaultFilePermissions); err != nil {
		return fmt.Errorf("write %s: %w", manifestDumpName, err)
	}

	return nil
}
