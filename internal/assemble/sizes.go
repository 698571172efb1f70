package assemble

import (
	"fmt"
	"io/fs"
	"path/filepath"
)

const (
	// BootFSBlockSize is the filesystem block size of generated boot images.
	BootFSBlockSize int64 = 4096

	// BootSizeFloor is the minimum boot partition image size (32 MiB).
	BootSizeFloor int64 = 32 * 1024 * 1024

	// SectorSize is the 512-byte block unit used in partition geometry.
	SectorSize int64 = 512
)

// BootImageSize computes the boot partition image size for a staged boot
// directory of usedBytes: ceil(used * 1.25) rounded up to the filesystem
// block size, with a fixed floor. Deployed images were produced with this
// exact rule, so it must not change.
func BootImageSize(usedBytes int64) int64 {
	size := (usedBytes*5 + 3) / 4

	if rem := size % BootFSBlockSize; rem != 0 {
		size += BootFSBlockSize - rem
	}

	if size < BootSizeFloor {
		size = BootSizeFloor
	}

	return size
}

// SectorsOf converts a byte size into 512-byte sectors.
func SectorsOf(sizeBytes int64) int64 {
	return sizeBytes / SectorSize
}

// dirSize sums the regular-file bytes under dir.
func dirSize(dir string) (int64, error) {
	var total int64

	err := filepath.WalkDir(dir, func(_ string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}

		if d.Type().IsRegular() {
			info, err := d.Info()
			if err != nil {
				return err
			}

			total += info.Size()
		}

		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("measure %s: %w", dir, err)
	}

	return total, nil
}
