package toolrun

import (
	"context"
	"errors"
	"fmt"
	"strconv"
)

// Partitioner writes partition tables via parted in script mode.
type Partitioner struct {
	// R executes the tool.
	R Runner
	// Tool is the parted program name.
	Tool string
}

// WriteSinglePartition labels the image msdos and creates one primary
// partition from startBytes to the end of the file. startBytes must be
// MiB-aligned, which every supported platform profile guarantees.
func (p Partitioner) WriteSinglePartition(ctx context.Context, image string, startBytes int64, fstype string) error {
	if err := p.R.Run(ctx, p.Tool, "-s", image, "mklabel", "msdos"); err != nil {
		return fmt.Errorf("write partition label: %w", err)
	}

	start := fmt.Sprintf("%dMiB", startBytes/(1024*1024))
	if err := p.R.Run(ctx, p.Tool, "-s", "--", image, "mkpart", "primary", fstype, start, "100%"); err != nil {
		return fmt.Errorf("write partition entry: %w", err)
	}

	return nil
}

// Formatter creates filesystems on block devices via the mkfs family.
type Formatter struct {
	// R executes the tool.
	R Runner
	// Tool is the mkfs program prefix ("mkfs" yields mkfs.<fstype>).
	Tool string
}

// Format creates a filesystem of the requested type on the device.
func (f Formatter) Format(ctx context.Context, device, fstype string) error {
	if err := f.R.Run(ctx, f.Tool+"."+fstype, "-q", "-F", device); err != nil {
		return fmt.Errorf("format %s as %s: %w", device, fstype, err)
	}

	return nil
}

// DirImager produces filesystem images pre-populated from a directory.
type DirImager struct {
	// R executes the tool.
	R Runner
	// Tool is the mke2fs program name.
	Tool string
}

// MakeFromDir creates an ext4 image of exactly sizeBytes whose content is
// the provided directory. sizeBytes must be a multiple of blockSize.
func (d DirImager) MakeFromDir(ctx context.Context, dir, image string, sizeBytes int64, blockSize int64) error {
	if sizeBytes%blockSize != 0 {
		return fmt.Errorf("image size %d is not a multiple of block size %d", sizeBytes, blockSize)
	}

	blocks := strconv.FormatInt(sizeBytes/blockSize, 10)
	bs := strconv.FormatInt(blockSize, 10)

	err := d.R.Run(ctx, d.Tool,
		"-q", "-F", "-t", "ext4", "-b", bs, "-d", dir, image, blocks)
	if err != nil {
		return fmt.Errorf("make filesystem image from %s: %w", dir, err)
	}

	return nil
}

// Syncer mirrors directory trees via rsync.
type Syncer struct {
	// R executes the tool.
	R Runner
	// Tool is the rsync program name.
	Tool string
}

// Mirror synchronizes src into dst with archive semantics (ownership,
// permissions, hard links, extended attributes), deleting files in dst
// that no longer exist in src. Excluded subtrees are skipped on both ends.
func (s Syncer) Mirror(ctx context.Context, src, dst string, excludes []string) error {
	args := []string{"-aHAXx", "--delete"}
	for _, pattern := range excludes {
		args = append(args, "--exclude", pattern)
	}

	args = append(args, src+"/", dst)

	if err := s.R.Run(ctx, s.Tool, args...); err != nil {
		return fmt.Errorf("mirror %s to %s: %w", src, dst, err)
	}

	return nil
}

// Git maintains the firmware collection cache.
type Git struct {
	// R executes the tool.
	R Runner
	// Tool is the git program name.
	Tool string
}

// Clone performs a shallow clone of url into dir.
func (g Git) Clone(ctx context.Context, url, dir string) error {
	if err := g.R.Run(ctx, g.Tool, "clone", "--depth", "1", url, dir); err != nil {
		return fmt.Errorf("clone %s: %w", url, err)
	}

	return nil
}

// Refresh fast-forwards an existing clone.
func (g Git) Refresh(ctx context.Context, dir string) error {
	if err := g.R.Run(ctx, g.Tool, "-C", dir, "pull", "--ff-only"); err != nil {
		return fmt.Errorf("refresh %s: %w", dir, err)
	}

	return nil
}

// Packer combines partition images into the vendor update container.
type Packer struct {
	// R executes the tool.
	R Runner
	// Tool is the afptool program name.
	Tool string
}

// Pack combines the staged container directory into a single raw container
// image according to its package description file.
func (p Packer) Pack(ctx context.Context, srcDir, out string) error {
	if err := p.R.Run(ctx, p.Tool, "-pack", srcDir, out); err != nil {
		return packingFailure(p.Tool, err)
	}

	return nil
}

// ImageMaker finalizes the update container with the loader and device tag.
type ImageMaker struct {
	// R executes the tool.
	R Runner
	// Tool is the rkImageMaker program name.
	Tool string
}

// Make combines the loader binary and the packed raw container into the
// final named update image, selecting the device profile via tag.
func (m ImageMaker) Make(ctx context.Context, tag, loader, rawImage, out, osType string) error {
	if err := m.R.Run(ctx, m.Tool, "-"+tag, loader, rawImage, out, "-os_type:"+osType); err != nil {
		return packingFailure(m.Tool, err)
	}

	return nil
}

// packingFailure normalizes packing-step errors so callers can report the
// underlying tool's exit status.
func packingFailure(tool string, err error) error {
	var failure *ToolFailure
	if errors.As(err, &failure) {
		return fmt.Errorf("packing step failed: %w", failure)
	}

	return fmt.Errorf("packing step failed running %s: %w", tool, err)
}
