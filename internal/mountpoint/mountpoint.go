package mountpoint

import (
	"context"
	"fmt"
	"os"

	"golang.org/x/sys/unix"

	"github.com/boardforge/board-imager/internal/logger"
)

// Mount is a mounted filesystem. Unmount must be called on every exit path
// once Mount succeeds, and always before the underlying loop device is
// detached.
type Mount interface {
	// Target is the mount point directory.
	Target() string
	// Unmount unmounts the filesystem and removes the mount point.
	Unmount() error
}

// Mounter mounts block devices at scoped temporary mount points.
type Mounter interface {
	// Mount attaches the device at a fresh temporary mount point.
	Mount(ctx context.Context, device, fstype string) (Mount, error)
}

// MountError reports a failed mount operation with enough context to
// diagnose without re-running verbosely.
type MountError struct {
	// Device is the block device being mounted.
	Device string
	// Target is the mount point involved.
	Target string
	// Err is the underlying failure.
	Err error
}

// Error implements the error interface.
func (e *MountError) Error() string {
	return fmt.Sprintf("mount %s at %s: %v", e.Device, e.Target, e.Err)
}

// Unwrap exposes the underlying failure.
func (e *MountError) Unwrap() error {
	return e.Err
}

// TempMounter is the kernel-backed Mounter using temporary directories.
type TempMounter struct{}

// NewTempMounter creates the kernel-backed mounter.
func NewTempMounter() *TempMounter {
	return &TempMounter{}
}

// mount is an active kernel mount at a temporary directory.
type mount struct {
	target string
}

// Mount implements Mounter.
func (m *TempMounter) Mount(ctx context.Context, device, fstype string) (Mount, error) {
	target, err := os.MkdirTemp("", "board-imager-mnt-")
	if err != nil {
		return nil, &MountError{Device: device, Err: fmt.Errorf("create mount point: %w", err)}
	}

	if err := unix.Mount(device, target, fstype, 0, ""); err != nil {
		os.Remove(target)

		return nil, &MountError{Device: device, Target: target, Err: err}
	}

	logger.DebugKV(ctx, "Mounted filesystem", "device", device, "target", target, "fstype", fstype)

	return &mount{target: target}, nil
}

// Target implements Mount.
func (m *mount) Target() string {
	return m.target
}

// Unmount implements Mount.
func (m *mount) Unmount() error {
	if err := unix.Unmount(m.target, 0); err != nil {
		return &MountError{Target: m.target, Err: fmt.Errorf("unmount: %w", err)}
	}

	return os.Remove(m.target)
}
