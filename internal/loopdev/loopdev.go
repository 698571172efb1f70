package loopdev

import (
	"context"
	"errors"
	"fmt"
	"os"
	"syscall"
	"time"

	"golang.org/x/sys/unix"

	"github.com/boardforge/board-imager/internal/logger"
)

const (
	// loopControl allocates free loop device numbers.
	loopControl = "/dev/loop-control"

	// partitionWaitAttempts bounds the partition-node appearance poll.
	partitionWaitAttempts = 10
	// partitionWaitBackoff is the fixed delay between poll attempts.
	partitionWaitBackoff = 500 * time.Millisecond
)

// Handle is an attached loop device. Detach must be called on every exit
// path once Attach succeeds; builders do that with a deferred release.
type Handle interface {
	// Path is the loop device node (/dev/loopN).
	Path() string
	// PartPath is the nth partition node (/dev/loopNpn).
	PartPath(n int) string
	// Detach disassociates the backing file and closes the device.
	Detach() error
}

// Manager attaches image files to loop devices.
type Manager interface {
	// Attach binds the image file to a free loop device, optionally with
	// kernel partition scanning enabled.
	Attach(ctx context.Context, image string, partscan bool) (Handle, error)
}

// LoopAttachError reports a failed loop device acquisition.
type LoopAttachError struct {
	// Image is the backing file that could not be attached.
	Image string
	// Device is the loop device involved, when one was allocated.
	Device string
	// Err is the underlying failure.
	Err error
}

// Error implements the error interface.
func (e *LoopAttachError) Error() string {
	if e.Device != "" {
		return fmt.Sprintf("attach %s to %s: %v", e.Image, e.Device, e.Err)
	}

	return fmt.Sprintf("attach %s to a loop device: %v", e.Image, e.Err)
}

// Unwrap exposes the underlying failure.
func (e *LoopAttachError) Unwrap() error {
	return e.Err
}

// PartitionDeviceTimeoutError reports that a partition node never appeared
// within the bounded wait.
type PartitionDeviceTimeoutError struct {
	// Device is the partition node that was polled.
	Device string
	// Attempts is how many polls were made.
	Attempts int
}

// Error implements the error interface.
func (e *PartitionDeviceTimeoutError) Error() string {
	return fmt.Sprintf("partition device %s did not appear after %d attempts", e.Device, e.Attempts)
}

// DeviceManager is the kernel-backed Manager using loop ioctls.
type DeviceManager struct{}

// NewDeviceManager creates the kernel-backed loop device manager.
func NewDeviceManager() *DeviceManager {
	return &DeviceManager{}
}

// device is an attached kernel loop device.
type device struct {
	file *os.File
	path string
}

// Attach implements Manager. It asks loop-control for a free device number,
// binds the image file descriptor to it and records status (backing file
// name, partition scanning). Any failure after LOOP_SET_FD unwinds with
// LOOP_CLR_FD so no half-attached device is leaked.
func (m *DeviceManager) Attach(ctx context.Context, image string, partscan bool) (Handle, error) {
	ctl, err := os.OpenFile(loopControl, os.O_RDWR|syscall.O_CLOEXEC, 0)
	if err != nil {
		return nil, &LoopAttachError{Image: image, Err: err}
	}
	defer ctl.Close()

	number, err := unix.IoctlRetInt(int(ctl.Fd()), unix.LOOP_CTL_GET_FREE)
	if err != nil {
		return nil, &LoopAttachError{Image: image, Err: fmt.Errorf("allocate free device: %w", err)}
	}

	path := fmt.Sprintf("/dev/loop%d", number)

	loop, err := os.OpenFile(path, os.O_RDWR|syscall.O_CLOEXEC, 0)
	if err != nil {
		return nil, &LoopAttachError{Image: image, Device: path, Err: err}
	}

	backing, err := os.OpenFile(image, os.O_RDWR|syscall.O_CLOEXEC, 0)
	if err != nil {
		loop.Close()

		return nil, &LoopAttachError{Image: image, Device: path, Err: err}
	}
	defer backing.Close()

	if err := unix.IoctlSetInt(int(loop.Fd()), unix.LOOP_SET_FD, int(backing.Fd())); err != nil {
		loop.Close()

		return nil, &LoopAttachError{Image: image, Device: path, Err: fmt.Errorf("set backing file: %w", err)}
	}

	var info unix.LoopInfo64

	copy(info.File_name[:], image)

	if partscan {
		info.Flags |= unix.LO_FLAGS_PARTSCAN
	}

	if err := unix.IoctlLoopSetStatus64(int(loop.Fd()), &info); err != nil {
		// Unbind before surfacing so the device is not left half-attached.
		_ = unix.IoctlSetInt(int(loop.Fd()), unix.LOOP_CLR_FD, 0)
		loop.Close()

		return nil, &LoopAttachError{Image: image, Device: path, Err: fmt.Errorf("set status: %w", err)}
	}

	logger.DebugKV(ctx, "Attached loop device", "device", path, "image", image, "partscan", partscan)

	return &device{file: loop, path: path}, nil
}

// Path implements Handle.
func (d *device) Path() string {
	return d.path
}

// PartPath implements Handle.
func (d *device) PartPath(n int) string {
	return fmt.Sprintf("%sp%d", d.path, n)
}

// Detach implements Handle.
func (d *device) Detach() error {
	if err := unix.IoctlSetInt(int(d.file.Fd()), unix.LOOP_CLR_FD, 0); err != nil {
		d.file.Close()

		return fmt.Errorf("detach %s: %w", d.path, err)
	}

	return d.file.Close()
}

// WaitPartition polls for the nth partition node of the handle with bounded
// retries. The bound makes this the only time-limited step of a build:
// everything else blocks for as long as the workload needs.
func WaitPartition(ctx context.Context, h Handle, n int) (string, error) {
	part := h.PartPath(n)

	for attempt := 1; attempt <= partitionWaitAttempts; attempt++ {
		if _, err := os.Stat(part); err == nil {
			return part, nil
		} else if !errors.Is(err, os.ErrNotExist) {
			return "", fmt.Errorf("stat %s: %w", part, err)
		}

		logger.DebugKV(ctx, "Partition device not present yet",
			"device", part, "attempt", attempt)

		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case <-time.After(partitionWaitBackoff):
		}
	}

	return "", &PartitionDeviceTimeoutError{Device: part, Attempts: partitionWaitAttempts}
}
