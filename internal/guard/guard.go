package guard

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/mitchellh/go-ps"

	"github.com/boardforge/board-imager/internal/logger"
)

// MarkerFilename marks that an assembler owns the build directory right
// now, preventing two builds from racing over the same output files.
const MarkerFilename = ".board-imager.lock"

// DirectoryBusyError reports a build directory owned by a live assembler.
type DirectoryBusyError struct {
	// Dir is the contested build directory.
	Dir string
	// PID is the owning process.
	PID int
}

// Error implements the error interface.
func (e *DirectoryBusyError) Error() string {
	return fmt.Sprintf("build directory %s is in use by process %d", e.Dir, e.PID)
}

// BuildLock is an acquired per-directory build lock. Release must be
// called when the build finishes, successfully or not.
type BuildLock struct {
	path string
}

// Acquire takes the build lock for dir. A marker left by a process that no
// longer runs is reclaimed; a marker owned by a live process yields
// *DirectoryBusyError.
func Acquire(ctx context.Context, dir string) (*BuildLock, error) {
	path := filepath.Join(dir, MarkerFilename)

	for attempt := 0; attempt < 2; attempt++ {
		file, err := os.OpenFile(filepath.Clean(path), os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o644)
		if err == nil {
			_, writeErr := fmt.Fprintf(file, "%d\n", os.Getpid())
			if closeErr := file.Close(); writeErr == nil {
				writeErr = closeErr
			}

			if writeErr != nil {
				os.Remove(path)
				return nil, fmt.Errorf("write build marker: %w", writeErr)
			}

			logger.DebugKV(ctx, "Acquired build directory lock", "dir", dir)

			return &BuildLock{path: path}, nil
		}

		if !errors.Is(err, os.ErrExist) {
			return nil, fmt.Errorf("create build marker: %w", err)
		}

		owner, ownerErr := markerOwner(path)
		if ownerErr == nil && processAlive(owner) {
			return nil, &DirectoryBusyError{Dir: dir, PID: owner}
		}

		logger.InfoKV(ctx, "Reclaiming stale build marker", "dir", dir, "owner", owner)

		if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("remove stale build marker: %w", err)
		}
	}

	return nil, &DirectoryBusyError{Dir: dir}
}

// Release removes the build marker.
func (l *BuildLock) Release() error {
	if err := os.Remove(l.path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("remove build marker: %w", err)
	}

	return nil
}

// markerOwner reads the owning PID out of an existing marker file.
func markerOwner(path string) (int, error) {
	contents, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		return 0, err
	}

	pid, err := strconv.Atoi(strings.TrimSpace(string(contents)))
	if err != nil {
		return 0, fmt.Errorf("parse build marker: %w", err)
	}

	return pid, nil
}

// processAlive reports whether the PID belongs to a running process. The
// process table lookup is best-effort: when it fails the marker is treated
// as live, erring on the safe side.
func processAlive(pid int) bool {
	if pid <= 0 {
		return false
	}

	process, err := ps.FindProcess(pid)
	if err != nil {
		return true
	}

	return process != nil
}
