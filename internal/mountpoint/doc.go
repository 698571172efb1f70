// Package mountpoint provides scoped filesystem mounts at temporary mount
// points. A Mount is paired with a deferred Unmount so the filesystem is
// released on every exit path, strictly before loop device detachment.
package mountpoint
