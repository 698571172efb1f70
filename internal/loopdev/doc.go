// Package loopdev manages loop devices: attaching an image file to a free
// device via the loop-control ioctl interface, optional kernel partition
// scanning, and bounded waiting for partition nodes to appear.
//
// A Handle is a scoped resource: callers pair every successful Attach with
// a deferred Detach so the device is released on every exit path,
// including failures and signal-driven cancellation.
package loopdev
