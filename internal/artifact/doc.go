// Package artifact discovers and validates the build artifacts one image
// assembly run consumes: kernel image, device-tree blobs, bootloader
// stages, the populated root filesystem tree and optional kernel metadata.
//
// Discovery never aborts on its own: it produces a Set plus a list of
// missing items in checked order, and the Verify state machine lets the
// caller decide between continuing with a partial set and aborting.
//
// The chip identifier resolution precedence is: explicit caller value,
// then the prior-run build.env snapshot, then the first device-tree blob
// filename prefix, then a hard-coded default.
package artifact
