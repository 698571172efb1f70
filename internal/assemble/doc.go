// Package assemble builds the flashable outputs from a located artifact
// set: a raw partitioned SD card image, or a vendor eMMC update container
// for Rockchip platforms.
//
// The Assembler orchestrates external tools through the toolrun package
// and kernel facilities through the loopdev and mountpoint packages, so
// every privileged interaction is mockable. Both build paths share the
// boot staging and root population steps and follow the same release
// discipline: filesystems are unmounted before their loop devices are
// detached, and a partially written image is kept on disk for inspection
// when a step fails.
package assemble
