// Package emmc implements the assemble-emmc command: discover build
// artifacts, verify them, and produce a vendor eMMC update container for
// Rockchip platforms.
package emmc
