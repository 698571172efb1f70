// Package bootcfg renders the extlinux boot configuration entry that tells
// the bootloader which kernel, device tree and kernel command line to use.
// Rendering is deterministic: no clocks, no map iteration, no randomness.
package bootcfg
