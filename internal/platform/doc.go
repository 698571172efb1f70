// Package platform maps chip identifiers onto the per-family binary layout
// contract: partition geometry, bootloader embed offsets, root device
// convention and serial console parameters.
//
// The mapping is pure and static. Family detection is prefix-based; console
// parameters come from an explicit per-chip allow-list with a family-wide
// fallback, so an unknown chip inside a known family still resolves.
package platform
