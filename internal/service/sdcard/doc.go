// Package sdcard implements the assemble-sd command: discover build
// artifacts, verify them, and produce a flashable SD card image for the
// detected platform.
package sdcard
