// Package guard serializes assembly runs over a build directory with a
// marker file. Concurrent builds against one output directory would
// corrupt each other's intermediate images, so the second run is refused
// while the first owner is alive; markers abandoned by dead processes are
// reclaimed automatically.
package guard
