// Package toolrun abstracts external-tool invocation behind a narrow Runner
// interface plus capability wrappers (Partitioner, Formatter, DirImager,
// Syncer, Git, Packer, ImageMaker) that own each tool's argument grammar.
//
// Call sites depend only on the interface, so tests substitute fakes and
// never require the actual privileged tools. Prerequisite checking happens
// before any destructive operation: a missing tool fails the run fast.
package toolrun
