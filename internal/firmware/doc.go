// Package firmware synchronizes an external out-of-tree firmware
// collection into assembled root filesystem trees.
//
// A local git clone acts as the cache. Initial population failure is fatal
// only when no usable cache exists at all; refresh failure degrades to a
// warning and the existing cache is used. The target is mirrored: files
// removed upstream disappear from the image too.
package firmware
