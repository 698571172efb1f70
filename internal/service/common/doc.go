// Package common holds the preparation steps shared by the assembly
// commands: configuration loading, build directory locking, artifact
// discovery with verification, and platform profile resolution.
package common
