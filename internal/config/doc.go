// Package config defines assembler settings shared by both image paths and
// provides helpers to load, validate and save them in YAML format.
//
// The Config type holds image size defaults, the firmware collection
// location, and external tool name overrides. Every field is optional:
// a missing settings file yields a fully defaulted configuration.
package config
