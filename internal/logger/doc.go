// Package logger provides a small wrapper around zap to offer:
//   - a process-scoped sugared logger with a sane console encoder,
//   - context helpers (ToContext/FromContext/WithName/WithKV/WithFields),
//   - level configuration and parsing utilities,
//   - convenience functions (Infof, ErrorKV, etc.).
//
// All components accept a context and extract the logger from it, enabling
// scoped, structured logging throughout the codebase. The logger is created
// once in the command roots and travels with the context from there on.
package logger
