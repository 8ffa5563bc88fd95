// Package logging provides opt-in file-based logging with rotation for the
// memory engine daemon. Structured logs are written to ~/.devmemory/logs/
// for debugging and troubleshooting.
//
// By default, logging is minimal and goes to stderr only; the daemon always
// runs in file-only mode since its stdout/stderr are not attached to a
// terminal.
package logging
