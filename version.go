// Package scribe holds shared metadata for the Scribe tool runner.
package scribe

// Version is the Scribe release version.
const Version = "0.3.0"
