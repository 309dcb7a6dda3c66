// Package version exposes build metadata of the umu-scout packager.
//
// Version, Commit and BuildTime are injected via ldflags.
package version
