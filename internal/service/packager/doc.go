// Package packager rebuilds the umu-scout package when upstream components change.
//
// A run fetches the current version of every configured component, compares
// it with the previously published manifest and stops when nothing changed.
// Otherwise it downloads and merges the component archives in a fresh output
// directory, creates the package tarball with its SHA-512 sidecar and version
// manifest, optionally mirrors them to S3, and prints the build tag on stdout.
package packager
