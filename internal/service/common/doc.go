// Package common holds helpers shared by the packager services.
//
// It provides a small HTTP client wrapper with per-call timeouts used for
// every upstream fetch: version tokens, archives and auxiliary files.
//
//nolint:revive,nolintlint // Package name "common" is intentional for shared helpers.
package common
