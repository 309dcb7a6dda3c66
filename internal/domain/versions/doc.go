// Package versions contains the core domain types of the packager.
//
// A Record maps tracked component names to their upstream version strings
// plus an optional build tag. Decide compares a previously published Record
// with a freshly resolved one and tells whether the package must be rebuilt.
package versions
