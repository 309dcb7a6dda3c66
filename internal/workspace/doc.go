// Package workspace manages the output directory of a build as a scoped resource.
//
// Acquire claims the directory with a marker file placed next to it, wipes
// and recreates it, and prepares a scratch directory for downloads. Release
// removes the marker and the scratch directory on every exit path.
package workspace
