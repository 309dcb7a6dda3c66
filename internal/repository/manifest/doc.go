// Package manifest implements persistence for published version records.
//
// FileRepository reads and writes the JSON manifest on disk. ReleaseRepository
// looks the manifest up as an asset of the latest GitHub release. Both satisfy
// Source, which the packager depends on to learn what was published last.
package manifest
