// Package archive reads and writes compressed tarballs.
//
// Extract accepts xz, gzip or uncompressed tar streams and refuses entries
// that would land outside the destination directory. Create writes a
// tar.xz of a directory tree with relative member names.
package archive
