package fs

import (
	iofs "io/fs"
)

// FileSystem is the slice of the overlay the build pipeline reads views
// from and writes entries and bundles to.
type FileSystem interface {
	ReadFile(path string) ([]byte, error)
	FileExists(path string) bool
	WriteFile(path string, data []byte, perm iofs.FileMode) error
	MkdirAll(path string, perm iofs.FileMode) error
	// Remove deletes a file written through the overlay. Files of the
	// underlying filesystem are never removed.
	Remove(path string) error
}
