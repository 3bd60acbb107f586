package usecase

import (
	iofs "io/fs"

	"github.com/3-lines-studio/asgard/internal/adapters/fs"
	"github.com/spf13/afero"
)

type FileSystem = fs.FileSystem

// Workspace is the per-renderer overlay every stage reads and writes.
type Workspace interface {
	FileSystem
	Fs() afero.Fs
	FindFiles(root, ext string) ([]string, error)
	WriteFS(dir string, src iofs.FS) error
}
