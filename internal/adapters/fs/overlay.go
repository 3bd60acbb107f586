package fs

import (
	"errors"
	iofs "io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/spf13/afero"
)

// Overlay layers an in-memory filesystem over a read-only base. Writes land
// in memory only; reads prefer memory and fall through to the base.
type Overlay struct {
	fs     afero.Fs
	memory afero.Fs
}

func NewOverlay(base afero.Fs) *Overlay {
	memory := afero.NewMemMapFs()
	return &Overlay{
		fs:     afero.NewCopyOnWriteFs(afero.NewReadOnlyFs(base), memory),
		memory: memory,
	}
}

func NewOSOverlay() *Overlay {
	return NewOverlay(afero.NewOsFs())
}

// Fs exposes the combined view for adapters that speak afero.
func (o *Overlay) Fs() afero.Fs {
	return o.fs
}

func (o *Overlay) ReadFile(path string) ([]byte, error) {
	return afero.ReadFile(o.fs, path)
}

func (o *Overlay) FileExists(path string) bool {
	info, err := o.fs.Stat(path)
	return err == nil && !info.IsDir()
}

func (o *Overlay) WriteFile(path string, data []byte, perm iofs.FileMode) error {
	if err := o.fs.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	return afero.WriteFile(o.fs, path, data, perm)
}

func (o *Overlay) MkdirAll(path string, perm iofs.FileMode) error {
	return o.fs.MkdirAll(path, perm)
}

// Remove only ever deletes from the memory layer.
func (o *Overlay) Remove(path string) error {
	if !o.InMemory(path) {
		return &iofs.PathError{Op: "remove", Path: path, Err: iofs.ErrPermission}
	}
	return o.memory.Remove(path)
}

// InMemory reports whether path lives in the write layer.
func (o *Overlay) InMemory(path string) bool {
	_, err := o.memory.Stat(path)
	return err == nil
}

// FindFiles walks root and returns every file ending in ext, sorted.
// Hidden directories and node_modules are skipped.
func (o *Overlay) FindFiles(root, ext string) ([]string, error) {
	var files []string
	err := afero.Walk(o.fs, root, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			if errors.Is(err, iofs.ErrNotExist) && path == root {
				return nil
			}
			return err
		}
		if info.IsDir() {
			name := info.Name()
			if path != root && (strings.HasPrefix(name, ".") || name == "node_modules") {
				return filepath.SkipDir
			}
			return nil
		}
		if strings.HasSuffix(path, ext) {
			files = append(files, path)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	sort.Strings(files)
	return files, nil
}

// WriteFS copies every file of src into the memory layer under dir.
func (o *Overlay) WriteFS(dir string, src iofs.FS) error {
	return iofs.WalkDir(src, ".", func(path string, d iofs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		data, err := iofs.ReadFile(src, path)
		if err != nil {
			return err
		}
		return o.WriteFile(filepath.Join(dir, filepath.FromSlash(path)), data, 0o644)
	})
}
