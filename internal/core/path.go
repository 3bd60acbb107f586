package core

import (
	"path"
	"path/filepath"
	"strings"
)

const (
	DefaultViewExt = ".vue"
	EntryDir       = ".asgard"

	ServerBundleSuffix = ".server-bundle.js"
	ClientBundleSuffix = ".client-bundle.js"
	serverEntryName    = "server-entry.js"
	clientEntryName    = "client-entry.js"
)

// NormalizeViewPath turns a discovered view file into the view path callers
// pass to the renderer: relative to resources, slash separated, no extension.
func NormalizeViewPath(resources, file, ext string) string {
	rel := file
	if r, err := filepath.Rel(resources, file); err == nil && !strings.HasPrefix(r, "..") {
		rel = r
	}
	rel = filepath.ToSlash(rel)
	rel = strings.TrimPrefix(rel, "/")
	return strings.TrimSuffix(rel, ext)
}

func ValidateViewPath(viewPath string) error {
	if viewPath == "" {
		return withView(ErrInvalidViewPath, viewPath, "view path cannot be empty")
	}

	slashed := filepath.ToSlash(viewPath)
	if strings.HasPrefix(slashed, "/") || filepath.IsAbs(viewPath) {
		return withView(ErrInvalidViewPath, viewPath, "view path must be relative to resources")
	}

	for _, segment := range strings.Split(slashed, "/") {
		if segment == ".." {
			return withView(ErrInvalidViewPath, viewPath, "view path cannot contain parent directory references")
		}
	}

	return nil
}

// CacheKey is the view path with the view extension appended. It names the
// view file under resources and every artifact derived from it.
func CacheKey(viewPath, ext string) (string, error) {
	if err := ValidateViewPath(viewPath); err != nil {
		return "", err
	}
	key := path.Clean(filepath.ToSlash(viewPath))
	if key == "." {
		return "", withView(ErrInvalidViewPath, viewPath, "view path cannot be empty")
	}
	return key + ext, nil
}

func ViewFile(resources, key string) string {
	return filepath.Join(resources, filepath.FromSlash(key))
}

type BundlePaths struct {
	Server string
	Client string
}

func BundlePathsFor(resources, key string) BundlePaths {
	base := filepath.Join(resources, filepath.FromSlash(key))
	return BundlePaths{
		Server: base + ServerBundleSuffix,
		Client: base + ClientBundleSuffix,
	}
}

type EntryPaths struct {
	Dir    string
	Server string
	Client string
}

// EntryPathsFor places synthesized entries under the hidden entry directory.
// That directory only ever exists in the overlay's memory layer.
func EntryPathsFor(resources, key string) EntryPaths {
	dir := filepath.Join(resources, EntryDir, filepath.FromSlash(key))
	return EntryPaths{
		Dir:    dir,
		Server: filepath.Join(dir, serverEntryName),
		Client: filepath.Join(dir, clientEntryName),
	}
}

func DefaultImportsDir(resources string) string {
	return filepath.Join(resources, EntryDir, "imports")
}
