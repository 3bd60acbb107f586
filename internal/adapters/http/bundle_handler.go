package http

import (
	"net/http"
	"path"
	"path/filepath"
	"strings"

	"github.com/3-lines-studio/asgard/internal/core"
	"github.com/spf13/afero"
)

// BundleHandler serves built bundles out of the overlay filesystem so the
// in-memory build output can be inspected during development.
type BundleHandler struct {
	fs        afero.Fs
	resources string
}

func NewBundleHandler(fs afero.Fs, resources string) http.Handler {
	return &BundleHandler{
		fs:        fs,
		resources: resources,
	}
}

func (h *BundleHandler) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	name := strings.TrimPrefix(path.Clean("/"+req.URL.Path), "/")
	if name == "" || !isBundle(name) {
		http.NotFound(w, req)
		return
	}

	data, err := afero.ReadFile(h.fs, filepath.Join(h.resources, filepath.FromSlash(name)))
	if err != nil {
		http.NotFound(w, req)
		return
	}

	w.Header().Set("Content-Type", "text/javascript; charset=utf-8")
	w.Header().Set("Cache-Control", "no-cache")
	_, _ = w.Write(data)
}

func isBundle(name string) bool {
	return strings.HasSuffix(name, core.ServerBundleSuffix) || strings.HasSuffix(name, core.ClientBundleSuffix)
}
