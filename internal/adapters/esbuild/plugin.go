package esbuild

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/3-lines-studio/asgard/internal/core"
	"github.com/evanw/esbuild/pkg/api"
	"github.com/spf13/afero"
)

const namespace = "asgard"

var probeExtensions = []string{".js", ".vue", ".json", ".css"}

// overlayPlugin routes module loading through the overlay filesystem.
// It claims absolute and relative imports that exist there, plus bare
// imports of rule-matched files found under a resolve root. Everything
// else falls through to esbuild's own resolver, which only sees the disk:
// modules living in memory-only directories hand it the output directory
// to resolve packages from.
type overlayPlugin struct {
	fs    afero.Fs
	cfg   core.BuildConfig
	roots []string
}

func newOverlayPlugin(fsys afero.Fs, cfg core.BuildConfig) *overlayPlugin {
	return &overlayPlugin{fs: fsys, cfg: cfg, roots: absoluteRoots(cfg.Resolve)}
}

func (p *overlayPlugin) Plugin() api.Plugin {
	return api.Plugin{
		Name: "asgard-overlay",
		Setup: func(build api.PluginBuild) {
			build.OnResolve(api.OnResolveOptions{Filter: ".*"}, p.resolve)
			build.OnLoad(api.OnLoadOptions{Filter: ".*", Namespace: namespace}, p.load)
		},
	}
}

func (p *overlayPlugin) resolve(args api.OnResolveArgs) (api.OnResolveResult, error) {
	path, ok := p.lookup(args)
	if !ok {
		return api.OnResolveResult{}, nil
	}
	return api.OnResolveResult{Path: path, Namespace: namespace}, nil
}

func (p *overlayPlugin) lookup(args api.OnResolveArgs) (string, bool) {
	specifier := args.Path

	switch {
	case filepath.IsAbs(specifier):
		return p.probe(specifier)

	case strings.HasPrefix(specifier, "./") || strings.HasPrefix(specifier, "../"):
		// relative imports inside packages esbuild loaded itself stay with esbuild
		if args.Namespace != namespace && args.Kind != api.ResolveEntryPoint {
			return "", false
		}
		dir := args.ResolveDir
		if args.Namespace == namespace || dir == "" {
			dir = filepath.Dir(args.Importer)
		}
		return p.probe(filepath.Join(dir, filepath.FromSlash(specifier)))

	default:
		if _, ok := p.cfg.LoaderFor(specifier); !ok {
			return "", false
		}
		for _, root := range p.roots {
			if path, ok := p.probe(filepath.Join(root, filepath.FromSlash(specifier))); ok {
				return path, true
			}
		}
		return "", false
	}
}

func (p *overlayPlugin) probe(path string) (string, bool) {
	if p.isFile(path) {
		return path, true
	}
	for _, ext := range probeExtensions {
		if p.isFile(path + ext) {
			return path + ext, true
		}
	}
	if index := filepath.Join(path, "index.js"); p.isFile(index) {
		return index, true
	}
	return "", false
}

func (p *overlayPlugin) isFile(path string) bool {
	info, err := p.fs.Stat(path)
	return err == nil && !info.IsDir()
}

func (p *overlayPlugin) load(args api.OnLoadArgs) (api.OnLoadResult, error) {
	src, err := afero.ReadFile(p.fs, args.Path)
	if err != nil {
		return api.OnLoadResult{}, err
	}

	name, ok := p.cfg.LoaderFor(args.Path)
	if !ok {
		name = loaderByExtension(args.Path)
	}

	contents, loader, err := p.transform(name, args.Path, src)
	if err != nil {
		return api.OnLoadResult{}, err
	}

	return api.OnLoadResult{
		Contents:   &contents,
		Loader:     loader,
		ResolveDir: p.resolveDir(args.Path),
	}, nil
}

// resolveDir is the directory esbuild resolves a module's unclaimed
// imports from. It must exist on disk for node_modules lookups to work.
func (p *overlayPlugin) resolveDir(path string) string {
	dir := filepath.Dir(path)
	if info, err := os.Stat(dir); err == nil && info.IsDir() {
		return dir
	}
	return p.cfg.OutputDir
}

func (p *overlayPlugin) transform(name, path string, src []byte) (string, api.Loader, error) {
	switch name {
	case core.LoaderSFC:
		if !p.cfg.HasPlugin(core.PluginSFC) {
			return "", api.LoaderNone, fmt.Errorf("loader %q requires the %q plugin", name, core.PluginSFC)
		}
		out, err := compileSFC(path, string(src))
		return out, api.LoaderJS, err
	case core.LoaderStyle:
		return styleModule(path, string(src)), api.LoaderJS, nil
	case core.LoaderJS:
		return string(src), api.LoaderJS, nil
	case core.LoaderJSON:
		return string(src), api.LoaderJSON, nil
	case core.LoaderText:
		return string(src), api.LoaderText, nil
	}
	return "", api.LoaderNone, fmt.Errorf("unknown loader %q for %s", name, path)
}

func loaderByExtension(path string) string {
	switch filepath.Ext(path) {
	case ".json":
		return core.LoaderJSON
	case ".css":
		return core.LoaderStyle
	case ".vue":
		return core.LoaderSFC
	case ".js", ".mjs", ".cjs":
		return core.LoaderJS
	}
	return core.LoaderText
}
