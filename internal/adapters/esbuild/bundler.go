package esbuild

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"

	"github.com/3-lines-studio/asgard/internal/core"
	"github.com/evanw/esbuild/pkg/api"
	"github.com/spf13/afero"
	"golang.org/x/sync/errgroup"
)

// Bundler runs esbuild in-process. Sources are read from and bundles are
// written to the filesystem handed to Build; nothing touches disk except
// package lookups under the node module roots.
type Bundler struct {
	logger *slog.Logger
}

func New(logger *slog.Logger) *Bundler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Bundler{logger: logger}
}

// Build bundles every config concurrently. Compile errors are reported per
// target in the results; the returned error is reserved for failures of
// the build machinery itself.
func (b *Bundler) Build(ctx context.Context, fsys afero.Fs, configs []core.BuildConfig) ([]core.BuildResult, error) {
	results := make([]core.BuildResult, len(configs))

	g, gctx := errgroup.WithContext(ctx)
	for i, cfg := range configs {
		g.Go(func() error {
			res, err := b.build(gctx, fsys, cfg)
			if err != nil {
				return err
			}
			results[i] = res
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}

func (b *Bundler) build(ctx context.Context, fsys afero.Fs, cfg core.BuildConfig) (core.BuildResult, error) {
	if err := ctx.Err(); err != nil {
		return core.BuildResult{}, err
	}
	if err := cfg.Validate(); err != nil {
		return core.BuildResult{}, err
	}

	res := core.BuildResult{Target: cfg.Target, Output: cfg.OutputPath()}

	if unknown := unknownPlugins(cfg.Plugins); len(unknown) > 0 {
		res.Errors = append(res.Errors, core.BuildMessage{Text: fmt.Sprintf("unknown plugins %v", unknown)})
		return res, nil
	}

	ectx, cerr := api.Context(b.options(fsys, cfg))
	if cerr != nil {
		res.Errors = messages(cerr.Errors)
		return res, nil
	}
	defer ectx.Dispose()

	stop := context.AfterFunc(ctx, ectx.Cancel)
	result := ectx.Rebuild()
	stop()

	if err := ctx.Err(); err != nil {
		return core.BuildResult{}, err
	}

	res.Errors = messages(result.Errors)
	for _, w := range messages(result.Warnings) {
		res.Warnings = append(res.Warnings, w.Error())
	}
	if len(res.Errors) > 0 {
		return res, nil
	}

	for _, out := range result.OutputFiles {
		if err := fsys.MkdirAll(filepath.Dir(out.Path), 0o755); err != nil {
			return core.BuildResult{}, err
		}
		if err := afero.WriteFile(fsys, out.Path, out.Contents, 0o644); err != nil {
			return core.BuildResult{}, err
		}
	}

	b.logger.Debug("bundle written", "target", cfg.Target, "path", res.Output, "files", len(result.OutputFiles))
	return res, nil
}

func (b *Bundler) options(fsys afero.Fs, cfg core.BuildConfig) api.BuildOptions {
	opts := api.BuildOptions{
		EntryPoints:   []string{cfg.Entry},
		Outfile:       cfg.OutputPath(),
		AbsWorkingDir: cfg.OutputDir,
		Bundle:        true,
		Write:         false,
		LogLevel:      api.LogLevelSilent,
		Charset:       api.CharsetUTF8,
		Target:        api.ES2017,
		Define:        cfg.Define,
		Alias:         cfg.Alias,
		External:      cfg.External,
		NodePaths:     absoluteRoots(cfg.Resolve),
		Plugins:       []api.Plugin{newOverlayPlugin(fsys, cfg).Plugin()},
	}

	switch cfg.Platform {
	case core.PlatformNode:
		opts.Platform = api.PlatformNode
	case core.PlatformBrowser:
		opts.Platform = api.PlatformBrowser
	default:
		opts.Platform = api.PlatformNeutral
		opts.MainFields = []string{"module", "main"}
	}

	switch cfg.Format {
	case core.FormatCommonJS:
		opts.Format = api.FormatCommonJS
	case core.FormatIIFE:
		opts.Format = api.FormatIIFE
	}

	if cfg.Mode == core.ModeProduction {
		opts.MinifyWhitespace = true
		opts.MinifyIdentifiers = true
		opts.MinifySyntax = true
	} else if cfg.Target == core.TargetClient {
		opts.Sourcemap = api.SourceMapInline
	}

	return opts
}

func messages(msgs []api.Message) []error {
	if len(msgs) == 0 {
		return nil
	}
	errs := make([]error, 0, len(msgs))
	for _, m := range msgs {
		bm := core.BuildMessage{Text: m.Text}
		if m.PluginName != "" {
			bm.Text = fmt.Sprintf("[%s] %s", m.PluginName, m.Text)
		}
		if m.Location != nil {
			bm.File = m.Location.File
			bm.Line = m.Location.Line
			bm.Column = m.Location.Column
			bm.LineText = m.Location.LineText
		}
		errs = append(errs, bm)
	}
	return errs
}

func absoluteRoots(roots []string) []string {
	var abs []string
	for _, r := range roots {
		if filepath.IsAbs(r) {
			abs = append(abs, r)
		}
	}
	return abs
}

var knownPlugins = map[string]bool{
	core.PluginSFC: true,
}

func unknownPlugins(plugins []string) []string {
	var unknown []string
	for _, p := range plugins {
		if !knownPlugins[p] {
			unknown = append(unknown, p)
		}
	}
	return unknown
}
