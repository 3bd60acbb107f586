package usecase

import (
	"context"
	"errors"
	"log/slog"
	"path/filepath"
	"runtime"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/3-lines-studio/asgard/internal/core"
	"github.com/3-lines-studio/asgard/internal/telemetry"
	"go.opentelemetry.io/otel/trace"
	"go.trai.ch/zerr"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"
)

type Options struct {
	Resources   string
	NodeModules string
	ImportsDir  string
	Ext         string
	Mode        core.Mode
	Concurrency int

	Common core.BuildConfig
	Server core.BuildConfig
	Client core.BuildConfig

	Template core.TemplateFunc
	Logger   *slog.Logger
	Metrics  *telemetry.Metrics
	Tracer   trace.Tracer
}

// Pipeline maps view paths to memoized renderers. A miss runs entry
// synthesis, config composition, bundling and engine construction in that
// order; a failure at any stage caches nothing.
type Pipeline struct {
	opts    Options
	fs      Workspace
	bundler core.Bundler
	engines core.EngineFactory

	mu     sync.RWMutex
	views  map[string]*View
	builds singleflight.Group
}

func NewPipeline(fs Workspace, bundler core.Bundler, engines core.EngineFactory, opts Options) (*Pipeline, error) {
	if opts.Resources == "" {
		return nil, zerr.Wrap(core.ErrInvalidConfig, "resources directory is required")
	}
	if opts.Ext == "" {
		opts.Ext = core.DefaultViewExt
	}
	if opts.NodeModules == "" {
		opts.NodeModules = "node_modules"
	}
	if opts.ImportsDir == "" {
		opts.ImportsDir = core.DefaultImportsDir(opts.Resources)
	}
	if opts.Mode == "" {
		opts.Mode = core.ModeDevelopment
	}
	if opts.Concurrency <= 0 {
		opts.Concurrency = runtime.GOMAXPROCS(0)
	}
	if opts.Template == nil {
		opts.Template = core.DefaultTemplate
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.Tracer == nil {
		opts.Tracer = telemetry.Tracer()
	}

	if err := fs.WriteFS(opts.ImportsDir, core.Imports()); err != nil {
		return nil, zerr.With(zerr.Wrap(err, "failed to install built-in imports"), "dir", opts.ImportsDir)
	}

	return &Pipeline{
		opts:    opts,
		fs:      fs,
		bundler: bundler,
		engines: engines,
		views:   make(map[string]*View),
	}, nil
}

// GetRenderer returns the cached renderer for viewPath, building it on
// first use. Concurrent first requests for one view share a single build,
// which keeps running when a waiting caller gives up.
func (p *Pipeline) GetRenderer(ctx context.Context, viewPath string) (*View, error) {
	key, err := core.CacheKey(viewPath, p.opts.Ext)
	if err != nil {
		return nil, err
	}

	if v, ok := p.lookup(key); ok {
		p.opts.Metrics.CacheLookup(true)
		p.opts.Logger.Debug("renderer cache hit", "view", key)
		return v, nil
	}
	p.opts.Metrics.CacheLookup(false)

	ch := p.builds.DoChan(key, func() (any, error) {
		if v, ok := p.lookup(key); ok {
			return v, nil
		}
		return p.build(context.WithoutCancel(ctx), key)
	})

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.(*View), nil
	}
}

// Render resolves the renderer for viewPath and renders it with rc.
func (p *Pipeline) Render(ctx context.Context, viewPath string, rc *core.RenderContext) (string, error) {
	v, err := p.GetRenderer(ctx, viewPath)
	if err != nil {
		return "", err
	}
	return v.Render(ctx, rc)
}

// Precompile builds a renderer for every view under dir, relative to the
// resources directory. Views built before a failure stay cached.
func (p *Pipeline) Precompile(ctx context.Context, dir string) ([]ViewInfo, error) {
	root := filepath.Join(p.opts.Resources, dir)

	files, err := p.fs.FindFiles(root, p.opts.Ext)
	if err != nil {
		return nil, zerr.With(zerr.Wrap(err, "failed to discover views"), "dir", root)
	}
	if len(files) == 0 {
		return nil, zerr.With(zerr.Wrap(core.ErrNoViews, ""), "dir", root)
	}

	p.opts.Logger.Info("precompiling views", "dir", root, "count", len(files))

	infos := make([]ViewInfo, len(files))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(p.opts.Concurrency)

	for i, file := range files {
		viewPath := core.NormalizeViewPath(p.opts.Resources, file, p.opts.Ext)
		g.Go(func() error {
			v, err := p.GetRenderer(gctx, viewPath)
			if err != nil {
				return err
			}
			infos[i] = v.Info()
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return infos, nil
}

// Views lists the cached renderers sorted by key.
func (p *Pipeline) Views() []ViewInfo {
	p.mu.RLock()
	infos := make([]ViewInfo, 0, len(p.views))
	for _, v := range p.views {
		infos = append(infos, v.Info())
	}
	p.mu.RUnlock()

	slices.SortFunc(infos, func(a, b ViewInfo) int { return strings.Compare(a.Key, b.Key) })
	return infos
}

func (p *Pipeline) lookup(key string) (*View, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	v, ok := p.views[key]
	return v, ok
}

func (p *Pipeline) store(key string, v *View) {
	p.mu.Lock()
	p.views[key] = v
	n := len(p.views)
	p.mu.Unlock()
	p.opts.Metrics.CachedViews(n)
}

func (p *Pipeline) build(ctx context.Context, key string) (*View, error) {
	ctx, span := telemetry.StartSpan(ctx, p.opts.Tracer, "asgard.build", key)
	start := time.Now()
	p.opts.Logger.Info("building view", "view", key, "mode", p.opts.Mode)

	v, err := p.buildView(ctx, key)
	telemetry.End(span, err)
	if err != nil {
		p.opts.Metrics.Build(telemetry.StatusError)
		p.opts.Logger.Warn("view build failed", "view", key, "error", err)
		p.purge(key)
		return nil, err
	}

	v.buildTime = time.Since(start)
	v.builtAt = time.Now()
	p.store(key, v)
	p.opts.Metrics.Build(telemetry.StatusOK)
	p.opts.Logger.Info("view built", "view", key, "duration", v.buildTime)

	return v, nil
}

func (p *Pipeline) buildView(ctx context.Context, key string) (*View, error) {
	viewFile := core.ViewFile(p.opts.Resources, key)
	if !p.fs.FileExists(viewFile) {
		return nil, zerr.With(zerr.With(zerr.Wrap(core.ErrViewNotFound, ""), "view", key), "file", viewFile)
	}

	var (
		entries core.Entries
		plan    core.BuildPlan
		bundle  core.Bundle
		engine  core.Engine
	)

	err := p.stage(ctx, key, "entry", func(ctx context.Context) (err error) {
		entries, err = p.createEntry(key, viewFile)
		return err
	})
	if err != nil {
		return nil, err
	}

	err = p.stage(ctx, key, "config", func(ctx context.Context) (err error) {
		plan, err = p.createConfig(key, entries.Paths)
		return err
	})
	if err != nil {
		return nil, err
	}

	err = p.stage(ctx, key, "bundle", func(ctx context.Context) (err error) {
		bundle, err = p.createBundle(ctx, plan)
		return err
	})
	if err != nil {
		return nil, err
	}

	err = p.stage(ctx, key, "engine", func(ctx context.Context) (err error) {
		engine, err = p.engines.New(ctx, bundle)
		if err != nil {
			err = core.WithView(err, key)
		}
		return err
	})
	if err != nil {
		return nil, err
	}

	return &View{
		Key:         key,
		engine:      engine,
		template:    p.opts.Template,
		client:      bundle.Client,
		minify:      p.opts.Mode == core.ModeProduction,
		metrics:     p.opts.Metrics,
		serverBytes: len(bundle.Server),
	}, nil
}

func (p *Pipeline) stage(ctx context.Context, key, name string, fn func(context.Context) error) error {
	ctx, span := telemetry.StartSpan(ctx, p.opts.Tracer, "asgard."+name, key)
	start := time.Now()
	err := fn(ctx)
	p.opts.Metrics.Stage(name, time.Since(start))
	telemetry.End(span, err)
	return err
}

// purge drops what a failed build left in the overlay, so stale entries
// and bundles of a view that is not cached are never served.
func (p *Pipeline) purge(key string) {
	entries := core.EntryPathsFor(p.opts.Resources, key)
	bundles := core.BundlePathsFor(p.opts.Resources, key)

	for _, path := range []string{entries.Server, entries.Client, bundles.Server, bundles.Client} {
		if !p.fs.FileExists(path) {
			continue
		}
		if err := p.fs.Remove(path); err != nil {
			p.opts.Logger.Debug("failed to purge build output", "view", key, "path", path, "error", err)
		}
	}
}

func (p *Pipeline) createEntry(key, viewFile string) (core.Entries, error) {
	paths := core.EntryPathsFor(p.opts.Resources, key)

	entries, err := core.SynthesizeEntries(viewFile, paths)
	if err != nil {
		return core.Entries{}, core.WithView(zerr.Wrap(err, "failed to synthesize entries"), key)
	}

	if err := p.fs.MkdirAll(paths.Dir, 0o755); err != nil {
		return core.Entries{}, core.WithView(zerr.Wrap(err, "failed to create entry directory"), key)
	}
	if err := p.fs.WriteFile(paths.Server, entries.Server, 0o644); err != nil {
		return core.Entries{}, core.WithView(zerr.Wrap(err, "failed to write server entry"), key)
	}
	if err := p.fs.WriteFile(paths.Client, entries.Client, 0o644); err != nil {
		return core.Entries{}, core.WithView(zerr.Wrap(err, "failed to write client entry"), key)
	}

	return entries, nil
}

func (p *Pipeline) createConfig(key string, entries core.EntryPaths) (core.BuildPlan, error) {
	instance := core.InstanceConfig(p.opts.Mode, p.opts.Resources, p.opts.NodeModules, p.opts.ImportsDir)
	plan := core.ComposeBuildPlan(key, entries, p.opts.Common, p.opts.Server, p.opts.Client, instance)

	for _, cfg := range plan.Configs {
		if err := cfg.Validate(); err != nil {
			return core.BuildPlan{}, core.WithView(err, key)
		}
	}
	return plan, nil
}

func (p *Pipeline) createBundle(ctx context.Context, plan core.BuildPlan) (core.Bundle, error) {
	results, err := p.bundler.Build(ctx, p.fs.Fs(), plan.Configs[:])
	if err != nil {
		return core.Bundle{}, core.WithView(errors.Join(core.ErrBuildFailed, err), plan.Key)
	}

	var errs []error
	for _, r := range results {
		for _, w := range r.Warnings {
			p.opts.Logger.Debug("build warning", "view", plan.Key, "target", r.Target, "warning", w)
		}
		errs = append(errs, r.Errors...)
	}
	if len(errs) > 0 {
		return core.Bundle{}, core.WithView(errors.Join(append([]error{core.ErrBuildFailed}, errs...)...), plan.Key)
	}

	server, err := p.fs.ReadFile(plan.Bundles.Server)
	if err != nil {
		return core.Bundle{}, zerr.With(core.WithView(zerr.Wrap(core.ErrBundleMissing, err.Error()), plan.Key), "path", plan.Bundles.Server)
	}
	client, err := p.fs.ReadFile(plan.Bundles.Client)
	if err != nil {
		return core.Bundle{}, zerr.With(core.WithView(zerr.Wrap(core.ErrBundleMissing, err.Error()), plan.Key), "path", plan.Bundles.Client)
	}

	return core.Bundle{Server: string(server), Client: string(client)}, nil
}
