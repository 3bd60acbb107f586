// Package asgard renders single-file view components on the server. A
// Renderer maps view paths to memoized renderers: the first request for a
// view synthesizes its entries, composes the build configuration, bundles
// server and client code into an in-memory overlay and starts a render
// engine. Later requests reuse the cached result.
package asgard

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"path/filepath"

	"github.com/3-lines-studio/asgard/internal/adapters/esbuild"
	"github.com/3-lines-studio/asgard/internal/adapters/fs"
	"github.com/3-lines-studio/asgard/internal/adapters/goja"
	httpadapter "github.com/3-lines-studio/asgard/internal/adapters/http"
	"github.com/3-lines-studio/asgard/internal/adapters/process"
	"github.com/3-lines-studio/asgard/internal/core"
	"github.com/3-lines-studio/asgard/internal/telemetry"
	"github.com/3-lines-studio/asgard/internal/usecase"
	"go.trai.ch/zerr"
)

type Renderer struct {
	pipeline  *usecase.Pipeline
	overlay   *fs.Overlay
	resources string
	isDev     bool
	logger    *slog.Logger
	closer    io.Closer
}

func New(opts ...Option) (*Renderer, error) {
	o := options{cfg: DefaultConfig()}
	for _, opt := range opts {
		opt(&o)
	}

	if err := o.cfg.Validate(); err != nil {
		return nil, err
	}
	mode, _ := core.ParseMode(o.cfg.Mode)

	resources, err := filepath.Abs(o.cfg.Resources)
	if err != nil {
		return nil, zerr.With(zerr.Wrap(err, "failed to resolve resources directory"), "resources", o.cfg.Resources)
	}

	if o.logger == nil {
		o.logger = slog.Default()
	}
	if o.tracer == nil {
		o.tracer = telemetry.Tracer()
	}

	overlay := fs.NewOSOverlay()
	if o.fs != nil {
		overlay = fs.NewOverlay(o.fs)
	}

	if o.bundler == nil {
		o.bundler = esbuild.New(o.logger)
	}

	r := &Renderer{
		overlay:   overlay,
		resources: resources,
		isDev:     mode == core.ModeDevelopment,
		logger:    o.logger,
	}

	if o.engines == nil {
		engines, closer, err := newEngineFactory(o.cfg)
		if err != nil {
			return nil, err
		}
		o.engines = engines
		r.closer = closer
	}

	r.pipeline, err = usecase.NewPipeline(overlay, o.bundler, o.engines, usecase.Options{
		Resources:   resources,
		NodeModules: o.cfg.NodeModules,
		Ext:         o.cfg.ViewExt,
		Mode:        mode,
		Concurrency: o.cfg.Concurrency,
		Common:      core.Merge(core.CommonConfig(), o.common),
		Server:      core.Merge(core.ServerConfig(), o.server),
		Client:      core.Merge(core.ClientConfig(), o.client),
		Template:    o.template,
		Logger:      o.logger,
		Metrics:     telemetry.NewMetrics(o.registry),
		Tracer:      o.tracer,
	})
	if err != nil {
		_ = r.Stop()
		return nil, err
	}

	return r, nil
}

func newEngineFactory(cfg Config) (core.EngineFactory, io.Closer, error) {
	if cfg.Engine != EngineNode {
		return goja.NewFactory(), nil, nil
	}
	f, err := process.NewFactory(process.Options{Node: cfg.Node})
	if err != nil {
		return nil, nil, err
	}
	return f, f, nil
}

// Render renders viewPath with rc, building its renderer on first use. rc
// may be nil and is updated with the data and state the view produced.
func (r *Renderer) Render(ctx context.Context, viewPath string, rc *RenderContext) (string, error) {
	return r.pipeline.Render(ctx, viewPath, rc)
}

// GetRenderer returns the memoized renderer for viewPath.
func (r *Renderer) GetRenderer(ctx context.Context, viewPath string) (*View, error) {
	return r.pipeline.GetRenderer(ctx, viewPath)
}

// Precompile builds every view below dir, relative to the resources
// directory.
func (r *Renderer) Precompile(ctx context.Context, dir string) ([]ViewInfo, error) {
	return r.pipeline.Precompile(ctx, dir)
}

func (r *Renderer) Views() []ViewInfo {
	return r.pipeline.Views()
}

func (r *Renderer) Resources() string {
	return r.resources
}

// NewView returns a handler rendering view with the optional data.
func (r *Renderer) NewView(view string, data ...DataFunc) http.Handler {
	var fn DataFunc
	if len(data) > 0 {
		fn = data[0]
	}
	return httpadapter.NewViewHandler(r.pipeline, view, fn, r.isDev, r.logger)
}

// Handler routes each pattern to its view. In development built bundles
// are also served below /_asgard/bundles.
func (r *Renderer) Handler(routes ...Route) http.Handler {
	return httpadapter.NewRouter(r.pipeline, routes, httpadapter.RouterOptions{
		IsDev:     r.isDev,
		Logger:    r.logger,
		Fs:        r.overlay.Fs(),
		Resources: r.resources,
	})
}

// Stop releases the render engine. Renderers must not be used afterwards.
func (r *Renderer) Stop() error {
	if r.closer != nil {
		return r.closer.Close()
	}
	return nil
}
