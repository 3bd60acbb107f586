package asgard

import (
	"log/slog"

	"github.com/3-lines-studio/asgard/internal/core"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/afero"
	"go.opentelemetry.io/otel/trace"
)

type Option func(*options)

type options struct {
	cfg Config

	common core.BuildConfig
	server core.BuildConfig
	client core.BuildConfig

	template core.TemplateFunc
	logger   *slog.Logger
	registry prometheus.Registerer
	tracer   trace.Tracer

	fs      afero.Fs
	bundler core.Bundler
	engines core.EngineFactory
}

// WithConfig replaces the whole configuration, typically one returned by
// LoadConfig. Options applied after it still take precedence.
func WithConfig(cfg Config) Option {
	return func(o *options) {
		o.cfg = cfg
	}
}

// WithResources sets the directory view paths are resolved against.
func WithResources(dir string) Option {
	return func(o *options) {
		o.cfg.Resources = dir
	}
}

func WithNodeModules(dir string) Option {
	return func(o *options) {
		o.cfg.NodeModules = dir
	}
}

func WithMode(mode Mode) Option {
	return func(o *options) {
		o.cfg.Mode = string(mode)
	}
}

// WithEngine selects the render engine: EngineGoja or EngineNode.
func WithEngine(engine string) Option {
	return func(o *options) {
		o.cfg.Engine = engine
	}
}

func WithViewExt(ext string) Option {
	return func(o *options) {
		o.cfg.ViewExt = ext
	}
}

// WithConcurrency bounds how many views Precompile builds at once.
func WithConcurrency(n int) Option {
	return func(o *options) {
		o.cfg.Concurrency = n
	}
}

// WithCommonConfig extends the build configuration shared by both targets.
// Repeated calls accumulate.
func WithCommonConfig(cfg BuildConfig) Option {
	return func(o *options) {
		o.common = core.Merge(o.common, cfg)
	}
}

func WithServerConfig(cfg BuildConfig) Option {
	return func(o *options) {
		o.server = core.Merge(o.server, cfg)
	}
}

func WithClientConfig(cfg BuildConfig) Option {
	return func(o *options) {
		o.client = core.Merge(o.client, cfg)
	}
}

// WithTemplate replaces the document template.
func WithTemplate(fn TemplateFunc) Option {
	return func(o *options) {
		o.template = fn
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(o *options) {
		o.logger = logger
	}
}

// WithRegistry registers the renderer's metrics with reg.
func WithRegistry(reg prometheus.Registerer) Option {
	return func(o *options) {
		o.registry = reg
	}
}

func WithTracer(tracer trace.Tracer) Option {
	return func(o *options) {
		o.tracer = tracer
	}
}

// WithFs sets the read-only base of the overlay filesystem. Defaults to the
// OS filesystem.
func WithFs(fs afero.Fs) Option {
	return func(o *options) {
		o.fs = fs
	}
}

func WithBundler(b Bundler) Option {
	return func(o *options) {
		o.bundler = b
	}
}

func WithEngineFactory(f EngineFactory) Option {
	return func(o *options) {
		o.engines = f
	}
}
