package http

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/spf13/afero"
)

// Route binds a URL pattern to a view path.
type Route struct {
	Pattern string   `mapstructure:"pattern"`
	View    string   `mapstructure:"view"`
	Data    DataFunc `mapstructure:"-"`
}

type RouterOptions struct {
	IsDev     bool
	Logger    *slog.Logger
	Fs        afero.Fs
	Resources string
}

// BundlePrefix is where development routers expose built bundles.
const BundlePrefix = "/_asgard/bundles"

func NewRouter(renderer Renderer, routes []Route, opts RouterOptions) chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)

	for _, route := range routes {
		r.Method(http.MethodGet, route.Pattern, NewViewHandler(renderer, route.View, route.Data, opts.IsDev, opts.Logger))
	}

	if opts.IsDev && opts.Fs != nil {
		r.Handle(BundlePrefix+"/*", http.StripPrefix(BundlePrefix, NewBundleHandler(opts.Fs, opts.Resources)))
	}

	return r
}
