package main

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/3-lines-studio/asgard"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
)

func newServeCmd(a *app) *cobra.Command {
	var (
		addr       string
		precompile string
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve views over HTTP",
		Long: "Serve views over HTTP. Routes come from the routes list of the config file;\n" +
			"without one every precompiled view is served at its own path.",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			var routes []asgard.Route
			if err := a.v.UnmarshalKey("routes", &routes); err != nil {
				return err
			}

			reg := prometheus.NewRegistry()
			reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

			r, err := a.renderer(asgard.WithRegistry(reg))
			if err != nil {
				return err
			}
			defer func() { _ = r.Stop() }()

			if precompile != "" {
				if _, err := r.Precompile(cmd.Context(), precompile); err != nil {
					return err
				}
			}
			if len(routes) == 0 {
				routes = viewRoutes(r.Views())
			}

			router := chi.NewRouter()
			router.Use(middleware.RequestID)
			router.Use(middleware.RealIP)
			router.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
			router.Mount("/", r.Handler(routes...))

			for _, route := range routes {
				a.logger.Info("route", "pattern", route.Pattern, "view", route.View)
			}
			return listen(cmd.Context(), a, addr, router)
		},
	}

	cmd.Flags().StringVar(&addr, "addr", ":8080", "listen address")
	cmd.Flags().StringVar(&precompile, "precompile", ".", "directory to precompile before serving (empty to skip)")
	return cmd
}

// viewRoutes serves each view at its key without the extension. A view
// named index also answers "/".
func viewRoutes(views []asgard.ViewInfo) []asgard.Route {
	routes := make([]asgard.Route, 0, len(views))
	for _, v := range views {
		name := v.Key
		if i := strings.LastIndexByte(name, '.'); i > 0 {
			name = name[:i]
		}
		routes = append(routes, asgard.Page("/"+name, name))
		if name == "index" || strings.HasSuffix(name, "/index") {
			routes = append(routes, asgard.Page("/"+strings.TrimSuffix(strings.TrimSuffix(name, "index"), "/"), name))
		}
	}
	return routes
}

func listen(ctx context.Context, a *app, addr string, handler http.Handler) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		a.logger.Info("serving", "addr", addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer cancel()
	a.logger.Info("shutting down")
	return srv.Shutdown(shutdownCtx)
}
