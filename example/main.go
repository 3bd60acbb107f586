// Command example serves the demo views with asgard and chi.
package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"

	"github.com/3-lines-studio/asgard"
	"github.com/go-chi/chi/v5"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	r, err := asgard.New(
		asgard.WithResources("./views"),
		asgard.WithNodeModules("./node_modules"),
	)
	if err != nil {
		slog.Error("failed to start renderer", "error", err)
		os.Exit(1)
	}
	defer func() { _ = r.Stop() }()

	if _, err := r.Precompile(ctx, "."); err != nil {
		slog.Error("precompile failed", "error", err)
		os.Exit(1)
	}

	router := chi.NewRouter()
	router.Handle("/", r.NewView("pages/home"))
	router.Handle("/hello", r.NewView("component-with-data"))
	router.Handle("/hello/{hello}", r.NewView("component-with-data"))
	router.Handle("/error", r.NewView("pages/home", func(*http.Request) (map[string]any, error) {
		return nil, errors.New("this is a test error to verify the error page works correctly")
	}))

	srv := &http.Server{Addr: ":8080", Handler: router}
	go func() {
		<-ctx.Done()
		_ = srv.Shutdown(context.WithoutCancel(ctx))
	}()

	slog.Info("serving", "addr", "http://localhost:8080")
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		slog.Error("server failed", "error", err)
		os.Exit(1)
	}
}
