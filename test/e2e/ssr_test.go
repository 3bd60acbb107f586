package e2e

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/3-lines-studio/asgard"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestComponentWithData(t *testing.T) {
	forEachEngine(t, func(t *testing.T, engine string) {
		r := newRenderer(t, engine)
		ctx := context.Background()

		doc, err := r.Render(ctx, "component-with-data", nil)
		require.NoError(t, err)
		assert.Contains(t, doc, "Hello world")

		doc, err = r.Render(ctx, "component-with-data", asgard.NewRenderContext(map[string]any{"hello": "mars"}))
		require.NoError(t, err)
		assert.Contains(t, doc, "Hello mars")

		doc, err = r.Render(ctx, "component-with-data", nil)
		require.NoError(t, err)
		assert.Contains(t, doc, "Hello world", "data from an earlier render must not leak")
		assert.Contains(t, doc, "<title>Hello</title>")

		assert.Len(t, r.Views(), 1)
	})
}

func TestHomeDefaultData(t *testing.T) {
	forEachEngine(t, func(t *testing.T, engine string) {
		r := newRenderer(t, engine)

		rc := asgard.NewRenderContext(nil)
		doc, err := r.Render(context.Background(), "pages/home", rc)
		require.NoError(t, err)

		assert.Contains(t, doc, "<h1>Lala!</h1>")
		assert.Contains(t, doc, `window.__INITIAL_STATE__={`)
		assert.Equal(t, "Lala!", rc.Data["msg"])
		assert.Contains(t, rc.Styles, "#2c3e50")
	})
}

func TestPrecompileExample(t *testing.T) {
	r := newRenderer(t, asgard.EngineGoja, asgard.WithMode(asgard.ModeProduction))

	infos, err := r.Precompile(context.Background(), ".")
	require.NoError(t, err)
	assert.Len(t, infos, 2)
	for _, info := range infos {
		assert.Positive(t, info.ServerBytes, info.Key)
		assert.Positive(t, info.ClientBytes, info.Key)
	}
}

func TestServeOverHTTP(t *testing.T) {
	r := newRenderer(t, asgard.EngineGoja)

	srv := httptest.NewServer(r.Handler(
		asgard.Page("/", "pages/home"),
		asgard.Page("/hello/{hello}", "component-with-data"),
		asgard.Page("/missing", "pages/missing"),
	))
	t.Cleanup(srv.Close)

	status, body := get(t, srv, "/")
	assert.Equal(t, http.StatusOK, status)
	assert.Contains(t, body, "<h1>Lala!</h1>")

	status, body = get(t, srv, "/hello/mars")
	assert.Equal(t, http.StatusOK, status)
	assert.Contains(t, body, "Hello mars")

	status, body = get(t, srv, "/missing")
	assert.Equal(t, http.StatusNotFound, status)
	assert.Contains(t, body, "view not found")
}
