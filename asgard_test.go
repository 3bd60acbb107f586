package asgard

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"regexp"
	"strings"
	"sync"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// copyBundler writes the imported view's source as both bundles.
type copyBundler struct {
	mu      sync.Mutex
	configs []BuildConfig
}

var importRe = regexp.MustCompile(`import App from ("[^"]+");`)

func (b *copyBundler) Build(_ context.Context, fsys afero.Fs, configs []BuildConfig) ([]BuildResult, error) {
	b.mu.Lock()
	b.configs = append(b.configs, configs...)
	b.mu.Unlock()

	results := make([]BuildResult, 0, len(configs))
	for _, cfg := range configs {
		entry, err := afero.ReadFile(fsys, cfg.Entry)
		if err != nil {
			return nil, err
		}
		var view string
		if err := json.Unmarshal([]byte(importRe.FindStringSubmatch(string(entry))[1]), &view); err != nil {
			return nil, err
		}
		src, err := afero.ReadFile(fsys, view)
		if err != nil {
			return nil, err
		}
		if err := afero.WriteFile(fsys, cfg.OutputPath(), src, 0o644); err != nil {
			return nil, err
		}
		results = append(results, BuildResult{Target: cfg.Target, Output: cfg.OutputPath()})
	}
	return results, nil
}

type greetingFactory struct{}

func (greetingFactory) New(_ context.Context, bundle Bundle) (Engine, error) {
	return greetingEngine{greeting: strings.TrimSpace(bundle.Server)}, nil
}

type greetingEngine struct{ greeting string }

func (e greetingEngine) Render(_ context.Context, rc *RenderContext) (string, error) {
	name, _ := rc.Data["name"].(string)
	if name == "" {
		name = "world"
	}
	rc.Data = map[string]any{"name": name}
	return "<p>" + e.greeting + " " + name + "</p>", nil
}

func newTestRenderer(t *testing.T, opts ...Option) (*Renderer, *copyBundler) {
	t.Helper()

	base := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(base, "/site/views/pages/home.vue", []byte("Hello"), 0o644))
	require.NoError(t, afero.WriteFile(base, "/site/views/pages/bye.vue", []byte("Bye"), 0o644))

	bundler := &copyBundler{}
	opts = append([]Option{
		WithResources("/site/views"),
		WithFs(base),
		WithBundler(bundler),
		WithEngineFactory(greetingFactory{}),
		WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))),
	}, opts...)

	r, err := New(opts...)
	require.NoError(t, err)
	t.Cleanup(func() { _ = r.Stop() })
	return r, bundler
}

func TestRendererRender(t *testing.T) {
	r, _ := newTestRenderer(t)

	rc := NewRenderContext(map[string]any{"name": "mars"})
	doc, err := r.Render(context.Background(), "pages/home", rc)
	require.NoError(t, err)

	assert.Contains(t, doc, "<p>Hello mars</p>")
	assert.Contains(t, doc, `window.__INITIAL_STATE__={"name":"mars"}`)
	assert.Equal(t, "mars", rc.Data["name"])

	views := r.Views()
	require.Len(t, views, 1)
	assert.Equal(t, "pages/home.vue", views[0].Key)
}

func TestRendererMissingView(t *testing.T) {
	r, _ := newTestRenderer(t)

	_, err := r.Render(context.Background(), "pages/nope", nil)
	assert.ErrorIs(t, err, ErrViewNotFound)

	_, err = r.GetRenderer(context.Background(), "../secret")
	assert.ErrorIs(t, err, ErrInvalidViewPath)
}

func TestRendererPrecompile(t *testing.T) {
	r, _ := newTestRenderer(t)

	infos, err := r.Precompile(context.Background(), "pages")
	require.NoError(t, err)
	assert.Len(t, infos, 2)
	assert.Len(t, r.Views(), 2)

	_, err = r.Precompile(context.Background(), "empty")
	assert.ErrorIs(t, err, ErrNoViews)
}

func TestBuildConfigOptionsExtendDefaults(t *testing.T) {
	r, bundler := newTestRenderer(t,
		WithCommonConfig(BuildConfig{Define: map[string]string{"APP_NAME": `"demo"`}}),
		WithServerConfig(BuildConfig{External: []string{"fs"}}),
		WithClientConfig(BuildConfig{Alias: map[string]string{"lodash": "lodash-es"}}),
		WithMode(ModeProduction),
	)

	_, err := r.GetRenderer(context.Background(), "pages/home")
	require.NoError(t, err)

	require.Len(t, bundler.configs, 2)
	server, client := bundler.configs[0], bundler.configs[1]

	assert.Equal(t, `"demo"`, server.Define["APP_NAME"])
	assert.Equal(t, `"demo"`, client.Define["APP_NAME"])
	assert.Equal(t, `"production"`, server.Define["process.env.NODE_ENV"])
	assert.Contains(t, server.External, "fs")
	assert.NotContains(t, client.External, "fs")
	assert.Equal(t, "lodash-es", client.Alias["lodash"])
	assert.True(t, server.HasPlugin("sfc"), "default plugins survive extension")
}

func TestHandler(t *testing.T) {
	r, _ := newTestRenderer(t)

	h := r.Handler(
		Page("/", "pages/home"),
		Page("/bye/{name}", "pages/bye"),
		Page("/fixed", "pages/home", func(*http.Request) (map[string]any, error) {
			return map[string]any{"name": "fixed"}, nil
		}),
	)

	tests := []struct {
		path string
		want string
	}{
		{"/", "<p>Hello world</p>"},
		{"/bye/mars", "<p>Bye mars</p>"},
		{"/fixed", "<p>Hello fixed</p>"},
	}
	for _, tt := range tests {
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, tt.path, nil))
		assert.Equal(t, http.StatusOK, rec.Code, tt.path)
		assert.Contains(t, rec.Body.String(), tt.want, tt.path)
	}

	rec := httptest.NewRecorder()
	r.NewView("pages/missing").ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestNewRejectsInvalidConfig(t *testing.T) {
	_, err := New(WithMode("staging"))
	assert.ErrorIs(t, err, ErrInvalidConfig)

	_, err = New(WithEngine("deno"))
	assert.ErrorIs(t, err, ErrInvalidConfig)

	_, err = New(WithResources(""))
	assert.ErrorIs(t, err, ErrInvalidConfig)
}

func TestWithRegistry(t *testing.T) {
	reg := prometheus.NewRegistry()
	r, _ := newTestRenderer(t, WithRegistry(reg))

	_, err := r.Render(context.Background(), "pages/home", nil)
	require.NoError(t, err)

	families, err := reg.Gather()
	require.NoError(t, err)

	names := make([]string, 0, len(families))
	for _, f := range families {
		names = append(names, f.GetName())
	}
	assert.Contains(t, names, "asgard_builds_total")
	assert.Contains(t, names, "asgard_renders_total")
}

func TestLoadConfig(t *testing.T) {
	cfg, err := LoadConfig()
	require.NoError(t, err)
	assert.Equal(t, DefaultConfig(), cfg)

	t.Setenv("ASGARD_RESOURCES", "views")
	t.Setenv("ASGARD_MODE", "production")
	t.Setenv("ASGARD_ENGINE", "node")
	t.Setenv("ASGARD_CONCURRENCY", "3")

	cfg, err = LoadConfig()
	require.NoError(t, err)
	assert.Equal(t, "views", cfg.Resources)
	assert.Equal(t, "production", cfg.Mode)
	assert.Equal(t, EngineNode, cfg.Engine)
	assert.Equal(t, 3, cfg.Concurrency)
	assert.NoError(t, cfg.Validate())
}
