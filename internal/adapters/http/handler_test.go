package http

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sort"
	"strings"
	"testing"

	"github.com/3-lines-studio/asgard/internal/core"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeRenderer struct {
	err   error
	views []string
}

func (f *fakeRenderer) Render(_ context.Context, viewPath string, rc *core.RenderContext) (string, error) {
	f.views = append(f.views, viewPath)
	if f.err != nil {
		return "", f.err
	}
	keys := make([]string, 0, len(rc.Data))
	for k := range rc.Data {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var parts []string
	for _, k := range keys {
		parts = append(parts, fmt.Sprintf("%s=%v", k, rc.Data[k]))
	}
	return "<p>" + viewPath + " " + strings.Join(parts, ",") + "</p>", nil
}

func TestViewHandlerRendersWithData(t *testing.T) {
	r := &fakeRenderer{}
	h := NewViewHandler(r, "pages/home", func(*http.Request) (map[string]any, error) {
		return map[string]any{"hello": "mars"}, nil
	}, false, nil)

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "text/html; charset=utf-8", rec.Header().Get("Content-Type"))
	assert.Equal(t, "<p>pages/home hello=mars</p>", rec.Body.String())
	assert.NotEmpty(t, rec.Header().Get("ETag"))
}

func TestViewHandlerNotModified(t *testing.T) {
	h := NewViewHandler(&fakeRenderer{}, "pages/home", nil, false, nil)

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	etag := rec.Header().Get("ETag")
	require.NotEmpty(t, etag)

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("If-None-Match", etag)
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusNotModified, rec.Code)
	assert.Empty(t, rec.Body.String())
}

func TestViewHandlerErrors(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		isDev      bool
		wantStatus int
		wantBody   string
	}{
		{"render failure in dev", core.WithView(core.ErrRenderFailed, "pages/home.vue"), true, http.StatusInternalServerError, "render failed"},
		{"render failure in prod", core.WithView(core.ErrRenderFailed, "pages/home.vue"), false, http.StatusInternalServerError, "The page could not be rendered."},
		{"missing view", core.WithView(core.ErrViewNotFound, "pages/nope.vue"), true, http.StatusNotFound, "view not found"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := NewViewHandler(&fakeRenderer{err: tt.err}, "pages/home", nil, tt.isDev, nil)
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

			assert.Equal(t, tt.wantStatus, rec.Code)
			assert.Contains(t, rec.Body.String(), "<title>Render error</title>")
			assert.Contains(t, rec.Body.String(), tt.wantBody)
		})
	}
}

func TestViewHandlerDataError(t *testing.T) {
	r := &fakeRenderer{}
	h := NewViewHandler(r, "pages/home", func(*http.Request) (map[string]any, error) {
		return nil, errors.New("no session")
	}, true, nil)

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Contains(t, rec.Body.String(), "no session")
	assert.Empty(t, r.views)
}

func TestRouterPassesURLParams(t *testing.T) {
	r := &fakeRenderer{}
	router := NewRouter(r, []Route{
		{Pattern: "/", View: "pages/home"},
		{Pattern: "/hello/{hello}", View: "component-with-data"},
	}, RouterOptions{})

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/hello/world", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "<p>component-with-data hello=world</p>", rec.Body.String())

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, "<p>pages/home </p>", rec.Body.String())

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/", nil))
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}

func TestRouterServesBundlesInDev(t *testing.T) {
	fs := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(fs, "/res/pages/home.vue.client-bundle.js", []byte("client();"), 0o644))
	require.NoError(t, afero.WriteFile(fs, "/res/pages/home.vue", []byte("<template></template>"), 0o644))

	dev := NewRouter(&fakeRenderer{}, nil, RouterOptions{IsDev: true, Fs: fs, Resources: "/res"})

	rec := httptest.NewRecorder()
	dev.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, BundlePrefix+"/pages/home.vue.client-bundle.js", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "client();", rec.Body.String())

	rec = httptest.NewRecorder()
	dev.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, BundlePrefix+"/pages/home.vue", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = httptest.NewRecorder()
	dev.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, BundlePrefix+"/missing.client-bundle.js", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)

	prod := NewRouter(&fakeRenderer{}, nil, RouterOptions{Fs: fs, Resources: "/res"})
	rec = httptest.NewRecorder()
	prod.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, BundlePrefix+"/pages/home.vue.client-bundle.js", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}
