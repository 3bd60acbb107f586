package http

import (
	"bytes"
	"context"
	"errors"
	"html"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/3-lines-studio/asgard/internal/core"
	"github.com/cespare/xxhash/v2"
	"github.com/go-chi/chi/v5"
)

type Renderer interface {
	Render(ctx context.Context, viewPath string, rc *core.RenderContext) (string, error)
}

// DataFunc supplies the view data for a request.
type DataFunc func(*http.Request) (map[string]any, error)

type ViewHandler struct {
	renderer Renderer
	view     string
	data     DataFunc
	isDev    bool
	logger   *slog.Logger
}

// NewViewHandler renders view for every request. Without a DataFunc the
// chi URL parameters become the view data.
func NewViewHandler(renderer Renderer, view string, data DataFunc, isDev bool, logger *slog.Logger) http.Handler {
	if data == nil {
		data = URLParams
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &ViewHandler{
		renderer: renderer,
		view:     view,
		data:     data,
		isDev:    isDev,
		logger:   logger,
	}
}

func (h *ViewHandler) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	data, err := h.data(req)
	if err != nil {
		h.serveError(w, req, err)
		return
	}

	doc, err := h.renderer.Render(req.Context(), h.view, core.NewRenderContext(data))
	if err != nil {
		h.serveError(w, req, err)
		return
	}

	etag := `"` + strconv.FormatUint(xxhash.Sum64String(doc), 36) + `"`
	w.Header().Set("ETag", etag)
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if match := req.Header.Get("If-None-Match"); match == etag {
		w.WriteHeader(http.StatusNotModified)
		return
	}

	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(doc))
}

func (h *ViewHandler) serveError(w http.ResponseWriter, req *http.Request, err error) {
	status := http.StatusInternalServerError
	if errors.Is(err, core.ErrViewNotFound) || errors.Is(err, core.ErrInvalidViewPath) {
		status = http.StatusNotFound
	}
	if errors.Is(err, context.Canceled) {
		h.logger.Debug("request cancelled", "view", h.view, "path", req.URL.Path)
		return
	}
	h.logger.Error("view request failed", "view", h.view, "path", req.URL.Path, "error", err)

	data := core.ErrorData{
		Message: err.Error(),
		IsDev:   h.isDev,
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")

	var buf bytes.Buffer
	if err := core.ErrorTemplate.Execute(&buf, data); err != nil {
		w.WriteHeader(status)
		_, _ = w.Write([]byte("<!doctype html><html><body><pre>" + html.EscapeString(data.Message) + "</pre></body></html>"))
		return
	}

	w.WriteHeader(status)
	_, _ = w.Write(buf.Bytes())
}

// URLParams exposes the route parameters of req as view data.
func URLParams(req *http.Request) (map[string]any, error) {
	data := map[string]any{}
	rctx := chi.RouteContext(req.Context())
	if rctx == nil {
		return data, nil
	}
	for i, key := range rctx.URLParams.Keys {
		if key == "*" {
			continue
		}
		data[key] = rctx.URLParams.Values[i]
	}
	return data, nil
}
