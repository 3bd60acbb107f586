package asgard

import (
	httpadapter "github.com/3-lines-studio/asgard/internal/adapters/http"
	"github.com/3-lines-studio/asgard/internal/core"
	"github.com/3-lines-studio/asgard/internal/usecase"
)

type Mode = core.Mode

const (
	ModeDevelopment = core.ModeDevelopment
	ModeProduction  = core.ModeProduction
)

type (
	RenderContext = core.RenderContext
	StateOptions  = core.StateOptions
	BuildConfig   = core.BuildConfig
	Rule          = core.Rule
	Bundle        = core.Bundle
	TemplateFunc  = core.TemplateFunc
	Bundler       = core.Bundler
	BuildResult   = core.BuildResult
	Engine        = core.Engine
	EngineFactory = core.EngineFactory

	View     = usecase.View
	ViewInfo = usecase.ViewInfo

	Route    = httpadapter.Route
	DataFunc = httpadapter.DataFunc
)

var (
	ErrInvalidViewPath = core.ErrInvalidViewPath
	ErrViewNotFound    = core.ErrViewNotFound
	ErrNoViews         = core.ErrNoViews
	ErrInvalidConfig   = core.ErrInvalidConfig
	ErrBuildFailed     = core.ErrBuildFailed
	ErrBundleMissing   = core.ErrBundleMissing
	ErrRenderFailed    = core.ErrRenderFailed
	ErrRenderPending   = core.ErrRenderPending
	ErrEngineStart     = core.ErrEngineStart
)

// NewRenderContext returns a context carrying data for the view.
func NewRenderContext(data map[string]any) *RenderContext {
	return core.NewRenderContext(data)
}

// DefaultTemplate is the document template used unless WithTemplate is set.
func DefaultTemplate(content string, rc *RenderContext, bundle Bundle) (string, error) {
	return core.DefaultTemplate(content, rc, bundle)
}

// Page binds pattern to view for Handler. data is optional.
func Page(pattern, view string, data ...DataFunc) Route {
	route := Route{Pattern: pattern, View: view}
	if len(data) > 0 {
		route.Data = data[0]
	}
	return route
}
