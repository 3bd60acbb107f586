package usecase

import (
	"context"
	"time"

	"github.com/3-lines-studio/asgard/internal/core"
	"github.com/3-lines-studio/asgard/internal/telemetry"
	"go.trai.ch/zerr"
)

// View is the cached renderer for one view. It is immutable once built and
// safe for concurrent use.
type View struct {
	Key string

	engine   core.Engine
	template core.TemplateFunc
	client   string
	minify   bool
	metrics  *telemetry.Metrics

	serverBytes int
	buildTime   time.Duration
	builtAt     time.Time
}

type ViewInfo struct {
	Key         string
	ServerBytes int
	ClientBytes int
	BuildTime   time.Duration
	BuiltAt     time.Time
}

func (v *View) Info() ViewInfo {
	return ViewInfo{
		Key:         v.Key,
		ServerBytes: v.serverBytes,
		ClientBytes: len(v.client),
		BuildTime:   v.buildTime,
		BuiltAt:     v.builtAt,
	}
}

// Render produces the complete document. rc is updated in place with the
// merged data, shared state, head and styles the view produced. A nil rc
// renders with an empty context.
func (v *View) Render(ctx context.Context, rc *core.RenderContext) (string, error) {
	start := time.Now()
	doc, err := v.render(ctx, rc)

	status := telemetry.StatusOK
	if err != nil {
		status = telemetry.StatusError
	}
	v.metrics.Render(status, time.Since(start))

	return doc, err
}

func (v *View) render(ctx context.Context, rc *core.RenderContext) (string, error) {
	if rc == nil {
		rc = &core.RenderContext{}
	}

	content, err := v.engine.Render(ctx, rc)
	if err != nil {
		return "", core.WithView(err, v.Key)
	}

	doc, err := v.template(content, rc, core.Bundle{Client: v.client})
	if err != nil {
		return "", core.WithView(zerr.Wrap(err, "template failed"), v.Key)
	}

	if v.minify {
		if doc, err = core.MinifyDocument(doc); err != nil {
			return "", core.WithView(zerr.Wrap(err, "minify failed"), v.Key)
		}
	}

	return doc, nil
}
