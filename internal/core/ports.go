package core

//go:generate mockgen -source=ports.go -destination=mocks/mock_ports.go -package=mocks

import (
	"context"
	"fmt"

	"github.com/spf13/afero"
)

// Bundle is the pair of bundle sources produced for one view.
type Bundle struct {
	Server string
	Client string
}

type BuildMessage struct {
	Text     string
	File     string
	Line     int
	Column   int
	LineText string
}

func (m BuildMessage) Error() string {
	if m.File == "" {
		return m.Text
	}
	return fmt.Sprintf("%s:%d:%d: %s", m.File, m.Line, m.Column, m.Text)
}

// BuildResult reports the outcome of one target. Errors is empty on success.
type BuildResult struct {
	Target   Target
	Output   string
	Errors   []error
	Warnings []string
}

// Bundler turns composed build configs into bundle files. It must read
// sources from and write outputs to fsys only.
type Bundler interface {
	Build(ctx context.Context, fsys afero.Fs, configs []BuildConfig) ([]BuildResult, error)
}

// Engine renders the content markup for a render context. Implementations
// write data, state, head and styles back into rc.
type Engine interface {
	Render(ctx context.Context, rc *RenderContext) (string, error)
}

type EngineFactory interface {
	New(ctx context.Context, bundle Bundle) (Engine, error)
}
