package core

import (
	"errors"
	"html/template"

	"go.trai.ch/zerr"
)

var (
	ErrInvalidViewPath = zerr.New("invalid view path")
	ErrViewNotFound    = zerr.New("view not found")
	ErrNoViews         = zerr.New("no views found")
	ErrInvalidConfig   = zerr.New("invalid build config")
	ErrBuildFailed     = zerr.New("build failed")
	ErrBundleMissing   = zerr.New("bundle missing after build")
	ErrRenderFailed    = zerr.New("render failed")
	ErrRenderPending   = zerr.New("render did not settle")
	ErrEngineStart     = zerr.New("render engine failed to start")
)

// WithView attaches the view key to err while keeping errors.Is working
// against the sentinel err wraps.
func WithView(err error, view string) error {
	return zerr.With(zerr.Wrap(err, ""), "view", view)
}

// ViewOf returns the view key attached to err, or "" when none is.
func ViewOf(err error) string {
	var ze *zerr.Error
	for err != nil && errors.As(err, &ze) {
		if view, ok := ze.Metadata()["view"].(string); ok {
			return view
		}
		err = ze.Unwrap()
	}
	return ""
}

func withView(sentinel error, view, message string) error {
	return zerr.With(zerr.Wrap(sentinel, message), "view", view)
}

type ErrorData struct {
	Message string
	IsDev   bool
}

var ErrorTemplate = template.Must(template.New("error").Parse(`<!doctype html>
<html lang="en">
<head>
    <meta charset="UTF-8">
    <meta name="viewport" content="width=device-width, initial-scale=1.0">
    <title>Render error</title>
    <style>
        body { font-family: system-ui, sans-serif; max-width: 800px; margin: 50px auto; padding: 0 20px; }
        h1 { color: #e74c3c; }
        pre { background: #f8f9fa; padding: 15px; border-radius: 5px; overflow-x: auto; white-space: pre-wrap; }
    </style>
</head>
<body>
    <h1>Render error</h1>
    {{if .IsDev}}
    <pre>{{.Message}}</pre>
    {{else}}
    <p>The page could not be rendered.</p>
    {{end}}
</body>
</html>`))
