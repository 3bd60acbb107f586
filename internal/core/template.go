package core

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/tdewolff/minify/v2"
	"github.com/tdewolff/minify/v2/css"
	"github.com/tdewolff/minify/v2/html"
)

// TemplateFunc assembles the final document from the rendered content,
// the render context after rendering and the view's bundle.
type TemplateFunc func(content string, rc *RenderContext, bundle Bundle) (string, error)

const defaultDocument = `<!DOCTYPE html>
<html%s>
  <head>
    %s
    %s
    %s
    %s
    %s
  </head>
  <body>
    %s
    <script>%s</script>
  </body>
</html>
`

func DefaultTemplate(content string, rc *RenderContext, bundle Bundle) (string, error) {
	if rc == nil {
		rc = &RenderContext{}
	}

	htmlAttr := ""
	if rc.HTMLAttr != "" {
		htmlAttr = " " + rc.HTMLAttr
	}

	data, err := rc.RenderState(StateOptions{WindowKey: StateWindowKey, ContextKey: "data"})
	if err != nil {
		return "", fmt.Errorf("serialize data: %w", err)
	}
	state, err := rc.RenderState(StateOptions{WindowKey: RootStateWindowKey, ContextKey: "state"})
	if err != nil {
		return "", fmt.Errorf("serialize state: %w", err)
	}

	client := escapeScript(bundle.Client)

	return fmt.Sprintf(defaultDocument,
		htmlAttr,
		rc.Head,
		rc.RenderResourceHints(),
		rc.RenderStyles(),
		data,
		state,
		content,
		client,
	), nil
}

var scriptClose = regexp.MustCompile(`(?i)</script`)

// escapeScript keeps inline code from closing its own script element.
func escapeScript(src string) string {
	return scriptClose.ReplaceAllStringFunc(src, func(m string) string {
		return `<\/` + m[2:]
	})
}

var documentMinifier = newDocumentMinifier()

func newDocumentMinifier() *minify.M {
	m := minify.New()
	m.AddFunc("text/css", css.Minify)
	m.Add("text/html", &html.Minifier{
		KeepDocumentTags:    true,
		KeepEndTags:         true,
		KeepQuotes:          true,
		KeepDefaultAttrVals: true,
		KeepWhitespace:      true,
	})
	return m
}

// MinifyDocument minifies markup and inline styles. Scripts are left as the
// bundler emitted them.
func MinifyDocument(doc string) (string, error) {
	return documentMinifier.String("text/html", doc)
}
