package esbuild

import (
	"encoding/json"
	"fmt"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/cespare/xxhash/v2"
)

const runtimeImport = "asgard-runtime.js"

var (
	templateBlock = regexp.MustCompile(`(?s)<template(?:\s[^>]*)?>(.*)</template>`)
	scriptBlock   = regexp.MustCompile(`(?s)<script(?:\s[^>]*)?>(.*?)</script>`)
	styleBlock    = regexp.MustCompile(`(?s)<style(?:\s[^>]*)?>(.*?)</style>`)
	exportDefault = regexp.MustCompile(`(?m)^\s*export\s+default\s+`)
)

// compileSFC turns a single-file component into an ES module exporting
// the component options with its template attached as a string. Styles
// are registered with the runtime so the server can collect them.
//
// The script is not parsed: the last line starting with "export default"
// is taken as the component export, so an "export default" line inside a
// comment or string after the real export is misread.
func compileSFC(path, src string) (string, error) {
	var script string
	if m := scriptBlock.FindStringSubmatch(src); m != nil {
		script = m[1]
	}

	var styles []string
	for _, m := range styleBlock.FindAllStringSubmatch(src, -1) {
		if css := strings.TrimSpace(m[1]); css != "" {
			styles = append(styles, css)
		}
	}

	rest := styleBlock.ReplaceAllString(scriptBlock.ReplaceAllString(src, ""), "")
	var template string
	if m := templateBlock.FindStringSubmatch(rest); m != nil {
		template = strings.TrimSpace(m[1])
	}

	var b strings.Builder

	if strings.TrimSpace(script) == "" {
		b.WriteString("var __sfc__ = {};\n")
	} else {
		matches := exportDefault.FindAllStringIndex(script, -1)
		if len(matches) == 0 {
			return "", fmt.Errorf("%s: component script has no default export", path)
		}
		loc := matches[len(matches)-1]
		b.WriteString(script[:loc[0]])
		b.WriteString("\nvar __sfc__ = ")
		b.WriteString(script[loc[1]:])
		b.WriteString("\n")
	}

	if template != "" {
		fmt.Fprintf(&b, "__sfc__.template = %s;\n", jsString(template))
	}

	if len(styles) > 0 {
		fmt.Fprintf(&b, "import { registerStyle as __asgard_registerStyle } from %s;\n", jsString(runtimeImport))
		fmt.Fprintf(&b, "__asgard_registerStyle(%s, %s);\n", jsString(styleID(path)), jsString(strings.Join(styles, "\n")))
	}

	b.WriteString("export default __sfc__;\n")
	return b.String(), nil
}

// styleModule wraps a plain stylesheet so importing it registers the CSS.
func styleModule(path, css string) string {
	return fmt.Sprintf("import { registerStyle } from %s;\nregisterStyle(%s, %s);\n",
		jsString(runtimeImport), jsString(styleID(path)), jsString(css))
}

func styleID(path string) string {
	return fmt.Sprintf("%s-%08x", strings.TrimSuffix(filepath.Base(path), filepath.Ext(path)), uint32(xxhash.Sum64String(filepath.ToSlash(path))))
}

// jsString quotes s as a JavaScript string literal. Markup is left
// unescaped so templates stay readable in development bundles.
func jsString(s string) string {
	var b strings.Builder
	enc := json.NewEncoder(&b)
	enc.SetEscapeHTML(false)
	_ = enc.Encode(s)
	return strings.TrimSuffix(b.String(), "\n")
}
