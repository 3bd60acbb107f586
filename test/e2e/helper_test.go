package e2e

import (
	"io"
	"log/slog"
	"net/http/httptest"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"testing"

	"github.com/3-lines-studio/asgard"
	"github.com/stretchr/testify/require"
)

var exampleDir string

func init() {
	_, filename, _, _ := runtime.Caller(0)
	exampleDir, _ = filepath.Abs(filepath.Join(filepath.Dir(filename), "..", "..", "example"))
}

func skipIfNoModules(t *testing.T) {
	t.Helper()
	for _, pkg := range []string{"vue", "vue-server-renderer"} {
		if _, err := os.Stat(filepath.Join(exampleDir, "node_modules", pkg, "package.json")); err != nil {
			t.Skipf("%s not installed in example/node_modules, skipping E2E test", pkg)
		}
	}
}

func skipIfNoNode(t *testing.T) {
	t.Helper()
	if _, err := exec.LookPath("node"); err != nil {
		t.Skip("node not available, skipping E2E test")
	}
}

func newRenderer(t *testing.T, engine string, opts ...asgard.Option) *asgard.Renderer {
	t.Helper()
	skipIfNoModules(t)
	if engine == asgard.EngineNode {
		skipIfNoNode(t)
	}

	r, err := asgard.New(append([]asgard.Option{
		asgard.WithResources(filepath.Join(exampleDir, "views")),
		asgard.WithNodeModules(filepath.Join(exampleDir, "node_modules")),
		asgard.WithEngine(engine),
		asgard.WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))),
	}, opts...)...)
	require.NoError(t, err)
	t.Cleanup(func() { _ = r.Stop() })
	return r
}

func get(t *testing.T, srv *httptest.Server, path string) (int, string) {
	t.Helper()

	resp, err := srv.Client().Get(srv.URL + path)
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp.StatusCode, string(body)
}

func forEachEngine(t *testing.T, fn func(t *testing.T, engine string)) {
	for _, engine := range []string{asgard.EngineGoja, asgard.EngineNode} {
		t.Run(engine, func(t *testing.T) { fn(t, engine) })
	}
}
