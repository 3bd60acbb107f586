package usecase

import (
	"context"
	"encoding/json"
	"fmt"
	"maps"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/3-lines-studio/asgard/internal/core"
	"github.com/spf13/afero"
)

// fakeBundler "bundles" a view by copying its source into both outputs.
// Views are JSON documents understood by fakeEngine.
type fakeBundler struct {
	calls atomic.Int32
	delay time.Duration
	fail  map[string]error
	mu    sync.Mutex
}

func (b *fakeBundler) Build(ctx context.Context, fsys afero.Fs, configs []core.BuildConfig) ([]core.BuildResult, error) {
	b.calls.Add(1)
	if b.delay > 0 {
		time.Sleep(b.delay)
	}

	results := make([]core.BuildResult, 0, len(configs))
	for _, cfg := range configs {
		entry, err := afero.ReadFile(fsys, cfg.Entry)
		if err != nil {
			return nil, err
		}
		viewFile, err := importedView(string(entry))
		if err != nil {
			return nil, err
		}

		b.mu.Lock()
		failure := b.fail[viewFile]
		b.mu.Unlock()
		if failure != nil {
			results = append(results, core.BuildResult{Target: cfg.Target, Errors: []error{failure}})
			continue
		}

		src, err := afero.ReadFile(fsys, viewFile)
		if err != nil {
			results = append(results, core.BuildResult{Target: cfg.Target, Errors: []error{err}})
			continue
		}
		out := string(src)
		if cfg.Target == core.TargetClient {
			out = "/*client*/" + out
		}
		if err := afero.WriteFile(fsys, cfg.OutputPath(), []byte(out), 0o644); err != nil {
			return nil, err
		}
		results = append(results, core.BuildResult{Target: cfg.Target, Output: cfg.OutputPath()})
	}
	return results, nil
}

func (b *fakeBundler) setFailure(viewFile string, err error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.fail == nil {
		b.fail = make(map[string]error)
	}
	if err == nil {
		delete(b.fail, viewFile)
		return
	}
	b.fail[viewFile] = err
}

func importedView(entry string) (string, error) {
	const marker = "import App from "
	i := strings.Index(entry, marker)
	if i < 0 {
		return "", fmt.Errorf("entry imports no view")
	}
	rest := entry[i+len(marker):]
	rest = rest[:strings.Index(rest, ";")]
	var file string
	err := json.Unmarshal([]byte(rest), &file)
	return file, err
}

type fakeView struct {
	Data     map[string]any `json:"data"`
	Template string         `json:"template"`
	Head     string         `json:"head"`
}

type fakeFactory struct {
	calls atomic.Int32
}

func (f *fakeFactory) New(ctx context.Context, bundle core.Bundle) (core.Engine, error) {
	f.calls.Add(1)
	var v fakeView
	if err := json.Unmarshal([]byte(bundle.Server), &v); err != nil {
		return nil, fmt.Errorf("%w: %v", core.ErrEngineStart, err)
	}
	return &fakeEngine{view: v}, nil
}

// fakeEngine mirrors the server entry contract: defaults merged with the
// request data, merged data written back, content interpolated.
type fakeEngine struct {
	view fakeView
}

func (e *fakeEngine) Render(ctx context.Context, rc *core.RenderContext) (string, error) {
	data := maps.Clone(e.view.Data)
	if data == nil {
		data = map[string]any{}
	}
	maps.Copy(data, rc.Data)

	rc.Data = data
	rc.State = map[string]any{}
	rc.Head += e.view.Head

	out := e.view.Template
	for k, v := range data {
		out = strings.ReplaceAll(out, "{{"+k+"}}", fmt.Sprint(v))
	}
	return `<div id="app">` + out + `</div>`, nil
}
