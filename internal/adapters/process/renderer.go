package process

import (
	"bytes"
	"context"
	_ "embed"
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/3-lines-studio/asgard/internal/core"
	"github.com/cespare/xxhash/v2"
)

//go:embed node_renderer.js
var NodeRendererSource string

// Factory runs server bundles in a long-lived Node process, talking
// HTTP/JSON over a unix socket. Each bundle is loaded once under the hash
// of its source.
type Factory struct {
	cmd     *exec.Cmd
	socket  string
	client  *http.Client
	baseURL string

	mu     sync.Mutex
	loaded map[string]bool
}

type Options struct {
	Node    string
	Dir     string
	Timeout time.Duration
}

func NewFactory(opts Options) (*Factory, error) {
	if opts.Node == "" {
		opts.Node = "node"
	}
	if opts.Timeout == 0 {
		opts.Timeout = 5 * time.Second
	}
	if opts.Dir == "" {
		cwd, err := os.Getwd()
		if err != nil {
			return nil, fmt.Errorf("failed to get working directory: %w", err)
		}
		opts.Dir = cwd
	}

	socket := filepath.Join(os.TempDir(), "asgard-"+strconv.Itoa(os.Getpid())+"-"+strconv.FormatInt(time.Now().UnixNano(), 36)+".sock")

	cmd := exec.Command(opts.Node, "-")
	cmd.Dir = opts.Dir
	cmd.Env = append(os.Environ(), "ASGARD_SOCKET="+socket)
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	cmd.Stdin = strings.NewReader(NodeRendererSource)

	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("%w: failed to start %s: %v", core.ErrEngineStart, opts.Node, err)
	}

	if err := waitForSocket(socket, opts.Timeout); err != nil {
		_ = cmd.Process.Kill()
		return nil, err
	}

	transport := &http.Transport{
		DialContext: func(ctx context.Context, network, addr string) (net.Conn, error) {
			var d net.Dialer
			return d.DialContext(ctx, "unix", socket)
		},
	}

	f := newFactory(&http.Client{Transport: transport}, "http://localhost")
	f.cmd = cmd
	f.socket = socket
	return f, nil
}

func newFactory(client *http.Client, baseURL string) *Factory {
	return &Factory{
		client:  client,
		baseURL: baseURL,
		loaded:  make(map[string]bool),
	}
}

// Close stops the Node process.
func (f *Factory) Close() error {
	if f.cmd == nil || f.cmd.Process == nil {
		return nil
	}
	err := f.cmd.Process.Kill()
	_ = f.cmd.Wait()
	_ = os.Remove(f.socket)
	return err
}

func (f *Factory) New(ctx context.Context, bundle core.Bundle) (core.Engine, error) {
	id := strconv.FormatUint(xxhash.Sum64String(bundle.Server), 16)

	f.mu.Lock()
	loaded := f.loaded[id]
	f.mu.Unlock()

	if !loaded {
		var result struct {
			OK    bool          `json:"ok"`
			Error *errorPayload `json:"error"`
		}
		if err := f.postJSON(ctx, "/load", map[string]any{"id": id, "source": bundle.Server}, &result); err != nil {
			return nil, fmt.Errorf("%w: %v", core.ErrEngineStart, err)
		}
		if result.Error != nil {
			return nil, fmt.Errorf("%w: %s", core.ErrEngineStart, result.Error.flatten())
		}

		f.mu.Lock()
		f.loaded[id] = true
		f.mu.Unlock()
	}

	return &Engine{id: id, factory: f}, nil
}

type Engine struct {
	id      string
	factory *Factory
}

func (e *Engine) Render(ctx context.Context, rc *core.RenderContext) (string, error) {
	reqBody := map[string]any{
		"id":      e.id,
		"context": rc,
	}

	var result struct {
		HTML    string              `json:"html"`
		Context *core.RenderContext `json:"context"`
		Error   *errorPayload       `json:"error"`
	}

	if err := e.factory.postJSON(ctx, "/render", reqBody, &result); err != nil {
		return "", err
	}
	if result.Error != nil {
		return "", fmt.Errorf("%w: %s", core.ErrRenderFailed, result.Error.flatten())
	}
	if result.Context != nil {
		*rc = *result.Context
	}

	return result.HTML, nil
}

type errorPayload struct {
	Message string `json:"message"`
	Stack   string `json:"stack"`
	Errors  []struct {
		Message string `json:"message"`
		Stack   string `json:"stack"`
	} `json:"errors"`
}

func (p *errorPayload) flatten() string {
	var sb strings.Builder
	sb.WriteString(p.Message)

	if len(p.Errors) > 0 {
		sb.WriteString("\n\nErrors:")
		for i, err := range p.Errors {
			fmt.Fprintf(&sb, "\n  %d. %s", i+1, err.Message)
			if err.Stack != "" {
				fmt.Fprintf(&sb, "\n     Stack: %s", err.Stack)
			}
		}
	}

	if p.Stack != "" {
		fmt.Fprintf(&sb, "\n\nStack:\n%s", p.Stack)
	}

	return sb.String()
}

func (f *Factory) postJSON(ctx context.Context, endpoint string, body any, result any) error {
	jsonBody, err := json.Marshal(body)
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, f.baseURL+endpoint, bytes.NewReader(jsonBody))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := f.client.Do(req)
	if err != nil {
		return err
	}
	defer func() { _ = resp.Body.Close() }()

	return json.NewDecoder(resp.Body).Decode(result)
}

func waitForSocket(path string, timeout time.Duration) error {
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if _, err := os.Stat(path); err == nil {
			return nil
		}
		time.Sleep(10 * time.Millisecond)
	}
	return fmt.Errorf("%w: timeout waiting for node socket at %s", core.ErrEngineStart, path)
}
