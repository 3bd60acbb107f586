package goja

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"github.com/3-lines-studio/asgard/internal/core"
	"github.com/dop251/goja"
)

const bundleWrapper = "(function (module, exports, require, process) {\n%s\n})"

// Factory builds engines that evaluate server bundles in goja.
type Factory struct{}

func NewFactory() *Factory {
	return &Factory{}
}

// New compiles the server bundle once and evaluates it in a first runtime,
// so load-time errors surface here instead of on the first render.
func (f *Factory) New(ctx context.Context, bundle core.Bundle) (core.Engine, error) {
	prg, err := goja.Compile("server-bundle.js", fmt.Sprintf(bundleWrapper, bundle.Server), false)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", core.ErrEngineStart, err)
	}

	e := &Engine{program: prg}
	rt, err := e.newRuntime()
	if err != nil {
		return nil, err
	}
	e.pool.Put(rt)

	return e, nil
}

// Engine renders with a pool of runtimes. A runtime serves one render at a
// time; request data never outlives the render that carried it.
type Engine struct {
	program *goja.Program
	pool    sync.Pool
}

type runtime struct {
	vm        *goja.Runtime
	factory   goja.Callable
	render    goja.Callable
	parse     goja.Callable
	stringify goja.Callable
}

func (e *Engine) newRuntime() (*runtime, error) {
	vm := goja.New()

	process := vm.NewObject()
	_ = process.Set("env", vm.NewObject())
	_ = vm.Set("process", process)

	require := func(call goja.FunctionCall) goja.Value {
		panic(vm.NewTypeError("require(%s) is not available in the render engine", call.Argument(0).String()))
	}

	wrapper, err := vm.RunProgram(e.program)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", core.ErrEngineStart, err)
	}
	load, ok := goja.AssertFunction(wrapper)
	if !ok {
		return nil, fmt.Errorf("%w: bundle wrapper is not a function", core.ErrEngineStart)
	}

	module := vm.NewObject()
	exports := vm.NewObject()
	_ = module.Set("exports", exports)

	if _, err := load(goja.Undefined(), module, exports, vm.ToValue(require), process); err != nil {
		return nil, fmt.Errorf("%w: %v", core.ErrEngineStart, err)
	}

	exported := module.Get("exports").ToObject(vm)
	factory, ok := goja.AssertFunction(exported.Get("default"))
	if !ok {
		return nil, fmt.Errorf("%w: bundle has no default export factory", core.ErrEngineStart)
	}
	render, ok := goja.AssertFunction(exported.Get("render"))
	if !ok {
		return nil, fmt.Errorf("%w: bundle has no render export", core.ErrEngineStart)
	}

	jsonObj := vm.Get("JSON").ToObject(vm)
	parse, _ := goja.AssertFunction(jsonObj.Get("parse"))
	stringify, _ := goja.AssertFunction(jsonObj.Get("stringify"))

	return &runtime{vm: vm, factory: factory, render: render, parse: parse, stringify: stringify}, nil
}

func (e *Engine) acquire() (*runtime, error) {
	if rt, ok := e.pool.Get().(*runtime); ok {
		return rt, nil
	}
	return e.newRuntime()
}

// Render runs the bundle's factory and render exports against a JSON copy
// of rc, then copies the context the bundle left behind back into rc.
func (e *Engine) Render(ctx context.Context, rc *core.RenderContext) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	rt, err := e.acquire()
	if err != nil {
		return "", err
	}

	html, err := rt.run(ctx, rc)
	var interrupted *goja.InterruptedError
	if errors.As(err, &interrupted) {
		// the runtime stopped mid-render; drop it rather than reuse it
		return "", ctx.Err()
	}
	e.pool.Put(rt)
	return html, err
}

func (rt *runtime) run(ctx context.Context, rc *core.RenderContext) (string, error) {
	if ctx.Done() != nil {
		done := make(chan struct{})
		var wg sync.WaitGroup
		wg.Add(1)
		go func() {
			defer wg.Done()
			select {
			case <-ctx.Done():
				rt.vm.Interrupt(ctx.Err())
			case <-done:
			}
		}()
		defer func() {
			close(done)
			wg.Wait()
			rt.vm.ClearInterrupt()
		}()
	}

	payload, err := json.Marshal(rc)
	if err != nil {
		return "", fmt.Errorf("encode render context: %w", err)
	}
	ssrContext, err := rt.parse(goja.Undefined(), rt.vm.ToValue(string(payload)))
	if err != nil {
		return "", err
	}

	appValue, err := rt.factory(goja.Undefined(), ssrContext)
	if err != nil {
		return "", renderError(err)
	}
	app, err := settle(appValue)
	if err != nil {
		return "", err
	}

	var (
		html    string
		failure error
		done    bool
	)
	callback := rt.vm.ToValue(func(call goja.FunctionCall) goja.Value {
		done = true
		if reason := call.Argument(0); !goja.IsUndefined(reason) && !goja.IsNull(reason) {
			failure = fmt.Errorf("%w: %s", core.ErrRenderFailed, describe(reason))
			return goja.Undefined()
		}
		html = call.Argument(1).String()
		return goja.Undefined()
	})

	if _, err := rt.render(goja.Undefined(), app, ssrContext, callback); err != nil {
		return "", renderError(err)
	}
	if !done {
		return "", core.ErrRenderPending
	}
	if failure != nil {
		return "", failure
	}

	out, err := rt.stringify(goja.Undefined(), ssrContext)
	if err != nil {
		return "", renderError(err)
	}
	if err := json.Unmarshal([]byte(out.String()), rc); err != nil {
		return "", fmt.Errorf("decode render context: %w", err)
	}

	return html, nil
}

// settle unwraps a promise that has already settled. Bundles run without
// an event loop, so a pending promise can never resolve.
func settle(v goja.Value) (goja.Value, error) {
	p, ok := v.Export().(*goja.Promise)
	if !ok {
		return v, nil
	}
	switch p.State() {
	case goja.PromiseStateFulfilled:
		return p.Result(), nil
	case goja.PromiseStateRejected:
		return nil, fmt.Errorf("%w: %s", core.ErrRenderFailed, describe(p.Result()))
	}
	return nil, core.ErrRenderPending
}

func renderError(err error) error {
	var interrupted *goja.InterruptedError
	if errors.As(err, &interrupted) {
		return err
	}
	var exception *goja.Exception
	if errors.As(err, &exception) {
		return fmt.Errorf("%w: %s", core.ErrRenderFailed, exception.String())
	}
	return fmt.Errorf("%w: %v", core.ErrRenderFailed, err)
}

func describe(v goja.Value) string {
	if obj, ok := v.(*goja.Object); ok {
		if stack := obj.Get("stack"); stack != nil && !goja.IsUndefined(stack) {
			return stack.String()
		}
	}
	return v.String()
}
