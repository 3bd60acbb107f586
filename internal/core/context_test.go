package core

import (
	"encoding/json"
	"strings"
	"testing"
)

func TestRenderContextJSONRoundTrip(t *testing.T) {
	rc := &RenderContext{
		Data:     map[string]any{"hello": "world"},
		HTMLAttr: `lang="de"`,
		Values:   map[string]any{"url": "/home", "data": "ignored"},
	}

	b, err := json.Marshal(rc)
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}

	var raw map[string]any
	if err := json.Unmarshal(b, &raw); err != nil {
		t.Fatalf("Unmarshal raw: %v", err)
	}
	if raw["url"] != "/home" {
		t.Errorf("extra value not flattened: %v", raw)
	}
	if _, ok := raw["state"]; ok {
		t.Errorf("nil state serialized: %v", raw)
	}

	// what an engine hands back after rendering
	back := []byte(`{"data":{"hello":"mars","n":1},"state":{"user":"x"},"head":"<title>x</title>","htmlattr":"lang=\"de\"","styles":null,"url":"/home"}`)

	var got RenderContext
	if err := json.Unmarshal(back, &got); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	if got.Data["hello"] != "mars" || got.State["user"] != "x" {
		t.Errorf("data/state = %v / %v", got.Data, got.State)
	}
	if got.Head != "<title>x</title>" || got.Styles != "" || got.HTMLAttr != `lang="de"` {
		t.Errorf("strings = %q %q %q", got.Head, got.Styles, got.HTMLAttr)
	}
	if got.Values["url"] != "/home" {
		t.Errorf("values = %v", got.Values)
	}
}

func TestRenderState(t *testing.T) {
	rc := &RenderContext{Data: map[string]any{"s": "</script>\u2028"}}

	out, err := rc.RenderState(StateOptions{})
	if err != nil {
		t.Fatalf("RenderState: %v", err)
	}
	if !strings.HasPrefix(out, "<script>window.__INITIAL_STATE__=") {
		t.Errorf("unexpected prefix: %s", out)
	}
	for _, bad := range []string{"</script>", "</", "\u2028"} {
		if strings.Contains(strings.TrimSuffix(out, "</script>"), bad) {
			t.Errorf("state contains unescaped %q: %s", bad, out)
		}
	}

	empty, err := rc.RenderState(StateOptions{WindowKey: RootStateWindowKey, ContextKey: "state"})
	if err != nil || empty != "" {
		t.Errorf("absent state = %q, %v; want empty", empty, err)
	}
}

func TestCloneDoesNotShareMaps(t *testing.T) {
	rc := &RenderContext{Data: map[string]any{"a": 1}}
	c := rc.Clone()
	c.Data["a"] = 2
	if rc.Data["a"] != 1 {
		t.Error("Clone shares the data map")
	}
}
