package core

import (
	"encoding/json"
	"fmt"
	"maps"
)

const (
	StateWindowKey     = "__INITIAL_STATE__"
	RootStateWindowKey = "__INITIAL_ROOTSTATE__"
)

// RenderContext is the per-render context handed to the server bundle.
// The engine reads Data and the extra Values, and writes the merged data,
// the root shared state, head markup and collected styles back into it.
type RenderContext struct {
	Data     map[string]any
	State    map[string]any
	Head     string
	HTMLAttr string
	Styles   string
	Values   map[string]any
}

func NewRenderContext(data map[string]any) *RenderContext {
	return &RenderContext{Data: data}
}

var reservedKeys = map[string]struct{}{
	"data": {}, "state": {}, "head": {}, "htmlattr": {}, "styles": {},
}

func (rc *RenderContext) MarshalJSON() ([]byte, error) {
	out := make(map[string]any, len(rc.Values)+5)
	for k, v := range rc.Values {
		if _, reserved := reservedKeys[k]; !reserved {
			out[k] = v
		}
	}
	if rc.Data != nil {
		out["data"] = rc.Data
	}
	if rc.State != nil {
		out["state"] = rc.State
	}
	if rc.Head != "" {
		out["head"] = rc.Head
	}
	if rc.HTMLAttr != "" {
		out["htmlattr"] = rc.HTMLAttr
	}
	if rc.Styles != "" {
		out["styles"] = rc.Styles
	}
	return json.Marshal(out)
}

func (rc *RenderContext) UnmarshalJSON(b []byte) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(b, &raw); err != nil {
		return err
	}

	var next RenderContext
	for k, v := range raw {
		var err error
		switch k {
		case "data":
			err = json.Unmarshal(v, &next.Data)
		case "state":
			err = json.Unmarshal(v, &next.State)
		case "head":
			err = unmarshalString(v, &next.Head)
		case "htmlattr":
			err = unmarshalString(v, &next.HTMLAttr)
		case "styles":
			err = unmarshalString(v, &next.Styles)
		default:
			if next.Values == nil {
				next.Values = make(map[string]any)
			}
			var value any
			err = json.Unmarshal(v, &value)
			next.Values[k] = value
		}
		if err != nil {
			return fmt.Errorf("context key %q: %w", k, err)
		}
	}

	*rc = next
	return nil
}

// unmarshalString accepts null and non-string values, which scripts are
// free to leave behind.
func unmarshalString(raw json.RawMessage, dst *string) error {
	var v any
	if err := json.Unmarshal(raw, &v); err != nil {
		return err
	}
	switch s := v.(type) {
	case nil:
		*dst = ""
	case string:
		*dst = s
	default:
		*dst = fmt.Sprint(s)
	}
	return nil
}

func (rc *RenderContext) Clone() *RenderContext {
	if rc == nil {
		return &RenderContext{}
	}
	return &RenderContext{
		Data:     maps.Clone(rc.Data),
		State:    maps.Clone(rc.State),
		Head:     rc.Head,
		HTMLAttr: rc.HTMLAttr,
		Styles:   rc.Styles,
		Values:   maps.Clone(rc.Values),
	}
}

// RenderResourceHints returns preload links for the document head. The
// client bundle is inlined, so there is nothing to preload.
func (rc *RenderContext) RenderResourceHints() string {
	return ""
}

func (rc *RenderContext) RenderStyles() string {
	return rc.Styles
}

type StateOptions struct {
	WindowKey  string
	ContextKey string
}

// RenderState serializes one context value into a script tag assigning it
// to a window global. Output is safe to embed inside <script>.
func (rc *RenderContext) RenderState(opts StateOptions) (string, error) {
	if opts.WindowKey == "" {
		opts.WindowKey = StateWindowKey
	}
	if opts.ContextKey == "" {
		opts.ContextKey = "data"
	}

	var value any
	switch opts.ContextKey {
	case "data":
		if rc.Data == nil {
			return "", nil
		}
		value = rc.Data
	case "state":
		if rc.State == nil {
			return "", nil
		}
		value = rc.State
	default:
		v, ok := rc.Values[opts.ContextKey]
		if !ok {
			return "", nil
		}
		value = v
	}

	serialized, err := SerializeState(value)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("<script>window.%s=%s</script>", opts.WindowKey, serialized), nil
}

// SerializeState encodes v as JSON with <, >, &, U+2028 and U+2029
// escaped by encoding/json and "/" escaped on top.
func SerializeState(v any) (string, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return "", err
	}
	out := make([]byte, 0, len(b))
	for _, c := range b {
		if c == '/' {
			out = append(out, '\\', 'u', '0', '0', '2', 'f')
			continue
		}
		out = append(out, c)
	}
	return string(out), nil
}
