package env

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/layer-3/walletsso/core"
)

// Func is a method on a static host object. It returns a JSON-like value,
// a map[string]any (which may hold further Funcs), or an error.
type Func func(ctx context.Context, args ...any) (any, error)

// Static is an Environment built from plain Go values. It backs headless
// hosts and tests: maps are objects, Funcs are methods, []byte are typed arrays.
type Static struct {
	globals map[string]any

	mu        sync.Mutex
	listeners map[int]func(core.Announcement)
	nextID    int
	announced []core.Announcement
}

// NewStatic creates an environment exposing globals
func NewStatic(globals map[string]any) *Static {
	if globals == nil {
		globals = map[string]any{}
	}
	return &Static{
		globals:   globals,
		listeners: make(map[int]func(core.Announcement)),
	}
}

// Global implements core.Environment
func (s *Static) Global(name string) (core.Object, bool) {
	v, ok := s.globals[name]
	if !ok || !truthy(v) {
		return nil, false
	}
	return Wrap(v), true
}

// Announce registers a provider that answers discovery requests
func (s *Static) Announce(info core.ProviderInfo, provider any) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.announced = append(s.announced, core.Announcement{Info: info, Provider: Wrap(provider)})
}

// OnAnnounce implements core.Announcer
func (s *Static) OnAnnounce(fn func(core.Announcement)) (remove func()) {
	s.mu.Lock()
	id := s.nextID
	s.nextID++
	s.listeners[id] = fn
	s.mu.Unlock()

	return func() {
		s.mu.Lock()
		delete(s.listeners, id)
		s.mu.Unlock()
	}
}

// RequestProviders implements core.Announcer. Listeners run synchronously, as with DOM events.
func (s *Static) RequestProviders() {
	s.mu.Lock()
	announced := append([]core.Announcement(nil), s.announced...)
	listeners := make([]func(core.Announcement), 0, len(s.listeners))
	for _, fn := range s.listeners {
		listeners = append(listeners, fn)
	}
	s.mu.Unlock()

	for _, a := range announced {
		for _, fn := range listeners {
			fn(a)
		}
	}
}

// ListenerCount reports the number of registered announcement listeners
func (s *Static) ListenerCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.listeners)
}

// Value is a core.Object over a static Go value
type Value struct {
	v any
}

// Wrap turns a Go value into a core.Object
func Wrap(v any) core.Object {
	if obj, ok := v.(core.Object); ok {
		return obj
	}
	return &Value{v: v}
}

// Get implements core.Object
func (o *Value) Get(key string) (core.Object, bool) {
	m, ok := o.v.(map[string]any)
	if !ok {
		return nil, false
	}
	v, ok := m[key]
	if !ok || !truthy(v) {
		return nil, false
	}
	return Wrap(v), true
}

// Call implements core.Object
func (o *Value) Call(ctx context.Context, method string, args ...any) (core.Object, error) {
	m, ok := o.v.(map[string]any)
	if !ok {
		return nil, fmt.Errorf("%s is not a function", method)
	}

	var fn Func
	switch f := m[method].(type) {
	case Func:
		fn = f
	case func(context.Context, ...any) (any, error):
		fn = f
	default:
		return nil, fmt.Errorf("%s is not a function", method)
	}

	res, err := fn(ctx, args...)
	if err != nil {
		return nil, err
	}
	return Wrap(res), nil
}

// JSON implements core.Object. Methods are omitted.
func (o *Value) JSON() ([]byte, error) {
	return json.Marshal(jsonable(o.v))
}

// Interface returns the wrapped Go value
func (o *Value) Interface() any {
	return o.v
}

func jsonable(v any) any {
	switch x := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(x))
		for k, val := range x {
			if isFunc(val) {
				continue
			}
			out[k] = jsonable(val)
		}
		return out
	case []any:
		out := make([]any, len(x))
		for i, val := range x {
			out[i] = jsonable(val)
		}
		return out
	case []byte:
		out := make([]int, len(x))
		for i, b := range x {
			out[i] = int(b)
		}
		return out
	case *Value:
		return jsonable(x.v)
	default:
		return v
	}
}

func isFunc(v any) bool {
	switch v.(type) {
	case Func, func(context.Context, ...any) (any, error):
		return true
	}
	return false
}

func truthy(v any) bool {
	switch x := v.(type) {
	case nil:
		return false
	case bool:
		return x
	case string:
		return x != ""
	case int:
		return x != 0
	case int64:
		return x != 0
	case float64:
		return x != 0
	default:
		return true
	}
}
