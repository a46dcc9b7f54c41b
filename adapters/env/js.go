//go:build js && wasm

package env

import (
	"context"
	"fmt"
	"syscall/js"

	"github.com/layer-3/walletsso/core"
)

const (
	eventAnnounce = "eip6963:announceProvider"
	eventRequest  = "eip6963:requestProvider"
)

// Browser is the Environment of a page running the wasm build. Globals are
// properties of window and provider promises are awaited.
type Browser struct {
	window js.Value
}

// NewBrowser returns the environment of the current page
func NewBrowser() *Browser {
	return &Browser{window: js.Global()}
}

// Global implements core.Environment
func (b *Browser) Global(name string) (core.Object, bool) {
	return wrapJS(b.window.Get(name))
}

// OnAnnounce implements core.Announcer
func (b *Browser) OnAnnounce(fn func(core.Announcement)) (remove func()) {
	listener := js.FuncOf(func(this js.Value, args []js.Value) any {
		if len(args) == 0 {
			return nil
		}
		detail := args[0].Get("detail")
		if !detail.Truthy() {
			return nil
		}

		a := core.Announcement{}
		if info := detail.Get("info"); info.Truthy() {
			a.Info = core.ProviderInfo{
				UUID: stringProp(info, "uuid"),
				Name: stringProp(info, "name"),
				Icon: stringProp(info, "icon"),
				RDNS: stringProp(info, "rdns"),
			}
		}
		if provider, ok := wrapJS(detail.Get("provider")); ok {
			a.Provider = provider
		}
		fn(a)
		return nil
	})
	b.window.Call("addEventListener", eventAnnounce, listener)

	return func() {
		b.window.Call("removeEventListener", eventAnnounce, listener)
		listener.Release()
	}
}

// RequestProviders implements core.Announcer
func (b *Browser) RequestProviders() {
	b.window.Call("dispatchEvent", js.Global().Get("Event").New(eventRequest))
}

// JSValue is a core.Object over a JavaScript value
type JSValue struct {
	v js.Value
}

func wrapJS(v js.Value) (core.Object, bool) {
	if !v.Truthy() {
		return nil, false
	}
	return &JSValue{v: v}, true
}

// Get implements core.Object
func (o *JSValue) Get(key string) (core.Object, bool) {
	switch o.v.Type() {
	case js.TypeObject, js.TypeFunction:
		return wrapJS(o.v.Get(key))
	}
	return nil, false
}

// Call implements core.Object. A returned promise is awaited until it settles or ctx ends.
func (o *JSValue) Call(ctx context.Context, method string, args ...any) (res core.Object, err error) {
	if o.v.Type() != js.TypeObject || o.v.Get(method).Type() != js.TypeFunction {
		return nil, fmt.Errorf("%s is not a function", method)
	}

	jsArgs := make([]any, len(args))
	for i, arg := range args {
		jsArgs[i] = toJS(arg)
	}

	var out js.Value
	func() {
		defer func() {
			if r := recover(); r != nil {
				if jerr, ok := r.(js.Error); ok {
					err = providerError(jerr.Value)
					return
				}
				err = fmt.Errorf("%s: %v", method, r)
			}
		}()
		out = o.v.Call(method, jsArgs...)
	}()
	if err != nil {
		return nil, err
	}

	out, err = await(ctx, out)
	if err != nil {
		return nil, err
	}
	return &JSValue{v: out}, nil
}

// JSON implements core.Object. Typed arrays become arrays of numbers.
func (o *JSValue) JSON() ([]byte, error) {
	if o.v.IsUndefined() {
		return []byte("null"), nil
	}

	uint8Array := js.Global().Get("Uint8Array")
	replacer := js.FuncOf(func(this js.Value, args []js.Value) any {
		v := args[1]
		if v.Type() == js.TypeObject && v.InstanceOf(uint8Array) {
			return js.Global().Get("Array").Call("from", v)
		}
		return v
	})
	defer replacer.Release()

	s := js.Global().Get("JSON").Call("stringify", o.v, replacer)
	if s.Type() != js.TypeString {
		return []byte("null"), nil
	}
	return []byte(s.String()), nil
}

func await(ctx context.Context, v js.Value) (js.Value, error) {
	if v.Type() != js.TypeObject || v.Get("then").Type() != js.TypeFunction {
		return v, nil
	}

	type settled struct {
		v   js.Value
		err error
	}
	done := make(chan settled, 1)

	onResolve := js.FuncOf(func(this js.Value, args []js.Value) any {
		done <- settled{v: argOrUndefined(args)}
		return nil
	})
	onReject := js.FuncOf(func(this js.Value, args []js.Value) any {
		done <- settled{err: providerError(argOrUndefined(args))}
		return nil
	})
	defer onResolve.Release()
	defer onReject.Release()

	v.Call("then", onResolve, onReject)

	select {
	case s := <-done:
		return s.v, s.err
	case <-ctx.Done():
		return js.Undefined(), ctx.Err()
	}
}

func argOrUndefined(args []js.Value) js.Value {
	if len(args) == 0 {
		return js.Undefined()
	}
	return args[0]
}

// providerError maps a thrown or rejected value onto core.ProviderError
func providerError(v js.Value) error {
	if v.Type() != js.TypeObject {
		if v.Truthy() {
			return &core.ProviderError{Message: v.String()}
		}
		return &core.ProviderError{Message: "request failed"}
	}

	e := &core.ProviderError{Message: stringProp(v, "message")}
	if code := v.Get("code"); code.Type() == js.TypeNumber {
		e.Code = code.Int()
	}
	if e.Message == "" {
		e.Message = "request failed"
	}
	return e
}

// toJS converts Go arguments, turning []byte into Uint8Array at any depth
func toJS(v any) any {
	switch x := v.(type) {
	case []byte:
		arr := js.Global().Get("Uint8Array").New(len(x))
		js.CopyBytesToJS(arr, x)
		return arr
	case map[string]any:
		obj := js.Global().Get("Object").New()
		for k, val := range x {
			obj.Set(k, toJS(val))
		}
		return obj
	case []any:
		arr := js.Global().Get("Array").New(len(x))
		for i, val := range x {
			arr.SetIndex(i, toJS(val))
		}
		return arr
	case []string:
		arr := js.Global().Get("Array").New(len(x))
		for i, val := range x {
			arr.SetIndex(i, val)
		}
		return arr
	case *JSValue:
		return x.v
	default:
		return v
	}
}

func stringProp(v js.Value, key string) string {
	p := v.Get(key)
	if p.Type() != js.TypeString {
		return ""
	}
	return p.String()
}
