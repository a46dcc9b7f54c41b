package events

import (
	"fmt"
	"sync"
	"time"

	"github.com/layer-3/walletsso/core"
	"github.com/layer-3/walletsso/logger"
)

// Handler receives emitted events
type Handler func(core.Event)

type subscription struct {
	id      uint64
	handler Handler
}

// Emitter is a typed publish/subscribe hub. Handlers run synchronously in
// subscription order; a panicking handler is logged and skipped.
type Emitter struct {
	mu     sync.RWMutex
	subs   map[core.EventType][]subscription
	any    []subscription
	nextID uint64
	logger logger.Logger
}

// NewEmitter creates an emitter
func NewEmitter(l logger.Logger) *Emitter {
	return &Emitter{
		subs:   make(map[core.EventType][]subscription),
		logger: logger.OrNoop(l),
	}
}

// On subscribes h to events of type t and returns a function unsubscribing it
func (e *Emitter) On(t core.EventType, h Handler) (off func()) {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.nextID++
	id := e.nextID
	e.subs[t] = append(e.subs[t], subscription{id: id, handler: h})

	return func() {
		e.mu.Lock()
		defer e.mu.Unlock()
		e.subs[t] = without(e.subs[t], id)
	}
}

// OnAny subscribes h to every event
func (e *Emitter) OnAny(h Handler) (off func()) {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.nextID++
	id := e.nextID
	e.any = append(e.any, subscription{id: id, handler: h})

	return func() {
		e.mu.Lock()
		defer e.mu.Unlock()
		e.any = without(e.any, id)
	}
}

// Emit delivers event to the handlers of its type, then to catch-all handlers
func (e *Emitter) Emit(event core.Event) {
	if event.At.IsZero() {
		event.At = time.Now()
	}

	e.mu.RLock()
	targets := make([]subscription, 0, len(e.subs[event.Type])+len(e.any))
	targets = append(targets, e.subs[event.Type]...)
	targets = append(targets, e.any...)
	e.mu.RUnlock()

	for _, sub := range targets {
		e.deliver(sub, event)
	}
}

func (e *Emitter) deliver(sub subscription, event core.Event) {
	defer func() {
		if r := recover(); r != nil {
			e.logger.Error("event handler panicked", map[string]any{
				"event": string(event.Type),
				"panic": fmt.Sprint(r),
			})
		}
	}()
	sub.handler(event)
}

// Count returns the number of handlers subscribed to t
func (e *Emitter) Count(t core.EventType) int {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return len(e.subs[t])
}

func without(subs []subscription, id uint64) []subscription {
	out := make([]subscription, 0, len(subs))
	for _, s := range subs {
		if s.id != id {
			out = append(out, s)
		}
	}
	return out
}
