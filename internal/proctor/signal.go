package proctor

import "sync"

// SignalKind enumerates the browser-level events the client reports.
type SignalKind string

const (
	SignalVisibilityHidden  SignalKind = "visibility-hidden"
	SignalVisibilityVisible SignalKind = "visibility-visible"
	SignalWindowBlur        SignalKind = "window-blur"
	SignalKeyDown           SignalKind = "keydown"
	SignalCopy              SignalKind = "copy"
	SignalContextMenu       SignalKind = "contextmenu"
	SignalSelectStart       SignalKind = "selectstart"
)

// Signal is one raw environment event. Key and the modifier flags are only
// meaningful for SignalKeyDown.
type Signal struct {
	Kind  SignalKind `json:"kind"`
	Key   string     `json:"key,omitempty"`
	Ctrl  bool       `json:"ctrl,omitempty"`
	Shift bool       `json:"shift,omitempty"`
}

// Environment is the port through which the monitor observes browser
// signals. Production wires the websocket transport behind it; tests
// publish signals directly.
type Environment interface {
	// Subscribe registers a handler for every published signal. The
	// returned cancel removes the handler and is safe to call more
	// than once.
	Subscribe(handler func(Signal)) (cancel func())
}

// SignalBus is the in-process Environment implementation. Signals fan out
// to all current subscribers in publish order.
type SignalBus struct {
	mu       sync.Mutex
	nextID   int
	handlers map[int]func(Signal)
}

func NewSignalBus() *SignalBus {
	return &SignalBus{handlers: make(map[int]func(Signal))}
}

// Publish delivers a signal to every subscriber synchronously.
func (b *SignalBus) Publish(sig Signal) {
	b.mu.Lock()
	handlers := make([]func(Signal), 0, len(b.handlers))
	for _, h := range b.handlers {
		handlers = append(handlers, h)
	}
	b.mu.Unlock()

	for _, h := range handlers {
		h(sig)
	}
}

func (b *SignalBus) Subscribe(handler func(Signal)) func() {
	b.mu.Lock()
	id := b.nextID
	b.nextID++
	b.handlers[id] = handler
	b.mu.Unlock()

	return func() {
		b.mu.Lock()
		delete(b.handlers, id)
		b.mu.Unlock()
	}
}
