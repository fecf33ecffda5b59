// Package bus is a synchronous in-process signal bus.
//
// Handlers run on the emitting goroutine, in subscription order, after
// the bus lock is released; a handler may subscribe, unsubscribe or emit.
package bus

import (
	"log/slog"
	"sync"
)

// Signal names an event channel.
type Signal string

const (
	// SelectionChanged fires when the editor selection moves. Payload:
	// model.Range.
	SelectionChanged Signal = "comment.selection-changed"

	// FocusView asks the presentation layer to reveal the comment view.
	// Payload: the thread id that was just created.
	FocusView Signal = "comment.focus-view"
)

// Handler receives a signal's payload.
type Handler func(payload any)

// Bus routes signals to handlers.
type Bus struct {
	mu       sync.Mutex
	handlers map[Signal][]entry
	next     int
	logger   *slog.Logger
}

type entry struct {
	id int
	fn Handler
}

// New creates an empty bus. A nil logger means slog.Default().
func New(logger *slog.Logger) *Bus {
	if logger == nil {
		logger = slog.Default()
	}
	return &Bus{handlers: make(map[Signal][]entry), logger: logger}
}

// Subscription releases a handler registration.
type Subscription struct {
	once sync.Once
	bus  *Bus
	sig  Signal
	id   int
}

// Close unregisters the handler. Safe to call more than once.
func (s *Subscription) Close() {
	s.once.Do(func() {
		s.bus.off(s.sig, s.id)
	})
}

// On registers fn for sig.
func (b *Bus) On(sig Signal, fn Handler) *Subscription {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.next++
	b.handlers[sig] = append(b.handlers[sig], entry{id: b.next, fn: fn})
	return &Subscription{bus: b, sig: sig, id: b.next}
}

func (b *Bus) off(sig Signal, id int) {
	b.mu.Lock()
	defer b.mu.Unlock()

	list := b.handlers[sig]
	for i, e := range list {
		if e.id == id {
			b.handlers[sig] = append(list[:i:i], list[i+1:]...)
			break
		}
	}
	if len(b.handlers[sig]) == 0 {
		delete(b.handlers, sig)
	}
}

// Emit delivers payload to every handler registered for sig and returns
// how many ran.
func (b *Bus) Emit(sig Signal, payload any) int {
	b.mu.Lock()
	list := b.handlers[sig]
	b.mu.Unlock()

	b.logger.Debug("signal emitted", "signal", string(sig), "handlers", len(list))
	for _, e := range list {
		e.fn(payload)
	}
	return len(list)
}

// Handlers returns the number of handlers registered for sig.
func (b *Bus) Handlers(sig Signal) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.handlers[sig])
}
