// events.go
package serialhelper

import (
	"sync"

	"github.com/google/uuid"
)

// Subscription identifies one registered notification handler so it can be
// removed again.
type Subscription string

// emitter owns the notification fan-out, separate from the state machine
// that owns the transitions. Handlers are invoked synchronously on the
// emitting goroutine, so data records are observed in emission order. The
// handler set is copied out before invocation, which keeps subscribing and
// unsubscribing from inside a handler safe.
type emitter struct {
	mu     sync.RWMutex
	opened map[Subscription]func(string)
	closed map[Subscription]func(string)
	errs   map[Subscription]func(error)
	data   map[Subscription]func(Record)
}

func newEmitter() *emitter {
	return &emitter{
		opened: make(map[Subscription]func(string)),
		closed: make(map[Subscription]func(string)),
		errs:   make(map[Subscription]func(error)),
		data:   make(map[Subscription]func(Record)),
	}
}

func token() Subscription {
	return Subscription(uuid.NewString())
}

func (e *emitter) subscribeOpened(fn func(string)) Subscription {
	t := token()
	e.mu.Lock()
	e.opened[t] = fn
	e.mu.Unlock()
	return t
}

func (e *emitter) subscribeClosed(fn func(string)) Subscription {
	t := token()
	e.mu.Lock()
	e.closed[t] = fn
	e.mu.Unlock()
	return t
}

func (e *emitter) subscribeError(fn func(error)) Subscription {
	t := token()
	e.mu.Lock()
	e.errs[t] = fn
	e.mu.Unlock()
	return t
}

func (e *emitter) subscribeData(fn func(Record)) Subscription {
	t := token()
	e.mu.Lock()
	e.data[t] = fn
	e.mu.Unlock()
	return t
}

// unsubscribe removes the handler registered under t, whichever kind it is.
func (e *emitter) unsubscribe(t Subscription) {
	e.mu.Lock()
	delete(e.opened, t)
	delete(e.closed, t)
	delete(e.errs, t)
	delete(e.data, t)
	e.mu.Unlock()
}

func (e *emitter) emitOpened(msg string) {
	e.mu.RLock()
	handlers := make([]func(string), 0, len(e.opened))
	for _, fn := range e.opened {
		handlers = append(handlers, fn)
	}
	e.mu.RUnlock()
	for _, fn := range handlers {
		fn(msg)
	}
}

func (e *emitter) emitClosed(msg string) {
	e.mu.RLock()
	handlers := make([]func(string), 0, len(e.closed))
	for _, fn := range e.closed {
		handlers = append(handlers, fn)
	}
	e.mu.RUnlock()
	for _, fn := range handlers {
		fn(msg)
	}
}

func (e *emitter) emitError(err error) {
	e.mu.RLock()
	handlers := make([]func(error), 0, len(e.errs))
	for _, fn := range e.errs {
		handlers = append(handlers, fn)
	}
	e.mu.RUnlock()
	for _, fn := range handlers {
		fn(err)
	}
}

func (e *emitter) emitData(rec Record) {
	e.mu.RLock()
	handlers := make([]func(Record), 0, len(e.data))
	for _, fn := range e.data {
		handlers = append(handlers, fn)
	}
	e.mu.RUnlock()
	for _, fn := range handlers {
		fn(rec)
	}
}
