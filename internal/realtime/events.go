package realtime

import (
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/rickgao/polymarket-realtime/internal/connection"
	"github.com/rickgao/polymarket-realtime/internal/router"
)

// ListenerID identifies a registered state listener.
type ListenerID uint64

// Listener receives connection state events.
type Listener func(connection.Event)

type listenerEntry struct {
	id   ListenerID
	typ  connection.EventType
	fn   Listener
	once bool
}

// emitter delivers state events to listeners on its own goroutine, in the
// order the Connection Manager raised them.
type emitter struct {
	logger *slog.Logger

	mu        sync.Mutex
	nextID    ListenerID
	listeners []listenerEntry

	queue   *router.GrowableBuffer[connection.Event]
	stopped atomic.Bool
	done    chan struct{}
}

func newEmitter(logger *slog.Logger) *emitter {
	e := &emitter{
		logger: logger,
		queue:  router.NewGrowableBuffer[connection.Event](16),
		done:   make(chan struct{}),
	}
	go e.run()
	return e
}

func (e *emitter) on(typ connection.EventType, fn Listener, once bool) ListenerID {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.nextID++
	e.listeners = append(e.listeners, listenerEntry{id: e.nextID, typ: typ, fn: fn, once: once})
	return e.nextID
}

func (e *emitter) off(id ListenerID) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	for i, l := range e.listeners {
		if l.id == id {
			e.listeners = append(e.listeners[:i], e.listeners[i+1:]...)
			return true
		}
	}
	return false
}

// emit queues ev. It never blocks, so it can run on Manager goroutines.
func (e *emitter) emit(ev connection.Event) {
	if e.stopped.Load() {
		return
	}
	e.queue.Send(ev)
}

// close drops queued events and stops the worker. Listeners may call it.
func (e *emitter) close() {
	e.stopped.Store(true)
	e.queue.Close()
}

func (e *emitter) run() {
	defer close(e.done)
	for {
		ev, ok := e.queue.Receive()
		if !ok {
			return
		}
		if e.stopped.Load() {
			continue
		}
		e.dispatch(ev)
	}
}

func (e *emitter) dispatch(ev connection.Event) {
	e.mu.Lock()
	var targets []listenerEntry
	kept := e.listeners[:0]
	for _, l := range e.listeners {
		if l.typ == ev.Type {
			targets = append(targets, l)
			if l.once {
				continue
			}
		}
		kept = append(kept, l)
	}
	e.listeners = kept
	e.mu.Unlock()

	for _, l := range targets {
		e.call(l, ev)
	}
}

func (e *emitter) call(l listenerEntry, ev connection.Event) {
	defer func() {
		if p := recover(); p != nil {
			e.logger.Error("state listener panicked", "event", ev.Type, "listener", l.id, "panic", p)
		}
	}()
	l.fn(ev)
}
