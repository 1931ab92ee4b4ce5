// Package dispatch decouples the session's socket read rate from handler
// execution rate via a bounded, single-producer/single-consumer queue. The
// read loop (producer) never runs a handler itself; the worker (consumer)
// never touches the socket.
package dispatch

import (
	"context"
	"fmt"

	"github.com/jrhodes/barrierscreen/internal/wire"
)

// QueueCapacity bounds the dispatcher's internal channel. Once full, Enqueue
// blocks, which in turn stalls the session's socket read -- TCP's own flow
// control then propagates that stall back to the server. No message is ever
// dropped under load.
const QueueCapacity = 100

// Handler processes one decoded message. Handlers run sequentially on the
// worker goroutine; a handler must never panic across the dispatch
// boundary (a recovered panic is logged and treated like InjectorError).
type Handler func(msg wire.Message) error

// Dispatcher owns the bounded queue and the code->Handler registry.
type Dispatcher struct {
	queue    chan wire.Message
	handlers map[string]Handler
	fallback Handler
	onError  func(code string, err error)
}

// New builds a Dispatcher with an empty registry. Register each handler with
// Handle before calling Run; unregistered codes fall to the default handler
// set with OnUnknown (or are dropped without any report if none was set).
func New() *Dispatcher {
	return &Dispatcher{
		queue:    make(chan wire.Message, QueueCapacity),
		handlers: make(map[string]Handler),
	}
}

// Handle registers the handler for a single 4-byte wire code. Intended to be
// called during construction, mirroring the "enumerate the Injector's
// handler methods and build a code -> handler lookup" step from §4.4 --
// here the enumeration is an explicit call list the caller writes out
// rather than reflection over method names.
func (d *Dispatcher) Handle(code string, h Handler) {
	d.handlers[code] = h
}

// OnUnknown sets the fallback invoked for any code with no registered
// handler -- including wire.Skip, the catch-all arm for unrecognised
// 4-byte codes.
func (d *Dispatcher) OnUnknown(h Handler) {
	d.fallback = h
}

// Len reports the current queue depth, for the dispatch_queue_length gauge.
func (d *Dispatcher) Len() int {
	return len(d.queue)
}

// OnError sets the callback invoked when a handler returns a non-nil error
// (InjectorError per §7: log at WARNING, continue). If unset, handler
// errors are silently dropped.
func (d *Dispatcher) OnError(f func(code string, err error)) {
	d.onError = f
}

// Enqueue is called by the session's read loop (the sole producer). It
// blocks if the queue is full, and returns ctx.Err() if ctx is cancelled
// first so a shutdown in progress is not stuck waiting on a stalled worker.
func (d *Dispatcher) Enqueue(ctx context.Context, msg wire.Message) error {
	select {
	case d.queue <- msg:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Run drains the queue in strict arrival order until ctx is cancelled and
// the queue is empty. It is the dispatcher worker -- the sole consumer.
// Returning happens only after the queue has been fully drained, so that a
// shutdown still delivers every message already enqueued (in particular the
// COUT/CBYE that would otherwise leave pressed sets undrained).
func (d *Dispatcher) Run(ctx context.Context) error {
	for {
		select {
		case msg := <-d.queue:
			d.dispatch(msg)
		case <-ctx.Done():
			return d.drain()
		}
	}
}

// drain processes whatever is left in the queue without blocking, once the
// context has already been cancelled.
func (d *Dispatcher) drain() error {
	for {
		select {
		case msg := <-d.queue:
			d.dispatch(msg)
		default:
			return nil
		}
	}
}

func (d *Dispatcher) dispatch(msg wire.Message) {
	h, ok := d.handlers[msg.Code()]
	if !ok {
		h = d.fallback
	}

	if h == nil {
		return
	}

	// A handler must never crash the worker goroutine -- a panicking
	// injector call (e.g. a virtual device write) is recovered and treated
	// like any other InjectorError.
	defer func() {
		if r := recover(); r != nil && d.onError != nil {
			d.onError(msg.Code(), fmt.Errorf("dispatch: handler panic: %v", r))
		}
	}()

	if err := h(msg); err != nil && d.onError != nil {
		d.onError(msg.Code(), err)
	}
}
