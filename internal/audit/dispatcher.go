package audit

import (
	"context"
	"sync"
	"sync/atomic"
)

// Config controls how session-lifecycle events are buffered on their way to
// a sink.
type Config struct {
	Enabled    bool
	BufferSize int
	DropIfFull bool
}

// Dispatcher keeps audit delivery off the token hot path. Login, rotation,
// and the revocation operations enqueue their events here and return
// immediately; a single goroutine forwards them to the configured sink.
// Engine.Close drains whatever is still buffered before returning.
//
// A nil *Dispatcher is valid and drops everything, so callers never branch
// on whether auditing is enabled.
type Dispatcher struct {
	sink       Sink
	events     chan Event
	stop       chan struct{}
	wg         sync.WaitGroup
	dropIfFull bool
	dropped    atomic.Uint64
	closeOnce  sync.Once
}

// NewDispatcher starts the forwarding goroutine. It returns nil when
// auditing is disabled.
func NewDispatcher(cfg Config, sink Sink) *Dispatcher {
	if !cfg.Enabled {
		return nil
	}
	if cfg.BufferSize <= 0 {
		cfg.BufferSize = 1
	}
	if sink == nil {
		sink = NoOpSink{}
	}

	d := &Dispatcher{
		sink:       sink,
		events:     make(chan Event, cfg.BufferSize),
		stop:       make(chan struct{}),
		dropIfFull: cfg.DropIfFull,
	}

	d.wg.Add(1)
	go d.forward()

	return d
}

func (d *Dispatcher) forward() {
	defer d.wg.Done()

	for {
		select {
		case event := <-d.events:
			d.sink.Emit(context.Background(), event)
		case <-d.stop:
			d.drain()
			return
		}
	}
}

// drain flushes events enqueued before Close without waiting for new ones.
func (d *Dispatcher) drain() {
	for {
		select {
		case event := <-d.events:
			d.sink.Emit(context.Background(), event)
		default:
			return
		}
	}
}

// Emit enqueues an event. With DropIfFull it never blocks; a saturated
// buffer increments the drop counter instead. Without it, Emit waits for
// buffer space, context cancellation, or Close, whichever comes first.
// After Close it is a no-op.
func (d *Dispatcher) Emit(ctx context.Context, event Event) {
	if d == nil {
		return
	}
	select {
	case <-d.stop:
		return
	default:
	}
	if ctx == nil {
		ctx = context.Background()
	}

	if d.dropIfFull {
		select {
		case d.events <- event:
		default:
			d.dropped.Add(1)
		}
		return
	}

	select {
	case d.events <- event:
	case <-ctx.Done():
	case <-d.stop:
	}
}

// Close stops the forwarding goroutine after it has flushed the buffer.
// Safe to call more than once.
func (d *Dispatcher) Close() {
	if d == nil {
		return
	}
	d.closeOnce.Do(func() {
		close(d.stop)
		d.wg.Wait()
	})
}

// Dropped reports how many events DropIfFull discarded.
func (d *Dispatcher) Dropped() uint64 {
	if d == nil {
		return 0
	}
	return d.dropped.Load()
}
