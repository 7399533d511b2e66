package redis

import (
	"context"
	"log"
	"sync"
	"time"

	"ratchet-systemv1/internal/model"
)

// pendingPublish is one publish held back while the breaker is open.
type pendingPublish struct {
	kind   string // "entry", "exit", "stop"
	entry  model.EntryEvent
	exit   model.ExitEvent
	symbol string
	stop   float64
}

// BufferedPublisher wraps a Publisher with a circuit breaker. While Redis
// is unreachable, publishes are buffered in memory instead of being lost;
// when the breaker closes again, the buffer is flushed in order. Decision
// events are rare (a few per day per symbol), so the buffer stays small.
type BufferedPublisher struct {
	inner   model.EventPublisher
	breaker *CircuitBreaker

	mu      sync.Mutex
	pending []pendingPublish
	maxBuf  int

	// OnBuffer is called when a publish is deferred (optional, for metrics).
	OnBuffer func(kind string)
	// OnFlush is called after a successful flush with the count flushed.
	OnFlush func(count int)
}

// NewBufferedPublisher wraps pub with a breaker: maxFailures consecutive
// errors open the circuit, resetTimeout gates the half-open probe. maxBuf
// bounds the in-memory buffer; the oldest entry is dropped on overflow.
func NewBufferedPublisher(pub model.EventPublisher, maxFailures int, resetTimeout time.Duration, maxBuf int) *BufferedPublisher {
	bp := &BufferedPublisher{
		inner:   pub,
		breaker: NewCircuitBreaker(maxFailures, resetTimeout),
		maxBuf:  maxBuf,
	}
	bp.breaker.OnStateChange = func(from, to State) {
		log.Printf("[redis] breaker %s -> %s", from, to)
		if to == StateClosed {
			go bp.flush()
		}
	}
	return bp
}

// PublishEntry publishes an entry event, buffering it if Redis is down.
func (bp *BufferedPublisher) PublishEntry(ctx context.Context, ev model.EntryEvent) error {
	err := bp.breaker.Execute(func() error {
		return bp.inner.PublishEntry(ctx, ev)
	})
	if err != nil {
		bp.buffer(pendingPublish{kind: "entry", entry: ev})
	}
	return nil
}

// PublishExit publishes an exit event, buffering it if Redis is down.
func (bp *BufferedPublisher) PublishExit(ctx context.Context, ev model.ExitEvent) error {
	err := bp.breaker.Execute(func() error {
		return bp.inner.PublishExit(ctx, ev)
	})
	if err != nil {
		bp.buffer(pendingPublish{kind: "exit", exit: ev})
	}
	return nil
}

// PublishStop publishes a stop level, buffering it if Redis is down.
// Only the newest stop per symbol matters, so buffered stops for the same
// symbol are replaced rather than appended.
func (bp *BufferedPublisher) PublishStop(ctx context.Context, symbol string, stop float64) error {
	err := bp.breaker.Execute(func() error {
		return bp.inner.PublishStop(ctx, symbol, stop)
	})
	if err != nil {
		bp.bufferStop(symbol, stop)
	}
	return nil
}

func (bp *BufferedPublisher) buffer(p pendingPublish) {
	bp.mu.Lock()
	defer bp.mu.Unlock()
	if len(bp.pending) >= bp.maxBuf {
		bp.pending = bp.pending[1:]
		log.Printf("[redis] buffer full, dropped oldest pending publish")
	}
	bp.pending = append(bp.pending, p)
	if bp.OnBuffer != nil {
		bp.OnBuffer(p.kind)
	}
}

func (bp *BufferedPublisher) bufferStop(symbol string, stop float64) {
	bp.mu.Lock()
	for i := range bp.pending {
		if bp.pending[i].kind == "stop" && bp.pending[i].symbol == symbol {
			bp.pending[i].stop = stop
			bp.mu.Unlock()
			return
		}
	}
	bp.mu.Unlock()
	bp.buffer(pendingPublish{kind: "stop", symbol: symbol, stop: stop})
}

// flush replays buffered publishes after the breaker closes. Publishes go
// directly to the inner publisher; a failure mid-flush re-buffers the
// remainder and lets the breaker trip again on the next publish.
func (bp *BufferedPublisher) flush() {
	bp.mu.Lock()
	batch := bp.pending
	bp.pending = nil
	bp.mu.Unlock()

	if len(batch) == 0 {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	for i, p := range batch {
		var err error
		switch p.kind {
		case "entry":
			err = bp.inner.PublishEntry(ctx, p.entry)
		case "exit":
			err = bp.inner.PublishExit(ctx, p.exit)
		case "stop":
			err = bp.inner.PublishStop(ctx, p.symbol, p.stop)
		}
		if err != nil {
			bp.mu.Lock()
			bp.pending = append(batch[i:], bp.pending...)
			bp.mu.Unlock()
			log.Printf("[redis] flush aborted after %d/%d: %v", i, len(batch), err)
			return
		}
	}

	log.Printf("[redis] flushed %d buffered publishes", len(batch))
	if bp.OnFlush != nil {
		bp.OnFlush(len(batch))
	}
}

// PendingCount returns the number of buffered publishes.
func (bp *BufferedPublisher) PendingCount() int {
	bp.mu.Lock()
	defer bp.mu.Unlock()
	return len(bp.pending)
}

// BreakerState exposes the circuit state for health reporting.
func (bp *BufferedPublisher) BreakerState() State {
	return bp.breaker.CurrentState()
}

// Close releases the underlying publisher.
func (bp *BufferedPublisher) Close() error {
	return bp.inner.Close()
}
