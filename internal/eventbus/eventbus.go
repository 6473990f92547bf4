// Package eventbus provides an in-process topic bus with fire-and-forget
// handler dispatch.
//
// Publish never waits for handlers. Every handler invocation runs on its own
// goroutine and is tracked so that Drain can wait for in-flight work during
// shutdown.
package eventbus

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"sync/atomic"
	"time"
)

// ErrDrainTimeout is returned by Drain when ctx expires before handlers finish.
var ErrDrainTimeout = errors.New("eventbus: drain timed out")

// drainPoll is how often Drain rechecks the in-flight count.
const drainPoll = 5 * time.Millisecond

// Handler processes one published value. The return value reports whether
// the handler acted on it; the bus only counts it.
type Handler[T any] func(ctx context.Context, v T) bool

// Logger interface for optional logging.
type Logger interface {
	Debug(msg string, keysAndValues ...any)
	Error(msg string, keysAndValues ...any)
}

// Options configures a Bus.
type Options struct {
	// Context is passed to every handler. Default: context.Background().
	Context context.Context

	// Logger is optional.
	Logger Logger
}

// Stats holds bus counters.
type Stats struct {
	Published  uint64 // Publish calls that reached at least one handler
	Unrouted   uint64 // Publish calls on topics with no handlers
	Dispatched uint64 // handler invocations started
	Handled    uint64 // invocations that returned true
	Skipped    uint64 // invocations that returned false
	Panics     uint64 // invocations that panicked
	InFlight   int64
}

// Bus routes values of type T to handlers subscribed by topic.
//
// Thread Safety: all methods are safe for concurrent use. Drain should be
// called once publishers have stopped.
type Bus[T any] struct {
	ctx    context.Context
	logger Logger

	mu   sync.RWMutex
	subs map[string][]Handler[T]

	published  atomic.Uint64
	unrouted   atomic.Uint64
	dispatched atomic.Uint64
	handled    atomic.Uint64
	skipped    atomic.Uint64
	panics     atomic.Uint64
	inFlight   atomic.Int64
}

// New creates an empty bus.
func New[T any](opts Options) *Bus[T] {
	ctx := opts.Context
	if ctx == nil {
		ctx = context.Background()
	}
	return &Bus[T]{
		ctx:    ctx,
		logger: opts.Logger,
		subs:   make(map[string][]Handler[T]),
	}
}

// Subscribe appends handler to the ordered handler list for topic.
func (b *Bus[T]) Subscribe(topic string, handler Handler[T]) {
	if handler == nil {
		return
	}
	b.mu.Lock()
	b.subs[topic] = append(b.subs[topic], handler)
	b.mu.Unlock()
}

// Publish schedules every handler subscribed to topic and returns how many
// were scheduled. It is a no-op returning 0 when topic has no handlers.
func (b *Bus[T]) Publish(topic string, v T) int {
	b.mu.RLock()
	handlers := b.subs[topic]
	b.mu.RUnlock()

	if len(handlers) == 0 {
		b.unrouted.Add(1)
		return 0
	}
	b.published.Add(1)

	for _, h := range handlers {
		b.dispatched.Add(1)
		b.inFlight.Add(1)
		go func() {
			defer b.inFlight.Add(-1)
			b.invoke(topic, h, v)
		}()
	}
	return len(handlers)
}

// invoke runs one handler, recovering from panics.
func (b *Bus[T]) invoke(topic string, h Handler[T], v T) {
	defer func() {
		if r := recover(); r != nil {
			b.panics.Add(1)
			if b.logger != nil {
				b.logger.Error("event handler panicked", "topic", topic, "panic", fmt.Sprint(r))
			}
		}
	}()

	if h(b.ctx, v) {
		b.handled.Add(1)
		return
	}
	b.skipped.Add(1)
	if b.logger != nil {
		b.logger.Debug("event handler skipped", "topic", topic)
	}
}

// Drain waits until every in-flight handler has returned or ctx is done.
// It polls the in-flight count on the caller's goroutine and starts none of
// its own, so nothing outlives a timed-out Drain.
func (b *Bus[T]) Drain(ctx context.Context) error {
	if b.inFlight.Load() == 0 {
		return nil
	}

	ticker := time.NewTicker(drainPoll)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return fmt.Errorf("%w: %d handlers still running: %w", ErrDrainTimeout, b.inFlight.Load(), ctx.Err())
		case <-ticker.C:
			if b.inFlight.Load() == 0 {
				return nil
			}
		}
	}
}

// Reset removes every subscription. In-flight handlers are not affected.
func (b *Bus[T]) Reset() {
	b.mu.Lock()
	b.subs = make(map[string][]Handler[T])
	b.mu.Unlock()
}

// Topics returns the subscribed topics, sorted.
func (b *Bus[T]) Topics() []string {
	b.mu.RLock()
	defer b.mu.RUnlock()

	topics := make([]string, 0, len(b.subs))
	for t := range b.subs {
		topics = append(topics, t)
	}
	sort.Strings(topics)
	return topics
}

// HandlerCount returns the number of handlers subscribed to topic.
func (b *Bus[T]) HandlerCount(topic string) int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs[topic])
}

// Stats returns current counters.
func (b *Bus[T]) Stats() Stats {
	return Stats{
		Published:  b.published.Load(),
		Unrouted:   b.unrouted.Load(),
		Dispatched: b.dispatched.Load(),
		Handled:    b.handled.Load(),
		Skipped:    b.skipped.Load(),
		Panics:     b.panics.Load(),
		InFlight:   b.inFlight.Load(),
	}
}
