package journal

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/nerrad567/lutronbond/internal/bridges/lutron"
)

// ErrQueueFull is returned when the recorder's buffer is full and the entry
// was dropped.
var ErrQueueFull = errors.New("journal: queue full")

const (
	defaultBuffer        = 256
	defaultPruneInterval = time.Hour
	writeTimeout         = 5 * time.Second
)

// Logger interface for optional logging.
type Logger interface {
	Debug(msg string, keysAndValues ...any)
	Info(msg string, keysAndValues ...any)
	Warn(msg string, keysAndValues ...any)
	Error(msg string, keysAndValues ...any)
}

// RecorderConfig configures a Recorder.
type RecorderConfig struct {
	// Buffer is the number of entries queued before new ones are dropped.
	// Default: 256.
	Buffer int

	// Retention is how long rows are kept. Zero disables pruning.
	Retention time.Duration

	// PruneInterval is how often expired rows are deleted. Default: 1 hour.
	PruneInterval time.Duration

	// Logger is optional.
	Logger Logger
}

// RecorderStats holds recorder counters.
type RecorderStats struct {
	Recorded uint64
	Dropped  uint64
	Failed   uint64
	Pruned   uint64
	Queued   int
}

type item struct {
	event    *EventEntry
	dispatch *DispatchEntry
}

// Recorder writes journal entries asynchronously through a single worker.
//
// Thread Safety: RecordEvent and RecordDispatch may be called from any
// goroutine. Run must be called once.
type Recorder struct {
	store *Store
	cfg   RecorderConfig

	mu     sync.RWMutex
	closed bool
	queue  chan item

	running atomic.Bool
	done    chan struct{}

	recorded atomic.Uint64
	dropped  atomic.Uint64
	failed   atomic.Uint64
	pruned   atomic.Uint64
}

// NewRecorder creates a recorder over store. Call Run to start writing.
func NewRecorder(store *Store, cfg RecorderConfig) *Recorder {
	if cfg.Buffer <= 0 {
		cfg.Buffer = defaultBuffer
	}
	if cfg.PruneInterval <= 0 {
		cfg.PruneInterval = defaultPruneInterval
	}
	return &Recorder{
		store: store,
		cfg:   cfg,
		queue: make(chan item, cfg.Buffer),
		done:  make(chan struct{}),
	}
}

// RecordEvent queues evt for writing.
func (r *Recorder) RecordEvent(evt lutron.Event, receivedAt time.Time) error {
	entry := EventEntryFrom(evt, receivedAt)
	return r.enqueue(item{event: &entry})
}

// RecordDispatch queues a dispatch entry for writing.
func (r *Recorder) RecordDispatch(entry DispatchEntry) error {
	return r.enqueue(item{dispatch: &entry})
}

func (r *Recorder) enqueue(it item) error {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if r.closed {
		return ErrClosed
	}
	select {
	case r.queue <- it:
		return nil
	default:
		r.dropped.Add(1)
		return ErrQueueFull
	}
}

// Run writes queued entries until Close is called or ctx is cancelled, and
// prunes expired rows every PruneInterval when Retention is set. Entries
// still buffered when ctx is cancelled are written before Run returns.
func (r *Recorder) Run(ctx context.Context) {
	r.running.Store(true)
	defer close(r.done)

	var prune <-chan time.Time
	if r.cfg.Retention > 0 {
		r.prune()
		ticker := time.NewTicker(r.cfg.PruneInterval)
		defer ticker.Stop()
		prune = ticker.C
	}

	for {
		select {
		case it, ok := <-r.queue:
			if !ok {
				return
			}
			r.write(it)
		case <-prune:
			r.prune()
		case <-ctx.Done():
			r.drain()
			return
		}
	}
}

// Close stops accepting entries and waits for Run to flush the queue.
func (r *Recorder) Close() {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return
	}
	r.closed = true
	close(r.queue)
	r.mu.Unlock()

	if r.running.Load() {
		<-r.done
	}
}

// Stats returns current counters.
func (r *Recorder) Stats() RecorderStats {
	return RecorderStats{
		Recorded: r.recorded.Load(),
		Dropped:  r.dropped.Load(),
		Failed:   r.failed.Load(),
		Pruned:   r.pruned.Load(),
		Queued:   len(r.queue),
	}
}

func (r *Recorder) drain() {
	for {
		select {
		case it, ok := <-r.queue:
			if !ok {
				return
			}
			r.write(it)
		default:
			return
		}
	}
}

func (r *Recorder) write(it item) {
	ctx, cancel := context.WithTimeout(context.Background(), writeTimeout)
	defer cancel()

	var err error
	switch {
	case it.event != nil:
		_, err = r.store.RecordEvent(ctx, *it.event)
	case it.dispatch != nil:
		_, err = r.store.RecordDispatch(ctx, *it.dispatch)
	}
	if err != nil {
		r.failed.Add(1)
		if r.cfg.Logger != nil {
			r.cfg.Logger.Warn("journal write failed", "error", err)
		}
		return
	}
	r.recorded.Add(1)
}

func (r *Recorder) prune() {
	ctx, cancel := context.WithTimeout(context.Background(), writeTimeout)
	defer cancel()

	n, err := r.store.Prune(ctx, r.cfg.Retention)
	if err != nil {
		if r.cfg.Logger != nil {
			r.cfg.Logger.Warn("journal prune failed", "error", err)
		}
		return
	}
	r.pruned.Add(uint64(n)) //nolint:gosec // row counts are non-negative
	if n > 0 && r.cfg.Logger != nil {
		r.cfg.Logger.Debug("pruned journal", "rows", n, "retention", r.cfg.Retention.String())
	}
}
