package controller

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v5"
	"golang.org/x/sync/errgroup"

	"github.com/nerrad567/lutronbond/internal/bridges/lutron"
	"github.com/nerrad567/lutronbond/internal/eventbus"
	"github.com/nerrad567/lutronbond/internal/infrastructure/metrics"
)

// Default reconnect timing.
const (
	defaultReconnectDelay    = 5 * time.Second
	defaultReconnectMaxDelay = 2 * time.Minute
)

// State is the supervisor lifecycle state.
type State int

// Supervisor states.
const (
	StateIdle State = iota
	StateStarting
	StateRunning
	StateShuttingDown
	StateStopped
)

// String returns the state name.
func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateStarting:
		return "starting"
	case StateRunning:
		return "running"
	case StateShuttingDown:
		return "shutting_down"
	case StateStopped:
		return "stopped"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// Session is one bridge connection. *lutron.Session implements it.
type Session interface {
	Host() string
	Open(ctx context.Context) error
	Stream(ctx context.Context, fn func(lutron.Event)) error
	Close() error
}

// Ensure lutron.Session implements Session.
var _ Session = (*lutron.Session)(nil)

// Verifier checks that the downstream bridge answers before events flow.
type Verifier interface {
	VerifyReachable(ctx context.Context) (model, firmware string, err error)
}

// Keepalive polls the downstream bridge in the background.
type Keepalive interface {
	StartKeepalive(interval time.Duration) (cancel func() bool)
}

// Logger interface for optional logging.
type Logger interface {
	Debug(msg string, keysAndValues ...any)
	Info(msg string, keysAndValues ...any)
	Warn(msg string, keysAndValues ...any)
	Error(msg string, keysAndValues ...any)
}

// Dispatch describes one completed handler invocation.
type Dispatch struct {
	Event       lutron.Event
	Integration string
	Target      string
	Handled     bool
	Latency     time.Duration
	At          time.Time
}

// Options configures a Supervisor.
type Options struct {
	// Sessions are the bridge sessions to supervise, primary first.
	Sessions []Session

	// Bus receives every decoded event. Required.
	Bus *eventbus.Bus[lutron.Event]

	// Listeners are subscribed on the bus by AddListeners.
	Listeners []Listener

	// Verifier and Keepalive are optional downstream collaborators.
	Verifier          Verifier
	Keepalive         Keepalive
	KeepaliveInterval time.Duration

	// ReconnectDelay is the first wait after a dropped stream. It doubles
	// up to ReconnectMaxDelay. Defaults: 5s and 2m.
	ReconnectDelay    time.Duration
	ReconnectMaxDelay time.Duration

	// Metrics is optional.
	Metrics *metrics.Metrics

	// Logger is optional.
	Logger Logger
}

// Supervisor runs the session loop and routes events.
//
// Thread Safety: all methods are safe for concurrent use. Start may be
// called once.
type Supervisor struct {
	opts Options

	mu           sync.Mutex
	state        State
	shuttingDown bool
	cancel       context.CancelFunc
	listenersOn  bool

	observersMu sync.RWMutex
	observers   []func(lutron.Event)
	dispatchers []func(Dispatch)
}

// New creates an idle supervisor.
func New(opts Options) *Supervisor {
	if opts.ReconnectDelay <= 0 {
		opts.ReconnectDelay = defaultReconnectDelay
	}
	if opts.ReconnectMaxDelay < opts.ReconnectDelay {
		opts.ReconnectMaxDelay = max(defaultReconnectMaxDelay, opts.ReconnectDelay)
	}
	opts.Sessions = uniqueSessions(opts.Sessions)
	return &Supervisor{opts: opts}
}

// uniqueSessions keeps the first session for each host. Two entries for one
// bridge would otherwise open and stream the same connection concurrently.
func uniqueSessions(sessions []Session) []Session {
	seen := make(map[string]struct{}, len(sessions))
	out := make([]Session, 0, len(sessions))
	for _, sess := range sessions {
		if _, dup := seen[sess.Host()]; dup {
			continue
		}
		seen[sess.Host()] = struct{}{}
		out = append(out, sess)
	}
	return out
}

// State returns the current lifecycle state.
func (s *Supervisor) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// AddObserver registers fn to receive every handled event after it is
// published. Observers run on the session's stream goroutine and must not
// block.
func (s *Supervisor) AddObserver(fn func(lutron.Event)) {
	s.observersMu.Lock()
	s.observers = append(s.observers, fn)
	s.observersMu.Unlock()
}

// AddDispatchObserver registers fn to receive every handler outcome.
// It runs on the handler's goroutine.
func (s *Supervisor) AddDispatchObserver(fn func(Dispatch)) {
	s.observersMu.Lock()
	s.dispatchers = append(s.dispatchers, fn)
	s.observersMu.Unlock()
}

// AddListeners subscribes every configured listener on the bus. It is
// called by Start and is a no-op after the first call.
func (s *Supervisor) AddListeners() error {
	if s.opts.Bus == nil {
		return errors.New("controller: no event bus")
	}

	s.mu.Lock()
	if s.listenersOn {
		s.mu.Unlock()
		return nil
	}
	s.listenersOn = true
	s.mu.Unlock()

	for _, l := range s.opts.Listeners {
		s.logDebug("subscribing listener", "topic", l.Topic, "integration", l.Integration, "target", l.Target, "name", l.Name)
		s.opts.Bus.Subscribe(l.Topic, s.instrument(l))
	}
	s.logInfo("listeners registered", "count", len(s.opts.Listeners), "topics", len(s.opts.Bus.Topics()))
	return nil
}

// instrument wraps a listener's handler to time it and report the outcome.
func (s *Supervisor) instrument(l Listener) eventbus.Handler[lutron.Event] {
	return func(ctx context.Context, evt lutron.Event) bool {
		start := time.Now()
		handled := l.Handler(ctx, evt)
		latency := time.Since(start)

		s.opts.Metrics.ObserveDispatch(l.Integration, handled, latency)

		d := Dispatch{
			Event:       evt,
			Integration: l.Integration,
			Target:      l.Target,
			Handled:     handled,
			Latency:     latency,
			At:          start,
		}
		s.observersMu.RLock()
		dispatchers := s.dispatchers
		s.observersMu.RUnlock()
		for _, fn := range dispatchers {
			fn(d)
		}
		return handled
	}
}

// Handle routes one decoded event: events with an unknown operation are
// skipped, everything else is published on the bus under its
// "<bridge>:<device>" topic and passed to the observers.
func (s *Supervisor) Handle(evt lutron.Event) {
	if evt.Operation == lutron.OperationUnknown {
		s.logDebug("skipping event", "event", evt.String())
		return
	}

	s.logInfo("handling event", "event", evt.String())
	s.opts.Metrics.ObserveEvent(evt)

	if s.opts.Bus != nil {
		s.opts.Bus.Publish(evt.Topic(), evt)
	}

	s.observersMu.RLock()
	observers := s.observers
	s.observersMu.RUnlock()
	for _, fn := range observers {
		fn(evt)
	}
}

// Start runs the supervisor until Shutdown is called, ctx is cancelled or
// an unrecoverable error occurs. It returns nil on a requested shutdown.
func (s *Supervisor) Start(ctx context.Context) error {
	if len(s.opts.Sessions) == 0 {
		return ErrNoSessions
	}

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	s.mu.Lock()
	if s.state != StateIdle {
		s.mu.Unlock()
		return ErrAlreadyStarted
	}
	s.state = StateStarting
	s.cancel = cancel
	stopping := s.shuttingDown
	s.mu.Unlock()

	defer s.setState(StateStopped)

	if stopping {
		return nil
	}

	stop := context.AfterFunc(ctx, s.Shutdown)
	defer stop()

	if s.opts.Verifier != nil {
		model, firmware, err := s.opts.Verifier.VerifyReachable(runCtx)
		if err != nil {
			if s.stopping(runCtx) {
				return nil
			}
			return fmt.Errorf("%w: %w", ErrVerifyFailed, err)
		}
		s.logDebug("downstream bridge verified", "model", model, "firmware", firmware)
	}

	if s.opts.Keepalive != nil {
		cancelKeepalive := s.opts.Keepalive.StartKeepalive(s.opts.KeepaliveInterval)
		defer cancelKeepalive()
	}

	if err := s.AddListeners(); err != nil {
		return err
	}

	return s.run(runCtx)
}

// Shutdown stops the session loop: no further reconnects are attempted and
// every session is closed, which unblocks their streams. It is safe to call
// more than once and before Start.
func (s *Supervisor) Shutdown() {
	s.mu.Lock()
	if s.shuttingDown {
		s.mu.Unlock()
		return
	}
	s.shuttingDown = true
	if s.state != StateStopped && s.state != StateIdle {
		s.state = StateShuttingDown
	}
	cancel := s.cancel
	s.mu.Unlock()

	s.logInfo("shutting down")
	s.closeAll()
	if cancel != nil {
		cancel()
	}
}

func (s *Supervisor) run(ctx context.Context) error {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = s.opts.ReconnectDelay
	b.MaxInterval = s.opts.ReconnectMaxDelay
	b.Multiplier = 2
	b.Reset()

	for {
		if s.stopping(ctx) {
			return nil
		}

		if err := s.openAll(ctx); err != nil {
			s.closeAll()
			if s.stopping(ctx) {
				return nil
			}
			s.opts.Metrics.ObserveOpenFailure()
			s.logError("failed to open bridge sessions", "error", err)
			return fmt.Errorf("%w: %w", ErrOpenFailed, err)
		}

		s.setRunning()
		started := time.Now()
		err := s.streamAll(ctx)
		s.closeAll()

		if s.stopping(ctx) {
			return nil
		}
		switch {
		case err == nil:
			s.logInfo("bridge streams ended, reconnecting")
		case errors.Is(err, lutron.ErrIncompleteStream):
			s.logWarn("connection closed unexpectedly, retrying", "error", err)
		default:
			s.logError("bridge stream failed", "error", err)
			return err
		}

		// A stream that stayed up longer than the longest wait starts the
		// backoff over.
		if time.Since(started) > s.opts.ReconnectMaxDelay {
			b.Reset()
		}
		delay := b.NextBackOff()
		s.opts.Metrics.ObserveReconnect()
		s.logInfo("reconnecting to bridges", "delay", delay.String())

		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil
		case <-timer.C:
		}
	}
}

// openAll opens every session concurrently. The first failure cancels the
// others.
func (s *Supervisor) openAll(ctx context.Context) error {
	g, gctx := errgroup.WithContext(ctx)
	for _, sess := range s.opts.Sessions {
		g.Go(func() error {
			if err := sess.Open(gctx); err != nil {
				return fmt.Errorf("%s: %w", sess.Host(), err)
			}
			s.logInfo("bridge session ready", "host", sess.Host())
			return nil
		})
	}
	return g.Wait()
}

// streamAll streams every session until one fails. The others are then
// cancelled and the first error returned.
func (s *Supervisor) streamAll(ctx context.Context) error {
	g, gctx := errgroup.WithContext(ctx)
	for _, sess := range s.opts.Sessions {
		g.Go(func() error {
			return sess.Stream(gctx, s.Handle)
		})
	}
	return g.Wait()
}

func (s *Supervisor) closeAll() {
	for _, sess := range s.opts.Sessions {
		if err := sess.Close(); err != nil {
			s.logWarn("error closing bridge session", "host", sess.Host(), "error", err)
		}
	}
}

func (s *Supervisor) isShuttingDown() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.shuttingDown
}

// stopping reports whether a shutdown was requested or ctx is done.
func (s *Supervisor) stopping(ctx context.Context) bool {
	return ctx.Err() != nil || s.isShuttingDown()
}

func (s *Supervisor) setState(state State) {
	s.mu.Lock()
	s.state = state
	s.mu.Unlock()
}

// setRunning moves Starting to Running; a concurrent shutdown wins.
func (s *Supervisor) setRunning() {
	s.mu.Lock()
	if !s.shuttingDown {
		s.state = StateRunning
	}
	s.mu.Unlock()
}

func (s *Supervisor) logDebug(msg string, keysAndValues ...any) {
	if s.opts.Logger != nil {
		s.opts.Logger.Debug(msg, keysAndValues...)
	}
}

func (s *Supervisor) logInfo(msg string, keysAndValues ...any) {
	if s.opts.Logger != nil {
		s.opts.Logger.Info(msg, keysAndValues...)
	}
}

func (s *Supervisor) logWarn(msg string, keysAndValues ...any) {
	if s.opts.Logger != nil {
		s.opts.Logger.Warn(msg, keysAndValues...)
	}
}

func (s *Supervisor) logError(msg string, keysAndValues ...any) {
	if s.opts.Logger != nil {
		s.opts.Logger.Error(msg, keysAndValues...)
	}
}
