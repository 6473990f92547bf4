package lutron

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"net"
	"strconv"
	"sync"
	"sync/atomic"
	"time"
)

// Default session settings.
const (
	// defaultConnectTimeout bounds the TCP dial.
	defaultConnectTimeout = 10 * time.Second

	// defaultWriteTimeout bounds a single command write.
	defaultWriteTimeout = 5 * time.Second

	// defaultLoginAttempts is the number of prompt reads before giving up.
	defaultLoginAttempts = 5

	// loginReadSize caps each handshake read; prompts are short.
	loginReadSize = 32
)

// State is the lifecycle state of a Session.
type State int

// Session states.
const (
	StateDisconnected State = iota
	StateConnected
	StateLoggingIn
	StateReady
)

// String returns a lower-case state name for logs and status output.
func (s State) String() string {
	switch s {
	case StateDisconnected:
		return "disconnected"
	case StateConnected:
		return "connected"
	case StateLoggingIn:
		return "logging_in"
	case StateReady:
		return "ready"
	default:
		return "State(" + strconv.Itoa(int(s)) + ")"
	}
}

// DialFunc opens a transport to address. net.Dialer.DialContext satisfies it.
type DialFunc func(ctx context.Context, network, address string) (net.Conn, error)

// SessionConfig holds per-session settings. Zero values take defaults.
type SessionConfig struct {
	// Username and Password answer the login prompts.
	// Default: "lutron" / "integration".
	Username string
	Password string

	// LoginAttempts is the number of handshake reads before ErrLoginFailed.
	// Default: 5.
	LoginAttempts int

	// ConnectTimeout bounds the dial. Default: 10 seconds.
	ConnectTimeout time.Duration

	// WriteTimeout bounds each command write. Default: 5 seconds.
	WriteTimeout time.Duration

	// Dial replaces the network dialer, mainly for tests.
	Dial DialFunc

	// Logger is optional.
	Logger Logger
}

func (c *SessionConfig) applyDefaults() {
	if c.Username == "" {
		c.Username = DefaultUsername
	}
	if c.Password == "" {
		c.Password = DefaultPassword
	}
	if c.LoginAttempts <= 0 {
		c.LoginAttempts = defaultLoginAttempts
	}
	if c.ConnectTimeout <= 0 {
		c.ConnectTimeout = defaultConnectTimeout
	}
	if c.WriteTimeout <= 0 {
		c.WriteTimeout = defaultWriteTimeout
	}
	if c.Dial == nil {
		var d net.Dialer
		c.Dial = d.DialContext
	}
}

// SessionStats holds operational statistics for one session.
type SessionStats struct {
	Host          string
	State         string
	FramesRx      uint64
	ParseErrors   uint64
	CommandsTx    uint64
	LoginFailures uint64
	Connects      uint64
	LastActivity  time.Time
}

// Session is a persistent connection to one bridge.
//
// Lifecycle: Disconnected → Connect → Connected → Login → Ready → Close →
// Disconnected. Stream and Send require Ready.
//
// Thread Safety:
//   - All methods are safe for concurrent use.
//   - Stream must have at most one caller at a time; Send may run alongside it.
type Session struct {
	host string
	port int
	cfg  SessionConfig

	mu     sync.RWMutex
	conn   net.Conn
	reader *bufio.Reader
	state  State

	// writeMu serialises command writes on the shared connection.
	writeMu sync.Mutex

	log logSink

	framesRx      atomic.Uint64
	parseErrors   atomic.Uint64
	commandsTx    atomic.Uint64
	loginFailures atomic.Uint64
	connects      atomic.Uint64
	lastActivity  atomic.Int64
}

// NewSession creates a disconnected session for host:port.
func NewSession(host string, port int, cfg SessionConfig) *Session {
	cfg.applyDefaults()
	if port <= 0 {
		port = DefaultPort
	}
	s := &Session{host: host, port: port, cfg: cfg}
	s.log.set(cfg.Logger)
	return s
}

// Host returns the bridge host this session is bound to.
func (s *Session) Host() string { return s.host }

// Port returns the bridge port.
func (s *Session) Port() int { return s.port }

// SetLogger sets the logger for this session.
func (s *Session) SetLogger(logger Logger) { s.log.set(logger) }

// State returns the current lifecycle state.
func (s *Session) State() State {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state
}

// Connect opens the transport. Calling it on a connected session is a no-op.
func (s *Session) Connect(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.conn != nil {
		return nil
	}

	address := net.JoinHostPort(s.host, strconv.Itoa(s.port))
	s.log.debug("establishing connection to Lutron bridge", "address", address)

	dialCtx, cancel := context.WithTimeout(ctx, s.cfg.ConnectTimeout)
	defer cancel()

	conn, err := s.cfg.Dial(dialCtx, "tcp", address)
	if err != nil {
		return fmt.Errorf("%w: dial %s: %w", ErrConnectionFailed, address, err)
	}

	s.conn = conn
	s.reader = bufio.NewReader(conn)
	s.state = StateConnected
	s.connects.Add(1)
	s.touch()

	s.log.info("connected to Lutron bridge", "host", s.host)
	return nil
}

// Login runs the prompt handshake.
//
// Each attempt reads at most 32 bytes. A username prompt is answered with
// the username, a password prompt with the password, and the ready prompt
// completes the login. Bytes matching no prompt consume an attempt.
// A session that fails to log in should be closed by the caller.
func (s *Session) Login(ctx context.Context) error {
	s.mu.Lock()
	switch s.state {
	case StateDisconnected:
		s.mu.Unlock()
		return ErrNotConnected
	case StateReady:
		s.mu.Unlock()
		s.log.debug("already logged in", "host", s.host)
		return nil
	}
	s.state = StateLoggingIn
	conn, reader := s.conn, s.reader
	s.mu.Unlock()

	stop := context.AfterFunc(ctx, func() {
		_ = conn.SetReadDeadline(time.Now())
	})
	defer stop()

	s.log.debug("starting login", "host", s.host)
	buf := make([]byte, loginReadSize)

	for attempt := 0; attempt < s.cfg.LoginAttempts; attempt++ {
		n, err := reader.Read(buf)
		if err != nil {
			s.loginFailures.Add(1)
			if ctx.Err() != nil {
				return fmt.Errorf("%w: %w", ErrLoginFailed, ctx.Err())
			}
			return fmt.Errorf("%w: %w", ErrLoginFailed, err)
		}
		data := buf[:n]

		switch {
		case bytes.Contains(data, []byte(LoginPrompt)):
			s.log.debug("sending username", "host", s.host)
			if err := s.writeLine(ctx, s.cfg.Username); err != nil {
				return fmt.Errorf("%w: %w", ErrLoginFailed, err)
			}
		case bytes.Contains(data, []byte(PasswordPrompt)):
			s.log.debug("sending password", "host", s.host)
			if err := s.writeLine(ctx, s.cfg.Password); err != nil {
				return fmt.Errorf("%w: %w", ErrLoginFailed, err)
			}
		case bytes.Contains(data, []byte(ReadyPrompt)):
			s.mu.Lock()
			if s.conn == conn {
				s.state = StateReady
			}
			s.mu.Unlock()
			s.touch()
			s.log.info("logged in to Lutron bridge", "host", s.host)
			return nil
		default:
			s.log.debug("ignoring unexpected handshake data", "host", s.host, "data", string(data))
		}
	}

	s.loginFailures.Add(1)
	s.log.error("unable to log in", "host", s.host, "attempts", s.cfg.LoginAttempts)
	return ErrLoginFailed
}

// Open connects and logs in.
func (s *Session) Open(ctx context.Context) error {
	if err := s.Connect(ctx); err != nil {
		return err
	}
	return s.Login(ctx)
}

// Stream reads CRLF-terminated frames until the transport fails or ctx is
// cancelled, invoking fn for every decoded event.
//
// Frames that fail to decode are logged and skipped. A transport error or
// end of stream is returned wrapped in ErrIncompleteStream; cancellation
// returns ctx.Err().
func (s *Session) Stream(ctx context.Context, fn func(Event)) error {
	s.mu.RLock()
	state, conn, reader := s.state, s.conn, s.reader
	s.mu.RUnlock()

	if state != StateReady {
		return ErrNotReady
	}

	stop := context.AfterFunc(ctx, func() {
		_ = conn.SetReadDeadline(time.Now())
	})
	defer stop()

	s.log.info("listening for events", "host", s.host)

	for {
		line, err := readFrame(reader)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return fmt.Errorf("%w: %w", ErrIncompleteStream, err)
		}

		s.framesRx.Add(1)
		s.touch()
		s.log.debug("frame received", "host", s.host, "data", string(bytes.TrimSpace(line)))

		evt, err := ParseEvent(line, s.host)
		if err != nil {
			s.parseErrors.Add(1)
			s.log.error("error parsing event", "host", s.host, "error", err)
			continue
		}
		fn(evt)
	}
}

// maxFrameLen bounds a frame whose CRLF never arrives.
const maxFrameLen = 4096

// readFrame returns the next frame up to and including its CRLF. A bare LF
// does not end a frame.
func readFrame(r *bufio.Reader) ([]byte, error) {
	var frame []byte
	for {
		chunk, err := r.ReadBytes('\n')
		frame = append(frame, chunk...)
		if err != nil {
			return frame, err
		}
		if bytes.HasSuffix(frame, []byte(LineTerminator)) || len(frame) >= maxFrameLen {
			return frame, nil
		}
	}
}

// Send writes cmd to the bridge.
func (s *Session) Send(ctx context.Context, cmd Command) error {
	s.mu.RLock()
	conn, state := s.conn, s.state
	s.mu.RUnlock()

	if conn == nil {
		return ErrNotConnected
	}
	if state != StateReady {
		return ErrNotReady
	}
	if cmd.Bridge != s.host {
		return fmt.Errorf("%w: command for %s sent to %s", ErrCrossBridge, cmd.Bridge, s.host)
	}

	frame, err := cmd.Encode()
	if err != nil {
		return err
	}

	if err := s.write(ctx, conn, frame); err != nil {
		return err
	}

	s.commandsTx.Add(1)
	s.touch()
	return nil
}

// Close releases the transport. Safe to call multiple times.
func (s *Session) Close() error {
	s.mu.Lock()
	conn := s.conn
	s.conn = nil
	s.reader = nil
	s.state = StateDisconnected
	s.mu.Unlock()

	if conn == nil {
		return nil
	}

	s.log.info("closing connection", "host", s.host)
	if err := conn.Close(); err != nil && !errors.Is(err, net.ErrClosed) {
		return fmt.Errorf("lutron: close %s: %w", s.host, err)
	}
	s.log.info("connection closed", "host", s.host)
	return nil
}

// Stats returns current operational statistics.
func (s *Session) Stats() SessionStats {
	var last time.Time
	if ts := s.lastActivity.Load(); ts != 0 {
		last = time.Unix(ts, 0)
	}
	return SessionStats{
		Host:          s.host,
		State:         s.State().String(),
		FramesRx:      s.framesRx.Load(),
		ParseErrors:   s.parseErrors.Load(),
		CommandsTx:    s.commandsTx.Load(),
		LoginFailures: s.loginFailures.Load(),
		Connects:      s.connects.Load(),
		LastActivity:  last,
	}
}

func (s *Session) writeLine(ctx context.Context, line string) error {
	s.mu.RLock()
	conn := s.conn
	s.mu.RUnlock()

	if conn == nil {
		return ErrNotConnected
	}
	return s.write(ctx, conn, []byte(line+LineTerminator))
}

// write sends data with a deadline bounded by both ctx and WriteTimeout.
func (s *Session) write(ctx context.Context, conn net.Conn, data []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	deadline := time.Now().Add(s.cfg.WriteTimeout)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}

	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	if err := conn.SetWriteDeadline(deadline); err != nil {
		return fmt.Errorf("%w: set deadline: %w", ErrConnectionFailed, err)
	}
	if _, err := conn.Write(data); err != nil {
		return fmt.Errorf("%w: write: %w", ErrConnectionFailed, err)
	}
	return nil
}

func (s *Session) touch() {
	s.lastActivity.Store(time.Now().Unix())
}
