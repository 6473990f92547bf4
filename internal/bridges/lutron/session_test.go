package lutron

import (
	"bufio"
	"context"
	"errors"
	"net"
	"strings"
	"sync"
	"testing"
	"time"
)

// fakeBridge is the far end of a net.Pipe standing in for a bridge.
type fakeBridge struct {
	t      *testing.T
	conn   net.Conn
	reader *bufio.Reader
}

// newPipeSession returns a session whose dialer hands out one end of a pipe,
// and the fake bridge holding the other end.
func newPipeSession(t *testing.T, cfg SessionConfig) (*Session, *fakeBridge) {
	t.Helper()
	client, server := net.Pipe()
	t.Cleanup(func() {
		client.Close()
		server.Close()
	})

	cfg.Dial = func(ctx context.Context, network, address string) (net.Conn, error) {
		if address != "10.0.0.1:23" {
			t.Errorf("dial address = %q, want 10.0.0.1:23", address)
		}
		return client, nil
	}
	cfg.WriteTimeout = 2 * time.Second

	return NewSession(testBridge, 23, cfg), &fakeBridge{t: t, conn: server, reader: bufio.NewReader(server)}
}

func (f *fakeBridge) write(s string) {
	f.t.Helper()
	if _, err := f.conn.Write([]byte(s)); err != nil {
		f.t.Errorf("fake bridge write %q: %v", s, err)
	}
}

func (f *fakeBridge) readLine() string {
	f.t.Helper()
	line, err := f.reader.ReadString('\n')
	if err != nil {
		f.t.Errorf("fake bridge read: %v", err)
	}
	return line
}

// handshake plays the standard prompt sequence and returns what the client sent.
func (f *fakeBridge) handshake() []string {
	f.write(LoginPrompt)
	user := f.readLine()
	f.write(PasswordPrompt)
	pass := f.readLine()
	f.write(ReadyPrompt)
	return []string{user, pass}
}

func openPipeSession(t *testing.T) (*Session, *fakeBridge) {
	t.Helper()
	s, bridge := newPipeSession(t, SessionConfig{})

	done := make(chan []string, 1)
	go func() { done <- bridge.handshake() }()

	if err := s.Open(context.Background()); err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	<-done
	return s, bridge
}

func TestSessionLogin(t *testing.T) {
	s, bridge := newPipeSession(t, SessionConfig{})

	if err := s.Connect(context.Background()); err != nil {
		t.Fatalf("Connect() error = %v", err)
	}
	if s.State() != StateConnected {
		t.Fatalf("State() = %v, want connected", s.State())
	}

	sent := make(chan []string, 1)
	go func() { sent <- bridge.handshake() }()

	if err := s.Login(context.Background()); err != nil {
		t.Fatalf("Login() error = %v", err)
	}
	if s.State() != StateReady {
		t.Errorf("State() = %v, want ready", s.State())
	}

	got := <-sent
	if got[0] != "lutron\r\n" || got[1] != "integration\r\n" {
		t.Errorf("credentials sent = %q", got)
	}

	// A second login is a no-op.
	if err := s.Login(context.Background()); err != nil {
		t.Errorf("second Login() error = %v", err)
	}
}

func TestSessionLoginCustomCredentials(t *testing.T) {
	s, bridge := newPipeSession(t, SessionConfig{Username: "admin", Password: "secret"})

	sent := make(chan []string, 1)
	go func() { sent <- bridge.handshake() }()

	if err := s.Open(context.Background()); err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	got := <-sent
	if got[0] != "admin\r\n" || got[1] != "secret\r\n" {
		t.Errorf("credentials sent = %q", got)
	}
}

func TestSessionLoginSkipsUnexpectedData(t *testing.T) {
	s, bridge := newPipeSession(t, SessionConfig{})

	go func() {
		bridge.write("\r\n")
		bridge.handshake()
	}()

	if err := s.Open(context.Background()); err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	if s.State() != StateReady {
		t.Errorf("State() = %v, want ready", s.State())
	}
}

func TestSessionLoginExhaustion(t *testing.T) {
	s, bridge := newPipeSession(t, SessionConfig{})

	var (
		mu        sync.Mutex
		usernames int
	)
	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := 0; i < defaultLoginAttempts; i++ {
			bridge.write(LoginPrompt)
			if line := bridge.readLine(); line == "lutron\r\n" {
				mu.Lock()
				usernames++
				mu.Unlock()
			}
		}
	}()

	err := s.Open(context.Background())
	if !errors.Is(err, ErrLoginFailed) {
		t.Fatalf("Open() error = %v, want ErrLoginFailed", err)
	}
	<-done

	mu.Lock()
	defer mu.Unlock()
	if usernames != 5 {
		t.Errorf("username written %d times, want 5", usernames)
	}
	if s.State() == StateReady {
		t.Error("session must not be ready after failed login")
	}
	if s.Stats().LoginFailures != 1 {
		t.Errorf("LoginFailures = %d, want 1", s.Stats().LoginFailures)
	}
}

func TestSessionLoginNotConnected(t *testing.T) {
	s := NewSession(testBridge, 23, SessionConfig{})
	if err := s.Login(context.Background()); !errors.Is(err, ErrNotConnected) {
		t.Errorf("Login() error = %v, want ErrNotConnected", err)
	}
}

func TestSessionConnectFailure(t *testing.T) {
	dialErr := errors.New("connection refused")
	s := NewSession(testBridge, 23, SessionConfig{
		Dial: func(ctx context.Context, network, address string) (net.Conn, error) {
			return nil, dialErr
		},
	})

	err := s.Open(context.Background())
	if !errors.Is(err, ErrConnectionFailed) || !errors.Is(err, dialErr) {
		t.Errorf("Open() error = %v, want ErrConnectionFailed wrapping dial error", err)
	}
	if s.State() != StateDisconnected {
		t.Errorf("State() = %v, want disconnected", s.State())
	}
}

func TestSessionStream(t *testing.T) {
	s, bridge := openPipeSession(t)

	go func() {
		bridge.write("~DEVICE,16,2,3\r\n")
		bridge.write("garbage\r\n")
		bridge.write("GNET> ~OUTPUT,16,1,75.00\r\n")
		bridge.conn.Close()
	}()

	var events []Event
	err := s.Stream(context.Background(), func(evt Event) {
		events = append(events, evt)
	})

	if !errors.Is(err, ErrIncompleteStream) {
		t.Fatalf("Stream() error = %v, want ErrIncompleteStream", err)
	}
	if len(events) != 2 {
		t.Fatalf("got %d events, want 2: %v", len(events), events)
	}
	if events[0].Component != ComponentBtn1 || events[0].Action != DevicePress.Action() {
		t.Errorf("events[0] = %s", events[0])
	}
	if events[1].Operation != OperationOutput || events[1].Parameters != "75.00" || events[1].Bridge != testBridge {
		t.Errorf("events[1] = %s", events[1])
	}

	stats := s.Stats()
	if stats.FramesRx != 3 || stats.ParseErrors != 1 {
		t.Errorf("Stats() = %+v, want 3 frames and 1 parse error", stats)
	}
}

func TestSessionStreamSplitsOnCRLF(t *testing.T) {
	s, bridge := openPipeSession(t)

	go func() {
		bridge.write("~OUTPUT,16,1,75.00\n")
		bridge.write("\r\n")
		bridge.write("~DEVICE,16,2,3\r\n")
		bridge.conn.Close()
	}()

	var events []Event
	err := s.Stream(context.Background(), func(evt Event) {
		events = append(events, evt)
	})

	if !errors.Is(err, ErrIncompleteStream) {
		t.Fatalf("Stream() error = %v, want ErrIncompleteStream", err)
	}
	if len(events) != 2 {
		t.Fatalf("got %d events, want 2: %v", len(events), events)
	}
	if events[0].Operation != OperationOutput || events[0].Parameters != "75.00" {
		t.Errorf("events[0] = %s", events[0])
	}
	if stats := s.Stats(); stats.FramesRx != 2 || stats.ParseErrors != 0 {
		t.Errorf("Stats() = %+v, want 2 frames and no parse errors", stats)
	}
}

func TestReadFrame(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  []string
	}{
		{"crlf", "~A\r\n~B\r\n", []string{"~A\r\n", "~B\r\n"}},
		{"bare lf inside frame", "~A\n1\r\n", []string{"~A\n1\r\n"}},
		{"oversized", strings.Repeat("x\n", maxFrameLen/2) + "y\r\n", []string{strings.Repeat("x\n", maxFrameLen/2), "y\r\n"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := bufio.NewReader(strings.NewReader(tt.input))
			for i, want := range tt.want {
				got, err := readFrame(r)
				if err != nil {
					t.Fatalf("frame %d: error = %v", i, err)
				}
				if string(got) != want {
					t.Errorf("frame %d = %q, want %q", i, got, want)
				}
			}
		})
	}
}

func TestSessionStreamCancel(t *testing.T) {
	s, _ := openPipeSession(t)

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() { errCh <- s.Stream(ctx, func(Event) {}) }()

	time.Sleep(20 * time.Millisecond)
	cancel()

	select {
	case err := <-errCh:
		if !errors.Is(err, context.Canceled) {
			t.Errorf("Stream() error = %v, want context.Canceled", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Stream() did not return after cancel")
	}
}

func TestSessionStreamNotReady(t *testing.T) {
	s := NewSession(testBridge, 23, SessionConfig{})
	if err := s.Stream(context.Background(), func(Event) {}); !errors.Is(err, ErrNotReady) {
		t.Errorf("Stream() error = %v, want ErrNotReady", err)
	}
}

func TestSessionSend(t *testing.T) {
	s, bridge := openPipeSession(t)

	cmd := Command{Operation: OperationOutput, Device: 1, Component: ComponentAny, Action: OutputSetLevel.Action(), Parameters: "75", Bridge: testBridge}

	got := make(chan string, 1)
	go func() { got <- bridge.readLine() }()

	if err := s.Send(context.Background(), cmd); err != nil {
		t.Fatalf("Send() error = %v", err)
	}
	if line := <-got; line != "#OUTPUT,1,1,75\r\n" {
		t.Errorf("bridge received %q", line)
	}
	if s.Stats().CommandsTx != 1 {
		t.Errorf("CommandsTx = %d, want 1", s.Stats().CommandsTx)
	}
}

func TestSessionSendErrors(t *testing.T) {
	cmd := Command{Operation: OperationDevice, Device: 2, Component: ComponentBtn3, Action: DevicePress.Action(), Bridge: testBridge}

	t.Run("not connected", func(t *testing.T) {
		s := NewSession(testBridge, 23, SessionConfig{})
		if err := s.Send(context.Background(), cmd); !errors.Is(err, ErrNotConnected) {
			t.Errorf("Send() error = %v, want ErrNotConnected", err)
		}
	})

	t.Run("not logged in", func(t *testing.T) {
		s, _ := newPipeSession(t, SessionConfig{})
		if err := s.Connect(context.Background()); err != nil {
			t.Fatalf("Connect() error = %v", err)
		}
		if err := s.Send(context.Background(), cmd); !errors.Is(err, ErrNotReady) {
			t.Errorf("Send() error = %v, want ErrNotReady", err)
		}
	})

	t.Run("cross bridge", func(t *testing.T) {
		s, _ := openPipeSession(t)
		other := cmd
		other.Bridge = "10.0.0.2"
		err := s.Send(context.Background(), other)
		if !errors.Is(err, ErrCrossBridge) {
			t.Errorf("Send() error = %v, want ErrCrossBridge", err)
		}
		if !strings.Contains(err.Error(), "does not match") {
			t.Errorf("error %q should describe the mismatch", err)
		}
	})

	t.Run("invalid action", func(t *testing.T) {
		s, _ := openPipeSession(t)
		bad := cmd
		bad.Action = Action{}
		if err := s.Send(context.Background(), bad); !errors.Is(err, ErrInvalidAction) {
			t.Errorf("Send() error = %v, want ErrInvalidAction", err)
		}
	})
}

func TestSessionClose(t *testing.T) {
	s, _ := openPipeSession(t)

	if err := s.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}
	if s.State() != StateDisconnected {
		t.Errorf("State() = %v, want disconnected", s.State())
	}
	if err := s.Close(); err != nil {
		t.Errorf("second Close() error = %v", err)
	}
}

func TestSessionDefaults(t *testing.T) {
	s := NewSession("bridge.local", 0, SessionConfig{})
	if s.Port() != DefaultPort {
		t.Errorf("Port() = %d, want %d", s.Port(), DefaultPort)
	}
	if s.cfg.Username != "lutron" || s.cfg.Password != "integration" || s.cfg.LoginAttempts != 5 {
		t.Errorf("defaults = %+v", s.cfg)
	}
}

func TestStateString(t *testing.T) {
	tests := map[State]string{
		StateDisconnected: "disconnected",
		StateConnected:    "connected",
		StateLoggingIn:    "logging_in",
		StateReady:        "ready",
	}
	for state, want := range tests {
		if got := state.String(); got != want {
			t.Errorf("State(%d).String() = %q, want %q", int(state), got, want)
		}
	}
}
