package tuya

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/cenkalti/backoff/v5"
)

// Default device settings.
const (
	DefaultPort       = 6668
	defaultTimeout    = 5 * time.Second
	defaultRetryLimit = 5
	retryDelay        = 250 * time.Millisecond

	// switchDP is the data point that carries the on/off state of a plug.
	switchDP = "1"
)

// Logger interface for optional logging.
type Logger interface {
	Debug(msg string, keysAndValues ...any)
	Info(msg string, keysAndValues ...any)
	Warn(msg string, keysAndValues ...any)
	Error(msg string, keysAndValues ...any)
}

// DialFunc opens a transport to address.
type DialFunc func(ctx context.Context, network, address string) (net.Conn, error)

// DeviceConfig describes one Tuya device.
type DeviceConfig struct {
	// ID is the Tuya device id.
	ID string

	// Address is the device IP or hostname.
	Address string

	// Port defaults to 6668.
	Port int

	// LocalKey is the 16-character AES key.
	LocalKey string

	// Version is "3.1" or "3.3".
	Version string

	// Timeout bounds each socket operation. Default: 5 seconds.
	Timeout time.Duration

	// RetryLimit is the number of attempts per command. Default: 5.
	RetryLimit int

	// Dial replaces the network dialer, mainly for tests.
	Dial DialFunc
}

// Device is a Tuya outlet reachable over the LAN.
//
// Each command opens its own connection; devices accept a single client at
// a time, so commands to one device are serialised.
type Device struct {
	cfg DeviceConfig
	key []byte

	mu  sync.Mutex
	seq atomic.Uint32
}

// NewDevice validates cfg and returns a device handle. No connection is made.
func NewDevice(cfg DeviceConfig) (*Device, error) {
	if cfg.ID == "" || cfg.Address == "" {
		return nil, fmt.Errorf("%w: id and address are required", ErrInvalidDevice)
	}
	if cfg.Version != Version31 && cfg.Version != Version33 {
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedVersion, cfg.Version)
	}
	if len(cfg.LocalKey) != 16 {
		return nil, fmt.Errorf("%w: want 16 bytes, got %d", ErrInvalidKey, len(cfg.LocalKey))
	}
	if cfg.Port <= 0 {
		cfg.Port = DefaultPort
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}
	if cfg.RetryLimit <= 0 {
		cfg.RetryLimit = defaultRetryLimit
	}
	if cfg.Dial == nil {
		var d net.Dialer
		cfg.Dial = d.DialContext
	}
	return &Device{cfg: cfg, key: []byte(cfg.LocalKey)}, nil
}

// ID returns the device id.
func (d *Device) ID() string { return d.cfg.ID }

// TurnOn switches the outlet on.
func (d *Device) TurnOn(ctx context.Context) error { return d.SetSwitch(ctx, true) }

// TurnOff switches the outlet off.
func (d *Device) TurnOff(ctx context.Context) error { return d.SetSwitch(ctx, false) }

// SetSwitch sets data point 1, retrying on transport errors.
func (d *Device) SetSwitch(ctx context.Context, on bool) error {
	doc, err := json.Marshal(controlDoc{
		DevID: d.cfg.ID,
		UID:   d.cfg.ID,
		T:     strconv.FormatInt(time.Now().Unix(), 10),
		DPS:   map[string]any{switchDP: on},
	})
	if err != nil {
		return err
	}
	payload, err := encodeControlPayload(d.cfg.Version, d.key, doc)
	if err != nil {
		return err
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	attempts := 0
	_, err = backoff.Retry(ctx, func() (struct{}, error) {
		attempts++
		err := d.exchange(ctx, CmdControl, payload)
		if err != nil && permanent(err) {
			return struct{}{}, backoff.Permanent(err)
		}
		return struct{}{}, err
	},
		backoff.WithBackOff(backoff.NewConstantBackOff(retryDelay)),
		backoff.WithMaxTries(uint(d.cfg.RetryLimit)),
	)
	if err != nil {
		return fmt.Errorf("%w: device %s after %d attempts: %w", ErrRequestFailed, d.cfg.ID, attempts, err)
	}
	return nil
}

type controlDoc struct {
	DevID string         `json:"devId"`
	UID   string         `json:"uid"`
	T     string         `json:"t"`
	DPS   map[string]any `json:"dps"`
}

// exchange sends one frame and waits for the device's answer to it.
func (d *Device) exchange(ctx context.Context, cmd uint32, payload []byte) error {
	address := net.JoinHostPort(d.cfg.Address, strconv.Itoa(d.cfg.Port))

	dialCtx, cancel := context.WithTimeout(ctx, d.cfg.Timeout)
	defer cancel()
	conn, err := d.cfg.Dial(dialCtx, "tcp", address)
	if err != nil {
		return fmt.Errorf("dial %s: %w", address, err)
	}
	defer conn.Close()

	deadline := time.Now().Add(d.cfg.Timeout)
	if dl, ok := ctx.Deadline(); ok && dl.Before(deadline) {
		deadline = dl
	}
	if err := conn.SetDeadline(deadline); err != nil {
		return err
	}

	seq := d.seq.Add(1)
	if _, err := conn.Write(EncodeFrame(seq, cmd, payload)); err != nil {
		return fmt.Errorf("write: %w", err)
	}

	for {
		msg, err := readFrame(conn)
		if err != nil {
			return err
		}
		if msg.Cmd != cmd {
			// Status pushes can interleave with the reply.
			continue
		}
		if msg.HasCode && msg.ReturnCode != 0 {
			body, _ := decodePayload(d.cfg.Version, d.key, msg.Payload)
			return fmt.Errorf("%w: return code %d: %s", ErrCommandRejected, msg.ReturnCode, body)
		}
		return nil
	}
}

func readFrame(r io.Reader) (Message, error) {
	header := make([]byte, headerSize)
	if _, err := io.ReadFull(r, header); err != nil {
		return Message{}, fmt.Errorf("read header: %w", err)
	}
	total, err := frameLength(header)
	if err != nil {
		return Message{}, err
	}
	frame := make([]byte, total)
	copy(frame, header)
	if _, err := io.ReadFull(r, frame[headerSize:]); err != nil {
		return Message{}, fmt.Errorf("read body: %w", err)
	}
	return DecodeFrame(frame)
}

// permanent reports errors that retrying cannot fix.
func permanent(err error) bool {
	return errors.Is(err, ErrCommandRejected) || errors.Is(err, ErrInvalidKey) || errors.Is(err, ErrUnsupportedVersion)
}
