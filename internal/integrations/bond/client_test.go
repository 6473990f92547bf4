package bond

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

type recordedRequest struct {
	Method string
	Path   string
	Token  string
	Body   map[string]any
}

// fakeBond is an httptest Bond bridge that fails the first failN requests.
type fakeBond struct {
	mu       sync.Mutex
	requests []recordedRequest
	failN    atomic.Int32
	status   int
	hits     atomic.Int32
}

func newFakeBond(failN, status int) *fakeBond {
	f := &fakeBond{status: status}
	f.failN.Store(int32(failN))
	return f
}

func (f *fakeBond) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	n := int(f.hits.Add(1))

	rec := recordedRequest{Method: r.Method, Path: r.URL.Path, Token: r.Header.Get(tokenHeader)}
	if data, _ := io.ReadAll(r.Body); len(data) > 0 {
		_ = json.Unmarshal(data, &rec.Body)
	}
	f.mu.Lock()
	f.requests = append(f.requests, rec)
	f.mu.Unlock()

	if n <= int(f.failN.Load()) {
		status := f.status
		if status == 0 {
			status = http.StatusServiceUnavailable
		}
		http.Error(w, "busy", status)
		return
	}

	switch r.URL.Path {
	case "/v2/sys/version":
		_ = json.NewEncoder(w).Encode(map[string]string{"model": "BD-1000", "fw_ver": "v3.1.0"})
	default:
		w.WriteHeader(http.StatusNoContent)
	}
}

func (f *fakeBond) recorded() []recordedRequest {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]recordedRequest(nil), f.requests...)
}

func newTestClient(t *testing.T, fake *fakeBond, logger Logger) *Client {
	t.Helper()
	srv := httptest.NewServer(fake)
	t.Cleanup(srv.Close)

	c, err := NewClient(Config{
		Host:       srv.URL,
		Token:      "secret-token",
		RetryCount: 3,
		RetryDelay: time.Millisecond,
		Logger:     logger,
	})
	if err != nil {
		t.Fatalf("NewClient() error = %v", err)
	}
	return c
}

func TestNewClientRequiresHost(t *testing.T) {
	if _, err := NewClient(Config{}); !errors.Is(err, ErrNotConfigured) {
		t.Errorf("NewClient() error = %v, want ErrNotConfigured", err)
	}
}

func TestClientVersion(t *testing.T) {
	fake := newFakeBond(0, 0)
	c := newTestClient(t, fake, nil)

	v, err := c.Version(context.Background())
	if err != nil {
		t.Fatalf("Version() error = %v", err)
	}
	if v.Model != "BD-1000" || v.FirmwareVersion != "v3.1.0" {
		t.Errorf("Version() = %+v", v)
	}
	if fake.recorded()[0].Token != "secret-token" {
		t.Errorf("token header = %q", fake.recorded()[0].Token)
	}
}

func TestClientDo(t *testing.T) {
	tests := []struct {
		name     string
		action   Action
		wantPath string
		wantBody map[string]any
	}{
		{
			name:     "without argument",
			action:   Action{Name: "TurnLightOn"},
			wantPath: "/v2/devices/6409d2a2/actions/TurnLightOn",
		},
		{
			name:     "with argument",
			action:   Action{Name: "SetSpeed", Argument: 2},
			wantPath: "/v2/devices/6409d2a2/actions/SetSpeed",
			wantBody: map[string]any{"argument": float64(2)},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fake := newFakeBond(0, 0)
			c := newTestClient(t, fake, nil)

			if err := c.Do(context.Background(), "6409d2a2", tt.action); err != nil {
				t.Fatalf("Do() error = %v", err)
			}

			req := fake.recorded()[0]
			if req.Method != http.MethodPut || req.Path != tt.wantPath {
				t.Errorf("request = %s %s, want PUT %s", req.Method, req.Path, tt.wantPath)
			}
			if len(req.Body) != len(tt.wantBody) {
				t.Fatalf("body = %v, want %v", req.Body, tt.wantBody)
			}
			for k, v := range tt.wantBody {
				if req.Body[k] != v {
					t.Errorf("body[%s] = %v, want %v", k, req.Body[k], v)
				}
			}
		})
	}
}

func TestClientRetries(t *testing.T) {
	t.Run("succeeds after two failures", func(t *testing.T) {
		fake := newFakeBond(2, 0)
		c := newTestClient(t, fake, nil)

		if err := c.Do(context.Background(), "dev", Action{Name: "Stop"}); err != nil {
			t.Fatalf("Do() error = %v", err)
		}
		if fake.hits.Load() != 3 {
			t.Errorf("hits = %d, want 3", fake.hits.Load())
		}
		if c.Stats().Retries != 2 {
			t.Errorf("Retries = %d, want 2", c.Stats().Retries)
		}
	})

	t.Run("gives up after retry count", func(t *testing.T) {
		fake := newFakeBond(100, 0)
		c := newTestClient(t, fake, nil)

		err := c.Do(context.Background(), "dev", Action{Name: "Stop"})
		if !errors.Is(err, ErrRequestFailed) {
			t.Fatalf("Do() error = %v, want ErrRequestFailed", err)
		}
		if fake.hits.Load() != 3 {
			t.Errorf("hits = %d, want 3", fake.hits.Load())
		}
		if c.Stats().Failures != 1 {
			t.Errorf("Failures = %d, want 1", c.Stats().Failures)
		}
	})

	t.Run("client errors are not retried", func(t *testing.T) {
		fake := newFakeBond(100, http.StatusUnauthorized)
		c := newTestClient(t, fake, nil)

		err := c.Do(context.Background(), "dev", Action{Name: "Stop"})
		if !errors.Is(err, ErrUnauthorized) {
			t.Errorf("Do() error = %v, want ErrUnauthorized", err)
		}
		var se *StatusError
		if !errors.As(err, &se) || se.Status != http.StatusUnauthorized {
			t.Errorf("Do() error = %v, want StatusError 401", err)
		}
		if fake.hits.Load() != 1 {
			t.Errorf("hits = %d, want 1", fake.hits.Load())
		}
	})

	t.Run("connection refused", func(t *testing.T) {
		srv := httptest.NewServer(http.NotFoundHandler())
		url := srv.URL
		srv.Close()

		c, err := NewClient(Config{Host: url, RetryCount: 2, RetryDelay: time.Millisecond})
		if err != nil {
			t.Fatalf("NewClient() error = %v", err)
		}
		if err := c.Do(context.Background(), "dev", Action{Name: "Stop"}); !errors.Is(err, ErrRequestFailed) {
			t.Errorf("Do() error = %v, want ErrRequestFailed", err)
		}
		if c.Stats().Requests != 2 {
			t.Errorf("Requests = %d, want 2", c.Stats().Requests)
		}
	})
}
