package lutron

import (
	"errors"
	"sort"
	"sync"
)

// Registry memoises one Session per bridge host.
//
// The supervisor owns a Registry and iterates it to open, stream and close
// every bridge; handlers look up the session for the bridge they target.
type Registry struct {
	cfg SessionConfig

	mu       sync.Mutex
	sessions map[string]*Session
	order    []string
}

// NewRegistry creates an empty registry. cfg is applied to every session it
// creates.
func NewRegistry(cfg SessionConfig) *Registry {
	return &Registry{
		cfg:      cfg,
		sessions: make(map[string]*Session),
	}
}

// Get returns the session for host, creating it on the default port if needed.
func (r *Registry) Get(host string) *Session {
	return r.GetWithPort(host, DefaultPort)
}

// GetWithPort returns the session for host, creating it on port if needed.
// An existing session keeps the port it was created with.
func (r *Registry) GetWithPort(host string, port int) *Session {
	r.mu.Lock()
	defer r.mu.Unlock()

	if s, ok := r.sessions[host]; ok {
		return s
	}
	s := NewSession(host, port, r.cfg)
	r.sessions[host] = s
	r.order = append(r.order, host)
	return s
}

// Lookup returns the session for host without creating one.
func (r *Registry) Lookup(host string) (*Session, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.sessions[host]
	return s, ok
}

// Sessions returns all sessions in creation order.
func (r *Registry) Sessions() []*Session {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]*Session, 0, len(r.order))
	for _, host := range r.order {
		out = append(out, r.sessions[host])
	}
	return out
}

// Hosts returns the registered hosts, sorted.
func (r *Registry) Hosts() []string {
	r.mu.Lock()
	defer r.mu.Unlock()

	hosts := append([]string(nil), r.order...)
	sort.Strings(hosts)
	return hosts
}

// SetLogger sets the logger on the registry's existing and future sessions.
func (r *Registry) SetLogger(logger Logger) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.cfg.Logger = logger
	for _, s := range r.sessions {
		s.SetLogger(logger)
	}
}

// CloseAll closes every session, joining any close errors.
func (r *Registry) CloseAll() error {
	var errs []error
	for _, s := range r.Sessions() {
		if err := s.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Reset closes and forgets every session.
func (r *Registry) Reset() error {
	err := r.CloseAll()

	r.mu.Lock()
	r.sessions = make(map[string]*Session)
	r.order = nil
	r.mu.Unlock()

	return err
}
