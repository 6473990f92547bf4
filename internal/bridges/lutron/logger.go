package lutron

import "sync"

// Logger interface for optional logging.
type Logger interface {
	Debug(msg string, keysAndValues ...any)
	Info(msg string, keysAndValues ...any)
	Warn(msg string, keysAndValues ...any)
	Error(msg string, keysAndValues ...any)
}

// logSink holds an optional Logger that can be swapped at runtime.
// All methods are no-ops while no logger is set.
type logSink struct {
	mu     sync.RWMutex
	logger Logger
}

func (s *logSink) set(logger Logger) {
	s.mu.Lock()
	s.logger = logger
	s.mu.Unlock()
}

func (s *logSink) get() Logger {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.logger
}

func (s *logSink) debug(msg string, keysAndValues ...any) {
	if l := s.get(); l != nil {
		l.Debug(msg, keysAndValues...)
	}
}

func (s *logSink) info(msg string, keysAndValues ...any) {
	if l := s.get(); l != nil {
		l.Info(msg, keysAndValues...)
	}
}

func (s *logSink) warn(msg string, keysAndValues ...any) {
	if l := s.get(); l != nil {
		l.Warn(msg, keysAndValues...)
	}
}

func (s *logSink) error(msg string, keysAndValues ...any) {
	if l := s.get(); l != nil {
		l.Error(msg, keysAndValues...)
	}
}
