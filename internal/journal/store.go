package journal

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/nerrad567/lutronbond/internal/bridges/lutron"
)

const (
	defaultListLimit = 50
	maxListLimit     = 500

	// timeLayout keeps sub-second ordering in TEXT columns.
	timeLayout = "2006-01-02T15:04:05.000000Z07:00"
)

// EventEntry is one journalled bridge event.
type EventEntry struct {
	ID         string    `json:"id"`
	ReceivedAt time.Time `json:"received_at"`
	Bridge     string    `json:"bridge"`
	Device     int       `json:"device"`
	Operation  string    `json:"operation"`
	Component  string    `json:"component"`
	Action     string    `json:"action"`
	Parameters string    `json:"parameters,omitempty"`
}

// EventEntryFrom builds an entry for evt received at receivedAt.
// The ID is left empty; RecordEvent assigns one.
func EventEntryFrom(evt lutron.Event, receivedAt time.Time) EventEntry {
	return EventEntry{
		ReceivedAt: receivedAt,
		Bridge:     evt.Bridge,
		Device:     evt.Device,
		Operation:  evt.Operation.String(),
		Component:  evt.Component.Name(),
		Action:     evt.Action.Name(),
		Parameters: evt.Parameters,
	}
}

// DispatchEntry is one journalled handler invocation.
type DispatchEntry struct {
	ID           string        `json:"id"`
	DispatchedAt time.Time     `json:"dispatched_at"`
	Bridge       string        `json:"bridge"`
	Device       int           `json:"device"`
	Component    string        `json:"component"`
	Action       string        `json:"action"`
	Integration  string        `json:"integration"`
	Target       string        `json:"target"`
	Handled      bool          `json:"handled"`
	Latency      time.Duration `json:"latency"`
}

// Store reads and writes the journal tables.
type Store struct {
	db *sql.DB
}

// NewStore creates a store over an open, migrated database.
func NewStore(db *sql.DB) *Store {
	return &Store{db: db}
}

// RecordEvent inserts entry and returns its id. A missing ReceivedAt is set
// to now.
func (s *Store) RecordEvent(ctx context.Context, entry EventEntry) (string, error) {
	if entry.Bridge == "" {
		return "", fmt.Errorf("%w: bridge is required", ErrInvalidEntry)
	}
	if entry.ID == "" {
		entry.ID = uuid.NewString()
	}
	if entry.ReceivedAt.IsZero() {
		entry.ReceivedAt = time.Now()
	}

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO events (id, received_at, bridge, device, operation, component, action, parameters)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		entry.ID,
		formatTime(entry.ReceivedAt),
		entry.Bridge,
		entry.Device,
		entry.Operation,
		entry.Component,
		entry.Action,
		entry.Parameters,
	)
	if err != nil {
		return "", fmt.Errorf("inserting event: %w", err)
	}
	return entry.ID, nil
}

// RecordDispatch inserts entry and returns its id.
func (s *Store) RecordDispatch(ctx context.Context, entry DispatchEntry) (string, error) {
	if entry.Integration == "" {
		return "", fmt.Errorf("%w: integration is required", ErrInvalidEntry)
	}
	if entry.ID == "" {
		entry.ID = uuid.NewString()
	}
	if entry.DispatchedAt.IsZero() {
		entry.DispatchedAt = time.Now()
	}

	handled := 0
	if entry.Handled {
		handled = 1
	}

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO dispatches (id, dispatched_at, bridge, device, component, action, integration, target, handled, latency_us)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		entry.ID,
		formatTime(entry.DispatchedAt),
		entry.Bridge,
		entry.Device,
		entry.Component,
		entry.Action,
		entry.Integration,
		entry.Target,
		handled,
		entry.Latency.Microseconds(),
	)
	if err != nil {
		return "", fmt.Errorf("inserting dispatch: %w", err)
	}
	return entry.ID, nil
}

// Filter narrows list queries. Zero fields match everything.
type Filter struct {
	Bridge string
	Device int
	Limit  int
}

func (f Filter) where() (string, []any) {
	clause := "WHERE 1=1"
	var args []any
	if f.Bridge != "" {
		clause += " AND bridge = ?"
		args = append(args, f.Bridge)
	}
	if f.Device != 0 {
		clause += " AND device = ?"
		args = append(args, f.Device)
	}
	return clause, args
}

func (f Filter) limit() int {
	switch {
	case f.Limit <= 0:
		return defaultListLimit
	case f.Limit > maxListLimit:
		return maxListLimit
	default:
		return f.Limit
	}
}

// RecentEvents returns events matching f, newest first.
func (s *Store) RecentEvents(ctx context.Context, f Filter) ([]EventEntry, error) {
	where, args := f.where()
	args = append(args, f.limit())

	rows, err := s.db.QueryContext(ctx,
		`SELECT id, received_at, bridge, device, operation, component, action, parameters
		 FROM events `+where+`
		 ORDER BY received_at DESC
		 LIMIT ?`,
		args...,
	)
	if err != nil {
		return nil, fmt.Errorf("querying events: %w", err)
	}
	defer rows.Close()

	entries := make([]EventEntry, 0)
	for rows.Next() {
		var e EventEntry
		var receivedAt string
		if err := rows.Scan(&e.ID, &receivedAt, &e.Bridge, &e.Device, &e.Operation, &e.Component, &e.Action, &e.Parameters); err != nil {
			return nil, fmt.Errorf("scanning event: %w", err)
		}
		if e.ReceivedAt, err = parseTime(receivedAt); err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating events: %w", err)
	}
	return entries, nil
}

// RecentDispatches returns dispatches matching f, newest first.
func (s *Store) RecentDispatches(ctx context.Context, f Filter) ([]DispatchEntry, error) {
	where, args := f.where()
	args = append(args, f.limit())

	rows, err := s.db.QueryContext(ctx,
		`SELECT id, dispatched_at, bridge, device, component, action, integration, target, handled, latency_us
		 FROM dispatches `+where+`
		 ORDER BY dispatched_at DESC
		 LIMIT ?`,
		args...,
	)
	if err != nil {
		return nil, fmt.Errorf("querying dispatches: %w", err)
	}
	defer rows.Close()

	entries := make([]DispatchEntry, 0)
	for rows.Next() {
		var d DispatchEntry
		var dispatchedAt string
		var handled int
		var latencyUS int64
		if err := rows.Scan(&d.ID, &dispatchedAt, &d.Bridge, &d.Device, &d.Component, &d.Action,
			&d.Integration, &d.Target, &handled, &latencyUS); err != nil {
			return nil, fmt.Errorf("scanning dispatch: %w", err)
		}
		if d.DispatchedAt, err = parseTime(dispatchedAt); err != nil {
			return nil, err
		}
		d.Handled = handled != 0
		d.Latency = time.Duration(latencyUS) * time.Microsecond
		entries = append(entries, d)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating dispatches: %w", err)
	}
	return entries, nil
}

// Prune deletes events and dispatches older than olderThan and returns the
// number of rows removed.
func (s *Store) Prune(ctx context.Context, olderThan time.Duration) (int64, error) {
	if olderThan <= 0 {
		return 0, fmt.Errorf("%w: retention must be positive", ErrInvalidEntry)
	}
	cutoff := formatTime(time.Now().Add(-olderThan))

	var total int64
	for _, q := range []string{
		"DELETE FROM events WHERE received_at < ?",
		"DELETE FROM dispatches WHERE dispatched_at < ?",
	} {
		result, err := s.db.ExecContext(ctx, q, cutoff)
		if err != nil {
			return total, fmt.Errorf("pruning journal: %w", err)
		}
		n, err := result.RowsAffected()
		if err != nil {
			return total, fmt.Errorf("checking rows affected: %w", err)
		}
		total += n
	}
	return total, nil
}

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func parseTime(value string) (time.Time, error) {
	t, err := time.Parse(timeLayout, value)
	if err == nil {
		return t, nil
	}
	if fallback, fallbackErr := time.Parse(time.RFC3339Nano, value); fallbackErr == nil {
		return fallback, nil
	}
	return time.Time{}, fmt.Errorf("parsing timestamp %q: %w", value, err)
}
