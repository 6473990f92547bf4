package api

import (
	"net/http"
	"time"

	"github.com/nerrad567/lutronbond/internal/bridges/lutron"
	"github.com/nerrad567/lutronbond/internal/controller"
	"github.com/nerrad567/lutronbond/internal/infrastructure/database"
)

// Overall status values.
const (
	StatusOK       = "ok"
	StatusDegraded = "degraded"
)

var sessionReady = lutron.StateReady.String()

// StatusResponse is the body of GET /api/v1/status.
type StatusResponse struct {
	Status        string          `json:"status"`
	Version       string          `json:"version"`
	Timestamp     string          `json:"timestamp"`
	UptimeSeconds int64           `json:"uptime_seconds"`
	Supervisor    string          `json:"supervisor,omitempty"`
	Sessions      []SessionStatus `json:"sessions"`
	Listeners     map[string]int  `json:"listeners,omitempty"`
	Bus           *BusStatus      `json:"bus,omitempty"`
	Journal       *JournalStatus  `json:"journal,omitempty"`
}

// SessionStatus reports one bridge session.
type SessionStatus struct {
	Bridge        string     `json:"bridge"`
	State         string     `json:"state"`
	FramesRx      uint64     `json:"frames_rx"`
	ParseErrors   uint64     `json:"parse_errors"`
	CommandsTx    uint64     `json:"commands_tx"`
	LoginFailures uint64     `json:"login_failures"`
	Connects      uint64     `json:"connects"`
	LastActivity  *time.Time `json:"last_activity,omitempty"`
}

// BusStatus reports event bus counters.
type BusStatus struct {
	Published  uint64 `json:"published"`
	Unrouted   uint64 `json:"unrouted"`
	Dispatched uint64 `json:"dispatched"`
	Handled    uint64 `json:"handled"`
	Skipped    uint64 `json:"skipped"`
	Panics     uint64 `json:"panics"`
	InFlight   int64  `json:"in_flight"`
}

// JournalStatus reports the journal recorder and its database schema.
type JournalStatus struct {
	Recorded          uint64     `json:"recorded"`
	Dropped           uint64     `json:"dropped"`
	Failed            uint64     `json:"failed"`
	Pruned            uint64     `json:"pruned"`
	Queued            int        `json:"queued"`
	SchemaVersion     string     `json:"schema_version,omitempty"`
	SchemaAppliedAt   *time.Time `json:"schema_applied_at,omitempty"`
	PendingMigrations int        `json:"pending_migrations"`
}

// handleStatus reports the live state of sessions, supervisor, bus and journal.
//
// Status is "degraded" when any session is not ready or the supervisor is
// not running. The response code is 200 either way.
func (s *Server) handleStatus(w http.ResponseWriter, _ *http.Request) {
	resp := StatusResponse{
		Status:        StatusOK,
		Version:       s.version,
		Timestamp:     time.Now().UTC().Format(time.RFC3339),
		UptimeSeconds: int64(time.Since(s.startTime).Seconds()),
		Sessions:      []SessionStatus{},
	}

	if s.sources.Supervisor != nil {
		state := s.sources.Supervisor()
		resp.Supervisor = state.String()
		if state != controller.StateRunning {
			resp.Status = StatusDegraded
		}
	}

	if s.sources.Sessions != nil {
		for _, st := range s.sources.Sessions() {
			ss := SessionStatus{
				Bridge:        st.Host,
				State:         st.State,
				FramesRx:      st.FramesRx,
				ParseErrors:   st.ParseErrors,
				CommandsTx:    st.CommandsTx,
				LoginFailures: st.LoginFailures,
				Connects:      st.Connects,
			}
			if !st.LastActivity.IsZero() {
				at := st.LastActivity.UTC()
				ss.LastActivity = &at
			}
			if st.State != sessionReady {
				resp.Status = StatusDegraded
			}
			resp.Sessions = append(resp.Sessions, ss)
		}
	}

	if s.sources.Listeners != nil {
		resp.Listeners = s.sources.Listeners()
	}

	if s.sources.Bus != nil {
		b := s.sources.Bus()
		resp.Bus = &BusStatus{
			Published:  b.Published,
			Unrouted:   b.Unrouted,
			Dispatched: b.Dispatched,
			Handled:    b.Handled,
			Skipped:    b.Skipped,
			Panics:     b.Panics,
			InFlight:   b.InFlight,
		}
	}

	if s.sources.Recorder != nil {
		r := s.sources.Recorder()
		resp.Journal = &JournalStatus{
			Recorded: r.Recorded,
			Dropped:  r.Dropped,
			Failed:   r.Failed,
			Pruned:   r.Pruned,
			Queued:   r.Queued,
		}
	}

	if s.sources.Schema != nil {
		if resp.Journal == nil {
			resp.Journal = &JournalStatus{}
		}
		applySchema(resp.Journal, s.sources.Schema())
	}

	writeJSON(w, http.StatusOK, resp)
}

func applySchema(j *JournalStatus, schema database.Schema) {
	j.SchemaVersion = schema.Version
	j.PendingMigrations = schema.Pending
	if !schema.AppliedAt.IsZero() {
		at := schema.AppliedAt.UTC()
		j.SchemaAppliedAt = &at
	}
}
