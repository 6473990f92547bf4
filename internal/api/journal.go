package api

import (
	"net/http"
	"strconv"

	"github.com/nerrad567/lutronbond/internal/journal"
)

// journalFilter parses the bridge, device and limit query parameters.
func journalFilter(r *http.Request) (journal.Filter, string) {
	q := r.URL.Query()
	f := journal.Filter{Bridge: q.Get("bridge")}

	if v := q.Get("device"); v != "" {
		device, err := strconv.Atoi(v)
		if err != nil || device < 1 {
			return f, "device must be a positive integer"
		}
		f.Device = device
	}
	if v := q.Get("limit"); v != "" {
		limit, err := strconv.Atoi(v)
		if err != nil || limit < 1 {
			return f, "limit must be a positive integer"
		}
		f.Limit = limit
	}
	return f, ""
}

// handleJournalEvents lists recent journalled events, newest first.
func (s *Server) handleJournalEvents(w http.ResponseWriter, r *http.Request) {
	if s.journal == nil {
		writeUnavailable(w, "journal is not enabled")
		return
	}
	f, msg := journalFilter(r)
	if msg != "" {
		writeBadRequest(w, msg)
		return
	}

	events, err := s.journal.RecentEvents(r.Context(), f)
	if err != nil {
		s.logger.Error("listing journal events failed", "error", err)
		writeInternalError(w, "failed to list events")
		return
	}
	if events == nil {
		events = []journal.EventEntry{}
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"events": events,
		"count":  len(events),
	})
}

// handleJournalDispatches lists recent journalled dispatches, newest first.
func (s *Server) handleJournalDispatches(w http.ResponseWriter, r *http.Request) {
	if s.journal == nil {
		writeUnavailable(w, "journal is not enabled")
		return
	}
	f, msg := journalFilter(r)
	if msg != "" {
		writeBadRequest(w, msg)
		return
	}

	dispatches, err := s.journal.RecentDispatches(r.Context(), f)
	if err != nil {
		s.logger.Error("listing journal dispatches failed", "error", err)
		writeInternalError(w, "failed to list dispatches")
		return
	}
	if dispatches == nil {
		dispatches = []journal.DispatchEntry{}
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"dispatches": dispatches,
		"count":      len(dispatches),
	})
}
