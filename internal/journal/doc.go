// Package journal keeps a rolling SQLite record of decoded bridge events
// and the handler dispatches they caused.
//
// Store is the synchronous repository over the events and dispatches
// tables. Recorder sits in front of it on the hot path: observers hand it
// entries without blocking, and a single worker goroutine writes them and
// prunes rows past the retention window.
//
// Usage:
//
//	store := journal.NewStore(db.DB)
//	rec := journal.NewRecorder(store, journal.RecorderConfig{Retention: 30 * 24 * time.Hour})
//	go rec.Run(ctx)
//	defer rec.Close()
//
//	rec.RecordEvent(evt, time.Now())
package journal
