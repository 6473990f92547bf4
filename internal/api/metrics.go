package api

import (
	"net/http"
	"runtime"
	"time"
)

// SystemMetrics represents the complete system metrics response.
type SystemMetrics struct {
	Timestamp     string           `json:"timestamp"`
	Version       string           `json:"version"`
	UptimeSeconds int64            `json:"uptime_seconds"`
	Runtime       RuntimeMetrics   `json:"runtime"`
	WebSocket     WSMetrics        `json:"websocket"`
	Lutron        LutronMetrics    `json:"lutron"`
	MQTT          *MQTTMetrics     `json:"mqtt,omitempty"`
	Database      *DatabaseMetrics `json:"database,omitempty"`
}

// RuntimeMetrics contains Go runtime statistics.
type RuntimeMetrics struct {
	Goroutines    int     `json:"goroutines"`
	MemoryAllocMB float64 `json:"memory_alloc_mb"`
	MemoryTotalMB float64 `json:"memory_total_mb"`
	NumGC         uint32  `json:"num_gc"`
}

// WSMetrics contains WebSocket hub statistics.
type WSMetrics struct {
	ConnectedClients int `json:"connected_clients"`
}

// LutronMetrics totals the counters of every bridge session.
type LutronMetrics struct {
	Sessions      int    `json:"sessions"`
	Ready         int    `json:"ready"`
	FramesRx      uint64 `json:"frames_rx"`
	ParseErrors   uint64 `json:"parse_errors"`
	CommandsTx    uint64 `json:"commands_tx"`
	LoginFailures uint64 `json:"login_failures"`
	Connects      uint64 `json:"connects"`
}

// MQTTMetrics contains MQTT client statistics.
type MQTTMetrics struct {
	Connected       bool   `json:"connected"`
	MirrorPublished uint64 `json:"mirror_published"`
	MirrorFailed    uint64 `json:"mirror_failed"`
}

// DatabaseMetrics contains database connection pool statistics.
type DatabaseMetrics struct {
	OpenConnections int   `json:"open_connections"`
	InUse           int   `json:"in_use"`
	Idle            int   `json:"idle"`
	WaitCount       int64 `json:"wait_count"`
}

// handleMetrics returns runtime and connection metrics as JSON.
func (s *Server) handleMetrics(w http.ResponseWriter, _ *http.Request) {
	var memStats runtime.MemStats
	runtime.ReadMemStats(&memStats)

	metrics := SystemMetrics{
		Timestamp:     time.Now().UTC().Format(time.RFC3339),
		Version:       s.version,
		UptimeSeconds: int64(time.Since(s.startTime).Seconds()),
		Runtime: RuntimeMetrics{
			Goroutines:    runtime.NumGoroutine(),
			MemoryAllocMB: float64(memStats.Alloc) / 1024 / 1024,
			MemoryTotalMB: float64(memStats.TotalAlloc) / 1024 / 1024,
			NumGC:         memStats.NumGC,
		},
		WebSocket: WSMetrics{
			ConnectedClients: s.hub.ClientCount(),
		},
	}

	if s.sources.Sessions != nil {
		for _, st := range s.sources.Sessions() {
			metrics.Lutron.Sessions++
			if st.State == sessionReady {
				metrics.Lutron.Ready++
			}
			metrics.Lutron.FramesRx += st.FramesRx
			metrics.Lutron.ParseErrors += st.ParseErrors
			metrics.Lutron.CommandsTx += st.CommandsTx
			metrics.Lutron.LoginFailures += st.LoginFailures
			metrics.Lutron.Connects += st.Connects
		}
	}

	if s.sources.MQTT != nil {
		metrics.MQTT = &MQTTMetrics{Connected: s.sources.MQTT()}
		if s.sources.Mirror != nil {
			metrics.MQTT.MirrorPublished, metrics.MQTT.MirrorFailed = s.sources.Mirror()
		}
	}

	if s.sources.Database != nil {
		dbStats := s.sources.Database()
		metrics.Database = &DatabaseMetrics{
			OpenConnections: dbStats.OpenConnections,
			InUse:           dbStats.InUse,
			Idle:            dbStats.Idle,
			WaitCount:       dbStats.WaitCount,
		}
	}

	writeJSON(w, http.StatusOK, metrics)
}
