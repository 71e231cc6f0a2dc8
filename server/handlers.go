package server

import (
	"net/http"
	"strconv"
	"time"

	"github.com/lamassu-labs/mentowatch/pulse"
	"github.com/lamassu-labs/mentowatch/version"
)

func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// StatusResponse is the /api/status payload.
type StatusResponse struct {
	Version       string              `json:"version"`
	UptimeSeconds int64               `json:"uptime_seconds"`
	Clients       int                 `json:"clients"`
	LastRuns      []*pulse.Run        `json:"last_runs"`
	FailureStreak int                 `json:"failure_streak"`
	System        pulse.SystemMetrics `json:"system"`
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	runs, err := s.runs.Recent(5)
	if err != nil {
		writeError(w, err)
		return
	}
	streak, err := s.runs.FailureStreak()
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, StatusResponse{
		Version:       version.Get().Version,
		UptimeSeconds: int64(time.Since(s.startedAt).Seconds()),
		Clients:       s.hub.ClientCount(),
		LastRuns:      runs,
		FailureStreak: streak,
		System:        pulse.ReadSystemMetrics(),
	})
}

func (s *Server) handleLatest(w http.ResponseWriter, r *http.Request) {
	snap, err := s.snapshots.Latest()
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, snap)
}

func (s *Server) handleSnapshot(w http.ResponseWriter, r *http.Request) {
	snap, err := s.snapshots.Get(r.PathValue("id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, snap)
}

// handleHistory returns snapshot headers. Query parameters:
//
//	hours  window length, default 24, max 720
//	limit  row cap, default 100, max 1000
func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	hours := queryInt(r, "hours", 24, 1, 720)
	limit := queryInt(r, "limit", 100, 1, 1000)

	snaps, err := s.snapshots.History(time.Now().Add(-time.Duration(hours)*time.Hour), limit)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"hours":     hours,
		"snapshots": snaps,
	})
}

// handleAlerts returns alerts; ?open=true restricts to firing ones.
func (s *Server) handleAlerts(w http.ResponseWriter, r *http.Request) {
	if r.URL.Query().Get("open") == "true" {
		alerts, err := s.alerts.OpenAlerts()
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"alerts": alerts})
		return
	}

	limit := queryInt(r, "limit", 50, 1, 500)
	alerts, err := s.alerts.Recent(limit)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"alerts": alerts})
}

func queryInt(r *http.Request, key string, def, min, max int) int {
	raw := r.URL.Query().Get(key)
	if raw == "" {
		return def
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < min {
		return def
	}
	if n > max {
		return max
	}
	return n
}
