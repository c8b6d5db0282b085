package api

import (
	"crypto/subtle"
	"net/http"
)

// handleSnapshotSweep handles POST /internal/snapshots/sweep - Daily snapshot cron entry point
func (s *Server) handleSnapshotSweep(w http.ResponseWriter, r *http.Request) {
	if s.config.CronSecret == "" {
		respondError(w, http.StatusServiceUnavailable, "SWEEP_DISABLED", "Snapshot sweep endpoint is not configured", nil)
		return
	}

	secret := r.Header.Get("X-Cron-Secret")
	if subtle.ConstantTimeCompare([]byte(secret), []byte(s.config.CronSecret)) != 1 {
		respondError(w, http.StatusUnauthorized, ErrCodeUnauthorized, "Invalid cron secret", nil)
		return
	}

	result, err := s.snapshotService.SweepAll(r.Context())
	if err != nil {
		statusCode, code, message := mapServiceError(err)
		respondError(w, statusCode, code, message, nil)
		return
	}

	respondJSON(w, http.StatusOK, result)
}
