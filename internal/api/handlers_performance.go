package api

import (
	"net/http"

	"github.com/gorilla/mux"
)

// handlePerformance handles GET /api/v1/users/{userId}/performance - Portfolio performance windows
func (s *Server) handlePerformance(w http.ResponseWriter, r *http.Request) {
	userID := mux.Vars(r)["userId"]
	if userID == "" {
		respondError(w, http.StatusBadRequest, ErrCodeInvalidInput, "User ID required", nil)
		return
	}

	summary, err := s.performanceService.Summary(r.Context(), userID)
	if err != nil {
		statusCode, code, message := mapServiceError(err)
		respondError(w, statusCode, code, message, nil)
		return
	}

	// A nil summary renders as a JSON null body: the user exists but
	// has no connected account or no snapshot history yet.
	respondJSON(w, http.StatusOK, summary)
}
