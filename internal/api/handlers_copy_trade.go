package api

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"
	"github.com/shopspring/decimal"
	"github.com/tradebit/internal/models"
	"github.com/tradebit/internal/service"
)

// MaxHistoryLimit caps the history page size at the HTTP boundary
const MaxHistoryLimit = 50

// handleCopyTrade handles POST /api/v1/copy-trade/{postId} - Copy a shared trade
func (s *Server) handleCopyTrade(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUserID(w, r)
	if !ok {
		return
	}

	postID := mux.Vars(r)["postId"]
	if postID == "" {
		respondError(w, http.StatusBadRequest, ErrCodeInvalidInput, "Post ID required", nil)
		return
	}

	var req struct {
		Amount decimal.Decimal `json:"amount"`
	}
	if err := parseJSONBody(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, ErrCodeInvalidInput, "Invalid request body", nil)
		return
	}

	result, err := s.copyTradeService.Execute(r.Context(), userID, postID, req.Amount)
	if err != nil {
		statusCode, code, message := mapServiceError(err)
		respondError(w, statusCode, code, message, nil)
		return
	}

	respondJSON(w, http.StatusOK, result)
}

// handleCopyTradeHistory handles GET /api/v1/copy-trade/history - Paginated attempt history
func (s *Server) handleCopyTradeHistory(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUserID(w, r)
	if !ok {
		return
	}

	query := r.URL.Query()

	limit := service.DefaultHistoryLimit
	if limitStr := query.Get("limit"); limitStr != "" {
		parsed, err := strconv.Atoi(limitStr)
		if err != nil || parsed <= 0 {
			respondError(w, http.StatusBadRequest, ErrCodeInvalidInput, "limit must be a positive integer", nil)
			return
		}
		limit = parsed
	}
	if limit > MaxHistoryLimit {
		limit = MaxHistoryLimit
	}

	var cursor *time.Time
	if cursorStr := query.Get("cursor"); cursorStr != "" {
		parsed, err := time.Parse(time.RFC3339Nano, cursorStr)
		if err != nil {
			respondError(w, http.StatusBadRequest, ErrCodeInvalidInput, "Invalid cursor format (use RFC3339)", nil)
			return
		}
		cursor = &parsed
	}

	history, err := s.copyTradeService.History(r.Context(), userID, cursor, limit)
	if err != nil {
		statusCode, code, message := mapServiceError(err)
		respondError(w, statusCode, code, message, nil)
		return
	}
	if history.Trades == nil {
		history.Trades = []*models.CopyTradeHistoryEntry{}
	}

	respondJSON(w, http.StatusOK, history)
}
