package api

import (
	"net/http"
	"strings"

	"github.com/gorilla/mux"
	"github.com/tradebit/internal/brokerage"
)

// handleConnect handles POST /api/v1/brokerage/connect - Connect a brokerage account
func (s *Server) handleConnect(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUserID(w, r)
	if !ok {
		return
	}

	var req struct {
		APIKey string `json:"apiKey"`
	}
	if err := parseJSONBody(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, ErrCodeInvalidInput, "Invalid request body", nil)
		return
	}
	if strings.TrimSpace(req.APIKey) == "" {
		respondError(w, http.StatusBadRequest, ErrCodeInvalidInput, "apiKey is required", nil)
		return
	}

	if err := s.credentialService.Connect(r.Context(), userID, req.APIKey); err != nil {
		statusCode, code, message := mapServiceError(err)
		respondError(w, statusCode, code, message, nil)
		return
	}

	respondJSON(w, http.StatusOK, map[string]bool{"connected": true})
}

// handleDisconnect handles DELETE /api/v1/brokerage/disconnect - Remove the stored credential
func (s *Server) handleDisconnect(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUserID(w, r)
	if !ok {
		return
	}

	if err := s.credentialService.Disconnect(r.Context(), userID); err != nil {
		statusCode, code, message := mapServiceError(err)
		respondError(w, statusCode, code, message, nil)
		return
	}

	respondJSON(w, http.StatusOK, map[string]bool{"disconnected": true})
}

// handleStatus handles GET /api/v1/brokerage/status - Connection status
func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUserID(w, r)
	if !ok {
		return
	}

	status, err := s.credentialService.Status(r.Context(), userID)
	if err != nil {
		statusCode, code, message := mapServiceError(err)
		respondError(w, statusCode, code, message, nil)
		return
	}

	respondJSON(w, http.StatusOK, status)
}

// handlePortfolio handles GET /api/v1/brokerage/portfolio - Live stock positions
func (s *Server) handlePortfolio(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUserID(w, r)
	if !ok {
		return
	}

	positions, err := s.credentialService.Portfolio(r.Context(), userID)
	if err != nil {
		statusCode, code, message := mapServiceError(err)
		respondError(w, statusCode, code, message, nil)
		return
	}
	if positions == nil {
		positions = []brokerage.StockPosition{}
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{"portfolio": positions})
}

// handleBalance handles GET /api/v1/brokerage/balance - Checking balances
func (s *Server) handleBalance(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUserID(w, r)
	if !ok {
		return
	}

	balances, err := s.credentialService.CheckingBalance(r.Context(), userID)
	if err != nil {
		statusCode, code, message := mapServiceError(err)
		respondError(w, statusCode, code, message, nil)
		return
	}
	if balances == nil {
		balances = []brokerage.Balance{}
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{"balances": balances})
}

// handleAsset handles GET /api/v1/brokerage/assets/{symbol} - Asset details
func (s *Server) handleAsset(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUserID(w, r)
	if !ok {
		return
	}

	symbol := mux.Vars(r)["symbol"]
	if symbol == "" {
		respondError(w, http.StatusBadRequest, ErrCodeInvalidInput, "Symbol required", nil)
		return
	}

	asset, err := s.credentialService.AssetDetails(r.Context(), userID, symbol)
	if err != nil {
		statusCode, code, message := mapServiceError(err)
		respondError(w, statusCode, code, message, nil)
		return
	}

	respondJSON(w, http.StatusOK, asset)
}
