package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/tradebit/internal/types"
)

// ErrorResponse represents an API error response.
type ErrorResponse struct {
	Error types.ServiceError `json:"error"`
}

// respondError sends an error response.
func respondError(w http.ResponseWriter, statusCode int, code, message string, details map[string]interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)

	response := ErrorResponse{
		Error: types.ServiceError{
			Code:    code,
			Message: message,
			Details: details,
		},
	}

	json.NewEncoder(w).Encode(response)
}

// respondJSON sends a JSON response.
func respondJSON(w http.ResponseWriter, statusCode int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)

	if data != nil {
		json.NewEncoder(w).Encode(data)
	}
}

// parseJSONBody parses JSON request body.
func parseJSONBody(r *http.Request, v interface{}) error {
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	return decoder.Decode(v)
}

// Common error codes
const (
	ErrCodeInvalidInput  = "INVALID_INPUT"
	ErrCodeUnauthorized  = "UNAUTHORIZED"
	ErrCodeInternalError = "INTERNAL_ERROR"
)

// mapServiceError maps service errors to HTTP status codes.
func mapServiceError(err error) (int, string, string) {
	var serviceErr *types.ServiceError
	if errors.As(err, &serviceErr) {
		switch serviceErr.Code {
		case types.CodeInvalidInput, types.CodeInvalidCredential, types.CodeNotCopyable, types.CodeTradeFailed:
			return http.StatusBadRequest, serviceErr.Code, serviceErr.Message
		case types.CodeNotConnected, types.CodePostNotFound, types.CodeUserNotFound:
			return http.StatusNotFound, serviceErr.Code, serviceErr.Message
		case types.CodeDuplicateCredential:
			return http.StatusConflict, serviceErr.Code, serviceErr.Message
		case types.CodeBrokerageError:
			return http.StatusBadGateway, serviceErr.Code, serviceErr.Message
		default:
			return http.StatusInternalServerError, ErrCodeInternalError, "An internal error occurred"
		}
	}

	// Default to internal server error
	return http.StatusInternalServerError, ErrCodeInternalError, "An internal error occurred"
}
