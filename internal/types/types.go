// Package types provides common type definitions for the TradeBit service.
package types

// TradeAction represents the direction of a shared trade
type TradeAction string

const (
	// ActionBuy represents a buy order
	ActionBuy TradeAction = "BUY"
	// ActionSell represents a sell order
	ActionSell TradeAction = "SELL"
)

// Valid reports whether the action is one of the known directions
func (a TradeAction) Valid() bool {
	return a == ActionBuy || a == ActionSell
}

// CopyTradeStatus represents the lifecycle state of a copy-trade attempt
type CopyTradeStatus string

const (
	// StatusPending represents an attempt recorded before the brokerage call resolves
	StatusPending CopyTradeStatus = "pending"
	// StatusExecuted represents a successfully executed attempt (terminal)
	StatusExecuted CopyTradeStatus = "executed"
	// StatusFailed represents a rejected or errored attempt (terminal)
	StatusFailed CopyTradeStatus = "failed"
)

// OrderType represents the brokerage order type
type OrderType string

const (
	// OrderMarket executes at the current market price
	OrderMarket OrderType = "MARKET"
	// OrderLimit executes at a given limit price or better
	OrderLimit OrderType = "LIMIT"
	// OrderStop converts to a market order at the stop price
	OrderStop OrderType = "STOP"
	// OrderStopLimit converts to a limit order at the stop price
	OrderStopLimit OrderType = "STOP_LIMIT"
)

// ReactionType represents a post reaction kind
type ReactionType string

const (
	ReactionRocket  ReactionType = "rocket"
	ReactionChart   ReactionType = "chart"
	ReactionSpeech  ReactionType = "speech"
	ReactionDiamond ReactionType = "diamond"
)

// Service error codes shared between the service and API layers
const (
	CodeInvalidInput        = "INVALID_INPUT"
	CodeNotConnected        = "NOT_CONNECTED"
	CodeInvalidCredential   = "INVALID_CREDENTIAL"
	CodeDuplicateCredential = "DUPLICATE_CREDENTIAL"
	CodePostNotFound        = "POST_NOT_FOUND"
	CodeNotCopyable         = "NOT_COPYABLE"
	CodeTradeFailed         = "TRADE_FAILED"
	CodeUserNotFound        = "USER_NOT_FOUND"
	CodeBrokerageError      = "BROKERAGE_ERROR"
)

// ServiceError represents a structured error response
type ServiceError struct {
	Code    string                 `json:"code"`
	Message string                 `json:"message"`
	Details map[string]interface{} `json:"details,omitempty"`
}

func (e *ServiceError) Error() string {
	return e.Message
}

// NewServiceError creates a service error with a code and message
func NewServiceError(code, message string) *ServiceError {
	return &ServiceError{Code: code, Message: message}
}
