// Package api provides the HTTP API server implementation.
package api

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/shopspring/decimal"
	"github.com/tradebit/internal/brokerage"
	"github.com/tradebit/internal/logging"
	"github.com/tradebit/internal/service"
)

// Service interfaces for dependency injection and testing

// CredentialServiceInterface defines the interface for brokerage account operations
type CredentialServiceInterface interface {
	Connect(ctx context.Context, userID, apiKey string) error
	Disconnect(ctx context.Context, userID string) error
	Status(ctx context.Context, userID string) (*service.ConnectionStatus, error)
	Portfolio(ctx context.Context, userID string) ([]brokerage.StockPosition, error)
	CheckingBalance(ctx context.Context, userID string) ([]brokerage.Balance, error)
	AssetDetails(ctx context.Context, userID, symbol string) (*brokerage.Asset, error)
}

// CopyTradeServiceInterface defines the interface for copy-trade operations
type CopyTradeServiceInterface interface {
	Execute(ctx context.Context, copierID, postID string, amount decimal.Decimal) (*service.CopyTradeResult, error)
	History(ctx context.Context, copierID string, cursor *time.Time, limit int) (*service.CopyTradeHistory, error)
}

// PerformanceServiceInterface defines the interface for performance reads
type PerformanceServiceInterface interface {
	Summary(ctx context.Context, userID string) (*service.PerformanceSummary, error)
}

// SnapshotServiceInterface defines the interface for the snapshot sweep
type SnapshotServiceInterface interface {
	SweepAll(ctx context.Context) (*service.SweepResult, error)
}

// Pinger reports backing-store connectivity for the health endpoint
type Pinger interface {
	Ping(ctx context.Context) error
}

// Server represents the HTTP API server.
type Server struct {
	router             *mux.Router
	httpServer         *http.Server
	credentialService  CredentialServiceInterface
	copyTradeService   CopyTradeServiceInterface
	performanceService PerformanceServiceInterface
	snapshotService    SnapshotServiceInterface
	db                 Pinger
	config             *ServerConfig
}

// ServerConfig holds server configuration.
type ServerConfig struct {
	Host            string
	Port            string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	IdleTimeout     time.Duration
	ShutdownTimeout time.Duration
	RateLimitRPS    int
	RateLimitBurst  int
	CronSecret      string
}

// NewServer creates a new API server instance.
func NewServer(
	config *ServerConfig,
	credentialService CredentialServiceInterface,
	copyTradeService CopyTradeServiceInterface,
	performanceService PerformanceServiceInterface,
	snapshotService SnapshotServiceInterface,
	db Pinger,
) *Server {
	s := &Server{
		router:             mux.NewRouter(),
		credentialService:  credentialService,
		copyTradeService:   copyTradeService,
		performanceService: performanceService,
		snapshotService:    snapshotService,
		db:                 db,
		config:             config,
	}

	s.setupRouter()

	return s
}

// setupRouter configures the router with middleware and routes
func (s *Server) setupRouter() {
	rateLimiter := NewRateLimiter(s.config.RateLimitRPS, s.config.RateLimitBurst)

	// Set up middleware (order matters!)
	s.router.Use(LoggingMiddleware)
	s.router.Use(RecoveryMiddleware)
	s.router.Use(CORSMiddleware)
	s.router.Use(RateLimitMiddleware(rateLimiter)) // Rate limiting after CORS

	s.setupRoutes()

	s.httpServer = &http.Server{
		Addr:         fmt.Sprintf("%s:%s", s.config.Host, s.config.Port),
		Handler:      s.router,
		ReadTimeout:  s.config.ReadTimeout,
		WriteTimeout: s.config.WriteTimeout,
		IdleTimeout:  s.config.IdleTimeout,
	}
}

// setupRoutes configures all API routes.
func (s *Server) setupRoutes() {
	// Health check endpoint
	s.router.HandleFunc("/health", s.handleHealth).Methods("GET")

	// API v1 routes
	api := s.router.PathPrefix("/api/v1").Subrouter()

	// Brokerage account endpoints
	api.HandleFunc("/brokerage/connect", s.handleConnect).Methods("POST")
	api.HandleFunc("/brokerage/disconnect", s.handleDisconnect).Methods("DELETE")
	api.HandleFunc("/brokerage/status", s.handleStatus).Methods("GET")
	api.HandleFunc("/brokerage/portfolio", s.handlePortfolio).Methods("GET")
	api.HandleFunc("/brokerage/balance", s.handleBalance).Methods("GET")
	api.HandleFunc("/brokerage/assets/{symbol}", s.handleAsset).Methods("GET")

	// Copy-trade endpoints
	api.HandleFunc("/copy-trade/history", s.handleCopyTradeHistory).Methods("GET")
	api.HandleFunc("/copy-trade/{postId}", s.handleCopyTrade).Methods("POST")

	// Performance endpoints
	api.HandleFunc("/users/{userId}/performance", s.handlePerformance).Methods("GET")

	// Internal cron endpoints (shared-secret auth, not user identity)
	s.router.HandleFunc("/internal/snapshots/sweep", s.handleSnapshotSweep).Methods("POST")
}

// handleHealth handles health check requests.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if s.db != nil {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := s.db.Ping(ctx); err != nil {
			respondJSON(w, http.StatusServiceUnavailable, map[string]string{
				"status":  "unhealthy",
				"service": "tradebit",
			})
			return
		}
	}

	respondJSON(w, http.StatusOK, map[string]string{
		"status":  "healthy",
		"service": "tradebit",
	})
}

// requireUserID extracts the authenticated user from headers, writing
// a 401 when absent.
func requireUserID(w http.ResponseWriter, r *http.Request) (string, bool) {
	userID := r.Header.Get("X-User-ID")
	if userID == "" {
		respondError(w, http.StatusUnauthorized, ErrCodeUnauthorized, "User ID required", nil)
		return "", false
	}
	return userID, true
}

// Start starts the HTTP server.
func (s *Server) Start() error {
	logging.GetGlobalLogger().WithField("addr", s.httpServer.Addr).Info("Starting API server")
	return s.httpServer.ListenAndServe()
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	logging.GetGlobalLogger().Info("Shutting down API server")
	return s.httpServer.Shutdown(ctx)
}
