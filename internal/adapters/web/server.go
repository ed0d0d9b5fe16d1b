package web

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"arbiflow/internal/adapters/web/handlers"
	"arbiflow/internal/application/usecases"
	"arbiflow/internal/arbitrage"
)

// Server represents the HTTP server serving the snapshot query surface
type Server struct {
	port              int
	marketDataUseCase *usecases.MarketDataUseCase
	detector          *arbitrage.Detector
	logger            *slog.Logger
	server            *http.Server
}

// NewServer creates a new HTTP server
func NewServer(port int, marketDataUseCase *usecases.MarketDataUseCase, detector *arbitrage.Detector, logger *slog.Logger) *Server {
	return &Server{
		port:              port,
		marketDataUseCase: marketDataUseCase,
		detector:          detector,
		logger:            logger,
	}
}

// Start starts the HTTP server
func (s *Server) Start() error {
	mux := http.NewServeMux()

	// Initialize handlers
	pricesHandler := handlers.NewPricesHandler(s.marketDataUseCase, s.logger)
	opportunitiesHandler := handlers.NewOpportunitiesHandler(s.detector, s.logger)
	accountsHandler := handlers.NewAccountsHandler(s.marketDataUseCase, s.logger)
	healthHandler := handlers.NewHealthHandler(s.marketDataUseCase, s.logger)
	statusHandler := handlers.NewStatusHandler(s.marketDataUseCase, s.logger)

	// Register routes
	mux.HandleFunc("/prices/", func(w http.ResponseWriter, r *http.Request) {
		s.logger.Debug("Prices request", "method", r.Method, "path", r.URL.Path)
		pricesHandler.Handle(w, r)
	})

	mux.HandleFunc("/book/", func(w http.ResponseWriter, r *http.Request) {
		s.logger.Debug("Book request", "method", r.Method, "path", r.URL.Path)
		pricesHandler.HandleBook(w, r)
	})

	mux.HandleFunc("/opportunities", func(w http.ResponseWriter, r *http.Request) {
		s.logger.Debug("Opportunities request", "method", r.Method, "path", r.URL.Path)
		opportunitiesHandler.Handle(w, r)
	})

	mux.HandleFunc("/orders/", func(w http.ResponseWriter, r *http.Request) {
		s.logger.Debug("Orders request", "method", r.Method, "path", r.URL.Path)
		accountsHandler.HandleOrders(w, r)
	})

	mux.HandleFunc("/balances/", func(w http.ResponseWriter, r *http.Request) {
		s.logger.Debug("Balances request", "method", r.Method, "path", r.URL.Path)
		accountsHandler.HandleBalances(w, r)
	})

	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		s.logger.Debug("Health request", "method", r.Method, "path", r.URL.Path)
		healthHandler.Handle(w, r)
	})

	mux.HandleFunc("/status", func(w http.ResponseWriter, r *http.Request) {
		s.logger.Debug("Status request", "method", r.Method, "path", r.URL.Path)
		statusHandler.Handle(w, r)
	})

	s.server = &http.Server{
		Addr:    fmt.Sprintf(":%d", s.port),
		Handler: mux,
	}

	s.logger.Info("Starting HTTP server", "port", s.port)
	return s.server.ListenAndServe()
}

// Shutdown gracefully shuts down the server
func (s *Server) Shutdown(ctx context.Context) error {
	if s.server == nil {
		return nil
	}

	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	return s.server.Shutdown(ctx)
}
