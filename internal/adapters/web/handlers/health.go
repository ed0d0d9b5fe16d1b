package handlers

import (
	"log/slog"
	"net/http"
	"time"

	"arbiflow/internal/application/usecases"
)

// HealthHandler handles liveness requests
type HealthHandler struct {
	marketDataUseCase *usecases.MarketDataUseCase
	logger            *slog.Logger
}

// NewHealthHandler creates a new health handler
func NewHealthHandler(marketDataUseCase *usecases.MarketDataUseCase, logger *slog.Logger) *HealthHandler {
	return &HealthHandler{
		marketDataUseCase: marketDataUseCase,
		logger:            logger,
	}
}

type healthResponse struct {
	Status     string          `json:"status"`
	Timestamp  time.Time       `json:"timestamp"`
	Connectors map[string]bool `json:"connectors"`
}

// Handle handles GET /health. The process is degraded, not down, when a
// venue is disconnected; reconnection is the ingestion loop's job.
func (h *HealthHandler) Handle(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	response := healthResponse{
		Status:     "healthy",
		Timestamp:  time.Now(),
		Connectors: make(map[string]bool),
	}

	for _, status := range h.marketDataUseCase.Status() {
		response.Connectors[status.Exchange] = status.Connected
		if !status.Connected {
			response.Status = "degraded"
		}
	}

	writeJSON(w, response)
}
