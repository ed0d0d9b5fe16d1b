package handlers

import (
	"log/slog"
	"net/http"

	"arbiflow/internal/application/usecases"
)

// StatusHandler handles ingestion status requests
type StatusHandler struct {
	marketDataUseCase *usecases.MarketDataUseCase
	logger            *slog.Logger
}

// NewStatusHandler creates a new status handler
func NewStatusHandler(marketDataUseCase *usecases.MarketDataUseCase, logger *slog.Logger) *StatusHandler {
	return &StatusHandler{
		marketDataUseCase: marketDataUseCase,
		logger:            logger,
	}
}

// Handle handles GET /status, reporting per-connector ingestion state
func (h *StatusHandler) Handle(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	writeJSON(w, h.marketDataUseCase.Status())
}
