package handlers

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"

	"arbiflow/internal/application/usecases"
	"arbiflow/internal/domain/models"
)

// PricesHandler handles tick and book snapshot requests
type PricesHandler struct {
	marketDataUseCase *usecases.MarketDataUseCase
	logger            *slog.Logger
}

// NewPricesHandler creates a new prices handler
func NewPricesHandler(marketDataUseCase *usecases.MarketDataUseCase, logger *slog.Logger) *PricesHandler {
	return &PricesHandler{
		marketDataUseCase: marketDataUseCase,
		logger:            logger,
	}
}

// Handle handles price requests:
//
//	GET /prices/latest/{symbol}            freshest snapshot across venues
//	GET /prices/latest/{exchange}/{symbol} snapshot from one venue
func (h *PricesHandler) Handle(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	path := strings.TrimPrefix(r.URL.Path, "/prices/")
	parts := strings.Split(path, "/")

	if len(parts) < 2 || parts[0] != "latest" {
		http.Error(w, "Invalid path", http.StatusBadRequest)
		return
	}

	ctx := r.Context()
	var tick *models.TickSnapshot
	var err error

	switch len(parts) {
	case 2:
		tick, err = h.marketDataUseCase.GetFreshestTick(ctx, parts[1])
	case 3:
		tick, err = h.marketDataUseCase.GetLatestTick(ctx, parts[1], parts[2])
	default:
		http.Error(w, "Invalid path", http.StatusBadRequest)
		return
	}

	if err != nil {
		h.logger.Error("Failed to read latest tick", "error", err)
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}
	if tick == nil {
		http.Error(w, "Not found", http.StatusNotFound)
		return
	}

	writeJSON(w, tick)
}

// HandleBook handles GET /book/{exchange}/{symbol}
func (h *PricesHandler) HandleBook(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	path := strings.TrimPrefix(r.URL.Path, "/book/")
	parts := strings.Split(path, "/")
	if len(parts) != 2 {
		http.Error(w, "Invalid path", http.StatusBadRequest)
		return
	}

	book, err := h.marketDataUseCase.GetBook(parts[0], parts[1])
	if err != nil {
		h.logger.Error("Failed to read book", "error", err)
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}
	if book == nil {
		http.Error(w, "Not found", http.StatusNotFound)
		return
	}

	writeJSON(w, book)
}

// writeJSON writes a JSON response
func writeJSON(w http.ResponseWriter, response interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(response)
}
