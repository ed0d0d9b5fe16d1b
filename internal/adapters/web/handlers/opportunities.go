package handlers

import (
	"log/slog"
	"net/http"
	"strconv"

	"arbiflow/internal/arbitrage"
)

// OpportunitiesHandler handles arbitrage scan requests
type OpportunitiesHandler struct {
	detector *arbitrage.Detector
	logger   *slog.Logger
}

// NewOpportunitiesHandler creates a new opportunities handler
func NewOpportunitiesHandler(detector *arbitrage.Detector, logger *slog.Logger) *OpportunitiesHandler {
	return &OpportunitiesHandler{
		detector: detector,
		logger:   logger,
	}
}

// Handle handles GET /opportunities?symbol=X&limit=N. Each request runs a
// fresh scan over the current cache contents.
func (h *OpportunitiesHandler) Handle(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	symbol := r.URL.Query().Get("symbol")
	opportunities := h.detector.Scan(symbol)

	if limitParam := r.URL.Query().Get("limit"); limitParam != "" {
		limit, err := strconv.Atoi(limitParam)
		if err != nil || limit < 0 {
			http.Error(w, "Invalid limit", http.StatusBadRequest)
			return
		}
		if limit < len(opportunities) {
			opportunities = opportunities[:limit]
		}
	}

	writeJSON(w, opportunities)
}
