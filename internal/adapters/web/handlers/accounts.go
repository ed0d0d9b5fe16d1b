package handlers

import (
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"arbiflow/internal/application/usecases"
)

// AccountsHandler handles open-order and balance requests
type AccountsHandler struct {
	marketDataUseCase *usecases.MarketDataUseCase
	logger            *slog.Logger
}

// NewAccountsHandler creates a new accounts handler
func NewAccountsHandler(marketDataUseCase *usecases.MarketDataUseCase, logger *slog.Logger) *AccountsHandler {
	return &AccountsHandler{
		marketDataUseCase: marketDataUseCase,
		logger:            logger,
	}
}

// HandleOrders handles open-order requests:
//
//	GET /orders/open/{exchange}          all open orders on one venue
//	GET /orders/open/{exchange}/{symbol} open orders for one symbol
func (h *AccountsHandler) HandleOrders(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	path := strings.TrimPrefix(r.URL.Path, "/orders/")
	parts := strings.Split(path, "/")
	if len(parts) < 2 || len(parts) > 3 || parts[0] != "open" {
		http.Error(w, "Invalid path", http.StatusBadRequest)
		return
	}

	exchange := parts[1]
	symbol := ""
	if len(parts) == 3 {
		symbol = parts[2]
	}

	orders, err := h.marketDataUseCase.GetOpenOrders(r.Context(), exchange, symbol)
	if err != nil {
		if errors.Is(err, usecases.ErrUnknownExchange) {
			http.Error(w, "Not found", http.StatusNotFound)
			return
		}
		h.logger.Error("Failed to fetch open orders", "exchange", exchange, "error", err)
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	writeJSON(w, orders)
}

// HandleBalances handles GET /balances/{exchange}
func (h *AccountsHandler) HandleBalances(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	exchange := strings.TrimPrefix(r.URL.Path, "/balances/")
	if exchange == "" || strings.Contains(exchange, "/") {
		http.Error(w, "Invalid path", http.StatusBadRequest)
		return
	}

	balances, err := h.marketDataUseCase.GetBalances(r.Context(), exchange)
	if err != nil {
		if errors.Is(err, usecases.ErrUnknownExchange) {
			http.Error(w, "Not found", http.StatusNotFound)
			return
		}
		h.logger.Error("Failed to fetch balances", "exchange", exchange, "error", err)
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	writeJSON(w, balances)
}
