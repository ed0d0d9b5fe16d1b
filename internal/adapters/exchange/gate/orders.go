package gate

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"arbiflow/internal/domain/models"
)

// orderRequest is the order placement payload
type orderRequest struct {
	Category    string `json:"category"`
	Symbol      string `json:"symbol"`
	Side        string `json:"side"`
	OrderType   string `json:"orderType"`
	Qty         string `json:"qty"`
	Price       string `json:"price,omitempty"`
	OrderLinkID string `json:"orderLinkId"`
}

// orderResponse is the standard order mutation envelope
type orderResponse struct {
	RetCode int    `json:"retCode"`
	RetMsg  string `json:"retMsg"`
	Result  struct {
		OrderID     string `json:"orderId"`
		OrderLinkID string `json:"orderLinkId"`
	} `json:"result"`
	Time int64 `json:"time"`
}

// orderStatusResponse is the order query envelope
type orderStatusResponse struct {
	RetCode int    `json:"retCode"`
	RetMsg  string `json:"retMsg"`
	Result  struct {
		List []orderData `json:"list"`
	} `json:"result"`
	Time int64 `json:"time"`
}

type orderData struct {
	OrderID     string `json:"orderId"`
	OrderLinkID string `json:"orderLinkId"`
	Symbol      string `json:"symbol"`
	Side        string `json:"side"`
	OrderType   string `json:"orderType"`
	OrderStatus string `json:"orderStatus"`
	Qty         string `json:"qty"`
	Price       string `json:"price"`
	CumExecQty  string `json:"cumExecQty"`
	LeavesQty   string `json:"leavesQty"`
	CumExecFee  string `json:"cumExecFee"`
	FeeCurrency string `json:"feeCurrency"`
	CreatedTime string `json:"createdTime"`
	UpdatedTime string `json:"updatedTime"`
}

// PlaceLimitOrder places a limit order. Blocking network call.
func (c *Connector) PlaceLimitOrder(ctx context.Context, symbol string, side models.OrderSide, qty, price float64) (string, error) {
	return c.placeOrder(ctx, orderRequest{
		Category:    spotCategory,
		Symbol:      symbol,
		Side:        sideToVenue(side),
		OrderType:   "Limit",
		Qty:         formatFloat(qty),
		Price:       formatFloat(price),
		OrderLinkID: newClientOrderID(),
	})
}

// PlaceMarketOrder places a market order. Blocking network call.
func (c *Connector) PlaceMarketOrder(ctx context.Context, symbol string, side models.OrderSide, qty float64) (string, error) {
	return c.placeOrder(ctx, orderRequest{
		Category:    spotCategory,
		Symbol:      symbol,
		Side:        sideToVenue(side),
		OrderType:   "Market",
		Qty:         formatFloat(qty),
		OrderLinkID: newClientOrderID(),
	})
}

func (c *Connector) placeOrder(ctx context.Context, req orderRequest) (string, error) {
	if !c.limiter.TryAcquire() {
		err := fmt.Errorf("rate budget exhausted on %s", c.name)
		c.emitError(c.name+":"+req.Symbol, err.Error())
		return "", err
	}

	body, err := json.Marshal(req)
	if err != nil {
		return "", err
	}

	respBody, err := c.signedRequest(ctx, http.MethodPost, placeOrderEndpoint, "", body)
	if err != nil {
		c.emitError(c.name+":"+req.Symbol, err.Error())
		return "", err
	}

	var resp orderResponse
	if err := json.Unmarshal(respBody, &resp); err != nil {
		err = fmt.Errorf("malformed order response: %w", err)
		c.emitError(c.name+":"+req.Symbol, err.Error())
		return "", err
	}
	if resp.RetCode != 0 {
		err = fmt.Errorf("order rejected by %s: %s", c.name, resp.RetMsg)
		c.emitError(c.name+":"+req.Symbol, err.Error())
		return "", err
	}

	c.logger.Info("Order placed", "exchange", c.name, "symbol", req.Symbol, "side", req.Side, "type", req.OrderType, "order_id", resp.Result.OrderID)
	return resp.Result.OrderID, nil
}

// CancelOrder cancels an order. Idempotent: a terminal order reported as
// "not found or already closed" by the venue is not an error.
func (c *Connector) CancelOrder(ctx context.Context, symbol, orderID string) error {
	if !c.limiter.TryAcquire() {
		return fmt.Errorf("rate budget exhausted on %s", c.name)
	}

	body, err := json.Marshal(map[string]string{
		"category": spotCategory,
		"symbol":   symbol,
		"orderId":  orderID,
	})
	if err != nil {
		return err
	}

	respBody, err := c.signedRequest(ctx, http.MethodPost, cancelOrderEndpoint, "", body)
	if err != nil {
		c.emitError(c.name+":"+symbol, err.Error())
		return err
	}

	var resp orderResponse
	if err := json.Unmarshal(respBody, &resp); err != nil {
		return fmt.Errorf("malformed cancel response: %w", err)
	}
	if resp.RetCode != 0 && !isAlreadyClosed(resp.RetCode) {
		err = fmt.Errorf("cancel rejected by %s: %s", c.name, resp.RetMsg)
		c.emitError(c.name+":"+symbol, err.Error())
		return err
	}
	return nil
}

// CancelAllOrders cancels all open orders, optionally scoped to a symbol
func (c *Connector) CancelAllOrders(ctx context.Context, symbol string) error {
	if !c.limiter.TryAcquire() {
		return fmt.Errorf("rate budget exhausted on %s", c.name)
	}

	payload := map[string]string{"category": spotCategory}
	if symbol != "" {
		payload["symbol"] = symbol
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return err
	}

	respBody, err := c.signedRequest(ctx, http.MethodPost, cancelAllEndpoint, "", body)
	if err != nil {
		c.emitError(c.name+":"+symbol, err.Error())
		return err
	}

	var resp orderResponse
	if err := json.Unmarshal(respBody, &resp); err != nil {
		return fmt.Errorf("malformed cancel-all response: %w", err)
	}
	if resp.RetCode != 0 {
		err = fmt.Errorf("cancel-all rejected by %s: %s", c.name, resp.RetMsg)
		c.emitError(c.name+":"+symbol, err.Error())
		return err
	}
	return nil
}

// OpenOrders returns open orders, optionally scoped to a symbol
func (c *Connector) OpenOrders(ctx context.Context, symbol string) ([]models.OrderRecord, error) {
	resp, err := c.queryOrders(ctx, symbol, "")
	if err != nil {
		return nil, err
	}

	orders := make([]models.OrderRecord, 0, len(resp.Result.List))
	for _, data := range resp.Result.List {
		orders = append(orders, c.toOrderRecord(data))
	}
	return orders, nil
}

// OrderStatus returns the venue-reported state of one order
func (c *Connector) OrderStatus(ctx context.Context, symbol, orderID string) (models.OrderRecord, error) {
	resp, err := c.queryOrders(ctx, symbol, orderID)
	if err != nil {
		return models.OrderRecord{}, err
	}
	if len(resp.Result.List) == 0 {
		return models.OrderRecord{}, fmt.Errorf("unknown order %s on %s", orderID, c.name)
	}
	return c.toOrderRecord(resp.Result.List[0]), nil
}

func (c *Connector) queryOrders(ctx context.Context, symbol, orderID string) (*orderStatusResponse, error) {
	if !c.limiter.TryAcquire() {
		return nil, fmt.Errorf("rate budget exhausted on %s", c.name)
	}

	query := url.Values{}
	query.Set("category", spotCategory)
	if symbol != "" {
		query.Set("symbol", symbol)
	}
	if orderID != "" {
		query.Set("orderId", orderID)
	}

	body, err := c.signedRequest(ctx, http.MethodGet, orderRealtimeEndpoint, query.Encode(), nil)
	if err != nil {
		c.emitError(c.name+":"+symbol, err.Error())
		return nil, err
	}

	var resp orderStatusResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("malformed order query response: %w", err)
	}
	if resp.RetCode != 0 {
		return nil, fmt.Errorf("order query rejected by %s: %s", c.name, resp.RetMsg)
	}
	return &resp, nil
}

// toOrderRecord converts a venue order payload into the domain record,
// preserving the fill accounting the venue reports.
func (c *Connector) toOrderRecord(data orderData) models.OrderRecord {
	qty := parseFloat(data.Qty)
	filled := parseFloat(data.CumExecQty)
	remaining := parseFloat(data.LeavesQty)
	status := statusFromVenue(data.OrderStatus)

	// Live orders must account for every unit; terminal ones keep the
	// last reported remaining quantity.
	if !status.IsTerminal() && filled+remaining != qty {
		remaining = qty - filled
	}

	return models.OrderRecord{
		OrderID:         data.OrderID,
		ClientOrderID:   data.OrderLinkID,
		Symbol:          data.Symbol,
		Exchange:        c.name,
		Side:            sideFromVenue(data.Side),
		Type:            typeFromVenue(data.OrderType),
		Status:          status,
		Quantity:        qty,
		Price:           parseFloat(data.Price),
		FilledQty:       filled,
		RemainingQty:    remaining,
		Commission:      parseFloat(data.CumExecFee),
		CommissionAsset: data.FeeCurrency,
		CreatedAt:       timeFromMillis(data.CreatedTime),
		UpdatedAt:       timeFromMillis(data.UpdatedTime),
	}
}

func sideToVenue(side models.OrderSide) string {
	if side == models.SideSell {
		return "Sell"
	}
	return "Buy"
}

func sideFromVenue(side string) models.OrderSide {
	if side == "Sell" {
		return models.SideSell
	}
	return models.SideBuy
}

func typeFromVenue(typ string) models.OrderType {
	if typ == "Market" {
		return models.TypeMarket
	}
	return models.TypeLimit
}

func statusFromVenue(status string) models.OrderStatus {
	switch status {
	case "New", "Untriggered", "Triggered":
		return models.StatusNew
	case "PartiallyFilled":
		return models.StatusPartiallyFilled
	case "Filled":
		return models.StatusFilled
	case "Cancelled", "PartiallyFilledCanceled", "Deactivated":
		return models.StatusCanceled
	case "Rejected":
		return models.StatusRejected
	default:
		return models.StatusNew
	}
}

// isAlreadyClosed recognises the venue codes for cancelling an order that is
// already terminal.
func isAlreadyClosed(retCode int) bool {
	return retCode == 110001 || retCode == 170213
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

func timeFromMillis(s string) time.Time {
	ms, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return time.Time{}
	}
	return time.UnixMilli(ms)
}
