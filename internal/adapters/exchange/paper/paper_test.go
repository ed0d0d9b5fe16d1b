package paper

import (
	"context"
	"log/slog"
	"testing"
	"time"

	"arbiflow/internal/domain/models"
)

func newTestVenue(t *testing.T) *Connector {
	t.Helper()
	conn := New("paper-test", Config{
		BasePrices:      map[string]float64{"BTCUSDT": 50000},
		SpreadBps:       5,
		FeeRate:         0.001,
		InitialBalances: map[string]float64{"USDT": 1000000, "BTC": 10},
	}, slog.Default())
	if err := conn.Connect(context.Background()); err != nil {
		t.Fatalf("Connect: %v", err)
	}
	return conn
}

func TestConnectDisconnectIdempotent(t *testing.T) {
	conn := New("paper-test", Config{}, slog.Default())
	ctx := context.Background()

	if conn.IsConnected() {
		t.Error("New connector should start disconnected")
	}
	if err := conn.Connect(ctx); err != nil {
		t.Fatalf("Connect: %v", err)
	}
	if err := conn.Connect(ctx); err != nil {
		t.Fatalf("Second Connect: %v", err)
	}
	if !conn.IsConnected() {
		t.Error("Connector should be connected")
	}
	if err := conn.Disconnect(); err != nil {
		t.Fatalf("Disconnect: %v", err)
	}
	if err := conn.Disconnect(); err != nil {
		t.Fatalf("Second Disconnect: %v", err)
	}
	if conn.IsConnected() {
		t.Error("Connector should be disconnected")
	}
}

func TestFetchTickAdvancesWalk(t *testing.T) {
	conn := newTestVenue(t)
	ctx := context.Background()

	tick, err := conn.FetchTick(ctx, "BTCUSDT")
	if err != nil {
		t.Fatalf("FetchTick: %v", err)
	}
	if tick.Symbol != "BTCUSDT" || tick.Exchange != "paper-test" {
		t.Errorf("Tick identity = %s on %s", tick.Symbol, tick.Exchange)
	}
	if tick.Bid >= tick.Ask {
		t.Errorf("Bid %v should be below ask %v", tick.Bid, tick.Ask)
	}
	// ±0.2% walk keeps a step near the base price.
	if tick.Last < 49000 || tick.Last > 51000 {
		t.Errorf("Last = %v, expected near base 50000", tick.Last)
	}

	if got := conn.LatestTick("BTCUSDT"); got.Last != tick.Last {
		t.Errorf("LatestTick = %v, want cached %v", got.Last, tick.Last)
	}
}

func TestFetchTickRequiresConnection(t *testing.T) {
	conn := New("paper-test", Config{BasePrices: map[string]float64{"BTCUSDT": 50000}}, slog.Default())

	if _, err := conn.FetchTick(context.Background(), "BTCUSDT"); err == nil {
		t.Error("FetchTick on disconnected venue should fail")
	}
}

func TestFetchTickUnknownSymbol(t *testing.T) {
	conn := newTestVenue(t)

	if _, err := conn.FetchTick(context.Background(), "DOGEUSDT"); err == nil {
		t.Error("FetchTick for unknown symbol should fail")
	}
}

func TestFetchTickConsumesRateBudget(t *testing.T) {
	conn := New("paper-test", Config{
		BasePrices: map[string]float64{"BTCUSDT": 50000},
		RateLimit:  2,
	}, slog.Default())
	conn.Connect(context.Background())
	ctx := context.Background()

	if _, err := conn.FetchTick(ctx, "BTCUSDT"); err != nil {
		t.Fatalf("FetchTick 1: %v", err)
	}
	if _, err := conn.FetchTick(ctx, "BTCUSDT"); err != nil {
		t.Fatalf("FetchTick 2: %v", err)
	}
	if _, err := conn.FetchTick(ctx, "BTCUSDT"); err == nil {
		t.Error("FetchTick beyond rate budget should fail")
	}
	if got := conn.RateLimitRemaining(); got != 0 {
		t.Errorf("RateLimitRemaining = %d, want 0", got)
	}
}

func TestMarketOrderFillsImmediately(t *testing.T) {
	conn := newTestVenue(t)
	ctx := context.Background()
	conn.FetchTick(ctx, "BTCUSDT")

	var updates []models.OrderRecord
	conn.OnOrderUpdate(func(order models.OrderRecord) {
		updates = append(updates, order)
	})

	orderID, err := conn.PlaceMarketOrder(ctx, "BTCUSDT", models.SideBuy, 0.1)
	if err != nil {
		t.Fatalf("PlaceMarketOrder: %v", err)
	}

	order, err := conn.OrderStatus(ctx, "BTCUSDT", orderID)
	if err != nil {
		t.Fatalf("OrderStatus: %v", err)
	}
	if order.Status != models.StatusFilled {
		t.Errorf("Status = %s, want FILLED", order.Status)
	}
	if order.FilledQty != 0.1 || order.RemainingQty != 0 {
		t.Errorf("Fill accounting: filled=%v remaining=%v", order.FilledQty, order.RemainingQty)
	}
	if order.Commission <= 0 || order.CommissionAsset != "USDT" {
		t.Errorf("Commission = %v %s, want positive USDT fee", order.Commission, order.CommissionAsset)
	}
	if len(updates) != 1 {
		t.Errorf("Received %d order updates, want 1", len(updates))
	}

	// The fill moves base from nothing into free.
	btc, _ := conn.AssetBalance(ctx, "BTC")
	if btc.Free != 10.1 {
		t.Errorf("BTC free = %v, want 10.1", btc.Free)
	}
}

func TestMarketOrderWithoutDataRejected(t *testing.T) {
	conn := newTestVenue(t)

	var errCount int
	conn.OnError(func(scope, message string) { errCount++ })

	if _, err := conn.PlaceMarketOrder(context.Background(), "BTCUSDT", models.SideBuy, 0.1); err == nil {
		t.Error("Market order with no tick yet should be rejected")
	}
	if errCount != 1 {
		t.Errorf("Error callback fired %d times, want 1", errCount)
	}
}

func TestLimitOrderRestsAndLocksFunds(t *testing.T) {
	conn := newTestVenue(t)
	ctx := context.Background()
	tick, _ := conn.FetchTick(ctx, "BTCUSDT")

	// A buy far below the market rests.
	price := tick.Bid * 0.5
	orderID, err := conn.PlaceLimitOrder(ctx, "BTCUSDT", models.SideBuy, 1.0, price)
	if err != nil {
		t.Fatalf("PlaceLimitOrder: %v", err)
	}

	order, _ := conn.OrderStatus(ctx, "BTCUSDT", orderID)
	if order.Status != models.StatusNew {
		t.Errorf("Status = %s, want NEW for a resting order", order.Status)
	}

	usdt, _ := conn.AssetBalance(ctx, "USDT")
	if usdt.Locked != price {
		t.Errorf("USDT locked = %v, want notional %v", usdt.Locked, price)
	}

	open, _ := conn.OpenOrders(ctx, "BTCUSDT")
	if len(open) != 1 {
		t.Errorf("OpenOrders returned %d, want 1", len(open))
	}
}

func TestLimitOrderCrossingFillsOnEntry(t *testing.T) {
	conn := newTestVenue(t)
	ctx := context.Background()
	tick, _ := conn.FetchTick(ctx, "BTCUSDT")

	// A buy above the ask crosses immediately.
	orderID, err := conn.PlaceLimitOrder(ctx, "BTCUSDT", models.SideBuy, 0.5, tick.Ask*1.01)
	if err != nil {
		t.Fatalf("PlaceLimitOrder: %v", err)
	}

	order, _ := conn.OrderStatus(ctx, "BTCUSDT", orderID)
	if order.Status != models.StatusFilled {
		t.Errorf("Status = %s, want FILLED for a crossing limit", order.Status)
	}
}

func TestCancelReleasesFunds(t *testing.T) {
	conn := newTestVenue(t)
	ctx := context.Background()
	tick, _ := conn.FetchTick(ctx, "BTCUSDT")

	price := tick.Bid * 0.5
	orderID, _ := conn.PlaceLimitOrder(ctx, "BTCUSDT", models.SideBuy, 1.0, price)

	if err := conn.CancelOrder(ctx, "BTCUSDT", orderID); err != nil {
		t.Fatalf("CancelOrder: %v", err)
	}

	order, _ := conn.OrderStatus(ctx, "BTCUSDT", orderID)
	if order.Status != models.StatusCanceled {
		t.Errorf("Status = %s, want CANCELED", order.Status)
	}

	usdt, _ := conn.AssetBalance(ctx, "USDT")
	if usdt.Locked != 0 {
		t.Errorf("USDT locked after cancel = %v, want 0", usdt.Locked)
	}

	// Cancelling again, or cancelling an unknown order, is a no-op.
	if err := conn.CancelOrder(ctx, "BTCUSDT", orderID); err != nil {
		t.Errorf("Repeated cancel: %v", err)
	}
	if err := conn.CancelOrder(ctx, "BTCUSDT", "missing"); err != nil {
		t.Errorf("Cancel of unknown order: %v", err)
	}
}

func TestCancelAllOrdersScopedBySymbol(t *testing.T) {
	conn := newTestVenue(t)
	ctx := context.Background()
	conn.SubscribeTickers("ETHUSDT")
	btcTick, _ := conn.FetchTick(ctx, "BTCUSDT")
	ethTick, _ := conn.FetchTick(ctx, "ETHUSDT")

	conn.PlaceLimitOrder(ctx, "BTCUSDT", models.SideBuy, 0.1, btcTick.Bid*0.5)
	conn.PlaceLimitOrder(ctx, "ETHUSDT", models.SideBuy, 0.1, ethTick.Bid*0.5)

	if err := conn.CancelAllOrders(ctx, "BTCUSDT"); err != nil {
		t.Fatalf("CancelAllOrders: %v", err)
	}

	open, _ := conn.OpenOrders(ctx, "")
	if len(open) != 1 || open[0].Symbol != "ETHUSDT" {
		t.Errorf("OpenOrders after scoped cancel = %+v, want only ETHUSDT", open)
	}

	if err := conn.CancelAllOrders(ctx, ""); err != nil {
		t.Fatalf("CancelAllOrders all: %v", err)
	}
	open, _ = conn.OpenOrders(ctx, "")
	if len(open) != 0 {
		t.Errorf("OpenOrders after full cancel = %d, want 0", len(open))
	}
}

func TestInsufficientFundsRejected(t *testing.T) {
	conn := New("paper-test", Config{
		BasePrices:      map[string]float64{"BTCUSDT": 50000},
		InitialBalances: map[string]float64{"USDT": 10},
	}, slog.Default())
	conn.Connect(context.Background())
	ctx := context.Background()
	tick, _ := conn.FetchTick(ctx, "BTCUSDT")

	if _, err := conn.PlaceLimitOrder(ctx, "BTCUSDT", models.SideBuy, 1.0, tick.Bid); err == nil {
		t.Error("Order exceeding free balance should be rejected")
	}

	usdt, _ := conn.AssetBalance(ctx, "USDT")
	if usdt.Free != 10 || usdt.Locked != 0 {
		t.Errorf("Balance disturbed by rejected order: %+v", usdt)
	}
}

func TestRestingOrderFillsWhenWalkCrosses(t *testing.T) {
	conn := New("paper-test", Config{
		BasePrices:      map[string]float64{"BTCUSDT": 50000},
		InitialBalances: map[string]float64{"USDT": 1000000, "BTC": 10},
		RateLimit:       1000000,
	}, slog.Default())
	conn.Connect(context.Background())
	ctx := context.Background()
	tick, _ := conn.FetchTick(ctx, "BTCUSDT")

	// A sell just above the ask fills within a few walk steps.
	orderID, err := conn.PlaceLimitOrder(ctx, "BTCUSDT", models.SideSell, 0.1, tick.Ask*1.0005)
	if err != nil {
		t.Fatalf("PlaceLimitOrder: %v", err)
	}

	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		conn.FetchTick(ctx, "BTCUSDT")
		order, _ := conn.OrderStatus(ctx, "BTCUSDT", orderID)
		if order.Status == models.StatusFilled {
			return
		}
	}
	t.Error("Resting sell never filled while the walk moved")
}

func TestSynthesizedBookDepth(t *testing.T) {
	conn := newTestVenue(t)
	ctx := context.Background()

	if err := conn.SubscribeOrderBook("BTCUSDT", 5); err != nil {
		t.Fatalf("SubscribeOrderBook: %v", err)
	}
	conn.FetchTick(ctx, "BTCUSDT")

	book, ok := conn.LatestBook("BTCUSDT")
	if !ok {
		t.Fatal("LatestBook should return the synthesized book")
	}
	if len(book.Bids) != 5 || len(book.Asks) != 5 {
		t.Fatalf("Book depth = %d/%d, want 5/5", len(book.Bids), len(book.Asks))
	}
	for i := 1; i < 5; i++ {
		if book.Bids[i].Price >= book.Bids[i-1].Price {
			t.Error("Bids should descend in price")
		}
		if book.Asks[i].Price <= book.Asks[i-1].Price {
			t.Error("Asks should ascend in price")
		}
	}
}

func TestSubscribeOrderBookValidatesDepth(t *testing.T) {
	conn := newTestVenue(t)
	if err := conn.SubscribeOrderBook("BTCUSDT", 0); err == nil {
		t.Error("Depth below 1 should be rejected")
	}
}
