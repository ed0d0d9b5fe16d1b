package usecases

import (
	"context"
	"errors"
	"testing"
	"time"

	"arbiflow/internal/domain/models"
	"arbiflow/internal/marketdata"
)

func TestGetLatestTickPrefersMemory(t *testing.T) {
	cache := marketdata.NewCache()
	manager := marketdata.NewManager(cache, time.Second, testLogger())
	mirror := &recordingMirror{}
	uc := NewMarketDataUseCase(manager, mirror, testLogger())

	now := time.Now()
	cache.SetTick(models.TickSnapshot{
		Symbol: "BTCUSDT", Exchange: "bybit", Last: 50000,
		EventTime: now, ReceivedAt: now,
	})
	mirror.SetLatestTick(context.Background(), models.TickSnapshot{
		Symbol: "BTCUSDT", Exchange: "bybit", Last: 49000,
		EventTime: now, ReceivedAt: now,
	})

	tick, err := uc.GetLatestTick(context.Background(), "bybit", "BTCUSDT")
	if err != nil {
		t.Fatalf("GetLatestTick: %v", err)
	}
	if tick == nil || tick.Last != 50000 {
		t.Errorf("GetLatestTick = %+v, want in-memory value 50000", tick)
	}
}

func TestGetLatestTickFallsBackToMirror(t *testing.T) {
	manager := marketdata.NewManager(marketdata.NewCache(), time.Second, testLogger())
	mirror := &recordingMirror{}
	uc := NewMarketDataUseCase(manager, mirror, testLogger())

	now := time.Now()
	mirror.SetLatestTick(context.Background(), models.TickSnapshot{
		Symbol: "BTCUSDT", Exchange: "bybit", Last: 49000,
		EventTime: now, ReceivedAt: now,
	})

	tick, err := uc.GetLatestTick(context.Background(), "bybit", "BTCUSDT")
	if err != nil {
		t.Fatalf("GetLatestTick: %v", err)
	}
	if tick == nil || tick.Last != 49000 {
		t.Errorf("GetLatestTick = %+v, want mirrored value 49000", tick)
	}
}

func TestGetFreshestTickAcrossVenues(t *testing.T) {
	cache := marketdata.NewCache()
	manager := marketdata.NewManager(cache, time.Second, testLogger())
	uc := NewMarketDataUseCase(manager, nil, testLogger())

	older := time.Now().Add(-2 * time.Second)
	newer := time.Now()
	cache.SetTick(models.TickSnapshot{
		Symbol: "BTCUSDT", Exchange: "slow", Last: 50000,
		EventTime: older, ReceivedAt: older,
	})
	cache.SetTick(models.TickSnapshot{
		Symbol: "BTCUSDT", Exchange: "fast", Last: 50100,
		EventTime: newer, ReceivedAt: newer,
	})

	tick, err := uc.GetFreshestTick(context.Background(), "BTCUSDT")
	if err != nil {
		t.Fatalf("GetFreshestTick: %v", err)
	}
	if tick == nil || tick.Exchange != "fast" {
		t.Errorf("GetFreshestTick = %+v, want the fast venue's snapshot", tick)
	}
}

func TestGetLatestTickAbsentEverywhere(t *testing.T) {
	manager := marketdata.NewManager(marketdata.NewCache(), time.Second, testLogger())
	uc := NewMarketDataUseCase(manager, nil, testLogger())

	tick, err := uc.GetLatestTick(context.Background(), "bybit", "BTCUSDT")
	if err != nil {
		t.Fatalf("GetLatestTick: %v", err)
	}
	if tick != nil {
		t.Errorf("GetLatestTick on empty state = %+v, want nil", tick)
	}
}

func TestAccountReadsRejectUnknownExchange(t *testing.T) {
	manager := marketdata.NewManager(marketdata.NewCache(), time.Second, testLogger())
	uc := NewMarketDataUseCase(manager, nil, testLogger())
	ctx := context.Background()

	if _, err := uc.GetOpenOrders(ctx, "nowhere", ""); !errors.Is(err, ErrUnknownExchange) {
		t.Errorf("GetOpenOrders error = %v, want ErrUnknownExchange", err)
	}
	if _, err := uc.GetBalances(ctx, "nowhere"); !errors.Is(err, ErrUnknownExchange) {
		t.Errorf("GetBalances error = %v, want ErrUnknownExchange", err)
	}
}
