package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"arbiflow/internal/application/ports"
	"arbiflow/internal/config"
	"arbiflow/internal/domain/models"
)

// mirrorTTL bounds how long a tick outlives its feed; dashboards reading the
// mirror see gaps, not stale prices, when a connector dies.
const mirrorTTL = 2 * time.Minute

// Adapter implements the TickMirror interface for Redis
type Adapter struct {
	client *redis.Client
}

// New creates a new Redis adapter
func New(cfg config.CacheConfig) (ports.TickMirror, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		Password: cfg.Password,
		DB:       cfg.Database,
	})

	// Test connection
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	return &Adapter{
		client: client,
	}, nil
}

// SetLatestTick mirrors the latest snapshot for an (exchange, symbol) key
func (a *Adapter) SetLatestTick(ctx context.Context, tick models.TickSnapshot) error {
	key := fmt.Sprintf("latest:%s:%s", tick.Exchange, tick.Symbol)

	data, err := json.Marshal(tick)
	if err != nil {
		return err
	}

	return a.client.Set(ctx, key, data, mirrorTTL).Err()
}

// GetLatestTick reads a mirrored snapshot, returning nil when absent
func (a *Adapter) GetLatestTick(ctx context.Context, exchange, symbol string) (*models.TickSnapshot, error) {
	key := fmt.Sprintf("latest:%s:%s", exchange, symbol)

	data, err := a.client.Get(ctx, key).Result()
	if err != nil {
		if err == redis.Nil {
			return nil, nil
		}
		return nil, err
	}

	var tick models.TickSnapshot
	if err := json.Unmarshal([]byte(data), &tick); err != nil {
		return nil, err
	}

	return &tick, nil
}

// GetLatestTicks reads mirrored snapshots for a symbol across all exchanges
func (a *Adapter) GetLatestTicks(ctx context.Context, symbol string) ([]models.TickSnapshot, error) {
	pattern := fmt.Sprintf("latest:*:%s", symbol)

	keys, err := a.client.Keys(ctx, pattern).Result()
	if err != nil {
		return nil, err
	}

	if len(keys) == 0 {
		return []models.TickSnapshot{}, nil
	}

	values, err := a.client.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, err
	}

	var ticks []models.TickSnapshot
	for _, value := range values {
		if value == nil {
			continue
		}

		var tick models.TickSnapshot
		if err := json.Unmarshal([]byte(value.(string)), &tick); err != nil {
			continue
		}

		ticks = append(ticks, tick)
	}

	return ticks, nil
}

// Close closes the mirror connection
func (a *Adapter) Close() error {
	return a.client.Close()
}
