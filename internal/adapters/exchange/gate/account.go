package gate

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"

	"arbiflow/internal/application/ports"
	"arbiflow/internal/domain/models"
)

// walletBalanceResponse is the account balance envelope
type walletBalanceResponse struct {
	RetCode int    `json:"retCode"`
	RetMsg  string `json:"retMsg"`
	Result  struct {
		List []struct {
			Coins []struct {
				Coin   string `json:"coin"`
				Free   string `json:"availableToWithdraw"`
				Locked string `json:"locked"`
			} `json:"coin"`
		} `json:"list"`
	} `json:"result"`
	Time int64 `json:"time"`
}

// AccountBalances returns all asset balances. Requires API credentials.
func (c *Connector) AccountBalances(ctx context.Context) ([]models.Balance, error) {
	// Market-data-only deployments have no credentials; fail fast rather
	// than returning empty balances that look real.
	if c.cfg.APIKey == "" {
		return nil, fmt.Errorf("balances on %s without credentials: %w", c.name, ports.ErrUnsupported)
	}
	if !c.limiter.TryAcquire() {
		return nil, fmt.Errorf("rate budget exhausted on %s", c.name)
	}

	query := url.Values{}
	query.Set("accountType", "UNIFIED")

	body, err := c.signedRequest(ctx, http.MethodGet, walletBalanceEndpoint, query.Encode(), nil)
	if err != nil {
		c.emitError(c.name+":balances", err.Error())
		return nil, err
	}

	var resp walletBalanceResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("malformed balance response: %w", err)
	}
	if resp.RetCode != 0 {
		return nil, fmt.Errorf("balance query rejected by %s: %s", c.name, resp.RetMsg)
	}
	if len(resp.Result.List) == 0 {
		return []models.Balance{}, nil
	}

	coins := resp.Result.List[0].Coins
	balances := make([]models.Balance, 0, len(coins))
	for _, coin := range coins {
		balances = append(balances, models.NewBalance(coin.Coin, parseFloat(coin.Free), parseFloat(coin.Locked)))
	}
	return balances, nil
}

// AssetBalance returns the balance of a single asset
func (c *Connector) AssetBalance(ctx context.Context, asset string) (models.Balance, error) {
	balances, err := c.AccountBalances(ctx)
	if err != nil {
		return models.Balance{}, err
	}
	for _, balance := range balances {
		if balance.Asset == asset {
			return balance, nil
		}
	}
	return models.NewBalance(asset, 0, 0), nil
}

// AvailableBalance returns the free amount of a single asset
func (c *Connector) AvailableBalance(ctx context.Context, asset string) (float64, error) {
	balance, err := c.AssetBalance(ctx, asset)
	if err != nil {
		return 0, err
	}
	return balance.Free, nil
}
