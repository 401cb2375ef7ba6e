package broker

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/shopspring/decimal"

	"github.com/andrv/stock_anomaly_bot/internal/domain"
)

const providerName = "alpaca-trading"

const (
	fillPollInterval = 500 * time.Millisecond
	fillPollTimeout  = 30 * time.Second
)

// AlpacaBroker submits market orders to the trading API and reports account
// state. Orders are day orders, polled to their fill before returning.
type AlpacaBroker struct {
	apiKey    string
	apiSecret string
	baseURL   string
	client    *http.Client
}

func NewAlpacaBroker(apiKey, apiSecret, baseURL string) *AlpacaBroker {
	return &AlpacaBroker{
		apiKey:    apiKey,
		apiSecret: apiSecret,
		baseURL:   baseURL,
		client:    &http.Client{Timeout: 10 * time.Second},
	}
}

func (b *AlpacaBroker) sendRequest(ctx context.Context, method, path string, payload interface{}) (int, []byte, error) {
	var body []byte
	if payload != nil {
		var err error
		body, err = json.Marshal(payload)
		if err != nil {
			return 0, nil, err
		}
	}

	req, err := http.NewRequestWithContext(ctx, method, b.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return 0, nil, err
	}
	req.Header.Set("APCA-API-KEY-ID", b.apiKey)
	req.Header.Set("APCA-API-SECRET-KEY", b.apiSecret)
	req.Header.Set("Content-Type", "application/json")

	resp, err := b.client.Do(req)
	if err != nil {
		return 0, nil, err
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return resp.StatusCode, nil, err
	}

	return resp.StatusCode, respBody, nil
}

// GetBuyingPower returns the account's available buying power.
func (b *AlpacaBroker) GetBuyingPower(ctx context.Context) (decimal.Decimal, error) {
	status, body, err := b.sendRequest(ctx, http.MethodGet, "/v2/account", nil)
	if err != nil {
		return decimal.Zero, &domain.ProviderError{Provider: providerName, Op: "get account", Err: err}
	}
	if status >= 400 {
		return decimal.Zero, &domain.ProviderError{
			Provider: providerName,
			Op:       "get account",
			Err:      fmt.Errorf("API error %d: %s", status, string(body)),
		}
	}

	var account struct {
		BuyingPower string `json:"buying_power"`
	}
	if err := json.Unmarshal(body, &account); err != nil {
		return decimal.Zero, &domain.ProviderError{Provider: providerName, Op: "decode account", Err: err}
	}

	power, err := decimal.NewFromString(account.BuyingPower)
	if err != nil {
		return decimal.Zero, &domain.ProviderError{Provider: providerName, Op: "parse buying power", Err: err}
	}
	return power, nil
}

type orderResponse struct {
	ID             string `json:"id"`
	Status         string `json:"status"`
	FilledQty      string `json:"filled_qty"`
	FilledAvgPrice string `json:"filled_avg_price"`
}

// SubmitBuy places a notional market buy and waits for the fill.
func (b *AlpacaBroker) SubmitBuy(ctx context.Context, symbol string, notional decimal.Decimal) (*domain.Fill, error) {
	order := map[string]interface{}{
		"symbol":        symbol,
		"notional":      notional.StringFixed(2),
		"side":          "buy",
		"type":          "market",
		"time_in_force": "day",
	}
	return b.submitOrder(ctx, symbol, "buy", order)
}

// SubmitSell places a market sell for the given share count and waits for
// the fill.
func (b *AlpacaBroker) SubmitSell(ctx context.Context, symbol string, shares float64) (*domain.Fill, error) {
	order := map[string]interface{}{
		"symbol":        symbol,
		"qty":           strconv.FormatFloat(shares, 'f', -1, 64),
		"side":          "sell",
		"type":          "market",
		"time_in_force": "day",
	}
	return b.submitOrder(ctx, symbol, "sell", order)
}

func (b *AlpacaBroker) submitOrder(ctx context.Context, symbol, side string, payload map[string]interface{}) (*domain.Fill, error) {
	status, body, err := b.sendRequest(ctx, http.MethodPost, "/v2/orders", payload)
	if err != nil {
		return nil, &domain.ProviderError{Provider: providerName, Op: "submit order", Err: err}
	}
	if status >= 400 {
		return nil, &domain.OrderError{Symbol: symbol, Side: side, Reason: string(body)}
	}

	var order orderResponse
	if err := json.Unmarshal(body, &order); err != nil {
		return nil, &domain.ProviderError{Provider: providerName, Op: "decode order", Err: err}
	}

	return b.waitForFill(ctx, symbol, side, order.ID)
}

// waitForFill polls the order until it reaches a terminal state.
func (b *AlpacaBroker) waitForFill(ctx context.Context, symbol, side, orderID string) (*domain.Fill, error) {
	deadline := time.Now().Add(fillPollTimeout)

	for {
		status, body, err := b.sendRequest(ctx, http.MethodGet, "/v2/orders/"+orderID, nil)
		if err != nil {
			return nil, &domain.ProviderError{Provider: providerName, Op: "poll order", Err: err}
		}
		if status >= 400 {
			return nil, &domain.ProviderError{
				Provider: providerName,
				Op:       "poll order",
				Err:      fmt.Errorf("API error %d: %s", status, string(body)),
			}
		}

		var order orderResponse
		if err := json.Unmarshal(body, &order); err != nil {
			return nil, &domain.ProviderError{Provider: providerName, Op: "decode order", Err: err}
		}

		switch order.Status {
		case "filled":
			shares, err := strconv.ParseFloat(order.FilledQty, 64)
			if err != nil {
				return nil, &domain.ProviderError{Provider: providerName, Op: "parse filled qty", Err: err}
			}
			price, err := strconv.ParseFloat(order.FilledAvgPrice, 64)
			if err != nil {
				return nil, &domain.ProviderError{Provider: providerName, Op: "parse fill price", Err: err}
			}
			return &domain.Fill{Shares: shares, Price: price}, nil
		case "canceled", "expired", "rejected":
			return nil, &domain.OrderError{Symbol: symbol, Side: side, Reason: "order " + order.Status}
		}

		if time.Now().After(deadline) {
			return nil, &domain.OrderError{Symbol: symbol, Side: side, Reason: "fill poll timed out"}
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(fillPollInterval):
		}
	}
}

// GetAggregatePosition returns the brokerage's total share count for the
// symbol. A 404 means no position and reports 0 shares.
func (b *AlpacaBroker) GetAggregatePosition(ctx context.Context, symbol string) (float64, error) {
	status, body, err := b.sendRequest(ctx, http.MethodGet, "/v2/positions/"+symbol, nil)
	if err != nil {
		return 0, &domain.ProviderError{Provider: providerName, Op: "get position", Err: err}
	}
	if status == http.StatusNotFound {
		return 0, nil
	}
	if status >= 400 {
		return 0, &domain.ProviderError{
			Provider: providerName,
			Op:       "get position",
			Err:      fmt.Errorf("API error %d: %s", status, string(body)),
		}
	}

	var position struct {
		Qty string `json:"qty"`
	}
	if err := json.Unmarshal(body, &position); err != nil {
		return 0, &domain.ProviderError{Provider: providerName, Op: "decode position", Err: err}
	}

	qty, err := strconv.ParseFloat(position.Qty, 64)
	if err != nil {
		return 0, &domain.ProviderError{Provider: providerName, Op: "parse position qty", Err: err}
	}
	return qty, nil
}
