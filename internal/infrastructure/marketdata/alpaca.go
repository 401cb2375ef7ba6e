package marketdata

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/andrv/stock_anomaly_bot/internal/domain"
)

const providerName = "alpaca-data"

// quoteFreshness is how long a streamed quote is trusted before falling
// back to REST.
const quoteFreshness = 10 * time.Second

// AlpacaData serves historical bars over REST and current quotes from the
// market-data websocket stream, with a REST fallback when the stream is
// stale or down.
type AlpacaData struct {
	apiKey    string
	apiSecret string
	baseURL   string
	streamURL string
	client    *http.Client
	logger    *zap.Logger

	mu     sync.RWMutex
	quotes map[string]domain.Quote
}

func NewAlpacaData(apiKey, apiSecret, baseURL, streamURL string, logger *zap.Logger) *AlpacaData {
	return &AlpacaData{
		apiKey:    apiKey,
		apiSecret: apiSecret,
		baseURL:   baseURL,
		streamURL: streamURL,
		client:    &http.Client{Timeout: 10 * time.Second},
		logger:    logger,
		quotes:    make(map[string]domain.Quote),
	}
}

// --- REST API ---

func (a *AlpacaData) sendRequest(ctx context.Context, path string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, a.baseURL+path, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("APCA-API-KEY-ID", a.apiKey)
	req.Header.Set("APCA-API-SECRET-KEY", a.apiSecret)

	resp, err := a.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}

	if resp.StatusCode >= 400 {
		return nil, fmt.Errorf("API error %d: %s", resp.StatusCode, string(body))
	}

	return body, nil
}

// GetBars returns up to limit one-minute bars for symbol, oldest first.
func (a *AlpacaData) GetBars(ctx context.Context, symbol string, limit int) ([]domain.PriceBar, error) {
	path := fmt.Sprintf("/v2/stocks/%s/bars?timeframe=1Min&limit=%d&adjustment=raw&feed=iex", symbol, limit)
	body, err := a.sendRequest(ctx, path)
	if err != nil {
		return nil, &domain.ProviderError{Provider: providerName, Op: "get bars", Err: err}
	}

	var result struct {
		Bars []struct {
			Time   time.Time `json:"t"`
			Open   float64   `json:"o"`
			High   float64   `json:"h"`
			Low    float64   `json:"l"`
			Close  float64   `json:"c"`
			Volume float64   `json:"v"`
		} `json:"bars"`
	}
	if err := json.Unmarshal(body, &result); err != nil {
		return nil, &domain.ProviderError{Provider: providerName, Op: "decode bars", Err: err}
	}

	bars := make([]domain.PriceBar, 0, len(result.Bars))
	for _, b := range result.Bars {
		bars = append(bars, domain.PriceBar{
			Symbol: symbol,
			Time:   b.Time,
			Open:   b.Open,
			High:   b.High,
			Low:    b.Low,
			Close:  b.Close,
			Volume: b.Volume,
		})
	}
	return bars, nil
}

// GetQuote returns the current quote, preferring a fresh streamed one.
func (a *AlpacaData) GetQuote(ctx context.Context, symbol string) (*domain.Quote, error) {
	a.mu.RLock()
	cached, ok := a.quotes[symbol]
	a.mu.RUnlock()
	if ok && time.Since(cached.Time) < quoteFreshness {
		quote := cached
		return &quote, nil
	}

	body, err := a.sendRequest(ctx, fmt.Sprintf("/v2/stocks/%s/quotes/latest?feed=iex", symbol))
	if err != nil {
		return nil, &domain.ProviderError{Provider: providerName, Op: "get quote", Err: err}
	}

	var quoteResult struct {
		Quote struct {
			Time time.Time `json:"t"`
			Bid  float64   `json:"bp"`
			Ask  float64   `json:"ap"`
		} `json:"quote"`
	}
	if err := json.Unmarshal(body, &quoteResult); err != nil {
		return nil, &domain.ProviderError{Provider: providerName, Op: "decode quote", Err: err}
	}

	body, err = a.sendRequest(ctx, fmt.Sprintf("/v2/stocks/%s/trades/latest?feed=iex", symbol))
	if err != nil {
		return nil, &domain.ProviderError{Provider: providerName, Op: "get last trade", Err: err}
	}

	var tradeResult struct {
		Trade struct {
			Price float64 `json:"p"`
		} `json:"trade"`
	}
	if err := json.Unmarshal(body, &tradeResult); err != nil {
		return nil, &domain.ProviderError{Provider: providerName, Op: "decode last trade", Err: err}
	}

	return &domain.Quote{
		Symbol: symbol,
		Bid:    quoteResult.Quote.Bid,
		Ask:    quoteResult.Quote.Ask,
		Last:   tradeResult.Trade.Price,
		Time:   quoteResult.Quote.Time,
	}, nil
}

// --- WebSocket stream ---

// StartStream connects to the market-data stream and keeps the quote cache
// current for the given symbols until ctx is cancelled. Reconnects with
// backoff on read failures.
func (a *AlpacaData) StartStream(ctx context.Context, symbols []string) error {
	conn, err := a.connect(ctx, symbols)
	if err != nil {
		return &domain.ProviderError{Provider: providerName, Op: "connect stream", Err: err}
	}

	go func() {
		backoff := time.Second
		for {
			a.readLoop(ctx, conn)
			if ctx.Err() != nil {
				return
			}

			a.logger.Warn("quote stream disconnected, reconnecting",
				zap.Duration("backoff", backoff))
			select {
			case <-ctx.Done():
				return
			case <-time.After(backoff):
			}
			if backoff < 30*time.Second {
				backoff *= 2
			}

			conn, err = a.connect(ctx, symbols)
			if err != nil {
				a.logger.Warn("quote stream reconnect failed", zap.Error(err))
				conn = nil
			} else {
				backoff = time.Second
			}
			if conn == nil {
				continue
			}
		}
	}()

	return nil
}

func (a *AlpacaData) connect(ctx context.Context, symbols []string) (*websocket.Conn, error) {
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, a.streamURL, nil)
	if err != nil {
		return nil, err
	}

	auth := map[string]interface{}{
		"action": "auth",
		"key":    a.apiKey,
		"secret": a.apiSecret,
	}
	if err := conn.WriteJSON(auth); err != nil {
		conn.Close()
		return nil, err
	}

	sub := map[string]interface{}{
		"action": "subscribe",
		"quotes": symbols,
		"trades": symbols,
	}
	if err := conn.WriteJSON(sub); err != nil {
		conn.Close()
		return nil, err
	}

	return conn, nil
}

func (a *AlpacaData) readLoop(ctx context.Context, conn *websocket.Conn) {
	if conn == nil {
		return
	}
	defer conn.Close()

	go func() {
		<-ctx.Done()
		conn.Close()
	}()

	for {
		_, message, err := conn.ReadMessage()
		if err != nil {
			if ctx.Err() == nil {
				a.logger.Warn("quote stream read failed", zap.Error(err))
			}
			return
		}

		var events []struct {
			Type   string    `json:"T"`
			Symbol string    `json:"S"`
			Bid    float64   `json:"bp"`
			Ask    float64   `json:"ap"`
			Price  float64   `json:"p"`
			Time   time.Time `json:"t"`
		}
		if err := json.Unmarshal(message, &events); err != nil {
			continue
		}

		for _, ev := range events {
			switch ev.Type {
			case "q":
				a.mu.Lock()
				quote := a.quotes[ev.Symbol]
				quote.Symbol = ev.Symbol
				quote.Bid = ev.Bid
				quote.Ask = ev.Ask
				quote.Time = ev.Time
				a.quotes[ev.Symbol] = quote
				a.mu.Unlock()
			case "t":
				a.mu.Lock()
				quote := a.quotes[ev.Symbol]
				quote.Symbol = ev.Symbol
				quote.Last = ev.Price
				quote.Time = ev.Time
				a.quotes[ev.Symbol] = quote
				a.mu.Unlock()
			}
		}
	}
}
