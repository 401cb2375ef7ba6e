package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/shopspring/decimal"

	"github.com/andrv/stock_anomaly_bot/internal/domain"
)

// WebhookSink posts buy-intent events to a configured URL as JSON.
type WebhookSink struct {
	url    string
	client *http.Client
}

func NewWebhookSink(url string) *WebhookSink {
	return &WebhookSink{
		url:    url,
		client: &http.Client{Timeout: 5 * time.Second},
	}
}

func (s *WebhookSink) NotifyBuy(ctx context.Context, symbol string, notional decimal.Decimal, signal *domain.AnomalySignal) error {
	payload := map[string]interface{}{
		"event":     "buy_intent",
		"symbol":    symbol,
		"notional":  notional.StringFixed(2),
		"severity":  signal.TotalSeverity,
		"anomalies": signal.Anomalies,
		"time":      signal.Time.Format(time.RFC3339),
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.url, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return fmt.Errorf("webhook returned %s", resp.Status)
	}
	return nil
}
