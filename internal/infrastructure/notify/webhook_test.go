package notify_test

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/andrv/stock_anomaly_bot/internal/domain"
	"github.com/andrv/stock_anomaly_bot/internal/infrastructure/notify"
)

func TestWebhookNotifyBuy(t *testing.T) {
	var received map[string]interface{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		_ = json.Unmarshal(body, &received)
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	sink := notify.NewWebhookSink(srv.URL)
	signal := &domain.AnomalySignal{
		Symbol:        "AAPL",
		Time:          time.Date(2025, 6, 2, 10, 0, 0, 0, time.UTC),
		Anomalies:     []domain.Anomaly{{Kind: domain.AnomalyZScore, Severity: 2.4}},
		TotalSeverity: 2.4,
		Action:        domain.ActionBuy,
	}

	err := sink.NotifyBuy(context.Background(), "AAPL", decimal.NewFromInt(1200), signal)
	require.NoError(t, err)

	assert.Equal(t, "buy_intent", received["event"])
	assert.Equal(t, "AAPL", received["symbol"])
	assert.Equal(t, "1200.00", received["notional"])
}

func TestWebhookNon2xxIsError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	sink := notify.NewWebhookSink(srv.URL)
	err := sink.NotifyBuy(context.Background(), "AAPL", decimal.NewFromInt(1000), &domain.AnomalySignal{})
	assert.Error(t, err)
}
