package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/andrv/stock_anomaly_bot/internal/config"
	"github.com/andrv/stock_anomaly_bot/internal/domain"
	"github.com/andrv/stock_anomaly_bot/internal/infrastructure/broker"
	"github.com/andrv/stock_anomaly_bot/internal/infrastructure/logger"
	"github.com/andrv/stock_anomaly_bot/internal/infrastructure/marketdata"
	"github.com/andrv/stock_anomaly_bot/internal/infrastructure/notify"
	"github.com/andrv/stock_anomaly_bot/internal/infrastructure/storage"
	"github.com/andrv/stock_anomaly_bot/internal/metrics"
	"github.com/andrv/stock_anomaly_bot/internal/usecase"
)

func main() {
	// 1. Load Config
	cfgPath := "config/config.yaml"
	if len(os.Args) > 1 {
		cfgPath = os.Args[1]
	}
	cfg, err := config.Load(cfgPath)
	if err != nil {
		fmt.Printf("Failed to load config: %v\n", err)
		os.Exit(1)
	}
	if err := cfg.Validate(); err != nil {
		fmt.Printf("Invalid config: %v\n", err)
		os.Exit(1)
	}

	// 2. Init Logger
	var log *zap.Logger
	if cfg.Logging.File != "" {
		log, err = logger.NewFileLogger(cfg.Logging.File, cfg.Logging.Level)
	} else {
		log, err = logger.NewLogger(cfg.Logging.Level)
	}
	if err != nil {
		fmt.Printf("Failed to init logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	// 3. Init Storage
	sink, err := storage.NewSQLiteSink(cfg.Storage.Path)
	if err != nil {
		log.Fatal("Failed to init sqlite", zap.Error(err))
	}
	defer sink.Close()

	// 4. Init Collaborators
	market := marketdata.NewAlpacaData(
		cfg.Alpaca.APIKey, cfg.Alpaca.APISecret,
		cfg.Alpaca.DataURL, cfg.Alpaca.StreamURL, log)
	exec := broker.NewAlpacaBroker(cfg.Alpaca.APIKey, cfg.Alpaca.APISecret, cfg.Alpaca.TradeURL)

	var notifier domain.NotificationSink
	if cfg.Notify.WebhookURL != "" {
		notifier = notify.NewWebhookSink(cfg.Notify.WebhookURL)
	}

	// 5. Init Engine
	book := usecase.NewPositionBook(cfg.Strategy.StopPct, cfg.Strategy.TrailPct)
	detector := usecase.NewAnomalyDetector(usecase.DetectorConfig{
		Lookback:    cfg.Strategy.Lookback,
		RSIPeriod:   cfg.Strategy.RSIPeriod,
		MinSeverity: cfg.Strategy.MinSeverity,
	})
	engine := usecase.NewEngine(usecase.EngineConfig{
		Symbols:              cfg.Symbols,
		HistoryBars:          cfg.Strategy.HistoryBars,
		BaseAllocation:       decimal.NewFromFloat(cfg.Strategy.BaseAllocation),
		MaxTranchesPerSymbol: cfg.Strategy.MaxTranches,
		LiquidationSeverity:  cfg.Strategy.LiquidationSeverity,
		Workers:              cfg.Workers,
	}, market, exec, sink, notifier, book, detector, log)

	// 6. Init Scheduler
	loc, err := time.LoadLocation(cfg.Scheduler.Timezone)
	if err != nil {
		log.Fatal("Failed to load timezone", zap.Error(err))
	}
	openH, openM, _ := config.ParseClock(cfg.Scheduler.Open)
	closeH, closeM, _ := config.ParseClock(cfg.Scheduler.Close)
	hours := usecase.MarketHours{
		Location:    loc,
		OpenHour:    openH,
		OpenMinute:  openM,
		CloseHour:   closeH,
		CloseMinute: closeM,
	}
	interval := time.Duration(cfg.Scheduler.IntervalSec) * time.Second
	sched := usecase.NewScheduler(engine, hours, interval, log)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// 7. Start Quote Stream (REST fallback covers a failed connect)
	if err := market.StartStream(ctx, cfg.Symbols); err != nil {
		log.Warn("Quote stream unavailable, using REST quotes", zap.Error(err))
	}

	// 8. Metrics Endpoint
	go func() {
		mux := http.NewServeMux()
		mux.Handle("/metrics", metrics.Handler())
		addr := fmt.Sprintf(":%d", cfg.Metrics.Port)
		log.Info("Metrics endpoint listening", zap.String("addr", addr))
		if err := http.ListenAndServe(addr, mux); err != nil {
			log.Error("Metrics server failed", zap.Error(err))
		}
	}()

	// 9. Run Scheduler
	go sched.Run(ctx)
	log.Info("Bot started",
		zap.Strings("symbols", cfg.Symbols),
		zap.Duration("interval", interval))

	// 10. Wait for Shutdown
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	<-stop

	log.Info("Shutting down...")
	cancel()
}
