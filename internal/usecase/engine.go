package usecase

import (
	"context"
	"errors"
	"math"
	"sync"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/andrv/stock_anomaly_bot/internal/domain"
	"github.com/andrv/stock_anomaly_bot/internal/metrics"
)

// EngineConfig tunes the per-cycle decision loop.
type EngineConfig struct {
	Symbols        []string
	HistoryBars    int
	BaseAllocation decimal.Decimal
	// MaxTranchesPerSymbol caps accumulation; 0 means unbounded.
	MaxTranchesPerSymbol int
	// LiquidationSeverity is the SELL severity at or above which an open
	// symbol is liquidated outright.
	LiquidationSeverity float64
	// Workers bounds the per-symbol fan-out within one cycle.
	Workers int
	// ReconcileTolerance is the allowed drift between tracked and
	// brokerage-reported share counts before a mismatch is logged.
	ReconcileTolerance float64
}

// Engine runs the per-tick decision loop: mark-to-market and exits first,
// then anomaly detection and entries. All collaborator failures are isolated
// per symbol; one bad symbol never stops the cycle.
type Engine struct {
	cfg      EngineConfig
	market   domain.MarketDataProvider
	exec     domain.ExecutionProvider
	sink     domain.PersistenceSink
	notify   domain.NotificationSink
	book     *PositionBook
	detector *AnomalyDetector
	logger   *zap.Logger

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

// NewEngine wires the decision loop. sink and notify may be nil; market and
// exec are required.
func NewEngine(
	cfg EngineConfig,
	market domain.MarketDataProvider,
	exec domain.ExecutionProvider,
	sink domain.PersistenceSink,
	notify domain.NotificationSink,
	book *PositionBook,
	detector *AnomalyDetector,
	logger *zap.Logger,
) *Engine {
	if cfg.Workers <= 0 {
		cfg.Workers = 4
	}
	if cfg.HistoryBars <= 0 {
		cfg.HistoryBars = 100
	}
	// Tracked shares are sums of float fills; exact equality against the
	// brokerage number would flag pure rounding noise.
	if cfg.ReconcileTolerance <= 0 {
		cfg.ReconcileTolerance = 1e-6
	}
	return &Engine{
		cfg:      cfg,
		market:   market,
		exec:     exec,
		sink:     sink,
		notify:   notify,
		book:     book,
		detector: detector,
		logger:   logger,
		locks:    make(map[string]*sync.Mutex),
	}
}

// RunCycle evaluates every configured symbol once, with bounded fan-out.
// Symbol failures are logged and skipped; RunCycle itself never fails.
func (e *Engine) RunCycle(ctx context.Context) {
	start := time.Now()

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.cfg.Workers)
	for _, symbol := range e.cfg.Symbols {
		if gctx.Err() != nil {
			break
		}
		symbol := symbol
		g.Go(func() error {
			e.EvaluateSymbol(gctx, symbol)
			return nil
		})
	}
	g.Wait()

	metrics.CyclesTotal.Inc()
	metrics.CycleDuration.Observe(time.Since(start).Seconds())
	metrics.OpenTranches.Set(float64(e.book.TotalOpenCount()))
	e.logger.Debug("cycle complete",
		zap.Int("symbols", len(e.cfg.Symbols)),
		zap.Duration("took", time.Since(start)))
}

// EvaluateSymbol runs one full decision pass for a single symbol. Same-symbol
// passes are serialized so book mutations never race.
func (e *Engine) EvaluateSymbol(ctx context.Context, symbol string) {
	lock := e.symbolLock(symbol)
	lock.Lock()
	defer lock.Unlock()

	bars, err := e.market.GetBars(ctx, symbol, e.cfg.HistoryBars)
	if err != nil {
		metrics.SymbolSkipsTotal.WithLabelValues("provider_error").Inc()
		e.logger.Warn("bar fetch failed, skipping symbol",
			zap.String("symbol", symbol), zap.Error(err))
		return
	}

	quote, err := e.market.GetQuote(ctx, symbol)
	if err != nil {
		metrics.SymbolSkipsTotal.WithLabelValues("provider_error").Inc()
		e.logger.Warn("quote fetch failed, skipping symbol",
			zap.String("symbol", symbol), zap.Error(err))
		return
	}
	price := quote.Last
	if price <= 0 {
		price = quote.Bid
	}
	// A quote with neither a last trade nor a bid carries no usable price;
	// marking the book with it would fire every stop. Treat it like any
	// other provider failure and retry next tick.
	if price <= 0 {
		metrics.SymbolSkipsTotal.WithLabelValues("provider_error").Inc()
		e.logger.Warn("quote has no usable price, skipping symbol",
			zap.String("symbol", symbol))
		return
	}

	// Exit check runs before detection and suppresses any entry this tick,
	// even when the liquidation itself fails and is left for the next one.
	exitTriggered := false
	if exit, reason := e.book.MarkToMarket(symbol, price); exit {
		exitTriggered = true
		e.logger.Info("exit condition met",
			zap.String("symbol", symbol),
			zap.String("reason", reason),
			zap.Float64("price", price))
		e.liquidate(ctx, symbol, reason)
	}

	signal, err := e.detector.Evaluate(bars, time.Now())
	if err != nil {
		var insufficient *domain.InsufficientDataError
		if errors.As(err, &insufficient) {
			metrics.SymbolSkipsTotal.WithLabelValues("insufficient_data").Inc()
			e.logger.Debug("not enough history",
				zap.String("symbol", symbol),
				zap.Int("have", insufficient.Have),
				zap.Int("need", insufficient.Need))
		} else {
			metrics.SymbolSkipsTotal.WithLabelValues("detector_error").Inc()
			e.logger.Warn("detector failed", zap.String("symbol", symbol), zap.Error(err))
		}
		return
	}

	metrics.SignalsTotal.WithLabelValues(string(signal.Action)).Inc()
	e.persistSignal(ctx, signal)

	switch signal.Action {
	case domain.ActionBuy:
		if exitTriggered {
			e.logger.Info("entry suppressed, symbol exited this tick",
				zap.String("symbol", symbol),
				zap.Float64("severity", signal.TotalSeverity))
			return
		}
		e.enter(ctx, symbol, signal)
	case domain.ActionSell:
		if exitTriggered || !e.book.HasPosition(symbol) {
			return
		}
		if signal.TotalSeverity < e.cfg.LiquidationSeverity {
			e.logger.Debug("sell signal below liquidation threshold, holding",
				zap.String("symbol", symbol),
				zap.Float64("severity", signal.TotalSeverity),
				zap.Float64("threshold", e.cfg.LiquidationSeverity))
			return
		}
		e.logger.Info("overbought liquidation",
			zap.String("symbol", symbol),
			zap.Float64("severity", signal.TotalSeverity))
		e.liquidate(ctx, symbol, ExitReasonOverbought)
	}
}

func (e *Engine) enter(ctx context.Context, symbol string, signal *domain.AnomalySignal) {
	if limit := e.cfg.MaxTranchesPerSymbol; limit > 0 && e.book.OpenCount(symbol) >= limit {
		metrics.SymbolSkipsTotal.WithLabelValues("max_tranches").Inc()
		e.logger.Info("max tranches reached, skipping entry",
			zap.String("symbol", symbol), zap.Int("open", e.book.OpenCount(symbol)))
		return
	}

	notional := PositionSize(e.book.Performance(symbol), e.cfg.BaseAllocation)

	buyingPower, err := e.exec.GetBuyingPower(ctx)
	if err != nil {
		e.logger.Warn("buying power unavailable, skipping entry",
			zap.String("symbol", symbol), zap.Error(err))
		return
	}
	if buyingPower.LessThan(notional) {
		metrics.SymbolSkipsTotal.WithLabelValues("insufficient_capital").Inc()
		e.logger.Warn("insufficient buying power",
			zap.String("symbol", symbol),
			zap.String("needed", notional.StringFixed(2)),
			zap.String("available", buyingPower.StringFixed(2)))
		return
	}

	if e.notify != nil {
		if err := e.notify.NotifyBuy(ctx, symbol, notional, signal); err != nil {
			e.logger.Warn("buy notification failed",
				zap.String("symbol", symbol), zap.Error(err))
		}
	}

	// Once the order goes out, the fill must be recorded even if the tick
	// is being cancelled, or the book diverges from the brokerage.
	fill, err := e.exec.SubmitBuy(context.WithoutCancel(ctx), symbol, notional)
	if err != nil {
		metrics.OrderErrorsTotal.WithLabelValues("buy").Inc()
		e.logger.Error("buy rejected",
			zap.String("symbol", symbol),
			zap.String("notional", notional.StringFixed(2)),
			zap.Error(err))
		return
	}
	metrics.OrdersTotal.WithLabelValues("buy").Inc()

	pos := e.book.Open(symbol, fill.Shares, fill.Price, time.Now())
	e.logger.Info("tranche opened",
		zap.String("symbol", symbol),
		zap.String("id", pos.ID),
		zap.Float64("shares", pos.Shares),
		zap.Float64("entry", pos.EntryPrice),
		zap.Float64("stop", pos.StopLossPrice),
		zap.Float64("trail", pos.TrailingStopPrice),
		zap.Float64("severity", signal.TotalSeverity))

	e.reconcile(ctx, symbol)
}

// liquidate sells the symbol's whole aggregate and closes every tranche at
// the fill price. Returns true when the book was actually closed; a rejected
// sell leaves the book untouched for retry next tick.
func (e *Engine) liquidate(ctx context.Context, symbol, reason string) bool {
	shares := e.book.TotalShares(symbol)
	if shares <= 0 {
		return false
	}

	fill, err := e.exec.SubmitSell(context.WithoutCancel(ctx), symbol, shares)
	if err != nil {
		metrics.OrderErrorsTotal.WithLabelValues("sell").Inc()
		e.logger.Error("sell rejected, book unchanged",
			zap.String("symbol", symbol),
			zap.String("reason", reason),
			zap.Float64("shares", shares),
			zap.Error(err))
		return false
	}
	metrics.OrdersTotal.WithLabelValues("sell").Inc()

	for _, closed := range e.book.CloseAll(symbol, fill.Price, reason, time.Now()) {
		e.logger.Info("tranche closed",
			zap.String("symbol", symbol),
			zap.String("id", closed.ID),
			zap.String("reason", reason),
			zap.Float64("shares", closed.Shares),
			zap.Float64("entry", closed.EntryPrice),
			zap.Float64("exit", closed.ExitPrice),
			zap.Float64("pnl", closed.RealizedPnL))
		e.persistClosed(ctx, &closed)
	}

	e.reconcile(ctx, symbol)
	return true
}

// reconcile compares tracked shares against the brokerage aggregate. The
// book stays authoritative; a mismatch is surfaced for the operator.
func (e *Engine) reconcile(ctx context.Context, symbol string) {
	reported, err := e.exec.GetAggregatePosition(ctx, symbol)
	if err != nil {
		e.logger.Debug("aggregate position unavailable",
			zap.String("symbol", symbol), zap.Error(err))
		return
	}
	tracked := e.book.TotalShares(symbol)
	if math.Abs(tracked-reported) > e.cfg.ReconcileTolerance {
		metrics.ReconcileMismatchesTotal.Inc()
		e.logger.Warn("position reconciliation mismatch",
			zap.String("symbol", symbol),
			zap.Float64("tracked", tracked),
			zap.Float64("reported", reported))
	}
}

func (e *Engine) persistSignal(ctx context.Context, signal *domain.AnomalySignal) {
	if e.sink == nil {
		return
	}
	if err := e.sink.SaveSignal(ctx, signal); err != nil {
		e.logger.Warn("signal persistence failed",
			zap.String("symbol", signal.Symbol), zap.Error(err))
	}
}

func (e *Engine) persistClosed(ctx context.Context, closed *domain.ClosedPosition) {
	if e.sink == nil {
		return
	}
	if err := e.sink.SaveClosedPosition(ctx, closed); err != nil {
		e.logger.Warn("closed position persistence failed",
			zap.String("symbol", closed.Symbol), zap.Error(err))
	}
}

func (e *Engine) symbolLock(symbol string) *sync.Mutex {
	e.mu.Lock()
	defer e.mu.Unlock()
	lock, ok := e.locks[symbol]
	if !ok {
		lock = &sync.Mutex{}
		e.locks[symbol] = lock
	}
	return lock
}
