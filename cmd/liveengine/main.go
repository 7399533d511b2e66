// cmd/liveengine runs the live decision pipeline:
//
//	[Feed WS] → [Ring Buffer] → [Snapshot Builder] → [Engine] → [Redis/SQLite/Alerts]
//
// One engine per configured symbol. The oracle's regime signals arrive
// over Redis Pub/Sub and gate setups per the configured filter stage.
package main

import (
	"context"
	"log"
	"log/slog"
	"math"
	"os"
	"os/signal"
	"syscall"
	"time"

	"ratchet-systemv1/config"
	"ratchet-systemv1/internal/engine"
	"ratchet-systemv1/internal/execution"
	"ratchet-systemv1/internal/feed"
	"ratchet-systemv1/internal/indicator"
	"ratchet-systemv1/internal/logger"
	"ratchet-systemv1/internal/metrics"
	"ratchet-systemv1/internal/model"
	"ratchet-systemv1/internal/notification"
	"ratchet-systemv1/internal/oracle"
	"ratchet-systemv1/internal/portfolio"
	"ratchet-systemv1/internal/ringbuf"
	redisstore "ratchet-systemv1/internal/store/redis"
	sqlitestore "ratchet-systemv1/internal/store/sqlite"
)

// symbolState bundles the per-instrument pipeline pieces.
type symbolState struct {
	builder   *indicator.Builder
	engine    *engine.Engine
	lastEntry model.EntryEvent // pending entry for trade journaling
	hasEntry  bool
	lastStop  float64
}

func main() {
	log.SetFlags(log.LstdFlags | log.Lmicroseconds | log.Lshortfile)

	cfg := config.Load()
	slg := logger.Init("liveengine", logger.ParseLevel(os.Getenv("LOG_LEVEL")))
	slg.Info("starting", slog.String("symbols", cfg.Symbols))

	symbols := cfg.ParseSymbols()
	if len(symbols) == 0 {
		log.Fatal("[liveengine] no symbols configured")
	}

	stage, err := engine.ParseFilterStage(cfg.RegimeFilterStage)
	if err != nil {
		log.Fatalf("[liveengine] %v", err)
	}
	params := engine.Params{
		ATRRiskFactor:      cfg.ATRRiskFactor,
		MFILowerThreshold:  cfg.MFILowerThreshold,
		MFIHigherThreshold: cfg.MFIHigherThreshold,
		HardStopFraction:   cfg.HardStopFraction,
		RegimeFilterStage:  stage,
	}
	indCfg := indicator.Config{
		EMAPeriod: cfg.EMAPeriod,
		BBPeriod:  cfg.BBPeriod,
		BBStdDev:  cfg.BBStdDev,
		MFIPeriod: cfg.MFIPeriod,
		ATRPeriod: cfg.ATRPeriod,
	}

	// ---- Metrics & health ----
	prom := metrics.NewMetrics()
	health := metrics.NewHealthStatus()
	health.SetSymbols(symbols)
	metricsSrv := metrics.NewServer(cfg.MetricsAddr, health)
	metricsSrv.Start()

	// ---- Graceful shutdown ----
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	// ---- SQLite journal (candles, regime signals, trades) ----
	os.MkdirAll("data", 0o755)
	sqlWriter, err := sqlitestore.New(sqlitestore.WriterConfig{DBPath: cfg.SQLitePath})
	if err != nil {
		log.Fatalf("[liveengine] sqlite init failed: %v", err)
	}
	defer sqlWriter.Close()
	sqlWriter.OnCommit = func(d time.Duration) { prom.SQLiteCommitDur.Observe(d.Seconds()) }
	log.Println("[liveengine] sqlite writer ready")

	sqliteCandleCh := make(chan model.Candle, 5000)
	go sqlWriter.Run(ctx, sqliteCandleCh)

	// ---- Redis publisher (decision events, stop levels) ----
	publisher, err := redisstore.NewPublisher(redisstore.PublisherConfig{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
	})
	if err != nil {
		log.Fatalf("[liveengine] redis init failed: %v", err)
	}
	defer publisher.Close()

	buffered := redisstore.NewBufferedPublisher(publisher, 5, 10*time.Second, 1024)
	buffered.OnBuffer = func(string) { prom.BufferedPublishes.Inc() }

	health.StartLivenessChecker(ctx, publisher.Client(), sqlWriter.DB(), 10*time.Second)

	// ---- Oracle (regime classifier over Pub/Sub) ----
	oracleClient, err := oracle.New(oracle.Config{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		Channel:  cfg.OracleChannel,
		MaxAge:   time.Duration(cfg.RegimeStaleSecs) * time.Second,
	})
	if err != nil {
		log.Fatalf("[liveengine] oracle init failed: %v", err)
	}
	defer oracleClient.Close()
	oracleClient.OnSignal = func(sig model.RegimeSignal) {
		prom.RegimeSignalsTotal.Inc()
		prom.RegimeCategory.WithLabelValues(sig.Symbol).Set(metrics.RegimeGaugeValue(string(sig.Category)))
		health.SetOracleOK(true)
		if err := sqlWriter.WriteRegimeSignal(sig); err != nil {
			log.Printf("[liveengine] regime journal error: %v", err)
		}
	}
	go oracleClient.Run(ctx)

	// ---- Notifications ----
	var notifier notification.Notifier = notification.NewLogNotifier()
	if cfg.WebhookURL != "" {
		notifier = notification.NewWebhookNotifier(cfg.WebhookURL)
	}

	// ---- Paper execution & P&L ----
	executor := execution.NewPaperExecutor(float64(cfg.SlippageBps))
	pnl := portfolio.NewPnLTracker()

	// ---- Per-symbol pipelines ----
	states := make(map[string]*symbolState, len(symbols))
	for _, sym := range symbols {
		states[sym] = &symbolState{
			builder:  indicator.NewBuilder(indCfg),
			engine:   engine.New(sym, params),
			lastStop: math.NaN(),
		}
	}

	// ---- Feed → ring buffer ----
	ring := ringbuf.New(8192)
	feedClient, err := feed.New(feed.Config{
		URL:        cfg.FeedURL,
		APIKey:     cfg.FeedAPIKey,
		TOTPSecret: cfg.FeedTOTPSecret,
		Symbols:    symbols,
	})
	if err != nil {
		log.Fatalf("[liveengine] feed init failed: %v", err)
	}
	feedClient.OnCandle = func(c model.Candle) {
		ring.Push(c)
	}
	feedClient.OnReconnect = func() {
		prom.FeedReconnects.Inc()
		health.SetFeedConnected(false)
	}
	go func() {
		health.SetFeedConnected(true)
		if err := feedClient.Run(ctx); err != nil && ctx.Err() == nil {
			log.Printf("[liveengine] feed stopped: %v", err)
			health.SetFeedConnected(false)
		}
	}()

	// ---- Breaker state and ring overflow polling ----
	go func() {
		ticker := time.NewTicker(5 * time.Second)
		defer ticker.Stop()
		lastState := redisstore.StateClosed
		var lastOverflow uint64
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				state := buffered.BreakerState()
				prom.BreakerState.Set(float64(state))
				if state == redisstore.StateOpen && lastState != redisstore.StateOpen {
					prom.BreakerTrips.Inc()
				}
				lastState = state

				if of := ring.Overflow(); of > lastOverflow {
					prom.RingBufOverflow.Add(float64(of - lastOverflow))
					lastOverflow = of
				}
			}
		}
	}()

	log.Println("[liveengine] ╔══════════════════════════════════════════════════════════╗")
	log.Println("[liveengine] ║  Decision Engine — LIVE                                  ║")
	log.Println("[liveengine] ║                                                          ║")
	log.Println("[liveengine] ║  [Feed WS] → [Ring] → [Builder] → [Engine] → [Sinks]     ║")
	log.Printf("[liveengine] ║  Symbols: %-46v ║", symbols)
	log.Printf("[liveengine] ║  Regime filter stage: %-34s ║", stage)
	log.Println("[liveengine] ╚══════════════════════════════════════════════════════════╝")

	// ---- Hot loop: drain ring, step engines ----
	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			default:
			}

			candle, ok := ring.Pop()
			if !ok {
				time.Sleep(time.Millisecond)
				continue
			}
			prom.CandlesTotal.Inc()
			health.SetLastCandleTime(candle.TS)
			health.SetFeedConnected(true)

			// Journal off the hot path.
			select {
			case sqliteCandleCh <- candle:
			default:
			}

			st, known := states[candle.Symbol]
			if !known {
				continue
			}
			processCandle(ctx, candle, st, oracleClient, buffered, executor, pnl, sqlWriter, notifier, prom)
		}
	}()

	<-sigCh
	log.Println("[liveengine] shutdown signal received")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	metricsSrv.Stop(shutdownCtx)

	summary := pnl.GetSummary()
	slg.Info("shutdown complete",
		slog.Int("trades", summary.Trades),
		slog.Float64("total_return", summary.TotalReturn),
		slog.Float64("win_rate", summary.WinRate),
	)
}

// processCandle folds one candle through a symbol's builder and engine and
// routes the outcome to the sinks.
func processCandle(
	ctx context.Context,
	candle model.Candle,
	st *symbolState,
	oracleClient *oracle.Client,
	publisher *redisstore.BufferedPublisher,
	executor *execution.PaperExecutor,
	pnl *portfolio.PnLTracker,
	journal *sqlitestore.Writer,
	notifier notification.Notifier,
	prom *metrics.Metrics,
) {
	snap := st.builder.Fold(candle)
	if !snap.PricesValid() {
		prom.InvalidSnapshots.Inc()
	}
	regime := oracleClient.Latest(candle.Symbol)

	start := time.Now()
	res, err := st.engine.Step(snap, regime)
	prom.StepDur.Observe(time.Since(start).Seconds())
	if err != nil {
		prom.OutOfOrderDropped.Inc()
		log.Printf("[liveengine] dropped candle: %v", err)
		return
	}
	prom.SnapshotsTotal.Inc()

	prom.ArmedState.WithLabelValues(candle.Symbol, string(model.SideLong)).Set(boolGauge(res.LongArmed))
	prom.ArmedState.WithLabelValues(candle.Symbol, string(model.SideShort)).Set(boolGauge(res.ShortArmed))

	// Publish stop moves: initial placement and every tightening.
	if !math.IsNaN(res.Stop) && (math.IsNaN(st.lastStop) || res.Stop != st.lastStop) {
		if !math.IsNaN(st.lastStop) {
			prom.StopUpdates.WithLabelValues(candle.Symbol).Inc()
		}
		prom.CurrentStop.WithLabelValues(candle.Symbol).Set(res.Stop)
		publisher.PublishStop(ctx, candle.Symbol, res.Stop)
	}
	st.lastStop = res.Stop

	if res.Entry != nil {
		ev := *res.Entry
		prom.EntriesTotal.WithLabelValues(ev.Symbol, string(ev.Side)).Inc()
		publisher.PublishEntry(ctx, ev)

		fill := executor.ExecuteEntry(ctx, ev)
		pnl.RecordEntry(ev.Symbol, ev.Side, ev.TS, fill.Price)
		st.lastEntry = ev
		st.hasEntry = true

		if err := notifier.Send(ctx, notification.EntryAlert(ev)); err != nil {
			log.Printf("[liveengine] entry alert error: %v", err)
		}
	}

	if res.Exit != nil {
		ev := *res.Exit
		prom.ExitsTotal.WithLabelValues(ev.Symbol, string(ev.Side), string(ev.Reason)).Inc()
		prom.CurrentStop.WithLabelValues(ev.Symbol).Set(0)
		publisher.PublishExit(ctx, ev)

		fill := executor.ExecuteExit(ctx, ev)
		pnl.RecordExit(ev.Symbol, ev.TS, fill.Price, ev.Reason)

		if st.hasEntry {
			if err := journal.WriteTrade(st.lastEntry, ev); err != nil {
				log.Printf("[liveengine] trade journal error: %v", err)
			}
			st.hasEntry = false
		}

		if err := notifier.Send(ctx, notification.ExitAlert(ev)); err != nil {
			log.Printf("[liveengine] exit alert error: %v", err)
		}
	}
}

func boolGauge(b bool) float64 {
	if b {
		return 1
	}
	return 0
}
