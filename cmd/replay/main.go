// cmd/replay feeds historical candles from SQLite through the decision
// engine and prints the resulting trades. Replay shares the engine code
// with cmd/liveengine, so identical input reproduces identical decisions.
//
// Usage:
//
//	go run ./cmd/replay --db=data/candles.db --symbol=BTC/USDT --speed=0
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"ratchet-systemv1/config"
	"ratchet-systemv1/internal/engine"
	"ratchet-systemv1/internal/execution"
	"ratchet-systemv1/internal/indicator"
	"ratchet-systemv1/internal/model"
	"ratchet-systemv1/internal/portfolio"
	"ratchet-systemv1/internal/replay"
	sqlitestore "ratchet-systemv1/internal/store/sqlite"
)

func main() {
	log.SetFlags(log.LstdFlags | log.Lmicroseconds | log.Lshortfile)

	cfg := config.Load()

	// Flags override env config where both exist.
	dbPath := flag.String("db", cfg.SQLitePath, "Path to SQLite database")
	symbol := flag.String("symbol", "BTC/USDT", "Instrument to replay")
	fromTS := flag.Int64("from", 0, "Unix timestamp to start replay from (0=all)")
	speed := flag.Float64("speed", 0, "Playback speed multiplier (0=max, 1=realtime)")
	verbose := flag.Bool("v", false, "Print every entry/exit as it happens")
	flag.Parse()

	stage, err := engine.ParseFilterStage(cfg.RegimeFilterStage)
	if err != nil {
		log.Fatalf("[replay] %v", err)
	}
	params := engine.Params{
		ATRRiskFactor:      cfg.ATRRiskFactor,
		MFILowerThreshold:  cfg.MFILowerThreshold,
		MFIHigherThreshold: cfg.MFIHigherThreshold,
		HardStopFraction:   cfg.HardStopFraction,
		RegimeFilterStage:  stage,
	}

	reader, err := sqlitestore.NewReader(*dbPath)
	if err != nil {
		log.Fatalf("[replay] sqlite open failed: %v", err)
	}
	defer reader.Close()

	// Regime history: every bar sees the signal that was current when it
	// closed, exactly as the live engine did.
	signals, err := reader.ReadRegimeSignals(*symbol, 0)
	if err != nil {
		log.Fatalf("[replay] read regime signals failed: %v", err)
	}
	timeline := replay.NewRegimeTimeline(signals)
	regimeMaxAge := time.Duration(cfg.RegimeStaleSecs) * time.Second

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		cancel()
	}()

	replayer := replay.New(reader)
	candleCh := make(chan model.Candle, 10000)

	go func() {
		if err := replayer.Run(ctx, *symbol, *fromTS, *speed, candleCh); err != nil && !errors.Is(err, context.Canceled) {
			log.Printf("[replay] replay error: %v", err)
		}
		close(candleCh)
	}()

	builder := indicator.NewBuilder(indicator.Config{
		EMAPeriod: cfg.EMAPeriod,
		BBPeriod:  cfg.BBPeriod,
		BBStdDev:  cfg.BBStdDev,
		MFIPeriod: cfg.MFIPeriod,
		ATRPeriod: cfg.ATRPeriod,
	})
	eng := engine.New(*symbol, params)
	executor := execution.NewPaperExecutor(float64(cfg.SlippageBps))
	pnl := portfolio.NewPnLTracker()

	processed := 0
	for candle := range candleCh {
		snap := builder.Fold(candle)
		regime := timeline.At(candle.TS, regimeMaxAge)

		res, err := eng.Step(snap, regime)
		if err != nil {
			// Stored data must be strictly ordered; a violation means the
			// database is corrupt, not the engine.
			log.Fatalf("[replay] %v", err)
		}
		processed++

		if res.Entry != nil {
			fill := executor.ExecuteEntry(ctx, *res.Entry)
			pnl.RecordEntry(fill.Symbol, fill.Side, res.Entry.TS, fill.Price)
			if *verbose {
				fmt.Printf("  [%s] ENTRY %s ref=%.4f stop=%.4f\n",
					res.Entry.TS.Format("2006-01-02 15:04"), res.Entry.Side,
					res.Entry.ReferencePrice, res.Entry.StopPrice)
			}
		}
		if res.Exit != nil {
			fill := executor.ExecuteExit(ctx, *res.Exit)
			trip, ok := pnl.RecordExit(fill.Symbol, res.Exit.TS, fill.Price, res.Exit.Reason)
			if *verbose && ok {
				fmt.Printf("  [%s] EXIT  %s level=%.4f return=%+.2f%% (%s)\n",
					res.Exit.TS.Format("2006-01-02 15:04"), res.Exit.Side,
					res.Exit.ReferencePrice, trip.Return*100, res.Exit.Reason)
			}
		}
	}

	printSummary(*symbol, processed, pnl.GetSummary())
}

func printSummary(symbol string, candles int, s portfolio.Summary) {
	fmt.Println()
	fmt.Println("╔══════════════════════════════════════╗")
	fmt.Println("║         REPLAY COMPLETE              ║")
	fmt.Println("╠══════════════════════════════════════╣")
	fmt.Printf("║  Symbol:            %-16s ║\n", symbol)
	fmt.Printf("║  Candles processed: %-16d ║\n", candles)
	fmt.Printf("║  Trades:            %-16d ║\n", s.Trades)
	fmt.Printf("║  Win rate:          %-16s ║\n", fmt.Sprintf("%.1f%%", s.WinRate*100))
	fmt.Printf("║  Total return:      %-16s ║\n", fmt.Sprintf("%+.2f%%", s.TotalReturn*100))
	fmt.Printf("║  Avg return:        %-16s ║\n", fmt.Sprintf("%+.2f%%", s.AvgReturn*100))
	fmt.Printf("║  Max drawdown:      %-16s ║\n", fmt.Sprintf("%.2f%%", s.MaxDrawdown*100))
	fmt.Printf("║  Ratchet exits:     %-16d ║\n", s.RatchetExits)
	fmt.Printf("║  Hard-stop exits:   %-16d ║\n", s.HardExits)
	fmt.Println("╚══════════════════════════════════════╝")
}
