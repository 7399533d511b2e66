package model

import "context"

// ── Storage Port Interfaces ──
// These interfaces decouple the engine runners from concrete storage
// implementations (Redis, SQLite). Each implementation satisfies one or
// more of these interfaces.

// CandleWriter persists raw candles.
type CandleWriter interface {
	// Run reads candles from candleCh and writes them.
	// Blocks until ctx is cancelled or candleCh is closed.
	Run(ctx context.Context, candleCh <-chan Candle)

	// Close releases underlying resources.
	Close() error
}

// CandleReader reads stored candles for replay.
type CandleReader interface {
	// ReadCandles reads all candles for a symbol after the given Unix
	// timestamp (0 = all), ordered by time ascending.
	ReadCandles(symbol string, afterTS int64) ([]Candle, error)

	// Close releases underlying resources.
	Close() error
}

// RegimeReader reads stored regime signals for replay.
type RegimeReader interface {
	// ReadRegimeSignals reads signals for a symbol after the given Unix
	// timestamp (0 = all), ordered by time ascending.
	ReadRegimeSignals(symbol string, afterTS int64) ([]RegimeSignal, error)
}

// EventPublisher publishes decision events and live stop levels to the
// execution/order-management side.
type EventPublisher interface {
	PublishEntry(ctx context.Context, ev EntryEvent) error
	PublishExit(ctx context.Context, ev ExitEvent) error
	PublishStop(ctx context.Context, symbol string, stop float64) error
	Close() error
}

// TradeJournal records completed round trips.
type TradeJournal interface {
	WriteTrade(entry EntryEvent, exit ExitEvent) error
}
