package sqlite

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"ratchet-systemv1/internal/model"

	_ "github.com/mattn/go-sqlite3"
)

// Reader provides read-only access to SQLite for replay.
type Reader struct {
	db *sql.DB
}

// NewReader opens a SQLite connection for reading.
func NewReader(dbPath string) (*Reader, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_synchronous=NORMAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("sqlite open reader: %w", err)
	}
	db.SetMaxOpenConns(2)
	db.SetMaxIdleConns(2)

	log.Printf("[sqlite-reader] opened %s", dbPath)
	return &Reader{db: db}, nil
}

// ReadCandles reads candles for a symbol after the given Unix timestamp
// (0 = all). Results are ordered by timestamp ascending for correct
// replay order.
func (r *Reader) ReadCandles(symbol string, afterTS int64) ([]model.Candle, error) {
	rows, err := r.db.Query(`
		SELECT symbol, ts, open, high, low, close, volume
		FROM candles
		WHERE symbol = ? AND ts > ?
		ORDER BY ts ASC
	`, symbol, afterTS)
	if err != nil {
		return nil, fmt.Errorf("sqlite query candles: %w", err)
	}
	defer rows.Close()

	var candles []model.Candle
	for rows.Next() {
		var c model.Candle
		var tsUnix int64
		var volume sql.NullFloat64
		if err := rows.Scan(&c.Symbol, &tsUnix, &c.Open, &c.High, &c.Low, &c.Close, &volume); err != nil {
			return nil, fmt.Errorf("sqlite scan candle: %w", err)
		}
		c.TS = time.Unix(tsUnix, 0).UTC()
		c.Volume = volume.Float64
		candles = append(candles, c)
	}
	return candles, rows.Err()
}

// ReadRegimeSignals reads regime signals for a symbol after the given Unix
// timestamp (0 = all), ordered by timestamp ascending.
func (r *Reader) ReadRegimeSignals(symbol string, afterTS int64) ([]model.RegimeSignal, error) {
	rows, err := r.db.Query(`
		SELECT symbol, ts, category, confidence
		FROM regime_signals
		WHERE symbol = ? AND ts > ?
		ORDER BY ts ASC
	`, symbol, afterTS)
	if err != nil {
		return nil, fmt.Errorf("sqlite query regime_signals: %w", err)
	}
	defer rows.Close()

	var signals []model.RegimeSignal
	for rows.Next() {
		var sig model.RegimeSignal
		var tsUnix int64
		var category string
		var conf sql.NullString
		if err := rows.Scan(&sig.Symbol, &tsUnix, &category, &conf); err != nil {
			return nil, fmt.Errorf("sqlite scan regime signal: %w", err)
		}
		sig.TS = time.Unix(tsUnix, 0).UTC()
		sig.Category = model.RegimeCategory(category)
		if conf.Valid && conf.String != "" && conf.String != "null" {
			if err := json.Unmarshal([]byte(conf.String), &sig.Confidence); err != nil {
				return nil, fmt.Errorf("unmarshal confidence: %w", err)
			}
		}
		signals = append(signals, sig)
	}
	return signals, rows.Err()
}

// Close closes the reader.
func (r *Reader) Close() error {
	return r.db.Close()
}
