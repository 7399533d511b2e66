// Package metrics exposes Prometheus metrics and a health endpoint for
// the decision engine runners.
package metrics

import (
	"context"
	"database/sql"
	"encoding/json"
	"log"
	"net/http"
	"sync"
	"time"

	goredis "github.com/go-redis/redis/v8"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics for the decision engine.
type Metrics struct {
	CandlesTotal      prometheus.Counter
	SnapshotsTotal    prometheus.Counter
	InvalidSnapshots  prometheus.Counter
	OutOfOrderDropped prometheus.Counter
	FeedReconnects    prometheus.Counter
	RingBufOverflow   prometheus.Counter

	// Decision metrics
	EntriesTotal *prometheus.CounterVec // labels: symbol, side
	ExitsTotal   *prometheus.CounterVec // labels: symbol, side, reason
	StopUpdates  *prometheus.CounterVec // labels: symbol
	ArmedState   *prometheus.GaugeVec   // labels: symbol, side (0/1)
	CurrentStop  *prometheus.GaugeVec   // labels: symbol (NaN-free: unset when flat)

	// Oracle metrics
	RegimeSignalsTotal prometheus.Counter
	RegimeCategory     *prometheus.GaugeVec // labels: symbol (0=bear, 1=neutral, 2=bull)

	// Latency
	StepDur         prometheus.Histogram
	SQLiteCommitDur prometheus.Histogram

	// Publisher circuit breaker
	BreakerState      prometheus.Gauge // 0=closed, 1=open, 2=half-open
	BreakerTrips      prometheus.Counter
	BufferedPublishes prometheus.Counter
}

// NewMetrics registers and returns all Prometheus metrics.
func NewMetrics() *Metrics {
	m := &Metrics{
		CandlesTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "engine_candles_total",
			Help: "Total candles received from the feed",
		}),
		SnapshotsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "engine_snapshots_total",
			Help: "Total indicator snapshots stepped through the engine",
		}),
		InvalidSnapshots: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "engine_invalid_snapshots_total",
			Help: "Snapshots skipped due to non-finite prices",
		}),
		OutOfOrderDropped: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "engine_out_of_order_dropped_total",
			Help: "Candles rejected for non-increasing timestamps",
		}),
		FeedReconnects: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "engine_feed_reconnects_total",
			Help: "Websocket feed reconnection attempts",
		}),
		RingBufOverflow: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "engine_ringbuf_overflow_total",
			Help: "Ring buffer push overflows (dropped candles)",
		}),

		EntriesTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "engine_entries_total",
			Help: "Entry events emitted",
		}, []string{"symbol", "side"}),
		ExitsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "engine_exits_total",
			Help: "Exit events emitted (by reason)",
		}, []string{"symbol", "side", "reason"}),
		StopUpdates: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "engine_stop_updates_total",
			Help: "Ratchet stop tightenings",
		}, []string{"symbol"}),
		ArmedState: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "engine_armed_state",
			Help: "Setup tracker state (1=armed, 0=idle)",
		}, []string{"symbol", "side"}),
		CurrentStop: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "engine_current_stop",
			Help: "Active stop level for the open position",
		}, []string{"symbol"}),

		RegimeSignalsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "engine_regime_signals_total",
			Help: "Regime signals accepted from the oracle",
		}),
		RegimeCategory: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "engine_regime_category",
			Help: "Latest regime category (0=bear, 1=neutral, 2=bull)",
		}, []string{"symbol"}),

		StepDur: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "engine_step_duration_seconds",
			Help:    "Engine step latency per snapshot",
			Buckets: []float64{0.000001, 0.000005, 0.00001, 0.00005, 0.0001, 0.0005, 0.001},
		}),
		SQLiteCommitDur: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "engine_sqlite_commit_duration_seconds",
			Help:    "SQLite batch commit latency",
			Buckets: prometheus.DefBuckets,
		}),

		BreakerState: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "engine_publisher_breaker_state",
			Help: "Redis publisher circuit breaker state (0=closed, 1=open, 2=half-open)",
		}),
		BreakerTrips: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "engine_publisher_breaker_trips_total",
			Help: "Times the publisher circuit breaker tripped open",
		}),
		BufferedPublishes: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "engine_publisher_buffered_total",
			Help: "Publishes buffered locally while the breaker was open",
		}),
	}

	prometheus.MustRegister(
		m.CandlesTotal,
		m.SnapshotsTotal,
		m.InvalidSnapshots,
		m.OutOfOrderDropped,
		m.FeedReconnects,
		m.RingBufOverflow,
		m.EntriesTotal,
		m.ExitsTotal,
		m.StopUpdates,
		m.ArmedState,
		m.CurrentStop,
		m.RegimeSignalsTotal,
		m.RegimeCategory,
		m.StepDur,
		m.SQLiteCommitDur,
		m.BreakerState,
		m.BreakerTrips,
		m.BufferedPublishes,
	)

	return m
}

// HealthStatus represents the system health.
type HealthStatus struct {
	mu sync.RWMutex

	FeedConnected  bool      `json:"feed_connected"`
	LastCandleTime time.Time `json:"last_candle_time"`
	RedisConnected bool      `json:"redis_connected"`
	SQLiteOK       bool      `json:"sqlite_ok"`
	OracleOK       bool      `json:"oracle_ok"`
	Symbols        []string  `json:"symbols"`

	// Liveness probe results
	RedisLatencyMs  float64   `json:"redis_latency_ms"`
	SQLiteLatencyMs float64   `json:"sqlite_latency_ms"`
	LastCheckAt     time.Time `json:"last_check_at"`
	StartedAt       time.Time `json:"started_at"`
}

// NewHealthStatus returns a default health status.
func NewHealthStatus() *HealthStatus {
	return &HealthStatus{
		StartedAt: time.Now(),
	}
}

func (h *HealthStatus) SetFeedConnected(v bool) {
	h.mu.Lock()
	h.FeedConnected = v
	h.mu.Unlock()
}

func (h *HealthStatus) SetLastCandleTime(t time.Time) {
	h.mu.Lock()
	h.LastCandleTime = t
	h.mu.Unlock()
}

func (h *HealthStatus) SetOracleOK(v bool) {
	h.mu.Lock()
	h.OracleOK = v
	h.mu.Unlock()
}

func (h *HealthStatus) SetSymbols(symbols []string) {
	h.mu.Lock()
	h.Symbols = symbols
	h.mu.Unlock()
}

// CheckRedis pings Redis and records latency + connectivity.
func (h *HealthStatus) CheckRedis(ctx context.Context, rdb *goredis.Client) {
	start := time.Now()
	err := rdb.Ping(ctx).Err()
	latency := time.Since(start)

	h.mu.Lock()
	h.RedisConnected = err == nil
	h.RedisLatencyMs = float64(latency.Microseconds()) / 1000.0
	h.LastCheckAt = time.Now()
	h.mu.Unlock()
}

// CheckSQLite runs a trivial query and records latency + health.
func (h *HealthStatus) CheckSQLite(ctx context.Context, db *sql.DB) {
	start := time.Now()
	err := db.PingContext(ctx)
	latency := time.Since(start)

	h.mu.Lock()
	h.SQLiteOK = err == nil
	h.SQLiteLatencyMs = float64(latency.Microseconds()) / 1000.0
	h.LastCheckAt = time.Now()
	h.mu.Unlock()
}

// StartLivenessChecker runs periodic dependency checks.
func (h *HealthStatus) StartLivenessChecker(ctx context.Context, rdb *goredis.Client, sqlDB *sql.DB, interval time.Duration) {
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				probeCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
				if rdb != nil {
					h.CheckRedis(probeCtx, rdb)
				}
				if sqlDB != nil {
					h.CheckSQLite(probeCtx, sqlDB)
				}
				cancel()
			}
		}
	}()
}

// ServeHTTP handles the /healthz endpoint.
func (h *HealthStatus) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	// Determine overall status
	overallStatus := "healthy"
	httpCode := http.StatusOK

	if !h.FeedConnected || !h.RedisConnected || !h.SQLiteOK {
		overallStatus = "degraded"
		httpCode = http.StatusServiceUnavailable
	}
	if !h.RedisConnected && !h.SQLiteOK {
		overallStatus = "unhealthy"
	}

	// Candle age
	candleAge := ""
	if !h.LastCandleTime.IsZero() {
		candleAge = time.Since(h.LastCandleTime).Round(time.Millisecond).String()
	}

	status := struct {
		Status          string   `json:"status"`
		Uptime          string   `json:"uptime"`
		FeedConnected   bool     `json:"feed_connected"`
		LastCandleTime  string   `json:"last_candle_time"`
		CandleAge       string   `json:"candle_age"`
		RedisConnected  bool     `json:"redis_connected"`
		RedisLatencyMs  float64  `json:"redis_latency_ms"`
		SQLiteOK        bool     `json:"sqlite_ok"`
		SQLiteLatencyMs float64  `json:"sqlite_latency_ms"`
		OracleOK        bool     `json:"oracle_ok"`
		Symbols         []string `json:"symbols"`
		LastCheckAt     string   `json:"last_check_at"`
	}{
		Status:          overallStatus,
		Uptime:          time.Since(h.StartedAt).Round(time.Second).String(),
		FeedConnected:   h.FeedConnected,
		LastCandleTime:  h.LastCandleTime.Format(time.RFC3339),
		CandleAge:       candleAge,
		RedisConnected:  h.RedisConnected,
		RedisLatencyMs:  h.RedisLatencyMs,
		SQLiteOK:        h.SQLiteOK,
		SQLiteLatencyMs: h.SQLiteLatencyMs,
		OracleOK:        h.OracleOK,
		Symbols:         h.Symbols,
		LastCheckAt:     h.LastCheckAt.Format(time.RFC3339),
	}

	w.Header().Set("Content-Type", "application/json")
	if httpCode != http.StatusOK {
		w.WriteHeader(httpCode)
	}
	json.NewEncoder(w).Encode(status)
}

// RegimeGaugeValue maps a regime category string to its gauge encoding.
func RegimeGaugeValue(category string) float64 {
	switch category {
	case "BEAR":
		return 0
	case "BULL":
		return 2
	default:
		return 1
	}
}

// Server runs an HTTP server exposing /metrics and /healthz.
type Server struct {
	health *HealthStatus
	addr   string
	srv    *http.Server
}

// NewServer creates a metrics and health server.
func NewServer(addr string, health *HealthStatus) *Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/healthz", health.ServeHTTP)

	return &Server{
		health: health,
		addr:   addr,
		srv: &http.Server{
			Addr:    addr,
			Handler: mux,
		},
	}
}

// Start launches the HTTP server in a goroutine.
func (s *Server) Start() {
	go func() {
		log.Printf("[metrics] server listening on %s", s.addr)
		if err := s.srv.ListenAndServe(); err != http.ErrServerClosed {
			log.Printf("[metrics] server error: %v", err)
		}
	}()
}

// Stop gracefully shuts down the metrics server.
func (s *Server) Stop(ctx context.Context) {
	s.srv.Shutdown(ctx)
}
