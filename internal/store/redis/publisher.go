// Package redis publishes decision events and live stop levels so the
// external execution/order-management layer can consume them, and keeps
// working through short Redis outages via a circuit breaker with local
// buffering.
package redis

import (
	"context"
	"fmt"
	"log"
	"time"

	"ratchet-systemv1/internal/model"

	goredis "github.com/go-redis/redis/v8"
)

const (
	// Stream trimming: keep roughly a month of hourly decisions.
	eventStreamMaxLen = 1000
	stopTTL           = 30 * time.Minute
)

// PublisherConfig configures the Redis publisher.
type PublisherConfig struct {
	Addr     string // Redis address, e.g. "localhost:6379"
	Password string
	DB       int
}

// Publisher writes entry/exit events and per-symbol stop levels to Redis.
type Publisher struct {
	client *goredis.Client
}

// Client returns the underlying Redis client for health checks.
func (p *Publisher) Client() *goredis.Client { return p.client }

// NewPublisher creates a new Publisher and pings the server.
func NewPublisher(cfg PublisherConfig) (*Publisher, error) {
	client := goredis.NewClient(&goredis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("redis ping: %w", err)
	}

	log.Printf("[redis] connected to %s", cfg.Addr)
	return &Publisher{client: client}, nil
}

// PublishEntry appends an entry event to the symbol's decision stream
// and announces it on pub/sub for live listeners.
func (p *Publisher) PublishEntry(ctx context.Context, ev model.EntryEvent) error {
	return p.publishEvent(ctx, ev.Symbol, "entry", ev.JSON())
}

// PublishExit appends an exit event to the symbol's decision stream.
func (p *Publisher) PublishExit(ctx context.Context, ev model.ExitEvent) error {
	return p.publishEvent(ctx, ev.Symbol, "exit", ev.JSON())
}

func (p *Publisher) publishEvent(ctx context.Context, symbol, kind string, payload []byte) error {
	stream := "decisions:" + symbol
	err := p.client.XAdd(ctx, &goredis.XAddArgs{
		Stream: stream,
		MaxLen: eventStreamMaxLen,
		Approx: true,
		Values: map[string]interface{}{
			"kind": kind,
			"data": string(payload),
		},
	}).Err()
	if err != nil {
		return fmt.Errorf("xadd %s: %w", stream, err)
	}
	// Best-effort live announcement; stream is the durable record.
	p.client.Publish(ctx, "pub:"+stream, string(payload))
	return nil
}

// PublishStop sets the continuously queryable stop level for a symbol.
// The key expires so a stopped engine does not leave stale stops behind.
func (p *Publisher) PublishStop(ctx context.Context, symbol string, stop float64) error {
	key := "stop:" + symbol
	if err := p.client.Set(ctx, key, stop, stopTTL).Err(); err != nil {
		return fmt.Errorf("set %s: %w", key, err)
	}
	return nil
}

// Close releases the Redis connection.
func (p *Publisher) Close() error {
	return p.client.Close()
}
