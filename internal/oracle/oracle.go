// Package oracle consumes regime classifications from the external
// classifier over Redis Pub/Sub and serves the latest signal per symbol
// to the decision engine. A missing or stale signal degrades to NEUTRAL,
// never to an error: the regime filter is advisory, the engine must keep
// stepping without it.
package oracle

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"sync"
	"time"

	"ratchet-systemv1/internal/model"

	goredis "github.com/go-redis/redis/v8"
)

// Config configures the oracle client.
type Config struct {
	Addr     string // Redis address
	Password string
	DB       int
	Channel  string        // pub/sub channel, e.g. "oracle:regime"
	MaxAge   time.Duration // signals older than this are treated as absent
}

// Client subscribes to the regime channel and caches the latest signal
// per symbol.
type Client struct {
	client  *goredis.Client
	channel string
	cache   *Cache

	// OnSignal is called for every accepted signal (optional, for
	// journaling and metrics).
	OnSignal func(sig model.RegimeSignal)
}

// New creates an oracle client and pings the server.
func New(cfg Config) (*Client, error) {
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

	log.Printf("[oracle] connected to %s (channel=%s)", cfg.Addr, cfg.Channel)
	return &Client{
		client:  client,
		channel: cfg.Channel,
		cache:   NewCache(cfg.MaxAge),
	}, nil
}

// Run subscribes to the regime channel and keeps the cache current.
// Blocks until ctx is cancelled. Subscription drops are retried with a
// short backoff; the cache keeps serving the last known signals meanwhile.
func (c *Client) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		if err := c.consume(ctx); err != nil && ctx.Err() == nil {
			log.Printf("[oracle] subscription lost: %v (retrying in 2s)", err)
			select {
			case <-ctx.Done():
				return
			case <-time.After(2 * time.Second):
			}
		}
	}
}

func (c *Client) consume(ctx context.Context) error {
	pubsub := c.client.Subscribe(ctx, c.channel)
	defer pubsub.Close()

	if _, err := pubsub.Receive(ctx); err != nil {
		return fmt.Errorf("subscribe %s: %w", c.channel, err)
	}

	ch := pubsub.Channel()
	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-ch:
			if !ok {
				return fmt.Errorf("pubsub channel closed")
			}
			var sig model.RegimeSignal
			if err := json.Unmarshal([]byte(msg.Payload), &sig); err != nil {
				log.Printf("[oracle] bad payload: %v", err)
				continue
			}
			if !c.cache.Put(sig) {
				continue
			}
			if c.OnSignal != nil {
				c.OnSignal(sig)
			}
		}
	}
}

// Latest returns the freshest usable signal for a symbol, or nil when no
// signal exists or the cached one is stale.
func (c *Client) Latest(symbol string) *model.RegimeSignal {
	return c.cache.Latest(symbol, time.Now())
}

// Close releases the Redis connection.
func (c *Client) Close() error {
	return c.client.Close()
}

// Cache holds the latest regime signal per symbol with an age bound.
// Separated from the Redis plumbing so the staleness rules are testable.
type Cache struct {
	mu     sync.RWMutex
	maxAge time.Duration
	bySym  map[string]model.RegimeSignal
}

// NewCache creates a cache; maxAge <= 0 disables the staleness check.
func NewCache(maxAge time.Duration) *Cache {
	return &Cache{
		maxAge: maxAge,
		bySym:  make(map[string]model.RegimeSignal),
	}
}

// Put stores a signal unless an equal-or-newer one is already cached.
// Returns whether the signal was accepted.
func (c *Cache) Put(sig model.RegimeSignal) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if prev, ok := c.bySym[sig.Symbol]; ok && !sig.TS.After(prev.TS) {
		return false
	}
	c.bySym[sig.Symbol] = sig
	return true
}

// Latest returns the cached signal for a symbol if it is fresh at the
// given time, nil otherwise.
func (c *Cache) Latest(symbol string, now time.Time) *model.RegimeSignal {
	c.mu.RLock()
	defer c.mu.RUnlock()
	sig, ok := c.bySym[symbol]
	if !ok {
		return nil
	}
	if c.maxAge > 0 && now.Sub(sig.TS) > c.maxAge {
		return nil
	}
	out := sig
	return &out
}
