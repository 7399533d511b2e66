package config

import (
	"log"
	"os"
	"strconv"
	"strings"
)

// Config holds all application configuration loaded from environment variables.
type Config struct {
	// Strategy core
	ATRRiskFactor      float64
	MFILowerThreshold  float64
	MFIHigherThreshold float64
	HardStopFraction   float64
	RegimeFilterStage  string // setup | trigger | none

	// Indicator pipeline
	EMAPeriod int
	BBPeriod  int
	BBStdDev  float64
	MFIPeriod int
	ATRPeriod int

	// Feed (live candle source)
	FeedURL        string
	FeedAPIKey     string
	FeedTOTPSecret string

	// Oracle (external regime classifier)
	OracleChannel   string
	RegimeStaleSecs int

	// Infrastructure
	RedisAddr     string
	RedisPassword string
	SQLitePath    string
	MetricsAddr   string
	WebhookURL    string

	// Instruments (comma-separated, e.g. "BTC/USDT,ETH/USDT")
	Symbols string

	// Paper execution
	SlippageBps int64
}

// Load reads configuration from environment variables with sensible defaults.
func Load() *Config {
	return &Config{
		ATRRiskFactor:      getEnvFloat("ATR_RISK_FACTOR", 1.4),
		MFILowerThreshold:  getEnvFloat("MFI_LOWER_THRESHOLD", 40),
		MFIHigherThreshold: getEnvFloat("MFI_HIGHER_THRESHOLD", 60),
		HardStopFraction:   getEnvFloat("HARD_STOP_FRACTION", 0.10),
		RegimeFilterStage:  getEnv("REGIME_FILTER_STAGE", "setup"),

		EMAPeriod: getEnvInt("EMA_PERIOD", 500),
		BBPeriod:  getEnvInt("BB_PERIOD", 50),
		BBStdDev:  getEnvFloat("BB_STD_DEV", 2.0),
		MFIPeriod: getEnvInt("MFI_PERIOD", 14),
		ATRPeriod: getEnvInt("ATR_PERIOD", 14),

		FeedURL:        getEnv("FEED_URL", "wss://localhost:8600/candles"),
		FeedAPIKey:     getEnv("FEED_API_KEY", ""),
		FeedTOTPSecret: getEnv("FEED_TOTP_SECRET", ""),

		OracleChannel:   getEnv("ORACLE_CHANNEL", "oracle:regime"),
		RegimeStaleSecs: getEnvInt("REGIME_STALE_SECS", 6*3600),

		RedisAddr:     getEnv("REDIS_ADDR", "localhost:6379"),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),
		SQLitePath:    getEnv("SQLITE_PATH", "data/candles.db"),
		MetricsAddr:   getEnv("METRICS_ADDR", ":9090"),
		WebhookURL:    getEnv("WEBHOOK_URL", ""),

		Symbols: getEnv("SYMBOLS", "BTC/USDT"),

		SlippageBps: int64(getEnvInt("SLIPPAGE_BPS", 5)),
	}
}

// ParseSymbols parses the Symbols string into a slice of instrument names.
func (c *Config) ParseSymbols() []string {
	parts := strings.Split(c.Symbols, ",")
	symbols := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		symbols = append(symbols, p)
	}
	return symbols
}

func getEnv(key, fallback string) string {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	return v
}

func getEnvInt(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		log.Printf("[config] invalid int for %s: %q, using %d", key, v, fallback)
		return fallback
	}
	return n
}

func getEnvFloat(key string, fallback float64) float64 {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		log.Printf("[config] invalid float for %s: %q, using %g", key, v, fallback)
		return fallback
	}
	return f
}
