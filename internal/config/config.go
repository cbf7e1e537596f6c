package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Default proxy contracts queried for peer resolution and win/reward counters.
var defaultLedgerContracts = []string{
	"0xFaD7C5e93f28257429569B854151A1B8DCD404c2",
	"0x7745a8FE4b8D2D2c3BB103F8dCae822746F35Da0",
	"0x69C6e1D608ec64885E7b185d39b04B491a71768C",
}

type Config struct {
	DatabaseURL    string
	HTTPListenAddr string
	LogLevel       string

	// SharedSecret authenticates heartbeat ingestion; AdminToken guards the
	// administrative endpoints. An empty AdminToken disables admin access
	// entirely rather than opening it up.
	SharedSecret string
	AdminToken   string

	TelegramBotToken string
	TelegramChatID   string

	// DownThreshold is how long a node may go without a heartbeat before it
	// is computed DOWN.
	DownThreshold    time.Duration
	WatchdogInterval time.Duration
	MetricsInterval  time.Duration

	// MetricsPolicy selects how fresh snapshots combine with stored ones:
	// "merge" (non-regressing, default) or "overwrite".
	MetricsPolicy string

	// PruneDays is the default cutoff for admin prune requests that do not
	// supply one. Zero means pruning is skipped.
	PruneDays int

	LedgerRPCURL    string
	LedgerContracts []string
	LedgerAccounts  []string

	OffchainAPIURL   string
	OffchainIdentity string

	// PeerMapFile points at an optional YAML file mapping node IDs to
	// accounts and peer IDs, loaded once at startup.
	PeerMapFile string
}

func Load() (*Config, error) {
	cfg := &Config{
		DatabaseURL:      getEnv("DATABASE_URL", ""),
		HTTPListenAddr:   getEnv("HTTP_LISTEN_ADDR", ":8080"),
		LogLevel:         getEnv("LOG_LEVEL", "info"),
		SharedSecret:     getEnv("SHARED_SECRET", ""),
		AdminToken:       getEnv("ADMIN_TOKEN", ""),
		TelegramBotToken: getEnv("TELEGRAM_BOT_TOKEN", ""),
		TelegramChatID:   getEnv("TELEGRAM_CHAT_ID", ""),
		DownThreshold:    time.Duration(getEnvInt("DOWN_THRESHOLD_SEC", 180)) * time.Second,
		WatchdogInterval: time.Duration(getEnvInt("WATCHDOG_INTERVAL_SEC", 60)) * time.Second,
		MetricsInterval:  time.Duration(getEnvInt("METRICS_REFRESH_SEC", 600)) * time.Second,
		MetricsPolicy:    getEnv("METRICS_PERSIST_POLICY", "merge"),
		PruneDays:        getEnvInt("PRUNE_DAYS", 0),
		LedgerRPCURL:     getEnv("LEDGER_RPC_URL", "https://gensyn-testnet.g.alchemy.com/public"),
		LedgerContracts:  getEnvList("LEDGER_CONTRACTS", defaultLedgerContracts),
		LedgerAccounts:   getEnvList("LEDGER_ACCOUNTS", nil),
		OffchainAPIURL:   getEnv("OFFCHAIN_API_URL", "https://gswarm.dev"),
		OffchainIdentity: getEnv("OFFCHAIN_IDENTITY", ""),
		PeerMapFile:      getEnv("PEER_MAP_FILE", ""),
	}

	// The refresh cadence has a hard floor so a typo cannot hammer
	// rate-limited providers.
	if cfg.MetricsInterval < time.Minute {
		cfg.MetricsInterval = time.Minute
	}

	return cfg, nil
}

func (c *Config) Validate() error {
	var missing []string
	if c.DatabaseURL == "" {
		missing = append(missing, "DATABASE_URL")
	}
	if c.SharedSecret == "" {
		missing = append(missing, "SHARED_SECRET")
	}
	if c.TelegramBotToken == "" {
		missing = append(missing, "TELEGRAM_BOT_TOKEN")
	}
	if c.TelegramChatID == "" {
		missing = append(missing, "TELEGRAM_CHAT_ID")
	}
	if len(missing) > 0 {
		return fmt.Errorf("missing required config: %s", strings.Join(missing, ", "))
	}

	if c.MetricsPolicy != "merge" && c.MetricsPolicy != "overwrite" {
		return fmt.Errorf("METRICS_PERSIST_POLICY must be \"merge\" or \"overwrite\", got %q", c.MetricsPolicy)
	}
	if c.DownThreshold <= 0 {
		return fmt.Errorf("DOWN_THRESHOLD_SEC must be positive")
	}
	return nil
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return n
}

// getEnvList splits a comma-separated env value, dropping empty entries.
func getEnvList(key string, fallback []string) []string {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	var out []string
	for _, part := range strings.Split(v, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	if len(out) == 0 {
		return fallback
	}
	return out
}
