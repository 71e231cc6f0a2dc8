package am

import (
	"os"
	"path/filepath"

	"github.com/spf13/viper"
)

// SetDefaults registers the default value of every configuration key.
// Every key read anywhere in mentowatch must appear here so that a
// missing config file still yields a working daemon.
func SetDefaults(v *viper.Viper) {
	// Database
	v.SetDefault("database.path", defaultDatabasePath())

	// Chain
	v.SetDefault("chain.rpc_url", "https://forno.celo.org")
	v.SetDefault("chain.chain_id", 42220)
	v.SetDefault("chain.request_timeout_seconds", 15)
	v.SetDefault("chain.max_requests_per_minute", 120)
	v.SetDefault("chain.retry_attempts", 3)
	v.SetDefault("chain.retry_base_delay_ms", 500)

	// Pulse
	v.SetDefault("pulse.interval_seconds", 60)
	v.SetDefault("pulse.workers", 4)
	v.SetDefault("pulse.max_failure_streak", 5)
	v.SetDefault("pulse.failure_backoff_max_secs", 900)
	v.SetDefault("pulse.retention_days", 90)

	// Server
	v.SetDefault("server.port", DefaultServerPort)
	v.SetDefault("server.allowed_origins", []string{})
	v.SetDefault("server.log_theme", "gruvbox")

	// Alerts
	v.SetDefault("alerts.min_reserve_ratio", 1.5)
	v.SetDefault("alerts.recovery_margin", 0.05)
	v.SetDefault("alerts.supply_change_percent", 10.0)
	v.SetDefault("alerts.supply_change_window_hours", 24)
	v.SetDefault("alerts.failure_streak", 5)

	// Prices
	v.SetDefault("prices.url", "")
	v.SetDefault("prices.ttl_seconds", 300)
	v.SetDefault("prices.timeout_seconds", 10)
	v.SetDefault("prices.static", map[string]float64{})

	// Registry (built-in Celo mainnet addresses apply when empty)
	v.SetDefault("registry.tokens", map[string]string{})
	v.SetDefault("registry.reserve_assets", map[string]string{})
	v.SetDefault("registry.reserve_addrs", []string{})
	v.SetDefault("registry.pegs", map[string]float64{})
}

func defaultDatabasePath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "mentowatch.db"
	}
	return filepath.Join(home, ".mentowatch", "mentowatch.db")
}
