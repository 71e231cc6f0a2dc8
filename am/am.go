package am

import "time"

// Config represents the core mentowatch configuration
type Config struct {
	Database DatabaseConfig `mapstructure:"database"`
	Chain    ChainConfig    `mapstructure:"chain"`
	Pulse    PulseConfig    `mapstructure:"pulse"`
	Server   ServerConfig   `mapstructure:"server"`
	Alerts   AlertsConfig   `mapstructure:"alerts"`
	Prices   PricesConfig   `mapstructure:"prices"`
	Registry RegistryConfig `mapstructure:"registry"`
}

// DatabaseConfig configures the SQLite database
type DatabaseConfig struct {
	Path string `mapstructure:"path"`
}

// ChainConfig configures Celo RPC access
type ChainConfig struct {
	RPCURL                string `mapstructure:"rpc_url"`                  // JSON-RPC endpoint (default: https://forno.celo.org)
	ChainID               int64  `mapstructure:"chain_id"`                 // Expected chain ID (42220 = Celo mainnet)
	RequestTimeoutSeconds int    `mapstructure:"request_timeout_seconds"`  // Per-call timeout
	MaxRequestsPerMinute  int    `mapstructure:"max_requests_per_minute"`  // Local rate limit against the endpoint
	RetryAttempts         int    `mapstructure:"retry_attempts"`           // Retries for transient RPC failures
	RetryBaseDelayMS      int    `mapstructure:"retry_base_delay_ms"`      // Base delay for exponential retry backoff
}

// PulseConfig configures the polling daemon
type PulseConfig struct {
	IntervalSeconds       int `mapstructure:"interval_seconds"`        // Snapshot interval (default: 60)
	Workers               int `mapstructure:"workers"`                 // Concurrent token readers per snapshot
	MaxFailureStreak      int `mapstructure:"max_failure_streak"`      // Consecutive failures before backing off
	FailureBackoffMaxSecs int `mapstructure:"failure_backoff_max_secs"` // Cap for failure backoff
	RetentionDays         int `mapstructure:"retention_days"`          // Snapshot history retention (0 = keep forever)
}

// ServerConfig configures the dashboard server
type ServerConfig struct {
	Port           *int     `mapstructure:"port"` // nil = default 8787, 0 is invalid (omit for default)
	AllowedOrigins []string `mapstructure:"allowed_origins"`
	LogTheme       string   `mapstructure:"log_theme"` // Color theme: gruvbox, everforest
}

// Server port constants
const (
	DefaultServerPort = 8787 // Development port (above privileged range)
)

// AlertsConfig configures alert rule thresholds
type AlertsConfig struct {
	MinReserveRatio         float64 `mapstructure:"min_reserve_ratio"`          // Fire when collateralization drops below this (default: 1.5)
	RecoveryMargin          float64 `mapstructure:"recovery_margin"`            // Ratio must exceed threshold+margin to resolve (hysteresis)
	SupplyChangePercent     float64 `mapstructure:"supply_change_percent"`      // Fire when windowed supply change exceeds this
	SupplyChangeWindowHours int     `mapstructure:"supply_change_window_hours"` // Comparison window for supply swings
	FailureStreak           int     `mapstructure:"failure_streak"`             // Fire after this many consecutive failed collections
}

// SupplyWindow returns the supply-swing comparison window.
func (a AlertsConfig) SupplyWindow() time.Duration {
	return time.Duration(a.SupplyChangeWindowHours) * time.Hour
}

// PricesConfig configures USD valuation of reserve assets
type PricesConfig struct {
	URL            string             `mapstructure:"url"`             // Rate endpoint; empty = static rates only
	TTLSeconds     int                `mapstructure:"ttl_seconds"`     // Cache lifetime for fetched rates
	TimeoutSeconds int                `mapstructure:"timeout_seconds"` // HTTP timeout
	Static         map[string]float64 `mapstructure:"static"`          // Fallback USD rates per asset symbol
}

// RegistryConfig overrides the built-in Mento asset registry.
// Token and reserve-asset addresses default to Celo mainnet; overrides
// exist for testnets (Alfajores) and forks.
type RegistryConfig struct {
	Tokens          map[string]string  `mapstructure:"tokens"`           // symbol = "0x..." stablecoin overrides/additions
	ReserveAssets   map[string]string  `mapstructure:"reserve_assets"`   // symbol = "0x..." collateral overrides/additions
	ReserveAddrs    []string           `mapstructure:"reserve_addrs"`    // reserve custody addresses
	Pegs            map[string]float64 `mapstructure:"pegs"`             // symbol = USD value of one token (fiat peg)
}
