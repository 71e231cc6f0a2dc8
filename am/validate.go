package am

import (
	"strings"

	"github.com/lamassu-labs/mentowatch/errors"
)

// Validate checks the configuration for values that would break the
// daemon at runtime. Zero means zero: intervals and timeouts of 0 are
// rejected rather than silently treated as defaults.
func (c *Config) Validate() error {
	if c.Database.Path == "" {
		return errors.New("database.path must not be empty")
	}

	if c.Chain.RPCURL == "" {
		return errors.New("chain.rpc_url must not be empty")
	}
	if !strings.HasPrefix(c.Chain.RPCURL, "http://") && !strings.HasPrefix(c.Chain.RPCURL, "https://") && !strings.HasPrefix(c.Chain.RPCURL, "ws://") && !strings.HasPrefix(c.Chain.RPCURL, "wss://") {
		return errors.Newf("chain.rpc_url has unsupported scheme: %s", c.Chain.RPCURL)
	}
	if c.Chain.ChainID <= 0 {
		return errors.Newf("chain.chain_id must be positive, got %d", c.Chain.ChainID)
	}
	if c.Chain.RequestTimeoutSeconds <= 0 {
		return errors.Newf("chain.request_timeout_seconds must be positive, got %d", c.Chain.RequestTimeoutSeconds)
	}
	if c.Chain.MaxRequestsPerMinute <= 0 {
		return errors.Newf("chain.max_requests_per_minute must be positive, got %d", c.Chain.MaxRequestsPerMinute)
	}
	if c.Chain.RetryAttempts < 0 {
		return errors.Newf("chain.retry_attempts must not be negative, got %d", c.Chain.RetryAttempts)
	}

	if c.Pulse.IntervalSeconds <= 0 {
		return errors.Newf("pulse.interval_seconds must be positive, got %d", c.Pulse.IntervalSeconds)
	}
	if c.Pulse.Workers <= 0 {
		return errors.Newf("pulse.workers must be positive, got %d", c.Pulse.Workers)
	}
	if c.Pulse.RetentionDays < 0 {
		return errors.Newf("pulse.retention_days must not be negative, got %d", c.Pulse.RetentionDays)
	}

	if c.Server.Port != nil {
		if *c.Server.Port < 1 || *c.Server.Port > 65535 {
			return errors.Newf("server.port must be 1-65535, got %d", *c.Server.Port)
		}
	}
	switch c.Server.LogTheme {
	case "", "gruvbox", "everforest":
	default:
		return errors.Newf("server.log_theme must be gruvbox or everforest, got %q", c.Server.LogTheme)
	}

	if c.Alerts.MinReserveRatio < 0 {
		return errors.Newf("alerts.min_reserve_ratio must not be negative, got %v", c.Alerts.MinReserveRatio)
	}
	if c.Alerts.RecoveryMargin < 0 {
		return errors.Newf("alerts.recovery_margin must not be negative, got %v", c.Alerts.RecoveryMargin)
	}
	if c.Alerts.SupplyChangePercent < 0 {
		return errors.Newf("alerts.supply_change_percent must not be negative, got %v", c.Alerts.SupplyChangePercent)
	}
	if c.Alerts.SupplyChangeWindowHours <= 0 {
		return errors.Newf("alerts.supply_change_window_hours must be positive, got %d", c.Alerts.SupplyChangeWindowHours)
	}
	if c.Alerts.FailureStreak < 0 {
		return errors.Newf("alerts.failure_streak must not be negative, got %d", c.Alerts.FailureStreak)
	}

	if c.Prices.TTLSeconds < 0 {
		return errors.Newf("prices.ttl_seconds must not be negative, got %d", c.Prices.TTLSeconds)
	}
	if c.Prices.TimeoutSeconds <= 0 {
		return errors.Newf("prices.timeout_seconds must be positive, got %d", c.Prices.TimeoutSeconds)
	}
	for sym, rate := range c.Prices.Static {
		if rate <= 0 {
			return errors.Newf("prices.static.%s must be positive, got %v", sym, rate)
		}
	}

	for sym, addr := range c.Registry.Tokens {
		if !validHexAddress(addr) {
			return errors.Newf("registry.tokens.%s is not a valid address: %q", sym, addr)
		}
	}
	for sym, addr := range c.Registry.ReserveAssets {
		if !validHexAddress(addr) {
			return errors.Newf("registry.reserve_assets.%s is not a valid address: %q", sym, addr)
		}
	}
	for _, addr := range c.Registry.ReserveAddrs {
		if !validHexAddress(addr) {
			return errors.Newf("registry.reserve_addrs contains invalid address: %q", addr)
		}
	}
	for sym, peg := range c.Registry.Pegs {
		if peg <= 0 {
			return errors.Newf("registry.pegs.%s must be positive, got %v", sym, peg)
		}
	}

	return nil
}

// ServerPort returns the configured server port, or the default when
// unset.
func (c *Config) ServerPort() int {
	if c.Server.Port != nil {
		return *c.Server.Port
	}
	return DefaultServerPort
}

func validHexAddress(s string) bool {
	if len(s) != 42 || !strings.HasPrefix(s, "0x") {
		return false
	}
	for _, r := range s[2:] {
		switch {
		case r >= '0' && r <= '9':
		case r >= 'a' && r <= 'f':
		case r >= 'A' && r <= 'F':
		default:
			return false
		}
	}
	return true
}
