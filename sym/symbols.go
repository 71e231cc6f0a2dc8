// Package sym defines canonical symbols for mentowatch operations and
// system markers. These symbols are stable across CLI, logs, and the
// dashboard UI.
package sym

// Primary operation markers with CLI commands and log presence.
const (
	Chain    = "⛓" // Celo RPC reads
	Snapshot = "◉" // point-in-time supply/reserve capture
	Reserve  = "◆" // Mento reserve holdings
	Alert    = "▲" // threshold rule fired
	Report   = "▤" // terminal report output
)

// System infrastructure symbols.
const (
	Pulse      = "꩜" // polling daemon, rate limiting
	PulseOpen  = "✿" // graceful startup
	PulseClose = "❀" // graceful shutdown with in-flight snapshot completion
	DB         = "⊔" // database/storage layer
	Server     = "⇅" // dashboard server, websocket broadcast
	AM         = "≡" // configuration and system settings
)

// names maps each glyph back to its short name for logs and tests.
var names = map[string]string{
	Chain:      "chain",
	Snapshot:   "snapshot",
	Reserve:    "reserve",
	Alert:      "alert",
	Report:     "report",
	Pulse:      "pulse",
	PulseOpen:  "pulse-open",
	PulseClose: "pulse-close",
	DB:         "db",
	Server:     "server",
	AM:         "am",
}

// Name returns the short name for a glyph, or "" if unknown.
func Name(glyph string) string {
	return names[glyph]
}
