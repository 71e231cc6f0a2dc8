package logger

import "go.uber.org/zap/zapcore"

// Verbosity level constants for CLI flag counts.
//
// These levels control WHAT categories of output are shown, not just log
// severity.
//
// Example usage:
//
//	if logger.ShouldOutput(verbosity, logger.OutputRPCCalls) {
//	    fmt.Printf("eth_call %s\n", method)
//	}
const (
	VerbosityUser  = 0 // No flags: results and errors only
	VerbosityInfo  = 1 // -v: + progress, startup, snapshot summaries
	VerbosityDebug = 2 // -vv: + per-token reads, timing, config details
	VerbosityTrace = 3 // -vvv: + raw RPC calls, SQL
)

// OutputCategory defines a category of output that can be enabled/disabled
type OutputCategory int

const (
	// Level 0 (default) - Always shown
	OutputResults OutputCategory = iota // Reports, command output
	OutputErrors                        // Errors with hints

	// Level 1 (-v) - Informational
	OutputProgress // Snapshot progress
	OutputStartup  // Startup banners, config summary

	// Level 2 (-vv) - Detailed
	OutputTokenReads // Per-token supply/balance read details
	OutputTiming     // Operation timing
	OutputConfig     // Config values loaded/applied

	// Level 3 (-vvv) - Debug
	OutputRPCCalls   // Individual JSON-RPC calls
	OutputSQLQueries // Individual SQL queries executed
)

// categoryLevels maps each output category to its minimum verbosity level
var categoryLevels = map[OutputCategory]int{
	OutputResults: VerbosityUser,
	OutputErrors:  VerbosityUser,

	OutputProgress: VerbosityInfo,
	OutputStartup:  VerbosityInfo,

	OutputTokenReads: VerbosityDebug,
	OutputTiming:     VerbosityDebug,
	OutputConfig:     VerbosityDebug,

	OutputRPCCalls:   VerbosityTrace,
	OutputSQLQueries: VerbosityTrace,
}

// ShouldOutput reports whether a category should be shown at a verbosity level
func ShouldOutput(verbosity int, category OutputCategory) bool {
	min, ok := categoryLevels[category]
	if !ok {
		return false
	}
	return verbosity >= min
}

// VerbosityToLevel maps verbosity flags (-v, -vv, etc.) to zap log levels
//
// Mapping:
//
//	0 (none)  -> WarnLevel  (errors and warnings only)
//	1 (-v)    -> InfoLevel  (+ informational messages)
//	2+ (-vv)  -> DebugLevel (+ debug messages)
func VerbosityToLevel(verbosity int) zapcore.Level {
	switch verbosity {
	case VerbosityUser:
		return zapcore.WarnLevel
	case VerbosityInfo:
		return zapcore.InfoLevel
	default:
		return zapcore.DebugLevel
	}
}

// LevelName returns a human-readable name for a verbosity level
func LevelName(verbosity int) string {
	switch verbosity {
	case VerbosityUser:
		return "user"
	case VerbosityInfo:
		return "info"
	case VerbosityDebug:
		return "debug"
	default:
		return "trace"
	}
}
