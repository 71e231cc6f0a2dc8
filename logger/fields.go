package logger

// Standard field names for consistent structured logging across
// mentowatch. Use these constants instead of raw strings.
const (
	// Identity and context
	FieldSnapshotID = "snapshot_id"
	FieldRunID      = "run_id"
	FieldAlertID    = "alert_id"
	FieldClientID   = "client_id"

	// Chain
	FieldToken    = "token"
	FieldAddress  = "address"
	FieldBlock    = "block"
	FieldEndpoint = "endpoint"
	FieldRatio    = "ratio"
	FieldTokens   = "tokens"

	// Components
	FieldComponent = "component"

	// Operations
	FieldOperation = "operation"
	FieldMethod    = "method"
	FieldPath      = "path"

	// Timing
	FieldDurationMS = "duration_ms"
	FieldStartTime  = "start_time"
	FieldEndTime    = "end_time"

	// Errors
	FieldError     = "error"
	FieldErrorType = "error_type"

	// Counts and sizes
	FieldCount = "count"
	FieldSize  = "size"

	// Status
	FieldStatus  = "status"
	FieldHealthy = "healthy"
	FieldState   = "state"

	// Network
	FieldPort = "port"
	FieldHost = "host"

	// Symbol marker for queryable log categories
	FieldSymbol = "symbol"
)
