package logger

import (
	"regexp"
	"testing"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// stripANSI removes ANSI color codes from a string for testing
func stripANSI(str string) string {
	ansiRegex := regexp.MustCompile(`\x1b\[[0-9;]*m`)
	return ansiRegex.ReplaceAllString(str, "")
}

func TestGetFieldValue(t *testing.T) {
	assert.Equal(t, "snap-1", getFieldValue(zap.String(FieldSnapshotID, "snap-1")))
	assert.Equal(t, "8", getFieldValue(zap.Int(FieldTokens, 8)))
	assert.Equal(t, "12345", getFieldValue(zap.Uint64(FieldBlock, 12345)))

	// Floats live in Field.Integer as raw bits, not in Interface.
	assert.Equal(t, "2.41", getFieldValue(zap.Float64(FieldRatio, 2.41)))
	assert.Equal(t, "1.50", getFieldValue(zap.Float32("load", 1.5)))
}

func TestExtractFieldValuesSnapshotStats(t *testing.T) {
	out := stripANSI(extractFieldValues([]zapcore.Field{
		zap.String(FieldSnapshotID, "snap-1"),
		zap.Int(FieldTokens, 8),
		zap.Float64(FieldRatio, 2.41),
	}))

	assert.Contains(t, out, "snap-1")
	assert.Contains(t, out, "(8 tokens, ratio 2.41)")
}
