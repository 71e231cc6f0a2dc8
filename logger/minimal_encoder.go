package logger

import (
	"fmt"
	"math"
	"regexp"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/buffer"
	"go.uber.org/zap/zapcore"
)

// Symbol constants (duplicated from sym to avoid a circular dependency;
// sym does not import logger, but keeping logger dependency-free keeps
// initialization order trivial)
const (
	symPulse      = "꩜"
	symPulseOpen  = "✿"
	symPulseClose = "❀"
)

// Color palettes for different themes
const (
	colorReset = "\x1b[0m"
	colorBold  = "\x1b[1m"
)

// Gruvbox Dark color palette (warm, muted, easy on eyes)
type gruvboxColors struct {
	fg       string
	aqua     string
	orange   string
	yellow   string
	green    string
	blue     string
	purple   string
	red      string
	redBg    string
	yellowBg string
}

var gruvbox = gruvboxColors{
	fg:       "\x1b[38;5;223m", // Soft cream (#ebdbb2)
	aqua:     "\x1b[38;5;108m", // Muted cyan-green (#8ec07c)
	orange:   "\x1b[38;5;208m", // Warm orange (#fe8019)
	yellow:   "\x1b[38;5;214m", // Soft yellow (#fabd2f)
	green:    "\x1b[38;5;142m", // Muted green (#b8bb26)
	blue:     "\x1b[38;5;109m", // Soft blue (#83a598)
	purple:   "\x1b[38;5;175m", // Muted purple (#d3869b)
	red:      "\x1b[38;5;167m", // Warm red (#fb4934)
	redBg:    "\x1b[48;5;88m",  // Dark red background
	yellowBg: "\x1b[48;5;58m",  // Dark yellow background
}

// Everforest Dark color palette (natural forest greens)
type everforestColors struct {
	fg          string
	greenBright string
	greenMid    string
	greenDeep   string
	aqua        string
	orange      string
	yellow      string
	red         string
	redBg       string
	yellowBg    string
}

var everforest = everforestColors{
	fg:          "\x1b[38;5;223m", // Soft beige (#d3c6aa)
	greenBright: "\x1b[38;5;108m", // Bright green (#a7c080)
	greenMid:    "\x1b[38;5;107m", // Mid green (#83c092) - timestamps
	greenDeep:   "\x1b[38;5;65m",  // Deep green (#7fbbb3)
	aqua:        "\x1b[38;5;109m", // Blue-green (#7fbbb3) - client/network
	orange:      "\x1b[38;5;208m", // Warm orange (#e69875) - components
	yellow:      "\x1b[38;5;179m", // Soft yellow (#dbbc7f) - warnings
	red:         "\x1b[38;5;167m", // Warm red (#e67e80) - errors
	redBg:       "\x1b[48;5;52m",  // Dark red background
	yellowBg:    "\x1b[48;5;58m",  // Dark yellow background
}

// Current active theme (set by logger.Initialize from env/config)
var currentTheme = "everforest"

// SetTheme configures the color scheme for log output
func SetTheme(theme string) {
	if theme == "everforest" || theme == "gruvbox" {
		currentTheme = theme
	}
}

// Theme-aware color getters
func colorTime() string {
	if currentTheme == "everforest" {
		return everforest.greenMid
	}
	return gruvbox.aqua
}

func colorComponent(name string) string {
	// Hash for consistent color per component
	hash := 0
	for _, c := range name {
		hash += int(c)
	}

	if currentTheme == "everforest" {
		if hash%3 == 0 {
			return everforest.greenBright
		} else if hash%3 == 1 {
			return everforest.greenDeep
		}
		return everforest.orange
	}

	if hash%2 == 0 {
		return gruvbox.orange
	}
	return gruvbox.yellow
}

func colorID() string {
	if currentTheme == "everforest" {
		return everforest.aqua
	}
	return gruvbox.blue
}

func colorNumber() string {
	if currentTheme == "everforest" {
		return everforest.greenBright
	}
	return gruvbox.purple
}

func colorFg() string {
	if currentTheme == "everforest" {
		return everforest.fg
	}
	return gruvbox.fg
}

func colorWarn() (string, string) {
	if currentTheme == "everforest" {
		return everforest.yellow, everforest.yellowBg
	}
	return gruvbox.yellow, gruvbox.yellowBg
}

func colorError() (string, string) {
	if currentTheme == "everforest" {
		return everforest.red, everforest.redBg
	}
	return gruvbox.red, gruvbox.redBg
}

// bracketPattern matches bracketed contexts: [token:cUSD], [run:XXX], etc.
var bracketPattern = regexp.MustCompile(`\[([^\]]+)\]`)

// colorizeMessage parses a log message and applies context-aware
// colorization: bracketed IDs, daemon symbols, and the base text.
func colorizeMessage(msg string) string {
	getBracketColor := func(content string) string {
		if strings.HasPrefix(content, "token:") || strings.HasPrefix(content, "run:") {
			if currentTheme == "everforest" {
				return everforest.aqua
			}
			return gruvbox.blue
		}
		if currentTheme == "everforest" {
			return everforest.orange
		}
		return gruvbox.orange
	}

	getSymbolColor := func() string {
		if currentTheme == "everforest" {
			return everforest.greenBright
		}
		return gruvbox.green
	}

	result := strings.Builder{}
	lastIndex := 0

	matches := bracketPattern.FindAllStringSubmatchIndex(msg, -1)
	for _, match := range matches {
		textBefore := msg[lastIndex:match[0]]
		if textBefore != "" {
			result.WriteString(colorFg())
			result.WriteString(colorizeSymbols(textBefore, getSymbolColor()))
			result.WriteString(colorReset)
		}

		content := msg[match[2]:match[3]]
		result.WriteString(getBracketColor(content))
		result.WriteString(msg[match[0]:match[1]])
		result.WriteString(colorReset)

		lastIndex = match[1]
	}

	remaining := msg[lastIndex:]
	if remaining != "" {
		result.WriteString(colorFg())
		result.WriteString(colorizeSymbols(remaining, getSymbolColor()))
		result.WriteString(colorReset)
	}

	return result.String()
}

// colorizeSymbols replaces daemon symbols with colorized versions
func colorizeSymbols(text string, symbolColor string) string {
	for _, s := range []string{symPulse, symPulseOpen, symPulseClose} {
		text = strings.ReplaceAll(text, s, symbolColor+s+colorReset)
	}
	return text
}

// minimalEncoder implements a calm, compact console encoder with theme support
// Format: "13:04:35  pulse  Snapshot collected  snap_9f2 (8 tokens, ratio 2.41)"
type minimalEncoder struct {
	zapcore.Encoder // Embed a base encoder for field serialization
	buf             *buffer.Buffer
}

func newMinimalEncoder() *minimalEncoder {
	// Create a base JSON encoder for field serialization (internal use only)
	baseEncoder := zapcore.NewJSONEncoder(zap.NewProductionEncoderConfig())

	return &minimalEncoder{
		Encoder: baseEncoder,
		buf:     buffer.NewPool().Get(),
	}
}

func (enc *minimalEncoder) Clone() zapcore.Encoder {
	return &minimalEncoder{
		Encoder: enc.Encoder.Clone(),
		buf:     buffer.NewPool().Get(),
	}
}

func (enc *minimalEncoder) EncodeEntry(ent zapcore.Entry, fields []zapcore.Field) (*buffer.Buffer, error) {
	final := buffer.NewPool().Get()

	// Time: theme-aware color
	final.AppendString(colorTime())
	final.AppendString(ent.Time.Format("15:04:05"))
	final.AppendString(colorReset)

	// Level: only show for WARN/ERROR with bold + background
	if ent.Level != zapcore.InfoLevel {
		final.AppendString("  ")
		final.AppendString(levelColorString(ent.Level))
	}

	// Component name (abbreviated): theme-aware color for visual grouping
	if ent.LoggerName != "" {
		final.AppendString("  ")
		final.AppendString(colorComponent(ent.LoggerName))
		final.AppendString(abbreviateName(ent.LoggerName))
		final.AppendString(colorReset)
	}

	// Message: context-aware colorization of brackets, symbols, and content
	final.AppendString("  ")
	final.AppendString(colorizeMessage(ent.Message))

	// Fields: extract and color values
	if len(fields) > 0 {
		final.AppendString("  ")
		final.AppendString(extractFieldValues(fields))
	}

	final.AppendString("\n")
	return final, nil
}

// levelColorString returns bold + colored + background for WARN/ERROR
func levelColorString(level zapcore.Level) string {
	warnColor, warnBg := colorWarn()
	errColor, errBg := colorError()

	switch level {
	case zapcore.WarnLevel:
		return colorBold + warnBg + warnColor + "WARN" + colorReset
	case zapcore.ErrorLevel:
		return colorBold + errBg + errColor + "ERROR" + colorReset
	case zapcore.DPanicLevel, zapcore.PanicLevel, zapcore.FatalLevel:
		return colorBold + errBg + errColor + level.CapitalString() + colorReset
	default:
		return ""
	}
}

// abbreviateName shortens component names: server -> s, chain.client -> c.client
func abbreviateName(name string) string {
	parts := strings.Split(name, ".")
	if len(parts) > 1 {
		return string(parts[0][0]) + "." + strings.Join(parts[1:], ".")
	}
	return name
}

// getFieldValue extracts the value from a zap field, handling different field types
func getFieldValue(field zapcore.Field) string {
	if field.Type == zapcore.StringType {
		return field.String
	}

	if field.Type == zapcore.Int64Type || field.Type == zapcore.Int32Type ||
		field.Type == zapcore.Int16Type || field.Type == zapcore.Int8Type ||
		field.Type == zapcore.Uint64Type || field.Type == zapcore.Uint32Type ||
		field.Type == zapcore.Uint16Type || field.Type == zapcore.Uint8Type {
		return fmt.Sprintf("%d", field.Integer)
	}

	// zap packs float bits into Integer; Interface stays nil
	if field.Type == zapcore.Float64Type {
		return fmt.Sprintf("%.2f", math.Float64frombits(uint64(field.Integer)))
	}
	if field.Type == zapcore.Float32Type {
		return fmt.Sprintf("%.2f", math.Float32frombits(uint32(field.Integer)))
	}

	if field.Interface != nil {
		return fmt.Sprintf("%v", field.Interface)
	}

	return ""
}

// extractFieldValues pulls just the values from structured fields with theme-aware colors
// Input: {"snapshot_id": "snap_9f2", "tokens": 8, "ratio": 2.41}
// Output: "snap_9f2 (8 tokens, ratio 2.41)" (with colored IDs and numbers)
func extractFieldValues(fields []zapcore.Field) string {
	var values []string
	var tokenCount, ratio string

	for _, field := range fields {
		switch field.Key {
		case FieldSnapshotID, FieldRunID, FieldClientID, FieldToken:
			// IDs in theme-aware color (blue/aqua)
			val := getFieldValue(field)
			if val != "" {
				values = append(values, colorID()+val+colorReset)
			}
		case FieldTokens:
			tokenCount = getFieldValue(field)
		case FieldRatio:
			ratio = getFieldValue(field)
		case FieldDurationMS:
			val := getFieldValue(field)
			if val != "" {
				values = append(values, colorNumber()+val+colorReset+"ms")
			}
		case FieldBlock:
			val := getFieldValue(field)
			if val != "" {
				values = append(values, colorFg()+"block "+colorNumber()+val+colorReset)
			}
		}
	}

	// Special formatting for snapshot stats
	if tokenCount != "" && ratio != "" {
		fg := colorFg()
		num := colorNumber()
		values = append(values, fg+"("+num+tokenCount+colorReset+fg+" tokens, ratio "+num+ratio+colorReset+fg+")"+colorReset)
	}

	if len(values) == 0 {
		return ""
	}

	return strings.Join(values, " ")
}
