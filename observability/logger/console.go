package logger

import (
	"encoding/json"
	"os"
	"strings"

	"github.com/fatih/color"
	"go.uber.org/zap"
	"go.uber.org/zap/buffer"
	"go.uber.org/zap/zapcore"
)

// consoleEncoder writes the entry header through zap's console encoder with a
// colored level and prints structured fields as indented JSON below it.
type consoleEncoder struct {
	zapcore.Encoder
	fields zapcore.Encoder
	pool   buffer.Pool
}

func newConsoleEncoder(cfg zapcore.EncoderConfig) zapcore.Encoder {
	return &consoleEncoder{
		Encoder: zapcore.NewConsoleEncoder(cfg),
		fields:  zapcore.NewJSONEncoder(zapcore.EncoderConfig{}),
		pool:    buffer.NewPool(),
	}
}

func (e *consoleEncoder) Clone() zapcore.Encoder {
	return &consoleEncoder{
		Encoder: e.Encoder.Clone(),
		fields:  e.fields.Clone(),
		pool:    e.pool,
	}
}

func (e *consoleEncoder) AddString(key, value string) {
	e.fields.AddString(key, value)
}

func (e *consoleEncoder) AddReflected(key string, value any) error {
	return e.fields.AddReflected(key, value)
}

func (e *consoleEncoder) EncodeEntry(entry zapcore.Entry, fields []zapcore.Field) (*buffer.Buffer, error) {
	head, err := e.Encoder.EncodeEntry(entry, nil)
	if err != nil {
		return nil, err
	}
	line := colorizeLevel(strings.TrimRight(head.String(), "\n"), entry.Level)
	head.Free()

	body, err := e.fields.EncodeEntry(zapcore.Entry{}, fields)
	if err != nil {
		return nil, err
	}
	defer body.Free()

	buf := e.pool.Get()
	buf.AppendString(line)

	var decoded map[string]any
	if json.Unmarshal(body.Bytes(), &decoded) == nil && len(decoded) > 0 {
		pretty, mErr := json.MarshalIndent(decoded, "", "  ")
		if mErr == nil {
			buf.AppendString("\n")
			buf.AppendString(string(pretty))
		}
	}
	buf.AppendString("\n")

	return buf, nil
}

func colorizeLevel(line string, level zapcore.Level) string {
	var c *color.Color
	switch level {
	case zapcore.DebugLevel:
		c = color.New(color.FgCyan)
	case zapcore.InfoLevel:
		c = color.New(color.FgGreen)
	case zapcore.WarnLevel:
		c = color.New(color.FgYellow)
	case zapcore.ErrorLevel, zapcore.DPanicLevel, zapcore.PanicLevel, zapcore.FatalLevel:
		c = color.New(color.FgRed, color.Bold)
	default:
		return line
	}

	lvl := level.CapitalString()
	return strings.Replace(line, lvl, c.Sprint(lvl), 1)
}

func newConsoleLogger(cfg *zap.Config) *zap.Logger {
	core := zapcore.NewCore(
		newConsoleEncoder(cfg.EncoderConfig),
		zapcore.Lock(os.Stdout),
		cfg.Level,
	)
	return zap.New(core)
}
