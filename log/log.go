// Package log builds the process logger and holds the fatal error codes a
// node can exit with.
package log

import (
	"io"
	"os"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

const (
	// ConsoleLogEncoder is the human readable encoder.
	ConsoleLogEncoder = "console"
	// JSONLogEncoder encodes every entry as a json object.
	JSONLogEncoder = "json"
)

// where logs go by default.
var logWriter io.Writer = os.Stdout

// New creates a logger that writes to stdout with the given encoder ("console" or "json").
func New(name string, level zap.AtomicLevel, encoder string, hooks ...func(zapcore.Entry) error) *zap.Logger {
	return NewWithWriter(logWriter, name, level, encoder, hooks...)
}

// NewWithWriter is New with an explicit sink.
func NewWithWriter(w io.Writer, name string, level zap.AtomicLevel, encoder string, hooks ...func(zapcore.Entry) error) *zap.Logger {
	core := zapcore.NewCore(newEncoder(encoder), zapcore.AddSync(w), level)
	return zap.New(zapcore.RegisterHooks(core, hooks...)).Named(name)
}

func newEncoder(name string) zapcore.Encoder {
	if name == JSONLogEncoder {
		cfg := zap.NewProductionEncoderConfig()
		cfg.EncodeTime = zapcore.ISO8601TimeEncoder
		return zapcore.NewJSONEncoder(cfg)
	}
	cfg := zap.NewDevelopmentEncoderConfig()
	cfg.EncodeLevel = zapcore.CapitalColorLevelEncoder
	return zapcore.NewConsoleEncoder(cfg)
}

// ShortString is implemented by identifiers that have an abbreviated form for logs.
type ShortString interface {
	ShortString() string
}

// ZShortStringer is a zap field that logs the short form of val.
func ZShortStringer(key string, val ShortString) zap.Field {
	return zap.Stringer(key, shortStringer{val})
}

type shortStringer struct {
	ShortString
}

func (s shortStringer) String() string {
	return s.ShortString.ShortString()
}
