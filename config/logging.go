package config

import "go.uber.org/zap/zapcore"

// LogEncoder defines a log encoder kind.
type LogEncoder = string

const (
	defaultLoggingLevel = zapcore.InfoLevel
	// ConsoleLogEncoder represents logging with plain text.
	ConsoleLogEncoder LogEncoder = "console"
	// JSONLogEncoder represents logging with JSON.
	JSONLogEncoder LogEncoder = "json"
)

// LoggerConfig holds the logging level for each module.
type LoggerConfig struct {
	Encoder          LogEncoder `mapstructure:"log-encoder"`
	AppLoggerLevel   string     `mapstructure:"app"`
	StoreLoggerLevel string     `mapstructure:"store"`
	ViewLoggerLevel  string     `mapstructure:"view"`
	SyncLoggerLevel  string     `mapstructure:"sync"`
	ServerLogLevel   string     `mapstructure:"server"`
}

func defaultLoggingConfig() LoggerConfig {
	return LoggerConfig{
		Encoder:          ConsoleLogEncoder,
		AppLoggerLevel:   defaultLoggingLevel.String(),
		StoreLoggerLevel: defaultLoggingLevel.String(),
		ViewLoggerLevel:  defaultLoggingLevel.String(),
		SyncLoggerLevel:  defaultLoggingLevel.String(),
		ServerLogLevel:   zapcore.WarnLevel.String(),
	}
}
