package vtsmotion

import (
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// MotionLogger wraps zerolog for structured logging
type MotionLogger struct {
	logger zerolog.Logger
}

// LogLevel represents the logging level
type LogLevel int

const (
	TraceLevel LogLevel = iota
	DebugLevel
	InfoLevel
	WarnLevel
	ErrorLevel
	FatalLevel
)

// LogConfig represents the configuration for logging
type LogConfig struct {
	Level     LogLevel
	Pretty    bool
	Output    io.Writer
	AddSource bool
	Fields    map[string]interface{}
}

// DefaultLogConfig returns a default logging configuration
func DefaultLogConfig() *LogConfig {
	return &LogConfig{
		Level:  InfoLevel,
		Pretty: true,
		Output: os.Stdout,
		Fields: make(map[string]interface{}),
	}
}

// NewMotionLogger creates a new structured logger
func NewMotionLogger(config *LogConfig) *MotionLogger {
	if config == nil {
		config = DefaultLogConfig()
	}

	zerolog.TimeFieldFormat = time.RFC3339

	var logger zerolog.Logger
	if config.Pretty {
		logger = log.Output(zerolog.ConsoleWriter{
			Out:        config.Output,
			TimeFormat: time.Kitchen,
		})
	} else {
		logger = zerolog.New(config.Output)
	}

	switch config.Level {
	case TraceLevel:
		logger = logger.Level(zerolog.TraceLevel)
	case DebugLevel:
		logger = logger.Level(zerolog.DebugLevel)
	case InfoLevel:
		logger = logger.Level(zerolog.InfoLevel)
	case WarnLevel:
		logger = logger.Level(zerolog.WarnLevel)
	case ErrorLevel:
		logger = logger.Level(zerolog.ErrorLevel)
	case FatalLevel:
		logger = logger.Level(zerolog.FatalLevel)
	}

	logger = logger.With().Timestamp().Logger()

	if config.AddSource {
		logger = logger.With().Caller().Logger()
	}

	if len(config.Fields) > 0 {
		logger = logger.With().Fields(config.Fields).Logger()
	}

	return &MotionLogger{logger: logger}
}

// WithComponent adds a component field to the logger
func (l *MotionLogger) WithComponent(component string) *MotionLogger {
	return &MotionLogger{
		logger: l.logger.With().Str("component", component).Logger(),
	}
}

// WithField adds a field to the logger
func (l *MotionLogger) WithField(key string, value interface{}) *MotionLogger {
	return &MotionLogger{
		logger: l.logger.With().Interface(key, value).Logger(),
	}
}

// WithError adds an error field to the logger
func (l *MotionLogger) WithError(err error) *MotionLogger {
	return &MotionLogger{
		logger: l.logger.With().Err(err).Logger(),
	}
}

func (l *MotionLogger) Trace(msg string) { l.logger.Trace().Msg(msg) }

func (l *MotionLogger) Tracef(format string, args ...interface{}) {
	l.logger.Trace().Msgf(format, args...)
}

func (l *MotionLogger) Debug(msg string) { l.logger.Debug().Msg(msg) }

func (l *MotionLogger) Debugf(format string, args ...interface{}) {
	l.logger.Debug().Msgf(format, args...)
}

func (l *MotionLogger) Info(msg string) { l.logger.Info().Msg(msg) }

func (l *MotionLogger) Infof(format string, args ...interface{}) {
	l.logger.Info().Msgf(format, args...)
}

func (l *MotionLogger) Warn(msg string) { l.logger.Warn().Msg(msg) }

func (l *MotionLogger) Warnf(format string, args ...interface{}) {
	l.logger.Warn().Msgf(format, args...)
}

func (l *MotionLogger) Error(msg string) { l.logger.Error().Msg(msg) }

func (l *MotionLogger) Errorf(format string, args ...interface{}) {
	l.logger.Error().Msgf(format, args...)
}

func (l *MotionLogger) Fatal(msg string) { l.logger.Fatal().Msg(msg) }

func (l *MotionLogger) Fatalf(format string, args ...interface{}) {
	l.logger.Fatal().Msgf(format, args...)
}

// LogConnectionEvent logs connection-related events
func (l *MotionLogger) LogConnectionEvent(event string, state ConnectionState, fields map[string]interface{}) {
	l.logger.Info().
		Str("event_type", "connection").
		Str("event", event).
		Str("state", string(state)).
		Fields(fields).
		Msg("Connection event")
}

// LogEnvelopeEvent logs wire protocol traffic at debug level
func (l *MotionLogger) LogEnvelopeEvent(direction, messageType, requestID string) {
	l.logger.Debug().
		Str("event_type", "envelope").
		Str("direction", direction).
		Str("message_type", messageType).
		Str("request_id", requestID).
		Msg("Envelope event")
}

// LogError logs a MotionError with structured fields
func (l *MotionLogger) LogError(err *MotionError) {
	l.logger.Error().
		Str("error_code", err.Code).
		Float64("timestamp", err.Timestamp).
		Fields(err.Details).
		Msg(err.Message)
}

// LogSendStats logs steady-state scheduler statistics
func (l *MotionLogger) LogSendStats(sent, dropped int64, lastSend time.Time) {
	l.logger.Info().
		Str("event_type", "stats").
		Int64("messages_sent", sent).
		Int64("values_dropped", dropped).
		Time("last_send", lastSend).
		Msg("Send statistics")
}

// Global logger instance
var globalLogger *MotionLogger

func init() {
	globalLogger = NewMotionLogger(DefaultLogConfig())
}

// GetGlobalLogger returns the global logger instance
func GetGlobalLogger() *MotionLogger {
	return globalLogger
}

// SetGlobalLogger sets the global logger instance
func SetGlobalLogger(logger *MotionLogger) {
	globalLogger = logger
}
