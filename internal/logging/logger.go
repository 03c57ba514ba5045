package logging

import (
	"os"

	"github.com/sirupsen/logrus"
)

// Logger represents a logger instance
type Logger = *logrus.Logger

// Fields represents structured logging fields
type Fields = logrus.Fields

// NewLogger creates a JSON logger whose level comes from LOG_LEVEL.
func NewLogger() Logger {
	logger := logrus.New()
	logger.SetFormatter(&logrus.JSONFormatter{})
	logger.SetLevel(levelFromEnv(os.Getenv("LOG_LEVEL")))
	return logger
}

// NewLoggerWithService creates a logger that tags every entry with service.
func NewLoggerWithService(service string) Logger {
	logger := NewLogger()
	logger.AddHook(serviceHook{service: service})
	return logger
}

// Discard returns a logger that drops everything, for tests.
func Discard() Logger {
	logger := logrus.New()
	logger.SetOutput(discardWriter{})
	return logger
}

func levelFromEnv(v string) logrus.Level {
	switch v {
	case "debug":
		return logrus.DebugLevel
	case "warn":
		return logrus.WarnLevel
	case "error":
		return logrus.ErrorLevel
	default:
		return logrus.InfoLevel
	}
}

type serviceHook struct {
	service string
}

func (h serviceHook) Levels() []logrus.Level { return logrus.AllLevels }

func (h serviceHook) Fire(e *logrus.Entry) error {
	if _, ok := e.Data["service"]; !ok {
		e.Data["service"] = h.service
	}
	return nil
}

type discardWriter struct{}

func (discardWriter) Write(p []byte) (int, error) { return len(p), nil }
