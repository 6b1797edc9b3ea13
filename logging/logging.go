// package logging provides the structured leveled logger
// shared by every middleware, client and the proxy service
package logging

import (
	"fmt"
	"io"
	"os"

	"github.com/rs/zerolog"
)

// ServiceLogger is a json structured leveled logger
// used by the service to log messages to stdout
type ServiceLogger struct {
	*zerolog.Logger
}

var (
	serviceLogLevelToZeroLogLevel = map[string]zerolog.Level{
		"TRACE": zerolog.TraceLevel,
		"DEBUG": zerolog.DebugLevel,
		"INFO":  zerolog.InfoLevel,
		"ERROR": zerolog.ErrorLevel,
	}
)

// New creates and returns a new ServiceLogger and error (if any).
func New(logLevel string) (ServiceLogger, error) {
	return NewWithWriter(logLevel, os.Stdout)
}

// NewWithWriter creates a ServiceLogger writing to w instead of stdout.
func NewWithWriter(logLevel string, w io.Writer) (ServiceLogger, error) {
	zerologLevel, exists := serviceLogLevelToZeroLogLevel[logLevel]
	if !exists {
		return ServiceLogger{}, fmt.Errorf("invalid zero log level provided %s ", logLevel)
	}

	serviceLog := zerolog.New(w).With().Timestamp().Caller().Logger().Level(zerologLevel)

	return ServiceLogger{
		Logger: &serviceLog,
	}, nil
}

// Component returns a child logger tagged with the given component name.
func (l *ServiceLogger) Component(name string) *ServiceLogger {
	child := l.Logger.With().Str("component", name).Logger()

	return &ServiceLogger{Logger: &child}
}

// Nop returns a logger that discards everything, for use in tests.
func Nop() *ServiceLogger {
	logger := zerolog.Nop()

	return &ServiceLogger{Logger: &logger}
}
