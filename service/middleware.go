package service

import (
	"fmt"
	"net/http"
	"time"

	"github.com/urfave/negroni"

	"github.com/kava-labs/evm-rpc-middleware/logging"
)

// recoveryLogger adapts a ServiceLogger to the logger negroni's recovery writes panics to
type recoveryLogger struct {
	*logging.ServiceLogger
}

func (l recoveryLogger) Println(v ...interface{}) {
	l.Error().Msg(fmt.Sprint(v...))
}

func (l recoveryLogger) Printf(format string, v ...interface{}) {
	l.Error().Msg(fmt.Sprintf(format, v...))
}

// createRecoveryMiddleware returns a handler answering 500 to requests
// whose handling panicked, logging the panic
func createRecoveryMiddleware(serviceLogger *logging.ServiceLogger) negroni.Handler {
	recovery := negroni.NewRecovery()
	recovery.Logger = recoveryLogger{serviceLogger}
	recovery.PrintStack = false

	return recovery
}

// createRequestLoggingMiddleware returns a handler that logs any request
// with the status and latency of its response
func createRequestLoggingMiddleware(serviceLogger *logging.ServiceLogger) negroni.Handler {
	return negroni.HandlerFunc(func(w http.ResponseWriter, r *http.Request, next http.HandlerFunc) {
		requestAt := time.Now()

		next(w, r)

		status := http.StatusOK
		if rw, ok := w.(negroni.ResponseWriter); ok {
			status = rw.Status()
		}

		serviceLogger.Debug().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", status).
			Dur("latency", time.Since(requestAt)).
			Msg("handled request")
	})
}
