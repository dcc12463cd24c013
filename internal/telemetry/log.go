// Package telemetry carries the indexer's ambient logging and metrics
// stack: a JSON-formatted logrus logger for request/event logging and a
// global zap logger for library code that doesn't carry an explicit
// logger reference, plus the Prometheus registry backing /metrics.
package telemetry

import (
	"os"

	"github.com/sirupsen/logrus"
	"go.uber.org/zap"
)

// NewLogger builds a JSON-formatted logrus logger writing to stdout, the
// same shape the teacher's per-component loggers use.
func NewLogger(level string) *logrus.Logger {
	lg := logrus.New()
	lg.SetFormatter(&logrus.JSONFormatter{})
	lg.SetOutput(os.Stdout)
	lvl, err := logrus.ParseLevel(level)
	if err != nil {
		lvl = logrus.InfoLevel
	}
	lg.SetLevel(lvl)
	return lg
}

// InitGlobalZap installs a production zap logger as the package-global
// logger, for code paths deep in the call stack (wire decoding,
// substreams client internals) that log via zap.L().Sugar() rather than
// carrying a logger reference end to end.
func InitGlobalZap() (*zap.Logger, error) {
	lg, err := zap.NewProduction()
	if err != nil {
		return nil, err
	}
	zap.ReplaceGlobals(lg)
	return lg, nil
}
