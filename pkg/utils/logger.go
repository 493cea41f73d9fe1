package utils

import (
	"log/slog"
	"sync"

	"github.com/secmon-lab/catalogsync/pkg/domain/types"
)

var (
	logger      = withAppAttrs(slog.Default())
	loggerMutex sync.Mutex
)

func withAppAttrs(l *slog.Logger) *slog.Logger {
	return l.With(slog.Group("app",
		slog.String("name", types.AppName),
		slog.String("version", types.AppVersion),
	))
}

// Logger returns the process wide logger. Use CtxLogger in request or run scope.
func Logger() *slog.Logger {
	loggerMutex.Lock()
	defer loggerMutex.Unlock()
	return logger
}

func SetLogger(l *slog.Logger) {
	loggerMutex.Lock()
	defer loggerMutex.Unlock()
	logger = withAppAttrs(l)
}

// ErrLog is a log attribute of err. goerr values are expanded by the handler.
func ErrLog(err error) slog.Attr {
	if err == nil {
		return slog.String("error", "")
	}
	return slog.Any("error", err)
}
