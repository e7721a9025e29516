package diag

import (
	"os"
	"strconv"
	"sync"

	"go.uber.org/zap"
)

var (
	mu     sync.RWMutex
	logger *zap.Logger
)

func init() {
	if raw, ok := os.LookupEnv("UNISOCK_DEBUG"); ok {
		if enabled, err := strconv.ParseBool(raw); err == nil && enabled {
			if dev, err := zap.NewDevelopment(); err == nil {
				logger = dev
			}
		}
	}
}

// Logger returns the package-wide diagnostic logger. It is a no-op
// logger unless SetLogger has been called or UNISOCK_DEBUG is set.
func Logger() *zap.Logger {
	mu.RLock()
	defer mu.RUnlock()

	if logger == nil {
		return zap.NewNop()
	}
	return logger
}

// SetLogger replaces the package-wide diagnostic logger. Passing nil
// restores the no-op default.
func SetLogger(l *zap.Logger) {
	mu.Lock()
	defer mu.Unlock()

	logger = l
}
