// Package log provides the process-wide logrus logger used by fibsim.
package log

import (
	"io"
	"os"
	"sync"

	"github.com/sirupsen/logrus"
)

// Config selects the level and output format of the logger.
type Config struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

var (
	mu     sync.RWMutex
	logger = newLogger(Config{Level: "info", Format: "text"}, os.Stderr)
)

func newLogger(cfg Config, out io.Writer) *logrus.Logger {
	l := logrus.New()
	l.SetOutput(out)

	switch cfg.Format {
	case "json":
		l.SetFormatter(&logrus.JSONFormatter{})
	default:
		l.SetFormatter(&logrus.TextFormatter{
			DisableColors:    true,
			FullTimestamp:    true,
			DisableSorting:   false,
			QuoteEmptyFields: true,
		})
	}

	level, err := logrus.ParseLevel(cfg.Level)
	if err != nil {
		level = logrus.InfoLevel
	}
	l.SetLevel(level)
	return l
}

// Init replaces the process-wide logger. Decisions go to stdout, so the
// logger always writes to stderr.
func Init(cfg Config) {
	InitWithOutput(cfg, os.Stderr)
}

// InitWithOutput is Init with an explicit destination.
func InitWithOutput(cfg Config, out io.Writer) {
	l := newLogger(cfg, out)
	mu.Lock()
	logger = l
	mu.Unlock()
}

// Get returns the current logger.
func Get() logrus.FieldLogger {
	mu.RLock()
	defer mu.RUnlock()
	return logger
}

// IsDebugEnabled reports whether debug entries are emitted.
func IsDebugEnabled() bool {
	mu.RLock()
	defer mu.RUnlock()
	return logger.IsLevelEnabled(logrus.DebugLevel)
}
