package log

import (
	"os"
	"sync"

	"github.com/ahmedalbuni/biorad/pkg/errors"
)

var (
	defaultMu     sync.RWMutex
	defaultLogger Logger = NewZerologLogger(os.Stderr, LevelInfo)
)

// GetLogger returns the process default logger. Components fall back to it
// when no logger is passed through their options.
func GetLogger() Logger {
	defaultMu.RLock()
	defer defaultMu.RUnlock()
	return defaultLogger
}

// SetLogger replaces the process default logger. When l is backed by zerolog
// the warnings raised through errors.Warn are routed to it as well.
func SetLogger(l Logger) {
	if l == nil {
		l = Nop()
	}
	defaultMu.Lock()
	defaultLogger = l
	defaultMu.Unlock()

	if zl, ok := l.(*ZerologLogger); ok {
		errors.SetZerologWarnFunc(zl.WarnFunc())
	} else {
		errors.SetZerologWarnFunc(nil)
	}
}

// Setup builds the CLI logger from a level name and installs it as default.
func Setup(level string, pretty bool) (Logger, error) {
	lvl, err := ParseLevel(level)
	if err != nil {
		return nil, err
	}
	var l *ZerologLogger
	if pretty {
		l = NewConsoleLogger(os.Stderr, lvl)
	} else {
		l = NewZerologLogger(os.Stderr, lvl)
	}
	SetLogger(l)
	return l, nil
}
