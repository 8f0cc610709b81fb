package common

import (
	logging "github.com/inconshreveable/log15"
)

var log = logging.New("module", "common")

func init() {
	SetLogging(DefaultLogLevel, DefaultLogHandler)
}

// SetLogging sets the handler of the package logger, used by the clock.
func SetLogging(level logging.Lvl, handler logging.Handler) {
	SetLoggerHandler(log, level, handler)
}
