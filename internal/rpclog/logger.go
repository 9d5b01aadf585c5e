// Package rpclog adapts the client runtime's log output to dragonboat's
// ILogger interface and factory, giving every subsystem an independently
// level-settable named logger without pulling in a full
// structured-logging dependency of its own.
package rpclog

import (
	"fmt"
	"log"
	"os"
	"strings"

	"github.com/lni/dragonboat/v4/logger"
)

// clientLogger implements logger.ILogger with fixed-width,
// prefix-formatted output: level, subsystem name, message.
type clientLogger struct {
	name   string
	level  logger.LogLevel
	logger *log.Logger
}

func (l *clientLogger) SetLevel(level logger.LogLevel) {
	l.level = level
}

func (l *clientLogger) Debugf(format string, args ...interface{}) {
	if l.level >= logger.DEBUG {
		l.log("DEBUG", format, args...)
	}
}

func (l *clientLogger) Infof(format string, args ...interface{}) {
	if l.level >= logger.INFO {
		l.log("INFO", format, args...)
	}
}

func (l *clientLogger) Warningf(format string, args ...interface{}) {
	if l.level >= logger.WARNING {
		l.log("WARN", format, args...)
	}
}

func (l *clientLogger) Errorf(format string, args ...interface{}) {
	if l.level >= logger.ERROR {
		l.log("ERROR", format, args...)
	}
}

func (l *clientLogger) Panicf(format string, args ...interface{}) {
	if l.level >= logger.CRITICAL {
		panic(fmt.Sprintf(format, args...))
	}
}

func (l *clientLogger) log(levelStr string, format string, args ...interface{}) {
	message := fmt.Sprintf(format, args...)
	l.logger.Printf("%-5s | %-15s | %s", levelStr, l.name, message)
}

// Factory creates a named clientLogger. Registered once with
// logger.SetLoggerFactory so every logger.GetLogger(name) call in this
// module's subsystems shares the same output format.
func Factory(pkgName string) logger.ILogger {
	stdLogger := log.New(os.Stdout, "", log.Ldate|log.Ltime)
	return &clientLogger{
		name:   pkgName,
		level:  logger.INFO,
		logger: stdLogger,
	}
}

// ParseLevel converts a string level to logger.LogLevel, defaulting to
// INFO for anything unrecognized instead of panicking - config input is
// untrusted here, unlike a startup-validated server configuration.
func ParseLevel(level string) logger.LogLevel {
	switch strings.ToLower(level) {
	case "debug":
		return logger.DEBUG
	case "info":
		return logger.INFO
	case "warning", "warn":
		return logger.WARNING
	case "error":
		return logger.ERROR
	default:
		return logger.INFO
	}
}

var initialized bool

// Init registers Factory as the global logger factory and sets the level
// for every named subsystem this module logs under. Safe to call more
// than once: the factory is registered on the first call only, and every
// call sets the level.
func Init(level string) {
	if !initialized {
		initialized = true
		logger.SetLoggerFactory(Factory)
	}

	lvl := ParseLevel(level)
	for _, name := range []string{"pool", "registry", "stats", "netclient", "lb", "backoff", "wire"} {
		logger.GetLogger(name).SetLevel(lvl)
	}
}

// Get returns the named logger, initializing the factory with INFO level
// first if Init has not been called yet - so packages can log during
// package-level var initialization without forcing callers to sequence
// Init() first.
func Get(name string) logger.ILogger {
	if !initialized {
		Init("info")
	}
	return logger.GetLogger(name)
}
