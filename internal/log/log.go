// Package log is a thin key/value wrapper around zerolog. The same logger is
// installed into gnark so circuit compilation and proving share one sink.
package log

import (
	"fmt"
	"io"
	"os"
	"strings"
	"sync/atomic"
	"time"

	gnarklogger "github.com/consensys/gnark/logger"
	"github.com/rs/zerolog"
)

const (
	LogLevelDebug = "debug"
	LogLevelInfo  = "info"
	LogLevelWarn  = "warn"
	LogLevelError = "error"
	LogLevelNone  = "none"
)

var logger atomic.Pointer[zerolog.Logger]

func init() {
	l := zerolog.New(os.Stderr).Level(zerolog.InfoLevel).With().Timestamp().Logger()
	logger.Store(&l)
}

// Init configures the global logger. output is "stdout", "stderr" or a file
// path; w, if not nil, replaces output entirely (tests).
func Init(logLevel, output string, w io.Writer) {
	if w == nil {
		switch output {
		case "", "stderr":
			w = zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339}
		case "stdout":
			w = zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.RFC3339}
		default:
			f, err := os.OpenFile(output, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
			if err != nil {
				panic(fmt.Sprintf("cannot open log output %q: %v", output, err))
			}
			w = f
		}
	}
	lvl, err := zerolog.ParseLevel(strings.ToLower(logLevel))
	if err != nil || logLevel == "" {
		lvl = zerolog.InfoLevel
	}
	if logLevel == LogLevelNone {
		lvl = zerolog.Disabled
	}
	l := zerolog.New(w).Level(lvl).With().Timestamp().Logger()
	logger.Store(&l)

	// gnark is very chatty at debug level; only forward it when asked for.
	if lvl <= zerolog.DebugLevel {
		gnarklogger.Set(l)
	} else {
		gnarklogger.Disable()
	}
}

// Logger returns the current zerolog logger.
func Logger() *zerolog.Logger { return logger.Load() }

func fields(e *zerolog.Event, keyvals []any) *zerolog.Event {
	for i := 0; i < len(keyvals); i += 2 {
		key, ok := keyvals[i].(string)
		if !ok {
			key = fmt.Sprint(keyvals[i])
		}
		if i+1 >= len(keyvals) {
			e = e.Str(key, "MISSING")
			break
		}
		e = e.Interface(key, keyvals[i+1])
	}
	return e
}

func Debugw(msg string, keyvals ...any) { fields(Logger().Debug(), keyvals).Msg(msg) }
func Infow(msg string, keyvals ...any)  { fields(Logger().Info(), keyvals).Msg(msg) }
func Warnw(msg string, keyvals ...any)  { fields(Logger().Warn(), keyvals).Msg(msg) }

// Errorw logs err with additional key/value context.
func Errorw(err error, msg string, keyvals ...any) {
	fields(Logger().Error().Err(err), keyvals).Msg(msg)
}

func Warn(err error)  { Logger().Warn().Err(err).Send() }
func Fatal(err error) { Logger().Fatal().Err(err).Send() }
