package auth

import (
	"fmt"
	"io"
	"os"

	"github.com/rs/zerolog"
)

type zeroLogger struct {
	log zerolog.Logger
}

// NewLogger returns a Logger that writes JSON lines to w, tagged with the
// given component name. A nil writer defaults to stdout.
func NewLogger(component string, w io.Writer) Logger {
	if w == nil {
		w = os.Stdout
	}
	l := zerolog.New(w).With().Timestamp().Logger()
	if component != "" {
		l = l.With().Str("component", component).Logger()
	}
	return zeroLogger{log: l}
}

// NopLogger discards everything.
func NopLogger() Logger {
	return zeroLogger{log: zerolog.Nop()}
}

func defLogger(component string) Logger {
	return NewLogger(component, os.Stdout)
}

func (l zeroLogger) Debug(msg string, args ...any) { emit(l.log.Debug(), msg, args) }
func (l zeroLogger) Info(msg string, args ...any)  { emit(l.log.Info(), msg, args) }
func (l zeroLogger) Warn(msg string, args ...any)  { emit(l.log.Warn(), msg, args) }
func (l zeroLogger) Error(msg string, args ...any) { emit(l.log.Error(), msg, args) }

func emit(evt *zerolog.Event, msg string, args []any) {
	if evt == nil {
		return
	}

	for i := 0; i+1 < len(args); i += 2 {
		key, ok := args[i].(string)
		if !ok {
			key = fmt.Sprint(args[i])
		}
		switch v := args[i+1].(type) {
		case error:
			evt = evt.AnErr(key, v)
		case string:
			evt = evt.Str(key, v)
		default:
			evt = evt.Interface(key, v)
		}
	}

	if len(args)%2 == 1 {
		evt = evt.Interface("extra", args[len(args)-1])
	}

	evt.Msg(msg)
}

func normalizeLogger(l Logger, component string) Logger {
	if l == nil {
		return defLogger(component)
	}
	return l
}
