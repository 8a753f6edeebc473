package log

import (
	"io"
	"os"
	"slices"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/term"
)

var Discard = New(WithLevel(LevelSilent), WithWriter(io.Discard))

func New(ops ...Option) *Logger {
	defaults := []Option{
		WithLogger(&Logger{zerolog.New(nil).
			With().Timestamp().Logger(),
		}),
		WithWriter(os.Stdout),
		WithLevel(LevelInfo),
	}

	var l Logger
	for _, op := range slices.Concat(defaults, ops) {
		op(&l)
	}
	return &l
}

func WithLogger(l *Logger) Option {
	return func(ll *Logger) {
		ll.log = l.log
	}
}

func WithLevel(level Level) Option {
	return func(l *Logger) {
		l.log = l.log.Level(makeZerologLevel(level))
	}
}

func WithWriter(w io.Writer) Option {
	return func(l *Logger) {
		out := w
		if isTerminal(w) {
			out = zerolog.NewConsoleWriter(func(w *zerolog.ConsoleWriter) {
				w.TimeFormat = time.DateTime
				w.Out = out
			})
		}
		l.log = l.log.Output(out)
	}
}

func isTerminal(w io.Writer) bool {
	if f, ok := w.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		return true
	}
	return false
}

type Option func(*Logger)

type Logger struct {
	log zerolog.Logger
}

// WithFields returns a logger that attaches the given key-value pairs to every message.
func (l *Logger) WithFields(fields ...any) *Logger {
	return &Logger{l.log.With().Fields(fields).Logger()}
}

func (l *Logger) Fatal(msg string, err error) {
	l.logEntry(LevelFatal, msg, err)
	os.Exit(1)
}

func (l *Logger) Error(msg string, err error) {
	l.logEntry(LevelError, msg, err)
}

func (l *Logger) Info(msg string, fields ...any) {
	l.log.WithLevel(makeZerologLevel(LevelInfo)).
		Fields(fields).
		Msg(msg)
}

func (l *Logger) logEntry(level Level, msg string, err error) {
	entry := l.log.WithLevel(makeZerologLevel(level))
	if err != nil {
		entry = entry.Err(err)
	}
	entry.Msg(msg)
}
