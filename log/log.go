// Package log provides a unified logging interface for the application,
// backed by logrus. Loggers can be embedded in and extracted from a
// context.Context, so that request- or command-scoped fields propagate
// through call chains without threading a logger explicitly.
package log

import (
	"context"
	"errors"

	"github.com/sirupsen/logrus"
)

// Fields is a map of log fields.
type Fields map[string]interface{}

// Logger is the interface implemented by loggers returned from this package.
type Logger interface {
	WithField(key string, value interface{}) Logger
	WithFields(fields Fields) Logger
	WithError(err error) Logger

	Trace(args ...interface{})
	Debug(args ...interface{})
	Info(args ...interface{})
	Warn(args ...interface{})
	Error(args ...interface{})
	Fatal(args ...interface{})

	Tracef(format string, args ...interface{})
	Debugf(format string, args ...interface{})
	Infof(format string, args ...interface{})
	Warnf(format string, args ...interface{})
	Errorf(format string, args ...interface{})
	Fatalf(format string, args ...interface{})
}

type contextKey struct{}

// loggerKey is the context key under which loggers are stored.
var loggerKey = contextKey{}

type logrusLogger struct {
	*logrus.Entry
}

func (l *logrusLogger) WithField(key string, value interface{}) Logger {
	return &logrusLogger{l.Entry.WithField(key, value)}
}

func (l *logrusLogger) WithFields(fields Fields) Logger {
	return &logrusLogger{l.Entry.WithFields(logrus.Fields(fields))}
}

func (l *logrusLogger) WithError(err error) Logger {
	return &logrusLogger{l.Entry.WithError(err)}
}

type options struct {
	ctx context.Context
}

// LoggerOption is used to pass options to GetLogger.
type LoggerOption func(*options)

// WithContext sets the context from which a previously set logger (see
// SetLogger) should be extracted.
func WithContext(ctx context.Context) LoggerOption {
	return func(opts *options) {
		opts.ctx = ctx
	}
}

// GetLogger returns the logger stored in the context given through
// WithContext, falling back to the default logger when no context was given
// or no logger was found in it.
func GetLogger(opts ...LoggerOption) Logger {
	config := &options{}
	for _, opt := range opts {
		opt(config)
	}

	if config.ctx != nil {
		if l, ok := config.ctx.Value(loggerKey).(Logger); ok {
			return l
		}
	}

	return &logrusLogger{logrus.NewEntry(logrus.StandardLogger())}
}

// SetLogger returns a context with the given logger stored in it.
func SetLogger(ctx context.Context, l Logger) context.Context {
	return context.WithValue(ctx, loggerKey, l)
}

// ToLogrusEntry converts a Logger into a *logrus.Entry. Returns an error if
// the logger is not backed by logrus.
func ToLogrusEntry(l Logger) (*logrus.Entry, error) {
	ll, ok := l.(*logrusLogger)
	if !ok {
		return nil, errors.New("logger is not a logrus logger")
	}
	return ll.Entry, nil
}
