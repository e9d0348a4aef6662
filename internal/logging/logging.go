// logging.go - zerolog setup: console, optional log file, and a separate audit log.
package logging

import (
	"io"
	"os"
	"time"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/rs/zerolog/pkgerrors"

	"axiompay/internal/config"
)

// Logger owns the files opened by Setup.
type Logger struct {
	files []*os.File
	audit zerolog.Logger
}

// Setup installs the global zerolog logger according to cfg and returns a
// handle for the audit log. Close releases the files.
func Setup(cfg config.LogConfig, console io.Writer) (*Logger, error) {
	level, err := zerolog.ParseLevel(cfg.Level)
	if err != nil {
		return nil, errors.Wrapf(err, "parse log level %q", cfg.Level)
	}
	zerolog.ErrorStackMarshaler = pkgerrors.MarshalStack
	zerolog.TimeFieldFormat = time.RFC3339

	l := &Logger{audit: zerolog.Nop()}
	writers := []io.Writer{zerolog.ConsoleWriter{Out: console, TimeFormat: time.DateTime}}
	if cfg.File != "" {
		f, err := openAppend(cfg.File)
		if err != nil {
			l.Close()
			return nil, errors.Wrap(err, "open log file")
		}
		l.files = append(l.files, f)
		writers = append(writers, f)
	}
	if cfg.AuditFile != "" {
		f, err := openAppend(cfg.AuditFile)
		if err != nil {
			l.Close()
			return nil, errors.Wrap(err, "open audit file")
		}
		l.files = append(l.files, f)
		l.audit = zerolog.New(f).With().Timestamp().Str("log", "audit").Logger()
	}

	log.Logger = zerolog.New(zerolog.MultiLevelWriter(writers...)).
		Level(level).
		With().Timestamp().Logger()
	return l, nil
}

func openAppend(path string) (*os.File, error) {
	return os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o600)
}

// Audit records a security-relevant event: key generation, submissions and audits.
func (l *Logger) Audit(event string) *zerolog.Event {
	return l.audit.Log().Str("event", event)
}

// Close closes the log files.
func (l *Logger) Close() error {
	var first error
	for _, f := range l.files {
		if err := f.Close(); err != nil && first == nil {
			first = err
		}
	}
	l.files = nil
	return first
}
