// Package logging builds the slog handler chorum logs through.
package logging

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/fahedouch/go-logrotate"

	"github.com/nozmo-king/chorum/lib/policy/config"
)

func Init(level string) slog.Handler {
	return NewHandler(os.Stderr, ParseLevel(level))
}

// ParseLevel falls back to info when level can't be parsed.
func ParseLevel(level string) slog.Level {
	var programLevel slog.Level
	if err := (&programLevel).UnmarshalText([]byte(level)); err != nil {
		fmt.Fprintf(os.Stderr, "invalid log level %s: %v, using info\n", level, err)
		programLevel = slog.LevelInfo
	}
	return programLevel
}

func NewHandler(w io.Writer, level slog.Level) slog.Handler {
	leveler := &slog.LevelVar{}
	leveler.Set(level)

	return slog.NewJSONHandler(w, &slog.HandlerOptions{
		AddSource: true,
		Level:     leveler,
	})
}

// Setup builds the handler described by a policy logging block. A level
// set in the block wins over level. The returned closer releases the sink.
func Setup(cfg *config.Logging, level string, filters ...Filterer) (slog.Handler, io.Closer, error) {
	if cfg == nil {
		cfg = (config.Logging{}).Default()
	}

	lvl := ParseLevel(level)
	if cfg.Level != nil {
		lvl = *cfg.Level
	}

	var (
		out    io.Writer = os.Stderr
		closer io.Closer = nopCloser{}
	)

	switch cfg.Sink {
	case "", config.LogSinkStdio:
	case config.LogSinkFile:
		if cfg.Parameters == nil {
			return nil, nil, config.ErrMissingLoggingFileConfig
		}

		lr := &logrotate.Logger{
			Filename:           cfg.Parameters.Filename,
			FilenameTimeFormat: time.RFC3339,
			MaxBytes:           cfg.Parameters.MaxBytes,
			MaxAge:             cfg.Parameters.MaxAge,
			MaxBackups:         cfg.Parameters.MaxBackups,
			LocalTime:          cfg.Parameters.UseLocalTime,
			Compress:           cfg.Parameters.Compress,
		}
		out, closer = lr, lr
	default:
		return nil, nil, fmt.Errorf("%w: %s", config.ErrInvalidLoggingSink, cfg.Sink)
	}

	var h slog.Handler = NewHandler(out, lvl)
	if len(filters) != 0 {
		h = NewFilterHandler(h, filters...)
	}

	return h, closer, nil
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }
