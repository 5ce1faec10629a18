package logging

import (
	"bytes"
	"context"
	"log"
	"log/slog"
	"time"
)

// lineWriter turns each line written by a *log.Logger into one slog record.
// A leading "subsystem: " tag, as net/http writes them, becomes an attr.
type lineWriter struct {
	h     slog.Handler
	level slog.Level
}

func (w *lineWriter) Write(buf []byte) (int, error) {
	ctx := context.Background()
	if !w.h.Enabled(ctx, w.level) {
		return len(buf), nil
	}

	for line := range bytes.SplitSeq(buf, []byte{'\n'}) {
		if len(bytes.TrimSpace(line)) == 0 {
			continue
		}

		r := slog.NewRecord(time.Now(), w.level, "", 0)

		if sub, msg, ok := bytes.Cut(line, []byte(": ")); ok && isTag(sub) {
			r.Message = string(msg)
			r.AddAttrs(slog.String("subsystem", string(sub)))
		} else {
			r.Message = string(line)
		}

		if err := w.h.Handle(ctx, r); err != nil {
			return 0, err
		}
	}

	return len(buf), nil
}

func isTag(b []byte) bool {
	if len(b) == 0 || len(b) > 16 {
		return false
	}
	for _, c := range b {
		if c < 'a' || c > 'z' {
			return false
		}
	}
	return true
}

// StdlibLogger bridges a *log.Logger, such as http.Server.ErrorLog, into
// next at level. Timestamps come from slog, so the logger has no flags.
func StdlibLogger(next slog.Handler, level slog.Level) *log.Logger {
	return log.New(&lineWriter{h: next, level: level}, "", 0)
}
