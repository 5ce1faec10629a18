package config

import (
	"errors"
	"fmt"
	"log/slog"
)

var (
	ErrMissingLoggingFileConfig = errors.New("config.Logging: missing value parameters in logging block")
	ErrInvalidLoggingSink       = errors.New("config.Logging: invalid sink")
	ErrInvalidLoggingFileConfig = errors.New("config.LoggingFileConfig: invalid parameters")
	ErrOutOfRange               = errors.New("config: error out of range")
)

type Logging struct {
	Sink       string             `json:"sink"`              // Logging sink, either "stdio" or "file"
	Level      *slog.Level        `json:"level,omitempty"`   // Log level, if set supercedes the level in flags
	Parameters *LoggingFileConfig `json:"parameters,omitempty"`
	Filters    []LogFilter        `json:"filters,omitempty"` // Records matching any filter are dropped
}

const (
	LogSinkStdio = "stdio"
	LogSinkFile  = "file"
)

func (l *Logging) Valid() error {
	var errs []error

	switch l.Sink {
	case "", LogSinkStdio:
		// no validation needed
	case LogSinkFile:
		if l.Parameters == nil {
			errs = append(errs, ErrMissingLoggingFileConfig)
		} else if err := l.Parameters.Valid(); err != nil {
			errs = append(errs, err)
		}
	default:
		errs = append(errs, fmt.Errorf("%w: sink %s is unknown to me", ErrInvalidLoggingSink, l.Sink))
	}

	for _, lf := range l.Filters {
		if err := lf.Valid(); err != nil {
			errs = append(errs, err)
		}
	}

	if len(errs) != 0 {
		return errors.Join(errs...)
	}

	return nil
}

func (Logging) Default() *Logging {
	return &Logging{
		Sink: LogSinkStdio,
	}
}

type LoggingFileConfig struct {
	Filename     string `json:"file"`
	MaxBackups   int    `json:"maxBackups"`
	MaxBytes     int64  `json:"maxBytes"`
	MaxAge       int    `json:"maxAge"`
	Compress     bool   `json:"compress"`
	UseLocalTime bool   `json:"useLocalTime"`
}

func (lfc *LoggingFileConfig) Valid() error {
	var errs []error

	if lfc.Zero() {
		errs = append(errs, ErrMissingValue)
	}

	if lfc.Filename == "" {
		errs = append(errs, fmt.Errorf("%w: filename", ErrMissingValue))
	}

	if lfc.MaxBackups < 0 {
		errs = append(errs, fmt.Errorf("%w: max backup count %d is not greater than or equal to zero", ErrOutOfRange, lfc.MaxBackups))
	}

	if lfc.MaxAge < 0 {
		errs = append(errs, fmt.Errorf("%w: max age %d is not greater than or equal to zero", ErrOutOfRange, lfc.MaxAge))
	}

	if lfc.MaxBytes < 0 {
		errs = append(errs, fmt.Errorf("%w: max bytes %d is not greater than or equal to zero", ErrOutOfRange, lfc.MaxBytes))
	}

	if len(errs) != 0 {
		errs = append([]error{ErrInvalidLoggingFileConfig}, errs...)
		return errors.Join(errs...)
	}

	return nil
}

func (lfc LoggingFileConfig) Zero() bool {
	for _, cond := range []bool{
		lfc.Filename != "",
		lfc.MaxBackups != 0,
		lfc.MaxBytes != 0,
		lfc.MaxAge != 0,
		lfc.Compress,
		lfc.UseLocalTime,
	} {
		if cond {
			return false
		}
	}

	return true
}

func (LoggingFileConfig) Default() *LoggingFileConfig {
	return &LoggingFileConfig{
		Filename:     "./var/chorum.log",
		MaxBackups:   3,
		MaxBytes:     104857600, // 100 Mi
		MaxAge:       7,         // 7 days
		Compress:     true,
		UseLocalTime: false,
	}
}

// LogFilter drops every log record its expression matches.
type LogFilter struct {
	Name       string           `json:"name"`
	Expression ExpressionOrList `json:"expression"`
}

func (lf LogFilter) Valid() error {
	var errs []error

	if lf.Name == "" {
		errs = append(errs, fmt.Errorf("%w: log filter has no name", ErrMissingValue))
	}

	if err := lf.Expression.Valid(); err != nil {
		errs = append(errs, err)
	}

	if len(errs) != 0 {
		return fmt.Errorf("log filter %q is not valid: %w", lf.Name, errors.Join(errs...))
	}

	return nil
}
