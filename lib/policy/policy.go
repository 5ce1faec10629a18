// Package policy turns a policy file into the live pieces chorum runs with:
// the difficulty strategy, the store backend and the logging setup.
package policy

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/nozmo-king/chorum/lib/pow"
	"github.com/nozmo-king/chorum/lib/policy/config"
	"github.com/nozmo-king/chorum/lib/policy/expressions"
	"github.com/nozmo-king/chorum/lib/store"
)

var ErrMisconfiguration = errors.New("[unexpected] policy: administrator misconfiguration")

type ParsedConfig struct {
	orig *config.Config

	Difficulty *TieredDifficulty
	Store      *config.Store
	Logging    *config.Logging
	LogFilters []*expressions.Filter
}

func NewParsedConfig(orig *config.Config) *ParsedConfig {
	return &ParsedConfig{
		orig:    orig,
		Store:   orig.Store,
		Logging: orig.Logging,
	}
}

// ParseConfig loads a policy file and compiles every expression in it.
// defaultPrefix is used unless the file sets its own.
func ParseConfig(ctx context.Context, fin io.Reader, fname string, defaultPrefix string) (*ParsedConfig, error) {
	c, err := config.Load(fin, fname)
	if err != nil {
		return nil, err
	}

	var validationErrs []error

	result := NewParsedConfig(c)

	prefix := defaultPrefix
	if c.Difficulty.DefaultPrefix != "" {
		prefix = c.Difficulty.DefaultPrefix
	}

	if err := pow.ValidPrefix(prefix); err != nil {
		validationErrs = append(validationErrs, fmt.Errorf("%w: default prefix: %w", ErrMisconfiguration, err))
	}

	result.Difficulty = &TieredDifficulty{Default: prefix}

	for _, t := range c.Difficulty.Tiers {
		parsed, err := ParsedTierFromConfig(t)
		if err != nil {
			validationErrs = append(validationErrs, err)
			continue
		}

		result.Difficulty.Tiers = append(result.Difficulty.Tiers, parsed)
	}

	for _, lf := range c.Logging.Filters {
		filter, err := expressions.NewFilter(slog.Default(), lf.Name, lf.Expression.String())
		if err != nil {
			validationErrs = append(validationErrs, fmt.Errorf("while processing log filter %s: %w", lf.Name, err))
			continue
		}

		result.LogFilters = append(result.LogFilters, filter)
	}

	if len(validationErrs) > 0 {
		return nil, fmt.Errorf("errors validating policy config %s: %w", fname, errors.Join(validationErrs...))
	}

	return result, nil
}

// OpenStore builds the configured store backend. When the policy has no
// store block, fallback is returned as is.
func (pc *ParsedConfig) OpenStore(ctx context.Context, fallback store.Interface) (store.Interface, error) {
	if pc.Store == nil {
		if fallback == nil {
			return nil, fmt.Errorf("%w: no store configured", ErrMisconfiguration)
		}
		return fallback, nil
	}

	fac, ok := store.Get(pc.Store.Backend)
	if !ok {
		return nil, fmt.Errorf("%w: %q", config.ErrUnknownStoreBackend, pc.Store.Backend)
	}

	result, err := fac.Build(ctx, pc.Store.Parameters)
	if err != nil {
		return nil, fmt.Errorf("can't build %s store: %w", pc.Store.Backend, err)
	}

	return result, nil
}
