package config

import (
	"errors"
	"fmt"

	"github.com/nozmo-king/chorum/lib/pow"
)

var ErrDuplicateTier = errors.New("config.Difficulty: duplicate tier name")

// Difficulty picks the prefix a new challenge must be solved against.
// Tiers are tried in order and the first matching one wins.
type Difficulty struct {
	DefaultPrefix string           `json:"defaultPrefix,omitempty"`
	Tiers         []DifficultyTier `json:"tiers,omitempty"`
}

func (d *Difficulty) Valid() error {
	var errs []error

	if d.DefaultPrefix != "" {
		if err := pow.ValidPrefix(d.DefaultPrefix); err != nil {
			errs = append(errs, fmt.Errorf("default prefix: %w", err))
		}
	}

	seen := map[string]struct{}{}
	for _, t := range d.Tiers {
		if err := t.Valid(); err != nil {
			errs = append(errs, err)
		}

		if _, ok := seen[t.Name]; ok {
			errs = append(errs, fmt.Errorf("%w: %q", ErrDuplicateTier, t.Name))
		}
		seen[t.Name] = struct{}{}
	}

	if len(errs) != 0 {
		return fmt.Errorf("difficulty is not valid:\n%w", errors.Join(errs...))
	}

	return nil
}

type DifficultyTier struct {
	Name       string            `json:"name"`
	Expression *ExpressionOrList `json:"expression"`
	Prefix     string            `json:"prefix"`
}

func (t DifficultyTier) Valid() error {
	var errs []error

	if t.Name == "" {
		errs = append(errs, fmt.Errorf("%w: tier has no name", ErrMissingValue))
	}

	if t.Expression == nil {
		errs = append(errs, fmt.Errorf("%w: tier has no expression", ErrMissingValue))
	} else if err := t.Expression.Valid(); err != nil {
		errs = append(errs, err)
	}

	if err := pow.ValidPrefix(t.Prefix); err != nil {
		errs = append(errs, err)
	}

	if len(errs) != 0 {
		return fmt.Errorf("tier %q is not valid: %w", t.Name, errors.Join(errs...))
	}

	return nil
}
