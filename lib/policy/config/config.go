// Package config holds the on-disk shape of a chorum policy file and the
// validation for every block in it.
package config

import (
	"errors"
	"fmt"
	"io"

	"sigs.k8s.io/yaml"
)

var ErrMissingValue = errors.New("config: missing value")

// Config is the policy file. Every block is optional.
type Config struct {
	Difficulty *Difficulty `json:"difficulty,omitempty"`
	Store      *Store      `json:"store,omitempty"`
	Logging    *Logging    `json:"logging,omitempty"`
}

func (c *Config) Valid() error {
	var errs []error

	if c.Difficulty != nil {
		if err := c.Difficulty.Valid(); err != nil {
			errs = append(errs, err)
		}
	}

	if c.Store != nil {
		if err := c.Store.Valid(); err != nil {
			errs = append(errs, err)
		}
	}

	if c.Logging != nil {
		if err := c.Logging.Valid(); err != nil {
			errs = append(errs, err)
		}
	}

	if len(errs) != 0 {
		return errors.Join(errs...)
	}

	return nil
}

// Load reads a YAML or JSON policy from fin. fname is only used in errors.
// Missing blocks are filled with their defaults.
func Load(fin io.Reader, fname string) (*Config, error) {
	data, err := io.ReadAll(fin)
	if err != nil {
		return nil, fmt.Errorf("can't read policy file %s: %w", fname, err)
	}

	var result Config
	if err := yaml.Unmarshal(data, &result); err != nil {
		return nil, fmt.Errorf("can't parse policy config YAML %s: %w", fname, err)
	}

	if err := result.Valid(); err != nil {
		return nil, fmt.Errorf("policy config %s is not valid:\n%w", fname, err)
	}

	if result.Difficulty == nil {
		result.Difficulty = &Difficulty{}
	}

	if result.Logging == nil {
		result.Logging = (Logging{}).Default()
	}

	return &result, nil
}
