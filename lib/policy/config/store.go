package config

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/nozmo-king/chorum/lib/store"
	_ "github.com/nozmo-king/chorum/lib/store/all"
)

var (
	ErrNoStoreBackend      = errors.New("config.Store: no backend is defined")
	ErrUnknownStoreBackend = errors.New("config.Store: unknown backend")
)

// Store selects where challenges, claims, op receipts and commits live.
// Leaving the block out keeps them in the board database.
type Store struct {
	Backend    string          `json:"backend"`
	Parameters json.RawMessage `json:"parameters,omitempty"`
}

func (s *Store) Valid() error {
	var errs []error

	if len(s.Backend) == 0 {
		errs = append(errs, ErrNoStoreBackend)
	}

	fac, ok := store.Get(s.Backend)
	switch ok {
	case true:
		if err := fac.Valid(s.Parameters); err != nil {
			errs = append(errs, err)
		}
	case false:
		if s.Backend != "" {
			errs = append(errs, fmt.Errorf("%w: %q, known backends: %v", ErrUnknownStoreBackend, s.Backend, store.Methods()))
		}
	}

	if len(errs) != 0 {
		return fmt.Errorf("store is not valid:\n%w", errors.Join(errs...))
	}

	return nil
}
