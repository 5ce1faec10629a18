package config_test

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/nozmo-king/chorum/lib/policy/config"
	"github.com/nozmo-king/chorum/lib/store"
	"github.com/nozmo-king/chorum/lib/store/bbolt"
	"github.com/nozmo-king/chorum/lib/store/sqlite"
)

func TestStoreValid(t *testing.T) {
	dir := t.TempDir()

	for _, tt := range []struct {
		name  string
		input config.Store
		err   error
	}{
		{
			name:  "no backend",
			input: config.Store{},
			err:   config.ErrNoStoreBackend,
		},
		{
			name: "in-memory backend",
			input: config.Store{
				Backend: "memory",
			},
		},
		{
			name: "bbolt backend",
			input: config.Store{
				Backend:    "bbolt",
				Parameters: json.RawMessage(`{"path": "` + dir + `/chorum.bdb", "bucket": "bar"}`),
			},
		},
		{
			name: "bbolt backend no path",
			input: config.Store{
				Backend:    "bbolt",
				Parameters: json.RawMessage(`{"path": "", "bucket": "bar"}`),
			},
			err: bbolt.ErrMissingPath,
		},
		{
			name: "sqlite backend",
			input: config.Store{
				Backend:    "sqlite",
				Parameters: json.RawMessage(`{"path": "` + dir + `/kv.db"}`),
			},
		},
		{
			name: "sqlite backend no path",
			input: config.Store{
				Backend:    "sqlite",
				Parameters: json.RawMessage(`{}`),
			},
			err: sqlite.ErrMissingPath,
		},
		{
			name: "valkey backend garbage parameters",
			input: config.Store{
				Backend:    "valkey",
				Parameters: json.RawMessage(`[]`),
			},
			err: store.ErrBadConfig,
		},
		{
			name: "unknown backend",
			input: config.Store{
				Backend: "taco salad",
			},
			err: config.ErrUnknownStoreBackend,
		},
	} {
		t.Run(tt.name, func(t *testing.T) {
			if err := tt.input.Valid(); !errors.Is(err, tt.err) {
				t.Logf("want: %v", tt.err)
				t.Logf("got:  %v", err)
				t.Error("invalid error returned")
			}
		})
	}
}
