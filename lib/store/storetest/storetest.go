// Package storetest is a conformance suite every store backend runs.
package storetest

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/nozmo-king/chorum/lib/store"
)

func Common(t *testing.T, f store.Factory, config json.RawMessage) {
	if err := f.Valid(config); err != nil {
		t.Fatal(err)
	}

	s, err := f.Build(t.Context(), config)
	if err != nil {
		t.Fatal(err)
	}

	for _, tt := range []struct {
		name string
		doer func(t *testing.T, s store.Interface) error
		err  error
	}{
		{
			name: "basic get set delete",
			doer: func(t *testing.T, s store.Interface) error {
				if _, err := s.Get(t.Context(), t.Name()); !errors.Is(err, store.ErrNotFound) {
					t.Errorf("wanted %s to not exist in store but it exists anyways", t.Name())
				}

				if err := s.Set(t.Context(), t.Name(), []byte(t.Name()), 5*time.Minute); err != nil {
					return err
				}

				val, err := s.Get(t.Context(), t.Name())
				if errors.Is(err, store.ErrNotFound) {
					t.Errorf("wanted %s to exist in store but it does not", t.Name())
				} else if err != nil {
					t.Error(err)
				}

				if !bytes.Equal(val, []byte(t.Name())) {
					t.Logf("want: %q", t.Name())
					t.Logf("got:  %q", string(val))
					t.Error("wrong value returned")
				}

				if err := s.Delete(t.Context(), t.Name()); err != nil {
					t.Error(err)
				}

				if _, err := s.Get(t.Context(), t.Name()); !errors.Is(err, store.ErrNotFound) {
					t.Errorf("wanted %s to not exist in store but it exists anyways", t.Name())
				}

				if err := s.Delete(t.Context(), t.Name()); !errors.Is(err, store.ErrNotFound) {
					t.Errorf("wanted deleting a missing key to report ErrNotFound, got: %v", err)
				}

				return nil
			},
		},
		{
			name: "set overwrites",
			doer: func(t *testing.T, s store.Interface) error {
				if err := s.Set(t.Context(), t.Name(), []byte("first"), 5*time.Minute); err != nil {
					return err
				}
				if err := s.Set(t.Context(), t.Name(), []byte("second"), 5*time.Minute); err != nil {
					return err
				}

				val, err := s.Get(t.Context(), t.Name())
				if err != nil {
					return err
				}
				if string(val) != "second" {
					t.Errorf("wanted second write to win, got %q", string(val))
				}
				return nil
			},
		},
		{
			name: "expires",
			doer: func(t *testing.T, s store.Interface) error {
				if err := s.Set(t.Context(), t.Name(), []byte(t.Name()), 150*time.Millisecond); err != nil {
					return err
				}

				time.Sleep(1100 * time.Millisecond)

				if _, err := s.Get(t.Context(), t.Name()); !errors.Is(err, store.ErrNotFound) {
					t.Errorf("wanted %s to not exist in store but it exists anyways", t.Name())
				}

				return nil
			},
		},
		{
			name: "zero expiry keeps values",
			doer: func(t *testing.T, s store.Interface) error {
				if err := s.Set(t.Context(), t.Name(), []byte(t.Name()), 0); err != nil {
					return err
				}

				time.Sleep(50 * time.Millisecond)

				if _, err := s.Get(t.Context(), t.Name()); err != nil {
					t.Errorf("wanted %s to exist in store: %v", t.Name(), err)
				}

				return s.Delete(t.Context(), t.Name())
			},
		},
		{
			name: "add first writer wins",
			doer: func(t *testing.T, s store.Interface) error {
				if err := s.Add(t.Context(), t.Name(), []byte("first"), 5*time.Minute); err != nil {
					return err
				}

				if err := s.Add(t.Context(), t.Name(), []byte("second"), 5*time.Minute); !errors.Is(err, store.ErrExists) {
					t.Errorf("wanted second add to fail with ErrExists, got: %v", err)
				}

				val, err := s.Get(t.Context(), t.Name())
				if err != nil {
					return err
				}
				if string(val) != "first" {
					t.Errorf("wanted first value to survive, got %q", string(val))
				}

				return nil
			},
		},
		{
			name: "add over expired value",
			doer: func(t *testing.T, s store.Interface) error {
				if err := s.Set(t.Context(), t.Name(), []byte("stale"), 150*time.Millisecond); err != nil {
					return err
				}

				time.Sleep(1100 * time.Millisecond)

				if err := s.Add(t.Context(), t.Name(), []byte("fresh"), 5*time.Minute); err != nil {
					t.Errorf("wanted add over an expired value to succeed, got: %v", err)
				}

				val, err := s.Get(t.Context(), t.Name())
				if err != nil {
					return err
				}
				if string(val) != "fresh" {
					t.Errorf("wanted fresh, got %q", string(val))
				}
				return nil
			},
		},
		{
			name: "add after delete",
			doer: func(t *testing.T, s store.Interface) error {
				if err := s.Add(t.Context(), t.Name(), []byte("one"), 5*time.Minute); err != nil {
					return err
				}
				if err := s.Delete(t.Context(), t.Name()); err != nil {
					return err
				}
				return s.Add(t.Context(), t.Name(), []byte("two"), 5*time.Minute)
			},
		},
		{
			name: "concurrent add has one winner",
			doer: func(t *testing.T, s store.Interface) error {
				const racers = 16
				var (
					wg      sync.WaitGroup
					winners atomic.Int32
					errs    = make(chan error, racers)
				)

				for i := range racers {
					wg.Add(1)
					go func() {
						defer wg.Done()
						err := s.Add(t.Context(), t.Name(), fmt.Appendf(nil, "racer-%d", i), 5*time.Minute)
						switch {
						case err == nil:
							winners.Add(1)
						case errors.Is(err, store.ErrExists):
						default:
							errs <- err
						}
					}()
				}

				wg.Wait()
				close(errs)

				for err := range errs {
					return err
				}

				if got := winners.Load(); got != 1 {
					t.Errorf("wanted exactly one add to win, got %d", got)
				}
				return nil
			},
		},
	} {
		t.Run(tt.name, func(t *testing.T) {
			if err := tt.doer(t, s); !errors.Is(err, tt.err) {
				t.Logf("want: %v", tt.err)
				t.Logf("got:  %v", err)
				t.Error("wrong error")
			}
		})
	}
}
