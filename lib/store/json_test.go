package store_test

import (
	"errors"
	"testing"
	"time"

	"github.com/nozmo-king/chorum/lib/store"
)

type testValue struct {
	Name  string `json:"name"`
	Count int    `json:"count"`
}

func TestJSON(t *testing.T) {
	underlying := store.NewMemoryStore(t.Context())
	s := &store.JSON[testValue]{
		Underlying: underlying,
		Prefix:     "test",
	}

	if _, err := s.Get(t.Context(), "a"); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("wanted ErrNotFound, got: %v", err)
	}

	want := testValue{Name: "a", Count: 3}
	if err := s.Set(t.Context(), "a", want, time.Minute); err != nil {
		t.Fatal(err)
	}

	got, err := s.Get(t.Context(), "a")
	if err != nil {
		t.Fatal(err)
	}
	if got != want {
		t.Errorf("wanted %+v, got %+v", want, got)
	}

	if _, err := underlying.Get(t.Context(), "test:a"); err != nil {
		t.Errorf("value not stored under prefixed key: %v", err)
	}

	if err := s.Add(t.Context(), "a", testValue{Name: "b"}, time.Minute); !errors.Is(err, store.ErrExists) {
		t.Errorf("wanted ErrExists, got: %v", err)
	}

	if err := s.Delete(t.Context(), "a"); err != nil {
		t.Fatal(err)
	}

	if err := underlying.Set(t.Context(), "test:garbage", []byte("{"), time.Minute); err != nil {
		t.Fatal(err)
	}
	if _, err := s.Get(t.Context(), "garbage"); err == nil || errors.Is(err, store.ErrNotFound) {
		t.Errorf("wanted a decode error, got: %v", err)
	}
}
