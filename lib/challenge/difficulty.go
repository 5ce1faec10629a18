package challenge

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/nozmo-king/chorum/lib/pow"
	"github.com/shirou/gopsutil/v4/load"
)

// Load holds the system load averages.
type Load struct {
	Load1  float64
	Load5  float64
	Load15 float64
}

// LoadFunc reports the current system load.
type LoadFunc func(ctx context.Context) (Load, error)

// SystemLoad reads the host load averages.
func SystemLoad(ctx context.Context) (Load, error) {
	avg, err := load.AvgWithContext(ctx)
	if err != nil {
		return Load{}, fmt.Errorf("challenge: can't read load average: %w", err)
	}

	return Load{
		Load1:  avg.Load1,
		Load5:  avg.Load5,
		Load15: avg.Load15,
	}, nil
}

// DifficultyInput is what a DifficultyStrategy may base its prefix on.
type DifficultyInput struct {
	Load

	Scope  pow.Scope
	Recent int // challenges issued in the last minute
}

// DifficultyStrategy picks the required prefix for a new challenge.
type DifficultyStrategy interface {
	Prefix(ctx context.Context, in DifficultyInput) (string, error)
}

// StaticDifficulty always requires the same prefix.
type StaticDifficulty string

func (s StaticDifficulty) Prefix(context.Context, DifficultyInput) (string, error) {
	return string(s), nil
}

// window counts events in the current and previous minute. Count weights
// the previous minute by how much of it still overlaps the last 60 seconds.
type window struct {
	lock     sync.Mutex
	start    time.Time
	current  int
	previous int
}

func (w *window) roll(now time.Time) {
	switch elapsed := now.Sub(w.start); {
	case w.start.IsZero() || elapsed >= 2*time.Minute:
		w.start = now.Truncate(time.Minute)
		w.previous, w.current = 0, 0
	case elapsed >= time.Minute:
		w.start = w.start.Add(time.Minute)
		w.previous, w.current = w.current, 0
	}
}

func (w *window) Add(now time.Time) {
	w.lock.Lock()
	defer w.lock.Unlock()
	w.roll(now)
	w.current++
}

func (w *window) Count(now time.Time) int {
	w.lock.Lock()
	defer w.lock.Unlock()
	w.roll(now)

	overlap := 1 - float64(now.Sub(w.start))/float64(time.Minute)
	return w.current + int(float64(w.previous)*overlap)
}
