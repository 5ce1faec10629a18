package pow

import (
	"fmt"
	"testing"
)

func TestScore(t *testing.T) {
	for _, cs := range []struct {
		digest string
		want   float64
	}{
		{"", 0},
		{"pending", 0},
		{"abcd", 0},
		{"0000", 8},
		{"21e8", 15},
		{"21e8ff", 15},
		{"21e80", 30},
		{"21e800", 55},
		{"0021e8ab", 4 + 25},
		{"00021e8ab", 6 + 40},
		{"000021e8ab", 8 + 60},
	} {
		t.Run(cs.digest, func(t *testing.T) {
			if got := Score(cs.digest); got != cs.want {
				t.Errorf("Score(%q) = %v, want %v", cs.digest, got, cs.want)
			}
		})
	}
}

func TestScoreMonotonic(t *testing.T) {
	if !(Score("21e800") > Score("21e8") && Score("21e8") > Score("0000") && Score("0000") > Score("") && Score("") == 0) {
		t.Errorf("scores not monotonic: %v %v %v %v", Score("21e800"), Score("21e8"), Score("0000"), Score(""))
	}
}

func TestExtension(t *testing.T) {
	for _, cs := range []struct {
		digest string
		ok     bool
		n      int
	}{
		{"21e8abc", true, 0},
		{"21e800a", true, 2},
		{"21e8000000000", true, 9},
		{"0021e8", false, 0},
		{"", false, 0},
	} {
		t.Run(cs.digest, func(t *testing.T) {
			ok, n := Extension(cs.digest)
			if ok != cs.ok || n != cs.n {
				t.Errorf("Extension(%q) = %v, %d; want %v, %d", cs.digest, ok, n, cs.ok, cs.n)
			}
		})
	}
}

func TestAchievementFor(t *testing.T) {
	names := []string{
		"Diamond Miner",
		"Crystal Gazer",
		"Digital Pioneer",
		"World Shaper",
		"Emerald Architect",
		"Shadow Master",
		"Void Walker",
		"Void Walker",
		"Void Walker",
	}

	prev := -1
	for n, want := range names {
		t.Run(fmt.Sprint(n), func(t *testing.T) {
			got := AchievementFor(n)
			if got.Name != want {
				t.Errorf("AchievementFor(%d) = %q, want %q", n, got.Name, want)
			}
			if got.Tier < prev {
				t.Errorf("AchievementFor(%d) tier %d went backwards from %d", n, got.Tier, prev)
			}
			prev = got.Tier
		})
	}
}

func TestAchievementOf(t *testing.T) {
	if _, ok := AchievementOf("0000abcd"); ok {
		t.Error("digest without marker unlocked an achievement")
	}

	a, ok := AchievementOf("21e8000fff")
	if !ok {
		t.Fatal("marker digest unlocked nothing")
	}
	if a.Name != "World Shaper" || a.Emoji != "🌎" {
		t.Errorf("got %+v", a)
	}
}
