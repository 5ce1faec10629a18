package pow

import "strings"

// Marker is the vanity prefix rewarded by Score.
const Marker = "21e8"

// Flat bonuses for zeros in front of the marker. They stack.
var leadingMarkerBonuses = []struct {
	prefix string
	bonus  float64
}{
	{"0021e8", 25},
	{"00021e8", 40},
	{"000021e8", 60},
}

const markerBonus = 15

// Extension reports whether digest starts with the marker and how many '0'
// characters immediately follow it.
func Extension(digest string) (bool, int) {
	if !strings.HasPrefix(digest, Marker) {
		return false, 0
	}

	return true, countLeading(digest[len(Marker):], '0')
}

// Score ranks a proof digest. It only feeds ranking and display.
func Score(digest string) float64 {
	if digest == "" || digest == "pending" {
		return 0
	}

	score := float64(countLeading(digest, '0')) * 2

	if ok, n := Extension(digest); ok {
		ext := float64(n)
		score += markerBonus + ext*10 + ext*ext*5
	}

	for _, lb := range leadingMarkerBonuses {
		if strings.HasPrefix(digest, lb.prefix) {
			score += lb.bonus
		}
	}

	return score
}

func countLeading(s string, ch byte) int {
	n := 0
	for n < len(s) && s[n] == ch {
		n++
	}
	return n
}

// Achievement is the display tier unlocked by a marker extension.
type Achievement struct {
	Tier  int    `json:"tier"`
	Name  string `json:"name"`
	Emoji string `json:"emoji"`
}

var achievements = [...]Achievement{
	{0, "Diamond Miner", "💎"},
	{1, "Crystal Gazer", "🔮"},
	{2, "Digital Pioneer", "📀"},
	{3, "World Shaper", "🌎"},
	{4, "Emerald Architect", "🟢"},
	{5, "Shadow Master", "🎱"},
	{6, "Void Walker", "🕳️"},
}

// AchievementFor maps an extension length to its tier. Every length of six
// or more lands in the last tier.
func AchievementFor(extensionLen int) Achievement {
	switch {
	case extensionLen < 0:
		return achievements[0]
	case extensionLen >= len(achievements)-1:
		return achievements[len(achievements)-1]
	default:
		return achievements[extensionLen]
	}
}

// AchievementOf returns the achievement a digest unlocks, if any. Digests
// without the marker unlock nothing.
func AchievementOf(digest string) (Achievement, bool) {
	ok, n := Extension(digest)
	if !ok {
		return Achievement{}, false
	}
	return AchievementFor(n), true
}
