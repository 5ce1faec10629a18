package policy

import (
	"context"
	"fmt"

	"github.com/google/cel-go/cel"
	"github.com/google/cel-go/common/types"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/nozmo-king/chorum/lib/challenge"
	"github.com/nozmo-king/chorum/lib/policy/config"
	"github.com/nozmo-king/chorum/lib/policy/expressions"
)

var tierSelections = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "chorum_difficulty_tier_selections",
	Help: "How often each difficulty tier picked the required prefix",
}, []string{"tier"})

// defaultTier labels prefixes that came from no tier at all.
const defaultTier = "default"

type Tier struct {
	config.DifficultyTier
	Program cel.Program
}

func ParsedTierFromConfig(t config.DifficultyTier) (*Tier, error) {
	result := &Tier{
		DifficultyTier: t,
	}

	env, err := expressions.Difficulty()
	if err != nil {
		return nil, err
	}

	program, err := expressions.Compile(env, t.Expression.String())
	if err != nil {
		return nil, fmt.Errorf("can't compile tier %s: %w", t.Name, err)
	}

	result.Program = program

	return result, nil
}

// TieredDifficulty is a challenge.DifficultyStrategy that walks its tiers in
// order and requires the prefix of the first one that matches.
type TieredDifficulty struct {
	Tiers   []*Tier
	Default string
}

var _ challenge.DifficultyStrategy = (*TieredDifficulty)(nil)

func (td *TieredDifficulty) Prefix(ctx context.Context, in challenge.DifficultyInput) (string, error) {
	req := &TierRequest{in}

	for _, t := range td.Tiers {
		result, _, err := t.Program.ContextEval(ctx, req)
		if err != nil {
			return "", fmt.Errorf("policy: tier %s failed: %w", t.Name, err)
		}

		if val, ok := result.(types.Bool); ok && bool(val) {
			tierSelections.WithLabelValues(t.Name).Inc()
			return t.Prefix, nil
		}
	}

	tierSelections.WithLabelValues(defaultTier).Inc()
	return td.Default, nil
}

// TierRequest exposes a challenge.DifficultyInput to CEL.
type TierRequest struct {
	challenge.DifficultyInput
}

func (tr *TierRequest) Parent() cel.Activation { return nil }

func (tr *TierRequest) ResolveName(name string) (any, bool) {
	switch name {
	case "scope":
		return tr.Scope.String(), true
	case "recent":
		return int64(tr.Recent), true
	case "load_1m":
		return tr.Load1, true
	case "load_5m":
		return tr.Load5, true
	case "load_15m":
		return tr.Load15, true
	default:
		return nil, false
	}
}
