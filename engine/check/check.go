// Package check turns a success-check definition into a probability
// and a boolean outcome. The outcome draw goes through the weighted
// selector with a two-entry success/failure table, so every check
// consumes exactly one unit of randomness.
package check

import (
	"github.com/nathoo/duskcore/engine/rng"
	"github.com/nathoo/duskcore/engine/state"
	"github.com/nathoo/duskcore/engine/weight"
	"github.com/nathoo/duskcore/types"
)

// Probability computes the success probability in [0,100] for a check
// against the current player snapshot. A nil check always succeeds.
func Probability(c *types.SuccessCheck, s *types.GameState, defs *state.Defs) (float64, error) {
	if c == nil {
		return 100, nil
	}

	switch c.Kind {
	case "fixed":
		return clamp(c.Rate), nil

	case "stat_based":
		rate := c.BaseRate
		if c.Formula != "" {
			e, err := defs.Formula(c.Formula)
			if err != nil {
				return 0, err
			}
			term, err := e.Eval(state.Snapshot(s))
			if err != nil {
				return 0, err
			}
			rate += term
		}
		for _, mod := range c.Modifiers {
			rate += modifierDelta(mod, s)
		}
		return clamp(rate), nil

	case "formula":
		e, err := defs.Formula(c.Expr)
		if err != nil {
			return 0, err
		}
		rate, err := e.Eval(state.Snapshot(s))
		if err != nil {
			return 0, err
		}
		// Authors are expected to self-clamp via min/max; clamp again
		// so a bad formula never yields an impossible probability.
		return clamp(rate), nil
	}

	// Unknown kinds auto-succeed, matching nil checks.
	return 100, nil
}

// modifierDelta returns the additive contribution of one conditional
// modifier. Unmet conditions contribute 0.
func modifierDelta(mod types.CheckModifier, s *types.GameState) float64 {
	switch mod.Type {
	case "flag_bonus":
		if state.FlagTrue(s, mod.Flag) {
			return mod.Amount
		}
	case "item_bonus":
		if state.ItemCount(s, mod.Item) > 0 {
			return mod.Amount
		}
	case "status_penalty":
		if state.HasStatus(s, mod.Status) {
			return mod.Amount
		}
	}
	return 0
}

// Outcome draws success/failure for a probability via the weighted
// selector. p is clamped to [0,100] first.
func Outcome(p float64, r *rng.RNG) bool {
	p = clamp(p)
	table := []types.WeightedOption{
		{Weight: p, Value: true},
		{Weight: 100 - p, Value: false},
	}
	v, err := weight.Select(table, r)
	if err != nil {
		return false
	}
	return v.(bool)
}

// Resolve computes the probability and draws the outcome in one step.
// On evaluation error the check fails and no randomness is consumed.
func Resolve(c *types.SuccessCheck, s *types.GameState, defs *state.Defs, r *rng.RNG) (float64, bool, error) {
	p, err := Probability(c, s, defs)
	if err != nil {
		return 0, false, err
	}
	return p, Outcome(p, r), nil
}

func clamp(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 100 {
		return 100
	}
	return v
}
