// Package rules evaluates the boolean predicates authored content
// attaches to actions (requirements) and states (triggers).
package rules

import (
	"github.com/nathoo/duskcore/engine/state"
	"github.com/nathoo/duskcore/types"
)

// Compare applies a comparison operator to two values. Numeric values
// compare numerically regardless of concrete type; everything else
// compares by equality only. Unknown operators fail closed.
func Compare(actual any, operator string, expected any) bool {
	an, aok := toFloat(actual)
	en, eok := toFloat(expected)
	if aok && eok {
		switch operator {
		case "==":
			return an == en
		case "!=":
			return an != en
		case ">=":
			return an >= en
		case "<=":
			return an <= en
		case ">":
			return an > en
		case "<":
			return an < en
		}
		return false
	}
	switch operator {
	case "==":
		return actual == expected
	case "!=":
		return actual != expected
	}
	return false
}

// CheckRequirement evaluates a single requirement against player state.
// Unknown requirement types pass, so content written for a newer engine
// degrades to visible rather than vanishing.
func CheckRequirement(req types.Requirement, s *types.GameState) bool {
	switch req.Type {
	case "stat_check":
		return Compare(state.GetStat(s, req.Stat), req.Operator, req.Value)

	case "flag_check":
		actual := state.GetFlag(s, req.Flag)
		if req.Value == nil {
			return state.FlagTrue(s, req.Flag)
		}
		return Compare(actual, "==", req.Value)

	case "item_check":
		count := req.Count
		if count == 0 {
			count = 1
		}
		return state.ItemCount(s, req.Item) >= count

	default:
		return true
	}
}

// CheckAll returns true if every requirement passes (AND logic).
// An empty list is vacuously true.
func CheckAll(reqs []types.Requirement, s *types.GameState) bool {
	for _, req := range reqs {
		if !CheckRequirement(req, s) {
			return false
		}
	}
	return true
}

// EvalTrigger evaluates a state auto-transition guard.
func EvalTrigger(trigger *types.Trigger, s *types.GameState) bool {
	if trigger == nil {
		return false
	}
	switch trigger.Type {
	case "flag_check":
		if trigger.Value == nil {
			return state.FlagTrue(s, trigger.Flag)
		}
		return Compare(state.GetFlag(s, trigger.Flag), "==", trigger.Value)

	case "stat_check":
		op := trigger.Operator
		if op == "" {
			op = "=="
		}
		return Compare(state.GetStat(s, trigger.Stat), op, trigger.Value)

	case "item_check":
		count := trigger.Count
		if count == 0 {
			count = 1
		}
		return state.ItemCount(s, trigger.Item) >= count

	default:
		return false
	}
}

// toFloat converts numeric values of any concrete type to float64.
func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case float64:
		return n, true
	case float32:
		return float64(n), true
	default:
		return 0, false
	}
}
