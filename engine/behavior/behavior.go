// Package behavior evaluates an enemy's decision tree into exactly one
// action per turn. Trees are authored and acyclic; evaluation never
// mutates them.
package behavior

import (
	"github.com/nathoo/duskcore/engine/fault"
	"github.com/nathoo/duskcore/engine/rng"
	"github.com/nathoo/duskcore/engine/rules"
	"github.com/nathoo/duskcore/engine/state"
	"github.com/nathoo/duskcore/engine/weight"
	"github.com/nathoo/duskcore/types"
)

// Evaluate picks the enemy's action for this turn. A tree that yields
// no action (every selector child failed with no fallback) is reported
// as a configuration error, never retried or looped.
func Evaluate(root *types.BehaviorNode, s *types.GameState, enemy *types.EnemyDef, r *rng.RNG) (*types.EnemyAction, error) {
	if root == nil {
		return nil, fault.Configf("enemy %q: no behavior tree", enemy.ID)
	}
	action, err := eval(root, s, enemy, r)
	if err != nil {
		return nil, err
	}
	if action == nil {
		return nil, fault.Configf(
			"enemy %q: behavior tree yielded no action (add an unconditioned weighted_random fallback)",
			enemy.ID)
	}
	return action, nil
}

func eval(node *types.BehaviorNode, s *types.GameState, enemy *types.EnemyDef, r *rng.RNG) (*types.EnemyAction, error) {
	switch node.Kind {
	case "priority_selector":
		// Strict authoring order, short-circuit on the first child
		// that yields an action.
		for i := range node.Children {
			action, err := eval(&node.Children[i], s, enemy, r)
			if err != nil {
				return nil, err
			}
			if action != nil {
				return action, nil
			}
		}
		return nil, nil

	case "sequence":
		// A guarded leaf: all conditions must pass.
		for _, cond := range node.Conditions {
			if !checkCondition(cond, s, enemy) {
				return nil, nil
			}
		}
		return node.Action, nil

	case "weighted_random":
		v, err := weightedPick(node.Options, r)
		if err != nil {
			return nil, fault.Wrap(fault.Config, err, "enemy %q: weighted_random node", enemy.ID)
		}
		return v, nil
	}
	return nil, fault.Configf("enemy %q: unknown behavior node kind %q", enemy.ID, node.Kind)
}

func weightedPick(options []types.WeightedOption, r *rng.RNG) (*types.EnemyAction, error) {
	v, err := weight.Select(options, r)
	if err != nil {
		return nil, err
	}
	action, ok := v.(*types.EnemyAction)
	if !ok {
		return nil, fault.Configf("weighted_random option is not an enemy action")
	}
	return action, nil
}

// checkCondition evaluates one behavior condition against the battle
// snapshot. Unknown condition types pass, matching requirement
// semantics elsewhere.
func checkCondition(cond types.BehaviorCondition, s *types.GameState, enemy *types.EnemyDef) bool {
	switch cond.Type {
	case "check_player_stat":
		return rules.Compare(state.GetStat(s, cond.Stat), op(cond.Operator), cond.Value)

	case "check_self_stat":
		return rules.Compare(selfStat(cond.Stat, s, enemy), op(cond.Operator), cond.Value)

	case "cooldown_ready":
		if s.Battle.Cooldowns == nil {
			return true
		}
		return s.Battle.Cooldowns[cond.Skill] <= 0

	case "flag_check":
		return state.FlagTrue(s, cond.Flag)

	default:
		return true
	}
}

// selfStat reads an enemy stat: live HP comes from the battle state,
// everything else from the definition.
func selfStat(stat string, s *types.GameState, enemy *types.EnemyDef) int {
	switch stat {
	case "hp":
		return s.Battle.EnemyHP
	case "hp_max":
		return enemy.Stats.HP
	case "atk":
		return enemy.Stats.Attack
	case "defense":
		return enemy.Stats.Defense
	case "matk":
		return enemy.Stats.MagicAtk
	case "initiative":
		return enemy.Stats.Initiative
	default:
		return 0
	}
}

func op(operator string) string {
	if operator == "" {
		return "=="
	}
	return operator
}
