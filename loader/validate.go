package loader

import (
	"fmt"
	"os"
	"strings"

	"github.com/nathoo/duskcore/engine/state"
	"github.com/nathoo/duskcore/types"
)

// ValidationError collects all validation errors and warnings.
type ValidationError struct {
	Errors   []string
	Warnings []string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation failed with %d error(s):\n  %s",
		len(e.Errors), strings.Join(e.Errors, "\n  "))
}

// Core effect types. Anything else must come from the plugin registry,
// which only exists at runtime — unknown types are warnings here.
var coreEffectTypes = map[string]bool{
	"message":              true,
	"navigation":           true,
	"get_item":             true,
	"remove_item":          true,
	"item_roll":            true,
	"set_flag":             true,
	"modify_stat":          true,
	"change_node_state":    true,
	"change_object_state":  true,
	"stage_progress":       true,
	"stage_regress":        true,
	"escape_bind":          true,
	"deal_damage":          true,
	"switch_bind_sequence": true,
	"run_bind_sequence":    true,
	"battle":               true,
	"game_over":            true,
	"game_clear":           true,
}

var requirementTypes = map[string]bool{
	"stat_check": true,
	"flag_check": true,
	"item_check": true,
}

var checkKinds = map[string]bool{
	"fixed":      true,
	"stat_based": true,
	"formula":    true,
}

var behaviorKinds = map[string]bool{
	"priority_selector": true,
	"sequence":          true,
	"weighted_random":   true,
}

// validate checks the compiled defs for referential integrity. All
// errors are collected before reporting, so authors fix a load in one
// pass.
func validate(defs *state.Defs) error {
	ve := &ValidationError{}

	if defs.Title == "" {
		ve.Errors = append(ve.Errors, "Game.title is required")
	}
	if defs.Entry == "" {
		ve.Errors = append(ve.Errors, "Game.start is required")
	} else if _, ok := defs.Nodes[defs.Entry]; !ok {
		ve.Errors = append(ve.Errors, fmt.Sprintf(
			"start node %q not found in defined nodes", defs.Entry))
	}

	for nodeID, node := range defs.Nodes {
		validateMachine(fmt.Sprintf("node %q", nodeID), node.Machine, defs, ve)
		for _, obj := range node.Objects {
			validateMachine(fmt.Sprintf("object %q in node %q", obj.ID, nodeID), obj.Machine, defs, ve)
		}
	}
	for seqID, seq := range defs.Sequences {
		validateSequence(seqID, seq, defs, ve)
	}
	for enemyID, enemy := range defs.Enemies {
		validateEnemy(enemyID, enemy, defs, ve)
	}
	for poolID, pool := range defs.Pools {
		validateWeights(fmt.Sprintf("pool %q", poolID), pool.Options, ve)
	}
	for spellID, spell := range defs.Spells {
		for _, se := range spell.Effects {
			if se.Type == "inflict_status" {
				requireStatus(fmt.Sprintf("spell %q", spellID), se.Status, defs, ve)
			}
		}
	}
	for itemID, item := range defs.Items {
		validateEffects(fmt.Sprintf("item %q", itemID), item.Effects, defs, ve)
	}
	for statusID, status := range defs.Statuses {
		validateEffects(fmt.Sprintf("status %q", statusID), status.TickEffects, defs, ve)
	}

	for _, w := range ve.Warnings {
		fmt.Fprintf(os.Stderr, "warning: %s\n", w)
	}
	if len(ve.Errors) > 0 {
		return ve
	}
	return nil
}

func validateMachine(where string, machine types.MachineDef, defs *state.Defs, ve *ValidationError) {
	if len(machine.Order) == 0 {
		ve.Errors = append(ve.Errors, fmt.Sprintf("%s: no states defined", where))
		return
	}
	if _, ok := machine.States[machine.Initial]; !ok {
		ve.Errors = append(ve.Errors, fmt.Sprintf(
			"%s: initial state %q is not defined", where, machine.Initial))
	}
	for _, id := range machine.Order {
		st := machine.States[id]
		if st.Trigger != nil && !requirementTypes[st.Trigger.Type] {
			ve.Errors = append(ve.Errors, fmt.Sprintf(
				"%s state %q: unknown trigger type %q", where, id, st.Trigger.Type))
		}
		for _, a := range st.Actions {
			validateRequirements(fmt.Sprintf("%s state %q action %q", where, id, a.ID), a.Requirements, ve)
			validateEffects(fmt.Sprintf("%s state %q action %q", where, id, a.ID), a.Effects, defs, ve)
		}
	}
}

func validateSequence(seqID string, seq types.BindSequenceDef, defs *state.Defs, ve *ValidationError) {
	where := fmt.Sprintf("sequence %q", seqID)
	if len(seq.Stages) == 0 {
		ve.Errors = append(ve.Errors, where+": no stages defined")
		return
	}
	seen := map[int]bool{}
	for _, stage := range seq.Stages {
		if seen[stage.Index] {
			ve.Errors = append(ve.Errors, fmt.Sprintf("%s: duplicate stage index %d", where, stage.Index))
		}
		seen[stage.Index] = true

		for id, ov := range stage.Overrides {
			switch id {
			case "resist", "resist_hard", "wait":
			default:
				ve.Errors = append(ve.Errors, fmt.Sprintf(
					"%s stage %d: override targets unknown command %q", where, stage.Index, id))
			}
			switch ov.ForcedResult {
			case "", "auto_success", "auto_fail":
			default:
				ve.Errors = append(ve.Errors, fmt.Sprintf(
					"%s stage %d: unknown forced result %q", where, stage.Index, ov.ForcedResult))
			}
		}
		for _, ca := range stage.CustomActions {
			caWhere := fmt.Sprintf("%s stage %d action %q", where, stage.Index, ca.ID)
			validateRequirements(caWhere, ca.Requirements, ve)
			if ca.Check != nil && !checkKinds[ca.Check.Kind] {
				ve.Errors = append(ve.Errors, fmt.Sprintf(
					"%s: unknown check kind %q", caWhere, ca.Check.Kind))
			}
			validateEffects(caWhere, ca.OnSuccess.Effects, defs, ve)
			validateEffects(caWhere, ca.OnFailure.Effects, defs, ve)
		}
		validateEffects(fmt.Sprintf("%s stage %d loop", where, stage.Index), stage.LoopEffects, defs, ve)
	}
	for i := 0; i < len(seq.Stages); i++ {
		if !seen[i] {
			ve.Warnings = append(ve.Warnings, fmt.Sprintf(
				"%s: stage indexes have a gap at %d", where, i))
			break
		}
	}
	if t := seq.Config.EscapeTarget; t != "" {
		if _, ok := defs.Nodes[t]; !ok {
			ve.Errors = append(ve.Errors, fmt.Sprintf(
				"%s: escape target %q is not a defined node", where, t))
		}
	}
}

func validateEnemy(enemyID string, enemy types.EnemyDef, defs *state.Defs, ve *ValidationError) {
	where := fmt.Sprintf("enemy %q", enemyID)
	if enemy.Behavior != nil {
		validateBehavior(where, enemy.Behavior, defs, ve)
	}
	for event, nodeID := range enemy.Events {
		if _, ok := defs.Nodes[nodeID]; !ok {
			ve.Errors = append(ve.Errors, fmt.Sprintf(
				"%s event %q references undefined node %q", where, event, nodeID))
		}
	}
	validateWeights(where+" drops", enemy.Rewards.Drops, ve)
}

func validateBehavior(where string, node *types.BehaviorNode, defs *state.Defs, ve *ValidationError) {
	if !behaviorKinds[node.Kind] {
		ve.Errors = append(ve.Errors, fmt.Sprintf(
			"%s: unknown behavior node kind %q", where, node.Kind))
	}
	if node.Kind == "weighted_random" && len(node.Options) == 0 {
		ve.Errors = append(ve.Errors, where+": weighted_random node has no options")
	}
	if node.Action != nil {
		validateEnemyAction(where, node.Action, defs, ve)
	}
	for _, opt := range node.Options {
		if action, ok := opt.Value.(*types.EnemyAction); ok {
			validateEnemyAction(where, action, defs, ve)
		}
	}
	for i := range node.Children {
		validateBehavior(where, &node.Children[i], defs, ve)
	}
}

func validateEnemyAction(where string, action *types.EnemyAction, defs *state.Defs, ve *ValidationError) {
	if action.Spell != "" {
		if _, ok := defs.Spells[action.Spell]; !ok {
			ve.Errors = append(ve.Errors, fmt.Sprintf(
				"%s references undefined spell %q", where, action.Spell))
		}
	}
	if action.Sequence != "" {
		if _, ok := defs.Sequences[action.Sequence]; !ok {
			ve.Errors = append(ve.Errors, fmt.Sprintf(
				"%s references undefined sequence %q", where, action.Sequence))
		}
	}
}

func validateRequirements(where string, reqs []types.Requirement, ve *ValidationError) {
	for _, req := range reqs {
		if !requirementTypes[req.Type] {
			ve.Errors = append(ve.Errors, fmt.Sprintf(
				"%s: unknown requirement type %q", where, req.Type))
		}
	}
}

func validateEffects(where string, effs []types.Effect, defs *state.Defs, ve *ValidationError) {
	for _, eff := range effs {
		if !coreEffectTypes[eff.Type] {
			ve.Warnings = append(ve.Warnings, fmt.Sprintf(
				"%s: effect type %q is not built in, assuming a plugin action", where, eff.Type))
			continue
		}
		switch eff.Type {
		case "navigation":
			if target, ok := eff.Params["target"].(string); ok {
				if _, found := defs.Nodes[target]; !found {
					ve.Errors = append(ve.Errors, fmt.Sprintf(
						"%s: navigation references undefined node %q", where, target))
				}
			}
		case "item_roll":
			if pool, ok := eff.Params["pool"].(string); ok {
				if _, found := defs.Pools[pool]; !found {
					ve.Errors = append(ve.Errors, fmt.Sprintf(
						"%s: item_roll references undefined pool %q", where, pool))
				}
			}
		case "switch_bind_sequence", "run_bind_sequence":
			key := "target"
			if eff.Type == "run_bind_sequence" {
				key = "sequence"
			}
			if seq, ok := eff.Params[key].(string); ok {
				if _, found := defs.Sequences[seq]; !found {
					ve.Errors = append(ve.Errors, fmt.Sprintf(
						"%s: %s references undefined sequence %q", where, eff.Type, seq))
				}
			}
		case "battle":
			if enemy, ok := eff.Params["enemy"].(string); ok && enemy != "" {
				if _, found := defs.Enemies[enemy]; !found {
					ve.Errors = append(ve.Errors, fmt.Sprintf(
						"%s: battle references undefined enemy %q", where, enemy))
				}
			}
			if pool, ok := eff.Params["enemy_pool"].(string); ok && pool != "" {
				if _, found := defs.Pools[pool]; !found {
					ve.Errors = append(ve.Errors, fmt.Sprintf(
						"%s: battle references undefined pool %q", where, pool))
				}
			}
		}
	}
}

func requireStatus(where, statusID string, defs *state.Defs, ve *ValidationError) {
	if statusID == "" {
		return
	}
	if _, ok := defs.Statuses[statusID]; !ok {
		ve.Errors = append(ve.Errors, fmt.Sprintf(
			"%s references undefined status %q", where, statusID))
	}
}

// validateWeights warns when explicit weights already cover the full
// 100, leaving any omitted entries unreachable.
func validateWeights(where string, options []types.WeightedOption, ve *ValidationError) {
	if len(options) == 0 {
		return
	}
	explicit := 0.0
	omitted := 0
	for _, opt := range options {
		if opt.Weight == types.Omitted {
			omitted++
			continue
		}
		if opt.Weight < 0 {
			ve.Errors = append(ve.Errors, fmt.Sprintf("%s: negative weight %v", where, opt.Weight))
			continue
		}
		explicit += opt.Weight
	}
	if omitted > 0 && explicit >= 100 {
		ve.Warnings = append(ve.Warnings, fmt.Sprintf(
			"%s: explicit weights sum to %.0f, omitted entries can never be drawn", where, explicit))
	}
}
