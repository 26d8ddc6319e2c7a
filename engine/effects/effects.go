// Package effects implements the effect pipeline: an ordered list of
// effect instructions applied against game state. Effects run strictly
// in order and are not transactional — a failing effect aborts the
// remainder of its list and leaves prior mutations in place.
package effects

import (
	"fmt"
	"strings"

	"github.com/nathoo/duskcore/engine/fault"
	"github.com/nathoo/duskcore/engine/fsm"
	"github.com/nathoo/duskcore/engine/rng"
	"github.com/nathoo/duskcore/engine/state"
	"github.com/nathoo/duskcore/engine/weight"
	"github.com/nathoo/duskcore/types"
)

// maxSequenceSwitches caps switch_bind_sequence chains within a single
// effect resolution, guarding against authored switch cycles.
const maxSequenceSwitches = 8

// PluginRunner dispatches effect types the core does not implement.
type PluginRunner interface {
	Has(actionType string) bool
	Run(actionType string, s *types.GameState, params map[string]any) ([]string, error)
}

// Context carries the resolution context for one effect list.
type Context struct {
	RNG        *rng.RNG
	Plugins    PluginRunner
	CasterName string // for {caster} interpolation
	TargetName string // for {target} interpolation
	switches   int    // switch_bind_sequence count this resolution
}

// Outcome reports what an effect list did beyond direct state mutation.
type Outcome struct {
	Messages      []string
	Navigate      string // node to move to, "" if none
	BattleEnemy   string // enemy to start a battle with
	BattlePool    string // or a pool to draw the enemy from
	StartSequence string // bind sequence to start
	StartStage    int
	Halted        bool    // a terminal effect (game over/clear) fired
	Rejections    []error // non-fatal state errors, reported not thrown
}

func (o *Outcome) say(msg string) {
	if msg != "" {
		o.Messages = append(o.Messages, msg)
	}
}

// Apply runs each effect in order against the game state. The returned
// error, if any, aborted the list; earlier mutations stand.
func Apply(s *types.GameState, defs *state.Defs, effs []types.Effect, ctx *Context) (*Outcome, error) {
	out := &Outcome{}
	for i, eff := range effs {
		if err := applyOne(s, defs, eff, ctx, out); err != nil {
			return out, fault.Wrap(faultKind(err), err, "effect %d (%s)", i, eff.Type)
		}
		if out.Halted {
			return out, nil
		}
	}
	return out, nil
}

func applyOne(s *types.GameState, defs *state.Defs, eff types.Effect, ctx *Context, out *Outcome) error {
	switch eff.Type {
	case "message":
		out.say(resolveText(eff.Params, ctx))

	case "navigation":
		out.Navigate, _ = eff.Params["target"].(string)

	case "get_item":
		item, _ := eff.Params["item"].(string)
		count := intParam(eff.Params, "count", 1)
		if count < 0 {
			return fault.Statef("get_item %q: negative count %d", item, count)
		}
		state.AddItem(s, item, count)
		out.say(fmt.Sprintf("%sを手に入れた！", itemName(defs, item)))

	case "remove_item":
		item, _ := eff.Params["item"].(string)
		count := intParam(eff.Params, "count", 1)
		if err := state.RemoveItem(s, item, count); err != nil {
			return err
		}

	case "item_roll":
		poolID, _ := eff.Params["pool"].(string)
		count := intParam(eff.Params, "count", 1)
		pool, ok := defs.Pools[poolID]
		if !ok {
			return fault.Configf("item_roll: unknown pool %q", poolID)
		}
		drawn, err := weight.SelectN(pool.Options, count, ctx.RNG)
		if err != nil {
			return err
		}
		for _, v := range drawn {
			item, ok := v.(string)
			if !ok || item == "" {
				continue // "nothing" entries are legal
			}
			state.AddItem(s, item, 1)
			out.say(fmt.Sprintf("%sを手に入れた！", itemName(defs, item)))
		}

	case "set_flag":
		flag, _ := eff.Params["flag"].(string)
		value, ok := eff.Params["value"]
		if !ok {
			value = true
		}
		state.SetFlag(s, flag, value)

	case "modify_stat":
		stat, _ := eff.Params["stat"].(string)
		operator, _ := eff.Params["operator"].(string)
		state.ModifyStat(s, stat, operator, intParam(eff.Params, "value", 0))

	case "change_node_state":
		nodeID, _ := eff.Params["node"].(string)
		if nodeID == "" {
			nodeID = s.CurrentNode
		}
		stateID, _ := eff.Params["state"].(string)
		if err := fsm.TransitionNode(s, defs, nodeID, stateID); err != nil {
			// Rejected transition keeps the current state; report, don't abort.
			out.Rejections = append(out.Rejections, err)
		}

	case "change_object_state":
		nodeID, _ := eff.Params["node"].(string)
		if nodeID == "" {
			nodeID = s.CurrentNode
		}
		objectID, _ := eff.Params["object"].(string)
		stateID, _ := eff.Params["state"].(string)
		if err := fsm.TransitionObject(s, defs, nodeID, objectID, stateID); err != nil {
			out.Rejections = append(out.Rejections, err)
		}

	case "stage_progress":
		s.Bind.Stage += intParam(eff.Params, "amount", 1)

	case "stage_regress":
		s.Bind.Stage -= intParam(eff.Params, "amount", 1)
		if s.Bind.Stage < -1 {
			s.Bind.Stage = -1
		}

	case "escape_bind":
		s.Bind.Stage = -1

	case "deal_damage":
		return dealDamage(s, eff.Params, out)

	case "switch_bind_sequence":
		return switchSequence(s, defs, eff.Params, ctx, out)

	case "run_bind_sequence":
		out.StartSequence, _ = eff.Params["sequence"].(string)
		out.StartStage = intParam(eff.Params, "stage", 0)

	case "battle":
		out.BattleEnemy, _ = eff.Params["enemy"].(string)
		out.BattlePool, _ = eff.Params["enemy_pool"].(string)

	case "game_over":
		s.GameOver = true
		reason, _ := eff.Params["reason"].(string)
		if reason == "" {
			reason = "ゲームオーバー"
		}
		out.say(reason)
		out.Halted = true

	case "game_clear":
		s.GameClear = true
		s.Ending, _ = eff.Params["ending"].(string)
		out.Halted = true

	default:
		if ctx.Plugins != nil && ctx.Plugins.Has(eff.Type) {
			msgs, err := ctx.Plugins.Run(eff.Type, s, eff.Params)
			if err != nil {
				return err
			}
			out.Messages = append(out.Messages, msgs...)
			return nil
		}
		return fault.Configf("unknown action type %q", eff.Type)
	}
	return nil
}

// dealDamage routes damage through stat modification: pt damage raises
// PT, sp damage drains the shield, anything else hits HP. Enemy damage
// goes to the live battle HP.
func dealDamage(s *types.GameState, params map[string]any, out *Outcome) error {
	target, _ := params["target"].(string)
	damage := intParam(params, "damage", 0)
	damageType, _ := params["damage_type"].(string)

	switch target {
	case "enemy":
		if !s.Battle.Active {
			return fault.Statef("deal_damage: no active battle enemy")
		}
		s.Battle.EnemyHP -= damage
		out.say(fmt.Sprintf("敵に%dのダメージ！", damage))

	case "self", "player", "":
		switch damageType {
		case "pt":
			state.ModifyStat(s, "pt", "+", damage)
		case "sp":
			state.ModifyStat(s, "sp", "-", damage)
		default:
			state.ModifyStat(s, "hp", "-", damage)
			out.say(fmt.Sprintf("%dのダメージを受けた！", damage))
		}

	default:
		return fault.Statef("deal_damage: unknown target %q", target)
	}
	return nil
}

// switchSequence replaces the active bind sequence definition and
// resets the stage index without ending the encounter. Chained
// switches are capped to break authored cycles.
func switchSequence(s *types.GameState, defs *state.Defs, params map[string]any, ctx *Context, out *Outcome) error {
	ctx.switches++
	if ctx.switches > maxSequenceSwitches {
		return fault.Statef("switch_bind_sequence: more than %d switches in one resolution", maxSequenceSwitches)
	}
	target, _ := params["target"].(string)
	seq, ok := defs.Sequences[target]
	if !ok {
		return fault.Configf("switch_bind_sequence: unknown sequence %q", target)
	}
	stage := intParam(params, "stage", 0)

	s.Bind.Active = true
	s.Bind.SequenceID = target
	s.Bind.Stage = stage

	out.say(fmt.Sprintf("【%s】", seq.Name))
	for _, st := range seq.Stages {
		if st.Index == stage {
			out.say(st.Description)
			break
		}
	}
	return nil
}

// resolveText resolves a message parameter set: plain "text", or a
// weighted/uniform "options" table drawn inline.
func resolveText(params map[string]any, ctx *Context) string {
	if options, ok := params["options"].([]types.WeightedOption); ok && len(options) > 0 {
		text := weight.Text(types.TextVariant{Options: options}, "", ctx.RNG)
		return Interpolate(text, ctx)
	}
	text, _ := params["text"].(string)
	return Interpolate(text, ctx)
}

// Interpolate substitutes presentation placeholders in a text line.
func Interpolate(text string, ctx *Context) string {
	if !strings.Contains(text, "{") {
		return text
	}
	r := strings.NewReplacer(
		"{caster}", ctx.CasterName,
		"{target}", ctx.TargetName,
	)
	return r.Replace(text)
}

func itemName(defs *state.Defs, itemID string) string {
	if def, ok := defs.Items[itemID]; ok && def.Name != "" {
		return def.Name
	}
	return itemID
}

func intParam(params map[string]any, key string, def int) int {
	v, ok := params[key]
	if !ok {
		return def
	}
	switch n := v.(type) {
	case int:
		return n
	case int64:
		return int(n)
	case float64:
		return int(n)
	default:
		return def
	}
}

// faultKind preserves the kind of an already-classified error and
// defaults everything else to an evaluation error.
func faultKind(err error) fault.Kind {
	for _, k := range []fault.Kind{fault.Config, fault.Eval, fault.State} {
		if fault.Is(err, k) {
			return k
		}
	}
	return fault.Eval
}
