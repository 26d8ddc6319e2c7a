// Package bind implements the bind sequence controller: staged
// adversarial encounters with built-in struggle commands, per-stage
// overrides, custom actions, terminal-stage loops, and cross-sequence
// switching. Built-in commands are synthesized as ordinary custom
// actions so built-in and authored choices share one resolution path.
package bind

import (
	"fmt"

	"github.com/nathoo/duskcore/engine/check"
	"github.com/nathoo/duskcore/engine/effects"
	"github.com/nathoo/duskcore/engine/fault"
	"github.com/nathoo/duskcore/engine/rules"
	"github.com/nathoo/duskcore/engine/state"
	"github.com/nathoo/duskcore/engine/weight"
	"github.com/nathoo/duskcore/types"
)

// Built-in command IDs.
const (
	Resist     = "resist"
	ResistHard = "resist_hard"
	Wait       = "wait"
)

// WaitBonusFlag is set for one turn after a Wait, so custom actions
// can reference it in flag_bonus modifiers.
const WaitBonusFlag = "wait_bonus"

// waitBonus is the success-rate bonus the next checked built-in gets.
const waitBonus = 20

// Built-in failure costs.
const (
	resistFailPT     = 10
	resistHardFailPT = 25
)

// Choice is one selectable option at the current stage.
type Choice struct {
	ID          string
	Label       string
	Description string
	Custom      bool
}

// Resolution is the outcome of one resolved player choice.
type Resolution struct {
	Messages []string
	Ended    bool // sequence is over
	Escaped  bool // ended by escape; control returns to escape_target
}

// Start begins a bind sequence at the given stage.
func Start(s *types.GameState, defs *state.Defs, sequenceID string, stage int) ([]string, error) {
	seq, ok := defs.Sequences[sequenceID]
	if !ok {
		return nil, fault.Configf("bind sequence %q: unresolved reference", sequenceID)
	}
	s.Bind = types.BindState{
		Active:     true,
		SequenceID: sequenceID,
		Stage:      stage,
		Turn:       1,
	}

	messages := []string{fmt.Sprintf("【%s】", seq.Name)}
	if st, ok := stageAt(&seq, stage); ok {
		messages = append(messages, st.Description)
	}
	return messages, nil
}

// Choices returns the selectable options for the current stage:
// synthesized built-ins filtered through the stage overrides, plus
// custom actions whose requirements pass and whose cost is payable.
func Choices(s *types.GameState, defs *state.Defs) []Choice {
	seq, st, ok := current(s, defs)
	if !ok {
		return nil
	}

	var choices []Choice
	for _, a := range Builtins(&seq, st) {
		choices = append(choices, Choice{ID: a.ID, Label: a.Label, Description: a.Description})
	}
	for _, ca := range st.CustomActions {
		if !rules.CheckAll(ca.Requirements, s) {
			continue
		}
		if !affordable(ca.Cost, s) {
			continue
		}
		choices = append(choices, Choice{ID: ca.ID, Label: ca.Label, Description: ca.Description, Custom: true})
	}
	return choices
}

// Builtins synthesizes the three default commands for a stage with its
// overrides already applied. Disabled commands are absent.
func Builtins(seq *types.BindSequenceDef, st *types.BindStage) []types.CustomAction {
	var out []types.CustomAction
	base := seq.Config.BaseDifficulty

	if ov, enabled := override(st, Resist); enabled {
		out = append(out, types.CustomAction{
			ID:          Resist,
			Label:       "抵抗する",
			Description: "成功率高、1段階改善",
			Check:       &types.SuccessCheck{Kind: "fixed", Rate: 100 - base + ov.RateModifier},
			OnSuccess: types.Outcome{
				Effects: []types.Effect{
					messageEffect(st.PlayerTexts["on_resist_success"], "抵抗に成功した！"),
					{Type: "stage_regress", Params: map[string]any{"amount": 1}},
				},
				EnemyReaction: st.EnemyReactions["on_player_resist_success"],
			},
			OnFailure: types.Outcome{
				Effects: []types.Effect{
					messageEffect(st.PlayerTexts["on_resist_fail"], "抵抗に失敗した……"),
					{Type: "stage_progress", Params: map[string]any{"amount": 1}},
					{Type: "modify_stat", Params: map[string]any{"stat": "pt", "operator": "+", "value": resistFailPT}},
				},
				EnemyReaction: st.EnemyReactions["on_player_resist_fail"],
			},
		})
	}

	if ov, enabled := override(st, ResistHard); enabled {
		out = append(out, types.CustomAction{
			ID:          ResistHard,
			Label:       "全力で抵抗する",
			Description: "成功率低、成功で即脱出、失敗でPT大幅上昇",
			Check:       &types.SuccessCheck{Kind: "fixed", Rate: 50 - base/2 + ov.RateModifier},
			OnSuccess: types.Outcome{
				Effects: []types.Effect{
					messageEffect(st.PlayerTexts["on_resist_hard_success"], "全力で抵抗し、拘束から脱出した！"),
					{Type: "escape_bind", Params: map[string]any{}},
				},
				EnemyReaction: st.EnemyReactions["on_player_resist_success"],
			},
			OnFailure: types.Outcome{
				Effects: []types.Effect{
					messageEffect(st.PlayerTexts["on_resist_hard_fail"], "全力で抵抗したが、失敗した……！"),
					{Type: "stage_progress", Params: map[string]any{"amount": 1}},
					{Type: "modify_stat", Params: map[string]any{"stat": "pt", "operator": "+", "value": resistHardFailPT}},
				},
				EnemyReaction: st.EnemyReactions["on_player_resist_fail"],
			},
		})
	}

	if _, enabled := override(st, Wait); enabled {
		// No check: always "succeeds" without consuming randomness.
		out = append(out, types.CustomAction{
			ID:          Wait,
			Label:       "抵抗しない",
			Description: "判定なしで1段階進行、次ターンボーナス",
			OnSuccess: types.Outcome{
				Effects: []types.Effect{
					messageEffect(st.PlayerTexts["on_wait"], "抵抗せずに力を溜める……"),
					{Type: "stage_progress", Params: map[string]any{"amount": 1}},
				},
				EnemyReaction: st.EnemyReactions["on_player_wait"],
			},
		})
	}

	return out
}

// Resolve executes one player choice: deduct cost, resolve the success
// check (with override and wait-bonus layering for built-ins), run the
// matching effect list, then clamp the stage index and apply terminal
// loop effects or escape.
func Resolve(s *types.GameState, defs *state.Defs, choiceID string, ctx *effects.Context) (*Resolution, error) {
	seq, st, ok := current(s, defs)
	if !ok {
		return nil, fault.Statef("no active bind sequence stage")
	}

	action, builtin, found := findAction(&seq, st, choiceID)
	if !found {
		return nil, fault.Statef("bind sequence %q stage %d: no choice %q", seq.ID, st.Index, choiceID)
	}

	res := &Resolution{}

	// Cost is charged before resolution; an unpayable cost is a no-op.
	if !affordable(action.Cost, s) {
		res.Messages = append(res.Messages, "コストが足りません。")
		return res, nil
	}
	for stat, amount := range action.Cost {
		state.ModifyStat(s, stat, "-", amount)
	}

	success, err := resolveOutcome(&action, builtin, s, defs, st, ctx)
	if err != nil {
		return res, err
	}

	outcome := action.OnFailure
	if success {
		outcome = action.OnSuccess
	}

	out, err := effects.Apply(s, defs, outcome.Effects, ctx)
	res.Messages = append(res.Messages, out.Messages...)
	if err != nil {
		return res, err
	}
	if reaction := weight.Text(outcome.EnemyReaction, "", ctx.RNG); reaction != "" {
		res.Messages = append(res.Messages, reaction)
	}

	// Wait grants next turn's bonus; any other resolution consumes it.
	if builtin && choiceID == Wait {
		s.Bind.NextTurnBonus = waitBonus
		state.SetFlag(s, WaitBonusFlag, true)
	} else {
		s.Bind.NextTurnBonus = 0
		state.SetFlag(s, WaitBonusFlag, false)
	}

	finishTurn(s, defs, &seq, st, ctx, res)
	return res, nil
}

// resolveOutcome layers the stage override underneath the action's own
// check: forced results skip probability entirely; otherwise built-ins
// get the wait bonus and the engine clamp of [5, 95].
func resolveOutcome(action *types.CustomAction, builtin bool, s *types.GameState, defs *state.Defs, st *types.BindStage, ctx *effects.Context) (bool, error) {
	if builtin {
		ov, _ := override(st, action.ID)
		switch ov.ForcedResult {
		case "auto_success":
			return true, nil
		case "auto_fail":
			return false, nil
		}
	}

	if action.Check == nil {
		return true, nil
	}

	p, err := check.Probability(action.Check, s, defs)
	if err != nil {
		return false, err
	}
	if builtin {
		p += s.Bind.NextTurnBonus
		if p < 5 {
			p = 5
		}
		if p > 95 {
			p = 95
		}
	}
	return check.Outcome(p, ctx.RNG), nil
}

// finishTurn clamps the stage index, applies escape or terminal-loop
// semantics, and emits the new stage description when it changed.
func finishTurn(s *types.GameState, defs *state.Defs, seq *types.BindSequenceDef, prev *types.BindStage, ctx *effects.Context, res *Resolution) {
	// A mid-resolution sequence switch replaced the definition; the new
	// sequence's stage was already validated and announced.
	if s.Bind.SequenceID != seq.ID {
		if cur, ok := defs.Sequences[s.Bind.SequenceID]; ok {
			seq = &cur
		}
		prev = nil
	}

	if s.Bind.Stage < 0 {
		if prev != nil {
			res.Messages = append(res.Messages, "拘束から脱出した！")
		}
		s.Bind.Active = false
		s.Bind.Stage = 0
		res.Ended = true
		res.Escaped = true
		return
	}

	last := lastStage(seq)
	if s.Bind.Stage >= last {
		s.Bind.Stage = last
		applyLoop(s, defs, seq, ctx, res)
	}

	if prev == nil || s.Bind.Stage != prev.Index {
		if st, ok := stageAt(seq, s.Bind.Stage); ok {
			res.Messages = append(res.Messages, "", st.Description)
		}
	}
	s.Bind.Turn++
}

// applyLoop applies the sequence-wide loop damage and the final
// stage's loop effects, once per turn spent pinned at the last stage.
func applyLoop(s *types.GameState, defs *state.Defs, seq *types.BindSequenceDef, ctx *effects.Context, res *Resolution) {
	for stat, amount := range seq.Config.LoopDamage {
		// PT loop damage raises the gauge; anything else drains.
		if stat == "pt" {
			state.ModifyStat(s, "pt", "+", amount)
		} else {
			state.ModifyStat(s, stat, "-", amount)
		}
	}
	st, ok := stageAt(seq, s.Bind.Stage)
	if !ok {
		return
	}
	out, err := effects.Apply(s, defs, st.LoopEffects, ctx)
	res.Messages = append(res.Messages, out.Messages...)
	if err != nil {
		res.Messages = append(res.Messages, err.Error())
	}
}

func current(s *types.GameState, defs *state.Defs) (types.BindSequenceDef, *types.BindStage, bool) {
	if !s.Bind.Active {
		return types.BindSequenceDef{}, nil, false
	}
	seq, ok := defs.Sequences[s.Bind.SequenceID]
	if !ok {
		return types.BindSequenceDef{}, nil, false
	}
	st, ok := stageAt(&seq, s.Bind.Stage)
	if !ok {
		return seq, nil, false
	}
	return seq, st, true
}

func findAction(seq *types.BindSequenceDef, st *types.BindStage, choiceID string) (types.CustomAction, bool, bool) {
	for _, a := range Builtins(seq, st) {
		if a.ID == choiceID {
			return a, true, true
		}
	}
	for _, ca := range st.CustomActions {
		if ca.ID == choiceID {
			return ca, false, true
		}
	}
	return types.CustomAction{}, false, false
}

func override(st *types.BindStage, id string) (types.ChoiceOverride, bool) {
	ov, ok := st.Overrides[id]
	if !ok {
		return types.ChoiceOverride{Enabled: true}, true
	}
	return ov, ov.Enabled
}

func affordable(cost map[string]int, s *types.GameState) bool {
	for stat, amount := range cost {
		if state.GetStat(s, stat) < amount {
			return false
		}
	}
	return true
}

func stageAt(seq *types.BindSequenceDef, index int) (*types.BindStage, bool) {
	for i := range seq.Stages {
		if seq.Stages[i].Index == index {
			return &seq.Stages[i], true
		}
	}
	return nil, false
}

func lastStage(seq *types.BindSequenceDef) int {
	last := 0
	for _, st := range seq.Stages {
		if st.Index > last {
			last = st.Index
		}
	}
	return last
}

func messageEffect(tv types.TextVariant, fallback string) types.Effect {
	if tv.Text == "" && len(tv.Options) == 0 {
		return types.Effect{Type: "message", Params: map[string]any{"text": fallback}}
	}
	if tv.Text != "" {
		return types.Effect{Type: "message", Params: map[string]any{"text": tv.Text}}
	}
	return types.Effect{Type: "message", Params: map[string]any{"options": tv.Options}}
}
