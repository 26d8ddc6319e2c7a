// Package engine wires the selectors, checks, state machines, bind
// sequences, battles, and the effect pipeline into a turn loop driven
// by numbered choices.
package engine

import (
	"fmt"

	"github.com/nathoo/duskcore/engine/bind"
	"github.com/nathoo/duskcore/engine/effects"
	"github.com/nathoo/duskcore/engine/fault"
	"github.com/nathoo/duskcore/engine/fsm"
	"github.com/nathoo/duskcore/engine/rng"
	"github.com/nathoo/duskcore/engine/state"
	"github.com/nathoo/duskcore/types"
)

// Engine holds the game definitions, mutable state, and the seeded RNG.
type Engine struct {
	Defs    *state.Defs
	State   *types.GameState
	RNG     *rng.RNG
	Plugins effects.PluginRunner
}

// Choice is one numbered option presented to the player.
type Choice struct {
	ID          string
	Label       string
	Description string
}

// New creates a new engine positioned at the entry node.
func New(defs *state.Defs, seed int64) *Engine {
	return &Engine{
		Defs:  defs,
		State: state.New(defs, seed),
		RNG:   rng.New(seed),
	}
}

// RestoreRNG re-creates the RNG from a saved seed and position.
func (e *Engine) RestoreRNG(seed, position int64) {
	e.RNG = rng.Restore(seed, position)
}

// ctx builds a fresh effect resolution context. The sequence-switch
// counter is per resolution, so each turn starts from zero.
func (e *Engine) ctx() *effects.Context {
	ctx := &effects.Context{
		RNG:        e.RNG,
		Plugins:    e.Plugins,
		CasterName: "あなた",
		TargetName: "あなた",
	}
	if e.State.Battle.Active {
		if enemy, ok := e.Defs.Enemies[e.State.Battle.EnemyID]; ok {
			ctx.CasterName = enemy.Name
		}
	}
	return ctx
}

// Mode reports what the player is currently doing.
func (e *Engine) Mode() string {
	switch {
	case e.State.GameOver || e.State.GameClear:
		return "over"
	case e.State.Bind.Active:
		return "bind"
	case e.State.Battle.Active:
		return "battle"
	default:
		return "explore"
	}
}

// Describe renders the current node: its display name on first visit,
// then the current state's description.
func (e *Engine) Describe() []string {
	node, ok := e.Defs.Nodes[e.State.CurrentNode]
	if !ok {
		return []string{"……何もない場所だ。"}
	}
	var out []string
	if node.DisplayName != "" {
		out = append(out, fmt.Sprintf("■ %s", node.DisplayName))
	}
	if st, ok := fsm.NodeState(e.State, e.Defs, node.ID); ok && st.Description != "" {
		out = append(out, st.Description)
	}
	for _, obj := range node.Objects {
		if st, ok := fsm.ObjectState(e.State, e.Defs, node.ID, obj.ID); ok && st.Description != "" {
			out = append(out, st.Description)
		}
	}
	return out
}

// Choices lists the options for the current mode.
func (e *Engine) Choices() []Choice {
	switch e.Mode() {
	case "over":
		return nil
	case "bind":
		var out []Choice
		for _, c := range bind.Choices(e.State, e.Defs) {
			out = append(out, Choice{ID: c.ID, Label: c.Label, Description: c.Description})
		}
		return out
	case "battle":
		return e.battleChoices()
	default:
		return e.exploreChoices()
	}
}

// exploreChoices collects the node state's actions and every object
// state's actions, filtered by requirements.
func (e *Engine) exploreChoices() []Choice {
	node, ok := e.Defs.Nodes[e.State.CurrentNode]
	if !ok {
		return nil
	}
	var out []Choice
	if st, ok := fsm.NodeState(e.State, e.Defs, node.ID); ok {
		for _, a := range fsm.AvailableActions(st, e.State) {
			out = append(out, Choice{ID: a.ID, Label: a.Label, Description: a.Description})
		}
	}
	for _, obj := range node.Objects {
		if st, ok := fsm.ObjectState(e.State, e.Defs, node.ID, obj.ID); ok {
			for _, a := range fsm.AvailableActions(st, e.State) {
				out = append(out, Choice{ID: a.ID, Label: a.Label, Description: a.Description})
			}
		}
	}
	return out
}

// Do resolves one player choice and advances the turn.
func (e *Engine) Do(choiceID string) *types.Result {
	if e.State.GameOver || e.State.GameClear {
		return &types.Result{Messages: []string{"ゲームは終了した。"}}
	}

	var res *types.Result
	switch e.Mode() {
	case "bind":
		res = e.doBind(choiceID)
	case "battle":
		res = e.doBattle(choiceID)
	default:
		res = e.doExplore(choiceID)
	}

	fsm.ReevaluateAll(e.State, e.Defs)
	e.State.RNGPosition = e.RNG.Position()
	e.State.TurnCount++
	return res
}

// doExplore runs an exploration action's effect list and routes its
// outcome signals.
func (e *Engine) doExplore(choiceID string) *types.Result {
	res := &types.Result{}
	action, found := e.findExploreAction(choiceID)
	if !found {
		res.Err = fault.Statef("node %q: no action %q", e.State.CurrentNode, choiceID)
		return res
	}

	out, err := effects.Apply(e.State, e.Defs, action.Effects, e.ctx())
	res.Messages = append(res.Messages, out.Messages...)
	if err != nil {
		res.Err = err
		return res
	}
	e.handleOutcome(out, res)
	e.tickStatuses(res)
	e.checkDefeat(res)
	return res
}

func (e *Engine) findExploreAction(choiceID string) (types.Action, bool) {
	node, ok := e.Defs.Nodes[e.State.CurrentNode]
	if !ok {
		return types.Action{}, false
	}
	if st, ok := fsm.NodeState(e.State, e.Defs, node.ID); ok {
		for _, a := range fsm.AvailableActions(st, e.State) {
			if a.ID == choiceID {
				return a, true
			}
		}
	}
	for _, obj := range node.Objects {
		if st, ok := fsm.ObjectState(e.State, e.Defs, node.ID, obj.ID); ok {
			for _, a := range fsm.AvailableActions(st, e.State) {
				if a.ID == choiceID {
					return a, true
				}
			}
		}
	}
	return types.Action{}, false
}

// handleOutcome acts on the signals an effect list raised: navigation,
// battle start, bind sequence start, rejected transitions.
func (e *Engine) handleOutcome(out *effects.Outcome, res *types.Result) {
	for _, rej := range out.Rejections {
		res.Messages = append(res.Messages, rej.Error())
	}
	if out.Halted {
		return
	}
	if out.Navigate != "" {
		e.moveTo(out.Navigate, res)
	}
	if out.BattleEnemy != "" || out.BattlePool != "" {
		var br *types.Result
		var err error
		if out.BattleEnemy != "" {
			br, err = e.StartBattle(out.BattleEnemy)
		} else {
			br, err = e.StartBattleFromPool(out.BattlePool)
		}
		if err != nil {
			res.Err = err
			return
		}
		res.Messages = append(res.Messages, br.Messages...)
	}
	if out.StartSequence != "" {
		msgs, err := bind.Start(e.State, e.Defs, out.StartSequence, out.StartStage)
		if err != nil {
			res.Err = err
			return
		}
		res.Messages = append(res.Messages, msgs...)
	}
}

// doBind resolves one bind sequence turn.
func (e *Engine) doBind(choiceID string) *types.Result {
	res := &types.Result{}
	br, err := bind.Resolve(e.State, e.Defs, choiceID, e.ctx())
	if br != nil {
		res.Messages = append(res.Messages, br.Messages...)
	}
	if err != nil {
		res.Err = err
		return res
	}

	if br.Escaped {
		e.afterEscape(res)
	}
	e.tickStatuses(res)
	if e.State.Battle.Active {
		e.checkBattleEnd(res)
	} else {
		e.checkDefeat(res)
	}
	return res
}

// afterEscape routes control after a bind escape: back into the battle
// if one is running, otherwise to the sequence's escape target node.
func (e *Engine) afterEscape(res *types.Result) {
	if e.State.Battle.Active {
		return
	}
	seq, ok := e.Defs.Sequences[e.State.Bind.SequenceID]
	if ok && seq.Config.EscapeTarget != "" {
		e.moveTo(seq.Config.EscapeTarget, res)
	}
}

// moveTo navigates to a node and renders it.
func (e *Engine) moveTo(nodeID string, res *types.Result) {
	if _, ok := e.Defs.Nodes[nodeID]; !ok {
		res.Messages = append(res.Messages, fault.Configf("navigation: unknown node %q", nodeID).Error())
		return
	}
	e.State.CurrentNode = nodeID
	e.State.Visited[nodeID] = true
	fsm.ReevaluateAll(e.State, e.Defs)
	res.Messages = append(res.Messages, "")
	res.Messages = append(res.Messages, e.Describe()...)
}

// tickStatuses applies active status tick effects, then decrements
// durations and reports expirations.
func (e *Engine) tickStatuses(res *types.Result) {
	for _, st := range e.State.Player.Statuses {
		def, ok := e.Defs.Statuses[st.ID]
		if !ok || len(def.TickEffects) == 0 {
			continue
		}
		out, err := effects.Apply(e.State, e.Defs, def.TickEffects, e.ctx())
		res.Messages = append(res.Messages, out.Messages...)
		if err != nil {
			res.Messages = append(res.Messages, err.Error())
		}
	}
	for _, id := range state.TickStatuses(e.State) {
		if def, ok := e.Defs.Statuses[id]; ok {
			res.Messages = append(res.Messages, fmt.Sprintf("%sの効果が切れた。", def.Name))
		}
	}
}

// checkDefeat ends the run outside battle when HP empties or the PT
// gauge fills.
func (e *Engine) checkDefeat(res *types.Result) {
	if e.State.GameOver || e.State.GameClear {
		return
	}
	if state.GetStat(e.State, "hp") <= 0 {
		e.State.GameOver = true
		res.Messages = append(res.Messages, "力尽きた……", "ゲームオーバー")
		return
	}
	if state.GetStat(e.State, "pt") >= state.GetStat(e.State, "pt_max") {
		e.State.GameOver = true
		res.Messages = append(res.Messages, "限界を超えてしまった……", "ゲームオーバー")
	}
}

// Begin renders the opening of a fresh game.
func (e *Engine) Begin() []string {
	e.State.Visited[e.State.CurrentNode] = true
	fsm.ReevaluateAll(e.State, e.Defs)
	var out []string
	if e.Defs.Title != "" {
		out = append(out, fmt.Sprintf("=== %s ===", e.Defs.Title), "")
	}
	return append(out, e.Describe()...)
}

// StatusLine renders the one-line gauge summary frontends show.
func (e *Engine) StatusLine() string {
	c := e.State.Player.Combat
	return fmt.Sprintf("HP %d/%d  MP %d/%d  SP %d/%d  PT %d/%d",
		c.HP, c.HPMax, c.MP, c.MPMax, c.SP, c.SPMax, c.PT, c.PTMax)
}
