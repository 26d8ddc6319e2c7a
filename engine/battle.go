package engine

import (
	"fmt"
	"sort"

	"github.com/nathoo/duskcore/engine/behavior"
	"github.com/nathoo/duskcore/engine/bind"
	"github.com/nathoo/duskcore/engine/check"
	"github.com/nathoo/duskcore/engine/effects"
	"github.com/nathoo/duskcore/engine/fault"
	"github.com/nathoo/duskcore/engine/state"
	"github.com/nathoo/duskcore/engine/weight"
	"github.com/nathoo/duskcore/types"
)

// damageCalc computes physical damage: max(1, roll(1d6) + attack − defense).
// A defending target halves the result, minimum 1.
func damageCalc(attack, defense int, defending bool, roll int) int {
	damage := roll + attack - defense
	if defending {
		damage /= 2
	}
	if damage < 1 {
		damage = 1
	}
	return damage
}

// playerAttackStat derives the player's physical attack from strength.
func playerAttackStat(s *types.GameState) int {
	return state.GetStat(s, "strength") / 5
}

// StartBattle begins a battle against a defined enemy.
func (e *Engine) StartBattle(enemyID string) (*types.Result, error) {
	enemy, ok := e.Defs.Enemies[enemyID]
	if !ok {
		return nil, fault.Configf("battle: unknown enemy %q", enemyID)
	}
	e.State.Battle = types.BattleState{
		Active:    true,
		EnemyID:   enemyID,
		EnemyHP:   enemy.Stats.HP,
		Turn:      1,
		Cooldowns: map[string]int{},
	}

	res := &types.Result{}
	if enemy.Text.Encounter != "" {
		res.Messages = append(res.Messages, enemy.Text.Encounter)
	} else {
		res.Messages = append(res.Messages, fmt.Sprintf("%sが現れた！", enemy.Name))
	}
	if enemy.Description != "" {
		res.Messages = append(res.Messages, enemy.Description)
	}
	return res, nil
}

// StartBattleFromPool draws the enemy from a weighted pool first.
func (e *Engine) StartBattleFromPool(poolID string) (*types.Result, error) {
	pool, ok := e.Defs.Pools[poolID]
	if !ok {
		return nil, fault.Configf("battle: unknown enemy pool %q", poolID)
	}
	v, err := weight.Select(pool.Options, e.RNG)
	if err != nil {
		return nil, err
	}
	enemyID, ok := v.(string)
	if !ok {
		return nil, fault.Configf("enemy pool %q: option is not an enemy ID", poolID)
	}
	return e.StartBattle(enemyID)
}

// battleChoices lists the battle commands: attack, defend, known spells,
// usable items, escape.
func (e *Engine) battleChoices() []Choice {
	choices := []Choice{
		{ID: "attack", Label: "攻撃", Description: "武器で攻撃する"},
		{ID: "defend", Label: "防御", Description: "身を守り、受けるダメージを半減する"},
	}
	for _, spellID := range e.State.Player.Spells {
		spell, ok := e.Defs.Spells[spellID]
		if !ok {
			continue
		}
		choices = append(choices, Choice{
			ID:          "spell:" + spellID,
			Label:       spell.Name,
			Description: costLabel(spell.Cost),
		})
	}
	// Menu order must be stable so numbered input picks the same item
	// on every run with the same state.
	itemIDs := make([]string, 0, len(e.State.Player.Inventory))
	for itemID := range e.State.Player.Inventory {
		itemIDs = append(itemIDs, itemID)
	}
	sort.Strings(itemIDs)
	for _, itemID := range itemIDs {
		item, ok := e.Defs.Items[itemID]
		if !ok || item.Kind != "consumable" {
			continue
		}
		choices = append(choices, Choice{ID: "item:" + itemID, Label: item.Name + "を使う"})
	}
	choices = append(choices, Choice{ID: "escape", Label: "逃げる", Description: "戦闘から離脱を試みる"})
	return choices
}

func costLabel(cost map[string]int) string {
	if mp, ok := cost["mp"]; ok {
		return fmt.Sprintf("MP%d", mp)
	}
	return ""
}

// doBattle resolves one full battle round: the player command, then the
// enemy turn if the battle survived it, then end-of-round cleanup.
func (e *Engine) doBattle(choiceID string) *types.Result {
	res := &types.Result{}

	if state.ActionPrevented(e.State, e.Defs) {
		res.Messages = append(res.Messages, "体が動かない……！")
	} else if err := e.playerBattleAction(choiceID, res); err != nil {
		res.Err = err
		return res
	}

	if done := e.checkBattleEnd(res); done || !e.State.Battle.Active {
		return res
	}

	// A bind attack suspends the normal round; bind turns take over.
	if e.State.Bind.Active {
		return res
	}

	if err := e.enemyTurn(res); err != nil {
		res.Err = err
		return res
	}
	e.endBattleRound(res)
	return res
}

func (e *Engine) playerBattleAction(choiceID string, res *types.Result) error {
	b := &e.State.Battle
	enemy := e.Defs.Enemies[b.EnemyID]

	switch {
	case choiceID == "attack":
		roll := e.RNG.Roll(6)
		damage := damageCalc(playerAttackStat(e.State), enemy.Stats.Defense, b.EnemyDefending, roll)
		b.EnemyHP -= damage
		res.Messages = append(res.Messages, fmt.Sprintf("%sに%dのダメージ！", enemy.Name, damage))

	case choiceID == "defend":
		b.PlayerDefending = true
		res.Messages = append(res.Messages, "身構えた。受けるダメージが半減する。")

	case choiceID == "escape":
		p := float64(50 + state.GetStat(e.State, "dexterity")/2)
		if check.Outcome(p, e.RNG) {
			b.Active = false
			res.Messages = append(res.Messages, "うまく逃げ出した！")
		} else {
			res.Messages = append(res.Messages, "逃げられない！")
		}

	case len(choiceID) > 6 && choiceID[:6] == "spell:":
		return e.castSpell(choiceID[6:], res)

	case len(choiceID) > 5 && choiceID[:5] == "item:":
		return e.useItem(choiceID[5:], res)

	default:
		return fault.Statef("battle: no command %q", choiceID)
	}
	return nil
}

// castSpell charges the cost, then applies each spell effect scaled by
// the caster's stats.
func (e *Engine) castSpell(spellID string, res *types.Result) error {
	spell, ok := e.Defs.Spells[spellID]
	if !ok {
		return fault.Configf("spell %q: unresolved reference", spellID)
	}
	for stat, amount := range spell.Cost {
		if state.GetStat(e.State, stat) < amount {
			res.Messages = append(res.Messages, fmt.Sprintf("%sが足りない！", stat))
			return nil
		}
	}
	for stat, amount := range spell.Cost {
		state.ModifyStat(e.State, stat, "-", amount)
	}

	enemy := e.Defs.Enemies[e.State.Battle.EnemyID]
	if spell.Text.Cast != "" {
		res.Messages = append(res.Messages, e.interp(spell.Text.Cast, "あなた", enemy.Name))
	}

	for _, se := range spell.Effects {
		switch se.Type {
		case "deal_damage":
			damage := se.Base + int(float64(state.GetStat(e.State, se.ScaleStat))*se.ScaleRatio)
			if e.State.Battle.EnemyDefending {
				damage /= 2
			}
			if damage < 1 {
				damage = 1
			}
			e.State.Battle.EnemyHP -= damage
			res.Messages = append(res.Messages, fmt.Sprintf("%sに%dのダメージ！", enemy.Name, damage))

		case "heal":
			amount := se.Base + int(float64(state.GetStat(e.State, se.ScaleStat))*se.ScaleRatio)
			state.ModifyStat(e.State, "hp", "+", amount)
			res.Messages = append(res.Messages, fmt.Sprintf("HPが%d回復した。", amount))

		case "inflict_status":
			chance := se.Chance
			if chance <= 0 {
				chance = 100
			}
			if check.Outcome(float64(chance), e.RNG) {
				state.AddStatus(e.State, se.Status, se.Duration)
				if def, ok := e.Defs.Statuses[se.Status]; ok {
					res.Messages = append(res.Messages, fmt.Sprintf("%s状態になった！", def.Name))
				}
			}
		}
	}
	return nil
}

// useItem consumes one of a consumable item and runs its effects.
func (e *Engine) useItem(itemID string, res *types.Result) error {
	item, ok := e.Defs.Items[itemID]
	if !ok {
		return fault.Configf("item %q: unresolved reference", itemID)
	}
	if err := state.RemoveItem(e.State, itemID, 1); err != nil {
		return err
	}
	res.Messages = append(res.Messages, fmt.Sprintf("%sを使った。", item.Name))
	out, err := effects.Apply(e.State, e.Defs, item.Effects, e.ctx())
	res.Messages = append(res.Messages, out.Messages...)
	return err
}

// enemyTurn evaluates the behavior tree into one action and executes it.
func (e *Engine) enemyTurn(res *types.Result) error {
	b := &e.State.Battle
	enemy, ok := e.Defs.Enemies[b.EnemyID]
	if !ok {
		return fault.Configf("battle: unknown enemy %q", b.EnemyID)
	}

	action, err := behavior.Evaluate(enemy.Behavior, e.State, &enemy, e.RNG)
	if err != nil {
		return err
	}
	if action.Skill != "" && action.Cooldown > 0 {
		b.Cooldowns[action.Skill] = action.Cooldown
	}
	if action.Text != "" {
		res.Messages = append(res.Messages, e.interp(action.Text, enemy.Name, "あなた"))
	}

	switch action.Type {
	case "normal_attack":
		if action.Text == "" && len(enemy.AttackTexts) > 0 {
			idx := e.RNG.Roll(len(enemy.AttackTexts)) - 1
			res.Messages = append(res.Messages, enemy.AttackTexts[idx])
		}
		roll := e.RNG.Roll(6)
		damage := damageCalc(enemy.Stats.Attack, 0, b.PlayerDefending, roll)
		e.damagePlayer(damage, res)

	case "defend":
		b.EnemyDefending = true
		if action.Text == "" {
			res.Messages = append(res.Messages, fmt.Sprintf("%sは身を固めている。", enemy.Name))
		}

	case "cast_spell":
		e.enemyCast(&enemy, action.Spell, res)

	case "bind_attack":
		msgs, err := bind.Start(e.State, e.Defs, action.Sequence, 0)
		if err != nil {
			return err
		}
		res.Messages = append(res.Messages, msgs...)

	case "wait":
		if action.Text == "" {
			res.Messages = append(res.Messages, fmt.Sprintf("%sは様子を見ている。", enemy.Name))
		}

	default:
		return fault.Configf("enemy %q: unknown action type %q", enemy.ID, action.Type)
	}
	return nil
}

func (e *Engine) enemyCast(enemy *types.EnemyDef, spellID string, res *types.Result) {
	spell, ok := e.Defs.Spells[spellID]
	if !ok {
		res.Messages = append(res.Messages, fmt.Sprintf("%sは何かを唱えたが、何も起こらなかった。", enemy.Name))
		return
	}
	if spell.Text.Cast != "" {
		res.Messages = append(res.Messages, e.interp(spell.Text.Cast, enemy.Name, "あなた"))
	}
	for _, se := range spell.Effects {
		switch se.Type {
		case "deal_damage":
			damage := se.Base + int(float64(enemy.Stats.MagicAtk)*se.ScaleRatio)
			if e.State.Battle.PlayerDefending {
				damage /= 2
			}
			if damage < 1 {
				damage = 1
			}
			e.damagePlayer(damage, res)

		case "inflict_status":
			chance := se.Chance
			if chance <= 0 {
				chance = 100
			}
			if check.Outcome(float64(chance), e.RNG) {
				state.AddStatus(e.State, se.Status, se.Duration)
				if def, ok := e.Defs.Statuses[se.Status]; ok {
					res.Messages = append(res.Messages, fmt.Sprintf("%s状態になった！", def.Name))
				}
			}
		}
	}
}

// damagePlayer routes incoming damage through the SP shield before HP.
func (e *Engine) damagePlayer(damage int, res *types.Result) {
	sp := state.GetStat(e.State, "sp")
	absorbed := damage
	if absorbed > sp {
		absorbed = sp
	}
	if absorbed > 0 {
		state.ModifyStat(e.State, "sp", "-", absorbed)
		res.Messages = append(res.Messages, fmt.Sprintf("精神の守りが%d削られた。", absorbed))
	}
	if rest := damage - absorbed; rest > 0 {
		state.ModifyStat(e.State, "hp", "-", rest)
		res.Messages = append(res.Messages, fmt.Sprintf("%dのダメージを受けた！", rest))
	}
}

// endBattleRound clears defending flags, ticks cooldowns and statuses,
// and advances the round counter.
func (e *Engine) endBattleRound(res *types.Result) {
	b := &e.State.Battle
	b.PlayerDefending = false
	b.EnemyDefending = false
	for skill, turns := range b.Cooldowns {
		if turns > 0 {
			b.Cooldowns[skill] = turns - 1
		}
	}
	e.tickStatuses(res)
	b.Turn++
	e.checkBattleEnd(res)
}

// checkBattleEnd resolves victory and defeat. Returns true when the
// encounter or the run ended.
func (e *Engine) checkBattleEnd(res *types.Result) bool {
	b := &e.State.Battle
	if !b.Active {
		return false
	}
	enemy := e.Defs.Enemies[b.EnemyID]

	if b.EnemyHP <= 0 {
		b.Active = false
		e.State.Bind = types.BindState{}
		if enemy.Text.Defeat != "" {
			res.Messages = append(res.Messages, enemy.Text.Defeat)
		} else {
			res.Messages = append(res.Messages, fmt.Sprintf("%sを倒した！", enemy.Name))
		}
		e.grantRewards(&enemy, res)
		if node, ok := enemy.Events["on_victory"]; ok {
			e.moveTo(node, res)
		}
		return true
	}

	hp := state.GetStat(e.State, "hp")
	pt := state.GetStat(e.State, "pt")
	if hp <= 0 || pt >= state.GetStat(e.State, "pt_max") {
		b.Active = false
		e.State.Bind = types.BindState{}
		if enemy.Text.Victory != "" {
			res.Messages = append(res.Messages, enemy.Text.Victory)
		}
		if node, ok := enemy.Events["on_defeat"]; ok {
			// A scripted defeat continues the story instead of ending it.
			state.SetStat(e.State, "hp", 1)
			state.SetStat(e.State, "pt", 0)
			e.moveTo(node, res)
		} else {
			e.State.GameOver = true
			res.Messages = append(res.Messages, "ゲームオーバー")
		}
		return true
	}
	return false
}

// grantRewards applies experience and rolls the drop table.
func (e *Engine) grantRewards(enemy *types.EnemyDef, res *types.Result) {
	if enemy.Rewards.Exp > 0 {
		exp := state.FlagInt(e.State, "exp")
		state.SetFlag(e.State, "exp", exp+enemy.Rewards.Exp)
		res.Messages = append(res.Messages, fmt.Sprintf("%dの経験を得た。", enemy.Rewards.Exp))
	}
	if len(enemy.Rewards.Drops) == 0 {
		return
	}
	v, err := weight.Select(enemy.Rewards.Drops, e.RNG)
	if err != nil {
		return
	}
	if itemID, ok := v.(string); ok && itemID != "" {
		state.AddItem(e.State, itemID, 1)
		name := itemID
		if def, ok := e.Defs.Items[itemID]; ok && def.Name != "" {
			name = def.Name
		}
		res.Messages = append(res.Messages, fmt.Sprintf("%sを手に入れた！", name))
	}
}

func (e *Engine) interp(text, caster, target string) string {
	return effects.Interpolate(text, &effects.Context{CasterName: caster, TargetName: target})
}
