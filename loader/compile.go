package loader

import (
	"fmt"

	"github.com/nathoo/duskcore/engine/expr"
	"github.com/nathoo/duskcore/engine/state"
	"github.com/nathoo/duskcore/types"
	lua "github.com/yuin/gopher-lua"
)

// getString returns a string field from a Lua table, or "" if missing.
func getString(tbl *lua.LTable, key string) string {
	if s, ok := tbl.RawGetString(key).(lua.LString); ok {
		return string(s)
	}
	return ""
}

// getNumber returns a numeric field from a Lua table, or def if missing.
func getNumber(tbl *lua.LTable, key string, def float64) float64 {
	if n, ok := tbl.RawGetString(key).(lua.LNumber); ok {
		return float64(n)
	}
	return def
}

func getInt(tbl *lua.LTable, key string, def int) int {
	return int(getNumber(tbl, key, float64(def)))
}

// getBool returns a bool field from a Lua table, or def if missing.
func getBool(tbl *lua.LTable, key string, def bool) bool {
	if b, ok := tbl.RawGetString(key).(lua.LBool); ok {
		return bool(b)
	}
	return def
}

// getTable returns a table field from a Lua table, or nil if missing.
func getTable(tbl *lua.LTable, key string) *lua.LTable {
	if t, ok := tbl.RawGetString(key).(*lua.LTable); ok {
		return t
	}
	return nil
}

// toGoValue converts a Lua value to a Go value recursively.
func toGoValue(v lua.LValue) any {
	switch val := v.(type) {
	case lua.LBool:
		return bool(val)
	case lua.LNumber:
		f := float64(val)
		if f == float64(int(f)) {
			return int(f)
		}
		return f
	case lua.LString:
		return string(val)
	case *lua.LTable:
		if maxN := val.MaxN(); maxN > 0 {
			arr := make([]any, 0, maxN)
			for i := 1; i <= maxN; i++ {
				arr = append(arr, toGoValue(val.RawGetInt(i)))
			}
			return arr
		}
		m := map[string]any{}
		val.ForEach(func(k, v lua.LValue) {
			if ks, ok := k.(lua.LString); ok {
				m[string(ks)] = toGoValue(v)
			}
		})
		return m
	default:
		return nil
	}
}

// forEachEntry visits the integer-keyed entries of a table in order.
func forEachEntry(tbl *lua.LTable, fn func(*lua.LTable)) {
	if tbl == nil {
		return
	}
	for i := 1; i <= tbl.MaxN(); i++ {
		if t, ok := tbl.RawGetInt(i).(*lua.LTable); ok {
			fn(t)
		}
	}
}

// compile converts all collected Lua data into a Defs struct.
func compile(coll *collector) (*state.Defs, error) {
	if coll.game == nil {
		return nil, fmt.Errorf("no Game{} definition found")
	}
	defs := &state.Defs{
		Title:     getString(coll.game, "title"),
		Entry:     getString(coll.game, "start"),
		Nodes:     map[string]types.NodeDef{},
		Enemies:   map[string]types.EnemyDef{},
		Sequences: map[string]types.BindSequenceDef{},
		Spells:    map[string]types.SpellDef{},
		Statuses:  map[string]types.StatusDef{},
		Items:     map[string]types.ItemDef{},
		Pools:     map[string]types.PoolDef{},
		Formulas:  map[string]*expr.Expr{},
	}

	for _, raw := range coll.nodes {
		defs.Nodes[raw.id] = compileNode(raw)
	}
	for _, raw := range coll.enemies {
		defs.Enemies[raw.id] = compileEnemy(raw)
	}
	for _, raw := range coll.sequences {
		defs.Sequences[raw.id] = compileSequence(raw)
	}
	for _, raw := range coll.spells {
		defs.Spells[raw.id] = compileSpell(raw)
	}
	for _, raw := range coll.statuses {
		defs.Statuses[raw.id] = types.StatusDef{
			ID:            raw.id,
			Name:          getString(raw.table, "name"),
			Duration:      getInt(raw.table, "duration", 1),
			PreventAction: getBool(raw.table, "prevent_action", false),
			TickEffects:   compileEffects(getTable(raw.table, "tick_effects")),
		}
	}
	for _, raw := range coll.items {
		defs.Items[raw.id] = types.ItemDef{
			ID:      raw.id,
			Name:    getString(raw.table, "name"),
			Kind:    getString(raw.table, "kind"),
			Effects: compileEffects(getTable(raw.table, "effects")),
		}
	}
	for _, raw := range coll.pools {
		defs.Pools[raw.id] = types.PoolDef{
			ID:      raw.id,
			Options: compileWeightOptions(getTable(raw.table, "options")),
		}
	}

	if err := compileFormulas(defs); err != nil {
		return nil, err
	}
	return defs, nil
}

// compileNode compiles a node with its state machine and objects.
func compileNode(raw rawDef) types.NodeDef {
	node := types.NodeDef{
		ID:          raw.id,
		DisplayName: getString(raw.table, "name"),
		Machine:     compileMachine(raw.table),
	}
	forEachEntry(getTable(raw.table, "objects"), func(tbl *lua.LTable) {
		node.Objects = append(node.Objects, types.ObjectDef{
			ID:      getString(tbl, "id"),
			Machine: compileMachine(tbl),
		})
	})
	return node
}

// compileMachine reads the states array. Array order is the authoring
// order — the tie-break when several triggers fire at once. The first
// state is the initial one unless "initial" names another.
func compileMachine(tbl *lua.LTable) types.MachineDef {
	machine := types.MachineDef{States: map[string]types.State{}}
	forEachEntry(getTable(tbl, "states"), func(st *lua.LTable) {
		id := getString(st, "id")
		if id == "" {
			return
		}
		compiled := types.State{
			Description: getString(st, "description"),
		}
		forEachEntry(getTable(st, "actions"), func(a *lua.LTable) {
			compiled.Actions = append(compiled.Actions, types.Action{
				ID:           getString(a, "id"),
				Label:        getString(a, "label"),
				Description:  getString(a, "description"),
				Requirements: compileRequirements(getTable(a, "requirements")),
				Effects:      compileEffects(getTable(a, "effects")),
			})
		})
		if trg := getTable(st, "trigger"); trg != nil {
			compiled.Trigger = &types.Trigger{
				Type:     getString(trg, "type"),
				Flag:     getString(trg, "flag"),
				Value:    toGoValue(trg.RawGetString("value")),
				Stat:     getString(trg, "stat"),
				Operator: getString(trg, "operator"),
				Item:     getString(trg, "item"),
				Count:    getInt(trg, "count", 1),
			}
		}
		machine.Order = append(machine.Order, id)
		machine.States[id] = compiled
	})
	machine.Initial = getString(tbl, "initial")
	if machine.Initial == "" && len(machine.Order) > 0 {
		machine.Initial = machine.Order[0]
	}
	return machine
}

func compileRequirements(tbl *lua.LTable) []types.Requirement {
	var out []types.Requirement
	forEachEntry(tbl, func(r *lua.LTable) {
		out = append(out, types.Requirement{
			Type:     getString(r, "type"),
			Stat:     getString(r, "stat"),
			Operator: getString(r, "operator"),
			Value:    toGoValue(r.RawGetString("value")),
			Flag:     getString(r, "flag"),
			Item:     getString(r, "item"),
			Count:    getInt(r, "count", 1),
		})
	})
	return out
}

func compileEffects(tbl *lua.LTable) []types.Effect {
	var out []types.Effect
	forEachEntry(tbl, func(e *lua.LTable) {
		effType := getString(e, "type")
		params := map[string]any{}
		e.ForEach(func(k, v lua.LValue) {
			if ks, ok := k.(lua.LString); ok && string(ks) != "type" {
				params[string(ks)] = toGoValue(v)
			}
		})
		// Weighted message options compile into the selector's table form.
		if opts, ok := params["options"].([]any); ok {
			params["options"] = anyToWeightOptions(opts)
		}
		out = append(out, types.Effect{Type: effType, Params: params})
	})
	return out
}

// compileWeightOptions reads a weight table. Entries without an explicit
// weight get the omitted sentinel and split the remainder at selection.
func compileWeightOptions(tbl *lua.LTable) []types.WeightedOption {
	var out []types.WeightedOption
	if tbl == nil {
		return out
	}
	for i := 1; i <= tbl.MaxN(); i++ {
		out = append(out, compileWeightOption(tbl.RawGetInt(i)))
	}
	return out
}

func compileWeightOption(v lua.LValue) types.WeightedOption {
	if t, ok := v.(*lua.LTable); ok {
		weight := float64(types.Omitted)
		if n, ok := t.RawGetString("weight").(lua.LNumber); ok {
			weight = float64(n)
		}
		value := toGoValue(t.RawGetString("value"))
		return types.WeightedOption{Weight: weight, Value: value}
	}
	// A bare value is an omitted-weight entry.
	return types.WeightedOption{Weight: types.Omitted, Value: toGoValue(v)}
}

func anyToWeightOptions(entries []any) []types.WeightedOption {
	out := make([]types.WeightedOption, 0, len(entries))
	for _, e := range entries {
		if m, ok := e.(map[string]any); ok {
			weight := float64(types.Omitted)
			switch w := m["weight"].(type) {
			case int:
				weight = float64(w)
			case float64:
				weight = w
			}
			out = append(out, types.WeightedOption{Weight: weight, Value: m["value"]})
			continue
		}
		out = append(out, types.WeightedOption{Weight: types.Omitted, Value: e})
	}
	return out
}

// compileTextVariant reads either a plain string or a weight table of
// strings.
func compileTextVariant(v lua.LValue) types.TextVariant {
	switch val := v.(type) {
	case lua.LString:
		return types.TextVariant{Text: string(val)}
	case *lua.LTable:
		var options []types.WeightedOption
		for i := 1; i <= val.MaxN(); i++ {
			options = append(options, compileWeightOption(val.RawGetInt(i)))
		}
		return types.TextVariant{Options: options}
	default:
		return types.TextVariant{}
	}
}

func compileVariantMap(tbl *lua.LTable) map[string]types.TextVariant {
	if tbl == nil {
		return nil
	}
	m := map[string]types.TextVariant{}
	tbl.ForEach(func(k, v lua.LValue) {
		if ks, ok := k.(lua.LString); ok {
			m[string(ks)] = compileTextVariant(v)
		}
	})
	return m
}

func compileCheck(tbl *lua.LTable) *types.SuccessCheck {
	if tbl == nil {
		return nil
	}
	c := &types.SuccessCheck{
		Kind:     getString(tbl, "kind"),
		Rate:     getNumber(tbl, "rate", 0),
		BaseRate: getNumber(tbl, "base_rate", 0),
		Formula:  getString(tbl, "formula"),
		Expr:     getString(tbl, "expr"),
	}
	forEachEntry(getTable(tbl, "modifiers"), func(m *lua.LTable) {
		c.Modifiers = append(c.Modifiers, types.CheckModifier{
			Type:   getString(m, "type"),
			Flag:   getString(m, "flag"),
			Item:   getString(m, "item"),
			Status: getString(m, "status"),
			Amount: getNumber(m, "amount", 0),
		})
	})
	return c
}

func compileOutcome(tbl *lua.LTable) types.Outcome {
	if tbl == nil {
		return types.Outcome{}
	}
	return types.Outcome{
		Effects:       compileEffects(getTable(tbl, "effects")),
		EnemyReaction: compileTextVariant(tbl.RawGetString("enemy_reaction")),
	}
}

// compileSequence compiles a bind sequence with its stages.
func compileSequence(raw rawDef) types.BindSequenceDef {
	tbl := raw.table
	seq := types.BindSequenceDef{
		ID:   raw.id,
		Name: getString(tbl, "name"),
	}
	if cfg := getTable(tbl, "config"); cfg != nil {
		seq.Config = types.BindConfig{
			BaseDifficulty: getNumber(cfg, "base_difficulty", 0),
			EscapeTarget:   getString(cfg, "escape_target"),
		}
		if ld := getTable(cfg, "loop_damage"); ld != nil {
			seq.Config.LoopDamage = map[string]int{}
			ld.ForEach(func(k, v lua.LValue) {
				ks, kok := k.(lua.LString)
				vn, vok := v.(lua.LNumber)
				if kok && vok {
					seq.Config.LoopDamage[string(ks)] = int(vn)
				}
			})
		}
	}

	index := 0
	forEachEntry(getTable(tbl, "stages"), func(st *lua.LTable) {
		stage := types.BindStage{
			Index:          getInt(st, "index", index),
			Description:    getString(st, "description"),
			PlayerTexts:    compileVariantMap(getTable(st, "player_texts")),
			EnemyReactions: compileVariantMap(getTable(st, "enemy_reactions")),
			LoopEffects:    compileEffects(getTable(st, "loop_effects")),
		}
		if ovs := getTable(st, "overrides"); ovs != nil {
			stage.Overrides = map[string]types.ChoiceOverride{}
			ovs.ForEach(func(k, v lua.LValue) {
				ks, kok := k.(lua.LString)
				ot, vok := v.(*lua.LTable)
				if !kok || !vok {
					return
				}
				stage.Overrides[string(ks)] = types.ChoiceOverride{
					Enabled:      getBool(ot, "enabled", true),
					ForcedResult: getString(ot, "forced_result"),
					RateModifier: getNumber(ot, "rate_modifier", 0),
					Reason:       getString(ot, "reason"),
				}
			})
		}
		forEachEntry(getTable(st, "custom_actions"), func(ca *lua.LTable) {
			action := types.CustomAction{
				ID:           getString(ca, "id"),
				Label:        getString(ca, "label"),
				Description:  getString(ca, "description"),
				Requirements: compileRequirements(getTable(ca, "requirements")),
				Check:        compileCheck(getTable(ca, "check")),
				OnSuccess:    compileOutcome(getTable(ca, "on_success")),
				OnFailure:    compileOutcome(getTable(ca, "on_failure")),
			}
			if cost := getTable(ca, "cost"); cost != nil {
				action.Cost = map[string]int{}
				cost.ForEach(func(k, v lua.LValue) {
					ks, kok := k.(lua.LString)
					vn, vok := v.(lua.LNumber)
					if kok && vok {
						action.Cost[string(ks)] = int(vn)
					}
				})
			}
			stage.CustomActions = append(stage.CustomActions, action)
		})
		seq.Stages = append(seq.Stages, stage)
		index = stage.Index + 1
	})
	return seq
}

// compileEnemy compiles an enemy with its stats and behavior tree.
func compileEnemy(raw rawDef) types.EnemyDef {
	tbl := raw.table
	enemy := types.EnemyDef{
		ID:          raw.id,
		Name:        getString(tbl, "name"),
		Description: getString(tbl, "description"),
	}
	if st := getTable(tbl, "stats"); st != nil {
		enemy.Stats = types.EnemyStats{
			HP:         getInt(st, "hp", 1),
			Attack:     getInt(st, "atk", 0),
			Defense:    getInt(st, "def", 0),
			MagicAtk:   getInt(st, "matk", 0),
			Initiative: getInt(st, "initiative", 0),
		}
	}
	if tx := getTable(tbl, "text"); tx != nil {
		enemy.Text = types.EnemyText{
			Encounter: getString(tx, "encounter"),
			Defeat:    getString(tx, "defeat"),
			Victory:   getString(tx, "victory"),
		}
	}
	if rw := getTable(tbl, "rewards"); rw != nil {
		enemy.Rewards = types.Rewards{
			Exp:   getInt(rw, "exp", 0),
			Drops: compileWeightOptions(getTable(rw, "drops")),
		}
	}
	if at := getTable(tbl, "attack_texts"); at != nil {
		for i := 1; i <= at.MaxN(); i++ {
			if s, ok := at.RawGetInt(i).(lua.LString); ok {
				enemy.AttackTexts = append(enemy.AttackTexts, string(s))
			}
		}
	}
	if bt := getTable(tbl, "behavior"); bt != nil {
		node := compileBehaviorNode(bt)
		enemy.Behavior = &node
	}
	if ev := getTable(tbl, "events"); ev != nil {
		enemy.Events = map[string]string{}
		ev.ForEach(func(k, v lua.LValue) {
			ks, kok := k.(lua.LString)
			vs, vok := v.(lua.LString)
			if kok && vok {
				enemy.Events[string(ks)] = string(vs)
			}
		})
	}
	return enemy
}

func compileBehaviorNode(tbl *lua.LTable) types.BehaviorNode {
	node := types.BehaviorNode{Kind: getString(tbl, "kind")}
	forEachEntry(getTable(tbl, "conditions"), func(c *lua.LTable) {
		node.Conditions = append(node.Conditions, types.BehaviorCondition{
			Type:     getString(c, "type"),
			Stat:     getString(c, "stat"),
			Operator: getString(c, "operator"),
			Value:    toGoValue(c.RawGetString("value")),
			Skill:    getString(c, "skill"),
			Flag:     getString(c, "flag"),
		})
	})
	if at := getTable(tbl, "action"); at != nil {
		node.Action = compileEnemyAction(at)
	}
	forEachEntry(getTable(tbl, "children"), func(child *lua.LTable) {
		node.Children = append(node.Children, compileBehaviorNode(child))
	})
	forEachEntry(getTable(tbl, "options"), func(opt *lua.LTable) {
		weight := float64(types.Omitted)
		if n, ok := opt.RawGetString("weight").(lua.LNumber); ok {
			weight = float64(n)
		}
		action := opt
		if at := getTable(opt, "action"); at != nil {
			action = at
		}
		node.Options = append(node.Options, types.WeightedOption{
			Weight: weight,
			Value:  compileEnemyAction(action),
		})
	})
	return node
}

func compileEnemyAction(tbl *lua.LTable) *types.EnemyAction {
	return &types.EnemyAction{
		Type:     getString(tbl, "type"),
		Spell:    getString(tbl, "spell"),
		Sequence: getString(tbl, "sequence"),
		Skill:    getString(tbl, "skill"),
		Cooldown: getInt(tbl, "cooldown", 0),
		Text:     getString(tbl, "text"),
	}
}

func compileSpell(raw rawDef) types.SpellDef {
	tbl := raw.table
	spell := types.SpellDef{
		ID:   raw.id,
		Name: getString(tbl, "name"),
	}
	if cost := getTable(tbl, "cost"); cost != nil {
		spell.Cost = map[string]int{}
		cost.ForEach(func(k, v lua.LValue) {
			ks, kok := k.(lua.LString)
			vn, vok := v.(lua.LNumber)
			if kok && vok {
				spell.Cost[string(ks)] = int(vn)
			}
		})
	}
	forEachEntry(getTable(tbl, "effects"), func(e *lua.LTable) {
		spell.Effects = append(spell.Effects, types.SpellEffect{
			Type:       getString(e, "type"),
			DamageType: getString(e, "damage_type"),
			Base:       getInt(e, "base", 0),
			ScaleStat:  getString(e, "scale_stat"),
			ScaleRatio: getNumber(e, "scale_ratio", 0),
			Status:     getString(e, "status"),
			Duration:   getInt(e, "duration", 1),
			Chance:     getInt(e, "chance", 0),
		})
	})
	if tx := getTable(tbl, "text"); tx != nil {
		spell.Text = types.SpellText{
			Cast: getString(tx, "cast"),
			Hit:  getString(tx, "hit"),
			Miss: getString(tx, "miss"),
		}
	}
	return spell
}

// compileFormulas parses every formula in the defs exactly once. A
// malformed formula fails the load; nothing parses at resolution time.
func compileFormulas(defs *state.Defs) error {
	add := func(src string) error {
		if src == "" {
			return nil
		}
		if _, ok := defs.Formulas[src]; ok {
			return nil
		}
		e, err := expr.Parse(src)
		if err != nil {
			return err
		}
		defs.Formulas[src] = e
		return nil
	}
	for _, seq := range defs.Sequences {
		for _, stage := range seq.Stages {
			for _, ca := range stage.CustomActions {
				if ca.Check == nil {
					continue
				}
				if err := add(ca.Check.Formula); err != nil {
					return fmt.Errorf("sequence %s stage %d action %s: %w", seq.ID, stage.Index, ca.ID, err)
				}
				if err := add(ca.Check.Expr); err != nil {
					return fmt.Errorf("sequence %s stage %d action %s: %w", seq.ID, stage.Index, ca.ID, err)
				}
			}
		}
	}
	return nil
}
