// Package state holds the immutable definition set and the accessors
// for mutable player state. Every combat stat mutation clamps to
// [0, max]; ability stats clamp to [0, 100].
package state

import (
	"github.com/nathoo/duskcore/engine/expr"
	"github.com/nathoo/duskcore/engine/fault"
	"github.com/nathoo/duskcore/types"
)

// Defs holds the immutable game definitions. The loader fills Formulas
// with every success-check formula compiled once at load time.
type Defs struct {
	Title     string
	Entry     string // starting node ID
	Nodes     map[string]types.NodeDef
	Enemies   map[string]types.EnemyDef
	Sequences map[string]types.BindSequenceDef
	Spells    map[string]types.SpellDef
	Statuses  map[string]types.StatusDef
	Items     map[string]types.ItemDef
	Pools     map[string]types.PoolDef
	Formulas  map[string]*expr.Expr
}

// Formula returns the compiled expression for a formula string.
// A missing entry means the loader never saw the formula — a
// configuration error, since nothing may parse at resolution time.
func (d *Defs) Formula(src string) (*expr.Expr, error) {
	if e, ok := d.Formulas[src]; ok {
		return e, nil
	}
	return nil, fault.Configf("formula %q was not compiled at load time", src)
}

// statAliases maps authored stat names (including the Japanese forms
// used by content) to canonical internal names.
var statAliases = map[string]string{
	"正気": "sanity",
	"筋力": "strength",
	"集中": "focus",
	"知性": "intelligence",
	"知識": "knowledge",
	"器用": "dexterity",
	"HP": "hp",
	"MP": "mp",
	"SP": "sp",
	"PT": "pt",
}

// NormalizeStat converts an authored stat name to its canonical form.
func NormalizeStat(name string) string {
	if canonical, ok := statAliases[name]; ok {
		return canonical
	}
	return name
}

// defaultAbilities are the starting ability scores.
var defaultAbilities = map[string]int{
	"sanity":       70,
	"strength":     50,
	"focus":        60,
	"intelligence": 65,
	"knowledge":    55,
	"dexterity":    45,
}

// New creates a fresh game state positioned at the entry node.
func New(defs *Defs, seed int64) *types.GameState {
	ability := make(map[string]int, len(defaultAbilities))
	for k, v := range defaultAbilities {
		ability[k] = v
	}
	return &types.GameState{
		CurrentNode: defs.Entry,
		Player: types.Player{
			Combat: types.CombatStats{
				HP: 80, HPMax: 80,
				MP: 50, MPMax: 50,
				SP: 100, SPMax: 100,
				PT: 0, PTMax: 100,
			},
			Ability:   ability,
			Inventory: map[string]int{},
			Flags:     map[string]any{},
			Statuses:  []types.StatusInstance{},
		},
		NodeStates:   map[string]string{},
		ObjectStates: map[string]map[string]string{},
		Visited:      map[string]bool{},
		RNGSeed:      seed,
	}
}

// GetStat returns the current value of a combat or ability stat.
// Unknown stats return 0.
func GetStat(s *types.GameState, name string) int {
	c := &s.Player.Combat
	switch NormalizeStat(name) {
	case "hp":
		return c.HP
	case "hp_max":
		return c.HPMax
	case "mp":
		return c.MP
	case "mp_max":
		return c.MPMax
	case "sp":
		return c.SP
	case "sp_max":
		return c.SPMax
	case "pt":
		return c.PT
	case "pt_max":
		return c.PTMax
	default:
		return s.Player.Ability[NormalizeStat(name)]
	}
}

// SetStat sets a stat, clamping combat stats to [0, max] and ability
// stats to [0, 100]. Unknown stat names are ignored.
func SetStat(s *types.GameState, name string, value int) {
	c := &s.Player.Combat
	switch NormalizeStat(name) {
	case "hp":
		c.HP = clamp(value, 0, c.HPMax)
	case "mp":
		c.MP = clamp(value, 0, c.MPMax)
	case "sp":
		c.SP = clamp(value, 0, c.SPMax)
	case "pt":
		c.PT = clamp(value, 0, c.PTMax)
	default:
		canonical := NormalizeStat(name)
		if _, ok := s.Player.Ability[canonical]; ok {
			s.Player.Ability[canonical] = clamp(value, 0, 100)
		}
	}
}

// ModifyStat applies an arithmetic operator to a stat, then clamps.
// Division by zero leaves the stat unchanged.
func ModifyStat(s *types.GameState, name, operator string, value int) {
	current := GetStat(s, name)
	next := current
	switch operator {
	case "+":
		next = current + value
	case "-":
		next = current - value
	case "=":
		next = value
	case "*":
		next = current * value
	case "/":
		if value != 0 {
			next = current / value
		}
	}
	SetStat(s, name, next)
}

// Snapshot builds the stat map a formula evaluates against: every
// ability stat under its canonical name plus its authored aliases, and
// the current combat stats.
func Snapshot(s *types.GameState) map[string]float64 {
	snap := make(map[string]float64, len(s.Player.Ability)+len(statAliases)+4)
	for name, v := range s.Player.Ability {
		snap[name] = float64(v)
	}
	for alias, canonical := range statAliases {
		snap[alias] = float64(GetStat(s, canonical))
	}
	c := s.Player.Combat
	snap["hp"] = float64(c.HP)
	snap["mp"] = float64(c.MP)
	snap["sp"] = float64(c.SP)
	snap["pt"] = float64(c.PT)
	return snap
}

// GetFlag returns a flag value. Absent flags return nil.
func GetFlag(s *types.GameState, name string) any {
	return s.Player.Flags[name]
}

// FlagTrue reports whether a flag is truthy: boolean true or a nonzero
// number. Absent flags are false.
func FlagTrue(s *types.GameState, name string) bool {
	switch v := s.Player.Flags[name].(type) {
	case bool:
		return v
	case int:
		return v != 0
	case float64:
		return v != 0
	default:
		return false
	}
}

// FlagInt returns a flag as an integer. Numbers loaded from a save
// arrive as float64, so both numeric forms are accepted. Anything else
// is 0.
func FlagInt(s *types.GameState, name string) int {
	switch v := s.Player.Flags[name].(type) {
	case int:
		return v
	case int64:
		return int(v)
	case float64:
		return int(v)
	default:
		return 0
	}
}

// SetFlag sets a flag value.
func SetFlag(s *types.GameState, name string, value any) {
	s.Player.Flags[name] = value
}

// ItemCount returns the inventory count for an item. Absent is 0.
func ItemCount(s *types.GameState, itemID string) int {
	return s.Player.Inventory[itemID]
}

// AddItem adds count of an item to the inventory.
func AddItem(s *types.GameState, itemID string, count int) {
	s.Player.Inventory[itemID] += count
	if s.Player.Inventory[itemID] == 0 {
		delete(s.Player.Inventory, itemID)
	}
}

// RemoveItem removes count of an item. Removing more than held is an
// error and leaves the inventory untouched.
func RemoveItem(s *types.GameState, itemID string, count int) error {
	held := s.Player.Inventory[itemID]
	if held < count {
		return fault.Statef("item %q: cannot remove %d, only %d held", itemID, count, held)
	}
	s.Player.Inventory[itemID] = held - count
	if s.Player.Inventory[itemID] == 0 {
		delete(s.Player.Inventory, itemID)
	}
	return nil
}

// HasStatus reports whether the player has an active status.
func HasStatus(s *types.GameState, statusID string) bool {
	for _, st := range s.Player.Statuses {
		if st.ID == statusID {
			return true
		}
	}
	return false
}

// AddStatus applies a status instance. Re-applying refreshes duration.
func AddStatus(s *types.GameState, statusID string, duration int) {
	for i, st := range s.Player.Statuses {
		if st.ID == statusID {
			s.Player.Statuses[i].Remaining = duration
			return
		}
	}
	s.Player.Statuses = append(s.Player.Statuses, types.StatusInstance{ID: statusID, Remaining: duration})
}

// TickStatuses decrements every active status and drops expired ones.
// Returns the IDs that expired this tick.
func TickStatuses(s *types.GameState) []string {
	var expired []string
	kept := s.Player.Statuses[:0]
	for _, st := range s.Player.Statuses {
		st.Remaining--
		if st.Remaining <= 0 {
			expired = append(expired, st.ID)
			continue
		}
		kept = append(kept, st)
	}
	s.Player.Statuses = kept
	return expired
}

// ActionPrevented reports whether any active status blocks the
// player's action this turn.
func ActionPrevented(s *types.GameState, defs *Defs) bool {
	for _, st := range s.Player.Statuses {
		if def, ok := defs.Statuses[st.ID]; ok && def.PreventAction {
			return true
		}
	}
	return false
}

// NodeState returns a node's current state ID, falling back to the
// definition's initial state.
func NodeState(s *types.GameState, defs *Defs, nodeID string) string {
	if cur, ok := s.NodeStates[nodeID]; ok {
		return cur
	}
	if node, ok := defs.Nodes[nodeID]; ok {
		return node.Machine.Initial
	}
	return ""
}

// ObjectState returns an object's current state ID within a node,
// falling back to the definition's initial state.
func ObjectState(s *types.GameState, defs *Defs, nodeID, objectID string) string {
	if objs, ok := s.ObjectStates[nodeID]; ok {
		if cur, ok := objs[objectID]; ok {
			return cur
		}
	}
	if node, ok := defs.Nodes[nodeID]; ok {
		for _, obj := range node.Objects {
			if obj.ID == objectID {
				return obj.Machine.Initial
			}
		}
	}
	return ""
}

// SetNodeState records a node's current state.
func SetNodeState(s *types.GameState, nodeID, stateID string) {
	s.NodeStates[nodeID] = stateID
}

// SetObjectState records an object's current state.
func SetObjectState(s *types.GameState, nodeID, objectID, stateID string) {
	if s.ObjectStates[nodeID] == nil {
		s.ObjectStates[nodeID] = map[string]string{}
	}
	s.ObjectStates[nodeID][objectID] = stateID
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
