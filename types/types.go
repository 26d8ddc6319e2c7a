// Package types defines the shared data structures for the duskcore engine.
// This package contains only type definitions — no logic, no methods.
package types

// Requirement is a boolean predicate over stats, flags, or inventory.
// An action is offered to the player only if every requirement passes.
type Requirement struct {
	Type     string // "stat_check", "flag_check", "item_check"
	Stat     string
	Operator string // "==", "!=", ">=", "<=", ">", "<"
	Value    any
	Flag     string
	Item     string
	Count    int
}

// Effect is a single atomic state mutation instruction.
type Effect struct {
	Type   string
	Params map[string]any
}

// Action is a player-visible choice attached to a node or object state.
type Action struct {
	ID           string
	Label        string
	Description  string
	Requirements []Requirement
	Effects      []Effect
}

// Trigger is a guard predicate for automatic state transitions.
type Trigger struct {
	Type     string // "flag_check", "stat_check", "item_check"
	Flag     string
	Value    any
	Stat     string
	Operator string
	Item     string
	Count    int
}

// State is one named state in a state machine definition.
type State struct {
	Description string
	Actions     []Action
	Trigger     *Trigger // non-nil: auto-transition here when satisfied
}

// MachineDef is an immutable state machine definition. Order preserves
// authoring order and is the tie-break contract for trigger evaluation.
type MachineDef struct {
	Initial string
	Order   []string
	States  map[string]State
}

// ObjectDef is an interactive object inside a node.
type ObjectDef struct {
	ID      string
	Machine MachineDef
}

// NodeDef is a place in the world, modeled as a state machine with
// player-visible actions per state.
type NodeDef struct {
	ID          string
	DisplayName string
	Machine     MachineDef
	Objects     []ObjectDef
}

// Omitted is the sentinel weight for entries without an explicit weight.
// Omitted entries split the remainder of 100 − Σexplicit evenly.
const Omitted = -1

// WeightedOption is one entry of a weight table.
type WeightedOption struct {
	Weight float64
	Value  any
}

// PoolDef is a named weight table drawn from by pool-draw effects.
type PoolDef struct {
	ID      string
	Options []WeightedOption
}

// TextVariant is either a plain string (Text set) or a weighted choice
// over Options whose values are strings.
type TextVariant struct {
	Text    string
	Options []WeightedOption
}

// SuccessCheck resolves to a probability in [0,100] and then an outcome.
// Kind selects the variant: "fixed", "stat_based", or "formula".
type SuccessCheck struct {
	Kind      string
	Rate      float64 // fixed
	BaseRate  float64 // stat_based
	Formula   string  // stat_based: additive formula term
	Expr      string  // formula: the whole probability
	Modifiers []CheckModifier
}

// CheckModifier is a conditional additive bonus or penalty applied in
// list order after the formula term, before clamping.
type CheckModifier struct {
	Type   string // "flag_bonus", "item_bonus", "status_penalty"
	Flag   string
	Item   string
	Status string
	Amount float64
}

// Outcome couples an effect list with an optional enemy reaction line.
type Outcome struct {
	Effects       []Effect
	EnemyReaction TextVariant
}

// CustomAction is a bind-sequence-scoped action with a success check and
// separate effect lists per outcome.
type CustomAction struct {
	ID           string
	Label        string
	Description  string
	Requirements []Requirement
	Cost         map[string]int // stat deductions charged before resolution
	Check        *SuccessCheck  // nil: always succeeds
	OnSuccess    Outcome
	OnFailure    Outcome
}

// ChoiceOverride adjusts or disables one built-in bind command for a stage.
type ChoiceOverride struct {
	Enabled      bool
	ForcedResult string // "", "auto_success", "auto_fail"
	RateModifier float64
	Reason       string
}

// BindStage is one step of a bind sequence. Index 0 is least advanced.
// The final stage's LoopEffects apply every turn the sequence stays there.
type BindStage struct {
	Index          int
	Description    string
	PlayerTexts    map[string]TextVariant // keyed "on_resist_success" etc.
	EnemyReactions map[string]TextVariant
	Overrides      map[string]ChoiceOverride // keyed by built-in command ID
	CustomActions  []CustomAction
	LoopEffects    []Effect
}

// BindConfig carries sequence-wide tuning.
type BindConfig struct {
	BaseDifficulty float64
	EscapeTarget   string // node or marker control returns to on escape
	LoopDamage     map[string]int
}

// BindSequenceDef is a multi-stage adversarial encounter.
type BindSequenceDef struct {
	ID     string
	Name   string
	Config BindConfig
	Stages []BindStage
}

// BehaviorCondition guards a behavior tree sequence leaf.
type BehaviorCondition struct {
	Type     string // "check_player_stat", "check_self_stat", "cooldown_ready", "flag_check"
	Stat     string
	Operator string
	Value    any
	Skill    string
	Flag     string
}

// EnemyAction is a concrete action an enemy executes on its turn.
type EnemyAction struct {
	Type     string // "normal_attack", "defend", "cast_spell", "bind_attack"
	Spell    string
	Sequence string
	Skill    string // cooldown key; empty means no cooldown
	Cooldown int
	Text     string
}

// BehaviorNode is one node of an enemy decision tree. Kind is
// "priority_selector" (Children), "sequence" (Conditions + Action), or
// "weighted_random" (Options whose values are *EnemyAction).
type BehaviorNode struct {
	Kind       string
	Conditions []BehaviorCondition
	Action     *EnemyAction
	Children   []BehaviorNode
	Options    []WeightedOption
}

// EnemyStats are an enemy's base combat numbers.
type EnemyStats struct {
	HP         int
	Attack     int
	Defense    int
	MagicAtk   int
	Initiative int
}

// EnemyText holds encounter framing lines.
type EnemyText struct {
	Encounter string
	Defeat    string
	Victory   string
}

// Rewards are granted when an enemy is defeated.
type Rewards struct {
	Exp   int
	Drops []WeightedOption
}

// EnemyDef defines an enemy. The behavior tree is authored, acyclic,
// and never mutated at runtime.
type EnemyDef struct {
	ID          string
	Name        string
	Description string
	Stats       EnemyStats
	Rewards     Rewards
	Text        EnemyText
	AttackTexts []string
	Behavior    *BehaviorNode
	Events      map[string]string // "on_victory"/"on_defeat" → node ID
}

// SpellEffect is one effect of casting a spell.
type SpellEffect struct {
	Type       string // "deal_damage", "inflict_status"
	DamageType string
	Base       int
	ScaleStat  string
	ScaleRatio float64
	Status     string
	Duration   int
	Chance     int
}

// SpellText holds spell presentation lines with placeholder substitution.
type SpellText struct {
	Cast string
	Hit  string
	Miss string
}

// SpellDef defines a castable spell or skill.
type SpellDef struct {
	ID      string
	Name    string
	Cost    map[string]int
	Effects []SpellEffect
	Text    SpellText
}

// StatusDef defines a status effect.
type StatusDef struct {
	ID            string
	Name          string
	Duration      int
	PreventAction bool
	TickEffects   []Effect
}

// StatusInstance is an active status on the player.
type StatusInstance struct {
	ID        string `json:"id"`
	Remaining int    `json:"remaining"`
}

// ItemDef defines an item. Usable items run their effects through the
// effect pipeline when consumed.
type ItemDef struct {
	ID      string
	Name    string
	Kind    string // "consumable", "usable", "key"
	Effects []Effect
}

// CombatStats are the mutable in-play stats, each clamped to [0, max].
type CombatStats struct {
	HP    int `json:"hp"`
	HPMax int `json:"hp_max"`
	MP    int `json:"mp"`
	MPMax int `json:"mp_max"`
	SP    int `json:"sp"`
	SPMax int `json:"sp_max"`
	PT    int `json:"pt"`
	PTMax int `json:"pt_max"`
}

// Player holds the player's runtime state. Ability stats are the largely
// static 1–100 formula inputs; combat stats mutate during play.
type Player struct {
	Combat    CombatStats      `json:"combat"`
	Ability   map[string]int   `json:"ability"`
	Inventory map[string]int   `json:"inventory"`
	Flags     map[string]any   `json:"flags"`
	Spells    []string         `json:"spells"`
	Statuses  []StatusInstance `json:"statuses"`
}

// BattleState is the runtime state of an active battle.
type BattleState struct {
	Active          bool           `json:"active"`
	EnemyID         string         `json:"enemy_id"`
	EnemyHP         int            `json:"enemy_hp"`
	Turn            int            `json:"turn"`
	PlayerDefending bool           `json:"player_defending"`
	EnemyDefending  bool           `json:"enemy_defending"`
	Cooldowns       map[string]int `json:"cooldowns"`
}

// BindState is the runtime state of an active bind sequence.
type BindState struct {
	Active        bool    `json:"active"`
	SequenceID    string  `json:"sequence_id"`
	Stage         int     `json:"stage"`
	Turn          int     `json:"turn"`
	NextTurnBonus float64 `json:"next_turn_bonus"`
}

// GameState is the complete mutable game state.
type GameState struct {
	CurrentNode  string                       `json:"current_node"`
	Player       Player                       `json:"player"`
	NodeStates   map[string]string            `json:"node_states"`
	ObjectStates map[string]map[string]string `json:"object_states"`
	Visited      map[string]bool              `json:"visited"`
	Battle       BattleState                  `json:"battle"`
	Bind         BindState                    `json:"bind"`
	GameOver     bool                         `json:"game_over"`
	GameClear    bool                         `json:"game_clear"`
	Ending       string                       `json:"ending"`
	RNGSeed      int64                        `json:"rng_seed"`
	RNGPosition  int64                        `json:"rng_position"`
	TurnCount    int                          `json:"turn_count"`
}

// Result is the output of resolving one player choice or enemy turn.
type Result struct {
	Messages []string
	Err      error // non-fatal resolution error surfaced for display
}
