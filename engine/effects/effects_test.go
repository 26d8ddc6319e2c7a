package effects

import (
	"strings"
	"testing"

	"github.com/nathoo/duskcore/engine/fault"
	"github.com/nathoo/duskcore/engine/rng"
	"github.com/nathoo/duskcore/engine/state"
	"github.com/nathoo/duskcore/types"
)

func testDefs() *state.Defs {
	return &state.Defs{
		Entry: "cell",
		Nodes: map[string]types.NodeDef{
			"cell": {
				ID: "cell",
				Machine: types.MachineDef{
					Initial: "locked",
					Order:   []string{"locked", "open"},
					States:  map[string]types.State{"locked": {}, "open": {}},
				},
			},
			"hall": {ID: "hall"},
		},
		Items: map[string]types.ItemDef{
			"herb": {ID: "herb", Name: "薬草"},
		},
		Pools: map[string]types.PoolDef{
			"scraps": {ID: "scraps", Options: []types.WeightedOption{
				{Weight: 100, Value: "herb"},
			}},
		},
		Sequences: map[string]types.BindSequenceDef{
			"vines": {
				ID:   "vines",
				Name: "蔦の拘束",
				Stages: []types.BindStage{
					{Index: 0, Description: "蔦が足に絡みつく。"},
				},
			},
		},
	}
}

func newCtx() *Context {
	return &Context{RNG: rng.New(1), CasterName: "敵", TargetName: "あなた"}
}

func apply(t *testing.T, s *types.GameState, defs *state.Defs, effs []types.Effect, ctx *Context) *Outcome {
	t.Helper()
	out, err := Apply(s, defs, effs, ctx)
	if err != nil {
		t.Fatalf("Apply: %v", err)
	}
	return out
}

func TestMessageAndInterpolation(t *testing.T) {
	defs := testDefs()
	s := state.New(defs, 1)
	out := apply(t, s, defs, []types.Effect{
		{Type: "message", Params: map[string]any{"text": "{caster}が{target}を見ている。"}},
	}, newCtx())
	if len(out.Messages) != 1 || out.Messages[0] != "敵があなたを見ている。" {
		t.Fatalf("messages = %v", out.Messages)
	}
}

func TestOrderedExecution(t *testing.T) {
	defs := testDefs()
	s := state.New(defs, 1)
	out := apply(t, s, defs, []types.Effect{
		{Type: "message", Params: map[string]any{"text": "first"}},
		{Type: "set_flag", Params: map[string]any{"flag": "done"}},
		{Type: "message", Params: map[string]any{"text": "second"}},
	}, newCtx())
	if len(out.Messages) != 2 || out.Messages[0] != "first" || out.Messages[1] != "second" {
		t.Fatalf("messages = %v", out.Messages)
	}
	if !state.FlagTrue(s, "done") {
		t.Fatal("flag not set")
	}
}

func TestAbortLeavesEarlierMutations(t *testing.T) {
	defs := testDefs()
	s := state.New(defs, 1)
	_, err := Apply(s, defs, []types.Effect{
		{Type: "modify_stat", Params: map[string]any{"stat": "hp", "operator": "-", "value": 10}},
		{Type: "no_such_action", Params: map[string]any{}},
		{Type: "modify_stat", Params: map[string]any{"stat": "hp", "operator": "-", "value": 10}},
	}, newCtx())
	if !fault.Is(err, fault.Config) {
		t.Fatalf("got %v, want configuration error", err)
	}
	if !strings.Contains(err.Error(), "effect 1") {
		t.Fatalf("error does not name the failing index: %v", err)
	}
	if got := state.GetStat(s, "hp"); got != 70 {
		t.Fatalf("hp = %d, want 70 (first effect applied, third not)", got)
	}
}

func TestGetItemNegativeCount(t *testing.T) {
	defs := testDefs()
	s := state.New(defs, 1)
	_, err := Apply(s, defs, []types.Effect{
		{Type: "get_item", Params: map[string]any{"item": "herb", "count": -1}},
	}, newCtx())
	if !fault.Is(err, fault.State) {
		t.Fatalf("got %v, want state error", err)
	}
}

func TestGetItemUsesDisplayName(t *testing.T) {
	defs := testDefs()
	s := state.New(defs, 1)
	out := apply(t, s, defs, []types.Effect{
		{Type: "get_item", Params: map[string]any{"item": "herb"}},
	}, newCtx())
	if len(out.Messages) != 1 || !strings.Contains(out.Messages[0], "薬草") {
		t.Fatalf("messages = %v", out.Messages)
	}
	if state.ItemCount(s, "herb") != 1 {
		t.Fatalf("count = %d", state.ItemCount(s, "herb"))
	}
}

func TestItemRoll(t *testing.T) {
	defs := testDefs()
	s := state.New(defs, 1)
	apply(t, s, defs, []types.Effect{
		{Type: "item_roll", Params: map[string]any{"pool": "scraps", "count": 2}},
	}, newCtx())
	if state.ItemCount(s, "herb") != 2 {
		t.Fatalf("count = %d, want 2", state.ItemCount(s, "herb"))
	}
	_, err := Apply(s, defs, []types.Effect{
		{Type: "item_roll", Params: map[string]any{"pool": "nowhere"}},
	}, newCtx())
	if !fault.Is(err, fault.Config) {
		t.Fatalf("unknown pool: got %v, want configuration error", err)
	}
}

func TestChangeNodeStateRejectionDoesNotAbort(t *testing.T) {
	defs := testDefs()
	s := state.New(defs, 1)
	out := apply(t, s, defs, []types.Effect{
		{Type: "change_node_state", Params: map[string]any{"node": "cell", "state": "flooded"}},
		{Type: "message", Params: map[string]any{"text": "still here"}},
	}, newCtx())
	if len(out.Rejections) != 1 {
		t.Fatalf("rejections = %v", out.Rejections)
	}
	if len(out.Messages) != 1 || out.Messages[0] != "still here" {
		t.Fatalf("later effects did not run: %v", out.Messages)
	}
	if got := state.NodeState(s, defs, "cell"); got != "locked" {
		t.Fatalf("state = %q, want locked", got)
	}
}

func TestStageRegressClamp(t *testing.T) {
	defs := testDefs()
	s := state.New(defs, 1)
	s.Bind = types.BindState{Active: true, SequenceID: "vines", Stage: 0}
	apply(t, s, defs, []types.Effect{
		{Type: "stage_regress", Params: map[string]any{"amount": 5}},
	}, newCtx())
	if s.Bind.Stage != -1 {
		t.Fatalf("stage = %d, want -1", s.Bind.Stage)
	}
}

func TestSwitchSequence(t *testing.T) {
	defs := testDefs()
	s := state.New(defs, 1)
	out := apply(t, s, defs, []types.Effect{
		{Type: "switch_bind_sequence", Params: map[string]any{"target": "vines"}},
	}, newCtx())
	if !s.Bind.Active || s.Bind.SequenceID != "vines" || s.Bind.Stage != 0 {
		t.Fatalf("bind = %+v", s.Bind)
	}
	if len(out.Messages) != 2 || out.Messages[0] != "【蔦の拘束】" {
		t.Fatalf("messages = %v", out.Messages)
	}
}

func TestSwitchSequenceCap(t *testing.T) {
	defs := testDefs()
	s := state.New(defs, 1)
	ctx := newCtx()
	eff := types.Effect{Type: "switch_bind_sequence", Params: map[string]any{"target": "vines"}}
	var effs []types.Effect
	for i := 0; i < 9; i++ {
		effs = append(effs, eff)
	}
	_, err := Apply(s, defs, effs, ctx)
	if !fault.Is(err, fault.State) {
		t.Fatalf("got %v, want state error on switch cap", err)
	}
}

func TestDealDamageTargets(t *testing.T) {
	defs := testDefs()
	s := state.New(defs, 1)
	_, err := Apply(s, defs, []types.Effect{
		{Type: "deal_damage", Params: map[string]any{"target": "enemy", "damage": 5}},
	}, newCtx())
	if !fault.Is(err, fault.State) {
		t.Fatalf("enemy damage outside battle: got %v, want state error", err)
	}

	s.Battle = types.BattleState{Active: true, EnemyHP: 30}
	apply(t, s, defs, []types.Effect{
		{Type: "deal_damage", Params: map[string]any{"target": "enemy", "damage": 5}},
		{Type: "deal_damage", Params: map[string]any{"target": "self", "damage": 7}},
		{Type: "deal_damage", Params: map[string]any{"target": "self", "damage": 4, "damage_type": "pt"}},
	}, newCtx())
	if s.Battle.EnemyHP != 25 {
		t.Fatalf("enemy hp = %d, want 25", s.Battle.EnemyHP)
	}
	if state.GetStat(s, "hp") != 73 {
		t.Fatalf("hp = %d, want 73", state.GetStat(s, "hp"))
	}
	if state.GetStat(s, "pt") != 4 {
		t.Fatalf("pt = %d, want 4", state.GetStat(s, "pt"))
	}
}

func TestGameOverHalts(t *testing.T) {
	defs := testDefs()
	s := state.New(defs, 1)
	out := apply(t, s, defs, []types.Effect{
		{Type: "game_over", Params: map[string]any{"reason": "終わり"}},
		{Type: "message", Params: map[string]any{"text": "unreachable"}},
	}, newCtx())
	if !out.Halted || !s.GameOver {
		t.Fatalf("outcome = %+v, GameOver = %v", out, s.GameOver)
	}
	if len(out.Messages) != 1 || out.Messages[0] != "終わり" {
		t.Fatalf("messages = %v", out.Messages)
	}
}

func TestPluginDispatch(t *testing.T) {
	defs := testDefs()
	s := state.New(defs, 1)
	ctx := newCtx()
	ctx.Plugins = stubPlugins{}
	out := apply(t, s, defs, []types.Effect{
		{Type: "custom_fanfare", Params: map[string]any{}},
	}, ctx)
	if len(out.Messages) != 1 || out.Messages[0] != "fanfare" {
		t.Fatalf("messages = %v", out.Messages)
	}
}

type stubPlugins struct{}

func (stubPlugins) Has(actionType string) bool { return actionType == "custom_fanfare" }

func (stubPlugins) Run(actionType string, s *types.GameState, params map[string]any) ([]string, error) {
	return []string{"fanfare"}, nil
}
