package save

import (
	"testing"

	"github.com/nathoo/duskcore/engine/state"
	"github.com/nathoo/duskcore/types"
)

func testDefs() *state.Defs {
	return &state.Defs{
		Title: "duskcore test",
		Entry: "start",
		Nodes: map[string]types.NodeDef{"start": {ID: "start"}},
	}
}

func TestRoundTrip(t *testing.T) {
	defs := testDefs()
	s := state.New(defs, 42)
	state.SetStat(s, "hp", 33)
	state.SetFlag(s, "lamp", true)
	state.AddItem(s, "herb", 2)
	state.SetNodeState(s, "start", "lit")
	s.RNGSeed = 42
	s.RNGPosition = 17
	s.TurnCount = 9

	data, err := Save(s, defs)
	if err != nil {
		t.Fatalf("Save: %v", err)
	}
	sd, err := Load(data)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if sd.Version != Version || sd.Game != "duskcore test" {
		t.Fatalf("header = %q / %q", sd.Version, sd.Game)
	}

	var restored types.GameState
	ApplySave(&restored, sd)
	if state.GetStat(&restored, "hp") != 33 {
		t.Fatalf("hp = %d", state.GetStat(&restored, "hp"))
	}
	if !state.FlagTrue(&restored, "lamp") {
		t.Fatal("flag lost")
	}
	if state.ItemCount(&restored, "herb") != 2 {
		t.Fatal("inventory lost")
	}
	if restored.NodeStates["start"] != "lit" {
		t.Fatal("node state lost")
	}
	if restored.RNGSeed != 42 || restored.RNGPosition != 17 || restored.TurnCount != 9 {
		t.Fatalf("rng/turn fields = %d/%d/%d", restored.RNGSeed, restored.RNGPosition, restored.TurnCount)
	}
}

func TestLoadNilMaps(t *testing.T) {
	sd, err := Load([]byte(`{"version":"1","game":"x","state":{"battle":{"active":true}}}`))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	st := &sd.State
	if st.Player.Ability == nil || st.Player.Inventory == nil || st.Player.Flags == nil {
		t.Fatal("player maps nil after load")
	}
	if st.NodeStates == nil || st.ObjectStates == nil || st.Visited == nil {
		t.Fatal("world maps nil after load")
	}
	if st.Battle.Cooldowns == nil {
		t.Fatal("battle cooldowns nil for active battle")
	}
}

func TestLoadGarbage(t *testing.T) {
	if _, err := Load([]byte("not json")); err == nil {
		t.Fatal("garbage save loaded")
	}
}
