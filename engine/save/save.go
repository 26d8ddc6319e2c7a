// Package save implements JSON serialization and deserialization of
// game state. The save carries the RNG seed and draw position, so a
// loaded game continues the exact random stream it left.
package save

import (
	"encoding/json"

	"github.com/nathoo/duskcore/engine/state"
	"github.com/nathoo/duskcore/types"
)

// Version is bumped when the save layout changes incompatibly.
const Version = "1"

// SaveData is the JSON-serializable save format.
type SaveData struct {
	Version string          `json:"version"`
	Game    string          `json:"game"`
	State   types.GameState `json:"state"`
}

// Save serializes game state to JSON bytes.
func Save(s *types.GameState, defs *state.Defs) ([]byte, error) {
	data := SaveData{
		Version: Version,
		Game:    defs.Title,
		State:   *s,
	}
	return json.MarshalIndent(data, "", "  ")
}

// Load deserializes JSON bytes into SaveData.
func Load(data []byte) (*SaveData, error) {
	var sd SaveData
	if err := json.Unmarshal(data, &sd); err != nil {
		return nil, err
	}
	// Ensure maps are never nil after load.
	st := &sd.State
	if st.Player.Ability == nil {
		st.Player.Ability = map[string]int{}
	}
	if st.Player.Inventory == nil {
		st.Player.Inventory = map[string]int{}
	}
	if st.Player.Flags == nil {
		st.Player.Flags = map[string]any{}
	}
	if st.Player.Statuses == nil {
		st.Player.Statuses = []types.StatusInstance{}
	}
	if st.NodeStates == nil {
		st.NodeStates = map[string]string{}
	}
	if st.ObjectStates == nil {
		st.ObjectStates = map[string]map[string]string{}
	}
	if st.Visited == nil {
		st.Visited = map[string]bool{}
	}
	if st.Battle.Active && st.Battle.Cooldowns == nil {
		st.Battle.Cooldowns = map[string]int{}
	}
	return &sd, nil
}

// ApplySave replaces the live state with the loaded one.
func ApplySave(s *types.GameState, sd *SaveData) {
	*s = sd.State
}
