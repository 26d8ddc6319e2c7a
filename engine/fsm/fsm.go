// Package fsm drives node and object state machines: explicit guarded
// transitions plus trigger-based auto-transitions. When several state
// triggers are satisfied at once, authoring order wins — that ordering
// is a contract, not an accident.
package fsm

import (
	"github.com/nathoo/duskcore/engine/fault"
	"github.com/nathoo/duskcore/engine/rules"
	"github.com/nathoo/duskcore/engine/state"
	"github.com/nathoo/duskcore/types"
)

// TransitionNode sets a node's current state explicitly. A transition
// to an undefined state is rejected and the current state retained.
func TransitionNode(s *types.GameState, defs *state.Defs, nodeID, stateID string) error {
	node, ok := defs.Nodes[nodeID]
	if !ok {
		return fault.Statef("node %q: unknown node", nodeID)
	}
	if _, ok := node.Machine.States[stateID]; !ok {
		return fault.Statef("node %q: no state %q, staying in %q",
			nodeID, stateID, state.NodeState(s, defs, nodeID))
	}
	state.SetNodeState(s, nodeID, stateID)
	return nil
}

// TransitionObject sets an object's current state explicitly, with the
// same rejection semantics as TransitionNode.
func TransitionObject(s *types.GameState, defs *state.Defs, nodeID, objectID, stateID string) error {
	node, ok := defs.Nodes[nodeID]
	if !ok {
		return fault.Statef("node %q: unknown node", nodeID)
	}
	for _, obj := range node.Objects {
		if obj.ID != objectID {
			continue
		}
		if _, ok := obj.Machine.States[stateID]; !ok {
			return fault.Statef("object %q in node %q: no state %q, staying in %q",
				objectID, nodeID, stateID, state.ObjectState(s, defs, nodeID, objectID))
		}
		state.SetObjectState(s, nodeID, objectID, stateID)
		return nil
	}
	return fault.Statef("node %q: unknown object %q", nodeID, objectID)
}

// satisfied returns the state IDs whose triggers currently pass, in
// authoring order.
func satisfied(machine types.MachineDef, s *types.GameState) []string {
	var out []string
	for _, id := range machine.Order {
		st := machine.States[id]
		if st.Trigger != nil && rules.EvalTrigger(st.Trigger, s) {
			out = append(out, id)
		}
	}
	return out
}

// reevaluate applies the trigger contract to one machine: if the
// current state is not among the satisfied-trigger states, switch to
// the first satisfied one. Returns the new state ID, or "" when no
// switch happens.
func reevaluate(machine types.MachineDef, current string, s *types.GameState) string {
	sat := satisfied(machine, s)
	if len(sat) == 0 {
		return ""
	}
	for _, id := range sat {
		if id == current {
			return ""
		}
	}
	return sat[0]
}

// ReevaluateNode re-checks one node's triggers, switching state if one
// fires. Returns the new state ID, or "" if unchanged.
func ReevaluateNode(s *types.GameState, defs *state.Defs, nodeID string) string {
	node, ok := defs.Nodes[nodeID]
	if !ok {
		return ""
	}
	next := reevaluate(node.Machine, state.NodeState(s, defs, nodeID), s)
	if next != "" {
		state.SetNodeState(s, nodeID, next)
	}
	return next
}

// ReevaluateAll re-checks every node and object trigger. Called on load
// and after every effect application that could change referenced
// flags or stats.
func ReevaluateAll(s *types.GameState, defs *state.Defs) {
	for nodeID, node := range defs.Nodes {
		ReevaluateNode(s, defs, nodeID)
		for _, obj := range node.Objects {
			next := reevaluate(obj.Machine, state.ObjectState(s, defs, nodeID, obj.ID), s)
			if next != "" {
				state.SetObjectState(s, nodeID, obj.ID, next)
			}
		}
	}
}

// NodeState returns the node's current State definition.
func NodeState(s *types.GameState, defs *state.Defs, nodeID string) (types.State, bool) {
	node, ok := defs.Nodes[nodeID]
	if !ok {
		return types.State{}, false
	}
	st, ok := node.Machine.States[state.NodeState(s, defs, nodeID)]
	return st, ok
}

// ObjectState returns an object's current State definition.
func ObjectState(s *types.GameState, defs *state.Defs, nodeID, objectID string) (types.State, bool) {
	node, ok := defs.Nodes[nodeID]
	if !ok {
		return types.State{}, false
	}
	for _, obj := range node.Objects {
		if obj.ID == objectID {
			st, ok := obj.Machine.States[state.ObjectState(s, defs, nodeID, objectID)]
			return st, ok
		}
	}
	return types.State{}, false
}

// AvailableActions filters a state's actions by their requirements.
func AvailableActions(st types.State, s *types.GameState) []types.Action {
	var out []types.Action
	for _, a := range st.Actions {
		if rules.CheckAll(a.Requirements, s) {
			out = append(out, a)
		}
	}
	return out
}
