// Package plugin implements the action registry: named effect handlers
// registered from Go or from sandboxed Lua scripts, dispatched when the
// effect pipeline meets an action type the core does not implement.
package plugin

import (
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/nathoo/duskcore/engine/fault"
	"github.com/nathoo/duskcore/engine/state"
	"github.com/nathoo/duskcore/types"
	lua "github.com/yuin/gopher-lua"
)

// Handler is a Go-native plugin action.
type Handler func(s *types.GameState, params map[string]any) ([]string, error)

// Registry maps action type names to handlers. It satisfies the effect
// pipeline's PluginRunner interface.
type Registry struct {
	handlers map[string]Handler
	lua      map[string]*lua.LFunction
	vm       *lua.LState
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		handlers: map[string]Handler{},
		lua:      map[string]*lua.LFunction{},
	}
}

// Register adds a Go handler. Registering a name twice is a
// configuration error.
func (r *Registry) Register(name string, h Handler) error {
	if r.Has(name) {
		return fault.Configf("plugin action %q registered twice", name)
	}
	r.handlers[name] = h
	return nil
}

// Has reports whether an action type is registered.
func (r *Registry) Has(name string) bool {
	if _, ok := r.handlers[name]; ok {
		return true
	}
	_, ok := r.lua[name]
	return ok
}

// Run dispatches a registered action.
func (r *Registry) Run(name string, s *types.GameState, params map[string]any) ([]string, error) {
	if h, ok := r.handlers[name]; ok {
		return h(s, params)
	}
	if fn, ok := r.lua[name]; ok {
		return r.runLua(name, fn, s, params)
	}
	return nil, fault.Configf("plugin action %q is not registered", name)
}

// Close releases the Lua VM, if any scripts were loaded.
func (r *Registry) Close() {
	if r.vm != nil {
		r.vm.Close()
		r.vm = nil
	}
}

// LoadScripts executes every .lua file in dir inside a sandboxed VM.
// Scripts register actions with Action("name", function(api, params) end).
func (r *Registry) LoadScripts(dir string) error {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return fault.Wrap(fault.Config, err, "reading plugin directory %s", dir)
	}
	var files []string
	for _, e := range entries {
		if !e.IsDir() && strings.HasSuffix(e.Name(), ".lua") {
			files = append(files, e.Name())
		}
	}
	sort.Strings(files)

	if r.vm == nil {
		r.vm = newVM()
	}
	L := r.vm

	L.SetGlobal("Action", L.NewFunction(func(L *lua.LState) int {
		name := L.CheckString(1)
		fn := L.CheckFunction(2)
		if r.Has(name) {
			L.RaiseError("action %q registered twice", name)
			return 0
		}
		r.lua[name] = fn
		return 0
	}))

	for _, f := range files {
		if err := L.DoFile(filepath.Join(dir, f)); err != nil {
			return fault.Wrap(fault.Config, err, "executing plugin %s", f)
		}
	}
	return nil
}

// newVM creates a sandboxed Lua state with only the safe libraries.
func newVM() *lua.LState {
	L := lua.NewState(lua.Options{SkipOpenLibs: true})
	lua.OpenBase(L)
	lua.OpenTable(L)
	lua.OpenString(L)
	lua.OpenMath(L)
	for _, name := range []string{
		"dofile", "loadfile", "load", "loadstring",
		"rawset", "rawget", "rawequal",
		"collectgarbage",
	} {
		L.SetGlobal(name, lua.LNil)
	}
	// math.random would break determinism; plugins have no RNG access.
	if mathTbl, ok := L.GetGlobal("math").(*lua.LTable); ok {
		mathTbl.RawSetString("random", lua.LNil)
		mathTbl.RawSetString("randomseed", lua.LNil)
	}
	return L
}

// runLua calls a Lua handler with an api table and the effect params.
// Messages the script emits via api.say are collected and returned.
func (r *Registry) runLua(name string, fn *lua.LFunction, s *types.GameState, params map[string]any) ([]string, error) {
	L := r.vm
	var messages []string
	api := apiTable(L, s, &messages)

	if err := L.CallByParam(lua.P{Fn: fn, NRet: 0, Protect: true}, api, toLuaTable(L, params)); err != nil {
		return messages, fault.Wrap(fault.Eval, err, "plugin action %q", name)
	}
	return messages, nil
}

// apiTable exposes the state accessors a plugin may use.
func apiTable(L *lua.LState, s *types.GameState, messages *[]string) *lua.LTable {
	api := L.NewTable()

	api.RawSetString("say", L.NewFunction(func(L *lua.LState) int {
		*messages = append(*messages, L.CheckString(1))
		return 0
	}))
	api.RawSetString("get_stat", L.NewFunction(func(L *lua.LState) int {
		L.Push(lua.LNumber(state.GetStat(s, L.CheckString(1))))
		return 1
	}))
	api.RawSetString("modify_stat", L.NewFunction(func(L *lua.LState) int {
		state.ModifyStat(s, L.CheckString(1), L.CheckString(2), L.CheckInt(3))
		return 0
	}))
	api.RawSetString("get_flag", L.NewFunction(func(L *lua.LState) int {
		L.Push(toLuaValue(L, state.GetFlag(s, L.CheckString(1))))
		return 1
	}))
	api.RawSetString("set_flag", L.NewFunction(func(L *lua.LState) int {
		state.SetFlag(s, L.CheckString(1), fromLuaValue(L.Get(2)))
		return 0
	}))
	api.RawSetString("item_count", L.NewFunction(func(L *lua.LState) int {
		L.Push(lua.LNumber(state.ItemCount(s, L.CheckString(1))))
		return 1
	}))
	api.RawSetString("add_item", L.NewFunction(func(L *lua.LState) int {
		state.AddItem(s, L.CheckString(1), L.OptInt(2, 1))
		return 0
	}))
	api.RawSetString("has_status", L.NewFunction(func(L *lua.LState) int {
		L.Push(lua.LBool(state.HasStatus(s, L.CheckString(1))))
		return 1
	}))
	return api
}

func toLuaTable(L *lua.LState, m map[string]any) *lua.LTable {
	tbl := L.NewTable()
	for k, v := range m {
		tbl.RawSetString(k, toLuaValue(L, v))
	}
	return tbl
}

func toLuaValue(L *lua.LState, v any) lua.LValue {
	switch x := v.(type) {
	case nil:
		return lua.LNil
	case bool:
		return lua.LBool(x)
	case int:
		return lua.LNumber(x)
	case int64:
		return lua.LNumber(x)
	case float64:
		return lua.LNumber(x)
	case string:
		return lua.LString(x)
	case map[string]any:
		return toLuaTable(L, x)
	default:
		return lua.LNil
	}
}

func fromLuaValue(v lua.LValue) any {
	switch x := v.(type) {
	case lua.LBool:
		return bool(x)
	case lua.LNumber:
		return float64(x)
	case lua.LString:
		return string(x)
	default:
		return nil
	}
}
