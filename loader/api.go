package loader

import (
	lua "github.com/yuin/gopher-lua"
)

// registerAPI registers the Lua constructors as globals. Every
// constructor except Game is curried: Node "id" { ... }.
func registerAPI(L *lua.LState, coll *collector) {
	L.SetGlobal("Game", L.NewFunction(func(L *lua.LState) int {
		coll.game = L.CheckTable(1)
		return 0
	}))

	curried := func(sink *[]rawDef) lua.LGFunction {
		return func(L *lua.LState) int {
			id := L.CheckString(1)
			L.Push(L.NewFunction(func(L *lua.LState) int {
				*sink = append(*sink, rawDef{id: id, table: L.CheckTable(1)})
				return 0
			}))
			return 1
		}
	}

	L.SetGlobal("Node", L.NewFunction(curried(&coll.nodes)))
	L.SetGlobal("Enemy", L.NewFunction(curried(&coll.enemies)))
	L.SetGlobal("Sequence", L.NewFunction(curried(&coll.sequences)))
	L.SetGlobal("Spell", L.NewFunction(curried(&coll.spells)))
	L.SetGlobal("Status", L.NewFunction(curried(&coll.statuses)))
	L.SetGlobal("Item", L.NewFunction(curried(&coll.items)))
	L.SetGlobal("Pool", L.NewFunction(curried(&coll.pools)))

	registerHelpers(L)
}

// registerHelpers registers the shorthand builders content files use
// inside requirement, effect, and check tables.
func registerHelpers(L *lua.LState) {
	builder := func(typ string, keys ...string) lua.LGFunction {
		return func(L *lua.LState) int {
			tbl := L.NewTable()
			tbl.RawSetString("type", lua.LString(typ))
			for i, key := range keys {
				tbl.RawSetString(key, L.Get(i+1))
			}
			L.Push(tbl)
			return 1
		}
	}

	// Requirements and triggers.
	L.SetGlobal("StatCheck", L.NewFunction(builder("stat_check", "stat", "operator", "value")))
	L.SetGlobal("FlagCheck", L.NewFunction(builder("flag_check", "flag", "value")))
	L.SetGlobal("ItemCheck", L.NewFunction(builder("item_check", "item", "count")))

	// Common effects.
	L.SetGlobal("Say", L.NewFunction(builder("message", "text")))
	L.SetGlobal("Goto", L.NewFunction(builder("navigation", "target")))
	L.SetGlobal("GetItem", L.NewFunction(builder("get_item", "item", "count")))
	L.SetGlobal("SetFlag", L.NewFunction(builder("set_flag", "flag", "value")))
	L.SetGlobal("ModifyStat", L.NewFunction(builder("modify_stat", "stat", "operator", "value")))
	L.SetGlobal("Battle", L.NewFunction(builder("battle", "enemy")))
	L.SetGlobal("RunSequence", L.NewFunction(builder("run_bind_sequence", "sequence", "stage")))
}
