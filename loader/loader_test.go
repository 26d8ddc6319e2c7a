package loader

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/nathoo/duskcore/types"
)

func writeGame(t *testing.T, files map[string]string) string {
	t.Helper()
	dir := t.TempDir()
	for name, content := range files {
		if err := os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644); err != nil {
			t.Fatalf("WriteFile %s: %v", name, err)
		}
	}
	return dir
}

const minimalGame = `
Game {
	title = "テスト",
	start = "cell",
}

Node "cell" {
	name = "独房",
	states = {
		{
			id = "dark",
			description = "暗い。",
			actions = {
				{ id = "light", label = "灯す", effects = {
					Say("灯した。"),
					SetFlag("lamp", true),
				}},
			},
		},
		{
			id = "lit",
			description = "明るい。",
			trigger = FlagCheck("lamp"),
			actions = {
				{ id = "exit", label = "出る", effects = { Goto("hall") } },
			},
		},
	},
}

Node "hall" {
	name = "廊下",
	states = {
		{ id = "default", description = "長い廊下。" },
	},
}
`

func TestLoadMinimal(t *testing.T) {
	dir := writeGame(t, map[string]string{"game.lua": minimalGame})
	defs, err := Load(dir)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if defs.Title != "テスト" || defs.Entry != "cell" {
		t.Fatalf("header = %q / %q", defs.Title, defs.Entry)
	}

	cell, ok := defs.Nodes["cell"]
	if !ok {
		t.Fatal("cell not compiled")
	}
	if cell.DisplayName != "独房" {
		t.Fatalf("display name = %q", cell.DisplayName)
	}
	// Array order is the authoring order, first state is the initial.
	if len(cell.Machine.Order) != 2 || cell.Machine.Order[0] != "dark" || cell.Machine.Order[1] != "lit" {
		t.Fatalf("order = %v", cell.Machine.Order)
	}
	if cell.Machine.Initial != "dark" {
		t.Fatalf("initial = %q", cell.Machine.Initial)
	}

	lit := cell.Machine.States["lit"]
	if lit.Trigger == nil || lit.Trigger.Type != "flag_check" || lit.Trigger.Flag != "lamp" {
		t.Fatalf("trigger = %+v", lit.Trigger)
	}

	dark := cell.Machine.States["dark"]
	if len(dark.Actions) != 1 || len(dark.Actions[0].Effects) != 2 {
		t.Fatalf("dark actions = %+v", dark.Actions)
	}
	if dark.Actions[0].Effects[0].Type != "message" {
		t.Fatalf("effect = %+v", dark.Actions[0].Effects[0])
	}
}

func TestLoadSequenceAndFormula(t *testing.T) {
	game := minimalGame + `
Sequence "vines" {
	name = "蔦の拘束",
	config = {
		base_difficulty = 40,
		escape_target = "cell",
		loop_damage = { hp = 5, pt = 8 },
	},
	stages = {
		{
			description = "絡みつく。",
			overrides = {
				resist_hard = { enabled = false, reason = "まだ浅い" },
			},
			custom_actions = {
				{
					id = "struggle",
					label = "もがく",
					cost = { mp = 5 },
					check = {
						kind = "stat_based",
						base_rate = 10,
						formula = "筋力 * 0.6 + 正気 * 0.4",
						modifiers = {
							{ type = "flag_bonus", flag = "wait_bonus", amount = 20 },
						},
					},
					on_success = { effects = { Say("ほどけた！") } },
					on_failure = { effects = { Say("だめだ……") } },
				},
			},
		},
		{ description = "締め付けられる。" },
	},
}
`
	dir := writeGame(t, map[string]string{"game.lua": game})
	defs, err := Load(dir)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	seq, ok := defs.Sequences["vines"]
	if !ok {
		t.Fatal("sequence not compiled")
	}
	if seq.Config.BaseDifficulty != 40 || seq.Config.EscapeTarget != "cell" {
		t.Fatalf("config = %+v", seq.Config)
	}
	if seq.Config.LoopDamage["hp"] != 5 || seq.Config.LoopDamage["pt"] != 8 {
		t.Fatalf("loop damage = %v", seq.Config.LoopDamage)
	}
	// Stage indexes default to the running counter.
	if seq.Stages[0].Index != 0 || seq.Stages[1].Index != 1 {
		t.Fatalf("stage indexes = %d / %d", seq.Stages[0].Index, seq.Stages[1].Index)
	}

	ov, ok := seq.Stages[0].Overrides["resist_hard"]
	if !ok || ov.Enabled || ov.Reason != "まだ浅い" {
		t.Fatalf("override = %+v", ov)
	}

	ca := seq.Stages[0].CustomActions[0]
	if ca.Cost["mp"] != 5 {
		t.Fatalf("cost = %v", ca.Cost)
	}
	if ca.Check == nil || ca.Check.Kind != "stat_based" || ca.Check.BaseRate != 10 {
		t.Fatalf("check = %+v", ca.Check)
	}
	if len(ca.Check.Modifiers) != 1 || ca.Check.Modifiers[0].Amount != 20 {
		t.Fatalf("modifiers = %+v", ca.Check.Modifiers)
	}

	// The formula was compiled at load time.
	if _, ok := defs.Formulas["筋力 * 0.6 + 正気 * 0.4"]; !ok {
		t.Fatalf("formula not precompiled: %v", defs.Formulas)
	}
}

func TestLoadEnemyAndPool(t *testing.T) {
	game := minimalGame + `
Enemy "shade" {
	name = "影",
	stats = { hp = 40, atk = 5 },
	text = { defeat = "霧散した。" },
	attack_texts = { "爪を振るう！", "体当たり！" },
	rewards = {
		exp = 10,
		drops = {
			{ weight = 30, value = "herb" },
			{ weight = 70, value = "" },
		},
	},
	behavior = {
		kind = "priority_selector",
		children = {
			{
				kind = "sequence",
				conditions = {
					{ type = "check_self_stat", stat = "hp", operator = "<", value = 20 },
				},
				action = { type = "defend" },
			},
			{
				kind = "weighted_random",
				options = {
					{ weight = 80, action = { type = "normal_attack" } },
					{ action = { type = "wait" } },
				},
			},
		},
	},
}

Item "herb" {
	name = "薬草",
	kind = "consumable",
	effects = { ModifyStat("hp", "+", 20) },
}

Pool "drops" {
	options = { "herb", { weight = 10, value = "" } },
}
`
	dir := writeGame(t, map[string]string{"game.lua": game})
	defs, err := Load(dir)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	shade := defs.Enemies["shade"]
	if shade.Stats.HP != 40 || shade.Stats.Attack != 5 {
		t.Fatalf("stats = %+v", shade.Stats)
	}
	if len(shade.AttackTexts) != 2 {
		t.Fatalf("attack texts = %v", shade.AttackTexts)
	}
	if shade.Behavior == nil || shade.Behavior.Kind != "priority_selector" || len(shade.Behavior.Children) != 2 {
		t.Fatalf("behavior = %+v", shade.Behavior)
	}

	wr := shade.Behavior.Children[1]
	if len(wr.Options) != 2 {
		t.Fatalf("options = %+v", wr.Options)
	}
	if wr.Options[0].Weight != 80 {
		t.Fatalf("option weight = %v", wr.Options[0].Weight)
	}
	// The second option has no weight and gets the omitted sentinel.
	if wr.Options[1].Weight != types.Omitted {
		t.Fatalf("omitted weight = %v", wr.Options[1].Weight)
	}
	if a, ok := wr.Options[1].Value.(*types.EnemyAction); !ok || a.Type != "wait" {
		t.Fatalf("option value = %+v", wr.Options[1].Value)
	}

	pool := defs.Pools["drops"]
	if len(pool.Options) != 2 {
		t.Fatalf("pool = %+v", pool.Options)
	}
	// A bare string is an omitted-weight entry.
	if pool.Options[0].Weight != types.Omitted || pool.Options[0].Value != "herb" {
		t.Fatalf("bare option = %+v", pool.Options[0])
	}
}

func TestLoadMultipleFiles(t *testing.T) {
	dir := writeGame(t, map[string]string{
		"game.lua": `Game { title = "t", start = "a" }`,
		"b.lua":    `Node "b" { states = { { id = "default" } } }`,
		"a.lua":    `Node "a" { states = { { id = "default" } } }`,
	})
	defs, err := Load(dir)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(defs.Nodes) != 2 {
		t.Fatalf("nodes = %v", defs.Nodes)
	}
}

func TestLoadMissingEntryNode(t *testing.T) {
	dir := writeGame(t, map[string]string{
		"game.lua": `Game { title = "t", start = "nowhere" }
Node "somewhere" { states = { { id = "default" } } }`,
	})
	_, err := Load(dir)
	if err == nil || !strings.Contains(err.Error(), "nowhere") {
		t.Fatalf("got %v, want missing entry node error", err)
	}
}

func TestLoadBadFormula(t *testing.T) {
	game := minimalGame + `
Sequence "vines" {
	name = "v",
	stages = {
		{
			custom_actions = {
				{ id = "x", label = "x", check = { kind = "formula", expr = "1 + " } },
			},
		},
	},
}
`
	dir := writeGame(t, map[string]string{"game.lua": game})
	if _, err := Load(dir); err == nil {
		t.Fatal("malformed formula loaded")
	}
}

func TestLoadBadReference(t *testing.T) {
	game := minimalGame + `
Node "trap" {
	states = {
		{ id = "default", actions = {
			{ id = "go", label = "go", effects = { Goto("void") } },
		}},
	},
}
`
	dir := writeGame(t, map[string]string{"game.lua": game})
	if _, err := Load(dir); err == nil {
		t.Fatal("dangling navigation target loaded")
	}
}

func TestLoadNoGameDefinition(t *testing.T) {
	dir := writeGame(t, map[string]string{
		"world.lua": `Node "a" { states = { { id = "default" } } }`,
	})
	if _, err := Load(dir); err == nil {
		t.Fatal("load succeeded without Game{}")
	}
}

func TestLoadEmptyDir(t *testing.T) {
	if _, err := Load(t.TempDir()); err == nil {
		t.Fatal("load succeeded with no content")
	}
}
