package tui

import (
	"strings"
	"testing"

	"github.com/nathoo/duskcore/engine"
	"github.com/nathoo/duskcore/engine/state"
	"github.com/nathoo/duskcore/types"
)

func testDefs() *state.Defs {
	return &state.Defs{
		Title: "テスト",
		Entry: "cell",
		Nodes: map[string]types.NodeDef{
			"cell": {
				ID:          "cell",
				DisplayName: "独房",
				Machine: types.MachineDef{
					Initial: "default",
					Order:   []string{"default"},
					States: map[string]types.State{
						"default": {
							Description: "石壁の独房だ。",
							Actions: []types.Action{
								{ID: "look", Label: "調べる", Effects: []types.Effect{
									{Type: "message", Params: map[string]any{"text": "何もない。"}},
								}},
							},
						},
					},
				},
			},
		},
	}
}

func newTestModel(t *testing.T) Model {
	t.Helper()
	defs := testDefs()
	m := New(engine.New(defs, 1), defs)
	m.saveDir = t.TempDir()
	return m
}

func TestHistory(t *testing.T) {
	h := NewHistory(3)
	if _, ok := h.Prev(); ok {
		t.Error("expected no entry from empty history")
	}

	h.Push("a")
	h.Push("b")
	h.Push("b") // consecutive duplicate is skipped
	h.Push("c")

	if got, _ := h.Prev(); got != "c" {
		t.Errorf("Prev = %q, want c", got)
	}
	if got, _ := h.Prev(); got != "b" {
		t.Errorf("Prev = %q, want b", got)
	}
	if got, _ := h.Next(); got != "c" {
		t.Errorf("Next = %q, want c", got)
	}
	if _, ok := h.Next(); ok {
		t.Error("expected false past the most recent entry")
	}

	// The buffer holds at most 3 entries.
	h.Push("d")
	h.Push("e")
	if got, _ := h.Prev(); got != "e" {
		t.Errorf("Prev = %q, want e", got)
	}
	h.cursor = 0
	if h.entries[0] != "c" {
		t.Errorf("oldest = %q, want c after eviction", h.entries[0])
	}
}

func TestClassifyLine(t *testing.T) {
	tests := []struct {
		line string
		want lineKind
	}{
		{"=== テスト ===", kindHeader},
		{"■ 独房", kindHeader},
		{"【蔦の拘束】", kindHeader},
		{"  1. 調べる", kindMenu},
		{"5のダメージを受けた！", kindDamage},
		{"ゲームオーバー", kindDamage},
		{"[seed 1 position 0]", kindSystem},
		{"石壁の独房だ。", kindNarrative},
	}
	for _, tt := range tests {
		if got := classifyLine(tt.line); got != tt.want {
			t.Errorf("classifyLine(%q) = %v, want %v", tt.line, got, tt.want)
		}
	}
}

func TestPickChoice(t *testing.T) {
	m := newTestModel(t)
	m.choices = []engine.Choice{
		{ID: "look", Label: "調べる"},
		{ID: "exit", Label: "出る"},
	}
	if got, ok := m.pickChoice("1"); !ok || got != "look" {
		t.Errorf("pickChoice(1) = %q/%v", got, ok)
	}
	if got, ok := m.pickChoice("exit"); !ok || got != "exit" {
		t.Errorf("pickChoice(exit) = %q/%v", got, ok)
	}
	if _, ok := m.pickChoice("0"); ok {
		t.Error("pickChoice(0) accepted out-of-range number")
	}
	if _, ok := m.pickChoice("dance"); ok {
		t.Error("pickChoice(dance) accepted unknown ID")
	}
}

func TestHandleMetaQuit(t *testing.T) {
	m := newTestModel(t)
	out, quit := m.handleMeta("/quit")
	if !quit {
		t.Error("expected quit=true for /quit")
	}
	if len(out) == 0 {
		t.Error("expected farewell output")
	}
}

func TestHandleMetaSaveLoad(t *testing.T) {
	m := newTestModel(t)
	out, quit := m.handleMeta("/save test")
	if quit {
		t.Error("save should not quit")
	}
	if len(out) != 1 || !strings.Contains(out[0], "Game saved to test.") {
		t.Errorf("save output = %v", out)
	}

	out, _ = m.handleMeta("/load test")
	if len(out) == 0 || !strings.Contains(out[0], "Game loaded from test") {
		t.Errorf("load output = %v", out)
	}
}

func TestHandleMetaSeed(t *testing.T) {
	m := newTestModel(t)
	out, _ := m.handleMeta("/seed")
	if len(out) != 1 || !strings.Contains(out[0], "seed 1 position 0") {
		t.Errorf("seed output = %v", out)
	}
}

func TestHandleMetaUnknown(t *testing.T) {
	m := newTestModel(t)
	out, quit := m.handleMeta("/bogus")
	if quit {
		t.Error("unknown command should not quit")
	}
	if len(out) != 1 || !strings.Contains(out[0], "Unknown command") {
		t.Errorf("output = %v", out)
	}
}

func TestHandleMetaHelp(t *testing.T) {
	m := newTestModel(t)
	out, _ := m.handleMeta("/help")
	joined := strings.Join(out, "\n")
	for _, want := range []string{"/save", "/load", "/seed", "/quit"} {
		if !strings.Contains(joined, want) {
			t.Errorf("expected %s in help output", want)
		}
	}
}

func TestAppendOutputRefreshesMenu(t *testing.T) {
	m := newTestModel(t)
	m = m.appendOutput(gameOutputMsg{lines: m.engine.Begin()})
	if len(m.choices) != 1 || m.choices[0].ID != "look" {
		t.Fatalf("choices = %+v", m.choices)
	}
	last := m.rawLines[len(m.rawLines)-1]
	if last.kind != kindMenu || !strings.Contains(last.text, "1. 調べる") {
		t.Fatalf("last line = %+v, want menu entry", last)
	}
}
