// Package cli provides terminal I/O, the numbered choice menu, and
// meta-command dispatch for the duskcore engine.
package cli

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/nathoo/duskcore/engine"
	"github.com/nathoo/duskcore/engine/save"
	"github.com/nathoo/duskcore/engine/state"
	"github.com/nathoo/duskcore/types"
)

// CLI handles terminal interaction with the player.
type CLI struct {
	Engine    *engine.Engine
	Defs      *state.Defs
	In        io.Reader
	Out       io.Writer
	SaveDir   string
	EchoInput bool // echo each input line after the prompt (for script playback)
}

// New creates a CLI wired to the given engine.
func New(eng *engine.Engine, defs *state.Defs) *CLI {
	home, _ := os.UserHomeDir()
	saveDir := filepath.Join(home, ".duskcore", "saves")
	return &CLI{
		Engine:  eng,
		Defs:    defs,
		In:      os.Stdin,
		Out:     os.Stdout,
		SaveDir: saveDir,
	}
}

// Run starts the game loop: show the opening, then loop menu → choice →
// result until the game ends or the player quits.
func (c *CLI) Run() {
	for _, line := range c.Engine.Begin() {
		c.printLine(line)
	}

	scanner := bufio.NewScanner(c.In)
	for {
		choices := c.Engine.Choices()
		c.printMenu(choices)

		c.print("> ")
		if !scanner.Scan() {
			break
		}
		input := strings.TrimSpace(scanner.Text())
		if input == "" || strings.HasPrefix(input, "#") {
			continue
		}
		if c.EchoInput {
			c.printLine(input)
		}

		if strings.HasPrefix(input, "/") {
			if c.handleMeta(input) {
				return // /quit
			}
			continue
		}

		choiceID, ok := pickChoice(choices, input)
		if !ok {
			c.printSystem("番号か選択肢のIDを入力してください。")
			continue
		}

		result := c.Engine.Do(choiceID)
		c.printResult(result)

		if c.Engine.Mode() == "over" {
			c.printSystem("終了しました。/load でやり直すか /quit で終了できます。")
		}
	}
}

// pickChoice accepts either a 1-based menu number or a choice ID.
func pickChoice(choices []engine.Choice, input string) (string, bool) {
	if n, err := strconv.Atoi(input); err == nil {
		if n >= 1 && n <= len(choices) {
			return choices[n-1].ID, true
		}
		return "", false
	}
	for _, ch := range choices {
		if ch.ID == input {
			return ch.ID, true
		}
	}
	return "", false
}

func (c *CLI) printMenu(choices []engine.Choice) {
	if len(choices) == 0 {
		return
	}
	c.printLine("")
	c.printLine(c.Engine.StatusLine())
	for i, ch := range choices {
		line := fmt.Sprintf("  %d. %s", i+1, ch.Label)
		if ch.Description != "" {
			line += "（" + ch.Description + "）"
		}
		c.printLine(line)
	}
}

// handleMeta dispatches meta-commands. Returns true if the game should exit.
func (c *CLI) handleMeta(input string) bool {
	parts := strings.Fields(input)
	cmd := parts[0]
	var arg string
	if len(parts) > 1 {
		arg = parts[1]
	}

	switch cmd {
	case "/quit", "/exit":
		c.printSystem("またね。")
		return true

	case "/save":
		c.cmdSave(arg)

	case "/load":
		c.cmdLoad(arg)

	case "/help":
		c.cmdHelp()

	case "/state":
		c.cmdState()

	case "/seed":
		c.printSystem(fmt.Sprintf("seed %d position %d",
			c.Engine.RNG.Seed(), c.Engine.RNG.Position()))

	default:
		c.printSystem(fmt.Sprintf("Unknown command: %s. Type /help for available commands.", cmd))
	}
	return false
}

func (c *CLI) cmdSave(name string) {
	if name == "" {
		name = "quicksave"
	}
	data, err := save.Save(c.Engine.State, c.Defs)
	if err != nil {
		c.printSystem(fmt.Sprintf("Save failed: %v", err))
		return
	}
	if err := os.MkdirAll(c.SaveDir, 0o755); err != nil {
		c.printSystem(fmt.Sprintf("Save failed: %v", err))
		return
	}
	path := filepath.Join(c.SaveDir, name+".json")
	if err := os.WriteFile(path, data, 0o644); err != nil {
		c.printSystem(fmt.Sprintf("Save failed: %v", err))
		return
	}
	c.printSystem(fmt.Sprintf("Game saved to %s.", name))
}

func (c *CLI) cmdLoad(name string) {
	if name == "" {
		name = "quicksave"
	}
	path := filepath.Join(c.SaveDir, name+".json")
	data, err := os.ReadFile(path)
	if err != nil {
		c.printSystem(fmt.Sprintf("Load failed: %v", err))
		return
	}
	sd, err := save.Load(data)
	if err != nil {
		c.printSystem(fmt.Sprintf("Load failed: %v", err))
		return
	}
	save.ApplySave(c.Engine.State, sd)
	c.Engine.RestoreRNG(sd.State.RNGSeed, sd.State.RNGPosition)
	c.printSystem(fmt.Sprintf("Game loaded from %s (turn %d).", name, sd.State.TurnCount))

	for _, line := range c.Engine.Describe() {
		c.printLine(line)
	}
}

func (c *CLI) cmdHelp() {
	help := []string{
		"System:",
		"  /save [name]  — Save game (default: quicksave)",
		"  /load [name]  — Load game (default: quicksave)",
		"  /seed         — Show RNG seed and position",
		"  /state        — Debug: dump current state",
		"  /quit         — Exit game",
		"",
		"Play by typing the number of a choice.",
	}
	for _, line := range help {
		c.printLine(line)
	}
}

func (c *CLI) cmdState() {
	s := c.Engine.State
	c.printSystem(fmt.Sprintf("Turn: %d  Mode: %s", s.TurnCount, c.Engine.Mode()))
	c.printSystem(fmt.Sprintf("Node: %s", s.CurrentNode))
	c.printSystem(c.Engine.StatusLine())
	if len(s.Player.Inventory) > 0 {
		c.printSystem(fmt.Sprintf("Inventory: %v", s.Player.Inventory))
	}
	if len(s.Player.Flags) > 0 {
		c.printSystem(fmt.Sprintf("Flags: %v", s.Player.Flags))
	}
	if s.Bind.Active {
		c.printSystem(fmt.Sprintf("Bind: %s stage %d turn %d", s.Bind.SequenceID, s.Bind.Stage, s.Bind.Turn))
	}
	if s.Battle.Active {
		c.printSystem(fmt.Sprintf("Battle: %s hp %d turn %d", s.Battle.EnemyID, s.Battle.EnemyHP, s.Battle.Turn))
	}
}

func (c *CLI) printResult(result *types.Result) {
	for _, line := range result.Messages {
		c.printLine(line)
	}
	if result.Err != nil {
		c.printSystem(result.Err.Error())
	}
}

func (c *CLI) printLine(text string) {
	fmt.Fprintln(c.Out, text)
}

func (c *CLI) print(text string) {
	fmt.Fprint(c.Out, text)
}

func (c *CLI) printSystem(text string) {
	fmt.Fprintf(c.Out, "[%s]\n", text)
}
