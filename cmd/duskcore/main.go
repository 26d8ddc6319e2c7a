// Duskcore is a deterministic, data-driven engine for choice-based games.
// Usage: duskcore [--version] [--plain] [--seed <n>] [--script <file>] [--plugins <dir>] <game_directory>
package main

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/nathoo/duskcore/cli"
	"github.com/nathoo/duskcore/engine"
	"github.com/nathoo/duskcore/loader"
	"github.com/nathoo/duskcore/plugin"
	"github.com/nathoo/duskcore/tui"
)

// Set via -ldflags at build time.
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	plain := false
	var gameDir string
	var scriptFile string
	var pluginDir string
	seed := time.Now().UnixNano()

	args := os.Args[1:]
	for i := 0; i < len(args); i++ {
		switch args[i] {
		case "--version":
			fmt.Printf("duskcore %s (commit %s, built %s)\n", version, commit, date)
			return
		case "--plain":
			plain = true
		case "--seed":
			if i+1 >= len(args) {
				fmt.Fprintf(os.Stderr, "--seed requires a number\n")
				os.Exit(1)
			}
			i++
			n, err := strconv.ParseInt(args[i], 10, 64)
			if err != nil {
				fmt.Fprintf(os.Stderr, "--seed: %v\n", err)
				os.Exit(1)
			}
			seed = n
		case "--script":
			if i+1 >= len(args) {
				fmt.Fprintf(os.Stderr, "--script requires a file path\n")
				os.Exit(1)
			}
			i++
			scriptFile = args[i]
		case "--plugins":
			if i+1 >= len(args) {
				fmt.Fprintf(os.Stderr, "--plugins requires a directory\n")
				os.Exit(1)
			}
			i++
			pluginDir = args[i]
		default:
			if gameDir == "" {
				gameDir = args[i]
			}
		}
	}

	if gameDir == "" {
		fmt.Fprintf(os.Stderr, "Usage: duskcore [--version] [--plain] [--seed <n>] [--script <file>] [--plugins <dir>] <game_directory>\n")
		os.Exit(1)
	}

	// Load and compile Lua game content.
	defs, err := loader.Load(gameDir)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading game: %v\n", err)
		os.Exit(1)
	}

	eng := engine.New(defs, seed)

	if pluginDir != "" {
		registry := plugin.NewRegistry()
		if err := registry.LoadScripts(pluginDir); err != nil {
			fmt.Fprintf(os.Stderr, "Error loading plugins: %v\n", err)
			os.Exit(1)
		}
		defer registry.Close()
		eng.Plugins = registry
	}

	// Script mode: open file, force plain, echo commands.
	if scriptFile != "" {
		f, err := os.Open(scriptFile)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error opening script: %v\n", err)
			os.Exit(1)
		}
		defer f.Close()
		c := cli.New(eng, defs)
		c.In = f
		c.EchoInput = true
		c.Run()
		return
	}

	// Use plain CLI if --plain flag or stdout is not a terminal.
	if plain || !isTerminal() {
		c := cli.New(eng, defs)
		c.Run()
		return
	}

	if err := tui.Run(eng, defs); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// isTerminal returns true if stdout is a terminal (not piped/redirected).
func isTerminal() bool {
	fi, err := os.Stdout.Stat()
	if err != nil {
		return false
	}
	return fi.Mode()&os.ModeCharDevice != 0
}
