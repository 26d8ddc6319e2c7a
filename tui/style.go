package tui

import (
	"strings"

	"github.com/charmbracelet/lipgloss"
)

// Styles used throughout the TUI.
var (
	styleStatusBar = lipgloss.NewStyle().
			Background(lipgloss.Color("236")).
			Foreground(lipgloss.Color("252")).
			Bold(true)

	styleInputPrompt = lipgloss.NewStyle().
				Foreground(lipgloss.Color("34"))

	styleNarrative = lipgloss.NewStyle().
			Foreground(lipgloss.Color("255"))

	styleHeader = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("213"))

	styleMenu = lipgloss.NewStyle().
			Foreground(lipgloss.Color("117"))

	styleDamage = lipgloss.NewStyle().
			Foreground(lipgloss.Color("203"))

	styleSystem = lipgloss.NewStyle().
			Foreground(lipgloss.Color("243"))

	stylePlayerInput = lipgloss.NewStyle().
				Foreground(lipgloss.Color("34"))

	styleGaugeHP = lipgloss.NewStyle().Foreground(lipgloss.Color("41"))
	styleGaugeMP = lipgloss.NewStyle().Foreground(lipgloss.Color("39"))
	styleGaugeSP = lipgloss.NewStyle().Foreground(lipgloss.Color("228"))
	styleGaugePT = lipgloss.NewStyle().Foreground(lipgloss.Color("205"))
)

// lineKind identifies the type of an output line for styling.
type lineKind int

const (
	kindNarrative lineKind = iota
	kindHeader
	kindMenu
	kindDamage
	kindSystem
)

// classifyLine determines what kind of output line this is.
func classifyLine(line string) lineKind {
	switch {
	case strings.HasPrefix(line, "[") && strings.HasSuffix(line, "]"):
		return kindSystem
	case strings.HasPrefix(line, "【"), strings.HasPrefix(line, "■"),
		strings.HasPrefix(line, "==="):
		return kindHeader
	case strings.HasPrefix(line, "  "):
		return kindMenu
	case strings.Contains(line, "ダメージ"), strings.Contains(line, "ゲームオーバー"):
		return kindDamage
	default:
		return kindNarrative
	}
}

// renderLineKind applies the style for a given lineKind.
func renderLineKind(line string, kind lineKind) string {
	switch kind {
	case kindHeader:
		return styleHeader.Render(line)
	case kindMenu:
		return styleMenu.Render(line)
	case kindDamage:
		return styleDamage.Render(line)
	case kindSystem:
		return styleSystem.Render(line)
	default:
		return styleNarrative.Render(line)
	}
}

// styledSystemMsg renders a system message in gray with brackets.
func styledSystemMsg(text string) string {
	return styleSystem.Render("[" + text + "]")
}
