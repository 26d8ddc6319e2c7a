package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
)

// gauge renders one "HP 64/80" cell with a color keyed to the stat.
func gauge(label string, cur, max int, style lipgloss.Style) string {
	return style.Render(fmt.Sprintf("%s %d/%d", label, cur, max))
}

// renderStatusBar produces a full-width inverted status line showing
// the four gauges, the current mode, and the turn count.
func (m Model) renderStatusBar() string {
	s := m.engine.State
	c := s.Player.Combat

	gauges := strings.Join([]string{
		gauge("HP", c.HP, c.HPMax, styleGaugeHP),
		gauge("MP", c.MP, c.MPMax, styleGaugeMP),
		gauge("SP", c.SP, c.SPMax, styleGaugeSP),
		gauge("PT", c.PT, c.PTMax, styleGaugePT),
	}, "  ")

	left := " " + gauges
	right := fmt.Sprintf("T:%d ", s.TurnCount)

	switch m.engine.Mode() {
	case "bind":
		right = fmt.Sprintf("拘束 %d段階 | T:%d ", s.Bind.Stage, s.TurnCount)
	case "battle":
		if enemy, ok := m.defs.Enemies[s.Battle.EnemyID]; ok {
			right = fmt.Sprintf("%s HP:%d | T:%d ", enemy.Name, s.Battle.EnemyHP, s.TurnCount)
		}
	}

	gap := m.width - lipgloss.Width(left) - lipgloss.Width(right)
	if gap < 0 {
		gap = 0
	}
	bar := left + strings.Repeat(" ", gap) + right
	return styleStatusBar.Width(m.width).Render(bar)
}
