package tasks

import "github.com/charmbracelet/lipgloss"

type styles struct {
	title       lipgloss.Style
	header      lipgloss.Style
	column      lipgloss.Style
	detail      lipgloss.Style
	warning     lipgloss.Style
	section     lipgloss.Style
	empty       lipgloss.Style
	statKey     lipgloss.Style
	pageCurrent lipgloss.Style
	pageOther   lipgloss.Style
	pageOff     lipgloss.Style
	barBracket  lipgloss.Style
	barFill     lipgloss.Style
	barEmpty    lipgloss.Style
	high        lipgloss.Style
	done        lipgloss.Style
}

func newStyles() styles {
	return styles{
		title:       lipgloss.NewStyle().Bold(true),
		header:      lipgloss.NewStyle().Foreground(lipgloss.Color("241")),
		column:      lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("39")),
		detail:      lipgloss.NewStyle().Foreground(lipgloss.Color("252")),
		warning:     lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("203")),
		section:     lipgloss.NewStyle().MarginTop(1),
		empty:       lipgloss.NewStyle().Faint(true),
		statKey:     lipgloss.NewStyle().Foreground(lipgloss.Color("250")),
		pageCurrent: lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("39")),
		pageOther:   lipgloss.NewStyle().Foreground(lipgloss.Color("252")),
		pageOff:     lipgloss.NewStyle().Faint(true),
		barBracket:  lipgloss.NewStyle().Foreground(lipgloss.Color("244")),
		barFill:     lipgloss.NewStyle().Foreground(lipgloss.Color("159")),
		barEmpty:    lipgloss.NewStyle().Foreground(lipgloss.Color("238")),
		high:        lipgloss.NewStyle().Foreground(lipgloss.Color("209")),
		done:        lipgloss.NewStyle().Foreground(lipgloss.Color("114")),
	}
}
