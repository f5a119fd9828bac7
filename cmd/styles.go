package cmd

import (
	"github.com/charmbracelet/lipgloss"
	"github.com/koscakluka/ema-live/core/transcripts"
)

type styles struct {
	title     lipgloss.Style
	status    lipgloss.Style
	user      lipgloss.Style
	assistant lipgloss.Style
	pending   lipgloss.Style
	panel     lipgloss.Style
	detail    lipgloss.Style
	warning   lipgloss.Style
	hint      lipgloss.Style
}

func newStyles() styles {
	return styles{
		title:     lipgloss.NewStyle().Bold(true),
		status:    lipgloss.NewStyle().Foreground(lipgloss.Color("241")),
		user:      lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("39")),
		assistant: lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("170")),
		pending:   lipgloss.NewStyle().Faint(true),
		panel:     lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("159")),
		detail:    lipgloss.NewStyle().Foreground(lipgloss.Color("252")),
		warning:   lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("203")),
		hint:      lipgloss.NewStyle().Faint(true),
	}
}

func (s styles) speaker(speaker transcripts.Speaker) lipgloss.Style {
	if speaker == transcripts.SpeakerUser {
		return s.user
	}
	return s.assistant
}
