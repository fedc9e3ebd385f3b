package tui

import (
	"fmt"
	"strings"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/chrisrobison/ouija/internal/spirit"
)

// ProfilePanel shows who is currently on the other side
type ProfilePanel struct {
	profile *spirit.Profile
	err     error
}

func NewProfilePanel() *ProfilePanel {
	return &ProfilePanel{}
}

func (p *ProfilePanel) Init() tea.Cmd {
	return nil
}

func (p *ProfilePanel) Update(msg tea.Msg) (*ProfilePanel, tea.Cmd) {
	if m, ok := msg.(profileMsg); ok {
		p.profile, p.err = m.profile, m.err
	}
	return p, nil
}

func (p *ProfilePanel) View(width, height int) string {
	return ProfilePanelStyle.Width(width).Height(height).Render(p.content())
}

func (p *ProfilePanel) content() string {
	if p.err != nil {
		return ErrorStyle.Render("No answer from the board:\n" + p.err.Error())
	}
	if p.profile == nil {
		return "Summoning..."
	}
	rows := []struct {
		label string
		value string
	}{
		{"Name", p.profile.Name},
		{"Lived", p.profile.Lifespan()},
		{"Born in", p.profile.Birthplace},
		{"Gender", p.profile.Gender},
		{"Occupation", p.profile.Occupation},
		{"Children", fmt.Sprintf("%d", p.profile.Children)},
		{"Died of", p.profile.DeathCause},
		{"Note", p.profile.Note},
	}
	var sb strings.Builder
	for _, r := range rows {
		if r.value == "" {
			continue
		}
		sb.WriteString(ProfileLabelStyle.Render(r.label+": ") + r.value + "\n")
	}
	return strings.TrimRight(sb.String(), "\n")
}
