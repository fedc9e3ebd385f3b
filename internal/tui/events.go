package tui

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
)

type Event struct {
	Type    string
	Message string
	At      time.Time
}

// Events is a log of what happened at the board: switches, resets, errors
type Events struct {
	viewport viewport.Model
	events   []Event
}

func NewEvents() *Events {
	vp := viewport.New(0, 0)
	vp.SetContent("Session events\n")
	return &Events{
		viewport: vp,
		events:   []Event{},
	}
}

func (e *Events) Init() tea.Cmd {
	return nil
}

func (e *Events) Update(msg tea.Msg) (*Events, tea.Cmd) {
	var cmd tea.Cmd
	e.viewport, cmd = e.viewport.Update(msg)
	return e, cmd
}

func (e *Events) View(width, height int) string {
	e.viewport.Width = width - 2
	e.viewport.Height = height - 2
	return EventsPanelStyle.Width(width).Height(height).Render(e.viewport.View())
}

func (e *Events) AddEvent(eventType, message string) {
	e.events = append(e.events, Event{Type: eventType, Message: message, At: time.Now()})
	e.updateContent()
}

func (e *Events) updateContent() {
	var sb strings.Builder
	for _, event := range e.events {
		style := EventStyle
		if event.Type == "error" {
			style = ErrorStyle
		}
		sb.WriteString(style.Render(fmt.Sprintf("%s [%s] %s", event.At.Format("15:04:05"), event.Type, event.Message)))
		sb.WriteString("\n")
	}
	e.viewport.SetContent(sb.String())
}
