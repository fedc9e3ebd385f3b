package tui

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/chrisrobison/ouija/internal/agent"
	"github.com/chrisrobison/ouija/internal/server"
	"github.com/chrisrobison/ouija/internal/spirit"
)

type Panel int

const (
	ProfileView Panel = iota
	EventsView
)

// replyMsg carries the answer to one submitted action
type replyMsg struct {
	action string
	body   string
	err    error
}

// profileMsg carries a refreshed profile of the current spirit
type profileMsg struct {
	profile *spirit.Profile
	err     error
}

// historyMsg carries the recent turns of a spirit that just came through
type historyMsg struct {
	name  string
	turns []spirit.Turn
	err   error
}

type App struct {
	width, height int
	currentPanel  Panel
	chat          *Chat
	profile       *ProfilePanel
	events        *Events
	input         *Input
	keys          KeyMap
	client        *Client
	server        string
	busy          bool
	spiritName    string
}

func NewApp(client *Client, serverURL string) *App {
	return &App{
		currentPanel: ProfileView,
		chat:         NewChat(),
		profile:      NewProfilePanel(),
		events:       NewEvents(),
		input:        NewInput(),
		keys:         DefaultKeyMap,
		client:       client,
		server:       serverURL,
	}
}

func (a *App) Init() tea.Cmd {
	return tea.Batch(a.chat.Init(), a.profile.Init(), a.events.Init(), a.input.Init(), a.fetchProfile())
}

func (a *App) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmds []tea.Cmd

	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch {
		case key.Matches(msg, a.keys.Quit):
			return a, tea.Quit
		case key.Matches(msg, a.keys.Tab):
			a.currentPanel = (a.currentPanel + 1) % 2
			return a, nil
		case key.Matches(msg, a.keys.Send):
			return a, a.submit()
		}
	case tea.WindowSizeMsg:
		a.width = msg.Width
		a.height = msg.Height
	case replyMsg:
		a.busy = false
		cmds = append(cmds, a.handleReply(msg))
	case profileMsg:
		cmds = append(cmds, a.handleProfile(msg))
	case historyMsg:
		a.handleHistory(msg)
	}

	// Update submodels
	var cmd tea.Cmd
	a.chat, cmd = a.chat.Update(msg)
	cmds = append(cmds, cmd)
	a.profile, cmd = a.profile.Update(msg)
	cmds = append(cmds, cmd)
	a.events, cmd = a.events.Update(msg)
	cmds = append(cmds, cmd)
	a.input, cmd = a.input.Update(msg)
	cmds = append(cmds, cmd)

	return a, tea.Batch(cmds...)
}

// submit turns the input line into an action request
func (a *App) submit() tea.Cmd {
	text := strings.TrimSpace(a.input.Value())
	if text == "" || a.busy {
		return nil
	}
	a.input.Reset()
	a.chat.AddMessage(RoleUser, text)
	a.busy = true

	action, params := agent.ParseCommand(text)
	values := url.Values{}
	if params.Q != "" {
		values.Set("q", params.Q)
	}
	if params.Name != "" {
		values.Set("name", params.Name)
	}
	if params.N > 0 {
		values.Set("n", strconv.Itoa(params.N))
	}

	client := a.client
	return func() tea.Msg {
		body, err := client.Do(context.Background(), action, values)
		return replyMsg{action: action, body: body, err: err}
	}
}

func (a *App) handleReply(msg replyMsg) tea.Cmd {
	if msg.err != nil {
		var statusErr *StatusError
		if errors.As(msg.err, &statusErr) {
			a.chat.AddMessage(RoleBoard, "The planchette will not move. ("+strconv.Itoa(statusErr.StatusCode)+")")
		} else {
			a.chat.AddMessage(RoleBoard, "Lost contact with the board.")
		}
		a.events.AddEvent("error", msg.err.Error())
		return nil
	}

	switch msg.action {
	case server.ActionAsk:
		a.chat.AddMessage(RoleSpirit, msg.body)
	case "":
	default:
		if msg.body == "" {
			a.chat.AddMessage(RoleBoard, "Unknown command: /"+msg.action)
			return nil
		}
		a.chat.AddMessage(RoleBoard, msg.body)
	}

	switch msg.action {
	case server.ActionAsk, server.ActionReset, server.ActionSwitch:
		// any of these may have changed the current spirit
		return a.fetchProfile()
	}
	return nil
}

// handleProfile notes a change of spirit and fetches what was said with
// the newcomer before.
func (a *App) handleProfile(msg profileMsg) tea.Cmd {
	if msg.err != nil {
		a.events.AddEvent("error", msg.err.Error())
		return nil
	}
	if msg.profile.Name == a.spiritName {
		return nil
	}
	if a.spiritName != "" {
		a.events.AddEvent("spirit", fmt.Sprintf("%s has left; %s is here", a.spiritName, msg.profile.Name))
	} else {
		a.events.AddEvent("spirit", msg.profile.Name+" is here")
	}
	a.spiritName = msg.profile.Name
	return a.fetchHistory(msg.profile.Name)
}

// handleHistory replays earlier turns, unless the spirit changed again
// while they were being fetched.
func (a *App) handleHistory(msg historyMsg) {
	if msg.err != nil {
		a.events.AddEvent("error", msg.err.Error())
		return
	}
	if msg.name != a.spiritName || len(msg.turns) == 0 {
		return
	}
	a.chat.AddMessage(RoleBoard, fmt.Sprintf("Earlier with %s:", msg.name))
	for _, turn := range msg.turns {
		role := RoleUser
		if turn.Role == "assistant" {
			role = RoleSpirit
		}
		a.chat.AddMessage(role, turn.Content)
	}
	a.events.AddEvent("history", fmt.Sprintf("replayed %d turns", len(msg.turns)))
}

func (a *App) fetchHistory(name string) tea.Cmd {
	client := a.client
	return func() tea.Msg {
		turns, err := client.History(context.Background(), server.DefaultHistory)
		return historyMsg{name: name, turns: turns, err: err}
	}
}

func (a *App) fetchProfile() tea.Cmd {
	client := a.client
	return func() tea.Msg {
		p, err := client.Profile(context.Background())
		return profileMsg{profile: p, err: err}
	}
}

func (a *App) View() string {
	if a.width == 0 || a.height == 0 {
		return "Initializing..."
	}

	statusBar := a.statusBarView()
	inputBar := a.input.View()

	contentHeight := a.height - lipgloss.Height(statusBar) - lipgloss.Height(inputBar)

	leftWidth := int(float64(a.width) * 0.65)
	rightWidth := a.width - leftWidth

	chatView := a.chat.View(leftWidth, contentHeight)
	var rightView string
	switch a.currentPanel {
	case EventsView:
		rightView = a.events.View(rightWidth, contentHeight)
	default:
		rightView = a.profile.View(rightWidth, contentHeight)
	}

	layout := lipgloss.JoinHorizontal(lipgloss.Top, chatView, rightView)

	return lipgloss.JoinVertical(lipgloss.Left, statusBar, layout, inputBar)
}

func (a *App) statusBarView() string {
	name := a.spiritName
	if name == "" {
		name = "nobody yet"
	}
	state := "ready"
	if a.busy {
		state = "the planchette is moving..."
	}
	return StatusBarStyle.Width(a.width).Render(fmt.Sprintf("Ouija | %s | Spirit: %s | %s", a.server, name, state))
}
