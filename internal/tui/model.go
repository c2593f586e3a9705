package tui

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/dustin/go-humanize"
	"github.com/tinytelemetry/hookwatch/internal/feed"
)

const statusRefresh = time.Second

// Feed is the polling lifecycle the viewer drives. *feed.Poller implements it.
type Feed interface {
	Mount(ctx context.Context)
	Unmount()
	Refresh()
	Snapshot() feed.Snapshot
}

// EventsMsg carries a new event list from the poller into the program.
type EventsMsg feed.Snapshot

// TickMsg re-renders the status line so "updated ... ago" stays current.
type TickMsg time.Time

// Model is the viewer: a heading, the latest event list and a status line.
type Model struct {
	feed     Feed
	ctx      context.Context
	endpoint string
	keys     KeyMap
	help     help.Model
	viewport viewport.Model
	now      func() time.Time

	events    []string
	updatedAt time.Time
	width     int
	height    int
	ready     bool
	quitting  bool
}

// NewModel creates the viewer for f. The poller is mounted when the program
// starts and unmounted when the user quits. ctx bounds the poller's lifetime.
func NewModel(ctx context.Context, f Feed, endpoint string) *Model {
	if ctx == nil {
		ctx = context.Background()
	}
	snap := f.Snapshot()
	return &Model{
		feed:      f,
		ctx:       ctx,
		endpoint:  endpoint,
		keys:      DefaultKeyMap(),
		help:      help.New(),
		viewport:  viewport.New(0, 0),
		now:       time.Now,
		events:    snap.Events,
		updatedAt: snap.UpdatedAt,
	}
}

func (m *Model) Init() tea.Cmd {
	f, ctx := m.feed, m.ctx
	return tea.Batch(
		func() tea.Msg {
			f.Mount(ctx)
			return nil
		},
		tick(),
	)
}

// unmount stops the poller off the event loop, since a poll in progress may be
// blocked delivering its result to this program, then quits.
func unmount(f Feed) tea.Cmd {
	return func() tea.Msg {
		f.Unmount()
		return tea.Quit()
	}
}

func tick() tea.Cmd {
	return tea.Tick(statusRefresh, func(t time.Time) tea.Msg {
		return TickMsg(t)
	})
}

// Update handles messages
func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.help.Width = msg.Width
		m.layout()
		return m, nil

	case EventsMsg:
		m.events = msg.Events
		m.updatedAt = msg.UpdatedAt
		m.viewport.SetContent(renderList(m.events, m.width))
		return m, nil

	case TickMsg:
		if m.quitting {
			return m, nil
		}
		return m, tick()

	case tea.KeyMsg:
		switch {
		case key.Matches(msg, m.keys.Quit):
			m.quitting = true
			return m, unmount(m.feed)
		case key.Matches(msg, m.keys.Refresh):
			m.feed.Refresh()
			return m, nil
		case key.Matches(msg, m.keys.Home):
			m.viewport.GotoTop()
			return m, nil
		case key.Matches(msg, m.keys.End):
			m.viewport.GotoBottom()
			return m, nil
		}
	}

	var cmd tea.Cmd
	m.viewport, cmd = m.viewport.Update(msg)
	return m, cmd
}

// layout sizes the viewport to what is left after the heading and footer.
func (m *Model) layout() {
	header := lineCount(m.headerView())
	footer := lineCount(m.footerView())
	h := m.height - header - footer
	if h < 1 {
		h = 1
	}
	m.viewport.Width = m.width
	m.viewport.Height = h
	m.viewport.SetContent(renderList(m.events, m.width))
	m.ready = true
}

func (m *Model) View() string {
	if m.quitting {
		return ""
	}
	if !m.ready {
		return RenderEvents(m.events, 0) + "\n\n" + m.footerView()
	}
	return m.headerView() + "\n" + m.viewport.View() + "\n" + m.footerView()
}

func (m *Model) headerView() string {
	return renderHeading(m.width) + "\n"
}

func (m *Model) footerView() string {
	return statusStyle.Render(m.status()) + "\n" + m.help.View(m.keys)
}

func (m *Model) status() string {
	parts := []string{}
	if m.updatedAt.IsZero() {
		parts = append(parts, "waiting for events")
	} else {
		noun := "events"
		if len(m.events) == 1 {
			noun = "event"
		}
		parts = append(parts,
			fmt.Sprintf("%s %s", humanize.Comma(int64(len(m.events))), noun),
			"updated "+humanize.RelTime(m.updatedAt, m.now(), "ago", "from now"),
		)
	}
	if m.endpoint != "" {
		parts = append(parts, m.endpoint)
	}
	return strings.Join(parts, " · ")
}

func lineCount(s string) int {
	return strings.Count(s, "\n") + 1
}
