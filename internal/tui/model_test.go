package tui

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/tinytelemetry/hookwatch/internal/feed"
	"github.com/tinytelemetry/hookwatch/internal/model"
)

type fakeFeed struct {
	mu        sync.Mutex
	mounts    int
	unmounts  int
	refreshes int
	snap      feed.Snapshot
}

func (f *fakeFeed) Mount(context.Context) { f.mu.Lock(); f.mounts++; f.mu.Unlock() }
func (f *fakeFeed) Unmount()              { f.mu.Lock(); f.unmounts++; f.mu.Unlock() }
func (f *fakeFeed) Refresh()              { f.mu.Lock(); f.refreshes++; f.mu.Unlock() }
func (f *fakeFeed) Snapshot() feed.Snapshot {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.snap
}

var testNow = time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

func newTestModel(f *fakeFeed) *Model {
	m := NewModel(context.Background(), f, "http://localhost:5000/events")
	m.now = func() time.Time { return testNow }
	return m
}

func keyMsg(s string) tea.KeyMsg {
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)}
}

func TestInit_MountsFeed(t *testing.T) {
	f := &fakeFeed{}
	m := newTestModel(f)

	msg := m.Init()()
	batch, ok := msg.(tea.BatchMsg)
	if !ok {
		t.Fatalf("Init returned %T, want tea.BatchMsg", msg)
	}
	// First command mounts; the second is the status tick.
	batch[0]()

	if f.mounts != 1 {
		t.Fatalf("mounts = %d, want 1", f.mounts)
	}
}

func TestView_InitialStateShowsHeadingOnly(t *testing.T) {
	m := newTestModel(&fakeFeed{})
	m.Update(tea.WindowSizeMsg{Width: 80, Height: 20})

	view := stripANSI(m.View())
	if !strings.Contains(view, model.FeedHeading) {
		t.Fatalf("view missing heading:\n%s", view)
	}
	if strings.Contains(view, "•") {
		t.Errorf("initial view shows items:\n%s", view)
	}
	if !strings.Contains(view, "waiting for events") {
		t.Errorf("status missing waiting text:\n%s", view)
	}
}

func TestView_BeforeWindowSize(t *testing.T) {
	m := newTestModel(&fakeFeed{})
	m.Update(EventsMsg{Events: []string{"hello"}, UpdatedAt: testNow})

	view := stripANSI(m.View())
	if !strings.Contains(view, model.FeedHeading) || !strings.Contains(view, "• hello") {
		t.Fatalf("view = %q", view)
	}
}

func TestUpdate_EventsReplaceList(t *testing.T) {
	m := newTestModel(&fakeFeed{})
	m.Update(tea.WindowSizeMsg{Width: 80, Height: 20})

	m.Update(EventsMsg{Events: []string{"a", "b"}, UpdatedAt: testNow.Add(-5 * time.Second)})
	view := stripANSI(m.View())
	if !strings.Contains(view, "• a") || !strings.Contains(view, "• b") {
		t.Fatalf("view missing items:\n%s", view)
	}
	if !strings.Contains(view, "2 events") || !strings.Contains(view, "updated 5 seconds ago") {
		t.Errorf("status line wrong:\n%s", view)
	}

	m.Update(EventsMsg{Events: []string{}, UpdatedAt: testNow})
	view = stripANSI(m.View())
	if strings.Contains(view, "• a") || strings.Contains(view, "•") {
		t.Errorf("empty fetch did not clear the list:\n%s", view)
	}
	if !strings.Contains(view, "0 events") {
		t.Errorf("status line wrong after empty fetch:\n%s", view)
	}
}

func TestUpdate_ScenarioSequence(t *testing.T) {
	m := newTestModel(&fakeFeed{})
	m.Update(tea.WindowSizeMsg{Width: 80, Height: 20})

	steps := []struct {
		events []string
		want   []string
	}{
		{events: []string{"A"}, want: []string{"A"}},
		{events: []string{"B", "A"}, want: []string{"B", "A"}},
	}
	for i, step := range steps {
		m.Update(EventsMsg{Events: step.events, UpdatedAt: testNow})
		view := stripANSI(m.View())
		last := -1
		for _, w := range step.want {
			idx := strings.Index(view, "• "+w)
			if idx < 0 || idx < last {
				t.Fatalf("step %d: %q missing or out of order:\n%s", i, w, view)
			}
			last = idx
		}
	}
}

func TestUpdate_SingleEventStatus(t *testing.T) {
	m := newTestModel(&fakeFeed{})
	m.Update(EventsMsg{Events: []string{"x"}, UpdatedAt: testNow})
	if got := m.status(); !strings.HasPrefix(got, "1 event ·") {
		t.Errorf("status = %q", got)
	}
}

func TestUpdate_RefreshKey(t *testing.T) {
	f := &fakeFeed{}
	m := newTestModel(f)

	_, cmd := m.Update(keyMsg("r"))
	if cmd != nil {
		t.Errorf("refresh returned a command")
	}
	if f.refreshes != 1 {
		t.Fatalf("refreshes = %d, want 1", f.refreshes)
	}
}

func TestUpdate_QuitUnmountsThenQuits(t *testing.T) {
	for _, k := range []tea.KeyMsg{keyMsg("q"), {Type: tea.KeyCtrlC}} {
		f := &fakeFeed{}
		m := newTestModel(f)

		_, cmd := m.Update(k)
		if cmd == nil {
			t.Fatalf("%s: no command returned", k)
		}
		if f.unmounts != 0 {
			t.Fatalf("%s: unmounted on the event loop", k)
		}
		if msg := cmd(); msg != (tea.QuitMsg{}) {
			t.Fatalf("%s: got %T, want tea.QuitMsg", k, msg)
		}
		if f.unmounts != 1 {
			t.Errorf("%s: unmounts = %d, want 1", k, f.unmounts)
		}
		if m.View() != "" {
			t.Errorf("%s: view after quit = %q", k, m.View())
		}
	}
}

func TestUpdate_TickStopsAfterQuit(t *testing.T) {
	m := newTestModel(&fakeFeed{})
	if _, cmd := m.Update(TickMsg(testNow)); cmd == nil {
		t.Fatal("tick was not rescheduled")
	}
	m.Update(keyMsg("q"))
	if _, cmd := m.Update(TickMsg(testNow)); cmd != nil {
		t.Fatal("tick rescheduled after quit")
	}
}

func TestUpdate_ScrollKeys(t *testing.T) {
	m := newTestModel(&fakeFeed{})
	m.Update(tea.WindowSizeMsg{Width: 40, Height: 10})

	events := make([]string, 50)
	for i := range events {
		events[i] = "event"
	}
	m.Update(EventsMsg{Events: events, UpdatedAt: testNow})

	m.Update(keyMsg("G"))
	if !m.viewport.AtBottom() {
		t.Fatal("end key did not scroll to bottom")
	}
	m.Update(keyMsg("g"))
	if !m.viewport.AtTop() {
		t.Fatal("home key did not scroll to top")
	}
	m.Update(tea.KeyMsg{Type: tea.KeyDown})
	if m.viewport.YOffset != 1 {
		t.Errorf("YOffset = %d after down, want 1", m.viewport.YOffset)
	}
}

func TestNewModel_SeedsFromSnapshot(t *testing.T) {
	f := &fakeFeed{snap: feed.Snapshot{Events: []string{"cached"}, UpdatedAt: testNow}}
	m := newTestModel(f)
	if !strings.Contains(stripANSI(m.View()), "• cached") {
		t.Fatalf("view does not show snapshot:\n%s", m.View())
	}
}
