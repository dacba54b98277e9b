package tui

import (
	"context"
	"strings"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/ccheshirecat/swarmctl/internal/cli/client"
	"github.com/ccheshirecat/swarmctl/internal/cli/state"
	"github.com/ccheshirecat/swarmctl/internal/kv"
	"github.com/ccheshirecat/swarmctl/internal/shared/logging"
)

func newTestModel(t *testing.T) (model, *kv.Memory, *kv.Debouncer) {
	t.Helper()
	api, err := client.New("http://127.0.0.1:8000/api")
	if err != nil {
		t.Fatalf("client: %v", err)
	}
	store := kv.NewMemory()
	deb := kv.NewDebouncer(store, time.Hour, logging.Discard())
	prefs := kv.Load(context.Background(), store, deb, prefsKey, Prefs{ShowContainers: true})
	st := state.New(nil)
	m := newModel(context.Background(), Options{API: api, Store: store, Tag: "SWARM", Logger: logging.Discard()}, st, prefs, make(chan any, 4))
	updated, _ := m.Update(tea.WindowSizeMsg{Width: 120, Height: 40})
	return updated.(model), store, deb
}

func TestToggleContainersPersistsPrefs(t *testing.T) {
	m, store, deb := newTestModel(t)
	if !strings.Contains(m.View(), "(no containers)") {
		t.Fatalf("container pane hidden by default")
	}

	updated, _ := m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("c")})
	m = updated.(model)
	if strings.Contains(m.View(), "(no containers)") {
		t.Fatalf("container pane still shown after toggle")
	}

	if err := deb.Flush(context.Background()); err != nil {
		t.Fatalf("flush: %v", err)
	}
	raw, err := store.Get(context.Background(), prefsKey)
	if err != nil {
		t.Fatalf("prefs not stored: %v", err)
	}
	if raw != `{"show_containers":false}` {
		t.Fatalf("unexpected prefs %s", raw)
	}

	reloaded := kv.Load(context.Background(), store, deb, prefsKey, Prefs{ShowContainers: true})
	if reloaded.Get().ShowContainers {
		t.Fatalf("reloaded prefs should keep the toggle")
	}
}

func TestViewShowsLogsAndConnection(t *testing.T) {
	m, _, _ := newTestModel(t)
	ctx := context.Background()
	m.state.Init(ctx, "SWARM", []string{"line one", "\x1b[32mline two\x1b[0m"})

	if !strings.Contains(m.View(), "disconnected") {
		t.Fatalf("expected disconnected indicator")
	}

	m.state.SetConnected(ctx, true)
	m.state.PrependLog(ctx, "line three")
	updated, _ := m.Update(stateMsg{event: state.LogsChanged{Tag: "SWARM", Added: []string{"line three"}}})
	m = updated.(model)

	view := m.View()
	if strings.Contains(view, "disconnected") || !strings.Contains(view, "connected") {
		t.Fatalf("expected connected indicator:\n%s", view)
	}
	for _, want := range []string{"line one", "line two", "line three", "3 lines"} {
		if !strings.Contains(view, want) {
			t.Fatalf("view missing %q:\n%s", want, view)
		}
	}
	if strings.Index(view, "line three") > strings.Index(view, "line one") {
		t.Fatalf("newest line should render first:\n%s", view)
	}
}

func TestContainersRendered(t *testing.T) {
	m, _, _ := newTestModel(t)
	updated, _ := m.Update(containersMsg{containers: []client.Container{{
		Names:   []string{"/sphinx.sphinx"},
		State:   "running",
		Status:  "Up 2 hours",
		Created: time.Now().Add(-2 * time.Hour).Unix(),
	}}})
	view := updated.(model).View()
	for _, want := range []string{"sphinx", "running", "Up 2 hours", "2 hours ago"} {
		if !strings.Contains(view, want) {
			t.Fatalf("view missing %q:\n%s", want, view)
		}
	}
}
