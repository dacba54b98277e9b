package tui

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/dustin/go-humanize"

	"github.com/ccheshirecat/swarmctl/internal/cli/client"
	"github.com/ccheshirecat/swarmctl/internal/cli/state"
	"github.com/ccheshirecat/swarmctl/internal/cli/stream"
	"github.com/ccheshirecat/swarmctl/internal/eventbus/memory"
	"github.com/ccheshirecat/swarmctl/internal/kv"
)

const (
	refreshInterval = 10 * time.Second
	prefsKey        = "swarmctl.dashboard"
)

// Prefs are the dashboard settings remembered between runs.
type Prefs struct {
	ShowContainers bool `json:"show_containers"`
}

// Options configure the dashboard.
type Options struct {
	API        *client.Client
	Store      kv.Store
	Tag        string
	Logger     *slog.Logger
	StreamOpts []stream.Option
}

type containersMsg struct {
	containers []client.Container
}

type stateMsg struct {
	event any
}

type followDoneMsg struct {
	err error
}

type errMsg struct {
	err error
}

type tickMsg struct{}

var (
	titleStyle   = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("212"))
	onlineStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("42"))
	offlineStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("196"))
	dimStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
	paneStyle    = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).BorderForeground(lipgloss.Color("238"))
)

// Run launches the Bubble Tea dashboard and blocks until the user quits.
func Run(ctx context.Context, opts Options) error {
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	deb := kv.NewDebouncer(opts.Store, kv.DefaultDebounce, opts.Logger)
	defer func() {
		if err := deb.Flush(context.WithoutCancel(ctx)); err != nil {
			opts.Logger.Warn("save dashboard prefs", "error", err)
		}
	}()
	prefs := kv.Load(ctx, opts.Store, deb, prefsKey, Prefs{ShowContainers: true})

	bus := memory.New()
	st := state.New(bus, state.WithLogger(opts.Logger))
	events := make(chan any, 256)
	for _, topic := range []string{state.TopicLogs, state.TopicConnection} {
		unsubscribe, err := bus.Subscribe(topic, events)
		if err != nil {
			return err
		}
		defer unsubscribe()
	}

	m := newModel(ctx, opts, st, prefs, events)
	p := tea.NewProgram(m, tea.WithAltScreen(), tea.WithContext(ctx))
	_, err := p.Run()
	if errors.Is(err, tea.ErrProgramKilled) && ctx.Err() != nil {
		return nil
	}
	return err
}

type model struct {
	ctx    context.Context
	opts   Options
	state  *state.State
	prefs  *kv.Persisted[Prefs]
	events chan any

	viewport   viewport.Model
	ready      bool
	height     int
	containers []client.Container
	err        error
	followErr  error
}

func newModel(ctx context.Context, opts Options, st *state.State, prefs *kv.Persisted[Prefs], events chan any) model {
	return model{
		ctx:    ctx,
		opts:   opts,
		state:  st,
		prefs:  prefs,
		events: events,
	}
}

func (m model) Init() tea.Cmd {
	return tea.Batch(
		followCmd(m.ctx, m.opts, m.state),
		waitEventCmd(m.events),
		fetchContainersCmd(m.ctx, m.opts.API),
		tickCmd(),
	)
}

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c":
			return m, tea.Quit
		case "c":
			if err := m.prefs.Update(func(p Prefs) Prefs {
				p.ShowContainers = !p.ShowContainers
				return p
			}); err != nil {
				m.err = err
			}
			m.resize()
			return m, nil
		case "g":
			m.viewport.GotoTop()
			return m, nil
		}
	case tea.WindowSizeMsg:
		m.height = msg.Height
		if !m.ready {
			m.viewport = viewport.New(msg.Width, msg.Height)
			m.ready = true
		}
		m.viewport.Width = msg.Width
		m.resize()
		m.refreshLogs()
		return m, nil
	case stateMsg:
		if _, ok := msg.event.(state.LogsChanged); ok {
			m.refreshLogs()
		}
		return m, waitEventCmd(m.events)
	case containersMsg:
		m.containers = msg.containers
		m.err = nil
		m.resize()
		return m, nil
	case errMsg:
		m.err = msg.err
		return m, nil
	case followDoneMsg:
		m.followErr = msg.err
		return m, nil
	case tickMsg:
		return m, tea.Batch(tickCmd(), fetchContainersCmd(m.ctx, m.opts.API))
	}

	var cmd tea.Cmd
	m.viewport, cmd = m.viewport.Update(msg)
	return m, cmd
}

// resize gives the log pane whatever the header and container pane leave.
func (m *model) resize() {
	if !m.ready {
		return
	}
	used := lipgloss.Height(m.header()) + lipgloss.Height(m.footer()) + 2
	if m.prefs.Get().ShowContainers {
		used += lipgloss.Height(m.containerPane())
	}
	m.viewport.Height = max(m.height-used, 3)
}

func (m *model) refreshLogs() {
	if !m.ready {
		return
	}
	m.viewport.SetContent(strings.Join(m.state.Logs(), "\n"))
}

func (m model) header() string {
	indicator := offlineStyle.Render("○ disconnected")
	if m.state.Connected() {
		indicator = onlineStyle.Render("● connected")
	}
	tag := m.state.Tag()
	if tag == "" {
		tag = m.opts.Tag
	}
	return fmt.Sprintf("%s  %s  %s  %s",
		titleStyle.Render("SWARM"),
		dimStyle.Render(m.opts.API.Root()),
		dimStyle.Render("tag "+tag),
		indicator,
	)
}

func (m model) footer() string {
	var b strings.Builder
	if m.err != nil {
		b.WriteString(offlineStyle.Render("error: "+m.err.Error()) + "\n")
	}
	if m.followErr != nil {
		b.WriteString(offlineStyle.Render("log stream stopped: "+m.followErr.Error()) + "\n")
	}
	b.WriteString(dimStyle.Render(fmt.Sprintf("%d lines  c containers  g newest  q quit", len(m.state.Logs()))))
	return b.String()
}

func (m model) containerPane() string {
	var b strings.Builder
	if len(m.containers) == 0 {
		b.WriteString(dimStyle.Render("(no containers)"))
	} else {
		fmt.Fprintf(&b, "%-24s %-10s %-16s %s", "NAME", "STATE", "CREATED", "STATUS")
		for _, c := range m.containers {
			label := offlineStyle.Render(fmt.Sprintf("%-10s", c.State))
			if c.State == "running" {
				label = onlineStyle.Render(fmt.Sprintf("%-10s", c.State))
			}
			fmt.Fprintf(&b, "\n%-24s %s %-16s %s", c.Name(), label, humanize.Time(time.Unix(c.Created, 0)), c.Status)
		}
	}
	return paneStyle.Render(b.String())
}

func (m model) View() string {
	if !m.ready {
		return "loading..."
	}
	parts := []string{m.header()}
	if m.prefs.Get().ShowContainers {
		parts = append(parts, m.containerPane())
	}
	parts = append(parts, m.viewport.View(), m.footer())
	return lipgloss.JoinVertical(lipgloss.Left, parts...)
}

func followCmd(ctx context.Context, opts Options, st *state.State) tea.Cmd {
	return func() tea.Msg {
		err := state.Follow(ctx, opts.API, st, opts.Tag, opts.Logger, opts.StreamOpts...)
		if ctx.Err() != nil {
			return followDoneMsg{}
		}
		return followDoneMsg{err: err}
	}
}

func fetchContainersCmd(parent context.Context, api *client.Client) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(parent, 5*time.Second)
		defer cancel()
		containers, err := api.Swarm().ListContainers(ctx)
		if err != nil {
			return errMsg{err: err}
		}
		return containersMsg{containers: containers}
	}
}

func waitEventCmd(ch <-chan any) tea.Cmd {
	return func() tea.Msg {
		return stateMsg{event: <-ch}
	}
}

func tickCmd() tea.Cmd {
	return tea.Tick(refreshInterval, func(time.Time) tea.Msg { return tickMsg{} })
}
