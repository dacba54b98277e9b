// Package state holds the live view of one swarm session: the routing tag in
// use, the log buffer and stream connectivity. Changes are announced on an
// event bus so any number of views can follow along.
package state

import (
	"context"
	"log/slog"
	"strings"
	"sync"

	"github.com/charmbracelet/x/ansi"

	"github.com/ccheshirecat/swarmctl/internal/eventbus"
	"github.com/ccheshirecat/swarmctl/internal/shared/logging"
)

const (
	TopicLogs       = "state.logs"
	TopicConnection = "state.connection"

	DefaultMaxLogs = 1000
)

// LogsChanged is published on TopicLogs. Added is newest-first. Reset marks a
// full replacement of the buffer.
type LogsChanged struct {
	Tag   string
	Added []string
	Reset bool
	Total int
}

// ConnectionChanged is published on TopicConnection.
type ConnectionChanged struct {
	Tag       string
	Connected bool
}

// State is the application context shared by the CLI and the dashboard.
type State struct {
	bus     eventbus.Bus
	logger  *slog.Logger
	maxLogs int

	mu        sync.RWMutex
	tag       string
	logs      []string
	connected bool
}

type Option func(*State)

// WithMaxLogs bounds the log buffer. Older lines are discarded first.
func WithMaxLogs(n int) Option {
	return func(s *State) {
		if n > 0 {
			s.maxLogs = n
		}
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(s *State) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// New creates an empty State publishing on bus. A nil bus disables
// notifications.
func New(bus eventbus.Bus, opts ...Option) *State {
	s := &State{bus: bus, logger: logging.Discard(), maxLogs: DefaultMaxLogs}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Clean strips terminal escape sequences and surrounding whitespace.
func Clean(line string) string {
	return strings.TrimSpace(ansi.Strip(line))
}

// Init starts a session for tag with the backlog returned by the logs
// endpoint (oldest first). The buffer is stored newest-first.
func (s *State) Init(ctx context.Context, tag string, backlog []string) {
	logs := make([]string, 0, min(len(backlog), s.maxLogs))
	for i := len(backlog) - 1; i >= 0 && len(logs) < s.maxLogs; i-- {
		logs = append(logs, Clean(backlog[i]))
	}

	s.mu.Lock()
	s.tag = tag
	s.logs = logs
	s.connected = false
	s.mu.Unlock()

	s.publish(ctx, TopicLogs, LogsChanged{Tag: tag, Added: append([]string(nil), logs...), Reset: true, Total: len(logs)})
	s.publish(ctx, TopicConnection, ConnectionChanged{Tag: tag})
}

// Reset clears the session.
func (s *State) Reset(ctx context.Context) {
	s.mu.Lock()
	s.tag = ""
	s.logs = nil
	s.connected = false
	s.mu.Unlock()

	s.publish(ctx, TopicLogs, LogsChanged{Reset: true})
	s.publish(ctx, TopicConnection, ConnectionChanged{})
}

// PrependLog adds a streamed line at the front of the buffer.
func (s *State) PrependLog(ctx context.Context, line string) {
	line = Clean(line)
	s.mu.Lock()
	s.logs = append(s.logs, "")
	copy(s.logs[1:], s.logs)
	s.logs[0] = line
	if len(s.logs) > s.maxLogs {
		s.logs = s.logs[:s.maxLogs]
	}
	tag, total := s.tag, len(s.logs)
	s.mu.Unlock()

	s.publish(ctx, TopicLogs, LogsChanged{Tag: tag, Added: []string{line}, Total: total})
}

// SetConnected records stream connectivity. Repeated values are not
// re-published.
func (s *State) SetConnected(ctx context.Context, connected bool) {
	s.mu.Lock()
	changed := s.connected != connected
	s.connected = connected
	tag := s.tag
	s.mu.Unlock()

	if changed {
		s.publish(ctx, TopicConnection, ConnectionChanged{Tag: tag, Connected: connected})
	}
}

// Logs returns a copy of the buffer, newest first.
func (s *State) Logs() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]string(nil), s.logs...)
}

func (s *State) Tag() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.tag
}

func (s *State) Connected() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.connected
}

func (s *State) publish(ctx context.Context, topic string, payload any) {
	if s.bus == nil {
		return
	}
	if err := s.bus.Publish(ctx, topic, payload); err != nil {
		s.logger.Debug("publish state change", "topic", topic, "error", err)
	}
}
