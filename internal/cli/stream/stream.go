// Package stream keeps a one-way event feed alive across disconnects,
// reconnecting with capped exponential backoff.
package stream

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"strings"
	"sync/atomic"
	"time"

	"github.com/ccheshirecat/swarmctl/internal/shared/logging"
)

// ErrTransportClosed is reported when a transport stops without an explicit
// error.
var ErrTransportClosed = errors.New("stream: transport closed")

// State is the observable connectivity of a Client.
type State int32

const (
	Disconnected State = iota
	Connected
)

func (s State) String() string {
	if s == Connected {
		return "connected"
	}
	return "disconnected"
}

// EventKind classifies what a transport reports.
type EventKind int

const (
	EventOpen EventKind = iota
	EventMessage
	EventError
)

// Event is one notification from a transport.
type Event struct {
	Kind EventKind
	Data string
	Err  error
}

// Transport is one connection attempt. Events is closed when the transport
// stops. Close must release the connection before returning.
type Transport interface {
	Events() <-chan Event
	Close() error
}

// Dialer opens a transport to uri. Dial must not block on the network; the
// outcome is reported through the transport's events.
type Dialer interface {
	Dial(ctx context.Context, uri string) Transport
}

// DialFunc adapts a function to Dialer.
type DialFunc func(ctx context.Context, uri string) Transport

func (f DialFunc) Dial(ctx context.Context, uri string) Transport { return f(ctx, uri) }

// Message is a decoded stream payload. Text is the trimmed string when the
// payload was a JSON string, otherwise the compact JSON text.
type Message struct {
	Raw      json.RawMessage
	Text     string
	IsString bool
}

// Handler receives messages in the order the transport emitted them.
type Handler func(Message)

// Client maintains the feed for one URI.
type Client struct {
	uri         string
	handler     Handler
	dialer      Dialer
	logger      *slog.Logger
	backoff     *Backoff
	resetOnOpen bool
	after       func(time.Duration) <-chan time.Time
	onState     func(State)

	state atomic.Int32
	dials atomic.Int64
}

// Option customises a Client.
type Option func(*Client)

func WithDialer(d Dialer) Option {
	return func(c *Client) {
		if d != nil {
			c.dialer = d
		}
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(c *Client) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// WithMaxRetry caps the reconnect delay.
func WithMaxRetry(max time.Duration) Option {
	return func(c *Client) { c.backoff = NewBackoff(DefaultInitialRetry, max) }
}

// WithResetOnOpen restarts the backoff sequence whenever a connection opens.
// By default the delay keeps growing for the lifetime of the Client.
func WithResetOnOpen(reset bool) Option {
	return func(c *Client) { c.resetOnOpen = reset }
}

// WithAfter replaces time.After for scheduling reconnects.
func WithAfter(after func(time.Duration) <-chan time.Time) Option {
	return func(c *Client) {
		if after != nil {
			c.after = after
		}
	}
}

// OnStateChange registers fn to observe every connectivity transition.
func OnStateChange(fn func(State)) Option {
	return func(c *Client) { c.onState = fn }
}

// New creates a Client for uri delivering messages to handler.
func New(uri string, handler Handler, opts ...Option) *Client {
	c := &Client{
		uri:     uri,
		handler: handler,
		dialer:  &SSEDialer{},
		logger:  logging.Discard(),
		backoff: NewBackoff(DefaultInitialRetry, DefaultMaxRetry),
		after:   time.After,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// State reports the current connectivity.
func (c *Client) State() State { return State(c.state.Load()) }

// Dials reports how many transports have been opened.
func (c *Client) Dials() int64 { return c.dials.Load() }

// Run connects and keeps reconnecting until ctx is cancelled. It only returns
// ctx.Err(). At most one transport is live at any time.
func (c *Client) Run(ctx context.Context) error {
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		t := c.dialer.Dial(ctx, c.uri)
		c.dials.Add(1)
		err := c.pump(ctx, t)
		if cerr := t.Close(); cerr != nil {
			c.logger.Debug("close transport", "uri", c.uri, "error", cerr)
		}
		c.setState(Disconnected)
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}

		delay := c.backoff.Next()
		c.logger.Info("connection lost", "uri", c.uri, "retry_in", delay, "error", err)
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-c.after(delay):
		}
	}
}

func (c *Client) pump(ctx context.Context, t Transport) error {
	events := t.Events()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case ev, ok := <-events:
			if !ok {
				return ErrTransportClosed
			}
			switch ev.Kind {
			case EventOpen:
				c.setState(Connected)
				if c.resetOnOpen {
					c.backoff.Reset()
				}
			case EventMessage:
				c.deliver(ev.Data)
			case EventError:
				if ev.Err == nil {
					return ErrTransportClosed
				}
				return ev.Err
			}
		}
	}
}

func (c *Client) deliver(data string) {
	msg, err := Decode(data)
	if err != nil {
		c.logger.Warn("could not parse incoming msg", "uri", c.uri, "error", err)
		return
	}
	if c.handler != nil {
		c.handler(msg)
	}
}

func (c *Client) setState(s State) {
	if State(c.state.Swap(int32(s))) == s {
		return
	}
	if c.onState != nil {
		c.onState(s)
	}
}

// Decode parses one message payload.
func Decode(data string) (Message, error) {
	raw := bytes.TrimSpace([]byte(data))
	var v any
	if err := json.Unmarshal(raw, &v); err != nil {
		return Message{}, err
	}
	if s, ok := v.(string); ok {
		return Message{Raw: raw, Text: strings.TrimSpace(s), IsString: true}, nil
	}
	var buf bytes.Buffer
	if err := json.Compact(&buf, raw); err != nil {
		return Message{}, err
	}
	return Message{Raw: raw, Text: buf.String()}, nil
}
