package stream

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"
)

// ErrStreamEnded is reported when the server closes an event stream.
var ErrStreamEnded = errors.New("stream: server closed event stream")

// SSEDialer opens server-sent event streams over HTTP.
type SSEDialer struct {
	// Client defaults to a client without a timeout; streams are long lived.
	Client *http.Client
	// Header is added to every request.
	Header http.Header
}

func (d *SSEDialer) Dial(ctx context.Context, uri string) Transport {
	ctx, cancel := context.WithCancel(ctx)
	t := &sseTransport{
		events: make(chan Event, 16),
		cancel: cancel,
		done:   make(chan struct{}),
	}
	hc := d.Client
	if hc == nil {
		hc = &http.Client{}
	}
	go t.run(ctx, hc, uri, d.Header)
	return t
}

type sseTransport struct {
	events chan Event
	cancel context.CancelFunc
	done   chan struct{}
	once   sync.Once
}

func (t *sseTransport) Events() <-chan Event { return t.events }

// Close cancels the request and waits for the reader to exit.
func (t *sseTransport) Close() error {
	t.once.Do(t.cancel)
	<-t.done
	return nil
}

func (t *sseTransport) emit(ctx context.Context, ev Event) bool {
	select {
	case t.events <- ev:
		return true
	case <-ctx.Done():
		return false
	}
}

func (t *sseTransport) run(ctx context.Context, hc *http.Client, uri string, header http.Header) {
	defer close(t.done)
	defer close(t.events)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, uri, nil)
	if err != nil {
		t.emit(ctx, Event{Kind: EventError, Err: fmt.Errorf("stream: new request: %w", err)})
		return
	}
	for k, vs := range header {
		for _, v := range vs {
			req.Header.Add(k, v)
		}
	}
	req.Header.Set("Accept", "text/event-stream")
	req.Header.Set("Cache-Control", "no-cache")

	resp, err := hc.Do(req)
	if err != nil {
		t.emit(ctx, Event{Kind: EventError, Err: fmt.Errorf("stream: connect: %w", err)})
		return
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.emit(ctx, Event{Kind: EventError, Err: fmt.Errorf("stream: http %d", resp.StatusCode)})
		return
	}
	if !t.emit(ctx, Event{Kind: EventOpen}) {
		return
	}

	scanner := bufio.NewScanner(resp.Body)
	scanner.Buffer(make([]byte, 0, 64*1024), 1<<20)

	var (
		data      []string
		eventType string
	)
	dispatch := func() bool {
		defer func() {
			data = data[:0]
			eventType = ""
		}()
		if len(data) == 0 {
			return true
		}
		if eventType != "" && eventType != "message" {
			return true
		}
		return t.emit(ctx, Event{Kind: EventMessage, Data: strings.Join(data, "\n")})
	}

	for scanner.Scan() {
		line := strings.TrimSuffix(scanner.Text(), "\r")
		if line == "" {
			if !dispatch() {
				return
			}
			continue
		}
		if strings.HasPrefix(line, ":") {
			continue
		}
		field, value, _ := strings.Cut(line, ":")
		value = strings.TrimPrefix(value, " ")
		switch field {
		case "data":
			data = append(data, value)
		case "event":
			eventType = value
		}
	}

	if ctx.Err() != nil {
		return
	}
	if err := scanner.Err(); err != nil {
		t.emit(ctx, Event{Kind: EventError, Err: fmt.Errorf("stream: read: %w", err)})
		return
	}
	t.emit(ctx, Event{Kind: EventError, Err: ErrStreamEnded})
}
