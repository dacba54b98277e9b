package stream

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
)

type fakeTransport struct {
	events chan Event
	closed atomic.Bool
}

func newFakeTransport(events ...Event) *fakeTransport {
	ch := make(chan Event, len(events))
	for _, ev := range events {
		ch <- ev
	}
	return &fakeTransport{events: ch}
}

func (f *fakeTransport) Events() <-chan Event { return f.events }

func (f *fakeTransport) Close() error {
	f.closed.Store(true)
	return nil
}

// scriptedDialer hands out transports built by next and records whether every
// earlier transport was closed at the time a new one was dialed.
type scriptedDialer struct {
	mu         sync.Mutex
	transports []*fakeTransport
	overlap    bool
	next       func(n int) *fakeTransport
}

func (d *scriptedDialer) Dial(_ context.Context, _ string) Transport {
	d.mu.Lock()
	defer d.mu.Unlock()
	for _, prev := range d.transports {
		if !prev.closed.Load() {
			d.overlap = true
		}
	}
	t := d.next(len(d.transports) + 1)
	d.transports = append(d.transports, t)
	return t
}

type recordingAfter struct {
	mu     sync.Mutex
	delays []time.Duration
}

func (r *recordingAfter) after(d time.Duration) <-chan time.Time {
	r.mu.Lock()
	r.delays = append(r.delays, d)
	r.mu.Unlock()
	ch := make(chan time.Time, 1)
	ch <- time.Now()
	return ch
}

func (r *recordingAfter) seconds() []int {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]int, len(r.delays))
	for i, d := range r.delays {
		out[i] = int(d / time.Second)
	}
	return out
}

func failingDialer(cancel context.CancelFunc, stopAfter int, prefix ...Event) *scriptedDialer {
	return &scriptedDialer{next: func(n int) *fakeTransport {
		if n >= stopAfter {
			cancel()
		}
		events := append([]Event(nil), prefix...)
		events = append(events, Event{Kind: EventError, Err: errors.New("boom")})
		return newFakeTransport(events...)
	}}
}

func TestBackoffSequenceIsCapped(t *testing.T) {
	b := NewBackoff(time.Second, 64*time.Second)
	want := []time.Duration{1, 2, 4, 8, 16, 32, 64, 64, 64, 64}
	for i, w := range want {
		if got := b.Next(); got != w*time.Second {
			t.Fatalf("step %d: got %s, want %s", i, got, w*time.Second)
		}
	}
	b.Reset()
	if got := b.Next(); got != time.Second {
		t.Fatalf("reset should restart at 1s, got %s", got)
	}
}

func TestRunBacksOffOnConsecutiveErrors(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	rec := &recordingAfter{}
	dialer := failingDialer(cancel, 10)

	c := New("http://swarm/api/logstream?tag=SWARM", nil, WithDialer(dialer), WithAfter(rec.after))
	if err := c.Run(ctx); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected cancellation, got %v", err)
	}
	want := fmt.Sprint([]int{1, 2, 4, 8, 16, 32, 64, 64, 64})
	if got := fmt.Sprint(rec.seconds()); got != want {
		t.Fatalf("backoff = %s, want %s", got, want)
	}
}

func TestRunKeepsGrowingBackoffAcrossSuccessfulOpens(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	rec := &recordingAfter{}
	dialer := failingDialer(cancel, 5, Event{Kind: EventOpen})

	c := New("uri", nil, WithDialer(dialer), WithAfter(rec.after))
	c.Run(ctx)
	if got := fmt.Sprint(rec.seconds()); got != fmt.Sprint([]int{1, 2, 4, 8}) {
		t.Fatalf("default policy must not reset on open, got %s", got)
	}
}

func TestRunResetOnOpenRestartsBackoff(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	rec := &recordingAfter{}
	dialer := failingDialer(cancel, 5, Event{Kind: EventOpen})

	c := New("uri", nil, WithDialer(dialer), WithAfter(rec.after), WithResetOnOpen(true))
	c.Run(ctx)
	if got := fmt.Sprint(rec.seconds()); got != fmt.Sprint([]int{1, 1, 1, 1}) {
		t.Fatalf("reset policy should retry at 1s each time, got %s", got)
	}
}

func TestRunHonoursMaxRetry(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	rec := &recordingAfter{}
	dialer := failingDialer(cancel, 6)

	c := New("uri", nil, WithDialer(dialer), WithAfter(rec.after), WithMaxRetry(4*time.Second))
	c.Run(ctx)
	if got := fmt.Sprint(rec.seconds()); got != fmt.Sprint([]int{1, 2, 4, 4, 4}) {
		t.Fatalf("unexpected capped backoff %s", got)
	}
}

func TestRunDeliversParsedMessagesInOrder(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var got []string
	handler := func(m Message) {
		got = append(got, m.Text)
		if len(got) == 3 {
			cancel()
		}
	}
	dialer := &scriptedDialer{next: func(int) *fakeTransport {
		return newFakeTransport(
			Event{Kind: EventOpen},
			Event{Kind: EventMessage, Data: `"  hello  "`},
			Event{Kind: EventMessage, Data: `not json`},
			Event{Kind: EventMessage, Data: `"world\n"`},
			Event{Kind: EventMessage, Data: `{"level": "info"}`},
		)
	}}

	c := New("uri", handler, WithDialer(dialer), WithAfter((&recordingAfter{}).after))
	if err := c.Run(ctx); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected cancellation, got %v", err)
	}
	want := fmt.Sprint([]string{"hello", "world", `{"level":"info"}`})
	if fmt.Sprint(got) != want {
		t.Fatalf("delivered %q, want %s", got, want)
	}
}

func TestRunClosesPriorTransportBeforeReconnecting(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var states []State
	var mu sync.Mutex
	dialer := failingDialer(cancel, 3, Event{Kind: EventOpen})
	c := New("uri", nil,
		WithDialer(dialer),
		WithAfter((&recordingAfter{}).after),
		OnStateChange(func(s State) {
			mu.Lock()
			states = append(states, s)
			mu.Unlock()
		}),
	)
	c.Run(ctx)

	if dialer.overlap {
		t.Fatalf("a new transport was dialed while an earlier one was still open")
	}
	if len(dialer.transports) != 3 || c.Dials() != 3 {
		t.Fatalf("expected exactly one new transport per error, got %d", len(dialer.transports))
	}
	for i, tr := range dialer.transports {
		if !tr.closed.Load() {
			t.Fatalf("transport %d left open", i)
		}
	}
	if c.State() != Disconnected {
		t.Fatalf("expected disconnected after run, got %s", c.State())
	}
	mu.Lock()
	defer mu.Unlock()
	if len(states) < 2 || states[0] != Connected || states[1] != Disconnected {
		t.Fatalf("unexpected transitions %v", states)
	}
}

func TestRunDoesNotRedialBeforeDelayElapses(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	release := make(chan time.Time)
	scheduled := make(chan time.Duration, 1)
	dialer := &scriptedDialer{next: func(int) *fakeTransport {
		return newFakeTransport(Event{Kind: EventError, Err: errors.New("boom")})
	}}
	c := New("uri", nil, WithDialer(dialer), WithAfter(func(d time.Duration) <-chan time.Time {
		scheduled <- d
		return release
	}))

	done := make(chan error, 1)
	go func() { done <- c.Run(ctx) }()

	select {
	case d := <-scheduled:
		if d != time.Second {
			t.Fatalf("first retry should wait 1s, got %s", d)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("reconnect was never scheduled")
	}
	if n := c.Dials(); n != 1 {
		t.Fatalf("redialed before the delay elapsed: %d dials", n)
	}
	cancel()
	if err := <-done; !errors.Is(err, context.Canceled) {
		t.Fatalf("expected cancellation, got %v", err)
	}
}

func TestDecode(t *testing.T) {
	m, err := Decode(`"\u001b[32m ok \u001b[0m  "`)
	if err != nil || !m.IsString || m.Text != "\x1b[32m ok \x1b[0m" {
		t.Fatalf("unexpected decode %+v (%v)", m, err)
	}
	if _, err := Decode(""); err == nil {
		t.Fatalf("expected error for empty payload")
	}
	m, err = Decode(`[1, 2]`)
	if err != nil || m.IsString || m.Text != "[1,2]" {
		t.Fatalf("unexpected decode %+v (%v)", m, err)
	}
}

func TestSSEDialerAgainstServer(t *testing.T) {
	var conns atomic.Int32
	r := chi.NewRouter()
	r.Get("/api/logstream", func(w http.ResponseWriter, req *http.Request) {
		if req.URL.Query().Get("tag") != "SWARM" {
			http.Error(w, "bad tag", http.StatusBadRequest)
			return
		}
		flusher, ok := w.(http.Flusher)
		if !ok {
			http.Error(w, "streaming unsupported", http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "text/event-stream")
		w.WriteHeader(http.StatusOK)
		if conns.Add(1) == 1 {
			fmt.Fprint(w, ": keepalive\n\n")
			fmt.Fprint(w, "data: \"  line one \"\n\n")
			fmt.Fprint(w, "event: ping\ndata: \"skipped\"\n\n")
			fmt.Fprint(w, "data: not-json\n\n")
			fmt.Fprint(w, "data: \"two\"\r\n\r\n")
			flusher.Flush()
			return
		}
		fmt.Fprint(w, "data: \"three\"\n\n")
		flusher.Flush()
		<-req.Context().Done()
	})
	srv := httptest.NewServer(r)
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	var mu sync.Mutex
	var got []string
	handler := func(m Message) {
		mu.Lock()
		defer mu.Unlock()
		got = append(got, m.Text)
		if len(got) == 3 {
			cancel()
		}
	}
	c := New(srv.URL+"/api/logstream?tag=SWARM", handler, WithAfter((&recordingAfter{}).after))
	c.Run(ctx)

	mu.Lock()
	defer mu.Unlock()
	if fmt.Sprint(got) != fmt.Sprint([]string{"line one", "two", "three"}) {
		t.Fatalf("unexpected messages %q", got)
	}
	if conns.Load() != 2 {
		t.Fatalf("expected one reconnect after the server closed the stream, got %d connections", conns.Load())
	}
}

func TestSSEDialerReportsHTTPErrors(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "nope", http.StatusUnauthorized)
	}))
	defer srv.Close()

	tr := (&SSEDialer{}).Dial(context.Background(), srv.URL)
	defer tr.Close()
	ev, ok := <-tr.Events()
	if !ok || ev.Kind != EventError {
		t.Fatalf("expected error event, got %+v", ev)
	}
}
