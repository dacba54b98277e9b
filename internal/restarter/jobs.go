package restarter

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/ccheshirecat/swarmctl/internal/eventbus"
)

// TopicOutput carries OutputLine values for every running job.
const TopicOutput = "restarter.output"

// StreamStatus marks job lifecycle lines in the output feed.
const StreamStatus = "status"

// ErrBusy is returned when a job is already running.
var ErrBusy = errors.New("restarter: another job is running")

// OutputLine is one line of job output as published on the bus and sent to
// websocket followers.
type OutputLine struct {
	Job    string    `json:"job"`
	Kind   string    `json:"kind"`
	Stream string    `json:"stream"`
	Line   string    `json:"line"`
	Time   time.Time `json:"time"`
}

// Report summarises a finished job.
type Report struct {
	Job     string
	Kind    string
	Outputs []Output
}

// Stdout joins the standard output of every script with sep.
func (r Report) Stdout(sep string) string {
	return r.join(sep, func(o Output) string { return o.Stdout })
}

// Stderr joins the standard error of every script with sep.
func (r Report) Stderr(sep string) string {
	return r.join(sep, func(o Output) string { return o.Stderr })
}

func (r Report) join(sep string, pick func(Output) string) string {
	out := ""
	for i, o := range r.Outputs {
		if i > 0 {
			out += sep
		}
		out += pick(o)
	}
	return out
}

// Executor runs script plans one job at a time.
type Executor struct {
	runner Runner
	bus    eventbus.Bus
	logger *slog.Logger
	busy   atomic.Bool
	now    func() time.Time

	mu      sync.Mutex
	life    context.Context
	stop    context.CancelFunc
	running sync.WaitGroup
}

// NewExecutor creates an Executor. bus may be nil.
func NewExecutor(runner Runner, bus eventbus.Bus, logger *slog.Logger) *Executor {
	life, stop := context.WithCancel(context.Background())
	return &Executor{runner: runner, bus: bus, logger: logger, now: time.Now, life: life, stop: stop}
}

// Stop cancels the running job, if any, and waits for it to return. Later
// calls to Exec fail immediately.
func (e *Executor) Stop() {
	e.mu.Lock()
	e.stop()
	e.mu.Unlock()
	e.running.Wait()
}

// Busy reports whether a job is in progress.
func (e *Executor) Busy() bool { return e.busy.Load() }

// Exec runs scripts in order and stops at the first failure. The Report
// holds the output of every script that ran, including the failing one.
func (e *Executor) Exec(ctx context.Context, kind string, scripts []string) (Report, error) {
	if !e.busy.CompareAndSwap(false, true) {
		return Report{}, ErrBusy
	}
	defer e.busy.Store(false)
	e.mu.Lock()
	if err := e.life.Err(); err != nil {
		e.mu.Unlock()
		return Report{}, fmt.Errorf("restarter: executor stopped: %w", err)
	}
	e.running.Add(1)
	e.mu.Unlock()
	defer e.running.Done()

	// Stop cancels the job even when ctx never will.
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	defer context.AfterFunc(e.life, cancel)()

	rep := Report{Job: uuid.NewString(), Kind: kind}
	logger := e.logger.With("job", rep.Job, "kind", kind)
	logger.Info("job started", "scripts", len(scripts))
	e.publish(ctx, rep, StreamStatus, "started")

	for _, script := range scripts {
		logger.Info("exec", "script", script)
		e.publish(ctx, rep, StreamStatus, "$ "+script)
		out, err := e.runner.Run(ctx, script, func(stream, line string) {
			e.publish(ctx, rep, stream, line)
		})
		rep.Outputs = append(rep.Outputs, out)
		if err != nil {
			logger.Error("job failed", "script", script, "error", err)
			e.publish(ctx, rep, StreamStatus, "failed: "+err.Error())
			return rep, err
		}
	}

	logger.Info("job finished")
	e.publish(ctx, rep, StreamStatus, "finished")
	return rep, nil
}

func (e *Executor) publish(ctx context.Context, rep Report, stream, line string) {
	if e.bus == nil {
		return
	}
	msg := OutputLine{Job: rep.Job, Kind: rep.Kind, Stream: stream, Line: line, Time: e.now().UTC()}
	if err := e.bus.Publish(ctx, TopicOutput, msg); err != nil {
		e.logger.Debug("publish output", "error", err)
	}
}
