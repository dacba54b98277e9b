package restarter

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os/exec"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"
)

const (
	StreamStdout = "stdout"
	StreamStderr = "stderr"
)

// Output is what a finished script wrote.
type Output struct {
	Stdout string
	Stderr string
}

// LineFunc observes script output one line at a time, possibly from several
// goroutines.
type LineFunc func(stream, line string)

// Runner executes one shell script.
type Runner interface {
	Run(ctx context.Context, script string, emit LineFunc) (Output, error)
}

// ShellRunner runs scripts with `sh -c` in Dir.
type ShellRunner struct {
	Shell string
	Dir   string
}

func (r ShellRunner) Run(ctx context.Context, script string, emit LineFunc) (Output, error) {
	shell := r.Shell
	if shell == "" {
		shell = "sh"
	}
	cmd := exec.CommandContext(ctx, shell, "-c", script)
	cmd.Dir = r.Dir
	cmd.WaitDelay = 5 * time.Second
	killProcessGroup(cmd)

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return Output{}, fmt.Errorf("stdout pipe: %w", err)
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return Output{}, fmt.Errorf("stderr pipe: %w", err)
	}
	if err := cmd.Start(); err != nil {
		return Output{}, fmt.Errorf("start %q: %w", script, err)
	}

	var outBuf, errBuf lockedBuilder
	var g errgroup.Group
	g.Go(func() error { return collect(stdout, StreamStdout, &outBuf, emit) })
	g.Go(func() error { return collect(stderr, StreamStderr, &errBuf, emit) })
	readErr := g.Wait()
	waitErr := cmd.Wait()

	out := Output{Stdout: outBuf.String(), Stderr: errBuf.String()}
	return out, result(script, out.Stderr, readErr, waitErr)
}

func result(script, stderr string, readErr, waitErr error) error {
	if waitErr != nil {
		msg := strings.TrimSpace(stderr)
		if msg == "" {
			return fmt.Errorf("command failed: %s: %w", script, waitErr)
		}
		return fmt.Errorf("command failed: %s: %w: %s", script, waitErr, msg)
	}
	if readErr != nil {
		return fmt.Errorf("read output of %q: %w", script, readErr)
	}
	return nil
}

func collect(r io.Reader, stream string, buf *lockedBuilder, emit LineFunc) error {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1<<20)
	for scanner.Scan() {
		line := scanner.Text()
		buf.WriteLine(line)
		if emit != nil {
			emit(stream, line)
		}
	}
	return scanner.Err()
}

type lockedBuilder struct {
	mu sync.Mutex
	b  strings.Builder
}

func (l *lockedBuilder) WriteLine(s string) {
	l.mu.Lock()
	l.b.WriteString(s)
	l.b.WriteByte('\n')
	l.mu.Unlock()
}

func (l *lockedBuilder) String() string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.b.String()
}
