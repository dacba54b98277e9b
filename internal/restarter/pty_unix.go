//go:build unix

package restarter

import (
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"
	"syscall"
	"time"

	"github.com/charmbracelet/x/ansi"
	"github.com/creack/pty"
	"golang.org/x/sys/unix"
)

// PTYRunner runs scripts on a pseudo-terminal so tools that only report
// progress to a terminal (docker pull, certbot) still stream it. Terminal
// output has a single stream: everything is reported as stdout with escape
// sequences removed.
type PTYRunner struct {
	Shell string
	Dir   string
}

func (r PTYRunner) Run(ctx context.Context, script string, emit LineFunc) (Output, error) {
	shell := r.Shell
	if shell == "" {
		shell = "sh"
	}
	cmd := exec.CommandContext(ctx, shell, "-c", script)
	cmd.Dir = r.Dir
	cmd.WaitDelay = 5 * time.Second
	// pty.Start puts the shell in its own session, so its pid is also the
	// process group id.
	cmd.Cancel = func() error {
		if cmd.Process == nil {
			return nil
		}
		return unix.Kill(-cmd.Process.Pid, unix.SIGKILL)
	}

	tty, err := pty.Start(cmd)
	if err != nil {
		return Output{}, fmt.Errorf("start %q: %w", script, err)
	}
	defer tty.Close()

	var buf lockedBuilder
	readErr := collect(tty, StreamStdout, &buf, func(stream, line string) {
		if emit != nil {
			emit(stream, cleanTerminalLine(line))
		}
	})
	// The master side reports EIO once the last writer has gone.
	if errors.Is(readErr, syscall.EIO) {
		readErr = nil
	}
	waitErr := cmd.Wait()

	text := buf.String()
	lines := strings.Split(strings.TrimSuffix(text, "\n"), "\n")
	for i, line := range lines {
		lines[i] = cleanTerminalLine(line)
	}
	out := Output{}
	if text != "" {
		out.Stdout = strings.Join(lines, "\n") + "\n"
	}
	return out, result(script, out.Stdout, readErr, waitErr)
}

// cleanTerminalLine keeps what is visible after carriage-return redraws.
func cleanTerminalLine(line string) string {
	line = strings.TrimRight(line, "\r")
	if i := strings.LastIndex(line, "\r"); i >= 0 {
		line = line[i+1:]
	}
	return ansi.Strip(line)
}
