//go:build !unix

package restarter

import (
	"context"
	"errors"
)

// PTYRunner is unavailable without unix pseudo-terminals.
type PTYRunner struct {
	Shell string
	Dir   string
}

func (PTYRunner) Run(context.Context, string, LineFunc) (Output, error) {
	return Output{}, errors.New("pseudo-terminal runner is not supported on this platform")
}
