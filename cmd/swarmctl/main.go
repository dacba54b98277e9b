package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/ccheshirecat/swarmctl/internal/cli/standard"
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := standard.Execute(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "command error: %v\n", err)
		cancel()
		os.Exit(1)
	}
}
