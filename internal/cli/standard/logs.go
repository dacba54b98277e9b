package standard

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/ccheshirecat/swarmctl/internal/cli/state"
	"github.com/ccheshirecat/swarmctl/internal/cli/stream"
	"github.com/ccheshirecat/swarmctl/internal/config"
	"github.com/ccheshirecat/swarmctl/internal/eventbus/memory"
)

func newLogsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "logs",
		Short: "Print node logs, optionally following new lines",
		Long: "Print the buffered logs of the node selected by --tag (the swarm itself when unset).\n" +
			"With --follow the command keeps a live connection open and reconnects with backoff.",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			follow, _ := cmd.Flags().GetBool("follow")
			if !follow {
				return withSession(cmd, func(ctx context.Context, s *session) error {
					lines, err := s.api.Logs(ctx, s.cfg.Tag)
					if err != nil {
						return err
					}
					out := cmd.OutOrStdout()
					for _, line := range lines {
						fmt.Fprintln(out, state.Clean(line))
					}
					return nil
				})
			}

			s, err := sessionFromCmd(cmd)
			if err != nil {
				return err
			}
			defer s.Close(context.WithoutCancel(cmd.Context()))
			return followLogs(cmd.Context(), s, cmd.OutOrStdout())
		},
	}
	cmd.Flags().BoolP("follow", "f", false, "stream new log lines until interrupted")
	return cmd
}

// followLogs prints the backlog oldest-first, then each streamed line as it
// arrives.
func followLogs(ctx context.Context, s *session, out io.Writer) error {
	bus := memory.New()
	st := state.New(bus, state.WithLogger(s.logger))

	events := make(chan any, 256)
	unsubscribe, err := bus.Subscribe(state.TopicLogs, events)
	if err != nil {
		return err
	}
	defer unsubscribe()

	tag := s.cfg.Tag
	if tag == "" {
		tag = config.SwarmTag
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return state.Follow(gctx, s.api, st, tag, s.logger,
			stream.WithMaxRetry(s.cfg.MaxRetry),
			stream.WithResetOnOpen(s.cfg.ResetOnOpen),
		)
	})
	g.Go(func() error {
		for {
			select {
			case <-gctx.Done():
				return nil
			case evt := <-events:
				changed, ok := evt.(state.LogsChanged)
				if !ok {
					continue
				}
				// Added is newest-first.
				for i := len(changed.Added) - 1; i >= 0; i-- {
					fmt.Fprintln(out, changed.Added[i])
				}
			}
		}
	})
	err = g.Wait()
	if errors.Is(err, context.Canceled) && ctx.Err() != nil {
		return nil
	}
	return err
}
