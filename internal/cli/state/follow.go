package state

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/ccheshirecat/swarmctl/internal/cli/client"
	"github.com/ccheshirecat/swarmctl/internal/cli/stream"
	"github.com/ccheshirecat/swarmctl/internal/config"
)

// Follow loads the log backlog for tag into s, then streams new lines into it
// until ctx is cancelled. Connectivity is mirrored into s.
func Follow(ctx context.Context, c *client.Client, s *State, tag string, logger *slog.Logger, opts ...stream.Option) error {
	if tag == "" {
		tag = config.SwarmTag
	}
	backlog, err := c.Logs(ctx, tag)
	if err != nil {
		return fmt.Errorf("load logs for %s: %w", tag, err)
	}
	s.Init(ctx, tag, backlog)

	opts = append([]stream.Option{
		stream.WithLogger(logger),
		stream.OnStateChange(func(st stream.State) {
			s.SetConnected(ctx, st == stream.Connected)
		}),
	}, opts...)
	sub := stream.New(c.LogStreamURL(tag), func(m stream.Message) {
		s.PrependLog(ctx, m.Text)
	}, opts...)
	return sub.Run(ctx)
}
