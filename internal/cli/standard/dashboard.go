package standard

import (
	"context"
	"io"

	"github.com/spf13/cobra"

	"github.com/ccheshirecat/swarmctl/internal/cli/stream"
	"github.com/ccheshirecat/swarmctl/internal/cli/tui"
	"github.com/ccheshirecat/swarmctl/internal/shared/logging"
)

func newDashboardCmd() *cobra.Command {
	return &cobra.Command{
		Use:     "dashboard",
		Aliases: []string{"tui"},
		Short:   "Live dashboard of containers and node logs",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := sessionFromCmd(cmd)
			if err != nil {
				return err
			}
			defer s.Close(context.WithoutCancel(cmd.Context()))

			// Log records would corrupt the alternate screen.
			logger := logging.NewCLI(io.Discard, s.cfg.LogLevel)
			return tui.Run(cmd.Context(), tui.Options{
				API:    s.api,
				Store:  s.store,
				Tag:    s.cfg.Tag,
				Logger: logger,
				StreamOpts: []stream.Option{
					stream.WithMaxRetry(s.cfg.MaxRetry),
					stream.WithResetOnOpen(s.cfg.ResetOnOpen),
				},
			})
		},
	}
}
