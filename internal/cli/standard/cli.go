package standard

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/ccheshirecat/swarmctl/internal/cli/client"
	"github.com/ccheshirecat/swarmctl/internal/config"
	"github.com/ccheshirecat/swarmctl/internal/kv"
	"github.com/ccheshirecat/swarmctl/internal/kv/sqlite"
	"github.com/ccheshirecat/swarmctl/internal/shared/logging"
)

// Version is stamped at build time.
var Version = "dev"

// Execute runs the Cobra-based CLI entry point.
func Execute(ctx context.Context) error {
	return newRootCmd().ExecuteContext(ctx)
}

func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:           "swarmctl",
		Short:         "Swarm command-line interface",
		Long:          "swarmctl drives a swarm's nodes through its command API, follows its logs, and talks to the host restarter.",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}

	flags := cmd.PersistentFlags()
	flags.StringP("api", "a", "", "API root (overrides --host and --mode; env SWARM_API_ROOT)")
	flags.String("host", "", "swarm host used to derive the API root (env SWARM_HOST)")
	flags.String("mode", "", `set to "super" to use the super-admin backend (env SWARM_MODE)`)
	flags.StringP("tag", "t", "", "routing tag of the target node (env SWARM_TAG)")
	flags.String("state", "", "path of the local state database (env SWARM_STATE_PATH)")
	flags.String("restarter", "", "restarter base URL (env SWARM_RESTARTER_URL)")
	flags.String("log-level", "", "log level: debug, info, warn, error (env SWARM_LOG_LEVEL)")

	cmd.AddCommand(newVersionCmd())
	cmd.AddCommand(newRawCmd())
	cmd.AddCommand(newSwarmCmd())
	cmd.AddCommand(newLightningCmd("lnd", "Operate an LND node", client.TypeLnd))
	cmd.AddCommand(newLightningCmd("cln", "Operate a Core Lightning node", client.TypeCln))
	cmd.AddCommand(newRelayCmd())
	cmd.AddCommand(newBitcoindCmd())
	cmd.AddCommand(newProxyCmd())
	cmd.AddCommand(newHsmdCmd())
	cmd.AddCommand(newLogsCmd())
	cmd.AddCommand(newLoginCmd())
	cmd.AddCommand(newLogoutCmd())
	cmd.AddCommand(newRefreshCmd())
	cmd.AddCommand(newRestarterCmd())
	cmd.AddCommand(newDashboardCmd())
	return cmd
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the swarmctl version",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "swarmctl %s\n", Version)
		},
	}
}

// configFromCmd loads env/profile configuration and applies any flags set on
// the command line.
func configFromCmd(cmd *cobra.Command) (config.ClientConfig, error) {
	cfg, err := config.ClientFromEnv()
	if err != nil {
		return config.ClientConfig{}, err
	}
	overrides := []struct {
		flag string
		dst  *string
	}{
		{"api", &cfg.APIRoot},
		{"host", &cfg.Host},
		{"mode", &cfg.Mode},
		{"tag", &cfg.Tag},
		{"state", &cfg.StatePath},
		{"restarter", &cfg.RestarterURL},
		{"log-level", &cfg.LogLevel},
	}
	for _, o := range overrides {
		if f := cmd.Flags().Lookup(o.flag); f != nil && f.Changed {
			*o.dst = f.Value.String()
		}
	}
	if err := cfg.Validate(); err != nil {
		return config.ClientConfig{}, err
	}
	return cfg, nil
}

// session bundles what most commands need: configuration, a logger, the
// local state store and an API client that reads its token from that store.
type session struct {
	cfg    config.ClientConfig
	logger *slog.Logger
	store  kv.Store
	api    *client.Client
}

func sessionFromCmd(cmd *cobra.Command) (*session, error) {
	cfg, err := configFromCmd(cmd)
	if err != nil {
		return nil, err
	}
	logger := logging.NewCLI(cmd.ErrOrStderr(), cfg.LogLevel)

	store, err := sqlite.Open(cmd.Context(), cfg.StatePath)
	if err != nil {
		return nil, fmt.Errorf("open state: %w", err)
	}
	api, err := client.New(cfg.Root(),
		client.WithTokenSource(client.StoredToken{Store: store}),
		client.WithLogger(logger),
	)
	if err != nil {
		store.Close(cmd.Context())
		return nil, err
	}
	return &session{cfg: cfg, logger: logger, store: store, api: api}, nil
}

func (s *session) Close(ctx context.Context) {
	if err := s.store.Close(ctx); err != nil {
		s.logger.Warn("close state", "error", err)
	}
}

// withSession runs fn with a session and a bounded context.
func withSession(cmd *cobra.Command, fn func(ctx context.Context, s *session) error) error {
	s, err := sessionFromCmd(cmd)
	if err != nil {
		return err
	}
	defer s.Close(context.WithoutCancel(cmd.Context()))

	ctx, cancel := context.WithTimeout(cmd.Context(), commandTimeout)
	defer cancel()
	return fn(ctx, s)
}

// tagFor returns the routing tag for node commands, which have no sensible
// default.
func (s *session) tagFor(cmd *cobra.Command) (string, error) {
	if s.cfg.Tag == "" {
		return "", fmt.Errorf("%s needs a node tag: pass --tag or set SWARM_TAG", cmd.CommandPath())
	}
	return s.cfg.Tag, nil
}
