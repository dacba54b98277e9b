package standard

import (
	"context"
	"fmt"
	"strconv"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/ccheshirecat/swarmctl/internal/cli/client"
)

// tagged builds a leaf command for a node addressed by --tag.
func tagged(use, short string, args cobra.PositionalArgs, call func(ctx context.Context, api *client.Client, tag string, args []string) (client.Result, error)) *cobra.Command {
	return &cobra.Command{
		Use:   use,
		Short: short,
		Args:  args,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withSession(cmd, func(ctx context.Context, s *session) error {
				tag, err := s.tagFor(cmd)
				if err != nil {
					return err
				}
				return printer(cmd)(call(ctx, s.api, tag, args))
			})
		},
	}
}

func parseTribe(v string) (uint16, error) {
	id, err := strconv.ParseUint(v, 10, 16)
	if err != nil {
		return 0, fmt.Errorf("invalid tribe id %q", v)
	}
	return uint16(id), nil
}

func newRelayCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "relay",
		Short: "Operate a relay node",
	}
	cmd.AddCommand(
		tagged("users", "List relay users", cobra.NoArgs,
			func(ctx context.Context, api *client.Client, tag string, _ []string) (client.Result, error) {
				return api.Relay(tag).ListUsers(ctx)
			}),
		tagged("add-user [initial-sats]", "Create a relay user", cobra.MaximumNArgs(1),
			func(ctx context.Context, api *client.Client, tag string, args []string) (client.Result, error) {
				var sats uint64
				if len(args) == 1 {
					var err error
					if sats, err = strconv.ParseUint(args[0], 10, 64); err != nil {
						return client.Result{}, fmt.Errorf("invalid amount %q", args[0])
					}
				}
				return api.Relay(tag).AddUser(ctx, sats)
			}),
		tagged("chats", "List tribes", cobra.NoArgs,
			func(ctx context.Context, api *client.Client, tag string, _ []string) (client.Result, error) {
				return api.Relay(tag).Chats(ctx)
			}),
		tagged("add-default-tribe <id>", "Mark a tribe as default for new users", cobra.ExactArgs(1),
			func(ctx context.Context, api *client.Client, tag string, args []string) (client.Result, error) {
				id, err := parseTribe(args[0])
				if err != nil {
					return client.Result{}, err
				}
				return api.Relay(tag).AddDefaultTribe(ctx, id)
			}),
		tagged("remove-default-tribe <id>", "Unmark a default tribe", cobra.ExactArgs(1),
			func(ctx context.Context, api *client.Client, tag string, args []string) (client.Result, error) {
				id, err := parseTribe(args[0])
				if err != nil {
					return client.Result{}, err
				}
				return api.Relay(tag).RemoveDefaultTribe(ctx, id)
			}),
		tagged("token", "Show the relay auth token", cobra.NoArgs,
			func(ctx context.Context, api *client.Client, tag string, _ []string) (client.Result, error) {
				return api.Relay(tag).AuthToken(ctx)
			}),
	)
	cmd.AddCommand(&cobra.Command{
		Use:   "balance",
		Short: "Show the relay balance",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withSession(cmd, func(ctx context.Context, s *session) error {
				tag, err := s.tagFor(cmd)
				if err != nil {
					return err
				}
				bal, err := s.api.Relay(tag).Balance(ctx)
				if err != nil {
					return err
				}
				out := cmd.OutOrStdout()
				fmt.Fprintf(out, "balance:      %s sats\n", humanize.Comma(bal.Balance))
				fmt.Fprintf(out, "full balance: %s sats\n", humanize.Comma(bal.FullBalance))
				fmt.Fprintf(out, "reserve:      %s sats\n", humanize.Comma(bal.Reserve))
				fmt.Fprintf(out, "pending open: %s sats\n", humanize.Comma(bal.PendingOpenBalance))
				return nil
			})
		},
	})
	return cmd
}

func newBitcoindCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "bitcoind",
		Short: "Operate a bitcoind node",
	}
	cmd.AddCommand(
		tagged("info", "Show blockchain info", cobra.NoArgs,
			func(ctx context.Context, api *client.Client, tag string, _ []string) (client.Result, error) {
				return api.Bitcoind(tag).Info(ctx)
			}),
		tagged("balance", "Show the wallet balance", cobra.NoArgs,
			func(ctx context.Context, api *client.Client, tag string, _ []string) (client.Result, error) {
				return api.Bitcoind(tag).Balance(ctx)
			}),
		tagged("mine <blocks> [address]", "Mine blocks on a regtest node", cobra.RangeArgs(1, 2),
			func(ctx context.Context, api *client.Client, tag string, args []string) (client.Result, error) {
				blocks, err := strconv.ParseUint(args[0], 10, 64)
				if err != nil {
					return client.Result{}, fmt.Errorf("invalid block count %q", args[0])
				}
				return api.Bitcoind(tag).Mine(ctx, blocks, optionalArg(args, 1))
			}),
	)
	return cmd
}

func newProxyCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "proxy",
		Short: "Inspect a lightning proxy",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "balance",
		Short: "Show the proxy balance",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withSession(cmd, func(ctx context.Context, s *session) error {
				tag, err := s.tagFor(cmd)
				if err != nil {
					return err
				}
				bal, err := s.api.ProxyBalance(ctx, tag)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "total: %s sats across %s users\n", humanize.Comma(bal.Total), humanize.Comma(bal.UserCount))
				return nil
			})
		},
	})
	return cmd
}

func newHsmdCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "hsmd",
		Short: "Inspect a remote signer",
	}
	cmd.AddCommand(tagged("clients", "List connected signer clients", cobra.NoArgs,
		func(ctx context.Context, api *client.Client, tag string, _ []string) (client.Result, error) {
			return api.HsmdClients(ctx, tag)
		}))
	return cmd
}
