package standard

import (
	"context"
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/ccheshirecat/swarmctl/internal/cli/client"
)

func newLightningCmd(use, short string, typ client.CmdType) *cobra.Command {
	cmd := &cobra.Command{
		Use:   use,
		Short: short,
	}

	// action wraps a call against the tagged lightning node.
	action := func(use, short string, args cobra.PositionalArgs, call func(ctx context.Context, api *client.LightningAPI, args []string) (client.Result, error)) *cobra.Command {
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
					api := s.api.Lnd(tag)
					if typ == client.TypeCln {
						api = s.api.Cln(tag)
					}
					return printer(cmd)(call(ctx, api, args))
				})
			},
		}
	}

	cmd.AddCommand(
		action("info", "Show node info", cobra.NoArgs,
			func(ctx context.Context, api *client.LightningAPI, _ []string) (client.Result, error) {
				return api.Info(ctx)
			}),
		action("channels", "List channels", cobra.NoArgs,
			func(ctx context.Context, api *client.LightningAPI, _ []string) (client.Result, error) {
				if typ == client.TypeCln {
					return api.ListPeerChannels(ctx)
				}
				return api.ListChannels(ctx)
			}),
		action("peers", "List peers", cobra.NoArgs,
			func(ctx context.Context, api *client.LightningAPI, _ []string) (client.Result, error) {
				return api.ListPeers(ctx)
			}),
		action("new-address", "Generate an on-chain address", cobra.NoArgs,
			func(ctx context.Context, api *client.LightningAPI, _ []string) (client.Result, error) {
				return api.NewAddress(ctx)
			}),
		action("add-peer <pubkey> <host> [alias]", "Connect to a peer", cobra.RangeArgs(2, 3),
			func(ctx context.Context, api *client.LightningAPI, args []string) (client.Result, error) {
				return api.AddPeer(ctx, args[0], args[1], optionalArg(args, 2))
			}),
		action("pay <bolt11>", "Pay an invoice", cobra.ExactArgs(1),
			func(ctx context.Context, api *client.LightningAPI, args []string) (client.Result, error) {
				return api.PayInvoice(ctx, args[0])
			}),
		action("payments", "List outgoing payments", cobra.NoArgs,
			func(ctx context.Context, api *client.LightningAPI, _ []string) (client.Result, error) {
				return api.ListPayments(ctx)
			}),
		action("invoices [payment-hash]", "List invoices", cobra.MaximumNArgs(1),
			func(ctx context.Context, api *client.LightningAPI, args []string) (client.Result, error) {
				return api.ListInvoices(ctx, optionalArg(args, 0))
			}),
		action("add-invoice <sats>", "Create an invoice", cobra.ExactArgs(1),
			func(ctx context.Context, api *client.LightningAPI, args []string) (client.Result, error) {
				sats, err := strconv.ParseInt(args[0], 10, 64)
				if err != nil {
					return client.Result{}, fmt.Errorf("invalid amount %q", args[0])
				}
				return api.AddInvoice(ctx, sats)
			}),
		action("open-channel <pubkey> <sats> [sats-per-byte]", "Open a channel", cobra.RangeArgs(2, 3),
			func(ctx context.Context, api *client.LightningAPI, args []string) (client.Result, error) {
				amount, err := strconv.ParseInt(args[1], 10, 64)
				if err != nil {
					return client.Result{}, fmt.Errorf("invalid amount %q", args[1])
				}
				var fee uint64
				if len(args) == 3 {
					if fee, err = strconv.ParseUint(args[2], 10, 64); err != nil {
						return client.Result{}, fmt.Errorf("invalid fee rate %q", args[2])
					}
				}
				return api.OpenChannel(ctx, args[0], amount, fee)
			}),
	)

	keysend := &cobra.Command{
		Use:   "keysend <dest> <sats>",
		Short: "Send a spontaneous payment",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			amt, err := strconv.ParseInt(args[1], 10, 64)
			if err != nil {
				return fmt.Errorf("invalid amount %q", args[1])
			}
			req := client.KeysendRequest{Dest: args[0], Amt: amt}
			req.RouteHint, _ = cmd.Flags().GetString("route-hint")
			req.MaxFeePercent, _ = cmd.Flags().GetFloat64("max-fee-percent")
			req.ExemptFee, _ = cmd.Flags().GetUint64("exempt-fee")
			return withSession(cmd, func(ctx context.Context, s *session) error {
				tag, err := s.tagFor(cmd)
				if err != nil {
					return err
				}
				api := s.api.Lnd(tag)
				if typ == client.TypeCln {
					api = s.api.Cln(tag)
				}
				return printer(cmd)(api.Keysend(ctx, req))
			})
		},
	}
	keysend.Flags().String("route-hint", "", "route hint of the destination")
	keysend.Flags().Float64("max-fee-percent", 0, "maximum fee as a percentage of the amount")
	keysend.Flags().Uint64("exempt-fee", 0, "fee in msat below which the percentage limit is ignored")
	cmd.AddCommand(keysend)

	switch typ {
	case client.TypeLnd:
		cmd.AddCommand(
			action("balance", "Show the wallet balance", cobra.NoArgs,
				func(ctx context.Context, api *client.LightningAPI, _ []string) (client.Result, error) {
					return api.Balance(ctx)
				}),
			action("pending-channels", "List pending channels", cobra.NoArgs,
				func(ctx context.Context, api *client.LightningAPI, _ []string) (client.Result, error) {
					return api.ListPendingChannels(ctx)
				}),
		)
	case client.TypeCln:
		cmd.AddCommand(
			action("funds", "List on-chain outputs and channel funds", cobra.NoArgs,
				func(ctx context.Context, api *client.LightningAPI, _ []string) (client.Result, error) {
					return api.ListFunds(ctx)
				}),
			action("close-channel <id> <destination>", "Close a channel and sweep funds", cobra.ExactArgs(2),
				func(ctx context.Context, api *client.LightningAPI, args []string) (client.Result, error) {
					return api.CloseChannel(ctx, args[0], args[1])
				}),
			action("pays [payment-hash]", "List pays", cobra.MaximumNArgs(1),
				func(ctx context.Context, api *client.LightningAPI, args []string) (client.Result, error) {
					return api.ListPays(ctx, optionalArg(args, 0))
				}),
		)
	}
	return cmd
}
