package standard

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/ccheshirecat/swarmctl/internal/restarter"
)

var restarterActions = []struct {
	action string
	short  string
}{
	{restarter.ActionRestart, "Pull and restart every service"},
	{restarter.ActionRestartSuperAdmin, "Pull and restart the super admin stack"},
	{restarter.ActionRenewCert, "Renew the wildcard certificate"},
	{restarter.ActionUploadCert, "Upload the certificate to the bucket"},
	{restarter.ActionUpdateSSLCert, "Fetch the certificate from the bucket and restart"},
}

func newRestarterCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "restarter",
		Short: "Drive the host restarter",
	}
	for _, a := range restarterActions {
		cmd.AddCommand(newRestarterActionCmd(a.action, a.short))
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "ping",
		Short: "Check that the restarter is reachable",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			rc, err := restarterFromCmd(cmd)
			if err != nil {
				return err
			}
			ctx, cancel := context.WithTimeout(cmd.Context(), commandTimeout)
			defer cancel()
			if err := rc.Ping(ctx); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "restarter is up")
			return nil
		},
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "follow",
		Short: "Print job output as it happens",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			rc, err := restarterFromCmd(cmd)
			if err != nil {
				return err
			}
			err = rc.Follow(cmd.Context(), printOutputLine(cmd.OutOrStdout()))
			if errors.Is(err, context.Canceled) {
				return nil
			}
			return err
		},
	})
	return cmd
}

func newRestarterActionCmd(action, short string) *cobra.Command {
	cmd := &cobra.Command{
		Use:   action,
		Short: short,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			rc, err := restarterFromCmd(cmd)
			if err != nil {
				return err
			}
			password, err := secretFromFlag(cmd, "password", "SWARM_RESTARTER_PASSWORD", "Restarter password: ")
			if err != nil {
				return err
			}
			req := restarter.Request{Password: password}
			req.PortBasedSSL, _ = cmd.Flags().GetBool("port-ssl")
			req.CertBucketName, _ = cmd.Flags().GetString("bucket")
			watch, _ := cmd.Flags().GetBool("watch")

			out := cmd.OutOrStdout()
			if !watch {
				resp, err := rc.Trigger(cmd.Context(), action, req)
				if err != nil {
					return err
				}
				return printRestarterResponse(out, resp)
			}

			followCtx, stopFollow := context.WithCancel(cmd.Context())
			defer stopFollow()
			var g errgroup.Group
			g.Go(func() error {
				err := rc.Follow(followCtx, printOutputLine(out))
				if errors.Is(err, context.Canceled) {
					return nil
				}
				return err
			})
			resp, triggerErr := rc.Trigger(cmd.Context(), action, req)
			stopFollow()
			if err := g.Wait(); err != nil && triggerErr == nil {
				return err
			}
			if triggerErr != nil {
				return triggerErr
			}
			return printRestarterResponse(out, resp)
		},
	}
	cmd.Flags().StringP("password", "p", "", "restarter password (env SWARM_RESTARTER_PASSWORD, prompted when unset)")
	cmd.Flags().Bool("port-ssl", false, "serve the second brain with port based SSL")
	cmd.Flags().String("bucket", "", "certificate bucket name")
	cmd.Flags().BoolP("watch", "w", false, "print job output while it runs")
	return cmd
}

func restarterFromCmd(cmd *cobra.Command) (*restarter.Client, error) {
	cfg, err := configFromCmd(cmd)
	if err != nil {
		return nil, err
	}
	return restarter.NewClient(cfg.RestarterURL)
}

func printOutputLine(out io.Writer) func(restarter.OutputLine) {
	return func(line restarter.OutputLine) {
		fmt.Fprintf(out, "[%s %s] %s\n", line.Kind, line.Stream, line.Line)
	}
}

func printRestarterResponse(out io.Writer, resp restarter.Response) error {
	if resp.Message != "" {
		fmt.Fprintln(out, resp.Message)
	}
	if resp.Error != "" {
		fmt.Fprintln(out, resp.Error)
	}
	fmt.Fprintf(out, "job %s finished\n", resp.Job)
	return nil
}
