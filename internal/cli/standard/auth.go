package standard

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/ccheshirecat/swarmctl/internal/kv"
)

func newLoginCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "login",
		Short: "Log in and store the session token",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			username, _ := cmd.Flags().GetString("username")
			password, err := secretFromFlag(cmd, "password", "SWARM_PASSWORD", "Password: ")
			if err != nil {
				return err
			}
			if password == "" {
				return errors.New("password is required")
			}
			return withSession(cmd, func(ctx context.Context, s *session) error {
				token, err := s.api.Login(ctx, username, password)
				if err != nil {
					return fmt.Errorf("login: %w", err)
				}
				if err := s.store.Set(ctx, kv.TokenKey, token); err != nil {
					return fmt.Errorf("store token: %w", err)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Logged in to %s as %s\n", s.api.Root(), username)
				return nil
			})
		},
	}
	cmd.Flags().StringP("username", "u", envOrDefault("SWARM_USERNAME", "admin"), "admin username (env SWARM_USERNAME)")
	cmd.Flags().StringP("password", "p", "", "admin password (env SWARM_PASSWORD, prompted when unset)")
	return cmd
}

func newLogoutCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Forget the stored session token",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withSession(cmd, func(ctx context.Context, s *session) error {
				if err := s.store.Delete(ctx, kv.TokenKey); err != nil {
					return fmt.Errorf("remove token: %w", err)
				}
				fmt.Fprintln(cmd.OutOrStdout(), "Logged out")
				return nil
			})
		},
	}
}

func newRefreshCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "refresh",
		Short: "Exchange the stored token for a fresh one",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withSession(cmd, func(ctx context.Context, s *session) error {
				current, err := s.store.Get(ctx, kv.TokenKey)
				if errors.Is(err, kv.ErrNotFound) {
					return errors.New("not logged in: run `swarmctl login` first")
				}
				if err != nil {
					return err
				}
				token, err := s.api.RefreshToken(ctx, current)
				if err != nil {
					return fmt.Errorf("refresh: %w", err)
				}
				if err := s.store.Set(ctx, kv.TokenKey, token); err != nil {
					return fmt.Errorf("store token: %w", err)
				}
				fmt.Fprintln(cmd.OutOrStdout(), "Token refreshed")
				return nil
			})
		},
	}
}
