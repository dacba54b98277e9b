package standard

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/ccheshirecat/swarmctl/internal/cli/client"
)

func newRawCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "cmd <type> <command>",
		Short: "Send any command envelope",
		Long: "Send a command to a subsystem by name. Content is passed through as JSON.\n\n" +
			"Use `swarmctl cmd list` to see every subsystem and command.",
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			typ, err := client.ParseType(args[0])
			if err != nil {
				return err
			}
			name, err := client.ParseName(typ, args[1])
			if err != nil {
				return err
			}
			var content any
			if raw, _ := cmd.Flags().GetString("content"); raw != "" {
				if !json.Valid([]byte(raw)) {
					return fmt.Errorf("--content is not valid JSON")
				}
				content = json.RawMessage(raw)
			}
			return withSession(cmd, func(ctx context.Context, s *session) error {
				tag := s.cfg.Tag
				if typ == client.TypeSwarm {
					tag = ""
				}
				return printer(cmd)(s.api.Send(ctx, client.NewCommand(typ, name, content), tag))
			})
		},
	}
	cmd.Flags().StringP("content", "c", "", "command content as JSON")
	cmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List subsystems and their commands",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			out := cmd.OutOrStdout()
			for _, typ := range client.Types() {
				names := client.Commands(typ)
				parts := make([]string, len(names))
				for i, n := range names {
					parts[i] = string(n)
				}
				fmt.Fprintf(out, "%-9s %s\n", typ, strings.Join(parts, ", "))
			}
		},
	})
	return cmd
}
