package standard

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/ccheshirecat/swarmctl/internal/cli/client"
)

// swarmAction builds a leaf command that calls the orchestrator.
func swarmAction(use, short string, args cobra.PositionalArgs, call func(ctx context.Context, api *client.SwarmAPI, args []string) (client.Result, error)) *cobra.Command {
	return &cobra.Command{
		Use:   use,
		Short: short,
		Args:  args,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withSession(cmd, func(ctx context.Context, s *session) error {
				return printer(cmd)(call(ctx, s.api.Swarm(), args))
			})
		},
	}
}

func newSwarmCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "swarm",
		Short: "Manage the swarm orchestrator",
	}

	cmd.AddCommand(newSwarmContainersCmd())
	cmd.AddCommand(
		swarmAction("config", "Show the swarm configuration", cobra.NoArgs,
			func(ctx context.Context, api *client.SwarmAPI, _ []string) (client.Result, error) {
				return api.GetConfig(ctx)
			}),
		swarmAction("logs <container>", "Show a container's logs", cobra.ExactArgs(1),
			func(ctx context.Context, api *client.SwarmAPI, args []string) (client.Result, error) {
				return api.ContainerLogs(ctx, args[0])
			}),
		swarmAction("start <container>", "Start a container", cobra.ExactArgs(1),
			func(ctx context.Context, api *client.SwarmAPI, args []string) (client.Result, error) {
				return api.StartContainer(ctx, args[0])
			}),
		swarmAction("stop <container>", "Stop a container", cobra.ExactArgs(1),
			func(ctx context.Context, api *client.SwarmAPI, args []string) (client.Result, error) {
				return api.StopContainer(ctx, args[0])
			}),
		swarmAction("update-node <node>", "Update a node to the latest image", cobra.ExactArgs(1),
			func(ctx context.Context, api *client.SwarmAPI, args []string) (client.Result, error) {
				return api.UpdateNode(ctx, args[0])
			}),
		swarmAction("update-instance <node> <version>", "Pin a node to an image version", cobra.ExactArgs(2),
			func(ctx context.Context, api *client.SwarmAPI, args []string) (client.Result, error) {
				return api.UpdateInstance(ctx, args[0], args[1])
			}),
		swarmAction("stats [container]", "Show resource usage", cobra.MaximumNArgs(1),
			func(ctx context.Context, api *client.SwarmAPI, args []string) (client.Result, error) {
				name := ""
				if len(args) == 1 {
					name = args[0]
				}
				return api.Statistics(ctx, name)
			}),
		swarmAction("update", "Update the swarm itself", cobra.NoArgs,
			func(ctx context.Context, api *client.SwarmAPI, _ []string) (client.Result, error) {
				return api.UpdateSwarm(ctx)
			}),
		swarmAction("digest <image>", "Show the digest of an image", cobra.ExactArgs(1),
			func(ctx context.Context, api *client.SwarmAPI, args []string) (client.Result, error) {
				return api.ImageDigest(ctx, args[0])
			}),
		swarmAction("api-token", "Show the swarm API token", cobra.NoArgs,
			func(ctx context.Context, api *client.SwarmAPI, _ []string) (client.Result, error) {
				return api.APIToken(ctx)
			}),
	)
	cmd.AddCommand(newSwarmVersionsCmd())
	cmd.AddCommand(newSwarmTagsCmd())
	cmd.AddCommand(newSwarmBoltwallCmd())
	cmd.AddCommand(newSwarmSecondBrainCmd())
	return cmd
}

func newSwarmContainersCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "containers",
		Short: "List containers",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withSession(cmd, func(ctx context.Context, s *session) error {
				containers, err := s.api.Swarm().ListContainers(ctx)
				if err != nil {
					return err
				}
				out := cmd.OutOrStdout()
				if len(containers) == 0 {
					fmt.Fprintln(out, "No containers found")
					return nil
				}
				fmt.Fprintf(out, "%-24s %-10s %-16s %-40s %s\n", "NAME", "STATE", "CREATED", "IMAGE", "STATUS")
				for _, c := range containers {
					fmt.Fprintf(out, "%-24s %-10s %-16s %-40s %s\n", c.Name(), c.State, humanize.Time(time.Unix(c.Created, 0)), c.Image, c.Status)
				}
				return nil
			})
		},
	}
}

func newSwarmVersionsCmd() *cobra.Command {
	cmd := swarmAction("versions <node>", "List available image versions", cobra.ExactArgs(1), nil)
	cmd.Flags().Int("page", 1, "result page")
	cmd.RunE = func(cmd *cobra.Command, args []string) error {
		page, _ := cmd.Flags().GetInt("page")
		return withSession(cmd, func(ctx context.Context, s *session) error {
			return printer(cmd)(s.api.Swarm().ListVersions(ctx, args[0], page))
		})
	}
	return cmd
}

func newSwarmTagsCmd() *cobra.Command {
	cmd := swarmAction("tags <org/image>", "List docker hub tags of an image", cobra.ExactArgs(1), nil)
	cmd.Flags().Int("page", 1, "result page")
	cmd.Flags().Int("page-size", 10, "tags per page")
	cmd.RunE = func(cmd *cobra.Command, args []string) error {
		page, _ := cmd.Flags().GetInt("page")
		size, _ := cmd.Flags().GetInt("page-size")
		return withSession(cmd, func(ctx context.Context, s *session) error {
			return printer(cmd)(s.api.Swarm().ImageTags(ctx, args[0], strconv.Itoa(page), strconv.Itoa(size)))
		})
	}
	return cmd
}

func newSwarmBoltwallCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "boltwall",
		Short: "Manage boltwall admins, users and paid endpoints",
	}
	cmd.AddCommand(
		swarmAction("admins", "List admins", cobra.NoArgs,
			func(ctx context.Context, api *client.SwarmAPI, _ []string) (client.Result, error) {
				return api.ListAdmins(ctx)
			}),
		swarmAction("super-admin", "Show the super admin", cobra.NoArgs,
			func(ctx context.Context, api *client.SwarmAPI, _ []string) (client.Result, error) {
				return api.BoltwallSuperAdmin(ctx)
			}),
		swarmAction("add-admin <pubkey> [name]", "Add an admin pubkey", cobra.RangeArgs(1, 2),
			func(ctx context.Context, api *client.SwarmAPI, args []string) (client.Result, error) {
				return api.AddBoltwallAdmin(ctx, args[0], optionalArg(args, 1))
			}),
		swarmAction("delete-admin <pubkey>", "Remove a sub admin", cobra.ExactArgs(1),
			func(ctx context.Context, api *client.SwarmAPI, args []string) (client.Result, error) {
				return api.DeleteSubAdmin(ctx, args[0])
			}),
		swarmAction("add-user <pubkey> <role> [name]", "Add a user with a numeric role", cobra.RangeArgs(2, 3),
			func(ctx context.Context, api *client.SwarmAPI, args []string) (client.Result, error) {
				role, err := strconv.ParseUint(args[1], 10, 32)
				if err != nil {
					return client.Result{}, fmt.Errorf("invalid role %q", args[1])
				}
				return api.AddBoltwallUser(ctx, args[0], uint32(role), optionalArg(args, 2))
			}),
		swarmAction("update-user <id> <pubkey> <role> <name>", "Update a user", cobra.ExactArgs(4),
			func(ctx context.Context, api *client.SwarmAPI, args []string) (client.Result, error) {
				id, err := strconv.ParseUint(args[0], 10, 32)
				if err != nil {
					return client.Result{}, fmt.Errorf("invalid id %q", args[0])
				}
				role, err := strconv.ParseUint(args[2], 10, 32)
				if err != nil {
					return client.Result{}, fmt.Errorf("invalid role %q", args[2])
				}
				return api.UpdateUser(ctx, client.UpdateUserRequest{Pubkey: args[1], Name: args[3], Role: uint32(role), ID: uint32(id)})
			}),
		swarmAction("endpoints", "List paid endpoints", cobra.NoArgs,
			func(ctx context.Context, api *client.SwarmAPI, _ []string) (client.Result, error) {
				return api.ListPaidEndpoints(ctx)
			}),
		swarmAction("set-endpoint <id> <on|off>", "Enable or disable a paid endpoint", cobra.ExactArgs(2),
			func(ctx context.Context, api *client.SwarmAPI, args []string) (client.Result, error) {
				id, err := strconv.ParseUint(args[0], 10, 64)
				if err != nil {
					return client.Result{}, fmt.Errorf("invalid id %q", args[0])
				}
				on, err := parseSwitch(args[1])
				if err != nil {
					return client.Result{}, err
				}
				return api.UpdatePaidEndpoint(ctx, id, on)
			}),
		swarmAction("public [on|off]", "Show or set public graph access", cobra.MaximumNArgs(1),
			func(ctx context.Context, api *client.SwarmAPI, args []string) (client.Result, error) {
				if len(args) == 0 {
					return api.GraphAccessibility(ctx)
				}
				on, err := parseSwitch(args[0])
				if err != nil {
					return client.Result{}, err
				}
				return api.SetGraphAccessibility(ctx, on)
			}),
	)
	return cmd
}

func newSwarmSecondBrainCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "second-brain",
		Short: "Manage second brain settings",
	}
	cmd.AddCommand(
		swarmAction("about", "Show the about details", cobra.NoArgs,
			func(ctx context.Context, api *client.SwarmAPI, _ []string) (client.Result, error) {
				return api.SecondBrainAbout(ctx)
			}),
		swarmAction("flags", "Show feature flags", cobra.NoArgs,
			func(ctx context.Context, api *client.SwarmAPI, _ []string) (client.Result, error) {
				return api.FeatureFlags(ctx)
			}),
		swarmAction("set-flag <name> <user:on|off> <admin:on|off>", "Toggle a feature flag per audience", cobra.ExactArgs(3),
			func(ctx context.Context, api *client.SwarmAPI, args []string) (client.Result, error) {
				user, err := parseSwitch(args[1])
				if err != nil {
					return client.Result{}, err
				}
				admin, err := parseSwitch(args[2])
				if err != nil {
					return client.Result{}, err
				}
				return api.UpdateFeatureFlags(ctx, map[string]client.FeatureFlagRoles{
					args[0]: {User: user, Admin: admin},
				})
			}),
	)

	about := &cobra.Command{
		Use:   "set-about",
		Short: "Update the about details",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			f := cmd.Flags()
			var req client.SecondBrainAbout
			req.Title, _ = f.GetString("title")
			req.Description, _ = f.GetString("description")
			req.MissionStatement, _ = f.GetString("mission")
			req.SearchTerm, _ = f.GetString("search-term")
			req.AppVersion, _ = f.GetString("app-version")
			return withSession(cmd, func(ctx context.Context, s *session) error {
				return printer(cmd)(s.api.Swarm().UpdateSecondBrainAbout(ctx, req))
			})
		},
	}
	about.Flags().String("title", "", "graph title")
	about.Flags().String("description", "", "graph description")
	about.Flags().String("mission", "", "mission statement")
	about.Flags().String("search-term", "", "default search term")
	about.Flags().String("app-version", "", "app version")
	cmd.AddCommand(about)
	return cmd
}

func optionalArg(args []string, i int) string {
	if i < len(args) {
		return args[i]
	}
	return ""
}

func parseSwitch(v string) (bool, error) {
	switch strings.ToLower(v) {
	case "on", "true", "yes", "1":
		return true, nil
	case "off", "false", "no", "0":
		return false, nil
	}
	return false, fmt.Errorf("expected on or off, got %q", v)
}
