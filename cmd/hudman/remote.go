package main

import (
	"context"
	"fmt"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/hudman/hudman/internal/command"
	"github.com/hudman/hudman/internal/control/client"
	"github.com/hudman/hudman/internal/ui/tui"
)

func newClient(opts *rootOptions) (*client.Client, error) {
	return client.New(opts.socket)
}

func requestContext(cmd *cobra.Command, opts *rootOptions) (context.Context, context.CancelFunc) {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithTimeout(ctx, opts.timeout)
}

// remoteCmd builds a command that runs fn against the daemon.
func remoteCmd(opts *rootOptions, use, short string, args cobra.PositionalArgs, fn func(context.Context, *cobra.Command, *client.Client, []string) error) *cobra.Command {
	return &cobra.Command{
		Use:   use,
		Short: short,
		Args:  args,
		RunE: func(cmd *cobra.Command, argv []string) error {
			cli, err := newClient(opts)
			if err != nil {
				return err
			}
			ctx, cancel := requestContext(cmd, opts)
			defer cancel()
			return fn(ctx, cmd, cli, argv)
		},
	}
}

func newStatusCmd(opts *rootOptions) *cobra.Command {
	return remoteCmd(opts, "status", "Show the swapper status", cobra.NoArgs, func(ctx context.Context, cmd *cobra.Command, cli *client.Client, _ []string) error {
		st, err := cli.Status(ctx)
		if err != nil {
			return err
		}
		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "Swapper: %s\n", enabledLabel(st.SwapsEnabled))
		fmt.Fprintf(out, "Staging slot: %d\n", st.StagingSlot)
		fmt.Fprintf(out, "Edit lock: %t\n", st.Locked)
		if st.Suspended != "" {
			fmt.Fprintf(out, "Suspended: %s\n", st.Suspended)
		}
		active := st.ActiveLayout
		if active == "" {
			active = "(none)"
		}
		if len(st.Layers) > 0 {
			active += " + " + strings.Join(st.Layers, ", ")
		}
		fmt.Fprintf(out, "Active layout: %s\n", active)
		if st.Fingerprint != "" {
			fmt.Fprintf(out, "Fingerprint: %s\n", st.Fingerprint)
		}
		fmt.Fprintf(out, "Pending force: %s\n", st.PendingForce)
		fmt.Fprintf(out, "Condition provider: %s\n", enabledLabel(st.ProviderAvailable))
		return nil
	})
}

func newInspectCmd(opts *rootOptions) *cobra.Command {
	var asJSON bool
	cmd := remoteCmd(opts, "inspect", "Print the inspector view once", cobra.NoArgs, func(ctx context.Context, cmd *cobra.Command, cli *client.Client, _ []string) error {
		insp, err := cli.Inspect(ctx)
		if err != nil {
			return err
		}
		if asJSON {
			return printJSON(cmd, insp)
		}
		r := tui.New(cli, cmd.OutOrStdout())
		r.Traces = true
		fmt.Fprint(cmd.OutOrStdout(), r.Render(insp))
		return nil
	})
	cmd.Flags().BoolVar(&asJSON, "json", false, "print raw JSON")
	return cmd
}

func newCommandCmd(opts *rootOptions) *cobra.Command {
	cmd := remoteCmd(opts, "cmd <words...>", "Run a chat command such as \"swap Crafting\"", cobra.MinimumNArgs(1), func(ctx context.Context, cmd *cobra.Command, cli *client.Client, args []string) error {
		msg, err := cli.Command(ctx, strings.Join(args, " "))
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), msg)
		return nil
	})
	cmd.Long = "Chat commands:\n  " + strings.Join(command.Usage(), "\n  ")
	return cmd
}

func newLockCmd(opts *rootOptions, lock bool) *cobra.Command {
	if lock {
		return remoteCmd(opts, "lock", "Suspend swapping while editing the HUD", cobra.NoArgs, func(ctx context.Context, cmd *cobra.Command, cli *client.Client, _ []string) error {
			if err := cli.Lock(ctx); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "edit lock engaged")
			return nil
		})
	}
	return remoteCmd(opts, "unlock", "Release the edit lock", cobra.NoArgs, func(ctx context.Context, cmd *cobra.Command, cli *client.Client, _ []string) error {
		if err := cli.Unlock(ctx); err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), "edit lock released")
		return nil
	})
}

func newReloadCmd(opts *rootOptions) *cobra.Command {
	return remoteCmd(opts, "reload", "Trigger a live config reload", cobra.NoArgs, func(ctx context.Context, cmd *cobra.Command, cli *client.Client, _ []string) error {
		if err := cli.Reload(ctx); err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), "reload requested")
		return nil
	})
}

func newImportCmd(opts *rootOptions) *cobra.Command {
	var slot int
	cmd := remoteCmd(opts, "import <name>", "Save a live HUD slot as a layout", cobra.ExactArgs(1), func(ctx context.Context, cmd *cobra.Command, cli *client.Client, args []string) error {
		res, err := cli.Import(ctx, args[0], slot)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "imported slot %d as %s (%s)\n", slot, res.Name, res.ID)
		return nil
	})
	cmd.Flags().IntVar(&slot, "slot", 1, "HUD slot to import (1-4)")
	return cmd
}

func newMetricsCmd(opts *rootOptions) *cobra.Command {
	return remoteCmd(opts, "metrics", "Print telemetry counters", cobra.NoArgs, func(ctx context.Context, cmd *cobra.Command, cli *client.Client, _ []string) error {
		snap, err := cli.Metrics(ctx)
		if err != nil {
			return err
		}
		return printJSON(cmd, snap)
	})
}

func newTUICmd(opts *rootOptions) *cobra.Command {
	var traces bool
	cmd := &cobra.Command{
		Use:   "tui",
		Short: "Launch the live inspector dashboard",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cli, err := newClient(opts)
			if err != nil {
				return err
			}
			parent := cmd.Context()
			if parent == nil {
				parent = context.Background()
			}
			ctx, stop := signal.NotifyContext(parent, syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			r := tui.New(cli, cmd.OutOrStdout())
			r.Traces = traces
			if err := r.Run(ctx); err != nil && ctx.Err() == nil {
				return err
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&traces, "traces", false, "expand rule predicate traces")
	return cmd
}

func enabledLabel(v bool) string {
	if v {
		return "enabled"
	}
	return "disabled"
}
