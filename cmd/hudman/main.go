package main

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/hudman/hudman/internal/config"
)

type rootOptions struct {
	configPath string
	socket     string
	logLevel   string
	timeout    time.Duration
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}
	root := &cobra.Command{
		Use:   "hudman",
		Short: "Automatic HUD layout swapper",
		Long: `hudman keeps a tree of saved HUD layouts and writes the one selected by
the first matching swap rule into a staging slot of the game client.

Examples:
  hudman daemon                        # run the swapper
  hudman check                         # validate the configuration file
  hudman cmd swap Crafting             # run a chat command against the daemon
  hudman resolve Crafting --layer Raid # print an effective layout
  hudman swap add Crafting --job DoH   # add a swap rule to the running daemon
  hudman replay fixtures/crafting.json # replay scripted game states`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&opts.configPath, "config", config.DefaultPath(), "path to YAML config")
	root.PersistentFlags().StringVar(&opts.socket, "socket", "", "path to the hudman control socket")
	root.PersistentFlags().StringVar(&opts.logLevel, "log-level", "info", "log level (trace|debug|info|warn|error)")
	root.PersistentFlags().DurationVar(&opts.timeout, "timeout", 3*time.Second, "control request timeout")

	root.AddCommand(
		newDaemonCmd(opts),
		newCheckCmd(opts),
		newLayoutsCmd(opts),
		newResolveCmd(opts),
		newStatusCmd(opts),
		newInspectCmd(opts),
		newCommandCmd(opts),
		newLockCmd(opts, true),
		newLockCmd(opts, false),
		newReloadCmd(opts),
		newImportCmd(opts),
		newLayoutCmd(opts),
		newSwapCmd(opts),
		newConditionCmd(opts),
		newMetricsCmd(opts),
		newReplayCmd(opts),
		newTUICmd(opts),
	)
	return root
}
