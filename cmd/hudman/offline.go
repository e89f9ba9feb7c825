package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/hudman/hudman/internal/config"
	"github.com/hudman/hudman/internal/hud"
	"github.com/hudman/hudman/internal/layout"
)

func newCheckCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "check [path]",
		Short: "Validate a configuration file",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := opts.configPath
			if len(args) == 1 {
				path = args[0]
			}
			data, err := os.ReadFile(path)
			if err != nil {
				return fmt.Errorf("read config: %w", err)
			}
			cfg, err := config.Parse(data)
			if err != nil {
				return err
			}
			lintErrs := cfg.Lint()
			if len(lintErrs) == 0 {
				fmt.Fprintf(cmd.OutOrStdout(), "Configuration OK: %d layouts, %d swap rules, %d conditions\n", len(cfg.Layouts), len(cfg.Swaps), len(cfg.CustomConditions))
				return nil
			}
			fmt.Fprintf(cmd.ErrOrStderr(), "Configuration has %d issue(s):\n", len(lintErrs))
			for _, lintErr := range lintErrs {
				fmt.Fprintf(cmd.ErrOrStderr(), "- %s\n", lintErr.Error())
			}
			return errors.New("configuration validation failed")
		},
	}
}

func newLayoutsCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "layouts",
		Short: "Print the saved layout tree",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load(opts.configPath)
			if err != nil {
				return err
			}
			forest := layout.BuildTree(cfg.Layouts)
			if forest.Len() == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "(no layouts)")
				return nil
			}
			for _, nd := range forest.Walk() {
				fmt.Fprintf(cmd.OutOrStdout(), "%s%s  %s  (%d elements)\n", strings.Repeat("  ", nd.Depth), nd.Node.Value.Name, nd.Node.ID, len(nd.Node.Value.Elements))
			}
			return nil
		},
	}
}

func newResolveCmd(opts *rootOptions) *cobra.Command {
	var (
		layers []string
		remote bool
		screen string
	)
	cmd := &cobra.Command{
		Use:   "resolve <layout>",
		Short: "Print the effective layout of a layout and optional layers",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var (
				eff *hud.EffectiveLayout
				err error
			)
			if remote {
				cli, cerr := newClient(opts)
				if cerr != nil {
					return cerr
				}
				ctx, cancel := requestContext(cmd, opts)
				defer cancel()
				eff, err = cli.Resolve(ctx, args[0], layers)
			} else {
				eff, err = resolveOffline(opts.configPath, args[0], layers)
			}
			if err != nil {
				return err
			}
			if screen == "" {
				return printJSON(cmd, eff)
			}
			size, err := layout.ParseScreen(screen)
			if err != nil {
				return err
			}
			mode := config.PositionPercent
			if cfg, _, err := config.LoadOrDefault(opts.configPath); err == nil {
				mode = cfg.PositioningMode
			}
			printElements(cmd.OutOrStdout(), eff, size, mode)
			return nil
		},
	}
	cmd.Flags().StringArrayVar(&layers, "layer", nil, "layer layout to apply on top (repeatable)")
	cmd.Flags().BoolVar(&remote, "daemon", false, "resolve against the running daemon's configuration")
	cmd.Flags().StringVar(&screen, "screen", "", "print an element table for a WIDTHxHEIGHT display instead of JSON")
	return cmd
}

func resolveOffline(path, ref string, layerRefs []string) (*hud.EffectiveLayout, error) {
	cfg, err := config.Load(path)
	if err != nil {
		return nil, err
	}
	id, ok := cfg.FindLayout(ref)
	if !ok {
		return nil, fmt.Errorf("%w: %q", layout.ErrNotFound, ref)
	}
	layers := make([]uuid.UUID, 0, len(layerRefs))
	for _, l := range layerRefs {
		lid, ok := cfg.FindLayout(l)
		if !ok {
			return nil, fmt.Errorf("%w: layer %q", layout.ErrNotFound, l)
		}
		layers = append(layers, lid)
	}
	return layout.NewResolver(cfg.Layouts, cfg.AdvancedSwapMode, nil).Resolve(id, layers)
}

// printElements lists element positions in the configured positioning mode.
func printElements(w io.Writer, eff *hud.EffectiveLayout, screen layout.Screen, mode config.PositioningMode) {
	fmt.Fprintf(w, "%s (%s) fingerprint %016x\n", eff.Name, mode, eff.Fingerprint())
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "Element\tX\tY\tScale\tOpacity")
	for _, kind := range eff.SortedKinds() {
		el := eff.Elements[kind]
		x, y := fmt.Sprintf("%.3f%%", el.X), fmt.Sprintf("%.3f%%", el.Y)
		if mode == config.PositionPixels {
			px, py := screen.ToPixels(el.X, el.Y)
			x, y = fmt.Sprintf("%dpx", px), fmt.Sprintf("%dpx", py)
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%.0f%%\t%d\n", kind, x, y, el.Scale*100, el.Opacity)
	}
	tw.Flush()
}

func printJSON(cmd *cobra.Command, v any) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
