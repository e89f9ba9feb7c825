package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/hudman/hudman/internal/control"
	"github.com/hudman/hudman/internal/control/client"
)

// editCmd sends one configuration edit built from the positional args and
// the flags the user actually set.
func editCmd(opts *rootOptions, use, short string, args cobra.PositionalArgs, action string, build func(*cobra.Command, []string) map[string]any) *cobra.Command {
	return remoteCmd(opts, use, short, args, func(ctx context.Context, cmd *cobra.Command, cli *client.Client, argv []string) error {
		msg, err := cli.Edit(ctx, action, build(cmd, argv))
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), msg)
		return nil
	})
}

// changedFlags copies every flag set on the command line into params under
// its flag name.
func changedFlags(flags *pflag.FlagSet, params map[string]any) map[string]any {
	flags.Visit(func(f *pflag.Flag) {
		switch f.Value.Type() {
		case "float64":
			v, _ := flags.GetFloat64(f.Name)
			params[f.Name] = v
		case "int":
			v, _ := flags.GetInt(f.Name)
			params[f.Name] = v
		case "bool":
			v, _ := flags.GetBool(f.Name)
			params[f.Name] = v
		case "uintSlice":
			v, _ := flags.GetUintSlice(f.Name)
			params[f.Name] = v
		default:
			params[f.Name] = f.Value.String()
		}
	})
	return params
}

func newLayoutCmd(opts *rootOptions) *cobra.Command {
	cmd := &cobra.Command{Use: "layout", Short: "Edit saved layouts in the running daemon"}

	rename := editCmd(opts, "rename <layout> <name>", "Rename a layout", cobra.ExactArgs(2), control.ActionLayoutRename,
		func(_ *cobra.Command, args []string) map[string]any {
			return map[string]any{"layout": args[0], "name": args[1]}
		})
	parent := editCmd(opts, "parent <layout> [parent]", "Set the parent of a layout; omit parent to make it a root", cobra.RangeArgs(1, 2), control.ActionLayoutParent,
		func(_ *cobra.Command, args []string) map[string]any {
			params := map[string]any{"layout": args[0]}
			if len(args) == 2 {
				params["parent"] = args[1]
			}
			return params
		})
	del := editCmd(opts, "delete <layout>", "Delete a layout; its children become roots", cobra.ExactArgs(1), control.ActionLayoutDelete,
		func(_ *cobra.Command, args []string) map[string]any {
			return map[string]any{"layout": args[0]}
		})
	set := editCmd(opts, "set <layout> <element>", "Override element fields in a layout", cobra.ExactArgs(2), control.ActionLayoutElement,
		func(c *cobra.Command, args []string) map[string]any {
			return changedFlags(c.Flags(), map[string]any{"layout": args[0], "element": args[1]})
		})
	set.Flags().Float64("x", 0, "horizontal position")
	set.Flags().Float64("y", 0, "vertical position")
	set.Flags().Float64("scale", 1, "element scale")
	set.Flags().Int("opacity", 255, "opacity (0-255)")
	set.Flags().String("visibility", "", "shown on keyboard|gamepad|both|none")

	cmd.AddCommand(rename, parent, del, set)
	return cmd
}

func newSwapCmd(opts *rootOptions) *cobra.Command {
	cmd := &cobra.Command{Use: "swap", Short: "Edit swap rules in the running daemon"}
	add := editCmd(opts, "add <layout>", "Append a swap rule selecting layout", cobra.ExactArgs(1), control.ActionSwapAdd,
		func(c *cobra.Command, args []string) map[string]any {
			return changedFlags(c.Flags(), map[string]any{"layout": args[0]})
		})
	add.Flags().String("job", "", "job or job category, e.g. Tank or ARC_BRD")
	add.Flags().String("status", "", "status such as InCombat")
	add.Flags().String("condition", "", "custom condition name")
	add.Flags().Bool("layer", false, "apply the layout as a layer on top of the base")
	cmd.AddCommand(add)
	return cmd
}

func newConditionCmd(opts *rootOptions) *cobra.Command {
	cmd := &cobra.Command{Use: "condition", Short: "Edit custom conditions in the running daemon"}

	add := editCmd(opts, "add <kind> [name]", "Add a toggle, keybind, zone, provider or multi condition", cobra.RangeArgs(1, 2), control.ActionConditionAdd,
		func(c *cobra.Command, args []string) map[string]any {
			params := map[string]any{"kind": args[0]}
			if len(args) == 2 {
				params["name"] = args[1]
			}
			return changedFlags(c.Flags(), params)
		})
	add.Flags().Float64("holdTime", 0, "seconds a keybind condition stays on after release")
	add.Flags().String("modifier", "", "keybind modifier key")
	add.Flags().String("key", "", "keybind key")
	add.Flags().UintSlice("zones", nil, "zone ids for a zone condition")
	add.Flags().Int("providerIndex", -1, "provider slot for a provider condition")

	update := editCmd(opts, "update <name>", "Rename a condition or change its hold time", cobra.ExactArgs(1), control.ActionConditionUpdate,
		func(c *cobra.Command, args []string) map[string]any {
			return changedFlags(c.Flags(), map[string]any{"name": args[0]})
		})
	update.Flags().String("rename", "", "new condition name")
	update.Flags().Float64("holdTime", 0, "seconds a keybind condition stays on after release")

	operand := editCmd(opts, "operand <name> <operand>", "Append status:X, condition:Y or job:Z to a multi condition", cobra.ExactArgs(2), control.ActionConditionOperand,
		func(c *cobra.Command, args []string) map[string]any {
			return changedFlags(c.Flags(), map[string]any{"name": args[0], "operand": args[1]})
		})
	operand.Flags().String("junction", "and", "and|or")
	operand.Flags().Bool("negate", false, "negate the operand")

	remove := editCmd(opts, "remove <name>", "Remove an unused condition", cobra.ExactArgs(1), control.ActionConditionRemove,
		func(_ *cobra.Command, args []string) map[string]any {
			return map[string]any{"name": args[0]}
		})

	cmd.AddCommand(add, update, operand, remove)
	return cmd
}
