package main

import (
	"context"
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/newtron-network/vland/pkg/allocator"
	"github.com/newtron-network/vland/pkg/auth"
	"github.com/newtron-network/vland/pkg/cli"
	"github.com/newtron-network/vland/pkg/model"
	"github.com/newtron-network/vland/pkg/util"
)

var internalCmd = &cobra.Command{
	Use:   "internal",
	Short: "Manage the internal VLAN range",
	Long: `Manage the range and policy vland allocates internal VLANs from.

Examples:
  vlanctl internal show
  vlanctl internal range 2000 2100 descending -x
  vlanctl internal unset -x`,
}

// rangeLabelWidth aligns the internal show output.
const rangeLabelWidth = 20

var internalRangeCmd = &cobra.Command{
	Use:   "range <start> <end> [ascending|descending]",
	Short: "Configure the internal VLAN range",
	Args:  cobra.RangeArgs(2, 3),
	RunE: func(cmd *cobra.Command, args []string) error {
		start, err := strconv.Atoi(args[0])
		if err != nil {
			return fmt.Errorf("invalid range start: %s", args[0])
		}
		end, err := strconv.Atoi(args[1])
		if err != nil {
			return fmt.Errorf("invalid range end: %s", args[1])
		}
		policy := model.PolicyAscending
		if len(args) == 3 {
			policy = model.Policy(args[2])
		}
		return saveRange("internal.configure", model.InternalRange{Start: start, End: end, Policy: policy})
	},
}

var internalUnsetCmd = &cobra.Command{
	Use:   "unset",
	Short: "Restore the default internal VLAN range",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return saveRange("internal.unconfigure", model.DefaultInternalRange())
	},
}

func saveRange(operation string, r model.InternalRange) error {
	if err := authorize(auth.PermInternalConfigure, "internal VLAN range"); err != nil {
		return err
	}
	if err := allocator.ValidateRange(r.Start, r.End, r.Policy); err != nil {
		return err
	}
	return withStore(func(ctx context.Context, s Store) error {
		snap, err := s.Load(ctx)
		if err != nil {
			return err
		}
		if snap.InternalRange == r {
			fmt.Println("No changes")
			return nil
		}
		change := fmt.Sprintf("internal range %s %s", r, r.Policy)
		printChanges([]string{change})
		if !executeMode {
			printDryRunNotice()
			return nil
		}
		err = s.SaveInternalRange(ctx, r)
		logAudit(operation, []string{change}, err)
		if err != nil {
			return fmt.Errorf("saving internal range: %w", err)
		}
		fmt.Println(cli.Green("Changes applied."))
		return nil
	})
}

var internalShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show the active internal VLAN range",
	Long: `Show the internal VLAN range and policy. The range vland published
is shown when there is one; otherwise the configured range.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withStore(func(ctx context.Context, s Store) error {
			rng, policy, err := activeRange(ctx, s)
			if err != nil {
				return err
			}
			if jsonOutput {
				return printJSON(map[string]string{"range": rng, "policy": policy})
			}
			fmt.Println(cli.KeyValue("Internal VLAN range", rangeLabelWidth, rng))
			fmt.Println(cli.KeyValue("Internal VLAN policy", rangeLabelWidth, policy))
			return nil
		})
	},
}

// activeRange returns the published range and policy, falling back to
// the configured ones before vland has published.
func activeRange(ctx context.Context, s Store) (string, string, error) {
	published, err := s.ReadInternalRange(ctx)
	if err != nil {
		util.Debugf("reading published internal range: %v", err)
	}
	if published["range"] != "" {
		return published["range"], published["policy"], nil
	}

	snap, err := s.Load(ctx)
	if err != nil {
		return "", "", err
	}
	r := snap.InternalRange
	if r.IsZero() {
		r = model.DefaultInternalRange()
	}
	return r.String(), string(r.Policy), nil
}

func init() {
	internalCmd.AddCommand(internalRangeCmd, internalUnsetCmd, internalShowCmd)
}
