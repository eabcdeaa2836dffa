package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/newtron-network/vland/pkg/auth"
	"github.com/newtron-network/vland/pkg/cli"
	"github.com/newtron-network/vland/pkg/membership"
	"github.com/newtron-network/vland/pkg/model"
	"github.com/newtron-network/vland/pkg/util"
)

var vlanCmd = &cobra.Command{
	Use:   "vlan",
	Short: "Manage VLANs",
	Long: `Manage VLANs.

Examples:
  vlanctl vlan list
  vlanctl vlan show 100
  vlanctl vlan create 100 --name servers --admin up -x
  vlanctl vlan admin 100 down -x
  vlanctl vlan delete 100 -x`,
}

var (
	vlanName        string
	vlanDescription string
	vlanAdmin       string
	vlanAll         bool
)

var vlanCreateCmd = &cobra.Command{
	Use:   "create <vlan-id>",
	Short: "Create a VLAN",
	Long: `Create a VLAN. New VLANs are admin down unless --admin up is given.

Examples:
  vlanctl vlan create 100 --description "Frontend VLAN" -x`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := parseVLANID(args[0])
		if err != nil {
			return err
		}
		admin, err := parseAdminState(vlanAdmin)
		if err != nil {
			return err
		}
		return withWrite("vlan.create", auth.PermVLANCreate, vlanResource(id), func(snap *model.Snapshot) (model.Transaction, error) {
			v := model.NewVLAN(id, vlanName)
			v.Description = vlanDescription
			v.AdminState = admin
			return model.Transaction{model.InsertVLAN(v)}, nil
		})
	},
}

var vlanDeleteCmd = &cobra.Command{
	Use:   "delete <vlan-id>",
	Short: "Delete a VLAN",
	Long: `Delete a VLAN. Ports lose the VLAN from their allowed set, and
access or native ports tagged with it are left without a tag.

Examples:
  vlanctl vlan delete 100 -x`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := parseVLANID(args[0])
		if err != nil {
			return err
		}
		return withWrite("vlan.delete", auth.PermVLANDelete, vlanResource(id), func(snap *model.Snapshot) (model.Transaction, error) {
			return model.Transaction{model.DeleteVLAN(id)}, nil
		})
	},
}

var vlanAdminCmd = &cobra.Command{
	Use:   "admin <vlan-id> <up|down>",
	Short: "Set a VLAN's admin state",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := parseVLANID(args[0])
		if err != nil {
			return err
		}
		admin, err := parseAdminState(args[1])
		if err != nil {
			return err
		}
		return withWrite("vlan.admin", auth.PermVLANModify, vlanResource(id), func(snap *model.Snapshot) (model.Transaction, error) {
			v, err := lookupVLAN(snap, id)
			if err != nil {
				return nil, err
			}
			if v.AdminState == admin {
				return nil, nil
			}
			v = v.Clone()
			v.AdminState = admin
			return model.Transaction{model.ModifyVLAN(v)}, nil
		})
	},
}

var vlanListCmd = &cobra.Command{
	Use:   "list",
	Short: "List VLANs with their derived state",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withStore(func(ctx context.Context, s Store) error {
			snap, err := s.Load(ctx)
			if err != nil {
				return err
			}
			rows, err := vlanRows(ctx, s, snap, vlanAll)
			if err != nil {
				return err
			}

			if jsonOutput {
				return printJSON(rows)
			}
			if len(rows) == 0 {
				fmt.Println("No VLANs configured")
				return nil
			}

			t := cli.NewTable("VLAN ID", "NAME", "ADMIN", "STATE", "MEMBERS")
			for _, r := range rows {
				t.Row(fmt.Sprintf("%d", r.ID), r.Name, string(r.AdminState), stateCell(r), dash(memberNames(r.Members)))
			}
			t.Flush()
			return nil
		})
	},
}

var vlanShowCmd = &cobra.Command{
	Use:   "show <vlan-id>",
	Short: "Show one VLAN",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := parseVLANID(args[0])
		if err != nil {
			return err
		}
		return withStore(func(ctx context.Context, s Store) error {
			snap, err := s.Load(ctx)
			if err != nil {
				return err
			}
			v, err := lookupVLAN(snap, id)
			if err != nil {
				return err
			}
			row, err := newVLANRow(ctx, s, snap, v)
			if err != nil {
				return err
			}

			if jsonOutput {
				return printJSON(row)
			}

			const w = 12
			fmt.Println(cli.KeyValue("VLAN", w, cli.Bold(fmt.Sprintf("%d", v.ID))))
			fmt.Println(cli.KeyValue("Name", w, v.Name))
			if v.Description != "" {
				fmt.Println(cli.KeyValue("Description", w, v.Description))
			}
			fmt.Println(cli.KeyValue("Admin", w, string(v.AdminState)))
			fmt.Println(cli.KeyValue("State", w, stateCell(row)))
			if v.Internal {
				fmt.Println(cli.KeyValue("Internal", w, util.FormatKeyValues(v.InternalUsage)))
			}
			if len(row.Members) == 0 {
				fmt.Println(cli.KeyValue("Members", w, "(none)"))
				return nil
			}
			fmt.Println(cli.KeyValue("Members", w, ""))
			t := cli.NewTable("PORT", "TAGGING").WithPrefix("  ")
			for _, m := range row.Members {
				t.Row(m.Port, string(m.Tagging))
			}
			t.Flush()
			return nil
		})
	},
}

// vlanRow is the list and show view of one VLAN.
type vlanRow struct {
	*model.VLAN
	State     *model.DerivedState `json:"state,omitempty"`
	Published bool                `json:"published"`
	Members   []model.Member      `json:"members"`
}

func newVLANRow(ctx context.Context, s Store, snap *model.Snapshot, v *model.VLAN) (vlanRow, error) {
	row := vlanRow{VLAN: v, Members: membership.Members(snap, v.ID)}
	st, ok, err := s.ReadState(ctx, v.ID)
	if err != nil {
		return row, fmt.Errorf("reading state of VLAN %d: %w", v.ID, err)
	}
	if ok {
		row.State = &st
		row.Published = true
	}
	return row, nil
}

// vlanRows lists VLANs in id order. Internal VLANs backing routed ports
// are skipped unless all is set.
func vlanRows(ctx context.Context, s Store, snap *model.Snapshot, all bool) ([]vlanRow, error) {
	var rows []vlanRow
	for _, id := range snap.VLANIDs() {
		v := snap.VLANs[id]
		if v.IsL3PortInternal() && !all {
			continue
		}
		row, err := newVLANRow(ctx, s, snap, v)
		if err != nil {
			return nil, err
		}
		rows = append(rows, row)
	}
	return rows, nil
}

func vlanResource(id int) string {
	return fmt.Sprintf("VLAN %d", id)
}

func lookupVLAN(snap *model.Snapshot, id int) (*model.VLAN, error) {
	v, ok := snap.VLANs[id]
	if !ok {
		return nil, fmt.Errorf("%w: VLAN %d", util.ErrNotFound, id)
	}
	return v, nil
}

// stateCell renders published state, or a dash when vland has not
// published any for the VLAN.
func stateCell(r vlanRow) string {
	if r.State == nil {
		return cli.Dim("-")
	}
	return cli.State(*r.State)
}

func memberNames(members []model.Member) string {
	names := make([]string, len(members))
	for i, m := range members {
		names[i] = m.Port
		if m.Tagging == model.Untagged {
			names[i] += "(u)"
		}
	}
	return strings.Join(names, ",")
}

func init() {
	vlanCreateCmd.Flags().StringVar(&vlanName, "name", "", "VLAN name (default VLAN<id>)")
	vlanCreateCmd.Flags().StringVar(&vlanDescription, "description", "", "VLAN description")
	vlanCreateCmd.Flags().StringVar(&vlanAdmin, "admin", string(model.AdminDown), "Admin state: up or down")
	vlanListCmd.Flags().BoolVarP(&vlanAll, "all", "a", false, "Include internal VLANs backing routed ports")

	vlanCmd.AddCommand(vlanCreateCmd, vlanDeleteCmd, vlanAdminCmd, vlanListCmd, vlanShowCmd)
}
