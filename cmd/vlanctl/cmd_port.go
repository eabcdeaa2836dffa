package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
	"k8s.io/apimachinery/pkg/util/sets"

	"github.com/newtron-network/vland/pkg/auth"
	"github.com/newtron-network/vland/pkg/cli"
	"github.com/newtron-network/vland/pkg/membership"
	"github.com/newtron-network/vland/pkg/model"
	"github.com/newtron-network/vland/pkg/util"
)

var portCmd = &cobra.Command{
	Use:   "port",
	Short: "Manage port VLAN membership",
	Long: `Manage port VLAN membership and L3 mode.

Examples:
  vlanctl port show
  vlanctl port set Ethernet0 --mode trunk --trunks 100,200-210 -x
  vlanctl port set Ethernet4 --mode access --tag 100 -x
  vlanctl port allow Ethernet0 300 -x
  vlanctl port native Ethernet0 100 --untagged -x
  vlanctl port routing Ethernet8 on -x
  vlanctl port ip Ethernet8 10.0.0.1/31 -x`,
}

var (
	portMode     string
	portTag      int
	portTrunks   string
	portAdmin    string
	portUntagged bool
)

// editPort loads a port, or a new default port when create is set, and
// turns the edited copy into an insert or modify.
func editPort(operation, name string, create bool, edit func(p *model.Port) (*model.Port, error)) error {
	return withWrite(operation, auth.PermPortModify, "port "+name, func(snap *model.Snapshot) (model.Transaction, error) {
		cur, exists := snap.Ports[name]
		if !exists {
			if !create {
				return nil, fmt.Errorf("%w: port %s", util.ErrNotFound, name)
			}
			cur = model.NewPort(name)
		}
		next, err := edit(cur)
		if err != nil {
			return nil, err
		}
		if !exists {
			return model.Transaction{model.InsertPort(next)}, nil
		}
		if next.ConfigEqual(cur) {
			return nil, nil
		}
		return model.Transaction{model.ModifyPort(next)}, nil
	})
}

var portSetCmd = &cobra.Command{
	Use:   "set <port>",
	Short: "Create or update a port's L2 configuration",
	Long: `Create or update a port's L2 configuration. Only the given flags
change; a port that does not exist is created admin up in trunk mode.
--tag 0 clears the access or native VLAN.

Examples:
  vlanctl port set Ethernet0 --mode trunk --trunks 100,200-210 -x
  vlanctl port set Ethernet4 --mode access --tag 100 --admin up -x`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		flags := cmd.Flags()
		return editPort("port.set", args[0], true, func(p *model.Port) (*model.Port, error) {
			p = p.Clone()
			if flags.Changed("mode") {
				mode := model.VLANMode(portMode)
				if !mode.Valid() {
					return nil, fmt.Errorf("invalid mode %q: want one of %v", portMode, model.Modes)
				}
				p.VLANMode = mode
			}
			if flags.Changed("tag") {
				if portTag == 0 {
					p = membership.ClearTag(p)
				} else {
					p.Tag = portTag
				}
			}
			if flags.Changed("trunks") {
				trunks, err := util.ExpandRange(portTrunks)
				if err != nil {
					return nil, fmt.Errorf("invalid trunks %q: %w", portTrunks, err)
				}
				p.Trunks = model.NormalizeTrunks(trunks)
			}
			if flags.Changed("admin") {
				admin, err := parseAdminState(portAdmin)
				if err != nil {
					return nil, err
				}
				p.AdminState = admin
			}
			return p, nil
		})
	},
}

var portAllowCmd = &cobra.Command{
	Use:   "allow <port> <vlan-id>",
	Short: "Add a VLAN to a port's allowed trunk set",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		vid, err := parseVLANID(args[1])
		if err != nil {
			return err
		}
		return editPort("port.allow", args[0], true, func(p *model.Port) (*model.Port, error) {
			return membership.Allow(p, vid), nil
		})
	},
}

var portDisallowCmd = &cobra.Command{
	Use:   "disallow <port> <vlan-id>",
	Short: "Remove a VLAN from a port's allowed trunk set",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		vid, err := parseVLANID(args[1])
		if err != nil {
			return err
		}
		return editPort("port.disallow", args[0], false, func(p *model.Port) (*model.Port, error) {
			if !sets.New(p.Trunks...).Has(vid) {
				return nil, fmt.Errorf("%w: VLAN %d is not allowed on %s", util.ErrNotFound, vid, p.Name)
			}
			return membership.Disallow(p, vid), nil
		})
	},
}

var portNativeCmd = &cobra.Command{
	Use:   "native <port> <vlan-id|none>",
	Short: "Set or clear a port's native VLAN",
	Long: `Set a port's native VLAN. The native VLAN egresses tagged unless
--untagged is given. "none" clears it and returns the port to trunk mode.

Examples:
  vlanctl port native Ethernet0 100 --untagged -x
  vlanctl port native Ethernet0 none -x`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		if args[1] == "none" {
			return editPort("port.native", args[0], false, func(p *model.Port) (*model.Port, error) {
				return membership.ClearTag(p), nil
			})
		}
		vid, err := parseVLANID(args[1])
		if err != nil {
			return err
		}
		return editPort("port.native", args[0], true, func(p *model.Port) (*model.Port, error) {
			return membership.SetNative(p, vid, !portUntagged), nil
		})
	},
}

var portRoutingCmd = &cobra.Command{
	Use:   "routing <port> <on|off>",
	Short: "Put a port in L3 or L2 mode",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		var routing bool
		switch args[1] {
		case "on":
			routing = true
		case "off":
		default:
			return fmt.Errorf("invalid routing %q: want on or off", args[1])
		}
		return editPort("port.routing", args[0], true, func(p *model.Port) (*model.Port, error) {
			return membership.SetRouting(p, routing), nil
		})
	},
}

var portAdminCmd = &cobra.Command{
	Use:   "admin <port> <up|down>",
	Short: "Set a port's admin state",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		admin, err := parseAdminState(args[1])
		if err != nil {
			return err
		}
		return editPort("port.admin", args[0], false, func(p *model.Port) (*model.Port, error) {
			c := p.Clone()
			c.AdminState = admin
			return c, nil
		})
	},
}

var portIPCmd = &cobra.Command{
	Use:   "ip <port> <address/prefix|none>",
	Short: "Set or clear a port's IPv4 address",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		addr := args[1]
		if addr == "none" {
			addr = ""
		} else if !util.IsValidIPv4CIDR(addr) {
			return fmt.Errorf("invalid IPv4 address %q: want address/prefix", addr)
		}
		return editPort("port.ip", args[0], false, func(p *model.Port) (*model.Port, error) {
			c := p.Clone()
			c.IP4Address = addr
			return c, nil
		})
	},
}

var portDeleteCmd = &cobra.Command{
	Use:   "delete <port>",
	Short: "Delete a port's VLAN configuration",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		name := args[0]
		return withWrite("port.delete", auth.PermPortDelete, "port "+name, func(snap *model.Snapshot) (model.Transaction, error) {
			if _, ok := snap.Ports[name]; !ok {
				return nil, fmt.Errorf("%w: port %s", util.ErrNotFound, name)
			}
			return model.Transaction{model.DeletePort(name)}, nil
		})
	},
}

// portRow is the show view of one port.
type portRow struct {
	*model.Port
	Mode  model.VLANMode `json:"effective_mode"`
	VLANs []int          `json:"vlans"`
}

var portShowCmd = &cobra.Command{
	Use:   "show [port]",
	Short: "Show ports and the VLANs they carry",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withStore(func(ctx context.Context, s Store) error {
			snap, err := s.Load(ctx)
			if err != nil {
				return err
			}
			names := snap.PortNames()
			if len(args) == 1 {
				if _, ok := snap.Ports[args[0]]; !ok {
					return fmt.Errorf("%w: port %s", util.ErrNotFound, args[0])
				}
				names = args
			}

			rows := make([]portRow, 0, len(names))
			for _, name := range names {
				p := snap.Ports[name]
				rows = append(rows, portRow{
					Port:  p,
					Mode:  p.Mode(),
					VLANs: sets.List(membership.Effective(p, snap)),
				})
			}

			if jsonOutput {
				return printJSON(rows)
			}
			if len(rows) == 0 {
				fmt.Println("No ports configured")
				return nil
			}

			t := cli.NewTable("PORT", "MODE", "TAG", "TRUNKS", "ADMIN", "L3", "VLANS")
			for _, r := range rows {
				tag := "-"
				if r.HasTag() {
					tag = fmt.Sprintf("%d", r.Tag)
				}
				l3 := "-"
				if r.Routing {
					l3 = cli.Green(dash(r.IP4Address))
				}
				t.Row(r.Name, string(r.Mode), tag, dash(util.CompactRange(r.Trunks)),
					string(r.AdminState), l3, dash(util.CompactRange(r.VLANs)))
			}
			t.Flush()
			return nil
		})
	},
}

func init() {
	portSetCmd.Flags().StringVar(&portMode, "mode", "", "VLAN mode: access, trunk, native-tagged or native-untagged")
	portSetCmd.Flags().IntVar(&portTag, "tag", 0, "Access or native VLAN (0 clears)")
	portSetCmd.Flags().StringVar(&portTrunks, "trunks", "", "Allowed trunk VLANs, e.g. 100,200-210")
	portSetCmd.Flags().StringVar(&portAdmin, "admin", "", "Admin state: up or down")
	portNativeCmd.Flags().BoolVar(&portUntagged, "untagged", false, "Native VLAN egresses untagged")

	portCmd.AddCommand(portSetCmd, portAllowCmd, portDisallowCmd, portNativeCmd, portRoutingCmd,
		portAdminCmd, portIPCmd, portDeleteCmd, portShowCmd)
}
