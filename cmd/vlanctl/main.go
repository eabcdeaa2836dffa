// vlanctl - VLAN configuration tool
//
// vlanctl edits VLAN and port rows in the configuration store and reads
// back the state vland derived for them. Every write is validated locally
// against the stored configuration before it is applied, and writes
// preview their changes by default (use -x to execute).
//
// Examples:
//
//	vlanctl vlan create 100 --name servers
//	vlanctl vlan admin 100 up -x
//	vlanctl port allow Ethernet0 100 -x
//	vlanctl port native Ethernet4 100 --untagged -x
//	vlanctl internal range 2000 2100 descending -x
//	vlanctl vlan list
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/newtron-network/vland/pkg/audit"
	"github.com/newtron-network/vland/pkg/auth"
	"github.com/newtron-network/vland/pkg/cli"
	"github.com/newtron-network/vland/pkg/configdb"
	"github.com/newtron-network/vland/pkg/model"
	"github.com/newtron-network/vland/pkg/ovsdb"
	"github.com/newtron-network/vland/pkg/settings"
	"github.com/newtron-network/vland/pkg/util"
	"github.com/newtron-network/vland/pkg/validate"
	"github.com/newtron-network/vland/pkg/version"
)

var (
	configPath  string
	storeKind   string
	executeMode bool
	verbose     bool
	jsonOutput  bool

	cfg         *settings.Settings
	permChecker *auth.Checker
)

// Store is what vlanctl needs from a configuration store.
type Store interface {
	Load(ctx context.Context) (*model.Snapshot, error)
	Apply(ctx context.Context, txn model.Transaction) error
	SaveInternalRange(ctx context.Context, r model.InternalRange) error
	ReadState(ctx context.Context, id int) (model.DerivedState, bool, error)
	ReadInternalRange(ctx context.Context) (map[string]string, error)
	Close() error
}

// openStore connects to the store named by the settings. Tests replace it.
var openStore = func(ctx context.Context) (Store, error) {
	switch cfg.Store {
	case settings.StoreRedis:
		opts := configdb.Options{Addr: cfg.Redis.Addr}
		if ssh := cfg.Redis.SSH; ssh != nil {
			opts.Tunnel = &configdb.TunnelConfig{
				Host:       ssh.Host,
				Port:       ssh.Port,
				User:       ssh.User,
				Pass:       ssh.Password,
				KnownHosts: ssh.KnownHosts,
				Remote:     cfg.Redis.Addr,
			}
		}
		return configdb.Open(ctx, opts)
	case settings.StoreOVSDB:
		return ovsdb.Open(ctx, ovsdb.Options{Endpoint: cfg.OVSDB.Endpoint, Timeout: cfg.OVSDB.Timeout})
	default:
		return nil, fmt.Errorf("%w: vlanctl cannot use store %q", util.ErrInvalidConfig, cfg.Store)
	}
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:               "vlanctl",
	Short:             "VLAN configuration tool",
	SilenceUsage:      true,
	SilenceErrors:     true,
	CompletionOptions: cobra.CompletionOptions{HiddenDefaultCmd: true},
	Long: `vlanctl edits VLAN and port configuration and shows derived VLAN state.

Write commands preview changes by default. Use -x to execute.`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if cmd == versionCmd {
			return nil
		}

		var err error
		cfg, err = settings.LoadFrom(configPath)
		if err != nil {
			return fmt.Errorf("loading settings: %w", err)
		}
		if storeKind != "" {
			cfg.Store = storeKind
		}
		permChecker = auth.NewChecker(cfg.Auth)

		// quiet by default, verbose on -v
		if verbose {
			util.SetLogLevel("debug")
		} else {
			util.SetLogLevel("warn")
		}
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", settings.DefaultPath, "Configuration file")
	rootCmd.PersistentFlags().StringVar(&storeKind, "store", "", "Configuration store: redis or ovsdb")
	rootCmd.PersistentFlags().BoolVarP(&executeMode, "execute", "x", false, "Execute changes (default is dry-run)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Verbose output")
	rootCmd.PersistentFlags().BoolVar(&jsonOutput, "json", false, "JSON output")

	rootCmd.AddGroup(
		&cobra.Group{ID: "config", Title: "Configuration:"},
		&cobra.Group{ID: "meta", Title: "Other:"},
	)
	for _, c := range []*cobra.Command{vlanCmd, portCmd, internalCmd} {
		c.GroupID = "config"
	}
	for _, c := range []*cobra.Command{auditCmd, versionCmd} {
		c.GroupID = "meta"
	}
	rootCmd.AddCommand(vlanCmd, portCmd, internalCmd, auditCmd, versionCmd)
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Println(version.Full("vlanctl"))
	},
}

// withStore opens the store for a read command.
func withStore(fn func(ctx context.Context, s Store) error) error {
	ctx := context.Background()
	s, err := openStore(ctx)
	if err != nil {
		return err
	}
	defer s.Close()
	return fn(ctx, s)
}

// authorize checks the current user's permission for an action on
// resource.
func authorize(perm auth.Permission, resource string) error {
	ctx := auth.NewContext().WithDevice(cfg.DeviceName()).WithResource(resource)
	return permChecker.Check(perm, ctx)
}

// withWrite builds a transaction against the stored configuration,
// validates it, prints the resulting row changes and applies them when
// -x is given. fn returns nil when there is nothing to do.
func withWrite(operation string, perm auth.Permission, resource string, fn func(snap *model.Snapshot) (model.Transaction, error)) error {
	if err := authorize(perm, resource); err != nil {
		return err
	}
	return withStore(func(ctx context.Context, s Store) error {
		snap, err := s.Load(ctx)
		if err != nil {
			return err
		}
		txn, err := fn(snap)
		if err != nil {
			return err
		}
		if len(txn) == 0 {
			fmt.Println("No changes")
			return nil
		}

		next, err := validate.Transaction(snap, txn)
		if err != nil {
			return err
		}
		changes := model.Changes(snap, next)
		printChanges(changes.Resources())

		if !executeMode {
			printDryRunNotice()
			return nil
		}
		err = s.Apply(ctx, changes)
		logAudit(operation, changes.Resources(), err)
		if err != nil {
			return fmt.Errorf("applying changes: %w", err)
		}
		fmt.Println(cli.Green("Changes applied."))
		return nil
	})
}

func printChanges(changes []string) {
	fmt.Println("Changes to be applied:")
	for _, c := range changes {
		fmt.Printf("  %s\n", c)
	}
}

func printDryRunNotice() {
	fmt.Println("\n" + cli.Yellow("DRY-RUN: No changes applied. Use -x to execute."))
}

// logAudit records an executed write. The audit log is best effort: a
// log vlanctl cannot open only produces a warning.
func logAudit(operation string, changes []string, err error) {
	if cfg.Audit.Path == "" {
		return
	}
	logger, openErr := audit.NewFileLogger(cfg.Audit.Path, audit.RotationConfig{
		MaxSize:    cfg.Audit.MaxSizeMB * 1024 * 1024,
		MaxBackups: cfg.Audit.MaxBackups,
	})
	if openErr != nil {
		util.Warnf("audit log: %v", openErr)
		return
	}
	defer logger.Close()

	event := audit.NewEvent(permChecker.CurrentUser(), cfg.DeviceName(), operation).
		WithChanges(changes).
		WithResult(err)
	if logErr := logger.Log(event); logErr != nil {
		util.Warnf("audit log: %v", logErr)
	}
}

func printJSON(v interface{}) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func parseVLANID(s string) (int, error) {
	id, err := strconv.Atoi(s)
	if err != nil {
		return 0, fmt.Errorf("invalid VLAN ID: %s", s)
	}
	return id, nil
}

func parseAdminState(s string) (model.AdminState, error) {
	a := model.AdminState(s)
	if !a.Valid() {
		return "", fmt.Errorf("invalid admin state %q: want up or down", s)
	}
	return a, nil
}

func dash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
