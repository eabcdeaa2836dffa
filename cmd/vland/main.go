// vland - VLAN subsystem daemon
//
// vland watches the switch configuration store for VLAN and port
// changes, derives each VLAN's operational state, writes that state back
// for readers and programs VLAN membership into the forwarding plane.
//
// Usage:
//
//	vland run [--config file] [--store redis|ovsdb|memory] [--sink appdb|netlink|log]
//	vland dump [--config file]
//	vland version
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/newtron-network/vland/pkg/settings"
	"github.com/newtron-network/vland/pkg/util"
	"github.com/newtron-network/vland/pkg/version"
)

var (
	configPath string
	storeKind  string
	sinkKind   string
	seedPath   string
	verbose    bool

	cfg *settings.Settings
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:               "vland",
	Short:             "VLAN subsystem daemon",
	SilenceUsage:      true,
	SilenceErrors:     true,
	CompletionOptions: cobra.CompletionOptions{HiddenDefaultCmd: true},
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
		if sinkKind != "" {
			cfg.Sink.Kind = sinkKind
		}
		if err := cfg.Validate(); err != nil {
			return err
		}

		if cfg.Log.Format == "json" {
			util.SetJSONFormat()
		}
		level := cfg.Log.Level
		if verbose {
			level = "debug"
		}
		return util.SetLogLevel(level)
	},
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", settings.DefaultPath, "Configuration file")
	rootCmd.PersistentFlags().StringVar(&storeKind, "store", "", "Configuration store: redis, ovsdb or memory")
	rootCmd.PersistentFlags().StringVar(&seedPath, "seed", "", "config_db.json seeding the memory store")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Debug logging")
	runCmd.Flags().StringVar(&sinkKind, "sink", "", "Hardware sink: appdb, netlink or log")

	rootCmd.AddCommand(runCmd, dumpCmd, versionCmd)
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Println(version.Full("vland"))
	},
}
