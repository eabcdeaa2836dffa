package main

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/newtron-network/vland/pkg/reconcile"
	"github.com/newtron-network/vland/pkg/util"
)

var dumpDaemon bool

var dumpCmd = &cobra.Command{
	Use:   "dump",
	Short: "Print VLANs, ports and derived state",
	Long: `Print VLANs, ports and derived state.

By default the configuration is loaded from the store and derived state
computed locally, without publishing anything. With --daemon the view of
the running daemon is fetched from its metrics address instead.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		if dumpDaemon {
			return dumpFromDaemon(cmd.Context(), os.Stdout, cfg.MetricsAddr)
		}
		return dumpFromStore(cmd.Context(), os.Stdout)
	},
}

func init() {
	dumpCmd.Flags().BoolVar(&dumpDaemon, "daemon", false, "Fetch the running daemon's view")
}

// dumpFromStore computes the view offline. The snapshot is copied into a
// memory store so nothing is written back.
func dumpFromStore(ctx context.Context, w io.Writer) error {
	store, err := openStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer store.Close()

	snap, err := store.Load(ctx)
	if err != nil {
		return err
	}
	r := reconcile.New(reconcile.NewMemoryStore(snap), reconcile.Options{Device: cfg.DeviceName()})
	if err := r.Start(ctx); err != nil {
		return err
	}
	r.Dump(w)
	return nil
}

func dumpFromDaemon(ctx context.Context, w io.Writer, addr string) error {
	if addr == "" {
		return fmt.Errorf("%w: metrics_addr is not set", util.ErrInvalidConfig)
	}
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, "http://"+daemonHost(addr)+"/debug/dump", nil)
	if err != nil {
		return err
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", util.ErrNotConnected, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("daemon returned %s", resp.Status)
	}
	_, err = io.Copy(w, resp.Body)
	return err
}

// daemonHost turns a listen address such as ":9101" into one to dial.
func daemonHost(addr string) string {
	if len(addr) > 0 && addr[0] == ':' {
		return "127.0.0.1" + addr
	}
	return addr
}
