package main

import (
	"context"
	"fmt"
	"os"

	"github.com/newtron-network/vland/pkg/configdb"
	"github.com/newtron-network/vland/pkg/hwsink"
	"github.com/newtron-network/vland/pkg/model"
	"github.com/newtron-network/vland/pkg/ovsdb"
	"github.com/newtron-network/vland/pkg/reconcile"
	"github.com/newtron-network/vland/pkg/settings"
)

// openStore connects to the configured store.
func openStore(ctx context.Context, cfg *settings.Settings) (reconcile.Store, error) {
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
		seed, err := loadSeed(seedPath)
		if err != nil {
			return nil, err
		}
		return reconcile.NewMemoryStore(seed), nil
	}
}

// loadSeed reads a config_db.json file. An empty path yields no seed.
func loadSeed(path string) (*model.Snapshot, error) {
	if path == "" {
		return nil, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	tables, err := configdb.TablesFromJSON(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return tables.Snapshot()
}

// openSink creates the configured hardware sink. The returned cleanup
// releases any connection the sink holds.
func openSink(ctx context.Context, cfg *settings.Settings, store reconcile.Store) (hwsink.Sink, func(), error) {
	switch cfg.Sink.Kind {
	case settings.SinkAppDB:
		rs, ok := store.(*configdb.Store)
		if !ok {
			return nil, nil, fmt.Errorf("sink %q requires the redis store", cfg.Sink.Kind)
		}
		c, err := rs.Client(ctx, configdb.ApplDB)
		if err != nil {
			return nil, nil, err
		}
		return hwsink.NewAppDBSink(c), func() { c.Close() }, nil
	case settings.SinkNetlink:
		return hwsink.NewNetlinkSink(cfg.Sink.Bridge), func() {}, nil
	default:
		return hwsink.LogSink{}, func() {}, nil
	}
}
