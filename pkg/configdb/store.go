package configdb

import (
	"context"
	"fmt"
	"strings"

	"github.com/go-redis/redis/v8"

	"github.com/newtron-network/vland/pkg/engine"
	"github.com/newtron-network/vland/pkg/model"
	"github.com/newtron-network/vland/pkg/util"
)

// Options configures a Store.
type Options struct {
	// Addr is the Redis address, e.g. "127.0.0.1:6379". Ignored when
	// Tunnel is set.
	Addr   string
	Tunnel *TunnelConfig
}

// Store is a reconcile.Store backed by Redis.
type Store struct {
	config *Client
	state  *Client
	tunnel *SSHTunnel
	addr   string
}

// Open connects to CONFIG_DB and STATE_DB, through an SSH tunnel when
// one is configured.
func Open(ctx context.Context, opts Options) (*Store, error) {
	s := &Store{addr: opts.Addr}

	if opts.Tunnel != nil {
		tunnel, err := NewSSHTunnel(*opts.Tunnel)
		if err != nil {
			return nil, err
		}
		s.tunnel = tunnel
		s.addr = tunnel.LocalAddr()
		s.config = NewClientWithDialer(tunnel.LocalAddr(), ConfigDB, tunnel.Dial)
		s.state = NewClientWithDialer(tunnel.LocalAddr(), StateDB, tunnel.Dial)
	} else {
		s.config = NewClient(opts.Addr, ConfigDB)
		s.state = NewClient(opts.Addr, StateDB)
	}

	if err := s.config.Connect(ctx); err != nil {
		s.Close()
		return nil, fmt.Errorf("%w: config_db: %v", util.ErrNotConnected, err)
	}
	if err := s.state.Connect(ctx); err != nil {
		s.Close()
		return nil, fmt.Errorf("%w: state_db: %v", util.ErrNotConnected, err)
	}
	return s, nil
}

// NewStore wraps existing clients. Used by vlanctl, which reads and
// writes CONFIG_DB without owning STATE_DB publication.
func NewStore(config, state *Client) *Store {
	return &Store{config: config, state: state}
}

// ConfigClient returns the CONFIG_DB client.
func (s *Store) ConfigClient() *Client { return s.config }

// StateClient returns the STATE_DB client.
func (s *Store) StateClient() *Client { return s.state }

// Client opens another database on the same server, through the tunnel
// when there is one. The caller closes it; the tunnel stays owned by s.
func (s *Store) Client(ctx context.Context, db int) (*Client, error) {
	c := NewClient(s.addr, db)
	if s.tunnel != nil {
		c = NewClientWithDialer(s.addr, db, s.tunnel.Dial)
	}
	if err := c.Connect(ctx); err != nil {
		c.Close()
		return nil, fmt.Errorf("%w: db %d: %v", util.ErrNotConnected, db, err)
	}
	return c, nil
}

func (s *Store) Load(ctx context.Context) (*model.Snapshot, error) {
	tables, err := ReadTables(ctx, s.config)
	if err != nil {
		return nil, fmt.Errorf("reading config_db: %w", err)
	}
	return tables.Snapshot()
}

func (s *Store) Apply(ctx context.Context, txn model.Transaction) error {
	return s.config.PipelineSet(ctx, ChangesFor(txn))
}

// SaveInternalRange merges the range into DEVICE_METADATA|localhost,
// leaving the row's other fields alone.
func (s *Store) SaveInternalRange(ctx context.Context, r model.InternalRange) error {
	return s.config.Set(ctx, TableDeviceMetadata, metadataKey, r.Fields())
}

func (s *Store) Publish(ctx context.Context, changes []engine.StateChange) error {
	rows := make([]TableChange, 0, len(changes))
	for _, c := range changes {
		change := TableChange{Table: TableVLANState, Key: VLANKey(c.VLANID)}
		if !c.Deleted {
			change.Fields = StateFields(c.Name, c.State)
		}
		rows = append(rows, change)
	}
	return s.state.PipelineSet(ctx, rows)
}

func (s *Store) PublishInternalRange(ctx context.Context, r model.InternalRange) error {
	return s.state.Set(ctx, TableInternalVLAN, internalRangeKey, RangeStateFields(r))
}

// ReadState reads the published derived state of one VLAN.
func (s *Store) ReadState(ctx context.Context, id int) (model.DerivedState, bool, error) {
	vals, err := s.state.Get(ctx, TableVLANState, VLANKey(id))
	if err != nil || len(vals) == 0 {
		return model.DerivedState{}, false, err
	}
	return StateFromFields(vals), true, nil
}

// ReadInternalRange reads the published internal range.
func (s *Store) ReadInternalRange(ctx context.Context) (map[string]string, error) {
	return s.state.Get(ctx, TableInternalVLAN, internalRangeKey)
}

// watchedTables are the CONFIG_DB tables whose changes trigger a resync.
var watchedTables = []string{TableVLAN, TablePortVLAN, TableDeviceMetadata}

// Watch subscribes to keyspace notifications for the watched tables.
// Notifications are coalesced: the returned channel holds at most one
// pending value.
func (s *Store) Watch(ctx context.Context) (<-chan struct{}, error) {
	// Keyspace events for generic and hash commands. Managed Redis may
	// refuse CONFIG SET; notifications then depend on the server config.
	if err := s.config.client.ConfigSet(ctx, "notify-keyspace-events", "Kgh").Err(); err != nil {
		util.WithComponent("configdb").Warnf("enabling keyspace notifications: %v", err)
	}

	patterns := make([]string, len(watchedTables))
	for i, t := range watchedTables {
		patterns[i] = fmt.Sprintf("__keyspace@%d__:%s*", ConfigDB, s.config.Key(t, ""))
	}
	ps := s.config.client.PSubscribe(ctx, patterns...)
	if _, err := ps.Receive(ctx); err != nil {
		ps.Close()
		return nil, fmt.Errorf("subscribing to %s: %w", strings.Join(patterns, " "), err)
	}

	out := make(chan struct{}, 1)
	go func() {
		defer close(out)
		defer ps.Close()
		msgs := ps.Channel()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-msgs:
				if !ok {
					return
				}
				logKeyspaceEvent(msg)
				select {
				case out <- struct{}{}:
				default:
				}
			}
		}
	}()
	return out, nil
}

func logKeyspaceEvent(msg *redis.Message) {
	key := msg.Channel[strings.Index(msg.Channel, ":")+1:]
	util.WithComponent("configdb").Debugf("keyspace %s %s", msg.Payload, key)
}

func (s *Store) Close() error {
	var firstErr error
	for _, c := range []*Client{s.config, s.state} {
		if c == nil {
			continue
		}
		if err := c.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	if s.tunnel != nil {
		if err := s.tunnel.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
