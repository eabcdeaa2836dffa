package ovsdb

import (
	"context"
	"fmt"
	"maps"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/ovn-org/libovsdb/cache"
	"github.com/ovn-org/libovsdb/client"
	libmodel "github.com/ovn-org/libovsdb/model"
	libovsdb "github.com/ovn-org/libovsdb/ovsdb"

	"github.com/newtron-network/vland/pkg/engine"
	"github.com/newtron-network/vland/pkg/model"
	"github.com/newtron-network/vland/pkg/util"
)

// DefaultTimeout bounds a single transaction, retries included.
const DefaultTimeout = 10 * time.Second

// Options configures a Store.
type Options struct {
	// Endpoint is the OVSDB server, e.g. "unix:/var/run/openvswitch/db.sock"
	// or "tcp:127.0.0.1:6640".
	Endpoint string
	Timeout  time.Duration
}

// Store is a reconcile.Store backed by an OVSDB server. Reads come from
// the client cache, which MonitorAll keeps current.
type Store struct {
	client  client.Client
	timeout time.Duration

	mu       sync.Mutex
	watchers map[chan struct{}]struct{}
}

// Open connects to the server and starts monitoring every table.
func Open(ctx context.Context, opts Options) (*Store, error) {
	if opts.Timeout == 0 {
		opts.Timeout = DefaultTimeout
	}
	dbModel, err := DBModel()
	if err != nil {
		return nil, fmt.Errorf("building %s model: %w", DatabaseName, err)
	}
	c, err := client.NewOVSDBClient(dbModel,
		client.WithEndpoint(opts.Endpoint),
		client.WithReconnect(opts.Timeout, backoff.NewExponentialBackOff()),
	)
	if err != nil {
		return nil, fmt.Errorf("creating ovsdb client: %w", err)
	}
	if err := c.Connect(ctx); err != nil {
		return nil, fmt.Errorf("%w: ovsdb %s: %v", util.ErrNotConnected, opts.Endpoint, err)
	}

	s := newStore(c, opts.Timeout)
	c.Cache().AddEventHandler(&cache.EventHandlerFuncs{
		AddFunc:    func(table string, _ libmodel.Model) { s.notify(table) },
		UpdateFunc: s.onUpdate,
		DeleteFunc: func(table string, _ libmodel.Model) { s.notify(table) },
	})
	if _, err := c.MonitorAll(ctx); err != nil {
		c.Close()
		return nil, fmt.Errorf("monitoring %s: %w", DatabaseName, err)
	}
	util.WithComponent("ovsdb").Infof("connected to %s", opts.Endpoint)
	return s, nil
}

func newStore(c client.Client, timeout time.Duration) *Store {
	return &Store{
		client:   c,
		timeout:  timeout,
		watchers: make(map[chan struct{}]struct{}),
	}
}

// onUpdate ignores updates that touch only columns vland itself
// publishes, so publishing does not trigger another resync.
func (s *Store) onUpdate(table string, oldRow, newRow libmodel.Model) {
	switch table {
	case TableVLAN:
		o, ok1 := oldRow.(*VLAN)
		n, ok2 := newRow.(*VLAN)
		if ok1 && ok2 && configEqual(o, n) {
			return
		}
	case TableSystem:
		o, ok1 := oldRow.(*System)
		n, ok2 := newRow.(*System)
		if ok1 && ok2 && maps.Equal(o.OtherConfig, n.OtherConfig) {
			return
		}
	}
	s.notify(table)
}

func (s *Store) notify(table string) {
	util.WithComponent("ovsdb").Debugf("%s changed", table)
	s.mu.Lock()
	defer s.mu.Unlock()
	for ch := range s.watchers {
		select {
		case ch <- struct{}{}:
		default:
		}
	}
}

func (s *Store) Watch(ctx context.Context) (<-chan struct{}, error) {
	ch := make(chan struct{}, 1)
	s.mu.Lock()
	s.watchers[ch] = struct{}{}
	s.mu.Unlock()

	go func() {
		<-ctx.Done()
		s.mu.Lock()
		delete(s.watchers, ch)
		s.mu.Unlock()
		close(ch)
	}()
	return ch, nil
}

func (s *Store) Load(ctx context.Context) (*model.Snapshot, error) {
	var vlans []VLAN
	if err := s.client.List(ctx, &vlans); err != nil {
		return nil, fmt.Errorf("listing %s: %w", TableVLAN, err)
	}
	var ports []Port
	if err := s.client.List(ctx, &ports); err != nil {
		return nil, fmt.Errorf("listing %s: %w", TablePort, err)
	}
	sys, err := s.system(ctx)
	if err != nil {
		return nil, err
	}
	return Snapshot(vlans, ports, sys)
}

// system returns the System row, or nil when the table is empty.
func (s *Store) system(ctx context.Context) (*System, error) {
	var rows []System
	if err := s.client.List(ctx, &rows); err != nil {
		return nil, fmt.Errorf("listing %s: %w", TableSystem, err)
	}
	if len(rows) == 0 {
		return nil, nil
	}
	return &rows[0], nil
}

func (s *Store) cachedPort(ctx context.Context, name string) (*Port, error) {
	var rows []Port
	err := s.client.WhereCache(func(p *Port) bool { return p.Name == name }).List(ctx, &rows)
	if err != nil || len(rows) == 0 {
		return nil, err
	}
	return &rows[0], nil
}

func (s *Store) vlanWhere(id int) client.ConditionalAPI {
	return s.client.WhereCache(func(v *VLAN) bool { return v.ID == id })
}

func (s *Store) Apply(ctx context.Context, txn model.Transaction) error {
	var ops []libovsdb.Operation
	for _, m := range txn {
		mops, err := s.mutationOps(ctx, m)
		if err != nil {
			return fmt.Errorf("%s: %w", m, err)
		}
		ops = append(ops, mops...)
	}
	_, err := TransactAndCheck(ctx, s.client, ops, s.timeout)
	return err
}

func (s *Store) mutationOps(ctx context.Context, m model.Mutation) ([]libovsdb.Operation, error) {
	switch m.Kind() {
	case model.KindVLAN:
		switch m.Op {
		case model.OpInsert:
			return s.client.Create(VLANRow(m.VLAN))
		case model.OpModify:
			row := VLANRow(m.VLAN)
			return s.vlanWhere(m.VLAN.ID).Update(row, &row.Name, &row.Description, &row.Admin, &row.InternalUsage)
		default:
			return s.vlanWhere(m.VLAN.ID).Delete()
		}
	case model.KindPort:
		name := m.Port.Name
		if m.Op == model.OpDelete {
			return s.client.WhereCache(func(p *Port) bool { return p.Name == name }).Delete()
		}
		cur, err := s.cachedPort(ctx, name)
		if err != nil {
			return nil, err
		}
		if cur == nil {
			return s.client.Create(PortRow(m.Port, nil))
		}
		row := PortRow(m.Port, cur.OtherConfig)
		row.UUID = cur.UUID
		return s.client.Where(row).Update(row, &row.VLANMode, &row.Tag, &row.Trunks, &row.IP4Address, &row.Admin, &row.OtherConfig)
	}
	return nil, nil
}

// Publish writes derived state into the VLAN rows. Deleted VLANs need no
// write: their row, derived columns included, is already gone.
func (s *Store) Publish(ctx context.Context, changes []engine.StateChange) error {
	var ops []libovsdb.Operation
	for _, c := range changes {
		if c.Deleted {
			continue
		}
		row := &VLAN{}
		StateColumns(row, c.State)
		uops, err := s.vlanWhere(c.VLANID).Update(row, &row.OperState, &row.OperStateReason, &row.HWVLANConfig)
		if err != nil {
			return fmt.Errorf("VLAN %d state: %w", c.VLANID, err)
		}
		ops = append(ops, uops...)
	}
	_, err := TransactAndCheck(ctx, s.client, ops, s.timeout)
	return err
}

// ReadState returns the derived state published for VLAN id.
func (s *Store) ReadState(ctx context.Context, id int) (model.DerivedState, bool, error) {
	var rows []VLAN
	if err := s.vlanWhere(id).List(ctx, &rows); err != nil || len(rows) == 0 {
		return model.DerivedState{}, false, err
	}
	st, ok := StateFromRow(&rows[0])
	return st, ok, nil
}

// SaveInternalRange merges the range into System:other_config.
func (s *Store) SaveInternalRange(ctx context.Context, r model.InternalRange) error {
	sys, err := s.system(ctx)
	if err != nil {
		return err
	}
	if sys == nil {
		return fmt.Errorf("%w: no %s row", util.ErrNotFound, TableSystem)
	}
	row := &System{UUID: sys.UUID, OtherConfig: mergeRange(sys.OtherConfig, r)}
	return s.updateSystem(ctx, row, &row.OtherConfig)
}

// PublishInternalRange records the active range in System:status.
func (s *Store) PublishInternalRange(ctx context.Context, r model.InternalRange) error {
	sys, err := s.system(ctx)
	if err != nil {
		return err
	}
	if sys == nil {
		return fmt.Errorf("%w: no %s row", util.ErrNotFound, TableSystem)
	}
	row := &System{UUID: sys.UUID, Status: rangeStatus(sys.Status, r)}
	return s.updateSystem(ctx, row, &row.Status)
}

// ReadInternalRange returns the published range and policy, keyed
// "range" and "policy" like the STATE_DB row.
func (s *Store) ReadInternalRange(ctx context.Context) (map[string]string, error) {
	sys, err := s.system(ctx)
	if err != nil || sys == nil || sys.Status[statusInternalRange] == "" {
		return nil, err
	}
	return map[string]string{
		"range":  sys.Status[statusInternalRange],
		"policy": sys.Status[statusInternalPolicy],
	}, nil
}

func (s *Store) updateSystem(ctx context.Context, row *System, field interface{}) error {
	ops, err := s.client.Where(row).Update(row, field)
	if err != nil {
		return fmt.Errorf("updating %s: %w", TableSystem, err)
	}
	_, err = TransactAndCheck(ctx, s.client, ops, s.timeout)
	return err
}

func (s *Store) Close() error {
	if s.client != nil {
		s.client.Close()
	}
	return nil
}
