// Package reconcile runs the VLAN subsystem's commit pipeline: validate a
// transaction against the current snapshot, persist it, recompute derived
// state, write the result back to the store and hand hardware programs to
// the sink.
//
// All passes are serialized by one mutex, so at most one reconciliation
// is in flight and readers never observe a half-applied transaction.
package reconcile

import (
	"context"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/newtron-network/vland/pkg/allocator"
	"github.com/newtron-network/vland/pkg/audit"
	"github.com/newtron-network/vland/pkg/engine"
	"github.com/newtron-network/vland/pkg/metrics"
	"github.com/newtron-network/vland/pkg/model"
	"github.com/newtron-network/vland/pkg/util"
	"github.com/newtron-network/vland/pkg/validate"
)

// SystemUser is the audit user for changes the subsystem makes itself.
const SystemUser = "vland"

// Options configures a Reconciler.
type Options struct {
	// Device names the switch in audit events.
	Device string
	// Programmer receives hardware programs; nil disables programming.
	Programmer Programmer
	// Auditor receives audit events; nil uses the package default.
	Auditor audit.Logger
	// Pool is the internal VLAN allocator; nil creates a fresh one.
	Pool *allocator.Pool
}

// Reconciler owns the accepted snapshot and keeps the store and hardware
// in line with it.
type Reconciler struct {
	mu      sync.Mutex
	store   Store
	prog    Programmer
	auditor audit.Logger
	pool    *allocator.Pool
	device  string

	snap       *model.Snapshot
	published  *engine.Result
	programmed *engine.Result
}

// New creates a reconciler. Call Start before anything else.
func New(store Store, opts Options) *Reconciler {
	pool := opts.Pool
	if pool == nil {
		pool = allocator.New()
	}
	return &Reconciler{
		store:   store,
		prog:    opts.Programmer,
		auditor: opts.Auditor,
		pool:    pool,
		device:  opts.Device,
		snap:    model.NewSnapshot(),
	}
}

// Start loads the store, configures the allocator from the stored range,
// reserves ids of existing internal VLANs and publishes the initial
// derived state.
func (r *Reconciler) Start(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	snap, err := r.store.Load(ctx)
	if err != nil {
		return fmt.Errorf("loading configuration: %w", err)
	}
	if snap.InternalRange.IsZero() {
		snap.InternalRange = model.DefaultInternalRange()
	}

	rng := snap.InternalRange
	if err := r.pool.Configure(rng.Start, rng.End, rng.Policy); err != nil {
		util.WithComponent("reconcile").Warnf("stored internal range %s %s rejected, using default: %v", rng, rng.Policy, err)
		r.pool.Unconfigure()
		snap.InternalRange = r.pool.Range()
	}
	// A stored configuration that fails validation is adopted anyway and
	// audited.
	empty := model.NewSnapshot()
	if _, err := validate.Transaction(empty, model.Changes(empty, snap).System()); err != nil {
		util.WithComponent("reconcile").WithField("code", util.CodeOf(err)).
			Warnf("stored configuration fails validation: %v", err)
		r.record(SystemUser, "start", audit.SourceSystem, nil, err, time.Now())
	}

	for _, id := range snap.VLANIDs() {
		if v := snap.VLANs[id]; v.Internal {
			if err := r.pool.Reserve(id); err != nil {
				util.WithVLAN(id).Warnf("cannot reserve internal VLAN: %v", err)
			}
		}
	}

	r.snap = snap
	r.recompute(ctx)
	if err := r.store.PublishInternalRange(ctx, r.snap.InternalRange); err != nil {
		util.WithComponent("reconcile").Warnf("publishing internal range: %v", err)
	}

	util.WithComponent("reconcile").Infof("started with %d VLANs, %d ports", len(snap.VLANs), len(snap.Ports))
	return nil
}

// Commit validates and applies a user transaction. On rejection nothing
// changes and the returned error carries the validation code.
func (r *Reconciler) Commit(ctx context.Context, user string, txn model.Transaction) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.commit(ctx, user, "commit", audit.SourceUser, txn)
}

func (r *Reconciler) commit(ctx context.Context, user, op string, src audit.Source, txn model.Transaction) error {
	start := time.Now()

	scratch, err := validate.Transaction(r.snap, txn)
	if err != nil {
		r.record(user, op, src, txn.Resources(), err, start)
		return err
	}

	persisted := model.Changes(r.snap, scratch)
	if len(persisted) > 0 {
		if err := r.store.Apply(ctx, persisted); err != nil {
			err = fmt.Errorf("applying transaction: %w", err)
			r.record(user, op, src, persisted.Resources(), err, start)
			return err
		}
	}

	r.adopt(ctx, scratch)
	r.record(user, op, src, persisted.Resources(), nil, start)
	return nil
}

// Resync reloads the store and adopts it when it validates. A rejected
// store state is logged and audited; the last accepted snapshot stays in
// force.
func (r *Reconciler) Resync(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	start := time.Now()
	loaded, err := r.store.Load(ctx)
	if err != nil {
		return fmt.Errorf("loading configuration: %w", err)
	}
	if loaded.InternalRange.IsZero() {
		loaded.InternalRange = model.DefaultInternalRange()
	}

	txn := model.Changes(r.snap, loaded).System()
	rangeChanged := loaded.InternalRange != r.snap.InternalRange
	if len(txn) == 0 && !rangeChanged {
		// retry anything a previous pass failed to publish
		r.recompute(ctx)
		return nil
	}

	changes := txn.Resources()
	if rangeChanged {
		changes = append(changes, "internal range "+loaded.InternalRange.String())
		rng := loaded.InternalRange
		if err := allocator.ValidateRange(rng.Start, rng.End, rng.Policy); err != nil {
			r.reject(changes, err, start)
			return err
		}
	}
	next, err := validate.Transaction(r.snap, txn)
	if err != nil {
		r.reject(changes, err, start)
		return err
	}
	next.InternalRange = loaded.InternalRange

	// VLAN deletes detach ports the other writer left pointing at them
	if cascade := model.Changes(loaded, next); len(cascade) > 0 {
		if err := r.store.Apply(ctx, cascade); err != nil {
			err = fmt.Errorf("detaching deleted VLANs: %w", err)
			r.record(SystemUser, "resync", audit.SourceResync, changes, err, start)
			return err
		}
		changes = append(changes, cascade.Resources()...)
	}

	if rangeChanged {
		rng := loaded.InternalRange
		if err := r.pool.Configure(rng.Start, rng.End, rng.Policy); err != nil {
			return err
		}
		if err := r.store.PublishInternalRange(ctx, rng); err != nil {
			util.WithComponent("reconcile").Warnf("publishing internal range: %v", err)
		}
	}
	r.adopt(ctx, next)
	r.record(SystemUser, "resync", audit.SourceResync, changes, nil, start)
	return nil
}

func (r *Reconciler) reject(changes []string, err error, start time.Time) {
	util.WithComponent("reconcile").WithField("code", util.CodeOf(err)).
		Errorf("store holds configuration that fails validation, keeping last accepted state: %v", err)
	r.record(SystemUser, "resync", audit.SourceResync, changes, err, start)
}

// adopt makes next the accepted snapshot. Internal VLANs that disappeared
// give their id back to the pool; ones that appeared are reserved.
func (r *Reconciler) adopt(ctx context.Context, next *model.Snapshot) {
	for id, v := range r.snap.VLANs {
		if _, ok := next.VLANs[id]; v.Internal && !ok {
			if err := r.pool.Release(id); err != nil {
				util.WithVLAN(id).Debugf("internal VLAN was not held: %v", err)
			}
		}
	}
	for id, v := range next.VLANs {
		if v.Internal && !r.pool.IsAllocated(id) {
			if err := r.pool.Reserve(id); err != nil {
				util.WithVLAN(id).Warnf("cannot reserve internal VLAN: %v", err)
			}
		}
	}

	r.snap = next
	r.recompute(ctx)
}

// recompute derives state for the accepted snapshot, writes back what
// changed since the last successful publish and submits changed programs.
func (r *Reconciler) recompute(ctx context.Context) {
	start := time.Now()
	res := engine.Compute(r.snap)

	if d := engine.Diff(r.published, res); len(d.States) > 0 {
		if err := r.store.Publish(ctx, d.States); err != nil {
			util.WithComponent("reconcile").Errorf("publishing derived state: %v", err)
		} else {
			r.published = res
		}
		for _, c := range d.States {
			if c.Deleted {
				util.WithVLAN(c.VLANID).Debug("derived state removed")
			} else {
				util.WithVLAN(c.VLANID).Debugf("derived state %s", c.State)
			}
		}
	} else {
		r.published = res
	}

	if r.prog != nil {
		for _, p := range engine.Diff(r.programmed, res).Programs {
			r.prog.Submit(p)
		}
	}
	r.programmed = res

	metrics.SetVLANStates(res.Counts())
	metrics.RecordPass(time.Since(start))
}

func (r *Reconciler) record(user, op string, src audit.Source, changes []string, err error, start time.Time) {
	metrics.RecordCommit(string(src), err, util.CodeOf(err) != "")

	event := audit.NewEvent(user, r.device, op).
		WithSource(src).
		WithChanges(changes).
		WithResult(err).
		WithDuration(time.Since(start))

	var logErr error
	if r.auditor != nil {
		logErr = r.auditor.Log(event)
	} else {
		logErr = audit.Log(event)
	}
	if logErr != nil {
		util.WithComponent("audit").Warnf("writing audit event: %v", logErr)
	}
}

// Run resyncs on every store notification until ctx is done.
func (r *Reconciler) Run(ctx context.Context) error {
	ch, err := r.store.Watch(ctx)
	if err != nil {
		return fmt.Errorf("watching store: %w", err)
	}
	for {
		select {
		case <-ctx.Done():
			return nil
		case _, ok := <-ch:
			if !ok {
				return nil
			}
			if err := r.Resync(ctx); err != nil && ctx.Err() == nil {
				util.WithComponent("reconcile").Warnf("resync: %v", err)
			}
		}
	}
}

// Snapshot returns a copy of the accepted configuration.
func (r *Reconciler) Snapshot() *model.Snapshot {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.snap.Clone()
}

// State returns the derived state of one VLAN. ok is false for unknown
// VLANs and for internal VLANs backing routed ports.
func (r *Reconciler) State(id int) (model.DerivedState, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	st, ok := engine.Compute(r.snap).States[id]
	return st, ok
}

// States returns the derived state of every VLAN that has one.
func (r *Reconciler) States() map[int]model.DerivedState {
	r.mu.Lock()
	defer r.mu.Unlock()
	return engine.Compute(r.snap).States
}

// Dump writes the debug view of the accepted snapshot.
func (r *Reconciler) Dump(w io.Writer) {
	r.mu.Lock()
	defer r.mu.Unlock()
	engine.Dump(w, r.snap, engine.Compute(r.snap))
	fmt.Fprintf(w, "Internal VLANs allocated: %s\n", util.CompactRange(r.pool.Allocated()))
}
