package reconcile

import (
	"context"
	"fmt"
	"time"

	"github.com/newtron-network/vland/pkg/allocator"
	"github.com/newtron-network/vland/pkg/audit"
	"github.com/newtron-network/vland/pkg/model"
	"github.com/newtron-network/vland/pkg/util"
)

// AllocateInternalVLAN takes an id from the internal range and commits an
// internal VLAN for it, tagged with usage. Ids already configured as user
// VLANs are skipped. If the commit fails the id goes back to the pool.
func (r *Reconciler) AllocateInternalVLAN(ctx context.Context, usage map[string]string) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var skipped []int
	defer func() {
		for _, id := range skipped {
			if err := r.pool.Release(id); err != nil {
				util.WithVLAN(id).Warnf("returning skipped id: %v", err)
			}
		}
	}()

	id := 0
	for {
		got, err := r.pool.Allocate()
		if err != nil {
			r.record(SystemUser, "internal.allocate", audit.SourceSystem, nil, err, time.Now())
			return 0, err
		}
		if !r.snap.HasVLAN(got) {
			id = got
			break
		}
		skipped = append(skipped, got)
	}

	txn := model.Transaction{model.InsertVLAN(model.NewInternalVLAN(id, usage))}.System()
	if err := r.commit(ctx, SystemUser, "internal.allocate", audit.SourceSystem, txn); err != nil {
		if relErr := r.pool.Release(id); relErr != nil {
			util.WithVLAN(id).Warnf("returning id after failed commit: %v", relErr)
		}
		return 0, err
	}

	util.WithVLAN(id).Infof("allocated internal VLAN (%s)", util.FormatKeyValues(usage))
	return id, nil
}

// ReleaseInternalVLAN deletes an internal VLAN and returns its id to the
// pool.
func (r *Reconciler) ReleaseInternalVLAN(ctx context.Context, id int) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if v, ok := r.snap.VLANs[id]; !ok || !v.Internal {
		err := util.NewValidationError(util.CodeNotFound, "release", fmt.Sprintf("VLAN %d", id),
			fmt.Sprintf("no internal VLAN %d", id))
		r.record(SystemUser, "internal.release", audit.SourceSystem, nil, err, time.Now())
		return err
	}

	txn := model.Transaction{model.DeleteVLAN(id).AsSystem()}
	return r.commit(ctx, SystemUser, "internal.release", audit.SourceSystem, txn)
}

// ConfigureInternalRange validates, persists and activates a new internal
// range and policy. Ids already held stay held.
func (r *Reconciler) ConfigureInternalRange(ctx context.Context, user string, start, end int, policy model.Policy) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.setRange(ctx, user, "internal.configure", model.InternalRange{Start: start, End: end, Policy: policy})
}

// UnconfigureInternalRange restores the default range and policy.
func (r *Reconciler) UnconfigureInternalRange(ctx context.Context, user string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.setRange(ctx, user, "internal.unconfigure", model.DefaultInternalRange())
}

func (r *Reconciler) setRange(ctx context.Context, user, op string, rng model.InternalRange) error {
	start := time.Now()
	changes := []string{"internal range " + rng.String() + " " + string(rng.Policy)}

	if err := allocator.ValidateRange(rng.Start, rng.End, rng.Policy); err != nil {
		r.record(user, op, audit.SourceUser, changes, err, start)
		return err
	}
	if err := r.store.SaveInternalRange(ctx, rng); err != nil {
		err = fmt.Errorf("saving internal range: %w", err)
		r.record(user, op, audit.SourceUser, changes, err, start)
		return err
	}
	if err := r.pool.Configure(rng.Start, rng.End, rng.Policy); err != nil {
		r.record(user, op, audit.SourceUser, changes, err, start)
		return err
	}
	r.snap.InternalRange = rng
	if err := r.store.PublishInternalRange(ctx, rng); err != nil {
		util.WithComponent("reconcile").Warnf("publishing internal range: %v", err)
	}

	r.record(user, op, audit.SourceUser, changes, nil, start)
	return nil
}

// InternalRange returns the active internal range and policy.
func (r *Reconciler) InternalRange() model.InternalRange {
	return r.pool.Range()
}

// InternalAllocated returns the held internal ids in ascending order.
func (r *Reconciler) InternalAllocated() []int {
	return r.pool.Allocated()
}
