package allocator

import (
	"fmt"
	"sync"

	"github.com/newtron-network/vland/pkg/metrics"
	"github.com/newtron-network/vland/pkg/model"
	"github.com/newtron-network/vland/pkg/util"
)

// invalidRangeDetail is the operator-facing message for start > end.
const invalidRangeDetail = "Invalid VLAN range. End VLAN must be greater or equal to start VLAN."

// Pool hands out internal VLAN ids from one contiguous range. It does not
// know about user-configured VLANs; callers keep the range disjoint from
// them or check before inserting.
//
// Held ids survive a range change: an id allocated under the old range
// stays held until released, even if the new range no longer covers it.
type Pool struct {
	mu   sync.Mutex
	bits *Bitmap
	rng  model.InternalRange
}

// New returns a pool with the default range 1024-4094 ascending.
func New() *Pool {
	p := &Pool{
		bits: NewBitmap(util.MaxVLANID + 2),
		rng:  model.DefaultInternalRange(),
	}
	p.report()
	return p
}

// ValidateRange checks a candidate range and policy.
func ValidateRange(start, end int, policy model.Policy) error {
	resource := util.FormatSpan(start, end)
	if start > end {
		return util.NewValidationError(util.CodeInvalidRange, "configure", "internal VLAN range "+resource, invalidRangeDetail)
	}
	if start < model.MinInternalVLANID || end > util.MaxVLANID {
		return util.NewValidationError(util.CodeInvalidRange, "configure", "internal VLAN range "+resource,
			fmt.Sprintf("range must lie within %d-%d", model.MinInternalVLANID, util.MaxVLANID))
	}
	if !policy.Valid() {
		return util.NewValidationError(util.CodeInvalidValue, "configure", "internal VLAN policy",
			fmt.Sprintf("unknown policy %q", policy))
	}
	return nil
}

// Configure replaces the active range and policy.
func (p *Pool) Configure(start, end int, policy model.Policy) error {
	if err := ValidateRange(start, end, policy); err != nil {
		return err
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	p.rng = model.InternalRange{Start: start, End: end, Policy: policy}
	util.WithComponent("allocator").Infof("internal VLAN range set to %s %s", p.rng, policy)
	p.report()
	return nil
}

// Unconfigure resets the range to the default.
func (p *Pool) Unconfigure() {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.rng = model.DefaultInternalRange()
	util.WithComponent("allocator").Infof("internal VLAN range reset to %s", p.rng)
	p.report()
}

// Range returns the active range and policy.
func (p *Pool) Range() model.InternalRange {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.rng
}

// Allocate returns the lowest free id under ascending policy or the
// highest under descending. It fails with ErrPoolExhausted when no id in
// range is free.
func (p *Pool) Allocate() (int, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	var id int
	if p.rng.Policy == model.PolicyDescending {
		id = p.bits.FindLastClear(p.rng.Start, p.rng.End)
	} else {
		id = p.bits.FindFirstClear(p.rng.Start, p.rng.End)
	}
	if id < 0 {
		return 0, &util.ExhaustedError{Start: p.rng.Start, End: p.rng.End}
	}
	if err := p.bits.Set(id); err != nil {
		return 0, err
	}

	util.WithVLAN(id).Debug("internal VLAN allocated")
	p.report()
	return id, nil
}

// Release returns id to the pool. Releasing an id that is not held
// returns an error wrapping ErrNotAllocated and changes nothing.
func (p *Pool) Release(id int) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if !p.bits.IsSet(id) {
		return fmt.Errorf("release VLAN %d: %w", id, util.ErrNotAllocated)
	}
	if err := p.bits.Clear(id); err != nil {
		return err
	}

	util.WithVLAN(id).Debug("internal VLAN released")
	p.report()
	return nil
}

// Reserve marks a specific id as held, e.g. an internal VLAN found in the
// configuration at startup. The id need not lie in the active range.
func (p *Pool) Reserve(id int) error {
	if err := util.ValidateVLANID(id); err != nil {
		return err
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if p.bits.IsSet(id) {
		return fmt.Errorf("reserve VLAN %d: %w", id, util.ErrAlreadyExists)
	}
	if err := p.bits.Set(id); err != nil {
		return err
	}
	p.report()
	return nil
}

// IsAllocated reports whether id is held.
func (p *Pool) IsAllocated(id int) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.bits.IsSet(id)
}

// Allocated returns every held id in ascending order.
func (p *Pool) Allocated() []int {
	p.mu.Lock()
	defer p.mu.Unlock()

	ids := make([]int, 0, p.bits.Allocated())
	for id := util.MinVLANID; id <= util.MaxVLANID; id++ {
		if p.bits.IsSet(id) {
			ids = append(ids, id)
		}
	}
	return ids
}

// Available returns the number of free ids in the active range.
func (p *Pool) Available() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.available()
}

func (p *Pool) available() int {
	return p.rng.End - p.rng.Start + 1 - p.bits.CountSet(p.rng.Start, p.rng.End)
}

// report must be called with mu held.
func (p *Pool) report() {
	metrics.SetPool(p.bits.Allocated(), p.available())
}
