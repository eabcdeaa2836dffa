// Package engine derives each VLAN's operational state and hardware
// program from a configuration snapshot.
//
// Compute is a pure function of the snapshot: no I/O, no globals, and no
// failure path. Every VLAN lands in exactly one of three states, with
// reason precedence admin_down > no_member_port > ok.
package engine

import (
	"github.com/newtron-network/vland/pkg/membership"
	"github.com/newtron-network/vland/pkg/model"
)

// Result is the derived view of one snapshot.
type Result struct {
	States   map[int]model.DerivedState
	Programs map[int]model.Program
	Names    map[int]string
}

// Evaluate derives the state of one VLAN and, when it is up, the member
// ports to program. Internal VLANs backing routed ports are not evaluated
// by Compute; Evaluate treats every VLAN it is given the same way.
func Evaluate(snap *model.Snapshot, v *model.VLAN) (model.DerivedState, []model.Member) {
	if v.AdminState != model.AdminUp {
		return model.StateAdminDown, nil
	}
	members := membership.Members(snap, v.ID)
	if len(members) == 0 {
		return model.StateNoMemberPort, nil
	}
	return model.StateUp, members
}

// Compute evaluates every configured VLAN in snap.
func Compute(snap *model.Snapshot) *Result {
	r := &Result{
		States:   make(map[int]model.DerivedState, len(snap.VLANs)),
		Programs: make(map[int]model.Program, len(snap.VLANs)),
		Names:    make(map[int]string, len(snap.VLANs)),
	}
	for _, id := range snap.VLANIDs() {
		v := snap.VLANs[id]
		if v.IsL3PortInternal() {
			continue
		}
		state, members := Evaluate(snap, v)
		r.States[id] = state
		r.Names[id] = v.Name
		r.Programs[id] = model.Program{
			VLANID:  id,
			Enabled: state.HWConfig.Enabled,
			Members: members,
		}
	}
	return r
}

// StateChange is one derived row to publish. Deleted means the VLAN is
// gone and its derived row must be removed.
type StateChange struct {
	VLANID  int
	Name    string
	State   model.DerivedState
	Deleted bool
}

// Delta is what changed between two results.
type Delta struct {
	States   []StateChange
	Programs []model.Program
}

// IsEmpty reports whether the delta carries nothing to publish.
func (d Delta) IsEmpty() bool {
	return len(d.States) == 0 && len(d.Programs) == 0
}

// Diff returns the state rows and hardware programs that differ between
// prev and next, in ascending VLAN order with removals last. A nil prev
// is treated as empty, so Diff(nil, r) publishes everything.
func Diff(prev, next *Result) Delta {
	if prev == nil {
		prev = &Result{}
	}
	var d Delta

	for _, id := range sortedKeys(next.States) {
		st := next.States[id]
		if old, ok := prev.States[id]; !ok || old != st || prev.Names[id] != next.Names[id] {
			d.States = append(d.States, StateChange{VLANID: id, Name: next.Names[id], State: st})
		}
	}
	for _, id := range sortedKeys(prev.States) {
		if _, ok := next.States[id]; !ok {
			d.States = append(d.States, StateChange{VLANID: id, Name: prev.Names[id], Deleted: true})
		}
	}

	for _, id := range sortedKeys(next.Programs) {
		p := next.Programs[id]
		if old, ok := prev.Programs[id]; !ok || !old.Equal(p) {
			d.Programs = append(d.Programs, p)
		}
	}
	for _, id := range sortedKeys(prev.Programs) {
		if _, ok := next.Programs[id]; !ok {
			d.Programs = append(d.Programs, model.Program{VLANID: id, Removed: true})
		}
	}
	return d
}

// Counts tallies results by (oper_state, reason).
func (r *Result) Counts() map[[2]string]int {
	counts := make(map[[2]string]int)
	for _, st := range r.States {
		counts[[2]string{string(st.OperState), string(st.Reason)}]++
	}
	return counts
}
