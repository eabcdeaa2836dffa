package engine

import (
	"math/rand"
	"reflect"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"

	"github.com/newtron-network/vland/pkg/membership"
	"github.com/newtron-network/vland/pkg/model"
)

// randomSnapshot builds a small snapshot from seed: up to 8 VLANs among
// ids 1-10 and up to 5 ports with random mode, tag, trunks, routing and
// admin state.
func randomSnapshot(seed int64) *model.Snapshot {
	rng := rand.New(rand.NewSource(seed))
	snap := model.NewSnapshot()

	nVLANs, nPorts := rng.Intn(9), rng.Intn(6)
	for i := 0; i < nVLANs; i++ {
		v := model.NewVLAN(1+rng.Intn(10), "")
		if rng.Intn(2) == 0 {
			v.AdminState = model.AdminUp
		}
		snap.Apply(model.InsertVLAN(v))
	}
	for i := 0; i < nPorts; i++ {
		p := &model.Port{
			Name:       string(rune('a' + i)),
			VLANMode:   model.Modes[rng.Intn(len(model.Modes))],
			Routing:    rng.Intn(4) == 0,
			AdminState: model.AdminUp,
		}
		if rng.Intn(2) == 0 {
			p.Tag = 1 + rng.Intn(10)
		}
		for n := rng.Intn(4); n > 0; n-- {
			p.Trunks = append(p.Trunks, 1+rng.Intn(10))
		}
		if rng.Intn(4) == 0 {
			p.AdminState = model.AdminDown
		}
		snap.Apply(model.InsertPort(p))
	}
	return snap
}

func qualifyingPorts(snap *model.Snapshot, id int) int {
	n := 0
	for _, p := range snap.Ports {
		if !p.Routing && p.AdminState == model.AdminUp && membership.Resolve(p).Has(id) {
			n++
		}
	}
	return n
}

func newProperties() *gopter.Properties {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 200
	return gopter.NewProperties(parameters)
}

// TestProperty_StateRules verifies the three derivation rules hold for
// every VLAN of every snapshot.
func TestProperty_StateRules(t *testing.T) {
	props := newProperties()

	props.Property("derived state follows admin state and membership", prop.ForAll(
		func(seed int64) bool {
			snap := randomSnapshot(seed)
			res := Compute(snap)
			for id, v := range snap.VLANs {
				st := res.States[id]
				var want model.DerivedState
				switch {
				case v.AdminState == model.AdminDown:
					want = model.StateAdminDown
				case qualifyingPorts(snap, id) == 0:
					want = model.StateNoMemberPort
				default:
					want = model.StateUp
				}
				if st != want {
					t.Logf("seed %d VLAN %d: got %v want %v", seed, id, st, want)
					return false
				}
				if st.HWConfig.Enabled != (st.OperState == model.OperUp) {
					return false
				}
			}
			return len(res.States) == len(snap.VLANs)
		},
		gen.Int64(),
	))

	props.TestingRun(t)
}

// TestProperty_Idempotent verifies recomputing an unchanged snapshot
// yields the same result and an empty diff.
func TestProperty_Idempotent(t *testing.T) {
	props := newProperties()

	props.Property("Compute is idempotent", prop.ForAll(
		func(seed int64) bool {
			snap := randomSnapshot(seed)
			a, b := Compute(snap), Compute(snap)
			return reflect.DeepEqual(a, b) && Diff(a, b).IsEmpty()
		},
		gen.Int64(),
	))

	props.TestingRun(t)
}

// TestProperty_DisallowIsolated verifies that removing one VLAN from one
// port changes no other VLAN's derived state.
func TestProperty_DisallowIsolated(t *testing.T) {
	props := newProperties()

	props.Property("disallow only affects the removed VLAN", prop.ForAll(
		func(seed int64, vid int) bool {
			snap := randomSnapshot(seed)
			names := snap.PortNames()
			if len(names) == 0 {
				return true
			}
			before := Compute(snap)

			p := snap.Ports[names[0]]
			snap.Apply(model.ModifyPort(membership.Disallow(p, vid)))
			after := Compute(snap)

			for id, st := range before.States {
				if id != vid && after.States[id] != st {
					t.Logf("seed %d: disallow %d changed VLAN %d", seed, vid, id)
					return false
				}
			}
			return true
		},
		gen.Int64(),
		gen.IntRange(1, 10),
	))

	props.TestingRun(t)
}

// TestProperty_DiffReplay verifies that applying a diff to the previous
// result reproduces the next one.
func TestProperty_DiffReplay(t *testing.T) {
	props := newProperties()

	props.Property("prev + Diff(prev, next) == next", prop.ForAll(
		func(seedA, seedB int64) bool {
			prev, next := Compute(randomSnapshot(seedA)), Compute(randomSnapshot(seedB))
			d := Diff(prev, next)

			states := make(map[int]model.DerivedState)
			for id, st := range prev.States {
				states[id] = st
			}
			for _, c := range d.States {
				if c.Deleted {
					delete(states, c.VLANID)
				} else {
					states[c.VLANID] = c.State
				}
			}
			return reflect.DeepEqual(states, next.States)
		},
		gen.Int64(),
		gen.Int64(),
	))

	props.TestingRun(t)
}
