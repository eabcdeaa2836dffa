// Package membership resolves which VLANs a port carries from its mode
// and mode-specific fields, and edits that membership.
//
// Edits never mutate their input: each returns a new port row so callers
// can stage the change into a transaction and commit it atomically.
package membership

import (
	"slices"

	"k8s.io/apimachinery/pkg/util/sets"

	"github.com/newtron-network/vland/pkg/model"
)

// Resolve returns the VLAN ids the port's configuration names, regardless
// of whether those VLANs exist or the port is routed.
//
//   - access: the tag
//   - trunk: the trunks
//   - native-tagged, native-untagged: the trunks plus the tag
func Resolve(p *model.Port) sets.Set[int] {
	ids := sets.New[int]()
	if p == nil {
		return ids
	}
	switch p.Mode() {
	case model.ModeAccess:
		if p.HasTag() {
			ids.Insert(p.Tag)
		}
	case model.ModeTrunk:
		ids.Insert(p.Trunks...)
	case model.ModeNativeTagged, model.ModeNativeUntagged:
		ids.Insert(p.Trunks...)
		if p.HasTag() {
			ids.Insert(p.Tag)
		}
	}
	return ids
}

// Effective returns the VLANs the port forwards for in snap: nothing when
// routed, otherwise the resolved ids that name configured VLANs.
func Effective(p *model.Port, snap *model.Snapshot) sets.Set[int] {
	if p == nil || p.Routing {
		return sets.New[int]()
	}
	ids := Resolve(p)
	for id := range ids {
		if !snap.HasVLAN(id) {
			ids.Delete(id)
		}
	}
	return ids
}

// Carries reports whether the port forwards for vid: it is not routed and
// its resolved set contains vid.
func Carries(p *model.Port, vid int) bool {
	return p != nil && !p.Routing && Resolve(p).Has(vid)
}

// Qualifies reports whether the port counts as a member port of vid for
// derived state: admin up, not routed, and carrying vid.
func Qualifies(p *model.Port, vid int) bool {
	return p != nil && p.AdminState == model.AdminUp && Carries(p, vid)
}

// Tagging returns how frames for vid leave the port. Access ports and the
// native VLAN of a native-untagged port are untagged; everything else is
// tagged.
func Tagging(p *model.Port, vid int) model.Tagging {
	switch p.Mode() {
	case model.ModeAccess:
		return model.Untagged
	case model.ModeNativeUntagged:
		if p.Tag == vid {
			return model.Untagged
		}
	}
	return model.Tagged
}

// Allow adds vid to the port's allowed trunk set.
func Allow(p *model.Port, vid int) *model.Port {
	c := p.Clone()
	ids := sets.New(c.Trunks...)
	ids.Insert(vid)
	c.Trunks = sets.List(ids)
	return c
}

// Disallow removes vid from the port's allowed trunk set.
func Disallow(p *model.Port, vid int) *model.Port {
	c := p.Clone()
	if i := slices.Index(c.Trunks, vid); i >= 0 {
		c.Trunks = slices.Delete(c.Trunks, i, i+1)
	}
	if len(c.Trunks) == 0 {
		c.Trunks = nil
	}
	return c
}

// SetAccess puts the port in access mode on vid. Trunks are left as they
// are; access mode ignores them.
func SetAccess(p *model.Port, vid int) *model.Port {
	c := p.Clone()
	c.VLANMode = model.ModeAccess
	c.Tag = vid
	return c
}

// SetTrunk puts the port in trunk mode. The tag is kept but ignored.
func SetTrunk(p *model.Port) *model.Port {
	c := p.Clone()
	c.VLANMode = model.ModeTrunk
	return c
}

// SetNative makes vid the port's native VLAN, egressing tagged or
// untagged.
func SetNative(p *model.Port, vid int, tagged bool) *model.Port {
	c := p.Clone()
	c.Tag = vid
	if tagged {
		c.VLANMode = model.ModeNativeTagged
	} else {
		c.VLANMode = model.ModeNativeUntagged
	}
	return c
}

// ClearTag removes the access or native VLAN. A native port without a
// native VLAN falls back to trunk mode.
func ClearTag(p *model.Port) *model.Port {
	c := p.Clone()
	c.Tag = 0
	if c.VLANMode.IsNative() {
		c.VLANMode = model.ModeTrunk
	}
	return c
}

// SetRouting toggles L3 mode. A routed port keeps its L2 fields but
// forwards for no VLAN.
func SetRouting(p *model.Port, routing bool) *model.Port {
	c := p.Clone()
	c.Routing = routing
	return c
}

// Members returns the ports qualifying as members of vid in snap, with
// their tagging, ordered by port name.
func Members(snap *model.Snapshot, vid int) []model.Member {
	var members []model.Member
	for _, name := range snap.PortNames() {
		p := snap.Ports[name]
		if Qualifies(p, vid) {
			members = append(members, model.Member{Port: name, Tagging: Tagging(p, vid)})
		}
	}
	return members
}
