package model

import (
	"fmt"
	"slices"
	"sort"
	"strconv"

	"github.com/newtron-network/vland/pkg/util"
)

// Policy selects which free id the internal allocator hands out first.
type Policy string

const (
	PolicyAscending  Policy = "ascending"
	PolicyDescending Policy = "descending"
)

// Valid reports whether p is a known policy.
func (p Policy) Valid() bool {
	return p == PolicyAscending || p == PolicyDescending
}

// Internal VLAN range defaults.
const (
	DefaultInternalStart = 1024
	DefaultInternalEnd   = 4094
	// MinInternalVLANID keeps VLAN 1 out of any internal range.
	MinInternalVLANID = 2
)

// InternalRange is the configured internal VLAN range and policy.
type InternalRange struct {
	Start  int    `json:"start" yaml:"start"`
	End    int    `json:"end" yaml:"end"`
	Policy Policy `json:"policy" yaml:"policy"`
}

// DefaultInternalRange returns 1024-4094 ascending.
func DefaultInternalRange() InternalRange {
	return InternalRange{
		Start:  DefaultInternalStart,
		End:    DefaultInternalEnd,
		Policy: PolicyAscending,
	}
}

// String renders the range as "<start>-<end>".
func (r InternalRange) String() string {
	return util.FormatSpan(r.Start, r.End)
}

// Contains reports whether id lies inside the range.
func (r InternalRange) Contains(id int) bool {
	return id >= r.Start && id <= r.End
}

// IsZero reports whether the range was never set.
func (r InternalRange) IsZero() bool {
	return r == InternalRange{}
}

// System other_config keys holding the internal range.
const (
	KeyMinInternalVLAN    = "min_internal_vlan"
	KeyMaxInternalVLAN    = "max_internal_vlan"
	KeyInternalVLANPolicy = "internal_vlan_policy"
)

// Fields encodes the range as system config keys.
func (r InternalRange) Fields() map[string]string {
	return map[string]string{
		KeyMinInternalVLAN:    strconv.Itoa(r.Start),
		KeyMaxInternalVLAN:    strconv.Itoa(r.End),
		KeyInternalVLANPolicy: string(r.Policy),
	}
}

// InternalRangeFromFields decodes a range written by Fields. Absent keys
// take the default; the result is not validated.
func InternalRangeFromFields(m map[string]string) (InternalRange, error) {
	r := DefaultInternalRange()
	if s := m[KeyMinInternalVLAN]; s != "" {
		n, err := strconv.Atoi(s)
		if err != nil {
			return r, fmt.Errorf("%s %q: %w", KeyMinInternalVLAN, s, err)
		}
		r.Start = n
	}
	if s := m[KeyMaxInternalVLAN]; s != "" {
		n, err := strconv.Atoi(s)
		if err != nil {
			return r, fmt.Errorf("%s %q: %w", KeyMaxInternalVLAN, s, err)
		}
		r.End = n
	}
	if s := m[KeyInternalVLANPolicy]; s != "" {
		r.Policy = Policy(s)
	}
	return r, nil
}

// Snapshot is the full configuration the validators and the engine read.
// It is a plain value: callers clone before mutating a shared one.
type Snapshot struct {
	VLANs         map[int]*VLAN
	Ports         map[string]*Port
	InternalRange InternalRange
}

// NewSnapshot returns an empty snapshot with the default internal range.
func NewSnapshot() *Snapshot {
	return &Snapshot{
		VLANs:         make(map[int]*VLAN),
		Ports:         make(map[string]*Port),
		InternalRange: DefaultInternalRange(),
	}
}

// Clone returns a deep copy.
func (s *Snapshot) Clone() *Snapshot {
	c := &Snapshot{
		VLANs:         make(map[int]*VLAN, len(s.VLANs)),
		Ports:         make(map[string]*Port, len(s.Ports)),
		InternalRange: s.InternalRange,
	}
	for id, v := range s.VLANs {
		c.VLANs[id] = v.Clone()
	}
	for name, p := range s.Ports {
		c.Ports[name] = p.Clone()
	}
	return c
}

// HasVLAN reports whether a VLAN with the given id is configured.
func (s *Snapshot) HasVLAN(id int) bool {
	if s == nil {
		return false
	}
	_, ok := s.VLANs[id]
	return ok
}

// VLANByName returns the VLAN with the given name, or nil.
func (s *Snapshot) VLANByName(name string) *VLAN {
	for _, v := range s.VLANs {
		if v.Name == name {
			return v
		}
	}
	return nil
}

// VLANIDs returns the configured VLAN ids in ascending order.
func (s *Snapshot) VLANIDs() []int {
	ids := make([]int, 0, len(s.VLANs))
	for id := range s.VLANs {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	return ids
}

// PortNames returns the configured port names in sorted order.
func (s *Snapshot) PortNames() []string {
	names := make([]string, 0, len(s.Ports))
	for name := range s.Ports {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Apply performs m on the snapshot without validation. Deleting a VLAN
// also removes its id from every port's tag and trunks, so the delete and
// the membership cleanup land in the same transaction.
func (s *Snapshot) Apply(m Mutation) {
	switch m.Kind() {
	case KindVLAN:
		switch m.Op {
		case OpInsert, OpModify:
			s.VLANs[m.VLAN.ID] = m.VLAN.Clone()
		case OpDelete:
			delete(s.VLANs, m.VLAN.ID)
			s.detachVLAN(m.VLAN.ID)
		}
	case KindPort:
		switch m.Op {
		case OpInsert, OpModify:
			p := m.Port.Clone()
			p.Trunks = NormalizeTrunks(p.Trunks)
			s.Ports[p.Name] = p
		case OpDelete:
			delete(s.Ports, m.Port.Name)
		}
	}
}

// ApplyAll applies every mutation of txn in order.
func (s *Snapshot) ApplyAll(txn Transaction) {
	for _, m := range txn {
		s.Apply(m)
	}
}

func (s *Snapshot) detachVLAN(id int) {
	for _, p := range s.Ports {
		if p.Tag == id {
			p.Tag = 0
		}
		if i := slices.Index(p.Trunks, id); i >= 0 {
			p.Trunks = slices.Delete(p.Trunks, i, i+1)
			if len(p.Trunks) == 0 {
				p.Trunks = nil
			}
		}
	}
}

// Changes returns the transaction that turns prev into next. VLAN deletes
// come first, then modifies and inserts; ports follow in the same order.
// Internal range changes are not represented.
func Changes(prev, next *Snapshot) Transaction {
	var (
		vDel, vMod, vIns Transaction
		pDel, pMod, pIns Transaction
	)

	for _, id := range prev.VLANIDs() {
		if _, ok := next.VLANs[id]; !ok {
			vDel = append(vDel, DeleteVLAN(id))
		}
	}
	for _, id := range next.VLANIDs() {
		nv := next.VLANs[id]
		ov, ok := prev.VLANs[id]
		switch {
		case !ok:
			vIns = append(vIns, InsertVLAN(nv))
		case !ov.ConfigEqual(nv):
			vMod = append(vMod, ModifyVLAN(nv))
		}
	}

	for _, name := range prev.PortNames() {
		if _, ok := next.Ports[name]; !ok {
			pDel = append(pDel, DeletePort(name))
		}
	}
	for _, name := range next.PortNames() {
		np := next.Ports[name]
		op, ok := prev.Ports[name]
		switch {
		case !ok:
			pIns = append(pIns, InsertPort(np))
		case !op.ConfigEqual(np):
			pMod = append(pMod, ModifyPort(np))
		}
	}

	var txn Transaction
	for _, part := range []Transaction{vDel, vMod, vIns, pDel, pMod, pIns} {
		txn = append(txn, part...)
	}
	return txn
}
