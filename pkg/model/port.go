package model

import (
	"slices"
)

// VLANMode selects how a port derives its VLAN membership.
type VLANMode string

const (
	ModeAccess         VLANMode = "access"
	ModeTrunk          VLANMode = "trunk"
	ModeNativeTagged   VLANMode = "native-tagged"
	ModeNativeUntagged VLANMode = "native-untagged"
)

// Modes lists the enumerated VLAN modes.
var Modes = []VLANMode{ModeAccess, ModeTrunk, ModeNativeTagged, ModeNativeUntagged}

// Valid reports whether m is one of the four enumerated modes.
func (m VLANMode) Valid() bool {
	return slices.Contains(Modes, m)
}

// IsNative reports whether m carries a native VLAN alongside its trunks.
func (m VLANMode) IsNative() bool {
	return m == ModeNativeTagged || m == ModeNativeUntagged
}

// Tagging is the egress tagging for one port in one VLAN.
type Tagging string

const (
	Tagged   Tagging = "tagged"
	Untagged Tagging = "untagged"
)

// Port is a configured port row. Tag 0 means unset. Trunks is kept sorted
// and free of duplicates.
type Port struct {
	Name       string     `json:"name"`
	VLANMode   VLANMode   `json:"vlan_mode,omitempty"`
	Tag        int        `json:"tag,omitempty"`
	Trunks     []int      `json:"trunks,omitempty"`
	Routing    bool       `json:"routing,omitempty"`
	IP4Address string     `json:"ip4_address,omitempty"`
	AdminState AdminState `json:"admin_state"`
}

// NewPort creates an admin-up L2 port with no membership.
func NewPort(name string) *Port {
	return &Port{
		Name:       name,
		VLANMode:   ModeTrunk,
		AdminState: AdminUp,
	}
}

// HasTag reports whether a tag is set.
func (p *Port) HasTag() bool {
	return p.Tag != 0
}

// Mode returns the port's VLAN mode, defaulting an unset mode to access
// when a tag is set and to trunk otherwise.
func (p *Port) Mode() VLANMode {
	if p.VLANMode != "" {
		return p.VLANMode
	}
	if p.HasTag() {
		return ModeAccess
	}
	return ModeTrunk
}

// Clone returns a deep copy.
func (p *Port) Clone() *Port {
	if p == nil {
		return nil
	}
	c := *p
	c.Trunks = slices.Clone(p.Trunks)
	return &c
}

// ConfigEqual compares two port rows.
func (p *Port) ConfigEqual(o *Port) bool {
	if p == nil || o == nil {
		return p == o
	}
	return p.Name == o.Name &&
		p.VLANMode == o.VLANMode &&
		p.Tag == o.Tag &&
		slices.Equal(p.Trunks, o.Trunks) &&
		p.Routing == o.Routing &&
		p.IP4Address == o.IP4Address &&
		p.AdminState == o.AdminState
}

// NormalizeTrunks sorts and deduplicates a trunk list.
func NormalizeTrunks(trunks []int) []int {
	if len(trunks) == 0 {
		return nil
	}
	out := slices.Clone(trunks)
	slices.Sort(out)
	return slices.Compact(out)
}

// Member is one port's participation in a VLAN as programmed to hardware.
type Member struct {
	Port    string  `json:"port"`
	Tagging Tagging `json:"tagging"`
}

// Program is the per-VLAN instruction handed to the hardware sink.
// Removed means the VLAN no longer exists and must be torn down.
type Program struct {
	VLANID  int      `json:"vlan_id"`
	Enabled bool     `json:"enabled"`
	Members []Member `json:"members,omitempty"`
	Removed bool     `json:"removed,omitempty"`
}

// Equal compares two programs, members included, in order.
func (p Program) Equal(o Program) bool {
	return p.VLANID == o.VLANID &&
		p.Enabled == o.Enabled &&
		p.Removed == o.Removed &&
		slices.Equal(p.Members, o.Members)
}
