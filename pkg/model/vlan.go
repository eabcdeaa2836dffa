// Package model defines the VLAN subsystem's configuration rows, the
// derived state computed from them, and the snapshot that binds them.
package model

import (
	"fmt"
	"maps"
)

// DefaultVLANName is the protected default VLAN; it can never be deleted.
const DefaultVLANName = "DEFAULT_VLAN_1"

// Internal usage keys. InternalUsageL3Port marks an internal VLAN backing
// a routed port.
const (
	InternalUsageL3Port = "l3port"
	InternalUsageOwner  = "owner"
)

// AdminState is the user-configured enable/disable of a VLAN or port.
type AdminState string

const (
	AdminUp   AdminState = "up"
	AdminDown AdminState = "down"
)

// Valid reports whether a is one of the enumerated admin states.
func (a AdminState) Valid() bool {
	return a == AdminUp || a == AdminDown
}

// OperState is the derived runtime status of a VLAN.
type OperState string

const (
	OperUp   OperState = "up"
	OperDown OperState = "down"
)

// Reason explains an OperState.
type Reason string

const (
	ReasonOK           Reason = "ok"
	ReasonAdminDown    Reason = "admin_down"
	ReasonNoMemberPort Reason = "no_member_port"
)

// HWConfig is the hardware-programming summary reported with a VLAN's
// derived state.
type HWConfig struct {
	Enabled bool
}

// Map renders the summary as the attribute set published to readers:
// {"enable": "true"} when enabled, empty otherwise.
func (h HWConfig) Map() map[string]string {
	if !h.Enabled {
		return map[string]string{}
	}
	return map[string]string{"enable": "true"}
}

// HWConfigFromMap parses an attribute set produced by Map.
func HWConfigFromMap(m map[string]string) HWConfig {
	return HWConfig{Enabled: m["enable"] == "true"}
}

// VLAN is a configured VLAN row. The derived fields are informational on
// loaded rows; the engine recomputes them from configuration alone.
type VLAN struct {
	ID            int               `json:"id"`
	Name          string            `json:"name"`
	Description   string            `json:"description,omitempty"`
	AdminState    AdminState        `json:"admin_state"`
	Internal      bool              `json:"internal,omitempty"`
	InternalUsage map[string]string `json:"internal_usage,omitempty"`
}

// NewVLAN creates a VLAN with defaults: admin down, name "VLAN<id>" when
// name is empty.
func NewVLAN(id int, name string) *VLAN {
	if name == "" {
		name = DefaultName(id)
	}
	return &VLAN{
		ID:         id,
		Name:       name,
		AdminState: AdminDown,
	}
}

// NewInternalVLAN creates an internal VLAN owned by the given usage. An
// empty usage is recorded as owner=vland, since stores mark internal rows
// by a non-empty internal_usage.
func NewInternalVLAN(id int, usage map[string]string) *VLAN {
	v := NewVLAN(id, fmt.Sprintf("INTERNAL_VLAN_%d", id))
	v.Internal = true
	v.AdminState = AdminUp
	v.InternalUsage = maps.Clone(usage)
	if len(v.InternalUsage) == 0 {
		v.InternalUsage = map[string]string{InternalUsageOwner: "vland"}
	}
	return v
}

// DefaultName is the name given to a VLAN created without one.
func DefaultName(id int) string {
	return fmt.Sprintf("VLAN%d", id)
}

// IsDefault reports whether v is the protected default VLAN.
func (v *VLAN) IsDefault() bool {
	return v != nil && v.Name == DefaultVLANName
}

// IsL3PortInternal reports whether v is an internal VLAN backing a routed
// port. These carry no L2 membership and get no derived state.
func (v *VLAN) IsL3PortInternal() bool {
	if v == nil || !v.Internal {
		return false
	}
	_, ok := v.InternalUsage[InternalUsageL3Port]
	return ok
}

// Clone returns a deep copy.
func (v *VLAN) Clone() *VLAN {
	if v == nil {
		return nil
	}
	c := *v
	c.InternalUsage = maps.Clone(v.InternalUsage)
	return &c
}

// ConfigEqual compares the configuration fields of two VLAN rows.
func (v *VLAN) ConfigEqual(o *VLAN) bool {
	if v == nil || o == nil {
		return v == o
	}
	return v.ID == o.ID &&
		v.Name == o.Name &&
		v.Description == o.Description &&
		v.AdminState == o.AdminState &&
		v.Internal == o.Internal &&
		maps.Equal(v.InternalUsage, o.InternalUsage)
}

// DerivedState is the engine's output for one VLAN.
type DerivedState struct {
	OperState OperState `json:"oper_state"`
	Reason    Reason    `json:"oper_state_reason"`
	HWConfig  HWConfig  `json:"hw_vlan_config"`
}

func (d DerivedState) String() string {
	return fmt.Sprintf("%s/%s", d.OperState, d.Reason)
}

// Derived states. These are the only three the engine produces.
var (
	StateAdminDown    = DerivedState{OperState: OperDown, Reason: ReasonAdminDown}
	StateNoMemberPort = DerivedState{OperState: OperDown, Reason: ReasonNoMemberPort}
	StateUp           = DerivedState{OperState: OperUp, Reason: ReasonOK, HWConfig: HWConfig{Enabled: true}}
)
