package validate

import (
	"fmt"

	"github.com/newtron-network/vland/pkg/model"
	"github.com/newtron-network/vland/pkg/util"
)

// Checker accumulates validation failures for one mutation against a
// snapshot. Each Require method records a coded error when its condition
// does not hold and returns the checker for chaining.
type Checker struct {
	snap      *model.Snapshot
	operation string
	resource  string
	errors    []error
}

// NewChecker creates a checker for the given operation and resource.
func NewChecker(snap *model.Snapshot, operation, resource string) *Checker {
	return &Checker{
		snap:      snap,
		operation: operation,
		resource:  resource,
	}
}

// Check records an error with code and details if condition is false.
func (c *Checker) Check(condition bool, code util.Code, details string) *Checker {
	if !condition {
		c.errors = append(c.errors, util.NewValidationError(code, c.operation, c.resource, details))
	}
	return c
}

// RequireVLANID checks 1 <= id <= 4094.
func (c *Checker) RequireVLANID(id int) *Checker {
	return c.Check(util.ValidateVLANID(id) == nil, util.CodeInvalidValue,
		fmt.Sprintf("VLAN id %d outside %d-%d", id, util.MinVLANID, util.MaxVLANID))
}

// RequireVLANExists checks that the VLAN is configured.
func (c *Checker) RequireVLANExists(id int) *Checker {
	return c.Check(c.snap.HasVLAN(id), util.CodeNotFound,
		fmt.Sprintf("VLAN %d not found", id))
}

// RequireVLANNotExists checks that no VLAN, user or internal, has the id.
func (c *Checker) RequireVLANNotExists(id int) *Checker {
	return c.Check(!c.snap.HasVLAN(id), util.CodeDuplicateVlanID,
		fmt.Sprintf("VLAN %d already exists", id))
}

// RequireNameAvailable checks that no VLAN other than id uses name.
func (c *Checker) RequireNameAvailable(id int, name string) *Checker {
	other := c.snap.VLANByName(name)
	return c.Check(other == nil || other.ID == id, util.CodeAlreadyExists,
		fmt.Sprintf("VLAN name %q already used by VLAN %d", name, idOf(other)))
}

// RequireNotDefault checks that the VLAN is not DEFAULT_VLAN_1.
func (c *Checker) RequireNotDefault(v *model.VLAN) *Checker {
	return c.Check(!v.IsDefault(), util.CodeProtectedResource,
		fmt.Sprintf("%s cannot be deleted", model.DefaultVLANName))
}

// RequireUserVLAN checks that a non-system change does not touch an
// internal VLAN.
func (c *Checker) RequireUserVLAN(v *model.VLAN, system bool) *Checker {
	return c.Check(system || v == nil || !v.Internal, util.CodeProtectedResource,
		fmt.Sprintf("VLAN %d is used as an internal VLAN", idOf(v)))
}

// RequireAdminState checks that a is up or down.
func (c *Checker) RequireAdminState(a model.AdminState) *Checker {
	return c.Check(a.Valid(), util.CodeInvalidValue,
		fmt.Sprintf("admin state %q must be up or down", a))
}

// RequirePortExists checks that the port is configured.
func (c *Checker) RequirePortExists(name string) *Checker {
	_, ok := c.snap.Ports[name]
	return c.Check(ok, util.CodeNotFound, fmt.Sprintf("port %q not found", name))
}

// RequirePortNotExists checks that the port is not configured.
func (c *Checker) RequirePortNotExists(name string) *Checker {
	_, ok := c.snap.Ports[name]
	return c.Check(!ok, util.CodeAlreadyExists, fmt.Sprintf("port %q already exists", name))
}

// RequireMode checks an explicit vlan_mode. Empty is allowed and defaults
// from the tag.
func (c *Checker) RequireMode(m model.VLANMode) *Checker {
	return c.Check(m == "" || m.Valid(), util.CodeInvalidValue,
		fmt.Sprintf("vlan_mode %q must be one of access, trunk, native-tagged, native-untagged", m))
}

// RequireMembershipIDs checks tag and trunk ids.
func (c *Checker) RequireMembershipIDs(p *model.Port) *Checker {
	if p.HasTag() {
		c.RequireVLANID(p.Tag)
	}
	for _, id := range p.Trunks {
		c.RequireVLANID(id)
	}
	return c
}

// RequireL2L3Exclusive checks that an IPv4 address and a tag are not both
// set on the port.
func (c *Checker) RequireL2L3Exclusive(p *model.Port) *Checker {
	return c.Check(p.IP4Address == "" || !p.HasTag(), util.CodeConflictingConfig,
		"L2 and L3 config cannot be applied on same interface")
}

// Result returns the first error or nil if all checks passed.
func (c *Checker) Result() error {
	if len(c.errors) == 0 {
		return nil
	}
	return c.errors[0]
}

// Errors returns all errors
func (c *Checker) Errors() []error {
	return c.errors
}

// HasErrors returns true if there are any errors
func (c *Checker) HasErrors() bool {
	return len(c.errors) > 0
}

func idOf(v *model.VLAN) int {
	if v == nil {
		return 0
	}
	return v.ID
}
