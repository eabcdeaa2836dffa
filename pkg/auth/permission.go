// Package auth provides permission-based access control for vlanctl
// writes.
package auth

// Permission defines an action that can be controlled
type Permission string

// Standard permissions
const (
	PermVLANCreate Permission = "vlan.create"
	PermVLANModify Permission = "vlan.modify"
	PermVLANDelete Permission = "vlan.delete"
	PermVLANView   Permission = "vlan.view"

	PermPortModify Permission = "port.modify"
	PermPortDelete Permission = "port.delete"
	PermPortView   Permission = "port.view"

	PermInternalConfigure Permission = "internal.configure"
	PermInternalView      Permission = "internal.view"

	PermAuditView Permission = "audit.view"

	PermAll Permission = "all" // Superuser - allows everything
)

// PermissionCategory groups related permissions
type PermissionCategory struct {
	Name        string
	Description string
	Permissions []Permission
}

// StandardCategories defines standard permission categories
var StandardCategories = []PermissionCategory{
	{
		Name:        "vlan",
		Description: "VLAN management",
		Permissions: []Permission{PermVLANCreate, PermVLANModify, PermVLANDelete, PermVLANView},
	},
	{
		Name:        "port",
		Description: "Port VLAN membership",
		Permissions: []Permission{PermPortModify, PermPortDelete, PermPortView},
	},
	{
		Name:        "internal",
		Description: "Internal VLAN range",
		Permissions: []Permission{PermInternalConfigure, PermInternalView},
	},
	{
		Name:        "audit",
		Description: "Audit log access",
		Permissions: []Permission{PermAuditView},
	},
}

// Context provides context for permission checks
type Context struct {
	Device   string
	Resource string
}

// NewContext creates a new permission context
func NewContext() *Context {
	return &Context{}
}

// WithDevice sets the device context
func (c *Context) WithDevice(device string) *Context {
	c.Device = device
	return c
}

// WithResource sets the resource, e.g. "VLAN 100" or "port Ethernet0"
func (c *Context) WithResource(resource string) *Context {
	c.Resource = resource
	return c
}

// IsReadOnly returns true if the permission is read-only
func (p Permission) IsReadOnly() bool {
	switch p {
	case PermVLANView, PermPortView, PermInternalView, PermAuditView:
		return true
	}
	return false
}

// IsWriteOperation returns true if the permission involves modification
func (p Permission) IsWriteOperation() bool {
	return !p.IsReadOnly()
}
