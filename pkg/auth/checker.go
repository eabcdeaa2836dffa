package auth

import (
	"fmt"
	"os/user"
	"slices"

	"github.com/newtron-network/vland/pkg/util"
)

// Policy maps permissions to the users and groups holding them. It is
// the auth section of the settings file.
type Policy struct {
	SuperUsers []string            `yaml:"super_users,omitempty"`
	UserGroups map[string][]string `yaml:"user_groups,omitempty"`
	// Permissions maps a permission name, or "all", to users and groups.
	Permissions map[string][]string `yaml:"permissions,omitempty"`
}

// IsOpen reports whether the policy grants nothing to anyone. An open
// policy allows every action.
func (p Policy) IsOpen() bool {
	return len(p.SuperUsers) == 0 && len(p.Permissions) == 0
}

// Checker validates user permissions
type Checker struct {
	policy      Policy
	currentUser string
}

// NewChecker creates a permission checker for the current OS user
func NewChecker(policy Policy) *Checker {
	username := "unknown"
	if u, err := user.Current(); err == nil {
		username = u.Username
	}

	return &Checker{
		policy:      policy,
		currentUser: username,
	}
}

// SetUser overrides the current user (for testing or sudo)
func (c *Checker) SetUser(username string) {
	c.currentUser = username
}

// CurrentUser returns the current username
func (c *Checker) CurrentUser() string {
	return c.currentUser
}

// Check verifies if the current user has a permission
func (c *Checker) Check(permission Permission, ctx *Context) error {
	return c.CheckUser(c.currentUser, permission, ctx)
}

// CheckUser verifies if a specific user has a permission
func (c *Checker) CheckUser(username string, permission Permission, ctx *Context) error {
	if c.policy.IsOpen() || c.isSuperUser(username) {
		return nil
	}
	if c.checkPermissionMap(username, permission, c.policy.Permissions) {
		return nil
	}

	return &PermissionError{
		User:       username,
		Permission: permission,
		Context:    ctx,
	}
}

// IsSuperUser returns true if the current user is a superuser
func (c *Checker) IsSuperUser() bool {
	return c.isSuperUser(c.currentUser)
}

func (c *Checker) isSuperUser(username string) bool {
	return slices.Contains(c.policy.SuperUsers, username)
}

// checkPermissionMap checks whether username has the given permission in permMap.
// It first checks the "all" wildcard key, then the specific permission key.
func (c *Checker) checkPermissionMap(username string, permission Permission, permMap map[string][]string) bool {
	if groups, ok := permMap[string(PermAll)]; ok && c.userInGroups(username, groups) {
		return true
	}

	groups, ok := permMap[string(permission)]
	if !ok {
		return false
	}
	return c.userInGroups(username, groups)
}

func (c *Checker) userInGroups(username string, allowedGroups []string) bool {
	for _, group := range allowedGroups {
		if group == username {
			return true
		}
		if slices.Contains(c.policy.UserGroups[group], username) {
			return true
		}
	}
	return false
}

// ListPermissions returns all permissions the current user has
func (c *Checker) ListPermissions() []Permission {
	return c.ListPermissionsForUser(c.currentUser)
}

// ListPermissionsForUser returns all permissions a user has, sorted
func (c *Checker) ListPermissionsForUser(username string) []Permission {
	if c.policy.IsOpen() || c.isSuperUser(username) {
		return []Permission{PermAll}
	}

	var perms []Permission
	for permStr, groups := range c.policy.Permissions {
		if c.userInGroups(username, groups) {
			perms = append(perms, Permission(permStr))
		}
	}
	slices.Sort(perms)
	return perms
}

// GetUserGroups returns the groups a user belongs to, sorted
func (c *Checker) GetUserGroups(username string) []string {
	var groups []string
	for groupName, members := range c.policy.UserGroups {
		if slices.Contains(members, username) {
			groups = append(groups, groupName)
		}
	}
	slices.Sort(groups)
	return groups
}

// PermissionError represents a permission denial
type PermissionError struct {
	User       string
	Permission Permission
	Context    *Context
}

func (e *PermissionError) Error() string {
	msg := fmt.Sprintf("permission denied: user '%s' does not have '%s' permission", e.User, e.Permission)
	if e.Context != nil {
		if e.Context.Resource != "" {
			msg += fmt.Sprintf(" for %s", e.Context.Resource)
		}
		if e.Context.Device != "" {
			msg += fmt.Sprintf(" on device '%s'", e.Context.Device)
		}
	}
	return msg
}

func (e *PermissionError) Unwrap() error {
	return util.ErrPermissionDenied
}
