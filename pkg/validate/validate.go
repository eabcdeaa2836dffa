// Package validate holds the pre-commit checks for VLAN and port changes.
//
// Validators are pure: they read a snapshot and a mutation and either
// accept it or return a *util.ValidationError with a stable code. They
// never modify the snapshot.
package validate

import (
	"fmt"

	"github.com/newtron-network/vland/pkg/model"
	"github.com/newtron-network/vland/pkg/util"
)

// Validate checks one mutation against snap.
func Validate(snap *model.Snapshot, m model.Mutation) error {
	switch m.Kind() {
	case model.KindVLAN:
		return validateVLAN(snap, m)
	case model.KindPort:
		return validatePort(snap, m)
	}
	return util.NewValidationError(util.CodeInvalidValue, m.Op.String(), m.Resource(),
		"mutation must target exactly one VLAN or port")
}

// Transaction validates txn in order, applying each accepted mutation to
// a scratch copy so later mutations see earlier ones. It returns the
// scratch snapshot on success. On failure snap is untouched and the error
// names the failing mutation.
func Transaction(snap *model.Snapshot, txn model.Transaction) (*model.Snapshot, error) {
	scratch := snap.Clone()
	for i, m := range txn {
		if err := Validate(scratch, m); err != nil {
			if len(txn) == 1 {
				return nil, err
			}
			return nil, fmt.Errorf("mutation %d of %d: %w", i+1, len(txn), err)
		}
		scratch.Apply(m)
	}
	return scratch, nil
}

func validateVLAN(snap *model.Snapshot, m model.Mutation) error {
	v := m.VLAN
	c := NewChecker(snap, m.Op.String(), m.Resource())

	switch m.Op {
	case model.OpInsert:
		c.RequireVLANID(v.ID).
			RequireVLANNotExists(v.ID).
			Check(v.Name != "", util.CodeInvalidValue, "VLAN name must not be empty").
			RequireNameAvailable(v.ID, v.Name).
			RequireAdminState(v.AdminState).
			RequireUserVLAN(v, m.System)

	case model.OpModify:
		c.RequireVLANExists(v.ID)
		if c.HasErrors() {
			return c.Result()
		}
		cur := snap.VLANs[v.ID]
		c.RequireUserVLAN(cur, m.System).
			RequireUserVLAN(v, m.System).
			Check(v.Name != "", util.CodeInvalidValue, "VLAN name must not be empty").
			RequireNameAvailable(v.ID, v.Name).
			RequireAdminState(v.AdminState).
			Check(!cur.IsDefault() || v.IsDefault(), util.CodeProtectedResource,
				fmt.Sprintf("%s cannot be renamed", model.DefaultVLANName))

	case model.OpDelete:
		c.RequireVLANExists(v.ID)
		if c.HasErrors() {
			return c.Result()
		}
		cur := snap.VLANs[v.ID]
		c.RequireNotDefault(cur).
			RequireUserVLAN(cur, m.System)

	default:
		c.Check(false, util.CodeInvalidValue, "unknown operation")
	}

	return c.Result()
}

func validatePort(snap *model.Snapshot, m model.Mutation) error {
	p := m.Port
	c := NewChecker(snap, m.Op.String(), m.Resource())

	switch m.Op {
	case model.OpInsert, model.OpModify:
		c.Check(p.Name != "", util.CodeInvalidValue, "port name must not be empty")
		if m.Op == model.OpInsert {
			c.RequirePortNotExists(p.Name)
		} else {
			c.RequirePortExists(p.Name)
		}
		c.RequireMode(p.VLANMode).
			RequireMembershipIDs(p).
			RequireAdminState(p.AdminState).
			RequireL2L3Exclusive(p)
		if p.IP4Address != "" {
			c.Check(util.IsValidIPv4CIDR(p.IP4Address), util.CodeInvalidValue,
				fmt.Sprintf("ip4_address %q is not an IPv4 prefix", p.IP4Address))
		}

	case model.OpDelete:
		c.RequirePortExists(p.Name)

	default:
		c.Check(false, util.CodeInvalidValue, "unknown operation")
	}

	return c.Result()
}
