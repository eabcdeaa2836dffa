// Package ovsdb stores VLAN configuration in an OpenSwitch OVSDB server.
//
// Tables used:
//   - VLAN: one row per VLAN; derived state lives in the same row
//   - Port: L2/L3 configuration of a port
//   - System: the singleton row; other_config holds the configured
//     internal VLAN range and status the active one
package ovsdb

import (
	"github.com/ovn-org/libovsdb/model"
)

// DatabaseName is the OVSDB database holding the tables below.
const DatabaseName = "OpenSwitch"

// Table names.
const (
	TableVLAN   = "VLAN"
	TablePort   = "Port"
	TableSystem = "System"
)

// VLAN is a row of the VLAN table. OperState, OperStateReason and
// HWVLANConfig are written by vland only.
type VLAN struct {
	UUID            string            `ovsdb:"_uuid"`
	ID              int               `ovsdb:"id"`
	Name            string            `ovsdb:"name"`
	Description     *string           `ovsdb:"description"`
	Admin           *string           `ovsdb:"admin"`
	OperState       *string           `ovsdb:"oper_state"`
	OperStateReason *string           `ovsdb:"oper_state_reason"`
	HWVLANConfig    map[string]string `ovsdb:"hw_vlan_config"`
	InternalUsage   map[string]string `ovsdb:"internal_usage"`
	ExternalIDs     map[string]string `ovsdb:"external_ids"`
}

// Port is a row of the Port table. Routing is other_config:routing.
type Port struct {
	UUID        string            `ovsdb:"_uuid"`
	Name        string            `ovsdb:"name"`
	VLANMode    *string           `ovsdb:"vlan_mode"`
	Tag         *int              `ovsdb:"tag"`
	Trunks      []int             `ovsdb:"trunks"`
	IP4Address  *string           `ovsdb:"ip4_address"`
	Admin       *string           `ovsdb:"admin"`
	OtherConfig map[string]string `ovsdb:"other_config"`
}

// System is the singleton row of the System table.
type System struct {
	UUID        string            `ovsdb:"_uuid"`
	Hostname    string            `ovsdb:"hostname"`
	OtherConfig map[string]string `ovsdb:"other_config"`
	Status      map[string]string `ovsdb:"status"`
}

// DBModel returns the client database model for the tables vland uses.
func DBModel() (model.ClientDBModel, error) {
	return model.NewClientDBModel(DatabaseName, map[string]model.Model{
		TableVLAN:   &VLAN{},
		TablePort:   &Port{},
		TableSystem: &System{},
	})
}
