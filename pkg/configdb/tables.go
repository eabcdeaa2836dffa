package configdb

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/newtron-network/vland/pkg/model"
	"github.com/newtron-network/vland/pkg/util"
)

// Table names.
const (
	TableVLAN           = "VLAN"
	TablePortVLAN       = "PORT_VLAN"
	TableDeviceMetadata = "DEVICE_METADATA"

	TableVLANState     = "VLAN_TABLE"
	TableInternalVLAN  = "INTERNAL_VLAN_TABLE"
	TableVLANMember    = "VLAN_MEMBER_TABLE"
	metadataKey        = "localhost"
	internalRangeKey   = "range"
	vlanKeyPrefix      = "Vlan"
	hwVLANConfigEnable = "hw_vlan_config_enable"
)

// Tables mirrors the VLAN-related tables of CONFIG_DB.
type Tables struct {
	DeviceMetadata map[string]map[string]string `json:"DEVICE_METADATA,omitempty"`
	VLAN           map[string]VLANEntry         `json:"VLAN,omitempty"`
	PortVLAN       map[string]PortVLANEntry     `json:"PORT_VLAN,omitempty"`
}

// VLANEntry is a VLAN row. Key format: "Vlan<id>".
type VLANEntry struct {
	VLANID        string `json:"vlanid"`
	Name          string `json:"name,omitempty"`
	AdminStatus   string `json:"admin_status,omitempty"`
	Description   string `json:"description,omitempty"`
	Internal      string `json:"internal,omitempty"`       // "true" for allocator-owned VLANs
	InternalUsage string `json:"internal_usage,omitempty"` // e.g. "l3port=Ethernet8"
}

// PortVLANEntry is a port's L2/L3 row. Key format: port name.
type PortVLANEntry struct {
	VLANMode    string `json:"vlan_mode,omitempty"`
	Tag         string `json:"tag,omitempty"`
	Trunks      string `json:"trunks,omitempty"` // range notation, e.g. "100,200-210"
	Routing     string `json:"routing,omitempty"`
	IP4Address  string `json:"ip4_address,omitempty"`
	AdminStatus string `json:"admin_status,omitempty"`
}

func newEmptyTables() *Tables {
	return &Tables{
		DeviceMetadata: make(map[string]map[string]string),
		VLAN:           make(map[string]VLANEntry),
		PortVLAN:       make(map[string]PortVLANEntry),
	}
}

// tableParser populates one Tables field from a Redis hash.
type tableParser func(db *Tables, entry string, vals map[string]string)

// tableParsers maps table names to parsers. Every Tables field needs one.
var tableParsers = map[string]tableParser{
	TableDeviceMetadata: func(db *Tables, entry string, vals map[string]string) {
		db.DeviceMetadata[entry] = vals
	},
	TableVLAN: func(db *Tables, entry string, vals map[string]string) {
		db.VLAN[entry] = VLANEntry{
			VLANID:        vals["vlanid"],
			Name:          vals["name"],
			AdminStatus:   vals["admin_status"],
			Description:   vals["description"],
			Internal:      vals["internal"],
			InternalUsage: vals["internal_usage"],
		}
	},
	TablePortVLAN: func(db *Tables, entry string, vals map[string]string) {
		db.PortVLAN[entry] = PortVLANEntry{
			VLANMode:    vals["vlan_mode"],
			Tag:         vals["tag"],
			Trunks:      vals["trunks"],
			Routing:     vals["routing"],
			IP4Address:  vals["ip4_address"],
			AdminStatus: vals["admin_status"],
		}
	},
}

// ReadTables reads the VLAN-related tables of CONFIG_DB.
func ReadTables(ctx context.Context, c *Client) (*Tables, error) {
	db := newEmptyTables()
	for table, parse := range tableParsers {
		rows, err := c.GetTable(ctx, table)
		if err != nil {
			return nil, err
		}
		for key, vals := range rows {
			parse(db, key, vals)
		}
	}
	return db, nil
}

// ToJSON exports the tables in config_db.json form.
func (db *Tables) ToJSON() ([]byte, error) {
	return json.MarshalIndent(db, "", "  ")
}

// TablesFromJSON parses tables in config_db.json form. Tables vland does
// not read are ignored.
func TablesFromJSON(data []byte) (*Tables, error) {
	db := newEmptyTables()
	if err := json.Unmarshal(data, db); err != nil {
		return nil, fmt.Errorf("%w: %v", util.ErrInvalidConfig, err)
	}
	return db, nil
}

// VLANKey returns the row key of a VLAN, "Vlan<id>".
func VLANKey(id int) string {
	return fmt.Sprintf("%s%d", vlanKeyPrefix, id)
}

// ParseVLANKey extracts the id from a "Vlan<id>" key.
func ParseVLANKey(key string) (int, error) {
	if !strings.HasPrefix(key, vlanKeyPrefix) {
		return 0, fmt.Errorf("VLAN key %q: missing %q prefix", key, vlanKeyPrefix)
	}
	id, err := strconv.Atoi(key[len(vlanKeyPrefix):])
	if err != nil {
		return 0, fmt.Errorf("VLAN key %q: %w", key, err)
	}
	return id, nil
}

// VLANFields encodes a VLAN row.
func VLANFields(v *model.VLAN) map[string]string {
	f := map[string]string{
		"vlanid":       strconv.Itoa(v.ID),
		"name":         v.Name,
		"admin_status": string(v.AdminState),
	}
	if v.Description != "" {
		f["description"] = v.Description
	}
	if v.Internal {
		f["internal"] = "true"
		if len(v.InternalUsage) > 0 {
			f["internal_usage"] = util.FormatKeyValues(v.InternalUsage)
		}
	}
	return f
}

// VLANFromEntry decodes a VLAN row. The key is authoritative for the id;
// a vlanid field that disagrees is an error.
func VLANFromEntry(key string, e VLANEntry) (*model.VLAN, error) {
	id, err := ParseVLANKey(key)
	if err != nil {
		return nil, err
	}
	if e.VLANID != "" && e.VLANID != strconv.Itoa(id) {
		return nil, fmt.Errorf("VLAN %s: vlanid %q does not match key", key, e.VLANID)
	}

	v := model.NewVLAN(id, e.Name)
	v.Description = e.Description
	if e.AdminStatus != "" {
		v.AdminState = model.AdminState(e.AdminStatus)
	}
	if e.Internal == "true" {
		v.Internal = true
		if e.InternalUsage != "" {
			v.InternalUsage = util.ParseKeyValues(e.InternalUsage)
		}
	}
	return v, nil
}

// PortFields encodes a port row. Unset fields are omitted.
func PortFields(p *model.Port) map[string]string {
	f := map[string]string{
		"admin_status": string(p.AdminState),
	}
	if p.VLANMode != "" {
		f["vlan_mode"] = string(p.VLANMode)
	}
	if p.HasTag() {
		f["tag"] = strconv.Itoa(p.Tag)
	}
	if len(p.Trunks) > 0 {
		f["trunks"] = util.CompactRange(p.Trunks)
	}
	if p.Routing {
		f["routing"] = "true"
	}
	if p.IP4Address != "" {
		f["ip4_address"] = p.IP4Address
	}
	return f
}

// PortFromEntry decodes a port row.
func PortFromEntry(name string, e PortVLANEntry) (*model.Port, error) {
	p := model.NewPort(name)
	p.VLANMode = model.VLANMode(e.VLANMode)
	if e.AdminStatus != "" {
		p.AdminState = model.AdminState(e.AdminStatus)
	}
	if e.Tag != "" {
		tag, err := strconv.Atoi(e.Tag)
		if err != nil {
			return nil, fmt.Errorf("port %s: tag %q: %w", name, e.Tag, err)
		}
		p.Tag = tag
	}
	if e.Trunks != "" {
		trunks, err := util.ExpandRange(e.Trunks)
		if err != nil {
			return nil, fmt.Errorf("port %s: trunks %q: %w", name, e.Trunks, err)
		}
		p.Trunks = model.NormalizeTrunks(trunks)
	}
	if e.Routing != "" {
		routing, err := strconv.ParseBool(e.Routing)
		if err != nil {
			return nil, fmt.Errorf("port %s: routing %q: %w", name, e.Routing, err)
		}
		p.Routing = routing
	}
	p.IP4Address = e.IP4Address
	return p, nil
}

// Snapshot converts the tables to a model snapshot. A malformed row fails
// the whole conversion.
func (db *Tables) Snapshot() (*model.Snapshot, error) {
	snap := model.NewSnapshot()

	for key, e := range db.VLAN {
		v, err := VLANFromEntry(key, e)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", util.ErrInvalidConfig, err)
		}
		snap.VLANs[v.ID] = v
	}
	for name, e := range db.PortVLAN {
		p, err := PortFromEntry(name, e)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", util.ErrInvalidConfig, err)
		}
		snap.Ports[name] = p
	}
	rng, err := model.InternalRangeFromFields(db.DeviceMetadata[metadataKey])
	if err != nil {
		return nil, fmt.Errorf("%w: %v", util.ErrInvalidConfig, err)
	}
	snap.InternalRange = rng
	return snap, nil
}

// ChangesFor converts a transaction to row writes. Modifies delete the
// row first so fields cleared by the change do not linger.
func ChangesFor(txn model.Transaction) []TableChange {
	var changes []TableChange
	for _, m := range txn {
		var table, key string
		var fields map[string]string
		switch m.Kind() {
		case model.KindVLAN:
			table, key = TableVLAN, VLANKey(m.VLAN.ID)
			if m.Op != model.OpDelete {
				fields = VLANFields(m.VLAN)
			}
		case model.KindPort:
			table, key = TablePortVLAN, m.Port.Name
			if m.Op != model.OpDelete {
				fields = PortFields(m.Port)
			}
		default:
			continue
		}

		if m.Op != model.OpInsert {
			changes = append(changes, TableChange{Table: table, Key: key})
		}
		if fields != nil {
			changes = append(changes, TableChange{Table: table, Key: key, Fields: fields})
		}
	}
	return changes
}

// StateFields encodes a derived VLAN row for STATE_DB.
func StateFields(name string, st model.DerivedState) map[string]string {
	return map[string]string{
		"name":              name,
		"oper_state":        string(st.OperState),
		"oper_state_reason": string(st.Reason),
		hwVLANConfigEnable:  strconv.FormatBool(st.HWConfig.Enabled),
	}
}

// StateFromFields decodes a derived VLAN row.
func StateFromFields(vals map[string]string) model.DerivedState {
	enabled, _ := strconv.ParseBool(vals[hwVLANConfigEnable])
	return model.DerivedState{
		OperState: model.OperState(vals["oper_state"]),
		Reason:    model.Reason(vals["oper_state_reason"]),
		HWConfig:  model.HWConfig{Enabled: enabled},
	}
}

// RangeStateFields encodes the published internal range, e.g.
// range="1024-4094" policy="ascending".
func RangeStateFields(r model.InternalRange) map[string]string {
	return map[string]string{
		"range":  r.String(),
		"policy": string(r.Policy),
	}
}
