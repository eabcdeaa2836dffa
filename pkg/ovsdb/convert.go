package ovsdb

import (
	"fmt"
	"maps"
	"slices"
	"strconv"

	"github.com/newtron-network/vland/pkg/model"
	"github.com/newtron-network/vland/pkg/util"
)

// System status keys holding the active internal range.
const (
	statusInternalRange  = "internal_vlan_range"
	statusInternalPolicy = "internal_vlan_policy"
	otherConfigRouting   = "routing"
)

func strPtr(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func strVal(p *string) string {
	if p == nil {
		return ""
	}
	return *p
}

// VLANRow encodes the configuration columns of a VLAN. Derived columns
// are left empty.
func VLANRow(v *model.VLAN) *VLAN {
	row := &VLAN{
		ID:          v.ID,
		Name:        v.Name,
		Description: strPtr(v.Description),
		Admin:       strPtr(string(v.AdminState)),
	}
	if v.Internal {
		row.InternalUsage = maps.Clone(v.InternalUsage)
	}
	return row
}

// VLANFromRow decodes a VLAN row. A row with a non-empty internal_usage
// is an internal VLAN.
func VLANFromRow(row *VLAN) (*model.VLAN, error) {
	if err := util.ValidateVLANID(row.ID); err != nil {
		return nil, fmt.Errorf("VLAN row %s: %w", row.UUID, err)
	}
	v := model.NewVLAN(row.ID, row.Name)
	v.Description = strVal(row.Description)
	if a := strVal(row.Admin); a != "" {
		v.AdminState = model.AdminState(a)
	}
	if len(row.InternalUsage) > 0 {
		v.Internal = true
		v.InternalUsage = maps.Clone(row.InternalUsage)
	}
	return v, nil
}

// PortRow encodes a port. other is the row's current other_config; keys
// vland does not own are kept.
func PortRow(p *model.Port, other map[string]string) *Port {
	row := &Port{
		Name:        p.Name,
		VLANMode:    strPtr(string(p.VLANMode)),
		Trunks:      slices.Clone(p.Trunks),
		IP4Address:  strPtr(p.IP4Address),
		Admin:       strPtr(string(p.AdminState)),
		OtherConfig: maps.Clone(other),
	}
	if row.OtherConfig == nil {
		row.OtherConfig = map[string]string{}
	}
	if row.Trunks == nil {
		row.Trunks = []int{}
	}
	if p.HasTag() {
		tag := p.Tag
		row.Tag = &tag
	}
	delete(row.OtherConfig, otherConfigRouting)
	if p.Routing {
		row.OtherConfig[otherConfigRouting] = "true"
	}
	return row
}

// PortFromRow decodes a Port row.
func PortFromRow(row *Port) (*model.Port, error) {
	p := model.NewPort(row.Name)
	p.VLANMode = model.VLANMode(strVal(row.VLANMode))
	if a := strVal(row.Admin); a != "" {
		p.AdminState = model.AdminState(a)
	}
	if row.Tag != nil {
		p.Tag = *row.Tag
	}
	p.Trunks = model.NormalizeTrunks(row.Trunks)
	p.IP4Address = strVal(row.IP4Address)
	if s, ok := row.OtherConfig[otherConfigRouting]; ok {
		routing, err := strconv.ParseBool(s)
		if err != nil {
			return nil, fmt.Errorf("port %s: routing %q: %w", row.Name, s, err)
		}
		p.Routing = routing
	}
	return p, nil
}

// StateColumns sets the derived columns of row from st.
func StateColumns(row *VLAN, st model.DerivedState) {
	row.OperState = strPtr(string(st.OperState))
	row.OperStateReason = strPtr(string(st.Reason))
	row.HWVLANConfig = st.HWConfig.Map()
}

// StateFromRow reads the derived columns of a VLAN row. ok is false when
// no state was published yet.
func StateFromRow(row *VLAN) (model.DerivedState, bool) {
	if row.OperState == nil {
		return model.DerivedState{}, false
	}
	return model.DerivedState{
		OperState: model.OperState(*row.OperState),
		Reason:    model.Reason(strVal(row.OperStateReason)),
		HWConfig:  model.HWConfigFromMap(row.HWVLANConfig),
	}, true
}

// configEqual reports whether two VLAN rows differ only in derived
// columns.
func configEqual(a, b *VLAN) bool {
	return a.ID == b.ID &&
		a.Name == b.Name &&
		strVal(a.Description) == strVal(b.Description) &&
		strVal(a.Admin) == strVal(b.Admin) &&
		maps.Equal(a.InternalUsage, b.InternalUsage)
}

// Snapshot builds a model snapshot from table contents. A malformed row
// fails the whole conversion.
func Snapshot(vlans []VLAN, ports []Port, sys *System) (*model.Snapshot, error) {
	snap := model.NewSnapshot()
	for i := range vlans {
		v, err := VLANFromRow(&vlans[i])
		if err != nil {
			return nil, fmt.Errorf("%w: %v", util.ErrInvalidConfig, err)
		}
		snap.VLANs[v.ID] = v
	}
	for i := range ports {
		p, err := PortFromRow(&ports[i])
		if err != nil {
			return nil, fmt.Errorf("%w: %v", util.ErrInvalidConfig, err)
		}
		snap.Ports[p.Name] = p
	}
	var other map[string]string
	if sys != nil {
		other = sys.OtherConfig
	}
	rng, err := model.InternalRangeFromFields(other)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", util.ErrInvalidConfig, err)
	}
	snap.InternalRange = rng
	return snap, nil
}

// mergeRange returns other with the internal range keys replaced by r.
func mergeRange(other map[string]string, r model.InternalRange) map[string]string {
	out := maps.Clone(other)
	if out == nil {
		out = map[string]string{}
	}
	maps.Copy(out, r.Fields())
	return out
}

// rangeStatus returns status with the active internal range recorded.
func rangeStatus(status map[string]string, r model.InternalRange) map[string]string {
	out := maps.Clone(status)
	if out == nil {
		out = map[string]string{}
	}
	out[statusInternalRange] = r.String()
	out[statusInternalPolicy] = string(r.Policy)
	return out
}
