package model

import (
	"reflect"
	"testing"
)

func TestNewVLAN_Defaults(t *testing.T) {
	v := NewVLAN(200, "")
	if v.AdminState != AdminDown {
		t.Errorf("AdminState = %q, want %q", v.AdminState, AdminDown)
	}
	if v.Name != "VLAN200" {
		t.Errorf("Name = %q, want %q", v.Name, "VLAN200")
	}
	if v.Internal {
		t.Error("user VLAN should not be internal")
	}

	named := NewVLAN(1, DefaultVLANName)
	if !named.IsDefault() {
		t.Error("IsDefault() = false for DEFAULT_VLAN_1")
	}
}

func TestNewInternalVLAN(t *testing.T) {
	usage := map[string]string{InternalUsageL3Port: "7"}
	v := NewInternalVLAN(1024, usage)
	if !v.Internal || !v.IsL3PortInternal() {
		t.Errorf("NewInternalVLAN() = %+v, want internal l3port VLAN", v)
	}
	usage["other"] = "x"
	if _, ok := v.InternalUsage["other"]; ok {
		t.Error("NewInternalVLAN should copy the usage map")
	}

	if NewVLAN(5, "").IsL3PortInternal() {
		t.Error("user VLAN reported as l3port internal")
	}

	owned := NewInternalVLAN(1025, nil)
	if owned.InternalUsage[InternalUsageOwner] != "vland" || owned.IsL3PortInternal() {
		t.Errorf("NewInternalVLAN(nil usage) = %+v", owned)
	}
}

func TestHWConfig_Map(t *testing.T) {
	if got := (HWConfig{Enabled: true}).Map(); !reflect.DeepEqual(got, map[string]string{"enable": "true"}) {
		t.Errorf("Map() enabled = %v", got)
	}
	if got := (HWConfig{}).Map(); len(got) != 0 {
		t.Errorf("Map() disabled = %v, want empty", got)
	}
	if !HWConfigFromMap(map[string]string{"enable": "true"}).Enabled {
		t.Error("HWConfigFromMap(enable=true) should be enabled")
	}
	if HWConfigFromMap(nil).Enabled {
		t.Error("HWConfigFromMap(nil) should be disabled")
	}
}

func TestPort_Mode(t *testing.T) {
	tests := []struct {
		name string
		port Port
		want VLANMode
	}{
		{"explicit trunk", Port{VLANMode: ModeTrunk, Tag: 10}, ModeTrunk},
		{"unset with tag", Port{Tag: 10}, ModeAccess},
		{"unset without tag", Port{}, ModeTrunk},
		{"native untagged", Port{VLANMode: ModeNativeUntagged}, ModeNativeUntagged},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.port.Mode(); got != tt.want {
				t.Errorf("Mode() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestVLANMode_Valid(t *testing.T) {
	for _, m := range Modes {
		if !m.Valid() {
			t.Errorf("%q.Valid() = false", m)
		}
	}
	for _, m := range []VLANMode{"", "hybrid", "TRUNK"} {
		if m.Valid() {
			t.Errorf("%q.Valid() = true", m)
		}
	}
}

func TestNormalizeTrunks(t *testing.T) {
	if got := NormalizeTrunks([]int{300, 100, 200, 100}); !reflect.DeepEqual(got, []int{100, 200, 300}) {
		t.Errorf("NormalizeTrunks() = %v", got)
	}
	if got := NormalizeTrunks(nil); got != nil {
		t.Errorf("NormalizeTrunks(nil) = %v, want nil", got)
	}
}

func TestSnapshot_CloneIsDeep(t *testing.T) {
	s := NewSnapshot()
	s.Apply(InsertVLAN(NewVLAN(100, "")))
	p := NewPort("1")
	p.Trunks = []int{100}
	s.Apply(InsertPort(p))

	c := s.Clone()
	c.VLANs[100].AdminState = AdminUp
	c.Ports["1"].Trunks[0] = 999

	if s.VLANs[100].AdminState != AdminDown {
		t.Error("Clone shares VLAN rows with the original")
	}
	if s.Ports["1"].Trunks[0] != 100 {
		t.Error("Clone shares trunk slices with the original")
	}
}

func TestSnapshot_DeleteVLANDetachesPorts(t *testing.T) {
	s := NewSnapshot()
	for _, id := range []int{100, 200} {
		s.Apply(InsertVLAN(NewVLAN(id, "")))
	}
	trunk := NewPort("1")
	trunk.Trunks = []int{100, 200}
	access := &Port{Name: "2", VLANMode: ModeAccess, Tag: 200, AdminState: AdminUp}
	s.Apply(InsertPort(trunk))
	s.Apply(InsertPort(access))

	s.Apply(DeleteVLAN(200))

	if s.HasVLAN(200) {
		t.Fatal("VLAN 200 still present")
	}
	if got := s.Ports["1"].Trunks; !reflect.DeepEqual(got, []int{100}) {
		t.Errorf("trunks after delete = %v, want [100]", got)
	}
	if s.Ports["2"].HasTag() {
		t.Errorf("access tag after delete = %d, want unset", s.Ports["2"].Tag)
	}
}

func TestSnapshot_ApplyNormalizesTrunks(t *testing.T) {
	s := NewSnapshot()
	p := NewPort("1")
	p.Trunks = []int{20, 10, 20}
	s.Apply(InsertPort(p))
	if got := s.Ports["1"].Trunks; !reflect.DeepEqual(got, []int{10, 20}) {
		t.Errorf("Trunks = %v, want [10 20]", got)
	}
}

func TestChanges(t *testing.T) {
	prev := NewSnapshot()
	prev.Apply(InsertVLAN(NewVLAN(100, "")))
	prev.Apply(InsertVLAN(NewVLAN(200, "")))
	prev.Apply(InsertPort(NewPort("1")))

	next := prev.Clone()
	next.Apply(DeleteVLAN(100))
	up := next.VLANs[200].Clone()
	up.AdminState = AdminUp
	next.Apply(ModifyVLAN(up))
	next.Apply(InsertVLAN(NewVLAN(300, "")))
	next.Apply(InsertPort(NewPort("2")))

	got := Changes(prev, next).Resources()
	want := []string{
		"delete VLAN 100",
		"modify VLAN 200",
		"insert VLAN 300",
		"insert port 2",
	}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("Changes() = %v, want %v", got, want)
	}

	// replaying the changes on prev reproduces next
	replay := prev.Clone()
	replay.ApplyAll(Changes(prev, next))
	if len(Changes(replay, next)) != 0 {
		t.Errorf("replayed snapshot differs: %v", Changes(replay, next).Resources())
	}
}

func TestMutation_Kind(t *testing.T) {
	tests := []struct {
		m    Mutation
		want Kind
	}{
		{InsertVLAN(NewVLAN(1, "")), KindVLAN},
		{DeletePort("1"), KindPort},
		{Mutation{}, KindUnknown},
		{Mutation{VLAN: &VLAN{}, Port: &Port{}}, KindUnknown},
	}
	for _, tt := range tests {
		if got := tt.m.Kind(); got != tt.want {
			t.Errorf("%v.Kind() = %v, want %v", tt.m, got, tt.want)
		}
	}

	txn := Transaction{InsertVLAN(NewVLAN(1, ""))}.System()
	if !txn[0].System {
		t.Error("Transaction.System() did not mark mutations")
	}
}

func TestInternalRange(t *testing.T) {
	r := DefaultInternalRange()
	if r.String() != "1024-4094" || r.Policy != PolicyAscending {
		t.Errorf("DefaultInternalRange() = %s %s", r, r.Policy)
	}
	if !r.Contains(1024) || !r.Contains(4094) || r.Contains(1023) {
		t.Error("Contains() boundaries wrong")
	}
	if !(InternalRange{}).IsZero() {
		t.Error("zero range should report IsZero")
	}
}

func TestInternalRangeFromFields(t *testing.T) {
	r := InternalRange{Start: 2000, End: 2100, Policy: PolicyDescending}
	back, err := InternalRangeFromFields(r.Fields())
	if err != nil || back != r {
		t.Errorf("InternalRangeFromFields(Fields()) = %+v, %v", back, err)
	}

	partial, err := InternalRangeFromFields(map[string]string{KeyMaxInternalVLAN: "2000"})
	if err != nil || partial.Start != 1024 || partial.End != 2000 || partial.Policy != PolicyAscending {
		t.Errorf("partial = %+v, %v", partial, err)
	}

	if _, err := InternalRangeFromFields(map[string]string{KeyMinInternalVLAN: "low"}); err == nil {
		t.Error("non-numeric min accepted")
	}
}
