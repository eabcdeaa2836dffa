package validate

import (
	"errors"
	"testing"

	"github.com/newtron-network/vland/pkg/model"
	"github.com/newtron-network/vland/pkg/util"
)

// baseSnapshot has the default VLAN, user VLAN 100, internal VLAN 1024
// and an access port "1" on VLAN 100.
func baseSnapshot() *model.Snapshot {
	s := model.NewSnapshot()
	def := model.NewVLAN(1, model.DefaultVLANName)
	def.AdminState = model.AdminUp
	s.Apply(model.InsertVLAN(def))
	s.Apply(model.InsertVLAN(model.NewVLAN(100, "")))
	s.Apply(model.InsertVLAN(model.NewInternalVLAN(1024, map[string]string{model.InternalUsageL3Port: "5"})))
	s.Apply(model.InsertPort(&model.Port{Name: "1", VLANMode: model.ModeAccess, Tag: 100, AdminState: model.AdminUp}))
	return s
}

func TestValidate(t *testing.T) {
	renamed := model.NewVLAN(1, "LEGACY")
	dupName := model.NewVLAN(200, "VLAN100")
	takenName := model.NewVLAN(100, model.DefaultVLANName)
	badAdmin := model.NewVLAN(200, "")
	badAdmin.AdminState = "sideways"
	userInternal := model.NewInternalVLAN(300, nil)
	internalUp := model.NewInternalVLAN(1024, map[string]string{model.InternalUsageL3Port: "5"})
	internalUp.Description = "changed"

	l3 := &model.Port{Name: "1", VLANMode: model.ModeAccess, Tag: 100, IP4Address: "10.0.0.1/24", AdminState: model.AdminUp}
	routed := &model.Port{Name: "1", Routing: true, IP4Address: "10.0.0.1/24", AdminState: model.AdminUp}
	badMode := &model.Port{Name: "2", VLANMode: "hybrid", AdminState: model.AdminUp}
	badTrunk := &model.Port{Name: "2", VLANMode: model.ModeTrunk, Trunks: []int{10, 4095}, AdminState: model.AdminUp}
	badIP := &model.Port{Name: "2", Routing: true, IP4Address: "10.0.0.1", AdminState: model.AdminUp}
	unsetMode := &model.Port{Name: "2", Tag: 100, AdminState: model.AdminUp}

	tests := []struct {
		name     string
		m        model.Mutation
		wantCode util.Code
	}{
		{"insert new VLAN", model.InsertVLAN(model.NewVLAN(200, "")), ""},
		{"insert duplicate id", model.InsertVLAN(model.NewVLAN(100, "OTHER")), util.CodeDuplicateVlanID},
		{"insert over internal id", model.InsertVLAN(model.NewVLAN(1024, "")), util.CodeDuplicateVlanID},
		{"insert id 0", model.InsertVLAN(model.NewVLAN(0, "")), util.CodeInvalidValue},
		{"insert id 4095", model.InsertVLAN(model.NewVLAN(4095, "")), util.CodeInvalidValue},
		{"insert duplicate name", model.InsertVLAN(dupName), util.CodeAlreadyExists},
		{"insert bad admin", model.InsertVLAN(badAdmin), util.CodeInvalidValue},
		{"user inserts internal VLAN", model.InsertVLAN(userInternal), util.CodeProtectedResource},
		{"system inserts internal VLAN", model.InsertVLAN(userInternal).AsSystem(), ""},

		{"delete default VLAN", model.DeleteVLAN(1), util.CodeProtectedResource},
		{"system deletes default VLAN", model.DeleteVLAN(1).AsSystem(), util.CodeProtectedResource},
		{"delete user VLAN", model.DeleteVLAN(100), ""},
		{"delete missing VLAN", model.DeleteVLAN(999), util.CodeNotFound},
		{"user deletes internal VLAN", model.DeleteVLAN(1024), util.CodeProtectedResource},
		{"system deletes internal VLAN", model.DeleteVLAN(1024).AsSystem(), ""},

		{"modify missing VLAN", model.ModifyVLAN(model.NewVLAN(999, "")), util.CodeNotFound},
		{"rename default VLAN", model.ModifyVLAN(renamed), util.CodeProtectedResource},
		{"rename to used name", model.ModifyVLAN(takenName), util.CodeAlreadyExists},
		{"user modifies internal VLAN", model.ModifyVLAN(internalUp), util.CodeProtectedResource},

		{"port with ip and tag", model.ModifyPort(l3), util.CodeConflictingConfig},
		{"routed port with ip", model.ModifyPort(routed), ""},
		{"unknown vlan_mode", model.InsertPort(badMode), util.CodeInvalidValue},
		{"trunk id 4095", model.InsertPort(badTrunk), util.CodeInvalidValue},
		{"ip without prefix", model.InsertPort(badIP), util.CodeInvalidValue},
		{"unset mode defaults", model.InsertPort(unsetMode), ""},
		{"insert existing port", model.InsertPort(model.NewPort("1")), util.CodeAlreadyExists},
		{"modify missing port", model.ModifyPort(model.NewPort("9")), util.CodeNotFound},
		{"delete missing port", model.DeletePort("9"), util.CodeNotFound},
		{"delete port", model.DeletePort("1"), ""},

		{"empty mutation", model.Mutation{}, util.CodeInvalidValue},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := Validate(baseSnapshot(), tt.m)
			if got := util.CodeOf(err); got != tt.wantCode {
				t.Errorf("Validate(%v) code = %q, want %q (err: %v)", tt.m, got, tt.wantCode, err)
			}
			if tt.wantCode != "" && !errors.Is(err, util.ErrValidationFailed) {
				t.Errorf("Validate(%v) error should wrap ErrValidationFailed", tt.m)
			}
		})
	}
}

func TestValidate_DoesNotMutate(t *testing.T) {
	s := baseSnapshot()
	before := s.Clone()

	Validate(s, model.DeleteVLAN(100))
	Validate(s, model.InsertVLAN(model.NewVLAN(200, "")))

	if len(model.Changes(before, s)) != 0 {
		t.Errorf("Validate changed the snapshot: %v", model.Changes(before, s).Resources())
	}
}

func TestTransaction(t *testing.T) {
	s := baseSnapshot()

	txn := model.Transaction{
		model.InsertVLAN(model.NewVLAN(200, "")),
		model.InsertPort(&model.Port{Name: "2", VLANMode: model.ModeTrunk, Trunks: []int{100, 200}, AdminState: model.AdminUp}),
	}
	scratch, err := Transaction(s, txn)
	if err != nil {
		t.Fatalf("Transaction() = %v", err)
	}
	if !scratch.HasVLAN(200) || scratch.Ports["2"] == nil {
		t.Error("scratch snapshot missing applied rows")
	}
	if s.HasVLAN(200) {
		t.Error("Transaction() modified the input snapshot")
	}
}

func TestTransaction_LaterSeesEarlier(t *testing.T) {
	s := baseSnapshot()

	// the second insert collides with the first
	txn := model.Transaction{
		model.InsertVLAN(model.NewVLAN(200, "")),
		model.InsertVLAN(model.NewVLAN(200, "AGAIN")),
	}
	_, err := Transaction(s, txn)
	if !util.IsCode(err, util.CodeDuplicateVlanID) {
		t.Errorf("Transaction() = %v, want DuplicateVlanId", err)
	}

	// delete then re-create in one transaction is fine
	txn = model.Transaction{model.DeleteVLAN(100), model.InsertVLAN(model.NewVLAN(100, ""))}
	if _, err := Transaction(s, txn); err != nil {
		t.Errorf("delete+insert = %v", err)
	}
}

func TestTransaction_AllOrNothing(t *testing.T) {
	s := baseSnapshot()
	before := s.Clone()

	txn := model.Transaction{
		model.InsertVLAN(model.NewVLAN(300, "")),
		model.DeleteVLAN(1),
	}
	scratch, err := Transaction(s, txn)
	if !util.IsCode(err, util.CodeProtectedResource) {
		t.Fatalf("Transaction() = %v, want ProtectedResource", err)
	}
	if scratch != nil {
		t.Error("failed Transaction() should return no snapshot")
	}
	if len(model.Changes(before, s)) != 0 {
		t.Error("failed Transaction() changed the snapshot")
	}
}

func TestChecker_CollectsAll(t *testing.T) {
	c := NewChecker(model.NewSnapshot(), "insert", "port 1").
		RequireMode("hybrid").
		RequireL2L3Exclusive(&model.Port{Tag: 10, IP4Address: "10.0.0.1/24"})

	if !c.HasErrors() || len(c.Errors()) != 2 {
		t.Fatalf("Errors() = %v, want 2", c.Errors())
	}
	if got := util.CodeOf(c.Result()); got != util.CodeInvalidValue {
		t.Errorf("Result() code = %q, want first error's code", got)
	}
}
