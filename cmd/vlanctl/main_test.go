package main

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"testing"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/newtron-network/vland/pkg/audit"
	"github.com/newtron-network/vland/pkg/engine"
	"github.com/newtron-network/vland/pkg/model"
	"github.com/newtron-network/vland/pkg/reconcile"
	"github.com/newtron-network/vland/pkg/util"
)

// harness runs vlanctl commands against a memory store.
type harness struct {
	t      *testing.T
	store  *reconcile.MemoryStore
	config string
	audit  string
}

func newHarness(t *testing.T, seed *model.Snapshot) *harness {
	t.Helper()
	return newHarnessWithSettings(t, seed, "")
}

// newHarnessWithSettings appends extra YAML to the harness settings file.
func newHarnessWithSettings(t *testing.T, seed *model.Snapshot, extra string) *harness {
	t.Helper()
	dir := t.TempDir()
	h := &harness{
		t:      t,
		store:  reconcile.NewMemoryStore(seed),
		config: filepath.Join(dir, "vland.yaml"),
		audit:  filepath.Join(dir, "audit.log"),
	}
	yaml := "store: memory\nsink:\n  kind: log\naudit:\n  path: " + h.audit + "\n" + extra
	if err := os.WriteFile(h.config, []byte(yaml), 0644); err != nil {
		t.Fatal(err)
	}

	prev := openStore
	openStore = func(ctx context.Context) (Store, error) { return h.store, nil }
	t.Cleanup(func() { openStore = prev })
	return h
}

// run executes vlanctl with args. Flag values from earlier runs are reset
// first since cobra keeps them on the command tree.
func (h *harness) run(args ...string) error {
	h.t.Helper()
	resetFlags(rootCmd)
	rootCmd.SetArgs(append([]string{"--config", h.config}, args...))
	return rootCmd.Execute()
}

func (h *harness) mustRun(args ...string) {
	h.t.Helper()
	if err := h.run(args...); err != nil {
		h.t.Fatalf("vlanctl %v: %v", args, err)
	}
}

func (h *harness) snapshot() *model.Snapshot {
	h.t.Helper()
	snap, err := h.store.Load(context.Background())
	if err != nil {
		h.t.Fatal(err)
	}
	return snap
}

func resetFlags(cmd *cobra.Command) {
	reset := func(f *pflag.Flag) {
		f.Value.Set(f.DefValue)
		f.Changed = false
	}
	cmd.PersistentFlags().VisitAll(reset)
	cmd.Flags().VisitAll(reset)
	for _, c := range cmd.Commands() {
		resetFlags(c)
	}
}

func seedSnapshot() *model.Snapshot {
	snap := model.NewSnapshot()
	snap.Apply(model.InsertVLAN(model.NewVLAN(1, model.DefaultVLANName)))
	snap.Apply(model.InsertVLAN(model.NewVLAN(100, "")))
	p := model.NewPort("Ethernet0")
	p.Trunks = []int{100}
	snap.Apply(model.InsertPort(p))
	return snap
}

func TestVLANCreate_DryRunByDefault(t *testing.T) {
	h := newHarness(t, seedSnapshot())

	h.mustRun("vlan", "create", "200")
	if h.snapshot().HasVLAN(200) {
		t.Fatal("dry run created VLAN 200")
	}

	h.mustRun("vlan", "create", "200", "--name", "servers", "--admin", "up", "-x")
	v := h.snapshot().VLANs[200]
	if v == nil || v.Name != "servers" || v.AdminState != model.AdminUp {
		t.Fatalf("VLAN 200 = %+v", v)
	}
}

func TestVLANCreate_Rejected(t *testing.T) {
	h := newHarness(t, seedSnapshot())

	tests := []struct {
		name string
		args []string
		code util.Code
	}{
		{"duplicate id", []string{"vlan", "create", "100", "-x"}, util.CodeDuplicateVlanID},
		{"out of range", []string{"vlan", "create", "4095", "-x"}, util.CodeInvalidValue},
		{"delete default", []string{"vlan", "delete", "1", "-x"}, util.CodeProtectedResource},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := h.run(tt.args...)
			if !util.IsCode(err, tt.code) {
				t.Errorf("error = %v, want code %s", err, tt.code)
			}
		})
	}
	if got := h.snapshot().VLANIDs(); !reflect.DeepEqual(got, []int{1, 100}) {
		t.Errorf("VLANs after rejected writes = %v", got)
	}
}

func TestVLANAdmin(t *testing.T) {
	h := newHarness(t, seedSnapshot())

	h.mustRun("vlan", "admin", "100", "up", "-x")
	if got := h.snapshot().VLANs[100].AdminState; got != model.AdminUp {
		t.Errorf("AdminState = %s, want up", got)
	}
	if err := h.run("vlan", "admin", "100", "sideways", "-x"); err == nil {
		t.Error("invalid admin state accepted")
	}
	if err := h.run("vlan", "admin", "300", "up", "-x"); err == nil {
		t.Error("admin on missing VLAN accepted")
	}
}

func TestVLANDelete_DetachesPorts(t *testing.T) {
	h := newHarness(t, seedSnapshot())

	h.mustRun("vlan", "delete", "100", "-x")
	snap := h.snapshot()
	if snap.HasVLAN(100) {
		t.Fatal("VLAN 100 still present")
	}
	if got := snap.Ports["Ethernet0"].Trunks; len(got) != 0 {
		t.Errorf("Ethernet0 trunks = %v, want none", got)
	}
}

func TestPortCommands(t *testing.T) {
	h := newHarness(t, seedSnapshot())
	h.mustRun("vlan", "create", "200", "-x")

	h.mustRun("port", "allow", "Ethernet0", "200", "-x")
	if got := h.snapshot().Ports["Ethernet0"].Trunks; !reflect.DeepEqual(got, []int{100, 200}) {
		t.Errorf("trunks after allow = %v", got)
	}

	h.mustRun("port", "native", "Ethernet0", "100", "--untagged", "-x")
	p := h.snapshot().Ports["Ethernet0"]
	if p.VLANMode != model.ModeNativeUntagged || p.Tag != 100 {
		t.Errorf("after native = %+v", p)
	}

	h.mustRun("port", "disallow", "Ethernet0", "200", "-x")
	if got := h.snapshot().Ports["Ethernet0"].Trunks; !reflect.DeepEqual(got, []int{100}) {
		t.Errorf("trunks after disallow = %v", got)
	}
	if err := h.run("port", "disallow", "Ethernet0", "300", "-x"); err == nil {
		t.Error("disallowing a VLAN the port does not carry succeeded")
	}

	h.mustRun("port", "native", "Ethernet0", "none", "-x")
	p = h.snapshot().Ports["Ethernet0"]
	if p.HasTag() || p.VLANMode != model.ModeTrunk {
		t.Errorf("after clearing native = %+v", p)
	}

	h.mustRun("port", "set", "Ethernet4", "--mode", "access", "--tag", "200", "--admin", "down", "-x")
	p = h.snapshot().Ports["Ethernet4"]
	if p == nil || p.Mode() != model.ModeAccess || p.Tag != 200 || p.AdminState != model.AdminDown {
		t.Errorf("Ethernet4 = %+v", p)
	}
	if err := h.run("port", "set", "Ethernet4", "--mode", "hybrid", "-x"); err == nil {
		t.Error("invalid mode accepted")
	}

	h.mustRun("port", "delete", "Ethernet4", "-x")
	if _, ok := h.snapshot().Ports["Ethernet4"]; ok {
		t.Error("Ethernet4 not deleted")
	}
}

func TestPortRoutingAndIP(t *testing.T) {
	h := newHarness(t, seedSnapshot())

	h.mustRun("port", "routing", "Ethernet8", "on", "-x")
	h.mustRun("port", "ip", "Ethernet8", "10.0.0.1/31", "-x")
	p := h.snapshot().Ports["Ethernet8"]
	if !p.Routing || p.IP4Address != "10.0.0.1/31" {
		t.Errorf("Ethernet8 = %+v", p)
	}

	if err := h.run("port", "ip", "Ethernet8", "10.0.0.1", "-x"); err == nil {
		t.Error("address without prefix accepted")
	}

	h.mustRun("port", "set", "Ethernet12", "--mode", "access", "--tag", "100", "-x")
	err := h.run("port", "ip", "Ethernet12", "10.0.1.1/31", "-x")
	if !util.IsCode(err, util.CodeConflictingConfig) {
		t.Errorf("ip on tagged port error = %v, want ConflictingConfig", err)
	}
}

func TestInternalRange(t *testing.T) {
	h := newHarness(t, seedSnapshot())

	h.mustRun("internal", "range", "2000", "2100", "descending", "-x")
	want := model.InternalRange{Start: 2000, End: 2100, Policy: model.PolicyDescending}
	if got := h.snapshot().InternalRange; got != want {
		t.Errorf("InternalRange = %+v, want %+v", got, want)
	}

	if err := h.run("internal", "range", "3000", "2000", "-x"); err == nil {
		t.Error("inverted range accepted")
	}
	if err := h.run("internal", "range", "2000", "2100", "random", "-x"); err == nil {
		t.Error("unknown policy accepted")
	}

	h.mustRun("internal", "unset", "-x")
	if got := h.snapshot().InternalRange; got != model.DefaultInternalRange() {
		t.Errorf("InternalRange after unset = %+v", got)
	}
}

func TestActiveRange(t *testing.T) {
	h := newHarness(t, seedSnapshot())
	ctx := context.Background()

	rng, policy, err := activeRange(ctx, h.store)
	if err != nil || rng != "1024-4094" || policy != "ascending" {
		t.Errorf("configured fallback = %s %s, %v", rng, policy, err)
	}

	h.store.PublishInternalRange(ctx, model.InternalRange{Start: 3000, End: 3010, Policy: model.PolicyDescending})
	rng, policy, _ = activeRange(ctx, h.store)
	if rng != "3000-3010" || policy != "descending" {
		t.Errorf("published = %s %s", rng, policy)
	}
}

func TestVLANRows(t *testing.T) {
	seed := seedSnapshot()
	seed.Apply(model.InsertVLAN(model.NewInternalVLAN(1024, map[string]string{model.InternalUsageL3Port: "Ethernet8"})))
	h := newHarness(t, seed)
	ctx := context.Background()
	h.store.Publish(ctx, []engine.StateChange{{VLANID: 100, Name: "VLAN100", State: model.StateAdminDown}})

	rows, err := vlanRows(ctx, h.store, h.snapshot(), false)
	if err != nil {
		t.Fatal(err)
	}
	if len(rows) != 2 {
		t.Fatalf("rows = %d, want 2 without the routed-port VLAN", len(rows))
	}
	r := rows[1]
	if r.ID != 100 || !r.Published || *r.State != model.StateAdminDown {
		t.Errorf("row 100 = %+v", r)
	}
	if len(r.Members) != 1 || r.Members[0].Port != "Ethernet0" {
		t.Errorf("members = %+v", r.Members)
	}
	if rows[0].Published {
		t.Error("VLAN 1 reported published state")
	}

	all, _ := vlanRows(ctx, h.store, h.snapshot(), true)
	if len(all) != 3 {
		t.Errorf("rows with --all = %d, want 3", len(all))
	}
}

func TestAuditLog(t *testing.T) {
	h := newHarness(t, seedSnapshot())

	h.mustRun("vlan", "create", "300", "-x")
	h.mustRun("vlan", "create", "301")

	logger, err := audit.NewFileLogger(h.audit, audit.RotationConfig{})
	if err != nil {
		t.Fatal(err)
	}
	defer logger.Close()
	events, err := logger.Query(audit.Filter{})
	if err != nil {
		t.Fatal(err)
	}
	if len(events) != 1 {
		t.Fatalf("audit events = %d, want 1 (dry runs are not logged)", len(events))
	}
	if e := events[0]; e.Operation != "vlan.create" || !e.Success || !reflect.DeepEqual(e.Changes, []string{"insert VLAN 300"}) {
		t.Errorf("event = %+v", e)
	}

	h.mustRun("audit", "list")
}

func TestPermissionDenied(t *testing.T) {
	h := newHarnessWithSettings(t, seedSnapshot(), `auth:
  super_users: [vland-test-admin]
  permissions:
    vlan.view: [vland-test-viewer]
`)

	err := h.run("vlan", "create", "200", "-x")
	if !errors.Is(err, util.ErrPermissionDenied) {
		t.Fatalf("create error = %v, want permission denied", err)
	}
	if h.snapshot().HasVLAN(200) {
		t.Error("denied create reached the store")
	}
	if err := h.run("internal", "unset", "-x"); !errors.Is(err, util.ErrPermissionDenied) {
		t.Errorf("internal unset error = %v, want permission denied", err)
	}
	// reads are not gated
	h.mustRun("vlan", "list")
}

func TestParseHelpers(t *testing.T) {
	if _, err := parseVLANID("12a"); err == nil {
		t.Error("parseVLANID accepted 12a")
	}
	if id, err := parseVLANID("4094"); err != nil || id != 4094 {
		t.Errorf("parseVLANID(4094) = %d, %v", id, err)
	}
	if _, err := parseAdminState("UP"); err == nil {
		t.Error("parseAdminState accepted UP")
	}
	if got := memberNames([]model.Member{{Port: "Ethernet0", Tagging: model.Tagged}, {Port: "Ethernet4", Tagging: model.Untagged}}); got != "Ethernet0,Ethernet4(u)" {
		t.Errorf("memberNames = %q", got)
	}
}
