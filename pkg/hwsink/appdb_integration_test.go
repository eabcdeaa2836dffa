//go:build integration

package hwsink_test

import (
	"testing"

	"github.com/newtron-network/vland/internal/testutil"
	"github.com/newtron-network/vland/pkg/configdb"
	"github.com/newtron-network/vland/pkg/hwsink"
	"github.com/newtron-network/vland/pkg/model"
)

func TestAppDBSink(t *testing.T) {
	testutil.SkipIfNoRedis(t)
	addr := testutil.RedisAddr()
	testutil.FlushDB(t, addr, testutil.ApplDB)
	ctx := testutil.Context(t)

	c := configdb.NewClient(addr, configdb.ApplDB)
	if err := c.Connect(ctx); err != nil {
		t.Fatal(err)
	}
	defer c.Close()
	sink := hwsink.NewAppDBSink(c)

	err := sink.Apply(ctx, hwsink.Update{VLANID: 100, Enabled: true, Members: []model.Member{
		{Port: "Ethernet0", Tagging: model.Tagged},
		{Port: "Ethernet4", Tagging: model.Untagged},
	}})
	if err != nil {
		t.Fatalf("Apply: %v", err)
	}
	if row := testutil.ReadEntry(t, addr, testutil.ApplDB, "VLAN_TABLE", ":", "Vlan100"); row["admin_status"] != "up" {
		t.Errorf("VLAN_TABLE:Vlan100 = %v", row)
	}
	if row := testutil.ReadEntry(t, addr, testutil.ApplDB, "VLAN_MEMBER_TABLE", ":", "Vlan100:Ethernet4"); row["tagging_mode"] != "untagged" {
		t.Errorf("member Ethernet4 = %v", row)
	}

	// Ethernet4 leaves; its member row goes.
	err = sink.Apply(ctx, hwsink.Update{VLANID: 100, Enabled: true, Members: []model.Member{
		{Port: "Ethernet0", Tagging: model.Tagged},
	}})
	if err != nil {
		t.Fatal(err)
	}
	if testutil.EntryExists(t, addr, testutil.ApplDB, "VLAN_MEMBER_TABLE", ":", "Vlan100:Ethernet4") {
		t.Error("stale member Vlan100:Ethernet4 not removed")
	}

	if err := sink.Remove(ctx, 100); err != nil {
		t.Fatal(err)
	}
	if n := testutil.KeyCount(t, testutil.ApplDB); n != 0 {
		t.Errorf("%d APPL_DB keys left after Remove", n)
	}
}
