// Package hwsink programs derived VLAN membership into the forwarding
// plane. Programming is best effort: results feed telemetry only.
package hwsink

import (
	"context"
	"fmt"
	"strings"

	"github.com/newtron-network/vland/pkg/model"
	"github.com/newtron-network/vland/pkg/util"
)

// Update is the desired hardware state of one VLAN.
type Update struct {
	VLANID  int
	Enabled bool
	Members []model.Member
}

func (u Update) String() string {
	members := make([]string, len(u.Members))
	for i, m := range u.Members {
		members[i] = fmt.Sprintf("%s(%s)", m.Port, m.Tagging)
	}
	return fmt.Sprintf("Vlan%d enabled=%t members=[%s]", u.VLANID, u.Enabled, strings.Join(members, " "))
}

// Sink applies VLAN programs to one forwarding target.
type Sink interface {
	// Name labels the sink in logs and metrics.
	Name() string
	// Apply makes the VLAN's hardware state match u, removing members
	// not listed.
	Apply(ctx context.Context, u Update) error
	// Remove tears down a deleted VLAN.
	Remove(ctx context.Context, vlanID int) error
}

// apply hands a program to s.
func apply(ctx context.Context, s Sink, p model.Program) error {
	if p.Removed {
		return s.Remove(ctx, p.VLANID)
	}
	return s.Apply(ctx, Update{VLANID: p.VLANID, Enabled: p.Enabled, Members: p.Members})
}

// LogSink logs updates without programming anything.
type LogSink struct{}

func (LogSink) Name() string { return "log" }

func (LogSink) Apply(_ context.Context, u Update) error {
	util.WithComponent("hwsink").WithField("sink", "log").Info(u.String())
	return nil
}

func (LogSink) Remove(_ context.Context, vlanID int) error {
	util.WithComponent("hwsink").WithField("sink", "log").Infof("Vlan%d removed", vlanID)
	return nil
}
