//go:build linux

package hwsink

import (
	"context"
	"errors"
	"fmt"

	"github.com/vishvananda/netlink"
	"github.com/vishvananda/netlink/nl"

	"github.com/newtron-network/vland/pkg/model"
	"github.com/newtron-network/vland/pkg/util"
)

// NetlinkSink programs VLAN filtering on a Linux bridge. Member ports are
// the bridge's slave interfaces, named as in the port table. Untagged
// members get the VLAN as PVID.
type NetlinkSink struct {
	bridge string
}

// NewNetlinkSink programs the bridge named bridge.
func NewNetlinkSink(bridge string) *NetlinkSink {
	return &NetlinkSink{bridge: bridge}
}

func (s *NetlinkSink) Name() string { return "netlink" }

// carriers returns the names of links, the bridge included, that carry
// vid.
func carriers(vid int) (map[string]netlink.Link, error) {
	vlans, err := netlink.BridgeVlanList()
	if err != nil {
		return nil, fmt.Errorf("listing bridge VLANs: %w", err)
	}
	out := make(map[string]netlink.Link)
	for index, infos := range vlans {
		if !carries(infos, vid) {
			continue
		}
		link, err := netlink.LinkByIndex(int(index))
		if err != nil {
			continue
		}
		out[link.Attrs().Name] = link
	}
	return out, nil
}

func carries(infos []*nl.BridgeVlanInfo, vid int) bool {
	for _, info := range infos {
		if int(info.Vid) == vid {
			return true
		}
	}
	return false
}

func (s *NetlinkSink) Apply(ctx context.Context, u Update) error {
	if !u.Enabled {
		return s.Remove(ctx, u.VLANID)
	}
	br, err := netlink.LinkByName(s.bridge)
	if err != nil {
		return fmt.Errorf("bridge %s: %w", s.bridge, err)
	}
	current, err := carriers(u.VLANID)
	if err != nil {
		return err
	}
	vid := uint16(u.VLANID)

	want := make(map[string]bool, len(u.Members))
	for _, m := range u.Members {
		want[m.Port] = true
	}

	var errs []error
	for name, link := range current {
		if name == s.bridge || want[name] {
			continue
		}
		if err := netlink.BridgeVlanDel(link, vid, false, false, false, true); err != nil {
			errs = append(errs, fmt.Errorf("removing %s: %w", name, err))
			continue
		}
		util.WithPort(name).Debugf("left Vlan%d", u.VLANID)
	}

	if _, ok := current[s.bridge]; !ok {
		if err := netlink.BridgeVlanAdd(br, vid, false, false, true, false); err != nil {
			errs = append(errs, fmt.Errorf("adding %s: %w", s.bridge, err))
		}
	}
	for _, m := range u.Members {
		link, err := netlink.LinkByName(m.Port)
		if err != nil {
			errs = append(errs, fmt.Errorf("port %s: %w", m.Port, err))
			continue
		}
		untagged := m.Tagging == model.Untagged
		if err := netlink.BridgeVlanAdd(link, vid, untagged, untagged, false, true); err != nil {
			errs = append(errs, fmt.Errorf("adding %s: %w", m.Port, err))
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("programming Vlan%d on %s: %w", u.VLANID, s.bridge, errors.Join(errs...))
	}
	util.WithComponent("hwsink").WithField("sink", "netlink").Debugf("Vlan%d: %d members, %d before", u.VLANID, len(u.Members), len(current))
	return nil
}

func (s *NetlinkSink) Remove(_ context.Context, vlanID int) error {
	current, err := carriers(vlanID)
	if err != nil {
		return err
	}
	vid := uint16(vlanID)
	var errs []error
	for name, link := range current {
		self, master := false, true
		if name == s.bridge {
			self, master = true, false
		}
		if err := netlink.BridgeVlanDel(link, vid, false, false, self, master); err != nil {
			errs = append(errs, fmt.Errorf("removing %s: %w", name, err))
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("removing Vlan%d from %s: %w", vlanID, s.bridge, errors.Join(errs...))
	}
	return nil
}
