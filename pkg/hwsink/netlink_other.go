//go:build !linux

package hwsink

import (
	"context"
	"errors"
)

var errNoNetlink = errors.New("netlink sink requires linux")

// NetlinkSink is unavailable off linux; every call fails.
type NetlinkSink struct {
	bridge string
}

func NewNetlinkSink(bridge string) *NetlinkSink {
	return &NetlinkSink{bridge: bridge}
}

func (s *NetlinkSink) Name() string { return "netlink" }

func (s *NetlinkSink) Apply(context.Context, Update) error { return errNoNetlink }

func (s *NetlinkSink) Remove(context.Context, int) error { return errNoNetlink }
