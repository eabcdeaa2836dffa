package hwsink

import (
	"context"
	"fmt"
	"strings"

	"github.com/newtron-network/vland/pkg/configdb"
	"github.com/newtron-network/vland/pkg/model"
)

// AppDBSink programs APPL_DB, where the switch's orchestration agent
// picks VLANs up:
//
//	VLAN_TABLE:Vlan<id>                admin_status
//	VLAN_MEMBER_TABLE:Vlan<id>:<port>  tagging_mode
type AppDBSink struct {
	client *configdb.Client
}

// NewAppDBSink wraps an APPL_DB client.
func NewAppDBSink(c *configdb.Client) *AppDBSink {
	return &AppDBSink{client: c}
}

func (s *AppDBSink) Name() string { return "appdb" }

func memberKey(vlanID int, port string) string {
	return configdb.VLANKey(vlanID) + ":" + port
}

// members returns the member ports currently programmed for vlanID.
func (s *AppDBSink) members(ctx context.Context, vlanID int) ([]string, error) {
	keys, err := s.client.TableKeys(ctx, configdb.TableVLANMember)
	if err != nil {
		return nil, fmt.Errorf("listing %s: %w", configdb.TableVLANMember, err)
	}
	prefix := configdb.VLANKey(vlanID) + ":"
	var ports []string
	for _, k := range keys {
		if port, ok := strings.CutPrefix(k, prefix); ok {
			ports = append(ports, port)
		}
	}
	return ports, nil
}

func (s *AppDBSink) Apply(ctx context.Context, u Update) error {
	current, err := s.members(ctx, u.VLANID)
	if err != nil {
		return err
	}
	admin := model.AdminDown
	if u.Enabled {
		admin = model.AdminUp
	}

	want := make(map[string]bool, len(u.Members))
	changes := []configdb.TableChange{{
		Table:  configdb.TableVLANState,
		Key:    configdb.VLANKey(u.VLANID),
		Fields: map[string]string{"admin_status": string(admin)},
	}}
	for _, m := range u.Members {
		want[m.Port] = true
		changes = append(changes, configdb.TableChange{
			Table:  configdb.TableVLANMember,
			Key:    memberKey(u.VLANID, m.Port),
			Fields: map[string]string{"tagging_mode": string(m.Tagging)},
		})
	}
	for _, port := range current {
		if !want[port] {
			changes = append(changes, configdb.TableChange{Table: configdb.TableVLANMember, Key: memberKey(u.VLANID, port)})
		}
	}
	return s.client.PipelineSet(ctx, changes)
}

func (s *AppDBSink) Remove(ctx context.Context, vlanID int) error {
	current, err := s.members(ctx, vlanID)
	if err != nil {
		return err
	}
	changes := make([]configdb.TableChange, 0, len(current)+1)
	for _, port := range current {
		changes = append(changes, configdb.TableChange{Table: configdb.TableVLANMember, Key: memberKey(vlanID, port)})
	}
	changes = append(changes, configdb.TableChange{Table: configdb.TableVLANState, Key: configdb.VLANKey(vlanID)})
	return s.client.PipelineSet(ctx, changes)
}
