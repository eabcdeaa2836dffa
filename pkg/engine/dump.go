package engine

import (
	"cmp"
	"fmt"
	"io"
	"slices"

	"k8s.io/apimachinery/pkg/util/sets"

	"github.com/newtron-network/vland/pkg/membership"
	"github.com/newtron-network/vland/pkg/model"
	"github.com/newtron-network/vland/pkg/util"
)

// Dump writes the debug view of snap and its result: every port with its
// mode and resolved VLANs, then every VLAN with its derived state.
func Dump(w io.Writer, snap *model.Snapshot, r *Result) {
	fmt.Fprintf(w, "Ports (%d):\n", len(snap.Ports))
	for _, name := range snap.PortNames() {
		p := snap.Ports[name]
		native := "-"
		if p.Mode() != model.ModeTrunk && p.HasTag() {
			native = fmt.Sprintf("%d", p.Tag)
		}
		vlans := util.CompactRange(sets.List(membership.Effective(p, snap)))
		if vlans == "" {
			vlans = "-"
		}
		fmt.Fprintf(w, "  %s: mode=%s tag=%s routing=%t admin=%s vlans=%s\n",
			name, p.Mode(), native, p.Routing, p.AdminState, vlans)
	}

	fmt.Fprintf(w, "VLANs (%d):\n", len(snap.VLANs))
	for _, id := range snap.VLANIDs() {
		v := snap.VLANs[id]
		st, ok := r.States[id]
		if !ok {
			fmt.Fprintf(w, "  %d %s: admin=%s internal=%s\n",
				id, v.Name, v.AdminState, util.FormatKeyValues(v.InternalUsage))
			continue
		}
		fmt.Fprintf(w, "  %d %s: admin=%s oper_state=%s reason=%s hw_vlan_config=%s members=%d\n",
			id, v.Name, v.AdminState, st.OperState, st.Reason,
			util.FormatKeyValues(st.HWConfig.Map()), len(r.Programs[id].Members))
	}

	fmt.Fprintf(w, "Internal VLAN range: %s %s\n", snap.InternalRange, snap.InternalRange.Policy)
}

func sortedKeys[K cmp.Ordered, V any](m map[K]V) []K {
	keys := make([]K, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}
