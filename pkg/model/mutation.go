package model

import "fmt"

// Op is the kind of change a mutation makes.
type Op int

const (
	OpInsert Op = iota
	OpModify
	OpDelete
)

func (o Op) String() string {
	switch o {
	case OpInsert:
		return "insert"
	case OpModify:
		return "modify"
	case OpDelete:
		return "delete"
	}
	return fmt.Sprintf("op(%d)", int(o))
}

// Kind is the resource a mutation targets. The set is closed.
type Kind int

const (
	KindUnknown Kind = iota
	KindVLAN
	KindPort
)

func (k Kind) String() string {
	switch k {
	case KindVLAN:
		return "vlan"
	case KindPort:
		return "port"
	}
	return "unknown"
}

// Mutation is one row change. Exactly one of VLAN or Port is set. For
// deletes only the key (ID or Name) is meaningful.
type Mutation struct {
	Op   Op
	VLAN *VLAN
	Port *Port
	// System marks changes issued by the subsystem itself, such as
	// internal VLAN allocation. Only system mutations may touch
	// internal VLANs.
	System bool
}

// Transaction is an ordered list of mutations committed atomically.
type Transaction []Mutation

// Kind returns the resource kind the mutation targets.
func (m Mutation) Kind() Kind {
	switch {
	case m.VLAN != nil && m.Port == nil:
		return KindVLAN
	case m.Port != nil && m.VLAN == nil:
		return KindPort
	}
	return KindUnknown
}

// Resource names the targeted row, e.g. "VLAN 200" or "port 1".
func (m Mutation) Resource() string {
	switch m.Kind() {
	case KindVLAN:
		return fmt.Sprintf("VLAN %d", m.VLAN.ID)
	case KindPort:
		return fmt.Sprintf("port %s", m.Port.Name)
	}
	return "unknown resource"
}

func (m Mutation) String() string {
	return m.Op.String() + " " + m.Resource()
}

// AsSystem returns a copy of m marked as a system mutation.
func (m Mutation) AsSystem() Mutation {
	m.System = true
	return m
}

// InsertVLAN builds a VLAN insert.
func InsertVLAN(v *VLAN) Mutation { return Mutation{Op: OpInsert, VLAN: v.Clone()} }

// ModifyVLAN builds a VLAN modify.
func ModifyVLAN(v *VLAN) Mutation { return Mutation{Op: OpModify, VLAN: v.Clone()} }

// DeleteVLAN builds a VLAN delete.
func DeleteVLAN(id int) Mutation { return Mutation{Op: OpDelete, VLAN: &VLAN{ID: id}} }

// InsertPort builds a port insert.
func InsertPort(p *Port) Mutation { return Mutation{Op: OpInsert, Port: p.Clone()} }

// ModifyPort builds a port modify.
func ModifyPort(p *Port) Mutation { return Mutation{Op: OpModify, Port: p.Clone()} }

// DeletePort builds a port delete.
func DeletePort(name string) Mutation { return Mutation{Op: OpDelete, Port: &Port{Name: name}} }

// System marks every mutation in txn as a system mutation.
func (t Transaction) System() Transaction {
	out := make(Transaction, len(t))
	for i, m := range t {
		out[i] = m.AsSystem()
	}
	return out
}

// Resources lists the rows txn touches, in order.
func (t Transaction) Resources() []string {
	out := make([]string, len(t))
	for i, m := range t {
		out[i] = m.String()
	}
	return out
}
