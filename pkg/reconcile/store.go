package reconcile

import (
	"context"

	"github.com/newtron-network/vland/pkg/engine"
	"github.com/newtron-network/vland/pkg/model"
)

// Store is the configuration database the reconciler reads from and
// writes back to. Implementations: configdb (Redis), ovsdb (OVSDB) and
// MemoryStore.
type Store interface {
	// Load reads every VLAN and port row plus the configured internal
	// range. A store with no range configured reports the default.
	Load(ctx context.Context) (*model.Snapshot, error)
	// Apply commits txn atomically.
	Apply(ctx context.Context, txn model.Transaction) error
	// SaveInternalRange persists the configured internal range.
	SaveInternalRange(ctx context.Context, r model.InternalRange) error
	// Publish writes derived VLAN state rows for readers.
	Publish(ctx context.Context, changes []engine.StateChange) error
	// PublishInternalRange writes the active internal range for readers.
	PublishInternalRange(ctx context.Context, r model.InternalRange) error
	// Watch returns a channel that receives a value after configuration
	// changes. Bursts may be coalesced into one value. The channel is
	// closed when ctx is done.
	Watch(ctx context.Context) (<-chan struct{}, error)
	Close() error
}

// Programmer receives hardware programs. hwsink.Dispatcher implements it.
type Programmer interface {
	Submit(p model.Program)
}
