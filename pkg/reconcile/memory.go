package reconcile

import (
	"context"
	"sync"

	"github.com/newtron-network/vland/pkg/engine"
	"github.com/newtron-network/vland/pkg/model"
)

// MemoryStore is an in-process Store. It backs `vland run --store memory`
// and the reconciler tests.
type MemoryStore struct {
	mu       sync.Mutex
	snap     *model.Snapshot
	state    map[int]engine.StateChange
	rng      model.InternalRange
	watchers map[chan struct{}]struct{}

	// ApplyErr, when set, fails every Apply.
	ApplyErr error
	// PublishErr, when set, fails every Publish.
	PublishErr error
}

// NewMemoryStore creates a store holding a copy of seed. A nil seed
// starts empty with the default internal range.
func NewMemoryStore(seed *model.Snapshot) *MemoryStore {
	if seed == nil {
		seed = model.NewSnapshot()
	}
	return &MemoryStore{
		snap:     seed.Clone(),
		state:    make(map[int]engine.StateChange),
		watchers: make(map[chan struct{}]struct{}),
	}
}

func (s *MemoryStore) Load(ctx context.Context) (*model.Snapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snap.Clone(), nil
}

func (s *MemoryStore) Apply(ctx context.Context, txn model.Transaction) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ApplyErr != nil {
		return s.ApplyErr
	}
	s.snap.ApplyAll(txn)
	s.notify()
	return nil
}

func (s *MemoryStore) SaveInternalRange(ctx context.Context, r model.InternalRange) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.snap.InternalRange = r
	return nil
}

func (s *MemoryStore) Publish(ctx context.Context, changes []engine.StateChange) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.PublishErr != nil {
		return s.PublishErr
	}
	for _, c := range changes {
		if c.Deleted {
			delete(s.state, c.VLANID)
		} else {
			s.state[c.VLANID] = c
		}
	}
	return nil
}

func (s *MemoryStore) PublishInternalRange(ctx context.Context, r model.InternalRange) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rng = r
	return nil
}

func (s *MemoryStore) Watch(ctx context.Context) (<-chan struct{}, error) {
	ch := make(chan struct{}, 1)
	s.mu.Lock()
	s.watchers[ch] = struct{}{}
	s.mu.Unlock()

	go func() {
		<-ctx.Done()
		s.mu.Lock()
		delete(s.watchers, ch)
		s.mu.Unlock()
		close(ch)
	}()
	return ch, nil
}

func (s *MemoryStore) Close() error { return nil }

// Edit changes the stored configuration directly, the way another writer
// of the database would, and notifies watchers.
func (s *MemoryStore) Edit(fn func(snap *model.Snapshot)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	fn(s.snap)
	s.notify()
}

// DerivedState returns the published state row for a VLAN.
func (s *MemoryStore) DerivedState(id int) (engine.StateChange, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.state[id]
	return c, ok
}

// ReadState returns the published derived state of a VLAN.
func (s *MemoryStore) ReadState(ctx context.Context, id int) (model.DerivedState, bool, error) {
	c, ok := s.DerivedState(id)
	return c.State, ok, nil
}

// ReadInternalRange returns the published range keyed like the STATE_DB
// row, or nil before anything was published.
func (s *MemoryStore) ReadInternalRange(ctx context.Context) (map[string]string, error) {
	r := s.PublishedRange()
	if r.IsZero() {
		return nil, nil
	}
	return map[string]string{"range": r.String(), "policy": string(r.Policy)}, nil
}

// PublishedRange returns the last published internal range.
func (s *MemoryStore) PublishedRange() model.InternalRange {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.rng
}

// notify must be called with s.mu held.
func (s *MemoryStore) notify() {
	for ch := range s.watchers {
		select {
		case ch <- struct{}{}:
		default:
		}
	}
}
