package hwsink

import (
	"context"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/newtron-network/vland/pkg/metrics"
	"github.com/newtron-network/vland/pkg/model"
	"github.com/newtron-network/vland/pkg/util"
)

// Defaults for DispatcherOptions.
const (
	DefaultMaxAttempts     = 5
	DefaultInitialInterval = 100 * time.Millisecond
	DefaultMaxInterval     = 5 * time.Second
)

// DispatcherOptions tunes retries of failed programs.
type DispatcherOptions struct {
	MaxAttempts     int
	InitialInterval time.Duration
	MaxInterval     time.Duration
}

// Dispatcher queues programs per VLAN and applies them to a sink on a
// single worker. A program submitted while an older one for the same VLAN
// is still queued replaces it.
type Dispatcher struct {
	sink Sink
	opts DispatcherOptions

	mu      sync.Mutex
	pending map[int]model.Program
	order   []int
	wake    chan struct{}
}

// NewDispatcher creates a dispatcher for sink. Call Run to start it.
func NewDispatcher(sink Sink, opts DispatcherOptions) *Dispatcher {
	if opts.MaxAttempts <= 0 {
		opts.MaxAttempts = DefaultMaxAttempts
	}
	if opts.InitialInterval == 0 {
		opts.InitialInterval = DefaultInitialInterval
	}
	if opts.MaxInterval == 0 {
		opts.MaxInterval = DefaultMaxInterval
	}
	return &Dispatcher{
		sink:    sink,
		opts:    opts,
		pending: make(map[int]model.Program),
		wake:    make(chan struct{}, 1),
	}
}

// Submit queues p. It never blocks.
func (d *Dispatcher) Submit(p model.Program) {
	d.mu.Lock()
	if _, queued := d.pending[p.VLANID]; !queued {
		d.order = append(d.order, p.VLANID)
	}
	d.pending[p.VLANID] = p
	depth := len(d.order)
	d.mu.Unlock()

	metrics.SinkQueueDepth.Set(float64(depth))
	select {
	case d.wake <- struct{}{}:
	default:
	}
}

// Pending returns the number of VLANs waiting to be programmed.
func (d *Dispatcher) Pending() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.order)
}

func (d *Dispatcher) next() (model.Program, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if len(d.order) == 0 {
		return model.Program{}, false
	}
	id := d.order[0]
	d.order = d.order[1:]
	p := d.pending[id]
	delete(d.pending, id)
	metrics.SinkQueueDepth.Set(float64(len(d.order)))
	return p, true
}

// Run applies queued programs until ctx is done.
func (d *Dispatcher) Run(ctx context.Context) {
	for {
		for {
			p, ok := d.next()
			if !ok {
				break
			}
			d.program(ctx, p)
			if ctx.Err() != nil {
				return
			}
		}
		select {
		case <-ctx.Done():
			return
		case <-d.wake:
		}
	}
}

// program applies p with bounded exponential backoff. A program that
// still fails is dropped; the next change to the VLAN sends a fresh one.
func (d *Dispatcher) program(ctx context.Context, p model.Program) {
	logger := util.WithComponent("hwsink").WithField("sink", d.sink.Name()).WithField("vlan", p.VLANID)

	b := backoff.NewExponentialBackOff()
	b.InitialInterval = d.opts.InitialInterval
	b.MaxInterval = d.opts.MaxInterval
	b.MaxElapsedTime = 0

	attempt := 0
	err := backoff.Retry(func() error {
		attempt++
		err := apply(ctx, d.sink, p)
		if err != nil {
			logger.Debugf("attempt %d: %v", attempt, err)
		}
		return err
	}, backoff.WithContext(backoff.WithMaxRetries(b, uint64(d.opts.MaxAttempts-1)), ctx))

	metrics.RecordSinkUpdate(d.sink.Name(), err)
	if err != nil {
		logger.Warnf("programming failed after %d attempts: %v", attempt, err)
		return
	}
	logger.Debugf("programmed enabled=%t members=%d removed=%t", p.Enabled, len(p.Members), p.Removed)
}
