// Package health runs liveness checks against a running vland: store
// reachability, hardware sink backlog and internal VLAN pool usage.
package health

import (
	"context"
	"fmt"
	"time"

	"github.com/newtron-network/vland/pkg/model"
	"github.com/newtron-network/vland/pkg/util"
)

// Status is the outcome of a check.
type Status string

const (
	StatusOK       Status = "ok"
	StatusWarning  Status = "warning"
	StatusCritical Status = "critical"
	StatusUnknown  Status = "unknown"
)

// severity orders statuses for the overall result.
var severity = map[Status]int{
	StatusOK:       0,
	StatusUnknown:  1,
	StatusWarning:  2,
	StatusCritical: 3,
}

// Result is the outcome of one check.
type Result struct {
	Check     string        `json:"check"`
	Status    Status        `json:"status"`
	Message   string        `json:"message"`
	Details   interface{}   `json:"details,omitempty"`
	Duration  time.Duration `json:"duration"`
	Timestamp time.Time     `json:"timestamp"`
}

// Report collects the results of one run.
type Report struct {
	Device    string        `json:"device"`
	Timestamp time.Time     `json:"timestamp"`
	Overall   Status        `json:"overall"`
	Results   []Result      `json:"results"`
	Duration  time.Duration `json:"duration"`
}

// Loader reads the configuration store.
type Loader interface {
	Load(ctx context.Context) (*model.Snapshot, error)
}

// Queue reports the hardware sink backlog.
type Queue interface {
	Pending() int
}

// Pool reports internal VLAN allocation.
type Pool interface {
	InternalRange() model.InternalRange
	InternalAllocated() []int
}

// Target is what the checks inspect. Nil members are reported unknown.
type Target struct {
	Store Loader
	Sink  Queue
	Pool  Pool
}

// Check is one health check.
type Check interface {
	Name() string
	Run(ctx context.Context, t *Target) Result
}

// Checker runs a set of checks.
type Checker struct {
	checks []Check
}

// NewChecker creates a checker with the standard checks.
func NewChecker() *Checker {
	return &Checker{
		checks: []Check{
			&StoreCheck{},
			&SinkCheck{MaxPending: DefaultMaxPending},
			&PoolCheck{WarnPercent: DefaultPoolWarnPercent},
		},
	}
}

// AddCheck appends a check.
func (c *Checker) AddCheck(check Check) {
	c.checks = append(c.checks, check)
}

// ListChecks returns the check names in run order.
func (c *Checker) ListChecks() []string {
	names := make([]string, len(c.checks))
	for i, check := range c.checks {
		names[i] = check.Name()
	}
	return names
}

// Run executes every check. Overall is the worst individual status.
func (c *Checker) Run(ctx context.Context, device string, t *Target) *Report {
	start := time.Now()
	report := &Report{
		Device:    device,
		Timestamp: start,
		Overall:   StatusOK,
	}
	for _, check := range c.checks {
		checkStart := time.Now()
		r := check.Run(ctx, t)
		r.Check = check.Name()
		r.Duration = time.Since(checkStart)
		r.Timestamp = checkStart
		if severity[r.Status] > severity[report.Overall] {
			report.Overall = r.Status
		}
		if r.Status != StatusOK {
			util.WithField("check", r.Check).Debugf("health %s: %s", r.Status, r.Message)
		}
		report.Results = append(report.Results, r)
	}
	report.Duration = time.Since(start)
	return report
}

// StoreCheck verifies the configuration store can be read.
type StoreCheck struct{}

func (c *StoreCheck) Name() string { return "store" }

func (c *StoreCheck) Run(ctx context.Context, t *Target) Result {
	if t.Store == nil {
		return Result{Status: StatusUnknown, Message: "no store"}
	}
	snap, err := t.Store.Load(ctx)
	if err != nil {
		return Result{Status: StatusCritical, Message: fmt.Sprintf("loading configuration: %v", err)}
	}
	return Result{
		Status:  StatusOK,
		Message: fmt.Sprintf("%d VLANs, %d ports", len(snap.VLANs), len(snap.Ports)),
		Details: map[string]int{"vlans": len(snap.VLANs), "ports": len(snap.Ports)},
	}
}

// DefaultMaxPending is the sink backlog above which SinkCheck warns.
const DefaultMaxPending = 64

// SinkCheck warns when hardware programs pile up behind a slow or
// failing sink.
type SinkCheck struct {
	MaxPending int
}

func (c *SinkCheck) Name() string { return "sink" }

func (c *SinkCheck) Run(_ context.Context, t *Target) Result {
	if t.Sink == nil {
		return Result{Status: StatusUnknown, Message: "no sink"}
	}
	pending := t.Sink.Pending()
	r := Result{
		Status:  StatusOK,
		Message: fmt.Sprintf("%d programs pending", pending),
		Details: map[string]int{"pending": pending},
	}
	if pending > c.MaxPending {
		r.Status = StatusWarning
	}
	return r
}

// DefaultPoolWarnPercent is the pool usage at which PoolCheck warns.
const DefaultPoolWarnPercent = 90

// PoolCheck reports internal VLAN pool usage: warning at WarnPercent,
// critical when exhausted.
type PoolCheck struct {
	WarnPercent int
}

func (c *PoolCheck) Name() string { return "internal_pool" }

func (c *PoolCheck) Run(_ context.Context, t *Target) Result {
	if t.Pool == nil {
		return Result{Status: StatusUnknown, Message: "no pool"}
	}
	rng := t.Pool.InternalRange()
	size := rng.End - rng.Start + 1
	used := len(t.Pool.InternalAllocated())
	r := Result{
		Status:  StatusOK,
		Message: fmt.Sprintf("%d of %d internal VLANs allocated in %s", used, size, rng),
		Details: map[string]int{"allocated": used, "size": size},
	}
	switch {
	case size <= 0:
		r.Status = StatusUnknown
	case used >= size:
		r.Status = StatusCritical
	case used*100 >= size*c.WarnPercent:
		r.Status = StatusWarning
	}
	return r
}
