// Package audit provides audit logging for VLAN configuration commits.
package audit

import (
	"fmt"
	"time"

	"github.com/newtron-network/vland/pkg/util"
)

// Event records one configuration transaction, accepted or rejected.
type Event struct {
	ID        string        `json:"id"`
	Timestamp time.Time     `json:"timestamp"`
	User      string        `json:"user"`
	Device    string        `json:"device"`
	Operation string        `json:"operation"`
	Source    Source        `json:"source"`
	Changes   []string      `json:"changes"`
	Success   bool          `json:"success"`
	Error     string        `json:"error,omitempty"`
	Code      util.Code     `json:"code,omitempty"`
	Duration  time.Duration `json:"duration"`
}

// Source says where a transaction came from.
type Source string

const (
	SourceUser   Source = "user"
	SourceSystem Source = "system"
	SourceResync Source = "resync"
)

// Filter defines criteria for querying audit events
type Filter struct {
	Device      string
	User        string
	Operation   string
	Source      Source
	Code        util.Code
	StartTime   time.Time
	EndTime     time.Time
	SuccessOnly bool
	FailureOnly bool
	Limit       int
	Offset      int
}

// NewEvent creates a new audit event
func NewEvent(user, device, operation string) *Event {
	return &Event{
		ID:        generateID(),
		Timestamp: time.Now(),
		User:      user,
		Device:    device,
		Operation: operation,
		Source:    SourceUser,
	}
}

// WithSource sets the transaction source
func (e *Event) WithSource(s Source) *Event {
	e.Source = s
	return e
}

// WithChanges records the mutations of the transaction
func (e *Event) WithChanges(changes []string) *Event {
	e.Changes = changes
	return e
}

// WithSuccess marks the event as successful
func (e *Event) WithSuccess() *Event {
	e.Success = true
	return e
}

// WithError marks the event as failed, keeping the validation code if err
// carries one
func (e *Event) WithError(err error) *Event {
	e.Success = false
	if err != nil {
		e.Error = err.Error()
		e.Code = util.CodeOf(err)
	}
	return e
}

// WithResult is WithSuccess for a nil err and WithError otherwise
func (e *Event) WithResult(err error) *Event {
	if err == nil {
		return e.WithSuccess()
	}
	return e.WithError(err)
}

// WithDuration sets the operation duration
func (e *Event) WithDuration(d time.Duration) *Event {
	e.Duration = d
	return e
}

func generateID() string {
	return fmt.Sprintf("%d", time.Now().UnixNano())
}
