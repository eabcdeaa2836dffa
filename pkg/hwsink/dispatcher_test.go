package hwsink

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/newtron-network/vland/pkg/model"
)

// fakeSink records calls and fails the first failures of them.
type fakeSink struct {
	mu       sync.Mutex
	failures int
	applied  []Update
	removed  []int
	attempts int
	done     chan struct{}
}

func newFakeSink(failures int) *fakeSink {
	return &fakeSink{failures: failures, done: make(chan struct{}, 16)}
}

func (f *fakeSink) Name() string { return "fake" }

func (f *fakeSink) fail() error {
	f.attempts++
	if f.failures > 0 {
		f.failures--
		return errors.New("asic busy")
	}
	return nil
}

func (f *fakeSink) Apply(_ context.Context, u Update) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.fail(); err != nil {
		return err
	}
	f.applied = append(f.applied, u)
	f.done <- struct{}{}
	return nil
}

func (f *fakeSink) Remove(_ context.Context, id int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.fail(); err != nil {
		return err
	}
	f.removed = append(f.removed, id)
	f.done <- struct{}{}
	return nil
}

func (f *fakeSink) wait(t *testing.T, n int) {
	t.Helper()
	for i := 0; i < n; i++ {
		select {
		case <-f.done:
		case <-time.After(2 * time.Second):
			t.Fatalf("timed out waiting for sink call %d", i+1)
		}
	}
}

func fastOptions() DispatcherOptions {
	return DispatcherOptions{MaxAttempts: 3, InitialInterval: time.Millisecond, MaxInterval: 2 * time.Millisecond}
}

func TestDispatcher_LatestWins(t *testing.T) {
	sink := newFakeSink(0)
	d := NewDispatcher(sink, fastOptions())

	d.Submit(model.Program{VLANID: 100, Enabled: false})
	d.Submit(model.Program{VLANID: 200, Enabled: true})
	d.Submit(model.Program{VLANID: 100, Enabled: true, Members: []model.Member{{Port: "1", Tagging: model.Tagged}}})
	if got := d.Pending(); got != 2 {
		t.Fatalf("Pending() = %d, want 2", got)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go d.Run(ctx)
	sink.wait(t, 2)

	sink.mu.Lock()
	defer sink.mu.Unlock()
	if len(sink.applied) != 2 {
		t.Fatalf("applied %d updates, want 2", len(sink.applied))
	}
	first := sink.applied[0]
	if first.VLANID != 100 || !first.Enabled || len(first.Members) != 1 {
		t.Errorf("first update = %v, want the latest program for VLAN 100", first)
	}
	if sink.applied[1].VLANID != 200 {
		t.Errorf("second update = %v", sink.applied[1])
	}
}

func TestDispatcher_RetriesUntilAck(t *testing.T) {
	sink := newFakeSink(2)
	d := NewDispatcher(sink, fastOptions())
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go d.Run(ctx)

	d.Submit(model.Program{VLANID: 10, Removed: true})
	sink.wait(t, 1)

	sink.mu.Lock()
	defer sink.mu.Unlock()
	if sink.attempts != 3 {
		t.Errorf("attempts = %d, want 3", sink.attempts)
	}
	if len(sink.removed) != 1 || sink.removed[0] != 10 {
		t.Errorf("removed = %v, want [10]", sink.removed)
	}
}

func TestDispatcher_GivesUp(t *testing.T) {
	sink := newFakeSink(100)
	d := NewDispatcher(sink, fastOptions())
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go d.Run(ctx)

	d.Submit(model.Program{VLANID: 10, Enabled: true})
	d.Submit(model.Program{VLANID: 20, Enabled: true})

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		sink.mu.Lock()
		n := sink.attempts
		sink.mu.Unlock()
		if n >= 6 && d.Pending() == 0 {
			break
		}
		time.Sleep(5 * time.Millisecond)
	}

	sink.mu.Lock()
	defer sink.mu.Unlock()
	if sink.attempts != 6 {
		t.Errorf("attempts = %d, want 3 per VLAN", sink.attempts)
	}
	if len(sink.applied) != 0 {
		t.Errorf("applied = %v, want none", sink.applied)
	}
}

func TestDispatcher_StopsOnCancel(t *testing.T) {
	d := NewDispatcher(newFakeSink(0), fastOptions())
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		d.Run(ctx)
		close(done)
	}()
	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Run did not return after cancel")
	}
}

func TestUpdate_String(t *testing.T) {
	u := Update{VLANID: 100, Enabled: true, Members: []model.Member{
		{Port: "1", Tagging: model.Tagged},
		{Port: "2", Tagging: model.Untagged},
	}}
	if got := u.String(); !strings.Contains(got, "Vlan100") || !strings.Contains(got, "2(untagged)") {
		t.Errorf("String() = %q", got)
	}
	if err := (LogSink{}).Apply(context.Background(), u); err != nil {
		t.Errorf("LogSink.Apply: %v", err)
	}
}
