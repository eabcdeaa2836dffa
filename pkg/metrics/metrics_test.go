package metrics

import (
	"errors"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestRecordCommit(t *testing.T) {
	CommitsTotal.Reset()

	RecordCommit("user", nil, false)
	RecordCommit("user", errors.New("DuplicateVlanId"), true)
	RecordCommit("resync", errors.New("store down"), false)

	tests := []struct {
		source, result string
		want           float64
	}{
		{"user", ResultSuccess, 1},
		{"user", ResultRejected, 1},
		{"resync", ResultFailure, 1},
		{"resync", ResultSuccess, 0},
	}
	for _, tt := range tests {
		got := testutil.ToFloat64(CommitsTotal.WithLabelValues(tt.source, tt.result))
		if got != tt.want {
			t.Errorf("commits_total{%s,%s} = %v, want %v", tt.source, tt.result, got, tt.want)
		}
	}
}

func TestRecordSinkUpdate(t *testing.T) {
	SinkUpdatesTotal.Reset()

	RecordSinkUpdate("appdb", nil)
	RecordSinkUpdate("appdb", nil)
	RecordSinkUpdate("appdb", errors.New("nack"))

	if got := testutil.ToFloat64(SinkUpdatesTotal.WithLabelValues("appdb", ResultAck)); got != 2 {
		t.Errorf("acks = %v, want 2", got)
	}
	if got := testutil.ToFloat64(SinkUpdatesTotal.WithLabelValues("appdb", ResultNack)); got != 1 {
		t.Errorf("nacks = %v, want 1", got)
	}
}

func TestSetVLANStates(t *testing.T) {
	SetVLANStates(map[[2]string]int{
		{"up", "ok"}:               3,
		{"down", "admin_down"}:     1,
		{"down", "no_member_port"}: 2,
	})
	if got := testutil.ToFloat64(VLANs.WithLabelValues("up", "ok")); got != 3 {
		t.Errorf("vlans{up,ok} = %v, want 3", got)
	}

	SetVLANStates(map[[2]string]int{{"up", "ok"}: 1})
	if got := testutil.CollectAndCount(VLANs); got != 1 {
		t.Errorf("series after reset = %d, want 1", got)
	}
}

func TestSetPool(t *testing.T) {
	SetPool(2, 3069)
	if got := testutil.ToFloat64(InternalVLANsAllocated); got != 2 {
		t.Errorf("allocated = %v, want 2", got)
	}
	if got := testutil.ToFloat64(InternalVLANsAvailable); got != 3069 {
		t.Errorf("available = %v, want 3069", got)
	}
}

func TestRegister_Idempotent(t *testing.T) {
	Register()
	Register()
}
