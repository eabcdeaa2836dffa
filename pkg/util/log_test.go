package util

import (
	"bytes"
	"encoding/json"
	"io"
	"strings"
	"testing"

	"github.com/sirupsen/logrus"
)

func captureLogger(t *testing.T) *bytes.Buffer {
	t.Helper()
	out, level, formatter := Logger.Out, Logger.Level, Logger.Formatter
	t.Cleanup(func() {
		Logger.SetOutput(out)
		Logger.SetLevel(level)
		Logger.SetFormatter(formatter)
	})
	var buf bytes.Buffer
	SetLogOutput(&buf)
	return &buf
}

func TestSetLogLevel(t *testing.T) {
	captureLogger(t)

	tests := []struct {
		level   string
		wantErr bool
	}{
		{"debug", false},
		{"info", false},
		{"warn", false},
		{"error", false},
		{"verbose", true},
	}

	for _, tt := range tests {
		t.Run(tt.level, func(t *testing.T) {
			err := SetLogLevel(tt.level)
			if (err != nil) != tt.wantErr {
				t.Errorf("SetLogLevel(%q) error = %v, wantErr %v", tt.level, err, tt.wantErr)
			}
		})
	}
}

func TestLevelFiltering(t *testing.T) {
	buf := captureLogger(t)
	SetLogLevel("warn")

	Debugf("vlan %d debug", 10)
	WithVLAN(10).Info("info")
	if buf.Len() != 0 {
		t.Errorf("debug/info should be suppressed at warn level, got %q", buf.String())
	}

	Warnf("vlan %d warn", 10)
	if !strings.Contains(buf.String(), "vlan 10 warn") {
		t.Errorf("expected warning in output, got %q", buf.String())
	}
}

func TestSetJSONFormat(t *testing.T) {
	buf := captureLogger(t)
	SetJSONFormat()

	WithVLAN(200).WithField("oper_state", "up").Info("state changed")

	var entry map[string]interface{}
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("output is not JSON: %v (%q)", err, buf.String())
	}
	if entry["vlan"] != float64(200) {
		t.Errorf("vlan field = %v, want 200", entry["vlan"])
	}
	if entry["msg"] != "state changed" {
		t.Errorf("msg = %v, want %q", entry["msg"], "state changed")
	}
}

func TestContextHelpers(t *testing.T) {
	tests := []struct {
		name  string
		entry *logrus.Entry
		key   string
		want  interface{}
	}{
		{"WithVLAN", WithVLAN(100), "vlan", 100},
		{"WithPort", WithPort("1"), "port", "1"},
		{"WithComponent", WithComponent("allocator"), "component", "allocator"},
		{"WithField", WithField("k", "v"), "k", "v"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.entry.Data[tt.key]; got != tt.want {
				t.Errorf("%s field %q = %v, want %v", tt.name, tt.key, got, tt.want)
			}
		})
	}

	e := WithComponent("reconcile").WithField("vlan", 5)
	if len(e.Data) != 2 {
		t.Errorf("chained entry carried %d fields, want 2", len(e.Data))
	}
}

func TestSetLogOutput_Discard(t *testing.T) {
	captureLogger(t)
	SetLogOutput(io.Discard)
	Warnf("dropped %d", 1)
	if Logger.Out != io.Discard {
		t.Error("SetLogOutput did not replace the writer")
	}
}
