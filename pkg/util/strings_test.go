package util

import (
	"reflect"
	"testing"
)

func TestSplitCommaSeparated(t *testing.T) {
	tests := []struct {
		input string
		want  int
	}{
		{"", 0},
		{"1", 1},
		{"1,2", 2},
		{"1, 2, ,3", 3},
	}

	for _, tt := range tests {
		got := SplitCommaSeparated(tt.input)
		if len(got) != tt.want {
			t.Errorf("SplitCommaSeparated(%q) = %v (len %d), want len %d", tt.input, got, len(got), tt.want)
		}
	}
}

func TestKeyValues(t *testing.T) {
	m := ParseKeyValues("l3port=2, owner=routing,flag")
	want := map[string]string{"l3port": "2", "owner": "routing", "flag": ""}
	if !reflect.DeepEqual(m, want) {
		t.Errorf("ParseKeyValues() = %v, want %v", m, want)
	}

	if got := FormatKeyValues(map[string]string{"owner": "routing", "l3port": "2"}); got != "l3port=2,owner=routing" {
		t.Errorf("FormatKeyValues() = %q", got)
	}
	if ParseKeyValues("") != nil {
		t.Error("ParseKeyValues(\"\") should be nil")
	}
	if FormatKeyValues(nil) != "" {
		t.Error("FormatKeyValues(nil) should be empty")
	}
}
