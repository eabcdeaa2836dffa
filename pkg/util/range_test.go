package util

import (
	"reflect"
	"testing"
)

func TestExpandRange(t *testing.T) {
	tests := []struct {
		name    string
		spec    string
		want    []int
		wantErr bool
	}{
		{name: "single value", spec: "5", want: []int{5}},
		{name: "simple range", spec: "1-5", want: []int{1, 2, 3, 4, 5}},
		{name: "comma separated", spec: "1,3,5", want: []int{1, 3, 5}},
		{name: "mixed", spec: "1-3,5,7-9", want: []int{1, 2, 3, 5, 7, 8, 9}},
		{name: "with spaces", spec: "1 - 3, 5", want: []int{1, 2, 3, 5}},
		{name: "overlap deduplicated", spec: "1-3,2-4", want: []int{1, 2, 3, 4}},
		{name: "unsorted input", spec: "300,100,200", want: []int{100, 200, 300}},
		{name: "empty parts skipped", spec: "1,,2", want: []int{1, 2}},
		{name: "empty string", spec: "", want: nil},
		{name: "start > end", spec: "5-1", wantErr: true},
		{name: "not a number", spec: "abc", wantErr: true},
		{name: "bad end", spec: "1-x", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ExpandRange(tt.spec)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ExpandRange(%q) error = %v, wantErr %v", tt.spec, err, tt.wantErr)
			}
			if !tt.wantErr && !reflect.DeepEqual(got, tt.want) {
				t.Errorf("ExpandRange(%q) = %v, want %v", tt.spec, got, tt.want)
			}
		})
	}
}

func TestParseSpan(t *testing.T) {
	start, end, err := ParseSpan("1024-4094")
	if err != nil {
		t.Fatalf("ParseSpan() error = %v", err)
	}
	if start != 1024 || end != 4094 {
		t.Errorf("ParseSpan() = %d,%d, want 1024,4094", start, end)
	}

	// ordering is the caller's concern
	start, end, err = ParseSpan("100-10")
	if err != nil || start != 100 || end != 10 {
		t.Errorf("ParseSpan(100-10) = %d,%d,%v", start, end, err)
	}

	if _, _, err := ParseSpan("1024"); err == nil {
		t.Error("ParseSpan without dash should fail")
	}
	if got := FormatSpan(2, 4094); got != "2-4094" {
		t.Errorf("FormatSpan() = %q", got)
	}
}

func TestCompactRange(t *testing.T) {
	tests := []struct {
		values []int
		want   string
	}{
		{nil, ""},
		{[]int{100}, "100"},
		{[]int{100, 101, 102}, "100-102"},
		{[]int{100, 200, 300}, "100,200,300"},
		{[]int{5, 3, 1, 2, 3}, "1-3,5"},
	}
	for _, tt := range tests {
		if got := CompactRange(tt.values); got != tt.want {
			t.Errorf("CompactRange(%v) = %q, want %q", tt.values, got, tt.want)
		}
	}
}

func TestCompactRange_DoesNotMutateInput(t *testing.T) {
	in := []int{3, 1, 2}
	CompactRange(in)
	if !reflect.DeepEqual(in, []int{3, 1, 2}) {
		t.Errorf("CompactRange mutated its input: %v", in)
	}
}

func TestExpandVLANRange(t *testing.T) {
	got, err := ExpandVLANRange("100-102,200")
	if err != nil {
		t.Fatalf("ExpandVLANRange() error = %v", err)
	}
	if want := []int{100, 101, 102, 200}; !reflect.DeepEqual(got, want) {
		t.Errorf("ExpandVLANRange() = %v, want %v", got, want)
	}

	for _, spec := range []string{"0", "4095", "4090-4096", "1-x"} {
		if _, err := ExpandVLANRange(spec); err == nil {
			t.Errorf("ExpandVLANRange(%q) should fail", spec)
		}
	}
}

func TestValidateVLANID(t *testing.T) {
	for _, id := range []int{1, 100, 4094} {
		if err := ValidateVLANID(id); err != nil {
			t.Errorf("ValidateVLANID(%d) = %v, want nil", id, err)
		}
	}
	for _, id := range []int{-1, 0, 4095, 5000} {
		if err := ValidateVLANID(id); err == nil {
			t.Errorf("ValidateVLANID(%d) = nil, want error", id)
		}
	}
}

func TestRoundTrip(t *testing.T) {
	spec := "1-3,10,20-22"
	values, err := ExpandRange(spec)
	if err != nil {
		t.Fatal(err)
	}
	if got := CompactRange(values); got != spec {
		t.Errorf("CompactRange(ExpandRange(%q)) = %q", spec, got)
	}
}
