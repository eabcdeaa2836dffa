package util

import "testing"

func TestIsValidIPv4CIDR(t *testing.T) {
	tests := []struct {
		in   string
		want bool
	}{
		{"10.0.0.1/24", true},
		{"192.168.1.0/31", true},
		{"10.0.0.1", false},
		{"2001:db8::1/64", false},
		{"10.0.0.300/24", false},
		{"", false},
	}
	for _, tt := range tests {
		if got := IsValidIPv4CIDR(tt.in); got != tt.want {
			t.Errorf("IsValidIPv4CIDR(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
	if !IsValidIPv4("10.1.1.1") || IsValidIPv4("::1") {
		t.Error("IsValidIPv4 misclassified input")
	}
}
