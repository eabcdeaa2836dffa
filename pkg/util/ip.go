package util

import (
	"net"
	"strings"
)

// IsValidIPv4 checks if a string is a valid IPv4 address
func IsValidIPv4(ipStr string) bool {
	ip := net.ParseIP(ipStr)
	return ip != nil && ip.To4() != nil
}

// IsValidIPv4CIDR checks if a string is a valid IPv4 address with prefix
// length, e.g. "10.0.0.1/24".
func IsValidIPv4CIDR(cidr string) bool {
	if _, _, err := net.ParseCIDR(cidr); err != nil {
		return false
	}
	addr, _, _ := strings.Cut(cidr, "/")
	return IsValidIPv4(addr)
}
