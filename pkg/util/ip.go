package util

import (
	"fmt"
	"net"
	"strings"
)

// ParseIPWithMask parses an IP address with CIDR notation
// Returns the IP, mask length, and any error
func ParseIPWithMask(cidr string) (net.IP, int, error) {
	ip, ipNet, err := net.ParseCIDR(cidr)
	if err != nil {
		return nil, 0, fmt.Errorf("invalid CIDR notation: %s", cidr)
	}
	ones, _ := ipNet.Mask.Size()
	return ip, ones, nil
}

// IsValidIP checks if a string is a valid IPv4 or IPv6 address
func IsValidIP(ipStr string) bool {
	return net.ParseIP(ipStr) != nil
}

// IsValidCIDR checks if a string is an IPv4 or IPv6 CIDR block
func IsValidCIDR(cidr string) bool {
	_, _, err := net.ParseCIDR(cidr)
	return err == nil
}

// ValidateGateway checks a gateway address in "ip/prefix" form. The host
// part must not be the network address.
func ValidateGateway(cidr string) error {
	ip, ipNet, err := net.ParseCIDR(cidr)
	if err != nil {
		return fmt.Errorf("invalid gateway address %q: expected ip/prefix", cidr)
	}
	ones, bits := ipNet.Mask.Size()
	if ip.Equal(ipNet.IP) && bits-ones > 1 {
		return fmt.Errorf("gateway address %q is the network address", cidr)
	}
	return nil
}

// ValidateIPRange checks "a.b.c.d-e.f.g.h" with both ends in one family and
// start not after end.
func ValidateIPRange(r string) error {
	parts := strings.SplitN(r, "-", 2)
	if len(parts) != 2 {
		return fmt.Errorf("invalid IP range %q: expected start-end", r)
	}
	start := net.ParseIP(strings.TrimSpace(parts[0]))
	end := net.ParseIP(strings.TrimSpace(parts[1]))
	if start == nil || end == nil {
		return fmt.Errorf("invalid IP range %q", r)
	}
	if (start.To4() == nil) != (end.To4() == nil) {
		return fmt.Errorf("invalid IP range %q: mixed address families", r)
	}
	if compareIP(start, end) > 0 {
		return fmt.Errorf("invalid IP range %q: start after end", r)
	}
	return nil
}

// ValidateIPAddress accepts a single address, a CIDR block or a range.
func ValidateIPAddress(s string) error {
	switch {
	case strings.Contains(s, "-"):
		return ValidateIPRange(s)
	case strings.Contains(s, "/"):
		if _, _, err := net.ParseCIDR(s); err != nil {
			return fmt.Errorf("invalid CIDR %q", s)
		}
		return nil
	case net.ParseIP(s) == nil:
		return fmt.Errorf("invalid IP address %q", s)
	}
	return nil
}

// ValidateMAC checks a hardware address.
func ValidateMAC(s string) error {
	if _, err := net.ParseMAC(s); err != nil {
		return fmt.Errorf("invalid MAC address %q", s)
	}
	return nil
}

func compareIP(a, b net.IP) int {
	a16, b16 := a.To16(), b.To16()
	for i := range a16 {
		if a16[i] != b16[i] {
			if a16[i] < b16[i] {
				return -1
			}
			return 1
		}
	}
	return 0
}
