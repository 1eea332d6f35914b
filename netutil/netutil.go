// Package netutil discovers the host's own IPv4 and IPv6 addresses, for
// the client's active/extended mode defaults (spec.md §3, §4.7).
package netutil

import (
	"net"
)

// Addresses is the result of a local address discovery pass: the first
// non-loopback IPv4 and IPv6 address found, if any.
type Addresses struct {
	IPv4 string // empty if none found
	IPv6 string // empty if none found
}

// isLoopback detects loopback by string equality against the canonical
// forms, matching the C original's comparison rather than net.IP.IsLoopback
// (which would also match 127.0.0.0/8 generally — the spec only excludes
// the exact strings).
func isLoopback(s string) bool {
	return s == "127.0.0.1" || s == "::1"
}

// Discover enumerates the host's network interfaces and returns the first
// non-loopback address of each family. Either or both may be absent.
func Discover() (Addresses, error) {
	addrs, err := net.InterfaceAddrs()
	if err != nil {
		return Addresses{}, err
	}

	var out Addresses
	for _, a := range addrs {
		ipNet, ok := a.(*net.IPNet)
		if !ok {
			continue
		}
		ip := ipNet.IP
		s := ip.String()
		if isLoopback(s) {
			continue
		}
		if ip4 := ip.To4(); ip4 != nil {
			if out.IPv4 == "" {
				out.IPv4 = ip4.String()
			}
			continue
		}
		if out.IPv6 == "" {
			out.IPv6 = s
		}
	}
	return out, nil
}
