// Package dataconn holds the pure encode/decode helpers shared by the
// active (PORT/EPRT) and passive (PASV/EPSV) halves of the data-channel
// negotiator. Actually opening a socket is side-effecting and differs by
// which side listens and which side connects, so that logic lives in the
// client and server packages; only the wire-format grammar lives here.
package dataconn

import (
	"fmt"
	"net"
	"regexp"
	"strconv"
)

// EncodePORT renders host:port as the comma-separated sextet PORT expects:
// h1,h2,h3,h4,p1,p2 where port = 256*p1 + p2.
func EncodePORT(host string, port int) (string, error) {
	ip := net.ParseIP(host)
	if ip == nil {
		return "", fmt.Errorf("dataconn: invalid IPv4 address: %s", host)
	}
	ip4 := ip.To4()
	if ip4 == nil {
		return "", fmt.Errorf("dataconn: PORT requires an IPv4 address: %s", host)
	}
	if port < 0 || port > 65535 {
		return "", fmt.Errorf("dataconn: invalid port: %d", port)
	}
	p1 := port / 256
	p2 := port % 256
	return fmt.Sprintf("%d,%d,%d,%d,%d,%d", ip4[0], ip4[1], ip4[2], ip4[3], p1, p2), nil
}

var portRegexp = regexp.MustCompile(`^(\d{1,3}),(\d{1,3}),(\d{1,3}),(\d{1,3}),(\d{1,3}),(\d{1,3})$`)

// DecodePORT parses the PORT command argument back into a host and port.
func DecodePORT(arg string) (host string, port int, err error) {
	m := portRegexp.FindStringSubmatch(arg)
	if m == nil {
		return "", 0, fmt.Errorf("dataconn: malformed PORT argument: %q", arg)
	}
	var parts [6]int
	for i := 0; i < 6; i++ {
		v, convErr := strconv.Atoi(m[i+1])
		if convErr != nil || v < 0 || v > 255 {
			return "", 0, fmt.Errorf("dataconn: invalid PORT octet: %q", m[i+1])
		}
		parts[i] = v
	}
	host = fmt.Sprintf("%d.%d.%d.%d", parts[0], parts[1], parts[2], parts[3])
	port = parts[4]*256 + parts[5]
	return host, port, nil
}

// EncodeEPRT renders host:port in RFC 2428 form: |family|addr|port| where
// family is 1 for IPv4 and 2 for IPv6.
func EncodeEPRT(host string, port int) (string, error) {
	ip := net.ParseIP(host)
	if ip == nil {
		return "", fmt.Errorf("dataconn: invalid IP address: %s", host)
	}
	family := 2
	if ip.To4() != nil {
		family = 1
	}
	if port < 0 || port > 65535 {
		return "", fmt.Errorf("dataconn: invalid port: %d", port)
	}
	return fmt.Sprintf("|%d|%s|%d|", family, host, port), nil
}

// DecodeEPRT parses an EPRT argument of the form |family|addr|port| into
// its family, address literal, and port. The delimiter is whatever byte
// appears in the first position; RFC 2428 nominates '|' but does not
// require it.
func DecodeEPRT(arg string) (family int, addr string, port int, err error) {
	if len(arg) < 5 {
		return 0, "", 0, fmt.Errorf("dataconn: malformed EPRT argument: %q", arg)
	}
	delim := arg[0]
	fields := splitOnDelim(arg[1:], delim)
	if len(fields) != 4 || fields[3] != "" {
		return 0, "", 0, fmt.Errorf("dataconn: malformed EPRT argument: %q", arg)
	}
	family, err = strconv.Atoi(fields[0])
	if err != nil || (family != 1 && family != 2) {
		return 0, "", 0, fmt.Errorf("dataconn: invalid EPRT family: %q", fields[0])
	}
	addr = fields[1]
	if net.ParseIP(addr) == nil {
		return 0, "", 0, fmt.Errorf("dataconn: invalid EPRT address: %q", addr)
	}
	port, err = strconv.Atoi(fields[2])
	if err != nil || port < 0 || port > 65535 {
		return 0, "", 0, fmt.Errorf("dataconn: invalid EPRT port: %q", fields[2])
	}
	return family, addr, port, nil
}

// splitOnDelim splits s on every occurrence of the byte delim, the way
// strings.Split(s, string(delim)) would, without assuming delim is '|'.
func splitOnDelim(s string, delim byte) []string {
	var out []string
	start := 0
	for i := 0; i < len(s); i++ {
		if s[i] == delim {
			out = append(out, s[start:i])
			start = i + 1
		}
	}
	out = append(out, s[start:])
	return out
}

var pasvRegexp = regexp.MustCompile(`[\(=](\d{1,3}),(\d{1,3}),(\d{1,3}),(\d{1,3}),(\d{1,3}),(\d{1,3})`)

// ParsePASV scans a 227 reply's text for the first '(' or '=' and parses
// the six comma-delimited tokens that follow as host/port, the last two
// tokens being the port bytes (port = 256*p1 + p2).
func ParsePASV(text string) (host string, port int, err error) {
	m := pasvRegexp.FindStringSubmatch(text)
	if m == nil {
		return "", 0, fmt.Errorf("dataconn: malformed PASV reply: %q", text)
	}
	var parts [6]int
	for i := 0; i < 6; i++ {
		v, convErr := strconv.Atoi(m[i+1])
		if convErr != nil || v < 0 || v > 255 {
			return "", 0, fmt.Errorf("dataconn: invalid PASV octet: %q", m[i+1])
		}
		parts[i] = v
	}
	host = fmt.Sprintf("%d.%d.%d.%d", parts[0], parts[1], parts[2], parts[3])
	port = parts[4]*256 + parts[5]
	return host, port, nil
}

// FormatPASVReply renders the text of a 227 reply for host/port, in the
// conventional form servers use.
func FormatPASVReply(host string, port int) string {
	ip := net.ParseIP(host).To4()
	p1 := port / 256
	p2 := port % 256
	if ip == nil {
		return fmt.Sprintf("Entering Passive Mode (%s,%d,%d)", host, p1, p2)
	}
	return fmt.Sprintf("Entering Passive Mode (%d,%d,%d,%d,%d,%d)", ip[0], ip[1], ip[2], ip[3], p1, p2)
}

var epsvRegexp = regexp.MustCompile(`\(\|\|\|(\d{1,5})\|\)`)

// ParseEPSV extracts the port from an EPSV reply's text, of the form
// "Entering Extended Passive Mode (|||6446|)" (RFC 2428); the address
// and protocol fields are always empty in a 229 reply, since the
// client already knows the server's address from the control channel.
func ParseEPSV(text string) (port int, err error) {
	m := epsvRegexp.FindStringSubmatch(text)
	if m == nil {
		return 0, fmt.Errorf("dataconn: malformed EPSV reply: %q", text)
	}
	port, err = strconv.Atoi(m[1])
	if err != nil || port < 0 || port > 65535 {
		return 0, fmt.Errorf("dataconn: invalid EPSV port: %q", m[1])
	}
	return port, nil
}

// FormatEPSVReply renders the text of a 229 reply for port.
func FormatEPSVReply(port int) string {
	return fmt.Sprintf("Entering Extended Passive Mode (|||%d|)", port)
}
