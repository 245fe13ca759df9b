// Package netutil provides IPv4 address helpers and a kernel routing table
// snapshot.
package netutil

import (
	"encoding/binary"
	"fmt"
	"net"
	"strconv"
)

// IPToU32 converts an IPv4 address to its numeric value, first octet in the
// most significant byte. Non-IPv4 input yields 0.
func IPToU32(ip net.IP) uint32 {
	ip = ip.To4()
	if ip == nil {
		return 0
	}
	return binary.BigEndian.Uint32(ip)
}

// U32ToIP is the inverse of IPToU32.
func U32ToIP(addr uint32) net.IP {
	ip := make(net.IP, 4)
	binary.BigEndian.PutUint32(ip, addr)
	return ip
}

// FormatIPv4 renders addr in dotted-decimal form.
func FormatIPv4(addr uint32) string {
	b := make([]byte, 0, len("255.255.255.255"))
	b = strconv.AppendUint(b, uint64(addr>>24), 10)
	b = append(b, '.')
	b = strconv.AppendUint(b, uint64(addr>>16&0xff), 10)
	b = append(b, '.')
	b = strconv.AppendUint(b, uint64(addr>>8&0xff), 10)
	b = append(b, '.')
	b = strconv.AppendUint(b, uint64(addr&0xff), 10)
	return string(b)
}

// ParseIPv4 parses a dotted-decimal IPv4 address.
func ParseIPv4(s string) (uint32, error) {
	ip := net.ParseIP(s).To4()
	if ip == nil {
		return 0, fmt.Errorf("invalid IPv4 address %q", s)
	}
	return binary.BigEndian.Uint32(ip), nil
}

// ParseCIDR parses "a.b.c.d/n" into the address as written and its prefix
// length. Host bits are preserved; callers mask as needed.
func ParseCIDR(s string) (addr uint32, prefixLen int, err error) {
	ip, prefix, err := net.ParseCIDR(s)
	if err != nil {
		return 0, 0, err
	}
	ip4 := ip.To4()
	if ip4 == nil {
		return 0, 0, fmt.Errorf("not an IPv4 prefix: %s", s)
	}
	ones, bits := prefix.Mask.Size()
	if bits != 32 {
		return 0, 0, fmt.Errorf("not an IPv4 prefix: %s", s)
	}
	return binary.BigEndian.Uint32(ip4), ones, nil
}
