package trace

import (
	"encoding/binary"
	"fmt"

	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"

	"github.com/DuoChen-317/csds425-projs/internal/netutil"
)

// IPv4Layer returns a header-only IPv4 layer carrying the fields the
// simulator reads. The checksum field holds the sentinel when checksumOK is
// set and zero otherwise.
func IPv4Layer(src, dst uint32, ttl uint8, checksumOK bool) *layers.IPv4 {
	ip := &layers.IPv4{
		Version:  4,
		IHL:      5,
		TTL:      ttl,
		Protocol: layers.IPProtocolUDP,
		SrcIP:    netutil.U32ToIP(src),
		DstIP:    netutil.U32ToIP(dst),
	}
	if checksumOK {
		ip.Checksum = ChecksumSentinel
	}
	return ip
}

// HeaderBytes serializes ip into the fixed header blob. Checksums are not
// recomputed, so whatever ip.Checksum holds is written as is; options are
// dropped.
func HeaderBytes(ip *layers.IPv4) ([HeaderSize]byte, error) {
	var header [HeaderSize]byte

	hdr := *ip
	hdr.Options = nil
	hdr.Padding = nil

	buf := gopacket.NewSerializeBuffer()
	opts := gopacket.SerializeOptions{FixLengths: true}
	if err := gopacket.SerializeLayers(buf, opts, &hdr); err != nil {
		return header, fmt.Errorf("serializing IPv4 header: %w", err)
	}
	copy(header[:], buf.Bytes())
	return header, nil
}

// Synthesize builds a packet whose header is produced by IPv4Layer.
func Synthesize(seconds, micros uint32, src, dst uint32, ttl uint8, checksumOK bool) (Packet, error) {
	header, err := HeaderBytes(IPv4Layer(src, dst, ttl, checksumOK))
	if err != nil {
		return Packet{}, err
	}
	return New(seconds, micros, header), nil
}

// ValidIPv4Checksum reports whether hdr (the full header, options included)
// carries a correct RFC 791 checksum.
func ValidIPv4Checksum(hdr []byte) bool {
	if len(hdr) < HeaderSize || len(hdr)%2 != 0 {
		return false
	}
	var sum uint32
	for i := 0; i < len(hdr); i += 2 {
		sum += uint32(binary.BigEndian.Uint16(hdr[i:]))
	}
	for sum > 0xffff {
		sum = (sum >> 16) + (sum & 0xffff)
	}
	return sum == 0xffff
}
