// Package trace decodes and encodes the fixed-size binary packet trace
// records consumed by the simulator.
package trace

import (
	"encoding/binary"
	"errors"
	"fmt"
	"strconv"

	"github.com/DuoChen-317/csds425-projs/internal/netutil"
)

// Record layout: 4-byte seconds, 4-byte microseconds, 20-byte IPv4 header,
// all big endian.
const (
	RecordSize = 28
	HeaderSize = 20

	// ChecksumSentinel stands in for a valid header checksum.
	ChecksumSentinel = 1234

	ttlOffset      = 8
	checksumOffset = 10
	srcOffset      = 12
	dstOffset      = 16
)

// ErrTruncated reports a partial record at the end of a file.
var ErrTruncated = errors.New("truncated record")

// Packet is one decoded trace record.
type Packet struct {
	Seconds   uint32
	Micros    uint32
	Timestamp float64

	TTL        uint8
	ChecksumOK bool
	SrcIP      uint32
	DstIP      uint32

	// Header holds the raw header bytes so the record re-encodes bit-exact.
	Header [HeaderSize]byte
}

// New builds a packet from its timestamp fields and raw header bytes.
func New(seconds, micros uint32, header [HeaderSize]byte) Packet {
	return Packet{
		Seconds:    seconds,
		Micros:     micros,
		Timestamp:  float64(seconds) + float64(micros)/1e6,
		TTL:        header[ttlOffset],
		ChecksumOK: binary.BigEndian.Uint16(header[checksumOffset:]) == ChecksumSentinel,
		SrcIP:      binary.BigEndian.Uint32(header[srcOffset:]),
		DstIP:      binary.BigEndian.Uint32(header[dstOffset:]),
		Header:     header,
	}
}

// Decode decodes the record at the start of b.
func Decode(b []byte) (Packet, error) {
	if len(b) < RecordSize {
		return Packet{}, fmt.Errorf("%w: have %d of %d bytes", ErrTruncated, len(b), RecordSize)
	}
	var header [HeaderSize]byte
	copy(header[:], b[8:RecordSize])
	return New(binary.BigEndian.Uint32(b[0:]), binary.BigEndian.Uint32(b[4:]), header), nil
}

// Encode writes p into b, which must hold at least RecordSize bytes.
func Encode(b []byte, p Packet) {
	_ = b[RecordSize-1]
	binary.BigEndian.PutUint32(b[0:], p.Seconds)
	binary.BigEndian.PutUint32(b[4:], p.Micros)
	copy(b[8:RecordSize], p.Header[:])
}

// FormatTimestamp renders seconds with exactly six fractional digits.
func FormatTimestamp(ts float64) string {
	return strconv.FormatFloat(ts, 'f', 6, 64)
}

// FormatPacket renders the print-packet line:
// "<timestamp> <src> <dst> <P|F> <ttl>".
func FormatPacket(p Packet) string {
	check := "F"
	if p.ChecksumOK {
		check = "P"
	}
	return FormatTimestamp(p.Timestamp) + " " +
		netutil.FormatIPv4(p.SrcIP) + " " +
		netutil.FormatIPv4(p.DstIP) + " " +
		check + " " +
		strconv.Itoa(int(p.TTL))
}
