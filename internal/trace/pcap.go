package trace

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"net"
	"time"

	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"
	"github.com/google/gopacket/pcapgo"
)

// ImportOptions controls pcap conversion.
type ImportOptions struct {
	// RewriteChecksum maps valid real checksums to the sentinel and any
	// other value away from it, so the simulator's checksum gate reflects
	// the captured header.
	RewriteChecksum bool
}

// ImportResult summarizes a pcap conversion.
type ImportResult struct {
	Packets int
	Skipped int
}

// ImportPCAP converts every IPv4 packet of a pcap stream into a trace record.
// Non-IPv4 frames are counted as skipped.
func ImportPCAP(r io.Reader, w *Writer, opts ImportOptions) (ImportResult, error) {
	var res ImportResult

	pr, err := pcapgo.NewReader(r)
	if err != nil {
		return res, fmt.Errorf("reading pcap header: %w", err)
	}

	for {
		data, ci, err := pr.ReadPacketData()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return res, fmt.Errorf("reading packet %d: %w", res.Packets+res.Skipped+1, err)
		}

		pkt := gopacket.NewPacket(data, pr.LinkType(), gopacket.DecodeOptions{Lazy: true, NoCopy: true})
		layer := pkt.Layer(layers.LayerTypeIPv4)
		if layer == nil {
			res.Skipped++
			continue
		}
		ip := layer.(*layers.IPv4)
		if len(ip.Contents) < HeaderSize {
			res.Skipped++
			continue
		}

		var header [HeaderSize]byte
		copy(header[:], ip.Contents[:HeaderSize])
		if opts.RewriteChecksum {
			rewriteChecksum(header[:], ValidIPv4Checksum(ip.Contents))
		}

		ts := ci.Timestamp
		p := New(uint32(ts.Unix()), uint32(ts.Nanosecond()/1000), header)
		if err := w.Write(p); err != nil {
			return res, err
		}
		res.Packets++
	}

	return res, nil
}

func rewriteChecksum(header []byte, valid bool) {
	field := header[checksumOffset : checksumOffset+2]
	switch {
	case valid:
		binary.BigEndian.PutUint16(field, ChecksumSentinel)
	case binary.BigEndian.Uint16(field) == ChecksumSentinel:
		binary.BigEndian.PutUint16(field, 0)
	}
}

// PCAPWriter renders trace records as Ethernet/IPv4/UDP frames so a trace
// can be inspected with ordinary capture tools.
type PCAPWriter struct {
	w       *pcapgo.Writer
	buf     gopacket.SerializeBuffer
	srcMAC  net.HardwareAddr
	dstMAC  net.HardwareAddr
	payload []byte
	count   int
}

// NewPCAPWriter writes the pcap file header to w and returns a writer.
func NewPCAPWriter(w io.Writer, srcMAC, dstMAC net.HardwareAddr) (*PCAPWriter, error) {
	pw := pcapgo.NewWriter(w)
	if err := pw.WriteFileHeader(1500, layers.LinkTypeEthernet); err != nil {
		return nil, fmt.Errorf("writing pcap header: %w", err)
	}
	return &PCAPWriter{
		w:       pw,
		buf:     gopacket.NewSerializeBuffer(),
		srcMAC:  srcMAC,
		dstMAC:  dstMAC,
		payload: []byte("fibsim"),
	}, nil
}

// Write appends p as one frame. The IPv4 checksum field is copied from the
// record, not recomputed, so the sentinel survives.
func (pw *PCAPWriter) Write(p Packet) error {
	eth := &layers.Ethernet{
		SrcMAC:       pw.srcMAC,
		DstMAC:       pw.dstMAC,
		EthernetType: layers.EthernetTypeIPv4,
	}
	ip := IPv4Layer(p.SrcIP, p.DstIP, p.TTL, false)
	ip.Checksum = binary.BigEndian.Uint16(p.Header[checksumOffset:])
	udp := &layers.UDP{
		SrcPort: layers.UDPPort(10000 + pw.count%50000),
		DstPort: layers.UDPPort(9999),
	}

	if err := gopacket.SerializeLayers(pw.buf, gopacket.SerializeOptions{FixLengths: true},
		eth, ip, udp, gopacket.Payload(pw.payload)); err != nil {
		return fmt.Errorf("serializing packet %d: %w", pw.count+1, err)
	}

	ci := gopacket.CaptureInfo{
		Timestamp:     time.Unix(int64(p.Seconds), int64(p.Micros)*1000),
		CaptureLength: len(pw.buf.Bytes()),
		Length:        len(pw.buf.Bytes()),
	}
	if err := pw.w.WritePacket(ci, pw.buf.Bytes()); err != nil {
		return fmt.Errorf("writing packet %d: %w", pw.count+1, err)
	}
	pw.count++
	return nil
}

// Count returns the number of frames written.
func (pw *PCAPWriter) Count() int {
	return pw.count
}
