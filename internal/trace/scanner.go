package trace

import (
	"bufio"
	"errors"
	"fmt"
	"io"
)

// Scanner reads trace records one at a time, in the manner of
// bufio.Scanner. It never buffers more than a few records, so arbitrarily
// large traces stream in constant memory.
type Scanner struct {
	r     io.Reader
	buf   [RecordSize]byte
	pkt   Packet
	count int
	err   error
	done  bool
}

// NewScanner returns a Scanner reading from r.
func NewScanner(r io.Reader) *Scanner {
	return &Scanner{r: bufio.NewReaderSize(r, 256*RecordSize)}
}

// Scan advances to the next record. It returns false at end of input or on
// the first error; Err distinguishes the two.
func (s *Scanner) Scan() bool {
	if s.done {
		return false
	}

	n, err := io.ReadFull(s.r, s.buf[:])
	switch {
	case err == nil:
	case errors.Is(err, io.EOF):
		s.done = true
		return false
	case errors.Is(err, io.ErrUnexpectedEOF):
		s.err = fmt.Errorf("%w: %d trailing bytes after record %d", ErrTruncated, n, s.count)
		s.done = true
		return false
	default:
		s.err = fmt.Errorf("reading record %d: %w", s.count+1, err)
		s.done = true
		return false
	}

	s.pkt, _ = Decode(s.buf[:])
	s.count++
	return true
}

// Packet returns the record decoded by the last successful Scan.
func (s *Scanner) Packet() Packet {
	return s.pkt
}

// Count returns the number of records decoded so far.
func (s *Scanner) Count() int {
	return s.count
}

// Err returns the first non-EOF error. A partial trailing record yields an
// error wrapping ErrTruncated.
func (s *Scanner) Err() error {
	return s.err
}

// Writer encodes packets as trace records.
type Writer struct {
	w     *bufio.Writer
	buf   [RecordSize]byte
	count int
}

// NewWriter returns a Writer buffering output to w.
func NewWriter(w io.Writer) *Writer {
	return &Writer{w: bufio.NewWriter(w)}
}

// Write appends one record.
func (w *Writer) Write(p Packet) error {
	Encode(w.buf[:], p)
	if _, err := w.w.Write(w.buf[:]); err != nil {
		return fmt.Errorf("writing record %d: %w", w.count+1, err)
	}
	w.count++
	return nil
}

// Count returns the number of records written.
func (w *Writer) Count() int {
	return w.count
}

// Flush writes any buffered records to the underlying writer.
func (w *Writer) Flush() error {
	return w.w.Flush()
}
