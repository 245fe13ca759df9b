package fib

import (
	"bufio"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/DuoChen-317/csds425-projs/internal/log"
	"github.com/DuoChen-317/csds425-projs/internal/netutil"
)

// RuleSize is the size of one table record: 4-byte address, 2-byte prefix
// length, 2-byte interface, all big endian.
const RuleSize = 8

// DecodeRule decodes the record at the start of b.
func DecodeRule(b []byte) (Rule, error) {
	if len(b) < RuleSize {
		return Rule{}, fmt.Errorf("%w: have %d of %d bytes", ErrTruncated, len(b), RuleSize)
	}
	return Rule{
		Network:   binary.BigEndian.Uint32(b[0:]),
		PrefixLen: binary.BigEndian.Uint16(b[4:]),
		Interface: binary.BigEndian.Uint16(b[6:]),
	}, nil
}

// EncodeRule writes r into b, which must hold at least RuleSize bytes.
func EncodeRule(b []byte, r Rule) {
	_ = b[RuleSize-1]
	binary.BigEndian.PutUint32(b[0:], r.Network)
	binary.BigEndian.PutUint16(b[4:], r.PrefixLen)
	binary.BigEndian.PutUint16(b[6:], r.Interface)
}

// RuleScanner reads table records one at a time, in file order.
type RuleScanner struct {
	r     io.Reader
	buf   [RuleSize]byte
	rule  Rule
	count int
	err   error
	done  bool
}

// NewRuleScanner returns a RuleScanner reading from r.
func NewRuleScanner(r io.Reader) *RuleScanner {
	return &RuleScanner{r: bufio.NewReader(r)}
}

// Scan advances to the next rule. It returns false at end of input or on
// the first error.
func (s *RuleScanner) Scan() bool {
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
		s.err = fmt.Errorf("%w: %d trailing bytes after rule %d", ErrTruncated, n, s.count)
		s.done = true
		return false
	default:
		s.err = fmt.Errorf("reading rule %d: %w", s.count+1, err)
		s.done = true
		return false
	}

	s.rule, _ = DecodeRule(s.buf[:])
	s.count++
	return true
}

// Rule returns the rule decoded by the last successful Scan.
func (s *RuleScanner) Rule() Rule {
	return s.rule
}

// Count returns the number of rules decoded so far.
func (s *RuleScanner) Count() int {
	return s.count
}

// Err returns the first non-EOF error. A partial trailing record yields an
// error wrapping ErrTruncated.
func (s *RuleScanner) Err() error {
	return s.err
}

// ReadRules decodes every record of r in file order. On a partial trailing
// record it returns the rules decoded so far together with an error
// wrapping ErrTruncated.
func ReadRules(r io.Reader) ([]Rule, error) {
	var rules []Rule
	sc := NewRuleScanner(r)
	for sc.Scan() {
		rules = append(rules, sc.Rule())
	}
	return rules, sc.Err()
}

// LoadRules reads a binary table file. A truncated tail is logged and the
// complete records before it are kept.
func LoadRules(filename string) ([]Rule, error) {
	file, err := os.Open(filename)
	if err != nil {
		return nil, fmt.Errorf("opening table %s: %w", filename, err)
	}
	defer file.Close()

	rules, err := ReadRules(file)
	if errors.Is(err, ErrTruncated) {
		log.Get().WithField("path", filename).WithError(err).Warn("Ignoring truncated table record")
		return rules, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading table %s: %w", filename, err)
	}
	return rules, nil
}

// WriteRules encodes rules to w in order.
func WriteRules(w io.Writer, rules []Rule) error {
	bw := bufio.NewWriter(w)
	var buf [RuleSize]byte
	for i, r := range rules {
		EncodeRule(buf[:], r)
		if _, err := bw.Write(buf[:]); err != nil {
			return fmt.Errorf("writing rule %d: %w", i+1, err)
		}
	}
	return bw.Flush()
}

// SaveRules writes rules to a binary table file, replacing it.
func SaveRules(filename string, rules []Rule) error {
	file, err := os.Create(filename)
	if err != nil {
		return fmt.Errorf("creating table %s: %w", filename, err)
	}
	if err := WriteRules(file, rules); err != nil {
		file.Close()
		return fmt.Errorf("writing table %s: %w", filename, err)
	}
	return file.Close()
}

// ParseRuleText parses the text table format, one rule per line:
//
//	# comment
//	10.0.0.0/8     1
//	192.0.2.0/24   drop
//
// The interface is a decimal id; "drop" stands for the policy-drop id 0.
// Addresses are kept as written, host bits included.
func ParseRuleText(r io.Reader) ([]Rule, error) {
	var rules []Rule

	scanner := bufio.NewScanner(r)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		parts := strings.Fields(line)
		if len(parts) != 2 {
			return nil, fmt.Errorf("line %d: invalid line format: %s", lineNo, line)
		}

		addr, prefixLen, err := netutil.ParseCIDR(parts[0])
		if err != nil {
			return nil, fmt.Errorf("line %d: parsing prefix %s: %w", lineNo, parts[0], err)
		}

		iface, err := parseInterface(parts[1])
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", lineNo, err)
		}

		rules = append(rules, Rule{
			Network:   addr,
			PrefixLen: uint16(prefixLen),
			Interface: iface,
		})
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("scanning rules: %w", err)
	}

	return rules, nil
}

func parseInterface(s string) (uint16, error) {
	if strings.EqualFold(s, "drop") {
		return PolicyDropInterface, nil
	}
	v, err := strconv.ParseUint(s, 10, 16)
	if err != nil {
		return 0, fmt.Errorf("parsing interface %s: %w", s, err)
	}
	return uint16(v), nil
}

// RulesFromKernel converts a kernel route snapshot into rules. Reject routes
// become policy drops; unicast routes use the output interface index.
func RulesFromKernel(routes []netutil.KernelRoute) ([]Rule, error) {
	rules := make([]Rule, 0, len(routes))
	for _, kr := range routes {
		if kr.PrefixLen < 0 || kr.PrefixLen > MaxPrefixLen {
			return nil, fmt.Errorf("route %s/%d: invalid prefix length", netutil.FormatIPv4(kr.Network), kr.PrefixLen)
		}

		rule := Rule{
			Network:   kr.Network,
			PrefixLen: uint16(kr.PrefixLen),
			Interface: PolicyDropInterface,
		}
		if !kr.Reject {
			if kr.Ifindex <= 0 || kr.Ifindex > 0xffff {
				return nil, fmt.Errorf("route %s: interface index %d does not fit a table record", rule.Prefix(), kr.Ifindex)
			}
			rule.Interface = uint16(kr.Ifindex)
		}
		rules = append(rules, rule)
	}
	return rules, nil
}
