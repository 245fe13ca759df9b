// Package fib implements the simulator's forwarding engine: the rule table
// loader, the length-bucketed prefix index, conflict detection and the
// per-packet decision logic.
package fib

import (
	"strconv"

	"github.com/DuoChen-317/csds425-projs/internal/netutil"
	"github.com/DuoChen-317/csds425-projs/internal/trace"
)

// MaxPrefixLen is the longest IPv4 prefix.
const MaxPrefixLen = 32

// PolicyDropInterface is the interface id reserved for "drop by policy".
const PolicyDropInterface = 0

// ErrTruncated is returned (wrapped) for a partial trailing table record.
// It is the same value as trace.ErrTruncated.
var ErrTruncated = trace.ErrTruncated

// Rule is one forwarding table entry, fields in host byte order.
type Rule struct {
	Network   uint32
	PrefixLen uint16
	Interface uint16
}

// IsDefault reports whether r is the default route 0.0.0.0/0.
func (r Rule) IsDefault() bool {
	return r.Network == 0 && r.PrefixLen == 0
}

// Masked returns the network with host bits cleared. PrefixLen must be valid.
func (r Rule) Masked() uint32 {
	return r.Network & Mask(int(r.PrefixLen))
}

// Prefix renders the rule's masked prefix as "a.b.c.d/n".
func (r Rule) Prefix() string {
	if r.PrefixLen > MaxPrefixLen {
		return netutil.FormatIPv4(r.Network) + "/" + strconv.Itoa(int(r.PrefixLen))
	}
	return netutil.FormatIPv4(r.Masked()) + "/" + strconv.Itoa(int(r.PrefixLen))
}

// String renders the print-table line "<network> <prefix-len> <interface>".
func (r Rule) String() string {
	return netutil.FormatIPv4(r.Network) + " " +
		strconv.Itoa(int(r.PrefixLen)) + " " +
		strconv.Itoa(int(r.Interface))
}

// Verdict classifies the outcome of a forwarding decision.
type Verdict uint8

const (
	VerdictDropChecksum Verdict = iota
	VerdictDropExpired
	VerdictDropPolicy
	VerdictSend
	VerdictDefault
	VerdictDropUnknown

	numVerdicts
)

var verdictNames = [numVerdicts]string{
	VerdictDropChecksum: "drop checksum",
	VerdictDropExpired:  "drop expired",
	VerdictDropPolicy:   "drop policy",
	VerdictSend:         "send",
	VerdictDefault:      "default",
	VerdictDropUnknown:  "drop unknown",
}

var verdictLabels = [numVerdicts]string{
	VerdictDropChecksum: "drop_checksum",
	VerdictDropExpired:  "drop_expired",
	VerdictDropPolicy:   "drop_policy",
	VerdictSend:         "send",
	VerdictDefault:      "default",
	VerdictDropUnknown:  "drop_unknown",
}

// Verdicts lists every verdict in declaration order.
func Verdicts() []Verdict {
	vs := make([]Verdict, numVerdicts)
	for i := range vs {
		vs[i] = Verdict(i)
	}
	return vs
}

func (v Verdict) String() string {
	if v >= numVerdicts {
		return "verdict(" + strconv.Itoa(int(v)) + ")"
	}
	return verdictNames[v]
}

// Label is the metric label form of v.
func (v Verdict) Label() string {
	if v >= numVerdicts {
		return "unknown_" + strconv.Itoa(int(v))
	}
	return verdictLabels[v]
}

// Forwards reports whether the packet leaves through an interface.
func (v Verdict) Forwards() bool {
	return v == VerdictSend || v == VerdictDefault
}

// Action is the decision for one packet. Interface is meaningful for
// VerdictSend and VerdictDefault only.
type Action struct {
	Verdict   Verdict
	Interface uint16
}

func (a Action) String() string {
	if a.Verdict.Forwards() {
		return a.Verdict.String() + " " + strconv.Itoa(int(a.Interface))
	}
	return a.Verdict.String()
}

// LookupResult is the outcome of a longest-prefix-match lookup.
type LookupResult struct {
	Interface uint16
	PrefixLen int
	Found     bool
}

// ConflictPolicy selects how duplicate prefixes are handled at index build.
type ConflictPolicy int

const (
	// ConflictAbort rejects the table on the first duplicate prefix.
	ConflictAbort ConflictPolicy = iota
	// ConflictKeepFirst logs every duplicate and keeps the first occurrence
	// in file order.
	ConflictKeepFirst
)

func (p ConflictPolicy) String() string {
	switch p {
	case ConflictAbort:
		return "abort"
	case ConflictKeepFirst:
		return "keep-first"
	default:
		return "policy(" + strconv.Itoa(int(p)) + ")"
	}
}
