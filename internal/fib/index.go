package fib

import (
	"fmt"

	"github.com/DuoChen-317/csds425-projs/internal/log"
	"github.com/DuoChen-317/csds425-projs/internal/netutil"
)

// masks[n] has the top n bits set.
var masks = func() (m [MaxPrefixLen + 1]uint32) {
	for n := 1; n <= MaxPrefixLen; n++ {
		m[n] = ^uint32(0) << (MaxPrefixLen - n)
	}
	return m
}()

// Mask returns the netmask for prefixLen, which must be in 0..32.
func Mask(prefixLen int) uint32 {
	return masks[prefixLen]
}

// Index is an exact-match table per prefix length. Lookups probe at most
// 33 buckets, longest first. An Index is immutable once built and safe for
// concurrent use.
type Index struct {
	buckets [MaxPrefixLen + 1]map[uint32]uint16
	// lengths lists the non-empty buckets, longest first.
	lengths []int
	routes  int

	defaultIface uint16
	defaultLen   uint16
	hasDefault   bool
}

// NewIndex validates rules and builds the index. Under ConflictAbort a
// duplicate prefix fails the build with a *ConflictError.
//
// Rules whose network is 0.0.0.0 feed the fallback interface. The one with
// the shortest prefix length wins; after the conflict check it is unique.
// Only 0.0.0.0/0 is kept out of the buckets, so a longer 0.0.0.0/n rule
// still takes part in longest-prefix match.
func NewIndex(rules []Rule, policy ConflictPolicy) (*Index, error) {
	switch policy {
	case ConflictAbort:
		if err := CheckConflicts(rules); err != nil {
			return nil, err
		}
	case ConflictKeepFirst:
		if err := ValidateRules(rules); err != nil {
			return nil, err
		}
		rules = dropDuplicates(rules)
	default:
		return nil, fmt.Errorf("unknown conflict policy %d", policy)
	}

	ix := &Index{}
	for _, r := range rules {
		if r.Network == 0 && (!ix.hasDefault || r.PrefixLen < ix.defaultLen) {
			ix.defaultIface = r.Interface
			ix.defaultLen = r.PrefixLen
			ix.hasDefault = true
		}
		if r.IsDefault() {
			continue
		}

		n := int(r.PrefixLen)
		if ix.buckets[n] == nil {
			ix.buckets[n] = make(map[uint32]uint16)
		}
		ix.buckets[n][r.Masked()] = r.Interface
		ix.routes++
	}

	for n := MaxPrefixLen; n >= 0; n-- {
		if len(ix.buckets[n]) > 0 {
			ix.lengths = append(ix.lengths, n)
		}
	}

	if log.IsDebugEnabled() {
		for _, lc := range ix.Lengths() {
			log.Get().WithField("prefix_len", lc.PrefixLen).
				WithField("routes", lc.Routes).
				Debug("Indexed prefix length")
		}
	}
	log.Get().WithField("routes", ix.routes).
		WithField("lengths", len(ix.lengths)).
		WithField("default", ix.hasDefault).
		Debug("Built prefix index")

	return ix, nil
}

// Lookup returns the interface of the longest prefix covering dst. The
// default route is not consulted.
func (ix *Index) Lookup(dst uint32) LookupResult {
	for _, n := range ix.lengths {
		if iface, ok := ix.buckets[n][dst&masks[n]]; ok {
			return LookupResult{Interface: iface, PrefixLen: n, Found: true}
		}
	}
	return LookupResult{}
}

// Default returns the default-route interface, if any.
func (ix *Index) Default() (uint16, bool) {
	return ix.defaultIface, ix.hasDefault
}

// Len returns the number of routes in the buckets, default route excluded.
func (ix *Index) Len() int {
	return ix.routes
}

// LengthCount is the number of routes stored for one prefix length.
type LengthCount struct {
	PrefixLen int
	Routes    int
}

// Lengths returns the populated prefix lengths, longest first.
func (ix *Index) Lengths() []LengthCount {
	out := make([]LengthCount, 0, len(ix.lengths))
	for _, n := range ix.lengths {
		out = append(out, LengthCount{PrefixLen: n, Routes: len(ix.buckets[n])})
	}
	return out
}

// String summarizes the index for log lines.
func (ix *Index) String() string {
	def := "none"
	if ix.hasDefault {
		def = fmt.Sprintf("interface %d", ix.defaultIface)
	}
	return fmt.Sprintf("%d routes over %d prefix lengths, default %s", ix.routes, len(ix.lengths), def)
}

// LookupAddr is Lookup on a dotted-decimal address.
func (ix *Index) LookupAddr(addr string) (LookupResult, error) {
	dst, err := netutil.ParseIPv4(addr)
	if err != nil {
		return LookupResult{}, err
	}
	return ix.Lookup(dst), nil
}
