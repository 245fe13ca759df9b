package fib

import (
	"bytes"
	"context"
	"errors"
	"math/rand"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/DuoChen-317/csds425-projs/internal/log"
	"github.com/DuoChen-317/csds425-projs/internal/netutil"
	"github.com/DuoChen-317/csds425-projs/internal/trace"
)

func ip(t testing.TB, s string) uint32 {
	t.Helper()
	addr, err := netutil.ParseIPv4(s)
	require.NoError(t, err)
	return addr
}

func rule(t testing.TB, network string, prefixLen, iface uint16) Rule {
	return Rule{Network: ip(t, network), PrefixLen: prefixLen, Interface: iface}
}

func packet(t testing.TB, dst string, ttl uint8, checksumOK bool) trace.Packet {
	t.Helper()
	p, err := trace.Synthesize(1, 0, ip(t, "192.168.0.1"), ip(t, dst), ttl, checksumOK)
	require.NoError(t, err)
	return p
}

func scenarioTable(t testing.TB) []Rule {
	return []Rule{
		rule(t, "0.0.0.0", 0, 5),
		rule(t, "10.0.0.0", 8, 1),
		rule(t, "10.1.0.0", 16, 0),
		rule(t, "10.1.2.0", 24, 7),
	}
}

func writeTable(t *testing.T, rules []Rule) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "table.bin")
	require.NoError(t, SaveRules(path, rules))
	return path
}

func writeTrace(t *testing.T, pkts []trace.Packet) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "trace.bin")
	f, err := os.Create(path)
	require.NoError(t, err)
	w := trace.NewWriter(f)
	for _, p := range pkts {
		require.NoError(t, w.Write(p))
	}
	require.NoError(t, w.Flush())
	require.NoError(t, f.Close())
	return path
}

func TestMask(t *testing.T) {
	assert.Equal(t, uint32(0), Mask(0))
	assert.Equal(t, uint32(0x80000000), Mask(1))
	assert.Equal(t, uint32(0xff000000), Mask(8))
	assert.Equal(t, uint32(0xfffffe00), Mask(23))
	assert.Equal(t, uint32(0xffffffff), Mask(32))
}

func TestDecideScenario(t *testing.T) {
	ix, err := NewIndex([]Rule{rule(t, "0.0.0.0", 0, 5), rule(t, "10.0.0.0", 8, 1)}, ConflictAbort)
	require.NoError(t, err)
	e := NewEngine(ix, nil)

	tests := []struct {
		name string
		pkt  trace.Packet
		want string
	}{
		{"specific route", packet(t, "10.1.2.3", 64, true), "send 1"},
		{"default route", packet(t, "8.8.8.8", 64, true), "default 5"},
		{"bad checksum", packet(t, "10.1.2.3", 64, false), "drop checksum"},
		{"bad checksum and ttl", packet(t, "10.1.2.3", 0, false), "drop checksum"},
		{"ttl one", packet(t, "10.1.2.3", 1, true), "drop expired"},
		{"ttl zero", packet(t, "8.8.8.8", 0, true), "drop expired"},
		{"ttl two", packet(t, "10.1.2.3", 2, true), "send 1"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, e.Decide(tt.pkt).String())
		})
	}
}

func TestDecidePolicyAndUnknown(t *testing.T) {
	ix, err := NewIndex([]Rule{
		rule(t, "10.0.0.0", 8, 1),
		rule(t, "10.1.0.0", 16, 0),
		rule(t, "10.1.2.0", 24, 7),
	}, ConflictAbort)
	require.NoError(t, err)
	e := NewEngine(ix, nil)

	assert.Equal(t, Action{Verdict: VerdictDropPolicy}, e.Decide(packet(t, "10.1.9.9", 64, true)))
	assert.Equal(t, Action{Verdict: VerdictSend, Interface: 7}, e.Decide(packet(t, "10.1.2.200", 64, true)))
	assert.Equal(t, Action{Verdict: VerdictSend, Interface: 1}, e.Decide(packet(t, "10.200.0.1", 64, true)))
	assert.Equal(t, Action{Verdict: VerdictDropUnknown}, e.Decide(packet(t, "11.0.0.1", 64, true)))
}

func TestRouteIgnoresGates(t *testing.T) {
	ix, err := NewIndex(scenarioTable(t), ConflictAbort)
	require.NoError(t, err)
	e := NewEngine(ix, nil)

	a, res := e.Route(ip(t, "10.1.2.3"))
	assert.Equal(t, Action{Verdict: VerdictSend, Interface: 7}, a)
	assert.Equal(t, LookupResult{Interface: 7, PrefixLen: 24, Found: true}, res)

	a, res = e.Route(ip(t, "10.1.9.9"))
	assert.Equal(t, Action{Verdict: VerdictDropPolicy}, a)
	assert.Equal(t, 16, res.PrefixLen)

	a, res = e.Route(ip(t, "192.0.2.1"))
	assert.Equal(t, Action{Verdict: VerdictDefault, Interface: 5}, a)
	assert.False(t, res.Found)
}

func TestActionStrings(t *testing.T) {
	assert.Equal(t, "drop checksum", Action{Verdict: VerdictDropChecksum}.String())
	assert.Equal(t, "drop expired", Action{Verdict: VerdictDropExpired}.String())
	assert.Equal(t, "drop policy", Action{Verdict: VerdictDropPolicy}.String())
	assert.Equal(t, "send 3", Action{Verdict: VerdictSend, Interface: 3}.String())
	assert.Equal(t, "default 65535", Action{Verdict: VerdictDefault, Interface: 65535}.String())
	assert.Equal(t, "drop unknown", Action{Verdict: VerdictDropUnknown, Interface: 9}.String())
}

func TestIndexLookup(t *testing.T) {
	ix, err := NewIndex(scenarioTable(t), ConflictAbort)
	require.NoError(t, err)

	res, err := ix.LookupAddr("10.1.2.3")
	require.NoError(t, err)
	assert.Equal(t, LookupResult{Interface: 7, PrefixLen: 24, Found: true}, res)

	res, err = ix.LookupAddr("10.1.3.3")
	require.NoError(t, err)
	assert.Equal(t, LookupResult{Interface: 0, PrefixLen: 16, Found: true}, res)

	res, err = ix.LookupAddr("172.16.0.1")
	require.NoError(t, err)
	assert.False(t, res.Found)

	_, err = ix.LookupAddr("not-an-ip")
	assert.Error(t, err)

	iface, ok := ix.Default()
	assert.True(t, ok)
	assert.Equal(t, uint16(5), iface)
	assert.Equal(t, 3, ix.Len())
	assert.Equal(t, []LengthCount{{24, 1}, {16, 1}, {8, 1}}, ix.Lengths())
	assert.Equal(t, "3 routes over 3 prefix lengths, default interface 5", ix.String())
}

func TestIndexMasksHostBits(t *testing.T) {
	ix, err := NewIndex([]Rule{rule(t, "10.1.2.3", 8, 4)}, ConflictAbort)
	require.NoError(t, err)

	res := ix.Lookup(ip(t, "10.250.0.1"))
	assert.Equal(t, LookupResult{Interface: 4, PrefixLen: 8, Found: true}, res)
}

func TestIndexZeroLengthNonZeroNetwork(t *testing.T) {
	// Only an all-zero address marks a default route; 10.0.0.0/0 is an
	// ordinary catch-all route.
	ix, err := NewIndex([]Rule{rule(t, "10.0.0.0", 0, 3)}, ConflictAbort)
	require.NoError(t, err)
	e := NewEngine(ix, nil)

	_, ok := ix.Default()
	assert.False(t, ok)
	assert.Equal(t, "send 3", e.Decide(packet(t, "8.8.8.8", 64, true)).String())
}

func TestIndexZeroAddressRulesUseLongestMatch(t *testing.T) {
	ix, err := NewIndex([]Rule{
		rule(t, "0.0.0.0", 8, 2),
		rule(t, "0.0.0.0", 1, 6),
	}, ConflictAbort)
	require.NoError(t, err)
	e := NewEngine(ix, nil)

	iface, ok := ix.Default()
	assert.True(t, ok)
	assert.Equal(t, uint16(6), iface, "shortest zero-address rule is the fallback")
	assert.Equal(t, 2, ix.Len())
	assert.Equal(t, "send 2", e.Decide(packet(t, "0.1.2.3", 64, true)).String())
	assert.Equal(t, "send 6", e.Decide(packet(t, "100.1.2.3", 64, true)).String())
	assert.Equal(t, "default 6", e.Decide(packet(t, "200.1.2.3", 64, true)).String())
}

func TestIndexZeroAddressRuleOrderIndependent(t *testing.T) {
	zero8 := rule(t, "0.0.0.0", 8, 3)
	zero0 := rule(t, "0.0.0.0", 0, 5)

	for _, rules := range [][]Rule{{zero8, zero0}, {zero0, zero8}} {
		ix, err := NewIndex(rules, ConflictAbort)
		require.NoError(t, err)
		e := NewEngine(ix, nil)

		assert.Equal(t, 1, ix.Len())
		assert.Equal(t, Action{Verdict: VerdictSend, Interface: 3}, e.Decide(packet(t, "0.1.2.3", 64, true)))
		assert.Equal(t, Action{Verdict: VerdictDefault, Interface: 5}, e.Decide(packet(t, "8.8.8.8", 64, true)))
	}
}

func TestIndexZeroAddressWithoutDefaultRoute(t *testing.T) {
	ix, err := NewIndex([]Rule{rule(t, "0.0.0.0", 8, 3)}, ConflictAbort)
	require.NoError(t, err)
	e := NewEngine(ix, nil)

	assert.Equal(t, "send 3", e.Decide(packet(t, "0.0.0.9", 64, true)).String())
	assert.Equal(t, "default 3", e.Decide(packet(t, "8.8.8.8", 64, true)).String())
}

func TestNewIndexDebugLogsLengths(t *testing.T) {
	var buf bytes.Buffer
	log.InitWithOutput(log.Config{Level: "debug", Format: "text"}, &buf)
	t.Cleanup(func() { log.InitWithOutput(log.Config{Level: "info", Format: "text"}, os.Stderr) })

	_, err := NewIndex(scenarioTable(t), ConflictAbort)
	require.NoError(t, err)
	assert.Contains(t, buf.String(), "Indexed prefix length")
	assert.Contains(t, buf.String(), "prefix_len=24")
}

func TestIndexEmpty(t *testing.T) {
	ix, err := NewIndex(nil, ConflictAbort)
	require.NoError(t, err)
	e := NewEngine(ix, nil)

	assert.Equal(t, 0, ix.Len())
	assert.Empty(t, ix.Lengths())
	assert.Equal(t, "drop unknown", e.Decide(packet(t, "1.2.3.4", 64, true)).String())
}

func TestIndexHostRoute(t *testing.T) {
	ix, err := NewIndex([]Rule{
		rule(t, "10.0.0.0", 8, 1),
		rule(t, "10.0.0.9", 32, 9),
	}, ConflictAbort)
	require.NoError(t, err)

	assert.Equal(t, uint16(9), ix.Lookup(ip(t, "10.0.0.9")).Interface)
	assert.Equal(t, uint16(1), ix.Lookup(ip(t, "10.0.0.8")).Interface)
}

func TestCheckConflictsDuplicate(t *testing.T) {
	rules := []Rule{
		rule(t, "10.0.0.0", 8, 1),
		rule(t, "192.168.0.0", 16, 3),
		rule(t, "10.0.0.0", 8, 2),
	}

	err := CheckConflicts(rules)
	require.Error(t, err)

	var conflict *ConflictError
	require.True(t, errors.As(err, &conflict))
	assert.Equal(t, 1, conflict.FirstPos)
	assert.Equal(t, 3, conflict.SecondPos)
	assert.Equal(t, uint16(1), conflict.First.Interface)
	assert.Equal(t, uint16(2), conflict.Second.Interface)
	assert.Contains(t, err.Error(), "10.0.0.0/8")

	_, err = NewIndex(rules, ConflictAbort)
	require.True(t, errors.As(err, &conflict))
}

func TestCheckConflictsAfterMasking(t *testing.T) {
	err := CheckConflicts([]Rule{
		rule(t, "10.1.0.0", 8, 1),
		rule(t, "10.2.0.0", 8, 2),
	})
	var conflict *ConflictError
	require.True(t, errors.As(err, &conflict))
	assert.Contains(t, err.Error(), "10.0.0.0/8")
}

func TestCheckConflictsReportsFirstPairInFileOrder(t *testing.T) {
	rules := []Rule{
		rule(t, "172.16.0.0", 12, 1),
		rule(t, "10.0.0.0", 8, 1),
		rule(t, "10.0.0.0", 8, 2),
		rule(t, "172.16.0.0", 12, 2),
	}
	err := CheckConflicts(rules)
	var conflict *ConflictError
	require.True(t, errors.As(err, &conflict))
	assert.Equal(t, 2, conflict.FirstPos)
	assert.Equal(t, 3, conflict.SecondPos)
}

func TestCheckConflictsSamePrefixDifferentLength(t *testing.T) {
	assert.NoError(t, CheckConflicts([]Rule{
		rule(t, "10.0.0.0", 8, 1),
		rule(t, "10.0.0.0", 16, 2),
		rule(t, "0.0.0.0", 0, 3),
		rule(t, "0.0.0.0", 8, 4),
	}))
}

func TestCheckConflictsDefaultVersusZeroLength(t *testing.T) {
	err := CheckConflicts([]Rule{
		rule(t, "0.0.0.0", 0, 5),
		rule(t, "10.0.0.0", 0, 1),
	})
	var conflict *ConflictError
	assert.True(t, errors.As(err, &conflict))
}

func TestFindConflicts(t *testing.T) {
	rules := []Rule{
		rule(t, "10.0.0.0", 8, 1),
		rule(t, "10.0.0.0", 8, 2),
		rule(t, "10.9.9.9", 8, 3),
		rule(t, "1.0.0.0", 8, 4),
		{Network: 1, PrefixLen: 40, Interface: 1},
	}
	got := FindConflicts(rules)
	want := []ConflictError{
		{First: rules[0], Second: rules[1], FirstPos: 1, SecondPos: 2},
		{First: rules[0], Second: rules[2], FirstPos: 1, SecondPos: 3},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("FindConflicts mismatch (-want +got):\n%s", diff)
	}
}

func TestNewIndexKeepFirst(t *testing.T) {
	rules := []Rule{
		rule(t, "10.0.0.0", 8, 1),
		rule(t, "10.0.0.0", 8, 2),
		rule(t, "0.0.0.0", 0, 5),
		rule(t, "0.0.0.0", 0, 6),
	}
	ix, err := NewIndex(rules, ConflictKeepFirst)
	require.NoError(t, err)

	assert.Equal(t, uint16(1), ix.Lookup(ip(t, "10.1.1.1")).Interface)
	iface, ok := ix.Default()
	assert.True(t, ok)
	assert.Equal(t, uint16(5), iface)
}

func TestNewIndexInvalidPrefixLen(t *testing.T) {
	rules := []Rule{
		{Network: 1, PrefixLen: 33, Interface: 1},
		rule(t, "10.0.0.0", 8, 1),
		{Network: 2, PrefixLen: 64, Interface: 1},
	}
	for _, policy := range []ConflictPolicy{ConflictAbort, ConflictKeepFirst} {
		_, err := NewIndex(rules, policy)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "rule 1")
		assert.Contains(t, err.Error(), "rule 3")
	}
	_, err := NewIndex(nil, ConflictPolicy(9))
	assert.Error(t, err)
}

// bruteForce scans every rule, the way a linear FIB would.
func bruteForce(rules []Rule, dst uint32) LookupResult {
	best := LookupResult{}
	for _, r := range rules {
		if r.IsDefault() {
			continue
		}
		n := int(r.PrefixLen)
		if dst&Mask(n) == r.Network&Mask(n) && (!best.Found || n > best.PrefixLen) {
			best = LookupResult{Interface: r.Interface, PrefixLen: n, Found: true}
		}
	}
	return best
}

func TestLookupMatchesBruteForce(t *testing.T) {
	rng := rand.New(rand.NewSource(425))

	var rules []Rule
	seen := map[prefixKey]bool{}
	for len(rules) < 500 {
		r := Rule{
			// Cluster networks so prefixes nest.
			Network:   0x0a000000 | rng.Uint32()&0x00ffffff,
			PrefixLen: uint16(rng.Intn(MaxPrefixLen + 1)),
			Interface: uint16(rng.Intn(8)),
		}
		if seen[keyOf(r)] || r.IsDefault() {
			continue
		}
		seen[keyOf(r)] = true
		rules = append(rules, r)
	}

	ix, err := NewIndex(rules, ConflictAbort)
	require.NoError(t, err)

	for i := 0; i < 5000; i++ {
		dst := 0x0a000000 | rng.Uint32()&0x00ffffff
		if i%10 == 0 {
			dst = rng.Uint32()
		}
		require.Equal(t, bruteForce(rules, dst), ix.Lookup(dst), "dst %s", netutil.FormatIPv4(dst))
	}
}

func TestLookupCache(t *testing.T) {
	ix, err := NewIndex(scenarioTable(t), ConflictAbort)
	require.NoError(t, err)
	cache, err := NewLookupCache(2)
	require.NoError(t, err)
	e := NewEngine(ix, cache)

	p := packet(t, "10.1.2.3", 64, true)
	assert.Equal(t, "send 7", e.Decide(p).String())
	assert.Equal(t, "send 7", e.Decide(p).String())
	assert.Equal(t, "default 5", e.Decide(packet(t, "8.8.8.8", 64, true)).String())
	assert.Equal(t, "default 5", e.Decide(packet(t, "8.8.8.8", 64, true)).String())

	hits, misses := cache.Counts()
	assert.Equal(t, uint64(2), hits)
	assert.Equal(t, uint64(2), misses)
	assert.Equal(t, 2, cache.Len())

	// Gates run before the cache is consulted.
	e.Decide(packet(t, "1.1.1.1", 1, true))
	hits2, misses2 := cache.Counts()
	assert.Equal(t, hits, hits2)
	assert.Equal(t, misses, misses2)

	cache.Purge()
	assert.Equal(t, 0, cache.Len())

	_, err = NewLookupCache(0)
	assert.Error(t, err)
}

func randomPackets(t testing.TB, n int) []trace.Packet {
	rng := rand.New(rand.NewSource(7))
	dsts := []string{"10.1.2.3", "10.1.3.4", "10.9.9.9", "8.8.8.8", "10.1.2.254"}
	pkts := make([]trace.Packet, n)
	for i := range pkts {
		p, err := trace.Synthesize(uint32(i), uint32(rng.Intn(1000000)),
			ip(t, "192.168.0.1"), ip(t, dsts[rng.Intn(len(dsts))]),
			uint8(rng.Intn(4)), rng.Intn(10) != 0)
		require.NoError(t, err)
		pkts[i] = p
	}
	return pkts
}

func TestDecideBatchMatchesSequential(t *testing.T) {
	ix, err := NewIndex(scenarioTable(t), ConflictAbort)
	require.NoError(t, err)
	e := NewEngine(ix, nil)
	pkts := randomPackets(t, 1001)

	want := make([]Action, len(pkts))
	for i, p := range pkts {
		want[i] = e.Decide(p)
	}

	for _, workers := range []int{0, 1, 3, 8, 2000} {
		got, err := e.DecideBatch(context.Background(), pkts, workers)
		require.NoError(t, err)
		assert.Equal(t, want, got, "workers=%d", workers)
	}
}

func TestDecideBatchCancelled(t *testing.T) {
	ix, err := NewIndex(scenarioTable(t), ConflictAbort)
	require.NoError(t, err)
	e := NewEngine(ix, nil)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = e.DecideBatch(ctx, randomPackets(t, 10), 4)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestFormatDecision(t *testing.T) {
	p, err := trace.Synthesize(1700000000, 42, 1, 2, 64, true)
	require.NoError(t, err)
	assert.Equal(t, "1700000000.000042 send 3", FormatDecision(p, Action{Verdict: VerdictSend, Interface: 3}))
}

func TestSimulate(t *testing.T) {
	table := writeTable(t, []Rule{rule(t, "0.0.0.0", 0, 5), rule(t, "10.0.0.0", 8, 1)})
	pkts := []trace.Packet{
		packet(t, "10.1.2.3", 64, true),
		packet(t, "8.8.8.8", 64, true),
		packet(t, "10.1.2.3", 64, false),
		packet(t, "10.1.2.3", 1, true),
	}
	pkts[1].Micros = 500000
	pkts[1].Timestamp = 1.5
	tracePath := writeTrace(t, pkts)

	var out bytes.Buffer
	stats, err := Simulate(context.Background(), table, tracePath, &out, Options{})
	require.NoError(t, err)

	want := "1.000000 send 1\n" +
		"1.500000 default 5\n" +
		"1.000000 drop checksum\n" +
		"1.000000 drop expired\n"
	assert.Equal(t, want, out.String())

	assert.Equal(t, uint64(4), stats.Packets)
	assert.Equal(t, uint64(1), stats.Count(VerdictSend))
	assert.Equal(t, uint64(1), stats.Count(VerdictDefault))
	assert.Equal(t, uint64(2), stats.Forwarded())
	assert.Equal(t, uint64(2), stats.Dropped())
	assert.Equal(t, 1, stats.Routes)
	assert.False(t, stats.Truncated)
}

func TestSimulateConflictAbortsBeforePackets(t *testing.T) {
	table := writeTable(t, []Rule{rule(t, "10.0.0.0", 8, 1), rule(t, "10.0.0.0", 8, 2)})
	tracePath := writeTrace(t, []trace.Packet{packet(t, "10.1.2.3", 64, true)})

	var out bytes.Buffer
	_, err := Simulate(context.Background(), table, tracePath, &out, Options{})
	require.Error(t, err)

	var conflict *ConflictError
	assert.True(t, errors.As(err, &conflict))
	assert.Contains(t, err.Error(), table)
	assert.Empty(t, out.String())
}

func TestSimulateMissingFiles(t *testing.T) {
	dir := t.TempDir()
	table := writeTable(t, scenarioTable(t))

	_, err := Simulate(context.Background(), filepath.Join(dir, "nope.bin"), table, &bytes.Buffer{}, Options{})
	require.Error(t, err)
	assert.ErrorIs(t, err, os.ErrNotExist)
	assert.Contains(t, err.Error(), "nope.bin")

	_, err = Simulate(context.Background(), table, filepath.Join(dir, "gone.bin"), &bytes.Buffer{}, Options{})
	require.Error(t, err)
	assert.ErrorIs(t, err, os.ErrNotExist)
	assert.Contains(t, err.Error(), "gone.bin")
}

func TestSimulateTruncatedTrace(t *testing.T) {
	table := writeTable(t, scenarioTable(t))
	tracePath := writeTrace(t, randomPackets(t, 3))

	f, err := os.OpenFile(tracePath, os.O_APPEND|os.O_WRONLY, 0)
	require.NoError(t, err)
	_, err = f.Write(make([]byte, trace.RecordSize-1))
	require.NoError(t, err)
	require.NoError(t, f.Close())

	var out bytes.Buffer
	stats, err := Simulate(context.Background(), table, tracePath, &out, Options{})
	require.NoError(t, err)
	assert.True(t, stats.Truncated)
	assert.Equal(t, uint64(3), stats.Packets)
	assert.Len(t, strings.Split(strings.TrimSpace(out.String()), "\n"), 3)
}

func TestSimulateTruncatedTable(t *testing.T) {
	table := writeTable(t, []Rule{rule(t, "10.0.0.0", 8, 1)})
	f, err := os.OpenFile(table, os.O_APPEND|os.O_WRONLY, 0)
	require.NoError(t, err)
	_, err = f.Write([]byte{0, 0, 0})
	require.NoError(t, err)
	require.NoError(t, f.Close())

	ix, err := LoadIndex(table, ConflictAbort)
	require.NoError(t, err)
	assert.Equal(t, 1, ix.Len())
}

func TestSimulateEmptyTable(t *testing.T) {
	table := writeTable(t, nil)
	tracePath := writeTrace(t, []trace.Packet{packet(t, "10.1.2.3", 64, true)})

	var out bytes.Buffer
	_, err := Simulate(context.Background(), table, tracePath, &out, Options{})
	require.NoError(t, err)
	assert.Equal(t, "1.000000 drop unknown\n", out.String())

	_, err = Simulate(context.Background(), table, tracePath, &out, Options{RequireRules: true})
	assert.ErrorIs(t, err, ErrEmptyTable)

	_, err = NewSimulatorFromRules(nil, Options{RequireRules: true})
	assert.ErrorIs(t, err, ErrEmptyTable)
}

func TestSimulateParallelAndCachedMatchSequential(t *testing.T) {
	table := writeTable(t, scenarioTable(t))
	tracePath := writeTrace(t, randomPackets(t, 2500))

	var want bytes.Buffer
	wantStats, err := Simulate(context.Background(), table, tracePath, &want, Options{})
	require.NoError(t, err)

	variants := []Options{
		{},
		{Workers: 4, BatchSize: 100},
		{Workers: 3, BatchSize: 7, CacheSize: 2},
		{CacheSize: 64},
	}
	for _, opts := range variants {
		var got bytes.Buffer
		stats, err := Simulate(context.Background(), table, tracePath, &got, opts)
		require.NoError(t, err)
		assert.Equal(t, want.String(), got.String(), "options %+v", opts)
		assert.Equal(t, wantStats.Verdicts, stats.Verdicts)
		if opts.CacheSize > 0 {
			assert.NotZero(t, stats.CacheHits+stats.CacheMiss)
		}
	}
}

func TestSimulatorRunCancelled(t *testing.T) {
	sim, err := NewSimulatorFromRules(scenarioTable(t), Options{})
	require.NoError(t, err)

	var in bytes.Buffer
	w := trace.NewWriter(&in)
	for _, p := range randomPackets(t, 10) {
		require.NoError(t, w.Write(p))
	}
	require.NoError(t, w.Flush())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = sim.Run(ctx, &in, &bytes.Buffer{})
	assert.ErrorIs(t, err, context.Canceled)
}
