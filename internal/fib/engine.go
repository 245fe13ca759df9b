package fib

import (
	"context"

	"golang.org/x/sync/errgroup"

	"github.com/DuoChen-317/csds425-projs/internal/trace"
)

// Engine turns packets into forwarding actions against a fixed index.
type Engine struct {
	index *Index
	cache *LookupCache
}

// NewEngine returns an engine over ix. cache may be nil.
func NewEngine(ix *Index, cache *LookupCache) *Engine {
	return &Engine{index: ix, cache: cache}
}

// Index returns the engine's index.
func (e *Engine) Index() *Index {
	return e.index
}

func (e *Engine) lookup(dst uint32) LookupResult {
	if e.cache == nil {
		return e.index.Lookup(dst)
	}
	if res, ok := e.cache.Get(dst); ok {
		return res
	}
	res := e.index.Lookup(dst)
	e.cache.Add(dst, res)
	return res
}

// Decide applies the checks in order, first match wins: checksum, TTL,
// longest prefix match, default route.
func (e *Engine) Decide(p trace.Packet) Action {
	if !p.ChecksumOK {
		return Action{Verdict: VerdictDropChecksum}
	}
	// A packet with TTL 1 cannot survive another hop.
	if p.TTL <= 1 {
		return Action{Verdict: VerdictDropExpired}
	}

	a, _ := e.Route(p.DstIP)
	return a
}

// Route resolves dst without the header checks: longest prefix match,
// then the default route.
func (e *Engine) Route(dst uint32) (Action, LookupResult) {
	res := e.lookup(dst)
	switch {
	case res.Found && res.Interface == PolicyDropInterface:
		return Action{Verdict: VerdictDropPolicy}, res
	case res.Found:
		return Action{Verdict: VerdictSend, Interface: res.Interface}, res
	}

	if iface, ok := e.index.Default(); ok {
		return Action{Verdict: VerdictDefault, Interface: iface}, res
	}
	return Action{Verdict: VerdictDropUnknown}, res
}

// DecideBatch decides every packet of pkts, splitting the batch across up
// to workers goroutines. Results are positionally aligned with pkts.
func (e *Engine) DecideBatch(ctx context.Context, pkts []trace.Packet, workers int) ([]Action, error) {
	actions := make([]Action, len(pkts))

	if workers <= 1 || len(pkts) < 2 {
		for i := range pkts {
			actions[i] = e.Decide(pkts[i])
		}
		return actions, ctx.Err()
	}

	if workers > len(pkts) {
		workers = len(pkts)
	}
	chunk := (len(pkts) + workers - 1) / workers

	g, ctx := errgroup.WithContext(ctx)
	for start := 0; start < len(pkts); start += chunk {
		start := start
		end := min(start+chunk, len(pkts))
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			for i := start; i < end; i++ {
				actions[i] = e.Decide(pkts[i])
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return actions, nil
}

// FormatDecision renders the output line "<timestamp> <action>".
func FormatDecision(p trace.Packet, a Action) string {
	return trace.FormatTimestamp(p.Timestamp) + " " + a.String()
}
