package trace

import (
	"fmt"
	"math/rand"
	"time"
)

// Destination distributions understood by Generator.
const (
	DistUniform = "uniform"
	DistZipf    = "zipf"
)

// GenOptions configures synthetic trace generation.
type GenOptions struct {
	Dist  string
	ZipfS float64

	SrcIP uint32
	TTL   uint8

	// Fractions of packets, each in [0,1], that get a bad checksum, an
	// expiring TTL, or a random destination outside the target set.
	BadChecksumRatio float64
	ExpiredRatio     float64
	RandomDstRatio   float64

	Start    time.Time
	Interval time.Duration
	Seed     int64
}

// Generator produces packets aimed at a fixed set of destinations.
type Generator struct {
	opts    GenOptions
	dsts    []uint32
	rng     *rand.Rand
	sampler func() int
	next    time.Time
}

// NewGenerator validates opts and returns a generator over dsts.
func NewGenerator(dsts []uint32, opts GenOptions) (*Generator, error) {
	if len(dsts) == 0 {
		return nil, fmt.Errorf("no destinations to generate traffic for")
	}
	ratios := []struct {
		name string
		v    float64
	}{
		{"bad checksum ratio", opts.BadChecksumRatio},
		{"expired ratio", opts.ExpiredRatio},
		{"random destination ratio", opts.RandomDstRatio},
	}
	for _, r := range ratios {
		if r.v < 0 || r.v > 1 {
			return nil, fmt.Errorf("%s %v outside [0,1]", r.name, r.v)
		}
	}

	g := &Generator{
		opts: opts,
		dsts: dsts,
		rng:  rand.New(rand.NewSource(opts.Seed)),
		next: opts.Start,
	}

	switch opts.Dist {
	case DistUniform, "":
		g.sampler = func() int {
			return g.rng.Intn(len(g.dsts))
		}
	case DistZipf:
		if opts.ZipfS <= 1 {
			return nil, fmt.Errorf("zipf skew must be > 1, got %v", opts.ZipfS)
		}
		if len(dsts) == 1 {
			g.sampler = func() int { return 0 }
			break
		}
		zipf := rand.NewZipf(g.rng, opts.ZipfS, 1.0, uint64(len(dsts)-1))
		g.sampler = func() int {
			return int(zipf.Uint64())
		}
	default:
		return nil, fmt.Errorf("unknown distribution: %s (use '%s' or '%s')", opts.Dist, DistUniform, DistZipf)
	}

	return g, nil
}

// Next returns the next packet. Timestamps advance by Interval.
func (g *Generator) Next() (Packet, error) {
	dst := g.dsts[g.sampler()]
	if g.opts.RandomDstRatio > 0 && g.rng.Float64() < g.opts.RandomDstRatio {
		dst = g.rng.Uint32()
	}

	ttl := g.opts.TTL
	if g.opts.ExpiredRatio > 0 && g.rng.Float64() < g.opts.ExpiredRatio {
		ttl = uint8(g.rng.Intn(2))
	}

	checksumOK := true
	if g.opts.BadChecksumRatio > 0 && g.rng.Float64() < g.opts.BadChecksumRatio {
		checksumOK = false
	}

	ts := g.next
	g.next = g.next.Add(g.opts.Interval)

	return Synthesize(uint32(ts.Unix()), uint32(ts.Nanosecond()/1000), g.opts.SrcIP, dst, ttl, checksumOK)
}
