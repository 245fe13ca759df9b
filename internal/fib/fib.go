package fib

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/DuoChen-317/csds425-projs/internal/log"
	"github.com/DuoChen-317/csds425-projs/internal/trace"
)

// ErrEmptyTable is returned when Options.RequireRules is set and the table
// holds no rules.
var ErrEmptyTable = errors.New("forwarding table is empty")

// Options tunes a simulation run. The zero value runs sequentially,
// uncached, aborting on conflicts.
type Options struct {
	Workers      int
	BatchSize    int
	CacheSize    int
	Policy       ConflictPolicy
	RequireRules bool
}

const defaultBatchSize = 4096

// LoadIndex loads a table file and builds its conflict-checked index.
func LoadIndex(tablePath string, policy ConflictPolicy) (*Index, error) {
	rules, err := LoadRules(tablePath)
	if err != nil {
		return nil, err
	}
	ix, err := NewIndex(rules, policy)
	if err != nil {
		return nil, fmt.Errorf("building index from %s: %w", tablePath, err)
	}
	return ix, nil
}

// Simulator replays traces against one forwarding table.
type Simulator struct {
	opts   Options
	engine *Engine
	cache  *LookupCache
}

// NewSimulator loads the table at tablePath and prepares the engine. All
// table errors surface here, before any packet is read.
func NewSimulator(tablePath string, opts Options) (*Simulator, error) {
	rules, err := LoadRules(tablePath)
	if err != nil {
		return nil, err
	}
	if len(rules) == 0 {
		if opts.RequireRules {
			return nil, fmt.Errorf("%s: %w", tablePath, ErrEmptyTable)
		}
		log.Get().WithField("path", tablePath).Warn("Forwarding table is empty, every packet will be dropped")
	}

	sim, err := newSimulator(rules, opts)
	if err != nil {
		return nil, fmt.Errorf("table %s: %w", tablePath, err)
	}
	return sim, nil
}

// NewSimulatorFromRules is NewSimulator for an in-memory rule set.
func NewSimulatorFromRules(rules []Rule, opts Options) (*Simulator, error) {
	if len(rules) == 0 && opts.RequireRules {
		return nil, ErrEmptyTable
	}
	return newSimulator(rules, opts)
}

func newSimulator(rules []Rule, opts Options) (*Simulator, error) {
	if opts.BatchSize <= 0 {
		opts.BatchSize = defaultBatchSize
	}

	ix, err := NewIndex(rules, opts.Policy)
	if err != nil {
		return nil, err
	}

	s := &Simulator{opts: opts}
	if opts.CacheSize > 0 {
		if s.cache, err = NewLookupCache(opts.CacheSize); err != nil {
			return nil, err
		}
	}
	s.engine = NewEngine(ix, s.cache)

	log.Get().WithField("rules", len(rules)).
		WithField("workers", opts.Workers).
		WithField("cache", opts.CacheSize).
		Infof("Loaded forwarding table: %s", ix)
	return s, nil
}

// Index returns the simulator's prefix index.
func (s *Simulator) Index() *Index {
	return s.engine.Index()
}

// Engine returns the simulator's decision engine.
func (s *Simulator) Engine() *Engine {
	return s.engine
}

// Run streams trace records from r and writes one decision line per packet
// to w, in input order. A truncated final record ends the run normally and
// is reported in the stats.
func (s *Simulator) Run(ctx context.Context, r io.Reader, w io.Writer) (*AggregatedStats, error) {
	start := time.Now()
	stats := &AggregatedStats{Routes: s.Index().Len()}
	bw := bufio.NewWriter(w)

	var hits0, miss0 uint64
	if s.cache != nil {
		hits0, miss0 = s.cache.Counts()
	}

	sc := trace.NewScanner(r)
	var runErr error
	if s.opts.Workers > 1 {
		runErr = s.runBatched(ctx, sc, bw, stats)
	} else {
		runErr = s.runSequential(ctx, sc, bw, stats)
	}

	if err := bw.Flush(); err != nil && runErr == nil {
		runErr = fmt.Errorf("flushing decisions: %w", err)
	}

	if s.cache != nil {
		hits, miss := s.cache.Counts()
		stats.CacheHits, stats.CacheMiss = hits-hits0, miss-miss0
	}
	stats.Elapsed = time.Since(start)

	if runErr != nil {
		return stats, runErr
	}

	if err := sc.Err(); err != nil {
		if !errors.Is(err, trace.ErrTruncated) {
			return stats, fmt.Errorf("reading trace: %w", err)
		}
		stats.Truncated = true
		log.Get().WithError(err).WithField("packets", stats.Packets).Warn("Ignoring truncated trace record")
	}
	return stats, nil
}

func (s *Simulator) runSequential(ctx context.Context, sc *trace.Scanner, w *bufio.Writer, stats *AggregatedStats) error {
	for sc.Scan() {
		if stats.Packets%uint64(s.opts.BatchSize) == 0 {
			if err := ctx.Err(); err != nil {
				return err
			}
		}
		p := sc.Packet()
		a := s.engine.Decide(p)
		if err := writeDecision(w, p, a); err != nil {
			return err
		}
		stats.Observe(a)
	}
	return nil
}

func (s *Simulator) runBatched(ctx context.Context, sc *trace.Scanner, w *bufio.Writer, stats *AggregatedStats) error {
	batch := make([]trace.Packet, 0, s.opts.BatchSize)

	flush := func() error {
		actions, err := s.engine.DecideBatch(ctx, batch, s.opts.Workers)
		if err != nil {
			return err
		}
		for i, a := range actions {
			if err := writeDecision(w, batch[i], a); err != nil {
				return err
			}
			stats.Observe(a)
		}
		batch = batch[:0]
		return nil
	}

	for sc.Scan() {
		batch = append(batch, sc.Packet())
		if len(batch) == s.opts.BatchSize {
			if err := flush(); err != nil {
				return err
			}
		}
	}
	if len(batch) > 0 {
		return flush()
	}
	return nil
}

func writeDecision(w *bufio.Writer, p trace.Packet, a Action) error {
	if _, err := w.WriteString(FormatDecision(p, a)); err != nil {
		return fmt.Errorf("writing decision: %w", err)
	}
	return w.WriteByte('\n')
}

// RunFile is Run over the trace file at tracePath.
func (s *Simulator) RunFile(ctx context.Context, tracePath string, w io.Writer) (*AggregatedStats, error) {
	file, err := os.Open(tracePath)
	if err != nil {
		return nil, fmt.Errorf("opening trace %s: %w", tracePath, err)
	}
	defer file.Close()

	stats, err := s.Run(ctx, file, w)
	if err != nil {
		return stats, fmt.Errorf("simulating %s: %w", tracePath, err)
	}
	return stats, nil
}

// Simulate loads the table, then streams one decision line per packet of
// the trace to w.
func Simulate(ctx context.Context, tablePath, tracePath string, w io.Writer, opts Options) (*AggregatedStats, error) {
	sim, err := NewSimulator(tablePath, opts)
	if err != nil {
		return nil, err
	}
	return sim.RunFile(ctx, tracePath, w)
}
