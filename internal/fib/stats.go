package fib

import (
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/olekukonko/tablewriter"
	"github.com/prometheus/client_golang/prometheus"
)

// AggregatedStats summarizes one simulation run.
type AggregatedStats struct {
	Packets   uint64
	Verdicts  [numVerdicts]uint64
	CacheHits uint64
	CacheMiss uint64
	// Truncated is set when the trace ended in a partial record.
	Truncated bool
	Routes    int
	Elapsed   time.Duration
}

// Observe counts one decision.
func (s *AggregatedStats) Observe(a Action) {
	s.Packets++
	if a.Verdict < numVerdicts {
		s.Verdicts[a.Verdict]++
	}
}

// Count returns the number of packets that got verdict v.
func (s *AggregatedStats) Count(v Verdict) uint64 {
	if v >= numVerdicts {
		return 0
	}
	return s.Verdicts[v]
}

// Forwarded returns the number of packets sent on a route or the default.
func (s *AggregatedStats) Forwarded() uint64 {
	return s.Verdicts[VerdictSend] + s.Verdicts[VerdictDefault]
}

// Dropped returns the number of packets dropped for any reason.
func (s *AggregatedStats) Dropped() uint64 {
	return s.Packets - s.Forwarded()
}

// HitRate returns the lookup cache hit rate in percent.
func (s *AggregatedStats) HitRate() float64 {
	if s.CacheHits+s.CacheMiss == 0 {
		return 0
	}
	return float64(s.CacheHits) / float64(s.CacheHits+s.CacheMiss) * 100
}

// Print writes a verdict table followed by the totals.
func (s *AggregatedStats) Print(w io.Writer) {
	table := tablewriter.NewWriter(w)
	table.SetHeader([]string{"Verdict", "Packets", "Share"})
	table.SetAlignment(tablewriter.ALIGN_RIGHT)
	for _, v := range Verdicts() {
		share := float64(0)
		if s.Packets > 0 {
			share = float64(s.Verdicts[v]) / float64(s.Packets) * 100
		}
		table.Append([]string{v.String(), strconv.FormatUint(s.Verdicts[v], 10), fmt.Sprintf("%.2f%%", share)})
	}
	table.SetFooter([]string{"total", strconv.FormatUint(s.Packets, 10), ""})
	table.Render()

	fmt.Fprintf(w, "Routes:     %d\n", s.Routes)
	fmt.Fprintf(w, "Forwarded:  %d\n", s.Forwarded())
	fmt.Fprintf(w, "Dropped:    %d\n", s.Dropped())
	if s.CacheHits+s.CacheMiss > 0 {
		fmt.Fprintf(w, "Cache Hits: %d\n", s.CacheHits)
		fmt.Fprintf(w, "Cache Miss: %d\n", s.CacheMiss)
		fmt.Fprintf(w, "Hit Rate:   %.2f%%\n", s.HitRate())
	}
	if s.Truncated {
		fmt.Fprintln(w, "Trace:      truncated tail ignored")
	}
	fmt.Fprintf(w, "Elapsed:    %s\n", s.Elapsed)
}

// Registry returns a prometheus registry holding the run's counters.
func (s *AggregatedStats) Registry() *prometheus.Registry {
	reg := prometheus.NewRegistry()

	verdicts := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "fibsim",
		Name:      "decisions_total",
		Help:      "Forwarding decisions by verdict.",
	}, []string{"verdict"})
	for _, v := range Verdicts() {
		verdicts.WithLabelValues(v.Label()).Add(float64(s.Verdicts[v]))
	}

	packets := prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "fibsim",
		Name:      "packets_total",
		Help:      "Trace records processed.",
	})
	packets.Add(float64(s.Packets))

	cache := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "fibsim",
		Name:      "lookup_cache_total",
		Help:      "Lookup cache probes by result.",
	}, []string{"result"})
	cache.WithLabelValues("hit").Add(float64(s.CacheHits))
	cache.WithLabelValues("miss").Add(float64(s.CacheMiss))

	routes := prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "fibsim",
		Name:      "routes",
		Help:      "Routes in the prefix index, default route excluded.",
	})
	routes.Set(float64(s.Routes))

	duration := prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "fibsim",
		Name:      "run_duration_seconds",
		Help:      "Wall time of the decision run.",
	})
	duration.Set(s.Elapsed.Seconds())

	reg.MustRegister(verdicts, packets, cache, routes, duration)
	return reg
}

// WriteMetricsFile writes the counters in the node_exporter textfile format.
func (s *AggregatedStats) WriteMetricsFile(filename string) error {
	if err := prometheus.WriteToTextfile(filename, s.Registry()); err != nil {
		return fmt.Errorf("writing metrics file %s: %w", filename, err)
	}
	return nil
}
