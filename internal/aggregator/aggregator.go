package aggregator

import (
	"cmp"
	"iter"
	"maps"
	"slices"

	jsoniter "github.com/json-iterator/go"

	"github.com/atikulmunna/logkit/internal/model"
)

// IPCount is one ranked source IP.
type IPCount struct {
	IP    string
	Count int
}

// MarshalJSON renders the pair as ["ip", count].
func (c IPCount) MarshalJSON() ([]byte, error) {
	return jsoniter.ConfigCompatibleWithStandardLibrary.Marshal([2]any{c.IP, c.Count})
}

// Tally accumulates level and source IP counts in a single pass.
// It is not safe for concurrent use.
type Tally struct {
	total       int
	levelCounts map[string]int
	ipCounts    map[string]int
}

// New creates an empty Tally.
func New() *Tally {
	return &Tally{
		levelCounts: make(map[string]int),
		ipCounts:    make(map[string]int),
	}
}

// Record adds an event to every counter.
func (t *Tally) Record(e model.Event) {
	t.total++
	t.levelCounts[e.Level]++
	t.ipCounts[e.SourceIP]++
}

// Consume records every event of seq.
func (t *Tally) Consume(seq iter.Seq[model.Event]) {
	for e := range seq {
		t.Record(e)
	}
}

// Total returns the number of recorded events.
func (t *Tally) Total() int {
	return t.total
}

// LevelCounts returns a copy of the per-level counters.
func (t *Tally) LevelCounts() map[string]int {
	return maps.Clone(t.levelCounts)
}

// Top returns the n most frequent source IPs.
func (t *Tally) Top(n int) []IPCount {
	return rank(t.ipCounts, n)
}

// CountByLevel tallies events per level. srcIP (exact) and contains
// (case-insensitive) narrow the events counted; empty strings disable them.
func CountByLevel(events iter.Seq[model.Event], srcIP, contains string) map[string]int {
	f := model.Filter{SourceIP: srcIP, Contains: contains}
	counts := make(map[string]int)
	for e := range events {
		if !f.Match(e) {
			continue
		}
		counts[e.Level]++
	}
	return counts
}

// TopSourceIPs returns the n most frequent source IPs, optionally limited to
// events whose message contains the given text. n <= 0 yields nothing.
func TopSourceIPs(events iter.Seq[model.Event], n int, contains string) []IPCount {
	if n <= 0 {
		return []IPCount{}
	}
	f := model.Filter{Contains: contains}
	counts := make(map[string]int)
	for e := range events {
		if !f.Match(e) {
			continue
		}
		counts[e.SourceIP]++
	}
	return rank(counts, n)
}

// rank orders counts by count descending, IP ascending, and keeps the first n.
func rank(counts map[string]int, n int) []IPCount {
	if n <= 0 {
		return []IPCount{}
	}
	ranked := make([]IPCount, 0, len(counts))
	for ip, c := range counts {
		ranked = append(ranked, IPCount{IP: ip, Count: c})
	}
	slices.SortFunc(ranked, func(a, b IPCount) int {
		if a.Count != b.Count {
			return cmp.Compare(b.Count, a.Count)
		}
		return cmp.Compare(a.IP, b.IP)
	})
	if len(ranked) > n {
		ranked = ranked[:n]
	}
	return ranked
}
