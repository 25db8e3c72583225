package main

import (
	"fmt"
	"io"
	"math"
	"sort"
	"strings"
	"sync"

	"github.com/GreatValueCreamSoda/govidcompare/metrics"
)

// scoreSummary accumulates per-component and aggregate scores across the
// run and prints a min/max/average/median/stddev table once the comparison
// finishes.
type scoreSummary struct {
	mu     sync.Mutex
	scores map[string][]float64
	order  []string
}

func newScoreSummary() *scoreSummary {
	return &scoreSummary{scores: make(map[string][]float64)}
}

// add is the comparator's record callback.
func (s *scoreSummary) add(_ int, res metrics.Result) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i, label := range res.Labels {
		s.append(label, res.Scores[i])
	}
	s.append("aggregate", res.Aggregate)
}

func (s *scoreSummary) append(name string, value float64) {
	if _, seen := s.scores[name]; !seen {
		s.order = append(s.order, name)
	}
	s.scores[name] = append(s.scores[name], value)
}

func (s *scoreSummary) print(w io.Writer) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(s.order) == 0 {
		fmt.Fprintln(w, "No scores to report")
		return
	}

	fmt.Fprintln(w)
	fmt.Fprintln(w, "Score summary")
	fmt.Fprintln(w, "=============")

	for _, name := range s.order {
		values := s.scores[name]
		if len(values) == 0 {
			continue
		}
		printScoreSummary(w, name, values)
	}
}

func printScoreSummary(w io.Writer, name string, values []float64) {
	n := len(values)

	sorted := make([]float64, n)
	copy(sorted, values)
	sort.Float64s(sorted)

	min := sorted[0]
	max := sorted[n-1]

	var sum float64
	for _, v := range values {
		sum += v
	}
	avg := sum / float64(n)

	var median float64
	if n%2 == 1 {
		median = sorted[n/2]
	} else {
		median = (sorted[n/2-1] + sorted[n/2]) / 2
	}

	var variance float64
	for _, v := range values {
		d := v - avg
		variance += d * d
	}
	variance /= float64(n)
	stddev := math.Sqrt(variance)

	fmt.Fprintln(w)
	fmt.Fprintln(w, name)
	fmt.Fprintln(w, strings.Repeat("-", len(name)))
	fmt.Fprintf(w, "  min     : %s\n", formatSummaryValue(min))
	fmt.Fprintf(w, "  max     : %s\n", formatSummaryValue(max))
	fmt.Fprintf(w, "  average : %s\n", formatSummaryValue(avg))
	fmt.Fprintf(w, "  median  : %s\n", formatSummaryValue(median))
	fmt.Fprintf(w, "  stddev  : %s\n", formatSummaryValue(stddev))
}

// formatSummaryValue mirrors the stats sink's rendering of saturated PSNR
// scores.
func formatSummaryValue(v float64) string {
	if math.IsInf(v, 1) {
		return "inf"
	}
	if math.IsNaN(v) {
		return "nan"
	}
	return fmt.Sprintf("%.6f", v)
}
