package evaluation

import (
	"math"
	"slices"
	"time"
)

// Overlap is the Jaccard similarity of two spans.
func Overlap(a, b Span) float64 {
	inter := min(a.End, b.End) - max(a.Start, b.Start)
	if inter < 0 {
		inter = 0
	}
	union := max(a.End, b.End) - min(a.Start, b.Start)
	if union <= 0 {
		return 0
	}
	return float64(inter) / float64(union)
}

// MatchSpans pairs each prediction with the best unmatched ground truth
// span. Predictions below threshold are false positives and unmatched
// ground truth spans are false negatives.
func MatchSpans(predictions, truth []Span, threshold float64) (tp []Match, fp, fn []Span) {
	matched := make([]bool, len(truth))

	for _, pred := range predictions {
		best, bestIdx := 0.0, -1
		for i, gt := range truth {
			if matched[i] {
				continue
			}
			if o := Overlap(pred, gt); o > best {
				best, bestIdx = o, i
			}
		}

		if bestIdx >= 0 && best >= threshold {
			matched[bestIdx] = true
			tp = append(tp, Match{Prediction: pred, GroundTruth: truth[bestIdx], Overlap: best})
			continue
		}
		fp = append(fp, pred)
	}

	for i, gt := range truth {
		if !matched[i] {
			fn = append(fn, gt)
		}
	}
	return tp, fp, fn
}

// ComputeScores derives precision, recall and F1 from raw counts, rounded
// to four places.
func ComputeScores(tp, fp, fn int) Scores {
	s := Scores{TruePositives: tp, FalsePositives: fp, FalseNegatives: fn}
	if tp+fp > 0 {
		s.Precision = float64(tp) / float64(tp+fp)
	}
	if tp+fn > 0 {
		s.Recall = float64(tp) / float64(tp+fn)
	}
	if s.Precision+s.Recall > 0 {
		s.F1 = 2 * s.Precision * s.Recall / (s.Precision + s.Recall)
	}
	s.Precision = round(s.Precision, 4)
	s.Recall = round(s.Recall, 4)
	s.F1 = round(s.F1, 4)
	return s
}

// ScoresByType attributes hits and misses to the ground truth type and
// false positives to the predicted type.
func ScoresByType(results []CaseResult) map[string]Scores {
	type counts struct{ tp, fp, fn int }
	byType := map[string]*counts{}
	get := func(t string) *counts {
		c, ok := byType[t]
		if !ok {
			c = &counts{}
			byType[t] = c
		}
		return c
	}

	for _, r := range results {
		if !r.Success {
			continue
		}
		for _, m := range r.TruePositives {
			get(m.GroundTruth.Type).tp++
		}
		for _, s := range r.FalsePositives {
			get(s.Type).fp++
		}
		for _, s := range r.FalseNegatives {
			get(s.Type).fn++
		}
	}

	out := make(map[string]Scores, len(byType))
	for t, c := range byType {
		out[t] = ComputeScores(c.tp, c.fp, c.fn)
	}
	return out
}

// Latencies summarizes durations in milliseconds. Percentiles use linear
// interpolation between closest ranks.
func Latencies(durations []time.Duration) LatencyStats {
	if len(durations) == 0 {
		return LatencyStats{}
	}

	ms := make([]float64, len(durations))
	var sum float64
	for i, d := range durations {
		ms[i] = float64(d.Microseconds()) / 1000
		sum += ms[i]
	}
	slices.Sort(ms)

	return LatencyStats{
		P50:  round(percentile(ms, 50), 3),
		P95:  round(percentile(ms, 95), 3),
		P99:  round(percentile(ms, 99), 3),
		Mean: round(sum/float64(len(ms)), 3),
		Max:  round(ms[len(ms)-1], 3),
		Min:  round(ms[0], 3),
	}
}

// percentile expects sorted input
func percentile(sorted []float64, p float64) float64 {
	if len(sorted) == 1 {
		return sorted[0]
	}
	rank := p / 100 * float64(len(sorted)-1)
	lo := int(math.Floor(rank))
	hi := int(math.Ceil(rank))
	frac := rank - float64(lo)
	return sorted[lo] + (sorted[hi]-sorted[lo])*frac
}

func round(v float64, places int) float64 {
	p := math.Pow10(places)
	return math.Round(v*p) / p
}
