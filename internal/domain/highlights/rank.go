package highlights

import (
	"sort"

	"github.com/forPelevin/vodclips/internal/types"
)

// Fixed heuristic weights; not configurable.
const (
	rmsWeight      = 0.7
	peakWeight     = 0.2
	centroidWeight = 0.1
	centroidScale  = 5000.0
)

// Selection is the Ranker output for one analysis run.
type Selection struct {
	Total    int
	Filtered int
	Top      []types.AudioSegment
}

// CompositeScore combines energy, peak and brightness into one interest score.
func CompositeScore(s types.AudioSegment) float64 {
	return rmsWeight*s.RMSScore + peakWeight*s.PeakAmplitude + centroidWeight*(s.SpectralCentroid/centroidScale)
}

// Filter keeps segments whose RMS energy reaches threshold, preserving order.
func Filter(segs []types.AudioSegment, threshold float64) []types.AudioSegment {
	out := make([]types.AudioSegment, 0, len(segs))
	for _, s := range segs {
		if s.RMSScore >= threshold {
			out = append(out, s)
		}
	}
	return out
}

// Rank scores segs and returns the n best in descending composite order.
// Equal scores keep their chronological order. n <= 0 keeps everything.
// The input slice is not modified.
func Rank(segs []types.AudioSegment, n int) []types.AudioSegment {
	ranked := make([]types.AudioSegment, len(segs))
	copy(ranked, segs)
	for i := range ranked {
		score := CompositeScore(ranked[i])
		ranked[i].CompositeScore = &score
	}
	sort.SliceStable(ranked, func(i, j int) bool {
		return *ranked[i].CompositeScore > *ranked[j].CompositeScore
	})
	return Truncate(ranked, n)
}

// Select filters by energy threshold, then ranks and keeps the top n.
func Select(segs []types.AudioSegment, threshold float64, n int) Selection {
	filtered := Filter(segs, threshold)
	return Selection{
		Total:    len(segs),
		Filtered: len(filtered),
		Top:      Rank(filtered, n),
	}
}

// Truncate re-slices an already ranked list without re-scoring.
func Truncate(ranked []types.AudioSegment, n int) []types.AudioSegment {
	if n <= 0 || n >= len(ranked) {
		return ranked
	}
	return ranked[:n]
}
