package vectorindex

import (
	"math"
	"sort"
	"time"
)

// DefaultSemanticWeight is the share of the final score taken by semantic
// similarity; the remainder is the time-decay term.
const DefaultSemanticWeight = 0.7

// DecayLambda is the exponential time-decay rate per day. 0.001 gives a
// half-life of roughly 693 days.
const DecayLambda = 0.001

// semanticScore converts a cosine distance into a [0,1] similarity.
func semanticScore(cosineDistance float64) float64 {
	return clamp01(1 - cosineDistance)
}

// timeScore computes exp(-lambda * daysSince(decayDate)) relative to now.
// A missing decay date scores as fully fresh; future dates clamp to zero
// elapsed days.
func timeScore(decayDate *time.Time, now time.Time) float64 {
	if decayDate == nil {
		return 1
	}
	days := now.Sub(*decayDate).Hours() / 24
	if days < 0 {
		days = 0
	}
	return math.Exp(-DecayLambda * days)
}

// hybridScore blends semantic and time scores. Both inputs are in [0,1],
// so the result is bounded by max(weight, 1-weight).
func hybridScore(semantic, time, weight float64) float64 {
	return weight*semantic + (1-weight)*time
}

// rankResults orders results by final score descending with a stable
// chunk-id ascending tiebreak, so repeated identical queries produce
// identical orderings.
func rankResults(results []SearchResult) {
	sort.SliceStable(results, func(i, j int) bool {
		if results[i].FinalScore != results[j].FinalScore {
			return results[i].FinalScore > results[j].FinalScore
		}
		return results[i].ChunkID.String() < results[j].ChunkID.String()
	})
}

func clamp01(v float64) float64 {
	switch {
	case v < 0:
		return 0
	case v > 1:
		return 1
	default:
		return v
	}
}
