package extract

import (
	"fmt"
	"math"
)

// Similarity summarizes how one test vector compares against a stored
// profile: the score against the profile mean plus the extremes across the
// individual raw vectors. All three values are clipped to [0, 1].
type Similarity struct {
	Mean float64
	Min  float64
	Max  float64
}

// CosineSimilarity returns the cosine of the angle between two vectors.
// Zero-norm or mismatched inputs yield 0 rather than NaN so degenerate
// embeddings read as "no match" instead of poisoning downstream scores.
func CosineSimilarity(a, b []float32) float64 {
	if len(a) == 0 || len(a) != len(b) {
		return 0
	}
	var dot, normA, normB float64
	for i := range a {
		x := float64(a[i])
		y := float64(b[i])
		dot += x * y
		normA += x * x
		normB += y * y
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}

// ProfileSimilarity scores a test vector against a profile's mean vector
// and each of its raw sample vectors. The mean comparison is the primary
// score; the extremes over raw samples feed anomaly checks. With no raw
// vectors stored the mean comparison stands in for all three fields.
func ProfileSimilarity(test []float32, raws [][]float32, profileMean []float32) Similarity {
	mean := Clip01(CosineSimilarity(test, profileMean))
	if len(raws) == 0 {
		return Similarity{Mean: mean, Min: mean, Max: mean}
	}
	minScore := math.Inf(1)
	maxScore := math.Inf(-1)
	for _, raw := range raws {
		score := Clip01(CosineSimilarity(test, raw))
		minScore = math.Min(minScore, score)
		maxScore = math.Max(maxScore, score)
	}
	return Similarity{Mean: mean, Min: minScore, Max: maxScore}
}

// AggregateVectors computes the per-dimension mean and variance of a set of
// equal-length vectors. Callers persist the mean as a profile aggregate; the
// variance is available for diagnostics.
func AggregateVectors(vectors [][]float32) ([]float32, []float32, error) {
	if len(vectors) == 0 {
		return nil, nil, fmt.Errorf("no vectors to aggregate")
	}
	dim := len(vectors[0])
	sums := make([]float64, dim)
	for i, vector := range vectors {
		if len(vector) != dim {
			return nil, nil, fmt.Errorf("vector length mismatch: vector %d has %d components, expected %d", i, len(vector), dim)
		}
		for j, component := range vector {
			sums[j] += float64(component)
		}
	}

	count := float64(len(vectors))
	mean := make([]float32, dim)
	means := make([]float64, dim)
	for j := range sums {
		means[j] = sums[j] / count
		mean[j] = float32(means[j])
	}

	squares := make([]float64, dim)
	for _, vector := range vectors {
		for j, component := range vector {
			diff := float64(component) - means[j]
			squares[j] += diff * diff
		}
	}
	variance := make([]float32, dim)
	for j := range squares {
		variance[j] = float32(squares[j] / count)
	}
	return mean, variance, nil
}

// BaselineStats returns the mean and population standard deviation of a
// score series. An empty series yields (0, 0).
func BaselineStats(scores []float64) (float64, float64) {
	if len(scores) == 0 {
		return 0, 0
	}
	var sum float64
	for _, score := range scores {
		sum += score
	}
	mean := sum / float64(len(scores))

	var sumSquares float64
	for _, score := range scores {
		diff := score - mean
		sumSquares += diff * diff
	}
	return mean, math.Sqrt(sumSquares / float64(len(scores)))
}

// SyncAnomaly reports whether a sync score falls outside the enrollment
// baseline by more than stdDevs standard deviations, with a human-readable
// description when it does. A collapsed baseline std is floored at 0.01 so
// a single-chunk enrollment does not flag every later measurement.
func SyncAnomaly(score, baselineMean, baselineStd, stdDevs float64) (bool, string) {
	if baselineStd < 0.01 {
		baselineStd = 0.01
	}
	tolerance := stdDevs * baselineStd
	if math.Abs(score-baselineMean) <= tolerance {
		return false, ""
	}
	return true, fmt.Sprintf("Lip sync score %.2f outside enrollment baseline %.2f (±%.2f)", score, baselineMean, tolerance)
}

// Clip01 clamps a score into [0, 1].
func Clip01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
