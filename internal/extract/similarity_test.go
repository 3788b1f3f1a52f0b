package extract

import (
	"math"
	"strings"
	"testing"
)

func within(got, want, tolerance float64) bool {
	return math.Abs(got-want) <= tolerance
}

func TestCosineSimilarity(t *testing.T) {
	cases := []struct {
		name string
		a    []float32
		b    []float32
		want float64
	}{
		{name: "identical", a: []float32{1, 2, 3}, b: []float32{1, 2, 3}, want: 1},
		{name: "orthogonal", a: []float32{1, 0}, b: []float32{0, 1}, want: 0},
		{name: "opposite", a: []float32{1, 0}, b: []float32{-1, 0}, want: -1},
		{name: "zero norm", a: []float32{0, 0}, b: []float32{1, 2}, want: 0},
		{name: "length mismatch", a: []float32{1, 2, 3}, b: []float32{1, 2}, want: 0},
		{name: "empty", a: nil, b: nil, want: 0},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := CosineSimilarity(tc.a, tc.b); !within(got, tc.want, 1e-9) {
				t.Fatalf("CosineSimilarity(%v, %v) = %v, want %v", tc.a, tc.b, got, tc.want)
			}
		})
	}
}

func TestProfileSimilarity(t *testing.T) {
	test := []float32{1, 0}
	raws := [][]float32{{1, 0}, {0, 1}}
	mean := []float32{1, 0}

	sim := ProfileSimilarity(test, raws, mean)
	if !within(sim.Mean, 1, 1e-9) {
		t.Fatalf("Mean = %v, want 1", sim.Mean)
	}
	if !within(sim.Max, 1, 1e-9) {
		t.Fatalf("Max = %v, want 1", sim.Max)
	}
	if !within(sim.Min, 0, 1e-9) {
		t.Fatalf("Min = %v, want 0", sim.Min)
	}
}

func TestProfileSimilarityWithoutRawVectors(t *testing.T) {
	sim := ProfileSimilarity([]float32{1, 0}, nil, []float32{1, 1})
	want := 1 / math.Sqrt2
	if !within(sim.Mean, want, 1e-9) {
		t.Fatalf("Mean = %v, want %v", sim.Mean, want)
	}
	if sim.Min != sim.Mean || sim.Max != sim.Mean {
		t.Fatalf("Min/Max = %v/%v, want both equal to Mean %v", sim.Min, sim.Max, sim.Mean)
	}
}

func TestProfileSimilarityClipsNegativeScores(t *testing.T) {
	sim := ProfileSimilarity([]float32{1, 0}, [][]float32{{-1, 0}}, []float32{-1, 0})
	if sim.Mean != 0 || sim.Min != 0 || sim.Max != 0 {
		t.Fatalf("similarity = %+v, want all zero", sim)
	}
}

func TestAggregateVectors(t *testing.T) {
	mean, variance, err := AggregateVectors([][]float32{{1, 0}, {0, 1}})
	if err != nil {
		t.Fatalf("AggregateVectors: %v", err)
	}
	for j, want := range []float64{0.5, 0.5} {
		if !within(float64(mean[j]), want, 1e-6) {
			t.Fatalf("mean[%d] = %v, want %v", j, mean[j], want)
		}
		if !within(float64(variance[j]), 0.25, 1e-6) {
			t.Fatalf("variance[%d] = %v, want 0.25", j, variance[j])
		}
	}
}

func TestAggregateVectorsRejectsMismatchedDimensions(t *testing.T) {
	if _, _, err := AggregateVectors([][]float32{{1, 0}, {1}}); err == nil {
		t.Fatal("expected dimension mismatch error")
	}
	if _, _, err := AggregateVectors(nil); err == nil {
		t.Fatal("expected error for empty input")
	}
}

func TestBaselineStats(t *testing.T) {
	mean, std := BaselineStats([]float64{0.4, 0.6})
	if !within(mean, 0.5, 1e-9) || !within(std, 0.1, 1e-9) {
		t.Fatalf("BaselineStats = (%v, %v), want (0.5, 0.1)", mean, std)
	}

	mean, std = BaselineStats([]float64{0.7})
	if !within(mean, 0.7, 1e-9) || std != 0 {
		t.Fatalf("single score = (%v, %v), want (0.7, 0)", mean, std)
	}

	mean, std = BaselineStats(nil)
	if mean != 0 || std != 0 {
		t.Fatalf("empty series = (%v, %v), want (0, 0)", mean, std)
	}
}

func TestSyncAnomaly(t *testing.T) {
	if flagged, _ := SyncAnomaly(0.55, 0.5, 0.1, 2); flagged {
		t.Fatal("score within two std devs should not flag")
	}

	flagged, desc := SyncAnomaly(0.9, 0.5, 0.1, 2)
	if !flagged {
		t.Fatal("score far outside the baseline should flag")
	}
	if !strings.Contains(desc, "outside enrollment baseline") || !strings.Contains(desc, "0.90") {
		t.Fatalf("unexpected description %q", desc)
	}
}

func TestSyncAnomalyFloorsCollapsedStd(t *testing.T) {
	// With a zero std the 0.01 floor gives a 0.02 tolerance at k=2.
	if flagged, _ := SyncAnomaly(0.515, 0.5, 0, 2); flagged {
		t.Fatal("deviation inside the floored tolerance should not flag")
	}
	if flagged, _ := SyncAnomaly(0.53, 0.5, 0, 2); !flagged {
		t.Fatal("deviation beyond the floored tolerance should flag")
	}
}

func TestClip01(t *testing.T) {
	if got := Clip01(-0.5); got != 0 {
		t.Fatalf("Clip01(-0.5) = %v, want 0", got)
	}
	if got := Clip01(0.3); got != 0.3 {
		t.Fatalf("Clip01(0.3) = %v, want 0.3", got)
	}
	if got := Clip01(1.7); got != 1 {
		t.Fatalf("Clip01(1.7) = %v, want 1", got)
	}
}
