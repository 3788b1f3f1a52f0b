package verify

import (
	"strings"
	"testing"

	"likeness/internal/config"
)

func floatPtr(v float64) *float64 { return &v }

func TestDetectAnomaliesCleanMatch(t *testing.T) {
	cfg := config.Default().Verification
	test := &testFeatures{syncScore: floatPtr(0.6), emotions: []string{"happy"}}
	profile := &Profile{Emotions: []string{"happy", "neutral"}, SyncMean: 0.6, SyncStd: 0.05}
	comp := comparison{voice: 1, face: 1, sync: 1, speech: 0.7}

	if anomalies := detectAnomalies(test, profile, comp, cfg); len(anomalies) != 0 {
		t.Fatalf("expected no anomalies, got %v", anomalies)
	}
}

func TestDetectAnomaliesModalityDivergence(t *testing.T) {
	cfg := config.Default().Verification
	test := &testFeatures{}
	profile := &Profile{SyncMean: 0.5, SyncStd: 0.1}

	anomalies := detectAnomalies(test, profile, comparison{voice: 0.9, face: 0.5}, cfg)
	if len(anomalies) != 1 || anomalies[0] != "Voice matches profile (90%) but face diverges (50%)" {
		t.Fatalf("unexpected anomalies %v", anomalies)
	}

	anomalies = detectAnomalies(test, profile, comparison{voice: 0.5, face: 0.9}, cfg)
	if len(anomalies) != 1 || anomalies[0] != "Face matches profile (90%) but voice diverges (50%)" {
		t.Fatalf("unexpected anomalies %v", anomalies)
	}
}

func TestDetectAnomaliesSyncDeviation(t *testing.T) {
	cfg := config.Default().Verification
	test := &testFeatures{syncScore: floatPtr(0.9)}
	profile := &Profile{SyncMean: 0.5, SyncStd: 0.1}
	comp := comparison{voice: 0.8, face: 0.8, sync: 0.2}

	anomalies := detectAnomalies(test, profile, comp, cfg)
	if len(anomalies) != 1 || !strings.Contains(anomalies[0], "outside enrollment baseline") {
		t.Fatalf("unexpected anomalies %v", anomalies)
	}
}

func TestDetectAnomaliesNewExpressions(t *testing.T) {
	cfg := config.Default().Verification
	test := &testFeatures{emotions: []string{"surprise", "happy"}}
	profile := &Profile{Emotions: []string{"happy"}, SyncMean: 0.5, SyncStd: 0.1}
	comp := comparison{voice: 0.8, face: 0.8}

	anomalies := detectAnomalies(test, profile, comp, cfg)
	if len(anomalies) != 1 || anomalies[0] != "Expressions not seen in enrollment: surprise" {
		t.Fatalf("unexpected anomalies %v", anomalies)
	}

	// Without enrolled expression history the check stays silent.
	profile.Emotions = nil
	if anomalies := detectAnomalies(test, profile, comp, cfg); len(anomalies) != 0 {
		t.Fatalf("expected no anomalies without profile emotions, got %v", anomalies)
	}
}

func TestDetectAnomaliesLowSimilarity(t *testing.T) {
	cfg := config.Default().Verification
	test := &testFeatures{}
	profile := &Profile{SyncMean: 0.5, SyncStd: 0.1}

	anomalies := detectAnomalies(test, profile, comparison{voice: 0.3, face: 0.35}, cfg)
	if len(anomalies) != 2 {
		t.Fatalf("expected both low-similarity anomalies, got %v", anomalies)
	}
	if anomalies[0] != "Voice similarity unusually low (30%)" {
		t.Fatalf("unexpected voice anomaly %q", anomalies[0])
	}
	if anomalies[1] != "Face similarity unusually low (35%)" {
		t.Fatalf("unexpected face anomaly %q", anomalies[1])
	}
}

func TestDetectAnomaliesPerfectSync(t *testing.T) {
	cfg := config.Default().Verification
	// A wide baseline keeps the deviation check quiet so only the
	// too-perfect check fires.
	test := &testFeatures{syncScore: floatPtr(0.97)}
	profile := &Profile{SyncMean: 0.6, SyncStd: 0.25}
	comp := comparison{voice: 0.8, face: 0.8, sync: 0.9}

	anomalies := detectAnomalies(test, profile, comp, cfg)
	if len(anomalies) != 1 || anomalies[0] != "Lip sync unusually perfect (may indicate synthetic generation)" {
		t.Fatalf("unexpected anomalies %v", anomalies)
	}
}
