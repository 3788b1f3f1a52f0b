package verify

import (
	"fmt"
	"math"
	"strings"

	"likeness/internal/config"
	"likeness/internal/extract"
)

// detectAnomalies runs the independent anomaly checks and unions their
// findings. Each check produces a human-readable description; the verdict
// only counts them.
func detectAnomalies(test *testFeatures, profile *Profile, comp comparison, cfg config.Verification) []string {
	var anomalies []string

	// One modality matching while the other diverges is the classic
	// face-swap / voice-clone signature.
	if math.Abs(comp.voice-comp.face) > cfg.DivergenceThreshold {
		if comp.voice > comp.face {
			anomalies = append(anomalies, fmt.Sprintf("Voice matches profile (%s) but face diverges (%s)", percent(comp.voice), percent(comp.face)))
		} else {
			anomalies = append(anomalies, fmt.Sprintf("Face matches profile (%s) but voice diverges (%s)", percent(comp.face), percent(comp.voice)))
		}
	}

	if test.syncScore != nil {
		if flagged, desc := extract.SyncAnomaly(*test.syncScore, profile.SyncMean, profile.SyncStd, cfg.SyncDeviationStdDevs); flagged {
			anomalies = append(anomalies, desc)
		}
	}

	if len(test.emotions) > 0 && len(profile.Emotions) > 0 {
		if novel := extract.NewExpressions(test.emotions, profile.Emotions); len(novel) > 0 {
			anomalies = append(anomalies, fmt.Sprintf("Expressions not seen in enrollment: %s", strings.Join(novel, ", ")))
		}
	}

	if comp.voice < cfg.LowSimilarityThreshold {
		anomalies = append(anomalies, fmt.Sprintf("Voice similarity unusually low (%s)", percent(comp.voice)))
	}
	if comp.face < cfg.LowSimilarityThreshold {
		anomalies = append(anomalies, fmt.Sprintf("Face similarity unusually low (%s)", percent(comp.face)))
	}

	if test.syncScore != nil && *test.syncScore > cfg.PerfectSyncThreshold {
		anomalies = append(anomalies, "Lip sync unusually perfect (may indicate synthetic generation)")
	}

	return anomalies
}

func percent(v float64) string {
	return fmt.Sprintf("%.0f%%", v*100)
}
