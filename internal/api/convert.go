package api

import (
	"time"

	"likeness/internal/deps"
	"likeness/internal/enroll"
	"likeness/internal/store"
	"likeness/internal/verify"
)

// FromChunkResult converts a processed chunk into its API representation.
func FromChunkResult(result enroll.ChunkResult) ChunkResponse {
	return ChunkResponse{
		Success:         result.Success,
		Error:           result.Error,
		VoiceEmbeddings: result.VoiceEmbeddings,
		FaceEmbeddings:  result.FaceEmbeddings,
		SpeechDuration:  result.SpeechDuration,
		SyncScore:       result.SyncScore,
	}
}

// FromCompletionSummary converts a finalized session into its API representation.
func FromCompletionSummary(summary *enroll.CompletionSummary) CompletionResponse {
	if summary == nil {
		return CompletionResponse{}
	}
	coverage := summary.EmotionCoverage
	if coverage == nil {
		coverage = map[string]int{}
	}
	return CompletionResponse{
		SessionID:       summary.SessionID,
		UserID:          summary.UserID,
		ProfileStrength: summary.ProfileStrength,
		DurationSeconds: summary.DurationSeconds,
		Embeddings: EmbeddingCounts{
			Voice: summary.Embeddings.Voice,
			Face:  summary.Embeddings.Face,
			Sync:  summary.Embeddings.Sync,
		},
		EmotionCoverage: coverage,
		SpeechDuration:  summary.SpeechDuration,
	}
}

// FromStrengthReport converts a profile strength report into its API
// representation. A zero report keeps its sample totals and last_updated off
// the wire.
func FromStrengthReport(report *enroll.StrengthReport) StrengthResponse {
	if report == nil {
		return StrengthResponse{FeatureCoverage: map[string]float64{}}
	}
	coverage := report.FeatureCoverage
	if coverage == nil {
		coverage = map[string]float64{}
	}
	dto := StrengthResponse{
		StrengthScore:     report.StrengthScore,
		SessionsCount:     report.SessionsCount,
		FeatureCoverage:   coverage,
		TotalVoiceSamples: report.TotalVoiceSamples,
		TotalFaceSamples:  report.TotalFaceSamples,
	}
	if report.LastUpdated != nil {
		dto.LastUpdated = FormatTime(*report.LastUpdated)
	}
	return dto
}

// FromVerifyResult converts a verification verdict into its API representation.
func FromVerifyResult(result *verify.Result) VerifyResponse {
	if result == nil {
		return VerifyResponse{}
	}
	breakdown := result.Breakdown
	if breakdown == nil {
		breakdown = map[string]float64{}
	}
	anomalies := result.Anomalies
	if anomalies == nil {
		anomalies = []string{}
	}
	return VerifyResponse{
		VerificationID: result.VerificationID,
		Authentic:      result.Authentic,
		Confidence:     result.Confidence,
		Breakdown:      breakdown,
		Anomalies:      anomalies,
		AnalysisDetails: AnalysisDetails{
			VoiceSamplesCompared: result.Details.VoiceSamplesCompared,
			FaceSamplesCompared:  result.Details.FaceSamplesCompared,
			ProfileStrength:      result.Details.ProfileStrength,
			TestDuration:         result.Details.TestDuration,
		},
		VerifiedAt: FormatTime(result.VerifiedAt),
	}
}

// FromVerifySummaries converts a verification history into its API
// representation. The list is never null on the wire.
func FromVerifySummaries(items []verify.Summary) HistoryResponse {
	out := make([]HistoryItem, 0, len(items))
	for _, item := range items {
		out = append(out, HistoryItem{
			ID:         item.ID,
			VerifiedAt: FormatTime(item.VerifiedAt),
			Authentic:  item.Authentic,
			Confidence: item.Confidence,
		})
	}
	return HistoryResponse{Verifications: out}
}

// FromDatabaseHealth converts database diagnostics into the API payload.
// Table lists are never null on the wire.
func FromDatabaseHealth(health store.DatabaseHealth) DatabaseHealthResponse {
	tables := health.TablesPresent
	if tables == nil {
		tables = []string{}
	}
	missing := health.MissingTables
	if missing == nil {
		missing = []string{}
	}
	return DatabaseHealthResponse{
		DBPath:           health.DBPath,
		DatabaseExists:   health.DatabaseExists,
		DatabaseReadable: health.DatabaseReadable,
		TablesPresent:    tables,
		MissingTables:    missing,
		IntegrityCheck:   health.IntegrityCheck,
		UserCount:        health.UserCount,
		EmbeddingCount:   health.EmbeddingCount,
		Error:            health.Error,
	}
}

// FromDependencyStatuses converts dependency checks into API payloads.
func FromDependencyStatuses(statuses []deps.Status) []DependencyStatus {
	out := make([]DependencyStatus, 0, len(statuses))
	for _, status := range statuses {
		out = append(out, DependencyStatus{
			Name:        status.Name,
			Command:     status.Command,
			Description: status.Description,
			Optional:    status.Optional,
			Available:   status.Available,
			Detail:      status.Detail,
		})
	}
	return out
}

// FormatTime converts a time to RFC3339 or returns empty string.
func FormatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(dateTimeFormat)
}
