package model

import (
	"encoding/json"
	"time"
)

// AnalysisRecord is the complete result of analyzing one image. It is
// constructed once per request, immutable afterwards, and never persisted.
type AnalysisRecord struct {
	ID                   string             `json:"id"`
	Filename             string             `json:"filename"`
	AnalyzedAt           time.Time          `json:"analyzed_at"`
	HashResult           HashSignal         `json:"hash_result"`
	MetadataResult       MetadataSignal     `json:"metadata_result"`
	DetectionResult      *DetectionSignal   `json:"detection_result"`
	FinalVerdict         Verdict            `json:"final_verdict"`
	ConfidenceScore      float64            `json:"confidence_score"`
	Reasoning            string             `json:"reasoning"`
	ReasoningTrail       []Reason           `json:"reasoning_trail"`
	TotalExecutionTimeMs float64            `json:"total_execution_time_ms"`
	StageTimingsMs       map[string]float64 `json:"stage_timings_ms,omitempty"`
	LayersExecuted       []string           `json:"layers_executed"`
}

// BatchEntry is one slot in a batch response: either a completed record or
// a per-item error. One item's failure never aborts its siblings.
type BatchEntry struct {
	Record   *AnalysisRecord
	Filename string
	Err      string
}

// MarshalJSON emits the record directly, or an error object for failed items.
func (e BatchEntry) MarshalJSON() ([]byte, error) {
	if e.Record != nil {
		return json.Marshal(e.Record)
	}
	return json.Marshal(struct {
		Filename string `json:"filename"`
		Error    string `json:"error"`
		Status   string `json:"status"`
	}{Filename: e.Filename, Error: e.Err, Status: "failed"})
}

// BatchResult aggregates a batch run: verdict counts plus per-item results
// in the original input order.
type BatchResult struct {
	TotalProcessed   int          `json:"total_processed"`
	AIGeneratedCount int          `json:"ai_generated_count"`
	LikelyRealCount  int          `json:"likely_real_count"`
	UncertainCount   int          `json:"uncertain_count"`
	Results          []BatchEntry `json:"results"`
}

// Tally recomputes the verdict counts from the entries. Entries that are
// neither ai_generated nor likely_real (including failed items) count as
// uncertain, so the three counts always sum to TotalProcessed.
func (b *BatchResult) Tally() {
	b.TotalProcessed = len(b.Results)
	b.AIGeneratedCount = 0
	b.LikelyRealCount = 0
	for _, e := range b.Results {
		if e.Record == nil {
			continue
		}
		switch e.Record.FinalVerdict {
		case VerdictAIGenerated:
			b.AIGeneratedCount++
		case VerdictLikelyReal:
			b.LikelyRealCount++
		}
	}
	b.UncertainCount = b.TotalProcessed - b.AIGeneratedCount - b.LikelyRealCount
}
