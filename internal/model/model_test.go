package model

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReasonRender(t *testing.T) {
	tests := []struct {
		name   string
		reason Reason
		want   string
	}{
		{
			name:   "hash high",
			reason: Reason{Code: ReasonHashSimilarityHigh, Params: map[string]any{"similarity": 0.92}},
			want:   "corpus similarity 0.92: strong match against known-generated images",
		},
		{
			name:   "hash uncertain",
			reason: Reason{Code: ReasonHashSimilarityUncertain, Params: map[string]any{"similarity": 0.75}},
			want:   "corpus similarity 0.75: inconclusive band, evidence split",
		},
		{
			name:   "hash low",
			reason: Reason{Code: ReasonHashSimilarityLow, Params: map[string]any{"similarity": 0.12}},
			want:   "corpus similarity 0.12: no meaningful match",
		},
		{
			name:   "ai tool signatures",
			reason: Reason{Code: ReasonAIToolSignatures, Params: map[string]any{"signatures": []string{"midjourney", "dall-e"}}},
			want:   "AI tool signatures found: midjourney, dall-e",
		},
		{
			name:   "provenance ai",
			reason: Reason{Code: ReasonProvenanceAI},
			want:   "content credentials present with AI-generation assertions",
		},
		{
			name:   "provenance clean",
			reason: Reason{Code: ReasonProvenanceClean},
			want:   "content credentials present without AI-generation assertions",
		},
		{
			name:   "exif consistent",
			reason: Reason{Code: ReasonExifConsistent, Params: map[string]any{"score": 0.9}},
			want:   "EXIF consistent with camera capture (authenticity 0.90)",
		},
		{
			name:   "exif inconsistencies",
			reason: Reason{Code: ReasonExifInconsistencies, Params: map[string]any{"labels": []string{"missing DateTimeOriginal"}}},
			want:   "EXIF inconsistencies: missing DateTimeOriginal",
		},
		{
			name: "detection ai",
			reason: Reason{Code: ReasonDetectionVerdict, Params: map[string]any{
				"model_id": "claude-haiku-4-5-20251001", "is_ai_generated": true, "confidence": 0.834,
			}},
			want: "classifier claude-haiku-4-5-20251001: AI generated (confidence 83.4%)",
		},
		{
			name: "detection real",
			reason: Reason{Code: ReasonDetectionVerdict, Params: map[string]any{
				"model_id": "m", "is_ai_generated": false, "confidence": 0.6,
			}},
			want: "classifier m: likely real (confidence 60.0%)",
		},
		{
			name:   "detection skipped",
			reason: Reason{Code: ReasonDetectionSkipped},
			want:   "AI detection skipped",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.reason.Render())
		})
	}
}

func TestReasonRender_UnknownCode(t *testing.T) {
	r := Reason{Code: "custom_code"}
	assert.Equal(t, "custom_code", r.Render())

	r = Reason{Code: "custom_code", Params: map[string]any{"b": 2, "a": 1}}
	assert.Equal(t, "custom_code a=1 b=2", r.Render())
}

func TestReasonRoundTripKeepsRenderable(t *testing.T) {
	// Params decoded from JSON arrive as float64 and []any; rendering
	// must still work on those shapes.
	orig := Reason{Code: ReasonAIToolSignatures, Params: map[string]any{"signatures": []string{"sdxl"}}}
	data, err := json.Marshal(orig)
	require.NoError(t, err)

	var decoded Reason
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.Equal(t, "AI tool signatures found: sdxl", decoded.Render())

	orig = Reason{Code: ReasonExifConsistent, Params: map[string]any{"score": 0.75}}
	data, err = json.Marshal(orig)
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.Equal(t, "EXIF consistent with camera capture (authenticity 0.75)", decoded.Render())
}

func TestRenderTrail(t *testing.T) {
	trail := []Reason{
		{Code: ReasonProvenanceAI},
		{Code: ReasonDetectionSkipped},
	}
	assert.Equal(t,
		"content credentials present with AI-generation assertions | AI detection skipped",
		RenderTrail(trail))

	assert.Equal(t, "", RenderTrail(nil))
}

func TestAnalysisRecordJSONFields(t *testing.T) {
	rec := AnalysisRecord{
		ID:              "abc",
		Filename:        "photo.jpg",
		AnalyzedAt:      time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC),
		FinalVerdict:    VerdictLikelyReal,
		ConfidenceScore: 0.72,
		LayersExecuted:  []string{StageHashCheck, StageMetadataAnalysis},
	}

	data, err := json.Marshal(rec)
	require.NoError(t, err)

	var m map[string]any
	require.NoError(t, json.Unmarshal(data, &m))
	for _, key := range []string{
		"id", "filename", "analyzed_at", "hash_result", "metadata_result",
		"detection_result", "final_verdict", "confidence_score", "reasoning",
		"reasoning_trail", "total_execution_time_ms", "layers_executed",
	} {
		assert.Contains(t, m, key)
	}
	assert.Equal(t, "likely_real", m["final_verdict"])
	assert.Nil(t, m["detection_result"])
}

func TestBatchEntryJSON(t *testing.T) {
	ok := BatchEntry{Record: &AnalysisRecord{ID: "x", Filename: "a.png", FinalVerdict: VerdictUncertain}}
	data, err := json.Marshal(ok)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"final_verdict":"uncertain"`)
	assert.NotContains(t, string(data), `"status"`)

	failed := BatchEntry{Filename: "bad.bin", Err: "unable to decode image"}
	data, err = json.Marshal(failed)
	require.NoError(t, err)

	var m map[string]any
	require.NoError(t, json.Unmarshal(data, &m))
	assert.Equal(t, "bad.bin", m["filename"])
	assert.Equal(t, "unable to decode image", m["error"])
	assert.Equal(t, "failed", m["status"])
}

func TestBatchResultTally(t *testing.T) {
	b := BatchResult{Results: []BatchEntry{
		{Record: &AnalysisRecord{FinalVerdict: VerdictAIGenerated}},
		{Record: &AnalysisRecord{FinalVerdict: VerdictAIGenerated}},
		{Record: &AnalysisRecord{FinalVerdict: VerdictLikelyReal}},
		{Record: &AnalysisRecord{FinalVerdict: VerdictUncertain}},
		{Filename: "broken.png", Err: "boom"},
	}}
	b.Tally()

	assert.Equal(t, 5, b.TotalProcessed)
	assert.Equal(t, 2, b.AIGeneratedCount)
	assert.Equal(t, 1, b.LikelyRealCount)
	// Failed entries count as uncertain
	assert.Equal(t, 2, b.UncertainCount)
}

func TestBatchResultTally_Empty(t *testing.T) {
	var b BatchResult
	b.Tally()
	assert.Equal(t, 0, b.TotalProcessed)
	assert.Equal(t, 0, b.UncertainCount)
}
