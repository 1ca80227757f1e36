// Package model defines the data shapes shared across the analysis pipeline:
// the three evidence signals, the reasoning trail, and the final analysis record.
package model

import "time"

// Verdict is the final call on an image.
type Verdict string

const (
	VerdictAIGenerated Verdict = "ai_generated"
	VerdictLikelyReal  Verdict = "likely_real"
	VerdictUncertain   Verdict = "uncertain"
)

// Stage names as they appear in AnalysisRecord.LayersExecuted.
const (
	StageHashCheck        = "hash_check"
	StageMetadataAnalysis = "metadata_analysis"
	StageAIDetection      = "ai_detection"
)

// HashSignal is the similarity evidence produced by the hash layer.
// Similarity is always defined; a provider failure yields 0.0, never an error.
type HashSignal struct {
	IsMatched      bool    `json:"is_matched"`
	Similarity     float64 `json:"similarity"`
	MD5            string  `json:"md5,omitempty"`
	SHA256         string  `json:"sha256,omitempty"`
	PerceptualHash string  `json:"perceptual_hash,omitempty"`
}

// MetadataSignal is the provenance/EXIF evidence produced by the metadata layer.
// Every field defaults to its neutral value: false, empty, or zero.
type MetadataSignal struct {
	HasProvenanceMarker   bool           `json:"has_provenance_marker"`
	ProvenanceInfo        map[string]any `json:"provenance_info,omitempty"`
	AIToolSignatures      []string       `json:"ai_tool_signatures"`
	SoftwareUsed          string         `json:"software_used,omitempty"`
	CreationDate          *time.Time     `json:"creation_date,omitempty"`
	ExifAuthenticityScore float64        `json:"exif_authenticity_score"`
	ExifInconsistencies   []string       `json:"exif_inconsistencies,omitempty"`
}

// DetectionSignal is the classifier evidence. A nil *DetectionSignal means
// detection was skipped or degraded; the absence itself is recorded in the trail.
type DetectionSignal struct {
	ModelID       string             `json:"model_id"`
	IsAIGenerated bool               `json:"is_ai_generated"`
	Confidence    float64            `json:"confidence"`
	RawLabelScores map[string]float64 `json:"raw_label_scores,omitempty"`
}
