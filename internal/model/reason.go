package model

import (
	"fmt"
	"sort"
	"strings"
)

// ReasonCode tags a single entry in the reasoning trail.
type ReasonCode string

const (
	ReasonHashSimilarityHigh      ReasonCode = "hash_similarity_high"
	ReasonHashSimilarityUncertain ReasonCode = "hash_similarity_uncertain"
	ReasonHashSimilarityLow       ReasonCode = "hash_similarity_low"
	ReasonAIToolSignatures        ReasonCode = "ai_tool_signatures"
	ReasonProvenanceAI            ReasonCode = "provenance_marker_ai"
	ReasonProvenanceClean         ReasonCode = "provenance_marker_clean"
	ReasonExifConsistent          ReasonCode = "exif_consistent"
	ReasonExifPartial             ReasonCode = "exif_partial"
	ReasonExifMissing             ReasonCode = "exif_missing"
	ReasonExifInconsistencies     ReasonCode = "exif_inconsistencies"
	ReasonDetectionVerdict        ReasonCode = "detection_verdict"
	ReasonDetectionSkipped        ReasonCode = "detection_skipped"
)

// Reason is one structured entry in the reasoning trail: a tag plus the
// numeric or textual parameters behind it. Rendering to display text is a
// presentation concern; the fusion engine only ever emits these records.
type Reason struct {
	Code   ReasonCode     `json:"code"`
	Params map[string]any `json:"params,omitempty"`
}

// reasonDelimiter joins rendered trail entries in AnalysisRecord.Reasoning.
const reasonDelimiter = " | "

// Render produces the display string for a single trail entry.
func (r Reason) Render() string {
	switch r.Code {
	case ReasonHashSimilarityHigh:
		return fmt.Sprintf("corpus similarity %.2f: strong match against known-generated images", r.floatParam("similarity"))
	case ReasonHashSimilarityUncertain:
		return fmt.Sprintf("corpus similarity %.2f: inconclusive band, evidence split", r.floatParam("similarity"))
	case ReasonHashSimilarityLow:
		return fmt.Sprintf("corpus similarity %.2f: no meaningful match", r.floatParam("similarity"))
	case ReasonAIToolSignatures:
		return "AI tool signatures found: " + strings.Join(r.stringsParam("signatures"), ", ")
	case ReasonProvenanceAI:
		return "content credentials present with AI-generation assertions"
	case ReasonProvenanceClean:
		return "content credentials present without AI-generation assertions"
	case ReasonExifConsistent:
		return fmt.Sprintf("EXIF consistent with camera capture (authenticity %.2f)", r.floatParam("score"))
	case ReasonExifPartial:
		return fmt.Sprintf("EXIF partially consistent with camera capture (authenticity %.2f)", r.floatParam("score"))
	case ReasonExifMissing:
		return fmt.Sprintf("EXIF sparse or missing (authenticity %.2f)", r.floatParam("score"))
	case ReasonExifInconsistencies:
		return "EXIF inconsistencies: " + strings.Join(r.stringsParam("labels"), ", ")
	case ReasonDetectionVerdict:
		label := "likely real"
		if b, _ := r.Params["is_ai_generated"].(bool); b {
			label = "AI generated"
		}
		model, _ := r.Params["model_id"].(string)
		return fmt.Sprintf("classifier %s: %s (confidence %.1f%%)", model, label, r.floatParam("confidence")*100)
	case ReasonDetectionSkipped:
		return "AI detection skipped"
	default:
		// Unknown codes render as their tag plus sorted params.
		if len(r.Params) == 0 {
			return string(r.Code)
		}
		keys := make([]string, 0, len(r.Params))
		for k := range r.Params {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		parts := make([]string, 0, len(keys))
		for _, k := range keys {
			parts = append(parts, fmt.Sprintf("%s=%v", k, r.Params[k]))
		}
		return string(r.Code) + " " + strings.Join(parts, " ")
	}
}

// RenderTrail joins the rendered entries with the fixed delimiter.
func RenderTrail(trail []Reason) string {
	parts := make([]string, len(trail))
	for i, r := range trail {
		parts[i] = r.Render()
	}
	return strings.Join(parts, reasonDelimiter)
}

func (r Reason) floatParam(key string) float64 {
	switch v := r.Params[key].(type) {
	case float64:
		return v
	case float32:
		return float64(v)
	case int:
		return float64(v)
	default:
		return 0
	}
}

func (r Reason) stringsParam(key string) []string {
	switch v := r.Params[key].(type) {
	case []string:
		return v
	case []any:
		out := make([]string, 0, len(v))
		for _, e := range v {
			if s, ok := e.(string); ok {
				out = append(out, s)
			}
		}
		return out
	default:
		return nil
	}
}
