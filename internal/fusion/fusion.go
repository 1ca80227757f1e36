// Package fusion implements the evidence-fusion engine: a pure, deterministic
// function combining the hash, metadata, and detection signals into a verdict,
// a confidence, and a causally ordered reasoning trail.
package fusion

import (
	"math"

	"github.com/sells-group/imagegate/internal/model"
)

// Config holds the fusion weights and the verdict threshold. Weights need not
// sum to 1: the verdict only ever compares the ratio of two additive totals,
// so only relative weighting matters.
type Config struct {
	WeightHash          float64
	WeightMetadata      float64
	WeightDetection     float64
	ConfidenceThreshold float64
}

// SimilarityProfile is the canonical configuration: embedding-similarity bands
// with balanced weights.
func SimilarityProfile() Config {
	return Config{
		WeightHash:          0.3,
		WeightMetadata:      0.4,
		WeightDetection:     0.3,
		ConfidenceThreshold: 0.7,
	}
}

// LegacyProfile reproduces the older exact-duplicate weighting, which leaned
// heavily on the classifier. Band logic is identical; only weights differ.
func LegacyProfile() Config {
	return Config{
		WeightHash:          0.1,
		WeightMetadata:      0.3,
		WeightDetection:     0.6,
		ConfidenceThreshold: 0.7,
	}
}

// Result is the engine's output.
type Result struct {
	Verdict    model.Verdict
	Confidence float64
	Trail      []model.Reason

	// Final accumulator totals, kept for logging and tests.
	AIScore   float64
	RealScore float64
}

// Similarity bands for the hash signal.
const (
	simHighBand      = 0.85
	simUncertainBand = 0.70
)

// inconsistencyLabels maps EXIF inconsistency tags to display labels.
// Unknown tags pass through verbatim.
var inconsistencyLabels = map[string]string{
	"editing_software_without_camera": "editing software present without a camera make",
	"perfect_square_ai_resolution":    "perfect-square resolution typical of AI generators",
	"unrealistic_aperture":            "aperture outside any realistic lens range",
	"missing_datetime_original":       "capture timestamp (DateTimeOriginal) missing",
}

// accumulator holds the two running totals. Contributions are non-negative
// additions to exactly one side; neither total is ever decremented, which
// keeps the final ratio in [0,1].
type accumulator struct {
	ai, real float64
}

func (a *accumulator) addAI(w float64) {
	a.ai += math.Max(0, w)
}

func (a *accumulator) addReal(w float64) {
	a.real += math.Max(0, w)
}

// Fuse combines the three signals under cfg. It is side-effect-free and safe
// for arbitrary concurrent use; all state lives in locals. A nil detection
// signal means the classifier was skipped or degraded.
func Fuse(hash model.HashSignal, meta model.MetadataSignal, detection *model.DetectionSignal, cfg Config) Result {
	var acc accumulator
	trail := make([]model.Reason, 0, 8)

	trail = append(trail, scoreHash(&acc, hash, cfg))
	trail = append(trail, scoreMetadata(&acc, meta, cfg)...)
	trail = append(trail, scoreDetection(&acc, detection, cfg))

	verdict, confidence := resolve(acc, cfg)

	return Result{
		Verdict:    verdict,
		Confidence: confidence,
		Trail:      trail,
		AIScore:    acc.ai,
		RealScore:  acc.real,
	}
}

// scoreHash applies the piecewise similarity bands.
func scoreHash(acc *accumulator, hash model.HashSignal, cfg Config) model.Reason {
	s := hash.Similarity

	switch {
	case s >= simHighBand:
		// 50% of the hash weight at the band edge, 100% at similarity 1.0.
		acc.addAI(cfg.WeightHash * math.Min((s-simHighBand)/0.15+0.5, 1.0))
		return model.Reason{Code: model.ReasonHashSimilarityHigh, Params: map[string]any{"similarity": s}}

	case s >= simUncertainBand:
		// Uncertainty band: evidence split between both sides.
		u := (simHighBand - s) / 0.15
		acc.addAI(cfg.WeightHash * 0.5 * (1 - u))
		acc.addReal(cfg.WeightHash * 0.5 * u)
		return model.Reason{Code: model.ReasonHashSimilarityUncertain, Params: map[string]any{"similarity": s}}

	default:
		acc.addReal(cfg.WeightHash * 0.5)
		return model.Reason{Code: model.ReasonHashSimilarityLow, Params: map[string]any{"similarity": s}}
	}
}

// scoreMetadata applies the independent, additive metadata terms in fixed order:
// tool signatures, provenance marker, EXIF authenticity, EXIF inconsistencies.
func scoreMetadata(acc *accumulator, meta model.MetadataSignal, cfg Config) []model.Reason {
	reasons := make([]model.Reason, 0, 4)

	if len(meta.AIToolSignatures) > 0 {
		acc.addAI(cfg.WeightMetadata * 0.4)
		reasons = append(reasons, model.Reason{
			Code:   model.ReasonAIToolSignatures,
			Params: map[string]any{"signatures": meta.AIToolSignatures},
		})
	}

	if meta.HasProvenanceMarker {
		if hasAIAssertions(meta.ProvenanceInfo) {
			acc.addAI(cfg.WeightMetadata * 0.2)
			reasons = append(reasons, model.Reason{Code: model.ReasonProvenanceAI})
		} else {
			acc.addReal(cfg.WeightMetadata * 0.15)
			reasons = append(reasons, model.Reason{Code: model.ReasonProvenanceClean})
		}
	}

	e := meta.ExifAuthenticityScore
	switch {
	case e >= 0.7:
		acc.addReal(cfg.WeightMetadata * 0.35 * e)
		reasons = append(reasons, model.Reason{Code: model.ReasonExifConsistent, Params: map[string]any{"score": e}})
	case e >= 0.3:
		acc.addReal(cfg.WeightMetadata * 0.15 * e)
		reasons = append(reasons, model.Reason{Code: model.ReasonExifPartial, Params: map[string]any{"score": e}})
	default:
		acc.addAI(cfg.WeightMetadata * 0.25)
		reasons = append(reasons, model.Reason{Code: model.ReasonExifMissing, Params: map[string]any{"score": e}})
	}

	if n := len(meta.ExifInconsistencies); n > 0 {
		weight := math.Min(float64(n)*0.05, 0.15)
		acc.addAI(cfg.WeightMetadata * weight)
		labels := make([]string, n)
		for i, tag := range meta.ExifInconsistencies {
			if label, ok := inconsistencyLabels[tag]; ok {
				labels[i] = label
			} else {
				labels[i] = tag
			}
		}
		reasons = append(reasons, model.Reason{
			Code:   model.ReasonExifInconsistencies,
			Params: map[string]any{"labels": labels, "count": n},
		})
	}

	return reasons
}

// scoreDetection applies the classifier term, or records its absence.
func scoreDetection(acc *accumulator, detection *model.DetectionSignal, cfg Config) model.Reason {
	if detection == nil {
		return model.Reason{Code: model.ReasonDetectionSkipped}
	}

	if detection.IsAIGenerated {
		acc.addAI(cfg.WeightDetection * detection.Confidence)
	} else {
		acc.addReal(cfg.WeightDetection * detection.Confidence)
	}
	return model.Reason{
		Code: model.ReasonDetectionVerdict,
		Params: map[string]any{
			"model_id":        detection.ModelID,
			"is_ai_generated": detection.IsAIGenerated,
			"confidence":      detection.Confidence,
		},
	}
}

// resolve turns the accumulator totals into the final verdict and confidence.
func resolve(acc accumulator, cfg Config) (model.Verdict, float64) {
	total := acc.ai + acc.real
	if total == 0 {
		return model.VerdictUncertain, 0.5
	}

	ratio := acc.ai / total
	switch {
	case ratio >= cfg.ConfidenceThreshold:
		return model.VerdictAIGenerated, round4(ratio)
	case ratio <= 1-cfg.ConfidenceThreshold:
		return model.VerdictLikelyReal, round4(1 - ratio)
	default:
		return model.VerdictUncertain, round4(0.5 + math.Abs(ratio-0.5))
	}
}

// hasAIAssertions reports whether the provenance info flags AI generation.
func hasAIAssertions(info map[string]any) bool {
	if info == nil {
		return false
	}
	switch v := info["ai_related_assertions"].(type) {
	case bool:
		return v
	case string:
		return v != ""
	case []string:
		return len(v) > 0
	case []any:
		return len(v) > 0
	default:
		return false
	}
}

func round4(v float64) float64 {
	return math.Round(v*10000) / 10000
}
