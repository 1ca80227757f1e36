package metasig

import "bytes"

// authenticityScore measures how consistent the embedded metadata is with a
// genuine camera capture, as a weighted presence score in [0,1]. Camera make
// and model dominate; the exposure triad, timestamp, optics, and GPS fill in
// the rest.
func authenticityScore(fields exifFields) float64 {
	score := 0.0
	if fields.Make != "" {
		score += 0.20
	}
	if fields.Model != "" {
		score += 0.15
	}
	if fields.DateTimeOriginal != nil {
		score += 0.15
	}
	if fields.FNumber > 0 {
		score += 0.10
	}
	if fields.HasExposureTime {
		score += 0.10
	}
	if fields.HasISO {
		score += 0.10
	}
	if fields.HasFocalLength {
		score += 0.10
	}
	if fields.HasGPS {
		score += 0.10
	}
	if score > 1 {
		score = 1
	}
	return score
}

// aiSquareSizes are edge lengths common to generator output grids.
var aiSquareSizes = map[int]bool{
	256:  true,
	512:  true,
	640:  true,
	768:  true,
	1024: true,
	1280: true,
	1536: true,
	2048: true,
}

// Aperture values outside this range do not correspond to any real lens.
const (
	minRealisticAperture = 0.7
	maxRealisticAperture = 45
)

// findInconsistencies derives the ordered inconsistency tags from the
// extracted fields and pixel dimensions.
func findInconsistencies(fields exifFields, width, height int) []string {
	var tags []string

	if fields.Software != "" && fields.Make == "" {
		tags = append(tags, "editing_software_without_camera")
	}
	if width > 0 && width == height && aiSquareSizes[width] {
		tags = append(tags, "perfect_square_ai_resolution")
	}
	if fields.FNumber > 0 && (fields.FNumber < minRealisticAperture || fields.FNumber > maxRealisticAperture) {
		tags = append(tags, "unrealistic_aperture")
	}
	if fields.Make != "" && fields.DateTimeOriginal == nil {
		tags = append(tags, "missing_datetime_original")
	}

	return tags
}

// provenanceMarkers are byte signatures of embedded content-credential
// (C2PA) structures: claim URNs, assertion labels, and the JUMBF box type.
var provenanceMarkers = []string{
	"urn:c2pa",
	"c2pa.claim",
	"c2pa.assertions",
	"jumdc2pa",
	"contentauth",
}

// aiAssertionMarkers flag AI generation inside a content-credential record.
// trainedAlgorithmicMedia is the IPTC digital-source-type for generator output.
var aiAssertionMarkers = []string{
	"compositewithtrainedalgorithmicmedia",
	"trainedalgorithmicmedia",
	"c2pa.ai_generative",
}

// scanProvenance looks for content-credential markers in the raw bytes.
// This detects, it does not cryptographically validate.
func scanProvenance(data []byte) (bool, map[string]any) {
	lower := bytes.ToLower(data)

	var markers []string
	for _, m := range provenanceMarkers {
		if bytes.Contains(lower, []byte(m)) {
			markers = append(markers, m)
		}
	}
	if len(markers) == 0 {
		return false, nil
	}

	var assertions []string
	for _, m := range aiAssertionMarkers {
		if bytes.Contains(lower, []byte(m)) {
			assertions = append(assertions, m)
		}
	}

	info := map[string]any{"markers": markers}
	if len(assertions) > 0 {
		info["ai_related_assertions"] = assertions
	}
	return true, info
}
