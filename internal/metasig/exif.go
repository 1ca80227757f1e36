package metasig

import (
	"bytes"
	"strconv"
	"time"

	"github.com/bep/imagemeta"
)

// exifFields is the subset of embedded metadata the signal derives from.
type exifFields struct {
	Make             string
	Model            string
	Software         string
	Artist           string
	Description      string
	CreatorTool      string
	DateTimeOriginal *time.Time
	FNumber          float64
	HasExposureTime  bool
	HasISO           bool
	HasFocalLength   bool
	HasGPS           bool
}

// wantedTags maps (source, tag-name) → true for every tag we care about.
var wantedTags = map[imagemeta.Source]map[string]bool{
	imagemeta.EXIF: {
		"Make":                    true,
		"Model":                   true,
		"Software":                true,
		"Artist":                  true,
		"ImageDescription":        true,
		"DateTimeOriginal":        true,
		"FNumber":                 true,
		"ExposureTime":            true,
		"ISOSpeedRatings":         true,
		"PhotographicSensitivity": true,
		"FocalLength":             true,
		"GPSLatitude":             true,
	},
	imagemeta.XMP: {
		"CreatorTool": true,
	},
}

// extractFields parses EXIF/XMP metadata from raw image bytes.
// Unparseable data yields zero-valued fields, never an error.
func extractFields(data []byte) exifFields {
	var fields exifFields
	if len(data) == 0 {
		return fields
	}

	_, _ = imagemeta.Decode(imagemeta.Options{
		R:       bytes.NewReader(data),
		Sources: imagemeta.EXIF | imagemeta.XMP,
		ShouldHandleTag: func(ti imagemeta.TagInfo) bool {
			if tags, ok := wantedTags[ti.Source]; ok {
				return tags[ti.Tag]
			}
			return false
		},
		HandleTag: func(ti imagemeta.TagInfo) error {
			handleTag(&fields, ti)
			return nil
		},
	})

	return fields
}

func handleTag(fields *exifFields, ti imagemeta.TagInfo) {
	switch ti.Tag {
	case "Make":
		fields.Make = tagString(ti.Value)
	case "Model":
		fields.Model = tagString(ti.Value)
	case "Software":
		fields.Software = tagString(ti.Value)
	case "Artist":
		fields.Artist = tagString(ti.Value)
	case "ImageDescription":
		fields.Description = tagString(ti.Value)
	case "CreatorTool":
		fields.CreatorTool = tagString(ti.Value)
	case "DateTimeOriginal":
		if ts := parseExifTime(tagString(ti.Value)); ts != nil {
			fields.DateTimeOriginal = ts
		}
	case "FNumber":
		fields.FNumber = tagFloat(ti.Value)
	case "ExposureTime":
		fields.HasExposureTime = true
	case "ISOSpeedRatings", "PhotographicSensitivity":
		fields.HasISO = true
	case "FocalLength":
		fields.HasFocalLength = true
	case "GPSLatitude":
		fields.HasGPS = true
	}
}

// exifTimeLayout is the EXIF datetime format.
const exifTimeLayout = "2006:01:02 15:04:05"

func parseExifTime(s string) *time.Time {
	if s == "" {
		return nil
	}
	ts, err := time.Parse(exifTimeLayout, s)
	if err != nil {
		return nil
	}
	return &ts
}

// tagString extracts a string from a tag value. XMP values may arrive as
// string slices from altList/seqList containers.
func tagString(v any) string {
	switch val := v.(type) {
	case string:
		return val
	case []string:
		if len(val) > 0 {
			return val[0]
		}
	case []any:
		if len(val) > 0 {
			if s, ok := val[0].(string); ok {
				return s
			}
		}
	}
	return ""
}

// tagFloat extracts a numeric tag value; EXIF rationals decode as float64.
func tagFloat(v any) float64 {
	switch val := v.(type) {
	case float64:
		return val
	case float32:
		return float64(val)
	case int:
		return float64(val)
	case int64:
		return float64(val)
	case uint16:
		return float64(val)
	case uint32:
		return float64(val)
	case string:
		f, _ := strconv.ParseFloat(val, 64)
		return f
	}
	return 0
}
