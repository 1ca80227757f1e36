// Package metasig produces the metadata-authenticity evidence signal from
// embedded EXIF/XMP metadata, content-credential markers, and AI tool
// signatures.
package metasig

import (
	"bytes"
	"context"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"os"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	_ "golang.org/x/image/webp"
	"gopkg.in/yaml.v3"

	"github.com/sells-group/imagegate/internal/model"
)

// defaultSignatures are substrings that mark output of a known generative
// tool when found (case-insensitive) in metadata fields or the filename.
var defaultSignatures = []string{
	"midjourney",
	"dall-e",
	"dall·e",
	"dalle",
	"stable diffusion",
	"stablediffusion",
	"sdxl",
	"dreamstudio",
	"adobe firefly",
	"firefly",
	"leonardo.ai",
	"ideogram",
	"imagen",
	"novelai",
	"niji",
	"flux.1",
	"comfyui",
	"automatic1111",
	"invokeai",
	"craiyon",
	"ai generated",
	"ai-generated",
}

// Provider computes MetadataSignals.
type Provider struct {
	signatures []string
}

// New creates a Provider. Extra patterns are checked after the built-in list.
func New(extra []string) *Provider {
	return &Provider{signatures: append(append([]string{}, defaultSignatures...), extra...)}
}

// signatureFile is the YAML shape for an override pattern list.
type signatureFile struct {
	Signatures []string `yaml:"signatures"`
}

// LoadSignatureFile reads extra AI-tool signature patterns from a YAML file.
func LoadSignatureFile(path string) ([]string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, eris.Wrap(err, "metasig: read signature file")
	}
	var f signatureFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, eris.Wrap(err, "metasig: parse signature file")
	}
	return f.Signatures, nil
}

// Analyze extracts the metadata signal from raw image bytes. It never fails
// across the provider boundary: anything unreadable leaves the affected
// fields at their neutral values.
func (p *Provider) Analyze(ctx context.Context, data []byte, filename string) model.MetadataSignal {
	fields := extractFields(data)

	width, height := 0, 0
	if cfg, _, err := image.DecodeConfig(bytes.NewReader(data)); err == nil {
		width, height = cfg.Width, cfg.Height
	}

	sig := model.MetadataSignal{
		AIToolSignatures:      p.detectSignatures(fields, filename),
		SoftwareUsed:          fields.Software,
		CreationDate:          fields.DateTimeOriginal,
		ExifAuthenticityScore: authenticityScore(fields),
		ExifInconsistencies:   findInconsistencies(fields, width, height),
	}

	sig.HasProvenanceMarker, sig.ProvenanceInfo = scanProvenance(data)

	zap.L().Debug("metasig: analyzed",
		zap.String("filename", filename),
		zap.Float64("authenticity", sig.ExifAuthenticityScore),
		zap.Int("signatures", len(sig.AIToolSignatures)),
	)
	return sig
}

// detectSignatures scans metadata text fields and the filename for generative
// tool fingerprints. Pattern-list order is preserved; each pattern is reported
// at most once.
func (p *Provider) detectSignatures(fields exifFields, filename string) []string {
	haystack := strings.ToLower(strings.Join([]string{
		fields.Software,
		fields.Artist,
		fields.Description,
		fields.CreatorTool,
		filename,
	}, "\n"))

	var found []string
	for _, pattern := range p.signatures {
		if strings.Contains(haystack, strings.ToLower(pattern)) {
			found = append(found, pattern)
		}
	}
	return found
}
