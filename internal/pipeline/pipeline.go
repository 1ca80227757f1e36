// Package pipeline orchestrates one analysis: it dispatches the three signal
// providers in parallel, joins their outcomes, runs the fusion engine once,
// and assembles the final analysis record. Batch mode fans out over items
// with bounded parallelism and per-item failure isolation.
package pipeline

import (
	"bytes"
	"context"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	_ "golang.org/x/image/webp"
	"golang.org/x/sync/errgroup"

	"github.com/sells-group/imagegate/internal/fusion"
	"github.com/sells-group/imagegate/internal/model"
)

// ErrUnreadableImage marks a request-level decode failure: no provider ran,
// no fusion was attempted.
var ErrUnreadableImage = eris.New("pipeline: unreadable image")

// HashProvider produces the hash-similarity signal. Implementations recover
// internal failures into a neutral signal.
type HashProvider interface {
	Compute(ctx context.Context, data []byte) model.HashSignal
}

// MetadataProvider produces the metadata-authenticity signal.
type MetadataProvider interface {
	Analyze(ctx context.Context, data []byte, filename string) model.MetadataSignal
}

// DetectionProvider produces the classifier signal. An error marks the signal
// absent for this request; it is never treated as fatal.
type DetectionProvider interface {
	Detect(ctx context.Context, data []byte) (*model.DetectionSignal, error)
}

// DefaultStageTimeout bounds each provider call. A provider exceeding it is
// treated as absent/neutral, not as a request failure.
const DefaultStageTimeout = 30 * time.Second

// Analyzer owns provider lifecycles and runs analyses. Safe for concurrent
// use; each call keeps all mutable state in locals.
type Analyzer struct {
	hash         HashProvider
	metadata     MetadataProvider
	detection    DetectionProvider
	fusionCfg    fusion.Config
	stageTimeout time.Duration
}

// NewAnalyzer wires the providers and fusion configuration together.
// A nil detection provider means detection is unavailable; timeout <= 0
// selects DefaultStageTimeout.
func NewAnalyzer(hash HashProvider, metadata MetadataProvider, detection DetectionProvider, fusionCfg fusion.Config, stageTimeout time.Duration) *Analyzer {
	if stageTimeout <= 0 {
		stageTimeout = DefaultStageTimeout
	}
	return &Analyzer{
		hash:         hash,
		metadata:     metadata,
		detection:    detection,
		fusionCfg:    fusionCfg,
		stageTimeout: stageTimeout,
	}
}

// Options controls a single analysis.
type Options struct {
	// SkipDetection leaves the classifier out for a faster answer.
	SkipDetection bool
}

// Analyze runs the full pipeline for one image.
func (a *Analyzer) Analyze(ctx context.Context, data []byte, filename string, opts Options) (*model.AnalysisRecord, error) {
	if _, _, err := image.DecodeConfig(bytes.NewReader(data)); err != nil {
		return nil, eris.Wrapf(ErrUnreadableImage, "%s: %v", filename, err)
	}

	start := time.Now()

	var (
		hashSig model.HashSignal
		metaSig model.MetadataSignal
		detSig  *model.DetectionSignal

		hashMs, metaMs, detMs float64

		runDet = !opts.SkipDetection && a.detection != nil
	)

	// Providers run in parallel; fusion starts only after all three outcomes
	// (success or documented absence) are in.
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		stageStart := time.Now()
		sctx, cancel := context.WithTimeout(gctx, a.stageTimeout)
		defer cancel()
		hashSig = a.hash.Compute(sctx, data)
		hashMs = msSince(stageStart)
		return nil
	})

	g.Go(func() error {
		stageStart := time.Now()
		sctx, cancel := context.WithTimeout(gctx, a.stageTimeout)
		defer cancel()
		metaSig = a.metadata.Analyze(sctx, data, filename)
		metaMs = msSince(stageStart)
		return nil
	})

	if runDet {
		g.Go(func() error {
			stageStart := time.Now()
			sctx, cancel := context.WithTimeout(gctx, a.stageTimeout)
			defer cancel()
			sig, err := a.detection.Detect(sctx, data)
			detMs = msSince(stageStart)
			if err != nil {
				// Degraded, not fatal: the trail will record the absence.
				zap.L().Warn("pipeline: detection degraded",
					zap.String("filename", filename),
					zap.Error(err),
				)
				return nil
			}
			detSig = sig
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, eris.Wrap(err, "pipeline: canceled")
	}

	res := fusion.Fuse(hashSig, metaSig, detSig, a.fusionCfg)

	layers := []string{model.StageHashCheck, model.StageMetadataAnalysis}
	timings := map[string]float64{
		model.StageHashCheck:        hashMs,
		model.StageMetadataAnalysis: metaMs,
	}
	if runDet {
		layers = append(layers, model.StageAIDetection)
		timings[model.StageAIDetection] = detMs
	}

	record := &model.AnalysisRecord{
		ID:                   uuid.New().String(),
		Filename:             filename,
		AnalyzedAt:           time.Now().UTC(),
		HashResult:           hashSig,
		MetadataResult:       metaSig,
		DetectionResult:      detSig,
		FinalVerdict:         res.Verdict,
		ConfidenceScore:      res.Confidence,
		Reasoning:            model.RenderTrail(res.Trail),
		ReasoningTrail:       res.Trail,
		TotalExecutionTimeMs: msSince(start),
		StageTimingsMs:       timings,
		LayersExecuted:       layers,
	}

	zap.L().Info("pipeline: analysis complete",
		zap.String("id", record.ID),
		zap.String("filename", filename),
		zap.String("verdict", string(record.FinalVerdict)),
		zap.Float64("confidence", record.ConfidenceScore),
		zap.Float64("ai_score", res.AIScore),
		zap.Float64("real_score", res.RealScore),
		zap.Float64("total_ms", record.TotalExecutionTimeMs),
	)
	return record, nil
}

func msSince(t time.Time) float64 {
	return float64(time.Since(t).Microseconds()) / 1000
}
