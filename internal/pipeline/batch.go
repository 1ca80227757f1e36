package pipeline

import (
	"context"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/sells-group/imagegate/internal/model"
)

// BatchItem is one image queued for batch analysis.
type BatchItem struct {
	Filename string
	Data     []byte
}

// DefaultBatchConcurrency bounds the batch worker pool when no limit is set.
const DefaultBatchConcurrency = 4

// AnalyzeBatch processes items with bounded parallelism. Items are
// independent: one item's failure yields an error entry, never an aborted
// batch, and results keep the original input order.
func (a *Analyzer) AnalyzeBatch(ctx context.Context, items []BatchItem, concurrency int, opts Options) *model.BatchResult {
	if concurrency <= 0 {
		concurrency = DefaultBatchConcurrency
	}

	zap.L().Info("pipeline: processing batch",
		zap.Int("items", len(items)),
		zap.Int("concurrency", concurrency),
	)

	result := &model.BatchResult{
		Results: make([]model.BatchEntry, len(items)),
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(concurrency)

	for i, item := range items {
		g.Go(func() error {
			record, err := a.Analyze(gctx, item.Data, item.Filename, opts)
			if err != nil {
				zap.L().Warn("pipeline: batch item failed",
					zap.String("filename", item.Filename),
					zap.Error(err),
				)
				result.Results[i] = model.BatchEntry{Filename: item.Filename, Err: err.Error()}
				return nil // don't abort the batch on individual failure
			}
			result.Results[i] = model.BatchEntry{Record: record, Filename: item.Filename}
			return nil
		})
	}

	_ = g.Wait() // workers never return errors

	result.Tally()

	zap.L().Info("pipeline: batch complete",
		zap.Int("total", result.TotalProcessed),
		zap.Int("ai_generated", result.AIGeneratedCount),
		zap.Int("likely_real", result.LikelyRealCount),
		zap.Int("uncertain", result.UncertainCount),
	)
	return result
}
