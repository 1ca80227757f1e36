package main

import (
	"context"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/imagegate/internal/corpus"
	"github.com/sells-group/imagegate/internal/detect"
	"github.com/sells-group/imagegate/internal/hashsig"
	"github.com/sells-group/imagegate/internal/metasig"
	"github.com/sells-group/imagegate/internal/pipeline"
)

// analyzerEnv holds the corpus store and the assembled analyzer needed by
// the analyze/batch/serve commands.
type analyzerEnv struct {
	Corpus   *corpus.Store
	Analyzer *pipeline.Analyzer
}

// Close releases resources held by the environment.
func (ae *analyzerEnv) Close() {
	if ae.Corpus != nil {
		_ = ae.Corpus.Close()
	}
}

// initAnalyzer opens the corpus, builds the three signal providers, and
// assembles the analyzer. Callers should defer env.Close().
func initAnalyzer(ctx context.Context, mode string) (*analyzerEnv, error) {
	if err := cfg.Validate(mode); err != nil {
		return nil, err
	}

	fusionCfg, err := cfg.FusionSettings()
	if err != nil {
		return nil, err
	}

	var store *corpus.Store
	if cfg.Hash.CorpusPath != "" {
		store, err = corpus.Open(cfg.Hash.CorpusPath)
		if err != nil {
			return nil, eris.Wrap(err, "open corpus")
		}
		if err := store.Migrate(ctx); err != nil {
			_ = store.Close()
			return nil, eris.Wrap(err, "migrate corpus")
		}
	} else {
		zap.L().Info("no corpus configured, hash similarity disabled")
	}

	patterns := cfg.Metadata.ExtraPatterns
	if cfg.Metadata.SignatureFile != "" {
		loaded, err := metasig.LoadSignatureFile(cfg.Metadata.SignatureFile)
		if err != nil {
			if store != nil {
				_ = store.Close()
			}
			return nil, eris.Wrap(err, "load signature file")
		}
		patterns = append(patterns, loaded...)
	}

	var detector pipeline.DetectionProvider
	if cfg.Detection.AnthropicKey != "" {
		anthropic := detect.NewAnthropic(cfg.Detection.AnthropicKey, cfg.Detection.Model, cfg.Detection.RequestsPerMinute)
		detector = detect.WithBreaker(anthropic, 0, 0)
		zap.L().Info("ai detection enabled", zap.String("model", cfg.Detection.Model))
	} else {
		zap.L().Warn("IMAGEGATE_DETECTION_ANTHROPIC_KEY not set, ai detection disabled")
	}

	analyzer := pipeline.NewAnalyzer(
		hashsig.New(store, cfg.Hash.MatchThreshold),
		metasig.New(patterns),
		detector,
		fusionCfg,
		time.Duration(cfg.Detection.TimeoutSecs)*time.Second,
	)

	return &analyzerEnv{Corpus: store, Analyzer: analyzer}, nil
}
