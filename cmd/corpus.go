package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/imagegate/internal/corpus"
	"github.com/sells-group/imagegate/internal/hashsig"
)

var (
	corpusSource string
	corpusLabel  string
)

var corpusCmd = &cobra.Command{
	Use:   "corpus",
	Short: "Manage the reference corpus of known-generated images",
}

var corpusAddCmd = &cobra.Command{
	Use:   "add <images...>",
	Short: "Hash images and add them to the corpus",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		store, err := openCorpus(ctx)
		if err != nil {
			return err
		}
		defer store.Close()

		var added int
		for _, path := range args {
			data, err := os.ReadFile(path)
			if err != nil {
				zap.L().Warn("skipping unreadable file", zap.String("path", path), zap.Error(err))
				continue
			}
			hash, err := hashsig.PerceptualHash(data)
			if err != nil {
				zap.L().Warn("skipping undecodable image", zap.String("path", path), zap.Error(err))
				continue
			}
			source := corpusSource
			if source == "" {
				source = filepath.Base(path)
			}
			if err := store.Add(ctx, hash, source, corpusLabel); err != nil {
				return eris.Wrapf(err, "add %s", path)
			}
			added++
		}

		count, err := store.Count(ctx)
		if err != nil {
			return err
		}
		fmt.Printf("added %d of %d files, corpus now holds %d hashes\n", added, len(args), count)
		return nil
	},
}

var corpusStatsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show corpus size",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		store, err := openCorpus(ctx)
		if err != nil {
			return err
		}
		defer store.Close()

		count, err := store.Count(ctx)
		if err != nil {
			return err
		}
		fmt.Printf("corpus: %s\nhashes: %d\n", cfg.Hash.CorpusPath, count)
		return nil
	},
}

func openCorpus(ctx context.Context) (*corpus.Store, error) {
	if cfg.Hash.CorpusPath == "" {
		return nil, eris.New("hash.corpus_path is not configured")
	}
	store, err := corpus.Open(cfg.Hash.CorpusPath)
	if err != nil {
		return nil, eris.Wrap(err, "open corpus")
	}
	if err := store.Migrate(ctx); err != nil {
		_ = store.Close()
		return nil, eris.Wrap(err, "migrate corpus")
	}
	return store, nil
}

func init() {
	corpusAddCmd.Flags().StringVar(&corpusSource, "source", "", "source tag stored with each hash (default: filename)")
	corpusAddCmd.Flags().StringVar(&corpusLabel, "label", "ai_generated", "label stored with each hash")
	corpusCmd.AddCommand(corpusAddCmd)
	corpusCmd.AddCommand(corpusStatsCmd)
	rootCmd.AddCommand(corpusCmd)
}
