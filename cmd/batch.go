package main

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/imagegate/internal/pipeline"
)

var (
	batchConcurrency   int
	batchSkipDetection bool
	batchOutput        string
)

// imageExts gates which directory entries the batch command picks up.
var imageExts = map[string]bool{
	".jpg":  true,
	".jpeg": true,
	".png":  true,
	".gif":  true,
	".webp": true,
}

var batchCmd = &cobra.Command{
	Use:   "batch <dir-or-images...>",
	Short: "Analyze a directory or list of images",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		env, err := initAnalyzer(ctx, "analyze")
		if err != nil {
			return err
		}
		defer env.Close()

		paths, err := collectImagePaths(args)
		if err != nil {
			return err
		}
		if len(paths) == 0 {
			return eris.New("no image files found")
		}

		items := make([]pipeline.BatchItem, 0, len(paths))
		for _, path := range paths {
			data, err := os.ReadFile(path)
			if err != nil {
				zap.L().Warn("skipping unreadable file", zap.String("path", path), zap.Error(err))
				continue
			}
			items = append(items, pipeline.BatchItem{Filename: filepath.Base(path), Data: data})
		}

		concurrency := batchConcurrency
		if concurrency == 0 {
			concurrency = cfg.Batch.Concurrency
		}

		result := env.Analyzer.AnalyzeBatch(ctx, items, concurrency, pipeline.Options{
			SkipDetection: batchSkipDetection,
		})

		out := os.Stdout
		if batchOutput != "" {
			f, err := os.Create(batchOutput)
			if err != nil {
				return eris.Wrap(err, "create output file")
			}
			defer f.Close()
			out = f
		}

		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		if err := enc.Encode(result); err != nil {
			return eris.Wrap(err, "encode results")
		}

		zap.L().Info("batch complete",
			zap.Int("total", result.TotalProcessed),
			zap.Int("ai_generated", result.AIGeneratedCount),
			zap.Int("likely_real", result.LikelyRealCount),
			zap.Int("uncertain", result.UncertainCount),
		)
		return nil
	},
}

// collectImagePaths expands directory arguments into their image files and
// passes file arguments through unchanged.
func collectImagePaths(args []string) ([]string, error) {
	var paths []string
	for _, arg := range args {
		info, err := os.Stat(arg)
		if err != nil {
			return nil, eris.Wrapf(err, "stat %s", arg)
		}
		if !info.IsDir() {
			paths = append(paths, arg)
			continue
		}
		entries, err := os.ReadDir(arg)
		if err != nil {
			return nil, eris.Wrapf(err, "read dir %s", arg)
		}
		for _, entry := range entries {
			if entry.IsDir() {
				continue
			}
			if imageExts[strings.ToLower(filepath.Ext(entry.Name()))] {
				paths = append(paths, filepath.Join(arg, entry.Name()))
			}
		}
	}
	return paths, nil
}

func init() {
	batchCmd.Flags().IntVar(&batchConcurrency, "concurrency", 0, "parallel analyses (default from config)")
	batchCmd.Flags().BoolVar(&batchSkipDetection, "skip-detection", false, "skip the vision classifier stage")
	batchCmd.Flags().StringVarP(&batchOutput, "output", "o", "", "write results to file instead of stdout")
	rootCmd.AddCommand(batchCmd)
}
