package main

import (
	"encoding/json"
	"os"
	"path/filepath"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/sells-group/imagegate/internal/pipeline"
)

var analyzeSkipDetection bool

var analyzeCmd = &cobra.Command{
	Use:   "analyze <image>",
	Short: "Analyze a single image and print the result as JSON",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		env, err := initAnalyzer(ctx, "analyze")
		if err != nil {
			return err
		}
		defer env.Close()

		data, err := os.ReadFile(args[0])
		if err != nil {
			return eris.Wrap(err, "read image")
		}

		record, err := env.Analyzer.Analyze(ctx, data, filepath.Base(args[0]), pipeline.Options{
			SkipDetection: analyzeSkipDetection,
		})
		if err != nil {
			return err
		}

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(record)
	},
}

func init() {
	analyzeCmd.Flags().BoolVar(&analyzeSkipDetection, "skip-detection", false, "skip the vision classifier stage")
	rootCmd.AddCommand(analyzeCmd)
}
