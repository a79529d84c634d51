package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/ppiankov/paralogia/internal/model"
)

var (
	analyzeStream  bool
	analyzeNoCache bool
	analyzeTimeout time.Duration
)

// analyzeCmd represents the analyze command
var analyzeCmd = &cobra.Command{
	Use:   "analyze <text>",
	Short: "Analyze a single text for logical fallacies",
	Long: `Analyze sends one text to the configured LLM provider and prints the
detected fallacies as JSON.

With --stream, intermediate snapshots are printed as findings arrive; the
last printed object carries "isFinalResult": true.

Example:
  paralogia analyze "X causes Y, therefore X causes everything bad"
  paralogia analyze --stream "Everyone knows this, so it must be true"
  paralogia analyze --no-cache "..."`,
	Args: cobra.ExactArgs(1),
	RunE: runAnalyze,
}

func init() {
	rootCmd.AddCommand(analyzeCmd)

	analyzeCmd.Flags().BoolVar(&analyzeStream, "stream", false, "stream incremental snapshots")
	analyzeCmd.Flags().BoolVar(&analyzeNoCache, "no-cache", false, "bypass the cache for streaming analysis")
	analyzeCmd.Flags().DurationVar(&analyzeTimeout, "timeout", 2*time.Minute, "overall analysis timeout")
	analyzeCmd.Flags().StringVar(&llmProvider, "llm-provider", "openai", "LLM provider (openai, anthropic, ollama)")
	analyzeCmd.Flags().StringVar(&llmModel, "llm-model", "", "LLM model name (provider default when empty)")
}

func runAnalyze(cmd *cobra.Command, args []string) error {
	text := args[0]
	ctx, cancel := context.WithTimeout(cmd.Context(), analyzeTimeout)
	defer cancel()

	cfg := model.DefaultConfig()
	cfg.LLM.Provider = llmProvider
	cfg.LLM.Model = llmModel
	if err := resolveAPIKey(cfg); err != nil {
		return err
	}

	log := newLogger(cfg)
	detector, _, err := buildServices(cfg, log)
	if err != nil {
		return err
	}

	if !analyzeStream {
		result, err := detector.Analyze(ctx, text)
		if err != nil {
			return err
		}
		return printResult(result)
	}

	for result, err := range detector.AnalyzeStream(ctx, text, analyzeNoCache) {
		if err != nil {
			return err
		}
		if !result.IsFinalResult {
			fmt.Fprintf(os.Stderr, "… %d finding(s) so far\n", len(result.Fallacies))
			continue
		}
		if err := printResult(result); err != nil {
			return err
		}
	}
	return nil
}

func printResult(result *model.AnalysisResult) error {
	out, err := json.MarshalIndent(result, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal result: %w", err)
	}
	fmt.Println(string(out))
	return nil
}
