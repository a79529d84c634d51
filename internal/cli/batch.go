package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"runtime"
	"time"

	"github.com/spf13/cobra"

	"github.com/ppiankov/paralogia/internal/model"
	"github.com/ppiankov/paralogia/internal/worker"
)

var (
	concurrency  int
	batchOutput  string
	batchTimeout time.Duration
)

// batchCmd represents the batch command
var batchCmd = &cobra.Command{
	Use:   "batch <file>",
	Short: "Analyze multiple texts from a file in parallel",
	Long: `Batch analyzes multiple texts concurrently:
- Read texts from the input file (one per line, # comments skipped)
- Analyze texts in parallel with a configurable worker count
- Identical texts are served from the cache after the first analysis
- Write all results as a single JSON document

Example:
  paralogia batch texts.txt
  paralogia batch texts.txt --concurrency 8 --output results.json`,
	Args: cobra.ExactArgs(1),
	RunE: runBatch,
}

func init() {
	rootCmd.AddCommand(batchCmd)

	batchCmd.Flags().IntVar(&concurrency, "concurrency", runtime.NumCPU(), "number of concurrent workers")
	batchCmd.Flags().StringVar(&batchOutput, "output", "", "output JSON path (stdout when empty)")
	batchCmd.Flags().DurationVar(&batchTimeout, "timeout", 10*time.Minute, "total timeout for batch processing")
	batchCmd.Flags().StringVar(&llmProvider, "llm-provider", "openai", "LLM provider (openai, anthropic, ollama)")
	batchCmd.Flags().StringVar(&llmModel, "llm-model", "", "LLM model name (provider default when empty)")
}

// batchEntry is one line of the batch report.
type batchEntry struct {
	Text   string                `json:"text"`
	Result *model.AnalysisResult `json:"result,omitempty"`
	Error  string                `json:"error,omitempty"`
}

func runBatch(cmd *cobra.Command, args []string) error {
	file := args[0]
	ctx, cancel := context.WithTimeout(cmd.Context(), batchTimeout)
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

	processor := worker.NewBatchProcessor(detector, concurrency)

	results, err := processor.ProcessFile(ctx, file)
	if err != nil {
		return fmt.Errorf("process file: %w", err)
	}

	entries := make([]batchEntry, 0, len(results))
	failed := 0
	for _, r := range results {
		entry := batchEntry{Text: r.Text, Result: r.Result}
		if r.Error != nil {
			entry.Error = r.Error.Error()
			failed++
		}
		entries = append(entries, entry)
	}

	out, err := json.MarshalIndent(entries, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal results: %w", err)
	}

	if batchOutput == "" {
		fmt.Println(string(out))
	} else {
		if err := os.WriteFile(batchOutput, out, 0644); err != nil {
			return fmt.Errorf("write output: %w", err)
		}
		fmt.Fprintf(os.Stderr, "✓ Wrote %d result(s): %s\n", len(entries), batchOutput)
	}

	if failed > 0 {
		fmt.Fprintf(os.Stderr, "⚠ %d of %d analyses failed\n", failed, len(entries))
	}
	return nil
}
