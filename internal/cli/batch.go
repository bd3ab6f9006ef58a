package cli

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"github.com/ppiankov/kbsync/internal/model"
	"github.com/ppiankov/kbsync/internal/pipeline"
)

var (
	outputDir    string
	batchTimeout time.Duration
)

// batchCmd represents the batch command
var batchCmd = &cobra.Command{
	Use:   "batch <file>",
	Short: "Synchronize every input listed in a file",
	Long: `Batch runs the pipeline for each input listed in a file:
- One file path or URL per line; blank lines and # comments are skipped
- Relative paths resolve against the list file's directory
- Inputs run one after another; all runs commit into the same store
- A failed input is reported and the batch continues

Example:
  kbsync batch inputs.txt
  kbsync batch inputs.txt --output-dir ./reports --timeout 1h`,
	Args: cobra.ExactArgs(1),
	RunE: runBatch,
}

func init() {
	rootCmd.AddCommand(batchCmd)

	batchCmd.Flags().StringVar(&outputDir, "output-dir", "", "write one JSON report per input into this directory")
	batchCmd.Flags().DurationVar(&batchTimeout, "timeout", time.Hour, "total timeout for the batch")
	addPipelineFlags(batchCmd)
}

func runBatch(cmd *cobra.Command, args []string) error {
	file := args[0]

	locations, err := pipeline.ReadInputList(file)
	if err != nil {
		return fmt.Errorf("read input list: %w", err)
	}

	a, err := openApp()
	if err != nil {
		return err
	}
	defer a.close()
	applyPipelineFlags(a.cfg)

	p, err := a.pipeline(&progressObserver{w: os.Stderr})
	if err != nil {
		return err
	}

	ctx, cancel := withTimeout(cmd.Context(), batchTimeout)
	defer cancel()

	fmt.Fprintf(os.Stderr, "\n")
	fmt.Fprintf(os.Stderr, "═══════════════════════════════════════════════════════════\n")
	fmt.Fprintf(os.Stderr, "  kbsync Batch\n")
	fmt.Fprintf(os.Stderr, "═══════════════════════════════════════════════════════════\n")
	fmt.Fprintf(os.Stderr, "\n")
	fmt.Fprintf(os.Stderr, "  Input file:   %s\n", file)
	fmt.Fprintf(os.Stderr, "  Inputs:       %d\n", len(locations))
	fmt.Fprintf(os.Stderr, "  LLM:          %s/%s\n", a.cfg.LLM.Provider, a.cfg.LLM.Model)
	fmt.Fprintf(os.Stderr, "  Timeout:      %v\n", batchTimeout)
	fmt.Fprintf(os.Stderr, "\n")

	if outputDir != "" {
		if err := os.MkdirAll(outputDir, 0755); err != nil {
			return fmt.Errorf("create output directory: %w", err)
		}
	}

	runner := pipeline.NewBatchRunner(a.reader(), p, a.logger.Named("batch"))
	items := runner.Run(ctx, locations)

	for i, item := range items {
		if item.Err != nil {
			fmt.Fprintf(os.Stderr, "✗ %s: %v\n", item.Location, item.Err)
			continue
		}

		mark := "✓"
		if item.Status() != model.RunSucceeded {
			mark = "!"
		}
		fmt.Fprintf(os.Stderr, "%s %s → %s (%s, %d committed, %d failed)\n",
			mark, item.Location, item.Report.Feature.Name, item.Report.Status,
			len(item.Report.Results), len(item.Report.Failures))

		if outputDir != "" {
			path := filepath.Join(outputDir, fmt.Sprintf("%03d-%s.json", i+1, pipeline.Slug(item.Report.Feature.Name)))
			if err := pipeline.RenderJSON(item.Report, path); err != nil {
				fmt.Fprintf(os.Stderr, "✗ %s: failed to write JSON: %v\n", item.Location, err)
			}
		}
	}

	counts := pipeline.CountBatch(items)

	// Summary
	fmt.Fprintf(os.Stderr, "\n")
	fmt.Fprintf(os.Stderr, "═══════════════════════════════════════════════════════════\n")
	fmt.Fprintf(os.Stderr, "  Batch Complete\n")
	fmt.Fprintf(os.Stderr, "═══════════════════════════════════════════════════════════\n")
	fmt.Fprintf(os.Stderr, "\n")
	fmt.Fprintf(os.Stderr, "  Total:      %d inputs\n", len(items))
	fmt.Fprintf(os.Stderr, "  Succeeded:  %d\n", counts.Succeeded)
	fmt.Fprintf(os.Stderr, "  Partial:    %d\n", counts.Partial)
	fmt.Fprintf(os.Stderr, "  Failed:     %d\n", counts.Failed)
	if outputDir != "" {
		fmt.Fprintf(os.Stderr, "  Reports:    %s\n", outputDir)
	}
	fmt.Fprintf(os.Stderr, "\n")

	if counts.Failed > 0 {
		return fmt.Errorf("%d of %d inputs failed", counts.Failed, len(items))
	}
	return nil
}
