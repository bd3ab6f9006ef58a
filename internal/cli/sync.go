package cli

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/ppiankov/kbsync/internal/model"
	"github.com/ppiankov/kbsync/internal/pipeline"
)

var (
	outJSON     string
	runTimeout  time.Duration
	showClean   bool
	llmProvider string
	llmModel    string
	concurrency int
)

// syncCmd represents the sync command
var syncCmd = &cobra.Command{
	Use:   "sync <input>",
	Short: "Synchronize one source document into its feature's articles",
	Long: `Sync runs one document through the pipeline:
- Clean the raw text into an end-user Markdown body
- Classify the body against the subject/feature catalog
- Resolve the feature (exact match only)
- For every article type the feature declares, merge the body into the
  previous document version and regenerate the article, then commit a new
  version

<input> is a .md/.txt/.html file, an http(s) URL, or - for stdin.

Example:
  kbsync sync notes/account-setup.md
  kbsync sync https://wiki.example.com/display/DOC/Search --json report.json
  cat export.html | kbsync sync - --llm-provider ollama --llm-model llama3`,
	Args: cobra.ExactArgs(1),
	RunE: runSync,
}

func init() {
	rootCmd.AddCommand(syncCmd)

	// Output flags
	syncCmd.Flags().StringVar(&outJSON, "json", "", "write the run report as JSON to this path")
	syncCmd.Flags().BoolVar(&showClean, "show-clean", false, "print the cleaned body before classification")

	// Run flags
	syncCmd.Flags().DurationVar(&runTimeout, "timeout", 0, "overall run timeout (default from sync.run_timeout)")
	addPipelineFlags(syncCmd)
}

// addPipelineFlags registers flags shared by commands that run the pipeline
func addPipelineFlags(cmd *cobra.Command) {
	cmd.Flags().StringVar(&llmProvider, "llm-provider", "", "LLM provider (openai, anthropic, ollama)")
	cmd.Flags().StringVar(&llmModel, "llm-model", "", "LLM model name")
	cmd.Flags().IntVar(&concurrency, "concurrency", 0, "article types reconciled in parallel (default from sync.concurrency)")
}

// applyPipelineFlags lets explicit flags override the loaded config
func applyPipelineFlags(cfg *model.Config) {
	if llmProvider != "" {
		cfg.LLM.Provider = llmProvider
	}
	if llmModel != "" {
		cfg.LLM.Model = llmModel
	}
	if concurrency > 0 {
		cfg.Sync.Concurrency = concurrency
	}
}

func runSync(cmd *cobra.Command, args []string) error {
	location := args[0]

	a, err := openApp()
	if err != nil {
		return err
	}
	defer a.close()
	applyPipelineFlags(a.cfg)

	observer := &progressObserver{w: os.Stderr, showClean: showClean}
	p, err := a.pipeline(observer)
	if err != nil {
		return err
	}

	ctx, cancel := withTimeout(cmd.Context(), a.runTimeout(runTimeout))
	defer cancel()

	if verbose {
		fmt.Fprintf(os.Stderr, "Syncing: %s\n", location)
		fmt.Fprintf(os.Stderr, "LLM: %s/%s\n", a.cfg.LLM.Provider, a.cfg.LLM.Model)
		fmt.Fprintln(os.Stderr)
	}

	doc, err := a.reader().Read(ctx, location)
	if err != nil {
		return err
	}

	report, err := p.Run(ctx, doc.Text, doc.Source)
	if err != nil {
		return fmt.Errorf("sync failed: %w", err)
	}

	pipeline.RenderSummary(os.Stderr, report)

	if outJSON != "" {
		if err := pipeline.RenderJSON(report, outJSON); err != nil {
			return fmt.Errorf("render failed: %w", err)
		}
		fmt.Fprintf(os.Stderr, "✓ Report written to %s\n", outJSON)
	}

	if report.Status == model.RunFailed {
		return fmt.Errorf("no article type of %q could be reconciled", report.Feature.Name)
	}
	return nil
}

// progressObserver prints run progress for interactive use
type progressObserver struct {
	pipeline.NopObserver
	w         io.Writer
	showClean bool
}

func (o *progressObserver) StateChanged(runID string, from, to pipeline.State) {
	if verbose {
		fmt.Fprintf(o.w, "⚙️  %s → %s\n", from, to)
	}
}

func (o *progressObserver) Cleaned(runID, body string) {
	if o.showClean {
		fmt.Fprintf(o.w, "\n--- cleaned body ---\n%s\n--------------------\n\n", body)
	}
}

func (o *progressObserver) Classified(c model.Classification, feature model.Feature) {
	fmt.Fprintf(o.w, "✓ Classified as %s (%d article types)\n", feature, len(feature.Kinds))
}
