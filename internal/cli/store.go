package cli

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/ppiankov/kbsync/internal/model"
	"github.com/ppiankov/kbsync/internal/pipeline"
	"github.com/ppiankov/kbsync/internal/taxonomy"
)

var (
	initOverride bool
	exportOut    string
)

// initCmd seeds the default taxonomy
var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Create the database and seed the default taxonomy",
	Long: `Init creates documents.db in the data directory and seeds the default
subjects, features and their article types. An existing taxonomy is left
untouched unless --override is given, which deletes every row (articles
included) and reseeds. Content blobs are never deleted.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := openApp()
		if err != nil {
			return err
		}
		defer a.close()

		seeded, err := a.db.Initialize(cmd.Context(), initOverride)
		if err != nil {
			return fmt.Errorf("initialize store: %w", err)
		}

		if seeded {
			fmt.Fprintf(os.Stderr, "✓ Seeded default taxonomy into %s\n", a.db.Path())
		} else {
			fmt.Fprintf(os.Stderr, "Taxonomy already present in %s (use --override to reseed)\n", a.db.Path())
		}
		return nil
	},
}

// catalogCmd prints the classification catalog
var catalogCmd = &cobra.Command{
	Use:   "catalog",
	Short: "Print the subject/feature catalog used for classification",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := openApp()
		if err != nil {
			return err
		}
		defer a.close()

		entries, err := taxonomy.NewLookup(a.db.Taxonomy()).Catalog(cmd.Context())
		if err != nil {
			return err
		}
		if len(entries) == 0 {
			fmt.Fprintln(os.Stderr, "Catalog is empty; run 'kbsync init' first")
			return nil
		}

		fmt.Fprintln(cmd.OutOrStdout(), taxonomy.RenderCatalog(entries))
		return nil
	},
}

// featureFinder resolves a feature by name alone
type featureFinder interface {
	FeatureByName(ctx context.Context, featureName string) (*model.Feature, error)
}

// featureArg returns the feature named by the optional positional argument,
// or "" for all features. Unknown names are an error rather than an empty list.
func featureArg(ctx context.Context, finder featureFinder, args []string) (string, error) {
	if len(args) == 0 {
		return "", nil
	}
	f, err := finder.FeatureByName(ctx, args[0])
	if err != nil {
		return "", err
	}
	if f == nil {
		return "", fmt.Errorf("unknown feature %q; run 'kbsync catalog' to list features", args[0])
	}
	return f.Name, nil
}

// articlesCmd lists current article records
var articlesCmd = &cobra.Command{
	Use:   "articles [feature]",
	Short: "List current article versions",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := openApp()
		if err != nil {
			return err
		}
		defer a.close()

		feature, err := featureArg(cmd.Context(), a.db.Taxonomy(), args)
		if err != nil {
			return err
		}

		listings, err := a.db.Articles().List(cmd.Context(), feature)
		if err != nil {
			return err
		}
		if len(listings) == 0 {
			fmt.Fprintln(os.Stderr, "No articles yet")
			return nil
		}

		w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "SUBJECT\tFEATURE\tKIND\tVERSION\tDOCUMENT\tARTICLE\tUPDATED")
		for _, l := range listings {
			fmt.Fprintf(w, "%s\t%s\t%s\t%d\t%.12s\t%.12s\t%s\n",
				l.SubjectName, l.FeatureName, l.Record.Kind, l.Record.Version,
				l.Record.DocumentDigest, l.Record.ArticleDigest,
				l.Record.LastUpdate.Local().Format("2006-01-02 15:04"))
		}
		return w.Flush()
	},
}

// exportCmd writes current articles as Markdown files
var exportCmd = &cobra.Command{
	Use:   "export [feature]",
	Short: "Write current articles to Markdown files",
	Long: `Export writes the current version of every article, or only those of one
feature, to <out>/<subject-slug>/<feature-slug>-<kind>.md.

Example:
  kbsync export --out ./kb
  kbsync export --out ./kb "User Account Setup"`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := openApp()
		if err != nil {
			return err
		}
		defer a.close()

		feature, err := featureArg(cmd.Context(), a.db.Taxonomy(), args)
		if err != nil {
			return err
		}

		paths, err := pipeline.NewExporter(a.db.Articles(), a.blobs).Export(cmd.Context(), exportOut, feature)
		if err != nil {
			return fmt.Errorf("export failed: %w", err)
		}

		for _, path := range paths {
			rel, err := filepath.Rel(exportOut, path)
			if err != nil {
				rel = path
			}
			fmt.Fprintf(os.Stderr, "✓ %s\n", rel)
		}
		fmt.Fprintf(os.Stderr, "Exported %d articles to %s\n", len(paths), exportOut)
		return nil
	},
}

func init() {
	initCmd.Flags().BoolVar(&initOverride, "override", false, "delete all rows and reseed the taxonomy")
	exportCmd.Flags().StringVar(&exportOut, "out", "kb-export", "output directory")

	rootCmd.AddCommand(initCmd)
	rootCmd.AddCommand(catalogCmd)
	rootCmd.AddCommand(articlesCmd)
	rootCmd.AddCommand(exportCmd)
}
