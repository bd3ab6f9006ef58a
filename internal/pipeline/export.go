package pipeline

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/ppiankov/kbsync/internal/content"
	"github.com/ppiankov/kbsync/internal/model"
)

// ArticleLister lists current article records
type ArticleLister interface {
	List(ctx context.Context, featureName string) ([]model.ArticleListing, error)
}

// Exporter writes the current version of articles to Markdown files
type Exporter struct {
	articles ArticleLister
	content  content.Store
}

// NewExporter creates an exporter
func NewExporter(articles ArticleLister, store content.Store) *Exporter {
	return &Exporter{articles: articles, content: store}
}

// Export writes <subject-slug>/<feature-slug>-<kind>.md for every current
// article, or only those of featureName when set. Existing files are replaced.
func (e *Exporter) Export(ctx context.Context, dir, featureName string) ([]string, error) {
	listings, err := e.articles.List(ctx, featureName)
	if err != nil {
		return nil, fmt.Errorf("list articles: %w", err)
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create export dir: %w", err)
	}

	paths := make([]string, 0, len(listings))
	for _, l := range listings {
		text, err := e.content.Get(l.Record.ArticleDigest)
		if err != nil {
			return paths, fmt.Errorf("load %s %s: %w", l.FeatureName, l.Record.Kind, err)
		}

		path := filepath.Join(dir, ExportName(l.SubjectName, l.FeatureName, l.Record.Kind))
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return paths, fmt.Errorf("create export dir: %w", err)
		}
		if err := os.WriteFile(path, []byte(text+"\n"), 0o644); err != nil {
			return paths, fmt.Errorf("write %s: %w", path, err)
		}
		paths = append(paths, path)
	}
	return paths, nil
}
