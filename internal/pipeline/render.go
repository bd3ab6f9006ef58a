package pipeline

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/ppiankov/kbsync/internal/model"
)

// RenderSummary prints a human readable run summary
func RenderSummary(w io.Writer, report *model.RunReport) {
	fmt.Fprintf(w, "Run %s: %s\n", report.RunID, report.Status)
	if report.Source != "" {
		fmt.Fprintf(w, "  Source:  %s\n", report.Source)
	}
	fmt.Fprintf(w, "  Feature: %s / %s\n", report.Feature.SubjectName, report.Feature.Name)

	for _, res := range report.Results {
		mode := "created"
		if res.Merged {
			mode = "merged"
		}
		fmt.Fprintf(w, "  ✓ %-15s v%d (%s) article %s\n", res.Kind, res.Version, mode, shortDigest(res.ArticleDigest))
	}
	for _, f := range report.Failures {
		fmt.Fprintf(w, "  ✗ %-15s %s: %s\n", f.Kind, f.Stage, f.Message)
	}
	fmt.Fprintf(w, "  Elapsed: %s\n", report.Duration().Round(1e6))
}

// RenderJSON writes the report as indented JSON to path
func RenderJSON(report *model.RunReport, path string) error {
	data, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal report: %w", err)
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create report dir: %w", err)
		}
	}
	return os.WriteFile(path, append(data, '\n'), 0o644)
}

func shortDigest(d string) string {
	if len(d) > 12 {
		return d[:12]
	}
	return d
}

var slugRe = regexp.MustCompile(`[^a-z0-9]+`)

// Slug lowercases name and joins its words with dashes
func Slug(name string) string {
	return strings.Trim(slugRe.ReplaceAllString(strings.ToLower(name), "-"), "-")
}

// ExportName is the path of an exported article relative to the export
// directory. Features are grouped under their subject so equal feature names
// in different subjects do not collide.
func ExportName(subjectName, featureName string, kind model.ArticleKind) string {
	return filepath.Join(Slug(subjectName), fmt.Sprintf("%s-%s.md", Slug(featureName), kind))
}
