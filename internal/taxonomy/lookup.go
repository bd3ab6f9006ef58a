// Package taxonomy adapts the taxonomy repository to what the sync pipeline
// needs: the classification catalog and exact feature resolution.
package taxonomy

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/ppiankov/kbsync/internal/model"
)

// Repository is the storage side of the taxonomy
type Repository interface {
	Catalog(ctx context.Context) ([]model.CatalogEntry, error)
	FindFeature(ctx context.Context, featureName, subjectName string) (*model.Feature, error)
}

// Lookup resolves classification results against the catalog
type Lookup struct {
	repo Repository
}

// NewLookup creates a Lookup over repo
func NewLookup(repo Repository) *Lookup {
	return &Lookup{repo: repo}
}

// Catalog returns the subject/feature listing, grouped by subject in stable order
func (l *Lookup) Catalog(ctx context.Context) ([]model.CatalogEntry, error) {
	entries, err := l.repo.Catalog(ctx)
	if err != nil {
		return nil, fmt.Errorf("load catalog: %w", err)
	}
	return entries, nil
}

// Find returns the feature matching both names exactly, or nil
func (l *Lookup) Find(ctx context.Context, featureName, subjectName string) (*model.Feature, error) {
	f, err := l.repo.FindFeature(ctx, featureName, subjectName)
	if err != nil {
		return nil, fmt.Errorf("find feature: %w", err)
	}
	return f, nil
}

// RenderCatalog formats the catalog as the hierarchy handed to the classifier:
//
//	subject: <Subject A>
//	   feature: <Feature A1>
func RenderCatalog(entries []model.CatalogEntry) string {
	var b strings.Builder
	for i, e := range entries {
		if i > 0 {
			b.WriteByte('\n')
		}
		b.WriteString("subject: ")
		b.WriteString(e.Subject)
		for _, f := range e.Features {
			b.WriteString("\n   feature: ")
			b.WriteString(f)
		}
	}
	return b.String()
}

var (
	errNotObject      = errors.New("payload is not a JSON object")
	errFieldCount     = errors.New("payload must have exactly the fields subject and feature")
	errFieldNotString = errors.New("subject and feature must be non-empty strings")
)

// ParseClassification decodes a classify payload. The payload must be a JSON
// object with exactly two string fields, subject and feature. A single
// surrounding Markdown code fence is tolerated.
func ParseClassification(payload string) (model.Classification, error) {
	raw := stripCodeFence(strings.TrimSpace(payload))

	var fields map[string]json.RawMessage
	if err := json.Unmarshal([]byte(raw), &fields); err != nil || fields == nil {
		return model.Classification{}, errNotObject
	}
	if len(fields) != 2 {
		return model.Classification{}, errFieldCount
	}
	// Unmarshal keeps the last of duplicate keys, so count them separately
	if n, err := countKeys(raw); err != nil || n != 2 {
		return model.Classification{}, errFieldCount
	}

	subjectRaw, okS := fields["subject"]
	featureRaw, okF := fields["feature"]
	if !okS || !okF {
		return model.Classification{}, errFieldCount
	}

	var c model.Classification
	if err := json.Unmarshal(subjectRaw, &c.Subject); err != nil {
		return model.Classification{}, errFieldNotString
	}
	if err := json.Unmarshal(featureRaw, &c.Feature); err != nil {
		return model.Classification{}, errFieldNotString
	}
	if c.Subject == "" || c.Feature == "" {
		return model.Classification{}, errFieldNotString
	}

	return c, nil
}

// countKeys returns the number of top-level keys of a JSON object,
// duplicates included
func countKeys(raw string) (int, error) {
	dec := json.NewDecoder(strings.NewReader(raw))
	if _, err := dec.Token(); err != nil { // {
		return 0, err
	}
	n := 0
	for dec.More() {
		if _, err := dec.Token(); err != nil { // key
			return 0, err
		}
		var value json.RawMessage
		if err := dec.Decode(&value); err != nil {
			return 0, err
		}
		n++
	}
	return n, nil
}

func stripCodeFence(s string) string {
	if !strings.HasPrefix(s, "```") || !strings.HasSuffix(s, "```") || len(s) < 6 {
		return s
	}
	s = strings.TrimSuffix(strings.TrimPrefix(s, "```"), "```")
	// Drop an info string such as "json"
	if nl := strings.IndexByte(s, '\n'); nl >= 0 {
		s = s[nl+1:]
	}
	return strings.TrimSpace(s)
}
