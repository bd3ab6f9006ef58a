package model

import (
	"fmt"
	"strings"
)

// Subject groups related features in the taxonomy
type Subject struct {
	ID          int    `json:"id" yaml:"id"`
	Name        string `json:"name" yaml:"name"`
	Description string `json:"description,omitempty" yaml:"description,omitempty"`
}

// Feature is a read-only taxonomy entry that documents are classified under
type Feature struct {
	ID          int           `json:"id" yaml:"id"`
	SubjectID   int           `json:"subject_id" yaml:"subject_id"`
	SubjectName string        `json:"subject_name" yaml:"subject_name"`
	Name        string        `json:"name" yaml:"name"`
	Kinds       []ArticleKind `json:"kinds" yaml:"kinds"` // Declared article types, ordered, no duplicates
}

// HasKind reports whether the feature declares the given article kind
func (f Feature) HasKind(kind ArticleKind) bool {
	for _, k := range f.Kinds {
		if k == kind {
			return true
		}
	}
	return false
}

func (f Feature) String() string {
	return fmt.Sprintf("%s / %s", f.SubjectName, f.Name)
}

// ArticleKind enumerates the end-user document types generated for a feature.
// Values match the type ids persisted by the store.
type ArticleKind int

const (
	KindFAQ             ArticleKind = 1
	KindTroubleshooting ArticleKind = 2
	KindTutorial        ArticleKind = 3
)

// AllKinds lists the closed set of article kinds
var AllKinds = []ArticleKind{KindFAQ, KindTroubleshooting, KindTutorial}

func (k ArticleKind) String() string {
	switch k {
	case KindFAQ:
		return "faq"
	case KindTroubleshooting:
		return "troubleshooting"
	case KindTutorial:
		return "tutorial"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// Valid reports whether k is one of the known article kinds
func (k ArticleKind) Valid() bool {
	return k >= KindFAQ && k <= KindTutorial
}

// ParseArticleKind accepts either the kind name or its numeric id
func ParseArticleKind(s string) (ArticleKind, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "faq", "1":
		return KindFAQ, nil
	case "troubleshooting", "2":
		return KindTroubleshooting, nil
	case "tutorial", "tutorials", "3":
		return KindTutorial, nil
	}
	return 0, fmt.Errorf("unknown article kind %q (supported: faq, troubleshooting, tutorial)", s)
}

// CatalogEntry is one subject of the classification catalog with its features in stable order
type CatalogEntry struct {
	Subject  string   `json:"subject" yaml:"subject"`
	Features []string `json:"features" yaml:"features"`
}

// Classification is the two-field result of the classify transform.
// Only the resolved Feature survives past the classification step.
type Classification struct {
	Subject string `json:"subject"`
	Feature string `json:"feature"`
}
