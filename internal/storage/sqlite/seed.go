package sqlite

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/ppiankov/kbsync/internal/model"
)

// DefaultSubjects is the seeded subject list
var DefaultSubjects = []model.Subject{
	{ID: 0, Name: "Getting Started", Description: "Description for Subject A"},
	{ID: 1, Name: "Configuration", Description: "Description for Subject B"},
	{ID: 2, Name: "Main Functionality", Description: "Description for Subject C"},
	{ID: 3, Name: "AI Assistant", Description: "Description for Subject D"},
	{ID: 4, Name: "Chat", Description: "Description for Subject E"},
	{ID: 5, Name: "Using the Q&A", Description: "Description for Subject F"},
	{ID: 6, Name: "Redaction", Description: "Description for Subject G"},
}

var tutorial = []model.ArticleKind{model.KindTutorial}

// DefaultFeatures is the seeded feature list with declared article kinds
var DefaultFeatures = []model.Feature{
	{ID: 1, SubjectID: 1, Name: "User Account Setup", Kinds: tutorial},
	{ID: 2, SubjectID: 1, Name: "Personal Notifications Settings", Kinds: tutorial},
	{ID: 3, SubjectID: 2, Name: "Navigating Projects", Kinds: tutorial},
	{ID: 4, SubjectID: 2, Name: "Index Features", Kinds: tutorial},
	{ID: 5, SubjectID: 2, Name: "Searching and Filtering", Kinds: []model.ArticleKind{model.KindFAQ, model.KindTutorial}},
	{ID: 6, SubjectID: 3, Name: "Using AI", Kinds: []model.ArticleKind{model.KindFAQ, model.KindTutorial}},
	{ID: 7, SubjectID: 5, Name: "Q&A Introduction", Kinds: tutorial},
	{ID: 8, SubjectID: 5, Name: "Question Role", Kinds: tutorial},
	{ID: 9, SubjectID: 5, Name: "Selection Role", Kinds: tutorial},
	{ID: 10, SubjectID: 5, Name: "Distribution Role", Kinds: tutorial},
	{ID: 11, SubjectID: 5, Name: "Answer Role", Kinds: tutorial},
	{ID: 12, SubjectID: 5, Name: "Approval Role", Kinds: tutorial},
	{ID: 13, SubjectID: 5, Name: "Visitor Role", Kinds: tutorial},
	{ID: 14, SubjectID: 6, Name: "Redacting Documents", Kinds: tutorial},
	{ID: 15, SubjectID: 6, Name: "Redacting Search Terms", Kinds: tutorial},
	{ID: 16, SubjectID: 6, Name: "Redacting Terms Matching Sensitive Data Categories", Kinds: tutorial},
	{ID: 17, SubjectID: 6, Name: "Redacting Selected Document Areas", Kinds: tutorial},
	{ID: 18, SubjectID: 6, Name: "Batch Redacting Documents", Kinds: tutorial},
}

// Initialize seeds the default taxonomy into an empty database.
// With override, all rows are deleted (children first) and the taxonomy reseeded.
// Returns true when seeding happened.
func (s *Store) Initialize(ctx context.Context, override bool) (bool, error) {
	if override {
		if err := s.clear(ctx); err != nil {
			return false, err
		}
	} else {
		var n int
		if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM subject`).Scan(&n); err != nil {
			return false, fmt.Errorf("counting subjects: %w", err)
		}
		if n > 0 {
			return false, nil
		}
	}

	if err := s.Seed(ctx, DefaultSubjects, DefaultFeatures); err != nil {
		return false, err
	}

	s.logger.Info("seeded taxonomy",
		zap.Int("subjects", len(DefaultSubjects)),
		zap.Int("features", len(DefaultFeatures)))
	return true, nil
}

// Seed writes the given subjects and features
func (s *Store) Seed(ctx context.Context, subjects []model.Subject, features []model.Feature) error {
	repo := s.Taxonomy()
	for _, subj := range subjects {
		if err := repo.SaveSubject(ctx, subj); err != nil {
			return err
		}
	}
	for _, f := range features {
		if err := repo.SaveFeature(ctx, f); err != nil {
			return err
		}
	}
	return nil
}

// clear deletes every row, children before parents
func (s *Store) clear(ctx context.Context) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	for _, table := range []string{"article", "article_type", "feature", "subject"} {
		if _, err := tx.ExecContext(ctx, "DELETE FROM "+table); err != nil {
			return fmt.Errorf("clearing %s: %w", table, err)
		}
	}
	return tx.Commit()
}
