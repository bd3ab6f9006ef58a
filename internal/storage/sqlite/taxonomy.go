package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/ppiankov/kbsync/internal/model"
)

// TaxonomyRepository reads subjects, features and their declared article kinds
type TaxonomyRepository struct {
	store *Store
}

// Catalog lists every subject with its features, both ordered by name
func (r *TaxonomyRepository) Catalog(ctx context.Context) ([]model.CatalogEntry, error) {
	rows, err := r.store.db.QueryContext(ctx, `
		SELECT s.name, f.name
		FROM feature f
		JOIN subject s ON f.subject_id = s.subject_id
		ORDER BY s.name, f.name
	`)
	if err != nil {
		return nil, fmt.Errorf("querying catalog: %w", err)
	}
	defer rows.Close()

	var entries []model.CatalogEntry
	for rows.Next() {
		var subject, feature string
		if err := rows.Scan(&subject, &feature); err != nil {
			return nil, fmt.Errorf("scanning catalog row: %w", err)
		}
		if n := len(entries); n == 0 || entries[n-1].Subject != subject {
			entries = append(entries, model.CatalogEntry{Subject: subject})
		}
		last := &entries[len(entries)-1]
		last.Features = append(last.Features, feature)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating catalog: %w", err)
	}

	return entries, nil
}

// FindFeature resolves a feature by exact feature and subject name.
// Returns nil when there is no match.
func (r *TaxonomyRepository) FindFeature(ctx context.Context, featureName, subjectName string) (*model.Feature, error) {
	var f model.Feature
	err := r.store.db.QueryRowContext(ctx, `
		SELECT f.feature_id, f.subject_id, s.name, f.name
		FROM feature f
		JOIN subject s ON f.subject_id = s.subject_id
		WHERE s.name = ? AND f.name = ?
	`, subjectName, featureName).Scan(&f.ID, &f.SubjectID, &f.SubjectName, &f.Name)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("finding feature %q: %w", featureName, err)
	}

	kinds, err := r.kinds(ctx, f.ID)
	if err != nil {
		return nil, err
	}
	f.Kinds = kinds

	return &f, nil
}

// FeatureByName finds a feature by its name alone. Returns nil when absent.
func (r *TaxonomyRepository) FeatureByName(ctx context.Context, featureName string) (*model.Feature, error) {
	var subjectName string
	err := r.store.db.QueryRowContext(ctx, `
		SELECT s.name
		FROM feature f
		JOIN subject s ON f.subject_id = s.subject_id
		WHERE f.name = ?
		ORDER BY f.feature_id
		LIMIT 1
	`, featureName).Scan(&subjectName)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("finding feature %q: %w", featureName, err)
	}
	return r.FindFeature(ctx, featureName, subjectName)
}

func (r *TaxonomyRepository) kinds(ctx context.Context, featureID int) ([]model.ArticleKind, error) {
	rows, err := r.store.db.QueryContext(ctx, `
		SELECT type_id FROM article_type WHERE feature_id = ? ORDER BY position, type_id
	`, featureID)
	if err != nil {
		return nil, fmt.Errorf("querying article types: %w", err)
	}
	defer rows.Close()

	var kinds []model.ArticleKind
	for rows.Next() {
		var id int
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scanning article type: %w", err)
		}
		kinds = append(kinds, model.ArticleKind(id))
	}
	return kinds, rows.Err()
}

// SaveSubject inserts or updates a subject
func (r *TaxonomyRepository) SaveSubject(ctx context.Context, s model.Subject) error {
	_, err := r.store.db.ExecContext(ctx, `
		INSERT INTO subject (subject_id, name, description, updated_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(subject_id) DO UPDATE SET
			name = excluded.name,
			description = excluded.description,
			updated_at = excluded.updated_at
	`, s.ID, s.Name, s.Description, timeNow())
	if err != nil {
		return fmt.Errorf("saving subject %q: %w", s.Name, err)
	}
	return nil
}

// SaveFeature inserts or updates a feature and replaces its declared kinds
func (r *TaxonomyRepository) SaveFeature(ctx context.Context, f model.Feature) error {
	seen := make(map[model.ArticleKind]bool)
	for _, k := range f.Kinds {
		if !k.Valid() {
			return fmt.Errorf("feature %q: invalid article kind %d", f.Name, int(k))
		}
		if seen[k] {
			return fmt.Errorf("feature %q declares %s twice", f.Name, k)
		}
		seen[k] = true
	}

	tx, err := r.store.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	now := timeNow()
	if _, err := tx.ExecContext(ctx, `
		INSERT INTO feature (feature_id, subject_id, name, updated_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(feature_id) DO UPDATE SET
			subject_id = excluded.subject_id,
			name = excluded.name,
			updated_at = excluded.updated_at
	`, f.ID, f.SubjectID, f.Name, now); err != nil {
		return fmt.Errorf("saving feature %q: %w", f.Name, err)
	}

	for i, k := range f.Kinds {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO article_type (type_id, feature_id, position, updated_at)
			VALUES (?, ?, ?, ?)
			ON CONFLICT(feature_id, type_id) DO UPDATE SET
				position = excluded.position,
				updated_at = excluded.updated_at
		`, int(k), f.ID, i, now); err != nil {
			return fmt.Errorf("saving article type %s for %q: %w", k, f.Name, err)
		}
	}

	return tx.Commit()
}
