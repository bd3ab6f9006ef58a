package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/ppiankov/kbsync/internal/model"
)

var timeNow = func() time.Time { return time.Now().UTC() }

// ErrVersionConflict is returned when the record changed between FindCurrent and CommitNewVersion
var ErrVersionConflict = errors.New("article record changed since it was read")

// ArticleStore owns the lifecycle of ArticleRecords
type ArticleStore struct {
	store *Store
	now   func() time.Time
}

// FindCurrent returns the record for (featureID, kind), or nil when none exists
func (a *ArticleStore) FindCurrent(ctx context.Context, featureID int, kind model.ArticleKind) (*model.ArticleRecord, error) {
	row := a.store.db.QueryRowContext(ctx, `
		SELECT article_id, feature_id, type_id, version, hash_file_document, hash_file_article, last_update
		FROM article
		WHERE feature_id = ? AND type_id = ?
	`, featureID, int(kind))

	rec, err := scanArticle(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("finding article %d/%s: %w", featureID, kind, err)
	}
	return rec, nil
}

// CommitNewVersion is the only mutation path for ArticleRecords. With a nil
// prior it creates the record for key at version 1; otherwise it replaces both
// digests on prior and increments its version. Both happen in one transaction.
func (a *ArticleStore) CommitNewVersion(ctx context.Context, key model.ArticleKey, prior *model.ArticleRecord, documentDigest, articleDigest string) (*model.ArticleRecord, error) {
	if prior != nil && prior.Key() != key {
		return nil, fmt.Errorf("prior record %v does not match key %v", prior.Key(), key)
	}

	unlock := a.store.locks.Lock(key)
	defer unlock()

	now := a.now()
	keyName := fmt.Sprintf("%d/%s", key.FeatureID, key.Kind)

	tx, err := a.store.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, &model.StorageWriteError{Op: "begin commit", Key: keyName, Err: err}
	}
	defer tx.Rollback() //nolint:errcheck

	var rec model.ArticleRecord
	if prior == nil {
		res, err := tx.ExecContext(ctx, `
			INSERT INTO article (feature_id, type_id, version, hash_file_document, hash_file_article, last_update)
			VALUES (?, ?, 1, ?, ?, ?)
		`, key.FeatureID, int(key.Kind), documentDigest, articleDigest, now)
		if err != nil {
			return nil, &model.StorageWriteError{Op: "insert article", Key: keyName, Err: err}
		}
		id, err := res.LastInsertId()
		if err != nil {
			return nil, &model.StorageWriteError{Op: "insert article", Key: keyName, Err: err}
		}
		rec = model.ArticleRecord{
			ID:        id,
			FeatureID: key.FeatureID,
			Kind:      key.Kind,
			Version:   1,
		}
	} else {
		res, err := tx.ExecContext(ctx, `
			UPDATE article
			SET version = version + 1, hash_file_document = ?, hash_file_article = ?, last_update = ?
			WHERE article_id = ? AND version = ?
		`, documentDigest, articleDigest, now, prior.ID, prior.Version)
		if err != nil {
			return nil, &model.StorageWriteError{Op: "update article", Key: keyName, Err: err}
		}
		n, err := res.RowsAffected()
		if err != nil {
			return nil, &model.StorageWriteError{Op: "update article", Key: keyName, Err: err}
		}
		if n != 1 {
			return nil, &model.StorageWriteError{Op: "update article", Key: keyName, Err: ErrVersionConflict}
		}
		rec = *prior
		rec.Version = prior.Version + 1
	}

	if err := tx.Commit(); err != nil {
		return nil, &model.StorageWriteError{Op: "commit article", Key: keyName, Err: err}
	}

	rec.DocumentDigest = documentDigest
	rec.ArticleDigest = articleDigest
	rec.LastUpdate = now

	a.store.logger.Debug("committed article version",
		zap.Int("feature_id", key.FeatureID),
		zap.Stringer("kind", key.Kind),
		zap.Int("version", rec.Version))

	return &rec, nil
}

// List returns current records joined with feature and subject names.
// An empty featureName lists every record.
func (a *ArticleStore) List(ctx context.Context, featureName string) ([]model.ArticleListing, error) {
	query := `
		SELECT a.article_id, a.feature_id, a.type_id, a.version, a.hash_file_document, a.hash_file_article, a.last_update,
		       f.name, s.name
		FROM article a
		JOIN feature f ON f.feature_id = a.feature_id
		JOIN subject s ON s.subject_id = f.subject_id`
	var args []any
	if featureName != "" {
		query += ` WHERE f.name = ?`
		args = append(args, featureName)
	}
	query += ` ORDER BY s.name, f.name, a.type_id`

	rows, err := a.store.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying articles: %w", err)
	}
	defer rows.Close()

	var listings []model.ArticleListing
	for rows.Next() {
		var (
			l    model.ArticleListing
			kind int
		)
		if err := rows.Scan(&l.Record.ID, &l.Record.FeatureID, &kind, &l.Record.Version,
			&l.Record.DocumentDigest, &l.Record.ArticleDigest, &l.Record.LastUpdate,
			&l.FeatureName, &l.SubjectName); err != nil {
			return nil, fmt.Errorf("scanning article: %w", err)
		}
		l.Record.Kind = model.ArticleKind(kind)
		listings = append(listings, l)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating articles: %w", err)
	}

	return listings, nil
}

func scanArticle(row *sql.Row) (*model.ArticleRecord, error) {
	var (
		rec  model.ArticleRecord
		kind int
	)
	if err := row.Scan(&rec.ID, &rec.FeatureID, &kind, &rec.Version,
		&rec.DocumentDigest, &rec.ArticleDigest, &rec.LastUpdate); err != nil {
		return nil, err
	}
	rec.Kind = model.ArticleKind(kind)
	return &rec, nil
}
