package model

import "time"

// ArticleRecord is the latest synchronized state of one (feature, kind) pair
type ArticleRecord struct {
	ID             int64       `json:"id"`              // Surrogate key, not semantically significant
	FeatureID      int         `json:"feature_id"`      // Natural key part 1
	Kind           ArticleKind `json:"kind"`            // Natural key part 2
	Version        int         `json:"version"`         // 1 on creation, +1 per synchronization
	DocumentDigest string      `json:"document_digest"` // Digest of the reconciled document body
	ArticleDigest  string      `json:"article_digest"`  // Digest of the generated article text
	LastUpdate     time.Time   `json:"last_update"`
}

// ArticleKey identifies an ArticleRecord by its natural key
type ArticleKey struct {
	FeatureID int
	Kind      ArticleKind
}

// Key returns the natural key of the record
func (r ArticleRecord) Key() ArticleKey {
	return ArticleKey{FeatureID: r.FeatureID, Kind: r.Kind}
}

// ArticleListing joins a record with its feature names for display
type ArticleListing struct {
	Record      ArticleRecord `json:"record"`
	FeatureName string        `json:"feature_name"`
	SubjectName string        `json:"subject_name"`
}
