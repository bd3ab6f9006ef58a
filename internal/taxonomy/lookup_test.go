package taxonomy

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ppiankov/kbsync/internal/model"
)

type fakeRepo struct {
	catalog  []model.CatalogEntry
	features map[[2]string]model.Feature
	err      error
}

func (f *fakeRepo) Catalog(ctx context.Context) ([]model.CatalogEntry, error) {
	return f.catalog, f.err
}

func (f *fakeRepo) FindFeature(ctx context.Context, featureName, subjectName string) (*model.Feature, error) {
	if f.err != nil {
		return nil, f.err
	}
	feat, ok := f.features[[2]string{subjectName, featureName}]
	if !ok {
		return nil, nil
	}
	return &feat, nil
}

func newFakeRepo() *fakeRepo {
	return &fakeRepo{
		catalog: []model.CatalogEntry{
			{Subject: "Configuration", Features: []string{"Personal Notifications Settings", "User Account Setup"}},
			{Subject: "Main Functionality", Features: []string{"Index Features"}},
		},
		features: map[[2]string]model.Feature{
			{"Main Functionality", "Index Features"}: {ID: 4, Name: "Index Features", SubjectName: "Main Functionality", Kinds: []model.ArticleKind{model.KindTutorial}},
		},
	}
}

func TestRenderCatalog(t *testing.T) {
	got := RenderCatalog(newFakeRepo().catalog)
	want := "subject: Configuration\n" +
		"   feature: Personal Notifications Settings\n" +
		"   feature: User Account Setup\n" +
		"subject: Main Functionality\n" +
		"   feature: Index Features"
	assert.Equal(t, want, got)
	assert.Equal(t, "", RenderCatalog(nil))
}

func TestLookup_Find(t *testing.T) {
	l := NewLookup(newFakeRepo())
	ctx := context.Background()

	f, err := l.Find(ctx, "Index Features", "Main Functionality")
	require.NoError(t, err)
	require.NotNil(t, f)
	assert.Equal(t, 4, f.ID)

	f, err = l.Find(ctx, "Index Featuers", "Main Functionality")
	require.NoError(t, err)
	assert.Nil(t, f)
}

func TestLookup_RepositoryError(t *testing.T) {
	repo := newFakeRepo()
	repo.err = errors.New("db down")
	l := NewLookup(repo)

	_, err := l.Catalog(context.Background())
	assert.ErrorContains(t, err, "db down")
	_, err = l.Find(context.Background(), "a", "b")
	assert.ErrorContains(t, err, "db down")
}

func TestParseClassification_Valid(t *testing.T) {
	tests := []struct {
		name    string
		payload string
	}{
		{"plain", `{"subject": "Configuration", "feature": "User Account Setup"}`},
		{"reordered", `{"feature": "User Account Setup", "subject": "Configuration"}`},
		{"whitespace", "\n  {\"subject\":\"Configuration\",\"feature\":\"User Account Setup\"}  \n"},
		{"fenced", "```json\n{\"subject\": \"Configuration\", \"feature\": \"User Account Setup\"}\n```"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, err := ParseClassification(tt.payload)
			require.NoError(t, err)
			assert.Equal(t, model.Classification{Subject: "Configuration", Feature: "User Account Setup"}, c)
		})
	}
}

func TestParseClassification_Invalid(t *testing.T) {
	tests := []struct {
		name    string
		payload string
	}{
		{"empty", ""},
		{"prose", "The feature is User Account Setup"},
		{"array", `["Configuration", "User Account Setup"]`},
		{"null", `null`},
		{"missing feature", `{"subject": "Configuration"}`},
		{"extra field", `{"subject": "C", "feature": "F", "confidence": 0.9}`},
		{"wrong key", `{"subject": "C", "features": "F"}`},
		{"number", `{"subject": "C", "feature": 3}`},
		{"empty value", `{"subject": "", "feature": "F"}`},
		{"duplicate subject", `{"subject": "a", "subject": "b", "feature": "c"}`},
		{"duplicate feature", `{"subject": "a", "feature": "b", "feature": "b"}`},
		{"soft failure text", "Error in FeatureDetectorAgent: timeout"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseClassification(tt.payload)
			assert.Error(t, err)
		})
	}
}
