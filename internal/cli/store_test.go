package cli

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ppiankov/kbsync/internal/model"
	"github.com/ppiankov/kbsync/internal/storage/sqlite"
)

func TestFeatureArg(t *testing.T) {
	db, err := sqlite.NewStore(t.TempDir(), nil)
	require.NoError(t, err)
	t.Cleanup(func() { assert.NoError(t, db.Close()) })
	_, err = db.Initialize(context.Background(), false)
	require.NoError(t, err)

	ctx := context.Background()

	feature, err := featureArg(ctx, db.Taxonomy(), nil)
	require.NoError(t, err)
	assert.Empty(t, feature)

	feature, err = featureArg(ctx, db.Taxonomy(), []string{"Using AI"})
	require.NoError(t, err)
	assert.Equal(t, "Using AI", feature)

	_, err = featureArg(ctx, db.Taxonomy(), []string{"Using Al"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), `unknown feature "Using Al"`)
}

type failingFinder struct{ err error }

func (f failingFinder) FeatureByName(ctx context.Context, featureName string) (*model.Feature, error) {
	return nil, f.err
}

func TestFeatureArg_LookupError(t *testing.T) {
	cause := errors.New("database is locked")
	_, err := featureArg(context.Background(), failingFinder{err: cause}, []string{"Using AI"})
	assert.ErrorIs(t, err, cause)
}
