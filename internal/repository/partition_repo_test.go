package repository_test

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/oggyb/swipe-engine/internal/db"
	"github.com/oggyb/swipe-engine/internal/demographic"
	svcErr "github.com/oggyb/swipe-engine/internal/errors"
	"github.com/oggyb/swipe-engine/internal/repository"
)

var ugFM = demographic.Bucket{Degree: demographic.Undergrad, Gender: demographic.Female, SexualPreference: demographic.Male}

func uids(prefix string, n int) []string {
	out := make([]string, n)
	for i := range out {
		out[i] = fmt.Sprintf("%s%03d", prefix, i)
	}
	return out
}

func TestReshard_ConcatenationReproducesArray(t *testing.T) {
	for _, tc := range []struct{ n, capacity, volumes int }{
		{0, 3, 0},
		{1, 3, 1},
		{3, 3, 1},
		{7, 3, 3},
		{9, 3, 3},
	} {
		t.Run(fmt.Sprintf("%d_by_%d", tc.n, tc.capacity), func(t *testing.T) {
			in := uids("u", tc.n)
			chunks := repository.Reshard(in, tc.capacity)
			require.Len(t, chunks, tc.volumes)

			var shards []db.PartitionShard
			for vol, c := range chunks {
				assert.LessOrEqual(t, len(c), tc.capacity)
				shards = append(shards, db.PartitionShard{Volume: vol, UIDs: c})
			}
			assert.Equal(t, in, append([]string{}, repository.Concat(shards)...))
		})
	}
}

func TestReplaceGeneration_AndFetch(t *testing.T) {
	ctx := context.Background()
	database := setupTestDB(t)
	repo := repository.NewPartitionRepository(database, 3)

	st, _, err := repo.FetchAll(ctx)
	require.NoError(t, err)

	var table demographic.Table[[]string]
	*table.At(ugFM) = uids("f", 7)
	gen, err := repo.ReplaceGeneration(ctx, st, table)
	require.NoError(t, err)
	assert.Equal(t, st.Generation+1, gen)

	shards, err := repo.FetchBucketShards(ctx, ugFM)
	require.NoError(t, err)
	require.Len(t, shards, 3)
	for i, s := range shards {
		assert.Equal(t, i, s.Volume)
	}
	assert.Equal(t, uids("f", 7), repository.Concat(shards))

	// a second replace drops the previous generation
	st, _, err = repo.FetchAll(ctx)
	require.NoError(t, err)
	*table.At(ugFM) = uids("g", 2)
	_, err = repo.ReplaceGeneration(ctx, st, table)
	require.NoError(t, err)

	var count int64
	require.NoError(t, database.Model(&db.PartitionShard{}).Count(&count).Error)
	assert.Equal(t, int64(1), count)

	got, err := repo.FetchBucket(ctx, ugFM)
	require.NoError(t, err)
	assert.Equal(t, uids("g", 2), got)
}

func TestReplaceGeneration_EmptyAborts(t *testing.T) {
	ctx := context.Background()
	repo := repository.NewPartitionRepository(setupTestDB(t), 3)

	st, err := repo.State(ctx)
	require.NoError(t, err)
	_, err = repo.ReplaceGeneration(ctx, st, demographic.Table[[]string]{})
	assert.ErrorIs(t, err, svcErr.ErrEmptyRebalance)
}

func TestReplaceGeneration_ConflictAfterInsert(t *testing.T) {
	ctx := context.Background()
	repo := repository.NewPartitionRepository(setupTestDB(t), 3)

	st, err := repo.State(ctx)
	require.NoError(t, err)

	require.NoError(t, repo.InsertAtPercentile(ctx, "late", ugFM, 0.5))

	var table demographic.Table[[]string]
	*table.At(ugFM) = []string{"a"}
	_, err = repo.ReplaceGeneration(ctx, st, table)
	assert.ErrorIs(t, err, svcErr.ErrConflict)

	got, err := repo.FetchBucket(ctx, ugFM)
	require.NoError(t, err)
	assert.Equal(t, []string{"late"}, got)
}

func TestFetchBucket_EmptyBucket(t *testing.T) {
	repo := repository.NewPartitionRepository(setupTestDB(t), 3)
	got, err := repo.FetchBucket(context.Background(), ugFM)
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestInsertAtPercentile_CascadesOverflow(t *testing.T) {
	ctx := context.Background()
	database := setupTestDB(t)
	repo := repository.NewPartitionRepository(database, 3)

	st, err := repo.State(ctx)
	require.NoError(t, err)
	var table demographic.Table[[]string]
	*table.At(ugFM) = []string{"a", "b", "c", "d", "e", "f"}
	_, err = repo.ReplaceGeneration(ctx, st, table)
	require.NoError(t, err)

	require.NoError(t, database.Transaction(func(tx *gorm.DB) error {
		return repo.WithTx(tx).InsertAtPercentile(ctx, "x", ugFM, 0.5)
	}))

	shards, err := repo.FetchBucketShards(ctx, ugFM)
	require.NoError(t, err)
	require.Len(t, shards, 3)
	assert.Equal(t, []string{"a", "b", "c"}, shards[0].UIDs)
	assert.Equal(t, []string{"x", "d", "e"}, shards[1].UIDs)
	assert.Equal(t, []string{"f"}, shards[2].UIDs)
	assert.Equal(t, 2, shards[2].Volume)

	after, err := repo.State(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), after.Version)

	// same uid again changes nothing
	require.NoError(t, repo.InsertAtPercentile(ctx, "x", ugFM, 0))
	got, err := repo.FetchBucket(ctx, ugFM)
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b", "c", "x", "d", "e", "f"}, got)
}

func TestInsertAtPercentile_Edges(t *testing.T) {
	ctx := context.Background()
	repo := repository.NewPartitionRepository(setupTestDB(t), 10)

	require.NoError(t, repo.InsertAtPercentile(ctx, "m", ugFM, 0.5))
	require.NoError(t, repo.InsertAtPercentile(ctx, "first", ugFM, 0))
	require.NoError(t, repo.InsertAtPercentile(ctx, "last", ugFM, 1))

	got, err := repo.FetchBucket(ctx, ugFM)
	require.NoError(t, err)
	assert.Equal(t, []string{"first", "m", "last"}, got)
}
