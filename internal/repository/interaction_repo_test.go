package repository_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/oggyb/swipe-engine/internal/db"
	"github.com/oggyb/swipe-engine/internal/repository"
)

func TestRecordIsIdempotent(t *testing.T) {
	ctx := context.Background()
	dbase := setupTestDB(t)
	repo := repository.NewInteractionRepository(dbase)

	require.NoError(t, repo.Record(ctx, "a", db.KindLiked, "b", "c"))
	require.NoError(t, repo.Record(ctx, "a", db.KindLiked, "b"))

	var count int64
	require.NoError(t, dbase.Model(&db.Interaction{}).Count(&count).Error)
	assert.Equal(t, int64(2), count)

	ok, err := repo.Has(ctx, "a", "b", repository.LikeKinds...)
	require.NoError(t, err)
	assert.True(t, ok)

	require.NoError(t, repo.Remove(ctx, "a", db.KindLiked, "b"))
	ok, err = repo.Has(ctx, "a", "b", repository.LikeKinds...)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestLikedBy(t *testing.T) {
	ctx := context.Background()
	repo := repository.NewInteractionRepository(setupTestDB(t))

	// b, c, d, e liked 99
	require.NoError(t, repo.Record(ctx, "b", db.KindLiked, "99"))
	require.NoError(t, repo.Record(ctx, "c", db.KindSuperLiked, "99"))
	require.NoError(t, repo.Record(ctx, "c", db.KindLiked, "99"))
	require.NoError(t, repo.Record(ctx, "d", db.KindLiked, "99"))
	require.NoError(t, repo.Record(ctx, "e", db.KindLiked, "99"))
	// 99 already answered d and e → exclude
	require.NoError(t, repo.Record(ctx, "99", db.KindDisliked, "d"))
	require.NoError(t, repo.Record(ctx, "99", db.KindReported, "e"))
	// unrelated
	require.NoError(t, repo.Record(ctx, "b", db.KindLiked, "42"))

	got, err := repo.LikedBy(ctx, "99", 10)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"b", "c"}, got)

	got, err = repo.LikedBy(ctx, "99", 1)
	require.NoError(t, err)
	assert.Len(t, got, 1)
}

func TestTargetsAndInboundFrom(t *testing.T) {
	ctx := context.Background()
	repo := repository.NewInteractionRepository(setupTestDB(t))

	require.NoError(t, repo.Record(ctx, "a", db.KindDisliked, "x"))
	require.NoError(t, repo.Record(ctx, "a", db.KindReported, "y", "x"))
	require.NoError(t, repo.Record(ctx, "b", db.KindLiked, "a"))
	require.NoError(t, repo.Record(ctx, "c", db.KindLiked, "a"))
	require.NoError(t, repo.Record(ctx, "c", db.KindSuperLiked, "a"))

	targets, err := repo.Targets(ctx, "a", db.KindDisliked, db.KindReported)
	require.NoError(t, err)
	assert.Len(t, targets, 2)
	assert.Contains(t, targets, "x")
	assert.Contains(t, targets, "y")

	inbound, err := repo.InboundFrom(ctx, "a", []string{"b", "c", "d"}, repository.LikeKinds...)
	require.NoError(t, err)
	assert.Equal(t, map[string]db.InteractionKind{
		"b": db.KindLiked,
		"c": db.KindSuperLiked,
	}, inbound)
}
