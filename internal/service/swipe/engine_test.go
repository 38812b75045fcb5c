package swipe_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/oggyb/swipe-engine/internal/config"
	"github.com/oggyb/swipe-engine/internal/db"
	"github.com/oggyb/swipe-engine/internal/demographic"
	svcErr "github.com/oggyb/swipe-engine/internal/errors"
	"github.com/oggyb/swipe-engine/internal/repository"
	"github.com/oggyb/swipe-engine/internal/service/accounts"
	"github.com/oggyb/swipe-engine/internal/service/swipe"
	"github.com/oggyb/swipe-engine/internal/testutil"
)

var fixedNow = time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

func enroll(t *testing.T, env *testutil.Env, uids ...string) {
	t.Helper()
	acc := accounts.NewService(env.App)
	for _, uid := range uids {
		require.NoError(t, acc.Enroll(context.Background(), accounts.Profile{
			UID:              uid,
			FirstName:        "Name " + uid,
			PictureURL:       "https://img.example/" + uid,
			Gender:           demographic.GenderOther,
			SexualPreference: []demographic.Sex{demographic.Male, demographic.Female},
			Degree:           demographic.Undergrad,
		}))
	}
}

func newEngine(env *testutil.Env) *swipe.Engine {
	return swipe.NewEngine(env.App, swipe.WithClock(func() time.Time { return fixedNow }))
}

func TestRegister_MutualMatch(t *testing.T) {
	ctx := context.Background()
	env := testutil.NewEnv(t)
	enroll(t, env, "alice", "bob")
	engine := newEngine(env)
	inter := repository.NewInteractionRepository(env.App.DB)

	res, err := engine.Register(ctx, "bob", []swipe.Decision{{UID: "alice", Choice: swipe.ChoiceYes}})
	require.NoError(t, err)
	assert.Empty(t, res.Matches)

	res, err = engine.Register(ctx, "alice", []swipe.Decision{{UID: "bob", Choice: swipe.ChoiceYes}})
	require.NoError(t, err)
	assert.Equal(t, []string{"bob"}, res.Matches)

	has := func(actor, target string, kinds ...db.InteractionKind) bool {
		ok, err := inter.Has(ctx, actor, target, kinds...)
		require.NoError(t, err)
		return ok
	}
	assert.True(t, has("alice", "bob", db.KindMatched))
	assert.True(t, has("bob", "alice", db.KindMatched))
	assert.False(t, has("bob", "alice", repository.LikeKinds...))
	assert.False(t, has("alice", "bob", repository.LikeKinds...))

	chats, err := repository.NewChatRepository(env.App.DB).ListForPair(ctx, "bob", "alice")
	require.NoError(t, err)
	require.Len(t, chats, 1)
	assert.Equal(t, []string{"alice", "bob"}, chats[0].UIDs)
	assert.Equal(t, "Name alice", chats[0].UserSnippets[0].FirstName)
	assert.Equal(t, "https://img.example/bob", chats[0].UserSnippets[1].PictureURL)

	events := env.Events.Events()
	require.Len(t, events, 1)
	assert.Equal(t, chats[0].ID, events[0].ChatID)
	assert.Equal(t, []string{"alice", "bob"}, events[0].UIDs)
}

func TestRegister_SwipeOnExistingMatchChangesNothing(t *testing.T) {
	ctx := context.Background()
	env := testutil.NewEnv(t)
	enroll(t, env, "alice", "bob")
	engine := newEngine(env)
	inter := repository.NewInteractionRepository(env.App.DB)
	pop := repository.NewPopularityRepository(env.App.DB, 10)

	_, err := engine.Register(ctx, "bob", []swipe.Decision{{UID: "alice", Choice: swipe.ChoiceYes}})
	require.NoError(t, err)
	res, err := engine.Register(ctx, "alice", []swipe.Decision{{UID: "bob", Choice: swipe.ChoiceYes}})
	require.NoError(t, err)
	require.Equal(t, []string{"bob"}, res.Matches)

	before, err := pop.Get(ctx, "bob")
	require.NoError(t, err)

	res, err = engine.Register(ctx, "alice", []swipe.Decision{{UID: "bob", Choice: swipe.ChoiceYes}})
	require.NoError(t, err)
	assert.Empty(t, res.Matches)
	assert.InDelta(t, 18, res.SwipesLeft, 1e-9, "the decision is still charged")

	res, err = engine.Register(ctx, "bob", []swipe.Decision{{UID: "alice", Choice: swipe.ChoiceSuper}})
	require.NoError(t, err)
	assert.Empty(t, res.Matches)

	for _, pair := range [][2]string{{"alice", "bob"}, {"bob", "alice"}} {
		liked, err := inter.Has(ctx, pair[0], pair[1], repository.LikeKinds...)
		require.NoError(t, err)
		assert.False(t, liked, "%s keeps no like on %s", pair[0], pair[1])
		matched, err := inter.Has(ctx, pair[0], pair[1], db.KindMatched)
		require.NoError(t, err)
		assert.True(t, matched)
	}

	after, err := pop.Get(ctx, "bob")
	require.NoError(t, err)
	assert.Equal(t, before.SeenCount, after.SeenCount)
	assert.Equal(t, before.LikeCount, after.LikeCount)

	chats, err := repository.NewChatRepository(env.App.DB).ListForPair(ctx, "alice", "bob")
	require.NoError(t, err)
	assert.Len(t, chats, 1)
	assert.Len(t, env.Events.Events(), 1)
}

func TestRegister_RecordsChoicesAndCounters(t *testing.T) {
	ctx := context.Background()
	env := testutil.NewEnv(t)
	enroll(t, env, "me", "c", "d", "e")

	res, err := newEngine(env).Register(ctx, "me", []swipe.Decision{
		{UID: "c", Choice: swipe.ChoiceYes},
		{UID: "d", Choice: swipe.ChoiceSuper},
		{UID: "e", Choice: swipe.ChoiceNo},
	})
	require.NoError(t, err)
	assert.Empty(t, res.Matches)
	assert.InDelta(t, 17, res.SwipesLeft, 1e-9)

	inter := repository.NewInteractionRepository(env.App.DB)
	liked, err := inter.Targets(ctx, "me", db.KindLiked)
	require.NoError(t, err)
	assert.Equal(t, map[string]struct{}{"c": {}}, liked)
	super, err := inter.Targets(ctx, "me", db.KindSuperLiked)
	require.NoError(t, err)
	assert.Equal(t, map[string]struct{}{"d": {}}, super)
	disliked, err := inter.Targets(ctx, "me", db.KindDisliked)
	require.NoError(t, err)
	assert.Equal(t, map[string]struct{}{"e": {}}, disliked)

	recs, err := repository.NewPopularityRepository(env.App.DB, 10).GetMany(ctx, []string{"c", "d", "e", "me"})
	require.NoError(t, err)
	for uid, want := range map[string][2]int64{"c": {1, 1}, "d": {1, 1}, "e": {1, 0}, "me": {0, 0}} {
		assert.Equal(t, want[0], recs[uid].SeenCount, "seen %s", uid)
		assert.Equal(t, want[1], recs[uid].LikeCount, "like %s", uid)
	}

	state, ok, err := repository.NewSwipeCapRepository(env.App.DB).Get(ctx, "me")
	require.NoError(t, err)
	require.True(t, ok)
	assert.InDelta(t, 17, state.SwipesLeft, 1e-9)
	assert.True(t, fixedNow.Equal(state.LastRecordedAt))
}

func TestRegister_MissingRecordAbortsBatch(t *testing.T) {
	ctx := context.Background()
	env := testutil.NewEnv(t)
	enroll(t, env, "me", "c")
	// profile without a popularity record
	require.NoError(t, env.App.DB.Create(&db.User{
		UID: "ghost", Gender: "female", SexualPreference: []string{"male"},
		Degree: "undergrad", SwipeMode: db.SwipeModeDating, ShowProfile: true,
	}).Error)

	_, err := newEngine(env).Register(ctx, "me", []swipe.Decision{
		{UID: "c", Choice: swipe.ChoiceYes},
		{UID: "ghost", Choice: swipe.ChoiceNo},
	})
	require.ErrorIs(t, err, svcErr.ErrNotFound)

	liked, err := repository.NewInteractionRepository(env.App.DB).Targets(ctx, "me", db.KindLiked)
	require.NoError(t, err)
	assert.Empty(t, liked)
	rec, err := repository.NewPopularityRepository(env.App.DB, 10).Get(ctx, "c")
	require.NoError(t, err)
	assert.Zero(t, rec.SeenCount)

	_, err = newEngine(env).Register(ctx, "me", []swipe.Decision{{UID: "nobody", Choice: swipe.ChoiceYes}})
	assert.ErrorIs(t, err, svcErr.ErrNotFound)
}

func TestRegister_CapEnforced(t *testing.T) {
	ctx := context.Background()
	env := testutil.NewEnv(t, func(c *config.Config) {
		c.SwipeCap.Max = 2
		c.SwipeCap.Enforce = true
	})
	enroll(t, env, "me", "a", "b", "c")
	engine := newEngine(env)

	_, err := engine.Register(ctx, "me", []swipe.Decision{
		{UID: "a", Choice: swipe.ChoiceNo},
		{UID: "b", Choice: swipe.ChoiceNo},
		{UID: "c", Choice: swipe.ChoiceNo},
	})
	require.ErrorIs(t, err, svcErr.ErrSwipeCapExceeded)

	disliked, err := repository.NewInteractionRepository(env.App.DB).Targets(ctx, "me", db.KindDisliked)
	require.NoError(t, err)
	assert.Empty(t, disliked)

	res, err := engine.Register(ctx, "me", []swipe.Decision{
		{UID: "a", Choice: swipe.ChoiceNo},
		{UID: "b", Choice: swipe.ChoiceNo},
	})
	require.NoError(t, err)
	assert.Zero(t, res.SwipesLeft)
}

func TestRegister_Validation(t *testing.T) {
	ctx := context.Background()
	env := testutil.NewEnv(t)
	enroll(t, env, "me", "a")
	engine := newEngine(env)

	_, err := engine.Register(ctx, "me", nil)
	assert.ErrorIs(t, err, svcErr.ErrInvalidArgument)

	_, err = engine.Register(ctx, "me", []swipe.Decision{{UID: "me", Choice: swipe.ChoiceYes}})
	assert.ErrorIs(t, err, svcErr.ErrInvalidArgument)

	_, err = engine.Register(ctx, "me", []swipe.Decision{{UID: "a", Choice: "maybe"}})
	assert.ErrorIs(t, err, svcErr.ErrInvalidArgument)

	// repeated uid keeps the last choice; every decision sent is charged
	res, err := engine.Register(ctx, "me", []swipe.Decision{
		{UID: "a", Choice: swipe.ChoiceYes},
		{UID: "a", Choice: swipe.ChoiceNo},
	})
	require.NoError(t, err)
	assert.InDelta(t, 18, res.SwipesLeft, 1e-9)
	disliked, err := repository.NewInteractionRepository(env.App.DB).Targets(ctx, "me", db.KindDisliked)
	require.NoError(t, err)
	assert.Contains(t, disliked, "a")
}
