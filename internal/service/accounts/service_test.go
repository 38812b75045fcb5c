package accounts_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/oggyb/swipe-engine/internal/db"
	"github.com/oggyb/swipe-engine/internal/demographic"
	svcErr "github.com/oggyb/swipe-engine/internal/errors"
	"github.com/oggyb/swipe-engine/internal/repository"
	"github.com/oggyb/swipe-engine/internal/service/accounts"
	"github.com/oggyb/swipe-engine/internal/testutil"
)

func profile(uid string, g demographic.Gender, prefs ...demographic.Sex) accounts.Profile {
	return accounts.Profile{
		UID:              uid,
		FirstName:        uid,
		Gender:           g,
		SexualPreference: prefs,
		Degree:           demographic.Undergrad,
		Features:         accounts.Features{University: "UCL", Interests: []string{"chess"}},
	}
}

func TestEnroll_PlacesUserInEveryImpliedBucket(t *testing.T) {
	ctx := context.Background()
	env := testutil.NewEnv(t)
	svc := accounts.NewService(env.App)

	require.NoError(t, svc.Enroll(ctx, profile("o1", demographic.GenderOther, demographic.Male, demographic.Female)))

	parts := repository.NewPartitionRepository(env.App.DB, 10)
	for _, b := range demographic.BucketsFor(demographic.Undergrad, demographic.GenderOther, []demographic.Sex{demographic.Male, demographic.Female}) {
		got, err := parts.FetchBucket(ctx, b)
		require.NoError(t, err)
		assert.Equal(t, []string{"o1"}, got, b.String())
	}

	pop := repository.NewPopularityRepository(env.App.DB, 10)
	rec, err := pop.Get(ctx, "o1")
	require.NoError(t, err)
	assert.Equal(t, accounts.InitialPercentile, rec.Percentile)
	assert.Equal(t, db.SwipeModeDating, rec.SwipeMode)
	assert.True(t, rec.ShowProfile)
	assert.NotEmpty(t, rec.ContainerID)

	var f db.SearchFeature
	require.NoError(t, env.App.DB.Where("uid = ?", "o1").First(&f).Error)
	assert.Equal(t, "UCL", f.University)
	assert.Equal(t, []string{"chess"}, f.Interests)
}

func TestEnroll_InsertsAtMidpoint(t *testing.T) {
	ctx := context.Background()
	env := testutil.NewEnv(t)
	svc := accounts.NewService(env.App)

	for _, uid := range []string{"a", "b", "c"} {
		require.NoError(t, svc.Enroll(ctx, profile(uid, demographic.GenderFemale, demographic.Male)))
	}

	bucket := demographic.Bucket{Degree: demographic.Undergrad, Gender: demographic.Female, SexualPreference: demographic.Male}
	got, err := repository.NewPartitionRepository(env.App.DB, 10).FetchBucket(ctx, bucket)
	require.NoError(t, err)
	// a; then b at round(0.5*1)=1; then c at round(0.5*2)=1
	assert.Equal(t, []string{"a", "c", "b"}, got)
}

func TestEnroll_HiddenUserHasNoBucketEntry(t *testing.T) {
	ctx := context.Background()
	env := testutil.NewEnv(t)
	svc := accounts.NewService(env.App)

	p := profile("h", demographic.GenderMale, demographic.Female)
	p.Hidden = true
	require.NoError(t, svc.Enroll(ctx, p))

	bucket := demographic.Bucket{Degree: demographic.Undergrad, Gender: demographic.Male, SexualPreference: demographic.Female}
	parts := repository.NewPartitionRepository(env.App.DB, 10)
	got, err := parts.FetchBucket(ctx, bucket)
	require.NoError(t, err)
	assert.Empty(t, got)

	require.NoError(t, svc.SetShowProfile(ctx, "h", true))
	got, err = parts.FetchBucket(ctx, bucket)
	require.NoError(t, err)
	assert.Equal(t, []string{"h"}, got)

	rec, err := repository.NewPopularityRepository(env.App.DB, 10).Get(ctx, "h")
	require.NoError(t, err)
	assert.True(t, rec.ShowProfile)
}

func TestEnroll_Validation(t *testing.T) {
	ctx := context.Background()
	svc := accounts.NewService(testutil.NewEnv(t).App)

	assert.ErrorIs(t, svc.Enroll(ctx, accounts.Profile{}), svcErr.ErrInvalidArgument)
	assert.ErrorIs(t, svc.Enroll(ctx, accounts.Profile{UID: "x"}), svcErr.ErrInvalidArgument)
}

func TestReport(t *testing.T) {
	ctx := context.Background()
	env := testutil.NewEnv(t)
	svc := accounts.NewService(env.App)
	require.NoError(t, svc.Enroll(ctx, profile("a", demographic.GenderMale, demographic.Female)))
	require.NoError(t, svc.Enroll(ctx, profile("b", demographic.GenderFemale, demographic.Male)))

	require.NoError(t, svc.Report(ctx, "a", "b"))
	ok, err := repository.NewInteractionRepository(env.App.DB).Has(ctx, "a", "b", db.KindReported)
	require.NoError(t, err)
	assert.True(t, ok)

	assert.ErrorIs(t, svc.Report(ctx, "a", "a"), svcErr.ErrInvalidArgument)
	assert.ErrorIs(t, svc.Report(ctx, "a", "ghost"), svcErr.ErrNotFound)
}
