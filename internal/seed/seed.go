// Package seed fills a development database with demo users and swipes,
// going through the same enrollment and registration paths as production.
package seed

import (
	"context"
	"errors"
	"fmt"

	"github.com/oggyb/swipe-engine/internal/app"
	"github.com/oggyb/swipe-engine/internal/demographic"
	svcErr "github.com/oggyb/swipe-engine/internal/errors"
	"github.com/oggyb/swipe-engine/internal/repository"
	"github.com/oggyb/swipe-engine/internal/sampling"
	"github.com/oggyb/swipe-engine/internal/service/accounts"
	"github.com/oggyb/swipe-engine/internal/service/swipe"
)

var (
	firstNames   = []string{"Amira", "Ben", "Chloe", "Dev", "Elif", "Farah", "Gus", "Hana", "Idris", "Jade", "Kofi", "Lena"}
	universities = []string{"UCL", "KCL", "LSE", "Imperial"}
	areas        = []string{"Law", "Medicine", "Physics", "History", "Economics"}
	societies    = []string{"Sports", "Arts", "Debate", "Tech"}
	interests    = []string{"chess", "jazz", "hiking", "cooking", "film", "football", "poetry"}
)

// Summary counts what a run created.
type Summary struct {
	Enrolled int
	Swipes   int
	Matches  int
}

// UID names the i-th demo user.
func UID(i int) string { return fmt.Sprintf("demo-%03d", i) }

// Demo enrolls n demo users and lets each swipe on up to 12 others.
//
// Behavior:
//  1. Users that already exist are left alone; a run that enrolls nobody
//     swipes nothing, so the seed can be re-run.
//  2. Genders are roughly 45% male, 45% female, 10% other; about one in five
//     users is attracted to both sexes.
//  3. Likes happen 70% of the time; every third swiped pair also gets the
//     reverse like first, guaranteeing some matches.
//
// The same seed always produces the same dataset.
func Demo(ctx context.Context, appCtx *app.AppContext, n int, seed uint64) (*Summary, error) {
	rng := sampling.NewSeeded(seed)
	acc := accounts.NewService(appCtx)
	users := repository.NewUserRepository(appCtx.DB)
	sum := &Summary{}

	profiles := make([]accounts.Profile, n)
	for i := range profiles {
		p := randomProfile(rng, UID(i))
		profiles[i] = p

		_, err := users.Get(ctx, p.UID)
		if err == nil {
			continue
		}
		if !errors.Is(err, svcErr.ErrNotFound) {
			return sum, err
		}
		if err := acc.Enroll(ctx, p); err != nil {
			return sum, fmt.Errorf("enroll %s: %w", p.UID, err)
		}
		sum.Enrolled++
	}
	if sum.Enrolled == 0 {
		return sum, nil
	}

	engine := swipe.NewEngine(appCtx)
	pair := 0
	for i, actor := range profiles {
		var batch []swipe.Decision
		picked := map[int]struct{}{i: {}}
		for j := 0; j < 12 && len(picked) < n; j++ {
			k := rng.IntN(n)
			if _, dup := picked[k]; dup {
				continue
			}
			picked[k] = struct{}{}
			if !attracted(actor, profiles[k]) {
				continue
			}

			choice := swipe.ChoiceNo
			if rng.Float64() < 0.7 {
				choice = swipe.ChoiceYes
			}
			if pair%3 == 0 {
				choice = swipe.ChoiceYes
				res, err := engine.Register(ctx, profiles[k].UID, []swipe.Decision{{UID: actor.UID, Choice: swipe.ChoiceYes}})
				if err != nil {
					return sum, fmt.Errorf("reverse like %s: %w", profiles[k].UID, err)
				}
				sum.Swipes++
				sum.Matches += len(res.Matches)
			}
			pair++
			batch = append(batch, swipe.Decision{UID: profiles[k].UID, Choice: choice})
		}
		if len(batch) == 0 {
			continue
		}
		res, err := engine.Register(ctx, actor.UID, batch)
		if err != nil {
			return sum, fmt.Errorf("swipes of %s: %w", actor.UID, err)
		}
		sum.Swipes += len(batch)
		sum.Matches += len(res.Matches)
	}
	return sum, nil
}

func pick[T any](rng sampling.Rand, xs []T) T { return xs[rng.IntN(len(xs))] }

func randomProfile(rng sampling.Rand, uid string) accounts.Profile {
	var gender demographic.Gender
	switch r := rng.Float64(); {
	case r < 0.45:
		gender = demographic.GenderMale
	case r < 0.9:
		gender = demographic.GenderFemale
	default:
		gender = demographic.GenderOther
	}

	prefs := []demographic.Sex{demographic.Female}
	switch {
	case rng.Float64() < 0.2:
		prefs = []demographic.Sex{demographic.Male, demographic.Female}
	case gender == demographic.GenderFemale:
		prefs = []demographic.Sex{demographic.Male}
	}

	degree := demographic.Undergrad
	if rng.IntN(3) == 0 {
		degree = demographic.Postgrad
	}

	return accounts.Profile{
		UID:              uid,
		FirstName:        pick(rng, firstNames),
		PictureURL:       "https://picsum.photos/seed/" + uid + "/400",
		Gender:           gender,
		SexualPreference: prefs,
		Degree:           degree,
		Features: accounts.Features{
			University:      pick(rng, universities),
			AreaOfStudy:     pick(rng, areas),
			SocietyCategory: pick(rng, societies),
			Interests:       []string{pick(rng, interests), pick(rng, interests)},
		},
	}
}

// attracted reports whether a would be shown b.
func attracted(a, b accounts.Profile) bool {
	for _, bk := range demographic.TargetBuckets(a.Gender, a.SexualPreference, []demographic.Degree{b.Degree}) {
		for _, own := range demographic.BucketsFor(b.Degree, b.Gender, b.SexualPreference) {
			if bk == own {
				return true
			}
		}
	}
	return false
}
