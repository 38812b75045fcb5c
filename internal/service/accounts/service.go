// Package accounts enrolls users into the ranking stores and handles the
// small account-level actions that feed the matching pipeline.
package accounts

import (
	"context"
	"strings"

	"gorm.io/gorm"

	"github.com/oggyb/swipe-engine/internal/app"
	"github.com/oggyb/swipe-engine/internal/db"
	"github.com/oggyb/swipe-engine/internal/demographic"
	svcErr "github.com/oggyb/swipe-engine/internal/errors"
	"github.com/oggyb/swipe-engine/internal/repository"
	"github.com/oggyb/swipe-engine/internal/txn"
)

// InitialPercentile is where a new user is placed in their buckets.
const InitialPercentile = 0.5

// Features are the attributes matched against other users' search criteria.
type Features struct {
	University      string
	AreaOfStudy     string
	SocietyCategory string
	Interests       []string
}

// Profile is everything needed to enroll a user.
type Profile struct {
	UID              string
	FirstName        string
	PictureURL       string
	Gender           demographic.Gender
	SexualPreference []demographic.Sex
	Degree           demographic.Degree
	SwipeMode        string
	Hidden           bool
	Features         Features
}

type Service struct {
	appCtx       *app.AppContext
	runner       *txn.Runner
	users        *repository.UserRepository
	popularity   *repository.PopularityRepository
	partitions   *repository.PartitionRepository
	interactions *repository.InteractionRepository
}

func NewService(appCtx *app.AppContext) *Service {
	cfg := appCtx.Config
	return &Service{
		appCtx:       appCtx,
		runner:       txn.New(appCtx.DB),
		users:        repository.NewUserRepository(appCtx.DB),
		popularity:   repository.NewPopularityRepository(appCtx.DB, cfg.Popularity.ContainerCapacity),
		partitions:   repository.NewPartitionRepository(appCtx.DB, cfg.Partition.ShardCapacity),
		interactions: repository.NewInteractionRepository(appCtx.DB),
	}
}

// Enroll creates the user, their search features and popularity record, and
// inserts them at InitialPercentile into every bucket their attributes imply.
// Users outside the ranking (not dating, or hidden) get no bucket entries;
// the next recompute would drop them anyway.
func (s *Service) Enroll(ctx context.Context, p Profile) error {
	if strings.TrimSpace(p.UID) == "" {
		return svcErr.Invalid("uid is required")
	}
	if len(p.SexualPreference) == 0 {
		return svcErr.Invalid("sexual preference is required")
	}
	if p.SwipeMode == "" {
		p.SwipeMode = db.SwipeModeDating
	}

	prefs := make([]string, 0, len(p.SexualPreference))
	for _, sp := range p.SexualPreference {
		prefs = append(prefs, sp.String())
	}

	user := &db.User{
		UID:              p.UID,
		FirstName:        p.FirstName,
		PictureURL:       p.PictureURL,
		Gender:           p.Gender.String(),
		SexualPreference: prefs,
		Degree:           p.Degree.String(),
		SwipeMode:        p.SwipeMode,
		ShowProfile:      !p.Hidden,
	}
	features := &db.SearchFeature{
		University:      p.Features.University,
		AreaOfStudy:     p.Features.AreaOfStudy,
		Degree:          p.Degree.String(),
		SocietyCategory: p.Features.SocietyCategory,
		Interests:       p.Features.Interests,
	}
	record := &db.PopularityRecord{
		UID:              p.UID,
		Percentile:       InitialPercentile,
		Gender:           user.Gender,
		SexualPreference: prefs,
		Degree:           user.Degree,
		ShowProfile:      user.ShowProfile,
		SwipeMode:        p.SwipeMode,
	}

	err := s.runner.Run(ctx, func(tx *gorm.DB) error {
		if err := s.users.WithTx(tx).Create(ctx, user, features); err != nil {
			return err
		}
		if err := s.popularity.WithTx(tx).WriteUserInfo(ctx, record); err != nil {
			return err
		}
		if !rankable(user.SwipeMode, user.ShowProfile) {
			return nil
		}
		parts := s.partitions.WithTx(tx)
		for _, b := range demographic.BucketsFor(p.Degree, p.Gender, p.SexualPreference) {
			if err := parts.InsertAtPercentile(ctx, p.UID, b, InitialPercentile); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		s.appCtx.Logger.Error("enroll failed", "uid", p.UID, "err", err)
		return err
	}
	s.appCtx.Logger.Debug("user enrolled", "uid", p.UID, "container", record.ContainerID)
	return nil
}

// SetShowProfile toggles visibility on the profile and the popularity
// record. Turning a dating profile visible puts it back into its buckets at
// its current percentile.
func (s *Service) SetShowProfile(ctx context.Context, uid string, show bool) error {
	return s.runner.Run(ctx, func(tx *gorm.DB) error {
		users := s.users.WithTx(tx)
		if err := users.SetShowProfile(ctx, uid, show); err != nil {
			return err
		}
		pop := s.popularity.WithTx(tx)
		if err := pop.SetShowProfile(ctx, uid, show); err != nil {
			return err
		}
		if !show {
			return nil
		}

		u, err := users.Get(ctx, uid)
		if err != nil {
			return err
		}
		if !rankable(u.SwipeMode, true) {
			return nil
		}
		buckets, err := BucketsOf(u)
		if err != nil {
			return err
		}
		rec, err := pop.Get(ctx, uid)
		if err != nil {
			return err
		}
		parts := s.partitions.WithTx(tx)
		for _, b := range buckets {
			if err := parts.InsertAtPercentile(ctx, uid, b, rec.Percentile); err != nil {
				return err
			}
		}
		return nil
	})
}

// Report records that reporter reported target. Each side stops seeing the
// other in generated stacks.
func (s *Service) Report(ctx context.Context, reporter, target string) error {
	if reporter == target {
		return svcErr.Invalid("cannot report yourself")
	}
	if _, err := s.users.Get(ctx, target); err != nil {
		return err
	}
	if err := s.interactions.Record(ctx, reporter, db.KindReported, target); err != nil {
		return err
	}
	s.appCtx.Logger.Info("user reported", "reporter", reporter, "target", target)
	return nil
}

// BucketsOf resolves the buckets a stored user belongs to.
func BucketsOf(u *db.User) ([]demographic.Bucket, error) {
	degree, err := demographic.ParseDegree(u.Degree)
	if err != nil {
		return nil, svcErr.InvalidState("user", u.UID, "degree")
	}
	gender, err := demographic.ParseGender(u.Gender)
	if err != nil {
		return nil, svcErr.InvalidState("user", u.UID, "gender")
	}
	prefs, err := demographic.ParseSexes(u.SexualPreference)
	if err != nil {
		return nil, svcErr.InvalidState("user", u.UID, "sexual preference")
	}
	return demographic.BucketsFor(degree, gender, prefs), nil
}

func rankable(swipeMode string, show bool) bool {
	return swipeMode == db.SwipeModeDating && show
}
