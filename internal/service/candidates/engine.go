// Package candidates builds swipe stacks: a ranked batch of people to show a
// requester, each with a suggested choice.
package candidates

import (
	"context"
	"fmt"
	"math"

	"golang.org/x/sync/errgroup"

	"github.com/oggyb/swipe-engine/internal/app"
	"github.com/oggyb/swipe-engine/internal/db"
	"github.com/oggyb/swipe-engine/internal/demographic"
	svcErr "github.com/oggyb/swipe-engine/internal/errors"
	"github.com/oggyb/swipe-engine/internal/logger"
	"github.com/oggyb/swipe-engine/internal/metrics"
	"github.com/oggyb/swipe-engine/internal/repository"
	"github.com/oggyb/swipe-engine/internal/sampling"
	"github.com/oggyb/swipe-engine/internal/service/accounts"
	"github.com/oggyb/swipe-engine/internal/service/swipe"
)

// Candidate is one entry of a swipe stack.
type Candidate struct {
	UID    string
	Choice swipe.Choice
}

// excludedKinds are the requester's own maps whose targets are never shown.
var excludedKinds = []db.InteractionKind{
	db.KindReported, db.KindDisliked, db.KindMatched, db.KindLiked, db.KindSuperLiked,
}

// Engine generates swipe stacks. It holds no per-request state; the rng is
// the only shared mutable piece and must be safe for the caller's
// concurrency (see WithRand).
type Engine struct {
	appCtx       *app.AppContext
	params       Params
	rng          sampling.Rand
	users        *repository.UserRepository
	popularity   *repository.PopularityRepository
	partitions   *repository.PartitionRepository
	interactions *repository.InteractionRepository
}

// Option configures an Engine.
type Option func(*Engine)

// WithRand replaces the per-request random source with a fixed one. Tests
// use it for reproducible stacks; the engine must then not be shared across
// goroutines.
func WithRand(r sampling.Rand) Option {
	return func(e *Engine) { e.rng = r }
}

// WithParams overrides the tuning read from config.
func WithParams(p Params) Option {
	return func(e *Engine) { e.params = p }
}

func NewEngine(appCtx *app.AppContext, opts ...Option) *Engine {
	cfg := appCtx.Config
	e := &Engine{
		appCtx: appCtx,
		params: Params{
			WaveSize:         cfg.Matching.WaveSize,
			LikeWeight:       cfg.Matching.LikeWeight,
			CriteriaWeight:   cfg.Matching.CriteriaWeight,
			PositionVariance: cfg.Matching.PositionVariance,
			CriteriaVariance: cfg.Matching.CriteriaVariance,
		},
		users:        repository.NewUserRepository(appCtx.DB),
		popularity:   repository.NewPopularityRepository(appCtx.DB, cfg.Popularity.ContainerCapacity),
		partitions:   repository.NewPartitionRepository(appCtx.DB, cfg.Partition.ShardCapacity),
		interactions: repository.NewInteractionRepository(appCtx.DB),
	}
	for _, o := range opts {
		o(e)
	}
	return e
}

// Generate builds a swipe stack for uid.
//
// Behavior:
//   - Like group: up to LikeLimit people who liked uid, suggested "yes".
//   - Demographic pool: Gaussian position draws around uid's percentile in
//     every bucket of people uid may be shown, for both degrees.
//   - Drops uid, people uid already reported, disliked, matched or liked,
//     like-group members, people who reported uid and people who are gone,
//     hidden or not dating.
//   - Orders the pool by criteria matches and keeps a Gaussian draw biased
//     towards the best matches.
//   - Mixes both groups by weight up to WaveSize entries.
//
// Scarcity is not an error: the stack holds as many people as are available.
func (e *Engine) Generate(ctx context.Context, uid string, criteria *Criteria) ([]Candidate, error) {
	log := logger.FromContext(ctx)
	rng := e.rng
	if rng == nil {
		rng = sampling.NewRand()
	}

	requester, err := e.users.Get(ctx, uid)
	if err != nil {
		return nil, err
	}
	if requester.SwipeMode == "" {
		return nil, svcErr.InvalidState("user", uid, "swipe mode")
	}
	if requester.SwipeMode != db.SwipeModeDating {
		return nil, fmt.Errorf("swipe mode %q is not supported: %w", requester.SwipeMode, svcErr.ErrInvalidState)
	}
	gender, err := demographic.ParseGender(requester.Gender)
	if err != nil {
		return nil, svcErr.InvalidState("user", uid, "gender")
	}
	prefs, err := demographic.ParseSexes(requester.SexualPreference)
	if err != nil {
		return nil, svcErr.InvalidState("user", uid, "sexual preference")
	}
	buckets := demographic.TargetBuckets(gender, prefs, demographic.Degrees())

	var (
		percentile float64
		likeGroup  []string
		excluded   map[string]struct{}
		arrays     = make([][]string, len(buckets))
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		p, err := e.percentile(gctx, uid)
		percentile = p
		return err
	})
	g.Go(func() error {
		var err error
		likeGroup, err = e.interactions.LikedBy(gctx, uid, e.params.LikeLimit())
		return err
	})
	g.Go(func() error {
		var err error
		excluded, err = e.interactions.Targets(gctx, uid, excludedKinds...)
		return err
	})
	for i, b := range buckets {
		g.Go(func() error {
			var err error
			arrays[i], err = e.partitions.FetchBucket(gctx, b)
			return err
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	if percentile <= 0 || math.IsNaN(percentile) {
		percentile = accounts.InitialPercentile
	}

	var nonEmpty [][]string
	var means []float64
	for _, arr := range arrays {
		if len(arr) == 0 {
			continue
		}
		nonEmpty = append(nonEmpty, arr)
		means = append(means, math.Round(percentile*float64(len(arr)-1)))
	}

	drawn, misses := pickPositions(rng, nonEmpty, means, e.params.DemographicPicks(), e.params.PositionVariance)
	if misses > 0 {
		log.Warn("position draws gave up", "uid", uid, "misses", misses)
	}

	likeSet := make(map[string]struct{}, len(likeGroup))
	for _, l := range likeGroup {
		likeSet[l] = struct{}{}
	}
	pool := make([]string, 0, len(drawn))
	for _, c := range drawn {
		if c == uid {
			continue
		}
		if _, ok := excluded[c]; ok {
			continue
		}
		if _, ok := likeSet[c]; ok {
			continue
		}
		pool = append(pool, c)
	}

	everyone := append(append([]string{}, pool...), likeGroup...)
	var (
		profiles  map[string]db.User
		features  map[string]db.SearchFeature
		reporters map[string]db.InteractionKind
		inbound   map[string]db.InteractionKind
	)
	g, gctx = errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		profiles, err = e.users.GetMany(gctx, everyone)
		return err
	})
	g.Go(func() error {
		var err error
		features, err = e.users.SearchFeatures(gctx, pool)
		return err
	})
	g.Go(func() error {
		var err error
		reporters, err = e.interactions.InboundFrom(gctx, uid, everyone, db.KindReported)
		return err
	})
	g.Go(func() error {
		var err error
		inbound, err = e.interactions.InboundFrom(gctx, uid, pool, repository.LikeKinds...)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	eligible := func(c string) bool {
		p, ok := profiles[c]
		if !ok || !p.ShowProfile || p.SwipeMode != db.SwipeModeDating || c == uid {
			return false
		}
		_, reported := reporters[c]
		return !reported
	}

	var shown []string
	for _, c := range pool {
		if eligible(c) {
			shown = append(shown, c)
		}
	}
	ordered := OrderByCriteria(criteria, shown, features)
	criteriaPicks := pickNearEnd(rng, ordered, e.params.CriteriaPicks(), e.params.CriteriaVariance)

	criteriaGroup := make([]Candidate, 0, len(criteriaPicks))
	for _, c := range criteriaPicks {
		criteriaGroup = append(criteriaGroup, Candidate{UID: c, Choice: swipe.ChoiceFor(inbound[c])})
	}
	likers := make([]Candidate, 0, len(likeGroup))
	for _, c := range likeGroup {
		if eligible(c) {
			likers = append(likers, Candidate{UID: c, Choice: swipe.ChoiceYes})
		}
	}

	stack := mix(rng,
		[][]Candidate{criteriaGroup, likers},
		[]float64{e.params.CriteriaWeight, e.params.LikeWeight},
		e.params.WaveSize,
	)
	if stack == nil {
		stack = []Candidate{}
	}

	metrics.StackSize.Observe(float64(len(stack)))
	log.Debug("swipe stack generated",
		"uid", uid,
		"percentile", percentile,
		"buckets", len(nonEmpty),
		"pool", len(shown),
		"likers", len(likers),
		"size", len(stack),
	)
	return stack, nil
}

// percentile reads uid's percentile cache-first. Cache entries are keyed by
// partition generation, so a recompute invalidates them all at once.
func (e *Engine) percentile(ctx context.Context, uid string) (float64, error) {
	st, err := e.partitions.State(ctx)
	if err != nil {
		return 0, err
	}
	rc := e.appCtx.RedisCache
	if rc != nil {
		if p, ok, err := rc.GetPercentile(ctx, uid, st.Generation); err == nil && ok {
			return p, nil
		} else if err != nil {
			logger.FromContext(ctx).Warn("percentile cache read failed", "uid", uid, "err", err)
		}
	}

	p, err := e.popularity.ReadPercentile(ctx, uid)
	if err != nil {
		return 0, err
	}
	if rc != nil {
		if err := rc.SetPercentile(ctx, uid, st.Generation, p, e.appCtx.Config.Matching.PercentileTTL); err != nil {
			logger.FromContext(ctx).Warn("percentile cache write failed", "uid", uid, "err", err)
		}
	}
	return p, nil
}
