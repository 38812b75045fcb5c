// Package swipe registers swipe decisions, detects mutual matches and keeps
// the per-user swipe cap.
package swipe

import (
	"context"
	"slices"
	"time"

	"gorm.io/gorm"

	"github.com/oggyb/swipe-engine/internal/app"
	"github.com/oggyb/swipe-engine/internal/db"
	svcErr "github.com/oggyb/swipe-engine/internal/errors"
	"github.com/oggyb/swipe-engine/internal/logger"
	"github.com/oggyb/swipe-engine/internal/messaging"
	"github.com/oggyb/swipe-engine/internal/metrics"
	"github.com/oggyb/swipe-engine/internal/repository"
	"github.com/oggyb/swipe-engine/internal/txn"
)

// Result is what a registration reports back.
type Result struct {
	Matches    []string
	SwipesLeft float64
}

// Engine registers swipe batches.
type Engine struct {
	appCtx       *app.AppContext
	runner       *txn.Runner
	policy       CapPolicy
	now          func() time.Time
	users        *repository.UserRepository
	popularity   *repository.PopularityRepository
	interactions *repository.InteractionRepository
	chats        *repository.ChatRepository
	caps         *repository.SwipeCapRepository
}

// Option configures an Engine.
type Option func(*Engine)

// WithClock replaces time.Now for swipe cap accounting.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

// WithRunner replaces the transaction runner.
func WithRunner(r *txn.Runner) Option {
	return func(e *Engine) { e.runner = r }
}

func NewEngine(appCtx *app.AppContext, opts ...Option) *Engine {
	cfg := appCtx.Config
	e := &Engine{
		appCtx:       appCtx,
		runner:       txn.New(appCtx.DB),
		policy:       PolicyFromConfig(cfg.SwipeCap),
		now:          time.Now,
		users:        repository.NewUserRepository(appCtx.DB),
		popularity:   repository.NewPopularityRepository(appCtx.DB, cfg.Popularity.ContainerCapacity),
		interactions: repository.NewInteractionRepository(appCtx.DB),
		chats:        repository.NewChatRepository(appCtx.DB),
		caps:         repository.NewSwipeCapRepository(appCtx.DB),
	}
	for _, o := range opts {
		o(e)
	}
	return e
}

// Register applies uid's decisions in one transaction.
//
// Behavior:
//   - A yes/super on someone who already liked or super liked uid is a
//     match: both sides get a matched entry, and the liked entries between
//     them are cleared. A chat keyed by the pair is created if absent.
//   - Other yes/super decisions go into uid's liked/super liked map, no
//     decisions into uid's disliked map.
//   - Every swiped user's seen counter goes up by one; yes/super also bump
//     the like counter.
//   - Decisions on users uid already matched with change nothing.
//   - The swipe cap is charged with the number of decisions sent, repeats
//     and already matched users included.
//
// A repeated uid in decisions keeps its last choice. Any missing user or
// popularity record aborts the whole batch. Match events are published
// after commit.
func (e *Engine) Register(ctx context.Context, uid string, decisions []Decision) (*Result, error) {
	log := logger.FromContext(ctx)

	batch, err := normalize(uid, decisions)
	if err != nil {
		return nil, err
	}

	var (
		res   *Result
		chats []db.Chat
	)
	err = e.runner.Run(ctx, func(tx *gorm.DB) error {
		// reset on every attempt; a retry starts from a rolled-back state
		res = &Result{}
		chats = chats[:0]

		users := e.users.WithTx(tx)
		inter := e.interactions.WithTx(tx).Shared()
		pop := e.popularity.WithTx(tx)

		// Locking every user of the batch serializes registrations that
		// touch the same pair, so two crossing likes cannot both miss
		// each other.
		all := make([]string, 0, len(batch)+1)
		all = append(all, uid)
		for _, d := range batch {
			all = append(all, d.UID)
		}
		profiles, err := users.LockMany(ctx, all)
		if err != nil {
			return err
		}
		for _, c := range all {
			if _, ok := profiles[c]; !ok {
				return svcErr.NotFound("user", c)
			}
		}

		matched, err := inter.Targets(ctx, uid, db.KindMatched)
		if err != nil {
			return err
		}

		swiped := make([]string, 0, len(batch))
		var likes, dislikes []string
		choices := make(map[string]Choice, len(batch))
		for _, d := range batch {
			if _, ok := matched[d.UID]; ok {
				continue
			}
			swiped = append(swiped, d.UID)
			choices[d.UID] = d.Choice
			if d.Choice.IsLike() {
				likes = append(likes, d.UID)
			} else {
				dislikes = append(dislikes, d.UID)
			}
		}

		inbound, err := inter.InboundFrom(ctx, uid, likes, repository.LikeKinds...)
		if err != nil {
			return err
		}
		for _, c := range likes {
			if _, matched := inbound[c]; matched {
				res.Matches = append(res.Matches, c)
				continue
			}
			if err := inter.Record(ctx, uid, choices[c].Kind(), c); err != nil {
				return err
			}
		}
		if err := inter.Record(ctx, uid, db.KindDisliked, dislikes...); err != nil {
			return err
		}

		for _, c := range res.Matches {
			if err := inter.Record(ctx, uid, db.KindMatched, c); err != nil {
				return err
			}
			if err := inter.Record(ctx, c, db.KindMatched, uid); err != nil {
				return err
			}
			for _, k := range repository.LikeKinds {
				if err := inter.Remove(ctx, c, k, uid); err != nil {
					return err
				}
				if err := inter.Remove(ctx, uid, k, c); err != nil {
					return err
				}
			}
		}

		if _, err := pop.GetMany(ctx, swiped); err != nil {
			return err
		}
		if err := pop.IncrementSeen(ctx, swiped...); err != nil {
			return err
		}
		if err := pop.IncrementLike(ctx, likes...); err != nil {
			return err
		}

		if len(res.Matches) > 0 {
			snippets, err := users.Snippets(ctx, append([]string{uid}, res.Matches...)...)
			if err != nil {
				return err
			}
			chatRepo := e.chats.WithTx(tx)
			for _, c := range res.Matches {
				chat, created, err := chatRepo.CreateIfAbsent(ctx, snippets[uid], snippets[c])
				if err != nil {
					return err
				}
				if created {
					chats = append(chats, *chat)
				}
			}
		}

		capRepo := e.caps.WithTx(tx)
		prev, ok, err := capRepo.Get(ctx, uid)
		if err != nil {
			return err
		}
		next, err := e.policy.Next(prev, ok, uid, len(decisions), e.now())
		if err != nil {
			return err
		}
		if err := capRepo.Save(ctx, next); err != nil {
			return err
		}
		res.SwipesLeft = next.SwipesLeft
		return nil
	})
	if err != nil {
		log.Error("swipe registration failed", "uid", uid, "swipes", len(batch), "err", err)
		return nil, err
	}

	for _, d := range batch {
		metrics.SwipesTotal.WithLabelValues(string(d.Choice)).Inc()
	}
	metrics.MatchesTotal.Add(float64(len(res.Matches)))
	for _, chat := range chats {
		ev := messaging.MatchCreated{ChatID: chat.ID, UIDs: chat.UIDs, CreatedAt: chat.CreatedAt}
		if err := e.appCtx.Events.PublishMatchCreated(ctx, ev); err != nil {
			log.Warn("match event not published", "chat_id", chat.ID, "err", err)
		}
	}

	log.Debug("swipes registered",
		"uid", uid,
		"swipes", len(batch),
		"matches", len(res.Matches),
		"swipes_left", res.SwipesLeft,
	)
	return res, nil
}

// normalize rejects empty batches and self swipes and collapses repeated
// uids onto their last choice, keeping first-seen order.
func normalize(uid string, decisions []Decision) ([]Decision, error) {
	if len(decisions) == 0 {
		return nil, svcErr.Invalid("no swipe choices")
	}
	index := make(map[string]int, len(decisions))
	out := make([]Decision, 0, len(decisions))
	for _, d := range decisions {
		if d.UID == "" {
			return nil, svcErr.Invalid("swipe choice without uid")
		}
		if d.UID == uid {
			return nil, svcErr.Invalid("cannot swipe on yourself")
		}
		if !slices.Contains([]Choice{ChoiceYes, ChoiceNo, ChoiceSuper}, d.Choice) {
			return nil, svcErr.Invalid("unknown choice %q for %s", d.Choice, d.UID)
		}
		if i, dup := index[d.UID]; dup {
			out[i].Choice = d.Choice
			continue
		}
		index[d.UID] = len(out)
		out = append(out, d)
	}
	return out, nil
}
