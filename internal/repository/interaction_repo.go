package repository

import (
	"context"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/oggyb/swipe-engine/internal/db"
)

// LikeKinds are the interaction kinds that express interest.
var LikeKinds = []db.InteractionKind{db.KindLiked, db.KindSuperLiked}

// InteractionRepository provides data access for the per-user interaction
// maps (liked, super liked, matched, disliked, reported). One row is one
// map entry of the actor.
type InteractionRepository struct {
	db     *gorm.DB
	shared bool
}

// NewInteractionRepository creates a new repository bound to the given DB connection.
func NewInteractionRepository(database *gorm.DB) *InteractionRepository {
	return &InteractionRepository{db: database}
}

// WithTx returns a copy bound to tx.
func (r *InteractionRepository) WithTx(tx *gorm.DB) *InteractionRepository {
	return &InteractionRepository{db: tx, shared: r.shared}
}

// Shared returns a copy whose reads take shared locks on the rows (and gaps)
// they cover. Inside a transaction, a concurrent writer into that range then
// waits or deadlocks instead of going unseen.
func (r *InteractionRepository) Shared() *InteractionRepository {
	return &InteractionRepository{db: r.db, shared: true}
}

func (r *InteractionRepository) read(ctx context.Context) *gorm.DB {
	q := r.db.WithContext(ctx)
	if r.shared {
		q = q.Clauses(clause.Locking{Strength: "SHARE"})
	}
	return q
}

// Record adds targets to actor's map of the given kind.
//
// Behavior:
//   - Existing entries are left untouched (their date is kept).
//   - Composite PK (actor_uid, target_uid, kind) makes this idempotent.
//
// Example:
//
//	repo.Record(ctx, "a", db.KindDisliked, "b", "c") // a disliked b and c
func (r *InteractionRepository) Record(ctx context.Context, actor string, kind db.InteractionKind, targets ...string) error {
	if len(targets) == 0 {
		return nil
	}
	rows := make([]db.Interaction, 0, len(targets))
	for _, t := range targets {
		rows = append(rows, db.Interaction{ActorUID: actor, TargetUID: t, Kind: kind})
	}
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(&rows).Error
}

// Remove deletes targets from actor's map of the given kind.
func (r *InteractionRepository) Remove(ctx context.Context, actor string, kind db.InteractionKind, targets ...string) error {
	if len(targets) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).
		Where("actor_uid = ? AND kind = ? AND target_uid IN ?", actor, kind, targets).
		Delete(&db.Interaction{}).Error
}

// Has reports whether actor holds target in any of the given maps.
//
// Example:
//
//	repo.Has(ctx, "b", "a", repository.LikeKinds...) // -> true if b liked or super liked a
func (r *InteractionRepository) Has(ctx context.Context, actor, target string, kinds ...db.InteractionKind) (bool, error) {
	var count int64
	err := r.read(ctx).
		Model(&db.Interaction{}).
		Where("actor_uid = ? AND target_uid = ? AND kind IN ?", actor, target, kinds).
		Count(&count).Error
	return count > 0, err
}

// Targets returns every uid present in actor's maps of the given kinds.
func (r *InteractionRepository) Targets(ctx context.Context, actor string, kinds ...db.InteractionKind) (map[string]struct{}, error) {
	var uids []string
	err := r.read(ctx).
		Model(&db.Interaction{}).
		Distinct("target_uid").
		Where("actor_uid = ? AND kind IN ?", actor, kinds).
		Pluck("target_uid", &uids).Error
	if err != nil {
		return nil, err
	}
	out := make(map[string]struct{}, len(uids))
	for _, u := range uids {
		out[u] = struct{}{}
	}
	return out, nil
}

// InboundFrom returns which of actors hold target in one of the given maps,
// with the kind found. When an actor holds several kinds, super_liked wins
// over liked and the rest keep the first row read.
func (r *InteractionRepository) InboundFrom(ctx context.Context, target string, actors []string, kinds ...db.InteractionKind) (map[string]db.InteractionKind, error) {
	out := make(map[string]db.InteractionKind)
	if len(actors) == 0 {
		return out, nil
	}
	var rows []db.Interaction
	err := r.read(ctx).
		Where("target_uid = ? AND actor_uid IN ? AND kind IN ?", target, actors, kinds).
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	for _, row := range rows {
		if _, ok := out[row.ActorUID]; !ok || row.Kind == db.KindSuperLiked {
			out[row.ActorUID] = row.Kind
		}
	}
	return out, nil
}

// LikedBy returns the users who liked or super liked target, newest first.
//
// Behavior:
//   - Only liked/super_liked rows where target_uid = X are considered.
//   - Excludes users target already disliked, reported or matched.
//   - A user who both liked and super liked appears once.
//   - At most limit users are returned.
//
// Example:
//
//	repo.LikedBy(ctx, "a", 24) // up to 24 people waiting on a's answer
func (r *InteractionRepository) LikedBy(ctx context.Context, target string, limit int) ([]string, error) {
	answered := r.db.
		Table("interactions i2").
		Select("1").
		Where("i2.actor_uid = i.target_uid AND i2.target_uid = i.actor_uid AND i2.kind IN ?",
			[]db.InteractionKind{db.KindDisliked, db.KindReported, db.KindMatched})

	var uids []string
	err := r.db.WithContext(ctx).
		Table("interactions i").
		Select("i.actor_uid").
		Where("i.target_uid = ? AND i.kind IN ? AND NOT EXISTS (?)", target, LikeKinds, answered).
		Group("i.actor_uid").
		Order("MAX(i.created_at) DESC, i.actor_uid ASC").
		Limit(limit).
		Pluck("i.actor_uid", &uids).Error
	return uids, err
}
