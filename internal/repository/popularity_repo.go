package repository

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/oggyb/swipe-engine/internal/db"
	svcErr "github.com/oggyb/swipe-engine/internal/errors"
)

// PopularityRepository is the popularity aggregation store. Every active
// user has exactly one record, held in a capacity-bounded container; a
// missing record is a consistency error and is reported as ErrNotFound.
type PopularityRepository struct {
	db       *gorm.DB
	capacity int
}

// NewPopularityRepository creates a repository whose containers hold at most
// capacity records.
func NewPopularityRepository(database *gorm.DB, capacity int) *PopularityRepository {
	return &PopularityRepository{db: database, capacity: capacity}
}

// WithTx returns a copy bound to tx.
func (r *PopularityRepository) WithTx(tx *gorm.DB) *PopularityRepository {
	return &PopularityRepository{db: tx, capacity: r.capacity}
}

// Get returns the record of uid.
func (r *PopularityRepository) Get(ctx context.Context, uid string) (*db.PopularityRecord, error) {
	var rec db.PopularityRecord
	err := r.db.WithContext(ctx).Where("uid = ?", uid).First(&rec).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, svcErr.NotFound("popularity record", uid)
	}
	if err != nil {
		return nil, err
	}
	return &rec, nil
}

// GetMany loads the records of uids in one query. Any missing uid fails the
// whole lookup.
func (r *PopularityRepository) GetMany(ctx context.Context, uids []string) (map[string]*db.PopularityRecord, error) {
	out := make(map[string]*db.PopularityRecord, len(uids))
	if len(uids) == 0 {
		return out, nil
	}
	var recs []db.PopularityRecord
	if err := r.db.WithContext(ctx).Where("uid IN ?", uids).Find(&recs).Error; err != nil {
		return nil, err
	}
	for i := range recs {
		out[recs[i].UID] = &recs[i]
	}
	for _, uid := range uids {
		if _, ok := out[uid]; !ok {
			return nil, svcErr.NotFound("popularity record", uid)
		}
	}
	return out, nil
}

// FindContainerFor returns the id of the container holding uid's record.
func (r *PopularityRepository) FindContainerFor(ctx context.Context, uid string) (string, error) {
	rec, err := r.Get(ctx, uid)
	if err != nil {
		return "", err
	}
	return rec.ContainerID, nil
}

// ReadPercentile returns uid's percentile at the last recompute.
func (r *PopularityRepository) ReadPercentile(ctx context.Context, uid string) (float64, error) {
	rec, err := r.Get(ctx, uid)
	if err != nil {
		return 0, err
	}
	return rec.Percentile, nil
}

// IncrementSeen adds one to seen_count of every uid.
func (r *PopularityRepository) IncrementSeen(ctx context.Context, uids ...string) error {
	return r.increment(ctx, "seen_count", uids)
}

// IncrementLike adds one to like_count of every uid.
func (r *PopularityRepository) IncrementLike(ctx context.Context, uids ...string) error {
	return r.increment(ctx, "like_count", uids)
}

func (r *PopularityRepository) increment(ctx context.Context, column string, uids []string) error {
	if len(uids) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).
		Model(&db.PopularityRecord{}).
		Where("uid IN ?", uids).
		UpdateColumn(column, gorm.Expr(column+" + 1")).Error
}

// WriteUserInfo creates rec, or refreshes the demographic and visibility
// fields of an existing record. A new record is placed in the first container
// with spare capacity, or in a new container when all are full.
//
// Call inside a transaction so the container count and the record commit
// together.
func (r *PopularityRepository) WriteUserInfo(ctx context.Context, rec *db.PopularityRecord) error {
	tx := r.db.WithContext(ctx)

	var existing db.PopularityRecord
	err := tx.Where("uid = ?", rec.UID).First(&existing).Error
	switch {
	case err == nil:
		rec.ContainerID = existing.ContainerID
		return tx.Model(&existing).
			Select("gender", "sexual_preference", "degree", "show_profile", "swipe_mode").
			Updates(rec).Error
	case !errors.Is(err, gorm.ErrRecordNotFound):
		return err
	}

	containerID, err := r.reserveSlot(ctx)
	if err != nil {
		return err
	}
	rec.ContainerID = containerID
	return tx.Create(rec).Error
}

// reserveSlot claims one slot in a container with room. The claim is a
// conditional increment, so two enrollments racing for the last slot cannot
// both win it.
func (r *PopularityRepository) reserveSlot(ctx context.Context) (string, error) {
	tx := r.db.WithContext(ctx)

	var open db.PopularityContainer
	err := tx.Where("user_count < ?", r.capacity).Order("created_at ASC").Limit(1).Find(&open).Error
	if err != nil {
		return "", err
	}
	if open.ID != "" {
		res := tx.Model(&db.PopularityContainer{}).
			Where("id = ? AND user_count < ?", open.ID, r.capacity).
			UpdateColumn("user_count", gorm.Expr("user_count + 1"))
		if res.Error != nil {
			return "", res.Error
		}
		if res.RowsAffected == 1 {
			return open.ID, nil
		}
	}

	fresh := db.PopularityContainer{ID: uuid.NewString(), UserCount: 1}
	if err := tx.Create(&fresh).Error; err != nil {
		return "", err
	}
	return fresh.ID, nil
}

// SetShowProfile updates the visibility flag read by the recompute.
func (r *PopularityRepository) SetShowProfile(ctx context.Context, uid string, show bool) error {
	res := r.db.WithContext(ctx).
		Model(&db.PopularityRecord{}).
		Where("uid = ?", uid).
		UpdateColumn("show_profile", show)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return svcErr.NotFound("popularity record", uid)
	}
	return nil
}

// EachRankable walks, in batches, every record that takes part in the
// ranking: dating mode with a visible profile.
func (r *PopularityRepository) EachRankable(ctx context.Context, batch int, fn func([]db.PopularityRecord) error) error {
	var recs []db.PopularityRecord
	return r.db.WithContext(ctx).
		Where("swipe_mode = ? AND show_profile = ?", db.SwipeModeDating, true).
		FindInBatches(&recs, batch, func(tx *gorm.DB, _ int) error {
			return fn(recs)
		}).Error
}

// PercentileUpdate is the outcome of a recompute for one user. SeenRead and
// LikeRead are the counter values the recompute consumed.
type PercentileUpdate struct {
	UID        string
	Percentile float64
	SeenRead   int64
	LikeRead   int64
}

// ApplyRecompute writes new percentiles and takes the consumed counts off
// the counters, keeping increments that landed after the read.
func (r *PopularityRepository) ApplyRecompute(ctx context.Context, updates []PercentileUpdate) error {
	tx := r.db.WithContext(ctx)
	for _, u := range updates {
		err := tx.Model(&db.PopularityRecord{}).
			Where("uid = ?", u.UID).
			UpdateColumns(map[string]any{
				"percentile": u.Percentile,
				"seen_count": gorm.Expr("seen_count - ?", u.SeenRead),
				"like_count": gorm.Expr("like_count - ?", u.LikeRead),
			}).Error
		if err != nil {
			return err
		}
	}
	return nil
}
