package repository

import (
	"context"
	"errors"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/oggyb/swipe-engine/internal/db"
)

// SwipeCapRepository persists swipe token buckets.
type SwipeCapRepository struct {
	db *gorm.DB
}

func NewSwipeCapRepository(database *gorm.DB) *SwipeCapRepository {
	return &SwipeCapRepository{db: database}
}

// WithTx returns a copy bound to tx.
func (r *SwipeCapRepository) WithTx(tx *gorm.DB) *SwipeCapRepository {
	return &SwipeCapRepository{db: tx}
}

// Get returns uid's bucket under a write lock, held until the surrounding
// transaction ends; ok is false when none was stored yet.
func (r *SwipeCapRepository) Get(ctx context.Context, uid string) (state db.SwipeCap, ok bool, err error) {
	err = r.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("uid = ?", uid).
		First(&state).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return db.SwipeCap{}, false, nil
	}
	if err != nil {
		return db.SwipeCap{}, false, err
	}
	return state, true, nil
}

// Save overwrites uid's bucket.
func (r *SwipeCapRepository) Save(ctx context.Context, state db.SwipeCap) error {
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "uid"}},
			DoUpdates: clause.AssignmentColumns([]string{"swipes_left", "last_recorded_at"}),
		}).
		Create(&state).Error
}
