package repository

import (
	"context"
	"errors"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/oggyb/swipe-engine/internal/db"
	svcErr "github.com/oggyb/swipe-engine/internal/errors"
)

// UserRepository reads and writes profiles and search features.
type UserRepository struct {
	db *gorm.DB
}

func NewUserRepository(database *gorm.DB) *UserRepository {
	return &UserRepository{db: database}
}

// WithTx returns a copy bound to tx.
func (r *UserRepository) WithTx(tx *gorm.DB) *UserRepository {
	return &UserRepository{db: tx}
}

// Get returns the user or an ErrNotFound.
func (r *UserRepository) Get(ctx context.Context, uid string) (*db.User, error) {
	var u db.User
	err := r.db.WithContext(ctx).Where("uid = ?", uid).First(&u).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, svcErr.NotFound("user", uid)
	}
	if err != nil {
		return nil, err
	}
	return &u, nil
}

// GetMany returns the users that exist among uids, keyed by uid.
func (r *UserRepository) GetMany(ctx context.Context, uids []string) (map[string]db.User, error) {
	return getUsers(r.db.WithContext(ctx), uids)
}

// LockMany is GetMany taking write locks on the rows it finds. Rows are
// locked in uid order, so transactions locking overlapping sets queue
// behind each other instead of deadlocking.
func (r *UserRepository) LockMany(ctx context.Context, uids []string) (map[string]db.User, error) {
	q := r.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Order("uid ASC")
	return getUsers(q, uids)
}

func getUsers(q *gorm.DB, uids []string) (map[string]db.User, error) {
	out := make(map[string]db.User, len(uids))
	if len(uids) == 0 {
		return out, nil
	}
	var users []db.User
	if err := q.Where("uid IN ?", uids).Find(&users).Error; err != nil {
		return nil, err
	}
	for _, u := range users {
		out[u.UID] = u
	}
	return out, nil
}

// Create inserts the user and their search features.
func (r *UserRepository) Create(ctx context.Context, u *db.User, f *db.SearchFeature) error {
	tx := r.db.WithContext(ctx)
	if err := tx.Create(u).Error; err != nil {
		return err
	}
	if f == nil {
		f = &db.SearchFeature{}
	}
	f.UID = u.UID
	return tx.Create(f).Error
}

// SetShowProfile toggles profile visibility.
func (r *UserRepository) SetShowProfile(ctx context.Context, uid string, show bool) error {
	res := r.db.WithContext(ctx).Model(&db.User{}).Where("uid = ?", uid).Update("show_profile", show)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return svcErr.NotFound("user", uid)
	}
	return nil
}

// SearchFeatures returns the features of the given users keyed by uid.
// Users without a row are absent from the map.
func (r *UserRepository) SearchFeatures(ctx context.Context, uids []string) (map[string]db.SearchFeature, error) {
	out := make(map[string]db.SearchFeature, len(uids))
	if len(uids) == 0 {
		return out, nil
	}
	var rows []db.SearchFeature
	if err := r.db.WithContext(ctx).Where("uid IN ?", uids).Find(&rows).Error; err != nil {
		return nil, err
	}
	for _, f := range rows {
		out[f.UID] = f
	}
	return out, nil
}

// Snippets returns the chat snippet of every uid. A missing user is an error.
func (r *UserRepository) Snippets(ctx context.Context, uids ...string) (map[string]db.ChatSnippet, error) {
	users, err := r.GetMany(ctx, uids)
	if err != nil {
		return nil, err
	}
	out := make(map[string]db.ChatSnippet, len(uids))
	for _, uid := range uids {
		u, ok := users[uid]
		if !ok {
			return nil, svcErr.NotFound("user", uid)
		}
		out[uid] = db.ChatSnippet{UID: u.UID, FirstName: u.FirstName, PictureURL: u.PictureURL}
	}
	return out, nil
}
