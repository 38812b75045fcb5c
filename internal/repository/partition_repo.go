package repository

import (
	"context"
	"fmt"
	"math"
	"slices"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/oggyb/swipe-engine/internal/db"
	"github.com/oggyb/swipe-engine/internal/demographic"
	svcErr "github.com/oggyb/swipe-engine/internal/errors"
)

// PartitionRepository is the demographic partition store: per bucket, a
// popularity-ordered uid array split into fixed-capacity volumes.
//
// Only shards of the live generation (partition_state.generation) are read.
// Writes into the live generation bump partition_state.version so a
// concurrent recompute can detect them and abort.
type PartitionRepository struct {
	db       *gorm.DB
	capacity int
}

// NewPartitionRepository creates a repository whose shards hold at most
// capacity uids.
func NewPartitionRepository(database *gorm.DB, capacity int) *PartitionRepository {
	return &PartitionRepository{db: database, capacity: capacity}
}

// WithTx returns a copy bound to tx.
func (r *PartitionRepository) WithTx(tx *gorm.DB) *PartitionRepository {
	return &PartitionRepository{db: tx, capacity: r.capacity}
}

// State reads the generation/version row.
func (r *PartitionRepository) State(ctx context.Context) (db.PartitionState, error) {
	var st db.PartitionState
	err := r.db.WithContext(ctx).First(&st, db.PartitionStateID).Error
	return st, err
}

func liveGeneration(tx *gorm.DB) *gorm.DB {
	return tx.Model(&db.PartitionState{}).Select("generation").Where("id = ?", db.PartitionStateID)
}

func bucketWhere(q *gorm.DB, b demographic.Bucket) *gorm.DB {
	return q.Where("degree = ? AND gender = ? AND sexual_preference = ?",
		b.Degree.String(), b.Gender.String(), b.SexualPreference.String())
}

// FetchBucketShards returns the live shards of b ordered by volume. A bucket
// without shards is empty, not an error.
func (r *PartitionRepository) FetchBucketShards(ctx context.Context, b demographic.Bucket) ([]db.PartitionShard, error) {
	var shards []db.PartitionShard
	q := r.db.WithContext(ctx).
		Where("generation = (?)", liveGeneration(r.db))
	err := bucketWhere(q, b).
		Order("volume ASC").
		Find(&shards).Error
	return shards, err
}

// FetchBucket returns the concatenated ranked uid array of b.
func (r *PartitionRepository) FetchBucket(ctx context.Context, b demographic.Bucket) ([]string, error) {
	shards, err := r.FetchBucketShards(ctx, b)
	if err != nil {
		return nil, err
	}
	return Concat(shards), nil
}

// FetchAll reads the state row and every live bucket, merged in volume order.
func (r *PartitionRepository) FetchAll(ctx context.Context) (db.PartitionState, demographic.Table[[]string], error) {
	var table demographic.Table[[]string]
	st, err := r.State(ctx)
	if err != nil {
		return st, table, err
	}

	var shards []db.PartitionShard
	if err := r.db.WithContext(ctx).
		Where("generation = ?", st.Generation).
		Order("volume ASC").
		Find(&shards).Error; err != nil {
		return st, table, err
	}
	for _, s := range shards {
		b, err := shardBucket(s)
		if err != nil {
			return st, table, err
		}
		*table.At(b) = append(*table.At(b), s.UIDs...)
	}
	return st, table, nil
}

// lockState reads the generation/version row under a write lock. Holding it
// serializes partition writers with each other and with ReplaceGeneration,
// which updates the same row.
func (r *PartitionRepository) lockState(ctx context.Context) (db.PartitionState, error) {
	var st db.PartitionState
	err := r.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		First(&st, db.PartitionStateID).Error
	return st, err
}

// InsertAtPercentile splices uid into b at logical index
// round(hint × total). Overflow cascades into the following volumes so every
// volume but the last stays full. Inserting a uid already in b is a no-op.
//
// Call inside a transaction: the shard rewrite and the version bump must
// commit together. The state row and the bucket's shards are read with
// locking reads, so the rewrite always starts from the latest committed
// shards of the live generation.
func (r *PartitionRepository) InsertAtPercentile(ctx context.Context, uid string, b demographic.Bucket, hint float64) error {
	st, err := r.lockState(ctx)
	if err != nil {
		return err
	}
	tx := r.db.WithContext(ctx)

	var shards []db.PartitionShard
	err = bucketWhere(tx.Clauses(clause.Locking{Strength: "UPDATE"}).Where("generation = ?", st.Generation), b).
		Order("volume ASC").
		Find(&shards).Error
	if err != nil {
		return err
	}

	if len(shards) == 0 {
		shard := db.PartitionShard{
			Generation:       st.Generation,
			Degree:           b.Degree.String(),
			Gender:           b.Gender.String(),
			SexualPreference: b.SexualPreference.String(),
			Volume:           0,
			UIDs:             []string{uid},
		}
		if err := tx.Create(&shard).Error; err != nil {
			return err
		}
		return r.bumpVersion(ctx)
	}

	total := 0
	for _, s := range shards {
		if slices.Contains(s.UIDs, uid) {
			return nil
		}
		total += len(s.UIDs)
	}

	if math.IsNaN(hint) {
		hint = 0.5
	}
	idx := int(math.Round(math.Max(0, math.Min(1, hint)) * float64(total)))

	// locate the volume holding idx; idx == total appends to the last one
	pos, local := len(shards)-1, idx
	for i, s := range shards {
		if local < len(s.UIDs) || i == len(shards)-1 {
			pos = i
			break
		}
		local -= len(s.UIDs)
	}
	shards[pos].UIDs = slices.Insert(shards[pos].UIDs, local, uid)

	dirty := []int{pos}
	for i := pos; len(shards[i].UIDs) > r.capacity; i++ {
		last := shards[i].UIDs[len(shards[i].UIDs)-1]
		shards[i].UIDs = shards[i].UIDs[:len(shards[i].UIDs)-1]
		if i+1 == len(shards) {
			next := shards[i]
			next.ID = 0
			next.Volume = shards[i].Volume + 1
			next.UIDs = nil
			shards = append(shards, next)
		}
		shards[i+1].UIDs = append([]string{last}, shards[i+1].UIDs...)
		dirty = append(dirty, i+1)
	}

	for _, i := range dirty {
		s := &shards[i]
		if s.ID == 0 {
			if err := tx.Create(s).Error; err != nil {
				return err
			}
			continue
		}
		res := tx.Model(s).Where("generation = ?", st.Generation).Select("uids").Updates(s)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return fmt.Errorf("shard %d of %s vanished: %w", s.ID, b, svcErr.ErrConflict)
		}
	}
	return r.bumpVersion(ctx)
}

func (r *PartitionRepository) bumpVersion(ctx context.Context) error {
	return r.db.WithContext(ctx).
		Model(&db.PartitionState{}).
		Where("id = ?", db.PartitionStateID).
		UpdateColumn("version", gorm.Expr("version + 1")).Error
}

// ReplaceGeneration writes buckets as generation read.Generation+1 and drops
// every older shard, provided nobody wrote into the partition since read was
// taken. Otherwise it returns ErrConflict. Call inside a transaction.
func (r *PartitionRepository) ReplaceGeneration(ctx context.Context, read db.PartitionState, buckets demographic.Table[[]string]) (int64, error) {
	next := read.Generation + 1

	var shards []db.PartitionShard
	for i, uids := range buckets {
		b := demographic.FromIndex(i)
		for vol, chunk := range Reshard(uids, r.capacity) {
			shards = append(shards, db.PartitionShard{
				Generation:       next,
				Degree:           b.Degree.String(),
				Gender:           b.Gender.String(),
				SexualPreference: b.SexualPreference.String(),
				Volume:           vol,
				UIDs:             chunk,
			})
		}
	}
	if len(shards) == 0 {
		return 0, svcErr.ErrEmptyRebalance
	}

	tx := r.db.WithContext(ctx)
	res := tx.Model(&db.PartitionState{}).
		Where("id = ? AND generation = ? AND version = ?", db.PartitionStateID, read.Generation, read.Version).
		Updates(map[string]any{"generation": next, "version": 0})
	if res.Error != nil {
		return 0, res.Error
	}
	if res.RowsAffected == 0 {
		return 0, fmt.Errorf("partition changed since generation %d version %d: %w",
			read.Generation, read.Version, svcErr.ErrConflict)
	}

	if err := tx.CreateInBatches(shards, 50).Error; err != nil {
		return 0, err
	}
	if err := tx.Where("generation <= ?", read.Generation).Delete(&db.PartitionShard{}).Error; err != nil {
		return 0, err
	}
	return next, nil
}

// Reshard splits a ranked array into volumes of at most capacity entries.
// An empty array yields no volumes.
func Reshard(uids []string, capacity int) [][]string {
	if capacity <= 0 {
		capacity = 1
	}
	var out [][]string
	for start := 0; start < len(uids); start += capacity {
		end := min(start+capacity, len(uids))
		out = append(out, slices.Clone(uids[start:end]))
	}
	return out
}

// Concat joins shards in the order given.
func Concat(shards []db.PartitionShard) []string {
	n := 0
	for _, s := range shards {
		n += len(s.UIDs)
	}
	out := make([]string, 0, n)
	for _, s := range shards {
		out = append(out, s.UIDs...)
	}
	return out
}

func shardBucket(s db.PartitionShard) (demographic.Bucket, error) {
	d, err := demographic.ParseDegree(s.Degree)
	if err != nil {
		return demographic.Bucket{}, fmt.Errorf("shard %d: %w", s.ID, err)
	}
	g, err := demographic.ParseSex(s.Gender)
	if err != nil {
		return demographic.Bucket{}, fmt.Errorf("shard %d: %w", s.ID, err)
	}
	p, err := demographic.ParseSex(s.SexualPreference)
	if err != nil {
		return demographic.Bucket{}, fmt.Errorf("shard %d: %w", s.ID, err)
	}
	return demographic.Bucket{Degree: d, Gender: g, SexualPreference: p}, nil
}
