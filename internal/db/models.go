package db

import (
	"time"
)

// Swipe modes. Only dating users are ranked and shown.
const (
	SwipeModeDating = "dating"
	SwipeModeFriend = "friend"
)

// User holds the profile snippet and demographic attributes of an account.
type User struct {
	UID              string    `gorm:"column:uid;primaryKey;size:128"`
	FirstName        string    `gorm:"size:64;not null"`
	PictureURL       string    `gorm:"column:picture_url;size:512"`
	Gender           string    `gorm:"size:16;not null"`
	SexualPreference []string  `gorm:"serializer:json;type:text"`
	Degree           string    `gorm:"size:16;not null"`
	SwipeMode        string    `gorm:"size:16"`
	ShowProfile      bool      `gorm:"not null"`
	CreatedAt        time.Time `gorm:"autoCreateTime"`
	UpdatedAt        time.Time `gorm:"autoUpdateTime"`
}

// SearchFeature is the part of a user's picking data matched against
// another user's search criteria.
type SearchFeature struct {
	UID             string   `gorm:"column:uid;primaryKey;size:128"`
	University      string   `gorm:"size:128"`
	AreaOfStudy     string   `gorm:"size:128"`
	Degree          string   `gorm:"size:16"`
	SocietyCategory string   `gorm:"size:128"`
	Interests       []string `gorm:"serializer:json;type:text"`
}

// InteractionKind names one of the per-user interaction maps.
type InteractionKind string

const (
	KindLiked      InteractionKind = "liked"
	KindSuperLiked InteractionKind = "super_liked"
	KindMatched    InteractionKind = "matched"
	KindDisliked   InteractionKind = "disliked"
	KindReported   InteractionKind = "reported"
)

// Interaction is one entry of ActorUID's interaction map of the given kind.
//
// Composite PK: (ActorUID, TargetUID, Kind)
//   - An entry exists at most once; entries are never updated, only removed
//     on a state transition (liked → matched).
//
// Indexes:
//   - idx_target_kind(target_uid, kind)
//     Serves the "who liked me" reverse lookup.
type Interaction struct {
	ActorUID  string          `gorm:"column:actor_uid;primaryKey;size:128"`
	TargetUID string          `gorm:"column:target_uid;primaryKey;size:128;index:idx_target_kind,priority:1"`
	Kind      InteractionKind `gorm:"primaryKey;size:16;index:idx_target_kind,priority:2"`
	CreatedAt time.Time       `gorm:"autoCreateTime"`
}

// PopularityContainer groups up to a fixed number of popularity records.
type PopularityContainer struct {
	ID        string    `gorm:"primaryKey;size:36"`
	UserCount int       `gorm:"not null;index"`
	CreatedAt time.Time `gorm:"autoCreateTime"`
}

// PopularityRecord holds a user's swipe counters since the last recompute,
// their percentile and the attributes the recompute partitions by.
type PopularityRecord struct {
	UID              string    `gorm:"column:uid;primaryKey;size:128"`
	ContainerID      string    `gorm:"size:36;not null;index"`
	SeenCount        int64     `gorm:"not null"`
	LikeCount        int64     `gorm:"not null"`
	Percentile       float64   `gorm:"not null"`
	Gender           string    `gorm:"size:16;not null"`
	SexualPreference []string  `gorm:"serializer:json;type:text"`
	Degree           string    `gorm:"size:16;not null"`
	ShowProfile      bool      `gorm:"not null"`
	SwipeMode        string    `gorm:"size:16"`
	UpdatedAt        time.Time `gorm:"autoUpdateTime"`
}

// PartitionStateID is the primary key of the single PartitionState row.
const PartitionStateID = 1

// PartitionState tracks which shard generation is live. Version is bumped by
// every write into the live generation.
type PartitionState struct {
	ID         uint  `gorm:"primaryKey"`
	Generation int64 `gorm:"not null"`
	Version    int64 `gorm:"not null"`
}

func (PartitionState) TableName() string { return "partition_state" }

// PartitionShard is one volume of a bucket's ranked uid array.
type PartitionShard struct {
	ID               uint     `gorm:"primaryKey;autoIncrement"`
	Generation       int64    `gorm:"not null;index:idx_shard_bucket,priority:1"`
	Degree           string   `gorm:"size:16;not null;index:idx_shard_bucket,priority:2"`
	Gender           string   `gorm:"size:16;not null;index:idx_shard_bucket,priority:3"`
	SexualPreference string   `gorm:"size:16;not null;index:idx_shard_bucket,priority:4"`
	Volume           int      `gorm:"not null;index:idx_shard_bucket,priority:5"`
	UIDs             []string `gorm:"column:uids;serializer:json;type:longtext"`
}

// SwipeCap is a user's swipe token bucket.
type SwipeCap struct {
	UID            string    `gorm:"column:uid;primaryKey;size:128"`
	SwipesLeft     float64   `gorm:"not null"`
	LastRecordedAt time.Time `gorm:"not null"`
}

// ChatSnippet is the profile snippet stored with a chat.
type ChatSnippet struct {
	UID        string `json:"uid"`
	FirstName  string `json:"firstName"`
	PictureURL string `json:"pictureUrl"`
}

// Chat is created once per matched pair. ID is derived from the sorted pair.
type Chat struct {
	ID           string        `gorm:"primaryKey;size:64"`
	UIDs         []string      `gorm:"column:uids;serializer:json;type:text"`
	UserSnippets []ChatSnippet `gorm:"serializer:json;type:text"`
	CreatedAt    time.Time     `gorm:"autoCreateTime"`
}

// Models lists every table managed by Migrate.
func Models() []any {
	return []any{
		&User{},
		&SearchFeature{},
		&Interaction{},
		&PopularityContainer{},
		&PopularityRecord{},
		&PartitionState{},
		&PartitionShard{},
		&SwipeCap{},
		&Chat{},
	}
}
