package repository

import (
	"context"
	"encoding/hex"
	"slices"

	"golang.org/x/crypto/blake2b"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/oggyb/swipe-engine/internal/db"
)

// ChatRepository stores chats between matched users.
type ChatRepository struct {
	db *gorm.DB
}

func NewChatRepository(database *gorm.DB) *ChatRepository {
	return &ChatRepository{db: database}
}

// WithTx returns a copy bound to tx.
func (r *ChatRepository) WithTx(tx *gorm.DB) *ChatRepository {
	return &ChatRepository{db: tx}
}

// ChatID derives the chat id of a pair. The order of a and b does not matter.
func ChatID(a, b string) string {
	pair := SortedPair(a, b)
	sum := blake2b.Sum256([]byte(pair[0] + "\x00" + pair[1]))
	return hex.EncodeToString(sum[:])
}

// SortedPair returns a and b in lexicographic order.
func SortedPair(a, b string) []string {
	pair := []string{a, b}
	slices.Sort(pair)
	return pair
}

// CreateIfAbsent inserts the chat of the pair unless it already exists.
// It reports whether a new row was written.
func (r *ChatRepository) CreateIfAbsent(ctx context.Context, a, b db.ChatSnippet) (*db.Chat, bool, error) {
	chat := &db.Chat{
		ID:   ChatID(a.UID, b.UID),
		UIDs: SortedPair(a.UID, b.UID),
	}
	if chat.UIDs[0] == a.UID {
		chat.UserSnippets = []db.ChatSnippet{a, b}
	} else {
		chat.UserSnippets = []db.ChatSnippet{b, a}
	}

	res := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(chat)
	if res.Error != nil {
		return nil, false, res.Error
	}
	return chat, res.RowsAffected == 1, nil
}

// ListForPair returns every chat whose uid pair is {a, b}.
func (r *ChatRepository) ListForPair(ctx context.Context, a, b string) ([]db.Chat, error) {
	var chats []db.Chat
	err := r.db.WithContext(ctx).Where("id = ?", ChatID(a, b)).Find(&chats).Error
	return chats, err
}
