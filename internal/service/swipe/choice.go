package swipe

import (
	"fmt"
	"strings"

	"github.com/oggyb/swipe-engine/internal/db"
	svcErr "github.com/oggyb/swipe-engine/internal/errors"
)

// Choice is a swipe decision, and also the suggested decision attached to a
// generated candidate.
type Choice string

const (
	ChoiceYes   Choice = "yes"
	ChoiceNo    Choice = "no"
	ChoiceSuper Choice = "super"
)

// ParseChoice accepts "yes", "no" or "super" in any case.
func ParseChoice(s string) (Choice, error) {
	switch c := Choice(strings.ToLower(strings.TrimSpace(s))); c {
	case ChoiceYes, ChoiceNo, ChoiceSuper:
		return c, nil
	}
	return "", svcErr.Invalid("unknown choice %q", s)
}

// IsLike reports whether the choice expresses interest.
func (c Choice) IsLike() bool { return c == ChoiceYes || c == ChoiceSuper }

// Kind is the interaction recorded for a choice that did not match.
func (c Choice) Kind() db.InteractionKind {
	switch c {
	case ChoiceSuper:
		return db.KindSuperLiked
	case ChoiceYes:
		return db.KindLiked
	default:
		return db.KindDisliked
	}
}

// ChoiceFor maps an inbound interaction onto the choice suggested to the
// person who received it.
func ChoiceFor(kind db.InteractionKind) Choice {
	switch kind {
	case db.KindSuperLiked:
		return ChoiceSuper
	case db.KindLiked:
		return ChoiceYes
	default:
		return ChoiceNo
	}
}

// Decision is one swipe on one candidate.
type Decision struct {
	UID    string
	Choice Choice
}

func (d Decision) String() string { return fmt.Sprintf("%s:%s", d.UID, d.Choice) }
