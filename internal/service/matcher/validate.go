package matcher

import (
	"fmt"
	"strings"
	"unicode/utf8"

	api "github.com/oggyb/swipe-engine/internal/api/matcher"
	"github.com/oggyb/swipe-engine/internal/demographic"
	svcErr "github.com/oggyb/swipe-engine/internal/errors"
	"github.com/oggyb/swipe-engine/internal/service/candidates"
	"github.com/oggyb/swipe-engine/internal/service/swipe"
)

// Request limits.
const (
	MaxChoices      = 100
	MaxInterests    = 20
	maxFieldLength  = 128
	maxUIDLength    = 128
	maxInterestSize = 64
)

// CriteriaFrom validates search criteria. Blank fields become wildcards; a
// nil or all-blank filter yields nil.
func CriteriaFrom(in *api.SearchCriteria) (*candidates.Criteria, error) {
	if in == nil {
		return nil, nil
	}
	out := &candidates.Criteria{}
	for _, f := range []struct {
		name string
		in   *string
		out  **string
	}{
		{"university", in.University, &out.University},
		{"area_of_study", in.AreaOfStudy, &out.AreaOfStudy},
		{"degree", in.Degree, &out.Degree},
		{"society_category", in.SocietyCategory, &out.SocietyCategory},
	} {
		v, err := optionalField(f.name, f.in)
		if err != nil {
			return nil, err
		}
		*f.out = v
	}
	if out.Degree != nil {
		d, err := demographic.ParseDegree(*out.Degree)
		if err != nil {
			return nil, svcErr.Invalid("unknown degree %q", *out.Degree)
		}
		canonical := d.String()
		out.Degree = &canonical
	}

	if len(in.Interests) > MaxInterests {
		return nil, svcErr.Invalid("at most %d interests", MaxInterests)
	}
	seen := map[string]struct{}{}
	for _, raw := range in.Interests {
		v := strings.TrimSpace(raw)
		if v == "" {
			continue
		}
		if utf8.RuneCountInString(v) > maxInterestSize {
			return nil, svcErr.Invalid("interest %q is too long", v)
		}
		if _, dup := seen[v]; dup {
			continue
		}
		seen[v] = struct{}{}
		out.Interests = append(out.Interests, v)
	}

	if out.Empty() {
		return nil, nil
	}
	return out, nil
}

func optionalField(name string, v *string) (*string, error) {
	if v == nil {
		return nil, nil
	}
	s := strings.TrimSpace(*v)
	if s == "" {
		return nil, nil
	}
	if utf8.RuneCountInString(s) > maxFieldLength {
		return nil, svcErr.Invalid("%s is too long", name)
	}
	return &s, nil
}

// DecisionsFrom validates a swipe batch.
func DecisionsFrom(in []api.SwipeChoice) ([]swipe.Decision, error) {
	if len(in) == 0 {
		return nil, svcErr.Invalid("choices must not be empty")
	}
	if len(in) > MaxChoices {
		return nil, svcErr.Invalid("at most %d choices per call", MaxChoices)
	}
	out := make([]swipe.Decision, 0, len(in))
	for i, c := range in {
		uid, err := UIDFrom(c.UID)
		if err != nil {
			return nil, fmt.Errorf("choices[%d]: %w", i, err)
		}
		choice, err := swipe.ParseChoice(c.Choice)
		if err != nil {
			return nil, svcErr.Invalid("choices[%d]: unknown choice %q", i, c.Choice)
		}
		out = append(out, swipe.Decision{UID: uid, Choice: choice})
	}
	return out, nil
}

// UIDFrom validates a uid reference.
func UIDFrom(raw string) (string, error) {
	uid := strings.TrimSpace(raw)
	switch {
	case uid == "":
		return "", svcErr.Invalid("uid is required")
	case len(uid) > maxUIDLength:
		return "", svcErr.Invalid("uid is too long")
	}
	return uid, nil
}
