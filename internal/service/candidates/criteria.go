package candidates

import (
	"slices"

	"github.com/oggyb/swipe-engine/internal/db"
)

// Criteria is an optional search filter. Nil fields are wildcards. Criteria
// only rank candidates, they never exclude anyone.
type Criteria struct {
	University      *string
	AreaOfStudy     *string
	Degree          *string
	SocietyCategory *string
	Interests       []string
}

// Empty reports whether no field is set.
func (c *Criteria) Empty() bool {
	return c == nil || (c.University == nil && c.AreaOfStudy == nil && c.Degree == nil &&
		c.SocietyCategory == nil && len(c.Interests) == 0)
}

// Matches counts the set fields f satisfies. Scalar fields compare exactly;
// Interests matches when any requested interest is among f's interests.
func (c *Criteria) Matches(f db.SearchFeature) int {
	if c == nil {
		return 0
	}
	n := 0
	for _, p := range []struct {
		want *string
		got  string
	}{
		{c.University, f.University},
		{c.AreaOfStudy, f.AreaOfStudy},
		{c.Degree, f.Degree},
		{c.SocietyCategory, f.SocietyCategory},
	} {
		if p.want != nil && *p.want == p.got {
			n++
		}
	}
	if len(c.Interests) > 0 && slices.ContainsFunc(c.Interests, func(i string) bool {
		return slices.Contains(f.Interests, i)
	}) {
		n++
	}
	return n
}

// OrderByCriteria groups uids by how many criteria they match and flattens
// the groups from matching none to matching the most, keeping input order
// within a group. The best matches therefore sit at the end.
func OrderByCriteria(c *Criteria, uids []string, features map[string]db.SearchFeature) []string {
	if c.Empty() {
		return slices.Clone(uids)
	}
	groups := make([][]string, 6)
	for _, uid := range uids {
		n := c.Matches(features[uid])
		groups[n] = append(groups[n], uid)
	}
	out := make([]string, 0, len(uids))
	for _, g := range groups {
		out = append(out, g...)
	}
	return out
}
