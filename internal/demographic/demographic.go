// Package demographic defines the (degree, gender, sexual preference) bucket
// key and a fixed-size table indexed by it.
package demographic

import (
	"fmt"
	"strings"
)

// Degree of study.
type Degree uint8

const (
	Undergrad Degree = iota
	Postgrad
)

// Sex is a binary sex used both as a bucket gender and as a sexual preference.
type Sex uint8

const (
	Male Sex = iota
	Female
)

// Gender is a user's declared gender. GenderOther belongs to both sex buckets.
type Gender uint8

const (
	GenderMale Gender = iota
	GenderFemale
	GenderOther
)

// BucketCount is the number of distinct buckets.
const BucketCount = 8

var (
	degrees = [...]Degree{Undergrad, Postgrad}
	sexes   = [...]Sex{Male, Female}
)

// Bucket is one demographic partition.
type Bucket struct {
	Degree           Degree
	Gender           Sex
	SexualPreference Sex
}

// Index maps the bucket onto 0..BucketCount-1.
func (b Bucket) Index() int {
	return int(b.Degree)*4 + int(b.Gender)*2 + int(b.SexualPreference)
}

func (b Bucket) String() string {
	return fmt.Sprintf("%s_%s_%s", b.Degree, b.Gender, b.SexualPreference)
}

// FromIndex is the inverse of Bucket.Index.
func FromIndex(i int) Bucket {
	return Bucket{
		Degree:           Degree(i / 4),
		Gender:           Sex(i / 2 % 2),
		SexualPreference: Sex(i % 2),
	}
}

// All returns every bucket in index order.
func All() []Bucket {
	out := make([]Bucket, 0, BucketCount)
	for i := 0; i < BucketCount; i++ {
		out = append(out, FromIndex(i))
	}
	return out
}

// Table holds one value per bucket.
type Table[T any] [BucketCount]T

// At returns a pointer to the slot of b.
func (t *Table[T]) At(b Bucket) *T { return &t[b.Index()] }

// Sexes returns the sex buckets a gender belongs to.
func (g Gender) Sexes() []Sex {
	switch g {
	case GenderMale:
		return []Sex{Male}
	case GenderFemale:
		return []Sex{Female}
	default:
		return sexes[:]
	}
}

// BucketsFor lists every bucket a user with these attributes is stored in.
// Duplicate preferences are collapsed so each bucket appears once.
func BucketsFor(degree Degree, gender Gender, prefs []Sex) []Bucket {
	var seen [BucketCount]bool
	var out []Bucket
	for _, g := range gender.Sexes() {
		for _, p := range prefs {
			b := Bucket{Degree: degree, Gender: g, SexualPreference: p}
			if seen[b.Index()] {
				continue
			}
			seen[b.Index()] = true
			out = append(out, b)
		}
	}
	return out
}

// TargetBuckets lists the buckets holding people a requester may be shown:
// people whose gender is one of the requester's preferences and who are
// attracted to the requester's gender (either sex when the requester is
// GenderOther), across every given degree.
func TargetBuckets(gender Gender, prefs []Sex, degrees []Degree) []Bucket {
	var seen [BucketCount]bool
	var out []Bucket
	for _, d := range degrees {
		for _, g := range prefs {
			for _, p := range gender.Sexes() {
				b := Bucket{Degree: d, Gender: g, SexualPreference: p}
				if seen[b.Index()] {
					continue
				}
				seen[b.Index()] = true
				out = append(out, b)
			}
		}
	}
	return out
}

// Degrees returns both degrees.
func Degrees() []Degree { return degrees[:] }

func (d Degree) String() string {
	if d == Postgrad {
		return "postgrad"
	}
	return "undergrad"
}

func (s Sex) String() string {
	if s == Female {
		return "female"
	}
	return "male"
}

func (g Gender) String() string {
	switch g {
	case GenderFemale:
		return "female"
	case GenderOther:
		return "other"
	default:
		return "male"
	}
}

// ParseDegree parses "undergrad" or "postgrad".
func ParseDegree(s string) (Degree, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "undergrad":
		return Undergrad, nil
	case "postgrad":
		return Postgrad, nil
	}
	return 0, fmt.Errorf("unknown degree %q", s)
}

// ParseSex parses "male" or "female".
func ParseSex(s string) (Sex, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "male":
		return Male, nil
	case "female":
		return Female, nil
	}
	return 0, fmt.Errorf("unknown sex %q", s)
}

// ParseSexes parses a sexual-preference list. It must be non-empty.
func ParseSexes(in []string) ([]Sex, error) {
	if len(in) == 0 {
		return nil, fmt.Errorf("empty sexual preference")
	}
	out := make([]Sex, 0, len(in))
	for _, s := range in {
		v, err := ParseSex(s)
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, nil
}

// ParseGender parses "male", "female" or "other".
func ParseGender(s string) (Gender, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "male":
		return GenderMale, nil
	case "female":
		return GenderFemale, nil
	case "other":
		return GenderOther, nil
	}
	return 0, fmt.Errorf("unknown gender %q", s)
}
