package recompute

import (
	"cmp"
	"math"
	"slices"

	"github.com/oggyb/swipe-engine/internal/db"
	"github.com/oggyb/swipe-engine/internal/demographic"
	"github.com/oggyb/swipe-engine/internal/repository"
)

// OnlineStats is a running mean and population variance of the popularity
// index within one bucket.
type OnlineStats struct {
	Mean     float64
	Variance float64
	N        int
}

// Add folds x into the running mean and variance. The first value sets the
// mean and leaves the variance at zero.
func (s *OnlineStats) Add(x float64) {
	if s.N == 0 {
		*s = OnlineStats{Mean: x, N: 1}
		return
	}
	n := float64(s.N)
	mean := ((s.Mean + x/n) * n) / (n + 1)
	variance := ((s.Variance+s.Mean*s.Mean+x*x/n)*n)/(n+1) - mean*mean
	// float cancellation can leave a tiny negative residue
	s.Mean, s.Variance, s.N = mean, math.Max(0, variance), s.N+1
}

// PercentileChange is how far a user with popularity index pi moves, given
// the bucket mean and variance: 0.2 at three standard deviations, weighted
// by how many times they were seen, saturating at 100.
func PercentileChange(pi float64, seen int64, mean, variance float64) float64 {
	if variance <= 0 {
		return 0
	}
	z := (pi - mean) / math.Sqrt(variance)
	return (z / 3) * 0.2 * math.Min(1, float64(seen)/100)
}

// popularityIndex is like/seen, undefined when the user was never seen.
func popularityIndex(r db.PopularityRecord) (float64, bool) {
	if r.SeenCount <= 0 {
		return 0, false
	}
	return float64(r.LikeCount) / float64(r.SeenCount), true
}

// Ranking is the outcome of a recompute before it is written.
type Ranking struct {
	Buckets demographic.Table[[]string]
	Updates []repository.PercentileUpdate
	// Skipped holds records whose demographic fields could not be parsed.
	Skipped []string
}

type scored struct {
	uid      string
	score    float64
	prevRank int
}

// Rank orders records within every bucket they belong to and assigns new
// percentiles.
//
// Behavior:
//   - Bucket statistics are built from users with a defined popularity index.
//   - score = percentile + PercentileChange, using the mean and variance
//     averaged over the user's buckets. An undefined index scores the bare
//     percentile.
//   - Each bucket is sorted ascending by score; ties keep the order of
//     previous. percentile = (rank+1)/size, averaged over the user's buckets.
//   - Every update consumes the counters that were read.
func Rank(records []db.PopularityRecord, previous demographic.Table[[]string]) *Ranking {
	out := &Ranking{}

	type entry struct {
		rec     db.PopularityRecord
		buckets []demographic.Bucket
	}
	entries := make([]entry, 0, len(records))
	var stats demographic.Table[OnlineStats]
	for _, r := range records {
		buckets, err := bucketsOf(r)
		if err != nil || len(buckets) == 0 {
			out.Skipped = append(out.Skipped, r.UID)
			continue
		}
		entries = append(entries, entry{rec: r, buckets: buckets})
		if pi, ok := popularityIndex(r); ok {
			for _, b := range buckets {
				stats.At(b).Add(pi)
			}
		}
	}

	prevRank := make([]map[string]int, demographic.BucketCount)
	for i, uids := range previous {
		prevRank[i] = make(map[string]int, len(uids))
		for rank, uid := range uids {
			prevRank[i][uid] = rank
		}
	}

	var lists demographic.Table[[]scored]
	for _, e := range entries {
		score := e.rec.Percentile
		if score <= 0 || math.IsNaN(score) {
			score = 0.5
		}
		if pi, ok := popularityIndex(e.rec); ok {
			var mean, variance float64
			n := 0
			for _, b := range e.buckets {
				if s := stats.At(b); s.N > 0 {
					mean += s.Mean
					variance += s.Variance
					n++
				}
			}
			if n > 0 {
				score += PercentileChange(pi, e.rec.SeenCount, mean/float64(n), variance/float64(n))
			}
		}
		for _, b := range e.buckets {
			prev, ok := prevRank[b.Index()][e.rec.UID]
			if !ok {
				prev = math.MaxInt
			}
			*lists.At(b) = append(*lists.At(b), scored{uid: e.rec.UID, score: score, prevRank: prev})
		}
	}

	sum := make(map[string]float64, len(entries))
	count := make(map[string]int, len(entries))
	for i := range lists {
		list := lists[i]
		slices.SortStableFunc(list, func(a, b scored) int {
			if c := cmp.Compare(a.score, b.score); c != 0 {
				return c
			}
			if c := cmp.Compare(a.prevRank, b.prevRank); c != 0 {
				return c
			}
			return cmp.Compare(a.uid, b.uid)
		})
		uids := make([]string, len(list))
		for rank, s := range list {
			uids[rank] = s.uid
			sum[s.uid] += float64(rank+1) / float64(len(list))
			count[s.uid]++
		}
		out.Buckets[i] = uids
	}

	out.Updates = make([]repository.PercentileUpdate, 0, len(entries))
	for _, e := range entries {
		out.Updates = append(out.Updates, repository.PercentileUpdate{
			UID:        e.rec.UID,
			Percentile: sum[e.rec.UID] / float64(count[e.rec.UID]),
			SeenRead:   e.rec.SeenCount,
			LikeRead:   e.rec.LikeCount,
		})
	}
	return out
}

func bucketsOf(r db.PopularityRecord) ([]demographic.Bucket, error) {
	degree, err := demographic.ParseDegree(r.Degree)
	if err != nil {
		return nil, err
	}
	gender, err := demographic.ParseGender(r.Gender)
	if err != nil {
		return nil, err
	}
	prefs, err := demographic.ParseSexes(r.SexualPreference)
	if err != nil {
		return nil, err
	}
	return demographic.BucketsFor(degree, gender, prefs), nil
}
