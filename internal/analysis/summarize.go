package analysis

import (
	"math"
	"sort"
	"time"

	"github.com/abelbrown/stationreviews/internal/review"
)

// MaxSample caps how many of the most recent reviews feed the aspect
// aggregation.
const MaxSample = 50

// trendThreshold is the change in positive share, month over month, that
// counts as a trend.
const trendThreshold = 0.10

type tally struct {
	pos, neg, neu int
}

func (t *tally) add(s review.Sentiment) {
	switch s {
	case review.Positive:
		t.pos++
	case review.Negative:
		t.neg++
	default:
		t.neu++
	}
}

func (t tally) total() int { return t.pos + t.neg + t.neu }

// dominant breaks ties Positive, then Negative, then Neutral.
func (t tally) dominant() (review.Sentiment, int) {
	switch {
	case t.pos >= t.neg && t.pos >= t.neu:
		return review.Positive, t.pos
	case t.neg >= t.neu:
		return review.Negative, t.neg
	default:
		return review.Neutral, t.neu
	}
}

func (t tally) positiveShare() float64 {
	if t.total() == 0 {
		return 0
	}
	return float64(t.pos) / float64(t.total())
}

// aspectsOf returns the stored aspects of r, analysing the text when none
// were stored.
func aspectsOf(r review.Review) []review.Aspect {
	if len(r.Aspects) > 0 {
		return r.Aspects
	}
	return Analyze(r.Text, r.Rating).Aspects
}

func sentimentOf(r review.Review) review.Sentiment {
	if r.Sentiment != "" {
		return r.Sentiment
	}
	return Classify(r.Text, r.Rating)
}

// Summarize computes the station statistics over reviews as of now.
// Rating figures use every review; aspects use the MaxSample most recent.
func Summarize(reviews []review.Review, now time.Time) review.StationStats {
	stats := review.StationStats{
		TotalReviews:       len(reviews),
		ReviewDistribution: map[int]int{1: 0, 2: 0, 3: 0, 4: 0, 5: 0},
		Aspects:            make(map[string]review.Aspect),
		RecentTrends:       review.RecentTrends{Sentiment: review.Neutral},
	}
	if len(reviews) == 0 {
		return stats
	}

	sum, rated := 0, 0
	for _, r := range reviews {
		if r.Rating < review.MinRating || r.Rating > review.MaxRating {
			continue
		}
		stats.ReviewDistribution[r.Rating]++
		sum += r.Rating
		rated++
	}
	if rated > 0 {
		stats.OverallRating = math.Round(float64(sum)/float64(rated)*10) / 10
	}

	thisMonth := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, now.Location())
	lastMonth := thisMonth.AddDate(0, -1, 0)
	bucket := func(t time.Time) int {
		switch {
		case !t.Before(thisMonth):
			return 0
		case !t.Before(lastMonth):
			return 1
		default:
			return -1
		}
	}

	var recent tally
	for _, r := range reviews {
		switch bucket(r.CreatedAt) {
		case 0:
			stats.RecentTrends.ThisMonth++
			recent.add(sentimentOf(r))
		case 1:
			stats.RecentTrends.LastMonth++
		}
	}
	if recent.total() > 0 {
		stats.RecentTrends.Sentiment, _ = recent.dominant()
	}

	sample := append([]review.Review(nil), reviews...)
	sort.SliceStable(sample, func(i, j int) bool {
		return sample[i].CreatedAt.After(sample[j].CreatedAt)
	})
	if len(sample) > MaxSample {
		sample = sample[:MaxSample]
	}

	overall := make(map[string]*tally)
	monthly := make(map[string]*[2]tally)
	for _, r := range sample {
		b := bucket(r.CreatedAt)
		for _, a := range aspectsOf(r) {
			if overall[a.Name] == nil {
				overall[a.Name] = &tally{}
				monthly[a.Name] = &[2]tally{}
			}
			overall[a.Name].add(a.Sentiment)
			if b >= 0 {
				monthly[a.Name][b].add(a.Sentiment)
			}
		}
	}

	for name, t := range overall {
		label, n := t.dominant()
		stats.Aspects[name] = review.Aspect{
			Name:       name,
			Sentiment:  label,
			Percentage: math.Floor(float64(n) / float64(t.total()) * 100),
			Trend:      trend(monthly[name]),
		}
	}
	return stats
}

func trend(m *[2]tally) review.Trend {
	cur, prev := m[0], m[1]
	if cur.total() == 0 || prev.total() == 0 {
		return review.Flat
	}
	d := cur.positiveShare() - prev.positiveShare()
	switch {
	case d > trendThreshold:
		return review.Up
	case d < -trendThreshold:
		return review.Down
	default:
		return review.Flat
	}
}
