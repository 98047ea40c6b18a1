// Package wire holds the JSON shapes of the review REST API, shared by the
// HTTP client and the development server.
package wire

import (
	"strconv"
	"strings"
	"time"

	"github.com/abelbrown/stationreviews/internal/review"
)

type Station struct {
	ID       int64  `json:"id"`
	Name     string `json:"name"`
	Line     string `json:"line"`
	Location string `json:"location"`
}

type AspectRating struct {
	ID        int64  `json:"id,omitempty"`
	Aspect    string `json:"aspect"`
	Sentiment string `json:"sentiment"`
}

type Review struct {
	ID        int64          `json:"id"`
	User      string         `json:"user"`
	Station   int64          `json:"station"`
	Text      string         `json:"text"`
	Rating    int            `json:"rating"`
	Sentiment string         `json:"sentiment"`
	CreatedAt time.Time      `json:"created_at"`
	Aspects   []AspectRating `json:"aspects"`
}

// NewReview is the POST /reviews/ body.
type NewReview struct {
	Station int64  `json:"station"`
	Rating  int    `json:"rating"`
	Text    string `json:"text"`
}

type AspectStats struct {
	Sentiment  string  `json:"sentiment"`
	Percentage float64 `json:"percentage"`
	Trend      string  `json:"trend"`
}

type RecentTrends struct {
	ThisMonth int    `json:"thisMonth"`
	LastMonth int    `json:"lastMonth"`
	Sentiment string `json:"sentiment"`
}

// Stats is the GET /stations/{id}/stats/ body. Distribution keys are the
// ratings as strings.
type Stats struct {
	OverallRating      float64                `json:"overallRating"`
	TotalReviews       int                    `json:"totalReviews"`
	ReviewDistribution map[string]int         `json:"reviewDistribution"`
	Aspects            map[string]AspectStats `json:"aspects"`
	RecentTrends       RecentTrends           `json:"recentTrends"`
}

// Envelope is the paginated list shape. Endpoints may instead return a
// bare JSON array.
type Envelope[T any] struct {
	Count    *int    `json:"count"`
	Next     *string `json:"next"`
	Previous *string `json:"previous"`
	Results  []T     `json:"results"`
}

type Credentials struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type Tokens struct {
	Access  string `json:"access"`
	Refresh string `json:"refresh,omitempty"`
}

type WhoAmI struct {
	Username string `json:"username"`
	IsStaff  bool   `json:"is_staff"`
}

// ErrorBody covers the error shapes the API returns: {"detail": ...} and
// {"error": ...}. Field errors arrive as {"field": ["reason"]} and are
// decoded separately.
type ErrorBody struct {
	Detail string `json:"detail,omitempty"`
	Error  string `json:"error,omitempty"`
}

func FromStation(s review.Station) Station {
	return Station{ID: s.ID, Name: s.Name, Line: s.Line, Location: s.Location}
}

func (s Station) Domain() review.Station {
	return review.Station{ID: s.ID, Name: s.Name, Line: s.Line, Location: s.Location}
}

func FromReview(r review.Review) Review {
	out := Review{
		ID:        r.ID,
		User:      r.Author,
		Station:   r.StationID,
		Text:      r.Text,
		Rating:    r.Rating,
		Sentiment: string(r.Sentiment),
		CreatedAt: r.CreatedAt,
		Aspects:   make([]AspectRating, 0, len(r.Aspects)),
	}
	for _, a := range r.Aspects {
		out.Aspects = append(out.Aspects, AspectRating{Aspect: a.Name, Sentiment: string(a.Sentiment)})
	}
	return out
}

// Domain converts to a review. A blank or failed ("error") sentiment stays
// unset.
func (r Review) Domain() review.Review {
	out := review.Review{
		ID:        r.ID,
		StationID: r.Station,
		Rating:    r.Rating,
		Text:      r.Text,
		Author:    r.User,
		CreatedAt: r.CreatedAt,
	}
	if s := strings.TrimSpace(r.Sentiment); s != "" && !strings.EqualFold(s, "error") {
		out.Sentiment = review.ParseSentiment(s)
	}
	for _, a := range r.Aspects {
		out.Aspects = append(out.Aspects, review.Aspect{
			Name:      a.Aspect,
			Sentiment: review.ParseSentiment(a.Sentiment),
			Trend:     review.Flat,
		})
	}
	return out
}

func trendLabel(t review.Trend) string {
	switch t {
	case review.Up:
		return "up"
	case review.Down:
		return "down"
	default:
		return "stable"
	}
}

func FromStats(s review.StationStats) Stats {
	out := Stats{
		OverallRating:      s.OverallRating,
		TotalReviews:       s.TotalReviews,
		ReviewDistribution: make(map[string]int, len(s.ReviewDistribution)),
		Aspects:            make(map[string]AspectStats, len(s.Aspects)),
		RecentTrends: RecentTrends{
			ThisMonth: s.RecentTrends.ThisMonth,
			LastMonth: s.RecentTrends.LastMonth,
			Sentiment: string(s.RecentTrends.Sentiment),
		},
	}
	for k, v := range s.ReviewDistribution {
		out.ReviewDistribution[strconv.Itoa(k)] = v
	}
	for name, a := range s.Aspects {
		out.Aspects[name] = AspectStats{
			Sentiment:  string(a.Sentiment),
			Percentage: a.Percentage,
			Trend:      trendLabel(a.Trend),
		}
	}
	return out
}

// Domain converts to station stats. Missing distribution keys 1..5 read
// as zero; keys outside that range are dropped.
func (s Stats) Domain() review.StationStats {
	out := review.StationStats{
		OverallRating:      s.OverallRating,
		TotalReviews:       s.TotalReviews,
		ReviewDistribution: map[int]int{1: 0, 2: 0, 3: 0, 4: 0, 5: 0},
		Aspects:            make(map[string]review.Aspect, len(s.Aspects)),
		RecentTrends: review.RecentTrends{
			ThisMonth: s.RecentTrends.ThisMonth,
			LastMonth: s.RecentTrends.LastMonth,
			Sentiment: review.ParseSentiment(s.RecentTrends.Sentiment),
		},
	}
	for k, v := range s.ReviewDistribution {
		n, err := strconv.Atoi(strings.TrimSpace(k))
		if err != nil || n < review.MinRating || n > review.MaxRating {
			continue
		}
		out.ReviewDistribution[n] = v
	}
	for name, a := range s.Aspects {
		out.Aspects[name] = review.Aspect{
			Name:       name,
			Sentiment:  review.ParseSentiment(a.Sentiment),
			Percentage: a.Percentage,
			Trend:      review.ParseTrend(a.Trend),
		}
	}
	return out
}
