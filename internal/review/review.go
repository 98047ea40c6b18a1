// Package review defines the station review domain shared by every layer:
// stations, reviews, aggregate statistics and the error taxonomy.
package review

import (
	"maps"
	"strings"
	"time"
)

// Sentiment is the polarity assigned by the aspect analysis.
type Sentiment string

const (
	Positive Sentiment = "Positive"
	Neutral  Sentiment = "Neutral"
	Negative Sentiment = "Negative"
)

// ParseSentiment maps a wire label onto a Sentiment.
// Unknown or empty labels are Neutral.
func ParseSentiment(s string) Sentiment {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "positive":
		return Positive
	case "negative":
		return Negative
	default:
		return Neutral
	}
}

// Trend is the month-over-month direction of an aspect.
type Trend string

const (
	Up   Trend = "Up"
	Flat Trend = "Flat"
	Down Trend = "Down"
)

// ParseTrend maps a wire label onto a Trend. "stable" and unknown labels are Flat.
func ParseTrend(s string) Trend {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "up", "rising", "improving":
		return Up
	case "down", "falling", "declining":
		return Down
	default:
		return Flat
	}
}

// Station is a transit station. Immutable once loaded.
type Station struct {
	ID       int64
	Name     string
	Line     string
	Location string
}

// Review is one commuter review. Reviews are created and deleted, never edited.
type Review struct {
	ID        int64
	StationID int64
	Rating    int
	Text      string
	Author    string
	CreatedAt time.Time
	Sentiment Sentiment
	Aspects   []Aspect
}

// Aspect is one sentiment dimension (cleanliness, safety, ...).
type Aspect struct {
	Name       string
	Sentiment  Sentiment
	Percentage float64 // 0-100
	Trend      Trend
}

// RecentTrends summarizes review volume for the current and previous month.
type RecentTrends struct {
	ThisMonth int
	LastMonth int
	Sentiment Sentiment
}

// StationStats is the server-computed summary for a station.
// Always replaced wholesale, never patched.
type StationStats struct {
	OverallRating      float64
	TotalReviews       int
	ReviewDistribution map[int]int // rating (1..5) -> count
	Aspects            map[string]Aspect
	RecentTrends       RecentTrends
}

// Clone returns a copy of s that shares no maps with it.
func (s StationStats) Clone() StationStats {
	s.ReviewDistribution = maps.Clone(s.ReviewDistribution)
	s.Aspects = maps.Clone(s.Aspects)
	return s
}

// Identity is the user the session acts as. The zero value is anonymous.
type Identity struct {
	Username   string
	Privileged bool
}

// Anonymous reports whether no user is logged in.
func (i Identity) Anonymous() bool {
	return i.Username == ""
}

// Rating bounds.
const (
	MinRating = 1
	MaxRating = 5
)

// ValidateSubmission checks a new review before it is sent anywhere.
func ValidateSubmission(rating int, text string) error {
	if strings.TrimSpace(text) == "" {
		return &ValidationError{Field: "text", Reason: "must not be empty"}
	}
	if rating < MinRating || rating > MaxRating {
		return &ValidationError{Field: "rating", Reason: "must be between 1 and 5"}
	}
	return nil
}
