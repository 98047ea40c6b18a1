// Package analysis is the aspect-sentiment step of the review service.
//
// Reviews are tagged with aspects by keyword match and each aspect gets a
// polarity from a small lexicon biased by the star rating. No model is
// involved; it runs synchronously on every submitted review and again
// over a station's recent reviews when stats are requested.
package analysis

import (
	"strings"
	"unicode"

	"github.com/abelbrown/stationreviews/internal/review"
)

// General is assigned to reviews that mention no known aspect.
const General = "General"

// Aspect names, in display order.
const (
	Connectivity   = "Connectivity"
	Infrastructure = "Infrastructure"
	Safety         = "General Safety"
	Crowd          = "Crowd Management"
	Ticketing      = "Ticketing"
	WomensSafety   = "Women's Safety"
	Frequency      = "Frequency"
	Staff          = "Staff Behavior"
	Cleanliness    = "Cleanliness"
)

// Names lists the known aspects in display order, General last.
var Names = []string{
	Connectivity, Infrastructure, Safety, Crowd, Ticketing,
	WomensSafety, Frequency, Staff, Cleanliness, General,
}

// keywords maps each aspect to the words that signal it. Matching is on
// whole lowercase words; hyphenated keywords match hyphenated words.
var keywords = map[string][]string{
	Connectivity: {
		"connectivity", "connect", "connected", "connecting", "connection", "link", "linked",
		"reach", "accessible", "interchange", "transfer", "junction", "hub", "integrated",
		"access", "seamless", "direct", "bridge", "intersection",
	},
	Infrastructure: {
		"infrastructure", "facility", "facilities", "platform", "platforms", "lift", "lifts",
		"elevator", "escalator", "escalators", "washroom", "toilet", "toilets", "restroom",
		"parking", "seating", "seats", "amenities", "shelter", "canopy", "lighting",
		"ventilation", "ac", "air-conditioning", "cctv", "wheelchair", "braille", "tactile",
		"kiosk", "display", "announcement", "announcements", "atm", "water", "charging",
		"architecture", "modern", "upgrade",
	},
	Safety: {
		"safety", "safe", "secure", "security", "accident", "hazard", "danger", "dangerous",
		"risk", "risky", "emergency", "fire", "surveillance", "cctv", "patrol", "guard",
		"guards", "alert", "warning", "panic", "exit", "exits",
	},
	Crowd: {
		"crowd", "crowded", "overcrowded", "packed", "congestion", "congested", "rush",
		"peak", "bottleneck", "surge", "jam-packed", "capacity", "stampede", "boarding",
		"commuters", "passengers", "queue", "queues", "pushing",
	},
	Ticketing: {
		"ticketing", "ticket", "tickets", "token", "tokens", "machine", "machines", "gate",
		"gates", "barrier", "turnstile", "turnstiles", "entry", "pass", "recharge",
		"top-up", "vending", "counter", "booth", "card",
	},
	WomensSafety: {
		"women", "woman", "female", "ladies", "girl", "girls", "harassment", "unsafe",
		"molestation", "assault", "abuse", "stalking", "catcalling", "inappropriate",
		"uncomfortable", "compartment", "reserved",
	},
	Frequency: {
		"frequency", "frequent", "interval", "gap", "timing", "timings", "schedule",
		"scheduled", "arrival", "departure", "wait", "waiting", "delay", "delays",
		"delayed", "punctual", "on-time", "irregular", "headway", "timetable", "minutes",
		"off-peak",
	},
	Staff: {
		"staff", "employee", "employees", "personnel", "worker", "workers", "conductor",
		"driver", "officer", "behavior", "behaviour", "attitude", "helpful", "rude",
		"polite", "courteous", "friendly", "unfriendly", "assistance", "professional",
		"unprofessional",
	},
	Cleanliness: {
		"clean", "cleanliness", "dirty", "filthy", "garbage", "trash", "litter", "waste",
		"hygiene", "hygienic", "unhygienic", "dusty", "dust", "tidy", "untidy", "neat",
		"mess", "messy", "sanitation", "housekeeping", "cleaning", "spotless", "smell",
		"odor", "stinks",
	},
}

// keywordIndex maps a keyword to every aspect it signals.
var keywordIndex = func() map[string][]string {
	idx := make(map[string][]string)
	for _, name := range Names {
		for _, kw := range keywords[name] {
			idx[kw] = append(idx[kw], name)
		}
	}
	return idx
}()

var positiveWords = wordSet(
	"good", "great", "excellent", "clean", "spotless", "safe", "fast", "quick", "helpful",
	"polite", "friendly", "courteous", "easy", "convenient", "comfortable", "nice", "love",
	"smooth", "efficient", "punctual", "well", "best", "amazing", "pleasant", "quiet",
	"secure", "tidy", "neat", "modern", "improved", "fixed", "frequent", "seamless",
)

var negativeWords = wordSet(
	"bad", "poor", "dirty", "filthy", "slow", "rude", "unsafe", "crowded", "overcrowded",
	"broken", "late", "delay", "delayed", "delays", "terrible", "awful", "worst", "messy",
	"smell", "stinks", "unhygienic", "dangerous", "packed", "congested", "hate", "never",
	"harassment", "uncomfortable", "unfriendly", "unprofessional", "long", "closed",
	"confusing", "noisy", "chaotic", "jam-packed",
)

// negators flip the polarity of the next lexicon word.
var negators = wordSet("not", "no", "never", "hardly", "isn't", "wasn't", "aren't", "don't", "didn't")

func wordSet(words ...string) map[string]bool {
	m := make(map[string]bool, len(words))
	for _, w := range words {
		m[w] = true
	}
	return m
}

// words splits text into lowercase words, keeping inner hyphens and apostrophes.
func words(text string) []string {
	return strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r) && r != '-' && r != '\''
	})
}

// sentences splits text at terminal punctuation.
func sentences(text string) []string {
	parts := strings.FieldsFunc(text, func(r rune) bool {
		return r == '.' || r == '!' || r == '?' || r == ';' || r == '\n'
	})
	out := parts[:0]
	for _, p := range parts {
		if strings.TrimSpace(p) != "" {
			out = append(out, p)
		}
	}
	return out
}

// Detect returns the aspects text mentions, in display order.
// Text mentioning none is General.
func Detect(text string) []string {
	hit := make(map[string]bool)
	for _, w := range words(text) {
		for _, name := range keywordIndex[w] {
			hit[name] = true
		}
	}
	var out []string
	for _, name := range Names {
		if hit[name] {
			out = append(out, name)
		}
	}
	if len(out) == 0 {
		return []string{General}
	}
	return out
}

// lexiconScore is positive minus negative words, with negators flipping
// the word that follows them.
func lexiconScore(ws []string) int {
	score := 0
	negate := false
	for _, w := range ws {
		if negators[w] && !negativeWords[w] {
			negate = true
			continue
		}
		delta := 0
		switch {
		case positiveWords[w]:
			delta = 1
		case negativeWords[w]:
			delta = -1
		}
		if delta != 0 {
			if negate {
				delta = -delta
			}
			score += delta
			negate = false
		}
	}
	return score
}

// ratingBias pulls the lexicon toward the stars: 1 and 2 lean negative,
// 4 and 5 lean positive. Out-of-range ratings carry no bias.
func ratingBias(rating int) int {
	if rating < review.MinRating || rating > review.MaxRating {
		return 0
	}
	return rating - 3
}

func polarity(score int) review.Sentiment {
	switch {
	case score > 0:
		return review.Positive
	case score < 0:
		return review.Negative
	default:
		return review.Neutral
	}
}

// Classify is the overall sentiment of a review.
func Classify(text string, rating int) review.Sentiment {
	return polarity(lexiconScore(words(text)) + ratingBias(rating))
}

// aspectSentiment scores only the sentences that mention the aspect; for
// General the whole text counts.
func aspectSentiment(text, aspect string, rating int) review.Sentiment {
	if aspect == General {
		return Classify(text, rating)
	}
	score := 0
	for _, s := range sentences(text) {
		ws := words(s)
		mentions := false
		for _, w := range ws {
			for _, name := range keywordIndex[w] {
				if name == aspect {
					mentions = true
				}
			}
		}
		if mentions {
			score += lexiconScore(ws)
		}
	}
	return polarity(score + ratingBias(rating))
}

// Result is the analysis of one review.
type Result struct {
	Sentiment review.Sentiment
	Aspects   []review.Aspect // Name and Sentiment set; no percentage or trend
}

// Analyze tags a single review.
func Analyze(text string, rating int) Result {
	res := Result{Sentiment: Classify(text, rating)}
	for _, name := range Detect(text) {
		res.Aspects = append(res.Aspects, review.Aspect{
			Name:      name,
			Sentiment: aspectSentiment(text, name, rating),
			Trend:     review.Flat,
		})
	}
	return res
}

// Tag returns the overall sentiment and aspects of a review, in the shape
// the store's seeding and import paths take.
func Tag(text string, rating int) (review.Sentiment, []review.Aspect) {
	res := Analyze(text, rating)
	return res.Sentiment, res.Aspects
}
