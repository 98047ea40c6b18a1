package store

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/abelbrown/stationreviews/internal/review"
)

// Fixture is a YAML seed file:
//
//	stations:
//	  - name: Rajiv Chowk
//	    line: Blue Line
//	users:
//	  - username: ops
//	    password: secret
//	    staff: true
//	reviews:
//	  - station: Rajiv Chowk
//	    author: ops
//	    rating: 4
//	    text: Clean platforms
//	    days_ago: 3
type Fixture struct {
	Stations []FixtureStation `yaml:"stations"`
	Users    []FixtureUser    `yaml:"users"`
	Reviews  []FixtureReview  `yaml:"reviews"`
}

type FixtureStation struct {
	Name     string `yaml:"name"`
	Line     string `yaml:"line"`
	Location string `yaml:"location"`
}

type FixtureUser struct {
	Username string `yaml:"username"`
	Password string `yaml:"password"`
	Staff    bool   `yaml:"staff"`
}

type FixtureReview struct {
	Station string `yaml:"station"`
	Author  string `yaml:"author"`
	Rating  int    `yaml:"rating"`
	Text    string `yaml:"text"`
	DaysAgo int    `yaml:"days_ago"`
}

// ReadFixture decodes a YAML fixture. Unknown keys are rejected.
func ReadFixture(r io.Reader) (*Fixture, error) {
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	var f Fixture
	if err := dec.Decode(&f); err != nil && err != io.EOF {
		return nil, fmt.Errorf("decode fixture: %w", err)
	}
	return &f, nil
}

// SeedResult counts what Seed created.
type SeedResult struct {
	Stations int
	Users    int
	Reviews  int
	Skipped  int
}

// Analyzer tags a review before it is stored.
type Analyzer func(text string, rating int) (review.Sentiment, []review.Aspect)

// Seed loads f into the store. Existing stations and users are kept;
// reviews are always added. analyze may be nil.
func (s *Store) Seed(ctx context.Context, f *Fixture, analyze Analyzer, now time.Time) (SeedResult, error) {
	var res SeedResult

	for _, fs := range f.Stations {
		_, created, err := s.AddStation(ctx, review.Station{Name: fs.Name, Line: fs.Line, Location: fs.Location})
		if err != nil {
			return res, err
		}
		if created {
			res.Stations++
		}
	}

	for _, fu := range f.Users {
		_, err := s.CreateUser(ctx, fu.Username, fu.Password, fu.Staff)
		switch {
		case err == nil:
			res.Users++
		case errors.Is(err, ErrUserExists):
			res.Skipped++
		default:
			return res, err
		}
	}

	for i, fr := range f.Reviews {
		st, err := s.StationByName(ctx, fr.Station)
		if err != nil {
			return res, fmt.Errorf("review %d: %w", i+1, err)
		}
		nr := NewReview{
			StationID: st.ID,
			Author:    fr.Author,
			Rating:    fr.Rating,
			Text:      fr.Text,
			CreatedAt: now.AddDate(0, 0, -fr.DaysAgo),
		}
		if analyze != nil {
			nr.Sentiment, nr.Aspects = analyze(fr.Text, fr.Rating)
		}
		if _, err := s.InsertReview(ctx, nr); err != nil {
			return res, fmt.Errorf("review %d: %w", i+1, err)
		}
		res.Reviews++
	}
	return res, nil
}
