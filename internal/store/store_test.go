package store

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/abelbrown/stationreviews/internal/review"
)

func openTest(t *testing.T) *Store {
	t.Helper()
	st, err := Open(":memory:")
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	t.Cleanup(func() { st.Close() })
	return st
}

func addStation(t *testing.T, st *Store, name string) review.Station {
	t.Helper()
	s, _, err := st.AddStation(context.Background(), review.Station{Name: name})
	if err != nil {
		t.Fatalf("AddStation(%q): %v", name, err)
	}
	return s
}

func TestOpen(t *testing.T) {
	st := openTest(t)

	for _, table := range []string{"stations", "users", "reviews", "aspect_ratings"} {
		var name string
		err := st.db.QueryRow("SELECT name FROM sqlite_master WHERE type='table' AND name=?", table).Scan(&name)
		if err != nil {
			t.Fatalf("%s table not created: %v", table, err)
		}
	}
}

func TestOpenMemoryStoresAreIsolated(t *testing.T) {
	a := openTest(t)
	b := openTest(t)
	addStation(t, a, "Only In A")

	got, err := b.ListStations(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 0 {
		t.Errorf("second in-memory store sees %d stations", len(got))
	}
}

func TestOpenFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "reviews.db")
	st, err := Open(path)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	addStation(t, st, "Persisted")
	st.Close()

	st, err = Open(path)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer st.Close()
	if _, err := st.StationByName(context.Background(), "Persisted"); err != nil {
		t.Errorf("station lost across reopen: %v", err)
	}
}

func TestAddStation(t *testing.T) {
	st := openTest(t)
	ctx := context.Background()

	s, created, err := st.AddStation(ctx, review.Station{Name: " Kashmere Gate ", Location: "North"})
	if err != nil || !created {
		t.Fatalf("AddStation = %v, %v", created, err)
	}
	if s.Name != "Kashmere Gate" || s.Line != DefaultLine || s.Location != "North" || s.ID == 0 {
		t.Errorf("stored station = %+v", s)
	}

	again, created, err := st.AddStation(ctx, review.Station{Name: "Kashmere Gate", Line: "Red Line"})
	if err != nil || created {
		t.Fatalf("duplicate AddStation = %v, %v", created, err)
	}
	if again.ID != s.ID || again.Line != DefaultLine {
		t.Errorf("duplicate should return the existing station, got %+v", again)
	}

	if _, _, err := st.AddStation(ctx, review.Station{Name: "  "}); !review.IsValidation(err) {
		t.Errorf("blank name: err = %v", err)
	}

	if _, err := st.Station(ctx, 999); !errors.Is(err, review.ErrNotFound) {
		t.Errorf("unknown station: err = %v", err)
	}
}

func TestUsers(t *testing.T) {
	st := openTest(t)
	ctx := context.Background()

	id, err := st.CreateUser(ctx, "rider", "hunter2", false)
	if err != nil {
		t.Fatalf("CreateUser: %v", err)
	}
	if id.Username != "rider" || id.Privileged {
		t.Errorf("identity = %+v", id)
	}
	if _, err := st.CreateUser(ctx, "rider", "other", false); !errors.Is(err, ErrUserExists) {
		t.Errorf("duplicate user: err = %v", err)
	}
	if _, err := st.CreateUser(ctx, "", "pw", false); !review.IsValidation(err) {
		t.Errorf("empty username: err = %v", err)
	}

	got, err := st.Authenticate(ctx, "rider", "hunter2")
	if err != nil || got.Username != "rider" {
		t.Errorf("Authenticate = %+v, %v", got, err)
	}
	if _, err := st.Authenticate(ctx, "rider", "wrong"); !errors.Is(err, ErrBadCredentials) {
		t.Errorf("wrong password: err = %v", err)
	}
	if _, err := st.Authenticate(ctx, "ghost", "pw"); !errors.Is(err, ErrBadCredentials) {
		t.Errorf("unknown user: err = %v", err)
	}
}

func TestImportedAuthorCanRegister(t *testing.T) {
	st := openTest(t)
	ctx := context.Background()
	s := addStation(t, st, "Central")

	if _, err := st.InsertReview(ctx, NewReview{StationID: s.ID, Author: "csvuser", Rating: 4, Text: "ok"}); err != nil {
		t.Fatal(err)
	}
	if _, err := st.Authenticate(ctx, "csvuser", ""); !errors.Is(err, ErrBadCredentials) {
		t.Errorf("password-less account must not log in: %v", err)
	}
	if _, err := st.CreateUser(ctx, "csvuser", "pw", false); err != nil {
		t.Errorf("claiming imported account: %v", err)
	}
	if _, err := st.Authenticate(ctx, "csvuser", "pw"); err != nil {
		t.Errorf("Authenticate after claim: %v", err)
	}
}

func TestInsertAndListReviews(t *testing.T) {
	st := openTest(t)
	ctx := context.Background()
	s := addStation(t, st, "Central")
	other := addStation(t, st, "Harbour")

	base := time.Date(2026, 9, 1, 8, 0, 0, 0, time.UTC)
	for i := 0; i < 45; i++ {
		_, err := st.InsertReview(ctx, NewReview{
			StationID: s.ID,
			Author:    fmt.Sprintf("user%d", i%3),
			Rating:    1 + i%5,
			Text:      fmt.Sprintf("review %d", i),
			CreatedAt: base.Add(time.Duration(i) * time.Hour),
			Sentiment: review.Positive,
			Aspects:   []review.Aspect{{Name: "Cleanliness", Sentiment: review.Positive}},
		})
		if err != nil {
			t.Fatalf("InsertReview %d: %v", i, err)
		}
	}
	if _, err := st.InsertReview(ctx, NewReview{StationID: other.ID, Rating: 3, Text: "elsewhere"}); err != nil {
		t.Fatal(err)
	}

	page, total, err := st.ListReviews(ctx, s.ID, 20, 0)
	if err != nil {
		t.Fatalf("ListReviews: %v", err)
	}
	if total != 45 || len(page) != 20 {
		t.Fatalf("first page: len=%d total=%d", len(page), total)
	}
	if page[0].Text != "review 44" {
		t.Errorf("newest first expected, got %q", page[0].Text)
	}
	if !page[0].CreatedAt.Equal(base.Add(44 * time.Hour)) {
		t.Errorf("CreatedAt = %v", page[0].CreatedAt)
	}
	if len(page[0].Aspects) != 1 || page[0].Aspects[0].Name != "Cleanliness" {
		t.Errorf("aspects not attached: %+v", page[0].Aspects)
	}
	if page[0].Sentiment != review.Positive || page[0].Author != "user2" {
		t.Errorf("review = %+v", page[0])
	}

	last, _, err := st.ListReviews(ctx, s.ID, 20, 40)
	if err != nil {
		t.Fatal(err)
	}
	if len(last) != 5 || last[4].Text != "review 0" {
		t.Errorf("last page: len=%d", len(last))
	}

	all, _, err := st.ListReviews(ctx, s.ID, 0, 0)
	if err != nil {
		t.Fatal(err)
	}
	seen := make(map[int64]bool)
	for _, r := range all {
		if r.StationID != s.ID {
			t.Errorf("review %d belongs to station %d", r.ID, r.StationID)
		}
		seen[r.ID] = true
	}
	if len(all) != 45 || len(seen) != 45 {
		t.Errorf("unbounded list: len=%d unique=%d", len(all), len(seen))
	}
}

func TestInsertReviewValidation(t *testing.T) {
	st := openTest(t)
	ctx := context.Background()
	s := addStation(t, st, "Central")

	if _, err := st.InsertReview(ctx, NewReview{StationID: s.ID, Rating: 6, Text: "x"}); !review.IsValidation(err) {
		t.Errorf("rating 6: err = %v", err)
	}
	if _, err := st.InsertReview(ctx, NewReview{StationID: s.ID, Rating: 3, Text: " "}); !review.IsValidation(err) {
		t.Errorf("blank text: err = %v", err)
	}
	if _, err := st.InsertReview(ctx, NewReview{StationID: 404, Rating: 3, Text: "x"}); !errors.Is(err, review.ErrNotFound) {
		t.Errorf("unknown station: err = %v", err)
	}

	r, err := st.InsertReview(ctx, NewReview{StationID: s.ID, Rating: 3, Text: "fine"})
	if err != nil {
		t.Fatal(err)
	}
	if r.Author != "anonymous" || r.CreatedAt.IsZero() {
		t.Errorf("defaults not applied: %+v", r)
	}
}

func TestDeleteReview(t *testing.T) {
	st := openTest(t)
	ctx := context.Background()
	s := addStation(t, st, "Central")

	r, err := st.InsertReview(ctx, NewReview{StationID: s.ID, Author: "alice", Rating: 2, Text: "slow lifts",
		Aspects: []review.Aspect{{Name: "Infrastructure", Sentiment: review.Negative}}})
	if err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name string
		who  review.Identity
		want error
	}{
		{"anonymous", review.Identity{}, review.ErrForbidden},
		{"other user", review.Identity{Username: "bob"}, review.ErrForbidden},
	}
	for _, tt := range tests {
		if err := st.DeleteReview(ctx, tt.who, r.ID); !errors.Is(err, tt.want) {
			t.Errorf("%s: err = %v, want %v", tt.name, err, tt.want)
		}
	}
	if _, err := st.Review(ctx, r.ID); err != nil {
		t.Fatalf("forbidden delete removed the review: %v", err)
	}

	if err := st.DeleteReview(ctx, review.Identity{Username: "alice"}, r.ID); err != nil {
		t.Fatalf("author delete: %v", err)
	}
	if _, err := st.Review(ctx, r.ID); !errors.Is(err, review.ErrNotFound) {
		t.Errorf("deleted review still present: %v", err)
	}
	var orphans int
	st.db.QueryRow("SELECT COUNT(*) FROM aspect_ratings WHERE review_id = ?", r.ID).Scan(&orphans)
	if orphans != 0 {
		t.Errorf("%d aspect ratings left behind", orphans)
	}

	if err := st.DeleteReview(ctx, review.Identity{Username: "alice"}, r.ID); !errors.Is(err, review.ErrNotFound) {
		t.Errorf("second delete: err = %v", err)
	}
}

func TestStaffMayDeleteAnyReview(t *testing.T) {
	st := openTest(t)
	ctx := context.Background()
	s := addStation(t, st, "Central")
	r, _ := st.InsertReview(ctx, NewReview{StationID: s.ID, Author: "alice", Rating: 1, Text: "spam"})

	if err := st.DeleteReview(ctx, review.Identity{Username: "ops", Privileged: true}, r.ID); err != nil {
		t.Errorf("staff delete: %v", err)
	}
}

const fixtureYAML = `
stations:
  - name: Rajiv Chowk
    line: Blue Line
    location: Connaught Place
  - name: Kashmere Gate
users:
  - username: ops
    password: secret
    staff: true
reviews:
  - station: Rajiv Chowk
    author: ops
    rating: 5
    text: Spotless platforms
    days_ago: 2
  - station: Kashmere Gate
    author: rider
    rating: 2
    text: Crowded at rush hour
    days_ago: 40
`

func TestSeed(t *testing.T) {
	st := openTest(t)
	ctx := context.Background()

	f, err := ReadFixture(strings.NewReader(fixtureYAML))
	if err != nil {
		t.Fatalf("ReadFixture: %v", err)
	}
	now := time.Date(2026, 10, 15, 12, 0, 0, 0, time.UTC)
	analyze := func(text string, rating int) (review.Sentiment, []review.Aspect) {
		return review.Neutral, []review.Aspect{{Name: "General", Sentiment: review.Neutral}}
	}

	res, err := st.Seed(ctx, f, analyze, now)
	if err != nil {
		t.Fatalf("Seed: %v", err)
	}
	if res.Stations != 2 || res.Users != 1 || res.Reviews != 2 {
		t.Errorf("result = %+v", res)
	}

	rc, err := st.StationByName(ctx, "Rajiv Chowk")
	if err != nil {
		t.Fatal(err)
	}
	items, _, _ := st.ListReviews(ctx, rc.ID, 10, 0)
	if len(items) != 1 || !items[0].CreatedAt.Equal(now.AddDate(0, 0, -2)) || len(items[0].Aspects) != 1 {
		t.Errorf("seeded review = %+v", items)
	}
	if id, err := st.Authenticate(ctx, "ops", "secret"); err != nil || !id.Privileged {
		t.Errorf("seeded staff user: %+v, %v", id, err)
	}

	// Seeding twice keeps stations and users, adds reviews again.
	res, err = st.Seed(ctx, f, nil, now)
	if err != nil {
		t.Fatal(err)
	}
	if res.Stations != 0 || res.Users != 0 || res.Skipped != 1 || res.Reviews != 2 {
		t.Errorf("second seed = %+v", res)
	}
}

func TestReadFixtureRejectsUnknownKeys(t *testing.T) {
	if _, err := ReadFixture(strings.NewReader("stations:\n  - nam: typo\n")); err == nil {
		t.Error("unknown key should fail")
	}
	f, err := ReadFixture(strings.NewReader(""))
	if err != nil || len(f.Stations) != 0 {
		t.Errorf("empty fixture = %+v, %v", f, err)
	}
}

func TestSeedUnknownStation(t *testing.T) {
	st := openTest(t)
	f := &Fixture{Reviews: []FixtureReview{{Station: "Nowhere", Rating: 3, Text: "x"}}}
	if _, err := st.Seed(context.Background(), f, nil, time.Now()); !errors.Is(err, review.ErrNotFound) {
		t.Errorf("err = %v, want ErrNotFound", err)
	}
}
