package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/abelbrown/stationreviews/internal/metrics"
	"github.com/abelbrown/stationreviews/internal/review"
	"github.com/abelbrown/stationreviews/internal/wire"
)

func newTestClient(t *testing.T, h http.HandlerFunc) (*Client, *httptest.Server) {
	t.Helper()
	server := httptest.NewServer(h)
	t.Cleanup(server.Close)
	c, err := New(Options{BaseURL: server.URL + "/api", MaxRetries: 2, RetryWait: time.Millisecond})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return c, server
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func TestNewRejectsBadBaseURL(t *testing.T) {
	for _, u := range []string{"ftp://x", "::nope", ""} {
		if _, err := New(Options{BaseURL: u}); err == nil {
			t.Errorf("New(%q) should fail", u)
		}
	}
}

func TestListReviewsEnvelope(t *testing.T) {
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/reviews/" {
			t.Errorf("path = %s", r.URL.Path)
		}
		q := r.URL.Query()
		if q.Get("station") != "3" || q.Get("limit") != "20" || q.Get("offset") != "40" {
			t.Errorf("query = %s", r.URL.RawQuery)
		}
		if _, err := uuid.Parse(r.Header.Get("X-Request-ID")); err != nil {
			t.Errorf("X-Request-ID = %q", r.Header.Get("X-Request-ID"))
		}
		if r.Header.Get("Authorization") != "" {
			t.Error("anonymous client sent a token")
		}
		count := 45
		writeJSON(w, 200, wire.Envelope[wire.Review]{
			Count: &count,
			Results: []wire.Review{
				{ID: 5, User: "rider", Station: 3, Text: "ok", Rating: 4, Sentiment: "positive",
					Aspects: []wire.AspectRating{{Aspect: "Cleanliness", Sentiment: "Positive"}}},
			},
		})
	})

	page, err := c.ListReviews(context.Background(), 3, 20, 40)
	if err != nil {
		t.Fatalf("ListReviews: %v", err)
	}
	if !page.HasTotal || page.TotalCount != 45 || len(page.Items) != 1 {
		t.Fatalf("page = %+v", page)
	}
	r := page.Items[0]
	if r.Author != "rider" || r.StationID != 3 || r.Sentiment != review.Positive || len(r.Aspects) != 1 {
		t.Errorf("review = %+v", r)
	}
}

func TestListReviewsBareArray(t *testing.T) {
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, 200, []wire.Review{{ID: 1}, {ID: 2}})
	})
	page, err := c.ListReviews(context.Background(), 1, 20, 0)
	if err != nil {
		t.Fatal(err)
	}
	if page.HasTotal || len(page.Items) != 2 {
		t.Errorf("bare array should carry no total: %+v", page)
	}
}

func TestListReviewsUnpaginatedServer(t *testing.T) {
	// The server ignores limit/offset and returns everything.
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		all := make([]wire.Review, 45)
		for i := range all {
			all[i] = wire.Review{ID: int64(45 - i)}
		}
		writeJSON(w, 200, all)
	})
	page, err := c.ListReviews(context.Background(), 1, 20, 40)
	if err != nil {
		t.Fatal(err)
	}
	if !page.HasTotal || page.TotalCount != 45 || len(page.Items) != 5 || page.Items[0].ID != 5 {
		t.Errorf("page = total %d len %d", page.TotalCount, len(page.Items))
	}
}

func TestListStationsFollowsNext(t *testing.T) {
	var srv *httptest.Server
	c, srv := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("page") == "2" {
			writeJSON(w, 200, wire.Envelope[wire.Station]{Results: []wire.Station{{ID: 2, Name: "Harbour"}}})
			return
		}
		next := srv.URL + "/api/stations/?page=2"
		writeJSON(w, 200, wire.Envelope[wire.Station]{Next: &next, Results: []wire.Station{{ID: 1, Name: "Central", Line: "Blue Line"}}})
	})
	got, err := c.ListStations(context.Background())
	if err != nil {
		t.Fatalf("ListStations: %v", err)
	}
	if len(got) != 2 || got[0].Line != "Blue Line" || got[1].Name != "Harbour" {
		t.Errorf("stations = %+v", got)
	}
}

func TestStatusMapping(t *testing.T) {
	tests := []struct {
		status int
		body   string
		check  func(error) bool
	}{
		{400, `{"text": ["This field may not be blank."]}`, func(err error) bool {
			var ve *review.ValidationError
			return errors.As(err, &ve) && ve.Field == "text" && strings.Contains(ve.Reason, "blank")
		}},
		{400, `{"error": "User already exists"}`, func(err error) bool {
			var ve *review.ValidationError
			return errors.As(err, &ve) && ve.Reason == "User already exists"
		}},
		{401, `{"detail": "Authentication credentials were not provided."}`, func(err error) bool {
			return errors.Is(err, ErrUnauthorized) && review.IsTransport(err)
		}},
		{403, `{"detail": "nope"}`, func(err error) bool { return errors.Is(err, review.ErrForbidden) }},
		{404, ``, func(err error) bool { return errors.Is(err, review.ErrNotFound) }},
		{409, `{"detail": "conflict"}`, func(err error) bool {
			var te *review.TransportError
			return errors.As(err, &te) && te.Status == 409 && strings.Contains(te.Error(), "conflict")
		}},
	}
	for _, tt := range tests {
		t.Run(fmt.Sprint(tt.status), func(t *testing.T) {
			c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				w.Write([]byte(tt.body))
			})
			_, err := c.CreateReview(context.Background(), 1, 3, "x")
			if err == nil || !tt.check(err) {
				t.Errorf("status %d: err = %v", tt.status, err)
			}
		})
	}
}

func TestGetRetriesTransientFailures(t *testing.T) {
	var calls atomic.Int32
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		writeJSON(w, 200, wire.Stats{TotalReviews: 7, ReviewDistribution: map[string]int{"5": 7}})
	})
	before := testutil.ToFloat64(metrics.ClientRetries.WithLabelValues("station stats"))

	s, err := c.ComputeStationStats(context.Background(), 9)
	if err != nil {
		t.Fatalf("ComputeStationStats: %v", err)
	}
	if s.TotalReviews != 7 || s.ReviewDistribution[5] != 7 {
		t.Errorf("stats = %+v", s)
	}
	if calls.Load() != 3 {
		t.Errorf("calls = %d, want 3", calls.Load())
	}
	if d := testutil.ToFloat64(metrics.ClientRetries.WithLabelValues("station stats")) - before; d != 2 {
		t.Errorf("retries metric delta = %v, want 2", d)
	}
}

func TestGetGivesUpAfterMaxRetries(t *testing.T) {
	var calls atomic.Int32
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusServiceUnavailable)
	})
	_, err := c.ComputeStationStats(context.Background(), 9)
	var te *review.TransportError
	if !errors.As(err, &te) || te.Status != 503 {
		t.Errorf("err = %v", err)
	}
	if calls.Load() != 3 {
		t.Errorf("calls = %d, want 1 + 2 retries", calls.Load())
	}
}

func TestGetDoesNotRetryClientErrors(t *testing.T) {
	var calls atomic.Int32
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusNotFound)
	})
	if _, err := c.ComputeStationStats(context.Background(), 9); !errors.Is(err, review.ErrNotFound) {
		t.Errorf("err = %v", err)
	}
	if calls.Load() != 1 {
		t.Errorf("404 retried: %d calls", calls.Load())
	}
}

func TestWritesAreNeverRetried(t *testing.T) {
	var calls atomic.Int32
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusInternalServerError)
	})
	if err := c.DeleteReview(context.Background(), 4); !review.IsTransport(err) {
		t.Errorf("err = %v", err)
	}
	if calls.Load() != 1 {
		t.Errorf("delete sent %d times", calls.Load())
	}
}

func TestLoginSetsToken(t *testing.T) {
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/api/auth/login/":
			var cred wire.Credentials
			json.NewDecoder(r.Body).Decode(&cred)
			if cred.Username != "rider" || cred.Password != "pw" {
				writeJSON(w, 401, wire.ErrorBody{Detail: "bad credentials"})
				return
			}
			writeJSON(w, 200, wire.Tokens{Access: "tok-1", Refresh: "ref-1"})
		case "/api/auth/whoami/":
			if r.Header.Get("Authorization") != "Bearer tok-1" {
				writeJSON(w, 401, wire.ErrorBody{Detail: "no"})
				return
			}
			writeJSON(w, 200, wire.WhoAmI{Username: "rider", IsStaff: true})
		}
	})
	ctx := context.Background()

	if id, err := c.CurrentIdentity(ctx); err != nil || !id.Anonymous() {
		t.Errorf("before login: %+v, %v", id, err)
	}
	if _, err := c.Login(ctx, "rider", "wrong"); !errors.Is(err, ErrUnauthorized) {
		t.Errorf("bad login: err = %v", err)
	}
	if c.Token() != "" {
		t.Error("failed login must not set a token")
	}

	tok, err := c.Login(ctx, "rider", "pw")
	if err != nil || tok.Access != "tok-1" {
		t.Fatalf("Login = %+v, %v", tok, err)
	}
	id, err := c.CurrentIdentity(ctx)
	if err != nil || id.Username != "rider" || !id.Privileged {
		t.Errorf("whoami = %+v, %v", id, err)
	}

	c.SetToken("expired")
	if id, err := c.CurrentIdentity(ctx); err != nil || !id.Anonymous() {
		t.Errorf("rejected token should be anonymous: %+v, %v", id, err)
	}
}

func TestCreateReviewSendsBody(t *testing.T) {
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.Header.Get("Content-Type") != "application/json" {
			t.Errorf("%s %s", r.Method, r.Header.Get("Content-Type"))
		}
		var nr wire.NewReview
		json.NewDecoder(r.Body).Decode(&nr)
		writeJSON(w, 201, wire.Review{ID: 46, Station: nr.Station, Rating: nr.Rating, Text: nr.Text, User: "me"})
	})
	c.SetToken("t")
	r, err := c.CreateReview(context.Background(), 2, 5, "Clean and fast")
	if err != nil {
		t.Fatal(err)
	}
	if r.ID != 46 || r.StationID != 2 || r.Rating != 5 || r.Text != "Clean and fast" {
		t.Errorf("created = %+v", r)
	}
}

func TestMalformedResponseIsTransportError(t *testing.T) {
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("<html>"))
	})
	if _, err := c.ListStations(context.Background()); !review.IsTransport(err) {
		t.Errorf("err = %v", err)
	}
}

func TestContextCancelStopsRetries(t *testing.T) {
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	})
	c.retryWait = time.Hour
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	start := time.Now()
	if _, err := c.ComputeStationStats(ctx, 1); err == nil {
		t.Error("expected an error")
	}
	if time.Since(start) > 5*time.Second {
		t.Error("cancellation ignored while backing off")
	}
}
