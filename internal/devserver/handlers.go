package devserver

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/abelbrown/stationreviews/internal/analysis"
	"github.com/abelbrown/stationreviews/internal/metrics"
	"github.com/abelbrown/stationreviews/internal/review"
	"github.com/abelbrown/stationreviews/internal/store"
	"github.com/abelbrown/stationreviews/internal/wire"
)

const maxRequestBody = 1 << 20

func pathID(r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	return id, err == nil && id > 0
}

// queryInt reads a non-negative integer parameter. present is false when
// the parameter is absent.
func queryInt(q url.Values, key string) (n int, present bool, err error) {
	raw := strings.TrimSpace(q.Get(key))
	if raw == "" {
		return 0, false, nil
	}
	n, err = strconv.Atoi(raw)
	if err != nil || n < 0 {
		return 0, true, errors.New("must be a non-negative integer")
	}
	return n, true, nil
}

func decodeBody(w http.ResponseWriter, r *http.Request, v any) bool {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxRequestBody))
	if err := dec.Decode(v); err != nil {
		writeDetail(w, http.StatusBadRequest, "JSON parse error - "+err.Error())
		return false
	}
	return true
}

// writeStoreError maps store failures onto API statuses.
func (s *Server) writeStoreError(w http.ResponseWriter, r *http.Request, err error) {
	var ve *review.ValidationError
	switch {
	case errors.As(err, &ve):
		field := ve.Field
		if field == "" {
			field = "non_field_errors"
		}
		writeFieldError(w, field, ve.Reason)
	case errors.Is(err, review.ErrForbidden):
		writeDetail(w, http.StatusForbidden, "You do not have permission to perform this action.")
	case errors.Is(err, review.ErrNotFound):
		writeDetail(w, http.StatusNotFound, "Not found.")
	case r.Context().Err() != nil:
		// Client went away; nothing useful to send.
	default:
		s.log.Error("store failure", "path", r.URL.Path, "err", err)
		writeDetail(w, http.StatusInternalServerError, "A server error occurred.")
	}
}

func (s *Server) listStations(w http.ResponseWriter, r *http.Request) {
	stations, err := s.store.ListStations(r.Context())
	if err != nil {
		s.writeStoreError(w, r, err)
		return
	}
	out := make([]wire.Station, 0, len(stations))
	for _, st := range stations {
		out = append(out, wire.FromStation(st))
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) getStation(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		writeDetail(w, http.StatusNotFound, "Not found.")
		return
	}
	st, err := s.store.Station(r.Context(), id)
	if err != nil {
		s.writeStoreError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, wire.FromStation(st))
}

// stationStats aggregates every review of the station. It waits statsDelay
// first, giving up if the client disconnects.
func (s *Server) stationStats(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		writeDetail(w, http.StatusNotFound, "Not found.")
		return
	}
	ctx := r.Context()
	if _, err := s.store.Station(ctx, id); err != nil {
		s.writeStoreError(w, r, err)
		return
	}
	if s.statsDelay > 0 {
		t := time.NewTimer(s.statsDelay)
		defer t.Stop()
		select {
		case <-ctx.Done():
			s.log.Debug("stats abandoned", "station", id)
			return
		case <-t.C:
		}
	}

	start := time.Now()
	items, _, err := s.store.ListReviews(ctx, id, 0, 0)
	if err != nil {
		s.writeStoreError(w, r, err)
		return
	}
	stats := analysis.Summarize(items, s.now())
	metrics.StatsCompute.Observe(time.Since(start).Seconds())
	writeJSON(w, http.StatusOK, wire.FromStats(stats))
}

// listReviews returns a station's reviews newest first. With limit it
// answers a paginated envelope; without, a bare array of everything.
func (s *Server) listReviews(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	stationID, err := strconv.ParseInt(strings.TrimSpace(q.Get("station")), 10, 64)
	if err != nil || stationID <= 0 {
		writeFieldError(w, "station", "A valid station id is required.")
		return
	}
	limit, paged, err := queryInt(q, "limit")
	if err != nil {
		writeFieldError(w, "limit", err.Error())
		return
	}
	offset, _, err := queryInt(q, "offset")
	if err != nil {
		writeFieldError(w, "offset", err.Error())
		return
	}
	if paged && limit == 0 {
		paged = false
	}
	if !paged {
		offset = 0
	}

	items, total, err := s.store.ListReviews(r.Context(), stationID, limit, offset)
	if err != nil {
		s.writeStoreError(w, r, err)
		return
	}
	results := make([]wire.Review, 0, len(items))
	for _, it := range items {
		results = append(results, wire.FromReview(it))
	}
	if !paged {
		writeJSON(w, http.StatusOK, results)
		return
	}

	env := wire.Envelope[wire.Review]{Count: &total, Results: results}
	if offset+len(items) < total {
		next := pageLink(r, limit, offset+limit)
		env.Next = &next
	}
	if offset > 0 {
		prev := pageLink(r, limit, max(offset-limit, 0))
		env.Previous = &prev
	}
	writeJSON(w, http.StatusOK, env)
}

// pageLink is the absolute URL of another page of the current request.
func pageLink(r *http.Request, limit, offset int) string {
	u := *r.URL
	u.Host = r.Host
	u.Scheme = "http"
	if r.TLS != nil {
		u.Scheme = "https"
	}
	q := u.Query()
	q.Set("limit", strconv.Itoa(limit))
	q.Set("offset", strconv.Itoa(offset))
	u.RawQuery = q.Encode()
	return u.String()
}

func (s *Server) createReview(w http.ResponseWriter, r *http.Request) {
	var body wire.NewReview
	if !decodeBody(w, r, &body) {
		return
	}
	if err := review.ValidateSubmission(body.Rating, body.Text); err != nil {
		s.writeStoreError(w, r, err)
		return
	}
	who := IdentityFromContext(r.Context())
	res := analysis.Analyze(body.Text, body.Rating)
	created, err := s.store.InsertReview(r.Context(), store.NewReview{
		StationID: body.Station,
		Author:    who.Username,
		Rating:    body.Rating,
		Text:      body.Text,
		CreatedAt: s.now(),
		Sentiment: res.Sentiment,
		Aspects:   res.Aspects,
	})
	if errors.Is(err, review.ErrNotFound) {
		writeFieldError(w, "station", "Invalid pk - object does not exist.")
		return
	}
	if err != nil {
		s.writeStoreError(w, r, err)
		return
	}
	s.log.Info("review created", "id", created.ID, "station", created.StationID, "user", who.Username)
	writeJSON(w, http.StatusCreated, wire.FromReview(created))
}

func (s *Server) deleteReview(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		writeDetail(w, http.StatusNotFound, "Not found.")
		return
	}
	who := IdentityFromContext(r.Context())
	if err := s.store.DeleteReview(r.Context(), who, id); err != nil {
		s.writeStoreError(w, r, err)
		return
	}
	s.log.Info("review deleted", "id", id, "user", who.Username)
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) register(w http.ResponseWriter, r *http.Request) {
	var creds wire.Credentials
	if !decodeBody(w, r, &creds) {
		return
	}
	username := strings.TrimSpace(creds.Username)
	if username == "" || creds.Password == "" {
		writeJSON(w, http.StatusBadRequest, wire.ErrorBody{Error: "Username and password are required"})
		return
	}
	_, err := s.store.CreateUser(r.Context(), username, creds.Password, false)
	if errors.Is(err, store.ErrUserExists) {
		writeJSON(w, http.StatusBadRequest, wire.ErrorBody{Error: "Username already exists"})
		return
	}
	if err != nil {
		s.writeStoreError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]string{"message": "User created successfully"})
}

func (s *Server) login(w http.ResponseWriter, r *http.Request) {
	var creds wire.Credentials
	if !decodeBody(w, r, &creds) {
		return
	}
	who, err := s.store.Authenticate(r.Context(), strings.TrimSpace(creds.Username), creds.Password)
	if errors.Is(err, store.ErrBadCredentials) {
		writeDetail(w, http.StatusUnauthorized, "No active account found with the given credentials")
		return
	}
	if err != nil {
		s.writeStoreError(w, r, err)
		return
	}
	access, refresh, err := s.tokens.Issue(who)
	if err != nil {
		s.log.Error("sign token", "err", err)
		writeDetail(w, http.StatusInternalServerError, "A server error occurred.")
		return
	}
	writeJSON(w, http.StatusOK, wire.Tokens{Access: access, Refresh: refresh})
}

// whoami reports the token holder as the store knows them now, so a staff
// grant made after login is visible.
func (s *Server) whoami(w http.ResponseWriter, r *http.Request) {
	who := IdentityFromContext(r.Context())
	if current, err := s.store.User(r.Context(), who.Username); err == nil {
		who = current
	}
	writeJSON(w, http.StatusOK, wire.WhoAmI{Username: who.Username, IsStaff: who.Privileged})
}
