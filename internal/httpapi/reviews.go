package httpapi

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"

	"github.com/abelbrown/stationreviews/internal/backend"
	"github.com/abelbrown/stationreviews/internal/review"
	"github.com/abelbrown/stationreviews/internal/wire"
)

var _ backend.Backend = (*Client)(nil)

// maxStationPages bounds next-link following when listing stations.
const maxStationPages = 100

// list decodes a bare array or an envelope. count is nil for bare arrays.
func list[T any](op string, data []byte) (items []T, count *int, next string, err error) {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) > 0 && trimmed[0] == '[' {
		err = decode(op, trimmed, &items)
		return items, nil, "", err
	}
	var env wire.Envelope[T]
	if err = decode(op, trimmed, &env); err != nil {
		return nil, nil, "", err
	}
	if env.Next != nil {
		next = *env.Next
	}
	return env.Results, env.Count, next, nil
}

// ListStations returns every station, following pagination links.
func (c *Client) ListStations(ctx context.Context) ([]review.Station, error) {
	const op = "list stations"
	var out []review.Station
	ref := "stations/"
	for page := 0; ref != "" && page < maxStationPages; page++ {
		data, err := c.do(ctx, call{op: op, method: http.MethodGet, ref: ref})
		if err != nil {
			return nil, err
		}
		items, _, next, err := list[wire.Station](op, data)
		if err != nil {
			return nil, err
		}
		for _, s := range items {
			out = append(out, s.Domain())
		}
		ref = next
	}
	return out, nil
}

// ListReviews fetches [offset, offset+limit) of a station's reviews, newest
// first. A server that ignores limit/offset and returns the full collection
// as a bare array is paged locally.
func (c *Client) ListReviews(ctx context.Context, stationID int64, limit, offset int) (backend.Page, error) {
	const op = "list reviews"
	q := url.Values{}
	q.Set("station", strconv.FormatInt(stationID, 10))
	if limit > 0 {
		q.Set("limit", strconv.Itoa(limit))
		q.Set("offset", strconv.Itoa(offset))
	}
	data, err := c.do(ctx, call{op: op, method: http.MethodGet, ref: "reviews/", query: q})
	if err != nil {
		return backend.Page{}, err
	}
	raw, count, _, err := list[wire.Review](op, data)
	if err != nil {
		return backend.Page{}, err
	}

	items := make([]review.Review, 0, len(raw))
	for _, r := range raw {
		items = append(items, r.Domain())
	}

	switch {
	case count != nil:
		return backend.WithTotal(items, *count), nil
	case limit > 0 && len(items) > limit:
		total := len(items)
		start := min(offset, total)
		end := min(offset+limit, total)
		return backend.WithTotal(items[start:end], total), nil
	default:
		return backend.Page{Items: items}, nil
	}
}

// ComputeStationStats asks the server to aggregate a station's reviews.
// This is the slow call.
func (c *Client) ComputeStationStats(ctx context.Context, stationID int64) (review.StationStats, error) {
	const op = "station stats"
	data, err := c.do(ctx, call{op: op, method: http.MethodGet, ref: fmt.Sprintf("stations/%d/stats/", stationID)})
	if err != nil {
		return review.StationStats{}, err
	}
	var s wire.Stats
	if err := decode(op, data, &s); err != nil {
		return review.StationStats{}, err
	}
	return s.Domain(), nil
}

// CreateReview posts a review as the current token holder.
func (c *Client) CreateReview(ctx context.Context, stationID int64, rating int, text string) (review.Review, error) {
	const op = "create review"
	data, err := c.do(ctx, call{op: op, method: http.MethodPost, ref: "reviews/",
		body: wire.NewReview{Station: stationID, Rating: rating, Text: text}})
	if err != nil {
		return review.Review{}, err
	}
	var r wire.Review
	if err := decode(op, data, &r); err != nil {
		return review.Review{}, err
	}
	return r.Domain(), nil
}

// DeleteReview deletes a review. The server enforces who may.
func (c *Client) DeleteReview(ctx context.Context, reviewID int64) error {
	_, err := c.do(ctx, call{op: "delete review", method: http.MethodDelete, ref: fmt.Sprintf("reviews/%d/", reviewID)})
	return err
}

// CurrentIdentity returns the token holder. No token, or a token the server
// rejects, is the anonymous identity.
func (c *Client) CurrentIdentity(ctx context.Context) (review.Identity, error) {
	const op = "whoami"
	if c.Token() == "" {
		return review.Identity{}, nil
	}
	data, err := c.do(ctx, call{op: op, method: http.MethodGet, ref: "auth/whoami/"})
	if errors.Is(err, ErrUnauthorized) {
		return review.Identity{}, nil
	}
	if err != nil {
		return review.Identity{}, err
	}
	var who wire.WhoAmI
	if err := decode(op, data, &who); err != nil {
		return review.Identity{}, err
	}
	return review.Identity{Username: who.Username, Privileged: who.IsStaff}, nil
}

// Login exchanges credentials for tokens and starts sending the access token.
func (c *Client) Login(ctx context.Context, username, password string) (wire.Tokens, error) {
	const op = "login"
	data, err := c.do(ctx, call{op: op, method: http.MethodPost, ref: "auth/login/",
		body: wire.Credentials{Username: username, Password: password}})
	if err != nil {
		return wire.Tokens{}, err
	}
	var tok wire.Tokens
	if err := decode(op, data, &tok); err != nil {
		return wire.Tokens{}, err
	}
	if tok.Access == "" {
		return wire.Tokens{}, &review.TransportError{Op: op, Err: errors.New("no access token in response")}
	}
	c.SetToken(tok.Access)
	return tok, nil
}

// Register creates an account. It does not log in.
func (c *Client) Register(ctx context.Context, username, password string) error {
	_, err := c.do(ctx, call{op: "register", method: http.MethodPost, ref: "auth/register/",
		body: wire.Credentials{Username: username, Password: password}})
	return err
}
