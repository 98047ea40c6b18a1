// Package httpapi is the REST transport to the review service.
//
// Every call waits on a client-side rate limiter and carries an
// X-Request-ID. Idempotent reads are retried with exponential backoff on
// network failures, 429 and 5xx; writes are sent exactly once. HTTP
// statuses are mapped onto the review error taxonomy.
package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/google/uuid"
	"golang.org/x/time/rate"

	"github.com/abelbrown/stationreviews/internal/logging"
	"github.com/abelbrown/stationreviews/internal/metrics"
	"github.com/abelbrown/stationreviews/internal/review"
)

// ErrUnauthorized wraps 401 responses.
var ErrUnauthorized = errors.New("unauthorized")

const maxBody = 10 << 20

// Options configures a Client. Zero values take defaults.
type Options struct {
	BaseURL       string // e.g. http://localhost:8000/api
	Token         string
	Timeout       time.Duration
	RatePerSecond float64
	Burst         int
	MaxRetries    int
	RetryWait     time.Duration // initial backoff interval
	HTTPClient    *http.Client
}

// Client talks to the review API.
type Client struct {
	base       *url.URL
	client     *http.Client
	limiter    *rate.Limiter
	maxRetries int
	retryWait  time.Duration

	mu    sync.RWMutex
	token string
}

// New creates a client for opts.BaseURL.
func New(opts Options) (*Client, error) {
	base, err := url.Parse(strings.TrimRight(opts.BaseURL, "/") + "/")
	if err != nil {
		return nil, fmt.Errorf("httpapi: base url: %w", err)
	}
	if base.Scheme != "http" && base.Scheme != "https" {
		return nil, fmt.Errorf("httpapi: base url %q: scheme must be http or https", opts.BaseURL)
	}

	c := &Client{
		base:       base,
		client:     opts.HTTPClient,
		maxRetries: opts.MaxRetries,
		retryWait:  opts.RetryWait,
		token:      opts.Token,
	}
	if c.client == nil {
		timeout := opts.Timeout
		if timeout <= 0 {
			timeout = 15 * time.Second
		}
		c.client = &http.Client{Timeout: timeout}
	}
	limit := rate.Limit(opts.RatePerSecond)
	if opts.RatePerSecond <= 0 {
		limit = rate.Inf
	}
	burst := opts.Burst
	if burst <= 0 {
		burst = 1
	}
	c.limiter = rate.NewLimiter(limit, burst)
	if c.retryWait <= 0 {
		c.retryWait = 250 * time.Millisecond
	}
	if c.maxRetries < 0 {
		c.maxRetries = 0
	}
	return c, nil
}

// SetToken replaces the bearer token. An empty token means anonymous.
func (c *Client) SetToken(token string) {
	c.mu.Lock()
	c.token = token
	c.mu.Unlock()
}

// Token returns the current bearer token.
func (c *Client) Token() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.token
}

// resolve turns an API path or an absolute next link into a URL.
func (c *Client) resolve(ref string, query url.Values) (string, error) {
	u, err := c.base.Parse(strings.TrimPrefix(ref, "/"))
	if err != nil {
		return "", err
	}
	if len(query) > 0 {
		q := u.Query()
		for k, vs := range query {
			for _, v := range vs {
				q.Add(k, v)
			}
		}
		u.RawQuery = q.Encode()
	}
	return u.String(), nil
}

// call describes one request.
type call struct {
	op     string // for errors and metrics, e.g. "list reviews"
	method string
	ref    string
	query  url.Values
	body   any
}

// do sends c and returns the response body of a 2xx reply.
func (c *Client) do(ctx context.Context, rc call) ([]byte, error) {
	target, err := c.resolve(rc.ref, rc.query)
	if err != nil {
		return nil, &review.TransportError{Op: rc.op, Err: err}
	}
	var payload []byte
	if rc.body != nil {
		if payload, err = json.Marshal(rc.body); err != nil {
			return nil, fmt.Errorf("%s: marshal request: %w", rc.op, err)
		}
	}

	var out []byte
	attempt := func() error {
		body, err := c.roundTrip(ctx, rc, target, payload)
		if err != nil {
			if retryable(ctx, err) {
				return err
			}
			return backoff.Permanent(err)
		}
		out = body
		return nil
	}

	if rc.method != http.MethodGet || c.maxRetries == 0 {
		err = attempt()
		var perm *backoff.PermanentError
		if errors.As(err, &perm) {
			err = perm.Err
		}
		return out, err
	}

	exp := backoff.NewExponentialBackOff()
	exp.InitialInterval = c.retryWait
	exp.MaxElapsedTime = 0
	policy := backoff.WithContext(backoff.WithMaxRetries(exp, uint64(c.maxRetries)), ctx)
	err = backoff.RetryNotify(attempt, policy, func(err error, wait time.Duration) {
		metrics.ClientRetries.WithLabelValues(rc.op).Inc()
		logging.Debug("httpapi: retrying", "op", rc.op, "wait", wait, "err", err)
	})
	return out, err
}

func (c *Client) roundTrip(ctx context.Context, rc call, target string, payload []byte) ([]byte, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, &review.TransportError{Op: rc.op, Err: err}
	}

	var body io.Reader
	if payload != nil {
		body = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(ctx, rc.method, target, body)
	if err != nil {
		return nil, &review.TransportError{Op: rc.op, Err: err}
	}
	req.Header.Set("Accept", "application/json")
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if tok := c.Token(); tok != "" {
		req.Header.Set("Authorization", "Bearer "+tok)
	}
	reqID := uuid.NewString()
	req.Header.Set("X-Request-ID", reqID)

	start := time.Now()
	resp, err := c.client.Do(req)
	if err != nil {
		return nil, &review.TransportError{Op: rc.op, Err: err}
	}
	data, err := io.ReadAll(io.LimitReader(resp.Body, maxBody))
	resp.Body.Close()
	if err != nil {
		return nil, &review.TransportError{Op: rc.op, Status: resp.StatusCode, Err: err}
	}
	logging.Debug("httpapi: response", "op", rc.op, "status", resp.StatusCode,
		"request_id", reqID, "dur", time.Since(start))

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return data, nil
	}
	return nil, statusError(rc.op, resp.StatusCode, data)
}

func retryable(ctx context.Context, err error) bool {
	if ctx.Err() != nil {
		return false
	}
	var te *review.TransportError
	if !errors.As(err, &te) {
		return false
	}
	return te.Status == 0 || te.Status == http.StatusTooManyRequests || te.Status >= 500
}

// statusError maps a non-2xx reply onto the error taxonomy.
func statusError(op string, status int, body []byte) error {
	msg := errorMessage(body)
	switch status {
	case http.StatusBadRequest:
		return validationError(body, msg)
	case http.StatusUnauthorized:
		return &review.TransportError{Op: op, Status: status, Err: ErrUnauthorized}
	case http.StatusForbidden:
		return fmt.Errorf("%s: %w", op, review.ErrForbidden)
	case http.StatusNotFound:
		return fmt.Errorf("%s: %w", op, review.ErrNotFound)
	}
	if msg == "" {
		msg = http.StatusText(status)
	}
	return &review.TransportError{Op: op, Status: status, Err: errors.New(msg)}
}

func errorMessage(body []byte) string {
	var eb struct {
		Detail string `json:"detail"`
		Error  string `json:"error"`
	}
	if json.Unmarshal(body, &eb) != nil {
		return ""
	}
	if eb.Detail != "" {
		return eb.Detail
	}
	return eb.Error
}

// validationError reads {"detail"|"error": msg} or {"field": ["reason", ...]}.
func validationError(body []byte, msg string) error {
	if msg != "" {
		return &review.ValidationError{Reason: msg}
	}
	var fields map[string]json.RawMessage
	if json.Unmarshal(body, &fields) == nil {
		for field, raw := range fields {
			var reasons []string
			if json.Unmarshal(raw, &reasons) == nil && len(reasons) > 0 {
				return &review.ValidationError{Field: field, Reason: reasons[0]}
			}
			var reason string
			if json.Unmarshal(raw, &reason) == nil {
				return &review.ValidationError{Field: field, Reason: reason}
			}
		}
	}
	return &review.ValidationError{Reason: "rejected by server"}
}

func decode(op string, data []byte, out any) error {
	if err := json.Unmarshal(data, out); err != nil {
		return &review.TransportError{Op: op, Err: fmt.Errorf("decode response: %w", err)}
	}
	return nil
}
